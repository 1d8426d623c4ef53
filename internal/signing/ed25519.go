package signing

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"
)

// Header names the platform sends with every webhook request.
const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

// Verifier checks webhook request authenticity. The platform signs
// timestamp||body with its Ed25519 application key; we hold the public half.
//
// A Verifier built without a key accepts every correctly-headered request.
// That mode exists for local development only and is logged loudly.
type Verifier struct {
	key ed25519.PublicKey
	log zerolog.Logger
}

func NewVerifier(publicKeyHex string, log zerolog.Logger) (*Verifier, error) {
	v := &Verifier{log: log}

	if publicKeyHex == "" {
		log.Warn().Msg("no signing public key configured: signature verification DISABLED, do not run this in production")
		return v, nil
	}

	key, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid signing public key: %w", err)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid signing public key: got %d bytes, want %d", len(key), ed25519.PublicKeySize)
	}

	v.key = ed25519.PublicKey(key)
	return v, nil
}

// InsecureMode reports whether the verifier accepts unsigned requests.
func (v *Verifier) InsecureMode() bool {
	return v.key == nil
}

// Verify reports whether signatureHex is a valid signature over
// timestamp||body. It fails closed: a missing signature or timestamp is
// invalid even in insecure mode, and any decode or size error is invalid.
func (v *Verifier) Verify(signatureHex, timestamp string, body []byte) bool {
	if signatureHex == "" || timestamp == "" {
		return false
	}

	if v.key == nil {
		return true
	}

	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}

	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)

	return ed25519.Verify(v.key, msg, sig)
}
