package signing

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeypair(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return hex.EncodeToString(pub), priv
}

func sign(priv ed25519.PrivateKey, timestamp string, body []byte) string {
	msg := append([]byte(timestamp), body...)
	return hex.EncodeToString(ed25519.Sign(priv, msg))
}

func TestVerify_ValidSignature(t *testing.T) {
	pubHex, priv := testKeypair(t)
	v, err := NewVerifier(pubHex, zerolog.Nop())
	require.NoError(t, err)

	body := []byte(`{"type":1}`)
	ts := "1700000000"
	assert.True(t, v.Verify(sign(priv, ts, body), ts, body))
}

func TestVerify_FailsClosed(t *testing.T) {
	pubHex, priv := testKeypair(t)
	v, err := NewVerifier(pubHex, zerolog.Nop())
	require.NoError(t, err)

	body := []byte(`{"type":1}`)
	ts := "1700000000"
	good := sign(priv, ts, body)

	tests := []struct {
		name      string
		signature string
		timestamp string
		body      []byte
	}{
		{"missing signature", "", ts, body},
		{"missing timestamp", good, "", body},
		{"tampered body", good, ts, []byte(`{"type":0}`)},
		{"tampered timestamp", good, "1700000001", body},
		{"malformed hex", "not-hex!", ts, body},
		{"truncated signature", good[:16], ts, body},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, v.Verify(tt.signature, tt.timestamp, tt.body))
		})
	}
}

func TestVerify_InsecurePassthrough(t *testing.T) {
	v, err := NewVerifier("", zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, v.InsecureMode())

	// Crypto is skipped, but header presence is still required.
	assert.True(t, v.Verify("anything", "123", []byte("body")))
	assert.False(t, v.Verify("", "123", []byte("body")))
	assert.False(t, v.Verify("anything", "", []byte("body")))
}

func TestNewVerifier_RejectsBadKeys(t *testing.T) {
	_, err := NewVerifier("zz", zerolog.Nop())
	assert.Error(t, err)

	_, err = NewVerifier("deadbeef", zerolog.Nop())
	assert.Error(t, err)
}
