package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Record is one welcomed user. Keys are "{channel_type}:{external_id}".
type Record struct {
	Welcomed      bool   `json:"welcomed"`
	WelcomedAt    int64  `json:"welcomed_at"`
	WelcomedAtISO string `json:"welcomed_at_iso"`
	ChannelType   string `json:"channel_type"`
}

// Store is a file-backed idempotency ledger: it remembers which external
// users have already received their one-time welcome. Every mutation loads
// the whole file, applies the change and rewrites the file through a rename,
// so a crash never leaves a half-written ledger behind. Mutation volume is a
// handful of writes per day; the O(n) rewrite is a deliberate trade.
type Store struct {
	path string
	mu   sync.Mutex
	log  zerolog.Logger
}

func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{path: path, log: log}
}

// Has reports whether the user was already welcomed. A missing or corrupt
// backing file reads as "never welcomed"; the next Mark heals it.
func (s *Store) Has(channelType, externalID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.load()[key(channelType, externalID)]
	return ok && rec.Welcomed
}

// Mark records the user as welcomed. Marking twice is a no-op success.
// Returns false only when the rewrite itself fails.
func (s *Store) Mark(channelType, externalID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	now := time.Now().UTC()
	records[key(channelType, externalID)] = Record{
		Welcomed:      true,
		WelcomedAt:    now.Unix(),
		WelcomedAtISO: now.Format(time.RFC3339),
		ChannelType:   channelType,
	}
	return s.persist(records)
}

// Clear forgets the user, so a later reauthorization welcomes them again.
// Clearing an absent key is a no-op success.
func (s *Store) Clear(channelType, externalID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.load()
	k := key(channelType, externalID)
	if _, ok := records[k]; !ok {
		return true
	}
	delete(records, k)
	return s.persist(records)
}

// All returns a copy of every record, keyed "{channel_type}:{external_id}".
func (s *Store) All() map[string]Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func key(channelType, externalID string) string {
	return fmt.Sprintf("%s:%s", channelType, externalID)
}

func (s *Store) load() map[string]Record {
	records := make(map[string]Record)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("failed to read welcome ledger, treating as empty")
		}
		return records
	}

	if err := json.Unmarshal(data, &records); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("corrupt welcome ledger, treating as empty")
		return make(map[string]Record)
	}
	return records
}

func (s *Store) persist(records map[string]Record) bool {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode welcome ledger")
		return false
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.log.Error().Err(err).Str("path", s.path).Msg("failed to create ledger directory")
			return false
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.log.Error().Err(err).Str("path", tmp).Msg("failed to write welcome ledger")
		return false
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("failed to replace welcome ledger")
		return false
	}
	return true
}
