package store

import "encoding/json"

// MemoryStore holds all twin state in memory. Nothing survives a restart.
type MemoryStore struct {
	Identities *Store[Identity]
	Emails     *Store[SentEmail]
	ConfigSets *Store[ConfigurationSet]
	Clock      *Clock
}

// NewMemoryStore creates a MemoryStore with empty state.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Identities: New[Identity](),
		Emails:     New[SentEmail](),
		ConfigSets: New[ConfigurationSet](),
		Clock:      NewClock(),
	}
}

// stateSnapshot is the JSON-serializable state for admin endpoints.
type stateSnapshot struct {
	Identities map[string]Identity         `json:"identities"`
	Emails     map[string]SentEmail        `json:"emails"`
	ConfigSets map[string]ConfigurationSet `json:"configuration_sets"`
}

// Snapshot returns the full state as a JSON-serializable value.
func (s *MemoryStore) Snapshot() any {
	return stateSnapshot{
		Identities: s.Identities.Snapshot(),
		Emails:     s.Emails.Snapshot(),
		ConfigSets: s.ConfigSets.Snapshot(),
	}
}

// LoadState replaces the full state from a JSON body.
func (s *MemoryStore) LoadState(data []byte) error {
	var snap stateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.Identities.LoadSnapshot(snap.Identities)
	s.Emails.LoadSnapshot(snap.Emails)
	s.ConfigSets.LoadSnapshot(snap.ConfigSets)
	return nil
}

// Reset clears all state.
func (s *MemoryStore) Reset() {
	s.Identities.Reset()
	s.Emails.Reset()
	s.ConfigSets.Reset()
	s.Clock.Reset()
}
