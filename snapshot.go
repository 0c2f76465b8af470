package adsession

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Snapshot is the exported, handle-free form of a suspended session. It
// carries exactly the configuration needed to rebuild an equivalent
// connection: server name, port, option map, and TLS state. It never
// contains the native handle, credentials, or cached metadata.
//
// The option map always includes the two pinned entries; ParseSnapshot
// re-imposes their fixed values, so a tampered snapshot cannot unpin the
// protocol version or re-enable referral chasing. Option values must be
// JSON-representable to survive Bytes/ParseSnapshot.
type Snapshot struct {
	Domain     string         `json:"domain"`
	Port       int            `json:"port"`
	Options    map[Option]any `json:"options"`
	TLSEnabled bool           `json:"tls_enabled"`
}

// Bytes serializes the snapshot for transport across process boundaries.
func (s *Snapshot) Bytes() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// ParseSnapshot decodes a snapshot produced by Bytes and re-imposes the
// pinned option values.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	if snap.Domain == "" {
		return nil, fmt.Errorf("snapshot has no domain")
	}
	if snap.Port <= 0 || snap.Port > 65535 {
		return nil, fmt.Errorf("snapshot port %d out of range", snap.Port)
	}

	if snap.Options == nil {
		snap.Options = make(map[Option]any)
	}
	maps.Copy(snap.Options, pinnedOptions())

	return &snap, nil
}

// userOptions returns the snapshot's options with the pinned entries
// removed, in the form a fresh connect expects.
func (s *Snapshot) userOptions() map[Option]any {
	options := maps.Clone(s.Options)
	if options == nil {
		return nil
	}
	for key := range pinnedOptions() {
		delete(options, key)
	}
	return options
}
