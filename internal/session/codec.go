package session

import (
	"encoding/json"
	"fmt"

	"github.com/starford/threatmap/internal/models"
)

// EncodeSnapshot serializes snap into the iteration document stored by the
// relation store.
func EncodeSnapshot(snap models.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("session: encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses an iteration document. Documents written with
// positional threat/mitigation rows decode into the same records.
func DecodeSnapshot(data []byte) (models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("session: decode snapshot: %w", err)
	}
	return snap, nil
}
