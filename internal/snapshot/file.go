package snapshot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/chairtools/chairstat/internal/venue"
)

// Save writes a snapshot as indented JSON.
func Save(path string, snap *venue.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	return nil
}

// Load reads a snapshot written by Save.
func Load(path string) (*venue.Snapshot, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is given by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}

	var snap venue.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// MismatchError reports a snapshot fetched for another pipeline or venue.
type MismatchError struct {
	Want venue.Kind
	Got  venue.Kind
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("snapshot was fetched for %q, not %q", e.Got, e.Want)
}

// Expect checks that a loaded snapshot can feed the given pipeline.
func Expect(snap *venue.Snapshot, kind venue.Kind) error {
	if snap.Kind != kind {
		return &MismatchError{Want: kind, Got: snap.Kind}
	}
	return nil
}
