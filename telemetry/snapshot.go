package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SnapshotVersion is incremented when the manifest format changes.
const SnapshotVersion = 1

// SnapshotName is the manifest file name inside an output directory.
const SnapshotName = "snapshot.json"

// Snapshot is the JSON manifest describing a completed run and its files.
type Snapshot struct {
	Version int `json:"version"`

	D0 int `json:"d0"`
	D1 int `json:"d1"`
	D2 int `json:"d2"`

	KernelSize int     `json:"kernel_size"`
	Sigma      float64 `json:"sigma"`

	Seed         uint64 `json:"seed"`
	RandomSeed   bool   `json:"random_seed"`
	InitialCount int    `json:"initial_count"`

	// Checksum is the xxhash64 of the rank volume payload, hex encoded.
	Checksum string    `json:"checksum"`
	Created  time.Time `json:"created"`

	Files []string `json:"files,omitempty"`
}

// SaveSnapshot writes s to dir/snapshot.json and returns the path.
func SaveSnapshot(s *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, SnapshotName)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}

	return &s, nil
}
