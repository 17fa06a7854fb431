package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const snapshotVersion = 1

// Snapshot is a portable save of the map, written as zstd-compressed JSON.
type Snapshot struct {
	Version int        `json:"version"`
	RunID   string     `json:"run_id,omitempty"`
	Tick    uint64     `json:"tick"`
	Rows    int        `json:"rows"`
	Cols    int        `json:"cols"`
	Tiles   [][]string `json:"tiles"`
}

// NewSnapshot builds a snapshot from tile labels.
func NewSnapshot(runID string, tick uint64, labels [][]string) Snapshot {
	snap := Snapshot{
		Version: snapshotVersion,
		RunID:   runID,
		Tick:    tick,
		Rows:    len(labels),
		Tiles:   labels,
	}
	if len(labels) > 0 {
		snap.Cols = len(labels[0])
	}
	return snap
}

// WriteSnapshot writes snap to path, creating parent directories.
func WriteSnapshot(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)
	if err := json.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("json encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("zstd close: %w", err)
	}
	return f.Sync()
}

// ReadSnapshot reads a snapshot written by WriteSnapshot.
func ReadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	if err := json.NewDecoder(bufio.NewReader(dec)).Decode(&snap); err != nil {
		return snap, fmt.Errorf("json decode: %w", err)
	}
	if snap.Version != snapshotVersion {
		return snap, fmt.Errorf("snapshot version %d not supported", snap.Version)
	}
	return snap, nil
}
