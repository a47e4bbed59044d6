package persistence

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/talgya/homestead/internal/engine"
)

// SnapshotExt is the file extension of exported snapshots.
const SnapshotExt = ".hsnap"

// ExportSnapshot captures sim and writes it under dir. It returns the path.
func ExportSnapshot(dir string, sim *engine.Simulation) (string, error) {
	snap := Capture(sim)
	snap.Header.SnapshotID = uuid.NewString()
	path := filepath.Join(dir, SnapshotName(snap.Header))
	if err := WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	return path, nil
}

// SnapshotName is the file name for a snapshot: world name, tick and a short id.
func SnapshotName(h Header) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, h.Name)
	if name == "" {
		name = "world"
	}
	id := h.SnapshotID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%d-%s%s", name, h.Tick, id, SnapshotExt)
}

// WriteSnapshot stores snap as zstd: a JSON header line, then the gob body.
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

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		enc.Close()
		return err
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("zstd close: %w", err)
	}
	return f.Close()
}

// ReadSnapshot loads a snapshot written by WriteSnapshot.
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

	br := bufio.NewReaderSize(dec, 64*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return snap, fmt.Errorf("parse header: %w", err)
	}
	if h.Version != SaveVersion {
		return snap, fmt.Errorf("snapshot version %d, want %d", h.Version, SaveVersion)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ImportSnapshot reads path and rebuilds a simulation from it.
func ImportSnapshot(path string, settings engine.Settings) (*engine.Simulation, error) {
	snap, err := ReadSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	sim, err := snap.Simulation(settings)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	return sim, nil
}
