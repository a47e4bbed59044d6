package steward

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const maxRecords = 10

// CycleRecord captures what happened in a single steward cycle.
type CycleRecord struct {
	Tick      uint64   `json:"tick"`
	Level     string   `json:"level"`
	Actions   []string `json:"actions"`
	Parcels   int      `json:"parcels"`
	Saturated []string `json:"saturated,omitempty"`
}

// CycleMemory keeps the most recent cycle records on disk.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file at path. Returns empty memory if not found.
// An empty path keeps memory in-process only.
func LoadMemory(path string) *CycleMemory {
	mem := &CycleMemory{path: path}
	if path == "" {
		return mem
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mem
	}
	if err := json.Unmarshal(data, mem); err != nil {
		slog.Warn("steward memory corrupted, starting fresh", "error", err)
		return &CycleMemory{path: path}
	}
	return mem
}

// Save writes the memory to disk.
func (m *CycleMemory) Save() error {
	if m.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal steward memory: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("write steward memory: %w", err)
	}
	return nil
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// StalledCycles counts how many of the latest records in a row took no action.
func (m *CycleMemory) StalledCycles() int {
	n := 0
	for i := len(m.Records) - 1; i >= 0; i-- {
		acts := m.Records[i].Actions
		if len(acts) != 1 || acts[0] != ActionNone {
			break
		}
		n++
	}
	return n
}

// Summary renders the recent cycles one per line.
func (m *CycleMemory) Summary() string {
	var b strings.Builder
	for _, r := range m.Records {
		fmt.Fprintf(&b, "tick %d: level=%s parcels=%d actions=%s", r.Tick, r.Level, r.Parcels, strings.Join(r.Actions, ","))
		if len(r.Saturated) > 0 {
			fmt.Fprintf(&b, " saturated=%s", strings.Join(r.Saturated, ","))
		}
		b.WriteString("\n")
	}
	return b.String()
}
