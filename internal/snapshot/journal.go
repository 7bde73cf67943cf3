package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// journalFile is the metadata journal kept next to the snapshot files.
const journalFile = "snapshot_metadata.json"

// Record is one journal entry describing a snapshot file.
type Record struct {
	SnapshotID    string `json:"snapshot_id"`
	Timestamp     string `json:"timestamp"`
	Datetime      string `json:"datetime"`
	Description   string `json:"description"`
	OperationType string `json:"operation_type"`
	EntityType    string `json:"entity_type,omitempty"`
	EntityID      int64  `json:"entity_id,omitempty"`
	FilePath      string `json:"file_path"`
	SizeBytes     int64  `json:"size_bytes"`
}

// journal reads and rewrites the metadata file. Entries stay in creation
// order on disk; callers reorder for presentation.
type journal struct {
	path string
}

func newJournal(dir string) *journal {
	return &journal{path: filepath.Join(dir, journalFile)}
}

// read returns all entries. A missing journal is an empty one.
func (j *journal) read() ([]Record, error) {
	data, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot journal: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing snapshot journal: %w", err)
	}
	return records, nil
}

// append adds one entry and rewrites the journal.
func (j *journal) append(rec Record) error {
	records, err := j.read()
	if err != nil {
		return err
	}
	return j.write(append(records, rec))
}

// write replaces the journal content.
func (j *journal) write(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot journal: %w", err)
	}
	if err := os.WriteFile(j.path, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot journal: %w", err)
	}
	return nil
}
