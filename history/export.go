package history

import (
	"encoding/json"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// File is the layout of history.json.
type File struct {
	RunID  string `json:"run_id"`
	Epochs []Row  `json:"epochs"`
}

// WriteJSON writes rows as an indented history file.
func WriteJSON(path, runID string, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	b, err := json.MarshalIndent(File{RunID: runID, Epochs: rows}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode history")
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// ReadJSON reads a file written by WriteJSON.
func ReadJSON(path string) (File, error) {
	var f File
	b, err := os.ReadFile(path)
	if err != nil {
		return f, errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(b, &f); err != nil {
		return f, errors.Wrapf(err, "decode %s", path)
	}
	return f, nil
}

// WriteCSV writes rows with a header line.
func WriteCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}

// ReadCSV reads a file written by WriteCSV.
func ReadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	var rows []Row
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return rows, nil
}
