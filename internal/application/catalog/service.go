package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Kinds of reference data, each stored as <DataDir>/<kind>.json holding a
// document of the form {"<kind>": [...]}.
const (
	Crops   = "crops"
	Regions = "regions"
)

// Error messages mirror the data file layout so operators know what to fix.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Service reads reference lists from disk on every call so edits to the
// data files apply without a restart.
type Service struct {
	DataDir string
}

// List returns the entries stored under kind. Entries are passed through
// unchanged, whatever their JSON shape.
func (s *Service) List(kind string) ([]json.RawMessage, error) {
	file := kind + ".json"
	data, err := os.ReadFile(filepath.Join(s.DataDir, file))
	if errors.Is(err, os.ErrNotExist) {
		return nil, &Error{Message: fmt.Sprintf("Missing data/%s", file), Err: err}
	}
	if err != nil {
		return nil, &Error{Message: fmt.Sprintf("Unreadable data/%s", file), Err: err}
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Message: "Invalid " + file, Err: err}
	}
	var entries []json.RawMessage
	raw, ok := doc[kind]
	if !ok || json.Unmarshal(raw, &entries) != nil || entries == nil {
		return nil, &Error{Message: "Invalid " + file}
	}
	return entries, nil
}
