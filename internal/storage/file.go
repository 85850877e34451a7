package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// FileStore keeps each run in its own directory as metadata.json and
// thermo.csv.
type FileStore struct {
	baseDir string
}

func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

func (s *FileStore) Init(_ context.Context) error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *FileStore) Save(_ context.Context, meta RunMetadata, thermo *Thermo) (string, error) {
	if err := prepare(&meta, thermo); err != nil {
		return "", err
	}
	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := writeThermoCSV(filepath.Join(runDir, "thermo.csv"), thermo); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeJSON(path string, v any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closeFile(f, &err)

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeThermoCSV(path string, thermo *Thermo) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closeFile(f, &err)

	w := csv.NewWriter(f)
	header := append([]string{"step", "time"}, thermo.Names...)
	if err := w.Write(header); err != nil {
		return err
	}

	for i, step := range thermo.Steps {
		row := make([]string, 0, len(header))
		row = append(row, strconv.FormatUint(step, 10), strconv.FormatFloat(thermo.Times[i], 'g', -1, 64))
		for _, n := range thermo.Names {
			row = append(row, strconv.FormatFloat(thermo.Values[n][i], 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// closeFile reports a failed close through err unless an earlier error is
// already set.
func closeFile(f *os.File, err *error) {
	if cerr := f.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

func (s *FileStore) List(_ context.Context) ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.readMeta(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sortRuns(runs)
	return runs, nil
}

func (s *FileStore) Load(_ context.Context, id string) (*RunMetadata, error) {
	return s.readMeta(id)
}

func (s *FileStore) readMeta(id string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, "metadata.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode %s metadata: %w", id, err)
	}
	return &meta, nil
}

func (s *FileStore) LoadThermo(_ context.Context, id string) (*Thermo, error) {
	file, err := os.Open(filepath.Join(s.baseDir, id, "thermo.csv"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}

	thermo := &Thermo{Values: make(map[string][]float64)}
	if len(records) == 0 {
		return thermo, nil
	}
	if len(records[0]) < 2 {
		return nil, fmt.Errorf("%s: thermo.csv header too short", id)
	}
	thermo.Names = append([]string(nil), records[0][2:]...)

	for line, record := range records[1:] {
		step, err := strconv.ParseUint(record[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: thermo.csv line %d: %w", id, line+2, err)
		}
		t, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: thermo.csv line %d: %w", id, line+2, err)
		}
		thermo.Steps = append(thermo.Steps, step)
		thermo.Times = append(thermo.Times, t)

		for j, n := range thermo.Names {
			v, err := strconv.ParseFloat(record[j+2], 64)
			if err != nil {
				return nil, fmt.Errorf("%s: thermo.csv line %d: %w", id, line+2, err)
			}
			thermo.Values[n] = append(thermo.Values[n], v)
		}
	}
	return thermo, nil
}
