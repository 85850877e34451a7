// Package storage persists finished runs: their metadata and the recorded
// thermodynamic series.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a run id is unknown to the store.
var ErrNotFound = errors.New("storage: run not found")

// ErrNotInitialized is returned by stores used before Init.
var ErrNotInitialized = errors.New("storage: store is not initialized")

type RunMetadata struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Mode      string             `json:"mode"`
	Methods   []string           `json:"methods"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	N         int                `json:"n"`
	Dt        float64            `json:"dt"`
	Steps     uint64             `json:"steps"`
	Elapsed   time.Duration      `json:"elapsed"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Thermo is the sampled series of one run. Every entry of Values has one
// element per entry of Steps.
type Thermo struct {
	Steps  []uint64             `json:"steps"`
	Times  []float64            `json:"times"`
	Names  []string             `json:"names"`
	Values map[string][]float64 `json:"values"`
}

func (t *Thermo) Len() int { return len(t.Steps) }

func (t *Thermo) validate() error {
	if len(t.Times) != len(t.Steps) {
		return fmt.Errorf("storage: %d times for %d steps", len(t.Times), len(t.Steps))
	}
	for _, n := range t.Names {
		if len(t.Values[n]) != len(t.Steps) {
			return fmt.Errorf("storage: series %q has %d samples for %d steps", n, len(t.Values[n]), len(t.Steps))
		}
	}
	return nil
}

type Store interface {
	Init(ctx context.Context) error
	// Save assigns an id when meta.ID is empty and returns it.
	Save(ctx context.Context, meta RunMetadata, thermo *Thermo) (string, error)
	List(ctx context.Context) ([]RunMetadata, error)
	Load(ctx context.Context, id string) (*RunMetadata, error)
	LoadThermo(ctx context.Context, id string) (*Thermo, error)
}

func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", "file":
		if path == "" {
			path = "runs"
		}
		return NewFileStore(path), nil
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(path), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

// newID returns a run id: the script name and a random suffix.
func newID(name string) string {
	if name == "" {
		name = "run"
	}
	return fmt.Sprintf("%s_%s", sanitize(name), uuid.NewString()[:8])
}

func sanitize(name string) string {
	b := []byte(name)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			b[i] = '-'
		}
	}
	return string(b)
}

func prepare(meta *RunMetadata, thermo *Thermo) error {
	if thermo == nil {
		return errors.New("storage: nil thermo")
	}
	if err := thermo.validate(); err != nil {
		return err
	}
	if meta.ID == "" {
		meta.ID = newID(meta.Name)
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	return nil
}

// sortRuns orders runs newest first.
func sortRuns(runs []RunMetadata) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Timestamp.Equal(runs[j].Timestamp) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
}
