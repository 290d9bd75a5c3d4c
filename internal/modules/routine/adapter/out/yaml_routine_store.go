package out

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"arrivalwatch/internal/modules/routine/domain"
	routineout "arrivalwatch/internal/modules/routine/port/out"
	apperrors "arrivalwatch/internal/platform/errors"
)

type routineFile struct {
	Routines []routineEntry `yaml:"routines"`
}

type routineEntry struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name,omitempty"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	RadiusM   float64 `yaml:"radius_m,omitempty"`
	Start     string  `yaml:"start"`
	End       string  `yaml:"end"`
	Days      []int   `yaml:"days,omitempty,flow"`
	Enabled   *bool   `yaml:"enabled,omitempty"`
	SoundKey  string  `yaml:"sound_key,omitempty"`
	AlertType string  `yaml:"alert_type,omitempty"`
}

// YAMLRoutineStore keeps routine definitions in a single YAML file. The file
// is re-read on every List so edits made outside the process are picked up.
type YAMLRoutineStore struct {
	path string
	mu   sync.Mutex
}

func NewYAMLRoutineStore(path string) routineout.Store {
	return &YAMLRoutineStore{path: path}
}

func (s *YAMLRoutineStore) List(_ context.Context) ([]domain.Routine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *YAMLRoutineStore) Upsert(_ context.Context, routine domain.Routine) error {
	if err := routine.Validate(); err != nil {
		return fmt.Errorf("save routine: %w: %v", apperrors.ErrInvalidInput, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	routines, err := s.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range routines {
		if routines[i].ID == routine.ID {
			routines[i] = routine
			replaced = true
		}
	}
	if !replaced {
		routines = append(routines, routine)
	}
	return s.write(routines)
}

func (s *YAMLRoutineStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	routines, err := s.load()
	if err != nil {
		return err
	}
	kept := routines[:0]
	for _, routine := range routines {
		if routine.ID != id {
			kept = append(kept, routine)
		}
	}
	if len(kept) == len(routines) {
		return fmt.Errorf("routine %s: %w", id, apperrors.ErrNotFound)
	}
	return s.write(kept)
}

func (s *YAMLRoutineStore) load() ([]domain.Routine, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Routine{}, nil
		}
		return nil, fmt.Errorf("read routines: %w", err)
	}
	var file routineFile
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode routines: %w", err)
	}
	routines := make([]domain.Routine, 0, len(file.Routines))
	seen := map[string]bool{}
	for _, entry := range file.Routines {
		routine := entry.toDomain()
		if err := routine.Validate(); err != nil {
			return nil, fmt.Errorf("decode routines: %w", err)
		}
		if seen[routine.ID] {
			return nil, fmt.Errorf("decode routines: duplicate routine id %q", routine.ID)
		}
		seen[routine.ID] = true
		routines = append(routines, routine)
	}
	sort.SliceStable(routines, func(i, j int) bool { return routines[i].ID < routines[j].ID })
	return routines, nil
}

func (s *YAMLRoutineStore) write(routines []domain.Routine) error {
	file := routineFile{Routines: make([]routineEntry, 0, len(routines))}
	for _, routine := range routines {
		file.Routines = append(file.Routines, entryFromDomain(routine))
	}
	raw, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode routines: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create routines dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write routines: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace routines: %w", err)
	}
	return nil
}

// toDomain treats an omitted enabled flag as enabled.
func (e routineEntry) toDomain() domain.Routine {
	enabled := true
	if e.Enabled != nil {
		enabled = *e.Enabled
	}
	return domain.Routine{
		ID:        e.ID,
		Name:      e.Name,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		RadiusM:   e.RadiusM,
		Start:     e.Start,
		End:       e.End,
		Days:      e.Days,
		Enabled:   enabled,
		SoundKey:  e.SoundKey,
		AlertType: e.AlertType,
	}
}

func entryFromDomain(r domain.Routine) routineEntry {
	enabled := r.Enabled
	return routineEntry{
		ID:        r.ID,
		Name:      r.Name,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		RadiusM:   r.RadiusM,
		Start:     r.Start,
		End:       r.End,
		Days:      r.Days,
		Enabled:   &enabled,
		SoundKey:  r.SoundKey,
		AlertType: r.AlertType,
	}
}
