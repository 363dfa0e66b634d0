// Package store persists the whole application state as one JSON
// document written atomically to a single file. A mutex serializes every
// reader and writer, which is the single-writer discipline the schedule
// engine's callers must uphold: generation and manual edits for the same
// roster never interleave.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/rotaops/rota-api/internal/models"
)

// ErrCorrupt marks a snapshot file that exists but cannot be decoded or
// fails validation. Load never silently falls back to an empty roster.
var ErrCorrupt = errors.New("snapshot corrupt")

// Snapshot is the complete persisted document.
type Snapshot struct {
	Employees []models.Employee       `json:"employees"`
	Settings  models.ScheduleSettings `json:"settings"`
	Schedule  *models.Schedule        `json:"schedule,omitempty"`
	Users     []models.User           `json:"users"`
}

// Store owns the snapshot and its file.
type Store struct {
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	snapshot Snapshot
}

// Open loads the snapshot at path. A missing file yields a fresh
// snapshot seeded with the given settings; a file that exists but does
// not decode or validate fails with ErrCorrupt.
func Open(path string, defaults models.ScheduleSettings, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{path: path, logger: logger}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.snapshot = Snapshot{
			Employees: []models.Employee{},
			Settings:  defaults,
			Users:     []models.User{},
		}
		logger.Info("store initialized empty", zap.String("path", path))
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w: %w", path, ErrCorrupt, err)
	}
	if err := snapshot.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("validate snapshot %s settings: %w: %w", path, ErrCorrupt, err)
	}
	snapshot.normalize()

	s.snapshot = snapshot
	logger.Info("store loaded",
		zap.String("path", path),
		zap.Int("employees", len(snapshot.Employees)),
		zap.Int("users", len(snapshot.Users)),
		zap.Bool("has_schedule", snapshot.Schedule != nil))
	return s, nil
}

// View runs fn against a copy of the current snapshot under the lock.
func (s *Store) View(fn func(Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.snapshot.clone())
}

// Update runs fn against a copy of the snapshot, persists the copy on
// success, then swaps it in. When fn or the write fails the in-memory
// state is untouched.
func (s *Store) Update(fn func(*Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snapshot.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.snapshot = next
	return nil
}

// write marshals the snapshot and renames a temp file over the target,
// so readers of the file never observe a partial document.
func (s *Store) write(snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prepare snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	return nil
}

// --- Snapshot helpers ---

// normalize repairs nil collections after decode so callers can append
// without nil checks.
func (s *Snapshot) normalize() {
	if s.Employees == nil {
		s.Employees = []models.Employee{}
	}
	if s.Users == nil {
		s.Users = []models.User{}
	}
	if s.Settings.Templates == nil {
		s.Settings.Templates = map[models.Weekday][]models.ShiftTemplate{}
	}
}

// EmployeeByID finds a roster member.
func (s *Snapshot) EmployeeByID(id string) (models.Employee, bool) {
	for _, emp := range s.Employees {
		if emp.ID == id {
			return emp, true
		}
	}
	return models.Employee{}, false
}

// UserByEmail finds an account by its login email.
func (s *Snapshot) UserByEmail(email string) (models.User, bool) {
	for _, u := range s.Users {
		if u.Email == email {
			return u, true
		}
	}
	return models.User{}, false
}

// UserByID finds an account.
func (s *Snapshot) UserByID(id string) (models.User, bool) {
	for _, u := range s.Users {
		if u.ID == id {
			return u, true
		}
	}
	return models.User{}, false
}

// EmployeeName resolves a display name, tolerating assignments whose
// employee has since been deleted.
func (s *Snapshot) EmployeeName(id string) string {
	if emp, ok := s.EmployeeByID(id); ok {
		return emp.Name
	}
	return models.UnknownEmployeeName
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		Employees: make([]models.Employee, len(s.Employees)),
		Settings:  s.Settings,
		Users:     make([]models.User, len(s.Users)),
	}

	for i, emp := range s.Employees {
		out.Employees[i] = cloneEmployee(emp)
	}
	copy(out.Users, s.Users)

	out.Settings.Templates = make(map[models.Weekday][]models.ShiftTemplate, len(s.Settings.Templates))
	for day, templates := range s.Settings.Templates {
		out.Settings.Templates[day] = append([]models.ShiftTemplate(nil), templates...)
	}

	if s.Schedule != nil {
		sched := models.Schedule{
			ID:        s.Schedule.ID,
			WeekStart: s.Schedule.WeekStart,
			Shifts:    make([]models.Shift, len(s.Schedule.Shifts)),
		}
		for i, shift := range s.Schedule.Shifts {
			shift.Assignments = append([]string(nil), shift.Assignments...)
			sched.Shifts[i] = shift
		}
		out.Schedule = &sched
	}

	return out
}

func cloneEmployee(emp models.Employee) models.Employee {
	emp.Roles = append([]string(nil), emp.Roles...)
	if emp.Availability != nil {
		availability := make(map[models.Weekday][]models.TimeRange, len(emp.Availability))
		for day, ranges := range emp.Availability {
			availability[day] = append([]models.TimeRange(nil), ranges...)
		}
		emp.Availability = availability
	}
	return emp
}
