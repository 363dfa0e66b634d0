package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rotaops/rota-api/internal/dto"
	"github.com/rotaops/rota-api/internal/models"
	"github.com/rotaops/rota-api/internal/store"
	appErrors "github.com/rotaops/rota-api/pkg/errors"
)

type rosterStore interface {
	View(fn func(store.Snapshot) error) error
	Update(fn func(*store.Snapshot) error) error
}

// RosterService manages the employee roster. Deleting an employee never
// cascades into the current schedule; stale assignment ids resolve to
// "Unknown" on read.
type RosterService struct {
	store     rosterStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService constructs a RosterService.
func NewRosterService(store rosterStore, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{store: store, validator: validate, logger: logger}
}

// List returns employees plus pagination data.
func (s *RosterService) List(ctx context.Context, query dto.EmployeeListQuery) ([]models.Employee, *models.Pagination, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = 20
	}

	var matched []models.Employee
	err := s.store.View(func(snap store.Snapshot) error {
		for _, emp := range snap.Employees {
			if query.Role != "" && !emp.HasRole(query.Role) {
				continue
			}
			if query.Search != "" && !strings.Contains(strings.ToLower(emp.Name), strings.ToLower(query.Search)) {
				continue
			}
			matched = append(matched, emp)
		}
		return nil
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}

	total := len(matched)
	offset := (page - 1) * size
	if offset > total {
		offset = total
	}
	end := offset + size
	if end > total {
		end = total
	}

	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return matched[offset:end], pagination, nil
}

// Get returns an employee by id.
func (s *RosterService) Get(ctx context.Context, id string) (*models.Employee, error) {
	var found *models.Employee
	err := s.store.View(func(snap store.Snapshot) error {
		if emp, ok := snap.EmployeeByID(id); ok {
			found = &emp
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if found == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
	}
	return found, nil
}

// Create registers a new roster member.
func (s *RosterService) Create(ctx context.Context, req dto.EmployeeRequest) (*models.Employee, error) {
	employee, err := s.buildEmployee(req)
	if err != nil {
		return nil, err
	}
	employee.ID = uuid.NewString()
	now := time.Now().UTC()
	employee.CreatedAt = now
	employee.UpdatedAt = now

	err = s.store.Update(func(snap *store.Snapshot) error {
		snap.Employees = append(snap.Employees, *employee)
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save employee")
	}

	s.logger.Info("employee created", zap.String("employee_id", employee.ID))
	return employee, nil
}

// Update replaces an employee's attributes.
func (s *RosterService) Update(ctx context.Context, id string, req dto.EmployeeRequest) (*models.Employee, error) {
	employee, err := s.buildEmployee(req)
	if err != nil {
		return nil, err
	}

	err = s.store.Update(func(snap *store.Snapshot) error {
		for i := range snap.Employees {
			if snap.Employees[i].ID == id {
				employee.ID = id
				employee.CreatedAt = snap.Employees[i].CreatedAt
				employee.UpdatedAt = time.Now().UTC()
				snap.Employees[i] = *employee
				return nil
			}
		}
		return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
	})
	if err != nil {
		return nil, err
	}
	return employee, nil
}

// Delete removes an employee from the roster. Assignments referencing
// the id stay in the schedule as tolerated orphans.
func (s *RosterService) Delete(ctx context.Context, id string) error {
	return s.store.Update(func(snap *store.Snapshot) error {
		for i := range snap.Employees {
			if snap.Employees[i].ID == id {
				snap.Employees = append(snap.Employees[:i], snap.Employees[i+1:]...)
				return nil
			}
		}
		return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
	})
}

func (s *RosterService) buildEmployee(req dto.EmployeeRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid employee payload")
	}

	maxHours := req.MaxHoursPerWeek
	if maxHours == 0 {
		maxHours = 40
	}
	availability := req.Availability
	if availability == nil {
		availability = map[models.Weekday][]models.TimeRange{}
	}

	employee := &models.Employee{
		Name:            strings.TrimSpace(req.Name),
		MaxHoursPerWeek: maxHours,
		Roles:           req.Roles,
		Availability:    availability,
	}
	if err := employee.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return employee, nil
}
