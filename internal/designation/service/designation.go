package service

import (
	"context"

	"github.com/peopleops/hrms-backend/internal/audit"
	"github.com/peopleops/hrms-backend/internal/designation/repository"
	"github.com/peopleops/hrms-backend/pkg/apperr"
	"github.com/peopleops/hrms-backend/pkg/logger"
)

// DesignationService handles the job-title catalog.
type DesignationService struct {
	repo     *repository.DesignationRepository
	recorder *audit.Recorder
	logger   *logger.Logger
}

// NewDesignationService creates a new designation service
func NewDesignationService(repo *repository.DesignationRepository, recorder *audit.Recorder, log *logger.Logger) *DesignationService {
	return &DesignationService{
		repo:     repo,
		recorder: recorder,
		logger:   log,
	}
}

// DesignationRequest represents a designation create or update request
type DesignationRequest struct {
	Title       string `json:"title" validate:"required,min=2,max=100"`
	Level       int    `json:"level" validate:"gte=0,lte=20"`
	Description string `json:"description" validate:"omitempty,max=500"`
}

// Create creates a designation.
func (s *DesignationService) Create(ctx context.Context, req *DesignationRequest) (*repository.Designation, error) {
	d := &repository.Designation{
		Title:       req.Title,
		Level:       req.Level,
		Description: req.Description,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.ActionCreate, "designation", d.ID, map[string]string{"title": d.Title})
	return d, nil
}

// Get returns a designation by id.
func (s *DesignationService) Get(ctx context.Context, id string) (*repository.Designation, error) {
	return s.repo.GetByID(ctx, id)
}

// List lists all designations.
func (s *DesignationService) List(ctx context.Context) ([]*repository.Designation, error) {
	return s.repo.List(ctx)
}

// Update updates a designation.
func (s *DesignationService) Update(ctx context.Context, id string, req *DesignationRequest) (*repository.Designation, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	d.Title = req.Title
	d.Level = req.Level
	d.Description = req.Description

	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.ActionUpdate, "designation", d.ID, map[string]string{"title": d.Title})
	return d, nil
}

// Delete removes a designation. Deletion is refused while any employee
// holds the title.
func (s *DesignationService) Delete(ctx context.Context, id string) error {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.repo.EmployeeCount(ctx, d.Title)
	if err != nil {
		return err
	}
	if count > 0 {
		return apperr.Conflict("designation is assigned to employees")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.recorder.Record(ctx, audit.ActionDelete, "designation", id, map[string]string{"title": d.Title})
	return nil
}
