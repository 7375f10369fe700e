package inmemdb

import (
	"context"

	"github.com/trezcool/clotrack/core/outcome"
)

type outcomeRepository struct {
	db *DB
}

var _ outcome.Repository = (*outcomeRepository)(nil)

func NewOutcomeRepository(db *DB) outcome.Repository {
	return &outcomeRepository{db: db}
}

func (repo *outcomeRepository) GetInstance(_ context.Context, id string) (outcome.Instance, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if inst, ok := repo.db.instances.get(id); ok {
		return inst, nil
	}
	return outcome.Instance{}, outcome.ErrNotFound
}

// UpdateInstance only touches status and audit fields so concurrent data entry is not overwritten.
func (repo *outcomeRepository) UpdateInstance(_ context.Context, inst outcome.Instance, expected outcome.LifecycleStatus) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.instances.rows[inst.ID]
	if !ok || stored.Status != expected {
		return false, nil
	}
	stored.Status = inst.Status
	stored.ApprovalStatus = inst.ApprovalStatus
	stored.SubmittedAt = inst.SubmittedAt
	stored.SubmittedBy = inst.SubmittedBy
	stored.ReviewedAt = inst.ReviewedAt
	stored.ReviewedBy = inst.ReviewedBy
	stored.FeedbackComments = inst.FeedbackComments
	stored.NCIReason = inst.NCIReason
	stored.NCIAt = inst.NCIAt
	stored.NCIBy = inst.NCIBy
	stored.ReopenedAt = inst.ReopenedAt
	stored.ReopenedBy = inst.ReopenedBy
	stored.UpdatedAt = inst.UpdatedAt
	return true, nil
}

func (repo *outcomeRepository) ListInstancesBySection(_ context.Context, sectionID string) ([]outcome.Instance, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.db.instances.filter(func(inst outcome.Instance) bool { return inst.SectionID == sectionID }), nil
}

func (repo *outcomeRepository) ListInstancesByCourse(_ context.Context, courseID string) ([]outcome.Instance, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.db.instances.filter(func(inst outcome.Instance) bool {
		section, ok := repo.db.sections.get(inst.SectionID)
		return ok && section.CourseID == courseID
	}), nil
}

func (repo *outcomeRepository) ListSectionsByCourse(_ context.Context, courseID string) ([]outcome.Section, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.db.sections.filter(func(s outcome.Section) bool { return s.CourseID == courseID }), nil
}

func (repo *outcomeRepository) GetSection(_ context.Context, id string) (outcome.Section, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.sections.get(id); ok {
		return s, nil
	}
	return outcome.Section{}, outcome.ErrNotFound
}

func (repo *outcomeRepository) GetTemplate(_ context.Context, id string) (outcome.Template, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.templates.get(id); ok {
		return t, nil
	}
	return outcome.Template{}, outcome.ErrNotFound
}

func (repo *outcomeRepository) GetCourse(_ context.Context, id string) (outcome.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.courses.get(id); ok {
		return c, nil
	}
	return outcome.Course{}, outcome.ErrNotFound
}
