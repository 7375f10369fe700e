package outcome

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/clotrack/core"
	"github.com/trezcool/clotrack/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("outcome not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnauthenticated   = errors.New("user not authenticated")
	ErrForbidden         = errors.New("permission denied")
)

type (
	// Repository persists outcome templates and instances along with the courses and sections they hang off.
	// Getters return ErrNotFound when the record does not exist.
	Repository interface {
		GetInstance(ctx context.Context, id string) (Instance, error)
		// UpdateInstance writes the status and audit fields of inst in one statement, only if the stored
		// status still equals expected. It reports whether the write happened.
		UpdateInstance(ctx context.Context, inst Instance, expected LifecycleStatus) (bool, error)
		ListInstancesBySection(ctx context.Context, sectionID string) ([]Instance, error)
		ListInstancesByCourse(ctx context.Context, courseID string) ([]Instance, error)
		ListSectionsByCourse(ctx context.Context, courseID string) ([]Section, error)
		GetSection(ctx context.Context, id string) (Section, error)
		GetTemplate(ctx context.Context, id string) (Template, error)
		GetCourse(ctx context.Context, id string) (Course, error)
	}

	// UserFinder is the part of user.Repository the outcome services read from.
	UserFinder interface {
		GetUserByID(ctx context.Context, id string) (user.User, error)
		GetUsersByID(ctx context.Context, ids ...string) ([]user.User, error)
		QueryProgramAdmins(ctx context.Context, programID string) ([]user.User, error)
	}

	Service struct {
		repo     Repository
		users    UserFinder
		notifier Notifier
		logger   core.Logger
		nowFunc  func() time.Time
	}
)

// NewService wires the outcome services. It panics if a dependency is missing.
func NewService(repo Repository, users UserFinder, notifier Notifier, logger core.Logger) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(notifier, "notifier"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{
		repo:     repo,
		users:    users,
		notifier: notifier,
		logger:   logger,
		nowFunc:  func() time.Time { return time.Now().UTC() },
	}
}

// scope is an instance together with everything it belongs to.
type scope struct {
	instance Instance
	template Template
	section  Section
	course   Course
}

// loadScope loads an instance and checks it belongs to the caller's institution.
// A mismatch anywhere along the chain is reported as ErrNotFound.
func (svc *Service) loadScope(ctx context.Context, auth user.AuthContext, id string) (scope, error) {
	var sc scope
	var err error

	if sc.instance, err = svc.repo.GetInstance(ctx, id); err != nil {
		return sc, notFoundOr(err, "getting outcome instance")
	}
	if sc.template, err = svc.repo.GetTemplate(ctx, sc.instance.TemplateID); err != nil {
		return sc, notFoundOr(err, "getting outcome template")
	}
	if sc.course, err = svc.repo.GetCourse(ctx, sc.template.CourseID); err != nil {
		return sc, notFoundOr(err, "getting course")
	}
	if sc.course.InstitutionID != auth.InstitutionID {
		return sc, ErrNotFound
	}
	if sc.section, err = svc.repo.GetSection(ctx, sc.instance.SectionID); err != nil {
		return sc, notFoundOr(err, "getting section")
	}
	if sc.section.CourseID != sc.template.CourseID {
		return sc, ErrNotFound
	}
	return sc, nil
}

// AuthorizeCourse checks that the caller may read the course.
func (svc *Service) AuthorizeCourse(ctx context.Context, auth user.AuthContext, courseID string) (Course, error) {
	if !auth.IsAuthenticated() {
		return Course{}, ErrUnauthenticated
	}
	course, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return Course{}, notFoundOr(err, "getting course")
	}
	if course.InstitutionID != auth.InstitutionID {
		return Course{}, ErrNotFound
	}
	return course, nil
}

// AuthorizeSection checks that the caller may read the section.
func (svc *Service) AuthorizeSection(ctx context.Context, auth user.AuthContext, sectionID string) (Section, error) {
	if !auth.IsAuthenticated() {
		return Section{}, ErrUnauthenticated
	}
	section, err := svc.repo.GetSection(ctx, sectionID)
	if err != nil {
		return Section{}, notFoundOr(err, "getting section")
	}
	if _, err = svc.AuthorizeCourse(ctx, auth, section.CourseID); err != nil {
		return Section{}, err
	}
	return section, nil
}

func notFoundOr(err error, msg string) error {
	if errors.Cause(err) == ErrNotFound {
		return ErrNotFound
	}
	return errors.Wrap(err, msg)
}
