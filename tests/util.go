package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/clotrack/core"
	"github.com/trezcool/clotrack/core/outcome"
	"github.com/trezcool/clotrack/core/user"
	inmemdb "github.com/trezcool/clotrack/storage/database/inmem"
)

const InstitutionID = "3f9d3c52-5b2e-4d55-a2c4-5f0c3a1e0001"

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	roles []string,
	isActive bool,
	programIDs ...string,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	usr := user.User{
		InstitutionID: InstitutionID,
		Name:          name,
		Email:         email,
		Roles:         roles,
		ProgramIDs:    programIDs,
		IsActive:      isActive,
		CreatedAt:     tstamp,
		UpdatedAt:     tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(db *inmemdb.DB, institutionID, programID, code, title string) outcome.Course {
	c := outcome.Course{
		ID:            uuid.New().String(),
		InstitutionID: institutionID,
		ProgramID:     programID,
		Code:          code,
		Title:         title,
	}
	db.AddCourse(c)
	return c
}

func CreateSection(db *inmemdb.DB, course outcome.Course, number, instructorID string) outcome.Section {
	s := outcome.Section{
		ID:           uuid.New().String(),
		CourseID:     course.ID,
		Number:       number,
		InstructorID: instructorID,
	}
	db.AddSection(s)
	return s
}

func CreateTemplate(db *inmemdb.DB, course outcome.Course, cloNumber int) outcome.Template {
	tmpl := outcome.Template{
		ID:               uuid.New().String(),
		CourseID:         course.ID,
		CLONumber:        cloNumber,
		Description:      fmt.Sprintf("Outcome %d of %s", cloNumber, course.Code),
		AssessmentMethod: "Final exam",
		Active:           true,
	}
	db.AddTemplate(tmpl)
	return tmpl
}

// InstanceOption tweaks an instance before CreateInstance stores it.
type InstanceOption func(*outcome.Instance)

func WithStatus(status outcome.LifecycleStatus) InstanceOption {
	return func(inst *outcome.Instance) { inst.Status = status }
}

func WithApproval(status outcome.ApprovalStatus) InstanceOption {
	return func(inst *outcome.Instance) { inst.ApprovalStatus = status }
}

// WithData fills the assessment fields.
func WithData(took, passed int, tool string) InstanceOption {
	return func(inst *outcome.Instance) {
		inst.StudentsTook = IntPtr(took)
		inst.StudentsPassed = IntPtr(passed)
		inst.AssessmentTool = StringPtr(tool)
	}
}

func CreateInstance(db *inmemdb.DB, section outcome.Section, tmpl outcome.Template, opts ...InstanceOption) outcome.Instance {
	inst := outcome.Instance{
		ID:             uuid.New().String(),
		SectionID:      section.ID,
		TemplateID:     tmpl.ID,
		Status:         outcome.StatusAssigned,
		ApprovalStatus: outcome.ApprovalPending,
		UpdatedAt:      time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&inst)
	}
	db.AddInstance(inst)
	return inst
}

func IntPtr(i int) *int          { return &i }
func StringPtr(s string) *string { return &s }

// Logger sends every entry to t.Log.
type Logger struct {
	T testing.TB
}

var _ core.Logger = Logger{}

func (l Logger) log(level, msg string, args []interface{}) {
	l.T.Helper()
	l.T.Logf("%s: %s %v", level, msg, args)
}

func (l Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l Logger) Fatal(msg string, args ...interface{}) {
	l.T.Helper()
	l.T.Fatalf("FATAL: %s %v", msg, args)
}
