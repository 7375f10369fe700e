package outcome_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/clotrack/core"
	"github.com/trezcool/clotrack/core/outcome"
	"github.com/trezcool/clotrack/core/user"
	emailsvc "github.com/trezcool/clotrack/services/email"
	inmemdb "github.com/trezcool/clotrack/storage/database/inmem"
	testutil "github.com/trezcool/clotrack/tests"
)

const (
	programID          = "3f9d3c52-5b2e-4d55-a2c4-5f0c3a1e0100"
	otherProgramID     = "3f9d3c52-5b2e-4d55-a2c4-5f0c3a1e0101"
	otherInstitutionID = "3f9d3c52-5b2e-4d55-a2c4-5f0c3a1e0200"
)

var testConf = &core.Config{AppName: "CLO Tracker", FrontendBaseURL: "http://localhost:3000", TestMode: true}

type fixture struct {
	db       *inmemdb.DB
	repo     outcome.Repository
	svc      *outcome.Service
	admin    user.User
	progAdm  user.User
	teacher  user.User
	teacher2 user.User
	course   outcome.Course
	section  outcome.Section
	section2 outcome.Section
	tmpl     outcome.Template
}

// newFixture seeds one course with two sections; teacher owns the first, teacher2 the second.
// A nil mailSvc uses the console mock.
func newFixture(t *testing.T, mailSvc core.EmailService) *fixture {
	t.Helper()
	emailsvc.ResetSentMessages()

	logger := testutil.Logger{T: t}
	if mailSvc == nil {
		mailSvc = emailsvc.NewConsoleServiceMock(testConf, logger)
	}

	f := &fixture{db: inmemdb.Open()}
	f.repo = inmemdb.NewOutcomeRepository(f.db)
	users := inmemdb.NewUserRepository(f.db)

	f.admin = testutil.CreateUser(t, users, "Ada Admin", "ada@test.edu", "", []string{user.RoleAdmin}, true)
	f.progAdm = testutil.CreateUser(t, users, "Paul Program", "paul@test.edu", "", []string{user.RoleAdminProgram}, true, programID)
	f.teacher = testutil.CreateUser(t, users, "Tina Teacher", "tina@test.edu", "", []string{user.RoleTeacher}, true)
	f.teacher2 = testutil.CreateUser(t, users, "Tom Teacher", "tom@test.edu", "", []string{user.RoleTeacher}, true)

	f.course = testutil.CreateCourse(f.db, testutil.InstitutionID, programID, "CS101", "Intro to Computing")
	f.section = testutil.CreateSection(f.db, f.course, "001", f.teacher.ID)
	f.section2 = testutil.CreateSection(f.db, f.course, "002", f.teacher2.ID)
	f.tmpl = testutil.CreateTemplate(f.db, f.course, 1)

	notifier := outcome.NewMailNotifierMock(mailSvc, time.Second, logger)
	f.svc = outcome.NewService(f.repo, users, notifier, logger)
	return f
}

func (f *fixture) instance(t *testing.T, id string) outcome.Instance {
	t.Helper()
	inst, err := f.repo.GetInstance(context.Background(), id)
	if err != nil {
		t.Fatalf("getting instance %s: %v", id, err)
	}
	return inst
}

func authOf(usr user.User) user.AuthContext {
	return usr.AuthContext()
}

// failingMailer never delivers.
type failingMailer struct{}

func (failingMailer) SendMessage(context.Context, *core.EmailMessage) error {
	return errors.New("smtp unreachable")
}
