package outcome_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/clotrack/core/outcome"
	"github.com/trezcool/clotrack/core/user"
	testutil "github.com/trezcool/clotrack/tests"
)

func inst(status outcome.LifecycleStatus, approval outcome.ApprovalStatus) outcome.Instance {
	return outcome.Instance{Status: status, ApprovalStatus: approval}
}

func withData(i outcome.Instance) outcome.Instance {
	i.StudentsTook = testutil.IntPtr(12)
	return i
}

var (
	unassigned = inst(outcome.StatusUnassigned, outcome.ApprovalPending)
	assigned   = inst(outcome.StatusAssigned, outcome.ApprovalPending)
	inProgress = inst(outcome.StatusInProgress, outcome.ApprovalPending)
	awaiting   = inst(outcome.StatusAwaitingApproval, outcome.ApprovalPending)
	approved   = inst(outcome.StatusApproved, outcome.ApprovalApproved)
	nci        = inst(outcome.StatusNeverComingIn, outcome.ApprovalNeverComingIn)
	reworked   = inst(outcome.StatusInProgress, outcome.ApprovalNeedsRework)
)

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name      string
		instances []outcome.Instance
		want      outcome.SectionStatus
	}{
		{name: "no instances", instances: nil, want: outcome.SectionNotStarted},
		{name: "one flagged for rework among approved", instances: []outcome.Instance{approved, approved, reworked}, want: outcome.SectionNeedsRework},
		{name: "rework beats nci", instances: []outcome.Instance{nci, inst(outcome.StatusNeverComingIn, outcome.ApprovalNeedsRework)}, want: outcome.SectionNeedsRework},
		{name: "resubmitted rework still flagged", instances: []outcome.Instance{inst(outcome.StatusAwaitingApproval, outcome.ApprovalNeedsRework)}, want: outcome.SectionNeedsRework},
		{name: "all nci", instances: []outcome.Instance{nci, nci}, want: outcome.SectionNCI},
		{name: "all approved", instances: []outcome.Instance{approved, approved}, want: outcome.SectionApproved},
		{name: "all awaiting", instances: []outcome.Instance{awaiting, awaiting}, want: outcome.SectionSubmitted},
		{name: "one in progress", instances: []outcome.Instance{approved, inProgress}, want: outcome.SectionInProgress},
		{name: "assigned with data counts as in progress", instances: []outcome.Instance{assigned, withData(assigned)}, want: outcome.SectionInProgress},
		{name: "blank assessment tool is no data", instances: []outcome.Instance{func() outcome.Instance {
			i := assigned
			i.AssessmentTool = testutil.StringPtr("  ")
			return i
		}()}, want: outcome.SectionNotStarted},
		{name: "all assigned without data", instances: []outcome.Instance{assigned, assigned}, want: outcome.SectionNotStarted},
		{name: "assigned and unassigned without data", instances: []outcome.Instance{assigned, unassigned}, want: outcome.SectionNotStarted},
		{name: "approved and awaiting", instances: []outcome.Instance{approved, awaiting}, want: outcome.SectionUnknown},
		{name: "approved and nci", instances: []outcome.Instance{approved, nci}, want: outcome.SectionUnknown},
		{name: "approved and assigned", instances: []outcome.Instance{approved, assigned}, want: outcome.SectionUnknown},
		{name: "unassigned with data", instances: []outcome.Instance{withData(unassigned)}, want: outcome.SectionUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, outcome.AggregateStatus(tc.instances))
		})
	}
}

func TestAggregateStatus_OrderIndependent(t *testing.T) {
	pool := []outcome.Instance{unassigned, assigned, withData(assigned), inProgress, awaiting, approved, nci, reworked}
	rnd := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		n := 1 + rnd.Intn(6)
		instances := make([]outcome.Instance, n)
		for i := range instances {
			instances[i] = pool[rnd.Intn(len(pool))]
		}
		want := outcome.AggregateStatus(instances)

		for shuffle := 0; shuffle < 5; shuffle++ {
			rnd.Shuffle(len(instances), func(i, j int) { instances[i], instances[j] = instances[j], instances[i] })
			if got := outcome.AggregateStatus(instances); got != want {
				t.Fatalf("round %d: got %s after shuffle, want %s (%v)", round, got, want, instances)
			}
		}
	}
}

func TestAggregateStatus_ReworkOverridesApproved(t *testing.T) {
	for n := 1; n <= 5; n++ {
		instances := make([]outcome.Instance, n)
		for i := range instances {
			instances[i] = approved
		}
		assert.Equal(t, outcome.SectionApproved, outcome.AggregateStatus(instances))

		for i := range instances {
			flagged := append([]outcome.Instance(nil), instances...)
			flagged[i].ApprovalStatus = outcome.ApprovalNeedsRework
			assert.Equal(t, outcome.SectionNeedsRework, outcome.AggregateStatus(flagged))
		}
	}
}

// failingRepo breaks every listing.
type failingRepo struct {
	outcome.Repository
}

var errStore = errors.New("store unavailable")

func (failingRepo) ListInstancesBySection(context.Context, string) ([]outcome.Instance, error) {
	return nil, errStore
}

func (failingRepo) ListInstancesByCourse(context.Context, string) ([]outcome.Instance, error) {
	return nil, errStore
}

func (failingRepo) ListSectionsByCourse(context.Context, string) ([]outcome.Section, error) {
	return nil, errStore
}

func newServiceWith(t *testing.T, repo outcome.Repository) *outcome.Service {
	t.Helper()
	logger := testutil.Logger{T: t}
	return outcome.NewService(repo, noUsers{}, outcome.NewMailNotifierMock(failingMailer{}, 0, logger), logger)
}

type noUsers struct{}

func (noUsers) GetUserByID(context.Context, string) (user.User, error) {
	return user.User{}, user.ErrNotFound
}

func (noUsers) GetUsersByID(context.Context, ...string) ([]user.User, error) { return nil, nil }

func (noUsers) QueryProgramAdmins(context.Context, string) ([]user.User, error) { return nil, nil }

func TestService_GetSectionAssessmentStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	assert.Equal(t, outcome.SectionNotStarted, f.svc.GetSectionAssessmentStatus(ctx, f.section.ID))

	tmpl2 := testutil.CreateTemplate(f.db, f.course, 2)
	testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(outcome.StatusApproved), testutil.WithApproval(outcome.ApprovalApproved))
	testutil.CreateInstance(f.db, f.section, tmpl2, testutil.WithStatus(outcome.StatusAwaitingApproval))
	assert.Equal(t, outcome.SectionUnknown, f.svc.GetSectionAssessmentStatus(ctx, f.section.ID))

	t.Run("read failure", func(t *testing.T) {
		svc := newServiceWith(t, failingRepo{Repository: f.repo})
		assert.Equal(t, outcome.SectionUnknown, svc.GetSectionAssessmentStatus(ctx, f.section.ID))
	})
}

func TestService_GetCourseAssessmentStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(outcome.StatusApproved), testutil.WithApproval(outcome.ApprovalApproved))
	testutil.CreateInstance(f.db, f.section2, f.tmpl, testutil.WithStatus(outcome.StatusApproved), testutil.WithApproval(outcome.ApprovalApproved))

	got := f.svc.GetCourseAssessmentStatus(ctx, f.course.ID)
	assert.Equal(t, outcome.SectionApproved, got.Status)
	assert.Equal(t, map[string]outcome.SectionStatus{
		f.section.ID:  outcome.SectionApproved,
		f.section2.ID: outcome.SectionApproved,
	}, got.Sections)

	reworked := testutil.CreateInstance(f.db, f.section2, testutil.CreateTemplate(f.db, f.course, 2),
		testutil.WithStatus(outcome.StatusInProgress), testutil.WithApproval(outcome.ApprovalNeedsRework))
	got = f.svc.GetCourseAssessmentStatus(ctx, f.course.ID)
	assert.Equal(t, outcome.SectionNeedsRework, got.Status)
	assert.Equal(t, outcome.SectionApproved, got.Sections[f.section.ID])
	assert.Equal(t, outcome.SectionNeedsRework, got.Sections[reworked.SectionID])

	t.Run("read failure", func(t *testing.T) {
		svc := newServiceWith(t, failingRepo{Repository: f.repo})
		got := svc.GetCourseAssessmentStatus(ctx, f.course.ID)
		assert.Equal(t, outcome.SectionUnknown, got.Status)
		assert.Empty(t, got.Sections)
	})
}
