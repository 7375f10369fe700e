package outcome_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/clotrack/core"
	"github.com/trezcool/clotrack/core/outcome"
	"github.com/trezcool/clotrack/core/user"
	emailsvc "github.com/trezcool/clotrack/services/email"
	testutil "github.com/trezcool/clotrack/tests"
)

func TestService_Submit(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		from    outcome.LifecycleStatus
		wantErr error
	}{
		{name: "from assigned", from: outcome.StatusAssigned},
		{name: "from in progress", from: outcome.StatusInProgress},
		{name: "from unassigned", from: outcome.StatusUnassigned, wantErr: outcome.ErrInvalidTransition},
		{name: "from awaiting approval", from: outcome.StatusAwaitingApproval, wantErr: outcome.ErrInvalidTransition},
		{name: "from approved", from: outcome.StatusApproved, wantErr: outcome.ErrInvalidTransition},
		{name: "from never coming in", from: outcome.StatusNeverComingIn, wantErr: outcome.ErrInvalidTransition},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(tc.from))

			got, err := f.svc.Submit(ctx, authOf(f.teacher), inst.ID, false)
			stored := f.instance(t, inst.ID)

			if tc.wantErr != nil {
				assert.Equal(t, tc.wantErr, errors.Cause(err))
				assert.Equal(t, tc.from, stored.Status)
				assert.Nil(t, stored.SubmittedAt)
				assert.Empty(t, stored.SubmittedBy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, outcome.StatusAwaitingApproval, got.Status)
			assert.Equal(t, outcome.StatusAwaitingApproval, stored.Status)
			assert.Equal(t, outcome.ApprovalPending, stored.ApprovalStatus)
			require.NotNil(t, stored.SubmittedAt)
			assert.Equal(t, f.teacher.ID, stored.SubmittedBy)
		})
	}
}

func TestService_Submit_Access(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	inst := testutil.CreateInstance(f.db, f.section, f.tmpl)

	foreignAdmin := f.admin.AuthContext()
	foreignAdmin.InstitutionID = otherInstitutionID

	tests := []struct {
		name    string
		auth    user.AuthContext
		wantErr error
	}{
		{name: "anonymous", auth: user.AuthContext{}, wantErr: outcome.ErrUnauthenticated},
		{name: "instructor of another section", auth: authOf(f.teacher2), wantErr: outcome.ErrForbidden},
		{name: "no role", auth: user.AuthContext{UserID: "someone", InstitutionID: testutil.InstitutionID}, wantErr: outcome.ErrForbidden},
		{name: "admin of another institution", auth: foreignAdmin, wantErr: outcome.ErrNotFound},
		{name: "unknown outcome", auth: authOf(f.admin), wantErr: outcome.ErrNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id := inst.ID
			if tc.name == "unknown outcome" {
				id = "does-not-exist"
			}
			_, err := f.svc.Submit(ctx, tc.auth, id, true)
			assert.Equal(t, tc.wantErr, errors.Cause(err))
			assert.Equal(t, outcome.StatusAssigned, f.instance(t, inst.ID).Status)
		})
	}
	assert.Empty(t, emailsvc.SentMessagesCopy(), "rejected submits must not notify")

	t.Run("admin may submit any section", func(t *testing.T) {
		got, err := f.svc.Submit(ctx, authOf(f.admin), inst.ID, false)
		require.NoError(t, err)
		assert.Equal(t, f.admin.ID, got.SubmittedBy)
	})
}

func TestService_Submit_NotifiesProgramAdmins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(outcome.StatusInProgress))

	_, err := f.svc.Submit(ctx, authOf(f.teacher), inst.ID, true)
	require.NoError(t, err)

	sent := emailsvc.SentMessagesCopy()
	require.Len(t, sent, 1)
	msg := sent[0]
	require.Len(t, msg.To, 1)
	assert.Equal(t, f.progAdm.Email, msg.To[0].Address)
	assert.Equal(t, "CLO 1 of CS101-001 submitted for review", msg.Subject)
	assert.Contains(t, msg.TextContent, "Tina Teacher")
	assert.Contains(t, msg.HTMLContent, inst.ID)

	t.Run("without notification", func(t *testing.T) {
		emailsvc.ResetSentMessages()
		other := testutil.CreateInstance(f.db, f.section2, f.tmpl)
		_, err := f.svc.Submit(ctx, authOf(f.teacher2), other.ID, false)
		require.NoError(t, err)
		assert.Empty(t, emailsvc.SentMessagesCopy())
	})
}

func TestService_Approve(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		from    outcome.LifecycleStatus
		wantErr error
	}{
		{name: "from awaiting approval", from: outcome.StatusAwaitingApproval},
		{name: "from assigned", from: outcome.StatusAssigned, wantErr: outcome.ErrInvalidTransition},
		{name: "from in progress", from: outcome.StatusInProgress, wantErr: outcome.ErrInvalidTransition},
		{name: "from approved", from: outcome.StatusApproved, wantErr: outcome.ErrInvalidTransition},
		{name: "from never coming in", from: outcome.StatusNeverComingIn, wantErr: outcome.ErrInvalidTransition},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(tc.from))

			_, err := f.svc.Approve(ctx, authOf(f.admin), inst.ID)
			stored := f.instance(t, inst.ID)

			if tc.wantErr != nil {
				assert.Equal(t, tc.wantErr, errors.Cause(err))
				assert.Equal(t, tc.from, stored.Status)
				assert.Nil(t, stored.ReviewedAt)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, outcome.StatusApproved, stored.Status)
			assert.Equal(t, outcome.ApprovalApproved, stored.ApprovalStatus)
			require.NotNil(t, stored.ReviewedAt)
			assert.Equal(t, f.admin.ID, stored.ReviewedBy)
		})
	}

	t.Run("instructors cannot approve", func(t *testing.T) {
		f := newFixture(t, nil)
		inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(outcome.StatusAwaitingApproval))
		_, err := f.svc.Approve(ctx, authOf(f.teacher), inst.ID)
		assert.Equal(t, outcome.ErrForbidden, err)
		assert.Equal(t, outcome.StatusAwaitingApproval, f.instance(t, inst.ID).Status)
	})
}

func TestService_Approve_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(outcome.StatusAwaitingApproval))

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Approve(ctx, authOf(f.admin), inst.ID)
		}(i)
	}
	wg.Wait()

	var ok, invalid int
	for _, err := range errs {
		switch errors.Cause(err) {
		case nil:
			ok++
		case outcome.ErrInvalidTransition:
			invalid++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, invalid)
	assert.Equal(t, outcome.StatusApproved, f.instance(t, inst.ID).Status)
}

func TestService_RequestRework(t *testing.T) {
	ctx := context.Background()

	t.Run("comments are required", func(t *testing.T) {
		f := newFixture(t, nil)
		inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(outcome.StatusAwaitingApproval))

		for _, comments := range []string{"", "   \n\t"} {
			_, err := f.svc.RequestRework(ctx, authOf(f.admin), inst.ID, comments, true)
			var vErr *core.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.FieldMap(), "comments")
		}
		assert.Equal(t, outcome.StatusAwaitingApproval, f.instance(t, inst.ID).Status)
	})

	t.Run("blank comments on an unreachable outcome", func(t *testing.T) {
		f := newFixture(t, nil)
		inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(outcome.StatusAwaitingApproval))
		foreignAdmin := f.admin.AuthContext()
		foreignAdmin.InstitutionID = otherInstitutionID

		_, err := f.svc.RequestRework(ctx, authOf(f.admin), "does-not-exist", "  ", true)
		assert.Equal(t, outcome.ErrNotFound, errors.Cause(err))

		_, err = f.svc.RequestRework(ctx, foreignAdmin, inst.ID, "", true)
		assert.Equal(t, outcome.ErrNotFound, errors.Cause(err))
		assert.Equal(t, outcome.StatusAwaitingApproval, f.instance(t, inst.ID).Status)
	})

	t.Run("only from awaiting approval", func(t *testing.T) {
		f := newFixture(t, nil)
		inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(outcome.StatusApproved))
		_, err := f.svc.RequestRework(ctx, authOf(f.admin), inst.ID, "fix it", true)
		assert.Equal(t, outcome.ErrInvalidTransition, errors.Cause(err))
		assert.Empty(t, emailsvc.SentMessagesCopy())
	})

	t.Run("emails the instructor", func(t *testing.T) {
		f := newFixture(t, nil)
		inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(outcome.StatusAwaitingApproval))

		res, err := f.svc.RequestRework(ctx, authOf(f.admin), inst.ID, "  Passed count looks off.  ", true)
		require.NoError(t, err)
		assert.True(t, res.EmailSent)
		assert.Empty(t, res.Warning)
		assert.Equal(t, outcome.StatusInProgress, res.Outcome.Status)
		assert.Equal(t, outcome.ApprovalNeedsRework, res.Outcome.ApprovalStatus)
		assert.Equal(t, "Passed count looks off.", res.Outcome.FeedbackComments)

		sent := emailsvc.SentMessagesCopy()
		require.Len(t, sent, 1)
		assert.Equal(t, f.teacher.Email, sent[0].To[0].Address)
		assert.Equal(t, "CLO 1 of CS101-001 needs rework", sent[0].Subject)
		assert.Contains(t, sent[0].TextContent, "Passed count looks off.")
	})

	t.Run("email failure does not undo the transition", func(t *testing.T) {
		f := newFixture(t, failingMailer{})
		inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(outcome.StatusAwaitingApproval))

		res, err := f.svc.RequestRework(ctx, authOf(f.admin), inst.ID, "redo", true)
		require.NoError(t, err)
		assert.False(t, res.EmailSent)
		assert.NotEmpty(t, res.Warning)

		stored := f.instance(t, inst.ID)
		assert.Equal(t, outcome.StatusInProgress, stored.Status)
		assert.Equal(t, outcome.ApprovalNeedsRework, stored.ApprovalStatus)
		assert.Equal(t, f.admin.ID, stored.ReviewedBy)
	})

	t.Run("section without instructor", func(t *testing.T) {
		f := newFixture(t, nil)
		orphan := testutil.CreateSection(f.db, f.course, "003", "")
		inst := testutil.CreateInstance(f.db, orphan, f.tmpl, testutil.WithStatus(outcome.StatusAwaitingApproval))

		res, err := f.svc.RequestRework(ctx, authOf(f.admin), inst.ID, "redo", true)
		require.NoError(t, err)
		assert.False(t, res.EmailSent)
		assert.True(t, strings.Contains(res.Warning, "no instructor"))
	})

	t.Run("email not requested", func(t *testing.T) {
		f := newFixture(t, nil)
		inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(outcome.StatusAwaitingApproval))

		res, err := f.svc.RequestRework(ctx, authOf(f.admin), inst.ID, "redo", false)
		require.NoError(t, err)
		assert.False(t, res.EmailSent)
		assert.Empty(t, res.Warning)
		assert.Empty(t, emailsvc.SentMessagesCopy())
	})
}

func TestService_MarkNeverComingIn(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		from    outcome.LifecycleStatus
		wantErr error
	}{
		{name: "from unassigned", from: outcome.StatusUnassigned},
		{name: "from assigned", from: outcome.StatusAssigned},
		{name: "from in progress", from: outcome.StatusInProgress},
		{name: "from awaiting approval", from: outcome.StatusAwaitingApproval},
		{name: "from never coming in", from: outcome.StatusNeverComingIn},
		{name: "from approved", from: outcome.StatusApproved, wantErr: outcome.ErrInvalidTransition},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(tc.from))

			_, err := f.svc.MarkNeverComingIn(ctx, authOf(f.admin), inst.ID, " student withdrew ")
			stored := f.instance(t, inst.ID)

			if tc.wantErr != nil {
				assert.Equal(t, tc.wantErr, errors.Cause(err))
				assert.Equal(t, tc.from, stored.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, outcome.StatusNeverComingIn, stored.Status)
			assert.Equal(t, outcome.ApprovalNeverComingIn, stored.ApprovalStatus)
			assert.Equal(t, "student withdrew", stored.NCIReason)
			assert.Equal(t, f.admin.ID, stored.NCIBy)
			require.NotNil(t, stored.NCIAt)
		})
	}

	t.Run("section becomes nci", func(t *testing.T) {
		f := newFixture(t, nil)
		inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(outcome.StatusAwaitingApproval))

		_, err := f.svc.MarkNeverComingIn(ctx, authOf(f.admin), inst.ID, "")
		require.NoError(t, err)
		assert.Equal(t, outcome.SectionNCI, f.svc.GetSectionAssessmentStatus(ctx, f.section.ID))
	})
}

func TestService_Reopen(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps the review trail", func(t *testing.T) {
		f := newFixture(t, nil)
		inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithData(10, 8, "Exam"))

		_, err := f.svc.Submit(ctx, authOf(f.teacher), inst.ID, false)
		require.NoError(t, err)
		approved, err := f.svc.Approve(ctx, authOf(f.admin), inst.ID)
		require.NoError(t, err)

		reopened, err := f.svc.Reopen(ctx, authOf(f.admin), inst.ID)
		require.NoError(t, err)
		assert.Equal(t, outcome.StatusInProgress, reopened.Status)
		assert.Equal(t, outcome.ApprovalPending, reopened.ApprovalStatus)
		assert.Equal(t, approved.ReviewedAt, reopened.ReviewedAt)
		assert.Equal(t, approved.ReviewedBy, reopened.ReviewedBy)
		assert.Equal(t, approved.SubmittedAt, reopened.SubmittedAt)
		require.NotNil(t, reopened.ReopenedAt)
		assert.Equal(t, f.admin.ID, reopened.ReopenedBy)

		stored := f.instance(t, inst.ID)
		assert.Equal(t, reopened.Status, stored.Status)
		assert.Equal(t, 10, *stored.StudentsTook)
	})

	t.Run("from never coming in", func(t *testing.T) {
		f := newFixture(t, nil)
		inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(outcome.StatusNeverComingIn))
		got, err := f.svc.Reopen(ctx, authOf(f.admin), inst.ID)
		require.NoError(t, err)
		assert.Equal(t, outcome.StatusInProgress, got.Status)
	})

	for _, from := range []outcome.LifecycleStatus{
		outcome.StatusAssigned, outcome.StatusInProgress, outcome.StatusAwaitingApproval,
	} {
		t.Run("rejected from "+string(from), func(t *testing.T) {
			f := newFixture(t, nil)
			inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(from))
			_, err := f.svc.Reopen(ctx, authOf(f.admin), inst.ID)
			assert.Equal(t, outcome.ErrInvalidTransition, errors.Cause(err))
			assert.Equal(t, from, f.instance(t, inst.ID).Status)
		})
	}

	t.Run("admins only", func(t *testing.T) {
		f := newFixture(t, nil)
		inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(outcome.StatusApproved))
		_, err := f.svc.Reopen(ctx, authOf(f.teacher), inst.ID)
		assert.Equal(t, outcome.ErrForbidden, err)
	})
}

func TestService_ReworkCycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	inst := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithData(20, 15, "Project"))

	_, err := f.svc.Submit(ctx, authOf(f.teacher), inst.ID, false)
	require.NoError(t, err)
	assert.Equal(t, outcome.SectionSubmitted, f.svc.GetSectionAssessmentStatus(ctx, f.section.ID))

	_, err = f.svc.RequestRework(ctx, authOf(f.admin), inst.ID, "Attach the rubric", false)
	require.NoError(t, err)
	assert.Equal(t, outcome.SectionNeedsRework, f.svc.GetSectionAssessmentStatus(ctx, f.section.ID))

	resubmitted, err := f.svc.Submit(ctx, authOf(f.teacher), inst.ID, false)
	require.NoError(t, err)
	assert.Equal(t, outcome.StatusAwaitingApproval, resubmitted.Status)

	approved, err := f.svc.Approve(ctx, authOf(f.admin), inst.ID)
	require.NoError(t, err)
	assert.Equal(t, outcome.ApprovalApproved, approved.ApprovalStatus)
	assert.Equal(t, "Attach the rubric", approved.FeedbackComments)
	assert.Equal(t, outcome.SectionApproved, f.svc.GetSectionAssessmentStatus(ctx, f.section.ID))
}

func TestService_ProgramAdminScope(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	progAdm := authOf(f.progAdm)

	otherCourse := testutil.CreateCourse(f.db, testutil.InstitutionID, otherProgramID, "MA201", "Linear Algebra")
	otherSection := testutil.CreateSection(f.db, otherCourse, "001", f.teacher2.ID)
	otherTmpl := testutil.CreateTemplate(f.db, otherCourse, 1)

	tests := []struct {
		name string
		from outcome.LifecycleStatus
		do   func(id string) error
		want outcome.LifecycleStatus
	}{
		{
			name: "submit",
			from: outcome.StatusInProgress,
			do:   func(id string) error { _, err := f.svc.Submit(ctx, progAdm, id, false); return err },
			want: outcome.StatusAwaitingApproval,
		},
		{
			name: "approve",
			from: outcome.StatusAwaitingApproval,
			do:   func(id string) error { _, err := f.svc.Approve(ctx, progAdm, id); return err },
			want: outcome.StatusApproved,
		},
		{
			name: "request rework",
			from: outcome.StatusAwaitingApproval,
			do:   func(id string) error { _, err := f.svc.RequestRework(ctx, progAdm, id, "redo the tally", false); return err },
			want: outcome.StatusInProgress,
		},
		{
			name: "mark never coming in",
			from: outcome.StatusAssigned,
			do:   func(id string) error { _, err := f.svc.MarkNeverComingIn(ctx, progAdm, id, ""); return err },
			want: outcome.StatusNeverComingIn,
		},
		{
			name: "reopen",
			from: outcome.StatusApproved,
			do:   func(id string) error { _, err := f.svc.Reopen(ctx, progAdm, id); return err },
			want: outcome.StatusInProgress,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			own := testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithStatus(tc.from))
			other := testutil.CreateInstance(f.db, otherSection, otherTmpl, testutil.WithStatus(tc.from))

			assert.Equal(t, outcome.ErrForbidden, errors.Cause(tc.do(other.ID)))
			assert.Equal(t, tc.from, f.instance(t, other.ID).Status)

			require.NoError(t, tc.do(own.ID))
			assert.Equal(t, tc.want, f.instance(t, own.ID).Status)
		})
	}

	t.Run("course of another program", func(t *testing.T) {
		testutil.CreateInstance(f.db, otherSection, otherTmpl, testutil.WithData(10, 8, "Quiz"))
		_, err := f.svc.SubmitCourse(ctx, progAdm, otherCourse.ID)
		assert.Equal(t, outcome.ErrForbidden, err)
	})

	t.Run("institution admins review every program", func(t *testing.T) {
		other := testutil.CreateInstance(f.db, otherSection, otherTmpl, testutil.WithStatus(outcome.StatusAwaitingApproval))
		_, err := f.svc.Approve(ctx, authOf(f.admin), other.ID)
		require.NoError(t, err)
	})
}
