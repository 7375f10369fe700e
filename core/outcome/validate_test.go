package outcome_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/clotrack/core/outcome"
	testutil "github.com/trezcool/clotrack/tests"
)

func TestValidateInstance(t *testing.T) {
	tests := []struct {
		name       string
		took       *int
		passed     *int
		tool       *string
		wantFields []string
	}{
		{name: "complete", took: testutil.IntPtr(20), passed: testutil.IntPtr(18), tool: testutil.StringPtr("Exam")},
		{name: "everyone passed", took: testutil.IntPtr(5), passed: testutil.IntPtr(5), tool: testutil.StringPtr("Exam")},
		{name: "nothing filled", wantFields: []string{"students_took", "students_passed", "assessment_tool"}},
		{name: "blank tool", took: testutil.IntPtr(1), passed: testutil.IntPtr(0), tool: testutil.StringPtr("   "), wantFields: []string{"assessment_tool"}},
		{name: "negative took", took: testutil.IntPtr(-1), passed: testutil.IntPtr(0), tool: testutil.StringPtr("Quiz"), wantFields: []string{"students_took", "students_passed"}},
		{name: "negative passed", took: testutil.IntPtr(3), passed: testutil.IntPtr(-2), tool: testutil.StringPtr("Quiz"), wantFields: []string{"students_passed"}},
		{name: "passed exceeds took", took: testutil.IntPtr(10), passed: testutil.IntPtr(11), tool: testutil.StringPtr("Quiz"), wantFields: []string{"students_passed"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			errs := outcome.ValidateInstance(outcome.Instance{
				ID: "o1", StudentsTook: tc.took, StudentsPassed: tc.passed, AssessmentTool: tc.tool,
			})
			fields := make([]string, 0, len(errs))
			for _, e := range errs {
				assert.Equal(t, "o1", e.OutcomeID)
				assert.NotEmpty(t, e.Message)
				fields = append(fields, e.Field)
			}
			assert.ElementsMatch(t, tc.wantFields, fields)
		})
	}

	t.Run("exceed message", func(t *testing.T) {
		errs := outcome.ValidateInstance(outcome.Instance{
			StudentsTook: testutil.IntPtr(10), StudentsPassed: testutil.IntPtr(11), AssessmentTool: testutil.StringPtr("Quiz"),
		})
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Message, "exceed")
	})
}

func TestService_ValidateCourseSubmission(t *testing.T) {
	ctx := context.Background()

	t.Run("course without sections", func(t *testing.T) {
		f := newFixture(t, nil)
		empty := testutil.CreateCourse(f.db, testutil.InstitutionID, programID, "CS999", "Empty")

		res := f.svc.ValidateCourseSubmission(ctx, empty.ID)
		assert.False(t, res.Valid)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "course has no section outcomes", res.Errors[0].Message)
	})

	t.Run("a section without outcomes", func(t *testing.T) {
		f := newFixture(t, nil)
		testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithData(10, 9, "Exam"))

		res := f.svc.ValidateCourseSubmission(ctx, f.course.ID)
		assert.False(t, res.Valid)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "course has no section outcomes", res.Errors[0].Message)
	})

	t.Run("invalid data in one section", func(t *testing.T) {
		f := newFixture(t, nil)
		testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithData(10, 9, "Exam"))
		bad := testutil.CreateInstance(f.db, f.section2, f.tmpl, testutil.WithData(10, 12, "Exam"))

		res := f.svc.ValidateCourseSubmission(ctx, f.course.ID)
		assert.False(t, res.Valid)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, bad.ID, res.Errors[0].OutcomeID)
		assert.True(t, strings.Contains(res.Errors[0].Message, "exceed"))
	})

	t.Run("complete course", func(t *testing.T) {
		f := newFixture(t, nil)
		testutil.CreateInstance(f.db, f.section, f.tmpl, testutil.WithData(10, 9, "Exam"))
		testutil.CreateInstance(f.db, f.section2, f.tmpl, testutil.WithData(8, 8, "Exam"))

		res := f.svc.ValidateCourseSubmission(ctx, f.course.ID)
		assert.True(t, res.Valid)
		assert.Empty(t, res.Errors)
	})

	t.Run("read failure", func(t *testing.T) {
		f := newFixture(t, nil)
		svc := newServiceWith(t, failingRepo{Repository: f.repo})

		res := svc.ValidateCourseSubmission(ctx, f.course.ID)
		assert.False(t, res.Valid)
		require.Len(t, res.Errors, 1)
		assert.True(t, strings.HasPrefix(res.Errors[0].Message, "error validating course submission: "))
	})
}
