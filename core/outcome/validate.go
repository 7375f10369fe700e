package outcome

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	fieldStudentsTook   = "students_took"
	fieldStudentsPassed = "students_passed"
	fieldAssessmentTool = "assessment_tool"

	msgNoSectionOutcomes = "course has no section outcomes"
)

var errNoSectionOutcomes = errors.New(msgNoSectionOutcomes)

// ValidateCourseSubmission checks that every outcome instance of the course carries complete and
// consistent assessment data. Read failures yield an invalid result describing the error.
func (svc *Service) ValidateCourseSubmission(ctx context.Context, courseID string) Validation {
	bySection, err := svc.loadCourseInstances(ctx, courseID)
	switch {
	case errors.Cause(err) == errNoSectionOutcomes:
		return invalid(SubmissionError{Message: msgNoSectionOutcomes})
	case err != nil:
		svc.logger.Error(fmt.Sprintf("validating course submission %s: %v", courseID, err), err)
		return invalid(SubmissionError{Message: fmt.Sprintf("error validating course submission: %v", err)})
	}

	errs := make([]SubmissionError, 0)
	for _, instances := range bySection {
		for _, inst := range instances {
			errs = append(errs, ValidateInstance(inst)...)
		}
	}
	return Validation{Valid: len(errs) == 0, Errors: errs}
}

func invalid(errs ...SubmissionError) Validation {
	return Validation{Valid: false, Errors: errs}
}

// ValidateInstance returns the problems preventing inst from being submitted.
func ValidateInstance(inst Instance) []SubmissionError {
	var errs []SubmissionError
	add := func(field, msg string) {
		errs = append(errs, SubmissionError{OutcomeID: inst.ID, Field: field, Message: msg})
	}

	if inst.StudentsTook == nil {
		add(fieldStudentsTook, "number of students who took the assessment is required")
	} else if *inst.StudentsTook < 0 {
		add(fieldStudentsTook, "number of students who took the assessment must not be negative")
	}
	if inst.StudentsPassed == nil {
		add(fieldStudentsPassed, "number of students who passed is required")
	} else if *inst.StudentsPassed < 0 {
		add(fieldStudentsPassed, "number of students who passed must not be negative")
	}
	if inst.AssessmentTool == nil || strings.TrimSpace(*inst.AssessmentTool) == "" {
		add(fieldAssessmentTool, "assessment tool is required")
	}
	if inst.StudentsTook != nil && inst.StudentsPassed != nil && *inst.StudentsPassed > *inst.StudentsTook {
		add(fieldStudentsPassed, fmt.Sprintf(
			"students passed (%d) cannot exceed students who took the assessment (%d)",
			*inst.StudentsPassed, *inst.StudentsTook,
		))
	}
	return errs
}

// loadCourseInstances reads the instances of every section of a course, in section order.
// It fails with errNoSectionOutcomes when the course has no section or a section has no instance.
func (svc *Service) loadCourseInstances(ctx context.Context, courseID string) ([][]Instance, error) {
	sections, err := svc.repo.ListSectionsByCourse(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "listing sections")
	}
	if len(sections) == 0 {
		return nil, errNoSectionOutcomes
	}

	bySection := make([][]Instance, len(sections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sectionReadConcurrency)
	for i, section := range sections {
		i, section := i, section
		g.Go(func() error {
			instances, err := svc.repo.ListInstancesBySection(gctx, section.ID)
			if err != nil {
				return errors.Wrapf(err, "listing outcome instances of section %s", section.ID)
			}
			bySection[i] = instances
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	for _, instances := range bySection {
		if len(instances) == 0 {
			return nil, errNoSectionOutcomes
		}
	}
	return bySection, nil
}
