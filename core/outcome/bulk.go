package outcome

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/clotrack/core/user"
)

// SubmitCourse validates the course then submits every instance that is not final yet, without
// admin alerts. Nothing is written when validation fails. Individual submit failures are counted
// and logged but do not stop the batch.
func (svc *Service) SubmitCourse(ctx context.Context, auth user.AuthContext, courseID string) (BulkSubmitResult, error) {
	if !auth.IsAuthenticated() {
		return BulkSubmitResult{}, ErrUnauthenticated
	}
	if !(auth.IsAdmin() || auth.IsInstructor()) {
		return BulkSubmitResult{}, ErrForbidden
	}
	course, err := svc.AuthorizeCourse(ctx, auth, courseID)
	if err != nil {
		return BulkSubmitResult{}, err
	}
	if !auth.IsInstructor() && !auth.CanAdministerProgram(course.ProgramID) {
		return BulkSubmitResult{}, ErrForbidden
	}

	validation := svc.ValidateCourseSubmission(ctx, courseID)
	if !validation.Valid {
		return BulkSubmitResult{Success: false, Errors: validation.Errors}, nil
	}

	bySection, err := svc.loadCourseInstances(ctx, courseID)
	if err != nil {
		return BulkSubmitResult{}, errors.Wrap(err, "loading course instances")
	}

	res := BulkSubmitResult{Success: true}
	for _, instances := range bySection {
		for _, inst := range instances {
			if inst.Status.In(StatusApproved, StatusNeverComingIn) {
				continue
			}
			_, err := svc.Submit(ctx, auth, inst.ID, false)
			recordBulkSubmit(ctx, err)
			if err != nil {
				res.FailedCount++
				svc.logger.Warn(fmt.Sprintf("bulk submit of course %s: outcome %s: %v", courseID, inst.ID, err), err)
				continue
			}
			res.SubmittedCount++
		}
	}
	return res, nil
}
