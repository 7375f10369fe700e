package outcome

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/clotrack/core"
	"github.com/trezcool/clotrack/core/user"
)

var errCommentsRequired = errors.New("comments are required to request rework")

// transition is one row of the state machine.
type transition struct {
	name    string
	allowed func(Instance) bool
	apply   func(inst *Instance, by string, now time.Time)
}

var (
	submitTransition = transition{
		name:    "submit",
		allowed: func(inst Instance) bool { return inst.Status.In(StatusAssigned, StatusInProgress) },
		apply: func(inst *Instance, by string, now time.Time) {
			inst.Status = StatusAwaitingApproval
			inst.SubmittedAt = &now
			inst.SubmittedBy = by
		},
	}

	approveTransition = transition{
		name:    "approve",
		allowed: func(inst Instance) bool { return inst.Status == StatusAwaitingApproval },
		apply: func(inst *Instance, by string, now time.Time) {
			inst.Status = StatusApproved
			inst.ApprovalStatus = ApprovalApproved
			inst.ReviewedAt = &now
			inst.ReviewedBy = by
		},
	}

	reopenTransition = transition{
		name:    "reopen",
		allowed: func(inst Instance) bool { return inst.Status.In(StatusApproved, StatusNeverComingIn) },
		apply: func(inst *Instance, by string, now time.Time) {
			inst.Status = StatusInProgress
			inst.ApprovalStatus = ApprovalPending
			inst.ReopenedAt = &now
			inst.ReopenedBy = by
		},
	}
)

func reworkTransition(comments string) transition {
	return transition{
		name:    "request_rework",
		allowed: func(inst Instance) bool { return inst.Status == StatusAwaitingApproval },
		apply: func(inst *Instance, by string, now time.Time) {
			inst.Status = StatusInProgress
			inst.ApprovalStatus = ApprovalNeedsRework
			inst.FeedbackComments = comments
			inst.ReviewedAt = &now
			inst.ReviewedBy = by
		},
	}
}

func neverComingInTransition(reason string) transition {
	return transition{
		name:    "mark_never_coming_in",
		allowed: func(inst Instance) bool { return inst.Status != StatusApproved },
		apply: func(inst *Instance, by string, now time.Time) {
			inst.Status = StatusNeverComingIn
			inst.ApprovalStatus = ApprovalNeverComingIn
			inst.NCIReason = reason
			inst.NCIAt = &now
			inst.NCIBy = by
		},
	}
}

// run loads the instance, checks the precondition and writes the new state if the stored status did not move.
func (svc *Service) run(ctx context.Context, auth user.AuthContext, id string, tr transition, check func(scope) error) (scope, error) {
	sc, err := svc.loadScope(ctx, auth, id)
	if err != nil {
		recordTransition(ctx, tr.name, err)
		return sc, err
	}
	if check != nil {
		if err = check(sc); err != nil {
			recordTransition(ctx, tr.name, err)
			return sc, err
		}
	}
	if !tr.allowed(sc.instance) {
		err = errors.Wrapf(ErrInvalidTransition, "cannot %s outcome in status %s", tr.name, sc.instance.Status)
		recordTransition(ctx, tr.name, err)
		return sc, err
	}

	expected := sc.instance.Status
	next := sc.instance
	now := svc.nowFunc()
	tr.apply(&next, auth.UserID, now)
	next.UpdatedAt = now

	ok, err := svc.repo.UpdateInstance(ctx, next, expected)
	if err != nil {
		err = errors.Wrapf(err, "updating outcome instance %s", id)
		recordTransition(ctx, tr.name, err)
		return sc, err
	}
	if !ok {
		// another caller moved the instance between our read and our write
		err = errors.Wrapf(ErrInvalidTransition, "outcome %s is no longer %s", id, expected)
		recordTransition(ctx, tr.name, err)
		return sc, err
	}

	sc.instance = next
	recordTransition(ctx, tr.name, nil)
	return sc, nil
}

func requireAdmin(auth user.AuthContext) error {
	if !auth.IsAuthenticated() {
		return ErrUnauthenticated
	}
	if !auth.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// administers limits program admins to the courses of their programs once the scope is loaded.
func administers(auth user.AuthContext) func(scope) error {
	return func(sc scope) error {
		if !auth.CanAdministerProgram(sc.course.ProgramID) {
			return ErrForbidden
		}
		return nil
	}
}

// Submit hands an instance over for review. Admins may submit the instances of the programs they
// administer, instructors the instances of their own sections.
func (svc *Service) Submit(ctx context.Context, auth user.AuthContext, id string, notifyAdmins bool) (Instance, error) {
	if !auth.IsAuthenticated() {
		return Instance{}, ErrUnauthenticated
	}
	if !(auth.IsAdmin() || auth.IsInstructor()) {
		return Instance{}, ErrForbidden
	}

	maySubmit := func(sc scope) error {
		if auth.IsAdmin() && auth.CanAdministerProgram(sc.course.ProgramID) {
			return nil
		}
		if auth.IsInstructor() && sc.section.InstructorID == auth.UserID {
			return nil
		}
		return ErrForbidden
	}
	sc, err := svc.run(ctx, auth, id, submitTransition, maySubmit)
	if err != nil {
		return Instance{}, err
	}

	if notifyAdmins {
		svc.alertProgramAdmins(ctx, auth, sc)
	}
	return sc.instance, nil
}

func (svc *Service) Approve(ctx context.Context, auth user.AuthContext, id string) (Instance, error) {
	if err := requireAdmin(auth); err != nil {
		return Instance{}, err
	}
	sc, err := svc.run(ctx, auth, id, approveTransition, administers(auth))
	return sc.instance, err
}

// RequestRework sends a submitted instance back to its instructor. The state change stands even when
// the notice email cannot be sent; the result then carries EmailSent=false and a warning.
func (svc *Service) RequestRework(ctx context.Context, auth user.AuthContext, id, comments string, sendEmail bool) (ReworkResult, error) {
	if err := requireAdmin(auth); err != nil {
		return ReworkResult{}, err
	}
	comments = core.CleanString(comments)
	check := func(sc scope) error {
		if err := administers(auth)(sc); err != nil {
			return err
		}
		if comments == "" {
			return core.NewValidationError(errCommentsRequired, core.FieldError{Field: "comments", Error: errCommentsRequired.Error()})
		}
		return nil
	}

	sc, err := svc.run(ctx, auth, id, reworkTransition(comments), check)
	if err != nil {
		return ReworkResult{}, err
	}

	res := ReworkResult{Outcome: sc.instance}
	if sendEmail {
		if warning := svc.sendReworkNotice(ctx, auth, sc); warning != "" {
			res.Warning = warning
		} else {
			res.EmailSent = true
		}
	}
	return res, nil
}

// MarkNeverComingIn closes an instance that will never be assessed. Marking an instance that is
// already NCI again succeeds and replaces the reason.
func (svc *Service) MarkNeverComingIn(ctx context.Context, auth user.AuthContext, id, reason string) (Instance, error) {
	if err := requireAdmin(auth); err != nil {
		return Instance{}, err
	}
	sc, err := svc.run(ctx, auth, id, neverComingInTransition(strings.TrimSpace(reason)), administers(auth))
	return sc.instance, err
}

// Reopen puts an approved or NCI instance back in progress, keeping its audit fields.
func (svc *Service) Reopen(ctx context.Context, auth user.AuthContext, id string) (Instance, error) {
	if err := requireAdmin(auth); err != nil {
		return Instance{}, err
	}
	sc, err := svc.run(ctx, auth, id, reopenTransition, administers(auth))
	return sc.instance, err
}

// GetOutcomeAuditDetails returns an instance with the template, course and people it refers to.
func (svc *Service) GetOutcomeAuditDetails(ctx context.Context, auth user.AuthContext, id string) (AuditDetails, error) {
	if !auth.IsAuthenticated() {
		return AuditDetails{}, ErrUnauthenticated
	}
	sc, err := svc.loadScope(ctx, auth, id)
	if err != nil {
		return AuditDetails{}, err
	}

	inst := sc.instance
	details := AuditDetails{
		Outcome:          inst,
		CLONumber:        sc.template.CLONumber,
		Description:      sc.template.Description,
		AssessmentMethod: sc.template.AssessmentMethod,
		CourseID:         sc.course.ID,
		CourseCode:       sc.course.Code,
		CourseTitle:      sc.course.Title,
		SectionID:        sc.section.ID,
		SectionNumber:    sc.section.Number,
		SectionCode:      SectionCode(sc.course, sc.section),
	}

	ids := core.UniqueStrings(sc.section.InstructorID, inst.SubmittedBy, inst.ReviewedBy, inst.NCIBy)
	if len(ids) == 0 {
		return details, nil
	}
	people, err := svc.users.GetUsersByID(ctx, ids...)
	if err != nil {
		return AuditDetails{}, errors.Wrap(err, "getting users")
	}
	names := make(map[string]string, len(people))
	for _, usr := range people {
		names[usr.ID] = usr.Name
	}
	details.InstructorName = names[sc.section.InstructorID]
	details.SubmittedByName = names[inst.SubmittedBy]
	details.ReviewedByName = names[inst.ReviewedBy]
	details.NCIByName = names[inst.NCIBy]
	return details, nil
}

// alertProgramAdmins tells the program admins of the course that an instance awaits review.
// Failures are logged only; the submission already committed.
func (svc *Service) alertProgramAdmins(ctx context.Context, auth user.AuthContext, sc scope) {
	admins, err := svc.users.QueryProgramAdmins(ctx, sc.course.ProgramID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("loading program admins of %s: %v", sc.course.ProgramID, err), err)
		recordNotificationFailure(ctx, notifySubmission)
		return
	}
	if len(admins) == 0 {
		svc.logger.Info(fmt.Sprintf("program %s has no admin to alert", sc.course.ProgramID))
		return
	}

	alert := SubmissionAlert{
		OutcomeID:      sc.instance.ID,
		CLONumber:      sc.template.CLONumber,
		CourseCode:     SectionCode(sc.course, sc.section),
		CourseTitle:    sc.course.Title,
		InstructorName: svc.instructorName(ctx, auth, sc.section),
	}
	if !svc.notifier.SendAdminSubmissionAlert(ctx, admins, alert) {
		svc.logger.Warn(fmt.Sprintf("submission alert for outcome %s was not sent", sc.instance.ID))
		recordNotificationFailure(ctx, notifySubmission)
	}
}

// sendReworkNotice returns a warning for the caller when the instructor could not be emailed.
func (svc *Service) sendReworkNotice(ctx context.Context, auth user.AuthContext, sc scope) string {
	warn := func(msg string, args ...interface{}) string {
		svc.logger.Warn(fmt.Sprintf("rework notice for outcome %s: %s", sc.instance.ID, msg), args...)
		recordNotificationFailure(ctx, notifyRework)
		return "rework requested but the instructor could not be emailed: " + msg
	}

	if sc.section.InstructorID == "" {
		return warn("section has no instructor")
	}
	instructor, err := svc.users.GetUserByID(ctx, sc.section.InstructorID)
	if err != nil {
		return warn("instructor not found", err)
	}
	if _, ok := instructor.EmailAddress(); !ok {
		return warn("instructor has no active email address")
	}

	notice := ReworkNotice{
		OutcomeID:      sc.instance.ID,
		CLONumber:      sc.template.CLONumber,
		CourseCode:     SectionCode(sc.course, sc.section),
		InstructorName: instructor.Name,
		ReviewerName:   svc.userName(ctx, auth.UserID),
		Comments:       sc.instance.FeedbackComments,
	}
	if !svc.notifier.SendReworkNotice(ctx, instructor, notice) {
		return warn("email delivery failed")
	}
	return ""
}

func (svc *Service) instructorName(ctx context.Context, auth user.AuthContext, section Section) string {
	if section.InstructorID != "" {
		if name := svc.userName(ctx, section.InstructorID); name != "" {
			return name
		}
	}
	return svc.userName(ctx, auth.UserID)
}

func (svc *Service) userName(ctx context.Context, id string) string {
	usr, err := svc.users.GetUserByID(ctx, id)
	if err != nil {
		return ""
	}
	return usr.Name
}
