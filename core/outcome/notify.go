package outcome

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/clotrack/core"
	"github.com/trezcool/clotrack/core/user"
)

const (
	submittedTemplate = "clo_submitted"
	reworkTemplate    = "clo_rework"
)

type (
	// Notifier sends best-effort notifications. A false return means the notification was not delivered
	// (or, for asynchronous sends, not even handed over); it never undoes a transition.
	Notifier interface {
		SendAdminSubmissionAlert(ctx context.Context, admins []user.User, alert SubmissionAlert) bool
		SendReworkNotice(ctx context.Context, instructor user.User, notice ReworkNotice) bool
	}

	SubmissionAlert struct {
		OutcomeID      string
		CLONumber      int
		CourseCode     string // COURSE-SECTION
		CourseTitle    string
		InstructorName string
	}

	ReworkNotice struct {
		OutcomeID      string
		CLONumber      int
		CourseCode     string // COURSE-SECTION
		InstructorName string
		ReviewerName   string
		Comments       string
	}

	mailNotifier struct {
		mailSvc  core.EmailService
		timeout  time.Duration
		logger   core.Logger
		dispatch func(send func())
	}
)

var _ Notifier = (*mailNotifier)(nil)

// NewMailNotifier returns a Notifier backed by mailSvc. Every send, background or not, is cancelled
// after timeout.
func NewMailNotifier(mailSvc core.EmailService, timeout time.Duration, logger core.Logger) Notifier {
	return &mailNotifier{
		mailSvc:  mailSvc,
		timeout:  timeout,
		logger:   logger,
		dispatch: func(send func()) { go send() },
	}
}

// NewMailNotifierMock sends admin alerts synchronously.
func NewMailNotifierMock(mailSvc core.EmailService, timeout time.Duration, logger core.Logger) Notifier {
	return &mailNotifier{
		mailSvc:  mailSvc,
		timeout:  timeout,
		logger:   logger,
		dispatch: func(send func()) { send() },
	}
}

func (n *mailNotifier) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if n.timeout > 0 {
		return context.WithTimeout(ctx, n.timeout)
	}
	return context.WithCancel(ctx)
}

// SendAdminSubmissionAlert hands one email per admin over to the background; it reports whether any
// admin could be addressed. Failed or timed out sends are logged and counted.
func (n *mailNotifier) SendAdminSubmissionAlert(_ context.Context, admins []user.User, alert SubmissionAlert) bool {
	var queued bool
	for _, admin := range admins {
		addr, ok := admin.EmailAddress()
		if !ok {
			continue
		}
		msg := &core.EmailMessage{
			To:           []mail.Address{addr},
			Subject:      fmt.Sprintf("CLO %d of %s submitted for review", alert.CLONumber, alert.CourseCode),
			TemplateName: submittedTemplate,
			TemplateData: alert,
		}
		n.dispatch(func() {
			// the request that triggered the alert may be over by now
			ctx, cancel := n.withTimeout(context.Background())
			defer cancel()
			if err := n.mailSvc.SendMessage(ctx, msg); err != nil {
				n.logger.Warn(fmt.Sprintf("sending submission alert for outcome %s to %s: %v", alert.OutcomeID, addr.Address, err), err)
				recordNotificationFailure(ctx, notifySubmission)
			}
		})
		queued = true
	}
	return queued
}

// SendReworkNotice emails the instructor and waits for the outcome, bounded by the notifier timeout.
func (n *mailNotifier) SendReworkNotice(ctx context.Context, instructor user.User, notice ReworkNotice) bool {
	addr, ok := instructor.EmailAddress()
	if !ok {
		return false
	}

	ctx, cancel := n.withTimeout(ctx)
	defer cancel()

	msg := &core.EmailMessage{
		To:           []mail.Address{addr},
		Subject:      fmt.Sprintf("CLO %d of %s needs rework", notice.CLONumber, notice.CourseCode),
		TemplateName: reworkTemplate,
		TemplateData: notice,
	}
	if err := n.mailSvc.SendMessage(ctx, msg); err != nil {
		n.logger.Warn(fmt.Sprintf("sending rework notice for outcome %s: %v", notice.OutcomeID, err), err)
		return false
	}
	return true
}
