package outcome

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	notifySubmission = "submission_alert"
	notifyRework     = "rework_notice"
)

var (
	meter = otel.Meter("github.com/trezcool/clotrack/core/outcome")

	transitionCounter, _ = meter.Int64Counter(
		"clo.transitions",
		metric.WithDescription("Outcome transitions attempted, by operation and result"),
	)
	notificationFailures, _ = meter.Int64Counter(
		"clo.notifications.failed",
		metric.WithDescription("Notifications that could not be delivered, by kind"),
	)
	bulkSubmitCounter, _ = meter.Int64Counter(
		"clo.bulk_submit.instances",
		metric.WithDescription("Instances processed by course bulk submits, by result"),
	)
)

func resultOf(err error) string {
	switch errors.Cause(err) {
	case nil:
		return "ok"
	case ErrNotFound:
		return "not_found"
	case ErrInvalidTransition:
		return "invalid_transition"
	case ErrForbidden, ErrUnauthenticated:
		return "denied"
	default:
		return "error"
	}
}

func recordTransition(ctx context.Context, operation string, err error) {
	transitionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", resultOf(err)),
	))
}

func recordNotificationFailure(ctx context.Context, kind string) {
	notificationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func recordBulkSubmit(ctx context.Context, err error) {
	bulkSubmitCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", resultOf(err))))
}
