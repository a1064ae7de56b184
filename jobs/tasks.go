package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/staffora/staffora/internal/auth"
	jobmetrics "github.com/staffora/staffora/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries latency sensitive tasks such as one-time codes.
	QueueCritical = "critical"
	// TaskOTPDeliver hands a one-time code to the delivery channel.
	TaskOTPDeliver = "otp:deliver"
)

// NewOTPDeliverTask constructs an Asynq task for a one-time code.
func NewOTPDeliverTask(payload auth.OTPDelivery) (*asynq.Task, error) {
	if payload.ChallengeID == "" || payload.Email == "" {
		return nil, fmt.Errorf("otp delivery: challenge and email required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOTPDeliver, data, asynq.Queue(QueueCritical), asynq.MaxRetry(3)), nil
}

// OTPDeliverJob dispatches one-time codes. Provider integration is pending, so
// the dispatch is logged with the code masked.
type OTPDeliverJob struct {
	From    string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOTPDeliverJob constructs the job handler.
func NewOTPDeliverJob(from string, logger *slog.Logger, metrics *jobmetrics.Metrics) *OTPDeliverJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &OTPDeliverJob{From: from, Logger: logger, Metrics: metrics}
}

// Handle processes TaskOTPDeliver tasks.
func (j *OTPDeliverJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.Metrics.Track(TaskOTPDeliver)
	var payload auth.OTPDelivery
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry))
	}
	if payload.Email == "" || payload.Code == "" {
		return tracker.End(fmt.Errorf("incomplete payload: %w", asynq.SkipRetry))
	}
	j.Logger.Info("otp dispatched",
		slog.String("channel", "email"),
		slog.String("from", j.From),
		slog.String("to", maskEmail(payload.Email)),
		slog.String("challenge_id", payload.ChallengeID),
		slog.Int64("user_id", payload.UserID),
	)
	j.Metrics.AddDelivery("email")
	return tracker.End(nil)
}

func maskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	switch {
	case at < 0:
		return "***"
	case at <= 1:
		return "***" + email[at:]
	}
	return email[:1] + strings.Repeat("*", at-1) + email[at:]
}
