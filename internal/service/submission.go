package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cometrelay/internal/config"
	"cometrelay/internal/db"
	"cometrelay/internal/dispatch"
	"cometrelay/internal/extract"
	"cometrelay/internal/model"
	"cometrelay/internal/route"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// ErrNoPayload is returned when a replay is requested for a submission that
// never produced a deliverable payload (skipped, notify-only or failed
// before extraction).
var ErrNoPayload = errors.New("submission has no recorded payload")

// Recorder persists submissions and their delivery attempts
type Recorder interface {
	CreateSubmission(ctx context.Context, params db.CreateSubmissionParams) (db.Submission, error)
	GetSubmissionByID(ctx context.Context, id string) (db.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, id, status string) error
	MarkSubmissionExtracted(ctx context.Context, id, action string, payload map[string]string) error
	MarkSubmissionFailed(ctx context.Context, id, errMsg string) error
	CreateDeliveryAttempt(ctx context.Context, params db.CreateDeliveryAttemptParams) (db.DeliveryAttempt, error)
}

// EventBus publishes submission lifecycle events
type EventBus interface {
	PublishSubmission(submissionID string, event map[string]interface{}) error
	PublishForm(formName string, event map[string]interface{}) error
}

// SubmissionService coordinates one run per inbound event: resolve the
// route, extract the required fields, wait out the upload-propagation delay
// and relay the payload to every configured target. Runs share no mutable
// state; a slow delivery only extends that run's wall clock.
type SubmissionService struct {
	routes     *route.Table
	recorder   Recorder
	bus        EventBus
	dispatcher *dispatch.Dispatcher

	processing []model.DeliveryTarget
	chat       []model.DeliveryTarget

	defaultDelay    time.Duration
	plateInputDelay time.Duration

	log *zap.Logger
}

func NewSubmissionService(
	routes *route.Table,
	recorder Recorder,
	bus EventBus,
	dispatcher *dispatch.Dispatcher,
	delivery config.DeliveryConfig,
	log *zap.Logger,
) *SubmissionService {
	return &SubmissionService{
		routes:          routes,
		recorder:        recorder,
		bus:             bus,
		dispatcher:      dispatcher,
		processing:      delivery.ProcessingTargets(),
		chat:            delivery.ChatTargets(),
		defaultDelay:    delivery.DefaultDelay,
		plateInputDelay: delivery.PlateInputDelay,
		log:             log,
	}
}

// Process runs the coordinator for one inbound event. An unmatched form is
// a silent skip, not an error. An extraction failure aborts the run before
// any delivery happens; a partially-populated payload is worse than no
// delivery at all. Per-target delivery failures are recorded and logged but
// never abort the sibling sends and never fail the run.
func (s *SubmissionService) Process(ctx context.Context, event *model.InboundEvent) (*model.Submission, error) {
	// Manual test invocations fire the trigger with no event at all.
	if event == nil || event.FormName() == "" {
		return nil, nil
	}

	formName := event.FormName()
	submissionID := ulid.Make().String()

	sub, err := s.recorder.CreateSubmission(ctx, db.CreateSubmissionParams{
		ID:       submissionID,
		FormName: formName,
		Status:   string(model.StatusReceived),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record submission: %w", err)
	}
	_ = s.bus.PublishSubmission(submissionID, map[string]interface{}{
		"type":         "submission.received",
		"submissionId": submissionID,
		"form":         formName,
	})

	r, ok := s.routes.Resolve(formName)
	if !ok {
		// Unregistered forms are ignored until somebody adds a route.
		if err := s.recorder.UpdateSubmissionStatus(ctx, submissionID, string(model.StatusSkipped)); err != nil {
			s.log.Warn("Failed to mark submission skipped", zap.String("submission_id", submissionID), zap.Error(err))
		}
		_ = s.bus.PublishSubmission(submissionID, map[string]interface{}{
			"type":         "submission.skipped",
			"submissionId": submissionID,
			"form":         formName,
		})
		s.log.Info("No route for form, skipping",
			zap.String("submission_id", submissionID),
			zap.String("form", formName),
		)
		sub.Status = string(model.StatusSkipped)
		return dbSubmissionToModel(sub), nil
	}

	if r.NotifyOnly {
		return s.processNotifyOnly(ctx, sub, event, r)
	}

	payload, err := extract.Extract(event, r)
	if err != nil {
		return nil, s.failSubmission(ctx, sub, formName, err)
	}

	if err := s.recorder.MarkSubmissionExtracted(ctx, submissionID, string(r.Action), payload); err != nil {
		s.log.Warn("Failed to record extracted payload", zap.String("submission_id", submissionID), zap.Error(err))
	}
	_ = s.bus.PublishSubmission(submissionID, map[string]interface{}{
		"type":         "submission.extracted",
		"submissionId": submissionID,
		"form":         formName,
		"action":       string(r.Action),
	})

	// Fixed wait for the attachment-upload side channel to catch up. Not a
	// retry and not cancellable; the receiving endpoint looks for uploaded
	// files as soon as it gets the payload.
	time.Sleep(r.DelayFor(s.defaultDelay, s.plateInputDelay))

	results := s.dispatcher.DeliverAll(ctx, s.processing, payload)
	s.recordResults(ctx, submissionID, results)

	if err := s.recorder.UpdateSubmissionStatus(ctx, submissionID, string(model.StatusDelivered)); err != nil {
		s.log.Warn("Failed to mark submission delivered", zap.String("submission_id", submissionID), zap.Error(err))
	}
	_ = s.bus.PublishSubmission(submissionID, map[string]interface{}{
		"type":         "submission.delivered",
		"submissionId": submissionID,
		"form":         formName,
		"action":       string(r.Action),
	})
	_ = s.bus.PublishForm(formName, map[string]interface{}{
		"type":         "submission.delivered",
		"submissionId": submissionID,
	})

	sub.Status = string(model.StatusDelivered)
	action := string(r.Action)
	sub.Action = &action
	sub.Payload = payload
	return dbSubmissionToModel(sub), nil
}

// processNotifyOnly handles the sequencing-run route: no extraction, no
// processing targets, just a chat message built from the two named fields.
func (s *SubmissionService) processNotifyOnly(ctx context.Context, sub db.Submission, event *model.InboundEvent, r *route.Route) (*model.Submission, error) {
	text := NotifyText(event, r.RequiredFields)

	results := s.dispatcher.DeliverChat(ctx, s.chat, text)
	s.recordResults(ctx, sub.ID, results)

	if err := s.recorder.UpdateSubmissionStatus(ctx, sub.ID, string(model.StatusDelivered)); err != nil {
		s.log.Warn("Failed to mark submission delivered", zap.String("submission_id", sub.ID), zap.Error(err))
	}
	_ = s.bus.PublishSubmission(sub.ID, map[string]interface{}{
		"type":         "submission.delivered",
		"submissionId": sub.ID,
		"form":         r.Form,
		"notifyOnly":   true,
	})

	sub.Status = string(model.StatusDelivered)
	return dbSubmissionToModel(sub), nil
}

// Redeliver re-sends a recorded payload to the processing targets. This is
// the manual recovery path for delivery failures; the payload is reused
// verbatim, nothing is re-extracted and the propagation delay is not
// repeated because the original attachments landed long ago.
func (s *SubmissionService) Redeliver(ctx context.Context, submissionID string) (*model.Submission, error) {
	sub, err := s.recorder.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("submission not found: %w", err)
	}
	if sub.Action == nil || len(sub.Payload) == 0 {
		return nil, ErrNoPayload
	}

	results := s.dispatcher.DeliverAll(ctx, s.processing, model.RequestPayload(sub.Payload))
	s.recordResults(ctx, submissionID, results)

	if err := s.recorder.UpdateSubmissionStatus(ctx, submissionID, string(model.StatusDelivered)); err != nil {
		s.log.Warn("Failed to mark submission delivered", zap.String("submission_id", submissionID), zap.Error(err))
	}
	_ = s.bus.PublishSubmission(submissionID, map[string]interface{}{
		"type":         "submission.redelivered",
		"submissionId": submissionID,
		"form":         sub.FormName,
	})

	sub.Status = string(model.StatusDelivered)
	return dbSubmissionToModel(sub), nil
}

// GetSubmission returns a recorded submission with its delivery attempts
func (s *SubmissionService) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	sub, err := s.recorder.GetSubmissionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("submission not found: %w", err)
	}
	return dbSubmissionToModel(sub), nil
}

func (s *SubmissionService) failSubmission(ctx context.Context, sub db.Submission, formName string, cause error) error {
	if err := s.recorder.MarkSubmissionFailed(ctx, sub.ID, cause.Error()); err != nil {
		s.log.Warn("Failed to record submission failure", zap.String("submission_id", sub.ID), zap.Error(err))
	}

	field := ""
	var missing *extract.MissingFieldError
	var empty *extract.EmptyFieldError
	switch {
	case errors.As(cause, &missing):
		field = missing.Field
	case errors.As(cause, &empty):
		field = empty.Field
	}

	// The operator fixes the upstream form response and resubmits, so the
	// log line has to name the exact field and form.
	s.log.Error("Field extraction failed, aborting before delivery",
		zap.String("submission_id", sub.ID),
		zap.String("form", formName),
		zap.String("field", field),
		zap.Error(cause),
	)

	_ = s.bus.PublishSubmission(sub.ID, map[string]interface{}{
		"type":         "submission.failed",
		"submissionId": sub.ID,
		"form":         formName,
		"field":        field,
		"error":        cause.Error(),
	})

	// Best-effort heads-up in chat, same as the processing pipeline does
	// for its own errors.
	if len(s.chat) > 0 {
		s.dispatcher.DeliverChat(ctx, s.chat, fmt.Sprintf("*Error relaying form submission:*\n%s", cause))
	}

	return cause
}

func (s *SubmissionService) recordResults(ctx context.Context, submissionID string, results []model.DeliveryResult) {
	for _, res := range results {
		params := db.CreateDeliveryAttemptParams{
			ID:           ulid.Make().String(),
			SubmissionID: submissionID,
			Target:       string(res.Target.Kind),
			URL:          res.Target.URL,
		}
		if res.StatusCode != 0 {
			code := res.StatusCode
			params.StatusCode = &code
		}
		if res.Err != nil {
			msg := res.Err.Error()
			params.Error = &msg
		}
		if _, err := s.recorder.CreateDeliveryAttempt(ctx, params); err != nil {
			s.log.Warn("Failed to record delivery attempt",
				zap.String("submission_id", submissionID),
				zap.String("target", string(res.Target.Kind)),
				zap.Error(err),
			)
		}
		if !res.OK() {
			_ = s.bus.PublishSubmission(submissionID, map[string]interface{}{
				"type":         "delivery.failed",
				"submissionId": submissionID,
				"target":       string(res.Target.Kind),
			})
		}
	}
}

// NotifyText formats the chat message for a notify-only route: one line per
// field, labels in alphabetical order, first non-empty value per field.
func NotifyText(event *model.InboundEvent, fields []string) string {
	labels := make([]string, len(fields))
	copy(labels, fields)
	sort.Strings(labels)

	var b strings.Builder
	b.WriteString("\n")
	for _, label := range labels {
		b.WriteString("*")
		b.WriteString(label)
		b.WriteString("*: ")
		b.WriteString(extract.FirstNonEmpty(event.NamedValues[label]))
		b.WriteString("\n")
	}
	return b.String()
}

func dbSubmissionToModel(s db.Submission) *model.Submission {
	m := &model.Submission{
		ID:        s.ID,
		FormName:  s.FormName,
		Status:    model.SubmissionStatus(s.Status),
		Payload:   model.RequestPayload(s.Payload),
		Error:     s.Error,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	}
	if s.Action != nil {
		m.Action = *s.Action
	}
	return m
}

// DBDeliveryAttemptToModel converts a delivery attempt row for API output
func DBDeliveryAttemptToModel(a db.DeliveryAttempt) model.DeliveryAttempt {
	return model.DeliveryAttempt{
		ID:           a.ID,
		SubmissionID: a.SubmissionID,
		Target:       model.TargetKind(a.Target),
		URL:          a.URL,
		StatusCode:   a.StatusCode,
		Error:        a.Error,
		AttemptedAt:  a.AttemptedAt.Format(time.RFC3339),
	}
}
