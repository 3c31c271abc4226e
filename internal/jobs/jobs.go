package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"cometrelay/internal/model"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	// TaskProcess carries a raw inbound event body; the worker runs the
	// full coordinator for it.
	TaskProcess = "submission:process"
	// TaskReplay carries a submission ID whose recorded payload should be
	// re-sent to the processing targets.
	TaskReplay = "submission:replay"
)

// Processor runs submission coordination. Implemented by the submission
// service; declared here so the worker does not import it.
type Processor interface {
	Process(ctx context.Context, event *model.InboundEvent) (*model.Submission, error)
	Redeliver(ctx context.Context, submissionID string) (*model.Submission, error)
}

type JobServer struct {
	server    *asynq.Server
	client    *asynq.Client
	processor Processor
	log       *zap.Logger
}

func NewJobServer(redisAddr string, processor Processor, log *zap.Logger) (*JobServer, *asynq.Client) {
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	client := asynq.NewClient(redisOpt)

	return &JobServer{
		server:    server,
		client:    client,
		processor: processor,
		log:       log,
	}, client
}

func (js *JobServer) Start() error {
	mux := asynq.NewServeMux()

	mux.HandleFunc(TaskProcess, js.handleProcess)
	mux.HandleFunc(TaskReplay, js.handleReplay)

	return js.server.Start(mux)
}

func (js *JobServer) Stop() {
	js.server.Shutdown()
	js.client.Close()
}

// Job handlers

func (js *JobServer) handleProcess(ctx context.Context, t *asynq.Task) error {
	var event model.InboundEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		js.log.Error("Failed to decode event task", zap.Error(err))
		return nil
	}

	sub, err := js.processor.Process(ctx, &event)
	if err != nil {
		// Extraction failures are terminal for the run; the outcome is
		// already recorded and recovery is a manual resubmit, so the task
		// is never retried.
		js.log.Error("Submission run failed", zap.String("form", event.FormName()), zap.Error(err))
		return nil
	}
	if sub != nil {
		js.log.Info("Submission run complete",
			zap.String("submission_id", sub.ID),
			zap.String("status", string(sub.Status)),
		)
	}
	return nil
}

func (js *JobServer) handleReplay(ctx context.Context, t *asynq.Task) error {
	submissionID := string(t.Payload())

	sub, err := js.processor.Redeliver(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("failed to redeliver submission %s: %w", submissionID, err)
	}

	js.log.Info("Submission redelivered",
		zap.String("submission_id", sub.ID),
		zap.String("form", sub.FormName),
	)
	return nil
}

// Enqueue helpers

// EnqueueProcess queues a raw event body for coordination. The trigger gets
// its 200 back immediately; delivery is at-most-once, so MaxRetry is zero.
func EnqueueProcess(client *asynq.Client, eventBody []byte) error {
	task := asynq.NewTask(TaskProcess, eventBody)
	_, err := client.Enqueue(task, asynq.MaxRetry(0), asynq.Queue("critical"))
	return err
}

// EnqueueReplay queues a manual redelivery of a recorded submission
func EnqueueReplay(client *asynq.Client, submissionID string) error {
	task := asynq.NewTask(TaskReplay, []byte(submissionID))
	_, err := client.Enqueue(task, asynq.MaxRetry(0), asynq.Queue("low"))
	return err
}
