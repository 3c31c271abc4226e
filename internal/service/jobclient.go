package service

import (
	"cometrelay/internal/jobs"

	"github.com/hibiken/asynq"
)

// JobClient interface for queueing background submission work
type JobClient interface {
	EnqueueProcess(eventBody []byte) error
	EnqueueReplay(submissionID string) error
}

// AsynqJobClient implements JobClient using asynq
type AsynqJobClient struct {
	client *asynq.Client
}

func NewAsynqJobClient(client *asynq.Client) *AsynqJobClient {
	return &AsynqJobClient{client: client}
}

func (c *AsynqJobClient) EnqueueProcess(eventBody []byte) error {
	return jobs.EnqueueProcess(c.client, eventBody)
}

func (c *AsynqJobClient) EnqueueReplay(submissionID string) error {
	return jobs.EnqueueReplay(c.client, submissionID)
}
