package model

// SubmissionStatus represents the lifecycle state of a form submission run
type SubmissionStatus string

const (
	StatusReceived  SubmissionStatus = "RECEIVED"
	StatusSkipped   SubmissionStatus = "SKIPPED"
	StatusExtracted SubmissionStatus = "EXTRACTED"
	StatusDelivered SubmissionStatus = "DELIVERED"
	StatusFailed    SubmissionStatus = "FAILED"
)

// TargetKind distinguishes processing endpoints from chat webhooks
type TargetKind string

const (
	TargetPrimary TargetKind = "primary"
	TargetStaging TargetKind = "staging"
	TargetChat    TargetKind = "chat"
)

// InboundEvent is the form-submission trigger payload. NamedValues maps a
// field label to the ordered list of values the form has recorded for it; a
// field edited after submission carries multiple entries and the first
// non-empty one is authoritative.
type InboundEvent struct {
	NamedValues map[string][]string `json:"namedValues"`
	Range       EventRange          `json:"range"`
}

// EventRange identifies the sheet tab (form) the submission came from
type EventRange struct {
	Sheet string `json:"sheet"`
}

// FormName returns the routing key for the event
func (e *InboundEvent) FormName() string {
	return e.Range.Sheet
}

// RequestPayload is the flat field map relayed to processing targets. It
// contains the action name under "action" plus one entry per required field.
type RequestPayload map[string]string

// ChatMessage is the payload shape for chat webhooks. Chat targets take no
// auth header and are unrelated to the processing endpoints.
type ChatMessage struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// DeliveryTarget is one configured destination for an assembled payload
type DeliveryTarget struct {
	Kind   TargetKind `json:"kind"`
	URL    string     `json:"url"`
	APIKey string     `json:"-"`
	// Channel is only set for chat targets
	Channel string `json:"channel,omitempty"`
}

// DeliveryResult is the per-target outcome of a single send. Failures are
// independent across targets; nothing is rolled back or retried.
type DeliveryResult struct {
	Target     DeliveryTarget `json:"target"`
	StatusCode int            `json:"statusCode,omitempty"`
	Err        error          `json:"-"`
}

// OK reports whether the send reached the target with a 2xx response
func (r DeliveryResult) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Submission is one recorded coordinator run
type Submission struct {
	ID        string           `json:"id"`
	FormName  string           `json:"formName"`
	Action    string           `json:"action,omitempty"`
	Status    SubmissionStatus `json:"status"`
	Payload   RequestPayload   `json:"payload,omitempty"`
	Error     *string          `json:"error,omitempty"`
	CreatedAt string           `json:"createdAt,omitempty"`
	UpdatedAt string           `json:"updatedAt,omitempty"`
}

// DeliveryAttempt is one recorded send to one target
type DeliveryAttempt struct {
	ID           string     `json:"id"`
	SubmissionID string     `json:"submissionId"`
	Target       TargetKind `json:"target"`
	URL          string     `json:"url"`
	StatusCode   *int       `json:"statusCode,omitempty"`
	Error        *string    `json:"error,omitempty"`
	AttemptedAt  string     `json:"attemptedAt,omitempty"`
}
