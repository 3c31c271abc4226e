package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries wraps database queries
type Queries struct {
	*pgxpool.Pool
}

// NewQueries creates a new Queries instance
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{Pool: pool}
}

// Submission represents a submission row
type Submission struct {
	ID        string
	FormName  string
	Action    *string
	Status    string
	Payload   map[string]string
	Error     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateSubmissionParams struct {
	ID       string
	FormName string
	Status   string
}

func (q *Queries) CreateSubmission(ctx context.Context, params CreateSubmissionParams) (Submission, error) {
	var s Submission
	err := q.Pool.QueryRow(ctx,
		`INSERT INTO submissions (id, form_name, status)
		VALUES ($1, $2, $3)
		RETURNING id, form_name, action, status, payload, error, created_at, updated_at`,
		params.ID, params.FormName, params.Status,
	).Scan(
		&s.ID, &s.FormName, &s.Action, &s.Status, &s.Payload, &s.Error,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func (q *Queries) GetSubmissionByID(ctx context.Context, id string) (Submission, error) {
	var s Submission
	err := q.Pool.QueryRow(ctx,
		`SELECT id, form_name, action, status, payload, error, created_at, updated_at
		FROM submissions WHERE id = $1`,
		id,
	).Scan(
		&s.ID, &s.FormName, &s.Action, &s.Status, &s.Payload, &s.Error,
		&s.CreatedAt, &s.UpdatedAt,
	)
	return s, err
}

func (q *Queries) UpdateSubmissionStatus(ctx context.Context, id, status string) error {
	_, err := q.Pool.Exec(ctx,
		"UPDATE submissions SET status = $2, updated_at = NOW() WHERE id = $1",
		id, status,
	)
	return err
}

// MarkSubmissionExtracted records the resolved action and assembled payload
func (q *Queries) MarkSubmissionExtracted(ctx context.Context, id, action string, payload map[string]string) error {
	_, err := q.Pool.Exec(ctx,
		"UPDATE submissions SET action = $2, payload = $3, status = 'EXTRACTED', updated_at = NOW() WHERE id = $1",
		id, action, payload,
	)
	return err
}

// MarkSubmissionFailed records a terminal failure with its cause
func (q *Queries) MarkSubmissionFailed(ctx context.Context, id, errMsg string) error {
	_, err := q.Pool.Exec(ctx,
		"UPDATE submissions SET status = 'FAILED', error = $2, updated_at = NOW() WHERE id = $1",
		id, errMsg,
	)
	return err
}

func (q *Queries) ListSubmissions(ctx context.Context, status *string, limit, offset int) ([]Submission, error) {
	var rows pgx.Rows
	var err error

	if status != nil {
		rows, err = q.Pool.Query(ctx,
			`SELECT id, form_name, action, status, payload, error, created_at, updated_at
			FROM submissions WHERE status = $1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			*status, limit, offset,
		)
	} else {
		rows, err = q.Pool.Query(ctx,
			`SELECT id, form_name, action, status, payload, error, created_at, updated_at
			FROM submissions
			ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, offset,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []Submission
	for rows.Next() {
		var s Submission
		if err := rows.Scan(
			&s.ID, &s.FormName, &s.Action, &s.Status, &s.Payload, &s.Error,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}
	return submissions, rows.Err()
}

// DeliveryAttempt represents a delivery attempt row
type DeliveryAttempt struct {
	ID           string
	SubmissionID string
	Target       string
	URL          string
	StatusCode   *int
	Error        *string
	AttemptedAt  time.Time
}

type CreateDeliveryAttemptParams struct {
	ID           string
	SubmissionID string
	Target       string
	URL          string
	StatusCode   *int
	Error        *string
}

func (q *Queries) CreateDeliveryAttempt(ctx context.Context, params CreateDeliveryAttemptParams) (DeliveryAttempt, error) {
	var a DeliveryAttempt
	err := q.Pool.QueryRow(ctx,
		`INSERT INTO delivery_attempts (id, submission_id, target, url, status_code, error)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, submission_id, target, url, status_code, error, attempted_at`,
		params.ID, params.SubmissionID, params.Target, params.URL, params.StatusCode, params.Error,
	).Scan(
		&a.ID, &a.SubmissionID, &a.Target, &a.URL, &a.StatusCode, &a.Error, &a.AttemptedAt,
	)
	return a, err
}

func (q *Queries) ListDeliveryAttempts(ctx context.Context, submissionID string) ([]DeliveryAttempt, error) {
	rows, err := q.Pool.Query(ctx,
		`SELECT id, submission_id, target, url, status_code, error, attempted_at
		FROM delivery_attempts WHERE submission_id = $1
		ORDER BY attempted_at`,
		submissionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []DeliveryAttempt
	for rows.Next() {
		var a DeliveryAttempt
		if err := rows.Scan(
			&a.ID, &a.SubmissionID, &a.Target, &a.URL, &a.StatusCode, &a.Error, &a.AttemptedAt,
		); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
