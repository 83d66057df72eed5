package model

import "time"

// Processing states for a raw capture.
const (
	CapturePending = "pending"
	CaptureDone    = "done"
	CaptureFailed  = "failed"
)

// RawCapture is one stored API response (success or failure), recorded
// before any interpretation. The payload is append-only: reprocessing
// touches only the processed/error/retry fields.
type RawCapture struct {
	ID          int64      `json:"id"`
	AccountID   int        `json:"account_id"`
	AccountName string     `json:"account_name"`
	Endpoint    string     `json:"endpoint"`
	Payload     string     `json:"payload"`
	ByteSize    int        `json:"byte_size"`
	ItemCount   int        `json:"item_count"`
	StatusCode  int        `json:"status_code"`
	DurationMS  int64      `json:"duration_ms"`
	CallError   string     `json:"call_error,omitempty"`
	Processed   string     `json:"processed"`
	RetryCount  int        `json:"retry_count"`
	ParseError  string     `json:"parse_error,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ProcessingAttempt is an append-only audit row for one parser pass over
// a capture. It is written for observability and never read back into
// control flow.
type ProcessingAttempt struct {
	ID         int64     `json:"id"`
	CaptureID  int64     `json:"capture_id"`
	Step       string    `json:"step"`
	Outcome    string    `json:"outcome"`
	Records    int       `json:"records"`
	ErrorText  string    `json:"error_text,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Outcomes for a processing attempt.
const (
	AttemptStarted   = "started"
	AttemptCompleted = "completed"
	AttemptFailed    = "failed"
	AttemptSkipped   = "skipped"
)
