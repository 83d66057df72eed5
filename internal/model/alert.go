package model

import "time"

// Alert categories emitted by the problem detector.
const (
	AlertOffline        = "offline"
	AlertLowHashrate    = "low-hashrate"
	AlertHighRejectRate = "high-reject-rate"
)

// Alert severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is one detected problem on a worker (or the account itself when
// Subject is empty). Opened by the detector, resolved by the detector
// when a later observation shows the condition cleared.
type Alert struct {
	ID         int64      `json:"id"`
	AccountID  int        `json:"account_id"`
	Subject    string     `json:"subject"`
	Category   string     `json:"category"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
