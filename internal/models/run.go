package models

import "time"

// ReviewerOutcome records how a single panel member's call ended.
type ReviewerOutcome struct {
	ReviewerID string `json:"reviewerId"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}

// ValidationRun is the telemetry record for one panel dispatch.
type ValidationRun struct {
	ID         string
	WorkItemID string
	PanelSize  int
	Succeeded  int
	Failed     int
	Reviewers  []ReviewerOutcome
	Duration   time.Duration
	CreatedAt  time.Time
}
