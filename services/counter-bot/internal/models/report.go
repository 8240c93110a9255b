package models

import "time"

// ReportKind names a published report.
type ReportKind string

const (
	ReportWeekly ReportKind = "weekly"
	ReportYearly ReportKind = "yearly"
)

// RunOutcome classifies how a report run ended.
type RunOutcome string

const (
	OutcomePublished RunOutcome = "published"
	OutcomeNoData    RunOutcome = "no_data"
	OutcomeFailed    RunOutcome = "failed"
)

type RunResult struct {
	Report       ReportKind `json:"report"`
	Outcome      RunOutcome `json:"outcome"`
	PublishedIDs []string   `json:"published_ids,omitempty"`
	Text         string     `json:"-"`
	Err          error      `json:"-"`
}

// ReportPublishedEvent is emitted after a report reaches the feed.
type ReportPublishedEvent struct {
	RunID           string     `json:"run_id"`
	Report          ReportKind `json:"report"`
	AnchorDate      time.Time  `json:"anchor_date"`
	MostRecentTotal int        `json:"most_recent_total"`
	PeriodTotal     int        `json:"period_total"`
	ReferenceTotal  int        `json:"reference_total"`
	PublishedIDs    []string   `json:"published_ids"`
	DevMode         bool       `json:"dev_mode"`
}
