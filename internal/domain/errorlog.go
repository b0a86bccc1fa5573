package domain

import (
	"time"

	"github.com/google/uuid"
)

// ErrorSeverity classifies an error_log entry for triage and for the health
// monitor's auto stop-trading behavior.
type ErrorSeverity string

const (
	SeverityInfo     ErrorSeverity = "info"
	SeverityWarning  ErrorSeverity = "warning"
	SeverityError    ErrorSeverity = "error"
	SeverityCritical ErrorSeverity = "critical"
)

// ErrorLog is a row in live_errors: every daemon's landing place for
// exceptions, rejections, and control-flow notices worth recording.
type ErrorLog struct {
	ID                 int64
	Source             string // daemon or subsystem name, e.g. "data_feed", "risk"
	Severity           ErrorSeverity
	Message            string
	CorrelationID      string // see NewCorrelationID
	StrategyUniverseID *int64
	SymbolID           *int64
	Timeframe          *Timeframe
	Details            map[string]any
	CreatedAt          time.Time
}

// NewCorrelationID returns a fresh id for tying one error_log row to the
// daemon log lines written around the same event; it has no meaning as a
// primary key, every table in this store stays DB-serial.
func NewCorrelationID() string {
	return uuid.NewString()
}
