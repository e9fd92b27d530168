package store

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a pipeline item.
type Status string

const (
	StatusPending            Status = "pending"
	StatusFetchingMetadata   Status = "fetching_metadata"
	StatusFetchingTranscript Status = "fetching_transcript"
	StatusGeneratingSummary  Status = "generating_summary"
	StatusSendingEmail       Status = "sending_email"
	StatusSuccess            Status = "success"
	StatusFailedTranscript   Status = "failed_transcript"
	StatusFailedAI           Status = "failed_ai"
	StatusFailedEmail        Status = "failed_email"
	StatusFailedStopped      Status = "failed_stopped"
	StatusFailedPermanent    Status = "failed_permanent"
)

// SourceKind records how an item entered the store.
type SourceKind string

const (
	SourceDiscovery SourceKind = "via_discovery"
	SourceManual    SourceKind = "via_manual"
)

// UserStopReason is the error message set when a user explicitly stops an item.
const UserStopReason = "Stop requested by user"

// StuckReclaimReason is the error message set when a stale in-flight item is
// reset after its heartbeat expired.
const StuckReclaimReason = "Reset from stuck processing state"

// MaxRetriesReason is the error message recorded alongside failed_permanent.
const MaxRetriesReason = "Max retries exceeded"

var allStatuses = []Status{
	StatusPending,
	StatusFetchingMetadata,
	StatusFetchingTranscript,
	StatusGeneratingSummary,
	StatusSendingEmail,
	StatusSuccess,
	StatusFailedTranscript,
	StatusFailedAI,
	StatusFailedEmail,
	StatusFailedStopped,
	StatusFailedPermanent,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var inFlightStatuses = map[Status]struct{}{
	StatusFetchingMetadata:   {},
	StatusFetchingTranscript: {},
	StatusGeneratingSummary:  {},
	StatusSendingEmail:       {},
}

// AutoRetryStatuses are the failure states swept back into processing on the
// next scheduled run, as long as the retry budget is not exhausted.
var AutoRetryStatuses = []Status{
	StatusFailedTranscript,
	StatusFailedAI,
	StatusFailedEmail,
}

// ManualRetryStatuses are the states a user may retry back to pending.
// failed_permanent additionally requires a forced retry.
var ManualRetryStatuses = []Status{
	StatusFailedTranscript,
	StatusFailedAI,
	StatusFailedEmail,
	StatusFailedStopped,
}

// allowedTransitions is the closed transition relation of the item state
// machine. The store rejects any (from, to) pair not listed here.
var allowedTransitions = map[Status][]Status{
	StatusPending:            {StatusFetchingMetadata, StatusFailedStopped},
	StatusFetchingMetadata:   {StatusFetchingTranscript, StatusFailedStopped, StatusFailedPermanent, StatusPending},
	StatusFetchingTranscript: {StatusGeneratingSummary, StatusFailedTranscript, StatusFailedPermanent, StatusFailedStopped, StatusPending},
	StatusGeneratingSummary:  {StatusSendingEmail, StatusSuccess, StatusFailedAI, StatusFailedPermanent, StatusFailedStopped, StatusPending},
	StatusSendingEmail:       {StatusSuccess, StatusFailedEmail, StatusFailedPermanent, StatusFailedStopped, StatusPending},
	StatusFailedTranscript:   {StatusPending, StatusFetchingMetadata, StatusFailedPermanent},
	StatusFailedAI:           {StatusPending, StatusFetchingMetadata, StatusFailedPermanent},
	StatusFailedEmail:        {StatusPending, StatusFetchingMetadata, StatusFailedPermanent},
	StatusFailedStopped:      {StatusPending},
	StatusFailedPermanent:    {StatusPending},
	StatusSuccess:            {},
}

// Item represents one video moving through the pipeline.
type Item struct {
	VideoID          string
	Title            string
	ChannelID        string
	ChannelName      string
	DurationSeconds  int64
	UploadedAt       *time.Time
	SourceKind       SourceKind
	Status           Status
	RetryCount       int
	ErrorMessage     string
	Transcript       string
	TranscriptSource string
	Summary          string
	EmailSent        bool
	StopRequested    bool
	LastHeartbeat    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Channel is a monitored discovery source.
type Channel struct {
	ChannelID string
	Name      string
	AddedAt   time.Time
	Enabled   bool
}

// TranscriptFailure records one failed extraction attempt for a strategy.
type TranscriptFailure struct {
	VideoID   string
	Strategy  string
	Reason    string
	CheckedAt time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseSourceKind converts a string into a known SourceKind.
func ParseSourceKind(value string) (SourceKind, bool) {
	normalized := SourceKind(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case SourceDiscovery, SourceManual:
		return normalized, true
	}
	return "", false
}

// CanTransition reports whether the state machine permits moving from one
// status to another.
func CanTransition(from, to Status) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// IsInFlight reports whether the status reflects an in-progress pipeline step.
func (s Status) IsInFlight() bool {
	_, ok := inFlightStatuses[s]
	return ok
}

// IsTerminal reports whether automatic processing is finished with this status.
// Non-permanent failures are not terminal: the next run sweeps them up again.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailedPermanent, StatusFailedStopped:
		return true
	}
	return false
}

// IsFailure reports whether the status is any of the failed_* states.
func (s Status) IsFailure() bool {
	switch s {
	case StatusFailedTranscript, StatusFailedAI, StatusFailedEmail, StatusFailedStopped, StatusFailedPermanent:
		return true
	}
	return false
}

// IsInFlight reports whether the item is mid-step.
func (i *Item) IsInFlight() bool {
	return i.Status.IsInFlight()
}

// ManuallyRetryable reports whether a plain (non-forced) retry is permitted.
func (i *Item) ManuallyRetryable() bool {
	for _, status := range ManualRetryStatuses {
		if i.Status == status {
			return true
		}
	}
	return false
}
