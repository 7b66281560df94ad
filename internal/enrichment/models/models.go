package models

import (
	"fmt"
	"time"

	id "enrichd/pkg/domain"
	dErrors "enrichd/pkg/domain-errors"
)

// DataType names a category of external data pulled during enrichment.
type DataType string

const (
	DataTypeDrivingRecord DataType = "driving_record"
	DataTypePriorClaims   DataType = "prior_claims"
	DataTypeCredit        DataType = "credit"
	DataTypeBackground    DataType = "background"
)

// AllDataTypes lists every supported data type in canonical order.
func AllDataTypes() []DataType {
	return []DataType{DataTypeDrivingRecord, DataTypePriorClaims, DataTypeCredit, DataTypeBackground}
}

// ParseDataType creates a DataType from a string, validating it.
func ParseDataType(s string) (DataType, error) {
	d := DataType(s)
	if !d.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown data type %q", s))
	}
	return d, nil
}

// IsValid checks if the data type is one of the supported enum values.
func (d DataType) IsValid() bool {
	switch d {
	case DataTypeDrivingRecord, DataTypePriorClaims, DataTypeCredit, DataTypeBackground:
		return true
	}
	return false
}

func (d DataType) String() string {
	return string(d)
}

// EntityKind distinguishes the two enrichable entity families.
type EntityKind string

const (
	EntityKindPolicy EntityKind = "policy"
	EntityKindClaim  EntityKind = "claim"
)

// ParseEntityKind creates an EntityKind from a string, validating it.
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(s)
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "entity kind must be 'policy' or 'claim'")
	}
	return k, nil
}

// IsValid checks if the entity kind is one of the supported values.
func (k EntityKind) IsValid() bool {
	return k == EntityKindPolicy || k == EntityKindClaim
}

func (k EntityKind) String() string {
	return string(k)
}

// FallbackBehavior governs what happens when a single data type's fetch fails.
type FallbackBehavior string

const (
	// FallbackSkip continues past a failed data type, recording the error.
	FallbackSkip FallbackBehavior = "skip"
	// FallbackUseCached substitutes the last known cache entry regardless of
	// age, at reduced confidence. Falls back to skip when none exists.
	FallbackUseCached FallbackBehavior = "use_cached"
	// FallbackManualReview aborts the whole run on the first failure.
	FallbackManualReview FallbackBehavior = "manual_review"
)

// ParseFallbackBehavior creates a FallbackBehavior from a string, validating it.
func ParseFallbackBehavior(s string) (FallbackBehavior, error) {
	f := FallbackBehavior(s)
	if !f.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown fallback behavior %q", s))
	}
	return f, nil
}

// IsValid checks if the fallback behavior is a supported enum value.
func (f FallbackBehavior) IsValid() bool {
	switch f {
	case FallbackSkip, FallbackUseCached, FallbackManualReview:
		return true
	}
	return false
}

// TaskStatus tracks the lifecycle of one enrichment run. Transitions are
// monotonic: pending -> in_progress -> {completed, failed}.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// IsTerminal reports whether the status permits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// CanTransitionTo reports whether the state machine allows moving to next.
// in_progress -> in_progress is allowed for progress updates.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskPending:
		return next == TaskInProgress
	case TaskInProgress:
		return next == TaskInProgress || next == TaskCompleted || next == TaskFailed
	}
	return false
}

// Payload is provider-specific data, opaque to the pipeline. The quality
// scorer inspects well-known keys but never requires them.
type Payload map[string]any

// EnrichmentTask is the persisted record of one enrichment run.
type EnrichmentTask struct {
	ID                 id.TaskID   `json:"id"`
	EntityID           id.EntityID `json:"entity_id"`
	EntityKind         EntityKind  `json:"entity_kind"`
	Status             TaskStatus  `json:"status"`
	RequestedDataTypes []DataType  `json:"requested_data_types"`
	CompletedDataTypes []DataType  `json:"completed_data_types"`
	FailedDataTypes    []DataType  `json:"failed_data_types"`
	QualityScore       *float64    `json:"quality_score,omitempty"`
	ErrorDetail        string      `json:"error_detail,omitempty"`
	AutoEnrich         bool        `json:"auto_enrich"`
	StartedAt          time.Time   `json:"started_at"`
	CompletedAt        *time.Time  `json:"completed_at,omitempty"`
}

// CacheEntry is a cached provider payload keyed by (data type, entity).
type CacheEntry struct {
	DataType        DataType    `json:"data_type"`
	EntityID        id.EntityID `json:"entity_id"`
	Payload         Payload     `json:"payload"`
	ConfidenceScore float64     `json:"confidence_score"`
	ValidUntil      time.Time   `json:"valid_until"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// IsFresh reports whether the entry is still usable without a stale lookup.
func (e *CacheEntry) IsFresh(now time.Time) bool {
	return now.Before(e.ValidUntil)
}

// ValidationNotice flags a plausible-but-suspicious cross-source combination.
// Notices are informational and never fail a run.
type ValidationNotice struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ResultStatus summarizes how much of the requested data was obtained.
type ResultStatus string

const (
	ResultCompleted ResultStatus = "completed"
	ResultPartial   ResultStatus = "partial"
)

// EnrichmentResult is the ephemeral outcome of one run. It is returned to
// the caller and handed to the downstream dispatcher, never persisted.
type EnrichmentResult struct {
	TaskID       id.TaskID            `json:"task_id"`
	EntityID     id.EntityID          `json:"entity_id"`
	EntityKind   EntityKind           `json:"entity_kind"`
	Status       ResultStatus         `json:"status"`
	Data         map[DataType]Payload `json:"data"`
	FromCache    map[DataType]bool    `json:"from_cache"`
	Confidence   map[DataType]float64 `json:"confidence"`
	Errors       []string             `json:"errors"`
	Notices      []ValidationNotice   `json:"notices,omitempty"`
	QualityScore float64              `json:"quality_score"`
}

// RunConfig is the per-run configuration surface.
type RunConfig struct {
	DataTypes        []DataType       `json:"data_types,omitempty"`
	FallbackBehavior FallbackBehavior `json:"fallback_behavior,omitempty"`
	AutoEnrich       bool             `json:"auto_enrich"`
}

// ConfigRecord is a persisted default run configuration. Records are
// resolved per entity kind in descending priority order.
type ConfigRecord struct {
	ID         string     `json:"id"`
	EntityKind EntityKind `json:"entity_kind"`
	Priority   int        `json:"priority"`
	Config     RunConfig  `json:"config"`
	CreatedAt  time.Time  `json:"created_at"`
}

// DataTypeStats is the per-type slice of cache statistics.
type DataTypeStats struct {
	DataType DataType `json:"data_type"`
	Entries  int      `json:"entries"`
	Expired  int      `json:"expired"`
}

// CacheStats is the operator-facing cache summary.
type CacheStats struct {
	TotalEntries   int             `json:"total_entries"`
	ExpiredEntries int             `json:"expired_entries"`
	ByDataType     []DataTypeStats `json:"by_data_type"`
}
