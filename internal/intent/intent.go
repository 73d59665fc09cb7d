package intent

import (
	"strings"
	"time"
)

// UnknownService is the sentinel the extractor emits when it could not
// identify a target service.
const UnknownService = "unknown"

// Operation is the high-level category of a requested operation.
type Operation string

const (
	OperationRead    Operation = "read"    // describe, list, get, show
	OperationWrite   Operation = "write"   // create, update, modify
	OperationDelete  Operation = "delete"  // delete, terminate, remove
	OperationAnalyze Operation = "analyze" // analyze, report, find issues
)

// Operations lists every valid operation.
func Operations() []Operation {
	return []Operation{OperationRead, OperationWrite, OperationDelete, OperationAnalyze}
}

// Valid reports whether the operation is one of the known categories.
func (o Operation) Valid() bool {
	switch o {
	case OperationRead, OperationWrite, OperationDelete, OperationAnalyze:
		return true
	default:
		return false
	}
}

// IsMutating reports whether the operation changes remote state.
func (o Operation) IsMutating() bool {
	return o == OperationWrite || o == OperationDelete
}

// Confidence is the extractor's self-reported confidence level.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Rank maps a confidence level to an ordinal for threshold comparison.
// Unknown levels rank below low.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceLow:
		return 1
	case ConfidenceMedium:
		return 2
	case ConfidenceHigh:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether c meets or exceeds the required level.
func (c Confidence) AtLeast(required Confidence) bool {
	return c.Rank() >= required.Rank()
}

// QueryType classifies the shape of the originating query.
type QueryType string

const (
	QuerySimple    QueryType = "simple"
	QueryComplex   QueryType = "complex"
	QueryMultiStep QueryType = "multi_step"
	QueryAmbiguous QueryType = "ambiguous"

	// QueryError marks an intent produced by a failed extraction. The gate
	// rejects these outright.
	QueryError QueryType = "error"
)

// Filter narrows resource selection, for example by tag or state.
type Filter struct {
	Type     string `json:"filter_type"`
	Key      string `json:"key"`
	Value    string `json:"value"`
	Operator string `json:"operator"`
}

// Resource identifies the targeted resource set.
type Resource struct {
	Service      string   `json:"service"`
	ResourceType string   `json:"resource_type,omitempty"`
	ResourceIDs  []string `json:"resource_ids,omitempty"`
	Filters      []Filter `json:"filters,omitempty"`
}

// Intent is the structured form of a user request, produced by the
// upstream extractor. Operation, PrimaryService and Confidence are always
// set; every other field may be empty and empty means unknown.
type Intent struct {
	QueryType  QueryType  `json:"query_type"`
	Operation  Operation  `json:"operation"`
	Confidence Confidence `json:"confidence"`

	PrimaryService  string   `json:"primary_service"`
	PrimaryResource Resource `json:"primary_resource"`
	Action          string   `json:"action,omitempty"`

	Regions  []string `json:"regions,omitempty"`
	Accounts []string `json:"accounts,omitempty"`

	OutputFormat string `json:"output_format,omitempty"`
	Limit        int    `json:"limit,omitempty"`

	Ambiguities         []string `json:"ambiguities,omitempty"`
	ClarifyingQuestions []string `json:"clarifying_questions,omitempty"`

	OriginalQuery   string    `json:"original_query"`
	NormalizedQuery string    `json:"normalized_query,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// IsError reports whether this intent signals an upstream extraction failure.
func (i *Intent) IsError() bool {
	return i.QueryType == QueryError
}

// HasService reports whether the extractor identified a target service.
func (i *Intent) HasService() bool {
	svc := strings.TrimSpace(i.PrimaryService)
	return svc != "" && !strings.EqualFold(svc, UnknownService)
}

// Summary returns a short human-readable description used in logs and audit.
func (i *Intent) Summary() string {
	service := strings.TrimSpace(i.PrimaryService)
	if service == "" {
		service = UnknownService
	}
	return string(i.Operation) + " " + service
}
