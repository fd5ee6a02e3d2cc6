package findings

import (
	"fmt"
)

// Ordering key for the server-side result order. The full order is always
// ordering key + finding id tie-break, so pages are idempotent per cursor.
type Ordering string

const (
	OrderBySeverity Ordering = "severity"
	OrderByDate     Ordering = "date"
	OrderByTitle    Ordering = "title"
	OrderByID       Ordering = "id"
)

// Filter is the server-side filter predicate for finding retrieval.
// The AI verdict is deliberately absent: it is not a server-filterable
// attribute and is applied client-side after enrichment.
type Filter struct {
	ProductID     int64       `json:"product_id,omitempty"`
	Severity      Severity    `json:"severity,omitempty"`
	StatusEnabled *bool       `json:"status_enabled,omitempty"`
	RiskStates    []RiskState `json:"risk_states,omitempty"`
	CWEs          []int       `json:"cwe,omitempty"`
	Tags          []string    `json:"tags,omitempty"`
	Ordering      Ordering    `json:"ordering,omitempty"`
}

var validOrderings = map[Ordering]bool{
	"":              true, // defaults to severity
	OrderBySeverity: true,
	OrderByDate:     true,
	OrderByTitle:    true,
	OrderByID:       true,
}

var validRiskStates = map[RiskState]bool{
	RiskAccepted:    true,
	RiskUnderReview: true,
	RiskMitigated:   true,
}

var validSeverities = map[Severity]bool{
	SeverityCritical: true,
	SeverityHigh:     true,
	SeverityMedium:   true,
	SeverityLow:      true,
	SeverityInfo:     true,
}

// Validate rejects malformed filter input. A validation failure is fatal to
// the session that attempted it; the previous session stays intact.
func (f Filter) Validate() error {
	if f.ProductID < 0 {
		return &ValidationError{Field: "product_id", Reason: "must not be negative"}
	}
	if f.Severity != "" && !validSeverities[f.Severity] {
		return &ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown severity %q", f.Severity)}
	}
	for _, rs := range f.RiskStates {
		if !validRiskStates[rs] {
			return &ValidationError{Field: "risk_states", Reason: fmt.Sprintf("unknown risk state %q", rs)}
		}
	}
	for _, cwe := range f.CWEs {
		if cwe <= 0 {
			return &ValidationError{Field: "cwe", Reason: "CWE ids must be positive"}
		}
	}
	if !validOrderings[f.Ordering] {
		return &ValidationError{Field: "ordering", Reason: fmt.Sprintf("unknown ordering %q", f.Ordering)}
	}
	return nil
}

// OrderingOrDefault returns the effective ordering key.
func (f Filter) OrderingOrDefault() Ordering {
	if f.Ordering == "" {
		return OrderBySeverity
	}
	return f.Ordering
}

// Cursor is an opaque position inside a server-side result set. Adapters own
// the encoding; the engine only threads it between pages.
type Cursor string

// Page is one retrieved slice of the filtered result set.
type Page struct {
	Items      []Finding `json:"items"`
	NextCursor Cursor    `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
	Total      int       `json:"total,omitempty"`
}
