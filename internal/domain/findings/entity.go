package findings

import (
	"time"
)

// ID tipe untuk Finding (server-assigned, immutable)
type FindingID int64

// Severity enum, ordered Critical > High > Medium > Low > Info
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
	SeverityInfo     Severity = "Info"
)

// Rank maps a severity to its order, Critical first. Unknown ranks last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	case SeverityInfo:
		return 4
	default:
		return 5
	}
}

// RiskState enum
type RiskState string

const (
	RiskAccepted    RiskState = "risk_accepted"
	RiskUnderReview RiskState = "under_review"
	RiskMitigated   RiskState = "mitigated"
)

// Verdict is the AI-triage classification of a finding. The zero value
// means the finding has no verdict (absent from every pipeline response).
type Verdict string

const (
	VerdictTruePositive  Verdict = "true_positive"
	VerdictFalsePositive Verdict = "false_positive"
	VerdictUncertain     Verdict = "uncertain"
)

// Aggregate Root: Finding
type Finding struct {
	ID         FindingID   `json:"id"`
	Title      string      `json:"title"`
	Severity   Severity    `json:"severity"`
	Active     bool        `json:"active"`
	ProductID  int64       `json:"product_id"`
	FilePath   string      `json:"file_path"`
	Line       int         `json:"line"`
	RiskStates []RiskState `json:"risk_states,omitempty"`
	Tags       []string    `json:"tags,omitempty"`
	CWE        int         `json:"cwe,omitempty"`
	Date       *time.Time  `json:"date,omitempty"`
}

// Enriched is a finding decorated with its AI verdict and the resolved
// product display name. Verdict is derived, never persisted on the finding.
type Enriched struct {
	Finding
	Verdict     Verdict `json:"verdict,omitempty"`
	ProductName string  `json:"product_name"`
}

// Note is a comment attached to a finding by the mutation collaborator.
type Note struct {
	ID      int64     `json:"id"`
	Entry   string    `json:"entry"`
	Author  string    `json:"author,omitempty"`
	Created time.Time `json:"created"`
}

// Snippet is a slice of source context around a finding location,
// served by the snippet collaborator.
type Snippet struct {
	Lines     []string `json:"lines"`
	FullText  string   `json:"full_text"`
	Start     int      `json:"start"`
	Highlight int      `json:"highlight"`
}
