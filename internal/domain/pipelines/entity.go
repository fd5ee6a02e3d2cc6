package pipelines

import (
	"time"

	"github.com/altsecops/findings-console/internal/domain/findings"
)

// ID tipe untuk Pipeline
type PipelineID string

// Summary is one analyzer/triage pipeline run, optionally carrying the AI
// response payload produced for it.
type Summary struct {
	ID             PipelineID  `json:"id"`
	ProjectID      int64       `json:"project_id"`
	ProductID      int64       `json:"product_id"`
	ProductName    string      `json:"product_name,omitempty"`
	Status         string      `json:"status"`
	Created        time.Time   `json:"created"`
	ResponseFromAI *AIResponse `json:"response_from_ai,omitempty"`
}

// AIResponse is the triage payload attached to a pipeline run.
type AIResponse struct {
	Results Results `json:"results"`
}

// Results holds exactly three disjoint verdict buckets. The upstream payload
// spells the third bucket "uncertainly"; that wire name is kept as-is.
type Results struct {
	TruePositives  []Entry `json:"true_positives,omitempty"`
	FalsePositives []Entry `json:"false_positives,omitempty"`
	Uncertainly    []Entry `json:"uncertainly,omitempty"`
}

// Entry correlates one AI result back to the finding it was derived from.
// Entries whose OriginalFinding is missing or carries no id are skipped at
// the ingestion boundary, never raised as errors.
type Entry struct {
	Title            string           `json:"title,omitempty"`
	Reasoning        string           `json:"reasoning,omitempty"`
	ImpactScore      int              `json:"impactScore,omitempty"`
	FalsePositive    bool             `json:"falsePositive,omitempty"`
	OriginalFinding  *OriginalFinding `json:"originalFinding,omitempty"`
}

// OriginalFinding is the reference embedded in a correlation entry.
type OriginalFinding struct {
	ID      findings.FindingID `json:"id"`
	CWE     int                `json:"cwe,omitempty"`
	File    string             `json:"file,omitempty"`
	Line    int                `json:"line,omitempty"`
	Snippet string             `json:"snippet,omitempty"`
}

// Resolvable reports whether the entry references an identifiable finding.
func (e Entry) Resolvable() bool {
	return e.OriginalFinding != nil && e.OriginalFinding.ID > 0
}

// JobHandle identifies an asynchronous upstream export job.
type JobHandle struct {
	ID      string    `json:"id"`
	Status  string    `json:"status"`
	Created time.Time `json:"created"`
}
