package triage

import (
	domain "github.com/altsecops/findings-console/internal/domain/findings"
	"github.com/altsecops/findings-console/internal/domain/pipelines"
)

// Index maps finding ids to their AI verdict. It is derived data: rebuilt in
// full from the pipeline collection on every change, never patched in place.
type Index struct {
	verdicts map[domain.FindingID]domain.Verdict
	skipped  int
}

// BuildIndex walks the pipeline summaries in the exact order supplied and,
// per pipeline, its verdict buckets in fixed order (true_positives,
// false_positives, uncertainly). Every resolvable entry overwrites any prior
// verdict for the same finding id unconditionally, so resolution is
// last-write-wins by array position. Entries without a resolvable finding
// reference are skipped and counted, never raised.
func BuildIndex(summaries []pipelines.Summary) Index {
	ix := Index{verdicts: make(map[domain.FindingID]domain.Verdict)}
	for _, s := range summaries {
		if s.ResponseFromAI == nil {
			continue
		}
		res := s.ResponseFromAI.Results
		ix.ingest(res.TruePositives, domain.VerdictTruePositive)
		ix.ingest(res.FalsePositives, domain.VerdictFalsePositive)
		ix.ingest(res.Uncertainly, domain.VerdictUncertain)
	}
	return ix
}

func (ix *Index) ingest(entries []pipelines.Entry, v domain.Verdict) {
	for _, e := range entries {
		if !e.Resolvable() {
			ix.skipped++
			continue
		}
		ix.verdicts[e.OriginalFinding.ID] = v
	}
}

// Get returns the verdict for a finding id, or the zero Verdict when the
// finding is absent from every pipeline response.
func (ix Index) Get(id domain.FindingID) domain.Verdict {
	return ix.verdicts[id]
}

// Len returns the number of findings with a verdict.
func (ix Index) Len() int { return len(ix.verdicts) }

// Skipped returns how many entries were dropped at the ingestion boundary.
func (ix Index) Skipped() int { return ix.skipped }
