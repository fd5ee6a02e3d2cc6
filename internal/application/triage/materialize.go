package triage

import (
	domain "github.com/altsecops/findings-console/internal/domain/findings"
)

// VerdictFilter is the client-only filter applied after enrichment. The AI
// verdict is not a server-filterable attribute, so this never reaches the
// source adapter.
type VerdictFilter string

const (
	VerdictAll               VerdictFilter = "all"
	VerdictOnlyTruePositive  VerdictFilter = VerdictFilter(domain.VerdictTruePositive)
	VerdictOnlyFalsePositive VerdictFilter = VerdictFilter(domain.VerdictFalsePositive)
	VerdictOnlyUncertain     VerdictFilter = VerdictFilter(domain.VerdictUncertain)
)

// Valid reports whether the filter names a known verdict or "all".
func (vf VerdictFilter) Valid() bool {
	switch vf {
	case VerdictAll, VerdictOnlyTruePositive, VerdictOnlyFalsePositive, VerdictOnlyUncertain:
		return true
	}
	return false
}

// Materialize combines the pages accumulated so far, the verdict index and
// the client-only verdict filter into the ordered view consumed by the UI.
//
// It is a pure function: identical inputs produce structurally equal output,
// the result shares no backing arrays with the input pages, and filtering is
// stable (survivors keep their relative server order). Findings without a
// verdict pass VerdictAll and are excluded by every specific filter.
func Materialize(pages [][]domain.Finding, ix Index, products domain.ProductLookup, vf VerdictFilter) []domain.Enriched {
	out := make([]domain.Enriched, 0, pageItemCount(pages))
	for _, page := range pages {
		for _, f := range page {
			verdict := ix.Get(f.ID)
			if vf != VerdictAll && string(verdict) != string(vf) {
				continue
			}
			e := domain.Enriched{Finding: f, Verdict: verdict}
			if products != nil {
				e.ProductName = products.ProductName(f.ProductID)
			}
			out = append(out, e)
		}
	}
	return out
}

func pageItemCount(pages [][]domain.Finding) int {
	n := 0
	for _, p := range pages {
		n += len(p)
	}
	return n
}
