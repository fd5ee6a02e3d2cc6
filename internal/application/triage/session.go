package triage

import (
	domain "github.com/altsecops/findings-console/internal/domain/findings"
)

// session owns one retrieval run: a server filter, a cursor, the page
// accumulator and a monotonically increasing token. A filter change discards
// the session wholesale and starts a new one; already-fetched pages are never
// re-filtered incrementally.
type session struct {
	token    uint64
	filter   domain.Filter
	pageSize int

	cursor  domain.Cursor
	pages   [][]domain.Finding
	seen    map[domain.FindingID]struct{}
	hasMore bool
	total   int
}

func newSession(token uint64, filter domain.Filter, pageSize int) *session {
	return &session{
		token:    token,
		filter:   filter,
		pageSize: pageSize,
		seen:     make(map[domain.FindingID]struct{}),
		hasMore:  true,
	}
}

// accept folds a resolved page into the accumulator and advances the cursor.
// Items whose id already appeared in an earlier page are dropped, keeping the
// concatenated pages free of duplicate finding ids. Returns how many items
// were kept.
func (s *session) accept(p domain.Page) int {
	kept := make([]domain.Finding, 0, len(p.Items))
	for _, f := range p.Items {
		if _, dup := s.seen[f.ID]; dup {
			continue
		}
		s.seen[f.ID] = struct{}{}
		kept = append(kept, f)
	}
	s.pages = append(s.pages, kept)
	s.cursor = p.NextCursor
	s.hasMore = p.HasMore
	if p.Total > 0 {
		s.total = p.Total
	}
	return len(kept)
}

// loaded returns the number of accumulated findings.
func (s *session) loaded() int {
	n := 0
	for _, p := range s.pages {
		n += len(p)
	}
	return n
}
