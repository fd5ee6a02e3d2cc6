package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/altsecops/findings-console/internal/application/triage"
	domain "github.com/altsecops/findings-console/internal/domain/findings"
	"github.com/altsecops/findings-console/internal/domain/pipelines"
)

type pagedSource struct {
	pages map[domain.Cursor]domain.Page
	calls int
}

func (s *pagedSource) Query(ctx context.Context, f domain.Filter, pageSize int, cursor domain.Cursor) (domain.Page, error) {
	s.calls++
	p, ok := s.pages[cursor]
	if !ok {
		return domain.Page{}, fmt.Errorf("no page at cursor %q", cursor)
	}
	return p, nil
}

type fixedLister struct {
	summaries []pipelines.Summary
}

func (l *fixedLister) List(ctx context.Context, productID int64, status string) ([]pipelines.Summary, error) {
	return l.summaries, nil
}

func TestDrainAndExportFetchesPastUnmatchedPages(t *testing.T) {
	t.Parallel()

	// The first page carries no findings matching the verdict filter; the
	// matches sit on the second page. The drain must not stop early just
	// because the filtered view is still empty.
	src := &pagedSource{pages: map[domain.Cursor]domain.Page{
		"": {
			Items: []domain.Finding{
				{ID: 1, Title: "open redirect", Severity: domain.SeverityLow, Active: true},
				{ID: 2, Title: "verbose banner", Severity: domain.SeverityInfo, Active: true},
			},
			NextCursor: "2",
			HasMore:    true,
			Total:      4,
		},
		"2": {
			Items: []domain.Finding{
				{ID: 3, Title: "sql injection", Severity: domain.SeverityCritical, Active: true},
				{ID: 4, Title: "rce via upload", Severity: domain.SeverityCritical, Active: true},
			},
			HasMore: false,
			Total:   4,
		},
	}}
	lister := &fixedLister{summaries: []pipelines.Summary{{
		ID:      "pipe-1",
		Status:  "finished",
		Created: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ResponseFromAI: &pipelines.AIResponse{Results: pipelines.Results{
			TruePositives: []pipelines.Entry{
				{OriginalFinding: &pipelines.OriginalFinding{ID: 3}},
				{OriginalFinding: &pipelines.OriginalFinding{ID: 4}},
			},
		}},
	}}}

	svc := triage.NewService(triage.Deps{Source: src, Pipelines: lister}, triage.Options{PageSize: 2})
	ctx := context.Background()

	if err := svc.SetFilter(ctx, domain.Filter{}); err != nil {
		t.Fatalf("set filter: %v", err)
	}
	if err := svc.RefreshPipelines(ctx, 0); err != nil {
		t.Fatalf("refresh pipelines: %v", err)
	}

	var buf bytes.Buffer
	if err := drainAndExport(ctx, svc, triage.VerdictOnlyTruePositive, &buf); err != nil {
		t.Fatalf("drain and export: %v", err)
	}

	if src.calls != 2 {
		t.Fatalf("source queried %d times, want 2 (both pages)", src.calls)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], `"3"`) || !strings.Contains(lines[2], `"4"`) {
		t.Fatalf("rows missing the matching findings:\n%s", buf.String())
	}

	snap := svc.View()
	if snap.HasMore {
		t.Fatalf("session not drained: %+v", snap)
	}
}

func TestDrainAndExportRejectsUnknownVerdict(t *testing.T) {
	t.Parallel()

	svc := triage.NewService(triage.Deps{Source: &pagedSource{}}, triage.Options{})
	var buf bytes.Buffer
	if err := drainAndExport(context.Background(), svc, "bogus", &buf); err == nil {
		t.Fatalf("unknown verdict filter accepted")
	}
	if buf.Len() != 0 {
		t.Fatalf("rejected export wrote %d bytes", buf.Len())
	}
}
