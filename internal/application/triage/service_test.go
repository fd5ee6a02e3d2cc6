package triage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/altsecops/findings-console/internal/application"
	domain "github.com/altsecops/findings-console/internal/domain/findings"
	"github.com/altsecops/findings-console/internal/domain/pipelines"
)

// stubSource serves canned pages keyed by cursor and records every call.
type stubSource struct {
	mu      sync.Mutex
	pages   map[domain.Cursor]domain.Page
	errOn   map[domain.Cursor]error
	cursors []domain.Cursor

	// gate, when set for the queried product id, makes Query block until
	// released. started is signalled once per blocked call.
	gate    chan struct{}
	gateFor int64
	started chan struct{}
}

func (s *stubSource) Query(ctx context.Context, f domain.Filter, pageSize int, cursor domain.Cursor) (domain.Page, error) {
	s.mu.Lock()
	s.cursors = append(s.cursors, cursor)
	gate, started := s.gate, s.started
	blocked := gate != nil && f.ProductID == s.gateFor
	s.mu.Unlock()

	if blocked {
		started <- struct{}{}
		<-gate
	}
	if err := s.errOn[cursor]; err != nil {
		s.mu.Lock()
		delete(s.errOn, cursor)
		s.mu.Unlock()
		return domain.Page{}, err
	}
	p, ok := s.pages[cursor]
	if !ok {
		return domain.Page{}, fmt.Errorf("no page at cursor %q", cursor)
	}
	return p, nil
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cursors)
}

type stubLister struct {
	summaries []pipelines.Summary
	err       error
}

func (s *stubLister) List(ctx context.Context, productID int64, status string) ([]pipelines.Summary, error) {
	return s.summaries, s.err
}

type stubMutator struct {
	updated *domain.Finding
	note    *domain.Note
	err     error
}

func (s *stubMutator) SetActive(ctx context.Context, id domain.FindingID, active bool) (*domain.Finding, error) {
	return s.updated, s.err
}

func (s *stubMutator) AddNote(ctx context.Context, id domain.FindingID, entry string) (*domain.Note, error) {
	return s.note, s.err
}

func newTestService(src domain.Source, opts Options, extra func(*Deps)) *Service {
	deps := Deps{
		Source: src,
		Clock:  application.FixedClock{T: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	if extra != nil {
		extra(&deps)
	}
	return NewService(deps, opts)
}

func page(next domain.Cursor, hasMore bool, total int, ids ...domain.FindingID) domain.Page {
	items := make([]domain.Finding, 0, len(ids))
	for _, id := range ids {
		items = append(items, finding(id, fmt.Sprintf("finding-%d", id)))
	}
	return domain.Page{Items: items, NextCursor: next, HasMore: hasMore, Total: total}
}

func TestSetFilterLoadsFirstPage(t *testing.T) {
	t.Parallel()

	src := &stubSource{pages: map[domain.Cursor]domain.Page{
		"": page("2", true, 7, 1, 2),
	}}
	svc := newTestService(src, Options{PageSize: 2}, nil)

	if err := svc.SetFilter(context.Background(), domain.Filter{}); err != nil {
		t.Fatalf("set filter: %v", err)
	}

	snap := svc.View()
	if snap.State != StateReady {
		t.Fatalf("state = %s, want ready", snap.State)
	}
	if snap.Loaded != 2 || !snap.HasMore || snap.Total != 7 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Items) != 2 || snap.Items[0].ID != 1 || snap.Items[1].ID != 2 {
		t.Fatalf("view items = %+v", snap.Items)
	}
	if snap.SessionToken != 1 {
		t.Fatalf("token = %d, want 1", snap.SessionToken)
	}
}

func TestOnWindowPrefetchAndExhaustion(t *testing.T) {
	t.Parallel()

	src := &stubSource{pages: map[domain.Cursor]domain.Page{
		"":  page("5", true, 8, 1, 2, 3, 4, 5),
		"5": page("", false, 8, 6, 7, 8),
	}}
	svc := newTestService(src, Options{PageSize: 5, Lookahead: 3}, nil)
	ctx := context.Background()

	if err := svc.SetFilter(ctx, domain.Filter{}); err != nil {
		t.Fatalf("set filter: %v", err)
	}

	// Window far from the end: no fetch.
	triggered, err := svc.OnWindow(ctx, 0)
	if err != nil || triggered {
		t.Fatalf("OnWindow(0) = %v, %v; want no trigger", triggered, err)
	}
	if got := src.callCount(); got != 1 {
		t.Fatalf("query count = %d, want 1", got)
	}

	// Within lookahead of the end: next page fetched, source drained.
	triggered, err = svc.OnWindow(ctx, 1)
	if err != nil || !triggered {
		t.Fatalf("OnWindow(1) = %v, %v; want trigger", triggered, err)
	}
	snap := svc.View()
	if snap.State != StateExhausted {
		t.Fatalf("state = %s, want exhausted", snap.State)
	}
	if snap.Loaded != 8 || snap.HasMore {
		t.Fatalf("snapshot = %+v", snap)
	}

	// Exhausted session never fetches again.
	triggered, err = svc.OnWindow(ctx, 7)
	if err != nil || triggered {
		t.Fatalf("OnWindow after exhaustion = %v, %v; want no trigger", triggered, err)
	}
	if got := src.callCount(); got != 2 {
		t.Fatalf("query count = %d, want 2", got)
	}
}

func TestAcceptDropsDuplicateIDs(t *testing.T) {
	t.Parallel()

	src := &stubSource{pages: map[domain.Cursor]domain.Page{
		"":  page("2", true, 0, 1, 2),
		"2": page("", false, 0, 2, 3),
	}}
	svc := newTestService(src, Options{PageSize: 2}, nil)
	ctx := context.Background()

	if err := svc.SetFilter(ctx, domain.Filter{}); err != nil {
		t.Fatalf("set filter: %v", err)
	}
	if _, err := svc.OnWindow(ctx, 1); err != nil {
		t.Fatalf("window: %v", err)
	}

	snap := svc.View()
	if snap.Loaded != 3 {
		t.Fatalf("loaded = %d, want 3 after dedupe", snap.Loaded)
	}
	seen := map[domain.FindingID]bool{}
	for _, it := range snap.Items {
		if seen[it.ID] {
			t.Fatalf("duplicate id %d in view", it.ID)
		}
		seen[it.ID] = true
	}
}

func TestFetchErrorThenRetrySameCursor(t *testing.T) {
	t.Parallel()

	src := &stubSource{
		pages: map[domain.Cursor]domain.Page{
			"":  page("2", true, 4, 1, 2),
			"2": page("", false, 4, 3, 4),
		},
		errOn: map[domain.Cursor]error{
			"2": &domain.TransportError{Op: "list findings", Err: errors.New("connection reset")},
		},
	}
	svc := newTestService(src, Options{PageSize: 2}, nil)
	ctx := context.Background()

	if err := svc.SetFilter(ctx, domain.Filter{}); err != nil {
		t.Fatalf("set filter: %v", err)
	}
	if _, err := svc.OnWindow(ctx, 1); !domain.IsRetryable(err) {
		t.Fatalf("expected retryable transport error, got %v", err)
	}

	snap := svc.View()
	if snap.State != StateError {
		t.Fatalf("state = %s, want error", snap.State)
	}
	if snap.Loaded != 2 {
		t.Fatalf("pages before the failure must survive, loaded = %d", snap.Loaded)
	}
	if snap.LastError == "" {
		t.Fatalf("expected last error in snapshot")
	}

	notes := svc.Notifications()
	if len(notes) != 1 || notes[0].Level != "error" {
		t.Fatalf("expected one error notification, got %+v", notes)
	}

	if err := svc.Retry(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	snap = svc.View()
	if snap.State != StateExhausted || snap.Loaded != 4 {
		t.Fatalf("after retry: %+v", snap)
	}

	want := []domain.Cursor{"", "2", "2"}
	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.cursors) != len(want) {
		t.Fatalf("cursor trail = %v, want %v", src.cursors, want)
	}
	for i := range want {
		if src.cursors[i] != want[i] {
			t.Fatalf("cursor trail = %v, want %v", src.cursors, want)
		}
	}
}

func TestRetryOutsideErrorStateRefused(t *testing.T) {
	t.Parallel()

	src := &stubSource{pages: map[domain.Cursor]domain.Page{
		"": page("", false, 1, 1),
	}}
	svc := newTestService(src, Options{PageSize: 5}, nil)

	if err := svc.Retry(context.Background()); err == nil {
		t.Fatalf("retry with no session should fail")
	}
	if err := svc.SetFilter(context.Background(), domain.Filter{}); err != nil {
		t.Fatalf("set filter: %v", err)
	}
	if err := svc.Retry(context.Background()); err == nil {
		t.Fatalf("retry outside error state should fail")
	}
}

func TestValidationErrorLeavesSessionIntact(t *testing.T) {
	t.Parallel()

	src := &stubSource{pages: map[domain.Cursor]domain.Page{
		"": page("", false, 2, 1, 2),
	}}
	svc := newTestService(src, Options{PageSize: 5}, nil)
	ctx := context.Background()

	if err := svc.SetFilter(ctx, domain.Filter{}); err != nil {
		t.Fatalf("set filter: %v", err)
	}
	before := svc.View()

	err := svc.SetFilter(ctx, domain.Filter{Severity: "catastrophic"})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}

	after := svc.View()
	if after.SessionToken != before.SessionToken || after.Loaded != before.Loaded {
		t.Fatalf("rejected filter disturbed the session: before %+v after %+v", before, after)
	}
	if got := src.callCount(); got != 1 {
		t.Fatalf("rejected filter reached the source, %d calls", got)
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	src := &stubSource{
		pages: map[domain.Cursor]domain.Page{
			"": page("", false, 1, 99),
		},
		gate:    gate,
		gateFor: 1,
		started: started,
	}
	svc := newTestService(src, Options{PageSize: 5}, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- svc.SetFilter(ctx, domain.Filter{ProductID: 1})
	}()
	<-started

	// While the first fetch is in flight the view is already cleared.
	snap := svc.View()
	if snap.State != StateLoadingFirst || len(snap.Items) != 0 {
		t.Fatalf("in-flight snapshot = %+v", snap)
	}

	// A second filter supersedes the session before the first fetch lands.
	if err := svc.SetFilter(ctx, domain.Filter{ProductID: 2}); err != nil {
		t.Fatalf("superseding filter: %v", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("superseded fetch must not surface an error, got %v", err)
	}

	if got := svc.StaleDrops(); got != 1 {
		t.Fatalf("stale drops = %d, want 1", got)
	}
	snap = svc.View()
	if snap.SessionToken != 2 || snap.State != StateExhausted || snap.Loaded != 1 {
		t.Fatalf("final snapshot = %+v", snap)
	}
	if len(snap.Items) != 1 || snap.Items[0].ID != 99 {
		t.Fatalf("stale page leaked into the view: %+v", snap.Items)
	}
	if notes := svc.Notifications(); len(notes) != 0 {
		t.Fatalf("stale discard must not notify, got %+v", notes)
	}
}

func TestSetVerdictFilterNoServerRoundTrip(t *testing.T) {
	t.Parallel()

	src := &stubSource{pages: map[domain.Cursor]domain.Page{
		"": page("", false, 3, 1, 2, 3),
	}}
	lister := &stubLister{summaries: []pipelines.Summary{
		summaryAt("p1", time.Now(), pipelines.Results{
			TruePositives: []pipelines.Entry{entry(2)},
		}),
	}}
	svc := newTestService(src, Options{PageSize: 5}, func(d *Deps) { d.Pipelines = lister })
	ctx := context.Background()

	if err := svc.SetFilter(ctx, domain.Filter{}); err != nil {
		t.Fatalf("set filter: %v", err)
	}
	if err := svc.RefreshPipelines(ctx, 0); err != nil {
		t.Fatalf("refresh pipelines: %v", err)
	}

	calls := src.callCount()
	if err := svc.SetVerdictFilter(VerdictOnlyTruePositive); err != nil {
		t.Fatalf("verdict filter: %v", err)
	}
	snap := svc.View()
	if len(snap.Items) != 1 || snap.Items[0].ID != 2 {
		t.Fatalf("filtered view = %+v", snap.Items)
	}
	if snap.Loaded != 3 {
		t.Fatalf("loaded must count accumulated findings, got %d", snap.Loaded)
	}
	if src.callCount() != calls {
		t.Fatalf("verdict filter reached the source")
	}

	if err := svc.SetVerdictFilter("nope"); err == nil {
		t.Fatalf("invalid verdict filter accepted")
	}
}

func TestRefreshPipelinesOrdersByCreation(t *testing.T) {
	t.Parallel()

	older := summaryAt("p-old", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), pipelines.Results{
		TruePositives: []pipelines.Entry{entry(1)},
	})
	newer := summaryAt("p-new", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), pipelines.Results{
		FalsePositives: []pipelines.Entry{entry(1)},
	})

	src := &stubSource{pages: map[domain.Cursor]domain.Page{
		"": page("", false, 1, 1),
	}}
	// Lister hands back newest first; the service must still resolve the
	// newer pipeline's verdict.
	lister := &stubLister{summaries: []pipelines.Summary{newer, older}}
	svc := newTestService(src, Options{PageSize: 5}, func(d *Deps) { d.Pipelines = lister })
	ctx := context.Background()

	if err := svc.SetFilter(ctx, domain.Filter{}); err != nil {
		t.Fatalf("set filter: %v", err)
	}
	if err := svc.RefreshPipelines(ctx, 0); err != nil {
		t.Fatalf("refresh pipelines: %v", err)
	}

	it, ok := svc.Item(0)
	if !ok {
		t.Fatalf("expected item at index 0")
	}
	if it.Verdict != domain.VerdictFalsePositive {
		t.Fatalf("verdict = %q, want false_positive from the newer pipeline", it.Verdict)
	}
}

func TestSetFindingActivePatchesView(t *testing.T) {
	t.Parallel()

	src := &stubSource{pages: map[domain.Cursor]domain.Page{
		"": page("", false, 2, 1, 2),
	}}
	updated := finding(2, "finding-2")
	updated.Active = false
	mut := &stubMutator{updated: &updated}
	svc := newTestService(src, Options{PageSize: 5}, func(d *Deps) { d.Mutator = mut })
	ctx := context.Background()

	if err := svc.SetFilter(ctx, domain.Filter{}); err != nil {
		t.Fatalf("set filter: %v", err)
	}
	if _, err := svc.SetFindingActive(ctx, 2, false); err != nil {
		t.Fatalf("set active: %v", err)
	}

	it, ok := svc.Item(1)
	if !ok || it.ID != 2 {
		t.Fatalf("item(1) = %+v, %v", it, ok)
	}
	if it.Active {
		t.Fatalf("view not refreshed after mutation")
	}
}

func TestMutationFailureNotifies(t *testing.T) {
	t.Parallel()

	src := &stubSource{pages: map[domain.Cursor]domain.Page{
		"": page("", false, 1, 1),
	}}
	mut := &stubMutator{err: errors.New("upstream said no")}
	svc := newTestService(src, Options{PageSize: 5}, func(d *Deps) { d.Mutator = mut })

	if _, err := svc.SetFindingActive(context.Background(), 1, false); err == nil {
		t.Fatalf("expected mutation error")
	}
	notes := svc.Notifications()
	if len(notes) != 1 || notes[0].Level != "error" {
		t.Fatalf("expected one error notification, got %+v", notes)
	}
}

func TestExportEmptyViewNotifies(t *testing.T) {
	t.Parallel()

	src := &stubSource{}
	svc := newTestService(src, Options{}, nil)

	var buf bytes.Buffer
	if err := svc.ExportCSV(&buf); !errors.Is(err, domain.ErrEmptyExport) {
		t.Fatalf("expected ErrEmptyExport, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("empty export wrote %d bytes", buf.Len())
	}
	notes := svc.Notifications()
	if len(notes) != 1 || notes[0].Level != "info" {
		t.Fatalf("expected one info notification, got %+v", notes)
	}
}

func TestItemIndexStableWithinSession(t *testing.T) {
	t.Parallel()

	src := &stubSource{pages: map[domain.Cursor]domain.Page{
		"":  page("2", true, 4, 1, 2),
		"2": page("", false, 4, 3, 4),
	}}
	svc := newTestService(src, Options{PageSize: 2}, nil)
	ctx := context.Background()

	if err := svc.SetFilter(ctx, domain.Filter{}); err != nil {
		t.Fatalf("set filter: %v", err)
	}
	before, ok := svc.Item(1)
	if !ok {
		t.Fatalf("expected item at index 1")
	}
	if _, err := svc.OnWindow(ctx, 1); err != nil {
		t.Fatalf("window: %v", err)
	}
	after, ok := svc.Item(1)
	if !ok || after.ID != before.ID {
		t.Fatalf("index 1 shifted after append: before %d after %d", before.ID, after.ID)
	}
	if _, ok := svc.Item(99); ok {
		t.Fatalf("out of range index must miss")
	}
}
