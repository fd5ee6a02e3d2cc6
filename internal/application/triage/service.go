package triage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/altsecops/findings-console/internal/application"
	domain "github.com/altsecops/findings-console/internal/domain/findings"
	"github.com/altsecops/findings-console/internal/domain/pipelines"
)

// Deps are the collaborator ports the service drives. Only Source is
// mandatory; nil optional ports disable the corresponding operations.
type Deps struct {
	Source    domain.Source
	Pipelines pipelines.Lister
	Mutator   domain.Mutator
	Exporter  pipelines.Exporter
	Snippets  domain.SnippetProvider
	Products  domain.ProductLookup
	Clock     application.Clock
	Logger    *slog.Logger
}

// Options tune the retrieval engine.
type Options struct {
	PageSize  int
	Lookahead int
}

const defaultPageSize = 25

// Service implements the findings correlation & incremental retrieval engine.
//
// All session state is guarded by mu, which stands in for the single UI event
// loop: operations suspend cooperatively around each network call (the lock
// is released while a fetch is in flight) and merge results back under the
// lock, guarded by the session token. A superseded session's in-flight fetch
// is never aborted; its result is discarded at merge time.
type Service struct {
	deps      Deps
	log       *slog.Logger
	clock     application.Clock
	pageSize  int
	lookahead int

	mu         sync.Mutex
	token      uint64 // monotonically increasing session token
	sess       *session
	state      State
	inFlight   bool
	lastErr    error
	idx        Index
	vf         VerdictFilter
	view       []domain.Enriched
	staleDrops uint64

	notes *notifier
}

// NewService wires the engine with its collaborators.
func NewService(deps Deps, opts Options) *Service {
	if deps.Clock == nil {
		deps.Clock = application.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	return &Service{
		deps:      deps,
		log:       deps.Logger,
		clock:     deps.Clock,
		pageSize:  opts.PageSize,
		lookahead: opts.Lookahead,
		state:     StateIdle,
		idx:       BuildIndex(nil),
		vf:        VerdictAll,
		notes:     newNotifier(deps.Clock),
	}
}

// Snapshot is a consistent copy of the current materialized view and session
// state, safe to hand to rendering code.
type Snapshot struct {
	Items         []domain.Enriched `json:"items"`
	State         State             `json:"state"`
	HasMore       bool              `json:"has_more"`
	Loaded        int               `json:"loaded"`
	Total         int               `json:"total"`
	SessionToken  uint64            `json:"session_token"`
	VerdictFilter VerdictFilter     `json:"verdict_filter"`
	LastError     string            `json:"last_error,omitempty"`
}

// SetFilter discards the current session wholesale and starts a new one for
// the given server filter, fetching the first page before returning. The
// materialized view is cleared before the fetch is issued, so no stale
// content survives a filter change.
func (s *Service) SetFilter(ctx context.Context, f domain.Filter) error {
	if err := f.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.token++
	token := s.token
	s.sess = newSession(token, f, s.pageSize)
	s.state = StateLoadingFirst
	s.inFlight = true
	s.view = nil
	s.lastErr = nil
	s.mu.Unlock()

	return dropStale(s.fetch(ctx, token, f, ""))
}

// OnWindow feeds the windowing protocol with the last index currently
// visible in the rendered slice. When the window nears the end of loaded
// data it requests the next page; otherwise it is a no-op. Returns whether a
// fetch was triggered.
func (s *Service) OnWindow(ctx context.Context, lastVisible int) (bool, error) {
	s.mu.Lock()
	if s.sess == nil || s.inFlight ||
		!shouldPrefetch(lastVisible, len(s.view), s.lookahead, s.state, s.sess.hasMore) {
		s.mu.Unlock()
		return false, nil
	}
	s.state = StateLoadingNext
	s.inFlight = true
	token, filter, cursor := s.sess.token, s.sess.filter, s.sess.cursor
	s.mu.Unlock()

	return true, dropStale(s.fetch(ctx, token, filter, cursor))
}

// Retry reissues the cursor that failed. Pages accumulated before the
// failure are untouched.
func (s *Service) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.sess == nil || s.state != StateError {
		s.mu.Unlock()
		return fmt.Errorf("nothing to retry")
	}
	if len(s.sess.pages) == 0 {
		s.state = StateLoadingFirst
	} else {
		s.state = StateLoadingNext
	}
	s.inFlight = true
	s.lastErr = nil
	token, filter, cursor := s.sess.token, s.sess.filter, s.sess.cursor
	s.mu.Unlock()

	return dropStale(s.fetch(ctx, token, filter, cursor))
}

// dropStale swallows the internal stale-discard marker; a superseded fetch is
// not an error from the caller's point of view.
func dropStale(err error) error {
	if errors.Is(err, domain.ErrStaleResponse) {
		return nil
	}
	return err
}

// fetch runs one page query outside the lock and merges the result under it.
func (s *Service) fetch(ctx context.Context, token uint64, f domain.Filter, cursor domain.Cursor) error {
	page, err := s.deps.Source.Query(ctx, f, s.pageSize, cursor)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil || s.sess.token != token {
		// A newer session superseded this fetch while it was in flight.
		s.staleDrops++
		s.log.Debug("stale response discarded", "token", token, "current", s.token)
		return domain.ErrStaleResponse
	}
	s.inFlight = false

	if err != nil {
		s.state = StateError
		s.lastErr = err
		if domain.IsRetryable(err) {
			s.notes.push("error", "loading findings failed, retry available")
		}
		s.log.Error("page fetch failed", "cursor", string(cursor), "err", err)
		return err
	}

	kept := s.sess.accept(page)
	if s.sess.hasMore {
		s.state = StateReady
	} else {
		s.state = StateExhausted
	}
	s.rematerializeLocked()
	s.log.Debug("page merged", "token", token, "kept", kept, "loaded", s.sess.loaded(), "has_more", s.sess.hasMore)
	return nil
}

// SetVerdictFilter applies the client-only verdict filter and recomputes the
// view from the pages already loaded. No server round-trip.
func (s *Service) SetVerdictFilter(vf VerdictFilter) error {
	if !vf.Valid() {
		return &domain.ValidationError{Field: "verdict", Reason: fmt.Sprintf("unknown verdict filter %q", vf)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vf = vf
	s.rematerializeLocked()
	return nil
}

// RefreshPipelines reloads the pipeline collection for a product and rebuilds
// the verdict index in full. Summaries are ordered oldest first so that
// last-write-wins by position equals last-write-wins by creation time.
func (s *Service) RefreshPipelines(ctx context.Context, productID int64) error {
	if s.deps.Pipelines == nil {
		return fmt.Errorf("pipeline listing not configured")
	}
	summaries, err := s.deps.Pipelines.List(ctx, productID, "")
	if err != nil {
		return err
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Created.Before(summaries[j].Created)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.idx = BuildIndex(summaries)
	s.rematerializeLocked()
	s.log.Debug("verdict index rebuilt", "pipelines", len(summaries), "verdicts", s.idx.Len(), "skipped", s.idx.Skipped())
	return nil
}

// rematerializeLocked recomputes the view; caller holds mu.
func (s *Service) rematerializeLocked() {
	if s.sess == nil {
		s.view = nil
		return
	}
	s.view = Materialize(s.sess.pages, s.idx, s.deps.Products, s.vf)
}

// View returns a snapshot of the materialized view and session state.
func (s *Service) View() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Items:         append([]domain.Enriched(nil), s.view...),
		State:         s.state,
		SessionToken:  s.token,
		VerdictFilter: s.vf,
	}
	if s.sess != nil {
		snap.HasMore = s.sess.hasMore
		snap.Loaded = s.sess.loaded()
		snap.Total = s.sess.total
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

// Item addresses a single row of the materialized view by its stable index
// (supports reveal-line / scroll-to-item). Indices never shift backwards
// within a session.
func (s *Service) Item(i int) (domain.Enriched, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.view) {
		return domain.Enriched{}, false
	}
	return s.view[i], true
}

// ExportCSV writes the currently materialized view to w. An empty view is a
// user-visible, non-fatal condition: nothing is written.
func (s *Service) ExportCSV(w io.Writer) error {
	s.mu.Lock()
	view := append([]domain.Enriched(nil), s.view...)
	s.mu.Unlock()

	if err := ExportCSV(view, w); err != nil {
		if err == domain.ErrEmptyExport {
			s.notes.push("info", "export skipped: no findings loaded")
		}
		return err
	}
	return nil
}

// SetFindingActive delegates the status toggle to the mutation collaborator.
// On success the accumulated copy of the finding is refreshed so the view
// re-renders with the collaborator's authoritative state.
func (s *Service) SetFindingActive(ctx context.Context, id domain.FindingID, active bool) (*domain.Finding, error) {
	if s.deps.Mutator == nil {
		return nil, fmt.Errorf("mutations not configured")
	}
	updated, err := s.deps.Mutator.SetActive(ctx, id, active)
	if err != nil {
		s.notes.push("error", fmt.Sprintf("could not update finding %d", id))
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess != nil {
		for pi, page := range s.sess.pages {
			for fi, f := range page {
				if f.ID == updated.ID {
					s.sess.pages[pi][fi] = *updated
				}
			}
		}
		s.rematerializeLocked()
	}
	return updated, nil
}

// AddNote delegates note creation to the mutation collaborator.
func (s *Service) AddNote(ctx context.Context, id domain.FindingID, entry string) (*domain.Note, error) {
	if s.deps.Mutator == nil {
		return nil, fmt.Errorf("mutations not configured")
	}
	note, err := s.deps.Mutator.AddNote(ctx, id, entry)
	if err != nil {
		s.notes.push("error", fmt.Sprintf("could not add note to finding %d", id))
		return nil, err
	}
	return note, nil
}

// ExportAIResults triggers the upstream AI-results export job for a pipeline.
func (s *Service) ExportAIResults(ctx context.Context, id pipelines.PipelineID) (*pipelines.JobHandle, error) {
	if s.deps.Exporter == nil {
		return nil, fmt.Errorf("ai export not configured")
	}
	job, err := s.deps.Exporter.ExportAIResults(ctx, id)
	if err != nil {
		s.notes.push("error", fmt.Sprintf("ai export failed for pipeline %s", id))
		return nil, err
	}
	return job, nil
}

// GetSnippet proxies the snippet collaborator.
func (s *Service) GetSnippet(ctx context.Context, versionRef, filePath string, line int) (*domain.Snippet, error) {
	if s.deps.Snippets == nil {
		return nil, fmt.Errorf("snippets not configured")
	}
	return s.deps.Snippets.GetSnippet(ctx, versionRef, filePath, line)
}

// Notifications drains the transient notification backlog.
func (s *Service) Notifications() []Notification {
	return s.notes.drain()
}

// StaleDrops returns how many in-flight results were discarded by the
// session-token guard.
func (s *Service) StaleDrops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staleDrops
}
