package triage

// State of the retrieval session driving the virtualized window.
type State string

const (
	StateIdle         State = "idle"
	StateLoadingFirst State = "loading_first"
	StateReady        State = "ready"
	StateLoadingNext  State = "loading_next"
	StateExhausted    State = "exhausted"
	// StateError is reachable from either loading state. Pages accumulated
	// before the failure stay visible; a retry reissues the same cursor.
	StateError State = "error"
)

// Loading reports whether a fetch is in flight for the session.
func (s State) Loading() bool {
	return s == StateLoadingFirst || s == StateLoadingNext
}

// DefaultLookahead is how close the rendered window may get to the end of
// loaded data before the next page is requested.
const DefaultLookahead = 3

// shouldPrefetch is the windowing transition rule: request the next page when
// the last visible index is within lookahead of the end of the materialized
// view, the session is Ready and the source reports more data. Anything in
// flight suppresses the trigger, so page N+1 is never requested before page N
// resolves.
func shouldPrefetch(lastVisible, viewLen, lookahead int, state State, hasMore bool) bool {
	if state != StateReady || !hasMore || viewLen == 0 {
		return false
	}
	return lastVisible >= viewLen-1-lookahead
}
