package findings

import "context"

// Source port (interface untuk retrieval dari server yang terfilter).
// Implementations must guarantee a total order (ordering key + id tie-break)
// so that repeated queries with the same cursor return the same page.
type Source interface {
	Query(ctx context.Context, f Filter, pageSize int, cursor Cursor) (Page, error)
}

// ProductLookup resolves a product id to its display name. Implementations
// are expected to answer from local state (a cache warmed elsewhere); unknown
// products resolve to the empty string.
type ProductLookup interface {
	ProductName(id int64) string
}

// Mutator port: write commands delegated to the upstream collaborator.
// Mutations are independent of retrieval sessions and never touch the
// materialized view directly.
type Mutator interface {
	SetActive(ctx context.Context, id FindingID, active bool) (*Finding, error)
	AddNote(ctx context.Context, id FindingID, entry string) (*Note, error)
}

// SnippetProvider port (consumed, not implemented here beyond the HTTP proxy).
type SnippetProvider interface {
	GetSnippet(ctx context.Context, versionRef, filePath string, line int) (*Snippet, error)
}
