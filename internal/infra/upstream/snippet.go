package upstream

import (
	"context"
	"net/url"
	"strconv"

	domain "github.com/altsecops/findings-console/internal/domain/findings"
)

var _ domain.SnippetProvider = (*Client)(nil)

// GetSnippet fetches source context around a finding location from the
// snippet collaborator.
func (c *Client) GetSnippet(ctx context.Context, versionRef, filePath string, line int) (*domain.Snippet, error) {
	q := url.Values{}
	q.Set("version", versionRef)
	q.Set("file_path", filePath)
	q.Set("line", strconv.Itoa(line))

	var snip domain.Snippet
	if err := c.get(ctx, "/snippets", q, &snip); err != nil {
		return nil, err
	}
	return &snip, nil
}
