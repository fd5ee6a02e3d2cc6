package upstream

import (
	"context"
	"net/http"
	"strconv"

	domain "github.com/altsecops/findings-console/internal/domain/findings"
)

var _ domain.Mutator = (*Client)(nil)

// SetActive toggles the active flag of a finding upstream and returns the
// authoritative record.
func (c *Client) SetActive(ctx context.Context, id domain.FindingID, active bool) (*domain.Finding, error) {
	body := map[string]bool{"active": active}
	var dto findingDTO
	path := "/findings/" + strconv.FormatInt(int64(id), 10)
	if err := c.do(ctx, http.MethodPatch, path, nil, body, &dto); err != nil {
		return nil, err
	}
	f := dto.toDomain()
	return &f, nil
}

// AddNote attaches a note to a finding upstream.
func (c *Client) AddNote(ctx context.Context, id domain.FindingID, entry string) (*domain.Note, error) {
	body := map[string]string{"entry": entry}
	var note domain.Note
	path := "/findings/" + strconv.FormatInt(int64(id), 10) + "/notes"
	if err := c.do(ctx, http.MethodPost, path, nil, body, &note); err != nil {
		return nil, err
	}
	return &note, nil
}
