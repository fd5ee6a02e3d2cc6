package upstream

import (
	"context"
	"net/url"
	"strconv"

	"github.com/altsecops/findings-console/internal/domain/pipelines"
)

type pipelineListDTO struct {
	Count   int                 `json:"count"`
	Results []pipelines.Summary `json:"results"`
}

var _ pipelines.Lister = (*Client)(nil)

// List fetches pipeline summaries for a product, oldest first. The backend
// payload embeds response_from_ai verbatim, including the three verdict
// buckets.
func (c *Client) List(ctx context.Context, productID int64, status string) ([]pipelines.Summary, error) {
	q := url.Values{}
	q.Set("ordering", "created")
	if productID > 0 {
		q.Set("product_id", strconv.FormatInt(productID, 10))
	}
	if status != "" {
		q.Set("status", status)
	}

	var list pipelineListDTO
	if err := c.get(ctx, "/pipelines", q, &list); err != nil {
		return nil, err
	}
	return list.Results, nil
}

var _ pipelines.Exporter = (*Client)(nil)

// ExportAIResults triggers the asynchronous AI-results export job upstream.
func (c *Client) ExportAIResults(ctx context.Context, id pipelines.PipelineID) (*pipelines.JobHandle, error) {
	var job pipelines.JobHandle
	if err := c.do(ctx, "POST", "/pipelines/"+url.PathEscape(string(id))+"/export-ai-results", nil, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
