package upstream

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	domain "github.com/altsecops/findings-console/internal/domain/findings"
)

// Cursor encoding for the HTTP source: the byte offset into the filtered
// result set, as decimal text. The backend orders results by the requested
// key with an id tie-break, so the same offset always yields the same page.

type findingDTO struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	Severity   string   `json:"severity"`
	Active     bool     `json:"active"`
	ProductID  int64    `json:"product_id"`
	FilePath   string   `json:"file_path"`
	Line       int      `json:"line"`
	RiskStates []string `json:"risk_states"`
	Tags       []string `json:"tags"`
	CWE        int      `json:"cwe"`
	Date       string   `json:"date"`
}

type findingListDTO struct {
	Count   int          `json:"count"`
	Next    string       `json:"next"`
	Results []findingDTO `json:"results"`
}

var _ domain.Source = (*Client)(nil)

// Query fetches one page of findings under the server-side filter.
func (c *Client) Query(ctx context.Context, f domain.Filter, pageSize int, cursor domain.Cursor) (domain.Page, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(string(cursor))
		if err != nil || n < 0 {
			return domain.Page{}, &domain.ValidationError{Field: "cursor", Reason: "malformed cursor"}
		}
		offset = n
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("ordering", string(f.OrderingOrDefault()))
	if f.ProductID > 0 {
		q.Set("product_id", strconv.FormatInt(f.ProductID, 10))
	}
	if f.Severity != "" {
		q.Set("severity", string(f.Severity))
	}
	if f.StatusEnabled != nil {
		q.Set("active", strconv.FormatBool(*f.StatusEnabled))
	}
	if len(f.RiskStates) > 0 {
		states := make([]string, 0, len(f.RiskStates))
		for _, rs := range f.RiskStates {
			states = append(states, string(rs))
		}
		q.Set("risk_states", strings.Join(states, ","))
	}
	if len(f.CWEs) > 0 {
		cwes := make([]string, 0, len(f.CWEs))
		for _, cwe := range f.CWEs {
			cwes = append(cwes, strconv.Itoa(cwe))
		}
		q.Set("cwe", strings.Join(cwes, ","))
	}
	if len(f.Tags) > 0 {
		q.Set("tags", strings.Join(f.Tags, ","))
	}

	var list findingListDTO
	if err := c.get(ctx, "/findings", q, &list); err != nil {
		return domain.Page{}, err
	}

	items := make([]domain.Finding, 0, len(list.Results))
	for _, dto := range list.Results {
		items = append(items, dto.toDomain())
	}

	next := offset + len(items)
	page := domain.Page{
		Items:   items,
		Total:   list.Count,
		HasMore: next < list.Count && len(items) > 0,
	}
	if page.HasMore {
		page.NextCursor = domain.Cursor(strconv.Itoa(next))
	}
	return page, nil
}

func (d findingDTO) toDomain() domain.Finding {
	f := domain.Finding{
		ID:        domain.FindingID(d.ID),
		Title:     d.Title,
		Severity:  domain.Severity(d.Severity),
		Active:    d.Active,
		ProductID: d.ProductID,
		FilePath:  d.FilePath,
		Line:      d.Line,
		Tags:      d.Tags,
		CWE:       d.CWE,
	}
	for _, rs := range d.RiskStates {
		f.RiskStates = append(f.RiskStates, domain.RiskState(rs))
	}
	if d.Date != "" {
		if t, err := time.Parse("2006-01-02", d.Date); err == nil {
			f.Date = &t
		} else if t, err := time.Parse(time.RFC3339, d.Date); err == nil {
			f.Date = &t
		}
	}
	return f
}
