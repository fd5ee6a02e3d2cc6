package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"

	domain "github.com/altsecops/findings-console/internal/domain/findings"
)

// FindingSource reads the findings table directly, for deployments where the
// console sits next to the database instead of behind the HTTP API. It
// honors the same contract as the HTTP source: a total order per filter
// (ordering key + id tie-break) and offset cursors, so repeated fetches with
// the same cursor return the same page.
type FindingSource struct {
	db *sql.DB
}

func NewFindingSource(db *sql.DB) *FindingSource {
	return &FindingSource{db: db}
}

var _ domain.Source = (*FindingSource)(nil)

// severityRank orders Critical first; unknown values sort last.
const severityRank = `CASE severity
WHEN 'Critical' THEN 0
WHEN 'High' THEN 1
WHEN 'Medium' THEN 2
WHEN 'Low' THEN 3
WHEN 'Info' THEN 4
ELSE 5 END`

func (r *FindingSource) Query(ctx context.Context, f domain.Filter, pageSize int, cursor domain.Cursor) (domain.Page, error) {
	if pageSize <= 0 {
		pageSize = 25
	}
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(string(cursor))
		if err != nil || n < 0 {
			return domain.Page{}, &domain.ValidationError{Field: "cursor", Reason: "malformed cursor"}
		}
		offset = n
	}

	base := sq.Select("id", "title", "severity", "active", "product_id", "file_path", "line", "cwe", "date", "risk_states", "tags").
		From("findings")
	base = applyFilter(base, f)
	base = base.OrderBy(orderClause(f.OrderingOrDefault())...).
		Limit(uint64(pageSize)).
		Offset(uint64(offset))

	query, args, err := base.ToSql()
	if err != nil {
		return domain.Page{}, fmt.Errorf("building findings query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.Page{}, &domain.TransportError{Op: "mysql query findings", Err: err}
	}
	defer rows.Close()

	var items []domain.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return domain.Page{}, fmt.Errorf("scanning finding row: %w", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return domain.Page{}, &domain.TransportError{Op: "mysql iterate findings", Err: err}
	}

	total, err := r.count(ctx, f)
	if err != nil {
		return domain.Page{}, err
	}

	next := offset + len(items)
	page := domain.Page{
		Items:   items,
		Total:   total,
		HasMore: next < total && len(items) > 0,
	}
	if page.HasMore {
		page.NextCursor = domain.Cursor(strconv.Itoa(next))
	}
	return page, nil
}

func (r *FindingSource) count(ctx context.Context, f domain.Filter) (int, error) {
	base := applyFilter(sq.Select("COUNT(*)").From("findings"), f)
	query, args, err := base.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, &domain.TransportError{Op: "mysql count findings", Err: err}
	}
	return total, nil
}

func applyFilter(b sq.SelectBuilder, f domain.Filter) sq.SelectBuilder {
	if f.ProductID > 0 {
		b = b.Where(sq.Eq{"product_id": f.ProductID})
	}
	if f.Severity != "" {
		b = b.Where(sq.Eq{"severity": string(f.Severity)})
	}
	if f.StatusEnabled != nil {
		b = b.Where(sq.Eq{"active": *f.StatusEnabled})
	}
	if len(f.CWEs) > 0 {
		b = b.Where(sq.Eq{"cwe": f.CWEs})
	}
	// risk_states and tags are comma-joined read-model columns
	for _, rs := range f.RiskStates {
		b = b.Where("FIND_IN_SET(?, risk_states) > 0", string(rs))
	}
	for _, tag := range f.Tags {
		b = b.Where("FIND_IN_SET(?, tags) > 0", tag)
	}
	return b
}

func orderClause(o domain.Ordering) []string {
	switch o {
	case domain.OrderByDate:
		return []string{"date DESC", "id ASC"}
	case domain.OrderByTitle:
		return []string{"title ASC", "id ASC"}
	case domain.OrderByID:
		return []string{"id ASC"}
	default:
		return []string{severityRank + " ASC", "id ASC"}
	}
}

func scanFinding(rows *sql.Rows) (domain.Finding, error) {
	var (
		f          domain.Finding
		cwe        sql.NullInt64
		date       sql.NullTime
		riskStates sql.NullString
		tags       sql.NullString
	)
	if err := rows.Scan(
		&f.ID, &f.Title, &f.Severity, &f.Active, &f.ProductID,
		&f.FilePath, &f.Line, &cwe, &date, &riskStates, &tags,
	); err != nil {
		return domain.Finding{}, err
	}
	if cwe.Valid {
		f.CWE = int(cwe.Int64)
	}
	if date.Valid {
		d := date.Time
		f.Date = &d
	}
	f.RiskStates = splitRiskStates(riskStates.String)
	f.Tags = splitList(tags.String)
	return f, nil
}
