package mysql

import (
	"context"
	"database/sql"
	"sync"

	domain "github.com/altsecops/findings-console/internal/domain/findings"
)

// ProductLookup caches product display names from the products table.
type ProductLookup struct {
	db *sql.DB

	mu    sync.RWMutex
	names map[int64]string
}

func NewProductLookup(db *sql.DB) *ProductLookup {
	return &ProductLookup{db: db, names: make(map[int64]string)}
}

var _ domain.ProductLookup = (*ProductLookup)(nil)

// Warm loads the full id → name mapping. Products are few; reload whenever
// the catalog changes.
func (p *ProductLookup) Warm(ctx context.Context) error {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name FROM products`)
	if err != nil {
		return err
	}
	defer rows.Close()

	names := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	p.names = names
	p.mu.Unlock()
	return nil
}

func (p *ProductLookup) ProductName(id int64) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.names[id]
}
