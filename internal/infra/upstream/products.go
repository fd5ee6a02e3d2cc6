package upstream

import (
	"context"
	"net/url"

	domain "github.com/altsecops/findings-console/internal/domain/findings"
)

type productDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type productListDTO struct {
	Count   int          `json:"count"`
	Results []productDTO `json:"results"`
}

var _ domain.ProductLookup = (*Client)(nil)

// WarmProducts loads the product display-name cache. Call it at startup and
// whenever the product collection is known to have changed; ProductName
// answers from the cache only.
func (c *Client) WarmProducts(ctx context.Context) error {
	var list productListDTO
	if err := c.get(ctx, "/products", url.Values{}, &list); err != nil {
		return err
	}
	names := make(map[int64]string, len(list.Results))
	for _, p := range list.Results {
		names[p.ID] = p.Name
	}
	c.mu.Lock()
	c.products = names
	c.mu.Unlock()
	return nil
}

// ProductName resolves a product id to its display name; "" when unknown.
func (c *Client) ProductName(id int64) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.products[id]
}
