package client

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is the catalog view of a purchasable item.
type Product struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category,omitempty"`
	Author      string          `json:"author,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Description string          `json:"description,omitempty"`
}

// ProductClient reads products from the catalog service.
type ProductClient struct {
	baseClient
}

func NewProductClient(cfg Config) *ProductClient {
	return &ProductClient{baseClient: newBaseClient("product-service", cfg)}
}

// GetProduct returns nil, nil when the product does not exist.
func (c *ProductClient) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	var p Product
	found, err := c.getJSON(ctx, fmt.Sprintf("/api/products/%d", productID), &p)
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}
