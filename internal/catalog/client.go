// Package catalog is the client side of the inventory catalog service
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"transaction-service/internal/graphql"
	"transaction-service/internal/models"
	"transaction-service/internal/util"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var (
	// ErrUnreachable wraps every failure to list the catalog
	ErrUnreachable = errors.New("catalog unreachable")
	// ErrStockUpdate wraps every failed stock adjustment
	ErrStockUpdate = errors.New("stock update rejected")
)

const listMedicinesQuery = `query Medicines {
  medicines { id name price stock category }
}`

const updateStockMutation = `mutation UpdateStock($id: ID!, $amount: Int!) {
  updateStock(id: $id, amount: $amount)
}`

// Client talks to the inventory catalog
type Client struct {
	gql          *graphql.Client
	serviceToken string
	logger       *zap.Logger
}

// NewClient creates a catalog client. serviceToken is used for stock
// mutations when the request context carries no caller token.
func NewClient(url string, timeout time.Duration, serviceToken string) *Client {
	return &Client{
		gql:          graphql.NewClient("catalog", url, timeout),
		serviceToken: serviceToken,
		logger:       util.GetLogger(),
	}
}

// ListAll returns a full snapshot of the catalog
func (c *Client) ListAll(ctx context.Context) ([]models.CatalogEntry, error) {
	ctx, span := util.StartSpan(ctx, "CatalogClient.ListAll")
	defer span.End()

	data, err := c.gql.Do(ctx, "medicines", listMedicinesQuery, nil, util.BearerToken(ctx))
	if err != nil {
		util.FailSpan(span, err)
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	raw := data.Get("medicines")
	if !raw.IsArray() {
		return nil, fmt.Errorf("%w: medicines is not a list", ErrUnreachable)
	}

	entries := make([]models.CatalogEntry, 0, len(raw.Array()))
	for _, m := range raw.Array() {
		entry, err := decodeEntry(m)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// AdjustStock applies a signed delta to one entry's stock. Negative deltas
// are sales, positive deltas are restocks or compensations.
func (c *Client) AdjustStock(ctx context.Context, catalogID string, delta int) error {
	ctx, span := util.StartSpan(ctx, "CatalogClient.AdjustStock")
	defer span.End()

	token := util.BearerToken(ctx)
	if token == "" {
		token = c.serviceToken
	}

	vars := map[string]interface{}{"id": catalogID, "amount": delta}
	data, err := c.gql.Do(ctx, "updateStock", updateStockMutation, vars, token)
	if err != nil {
		c.logger.Warn("Stock adjustment failed",
			zap.String("catalog_id", catalogID),
			zap.Int("delta", delta),
			zap.Error(err))
		util.FailSpan(span, err)
		return fmt.Errorf("%w: %v", ErrStockUpdate, err)
	}

	if status := data.Get("updateStock").String(); status == "" {
		return fmt.Errorf("%w: empty status for %s", ErrStockUpdate, catalogID)
	}

	return nil
}

func decodeEntry(m gjson.Result) (models.CatalogEntry, error) {
	price, err := decimal.NewFromString(m.Get("price").String())
	if err != nil {
		return models.CatalogEntry{}, fmt.Errorf("medicine %s has invalid price %q", m.Get("id").String(), m.Get("price").Raw)
	}
	if price.IsNegative() {
		return models.CatalogEntry{}, fmt.Errorf("medicine %s has negative price", m.Get("id").String())
	}

	return models.CatalogEntry{
		ID:          m.Get("id").String(),
		Name:        m.Get("name").String(),
		UnitPrice:   price,
		StockOnHand: int(m.Get("stock").Int()),
		Category:    m.Get("category").String(),
	}, nil
}
