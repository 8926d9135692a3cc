package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Exchange is the venue collaborator. It owns positions, books and resting
// orders; the engine only reads snapshots of them and submits orders.
type Exchange interface {
	GetPositions(ctx context.Context) (map[string]int, error)
	// GetPnL returns an invalid NullDecimal when the venue has no PnL yet.
	GetPnL(ctx context.Context) (decimal.NullDecimal, error)
	// GetLastPriceBook returns an empty Book when the instrument has none.
	GetLastPriceBook(ctx context.Context, instrumentID string) (Book, error)
	GetOutstandingOrders(ctx context.Context, instrumentID string) (map[string]OutstandingOrder, error)
	InsertOrder(ctx context.Context, order Order) (InsertResult, error)
	// DeleteOrders cancels every resting order we have on the instrument.
	DeleteOrders(ctx context.Context, instrumentID string) error
}
