package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

// Paper is an in-memory venue. Books come from SetBook or, when a market
// source is configured, from that source on every GetLastPriceBook. Orders
// only ever trade against the top level of the book; nothing is routed to
// the source.
type Paper struct {
	market domain.Exchange
	limit  int
	logger *slog.Logger

	mu        sync.Mutex
	books     map[string]domain.Book
	positions map[string]int
	cash      decimal.Decimal
	traded    bool
	resting   map[string][]*restingOrder
	seq       int64
}

type restingOrder struct {
	domain.OutstandingOrder
	seq int64
}

// NewPaper creates a paper venue. market may be nil. A positive limit makes
// the venue reject orders that could take a position beyond it, as a real
// venue would. instruments are reported with a zero position from the start.
func NewPaper(market domain.Exchange, limit int, instruments []string, logger *slog.Logger) *Paper {
	p := &Paper{
		market:    market,
		limit:     limit,
		logger:    logger.With(slog.String("component", "paper_exchange")),
		books:     make(map[string]domain.Book),
		positions: make(map[string]int),
		resting:   make(map[string][]*restingOrder),
	}
	for _, id := range instruments {
		p.positions[id] = 0
	}
	return p
}

// SetBook replaces the book of an instrument and fills any resting order the
// new book crosses.
func (p *Paper) SetBook(book domain.Book) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setBookLocked(book)
}

func (p *Paper) setBookLocked(book domain.Book) {
	book.Bids = append([]domain.PriceLevel(nil), book.Bids...)
	book.Asks = append([]domain.PriceLevel(nil), book.Asks...)
	p.books[book.InstrumentID] = book
	p.matchResting(book.InstrumentID)
}

// GetPositions returns a copy of the positions.
func (p *Paper) GetPositions(context.Context) (map[string]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int, len(p.positions))
	for id, pos := range p.positions {
		out[id] = pos
	}
	return out, nil
}

// GetPnL marks every position at its book mid and adds the cash balance. It
// is invalid until the first fill.
func (p *Paper) GetPnL(context.Context) (decimal.NullDecimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.traded {
		return decimal.NullDecimal{}, nil
	}
	pnl := p.cash
	two := decimal.NewFromInt(2)
	for id, pos := range p.positions {
		if pos == 0 {
			continue
		}
		top, ok := p.books[id].Top()
		if !ok {
			continue
		}
		mid := top.Bid.Add(top.Ask).Div(two)
		pnl = pnl.Add(mid.Mul(decimal.NewFromInt(int64(pos))))
	}
	return decimal.NewNullDecimal(pnl), nil
}

// GetLastPriceBook returns the current book, refreshing it from the market
// source first when one is configured.
func (p *Paper) GetLastPriceBook(ctx context.Context, instrumentID string) (domain.Book, error) {
	if p.market != nil {
		book, err := p.market.GetLastPriceBook(ctx, instrumentID)
		if err != nil {
			return domain.Book{}, fmt.Errorf("paper: market data %s: %w", instrumentID, err)
		}
		book.InstrumentID = instrumentID
		p.mu.Lock()
		p.setBookLocked(book)
		p.mu.Unlock()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	book, ok := p.books[instrumentID]
	if !ok {
		return domain.Book{InstrumentID: instrumentID}, nil
	}
	book.Bids = append([]domain.PriceLevel(nil), book.Bids...)
	book.Asks = append([]domain.PriceLevel(nil), book.Asks...)
	return book, nil
}

// GetOutstandingOrders returns our resting orders on instrumentID.
func (p *Paper) GetOutstandingOrders(_ context.Context, instrumentID string) (map[string]domain.OutstandingOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]domain.OutstandingOrder, len(p.resting[instrumentID]))
	for _, r := range p.resting[instrumentID] {
		out[r.OrderID] = r.OutstandingOrder
	}
	return out, nil
}

// InsertOrder fills what it can against the top level. IOC remainders are
// dropped; limit remainders rest.
func (p *Paper) InsertOrder(_ context.Context, order domain.Order) (domain.InsertResult, error) {
	if !order.Side.Valid() {
		return domain.InsertResult{}, fmt.Errorf("paper: insert order: %w: %q", domain.ErrInvalidSide, order.Side)
	}
	if !order.Type.Valid() || order.Volume <= 0 {
		return domain.InsertResult{}, fmt.Errorf("paper: insert order %s: %w", order, domain.ErrInvalidOrder)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.limit > 0 && p.wouldBreach(order) {
		return domain.InsertResult{Success: false, Message: "order could breach position limit"}, nil
	}

	p.seq++
	id := uuid.NewString()
	filled := p.fillAgainstBook(order.InstrumentID, order.Side, order.Price, order.Volume)
	remaining := order.Volume - filled

	if remaining > 0 && order.Type == domain.OrderTypeLimit {
		p.resting[order.InstrumentID] = append(p.resting[order.InstrumentID], &restingOrder{
			OutstandingOrder: domain.OutstandingOrder{
				OrderID:      id,
				InstrumentID: order.InstrumentID,
				Side:         order.Side,
				Price:        order.Price,
				Volume:       remaining,
			},
			seq: p.seq,
		})
	}

	p.logger.Debug("paper order",
		slog.String("order_id", id),
		slog.String("order", order.String()),
		slog.Int("filled", filled),
	)
	return domain.InsertResult{OrderID: id, Success: true}, nil
}

// DeleteOrders drops every resting order on instrumentID.
func (p *Paper) DeleteOrders(_ context.Context, instrumentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.resting, instrumentID)
	return nil
}

// wouldBreach counts the order plus every same-side resting order as if all
// of them filled.
func (p *Paper) wouldBreach(order domain.Order) bool {
	exposure := order.Volume
	for _, r := range p.resting[order.InstrumentID] {
		if r.Side == order.Side {
			exposure += r.Volume
		}
	}
	pos := p.positions[order.InstrumentID]
	if order.Side == domain.SideBid {
		return pos+exposure > p.limit
	}
	return pos-exposure < -p.limit
}

// fillAgainstBook trades up to volume lots against the opposite top level if
// price crosses it, consuming the level. It returns the filled volume.
func (p *Paper) fillAgainstBook(instrumentID string, side domain.Side, price decimal.Decimal, volume int) int {
	book := p.books[instrumentID]
	levels := &book.Asks
	if side == domain.SideAsk {
		levels = &book.Bids
	}
	if len(*levels) == 0 {
		return 0
	}
	top := (*levels)[0]
	crosses := (side == domain.SideBid && top.Price.LessThanOrEqual(price)) ||
		(side == domain.SideAsk && top.Price.GreaterThanOrEqual(price))
	if !crosses {
		return 0
	}

	qty := volume
	if top.Volume < qty {
		qty = top.Volume
	}
	if qty == top.Volume {
		*levels = (*levels)[1:]
	} else {
		(*levels)[0].Volume -= qty
	}
	p.books[instrumentID] = book
	p.applyFill(instrumentID, side, top.Price, qty)
	return qty
}

func (p *Paper) applyFill(instrumentID string, side domain.Side, price decimal.Decimal, qty int) {
	if qty <= 0 {
		return
	}
	notional := price.Mul(decimal.NewFromInt(int64(qty)))
	if side == domain.SideBid {
		p.positions[instrumentID] += qty
		p.cash = p.cash.Sub(notional)
	} else {
		p.positions[instrumentID] -= qty
		p.cash = p.cash.Add(notional)
	}
	p.traded = true
}

// matchResting fills resting orders, oldest first, that the current book
// crosses.
func (p *Paper) matchResting(instrumentID string) {
	orders := p.resting[instrumentID]
	if len(orders) == 0 {
		return
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].seq < orders[j].seq })

	kept := orders[:0]
	for _, r := range orders {
		r.Volume -= p.fillAgainstBook(instrumentID, r.Side, r.Price, r.Volume)
		if r.Volume > 0 {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		delete(p.resting, instrumentID)
		return
	}
	p.resting[instrumentID] = kept
}

var _ domain.Exchange = (*Paper)(nil)
