package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

// BookCache implements domain.BookCache. Each instrument's last top of book
// is a hash:
//
//	book:{instrumentID}  bid, ask, bid_volume, ask_volume, ts (unix nanos)
//
// Entries expire after ttl so a stopped engine does not leave stale quotes
// on dashboards.
type BookCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBookCache creates a BookCache. Zero ttl keeps entries forever.
func NewBookCache(c *Client, ttl time.Duration) *BookCache {
	return &BookCache{rdb: c.Underlying(), ttl: ttl}
}

func bookKey(instrumentID string) string { return "book:" + instrumentID }

// SetTop stores the best levels of book. One-sided books store the side
// they have.
func (bc *BookCache) SetTop(ctx context.Context, book domain.Book) error {
	fields := encodeTop(book)
	key := bookKey(book.InstrumentID)

	pipe := bc.rdb.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	if bc.ttl > 0 {
		pipe.Expire(ctx, key, bc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set top %s: %w", book.InstrumentID, err)
	}
	return nil
}

// GetTop returns the cached best bid/ask and when they were seen. It returns
// domain.ErrNotFound when nothing two-sided is cached.
func (bc *BookCache) GetTop(ctx context.Context, instrumentID string) (domain.TopOfBook, time.Time, error) {
	vals, err := bc.rdb.HGetAll(ctx, bookKey(instrumentID)).Result()
	if err != nil {
		return domain.TopOfBook{}, time.Time{}, fmt.Errorf("redis: get top %s: %w", instrumentID, err)
	}
	top, ts, err := decodeTop(vals)
	if err != nil {
		return domain.TopOfBook{}, time.Time{}, fmt.Errorf("redis: get top %s: %w", instrumentID, err)
	}
	return top, ts, nil
}

func encodeTop(book domain.Book) map[string]any {
	ts := book.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	fields := map[string]any{"ts": strconv.FormatInt(ts.UnixNano(), 10)}
	if lvl, ok := book.BestBid(); ok {
		fields["bid"] = lvl.Price.String()
		fields["bid_volume"] = strconv.Itoa(lvl.Volume)
	}
	if lvl, ok := book.BestAsk(); ok {
		fields["ask"] = lvl.Price.String()
		fields["ask_volume"] = strconv.Itoa(lvl.Volume)
	}
	return fields
}

func decodeTop(vals map[string]string) (domain.TopOfBook, time.Time, error) {
	bid, okBid := vals["bid"]
	ask, okAsk := vals["ask"]
	if !okBid || !okAsk {
		return domain.TopOfBook{}, time.Time{}, domain.ErrNotFound
	}

	var top domain.TopOfBook
	var err error
	if top.Bid, err = decimal.NewFromString(bid); err != nil {
		return domain.TopOfBook{}, time.Time{}, fmt.Errorf("parse bid %q: %w", bid, err)
	}
	if top.Ask, err = decimal.NewFromString(ask); err != nil {
		return domain.TopOfBook{}, time.Time{}, fmt.Errorf("parse ask %q: %w", ask, err)
	}

	var ts time.Time
	if nanos, err := strconv.ParseInt(vals["ts"], 10, 64); err == nil {
		ts = time.Unix(0, nanos).UTC()
	}
	return top, ts, nil
}

var _ domain.BookCache = (*BookCache)(nil)
