// Package engine runs the pair arbitrage cycle against an exchange: it reads
// positions and books, de-risks near-limit inventory, evaluates every
// configured pair and submits the resulting orders.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cyrustjj/optiver-trading-challenge/internal/arbitrage"
	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

// Bus channels and streams the engine publishes on.
const (
	ChannelDecision = "ch:decision"
	ChannelCycle    = "ch:cycle"
	StreamDecisions = "stream:decisions"
)

// Notification event types.
const (
	EventDeRisk        = "derisk"
	EventLimitBreach   = "limit_breach"
	EventSelfTrade     = "self_trade"
	EventExchangeError = "exchange_error"
	EventEngineStarted = "engine_started"
)

// DeRiskAction selects what the de-risk pass does with a near-limit
// instrument.
type DeRiskAction string

const (
	// DeRiskUnwind sends a fixed-size IOC order on the unwind side.
	DeRiskUnwind DeRiskAction = "unwind"
	// DeRiskHalt sends nothing and skips every pair touching the
	// instrument for the rest of the cycle.
	DeRiskHalt DeRiskAction = "halt"
)

// DeRiskConfig configures the pre-trade de-risk pass.
type DeRiskConfig struct {
	Threshold      int
	Size           int
	Action         DeRiskAction
	CheckSelfTrade bool
}

// Config holds the engine knobs.
type Config struct {
	Interval      time.Duration
	PositionLimit int
	Tick          decimal.Decimal
	DeRisk        DeRiskConfig
	PassiveSettle time.Duration
	LockKey       string
	LockTTL       time.Duration
}

// Metrics receives engine observations.
type Metrics interface {
	ObserveCycle(d time.Duration, err error)
	ObserveDecision(pair string, outcome domain.Outcome)
	ObserveOrder(o domain.Order)
	ObserveExchangeError(op string)
	SetPositions(positions map[string]int)
}

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Engine evaluates the configured pairs once per cycle. It keeps no decision
// state between cycles; the last report is retained for status endpoints
// only.
type Engine struct {
	exchange domain.Exchange
	pairs    []domain.PairConfig
	cfg      Config
	logger   *slog.Logger

	decisions domain.DecisionStore
	snapshots domain.SnapshotStore
	bus       domain.SignalBus
	books     domain.BookCache
	metrics   Metrics
	notifier  Notifier
	locks     domain.LockManager

	mu   sync.RWMutex
	last *domain.CycleReport
	now  func() time.Time
}

// New creates an Engine trading pairs on exchange.
func New(exchange domain.Exchange, pairs []domain.PairConfig, cfg Config, logger *slog.Logger) *Engine {
	if cfg.Tick.IsZero() {
		cfg.Tick = arbitrage.DefaultTick
	}
	if cfg.DeRisk.Action == "" {
		cfg.DeRisk.Action = DeRiskUnwind
	}
	return &Engine{
		exchange: exchange,
		pairs:    pairs,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "engine")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetJournal enables decision and position snapshot recording.
func (e *Engine) SetJournal(decisions domain.DecisionStore, snapshots domain.SnapshotStore) {
	e.decisions = decisions
	e.snapshots = snapshots
}

// SetBus enables publishing decisions and cycle reports.
func (e *Engine) SetBus(bus domain.SignalBus) { e.bus = bus }

// SetBookCache enables caching the top of every fetched book.
func (e *Engine) SetBookCache(c domain.BookCache) { e.books = c }

// SetMetrics enables metrics collection.
func (e *Engine) SetMetrics(m Metrics) { e.metrics = m }

// SetNotifier enables operator alerts.
func (e *Engine) SetNotifier(n Notifier) { e.notifier = n }

// SetLockManager makes Run hold a lease for the whole session so only one
// engine trades the account.
func (e *Engine) SetLockManager(l domain.LockManager) { e.locks = l }

// Pairs returns the configured pairs.
func (e *Engine) Pairs() []domain.PairConfig { return e.pairs }

// LastReport returns the most recent cycle report, if any.
func (e *Engine) LastReport() (domain.CycleReport, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil {
		return domain.CycleReport{}, false
	}
	return *e.last, true
}

// cycle carries the per-cycle working state. It is discarded when the cycle
// ends.
type cycle struct {
	report    *domain.CycleReport
	positions map[string]int
	halted    map[string]bool
	// quoted maps an instrument to the pair that rested passive quotes on it
	// in this cycle.
	quoted map[string]string
}

// RunCycle executes one full cycle. Exchange failures abort the cycle and are
// returned; suppressed or skipped pairs are recorded, not returned.
func (e *Engine) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	start := e.now()
	report := &domain.CycleReport{CycleID: uuid.NewString(), StartedAt: start}
	c := &cycle{report: report, halted: map[string]bool{}, quoted: map[string]string{}}

	err := e.runCycle(ctx, c)

	report.CompletedAt = e.now()
	if err != nil {
		report.Err = err.Error()
	}
	e.mu.Lock()
	e.last = report
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.ObserveCycle(report.CompletedAt.Sub(start), err)
	}
	e.publish(ctx, ChannelCycle, report)
	return *report, err
}

func (e *Engine) runCycle(ctx context.Context, c *cycle) error {
	log := e.logger.With(slog.String("cycle_id", c.report.CycleID))
	log.DebugContext(ctx, "cycle started")

	positions, err := e.readAccount(ctx, c)
	if err != nil {
		return err
	}
	c.positions = positions

	sent, err := e.deRisk(ctx, c)
	if err != nil {
		return err
	}
	if sent > 0 {
		// Re-read so sizing and limit checks see the unwound inventory.
		refreshed, err := e.exchange.GetPositions(ctx)
		if err != nil {
			e.exchangeError(ctx, "get_positions", err)
			return fmt.Errorf("engine: refresh positions: %w", err)
		}
		c.positions = refreshed
	}

	params := arbitrage.Params{PositionLimit: e.cfg.PositionLimit, Tick: e.cfg.Tick}
	for _, pair := range e.pairs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.evaluatePair(ctx, c, pair, params); err != nil {
			return err
		}
	}
	log.DebugContext(ctx, "cycle completed", slog.Int("orders", c.report.OrdersSent()))
	return nil
}

// readAccount fetches positions and PnL, logs them and stores the snapshot.
func (e *Engine) readAccount(ctx context.Context, c *cycle) (map[string]int, error) {
	positions, err := e.exchange.GetPositions(ctx)
	if err != nil {
		e.exchangeError(ctx, "get_positions", err)
		return nil, fmt.Errorf("engine: get positions: %w", err)
	}
	pnl, err := e.exchange.GetPnL(ctx)
	if err != nil {
		e.exchangeError(ctx, "get_pnl", err)
		return nil, fmt.Errorf("engine: get pnl: %w", err)
	}

	snap := domain.PositionSnapshot{
		CycleID:   c.report.CycleID,
		Positions: positions,
		PnL:       pnl,
		TakenAt:   e.now(),
	}
	c.report.Snapshot = snap
	e.logPositions(ctx, snap)

	if e.metrics != nil {
		e.metrics.SetPositions(positions)
	}
	if e.snapshots != nil {
		if err := e.snapshots.Save(ctx, snap); err != nil {
			e.logger.WarnContext(ctx, "snapshot save failed", slog.String("error", err.Error()))
		}
	}
	return positions, nil
}

// logPositions logs every pair instrument and any other non-zero position.
func (e *Engine) logPositions(ctx context.Context, snap domain.PositionSnapshot) {
	display := map[string]bool{}
	for _, p := range e.pairs {
		display[p.Primary] = true
		display[p.Secondary] = true
	}
	ids := make([]string, 0, len(snap.Positions))
	for id, pos := range snap.Positions {
		if display[id] || pos != 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	attrs := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		attrs = append(attrs, slog.Int(id, snap.Positions[id]))
	}
	args := []any{slog.Group("positions", attrs...)}
	if snap.PnL.Valid {
		args = append(args, slog.String("pnl", snap.PnL.Decimal.StringFixed(2)))
	}
	e.logger.InfoContext(ctx, "account", args...)
}

// evaluatePair fetches the pair's market state, evaluates it and executes
// the plan.
func (e *Engine) evaluatePair(ctx context.Context, c *cycle, pair domain.PairConfig, params arbitrage.Params) error {
	if c.halted[pair.Primary] || c.halted[pair.Secondary] {
		e.record(ctx, c, domain.Decision{
			Pair:    pair.Name,
			Outcome: domain.OutcomeHalted,
			Reason:  "position near limit, removing trades on pair for this cycle",
		})
		return nil
	}

	snap := arbitrage.Snapshot{
		Positions:   c.positions,
		Books:       make(map[string]domain.Book, 2),
		Outstanding: make(map[string]map[string]domain.OutstandingOrder, 2),
	}
	twoSided := true
	for _, id := range pair.Instruments() {
		book, err := e.exchange.GetLastPriceBook(ctx, id)
		if err != nil {
			e.exchangeError(ctx, "get_book", err)
			return fmt.Errorf("engine: get book %s: %w", id, err)
		}
		snap.Books[id] = book
		e.cacheBook(ctx, book)
		twoSided = twoSided && book.TwoSided()
	}
	if twoSided {
		for _, id := range pair.Instruments() {
			orders, err := e.exchange.GetOutstandingOrders(ctx, id)
			if err != nil {
				e.exchangeError(ctx, "get_outstanding_orders", err)
				return fmt.Errorf("engine: get outstanding orders %s: %w", id, err)
			}
			snap.Outstanding[id] = orders
		}
	}

	plan := arbitrage.Evaluate(pair, snap, params)

	if plan.Outcome == domain.OutcomeEmitted && len(plan.CancelFirst) > 0 {
		for _, id := range plan.CancelFirst {
			if owner, ok := c.quoted[id]; ok && owner != pair.Name {
				plan.Outcome = domain.OutcomeSharedInstrument
				plan.Reason = fmt.Sprintf("%s already quoted by pair %s this cycle", id, owner)
				plan.Withheld, plan.Orders = plan.Orders, nil
				break
			}
		}
	}

	d := domain.Decision{
		Pair:        pair.Name,
		Outcome:     plan.Outcome,
		Reason:      plan.Reason,
		Opportunity: plan.Opportunity.Kind,
		Direction:   plan.Opportunity.Direction,
		Orders:      plan.Orders,
	}
	if plan.Outcome.Suppressed() || plan.Outcome == domain.OutcomeSharedInstrument {
		d.Orders = plan.Withheld
	}

	if plan.Outcome == domain.OutcomeEmitted {
		if sent, err := e.execute(ctx, plan); err != nil {
			d.Outcome = domain.OutcomeExchangeError
			d.Orders = sent
			d.Reason = fmt.Sprintf("%d of %d planned orders sent (%s): %v", len(sent), len(plan.Orders), describeOrders(plan.Orders), err)
			e.record(ctx, c, d)
			return err
		}
		if plan.Opportunity.Kind == domain.OpportunityPassive {
			for _, id := range pair.Instruments() {
				c.quoted[id] = pair.Name
			}
		}
	}
	e.record(ctx, c, d)
	return nil
}

// execute cancels resting orders where the plan asks for it, then inserts
// every order in plan order. It stops at the first failure and returns the
// orders the exchange accepted up to that point.
func (e *Engine) execute(ctx context.Context, plan arbitrage.Plan) ([]domain.Order, error) {
	for _, id := range plan.CancelFirst {
		if err := e.exchange.DeleteOrders(ctx, id); err != nil {
			e.exchangeError(ctx, "delete_orders", err)
			return nil, fmt.Errorf("engine: delete orders %s: %w", id, err)
		}
	}
	sent := make([]domain.Order, 0, len(plan.Orders))
	for _, o := range plan.Orders {
		if err := e.insert(ctx, o); err != nil {
			return sent, err
		}
		sent = append(sent, o)
	}
	return sent, nil
}

// insert sends one order. A refusal reported through InsertResult is an
// error like a failed call.
func (e *Engine) insert(ctx context.Context, o domain.Order) error {
	res, err := e.exchange.InsertOrder(ctx, o)
	if err == nil && !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "no reason given"
		}
		err = fmt.Errorf("%w: order rejected: %s", domain.ErrExchange, msg)
	}
	if err != nil {
		e.exchangeError(ctx, "insert_order", err)
		return fmt.Errorf("engine: insert order %s: %w", o, err)
	}
	e.logger.InfoContext(ctx, "order inserted",
		slog.String("instrument", o.InstrumentID),
		slog.String("side", string(o.Side)),
		slog.Int("volume", o.Volume),
		slog.String("price", o.Price.StringFixed(2)),
		slog.String("type", string(o.Type)),
		slog.String("order_id", res.OrderID),
	)
	if e.metrics != nil {
		e.metrics.ObserveOrder(o)
	}
	return nil
}

// record stamps, logs, journals and publishes a decision.
func (e *Engine) record(ctx context.Context, c *cycle, d domain.Decision) {
	d.ID = uuid.NewString()
	d.CycleID = c.report.CycleID
	d.CreatedAt = e.now()
	if d.Opportunity == "" {
		d.Opportunity = domain.OpportunityNone
	}
	c.report.Decisions = append(c.report.Decisions, d)

	attrs := []any{
		slog.String("cycle_id", d.CycleID),
		slog.String("outcome", string(d.Outcome)),
		slog.String("opportunity", string(d.Opportunity)),
	}
	if d.Pair != "" {
		attrs = append(attrs, slog.String("pair", d.Pair))
	}
	if d.Reason != "" {
		attrs = append(attrs, slog.String("reason", d.Reason))
	}
	switch {
	case d.Outcome.Suppressed(), d.Outcome == domain.OutcomeSharedInstrument, d.Outcome == domain.OutcomeHalted:
		e.logger.WarnContext(ctx, "orders withheld", attrs...)
	case d.Outcome == domain.OutcomeEmitted, d.Outcome == domain.OutcomeDeRisk:
		e.logger.InfoContext(ctx, "orders emitted", attrs...)
	case d.Outcome == domain.OutcomeExchangeError:
		e.logger.ErrorContext(ctx, "plan not fully sent", attrs...)
	default:
		e.logger.InfoContext(ctx, "pair skipped", attrs...)
	}

	if e.metrics != nil {
		e.metrics.ObserveDecision(d.Pair, d.Outcome)
	}
	if e.decisions != nil {
		if err := e.decisions.Record(ctx, d); err != nil {
			e.logger.WarnContext(ctx, "decision journal write failed", slog.String("error", err.Error()))
		}
	}
	e.publish(ctx, ChannelDecision, d)
	if e.bus != nil {
		if payload, err := json.Marshal(d); err == nil {
			if err := e.bus.StreamAppend(ctx, StreamDecisions, payload); err != nil {
				e.logger.WarnContext(ctx, "decision stream append failed", slog.String("error", err.Error()))
			}
		}
	}

	switch d.Outcome {
	case domain.OutcomeDeRisk:
		e.notify(ctx, EventDeRisk, "De-risk order sent", describe(d))
	case domain.OutcomeLimitBreach:
		e.notify(ctx, EventLimitBreach, "Orders withheld: position limit", describe(d))
	case domain.OutcomeSelfTrade, domain.OutcomeDeRiskSelfTrade:
		e.notify(ctx, EventSelfTrade, "Orders withheld: self-trade", describe(d))
	}
}

func describe(d domain.Decision) string {
	msg := d.Reason
	for _, o := range d.Orders {
		msg += "\n" + o.String()
	}
	return msg
}

func describeOrders(orders []domain.Order) string {
	parts := make([]string, len(orders))
	for i, o := range orders {
		parts[i] = o.String()
	}
	return strings.Join(parts, "; ")
}

func (e *Engine) publish(ctx context.Context, channel string, v any) {
	if e.bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		e.logger.WarnContext(ctx, "marshal bus payload failed", slog.String("error", err.Error()))
		return
	}
	if err := e.bus.Publish(ctx, channel, payload); err != nil {
		e.logger.WarnContext(ctx, "bus publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) cacheBook(ctx context.Context, book domain.Book) {
	if e.books == nil || !book.TwoSided() {
		return
	}
	if err := e.books.SetTop(ctx, book); err != nil {
		e.logger.DebugContext(ctx, "book cache write failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) notify(ctx context.Context, event, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, message); err != nil {
		e.logger.WarnContext(ctx, "notify failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

func (e *Engine) exchangeError(ctx context.Context, op string, err error) {
	if e.metrics != nil {
		e.metrics.ObserveExchangeError(op)
	}
	e.logger.ErrorContext(ctx, "exchange call failed", slog.String("op", op), slog.String("error", err.Error()))
}
