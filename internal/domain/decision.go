package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is what the engine did with a pair (or a de-risk candidate) in one
// cycle.
type Outcome string

const (
	OutcomeEmitted           Outcome = "emitted"
	OutcomeNoOpportunity     Outcome = "no_opportunity"
	OutcomeMissingMarketData Outcome = "skipped_missing_data"
	OutcomeLimitBreach       Outcome = "suppressed_limit"
	OutcomeSelfTrade         Outcome = "suppressed_self_trade"
	OutcomeHalted            Outcome = "skipped_near_limit"
	OutcomeSharedInstrument  Outcome = "skipped_shared_instrument"
	OutcomeDeRisk            Outcome = "derisk"
	OutcomeDeRiskSelfTrade   Outcome = "derisk_suppressed_self_trade"
	// OutcomeExchangeError marks a plan the exchange failed or refused part
	// way; Orders holds only what was accepted.
	OutcomeExchangeError     Outcome = "exchange_error"
)

// Suppressed reports whether orders were planned but withheld by a guard.
func (o Outcome) Suppressed() bool {
	return o == OutcomeLimitBreach || o == OutcomeSelfTrade || o == OutcomeDeRiskSelfTrade
}

// Decision is the journal record of one evaluation. Orders holds what was
// sent (or, for suppressed outcomes, what would have been sent).
type Decision struct {
	ID          string          `json:"id"`
	CycleID     string          `json:"cycle_id"`
	Pair        string          `json:"pair,omitempty"`
	Outcome     Outcome         `json:"outcome"`
	Reason      string          `json:"reason,omitempty"`
	Opportunity OpportunityKind `json:"opportunity"`
	Direction   Direction       `json:"direction,omitempty"`
	Orders      []Order         `json:"orders"`
	CreatedAt   time.Time       `json:"created_at"`
}

// PositionSnapshot is the account state read at the start of a cycle.
type PositionSnapshot struct {
	CycleID   string              `json:"cycle_id"`
	Positions map[string]int      `json:"positions"`
	PnL       decimal.NullDecimal `json:"pnl"`
	TakenAt   time.Time           `json:"taken_at"`
}

// CycleReport summarises one engine cycle.
type CycleReport struct {
	CycleID     string           `json:"cycle_id"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
	Snapshot    PositionSnapshot `json:"snapshot"`
	Decisions   []Decision       `json:"decisions"`
	Halted      []string         `json:"halted,omitempty"`
	Err         string           `json:"error,omitempty"`
}

// OrdersSent counts orders the exchange accepted in the cycle, de-risk
// orders and the accepted part of a failed plan included.
func (r CycleReport) OrdersSent() int {
	n := 0
	for _, d := range r.Decisions {
		if d.Outcome == OutcomeEmitted || d.Outcome == OutcomeDeRisk || d.Outcome == OutcomeExchangeError {
			n += len(d.Orders)
		}
	}
	return n
}

// PlacedPassive reports whether any pair rested passive quotes this cycle.
func (r CycleReport) PlacedPassive() bool {
	for _, d := range r.Decisions {
		if d.Outcome == OutcomeEmitted && d.Opportunity == OpportunityPassive {
			return true
		}
	}
	return false
}
