package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/willyhc/futsim/fees"
)

// Side is the direction of a trade event.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Opposite returns the closing direction for this side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ReasonKind records why a trade fired. Active kinds are decisions the policy
// took; passive kinds are closures the engine or risk rules forced.
type ReasonKind int

const (
	ReasonSignal      ReasonKind = iota // policy-triggered entry
	ReasonGridFill                      // grid rung touched
	ReasonReversal                      // false-break reversal re-entry
	ReasonStopLoss                      // adverse move beyond threshold
	ReasonRepeatClose                   // consecutive same-direction entry auto-close
	ReasonLiquidation                   // forced liquidation
)

func (k ReasonKind) String() string {
	switch k {
	case ReasonSignal:
		return "signal"
	case ReasonGridFill:
		return "grid-fill"
	case ReasonReversal:
		return "reversal"
	case ReasonStopLoss:
		return "stop-loss"
	case ReasonRepeatClose:
		return "repeat-close"
	case ReasonLiquidation:
		return "liquidation"
	}
	return fmt.Sprintf("ReasonKind(%d)", int(k))
}

// Passive reports whether the trade was forced rather than decided.
func (k ReasonKind) Passive() bool {
	switch k {
	case ReasonStopLoss, ReasonRepeatClose, ReasonLiquidation:
		return true
	}
	return false
}

// Reason is the kind plus an optional free-form note for reporting.
type Reason struct {
	Kind ReasonKind
	Note string
}

// ErrBadEvent marks a trade event the engine refuses to fold.
var ErrBadEvent = errors.New("ledger: bad trade event")

// Event is one trade to fold into the book. Units are always positive;
// direction is carried by Side.
type Event struct {
	ID     string
	Time   time.Time
	Side   Side
	Price  decimal.Decimal
	Units  decimal.Decimal
	Class  fees.Class
	Reason Reason
}

// Validate rejects events the engine must never fold: zero or negative
// units, or a non-positive price.
func (e *Event) Validate() error {
	if !e.Units.IsPositive() {
		return fmt.Errorf("%w: units %s must be positive", ErrBadEvent, e.Units)
	}
	if !e.Price.IsPositive() {
		return fmt.Errorf("%w: price %s must be positive", ErrBadEvent, e.Price)
	}
	return nil
}

// SignedUnits returns the unit delta this event applies to the position.
func (e *Event) SignedUnits() decimal.Decimal {
	if e.Side == Buy {
		return e.Units
	}
	return e.Units.Neg()
}
