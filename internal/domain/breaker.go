package domain

import "time"

// CircuitBreaker tracks consecutive losing bets and enforces trading pauses.
type CircuitBreaker struct {
	ConsecutiveLosses int
	MaxLosses         int
	CooldownUntil     time.Time
	CooldownDuration  time.Duration
	TotalPnL          float64
	MaxDrawdown       float64 // negative dollar amount threshold
	Triggered         bool
	TriggeredReason   string
}

// IsOpen returns true if trading is allowed (circuit not triggered).
func (cb *CircuitBreaker) IsOpen() bool {
	if cb.Triggered {
		return false
	}
	if time.Now().Before(cb.CooldownUntil) {
		return false
	}
	return true
}

// RecordLoss records a losing bet and may trip the breaker.
// loss is negative (the realized profit of the position).
func (cb *CircuitBreaker) RecordLoss(loss float64) {
	cb.ConsecutiveLosses++
	cb.TotalPnL += loss
	if cb.MaxLosses > 0 && cb.ConsecutiveLosses >= cb.MaxLosses {
		cb.CooldownUntil = time.Now().Add(cb.CooldownDuration)
		cb.ConsecutiveLosses = 0
		cb.TriggeredReason = "consecutive losses"
	}
	if cb.MaxDrawdown < 0 && cb.TotalPnL < cb.MaxDrawdown {
		cb.Triggered = true
		cb.TriggeredReason = "max drawdown exceeded"
	}
}

// RecordWin resets the consecutive loss counter.
func (cb *CircuitBreaker) RecordWin(profit float64) {
	cb.ConsecutiveLosses = 0
	cb.TotalPnL += profit
}
