package gate

import (
	"context"
	"fmt"
	"time"

	"StockSentinel/internal/model"
)

// Result labels the outcome of one gating pass.
type Result string

const (
	Sent                Result = "sent"
	SendFailed          Result = "send_failed"
	SuppressedEmergency Result = "emergency_stop"
	SuppressedQuota     Result = "daily_quota"
	SuppressedHold      Result = "hold"
	SuppressedCooldown  Result = "cooldown"
	SuppressedDuplicate Result = "duplicate"
	SuppressedFlip      Result = "hysteresis"
	SuppressedWeak      Result = "low_confidence"
)

// previousDecisionTTL bounds how long gating remembers the last decision.
const previousDecisionTTL = 7 * 24 * time.Hour

// StateStore is the ephemeral per-instrument and process-wide gating state.
type StateStore interface {
	EmergencyStop(ctx context.Context) (bool, error)
	SetEmergencyStop(ctx context.Context, on bool) error
	DailyCount(ctx context.Context, day string) (int, error)
	IncrDailyCount(ctx context.Context, day string) error
	InCooldown(ctx context.Context, symbol string) (bool, error)
	SetCooldown(ctx context.Context, symbol string, ttl time.Duration) error
	PreviousDecision(ctx context.Context, symbol string) (*model.Decision, error)
	SavePreviousDecision(ctx context.Context, d *model.Decision, ttl time.Duration) error
}

// Notifier delivers decisions and plain alerts to the subscriber.
type Notifier interface {
	SendDecision(ctx context.Context, d *model.Decision) error
	SendAlert(ctx context.Context, text string) error
}

// AuditLogger records every delivery attempt durably.
type AuditLogger interface {
	LogNotification(ctx context.Context, d *model.Decision, delivered bool, detail string) error
}

// Gate decides whether a decision reaches the subscriber. It layers an
// emergency stop, a daily quota, a per-instrument cooldown, and hysteresis
// against action flapping.
type Gate struct {
	state      StateStore
	notifier   Notifier
	audit      AuditLogger
	thresholds model.Thresholds
	now        func() time.Time
}

// New builds a Gate. Zero-valued threshold fields fall back to defaults.
func New(state StateStore, notifier Notifier, audit AuditLogger, th model.Thresholds) *Gate {
	return &Gate{
		state:      state,
		notifier:   notifier,
		audit:      audit,
		thresholds: th.Merge(),
		now:        time.Now,
	}
}

// Process runs the gating state machine for one decision. A non-nil error
// means the gate could not consult its state; suppression is not an error.
func (g *Gate) Process(ctx context.Context, d *model.Decision) (Result, error) {
	stopped, err := g.state.EmergencyStop(ctx)
	if err != nil {
		return "", fmt.Errorf("gate: emergency stop check: %w", err)
	}
	if stopped {
		return SuppressedEmergency, nil
	}

	day := g.now().UTC().Format("2006-01-02")
	count, err := g.state.DailyCount(ctx, day)
	if err != nil {
		return "", fmt.Errorf("gate: daily count: %w", err)
	}
	if count >= g.thresholds.MaxNotificationsPerDay {
		// Trip the breaker once and tell the subscriber why it went quiet.
		if err := g.state.SetEmergencyStop(ctx, true); err != nil {
			return "", fmt.Errorf("gate: set emergency stop: %w", err)
		}
		if err := g.notifier.SendAlert(ctx, fmt.Sprintf(
			"daily notification limit reached (%d); emergency stop engaged", count)); err != nil {
			return SuppressedQuota, fmt.Errorf("gate: limit alert: %w", err)
		}
		return SuppressedQuota, nil
	}

	if d.Action == model.ActionHold {
		return SuppressedHold, nil
	}

	cooling, err := g.state.InCooldown(ctx, d.Symbol)
	if err != nil {
		return "", fmt.Errorf("gate: cooldown check: %w", err)
	}
	if cooling {
		return SuppressedCooldown, nil
	}

	prev, err := g.state.PreviousDecision(ctx, d.Symbol)
	if err != nil {
		return "", fmt.Errorf("gate: previous decision: %w", err)
	}

	switch d.Action {
	case model.ActionWatch:
		if prev != nil && prev.Action == model.ActionWatch {
			return SuppressedDuplicate, nil
		}
	case model.ActionBuy, model.ActionSell:
		if prev != nil && prev.Action == oppositeOf(d.Action) {
			// Flipping sides needs extra conviction.
			if d.Confidence <= 0.5+g.thresholds.HysteresisBuffer {
				return SuppressedFlip, nil
			}
		} else if d.Confidence < 0.5 {
			return SuppressedWeak, nil
		}
	}

	return g.deliver(ctx, d, day)
}

func (g *Gate) deliver(ctx context.Context, d *model.Decision, day string) (Result, error) {
	if err := g.notifier.SendDecision(ctx, d); err != nil {
		if logErr := g.audit.LogNotification(ctx, d, false, err.Error()); logErr != nil {
			return SendFailed, fmt.Errorf("gate: audit after send failure: %w", logErr)
		}
		return SendFailed, nil
	}

	cooldown := time.Duration(g.thresholds.CooldownHours) * time.Hour
	if err := g.state.SetCooldown(ctx, d.Symbol, cooldown); err != nil {
		return Sent, fmt.Errorf("gate: set cooldown: %w", err)
	}
	if err := g.state.IncrDailyCount(ctx, day); err != nil {
		return Sent, fmt.Errorf("gate: incr daily count: %w", err)
	}
	if err := g.state.SavePreviousDecision(ctx, d, previousDecisionTTL); err != nil {
		return Sent, fmt.Errorf("gate: save previous decision: %w", err)
	}
	if err := g.audit.LogNotification(ctx, d, true, string(d.Action)); err != nil {
		return Sent, fmt.Errorf("gate: audit: %w", err)
	}
	return Sent, nil
}

func oppositeOf(a model.Action) model.Action {
	if a == model.ActionBuy {
		return model.ActionSell
	}
	return model.ActionBuy
}
