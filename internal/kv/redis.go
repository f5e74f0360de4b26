package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"StockSentinel/internal/model"
)

// Key layout. Gating state is ephemeral and lives entirely here; the
// tabular store never sees it.
const (
	keyEmergencyStop = "notify:stop"
	keyDailyPrefix   = "notify:count:"
	keyCooldownFmt   = "cooldown:%s"
	keyPrevFmt       = "decision:prev:%s"
	keyLatestFmt     = "decision:latest:%s"
	keyThresholds    = "config:thresholds"
)

// latestDecisionTTL bounds how long the computed-decision snapshot used for
// write-elision survives without refresh.
const latestDecisionTTL = 7 * 24 * time.Hour

// dailyCountTTL keeps yesterday's counter around long enough for audits
// across timezone boundaries.
const dailyCountTTL = 48 * time.Hour

// Client wraps a Redis connection with the engine's key conventions.
type Client struct {
	rdb *redis.Client
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	log.Printf("[INFO] redis connected: %s db=%d", addr, db)
	return &Client{rdb: rdb}, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// EmergencyStop reports whether the global kill switch is set.
func (c *Client) EmergencyStop(ctx context.Context) (bool, error) {
	v, err := c.rdb.Get(ctx, keyEmergencyStop).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get emergency stop: %w", err)
	}
	return v == "1", nil
}

// SetEmergencyStop sets or clears the global kill switch. No TTL: the stop
// persists until an operator clears it.
func (c *Client) SetEmergencyStop(ctx context.Context, on bool) error {
	if !on {
		if err := c.rdb.Del(ctx, keyEmergencyStop).Err(); err != nil {
			return fmt.Errorf("clear emergency stop: %w", err)
		}
		return nil
	}
	if err := c.rdb.Set(ctx, keyEmergencyStop, "1", 0).Err(); err != nil {
		return fmt.Errorf("set emergency stop: %w", err)
	}
	return nil
}

// DailyCount returns the notification count for one UTC calendar day.
func (c *Client) DailyCount(ctx context.Context, day string) (int, error) {
	v, err := c.rdb.Get(ctx, keyDailyPrefix+day).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get daily count %s: %w", day, err)
	}
	return v, nil
}

// IncrDailyCount bumps the day's counter and refreshes its expiry.
func (c *Client) IncrDailyCount(ctx context.Context, day string) error {
	key := keyDailyPrefix + day
	pipe := c.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, dailyCountTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("incr daily count %s: %w", day, err)
	}
	return nil
}

// InCooldown reports whether the instrument's cooldown key is still live.
func (c *Client) InCooldown(ctx context.Context, symbol string) (bool, error) {
	n, err := c.rdb.Exists(ctx, fmt.Sprintf(keyCooldownFmt, symbol)).Result()
	if err != nil {
		return false, fmt.Errorf("check cooldown %s: %w", symbol, err)
	}
	return n > 0, nil
}

// SetCooldown arms the instrument's cooldown for the given duration.
func (c *Client) SetCooldown(ctx context.Context, symbol string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, fmt.Sprintf(keyCooldownFmt, symbol), "1", ttl).Err(); err != nil {
		return fmt.Errorf("set cooldown %s: %w", symbol, err)
	}
	return nil
}

// PreviousDecision returns the last notified decision for the instrument,
// or nil when none is remembered.
func (c *Client) PreviousDecision(ctx context.Context, symbol string) (*model.Decision, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf(keyPrevFmt, symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get previous decision %s: %w", symbol, err)
	}
	var d model.Decision
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode previous decision %s: %w", symbol, err)
	}
	return &d, nil
}

// SavePreviousDecision stores the decision snapshot with a bounded TTL.
func (c *Client) SavePreviousDecision(ctx context.Context, d *model.Decision, ttl time.Duration) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode decision %s: %w", d.Symbol, err)
	}
	if err := c.rdb.Set(ctx, fmt.Sprintf(keyPrevFmt, d.Symbol), data, ttl).Err(); err != nil {
		return fmt.Errorf("save previous decision %s: %w", d.Symbol, err)
	}
	return nil
}

// LatestDecision returns the last computed decision for the instrument,
// whether or not it was ever notified, or nil when none is remembered.
func (c *Client) LatestDecision(ctx context.Context, symbol string) (*model.Decision, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf(keyLatestFmt, symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest decision %s: %w", symbol, err)
	}
	var d model.Decision
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode latest decision %s: %w", symbol, err)
	}
	return &d, nil
}

// SaveLatestDecision stores the computed-decision snapshot. Callers elide
// the write when the decision is unchanged.
func (c *Client) SaveLatestDecision(ctx context.Context, d *model.Decision) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode decision %s: %w", d.Symbol, err)
	}
	if err := c.rdb.Set(ctx, fmt.Sprintf(keyLatestFmt, d.Symbol), data, latestDecisionTTL).Err(); err != nil {
		return fmt.Errorf("save latest decision %s: %w", d.Symbol, err)
	}
	return nil
}

// Thresholds loads the tunable parameters, filling unset fields with
// defaults. A missing key yields pure defaults.
func (c *Client) Thresholds(ctx context.Context) (model.Thresholds, error) {
	data, err := c.rdb.Get(ctx, keyThresholds).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.DefaultThresholds(), nil
	}
	if err != nil {
		return model.Thresholds{}, fmt.Errorf("get thresholds: %w", err)
	}
	var th model.Thresholds
	if err := json.Unmarshal(data, &th); err != nil {
		return model.Thresholds{}, fmt.Errorf("decode thresholds: %w", err)
	}
	return th.Merge(), nil
}

// SaveThresholds stores the tunable parameters.
func (c *Client) SaveThresholds(ctx context.Context, th model.Thresholds) error {
	data, err := json.Marshal(th)
	if err != nil {
		return fmt.Errorf("encode thresholds: %w", err)
	}
	if err := c.rdb.Set(ctx, keyThresholds, data, 0).Err(); err != nil {
		return fmt.Errorf("save thresholds: %w", err)
	}
	return nil
}
