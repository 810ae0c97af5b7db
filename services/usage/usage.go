package usage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Kind distinguishes the discount instruments being counted.
type Kind string

const (
	KindPromoCode Kind = "promo"
	KindGiftCard  Kind = "gift_card"
)

// dailyRetention bounds how long per-day counters are kept.
const dailyRetention = 35 * 24 * time.Hour

// Recorder counts discount applications for analytics. Failures are not fatal to callers.
type Recorder interface {
	Record(ctx context.Context, kind Kind, code string) error
}

// RedisRecorder keeps a lifetime counter and a per-day counter per code.
type RedisRecorder struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisRecorder(client *redis.Client) *RedisRecorder {
	return &RedisRecorder{client: client, now: time.Now}
}

func (r *RedisRecorder) Record(ctx context.Context, kind Kind, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	totalKey, dailyKey := Keys(kind, code, r.now())

	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, totalKey)
	pipe.Incr(ctx, dailyKey)
	pipe.Expire(ctx, dailyKey, dailyRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record %s usage for %s: %w", kind, code, err)
	}
	return nil
}

// Keys returns the lifetime and per-day counter keys for a code.
func Keys(kind Kind, code string, at time.Time) (string, string) {
	base := fmt.Sprintf("discount_usage:%s:%s", kind, code)
	return base, base + ":" + at.UTC().Format("2006-01-02")
}
