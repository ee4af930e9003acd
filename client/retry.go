package client

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Backoff 指数退避参数；Attempts 为 0 表示不限次数
type Backoff struct {
	Base     time.Duration
	Max      time.Duration
	Attempts int
}

// Delay 第 n 次失败（从 1 开始）之后的等待时间
func (b Backoff) Delay(n int) time.Duration {
	d := b.Base
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	for i := 1; i < n; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// Retry 反复调用 fn 直到成功、次数用尽或 ctx 结束。
// 传输层本身不重连，这是调用方可选的包装。
func Retry(ctx context.Context, b Backoff, log *zap.SugaredLogger, fn func(ctx context.Context) error) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if b.Attempts > 0 && attempt >= b.Attempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}
		wait := b.Delay(attempt)
		log.Warnf("attempt %d failed: %v; retrying in %v", attempt, err, wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
