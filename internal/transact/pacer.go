package transact

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Pacer 基于Token Bucket的命令下发节流器。
// 固件串口侧处理能力有限，并发调用方（CLI/控制台）突发下发时按稳定速率放行。
type Pacer struct {
	limiter       *rate.Limiter
	ratePerSec    int
	burst         int
	allowedCount  atomic.Int64
	rejectedCount atomic.Int64
}

// NewPacer 创建节流器
// ratePerSec: 每秒允许的命令数（稳定速率）
// burst: 突发容量（桶的大小）
func NewPacer(ratePerSec int, burst int) *Pacer {
	if ratePerSec <= 0 {
		ratePerSec = 20 // 默认每秒20条命令
	}
	if burst <= 0 {
		burst = 5
	}
	return &Pacer{
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), burst),
		ratePerSec: ratePerSec,
		burst:      burst,
	}
}

// Wait 等待直到允许下发（阻塞，随 ctx 取消）
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		p.rejectedCount.Add(1)
		return err
	}
	p.allowedCount.Add(1)
	return nil
}

// AllowedCount 放行的命令数（累计）
func (p *Pacer) AllowedCount() int64 {
	return p.allowedCount.Load()
}

// RejectedCount 被拒绝的命令数（累计）
func (p *Pacer) RejectedCount() int64 {
	return p.rejectedCount.Load()
}
