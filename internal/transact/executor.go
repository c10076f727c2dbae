package transact

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/serial-datalogger/internal/link"
	"github.com/taoyao-code/serial-datalogger/internal/metrics"
	"github.com/taoyao-code/serial-datalogger/internal/protocol/dl1000"
)

var (
	ErrNotOpen  = errors.New("link not open")
	ErrTransmit = errors.New("transmit fault")
	ErrReceive  = errors.New("receive fault")
	ErrTimeout  = errors.New("receive timeout")
)

// 轮询等待应答字节时的让出间隔
const pollInterval = 5 * time.Millisecond

// Executor 事务执行器：同一链路上的全部收发经由唯一事务锁串行化，
// 一个调用方的请求/应答对不会与另一个调用方的交错。
type Executor struct {
	mu    chan struct{} // 容量1的信号量作事务锁，便于随 ctx 取消
	link  *link.Manager
	pacer *Pacer
	log   *zap.Logger
	m     *metrics.AppMetrics
}

// NewExecutor 创建事务执行器；pacer、metrics 可为 nil
func NewExecutor(lnk *link.Manager, pacer *Pacer, logger *zap.Logger, m *metrics.AppMetrics) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	mu := make(chan struct{}, 1)
	mu <- struct{}{}
	return &Executor{mu: mu, link: lnk, pacer: pacer, log: logger, m: m}
}

func (e *Executor) acquire(ctx context.Context) bool {
	select {
	case <-e.mu:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Executor) release() {
	e.mu <- struct{}{}
}

func (e *Executor) count(result string) {
	if e.m != nil {
		e.m.Transactions.WithLabelValues(result).Inc()
	}
}

// Transmit 编码并写出一帧。链路未打开时不碰传输层，立即返回 -1；
// 写出 0 字节或发生 I/O 故障同样返回 -1，成功返回写出的字节数。
func (e *Executor) Transmit(ctx context.Context, payload []byte) int {
	port, ok := e.link.Handle()
	if !ok {
		e.log.Error("transmit refused: link not open")
		e.count("not_open")
		return -1
	}
	if !e.acquire(ctx) {
		e.count("tx_fault")
		return -1
	}
	defer e.release()

	n, err := e.writeFrame(port, payload, "")
	if err != nil {
		return -1
	}
	return n
}

// Receive 等待并读取恰好 n 字节应答，失败返回空切片。
// 等待有显式上限（由传输层读超时推导），设备无响应时以 Timeout 结束，
// 不会无限阻塞调用方。
func (e *Executor) Receive(ctx context.Context, n int) []byte {
	port, ok := e.link.Handle()
	if !ok {
		e.log.Error("receive refused: link not open")
		e.count("not_open")
		return nil
	}
	if !e.acquire(ctx) {
		e.count("rx_fault")
		return nil
	}
	defer e.release()

	rsp, err := e.readExact(ctx, port, n, "")
	if err != nil {
		return nil
	}
	return rsp
}

// Exchange 在同一临界区内完成一次发送与其对应的接收，请求/应答对
// 相对其它调用方原子。命令层一律经由 Exchange 收发。
func (e *Executor) Exchange(ctx context.Context, payload []byte, respLen int) ([]byte, error) {
	port, ok := e.link.Handle()
	if !ok {
		e.log.Error("exchange refused: link not open")
		e.count("not_open")
		return nil, ErrNotOpen
	}
	if e.pacer != nil {
		if err := e.pacer.Wait(ctx); err != nil {
			e.count("tx_fault")
			return nil, ErrTransmit
		}
	}
	if !e.acquire(ctx) {
		e.count("tx_fault")
		return nil, ErrTransmit
	}
	defer e.release()

	txn := uuid.NewString()
	if _, err := e.writeFrame(port, payload, txn); err != nil {
		return nil, err
	}
	rsp, err := e.readExact(ctx, port, respLen, txn)
	if err != nil {
		return nil, err
	}
	return rsp, nil
}

// writeFrame 追加校验并写出；调用方需已持有事务锁
func (e *Executor) writeFrame(port link.Port, payload []byte, txn string) (int, error) {
	frame := dl1000.Encode(payload)
	n, err := port.Write(frame)
	if err != nil || n == 0 {
		e.log.Error("transmit fault",
			zap.String("txn", txn),
			zap.String("frame", hex.EncodeToString(frame)),
			zap.Error(err))
		e.count("tx_fault")
		return -1, ErrTransmit
	}
	if e.m != nil {
		e.m.BytesTransmitted.Add(float64(n))
	}
	e.log.Debug("tx",
		zap.String("txn", txn),
		zap.Int("bytes", n),
		zap.String("frame", hex.EncodeToString(frame)))
	return n, nil
}

// readExact 读取恰好 want 字节；不足 want 的读取结果绝不向上返回。
// 截止时间按传输层读超时推导，避免参考实现中无界忙等的缺陷。
func (e *Executor) readExact(ctx context.Context, port link.Port, want int, txn string) ([]byte, error) {
	deadline := time.Now().Add(e.waitBudget(want))
	buf := make([]byte, 0, want)
	tmp := make([]byte, want)

	for len(buf) < want {
		select {
		case <-ctx.Done():
			e.log.Error("receive cancelled", zap.String("txn", txn), zap.Int("got", len(buf)))
			e.count("timeout")
			return nil, ErrTimeout
		default:
		}
		if time.Now().After(deadline) {
			e.log.Error("receive timeout",
				zap.String("txn", txn),
				zap.Int("want", want),
				zap.Int("got", len(buf)))
			e.count("timeout")
			return nil, ErrTimeout
		}

		n, err := port.Read(tmp[:want-len(buf)])
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			continue
		}
		if err != nil && err != io.EOF {
			e.log.Error("receive fault", zap.String("txn", txn), zap.Error(err))
			e.count("rx_fault")
			return nil, ErrReceive
		}
		// 本轮无数据，短暂让出后重试
		time.Sleep(pollInterval)
	}

	if e.m != nil {
		e.m.BytesReceived.Add(float64(len(buf)))
	}
	e.count("ok")
	e.log.Debug("rx",
		zap.String("txn", txn),
		zap.Int("bytes", len(buf)),
		zap.String("frame", hex.EncodeToString(buf)))
	return buf, nil
}

// waitBudget 应答等待上限：按期望字节数放大传输层读超时并留固定余量
func (e *Executor) waitBudget(want int) time.Duration {
	rt := e.link.ReadTimeout()
	budget := rt*4 + time.Duration(want)*time.Millisecond
	if budget < time.Second {
		budget = time.Second
	}
	return budget
}
