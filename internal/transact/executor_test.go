package transact

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/serial-datalogger/internal/config"
	"github.com/taoyao-code/serial-datalogger/internal/link"
	"github.com/taoyao-code/serial-datalogger/internal/protocol/dl1000"
)

// scriptPort 模拟端口：Write 记录帧并按 respond 生成应答供 Read 读取
type scriptPort struct {
	mu      sync.Mutex
	writes  [][]byte
	pending []byte
	respond func(frame []byte) []byte
	wErr    error
	rErr    error
}

func (p *scriptPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.wErr != nil {
		return 0, p.wErr
	}
	frame := append([]byte(nil), b...)
	p.writes = append(p.writes, frame)
	if p.respond != nil {
		p.pending = append(p.pending, p.respond(frame)...)
	}
	return len(b), nil
}

func (p *scriptPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rErr != nil {
		return 0, p.rErr
	}
	if len(p.pending) == 0 {
		return 0, nil
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *scriptPort) Flush() error { return nil }
func (p *scriptPort) Close() error { return nil }

func openedExecutor(t *testing.T, port *scriptPort) *Executor {
	t.Helper()
	cfg := cfgpkg.SerialConfig{
		Port:        "/dev/ttyTEST",
		Baud:        112500,
		ReadTimeout: 10 * time.Millisecond,
		OpenRetries: 1,
		OpenBackoff: time.Millisecond,
	}
	mgr := link.NewManager(cfg, func(cfgpkg.SerialConfig) (link.Port, error) {
		return port, nil
	}, zap.NewNop(), nil)
	require.True(t, mgr.Open(context.Background()))
	return NewExecutor(mgr, nil, zap.NewNop(), nil)
}

func closedExecutor(t *testing.T, port *scriptPort) *Executor {
	t.Helper()
	cfg := cfgpkg.SerialConfig{Port: "/dev/ttyTEST", OpenRetries: 1, OpenBackoff: time.Millisecond}
	mgr := link.NewManager(cfg, func(cfgpkg.SerialConfig) (link.Port, error) {
		return port, nil
	}, zap.NewNop(), nil)
	return NewExecutor(mgr, nil, zap.NewNop(), nil)
}

func TestTransmit_ClosedLink(t *testing.T) {
	port := &scriptPort{}
	exec := closedExecutor(t, port)

	assert.Equal(t, -1, exec.Transmit(context.Background(), []byte{0xDD, 0x03}))
	assert.Empty(t, port.writes, "closed link must not touch the transport")
}

func TestReceive_ClosedLink(t *testing.T) {
	port := &scriptPort{}
	exec := closedExecutor(t, port)

	assert.Nil(t, exec.Receive(context.Background(), 7))
}

func TestExchange_ClosedLink(t *testing.T) {
	port := &scriptPort{}
	exec := closedExecutor(t, port)

	_, err := exec.Exchange(context.Background(), []byte{0xDD, 0x05}, 7)
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestTransmit_AppendsChecksum(t *testing.T) {
	port := &scriptPort{}
	exec := openedExecutor(t, port)

	payload := []byte{0xDD, 0x05, 0x06, 0x00}
	n := exec.Transmit(context.Background(), payload)
	require.Equal(t, len(payload)+2, n)
	require.Len(t, port.writes, 1)

	frame := port.writes[0]
	got := binary.LittleEndian.Uint16(frame[len(frame)-2:])
	assert.Equal(t, dl1000.Checksum16(payload), got)
}

func TestTransmit_WriteFault(t *testing.T) {
	port := &scriptPort{wErr: errors.New("input/output error")}
	exec := openedExecutor(t, port)

	assert.Equal(t, -1, exec.Transmit(context.Background(), []byte{0xDD}))
}

func TestReceive_Timeout(t *testing.T) {
	port := &scriptPort{} // 无任何应答数据
	exec := openedExecutor(t, port)

	start := time.Now()
	rsp := exec.Receive(context.Background(), 7)
	assert.Nil(t, rsp)
	assert.Less(t, time.Since(start), 5*time.Second, "wait must be bounded")
}

func TestReceive_Cancel(t *testing.T) {
	port := &scriptPort{}
	exec := openedExecutor(t, port)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	assert.Nil(t, exec.Receive(ctx, 7))
}

func TestReceive_IOFault(t *testing.T) {
	port := &scriptPort{rErr: errors.New("device unplugged")}
	exec := openedExecutor(t, port)

	assert.Nil(t, exec.Receive(context.Background(), 7))
}

func TestExchange_PairsRequestWithResponse(t *testing.T) {
	// 应答回显请求负载中的标识字节
	port := &scriptPort{
		respond: func(frame []byte) []byte {
			rsp := []byte{0xDD, frame[1], 0x07, 0x00, frame[4], 0x00, 0x00}
			return rsp
		},
	}
	exec := openedExecutor(t, port)

	rsp, err := exec.Exchange(context.Background(), []byte{0xDD, 0x06, 0x07, 0x00, 0x2A}, 7)
	require.NoError(t, err)
	assert.Equal(t, byte(0x2A), rsp[4])
}

// 两个并发事务在同一链路上不得交错：每个事务必须取回回显自身标识的应答
func TestExchange_ConcurrentTransactionsDoNotInterleave(t *testing.T) {
	port := &scriptPort{
		respond: func(frame []byte) []byte {
			// 偏移4为调用方标识
			return []byte{0xDD, 0x06, 0x07, 0x00, frame[4], 0x00, 0x00}
		},
	}
	exec := openedExecutor(t, port)

	const workers = 4
	const rounds = 25
	var wg sync.WaitGroup
	errCh := make(chan error, workers*rounds)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				rsp, err := exec.Exchange(context.Background(), []byte{0xDD, 0x06, 0x07, 0x00, id}, 7)
				if err != nil {
					errCh <- err
					return
				}
				if rsp[4] != id {
					errCh <- errors.New("response bytes crossed transactions")
					return
				}
			}
		}(byte(w + 1))
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}
}

func TestPacer_CancelledWaitFailsExchange(t *testing.T) {
	port := &scriptPort{
		respond: func(frame []byte) []byte {
			return []byte{0xDD, 0x06, 0x07, 0x00, 0x01, 0x00, 0x00}
		},
	}
	exec := openedExecutor(t, port)
	exec.pacer = NewPacer(1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	// 先耗尽突发容量
	_, err := exec.Exchange(ctx, []byte{0xDD, 0x06, 0x07, 0x00, 0x01}, 7)
	require.NoError(t, err)

	cancel()
	_, err = exec.Exchange(ctx, []byte{0xDD, 0x06, 0x07, 0x00, 0x01}, 7)
	assert.ErrorIs(t, err, ErrTransmit)
	assert.EqualValues(t, 1, exec.pacer.RejectedCount())
}
