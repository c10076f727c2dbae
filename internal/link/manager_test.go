package link

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/serial-datalogger/internal/config"
)

type fakePort struct {
	closed atomic.Bool
}

func (p *fakePort) Read(b []byte) (int, error)  { return 0, nil }
func (p *fakePort) Write(b []byte) (int, error) { return len(b), nil }
func (p *fakePort) Flush() error                { return nil }
func (p *fakePort) Close() error                { p.closed.Store(true); return nil }

func testCfg() cfgpkg.SerialConfig {
	return cfgpkg.SerialConfig{
		Port:        "/dev/ttyTEST",
		Baud:        112500,
		ReadTimeout: 10 * time.Millisecond,
		OpenRetries: 10,
		OpenBackoff: time.Millisecond,
	}
}

func TestOpen_RetriesUntilSuccess(t *testing.T) {
	var attempts int32
	dial := func(cfgpkg.SerialConfig) (Port, error) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return nil, errors.New("device busy")
		}
		return &fakePort{}, nil
	}
	mgr := NewManager(testCfg(), dial, zap.NewNop(), nil)

	require.True(t, mgr.Open(context.Background()))
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
	assert.True(t, mgr.IsOpen())
}

func TestOpen_ExhaustsRetries(t *testing.T) {
	var attempts int32
	dial := func(cfgpkg.SerialConfig) (Port, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("no such device")
	}
	mgr := NewManager(testCfg(), dial, zap.NewNop(), nil)

	assert.False(t, mgr.Open(context.Background()))
	assert.EqualValues(t, 10, atomic.LoadInt32(&attempts))
	assert.False(t, mgr.IsOpen())
}

func TestOpen_Idempotent(t *testing.T) {
	var attempts int32
	dial := func(cfgpkg.SerialConfig) (Port, error) {
		atomic.AddInt32(&attempts, 1)
		return &fakePort{}, nil
	}
	mgr := NewManager(testCfg(), dial, zap.NewNop(), nil)

	require.True(t, mgr.Open(context.Background()))
	require.True(t, mgr.Open(context.Background()))
	assert.EqualValues(t, 1, atomic.LoadInt32(&attempts))
}

func TestOpen_CancelDuringBackoff(t *testing.T) {
	cfg := testCfg()
	cfg.OpenBackoff = time.Hour // 取消必须打断等待
	var attempts int32
	dial := func(cfgpkg.SerialConfig) (Port, error) {
		atomic.AddInt32(&attempts, 1)
		return nil, errors.New("device busy")
	}
	mgr := NewManager(cfg, dial, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	done := make(chan bool, 1)
	go func() { done <- mgr.Open(ctx) }()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Open did not return after cancellation")
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&attempts))
	assert.False(t, mgr.IsOpen())
}

func TestOpen_CancelledBeforeCommit_ClosesHandle(t *testing.T) {
	p := &fakePort{}
	dial := func(cfgpkg.SerialConfig) (Port, error) { return p, nil }
	mgr := NewManager(testCfg(), dial, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, mgr.Open(ctx))
	assert.False(t, mgr.IsOpen())
	assert.True(t, p.closed.Load(), "partially-opened handle must be closed")
}

func TestClose_Idempotent(t *testing.T) {
	p := &fakePort{}
	dial := func(cfgpkg.SerialConfig) (Port, error) { return p, nil }
	mgr := NewManager(testCfg(), dial, zap.NewNop(), nil)

	require.True(t, mgr.Open(context.Background()))
	mgr.Close()
	assert.True(t, p.closed.Load())
	assert.False(t, mgr.IsOpen())
	mgr.Close() // 再次关闭为空操作
}

func TestOpen_EmptyPortName(t *testing.T) {
	cfg := testCfg()
	cfg.Port = ""
	mgr := NewManager(cfg, SerialDialer, zap.NewNop(), nil)
	assert.False(t, mgr.Open(context.Background()))
}
