package link

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/serial-datalogger/internal/config"
	"github.com/taoyao-code/serial-datalogger/internal/metrics"
)

// Manager 串口链路管理器：独占持有句柄，负责有限重试打开与幂等关闭。
// 状态机：Closed → Opening → Open，Open → Closed。
type Manager struct {
	mu   sync.Mutex
	cfg  cfgpkg.SerialConfig
	dial Dialer
	port Port
	open bool

	log *zap.Logger
	m   *metrics.AppMetrics
}

// NewManager 创建链路管理器；metrics 可为 nil
func NewManager(cfg cfgpkg.SerialConfig, dial Dialer, logger *zap.Logger, m *metrics.AppMetrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OpenRetries <= 0 {
		cfg.OpenRetries = 10
	}
	if cfg.OpenBackoff <= 0 {
		cfg.OpenBackoff = time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	return &Manager{cfg: cfg, dial: dial, log: logger, m: m}
}

// Open 打开串口。已打开时直接返回 true；否则最多尝试 cfg.OpenRetries 次，
// 失败间隔 cfg.OpenBackoff。重试可被 ctx 取消，取消时关闭半开句柄并回到
// Closed。重试耗尽返回 false，调用方可稍后再试，不是致命错误。
func (mgr *Manager) Open(ctx context.Context) bool {
	if mgr.IsOpen() {
		return true
	}
	if mgr.cfg.Port == "" {
		mgr.log.Error("serial port name not configured")
		return false
	}

	for attempt := 1; attempt <= mgr.cfg.OpenRetries; attempt++ {
		mgr.log.Info("opening serial port",
			zap.String("port", mgr.cfg.Port),
			zap.Int("attempt", attempt))
		if mgr.m != nil {
			mgr.m.OpenAttempts.Inc()
		}

		port, err := mgr.dial(mgr.cfg)
		if err == nil {
			if ctx.Err() != nil {
				// 打开成功但调用已取消：收回句柄，保持 Closed
				_ = port.Close()
				return false
			}
			mgr.mu.Lock()
			mgr.port = port
			mgr.open = true
			mgr.mu.Unlock()
			if mgr.m != nil {
				mgr.m.LinkOpen.Set(1)
			}
			mgr.log.Info("serial port opened",
				zap.String("port", mgr.cfg.Port),
				zap.Int("baud", mgr.cfg.Baud),
				zap.Int("attempt", attempt))
			return true
		}

		mgr.log.Warn("open serial port failed",
			zap.String("port", mgr.cfg.Port),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == mgr.cfg.OpenRetries {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(mgr.cfg.OpenBackoff):
		}
	}

	mgr.log.Error("serial port unavailable after retries",
		zap.String("port", mgr.cfg.Port),
		zap.Int("retries", mgr.cfg.OpenRetries))
	return false
}

// Close 关闭串口；未打开时为空操作
func (mgr *Manager) Close() {
	mgr.mu.Lock()
	port, wasOpen := mgr.port, mgr.open
	mgr.port = nil
	mgr.open = false
	mgr.mu.Unlock()

	if !wasOpen {
		return
	}
	if err := port.Close(); err != nil {
		mgr.log.Warn("close serial port", zap.Error(err))
	}
	if mgr.m != nil {
		mgr.m.LinkOpen.Set(0)
	}
	mgr.log.Info("serial port closed", zap.String("port", mgr.cfg.Port))
}

// IsOpen 当前链路状态
func (mgr *Manager) IsOpen() bool {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	return mgr.open
}

// Handle 返回底层句柄，仅供事务执行器使用；链路未打开时 ok 为 false
func (mgr *Manager) Handle() (Port, bool) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	return mgr.port, mgr.open
}

// ReadTimeout 底层传输的单次读超时，事务层据此推导等待上限
func (mgr *Manager) ReadTimeout() time.Duration {
	return mgr.cfg.ReadTimeout
}
