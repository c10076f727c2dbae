package device

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/serial-datalogger/internal/metrics"
	"github.com/taoyao-code/serial-datalogger/internal/protocol/dl1000"
	"github.com/taoyao-code/serial-datalogger/internal/transact"
)

// Client 数据记录仪命令集。每个操作构造固定请求头与负载，经事务执行器
// 一次性收发，再解码为类型化结果。任何一步失败都返回失败哨兵，绝不
// 返回半截解码值，也绝不 panic；调用方可自行重试。
type Client struct {
	exec *transact.Executor
	log  *zap.Logger
	m    *metrics.AppMetrics
	now  func() time.Time
}

// NewClient 创建命令客户端；metrics 可为 nil
func NewClient(exec *transact.Executor, logger *zap.Logger, m *metrics.AppMetrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{exec: exec, log: logger, m: m, now: time.Now}
}

func (c *Client) countCmd(name string) {
	if c.m != nil {
		c.m.Commands.WithLabelValues(name).Inc()
	}
}

// GetSystemConfig 读取系统配置（9 个 u32）。失败时 ok 为 false
func (c *Client) GetSystemConfig(ctx context.Context) ([]uint32, bool) {
	c.countCmd("get_system_config")
	rsp, err := c.exec.Exchange(ctx, dl1000.HdrGetSystemConfig, dl1000.RspLenSystemConfig)
	if err != nil {
		return nil, false
	}
	values, err := dl1000.DecodeSystemConfig(rsp)
	if err != nil {
		c.log.Error("malformed system config response", zap.Error(err))
		return nil, false
	}
	return values, true
}

// SetSystemConfig 写入系统配置。先校准设备时钟再下发配置，使配置变更与
// 设备时间保持一致（顺序是正确性要求）。42 字节应答仅消费不校验内容。
func (c *Client) SetSystemConfig(ctx context.Context, values []uint32) bool {
	if len(values) != dl1000.ConfigValueCount {
		c.log.Error("system config requires exactly 9 values", zap.Int("got", len(values)))
		return false
	}
	if !c.SetEpochTime(ctx) {
		c.log.Warn("clock stamp before config write failed")
	}

	c.countCmd("set_system_config")
	payload := append([]byte(nil), dl1000.HdrSetSystemConfig...)
	for _, v := range values {
		payload = dl1000.AppendU32(payload, v)
	}
	_, err := c.exec.Exchange(ctx, payload, dl1000.RspLenSystemConfig)
	return err == nil
}

// GetEpochTime 读取设备 RTC 时间。失败时 ok 为 false
func (c *Client) GetEpochTime(ctx context.Context) (time.Time, bool) {
	c.countCmd("get_epoch_time")
	rsp, err := c.exec.Exchange(ctx, dl1000.HdrGetEpochTime, dl1000.RspLenEpochTime)
	if err != nil {
		return time.Time{}, false
	}
	epoch, err := dl1000.DecodeEpochTime(rsp)
	if err != nil {
		c.log.Error("malformed epoch response", zap.Error(err))
		return time.Time{}, false
	}
	return time.Unix(int64(epoch), 0), true
}

// FormatEpoch 将设备时间渲染为展示用字符串；零值渲染为 "None"
func FormatEpoch(t time.Time) string {
	if t.IsZero() {
		return "None"
	}
	return t.Format(time.ANSIC)
}

// SetEpochTime 以当前系统时间校准设备 RTC
func (c *Client) SetEpochTime(ctx context.Context) bool {
	c.countCmd("set_epoch_time")
	payload := dl1000.AppendU32(append([]byte(nil), dl1000.HdrSetEpochTime...), uint32(c.now().Unix()))
	_, err := c.exec.Exchange(ctx, payload, dl1000.RspLenEpochTime)
	return err == nil
}

// FormatSDCard 格式化 SD 卡（清空全部记录文件）。
// 返回值：done 为设备报告的执行结果，ok 表示本次交互是否完成
func (c *Client) FormatSDCard(ctx context.Context) (done bool, ok bool) {
	c.countCmd("format_sd_card")
	rsp, err := c.exec.Exchange(ctx, dl1000.HdrFormatSD, dl1000.RspLenFormatSD)
	if err != nil {
		return false, false
	}
	done, err = dl1000.DecodeAck(rsp)
	if err != nil {
		c.log.Error("malformed format response", zap.Error(err))
		return false, false
	}
	return done, true
}

// SetLoggingState 强制设备记录开关。
// 返回值：state 为设备报告的当前记录状态，ok 表示本次交互是否完成
func (c *Client) SetLoggingState(ctx context.Context, enable bool) (state bool, ok bool) {
	c.countCmd("set_logging_state")
	b := byte(0)
	if enable {
		b = 1
	}
	payload := append(append([]byte(nil), dl1000.HdrSetLoggingState...), b)
	rsp, err := c.exec.Exchange(ctx, payload, dl1000.RspLenLoggingState)
	if err != nil {
		return false, false
	}
	state, err = dl1000.DecodeAck(rsp)
	if err != nil {
		c.log.Error("malformed logging state response", zap.Error(err))
		return false, false
	}
	return state, true
}

// RequestData 读取传感器数据（10 个 f32）。失败时 ok 为 false
func (c *Client) RequestData(ctx context.Context) ([]float32, bool) {
	c.countCmd("request_data")
	rsp, err := c.exec.Exchange(ctx, dl1000.HdrRequestData, dl1000.RspLenRequestData)
	if err != nil {
		return nil, false
	}
	values, err := dl1000.DecodeSensorData(rsp)
	if err != nil {
		c.log.Error("malformed sensor data response", zap.Error(err))
		return nil, false
	}
	return values, true
}
