package console

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/serial-datalogger/internal/device"
	"github.com/taoyao-code/serial-datalogger/internal/protocol/dl1000"
)

// Handler 控制台命令处理器：把 HTTP 请求映射到设备命令集。
// 命令失败统一以 502 上报——故障出在设备链路一侧，不是控制台本身。
type Handler struct {
	client *device.Client
	logger *zap.Logger
}

// NewHandler 创建控制台处理器
func NewHandler(client *device.Client, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{client: client, logger: logger}
}

type configResponse struct {
	Values []uint32 `json:"values"`
}

type configRequest struct {
	Values []uint32 `json:"values" binding:"required"`
}

type timeResponse struct {
	Epoch     int64  `json:"epoch"`
	Formatted string `json:"formatted"`
}

type ackResponse struct {
	Result bool `json:"result"`
}

type loggingRequest struct {
	Enable *bool `json:"enable" binding:"required"`
}

type dataResponse struct {
	Values []float32 `json:"values"`
}

func (h *Handler) deviceUnavailable(c *gin.Context, op string) {
	h.logger.Warn("device exchange failed", zap.String("op", op), zap.String("path", c.FullPath()))
	c.JSON(http.StatusBadGateway, gin.H{"error": "device exchange failed"})
}

// GetConfig 读取系统配置
func (h *Handler) GetConfig(c *gin.Context) {
	values, ok := h.client.GetSystemConfig(c.Request.Context())
	if !ok {
		h.deviceUnavailable(c, "get_system_config")
		return
	}
	c.JSON(http.StatusOK, configResponse{Values: values})
}

// SetConfig 写入系统配置（9 个 u32，数值域校验由调用方负责）
func (h *Handler) SetConfig(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Values) != dl1000.ConfigValueCount {
		c.JSON(http.StatusBadRequest, gin.H{"error": "values must contain exactly 9 entries"})
		return
	}
	if !h.client.SetSystemConfig(c.Request.Context(), req.Values) {
		h.deviceUnavailable(c, "set_system_config")
		return
	}
	c.JSON(http.StatusOK, ackResponse{Result: true})
}

// GetTime 读取设备 RTC 时间
func (h *Handler) GetTime(c *gin.Context) {
	ts, ok := h.client.GetEpochTime(c.Request.Context())
	if !ok {
		h.deviceUnavailable(c, "get_epoch_time")
		return
	}
	c.JSON(http.StatusOK, timeResponse{Epoch: ts.Unix(), Formatted: device.FormatEpoch(ts)})
}

// SyncTime 以服务端当前时间校准设备 RTC
func (h *Handler) SyncTime(c *gin.Context) {
	if !h.client.SetEpochTime(c.Request.Context()) {
		h.deviceUnavailable(c, "set_epoch_time")
		return
	}
	c.JSON(http.StatusOK, ackResponse{Result: true})
}

// FormatSD 格式化 SD 卡
func (h *Handler) FormatSD(c *gin.Context) {
	done, ok := h.client.FormatSDCard(c.Request.Context())
	if !ok {
		h.deviceUnavailable(c, "format_sd_card")
		return
	}
	c.JSON(http.StatusOK, ackResponse{Result: done})
}

// SetLogging 强制记录开关
func (h *Handler) SetLogging(c *gin.Context) {
	var req loggingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	state, ok := h.client.SetLoggingState(c.Request.Context(), *req.Enable)
	if !ok {
		h.deviceUnavailable(c, "set_logging_state")
		return
	}
	c.JSON(http.StatusOK, ackResponse{Result: state})
}

// GetData 读取传感器数据
func (h *Handler) GetData(c *gin.Context) {
	values, ok := h.client.RequestData(c.Request.Context())
	if !ok {
		h.deviceUnavailable(c, "request_data")
		return
	}
	c.JSON(http.StatusOK, dataResponse{Values: values})
}
