package console

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/serial-datalogger/internal/config"
	"github.com/taoyao-code/serial-datalogger/internal/device"
	"github.com/taoyao-code/serial-datalogger/internal/link"
)

// Server 运维控制台 HTTP 服务封装
type Server struct {
	srv *http.Server
}

// New 创建并配置 Gin + HTTP Server，注册健康检查、指标与命令路由。
// readyz 以链路是否打开为就绪判据。
func New(cfg cfgpkg.ConsoleConfig, metricsPath string, metricsHandler http.Handler, client *device.Client, lnk *link.Manager, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		if lnk != nil && lnk.IsOpen() {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if metricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(metricsHandler))
	}

	h := NewHandler(client, logger)
	api := r.Group("/api/v1")
	{
		api.GET("/config", h.GetConfig)
		api.PUT("/config", h.SetConfig)
		api.GET("/time", h.GetTime)
		api.POST("/time/sync", h.SyncTime)
		api.POST("/sd/format", h.FormatSD)
		api.POST("/logging", h.SetLogging)
		api.GET("/data", h.GetData)
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{srv: srv}
}

// Start 启动 HTTP 服务（阻塞）
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler 暴露底层路由，便于测试
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
