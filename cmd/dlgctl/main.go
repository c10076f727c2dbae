package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/serial-datalogger/internal/config"
	"github.com/taoyao-code/serial-datalogger/internal/device"
	"github.com/taoyao-code/serial-datalogger/internal/link"
	"github.com/taoyao-code/serial-datalogger/internal/logging"
	appmetrics "github.com/taoyao-code/serial-datalogger/internal/metrics"
	"github.com/taoyao-code/serial-datalogger/internal/transact"
)

var (
	cfgPath  string
	portName string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dlgctl",
		Short: "DL1000 数据记录仪串口客户端",
		Long:  "通过串口链路操作 DL1000 数据记录仪：读写配置、校时、格式化 SD 卡、强制记录、读取传感器数据。",
	}

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "配置文件路径（默认读取 configs/example.yaml 或 DLG_ 环境变量）")
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "串口设备名（覆盖配置）")

	rootCmd.AddCommand(
		newConfigCmd(),
		newTimeCmd(),
		newFormatCmd(),
		newLoggingCmd(),
		newDataCmd(),
		newConsoleCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app 一次 CLI 调用的装配结果
type app struct {
	cfg    *cfgpkg.Config
	log    *zap.Logger
	reg    *prometheus.Registry
	mgr    *link.Manager
	client *device.Client
}

func newApp() (*app, error) {
	cfg, err := cfgpkg.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if portName != "" {
		cfg.Serial.Port = portName
	}

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)

	reg := appmetrics.NewRegistry()
	m := appmetrics.NewAppMetrics(reg)

	mgr := link.NewManager(cfg.Serial, link.SerialDialer, logger, m)
	pacer := transact.NewPacer(cfg.Commands.RatePerSec, cfg.Commands.Burst)
	exec := transact.NewExecutor(mgr, pacer, logger, m)
	client := device.NewClient(exec, logger, m)

	return &app{cfg: cfg, log: logger, reg: reg, mgr: mgr, client: client}, nil
}

// runWithLink 打开链路执行一次操作，结束后关闭；Ctrl-C 可打断重试
func runWithLink(fn func(ctx context.Context, a *app) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !a.mgr.Open(ctx) {
		return fmt.Errorf("serial port %s unavailable", a.cfg.Serial.Port)
	}
	defer a.mgr.Close()

	return fn(ctx, a)
}
