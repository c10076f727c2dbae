package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taoyao-code/serial-datalogger/internal/console"
	"github.com/taoyao-code/serial-datalogger/internal/device"
	appmetrics "github.com/taoyao-code/serial-datalogger/internal/metrics"
	"github.com/taoyao-code/serial-datalogger/internal/protocol/dl1000"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "读写系统配置",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "读取系统配置（9 个 u32）",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWithLink(func(ctx context.Context, a *app) error {
				values, ok := a.client.GetSystemConfig(ctx)
				if !ok {
					return fmt.Errorf("get system config failed")
				}
				for i, v := range values {
					fmt.Printf("config[%d] = %d\n", i, v)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set v1 v2 v3 v4 v5 v6 v7 v8 v9",
		Short: "写入系统配置（同时校准设备时钟）",
		Args:  cobra.ExactArgs(dl1000.ConfigValueCount),
		RunE: func(_ *cobra.Command, args []string) error {
			values := make([]uint32, 0, dl1000.ConfigValueCount)
			for _, arg := range args {
				v, err := strconv.ParseUint(arg, 10, 32)
				if err != nil {
					return fmt.Errorf("invalid config value %q: %w", arg, err)
				}
				values = append(values, uint32(v))
			}
			return runWithLink(func(ctx context.Context, a *app) error {
				if !a.client.SetSystemConfig(ctx, values) {
					return fmt.Errorf("set system config failed")
				}
				fmt.Println("config written")
				return nil
			})
		},
	})

	return cmd
}

func newTimeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "time",
		Short: "读写设备 RTC 时间",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "读取设备时间",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWithLink(func(ctx context.Context, a *app) error {
				ts, ok := a.client.GetEpochTime(ctx)
				if !ok {
					return fmt.Errorf("get epoch time failed")
				}
				fmt.Println(device.FormatEpoch(ts))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "以本机时间校准设备时钟",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWithLink(func(ctx context.Context, a *app) error {
				if !a.client.SetEpochTime(ctx) {
					return fmt.Errorf("set epoch time failed")
				}
				fmt.Println("device clock synchronized")
				return nil
			})
		},
	})

	return cmd
}

func newFormatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "format",
		Short: "格式化 SD 卡（删除全部记录文件）",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWithLink(func(ctx context.Context, a *app) error {
				done, ok := a.client.FormatSDCard(ctx)
				if !ok {
					return fmt.Errorf("format exchange failed")
				}
				if !done {
					return fmt.Errorf("device reported format failure")
				}
				fmt.Println("SD card formatted")
				return nil
			})
		},
	}
}

func newLoggingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logging on|off",
		Short: "强制设备记录开关",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var enable bool
			switch args[0] {
			case "on":
				enable = true
			case "off":
				enable = false
			default:
				return fmt.Errorf("argument must be on or off, got %q", args[0])
			}
			return runWithLink(func(ctx context.Context, a *app) error {
				state, ok := a.client.SetLoggingState(ctx, enable)
				if !ok {
					return fmt.Errorf("set logging state failed")
				}
				fmt.Printf("logging state: %v\n", state)
				return nil
			})
		},
	}
}

func newDataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "data",
		Short: "读取传感器数据（10 个 f32）",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWithLink(func(ctx context.Context, a *app) error {
				values, ok := a.client.RequestData(ctx)
				if !ok {
					return fmt.Errorf("request data failed")
				}
				for i, v := range values {
					fmt.Printf("sensor[%d] = %g\n", i, v)
				}
				return nil
			})
		},
	}
}

func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "启动 HTTP 控制台（健康检查、指标与命令路由）",
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()
			log := a.log

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// 设备可能晚于客户端上电，打开失败不退出，readyz 会如实上报
			if !a.mgr.Open(ctx) {
				log.Warn("serial link not open yet, console starts degraded",
					zap.String("port", a.cfg.Serial.Port))
			}
			defer a.mgr.Close()

			var metricsHandler http.Handler
			if a.cfg.Metrics.Enable {
				metricsHandler = appmetrics.Handler(a.reg)
			}
			srv := console.New(a.cfg.Console, a.cfg.Metrics.Path, metricsHandler, a.client, a.mgr, log)

			go func() {
				log.Info("console listening", zap.String("addr", a.cfg.Console.Addr))
				if err := srv.Start(); err != nil && err != http.ErrServerClosed {
					log.Error("console server error", zap.Error(err))
				}
			}()

			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
