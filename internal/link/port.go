package link

import (
	"io"

	"github.com/tarm/serial"

	cfgpkg "github.com/taoyao-code/serial-datalogger/internal/config"
)

// Port 串口句柄抽象，便于测试注入模拟端口
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// Dialer 按配置打开一个串口句柄
type Dialer func(cfg cfgpkg.SerialConfig) (Port, error)

// SerialDialer 生产环境拨号器，基于 tarm/serial
func SerialDialer(cfg cfgpkg.SerialConfig) (Port, error) {
	return serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
}
