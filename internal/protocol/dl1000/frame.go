package dl1000

// DL1000 数据记录仪串口协议（固件固定命令集，无版本协商）
// 帧布局：header[4~5] | payload[..] | sumLE[2]
// header 首字节恒为 0xDD，第二字节为命令码，第三字节为帧总长度（含校验）。

// 命令码
const (
	CmdSystemConfig = 0x03 // 读/写系统配置
	CmdEpochTime    = 0x04 // 读/写 RTC 时间戳
	CmdFormatSD     = 0x05 // 格式化 SD 卡
	CmdLoggingState = 0x06 // 强制记录开关
	CmdRequestData  = 0x07 // 读取传感器数据
)

// 固件约定的请求头，字节序列不可更改（与设备固件的外部契约）
var (
	HdrGetSystemConfig = []byte{0xDD, 0x03, 0x07, 0x00, 0x00}
	HdrSetSystemConfig = []byte{0xDD, 0x03, 0x2B, 0x00, 0x01}
	HdrGetEpochTime    = []byte{0xDD, 0x04, 0x07, 0x00, 0x00}
	HdrSetEpochTime    = []byte{0xDD, 0x04, 0x0B, 0x00, 0x01}
	HdrFormatSD        = []byte{0xDD, 0x05, 0x06, 0x00}
	HdrSetLoggingState = []byte{0xDD, 0x06, 0x07, 0x00}
	HdrRequestData     = []byte{0xDD, 0x07, 0x06, 0x00}
)

// 固件约定的应答长度（字节）
const (
	RspLenSystemConfig = 42
	RspLenEpochTime    = 10
	RspLenFormatSD     = 7
	RspLenLoggingState = 7
	RspLenRequestData  = 46
)

// 应答中各字段数量与偏移
const (
	ConfigValueCount  = 9  // 系统配置：9 个 u32
	SensorValueCount  = 10 // 传感器数据：10 个 f32
	RspPayloadOffset  = 4  // 应答负载起始偏移
	RspAckByteOffset  = 4  // 布尔应答所在偏移
	ConfigPayloadSize = ConfigValueCount * 4
)
