package dl1000

import (
	"encoding/binary"
	"math"
)

// Checksum16 累加校验（低16位），对负载全部字节求和后截断
func Checksum16(b []byte) uint16 {
	var sum uint32
	for i := 0; i < len(b); i++ {
		sum += uint32(b[i])
	}
	return uint16(sum & 0xFFFF)
}

// Encode 在负载末尾追加 2 字节小端校验，构成一帧完整下行数据
func Encode(payload []byte) []byte {
	buf := make([]byte, 0, len(payload)+2)
	buf = append(buf, payload...)
	sumLE := make([]byte, 2)
	binary.LittleEndian.PutUint16(sumLE, Checksum16(payload))
	buf = append(buf, sumLE...)
	return buf
}

// AppendU32 追加一个小端 u32
func AppendU32(buf []byte, v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return append(buf, b...)
}

// U32 读取小端 u32（调用方保证长度）
func U32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// F32 读取小端 IEEE-754 单精度浮点（调用方保证长度）
func F32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
