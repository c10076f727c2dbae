package dl1000

import "errors"

var ErrBadPayload = errors.New("bad payload")

// DecodeSystemConfig 解析 42 字节系统配置应答：偏移 4 起 9 个小端 u32
func DecodeSystemConfig(rsp []byte) ([]uint32, error) {
	if len(rsp) != RspLenSystemConfig {
		return nil, ErrBadPayload
	}
	values := make([]uint32, 0, ConfigValueCount)
	for i := 0; i < ConfigValueCount; i++ {
		off := RspPayloadOffset + i*4
		values = append(values, U32(rsp[off:off+4]))
	}
	return values, nil
}

// DecodeEpochTime 解析 10 字节时间戳应答：偏移 4 起小端 u32（Unix 秒）
func DecodeEpochTime(rsp []byte) (uint32, error) {
	if len(rsp) != RspLenEpochTime {
		return 0, ErrBadPayload
	}
	return U32(rsp[RspPayloadOffset : RspPayloadOffset+4]), nil
}

// DecodeAck 解析 7 字节布尔应答：偏移 4 处单字节，非零为真
func DecodeAck(rsp []byte) (bool, error) {
	if len(rsp) != RspLenFormatSD {
		return false, ErrBadPayload
	}
	return rsp[RspAckByteOffset] != 0, nil
}

// DecodeSensorData 解析 46 字节传感器应答：偏移 4 起 10 个小端 f32
func DecodeSensorData(rsp []byte) ([]float32, error) {
	if len(rsp) != RspLenRequestData {
		return nil, ErrBadPayload
	}
	values := make([]float32, 0, SensorValueCount)
	for i := 0; i < SensorValueCount; i++ {
		off := RspPayloadOffset + i*4
		values = append(values, F32(rsp[off:off+4]))
	}
	return values, nil
}
