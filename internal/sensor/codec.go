package sensor

import (
	"encoding/binary"
	"math"
)

// Wire payloads are bit-exact, little-endian, fixed-size per characteristic.
// Integer fields the hardware marked unavailable carry SentinelInt32; float
// fields carry NaN. Both are distinguishable from a genuine zero reading.
const SentinelInt32 = int32(math.MinInt32)

// Frame is one encoded notification/read payload bound to its
// characteristic.
type Frame struct {
	CharUUID  string
	Payload   []byte
	Timestamp int64
}

func channelInt32(c Channel) int32 {
	if !c.Available {
		return SentinelInt32
	}
	return int32(c.Value)
}

func channelFloat32(c Channel) float32 {
	if !c.Available {
		return float32(math.NaN())
	}
	return float32(c.Value)
}

// encodeValueStatus lays out the common 14-byte frame shared by heart rate,
// PPG channels, and blood oxygen:
// 0:int64 timestamp, 8:int32 value, 12:int16 status.
func encodeValueStatus(ts int64, value int32, status int16) []byte {
	b := make([]byte, 14)
	binary.LittleEndian.PutUint64(b[0:8], uint64(ts))
	binary.LittleEndian.PutUint32(b[8:12], uint32(value))
	binary.LittleEndian.PutUint16(b[12:14], uint16(status))
	return b
}

// encodeTemperature lays out the 18-byte skin temperature frame:
// 0:int64 timestamp, 8:float32 object °C, 12:float32 ambient °C, 16:int16 status.
func encodeTemperature(ts int64, object, ambient float32, status int16) []byte {
	b := make([]byte, 18)
	binary.LittleEndian.PutUint64(b[0:8], uint64(ts))
	binary.LittleEndian.PutUint32(b[8:12], math.Float32bits(object))
	binary.LittleEndian.PutUint32(b[12:16], math.Float32bits(ambient))
	binary.LittleEndian.PutUint16(b[16:18], uint16(status))
	return b
}

// encodeAccelerometer lays out the 20-byte accelerometer frame:
// 0:int64 timestamp, 8:int32 x, 12:int32 y, 16:int32 z.
func encodeAccelerometer(ts int64, x, y, z int32) []byte {
	b := make([]byte, 20)
	binary.LittleEndian.PutUint64(b[0:8], uint64(ts))
	binary.LittleEndian.PutUint32(b[8:12], uint32(x))
	binary.LittleEndian.PutUint32(b[12:16], uint32(y))
	binary.LittleEndian.PutUint32(b[16:20], uint32(z))
	return b
}

// encodeECG lays out the 16-byte electrocardiogram frame:
// 0:int64 timestamp, 8:float32 millivolts, 12:int16 lead status, 14:int16 sequence.
func encodeECG(ts int64, millivolts float32, leadStatus, sequence int16) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[0:8], uint64(ts))
	binary.LittleEndian.PutUint32(b[8:12], math.Float32bits(millivolts))
	binary.LittleEndian.PutUint16(b[12:14], uint16(leadStatus))
	binary.LittleEndian.PutUint16(b[14:16], uint16(sequence))
	return b
}
