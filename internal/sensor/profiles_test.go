package sensor_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwearable/sensorhub/internal/gatt"
	"github.com/openwearable/sensorhub/internal/sensor"
)

func frameValue(payload []byte) int32 {
	return int32(binary.LittleEndian.Uint32(payload[8:12]))
}

func frameStatus14(payload []byte) int16 {
	return int16(binary.LittleEndian.Uint16(payload[12:14]))
}

func TestHeartRateProfile(t *testing.T) {
	p := sensor.HeartRateProfile(time.Second)

	assert.Equal(t, "180d", p.Service.UUID)
	assert.Equal(t, []string{"2a37"}, p.DataCharUUIDs())
	assert.Empty(t, p.TriggerUUID)

	t.Run("encode", func(t *testing.T) {
		frames := p.Encode(sensor.Sample{
			Timestamp: 1000,
			Channels:  []sensor.Channel{sensor.Ch(72)},
			Status:    sensor.HeartRateStatusSuccess,
		})
		require.Len(t, frames, 1)
		assert.Equal(t, "2a37", frames[0].CharUUID)
		assert.Len(t, frames[0].Payload, 14)
		assert.Equal(t, int32(72), frameValue(frames[0].Payload))
		assert.Equal(t, int16(1), frameStatus14(frames[0].Payload))
	})

	t.Run("missing channel encodes sentinel", func(t *testing.T) {
		frames := p.Encode(sensor.Sample{Timestamp: 1000, Status: sensor.HeartRateStatusNoData})
		assert.Equal(t, sensor.SentinelInt32, frameValue(frames[0].Payload))
	})

	t.Run("neutral carries no-data status", func(t *testing.T) {
		frames := p.Neutral()
		require.Len(t, frames, 1)
		assert.Equal(t, sensor.HeartRateStatusNoData, frameStatus14(frames[0].Payload))
	})
}

func TestTemperatureProfile(t *testing.T) {
	p := sensor.TemperatureProfile(5 * time.Second)

	assert.Equal(t, "1809", p.Service.UUID)

	frames := p.Encode(sensor.Sample{
		Timestamp: 2000,
		Channels:  []sensor.Channel{sensor.Ch(33.5), sensor.Ch(24.0)},
		Status:    sensor.TemperatureStatusOK,
	})
	require.Len(t, frames, 1)
	assert.Equal(t, "2a1c", frames[0].CharUUID)
	assert.Len(t, frames[0].Payload, 18)
}

func TestAccelerometerProfile(t *testing.T) {
	p := sensor.AccelerometerProfile(100 * time.Millisecond)

	assert.Equal(t, "8899b3a338fb42f5995559c52b5d53f2", p.Service.UUID)

	frames := p.Encode(sensor.Sample{
		Timestamp: 3000,
		Channels:  []sensor.Channel{sensor.Ch(10), sensor.Ch(-20), sensor.Ch(4000)},
	})
	require.Len(t, frames, 1)
	assert.Len(t, frames[0].Payload, 20)

	payload := frames[0].Payload
	assert.Equal(t, int32(10), int32(binary.LittleEndian.Uint32(payload[8:12])))
	assert.Equal(t, int32(-20), int32(binary.LittleEndian.Uint32(payload[12:16])))
	assert.Equal(t, int32(4000), int32(binary.LittleEndian.Uint32(payload[16:20])))
}

func TestPPGProfile(t *testing.T) {
	p := sensor.PPGProfile(100 * time.Millisecond)

	assert.Len(t, p.DataCharUUIDs(), 3)

	t.Run("one sample fans out to three frames", func(t *testing.T) {
		frames := p.Encode(sensor.Sample{
			Timestamp: 4000,
			Channels:  []sensor.Channel{sensor.Ch(111), sensor.Ch(222), sensor.Ch(333)},
			Status:    sensor.PPGStatusNormal,
		})
		require.Len(t, frames, 3)

		byChar := map[string]int32{}
		for _, f := range frames {
			byChar[f.CharUUID] = frameValue(f.Payload)
		}
		assert.Equal(t, int32(111), byChar[gatt.NormalizeUUID(sensor.PPGGreenDataUUID)])
		assert.Equal(t, int32(222), byChar[gatt.NormalizeUUID(sensor.PPGIRDataUUID)])
		assert.Equal(t, int32(333), byChar[gatt.NormalizeUUID(sensor.PPGRedDataUUID)])
	})

	t.Run("neutral marks all channels preempted", func(t *testing.T) {
		frames := p.Neutral()
		require.Len(t, frames, 3)
		for _, f := range frames {
			assert.Equal(t, sensor.PPGStatusPreempted, frameStatus14(f.Payload))
			assert.Equal(t, sensor.SentinelInt32, frameValue(f.Payload))
		}
	})
}

func TestSpO2Profile(t *testing.T) {
	p := sensor.SpO2Profile()

	assert.Equal(t, "1822", p.Service.UUID)
	assert.Equal(t, "2a5f", p.TriggerUUID)
	assert.Equal(t, []string{"2a5e"}, p.DataCharUUIDs())

	trigger, ok := p.Service.Characteristic("2a5f")
	require.True(t, ok)
	assert.Equal(t, gatt.AccessWrite, trigger.Mode)

	frames := p.Encode(sensor.Sample{
		Timestamp: 5000,
		Channels:  []sensor.Channel{sensor.Ch(98)},
		Status:    sensor.SpO2StatusComplete,
	})
	require.Len(t, frames, 1)
	assert.Equal(t, int32(98), frameValue(frames[0].Payload))
	assert.Equal(t, sensor.SpO2StatusComplete, frameStatus14(frames[0].Payload))
}

func TestECGProfile(t *testing.T) {
	p := sensor.ECGProfile()

	assert.Equal(t, "8899b3b038fb42f5995559c52b5d53f2", p.Service.UUID)
	assert.Equal(t, "8899b3b338fb42f5995559c52b5d53f2", p.TriggerUUID)

	frames := p.Encode(sensor.Sample{
		Timestamp: 6000,
		Channels:  []sensor.Channel{sensor.Ch(0.42)},
		Status:    sensor.ECGLeadStatusNormal,
		Sequence:  7,
	})
	require.Len(t, frames, 1)
	assert.Len(t, frames[0].Payload, 16)
	assert.Equal(t, int16(7), int16(binary.LittleEndian.Uint16(frames[0].Payload[14:16])))
}
