package sensor

import (
	"time"

	"github.com/openwearable/sensorhub/internal/gatt"
)

// Service and characteristic UUIDs exposed to centrals. The heart rate,
// health thermometer, and pulse oximeter services reuse Bluetooth SIG
// identifiers; accelerometer, PPG, and ECG use the vendor 128-bit range.
const (
	HeartRateServiceUUID = "0000180d-0000-1000-8000-00805f9b34fb"
	HeartRateDataUUID    = "00002a37-0000-1000-8000-00805f9b34fb"

	TemperatureServiceUUID = "00001809-0000-1000-8000-00805f9b34fb"
	TemperatureDataUUID    = "00002a1c-0000-1000-8000-00805f9b34fb"

	AccelerometerServiceUUID = "8899b3a3-38fb-42f5-9955-59c52b5d53f2"
	AccelerometerDataUUID    = "8899b3a4-38fb-42f5-9955-59c52b5d53f2"

	PPGServiceUUID   = "8899b3a7-38fb-42f5-9955-59c52b5d53f2"
	PPGGreenDataUUID = "8899b3a8-38fb-42f5-9955-59c52b5d53f2"
	PPGIRDataUUID    = "8899b3aa-38fb-42f5-9955-59c52b5d53f2"
	PPGRedDataUUID   = "8899b3ac-38fb-42f5-9955-59c52b5d53f2"

	SpO2ServiceUUID = "00001822-0000-1000-8000-00805f9b34fb"
	SpO2DataUUID    = "00002a5e-0000-1000-8000-00805f9b34fb"
	SpO2TriggerUUID = "00002a5f-0000-1000-8000-00805f9b34fb"

	ECGServiceUUID = "8899b3b0-38fb-42f5-9955-59c52b5d53f2"
	ECGDataUUID    = "8899b3b1-38fb-42f5-9955-59c52b5d53f2"
	ECGTriggerUUID = "8899b3b3-38fb-42f5-9955-59c52b5d53f2"
)

// Heart rate status codes carried in the int16 status field.
const (
	HeartRateStatusInitial     int16 = 0
	HeartRateStatusSuccess     int16 = 1
	HeartRateStatusMovement    int16 = -2
	HeartRateStatusDetached    int16 = -3
	HeartRateStatusWeakSignal  int16 = -8
	HeartRateStatusTooMuchMove int16 = -10
	HeartRateStatusNoData      int16 = -99
	HeartRateStatusPreempted   int16 = -999
)

// Blood oxygen status codes.
const (
	SpO2StatusTimeout     int16 = -6
	SpO2StatusLowSignal   int16 = -5
	SpO2StatusMoved       int16 = -4
	SpO2StatusCalculating int16 = 0
	SpO2StatusComplete    int16 = 2
)

// PPG and temperature status codes. A non-zero ECG lead status means the
// electrode is not in contact.
const (
	PPGStatusNormal        int16 = 0
	PPGStatusPreempted     int16 = -1
	TemperatureStatusOK    int16 = 0
	TemperatureStatusError int16 = -1
	ECGLeadStatusNormal    int16 = 0
)

// Profile is the immutable description of one sensor's protocol surface:
// its service layout, owning tracker type, and frame codec. Continuous
// profiles carry a minimum inter-notification interval derived from the
// sensor's native sampling rate; on-demand profiles carry a trigger
// characteristic instead.
type Profile struct {
	Name        string
	Tracker     TrackerType
	Service     gatt.ServiceDescriptor
	TriggerUUID string // normalized; empty for continuous profiles

	// MinNotifyInterval gates notification frequency for continuous
	// sessions. Zero disables the gate.
	MinNotifyInterval time.Duration

	// Encode maps one hardware sample to its wire frames, one per data
	// characteristic.
	Encode func(Sample) []Frame

	// Neutral produces the frames representing "no reading yet": served on
	// reads before the first sample and restored when an on-demand
	// measurement completes.
	Neutral func() []Frame
}

// DataCharUUIDs returns the normalized UUIDs of all read-notify
// characteristics.
func (p Profile) DataCharUUIDs() []string {
	var uuids []string
	for _, c := range p.Service.Characteristics {
		if c.Mode == gatt.AccessReadNotify {
			uuids = append(uuids, c.UUID)
		}
	}
	return uuids
}

// HeartRateProfile measures beats per minute. Channel 0: BPM.
func HeartRateProfile(minInterval time.Duration) Profile {
	data := gatt.NormalizeUUID(HeartRateDataUUID)
	return Profile{
		Name:    "heart_rate",
		Tracker: TrackerHeartRate,
		Service: gatt.NewServiceDescriptor(HeartRateServiceUUID,
			gatt.CharacteristicDescriptor{UUID: HeartRateDataUUID, Mode: gatt.AccessReadNotify},
		),
		MinNotifyInterval: minInterval,
		Encode: func(s Sample) []Frame {
			return []Frame{{
				CharUUID:  data,
				Payload:   encodeValueStatus(s.Timestamp, channelInt32(ch(s, 0)), s.Status),
				Timestamp: s.Timestamp,
			}}
		},
		Neutral: func() []Frame {
			return []Frame{{
				CharUUID: data,
				Payload:  encodeValueStatus(0, 0, HeartRateStatusNoData),
			}}
		},
	}
}

// TemperatureProfile measures skin temperature. Channel 0: object °C,
// channel 1: ambient °C.
func TemperatureProfile(minInterval time.Duration) Profile {
	data := gatt.NormalizeUUID(TemperatureDataUUID)
	return Profile{
		Name:    "skin_temperature",
		Tracker: TrackerSkinTemperature,
		Service: gatt.NewServiceDescriptor(TemperatureServiceUUID,
			gatt.CharacteristicDescriptor{UUID: TemperatureDataUUID, Mode: gatt.AccessReadNotify},
		),
		MinNotifyInterval: minInterval,
		Encode: func(s Sample) []Frame {
			return []Frame{{
				CharUUID:  data,
				Payload:   encodeTemperature(s.Timestamp, channelFloat32(ch(s, 0)), channelFloat32(ch(s, 1)), s.Status),
				Timestamp: s.Timestamp,
			}}
		},
		Neutral: func() []Frame {
			return []Frame{{
				CharUUID: data,
				Payload:  encodeTemperature(0, 0, 0, TemperatureStatusError),
			}}
		},
	}
}

// AccelerometerProfile streams raw acceleration. Channels 0..2: x, y, z.
func AccelerometerProfile(minInterval time.Duration) Profile {
	data := gatt.NormalizeUUID(AccelerometerDataUUID)
	return Profile{
		Name:    "accelerometer",
		Tracker: TrackerAccelerometer,
		Service: gatt.NewServiceDescriptor(AccelerometerServiceUUID,
			gatt.CharacteristicDescriptor{UUID: AccelerometerDataUUID, Mode: gatt.AccessReadNotify},
		),
		MinNotifyInterval: minInterval,
		Encode: func(s Sample) []Frame {
			return []Frame{{
				CharUUID: data,
				Payload: encodeAccelerometer(s.Timestamp,
					channelInt32(ch(s, 0)), channelInt32(ch(s, 1)), channelInt32(ch(s, 2))),
				Timestamp: s.Timestamp,
			}}
		},
		Neutral: func() []Frame {
			return []Frame{{
				CharUUID: data,
				Payload:  encodeAccelerometer(0, SentinelInt32, SentinelInt32, SentinelInt32),
			}}
		},
	}
}

// PPGProfile streams the three optical pulse channels, each on its own
// characteristic. Channels 0..2: green, IR, red.
func PPGProfile(minInterval time.Duration) Profile {
	green := gatt.NormalizeUUID(PPGGreenDataUUID)
	ir := gatt.NormalizeUUID(PPGIRDataUUID)
	red := gatt.NormalizeUUID(PPGRedDataUUID)
	return Profile{
		Name:    "ppg",
		Tracker: TrackerPPG,
		Service: gatt.NewServiceDescriptor(PPGServiceUUID,
			gatt.CharacteristicDescriptor{UUID: PPGGreenDataUUID, Mode: gatt.AccessReadNotify},
			gatt.CharacteristicDescriptor{UUID: PPGIRDataUUID, Mode: gatt.AccessReadNotify},
			gatt.CharacteristicDescriptor{UUID: PPGRedDataUUID, Mode: gatt.AccessReadNotify},
		),
		MinNotifyInterval: minInterval,
		Encode: func(s Sample) []Frame {
			return []Frame{
				{CharUUID: green, Payload: encodeValueStatus(s.Timestamp, channelInt32(ch(s, 0)), s.Status), Timestamp: s.Timestamp},
				{CharUUID: ir, Payload: encodeValueStatus(s.Timestamp, channelInt32(ch(s, 1)), s.Status), Timestamp: s.Timestamp},
				{CharUUID: red, Payload: encodeValueStatus(s.Timestamp, channelInt32(ch(s, 2)), s.Status), Timestamp: s.Timestamp},
			}
		},
		Neutral: func() []Frame {
			return []Frame{
				{CharUUID: green, Payload: encodeValueStatus(0, SentinelInt32, PPGStatusPreempted)},
				{CharUUID: ir, Payload: encodeValueStatus(0, SentinelInt32, PPGStatusPreempted)},
				{CharUUID: red, Payload: encodeValueStatus(0, SentinelInt32, PPGStatusPreempted)},
			}
		},
	}
}

// SpO2Profile is the on-demand blood oxygen measurement. Channel 0:
// saturation percent.
func SpO2Profile() Profile {
	data := gatt.NormalizeUUID(SpO2DataUUID)
	return Profile{
		Name:        "spo2",
		Tracker:     TrackerSpO2,
		TriggerUUID: gatt.NormalizeUUID(SpO2TriggerUUID),
		Service: gatt.NewServiceDescriptor(SpO2ServiceUUID,
			gatt.CharacteristicDescriptor{UUID: SpO2DataUUID, Mode: gatt.AccessReadNotify},
			gatt.CharacteristicDescriptor{UUID: SpO2TriggerUUID, Mode: gatt.AccessWrite},
		),
		Encode: func(s Sample) []Frame {
			return []Frame{{
				CharUUID:  data,
				Payload:   encodeValueStatus(s.Timestamp, channelInt32(ch(s, 0)), s.Status),
				Timestamp: s.Timestamp,
			}}
		},
		Neutral: func() []Frame {
			return []Frame{{
				CharUUID: data,
				Payload:  encodeValueStatus(0, 0, SpO2StatusCalculating),
			}}
		},
	}
}

// ECGProfile is the on-demand electrocardiogram. Channel 0: millivolts;
// Sample.Sequence carries the hardware sequence counter.
func ECGProfile() Profile {
	data := gatt.NormalizeUUID(ECGDataUUID)
	return Profile{
		Name:        "ecg",
		Tracker:     TrackerECG,
		TriggerUUID: gatt.NormalizeUUID(ECGTriggerUUID),
		Service: gatt.NewServiceDescriptor(ECGServiceUUID,
			gatt.CharacteristicDescriptor{UUID: ECGDataUUID, Mode: gatt.AccessReadNotify},
			gatt.CharacteristicDescriptor{UUID: ECGTriggerUUID, Mode: gatt.AccessWrite},
		),
		Encode: func(s Sample) []Frame {
			return []Frame{{
				CharUUID:  data,
				Payload:   encodeECG(s.Timestamp, channelFloat32(ch(s, 0)), s.Status, s.Sequence),
				Timestamp: s.Timestamp,
			}}
		},
		Neutral: func() []Frame {
			return []Frame{{
				CharUUID: data,
				Payload:  encodeECG(0, 0, ECGLeadStatusNormal, 0),
			}}
		},
	}
}

// ch safely indexes a sample's channels; out-of-range reads as unavailable.
func ch(s Sample, i int) Channel {
	if i >= len(s.Channels) {
		return Channel{}
	}
	return s.Channels[i]
}
