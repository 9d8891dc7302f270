package hub_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwearable/sensorhub/internal/gatt"
	"github.com/openwearable/sensorhub/internal/hub"
	"github.com/openwearable/sensorhub/internal/sensor"
	"github.com/openwearable/sensorhub/internal/sequencer"
	"github.com/openwearable/sensorhub/internal/testutils"
)

const centralAddr = "AA:BB:CC:DD:EE:99"

func fastOptions() hub.Options {
	opts := hub.DefaultOptions()
	opts.HeartRateInterval = 0 // no rate limiting in tests
	opts.OnDemand = sensor.OnDemandOptions{
		Window:     120 * time.Millisecond,
		Settling:   10 * time.Millisecond,
		NotifyTick: 10 * time.Millisecond,
	}
	opts.Sequencer = sequencer.Options{
		StartSettle:  10 * time.Millisecond,
		ResumeSettle: 10 * time.Millisecond,
	}
	return opts
}

func newFixture(t *testing.T, provider sensor.TrackerProvider, opts hub.Options) (*hub.Coordinator, *gatt.Server, *testutils.FakeTransport) {
	t.Helper()
	th := testutils.NewTestHelper(t)
	transport := testutils.NewFakeTransport()
	server := gatt.NewServer(transport, gatt.ServerOptions{
		Advertising: gatt.AdvertiserOptions{DeviceName: "SensorHub"},
	}, th.Logger)
	c := hub.New(server, provider, opts, th.Logger)
	return c, server, transport
}

func TestCoordinatorRegistersSupportedSensors(t *testing.T) {
	t.Run("full provider registers all six services", func(t *testing.T) {
		provider := testutils.NewFakeProvider(
			sensor.TrackerHeartRate, sensor.TrackerSkinTemperature,
			sensor.TrackerAccelerometer, sensor.TrackerPPG,
			sensor.TrackerSpO2, sensor.TrackerECG,
		)
		c, _, transport := newFixture(t, provider, fastOptions())
		defer c.Close()

		assert.Len(t, transport.Services(), 6)
	})

	t.Run("unsupported sensors are skipped, not fatal", func(t *testing.T) {
		provider := testutils.NewFakeProvider(sensor.TrackerHeartRate, sensor.TrackerSpO2)
		c, _, transport := newFixture(t, provider, fastOptions())
		defer c.Close()

		services := transport.Services()
		require.Len(t, services, 2)
		assert.Equal(t, "180d", services[0].UUID)
		assert.Equal(t, "1822", services[1].UUID)
	})

	t.Run("disabled sensors are not registered", func(t *testing.T) {
		provider := testutils.NewFakeProvider(sensor.TrackerHeartRate, sensor.TrackerSpO2)
		opts := fastOptions()
		opts.SpO2 = false
		c, _, transport := newFixture(t, provider, opts)
		defer c.Close()

		assert.Len(t, transport.Services(), 1)
	})
}

func TestCoordinatorStart(t *testing.T) {
	provider := testutils.NewFakeProvider(sensor.TrackerHeartRate, sensor.TrackerAccelerometer)
	c, server, transport := newFixture(t, provider, fastOptions())
	defer c.Close()

	c.Start()

	assert.Equal(t, gatt.AdvActive, server.Advertiser().State())
	assert.True(t, transport.Advertising())
	assert.True(t, provider.Tracker(sensor.TrackerHeartRate).Listening())
	assert.True(t, provider.Tracker(sensor.TrackerAccelerometer).Listening())
}

func TestCoordinatorPauseResumeFanOut(t *testing.T) {
	provider := testutils.NewFakeProvider(sensor.TrackerHeartRate, sensor.TrackerPPG)
	c, _, _ := newFixture(t, provider, fastOptions())
	defer c.Close()
	c.Start()

	c.PauseContinuous()
	assert.False(t, provider.Tracker(sensor.TrackerHeartRate).Listening())
	assert.False(t, provider.Tracker(sensor.TrackerPPG).Listening())

	c.ResumeContinuous()
	assert.True(t, provider.Tracker(sensor.TrackerHeartRate).Listening())
	assert.True(t, provider.Tracker(sensor.TrackerPPG).Listening())
}

// TestCoordinatorTriggerFlow drives the whole exclusive-measurement
// handshake through the transport: a trigger write pauses the continuous
// stream, the measurement runs its window, and the stream resumes.
func TestCoordinatorTriggerFlow(t *testing.T) {
	provider := testutils.NewFakeProvider(sensor.TrackerHeartRate, sensor.TrackerSpO2)
	c, _, transport := newFixture(t, provider, fastOptions())
	defer c.Close()
	c.Start()

	hrTracker := provider.Tracker(sensor.TrackerHeartRate)
	spo2Tracker := provider.Tracker(sensor.TrackerSpO2)

	transport.Connect(centralAddr)
	transport.Subscribe(centralAddr, "2a5e", false)

	transport.Write(centralAddr, "2a5f", []byte{0x01})

	// continuous stream pauses and the measurement takes the hardware
	require.Eventually(t, func() bool {
		return spo2Tracker.Listening() && !hrTracker.Listening()
	}, 2*time.Second, 5*time.Millisecond, "measurement should own the sensing hardware")
	assert.Equal(t, sequencer.Measuring, c.Sequencer().State())

	// measurement data flows to the subscribed central
	spo2Tracker.Emit(sensor.Sample{
		Timestamp: 1000,
		Channels:  []sensor.Channel{sensor.Ch(97)},
		Status:    sensor.SpO2StatusCalculating,
	})
	require.Eventually(t, func() bool {
		return len(transport.NotificationsFor("2a5e")) > 0
	}, 2*time.Second, 5*time.Millisecond, "measurement frames should reach the central")

	// window elapses: hardware returns to the continuous stream
	require.Eventually(t, func() bool {
		return hrTracker.Listening() && !spo2Tracker.Listening()
	}, 2*time.Second, 5*time.Millisecond, "continuous stream should resume after the window")
	require.Eventually(t, func() bool {
		return c.Sequencer().State() == sequencer.Idle
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCoordinatorStatus(t *testing.T) {
	provider := testutils.NewFakeProvider(sensor.TrackerHeartRate, sensor.TrackerSpO2)
	c, _, transport := newFixture(t, provider, fastOptions())
	defer c.Close()
	c.Start()
	transport.Connect(centralAddr)

	ja := testutils.NewJSONAsserter(t)
	ja.Assert(testutils.MustJSON(c.Status()), `{
		"advertising": "active",
		"sequencer": "idle",
		"connected_devices": ["AA:BB:CC:DD:EE:99"],
		"sessions": [
			{"sensor": "heart_rate", "mode": "continuous", "state": "tracking"},
			{"sensor": "spo2", "mode": "on_demand", "state": "initialized"}
		]
	}`)
}

func TestCoordinatorClose(t *testing.T) {
	provider := testutils.NewFakeProvider(sensor.TrackerHeartRate)
	c, server, transport := newFixture(t, provider, fastOptions())
	c.Start()

	require.NoError(t, c.Close())

	assert.True(t, transport.Closed())
	assert.False(t, provider.Tracker(sensor.TrackerHeartRate).Listening())
	assert.ErrorIs(t, server.Close(), gatt.ErrServerClosed)
}
