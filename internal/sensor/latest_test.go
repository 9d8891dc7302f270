package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestStore(t *testing.T) {
	t.Run("empty slot reads nil", func(t *testing.T) {
		store := newLatestStore([]string{"2a37"})
		assert.Nil(t, store.Get("2a37"))
	})

	t.Run("update overwrites", func(t *testing.T) {
		store := newLatestStore([]string{"2a37"})
		store.Update(Frame{CharUUID: "2a37", Payload: []byte{0x01}})
		store.Update(Frame{CharUUID: "2a37", Payload: []byte{0x02}})

		frame := store.Get("2a37")
		require.NotNil(t, frame)
		assert.Equal(t, []byte{0x02}, frame.Payload)
	})

	t.Run("unknown characteristic dropped", func(t *testing.T) {
		store := newLatestStore([]string{"2a37"})
		store.Update(Frame{CharUUID: "ffff", Payload: []byte{0x01}})
		assert.Nil(t, store.Get("ffff"))
	})

	t.Run("reset restores neutral frames", func(t *testing.T) {
		store := newLatestStore([]string{"2a37", "2a38"})
		store.Update(Frame{CharUUID: "2a37", Payload: []byte{0x01}})
		store.Update(Frame{CharUUID: "2a38", Payload: []byte{0x02}})

		store.Reset([]Frame{{CharUUID: "2a37", Payload: []byte{0xff}}})

		require.NotNil(t, store.Get("2a37"))
		assert.Equal(t, []byte{0xff}, store.Get("2a37").Payload)
		assert.Nil(t, store.Get("2a38"))
	})
}

func TestNotifyGate(t *testing.T) {
	t.Run("zero interval always allows", func(t *testing.T) {
		g := &notifyGate{min: 0}
		now := time.Now().UnixNano()
		assert.True(t, g.allow(now))
		assert.True(t, g.allow(now))
	})

	t.Run("suppresses within interval", func(t *testing.T) {
		g := &notifyGate{min: time.Second.Nanoseconds()}
		base := time.Now().UnixNano()

		assert.True(t, g.allow(base))
		assert.False(t, g.allow(base+500*time.Millisecond.Nanoseconds()))
		assert.True(t, g.allow(base+time.Second.Nanoseconds()))
	})
}
