package params

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"libdb.so/driftglow/internal/led"
)

func TestStore(t *testing.T) {
	s := NewStore(Defaults())
	assert.Equal(t, Snapshot{
		Mode:       ModeComet,
		Color:      led.RGB(255, 0, 0),
		Speed:      128,
		Brightness: 128,
	}, s.Load())

	next := Snapshot{Mode: ModeRainbow, Color: led.RGB(1, 2, 3), Speed: 4, Brightness: 5}
	s.Store(next)
	assert.Equal(t, next, s.Load())

	// The stored value must not alias the caller's copy.
	next.Speed = 99
	assert.EqualValues(t, 4, s.Load().Speed)
}

func TestStoreNoTornReads(t *testing.T) {
	a := Snapshot{Mode: ModeComet, Color: led.RGB(0, 0, 0), Speed: 0, Brightness: 0}
	b := Snapshot{Mode: ModeScanner, Color: led.RGB(255, 255, 255), Speed: 255, Brightness: 255}

	s := NewStore(a)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10000; i++ {
			if i%2 == 0 {
				s.Store(b)
			} else {
				s.Store(a)
			}
		}
	}()

	for i := 0; i < 10000; i++ {
		got := s.Load()
		if got != a && got != b {
			t.Fatalf("torn read: %+v", got)
		}
	}

	wg.Wait()
}

func TestMode(t *testing.T) {
	assert.True(t, ModeScanner.Known())
	assert.False(t, Mode(7).Known())
	assert.False(t, ModeSave.Known())
	assert.Equal(t, "heartbeat", ModeHeartbeat.String())
	assert.Equal(t, "Mode(42)", Mode(42).String())
}
