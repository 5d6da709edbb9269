package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsouth/fixgate/internal/fix"
)

func TestSettingsBuilder(t *testing.T) {
	s, err := NewSettingsBuilder(fix.BeginStringFIX44, "INIT", "ACC", Initiator).
		WithAddress("fix.example.com:9876").
		WithHeartbeatInterval(45 * time.Second).
		WithResetOnLogon(true).
		WithWindow(8*time.Hour, 17*time.Hour).
		Build()
	require.NoError(t, err)

	assert.Equal(t, fix.BeginStringFIX44, s.BeginString)
	assert.Equal(t, "fix.example.com:9876", s.Address)
	assert.Equal(t, 45*time.Second, s.HeartbeatInterval)
	assert.True(t, s.ResetOnLogon)
	require.NotNil(t, s.Window)
	assert.Equal(t, 8*time.Hour, s.Window.Start)

	assert.Equal(t, "FIX.4.4-INIT-ACC", s.SessionID().String())
}

func TestSettingsValidation(t *testing.T) {
	base := func() Settings {
		return Settings{
			BeginString:       fix.BeginStringFIX42,
			SenderCompID:      "A",
			TargetCompID:      "B",
			HeartbeatInterval: 30 * time.Second,
		}
	}

	assert.NoError(t, base().Validate())

	s := base()
	s.SenderCompID = ""
	assert.Error(t, s.Validate())

	s = base()
	s.BeginString = "FIX.X"
	assert.Error(t, s.Validate())

	s = base()
	s.HeartbeatInterval = 0
	assert.Error(t, s.Validate())

	s = base()
	s.HeartbeatInterval = 2 * time.Hour
	assert.Error(t, s.Validate())

	s = base()
	s.HeartbeatInterval = 1500 * time.Millisecond
	assert.Error(t, s.Validate())
}

func TestParseTimeOfDay(t *testing.T) {
	d, err := ParseTimeOfDay("08:30")
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour+30*time.Minute, d)

	d, err = ParseTimeOfDay("23:59:59")
	require.NoError(t, err)
	assert.Equal(t, 23*time.Hour+59*time.Minute+59*time.Second, d)

	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
	_, err = ParseTimeOfDay("nope")
	assert.Error(t, err)
}

func TestActiveWindowContains(t *testing.T) {
	day := ActiveWindow{Start: 8 * time.Hour, End: 17 * time.Hour}
	at := func(h, m int) time.Time {
		return time.Date(2024, 3, 1, h, m, 0, 0, time.UTC)
	}
	assert.True(t, day.Contains(at(8, 0)))
	assert.True(t, day.Contains(at(12, 30)))
	assert.False(t, day.Contains(at(17, 0)))
	assert.False(t, day.Contains(at(3, 0)))

	// window wrapping midnight
	night := ActiveWindow{Start: 22 * time.Hour, End: 6 * time.Hour}
	assert.True(t, night.Contains(at(23, 0)))
	assert.True(t, night.Contains(at(2, 0)))
	assert.False(t, night.Contains(at(12, 0)))
}

func TestSchedulerFansOutTicks(t *testing.T) {
	sc := NewScheduler()
	sc.interval = 5 * time.Millisecond

	h := newHarness(t, Initiator)
	sc.Register(h.s)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			<-h.s.inbox
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sc.Run(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ticks not delivered")
	}

	sc.Unregister(h.s)
}
