package timescale

import (
	"testing"
	"time"
)

func TestToScale(t *testing.T) {
	const scale uint32 = 90000
	values := []struct {
		T time.Duration
		V uint64
	}{
		{0, 0},
		{time.Second/60 - 1, 1500},
		{time.Second/60 + 0, 1500},
		{time.Second/60 + 1, 1500},
		{(time.Second/60)*60 - 1, 90000},
		{(time.Second/60)*60 + 0, 90000},
		{(time.Second/60)*60 + 1, 90000},
		{time.Second * (1 << 32), 90000 * (1 << 32)},
	}
	for _, ex := range values {
		n := ToScale(ex.T, scale)
		if n != ex.V {
			t.Errorf("%d (%s): expected %d, got %d", ex.T, ex.T, ex.V, n)
		}
	}
}

func TestToDuration(t *testing.T) {
	const scale uint32 = 90000
	values := []struct {
		TS uint64
		V  time.Duration
	}{
		{0, 0},
		{1500, time.Second / 60},
		{90000, time.Second},
		{90000 * 3600, time.Hour},
	}
	for _, ex := range values {
		d := ToDuration(ex.TS, scale)
		if d != ex.V {
			t.Errorf("%d: expected %s, got %s", ex.TS, ex.V, d)
		}
	}
}

func TestMicrosRoundTrip(t *testing.T) {
	const scale uint32 = 12800
	values := []struct {
		TS int64
		US int64
	}{
		{0, 0},
		{512, 40000},
		{1024, 80000},
		{12800, 1000000},
		{-512, -40000},
	}
	for _, ex := range values {
		us := ToMicros(ex.TS, scale)
		if us != ex.US {
			t.Errorf("ToMicros(%d): expected %d, got %d", ex.TS, ex.US, us)
		}
		ts := FromMicros(ex.US, scale)
		if ts != ex.TS {
			t.Errorf("FromMicros(%d): expected %d, got %d", ex.US, ex.TS, ts)
		}
	}
}

func TestFromMicrosRounding(t *testing.T) {
	// 30000/1001 fps at timescale 30000: one frame is 33366.7us -> 1001 ticks
	if ts := FromMicros(33367, 30000); ts != 1001 {
		t.Errorf("expected 1001, got %d", ts)
	}
}
