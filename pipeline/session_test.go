package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/vodkit/mp4pipe/av"
	"github.com/vodkit/mp4pipe/decoder"
	"github.com/vodkit/mp4pipe/format/mp4/mp4test"
	"github.com/vodkit/mp4pipe/source"
)

func sessionFixture(n int, timeScale, dur uint32) mp4test.File {
	f := mp4test.File{
		TimeScale: timeScale,
		Width:     320,
		Height:    240,
	}
	for i := 0; i < n; i++ {
		f.Samples = append(f.Samples, mp4test.Sample{
			Data:     mp4test.SampleData(32, byte(i)),
			Duration: dur,
			Sync:     i == 0,
		})
	}
	return f
}

func chunkSource(b []byte, chunkSize int) source.ChunkSource {
	return source.NewReader(bytes.NewReader(b), int64(len(b)), chunkSize)
}

func drain(t *testing.T, s *Session) []*av.Frame {
	t.Helper()
	ctx := context.Background()
	var frames []*av.Frame
	for {
		frame, err := s.ReadFrame(ctx)
		if err == io.EOF {
			return frames
		}
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		frames = append(frames, frame)
	}
}

func TestSessionDecodesAllFrames(t *testing.T) {
	const n = 10
	b := sessionFixture(n, 12800, 512).Build()
	s, err := Decode(context.Background(), chunkSource(b, 1024), &decoder.FakeDecoder{},
		WithPlatform(decoder.Platform{}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	info := s.Info()
	if info.Width != 320 || info.Height != 240 || info.FrameCount != n {
		t.Fatalf("info: %+v", info)
	}

	frames := drain(t, s)
	if len(frames) != n {
		t.Fatalf("frames: got %d want %d", len(frames), n)
	}
	for i, f := range frames {
		want := int64(i) * 40000 // 512 ticks at 12800Hz
		if f.TimestampMicros != want {
			t.Errorf("frame %d: timestamp %d want %d", i, f.TimestampMicros, want)
		}
		if f.DurationMicros != 40000 {
			t.Errorf("frame %d: duration %d", i, f.DurationMicros)
		}
		f.Close()
	}
	if s.FramesDecoded() != n {
		t.Errorf("FramesDecoded: %d", s.FramesDecoded())
	}
}

func TestSessionChunkSizeInvariance(t *testing.T) {
	b := sessionFixture(10, 12800, 512).Build()

	var reference []int64
	for _, chunkSize := range []int{len(b), 512, 97} {
		s, err := Decode(context.Background(), chunkSource(b, chunkSize), &decoder.FakeDecoder{},
			WithPlatform(decoder.Platform{}))
		if err != nil {
			t.Fatalf("chunk size %d: %v", chunkSize, err)
		}
		var stamps []int64
		for _, f := range drain(t, s) {
			stamps = append(stamps, f.TimestampMicros)
			f.Close()
		}
		s.Close()
		if reference == nil {
			reference = stamps
			continue
		}
		if len(stamps) != len(reference) {
			t.Fatalf("chunk size %d: %d frames, reference %d", chunkSize, len(stamps), len(reference))
		}
		for i := range stamps {
			if stamps[i] != reference[i] {
				t.Errorf("chunk size %d: frame %d timestamp %d != %d", chunkSize, i, stamps[i], reference[i])
			}
		}
	}
}

func TestSessionEditListTrim(t *testing.T) {
	f := sessionFixture(10, 10, 1)
	for i := range f.Samples {
		f.Samples[i].CtsOffset = 2 // presentation times 2..11
	}
	media := int64(5)
	f.EditMediaTime = &media
	b := f.Build()

	s, err := Decode(context.Background(), chunkSource(b, 256), &decoder.FakeDecoder{},
		WithPlatform(decoder.Platform{}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	frames := drain(t, s)
	// presentation times 2, 3 and 4 precede the edit media time
	if len(frames) != 7 {
		t.Fatalf("frames: got %d want 7", len(frames))
	}
	for i, frame := range frames {
		want := int64(i+5) * 100000 // ticks at 10Hz
		if frame.TimestampMicros != want {
			t.Errorf("frame %d: timestamp %d want %d", i, frame.TimestampMicros, want)
		}
		frame.Close()
	}
}

func TestSessionEmptyEditIsNotTrim(t *testing.T) {
	f := sessionFixture(4, 10, 1)
	media := int64(-1)
	f.EditMediaTime = &media
	b := f.Build()

	s, err := Decode(context.Background(), chunkSource(b, 256), &decoder.FakeDecoder{},
		WithPlatform(decoder.Platform{}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	frames := drain(t, s)
	if len(frames) != 4 {
		t.Fatalf("frames: got %d want 4", len(frames))
	}
	for _, f := range frames {
		f.Close()
	}
}

func TestSessionNoVideoTrack(t *testing.T) {
	f := mp4test.File{TimeScale: 1000, NoVideoTrack: true}
	b := f.Build()

	_, err := Decode(context.Background(), chunkSource(b, 256), &decoder.FakeDecoder{},
		WithPlatform(decoder.Platform{}))
	if !errors.Is(err, av.ErrNoVideoTrack) {
		t.Fatalf("expected ErrNoVideoTrack, got %v", err)
	}
}

func TestSessionUnsupportedConfig(t *testing.T) {
	b := sessionFixture(4, 1000, 40).Build()
	dec := &decoder.FakeDecoder{Supported: func(decoder.Config) bool { return false }}

	_, err := Decode(context.Background(), chunkSource(b, 256), dec,
		WithPlatform(decoder.Platform{}))
	if !errors.Is(err, av.ErrUnsupportedCodecConfig) {
		t.Fatalf("expected ErrUnsupportedCodecConfig, got %v", err)
	}
}

func TestSessionDecodeErrorSurfaces(t *testing.T) {
	b := sessionFixture(4, 1000, 40).Build()
	dec := &decoder.FakeDecoder{DecodeErr: errors.New("keyframe required")}

	s, err := Decode(context.Background(), chunkSource(b, 1<<20), dec,
		WithPlatform(decoder.Platform{}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	_, err = s.ReadFrame(context.Background())
	var derr av.DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestSessionProgress(t *testing.T) {
	const n = 6
	b := sessionFixture(n, 1000, 40).Build()

	var counts []int
	s, err := Decode(context.Background(), chunkSource(b, 512), &decoder.FakeDecoder{},
		WithPlatform(decoder.Platform{}),
		WithProgress(func(p Progress) {
			counts = append(counts, p.FramesDecoded)
			if p.Info.FrameCount != n {
				t.Errorf("progress info frame count: %d", p.Info.FrameCount)
			}
		}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for _, f := range drain(t, s) {
		f.Close()
	}
	if len(counts) != n {
		t.Fatalf("progress calls: %d", len(counts))
	}
	for i, c := range counts {
		if c != i+1 {
			t.Errorf("progress %d: FramesDecoded=%d", i, c)
		}
	}
}

func TestSessionPacketSink(t *testing.T) {
	const n = 5
	b := sessionFixture(n, 1000, 40).Build()

	var tapped []av.Packet
	s, err := Decode(context.Background(), chunkSource(b, 512), &decoder.FakeDecoder{},
		WithPlatform(decoder.Platform{}),
		WithPacketSink(func(pkts []av.Packet) {
			tapped = append(tapped, pkts...)
		}))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for _, f := range drain(t, s) {
		f.Close()
	}
	if len(tapped) != n {
		t.Fatalf("tapped packets: %d", len(tapped))
	}
	for i, pkt := range tapped {
		if pkt.Index != i {
			t.Errorf("tapped packet %d: index %d", i, pkt.Index)
		}
	}
}

func TestSessionUniqueIDs(t *testing.T) {
	b := sessionFixture(2, 1000, 40).Build()
	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		s, err := Decode(context.Background(), chunkSource(b, 1<<20), &decoder.FakeDecoder{},
			WithPlatform(decoder.Platform{}))
		if err != nil {
			t.Fatal(err)
		}
		if s.ID == "" || seen[s.ID] {
			t.Fatalf("session id not unique: %q", s.ID)
		}
		seen[s.ID] = true
		for _, f := range drain(t, s) {
			f.Close()
		}
		s.Close()
	}
}
