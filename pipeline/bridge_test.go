package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/vodkit/mp4pipe/av"
	"github.com/vodkit/mp4pipe/decoder"
)

func testFrame(ts int64) *av.Frame {
	return &av.Frame{
		Surface:         &decoder.RawSurface{W: 4, H: 4},
		TimestampMicros: ts,
		DurationMicros:  40000,
	}
}

func TestBridgeBufferedOrder(t *testing.T) {
	b := newBridge()
	b.push(testFrame(0))
	b.push(testFrame(40000))
	b.push(testFrame(80000))
	b.finish(nil)

	ctx := context.Background()
	for i, want := range []int64{0, 40000, 80000} {
		frame, err := b.ReadFrame(ctx)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if frame.TimestampMicros != want {
			t.Errorf("read %d: timestamp %d want %d", i, frame.TimestampMicros, want)
		}
		frame.Close()
	}
	if _, err := b.ReadFrame(ctx); err != io.EOF {
		t.Fatalf("after drain: %v", err)
	}
	// io.EOF is sticky
	if _, err := b.ReadFrame(ctx); err != io.EOF {
		t.Fatalf("second read after drain: %v", err)
	}
}

func TestBridgePendingHandoff(t *testing.T) {
	b := newBridge()
	got := make(chan *av.Frame, 1)
	go func() {
		frame, err := b.ReadFrame(context.Background())
		if err != nil {
			t.Errorf("ReadFrame: %v", err)
		}
		got <- frame
	}()

	// wait for the reader to register
	deadline := time.Now().Add(time.Second)
	for {
		b.mu.Lock()
		registered := b.pending != nil
		b.mu.Unlock()
		if registered {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("reader never registered")
		}
		time.Sleep(time.Millisecond)
	}

	b.push(testFrame(7))
	// direct handoff: nothing may stay buffered
	b.mu.Lock()
	buffered := len(b.buf)
	b.mu.Unlock()
	if buffered != 0 {
		t.Errorf("frame buffered despite pending reader")
	}

	select {
	case frame := <-got:
		if frame.TimestampMicros != 7 {
			t.Errorf("timestamp %d", frame.TimestampMicros)
		}
		frame.Close()
	case <-time.After(time.Second):
		t.Fatal("handoff did not resolve")
	}
}

func TestBridgeConcurrentRead(t *testing.T) {
	b := newBridge()
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		close(started)
		b.ReadFrame(context.Background())
		<-release
	}()
	<-started

	deadline := time.Now().Add(time.Second)
	for {
		b.mu.Lock()
		registered := b.pending != nil
		b.mu.Unlock()
		if registered {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first reader never registered")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := b.ReadFrame(context.Background()); !errors.Is(err, ErrConcurrentRead) {
		t.Fatalf("expected ErrConcurrentRead, got %v", err)
	}
	b.finish(nil)
	close(release)
}

func TestBridgeFinishWithError(t *testing.T) {
	cause := av.DecodeError{Err: errors.New("hardware reset")}
	b := newBridge()
	b.push(testFrame(0))
	b.finish(cause)

	ctx := context.Background()
	// buffered frame still drains before the error surfaces
	frame, err := b.ReadFrame(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	frame.Close()
	if _, err := b.ReadFrame(ctx); !errors.Is(err, cause) {
		t.Fatalf("expected terminal error, got %v", err)
	}
	if _, err := b.ReadFrame(ctx); !errors.Is(err, cause) {
		t.Fatalf("terminal error not sticky: %v", err)
	}
}

func TestBridgeFinishUnblocksReader(t *testing.T) {
	b := newBridge()
	done := make(chan error, 1)
	go func() {
		_, err := b.ReadFrame(context.Background())
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	b.finish(nil)

	select {
	case err := <-done:
		if err != io.EOF {
			t.Fatalf("expected io.EOF, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reader not unblocked by finish")
	}
}

func TestBridgeContextCancel(t *testing.T) {
	b := newBridge()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := b.ReadFrame(ctx)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reader not unblocked by cancel")
	}

	// the slot is free again for a fresh read
	b.push(testFrame(1))
	frame, err := b.ReadFrame(context.Background())
	if err != nil {
		t.Fatalf("read after cancel: %v", err)
	}
	frame.Close()
}

func TestBridgeCloseReleasesFrames(t *testing.T) {
	b := newBridge()
	s := &decoder.RawSurface{W: 4, H: 4}
	b.push(&av.Frame{Surface: s})
	b.Close()
	if !s.Closed() {
		t.Error("buffered surface not released on close")
	}
	if _, err := b.ReadFrame(context.Background()); err != io.EOF {
		t.Fatalf("read after close: %v", err)
	}
}

func TestBridgePushAfterDone(t *testing.T) {
	b := newBridge()
	b.finish(nil)
	s := &decoder.RawSurface{W: 4, H: 4}
	b.push(&av.Frame{Surface: s})
	if !s.Closed() {
		t.Error("frame pushed after finish must be released")
	}
}
