package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/vodkit/mp4pipe/av"
)

var ErrConcurrentRead = errors.New("pipeline: concurrent ReadFrame")

// Bridge converts the push-based decode output into a pull-based frame
// sequence. It is a single-producer single-consumer rendezvous: at most
// one ReadFrame may be outstanding, and a frame arriving while a read is
// pending is handed over directly instead of being buffered. When the
// consumer is slower than the decoder, frames queue in arrival order.
type Bridge struct {
	mu      sync.Mutex
	buf     []*av.Frame
	pending chan *av.Frame
	done    bool
	err     error
}

func newBridge() *Bridge {
	return &Bridge{}
}

// push hands a frame to a waiting reader, or buffers it.
func (self *Bridge) push(frame *av.Frame) {
	self.mu.Lock()
	if self.done {
		self.mu.Unlock()
		frame.Close()
		return
	}
	if ch := self.pending; ch != nil {
		self.pending = nil
		self.mu.Unlock()
		ch <- frame
		return
	}
	self.buf = append(self.buf, frame)
	self.mu.Unlock()
}

// finish marks the sequence complete. Buffered frames stay readable;
// once drained, ReadFrame returns err, or io.EOF when err is nil.
func (self *Bridge) finish(err error) {
	self.mu.Lock()
	if self.done {
		self.mu.Unlock()
		return
	}
	self.done = true
	self.err = err
	ch := self.pending
	self.pending = nil
	self.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// ReadFrame returns the next decoded frame. It blocks until a frame is
// produced, the sequence completes (io.EOF, repeatedly, once drained) or
// ctx is cancelled. The caller owns the returned frame and must Close
// it. Only one ReadFrame may be in flight at a time.
func (self *Bridge) ReadFrame(ctx context.Context) (*av.Frame, error) {
	self.mu.Lock()
	if len(self.buf) > 0 {
		frame := self.buf[0]
		self.buf = self.buf[1:]
		self.mu.Unlock()
		return frame, nil
	}
	if self.done {
		err := self.err
		self.mu.Unlock()
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}
	if self.pending != nil {
		self.mu.Unlock()
		return nil, ErrConcurrentRead
	}
	ch := make(chan *av.Frame, 1)
	self.pending = ch
	self.mu.Unlock()

	select {
	case frame, ok := <-ch:
		if !ok {
			self.mu.Lock()
			err := self.err
			self.mu.Unlock()
			if err == nil {
				err = io.EOF
			}
			return nil, err
		}
		return frame, nil
	case <-ctx.Done():
		self.mu.Lock()
		if self.pending == ch {
			self.pending = nil
		}
		self.mu.Unlock()
		// the producer may have resolved the request before we
		// deregistered; do not leak that frame
		select {
		case frame, ok := <-ch:
			if ok {
				frame.Close()
			}
		default:
		}
		return nil, ctx.Err()
	}
}

// Close releases any frames still buffered. ReadFrame afterwards
// reports the session error or io.EOF.
func (self *Bridge) Close() {
	self.finish(nil)
	self.mu.Lock()
	buf := self.buf
	self.buf = nil
	self.mu.Unlock()
	for _, frame := range buf {
		frame.Close()
	}
}
