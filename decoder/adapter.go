package decoder

import (
	"log"
	"sync"
	"time"

	"github.com/vodkit/mp4pipe/av"
)

// Adapter drives a VideoDecoder with demuxed samples and turns its bare
// surface outputs into timed frames.
//
// The decoder does not echo per-sample metadata with its outputs, so the
// adapter correlates positionally: submitted samples are kept in an
// append-only queue and the i-th output is matched with queue entry i.
// This assumes exactly one output per submitted sample; a decoder that
// drops frames internally desynchronizes the correlation and durations
// are misattributed from that point on. OutputsSeen and
// SamplesSubmitted expose the two counters so callers can detect skew.
type Adapter struct {
	dec       VideoDecoder
	transform frameTransform

	mu        sync.Mutex
	queue     []av.Packet // sample queue, append-only, decode order
	submitted int
	outIndex  int
	expected  int
	finished  bool
	failed    error

	onFrame func(*av.Frame)
	onDone  func(error)
}

func NewAdapter(dec VideoDecoder, platform Platform) *Adapter {
	a := &Adapter{
		dec:       dec,
		transform: newFrameTransform(platform),
		expected:  -1,
	}
	dec.OnFrame(a.handleSurface)
	dec.OnError(a.handleError)
	return a
}

// OnFrame registers the sink receiving timed frames, in decode order.
func (self *Adapter) OnFrame(fn func(*av.Frame)) {
	self.onFrame = fn
}

// OnDone registers the completion callback. It fires exactly once: with
// nil once the expected number of frames has been emitted, or with the
// terminal error.
func (self *Adapter) OnDone(fn func(error)) {
	self.onDone = fn
}

// Configure validates cfg against the decoder's capability check and
// commits it. An unsupported configuration aborts the session before any
// sample is decoded.
func (self *Adapter) Configure(cfg Config, expectedFrames int) error {
	if !IsConfigSupported(self.dec, cfg) {
		self.fail(av.ErrUnsupportedCodecConfig)
		return av.ErrUnsupportedCodecConfig
	}
	if err := self.dec.Configure(cfg); err != nil {
		err = av.DecodeError{Err: err}
		self.fail(err)
		return err
	}
	self.mu.Lock()
	self.expected = expectedFrames
	self.mu.Unlock()
	return nil
}

// WritePackets appends the samples to the queue and submits them for
// decode, in the order received.
func (self *Adapter) WritePackets(pkts []av.Packet) error {
	self.mu.Lock()
	if self.finished {
		self.mu.Unlock()
		return self.failed
	}
	self.queue = append(self.queue, pkts...)
	self.submitted += len(pkts)
	self.mu.Unlock()

	for _, pkt := range pkts {
		if err := self.dec.Decode(pkt); err != nil {
			err = av.DecodeError{Err: err}
			self.fail(err)
			return err
		}
	}
	return nil
}

// Flush tells the decoder no more samples are coming so it emits any
// frames it still buffers.
func (self *Adapter) Flush() error {
	if err := self.dec.Flush(); err != nil {
		err = av.DecodeError{Err: err}
		self.fail(err)
		return err
	}
	return nil
}

func (self *Adapter) SamplesSubmitted() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.submitted
}

func (self *Adapter) OutputsSeen() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.outIndex
}

// handleSurface is the decoder output callback: quirk transform, timing
// recovery by output index, forward, completion check.
func (self *Adapter) handleSurface(s av.Surface) {
	if self.transform != nil {
		s = self.transform(s)
	}

	self.mu.Lock()
	if self.finished || self.outIndex >= len(self.queue) {
		self.mu.Unlock()
		if Debug {
			log.Printf("decoder: dropping unmatched output %T", s)
		}
		s.Close()
		return
	}
	pkt := &self.queue[self.outIndex]
	self.outIndex++
	complete := self.expected >= 0 && self.outIndex >= self.expected
	if complete {
		self.finished = true
	}
	self.mu.Unlock()

	frame := &av.Frame{
		Surface:         s,
		TimestampMicros: durMicros(pkt.CompositionTime),
		DurationMicros:  durMicros(pkt.Duration),
	}
	if self.onFrame != nil {
		self.onFrame(frame)
	} else {
		frame.Close()
	}
	if complete && self.onDone != nil {
		self.onDone(nil)
	}
}

func (self *Adapter) handleError(err error) {
	self.fail(av.DecodeError{Err: err})
}

func (self *Adapter) fail(err error) {
	self.mu.Lock()
	if self.finished {
		self.mu.Unlock()
		return
	}
	self.finished = true
	self.failed = err
	self.mu.Unlock()
	if self.onDone != nil {
		self.onDone(err)
	}
}

// durMicros rounds a duration to microseconds; composition times may be
// negative before edit-list trimming.
func durMicros(d time.Duration) int64 {
	if d < 0 {
		return -int64((-d + 500*time.Nanosecond) / time.Microsecond)
	}
	return int64((d + 500*time.Nanosecond) / time.Microsecond)
}
