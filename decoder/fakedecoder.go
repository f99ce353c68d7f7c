package decoder

import (
	"fmt"

	"github.com/vodkit/mp4pipe/av"
)

// RawSurface is a byte-backed Surface. Real decoders typically wrap
// hardware buffers; RawSurface is what software paths and the fake
// decoder hand out.
type RawSurface struct {
	W, H   int
	Pix    []byte
	closed bool
}

func (self *RawSurface) Width() int {
	return self.W
}

func (self *RawSurface) Height() int {
	return self.H
}

func (self *RawSurface) Clone() av.Surface {
	pix := make([]byte, len(self.Pix))
	copy(pix, self.Pix)
	return &RawSurface{W: self.W, H: self.H, Pix: pix}
}

func (self *RawSurface) Close() {
	self.closed = true
	self.Pix = nil
}

func (self *RawSurface) Closed() bool {
	return self.closed
}

// FakeDecoder is a stand-in VideoDecoder that emits one empty surface
// per submitted sample, synchronously. It exists for pipeline tests and
// dry runs where no real decoder backend is available.
type FakeDecoder struct {
	Supported  func(cfg Config) bool
	DecodeErr  error
	cfg        Config
	configured bool
	closed     bool
	onFrame    func(av.Surface)
	onError    func(error)
}

func (self *FakeDecoder) OnFrame(fn func(av.Surface)) {
	self.onFrame = fn
}

func (self *FakeDecoder) OnError(fn func(error)) {
	self.onError = fn
}

func (self *FakeDecoder) ConfigSupported(cfg Config) bool {
	if self.Supported != nil {
		return self.Supported(cfg)
	}
	return true
}

func (self *FakeDecoder) Configure(cfg Config) error {
	if self.closed {
		return fmt.Errorf("decoder: configure after close")
	}
	self.cfg = cfg
	self.configured = true
	return nil
}

func (self *FakeDecoder) Decode(pkt av.Packet) error {
	if !self.configured {
		return fmt.Errorf("decoder: decode before configure")
	}
	if self.DecodeErr != nil {
		return self.DecodeErr
	}
	if self.onFrame != nil {
		self.onFrame(&RawSurface{W: self.cfg.Width, H: self.cfg.Height})
	}
	return nil
}

func (self *FakeDecoder) Flush() error {
	return nil
}

func (self *FakeDecoder) Close() error {
	self.closed = true
	return nil
}
