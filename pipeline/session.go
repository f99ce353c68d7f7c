// Package pipeline wires the progressive demuxer, the decoder adapter
// and the frame bridge into one decode session: byte chunks in, a
// pull-based sequence of timed frames out.
package pipeline

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/vodkit/mp4pipe/av"
	"github.com/vodkit/mp4pipe/decoder"
	"github.com/vodkit/mp4pipe/format/mp4"
	"github.com/vodkit/mp4pipe/source"
)

var Debug bool

// Progress is reported after every frame delivered to the consumer.
type Progress struct {
	Info          mp4.Info
	FramesDecoded int
}

type Option func(*Session)

// WithProgress registers a callback invoked after each delivered frame.
func WithProgress(fn func(Progress)) Option {
	return func(s *Session) {
		s.progress = fn
	}
}

// WithPlatform overrides the detected platform capabilities.
func WithPlatform(p decoder.Platform) Option {
	return func(s *Session) {
		s.platform = &p
	}
}

// WithPacketSink registers a tap receiving every demuxed sample batch in
// addition to the decoder, e.g. a preview track.
func WithPacketSink(fn func([]av.Packet)) Option {
	return func(s *Session) {
		s.packetSink = fn
	}
}

// Session is one decode run over one input file.
type Session struct {
	ID string

	dmx     *mp4.Demuxer
	adapter *decoder.Adapter
	bridge  *Bridge
	filter  *editFilter

	platform   *decoder.Platform
	progress   func(Progress)
	packetSink func([]av.Packet)

	mu      sync.Mutex
	info    *mp4.Info
	decoded int
	cfgErr  error
}

// Decode starts a session: it consumes chunks from src until the
// container metadata is resolved and the decoder is configured, then
// keeps driving demux and decode in the background. The returned
// session is usable immediately; frames arrive through ReadFrame while
// the rest of the file is still downloading.
//
// Decode returns an error if the input ends or fails before metadata is
// available, if no video track exists, or if the decoder rejects the
// codec configuration. It imposes no timeout of its own; bound it with
// ctx.
func Decode(ctx context.Context, src source.ChunkSource, dec decoder.VideoDecoder, opts ...Option) (*Session, error) {
	self := &Session{
		ID:     uuid.NewString(),
		dmx:    mp4.NewDemuxer(),
		bridge: newBridge(),
	}
	for _, opt := range opts {
		opt(self)
	}
	if self.platform == nil {
		p := decoder.DetectPlatform()
		self.platform = &p
	}

	self.adapter = decoder.NewAdapter(dec, *self.platform)
	self.adapter.OnDone(self.bridge.finish)

	self.dmx.OnReady(func(info mp4.Info) {
		self.configure(info)
	})
	self.dmx.OnSamples(func(pkts []av.Packet) {
		if self.packetSink != nil {
			self.packetSink(pkts)
		}
		if self.cfgErr == nil {
			self.adapter.WritePackets(pkts)
		}
	})

	// pull chunks until the track is resolved and configured
	for self.info == nil {
		chunk, err := src.Next(ctx)
		if err == io.EOF {
			if ferr := self.dmx.Flush(); ferr != nil {
				self.bridge.finish(ferr)
				return nil, ferr
			}
			break
		}
		if err != nil {
			self.bridge.finish(err)
			return nil, err
		}
		if err = self.dmx.Append(chunk); err != nil {
			self.bridge.finish(err)
			return nil, err
		}
		if self.cfgErr != nil {
			self.bridge.finish(self.cfgErr)
			return nil, self.cfgErr
		}
	}
	if self.info == nil {
		self.bridge.finish(av.ErrNoVideoTrack)
		return nil, av.ErrNoVideoTrack
	}
	if self.cfgErr != nil {
		self.bridge.finish(self.cfgErr)
		return nil, self.cfgErr
	}

	go self.drive(ctx, src)
	return self, nil
}

// configure runs once metadata is resolved: build the decoder config,
// check capability, attach the edit-list filter.
func (self *Session) configure(info mp4.Info) {
	self.mu.Lock()
	self.info = &info
	self.mu.Unlock()

	self.filter = newEditFilter(info.HasEditList, info.EditMediaTime, info.TimeScale, self.bridge.push)
	self.adapter.OnFrame(self.filter.write)

	cfg := decoder.Config{
		Width:  info.Width,
		Height: info.Height,
	}
	switch cd := info.CodecData.(type) {
	case interface{ Tag() string }:
		cfg.Codec = cd.Tag()
	}
	switch cd := info.CodecData.(type) {
	case interface{ AVCDecoderConfRecordBytes() []byte }:
		cfg.Description = cd.AVCDecoderConfRecordBytes()
	case interface{ HEVCDecoderConfRecordBytes() []byte }:
		cfg.Description = cd.HEVCDecoderConfRecordBytes()
	}

	// edit-list trimming drops frames before the media time; they still
	// count as decoder outputs, so the expected total stays FrameCount
	if err := self.adapter.Configure(cfg, info.FrameCount); err != nil {
		self.cfgErr = err
	}
	if Debug {
		log.Printf("pipeline: session %s configured codec=%s %dx%d frames=%d", self.ID, cfg.Codec, cfg.Width, cfg.Height, info.FrameCount)
	}
}

// drive feeds the remaining chunks in the background and flushes both
// stages at end of input.
func (self *Session) drive(ctx context.Context, src source.ChunkSource) {
	for {
		chunk, err := src.Next(ctx)
		if err == io.EOF {
			if err = self.dmx.Flush(); err != nil {
				self.bridge.finish(err)
				return
			}
			if err = self.adapter.Flush(); err != nil {
				// adapter already reported through OnDone
				return
			}
			return
		}
		if err != nil {
			self.bridge.finish(err)
			return
		}
		if err = self.dmx.Append(chunk); err != nil {
			self.bridge.finish(err)
			return
		}
		if self.cfgErr != nil {
			return
		}
	}
}

// Info returns the resolved container metadata.
func (self *Session) Info() mp4.Info {
	self.mu.Lock()
	defer self.mu.Unlock()
	return *self.info
}

// ReadFrame returns the next frame in presentation order. The caller
// owns the frame and must Close it. After the last frame it keeps
// returning io.EOF; a session error replaces io.EOF once buffered
// frames are drained. Calls must be serialized.
func (self *Session) ReadFrame(ctx context.Context) (*av.Frame, error) {
	frame, err := self.bridge.ReadFrame(ctx)
	if err != nil {
		return nil, err
	}
	self.mu.Lock()
	self.decoded++
	p := Progress{Info: *self.info, FramesDecoded: self.decoded}
	fn := self.progress
	self.mu.Unlock()
	if fn != nil {
		fn(p)
	}
	return frame, nil
}

// FramesDecoded reports how many frames have been delivered so far.
func (self *Session) FramesDecoded() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.decoded
}

// Close releases buffered frames. It does not interrupt an in-flight
// ReadFrame; cancel its context instead.
func (self *Session) Close() {
	self.bridge.Close()
}
