// Package mp4 implements a progressive MP4 demuxer. Byte ranges are
// appended as they arrive from the network; once the moov box is complete
// the demuxer resolves one video track, reports container info and then
// emits coded samples in decode order as their mdat bytes become
// available.
package mp4

import (
	"fmt"

	"github.com/vodkit/mp4pipe/av"
	"github.com/vodkit/mp4pipe/codec/h264parser"
	"github.com/vodkit/mp4pipe/codec/h265parser"
	"github.com/vodkit/mp4pipe/format/mp4/mp4io"
)

var Debug bool

// Info describes the resolved video track of a container.
type Info struct {
	TrackID       uint32
	Width         int
	Height        int
	FrameCount    int
	FPS           float64
	TimeScale     uint32
	Duration      uint64
	HasEditList   bool
	EditMediaTime int64
	CodecData     av.VideoCodecData
}

type Demuxer struct {
	file      []byte
	have      int64
	total     int64
	scanned   int64
	moov      *mp4io.Movie
	track     *Stream
	info      *Info
	onReady   func(Info)
	onSamples func([]av.Packet)
	flushed   bool
}

func NewDemuxer() *Demuxer {
	return &Demuxer{total: -1}
}

// OnReady registers the callback invoked exactly once, when the video
// track has been resolved.
func (self *Demuxer) OnReady(fn func(Info)) {
	self.onReady = fn
}

// OnSamples registers the callback invoked with each batch of demuxed
// samples, in decode order.
func (self *Demuxer) OnSamples(fn func([]av.Packet)) {
	self.onSamples = fn
}

// Info returns the container info, or nil before the track is resolved.
func (self *Demuxer) Info() *Info {
	return self.info
}

// TrackByID returns the parsed trak atom with the given track id, or nil.
func (self *Demuxer) TrackByID(id uint32) *mp4io.Track {
	if self.moov == nil {
		return nil
	}
	for _, trak := range self.moov.Tracks {
		if trak.Header != nil && trak.Header.TrackID == id {
			return trak
		}
	}
	return nil
}

// Append feeds the next byte range. Ranges must be contiguous and
// increasing in Start; the first chunk must begin at offset zero.
func (self *Demuxer) Append(chunk av.ByteChunk) (err error) {
	if self.flushed {
		return fmt.Errorf("mp4: append after flush")
	}
	if chunk.Start != self.have {
		return parseGapErr(chunk.Start, self.have)
	}
	if chunk.TotalLength >= 0 {
		self.total = chunk.TotalLength
	}
	self.file = append(self.file, chunk.Data...)
	self.have += int64(len(chunk.Data))
	return self.advance()
}

// Flush signals end of input and emits any remaining parsable samples.
func (self *Demuxer) Flush() (err error) {
	if self.flushed {
		return
	}
	self.flushed = true
	if err = self.advance(); err != nil {
		return
	}
	if self.moov == nil {
		return parseErrTrunc("moov", self.have)
	}
	if self.track != nil && self.track.next < len(self.track.samples) {
		return parseErrTrunc("mdat", self.have)
	}
	return
}

func (self *Demuxer) advance() (err error) {
	if self.moov == nil {
		if err = self.scanMoov(); err != nil {
			return
		}
		if self.moov == nil {
			return
		}
		if err = self.resolveTrack(); err != nil {
			return
		}
	}
	self.emitSamples()
	return
}

// scanMoov walks complete top-level boxes in the buffered prefix until a
// moov box is seen.
func (self *Demuxer) scanMoov() (err error) {
	for self.scanned+8 <= self.have {
		b := self.file[self.scanned:]
		size := int64(u32(b))
		tag := mp4io.Tag(u32(b[4:]))
		if size == 1 {
			if self.scanned+16 > self.have {
				return
			}
			size = int64(u64(b[8:]))
		}
		if size < 8 {
			return parseErrTrunc(tag.String(), self.scanned)
		}
		if tag == mp4io.MOOV {
			if self.scanned+size > self.have {
				// moov not complete yet
				return
			}
			moov := &mp4io.Movie{}
			if _, err = moov.Unmarshal(self.file[self.scanned:self.scanned+size], int(self.scanned)); err != nil {
				return
			}
			self.moov = moov
			self.scanned += size
			return
		}
		// skip boxes we can account for without their bytes (mdat tail)
		self.scanned += size
	}
	return
}

func (self *Demuxer) resolveTrack() (err error) {
	trak := findVideoTrack(self.moov)
	if trak == nil {
		return av.ErrNoVideoTrack
	}
	stream, err := newStream(trak)
	if err != nil {
		return
	}
	self.track = stream

	info := Info{
		TrackID:    trak.Header.TrackID,
		Width:      stream.width,
		Height:     stream.height,
		FrameCount: len(stream.samples),
		TimeScale:  stream.timeScale,
		Duration:   trak.Media.Header.Duration,
		CodecData:  stream.codecData,
	}
	if info.Duration > 0 {
		info.FPS = float64(info.FrameCount) / (float64(info.Duration) / float64(info.TimeScale))
	}
	if el := trak.EditList; el != nil && len(el.Entries) > 0 {
		info.HasEditList = true
		info.EditMediaTime = el.Entries[0].MediaTime
	}
	self.info = &info
	if Debug {
		debugf("mp4: track ready id=%d %dx%d frames=%d fps=%.3f", info.TrackID, info.Width, info.Height, info.FrameCount, info.FPS)
	}
	if self.onReady != nil {
		self.onReady(info)
	}
	return
}

// emitSamples delivers every not-yet-emitted sample whose payload lies
// entirely inside the buffered prefix. Samples are strictly in decode
// order, so emission stops at the first incomplete one.
func (self *Demuxer) emitSamples() {
	if self.track == nil {
		return
	}
	var pkts []av.Packet
	for self.track.next < len(self.track.samples) {
		s := &self.track.samples[self.track.next]
		if s.offset+int64(s.size) > self.have {
			break
		}
		pkts = append(pkts, self.track.packet(self.track.next, self.file[s.offset:s.offset+int64(s.size)]))
		self.track.next++
	}
	if len(pkts) > 0 && self.onSamples != nil {
		self.onSamples(pkts)
	}
}

// findVideoTrack prefers the first track with a vide handler; if the
// container has none it falls back to the first track that still carries
// a video sample entry (alternate track sets).
func findVideoTrack(moov *mp4io.Movie) *mp4io.Track {
	var fallback *mp4io.Track
	for _, trak := range moov.Tracks {
		if trak.Header == nil || trak.Media == nil || trak.Media.Header == nil {
			continue
		}
		entry := videoSampleEntry(trak)
		if entry == nil {
			continue
		}
		if trak.Media.Handler != nil && trak.Media.Handler.Type == mp4io.HandlerVideo {
			return trak
		}
		if fallback == nil {
			fallback = trak
		}
	}
	return fallback
}

func videoSampleEntry(trak *mp4io.Track) *mp4io.VideoSampleEntry {
	if trak.Media == nil || trak.Media.Info == nil || trak.Media.Info.Sample == nil {
		return nil
	}
	stbl := trak.Media.Info.Sample
	if stbl.SampleDesc == nil {
		return nil
	}
	return stbl.SampleDesc.Video
}

func newCodecData(entry *mp4io.VideoSampleEntry) (av.VideoCodecData, error) {
	if entry.Conf == nil {
		return nil, parseErrTrunc("codecConf", 0)
	}
	switch entry.Conf.Tag() {
	case mp4io.AVCC:
		codec, err := h264parser.NewCodecDataFromAVCDecoderConfRecord(entry.Conf.Data, int(entry.Width), int(entry.Height))
		if err != nil {
			return nil, err
		}
		return codec, nil
	case mp4io.HVCC:
		codec, err := h265parser.NewCodecDataFromHEVCDecoderConfRecord(entry.Conf.Data, int(entry.Width), int(entry.Height))
		if err != nil {
			return nil, err
		}
		return codec, nil
	}
	return nil, fmt.Errorf("mp4: unknown codec conf %s", entry.Conf.Tag())
}
