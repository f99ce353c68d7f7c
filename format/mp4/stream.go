package mp4

import (
	"fmt"
	"log"
	"time"

	"github.com/vodkit/mp4pipe/av"
	"github.com/vodkit/mp4pipe/format/mp4/mp4io"
	"github.com/vodkit/mp4pipe/utils/bits/pio"
	"github.com/vodkit/mp4pipe/utils/timescale"
)

// sample is one resolved entry of the track's sample tables: absolute
// file position plus native-timescale timing.
type sample struct {
	offset    int64
	size      uint32
	dts       int64
	ctsOffset int32
	sync      bool
}

// Stream is the resolved video track with its flattened sample index.
type Stream struct {
	trak      *mp4io.Track
	timeScale uint32
	width     int
	height    int
	codecData av.VideoCodecData
	samples   []sample
	next      int
}

func newStream(trak *mp4io.Track) (self *Stream, err error) {
	entry := videoSampleEntry(trak)
	stbl := trak.Media.Info.Sample
	if stbl.SampleSize == nil || stbl.TimeToSample == nil || stbl.SampleToChunk == nil || stbl.ChunkOffset == nil {
		err = parseErrTrunc("stbl", 0)
		return
	}

	self = &Stream{
		trak:      trak,
		timeScale: trak.Media.Header.TimeScale,
		width:     int(entry.Width),
		height:    int(entry.Height),
	}
	if self.width == 0 || self.height == 0 {
		self.width = int(trak.Header.TrackWidth)
		self.height = int(trak.Header.TrackHeight)
	}
	if self.codecData, err = newCodecData(entry); err != nil {
		return
	}
	self.samples = flattenSampleTables(stbl)
	return
}

// flattenSampleTables walks stsc/stco against stsz/stts/ctts/stss and
// produces one entry per sample, in decode order.
func flattenSampleTables(stbl *mp4io.SampleTable) []sample {
	count := stbl.SampleSize.Count()
	samples := make([]sample, count)

	// sizes
	for i := range samples {
		samples[i].size = stbl.SampleSize.Entries[i]
	}

	// decode times
	idx := 0
	dts := int64(0)
	for _, e := range stbl.TimeToSample.Entries {
		for i := uint32(0); i < e.Count && idx < count; i++ {
			samples[idx].dts = dts
			dts += int64(e.Duration)
			idx++
		}
	}

	// composition offsets
	if ctts := stbl.CompositionOffset; ctts != nil {
		idx = 0
		for _, e := range ctts.Entries {
			for i := uint32(0); i < e.Count && idx < count; i++ {
				samples[idx].ctsOffset = e.Offset
				idx++
			}
		}
	}

	// sync samples; without an stss box every sample is sync
	if stss := stbl.SyncSample; stss != nil {
		for _, num := range stss.Entries {
			if i := int(num) - 1; i >= 0 && i < count {
				samples[i].sync = true
			}
		}
	} else {
		for i := range samples {
			samples[i].sync = true
		}
	}

	// file offsets via chunk layout
	stsc := stbl.SampleToChunk.Entries
	chunks := stbl.ChunkOffset.Entries
	idx = 0
	for ci := 0; ci < len(chunks) && idx < count; ci++ {
		perChunk := samplesPerChunk(stsc, uint32(ci+1))
		offset := int64(chunks[ci])
		for i := uint32(0); i < perChunk && idx < count; i++ {
			samples[idx].offset = offset
			offset += int64(samples[idx].size)
			idx++
		}
	}
	return samples
}

func samplesPerChunk(entries []mp4io.SampleToChunkEntry, chunk uint32) uint32 {
	per := uint32(0)
	for _, e := range entries {
		if e.FirstChunk > chunk {
			break
		}
		per = e.SamplesPerChunk
	}
	return per
}

// sampleDuration returns the stts duration of sample i in native ticks.
func (self *Stream) sampleDuration(i int) int64 {
	if i+1 < len(self.samples) {
		return self.samples[i+1].dts - self.samples[i].dts
	}
	if i > 0 {
		return self.samples[i].dts - self.samples[i-1].dts
	}
	if len(self.samples) == 1 && self.trak.Media.Header.Duration > 0 {
		return int64(self.trak.Media.Header.Duration)
	}
	return 0
}

func (self *Stream) packet(i int, data []byte) av.Packet {
	s := &self.samples[i]
	return av.Packet{
		IsKeyFrame:      s.sync,
		Index:           i,
		Time:            tickDuration(s.dts, self.timeScale),
		CompositionTime: tickDuration(s.dts+int64(s.ctsOffset), self.timeScale),
		Duration:        tickDuration(self.sampleDuration(i), self.timeScale),
		TimeScale:       self.timeScale,
		Data:            data,
	}
}

// tickDuration converts signed native ticks; composition times may be
// negative before edit-list trimming.
func tickDuration(ts int64, scale uint32) time.Duration {
	if ts < 0 {
		return -timescale.ToDuration(uint64(-ts), scale)
	}
	return timescale.ToDuration(uint64(ts), scale)
}

func u32(b []byte) uint32 {
	return pio.U32BE(b)
}

func u64(b []byte) uint64 {
	return pio.U64BE(b)
}

func parseGapErr(start, want int64) error {
	return av.ParseError{Err: fmt.Errorf("mp4: range gap: got start=%d want %d", start, want)}
}

func parseErrTrunc(what string, offset int64) error {
	return av.ParseError{Err: fmt.Errorf("mp4: truncated %s at %d", what, offset)}
}

func debugf(format string, args ...interface{}) {
	log.Printf(format, args...)
}
