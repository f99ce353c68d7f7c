// Package mp4test builds minimal MP4 files in memory for tests: one
// ftyp, one moov with a single track, one mdat holding the sample
// payloads.
package mp4test

import (
	"github.com/vodkit/mp4pipe/utils/bits/pio"
)

// Sample describes one coded sample of the fixture track.
type Sample struct {
	Data      []byte
	Duration  uint32
	CtsOffset int32
	Sync      bool
}

// File describes the fixture container.
type File struct {
	TimeScale uint32
	Width     int
	Height    int
	Samples   []Sample

	// EditMediaTime, when non-nil, adds an edts/elst with one entry
	// whose media time trims the start of the track.
	EditMediaTime *int64

	// NoVideoTrack replaces the video track with a bare audio track.
	NoVideoTrack bool
}

// AVCRecord is a syntactically valid avcC payload with one fake SPS and
// one fake PPS.
func AVCRecord() []byte {
	sps := []byte{0x67, 0x64, 0x00, 0x1f, 0xac, 0xd9}
	pps := []byte{0x68, 0xeb, 0xe3, 0xcb}
	rec := []byte{1, 0x64, 0x00, 0x1f, 0xff, 0xe1}
	rec = append(rec, u16(uint16(len(sps)))...)
	rec = append(rec, sps...)
	rec = append(rec, 1)
	rec = append(rec, u16(uint16(len(pps)))...)
	rec = append(rec, pps...)
	return rec
}

// SampleData builds a length-prefixed payload of n arbitrary bytes.
func SampleData(n int, fill byte) []byte {
	b := make([]byte, 4+n)
	pio.PutU32BE(b, uint32(n))
	for i := 4; i < len(b); i++ {
		b[i] = fill
	}
	return b
}

// Build serializes the fixture.
func (f File) Build() []byte {
	ftyp := box("ftyp", []byte("isom"), u32b(0x200), []byte("isomiso2avc1mp41"))

	// two passes: the first measures where mdat payload lands so stco
	// can point at it
	moov := f.moov(0)
	mdatOffset := int64(len(ftyp) + len(moov) + 8)
	moov = f.moov(mdatOffset)

	var payload []byte
	for _, s := range f.Samples {
		payload = append(payload, s.Data...)
	}
	mdat := box("mdat", payload)

	out := append([]byte{}, ftyp...)
	out = append(out, moov...)
	out = append(out, mdat...)
	return out
}

func (f File) moov(mdatOffset int64) []byte {
	var totalDur uint32
	for _, s := range f.Samples {
		totalDur += s.Duration
	}

	mvhd := fullbox("mvhd", 0, 0,
		u32b(0), u32b(0), u32b(1000), u32b(totalDur),
		u32b(0x00010000), u16(0x0100), make([]byte, 10),
		matrix(), make([]byte, 24), u32b(2))

	var trak []byte
	if f.NoVideoTrack {
		trak = f.soundTrak(totalDur)
	} else {
		trak = f.videoTrak(totalDur, mdatOffset)
	}
	return box("moov", mvhd, trak)
}

func (f File) videoTrak(totalDur uint32, mdatOffset int64) []byte {
	tkhd := f.tkhd(totalDur)

	var edts []byte
	if f.EditMediaTime != nil {
		elst := fullbox("elst", 0, 0, u32b(1),
			u32b(totalDur), u32b(uint32(int32(*f.EditMediaTime))), u32b(0x00010000))
		edts = box("edts", elst)
	}

	mdhd := fullbox("mdhd", 0, 0,
		u32b(0), u32b(0), u32b(f.TimeScale), u32b(totalDur), u16(0x55c4), u16(0))
	hdlr := fullbox("hdlr", 0, 0, u32b(0), []byte("vide"), make([]byte, 12), []byte{0})

	stbl := box("stbl",
		f.stsd(),
		f.stts(),
		f.ctts(),
		f.stss(),
		f.stsz(),
		fullbox("stsc", 0, 0, u32b(1), u32b(1), u32b(uint32(len(f.Samples))), u32b(1)),
		fullbox("stco", 0, 0, u32b(1), u32b(uint32(mdatOffset))),
	)
	vmhd := fullbox("vmhd", 0, 1, make([]byte, 8))
	dinf := box("dinf", box("dref", u32b(0), u32b(1), fullbox("url ", 0, 1)))
	minf := box("minf", vmhd, dinf, stbl)
	mdia := box("mdia", mdhd, hdlr, minf)
	if edts != nil {
		return box("trak", tkhd, edts, mdia)
	}
	return box("trak", tkhd, mdia)
}

func (f File) soundTrak(totalDur uint32) []byte {
	tkhd := f.tkhd(totalDur)
	mdhd := fullbox("mdhd", 0, 0,
		u32b(0), u32b(0), u32b(f.TimeScale), u32b(totalDur), u16(0x55c4), u16(0))
	hdlr := fullbox("hdlr", 0, 0, u32b(0), []byte("soun"), make([]byte, 12), []byte{0})
	stbl := box("stbl",
		box("stsd", u32b(0), u32b(1), box("mp4a", make([]byte, 28))),
		fullbox("stts", 0, 0, u32b(0)),
		fullbox("stsz", 0, 0, u32b(0), u32b(0)),
		fullbox("stsc", 0, 0, u32b(0)),
		fullbox("stco", 0, 0, u32b(0)),
	)
	minf := box("minf", stbl)
	mdia := box("mdia", mdhd, hdlr, minf)
	return box("trak", tkhd, mdia)
}

func (f File) tkhd(totalDur uint32) []byte {
	return fullbox("tkhd", 0, 7,
		u32b(0), u32b(0), u32b(1), u32b(0), u32b(totalDur),
		make([]byte, 8), u16(0), u16(0), u16(0), u16(0),
		matrix(),
		u32b(uint32(f.Width)<<16), u32b(uint32(f.Height)<<16))
}

func (f File) stsd() []byte {
	entry78 := make([]byte, 78)
	pio.PutU16BE(entry78[6:], 1) // data ref index
	pio.PutU16BE(entry78[24:], uint16(f.Width))
	pio.PutU16BE(entry78[26:], uint16(f.Height))
	pio.PutU32BE(entry78[28:], 0x00480000)
	pio.PutU32BE(entry78[32:], 0x00480000)
	pio.PutU16BE(entry78[40:], 1)
	pio.PutU16BE(entry78[74:], 24)
	pio.PutI16BE(entry78[76:], -1)
	avc1 := box("avc1", entry78, box("avcC", AVCRecord()))
	return box("stsd", u32b(0), u32b(1), avc1)
}

func (f File) stts() []byte {
	var entries []byte
	for _, s := range f.Samples {
		entries = append(entries, u32b(1)...)
		entries = append(entries, u32b(s.Duration)...)
	}
	return fullbox("stts", 0, 0, u32b(uint32(len(f.Samples))), entries)
}

func (f File) ctts() []byte {
	any := false
	for _, s := range f.Samples {
		if s.CtsOffset != 0 {
			any = true
		}
	}
	if !any {
		return nil
	}
	var entries []byte
	for _, s := range f.Samples {
		entries = append(entries, u32b(1)...)
		entries = append(entries, u32b(uint32(s.CtsOffset))...)
	}
	return fullbox("ctts", 0, 0, u32b(uint32(len(f.Samples))), entries)
}

func (f File) stss() []byte {
	allSync := true
	var nums []byte
	count := 0
	for i, s := range f.Samples {
		if !s.Sync {
			allSync = false
			continue
		}
		nums = append(nums, u32b(uint32(i+1))...)
		count++
	}
	if allSync {
		return nil
	}
	return fullbox("stss", 0, 0, u32b(uint32(count)), nums)
}

func (f File) stsz() []byte {
	var sizes []byte
	for _, s := range f.Samples {
		sizes = append(sizes, u32b(uint32(len(s.Data)))...)
	}
	return fullbox("stsz", 0, 0, u32b(0), u32b(uint32(len(f.Samples))), sizes)
}

func box(tag string, parts ...[]byte) []byte {
	size := 8
	for _, p := range parts {
		size += len(p)
	}
	b := make([]byte, 8, size)
	pio.PutU32BE(b, uint32(size))
	copy(b[4:8], tag)
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

func fullbox(tag string, version uint8, flags uint32, parts ...[]byte) []byte {
	vf := make([]byte, 4)
	vf[0] = version
	pio.PutU24BE(vf[1:], flags)
	return box(tag, append([][]byte{vf}, parts...)...)
}

func matrix() []byte {
	b := make([]byte, 36)
	pio.PutU32BE(b, 0x00010000)
	pio.PutU32BE(b[16:], 0x00010000)
	pio.PutU32BE(b[32:], 0x40000000)
	return b
}

func u32b(v uint32) []byte {
	b := make([]byte, 4)
	pio.PutU32BE(b, v)
	return b
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	pio.PutU16BE(b, v)
	return b
}
