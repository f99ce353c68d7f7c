package mp4io

import (
	"fmt"

	"github.com/vodkit/mp4pipe/utils/bits/pio"
)

const STBL = Tag(0x7374626c)

type SampleTable struct {
	SampleDesc        *SampleDesc
	TimeToSample      *TimeToSample
	CompositionOffset *CompositionOffset
	SyncSample        *SyncSample
	SampleSize        *SampleSize
	SampleToChunk     *SampleToChunk
	ChunkOffset       *ChunkOffset
	AtomPos
}

func (a SampleTable) Tag() Tag {
	return STBL
}

func (a *SampleTable) Unmarshal(b []byte, offset int) (n int, err error) {
	(&a.AtomPos).setPos(offset, len(b))
	n += 8
	for n+8 <= len(b) {
		tag := Tag(pio.U32BE(b[n+4:]))
		size := int(pio.U32BE(b[n:]))
		if size < 8 || len(b) < n+size {
			err = parseErr("TagSizeInvalid", n+offset, err)
			return
		}
		switch tag {
		case STSD:
			atom := &SampleDesc{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("stsd", n+offset, err)
				return
			}
			a.SampleDesc = atom
		case STTS:
			atom := &TimeToSample{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("stts", n+offset, err)
				return
			}
			a.TimeToSample = atom
		case CTTS:
			atom := &CompositionOffset{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("ctts", n+offset, err)
				return
			}
			a.CompositionOffset = atom
		case STSS:
			atom := &SyncSample{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("stss", n+offset, err)
				return
			}
			a.SyncSample = atom
		case STSZ:
			atom := &SampleSize{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("stsz", n+offset, err)
				return
			}
			a.SampleSize = atom
		case STSC:
			atom := &SampleToChunk{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("stsc", n+offset, err)
				return
			}
			a.SampleToChunk = atom
		case STCO, CO64:
			atom := &ChunkOffset{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("stco", n+offset, err)
				return
			}
			a.ChunkOffset = atom
		}
		n += size
	}
	return
}

func (a SampleTable) Children() (r []Atom) {
	if a.SampleDesc != nil {
		r = append(r, a.SampleDesc)
	}
	if a.TimeToSample != nil {
		r = append(r, a.TimeToSample)
	}
	if a.CompositionOffset != nil {
		r = append(r, a.CompositionOffset)
	}
	if a.SyncSample != nil {
		r = append(r, a.SyncSample)
	}
	if a.SampleSize != nil {
		r = append(r, a.SampleSize)
	}
	if a.SampleToChunk != nil {
		r = append(r, a.SampleToChunk)
	}
	if a.ChunkOffset != nil {
		r = append(r, a.ChunkOffset)
	}
	return
}

const STSD = Tag(0x73747364)

type SampleDesc struct {
	Version uint8
	Video   *VideoSampleEntry
	Unknowns []Atom
	AtomPos
}

func (a SampleDesc) Tag() Tag {
	return STSD
}

func (a *SampleDesc) Unmarshal(b []byte, offset int) (n int, err error) {
	(&a.AtomPos).setPos(offset, len(b))
	n += 8
	if len(b) < n+8 {
		err = parseErr("EntryCount", n+offset, err)
		return
	}
	a.Version = pio.U8(b[n:])
	n += 8
	for n+8 <= len(b) {
		tag := Tag(pio.U32BE(b[n+4:]))
		size := int(pio.U32BE(b[n:]))
		if size < 8 || len(b) < n+size {
			err = parseErr("TagSizeInvalid", n+offset, err)
			return
		}
		switch tag {
		case AVC1, AVC3, HVC1, HEV1:
			atom := &VideoSampleEntry{CodecTag: tag}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr(tag.String(), n+offset, err)
				return
			}
			a.Video = atom
		default:
			atom := &Dummy{Tag_: tag}
			atom.Unmarshal(b[n:n+size], offset+n)
			a.Unknowns = append(a.Unknowns, atom)
		}
		n += size
	}
	return
}

func (a SampleDesc) Children() (r []Atom) {
	if a.Video != nil {
		r = append(r, a.Video)
	}
	r = append(r, a.Unknowns...)
	return
}

const STTS = Tag(0x73747473)

type TimeToSample struct {
	Version uint8
	Flags   uint32
	Entries []TimeToSampleEntry
	AtomPos
}

type TimeToSampleEntry struct {
	Count    uint32
	Duration uint32
}

func (a TimeToSample) Tag() Tag {
	return STTS
}

func (a TimeToSample) Children() (r []Atom) {
	return
}

func (a TimeToSample) String() string {
	return fmt.Sprintf("entries=%d", len(a.Entries))
}

func (a *TimeToSample) Unmarshal(b []byte, offset int) (n int, err error) {
	(&a.AtomPos).setPos(offset, len(b))
	if a.Version, a.Flags, n, err = fullAtom(b, offset); err != nil {
		return
	}
	if len(b) < n+4 {
		err = parseErr("EntryCount", n+offset, err)
		return
	}
	count := int(pio.U32BE(b[n:]))
	n += 4
	if len(b) < n+8*count {
		err = parseErr("TimeToSampleEntry", n+offset, err)
		return
	}
	a.Entries = make([]TimeToSampleEntry, count)
	for i := range a.Entries {
		a.Entries[i].Count = pio.U32BE(b[n:])
		a.Entries[i].Duration = pio.U32BE(b[n+4:])
		n += 8
	}
	return
}

const CTTS = Tag(0x63747473)

type CompositionOffset struct {
	Version uint8
	Flags   uint32
	Entries []CompositionOffsetEntry
	AtomPos
}

// Offset is signed: version 1 ctts carries negative composition offsets.
type CompositionOffsetEntry struct {
	Count  uint32
	Offset int32
}

func (a CompositionOffset) Tag() Tag {
	return CTTS
}

func (a CompositionOffset) Children() (r []Atom) {
	return
}

func (a *CompositionOffset) Unmarshal(b []byte, offset int) (n int, err error) {
	(&a.AtomPos).setPos(offset, len(b))
	if a.Version, a.Flags, n, err = fullAtom(b, offset); err != nil {
		return
	}
	if len(b) < n+4 {
		err = parseErr("EntryCount", n+offset, err)
		return
	}
	count := int(pio.U32BE(b[n:]))
	n += 4
	if len(b) < n+8*count {
		err = parseErr("CompositionOffsetEntry", n+offset, err)
		return
	}
	a.Entries = make([]CompositionOffsetEntry, count)
	for i := range a.Entries {
		a.Entries[i].Count = pio.U32BE(b[n:])
		a.Entries[i].Offset = pio.I32BE(b[n+4:])
		n += 8
	}
	return
}

const STSS = Tag(0x73747373)

type SyncSample struct {
	Version uint8
	Flags   uint32
	Entries []uint32
	AtomPos
}

func (a SyncSample) Tag() Tag {
	return STSS
}

func (a SyncSample) Children() (r []Atom) {
	return
}

func (a *SyncSample) Unmarshal(b []byte, offset int) (n int, err error) {
	(&a.AtomPos).setPos(offset, len(b))
	if a.Version, a.Flags, n, err = fullAtom(b, offset); err != nil {
		return
	}
	if len(b) < n+4 {
		err = parseErr("EntryCount", n+offset, err)
		return
	}
	count := int(pio.U32BE(b[n:]))
	n += 4
	if len(b) < n+4*count {
		err = parseErr("SyncSampleEntry", n+offset, err)
		return
	}
	a.Entries = make([]uint32, count)
	for i := range a.Entries {
		a.Entries[i] = pio.U32BE(b[n:])
		n += 4
	}
	return
}

const STSZ = Tag(0x7374737a)

type SampleSize struct {
	Version    uint8
	Flags      uint32
	SampleSize uint32
	Entries    []uint32
	AtomPos
}

func (a SampleSize) Tag() Tag {
	return STSZ
}

func (a SampleSize) Children() (r []Atom) {
	return
}

func (a SampleSize) Count() int {
	return len(a.Entries)
}

func (a *SampleSize) Unmarshal(b []byte, offset int) (n int, err error) {
	(&a.AtomPos).setPos(offset, len(b))
	if a.Version, a.Flags, n, err = fullAtom(b, offset); err != nil {
		return
	}
	if len(b) < n+8 {
		err = parseErr("SampleSize", n+offset, err)
		return
	}
	a.SampleSize = pio.U32BE(b[n:])
	count := int(pio.U32BE(b[n+4:]))
	n += 8
	a.Entries = make([]uint32, count)
	if a.SampleSize != 0 {
		for i := range a.Entries {
			a.Entries[i] = a.SampleSize
		}
		return
	}
	if len(b) < n+4*count {
		err = parseErr("SampleSizeEntry", n+offset, err)
		return
	}
	for i := range a.Entries {
		a.Entries[i] = pio.U32BE(b[n:])
		n += 4
	}
	return
}

const STSC = Tag(0x73747363)

type SampleToChunk struct {
	Version uint8
	Flags   uint32
	Entries []SampleToChunkEntry
	AtomPos
}

type SampleToChunkEntry struct {
	FirstChunk      uint32
	SamplesPerChunk uint32
	SampleDescId    uint32
}

func (a SampleToChunk) Tag() Tag {
	return STSC
}

func (a SampleToChunk) Children() (r []Atom) {
	return
}

func (a *SampleToChunk) Unmarshal(b []byte, offset int) (n int, err error) {
	(&a.AtomPos).setPos(offset, len(b))
	if a.Version, a.Flags, n, err = fullAtom(b, offset); err != nil {
		return
	}
	if len(b) < n+4 {
		err = parseErr("EntryCount", n+offset, err)
		return
	}
	count := int(pio.U32BE(b[n:]))
	n += 4
	if len(b) < n+12*count {
		err = parseErr("SampleToChunkEntry", n+offset, err)
		return
	}
	a.Entries = make([]SampleToChunkEntry, count)
	for i := range a.Entries {
		a.Entries[i].FirstChunk = pio.U32BE(b[n:])
		a.Entries[i].SamplesPerChunk = pio.U32BE(b[n+4:])
		a.Entries[i].SampleDescId = pio.U32BE(b[n+8:])
		n += 12
	}
	return
}

const STCO = Tag(0x7374636f)
const CO64 = Tag(0x636f3634)

// ChunkOffset holds stco or co64 entries widened to 64 bit.
type ChunkOffset struct {
	Version uint8
	Flags   uint32
	Tag_    Tag
	Entries []uint64
	AtomPos
}

func (a ChunkOffset) Tag() Tag {
	return a.Tag_
}

func (a ChunkOffset) Children() (r []Atom) {
	return
}

func (a *ChunkOffset) Unmarshal(b []byte, offset int) (n int, err error) {
	(&a.AtomPos).setPos(offset, len(b))
	a.Tag_ = Tag(pio.U32BE(b[4:]))
	if a.Version, a.Flags, n, err = fullAtom(b, offset); err != nil {
		return
	}
	if len(b) < n+4 {
		err = parseErr("EntryCount", n+offset, err)
		return
	}
	count := int(pio.U32BE(b[n:]))
	n += 4
	wide := a.Tag_ == CO64
	entryLen := 4
	if wide {
		entryLen = 8
	}
	if len(b) < n+entryLen*count {
		err = parseErr("ChunkOffsetEntry", n+offset, err)
		return
	}
	a.Entries = make([]uint64, count)
	for i := range a.Entries {
		if wide {
			a.Entries[i] = pio.U64BE(b[n:])
		} else {
			a.Entries[i] = uint64(pio.U32BE(b[n:]))
		}
		n += entryLen
	}
	return
}
