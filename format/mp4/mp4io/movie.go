package mp4io

import (
	"time"

	"github.com/vodkit/mp4pipe/utils/bits/pio"
)

const MOOV = Tag(0x6d6f6f76)

type Movie struct {
	Header   *MovieHeader
	Tracks   []*Track
	Unknowns []Atom
	AtomPos
}

func (a Movie) Tag() Tag {
	return MOOV
}

func (a *Movie) Unmarshal(b []byte, offset int) (n int, err error) {
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
		case MVHD:
			atom := &MovieHeader{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("mvhd", n+offset, err)
				return
			}
			a.Header = atom
		case TRAK:
			atom := &Track{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("trak", n+offset, err)
				return
			}
			a.Tracks = append(a.Tracks, atom)
		default:
			atom := &Dummy{Tag_: tag}
			atom.Unmarshal(b[n:n+size], offset+n)
			a.Unknowns = append(a.Unknowns, atom)
		}
		n += size
	}
	return
}

func (a Movie) Children() (r []Atom) {
	if a.Header != nil {
		r = append(r, a.Header)
	}
	for _, atom := range a.Tracks {
		r = append(r, atom)
	}
	r = append(r, a.Unknowns...)
	return
}

const MVHD = Tag(0x6d766864)

type MovieHeader struct {
	Version    uint8
	Flags      uint32
	CreateTime time.Time
	ModifyTime time.Time
	TimeScale  uint32
	Duration   uint64
	AtomPos
}

func (a MovieHeader) Tag() Tag {
	return MVHD
}

func (a MovieHeader) Children() (r []Atom) {
	return
}

func (a *MovieHeader) Unmarshal(b []byte, offset int) (n int, err error) {
	(&a.AtomPos).setPos(offset, len(b))
	if a.Version, a.Flags, n, err = fullAtom(b, offset); err != nil {
		return
	}
	if a.Version == 1 {
		if len(b) < n+28 {
			err = parseErr("Duration64", n+offset, err)
			return
		}
		a.CreateTime = GetTime64(b[n:])
		a.ModifyTime = GetTime64(b[n+8:])
		a.TimeScale = pio.U32BE(b[n+16:])
		a.Duration = pio.U64BE(b[n+20:])
		n += 28
	} else {
		if len(b) < n+16 {
			err = parseErr("Duration", n+offset, err)
			return
		}
		a.CreateTime = GetTime32(b[n:])
		a.ModifyTime = GetTime32(b[n+4:])
		a.TimeScale = pio.U32BE(b[n+8:])
		a.Duration = uint64(pio.U32BE(b[n+12:]))
		n += 16
	}
	return
}

const TRAK = Tag(0x7472616b)

type Track struct {
	Header   *TrackHeader
	EditList *EditList
	Media    *Media
	Unknowns []Atom
	AtomPos
}

func (a Track) Tag() Tag {
	return TRAK
}

func (a *Track) Unmarshal(b []byte, offset int) (n int, err error) {
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
		case TKHD:
			atom := &TrackHeader{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("tkhd", n+offset, err)
				return
			}
			a.Header = atom
		case EDTS:
			atom := &Edits{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("edts", n+offset, err)
				return
			}
			a.EditList = atom.List
		case MDIA:
			atom := &Media{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("mdia", n+offset, err)
				return
			}
			a.Media = atom
		default:
			atom := &Dummy{Tag_: tag}
			atom.Unmarshal(b[n:n+size], offset+n)
			a.Unknowns = append(a.Unknowns, atom)
		}
		n += size
	}
	return
}

func (a Track) Children() (r []Atom) {
	if a.Header != nil {
		r = append(r, a.Header)
	}
	if a.EditList != nil {
		r = append(r, a.EditList)
	}
	if a.Media != nil {
		r = append(r, a.Media)
	}
	r = append(r, a.Unknowns...)
	return
}

const TKHD = Tag(0x746b6864)

const (
	TrackEnabled   = 0x0001
	TrackInMovie   = 0x0002
	TrackInPreview = 0x0004
)

type TrackHeader struct {
	Version        uint8
	Flags          uint32
	TrackID        uint32
	Duration       uint64
	Layer          int16
	AlternateGroup int16
	Matrix         [9]int32
	TrackWidth     float64
	TrackHeight    float64
	AtomPos
}

func (a TrackHeader) Tag() Tag {
	return TKHD
}

func (a TrackHeader) Children() (r []Atom) {
	return
}

func (a *TrackHeader) Unmarshal(b []byte, offset int) (n int, err error) {
	(&a.AtomPos).setPos(offset, len(b))
	if a.Version, a.Flags, n, err = fullAtom(b, offset); err != nil {
		return
	}
	if a.Version == 1 {
		if len(b) < n+32 {
			err = parseErr("TrackId64", n+offset, err)
			return
		}
		a.TrackID = pio.U32BE(b[n+16:])
		a.Duration = pio.U64BE(b[n+24:])
		n += 32
	} else {
		if len(b) < n+20 {
			err = parseErr("TrackId", n+offset, err)
			return
		}
		a.TrackID = pio.U32BE(b[n+8:])
		a.Duration = uint64(pio.U32BE(b[n+16:]))
		n += 20
	}
	if len(b) < n+60 {
		err = parseErr("Matrix", n+offset, err)
		return
	}
	a.Layer = pio.I16BE(b[n+8:])
	a.AlternateGroup = pio.I16BE(b[n+10:])
	n += 16
	for i := range a.Matrix {
		a.Matrix[i] = pio.I32BE(b[n:])
		n += 4
	}
	a.TrackWidth = GetFixed32(b[n:])
	a.TrackHeight = GetFixed32(b[n+4:])
	n += 8
	return
}

const EDTS = Tag(0x65647473)

type Edits struct {
	List *EditList
	AtomPos
}

func (a Edits) Tag() Tag {
	return EDTS
}

func (a Edits) Children() (r []Atom) {
	if a.List != nil {
		r = append(r, a.List)
	}
	return
}

func (a *Edits) Unmarshal(b []byte, offset int) (n int, err error) {
	(&a.AtomPos).setPos(offset, len(b))
	n += 8
	for n+8 <= len(b) {
		tag := Tag(pio.U32BE(b[n+4:]))
		size := int(pio.U32BE(b[n:]))
		if size < 8 || len(b) < n+size {
			err = parseErr("TagSizeInvalid", n+offset, err)
			return
		}
		if tag == ELST {
			atom := &EditList{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("elst", n+offset, err)
				return
			}
			a.List = atom
		}
		n += size
	}
	return
}

const ELST = Tag(0x656c7374)

type EditList struct {
	Version uint8
	Flags   uint32
	Entries []EditListEntry
	AtomPos
}

// EditListEntry maps one segment of the presentation timeline onto the
// media timeline. MediaTime is in media (mdhd) timescale units; -1 marks
// an empty edit.
type EditListEntry struct {
	SegmentDuration uint64
	MediaTime       int64
	MediaRate       int32
}

func (a EditList) Tag() Tag {
	return ELST
}

func (a EditList) Children() (r []Atom) {
	return
}

func (a *EditList) Unmarshal(b []byte, offset int) (n int, err error) {
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
	entryLen := 12
	if a.Version == 1 {
		entryLen = 20
	}
	if len(b) < n+entryLen*count {
		err = parseErr("EditListEntry", n+offset, err)
		return
	}
	a.Entries = make([]EditListEntry, count)
	for i := range a.Entries {
		if a.Version == 1 {
			a.Entries[i].SegmentDuration = pio.U64BE(b[n:])
			a.Entries[i].MediaTime = pio.I64BE(b[n+8:])
			a.Entries[i].MediaRate = pio.I32BE(b[n+16:])
		} else {
			a.Entries[i].SegmentDuration = uint64(pio.U32BE(b[n:]))
			a.Entries[i].MediaTime = int64(pio.I32BE(b[n+4:]))
			a.Entries[i].MediaRate = pio.I32BE(b[n+8:])
		}
		n += entryLen
	}
	return
}
