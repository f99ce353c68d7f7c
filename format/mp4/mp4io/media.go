package mp4io

import (
	"github.com/vodkit/mp4pipe/utils/bits/pio"
)

const MDIA = Tag(0x6d646961)

type Media struct {
	Header   *MediaHeader
	Handler  *HandlerRefer
	Info     *MediaInfo
	Unknowns []Atom
	AtomPos
}

func (a Media) Tag() Tag {
	return MDIA
}

func (a *Media) Unmarshal(b []byte, offset int) (n int, err error) {
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
		case MDHD:
			atom := &MediaHeader{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("mdhd", n+offset, err)
				return
			}
			a.Header = atom
		case HDLR:
			atom := &HandlerRefer{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("hdlr", n+offset, err)
				return
			}
			a.Handler = atom
		case MINF:
			atom := &MediaInfo{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("minf", n+offset, err)
				return
			}
			a.Info = atom
		default:
			atom := &Dummy{Tag_: tag}
			atom.Unmarshal(b[n:n+size], offset+n)
			a.Unknowns = append(a.Unknowns, atom)
		}
		n += size
	}
	return
}

func (a Media) Children() (r []Atom) {
	if a.Header != nil {
		r = append(r, a.Header)
	}
	if a.Handler != nil {
		r = append(r, a.Handler)
	}
	if a.Info != nil {
		r = append(r, a.Info)
	}
	r = append(r, a.Unknowns...)
	return
}

const MDHD = Tag(0x6d646864)

type MediaHeader struct {
	Version   uint8
	Flags     uint32
	TimeScale uint32
	Duration  uint64
	Language  int16
	AtomPos
}

func (a MediaHeader) Tag() Tag {
	return MDHD
}

func (a MediaHeader) Children() (r []Atom) {
	return
}

func (a *MediaHeader) Unmarshal(b []byte, offset int) (n int, err error) {
	(&a.AtomPos).setPos(offset, len(b))
	if a.Version, a.Flags, n, err = fullAtom(b, offset); err != nil {
		return
	}
	if a.Version == 1 {
		if len(b) < n+30 {
			err = parseErr("Duration64", n+offset, err)
			return
		}
		a.TimeScale = pio.U32BE(b[n+16:])
		a.Duration = pio.U64BE(b[n+20:])
		a.Language = pio.I16BE(b[n+28:])
		n += 30
	} else {
		if len(b) < n+18 {
			err = parseErr("Duration", n+offset, err)
			return
		}
		a.TimeScale = pio.U32BE(b[n+8:])
		a.Duration = uint64(pio.U32BE(b[n+12:]))
		a.Language = pio.I16BE(b[n+16:])
		n += 18
	}
	return
}

const HDLR = Tag(0x68646c72)

const (
	HandlerVideo = Tag(0x76696465) // vide
	HandlerSound = Tag(0x736f756e) // soun
)

type HandlerRefer struct {
	Version uint8
	Flags   uint32
	Type    Tag
	Name    string
	AtomPos
}

func (a HandlerRefer) Tag() Tag {
	return HDLR
}

func (a HandlerRefer) Children() (r []Atom) {
	return
}

func (a *HandlerRefer) Unmarshal(b []byte, offset int) (n int, err error) {
	(&a.AtomPos).setPos(offset, len(b))
	if a.Version, a.Flags, n, err = fullAtom(b, offset); err != nil {
		return
	}
	if len(b) < n+20 {
		err = parseErr("HandlerType", n+offset, err)
		return
	}
	a.Type = Tag(pio.U32BE(b[n+4:]))
	n += 20
	if n < len(b) {
		a.Name = string(b[n : len(b)-1])
		n = len(b)
	}
	return
}

const MINF = Tag(0x6d696e66)

type MediaInfo struct {
	Sample   *SampleTable
	Unknowns []Atom
	AtomPos
}

func (a MediaInfo) Tag() Tag {
	return MINF
}

func (a *MediaInfo) Unmarshal(b []byte, offset int) (n int, err error) {
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
		case STBL:
			atom := &SampleTable{}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr("stbl", n+offset, err)
				return
			}
			a.Sample = atom
		default:
			atom := &Dummy{Tag_: tag}
			atom.Unmarshal(b[n:n+size], offset+n)
			a.Unknowns = append(a.Unknowns, atom)
		}
		n += size
	}
	return
}

func (a MediaInfo) Children() (r []Atom) {
	if a.Sample != nil {
		r = append(r, a.Sample)
	}
	r = append(r, a.Unknowns...)
	return
}
