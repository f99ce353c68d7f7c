package mp4io

import (
	"github.com/vodkit/mp4pipe/utils/bits/pio"
)

const (
	AVC1 = Tag(0x61766331)
	AVC3 = Tag(0x61766333)
	HVC1 = Tag(0x68766331)
	HEV1 = Tag(0x68657631)
	AVCC = Tag(0x61766343)
	HVCC = Tag(0x68766343)
	PASP = Tag(0x70617370)
)

// VideoSampleEntry is one visual entry of an stsd box. The avc1/avc3 and
// hvc1/hev1 layouts are identical up to the codec config child, so all
// four share this type; CodecTag records which one was found.
type VideoSampleEntry struct {
	CodecTag       Tag
	DataRefIdx     int16
	Width          int16
	Height         int16
	FrameCount     int16
	CompressorName [32]byte
	Depth          int16
	Conf           *CodecConf
	Unknowns       []Atom
	AtomPos
}

func (a VideoSampleEntry) Tag() Tag {
	return a.CodecTag
}

func (a *VideoSampleEntry) Unmarshal(b []byte, offset int) (n int, err error) {
	(&a.AtomPos).setPos(offset, len(b))
	n += 8
	if len(b) < n+78 {
		err = parseErr("SampleEntry", n+offset, err)
		return
	}
	a.DataRefIdx = pio.I16BE(b[n+6:])
	a.Width = pio.I16BE(b[n+24:])
	a.Height = pio.I16BE(b[n+26:])
	a.FrameCount = pio.I16BE(b[n+40:])
	copy(a.CompressorName[:], b[n+42:n+74])
	a.Depth = pio.I16BE(b[n+74:])
	n += 78
	for n+8 <= len(b) {
		tag := Tag(pio.U32BE(b[n+4:]))
		size := int(pio.U32BE(b[n:]))
		if size < 8 || len(b) < n+size {
			err = parseErr("TagSizeInvalid", n+offset, err)
			return
		}
		switch tag {
		case AVCC, HVCC:
			atom := &CodecConf{Tag_: tag}
			if _, err = atom.Unmarshal(b[n:n+size], offset+n); err != nil {
				err = parseErr(tag.String(), n+offset, err)
				return
			}
			a.Conf = atom
		default:
			atom := &Dummy{Tag_: tag}
			atom.Unmarshal(b[n:n+size], offset+n)
			a.Unknowns = append(a.Unknowns, atom)
		}
		n += size
	}
	return
}

func (a VideoSampleEntry) Children() (r []Atom) {
	if a.Conf != nil {
		r = append(r, a.Conf)
	}
	r = append(r, a.Unknowns...)
	return
}

// CodecConf is an avcC or hvcC box. Data is the box payload without the
// 8-byte box header, which is exactly the decoder configuration record a
// video decoder wants as its description.
type CodecConf struct {
	Tag_ Tag
	Data []byte
	AtomPos
}

func (a CodecConf) Tag() Tag {
	return a.Tag_
}

func (a CodecConf) Children() (r []Atom) {
	return
}

func (a *CodecConf) Unmarshal(b []byte, offset int) (n int, err error) {
	(&a.AtomPos).setPos(offset, len(b))
	n += 8
	a.Data = b[n:]
	n += len(b[n:])
	return
}
