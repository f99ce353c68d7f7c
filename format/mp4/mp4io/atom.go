// Package mp4io parses the ISO BMFF boxes a progressive MP4 demuxer needs.
// It is read-only: atoms unmarshal from complete box buffers and keep
// offsets relative to the start of the file for diagnostics.
package mp4io

import (
	"time"

	"github.com/vodkit/mp4pipe/utils/bits/pio"
)

type Tag uint32

func (a Tag) String() string {
	var b [4]byte
	pio.PutU32BE(b[:], uint32(a))
	for i := 0; i < 4; i++ {
		if b[i] == 0 {
			b[i] = ' '
		}
	}
	return string(b[:])
}

func StringToTag(tag string) Tag {
	var b [4]byte
	copy(b[:], []byte(tag))
	return Tag(pio.U32BE(b[:]))
}

type Atom interface {
	Pos() (int, int)
	Tag() Tag
	Unmarshal([]byte, int) (int, error)
	Children() []Atom
}

type AtomPos struct {
	Offset int
	Size   int
}

func (a AtomPos) Pos() (int, int) {
	return a.Offset, a.Size
}

func (a *AtomPos) setPos(offset int, size int) {
	a.Offset, a.Size = offset, size
}

// Dummy keeps the raw bytes of a box this package has no structure for.
type Dummy struct {
	Data []byte
	Tag_ Tag
	AtomPos
}

func (a Dummy) Children() []Atom {
	return nil
}

func (a Dummy) Tag() Tag {
	return a.Tag_
}

func (a *Dummy) Unmarshal(b []byte, offset int) (n int, err error) {
	(&a.AtomPos).setPos(offset, len(b))
	a.Data = b
	n = len(b)
	return
}

func FindChildren(root Atom, tag Tag) Atom {
	if root.Tag() == tag {
		return root
	}
	for _, child := range root.Children() {
		if r := FindChildren(child, tag); r != nil {
			return r
		}
	}
	return nil
}

func GetTime32(b []byte) (t time.Time) {
	sec := pio.U32BE(b)
	t = time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)
	t = t.Add(time.Second * time.Duration(sec))
	return
}

func GetTime64(b []byte) (t time.Time) {
	sec := pio.U64BE(b)
	t = time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)
	t = t.Add(time.Second * time.Duration(sec))
	return
}

func GetFixed16(b []byte) float64 {
	return float64(pio.U16BE(b)) / 256.0
}

func GetFixed32(b []byte) float64 {
	return float64(pio.U32BE(b)) / 65536.0
}

// fullAtom pulls the version/flags header shared by full boxes.
func fullAtom(b []byte, offset int) (version uint8, flags uint32, n int, err error) {
	n = 8
	if len(b) < n+4 {
		err = parseErr("fullAtom", offset, nil)
		return
	}
	version = pio.U8(b[n:])
	flags = pio.U24BE(b[n+1:])
	n += 4
	return
}
