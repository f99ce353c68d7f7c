package av

import "testing"

type testSurface struct {
	closes int
}

func (s *testSurface) Width() int  { return 2 }
func (s *testSurface) Height() int { return 2 }
func (s *testSurface) Clone() Surface {
	return &testSurface{}
}
func (s *testSurface) Close() {
	s.closes++
}

func TestFrameCloseIdempotent(t *testing.T) {
	s := &testSurface{}
	f := &Frame{Surface: s}
	f.Close()
	f.Close()
	if s.closes != 1 {
		t.Fatalf("surface closed %d times", s.closes)
	}
}

func TestFrameCloseNilSurface(t *testing.T) {
	f := &Frame{}
	f.Close()
}

func TestErrorWrapping(t *testing.T) {
	cause := ErrNoVideoTrack
	err := ParseError{Err: cause}
	if err.Unwrap() != cause {
		t.Error("ParseError does not unwrap")
	}
	derr := DecodeError{Err: cause}
	if derr.Unwrap() != cause {
		t.Error("DecodeError does not unwrap")
	}
}
