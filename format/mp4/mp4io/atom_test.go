package mp4io

import (
	"errors"
	"testing"

	"github.com/vodkit/mp4pipe/format/mp4/mp4test"
	"github.com/vodkit/mp4pipe/utils/bits/pio"
)

func buildMoov(t *testing.T, f mp4test.File) []byte {
	t.Helper()
	b := f.Build()
	// skip top-level boxes until moov
	for off := 0; off+8 <= len(b); {
		size := int(pio.U32BE(b[off:]))
		if Tag(pio.U32BE(b[off+4:])) == MOOV {
			return b[off : off+size]
		}
		off += size
	}
	t.Fatal("no moov in fixture")
	return nil
}

func videoFixture(n int) mp4test.File {
	f := mp4test.File{TimeScale: 1000, Width: 640, Height: 480}
	for i := 0; i < n; i++ {
		f.Samples = append(f.Samples, mp4test.Sample{
			Data:     mp4test.SampleData(10, byte(i)),
			Duration: 40,
			Sync:     i == 0,
		})
	}
	return f
}

func TestMovieUnmarshal(t *testing.T) {
	raw := buildMoov(t, videoFixture(3))
	moov := &Movie{}
	n, err := moov.Unmarshal(raw, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(raw) {
		t.Errorf("consumed %d of %d bytes", n, len(raw))
	}
	if moov.Header == nil {
		t.Fatal("no mvhd")
	}
	if moov.Header.TimeScale != 1000 {
		t.Errorf("movie timescale: %d", moov.Header.TimeScale)
	}
	if len(moov.Tracks) != 1 {
		t.Fatalf("tracks: %d", len(moov.Tracks))
	}

	trak := moov.Tracks[0]
	if trak.Header == nil || trak.Header.TrackID != 1 {
		t.Fatal("tkhd missing or wrong id")
	}
	if trak.Media == nil || trak.Media.Header == nil {
		t.Fatal("mdia/mdhd missing")
	}
	if trak.Media.Header.TimeScale != 1000 {
		t.Errorf("media timescale: %d", trak.Media.Header.TimeScale)
	}
	if trak.Media.Handler == nil || trak.Media.Handler.Type != HandlerVideo {
		t.Error("handler is not vide")
	}
}

func TestSampleTableUnmarshal(t *testing.T) {
	raw := buildMoov(t, videoFixture(5))
	moov := &Movie{}
	if _, err := moov.Unmarshal(raw, 0); err != nil {
		t.Fatal(err)
	}
	stbl := moov.Tracks[0].Media.Info.Sample
	if stbl == nil {
		t.Fatal("no stbl")
	}
	if stbl.SampleSize == nil || stbl.SampleSize.Count() != 5 {
		t.Fatalf("stsz: %+v", stbl.SampleSize)
	}
	if stbl.TimeToSample == nil || len(stbl.TimeToSample.Entries) == 0 {
		t.Fatal("stts missing")
	}
	if stbl.SyncSample == nil || len(stbl.SyncSample.Entries) != 1 || stbl.SyncSample.Entries[0] != 1 {
		t.Fatalf("stss: %+v", stbl.SyncSample)
	}
	if stbl.ChunkOffset == nil || len(stbl.ChunkOffset.Entries) != 1 {
		t.Fatalf("stco: %+v", stbl.ChunkOffset)
	}

	entry := stbl.SampleDesc.Video
	if entry == nil {
		t.Fatal("no video sample entry")
	}
	if entry.CodecTag != AVC1 {
		t.Errorf("codec tag: %s", entry.CodecTag)
	}
	if entry.Width != 640 || entry.Height != 480 {
		t.Errorf("geometry: %dx%d", entry.Width, entry.Height)
	}
	if entry.Conf == nil || entry.Conf.Tag() != AVCC {
		t.Fatal("no avcC conf")
	}
}

func TestEditListUnmarshal(t *testing.T) {
	f := videoFixture(3)
	media := int64(100)
	f.EditMediaTime = &media
	raw := buildMoov(t, f)
	moov := &Movie{}
	if _, err := moov.Unmarshal(raw, 0); err != nil {
		t.Fatal(err)
	}
	el := moov.Tracks[0].EditList
	if el == nil || len(el.Entries) != 1 {
		t.Fatalf("elst: %+v", el)
	}
	if el.Entries[0].MediaTime != 100 {
		t.Errorf("media time: %d", el.Entries[0].MediaTime)
	}
}

func TestUnmarshalTruncatedChain(t *testing.T) {
	raw := buildMoov(t, videoFixture(2))
	moov := &Movie{}
	_, err := moov.Unmarshal(raw[:len(raw)/2], 0)
	if err == nil {
		t.Fatal("no error on truncated moov")
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError chain, got %T: %v", err, err)
	}
}

func TestTagString(t *testing.T) {
	if MOOV.String() != "moov" {
		t.Errorf("moov tag: %q", MOOV.String())
	}
	if StringToTag("trak") != TRAK {
		t.Errorf("trak roundtrip: %v", StringToTag("trak"))
	}
}

func TestFindChildren(t *testing.T) {
	raw := buildMoov(t, videoFixture(2))
	moov := &Movie{}
	if _, err := moov.Unmarshal(raw, 0); err != nil {
		t.Fatal(err)
	}
	if atom := FindChildren(moov, TKHD); atom == nil {
		t.Error("tkhd not found")
	}
	if atom := FindChildren(moov, Tag(0x78787878)); atom != nil {
		t.Error("unexpected match for unknown tag")
	}
}
