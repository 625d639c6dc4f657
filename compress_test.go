package smartfs

import (
	"bytes"
	"testing"
)

func TestCompressSkipsAlreadyCompressedMagic(t *testing.T) {
	cases := [][]byte{
		append([]byte{0xFF, 0xD8, 0xFF}, bytes.Repeat([]byte{1}, 64)...),
		append([]byte{0x89, 0x50, 0x4E, 0x47}, bytes.Repeat([]byte{2}, 64)...),
		append([]byte{0x50, 0x4B, 0x03, 0x04}, bytes.Repeat([]byte{3}, 64)...),
		append([]byte{0x1F, 0x8B}, bytes.Repeat([]byte{4}, 64)...),
	}
	for _, in := range cases {
		out, tag := compress(in)
		if tag != codecRaw {
			t.Errorf("compress(%x...) tag = %v, want codecRaw", in[:4], tag)
		}
		if !bytes.Equal(out, in) {
			t.Errorf("compress(%x...) changed bytes on a skip path", in[:4])
		}
	}
}

func TestCompressDecompressRoundtrip(t *testing.T) {
	input := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 50)
	out, tag := compress(input)
	back, err := decompress(out, tag, len(input))
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(back, input) {
		t.Error("decompress(compress(x)) != x")
	}
}

func TestCompressFallsBackToRawWhenNoWin(t *testing.T) {
	// High-entropy random-ish input that won't compress well; zstd's
	// container overhead on tiny incompressible input typically exceeds
	// the input size, which should trip the "store verbatim" fallback.
	input := []byte{0x13, 0x37, 0x9A, 0x02}
	out, tag := compress(input)
	if tag == codecRaw {
		if !bytes.Equal(out, input) {
			t.Error("codecRaw output should equal input verbatim")
		}
	}
	back, err := decompress(out, tag, len(input))
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(back, input) {
		t.Error("decompress(compress(x)) != x even on the no-win path")
	}
}

func TestDecompressFailureFallsBackToCopy(t *testing.T) {
	garbage := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	out, err := decompress(garbage, codecZstd, len(garbage))
	if err != nil {
		t.Fatalf("decompress should absorb failure, not return an error: %v", err)
	}
	if !bytes.Equal(out, garbage) {
		t.Error("decompress fallback should copy the input verbatim")
	}
}
