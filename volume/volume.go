// Package volume stores a completed rank lattice as integer ranks and
// serialises it to a compact checksummed file.
//
// File layout (little endian):
//
//	"VCRV" | version u8 | d0 u32 | d1 u32 | d2 u32 | xxhash64 u64 | zstd(ranks as u32...)
//
// The checksum covers the raw (uncompressed) rank payload.
package volume

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/pthm-cable/voidcluster/lattice"
)

const (
	magic   = "VCRV"
	version = 1
)

// Volume is a dense d0×d1×d2 array of integer ranks in [0, size).
type Volume struct {
	D0, D1, D2 int
	Ranks      []uint32
}

// New allocates a zeroed volume.
func New(d0, d1, d2 int) (*Volume, error) {
	n, err := lattice.CellCount(d0, d1, d2)
	if err != nil {
		return nil, err
	}
	return &Volume{D0: d0, D1: d1, D2: d2, Ranks: make([]uint32, n)}, nil
}

// Size returns the number of cells.
func (v *Volume) Size() int { return v.D0 * v.D1 * v.D2 }

// Index returns the linear index of (x, y, z) with toroidal wrapping,
// using the same layout as lattice.Grid.
func (v *Volume) Index(x, y, z int) int {
	return lattice.Mod(x, v.D0) + lattice.Mod(y, v.D1)*v.D0 + lattice.Mod(z, v.D2)*v.D0*v.D1
}

// At returns the rank at (x, y, z).
func (v *Volume) At(x, y, z int) uint32 { return v.Ranks[v.Index(x, y, z)] }

// Value returns the rank at (x, y, z) normalised to [0, 1).
func (v *Volume) Value(x, y, z int) float64 {
	return float64(v.At(x, y, z)) / float64(v.Size())
}

// Layer returns a copy of the ranks in layer z.
func (v *Volume) Layer(z int) []uint32 {
	n := v.D0 * v.D1
	start := lattice.Mod(z, v.D2) * n
	out := make([]uint32, n)
	copy(out, v.Ranks[start:start+n])
	return out
}

// IsPermutation reports whether the ranks are exactly 0..size-1 in some order.
func (v *Volume) IsPermutation() bool {
	seen := make([]bool, len(v.Ranks))
	for _, r := range v.Ranks {
		if int(r) >= len(seen) || seen[r] {
			return false
		}
		seen[r] = true
	}
	return true
}

func (v *Volume) payload() []byte {
	buf := make([]byte, 4*len(v.Ranks))
	for i, r := range v.Ranks {
		binary.LittleEndian.PutUint32(buf[4*i:], r)
	}
	return buf
}

// Checksum returns the xxhash64 of the little-endian rank payload.
func (v *Volume) Checksum() uint64 {
	return xxhash.Sum64(v.payload())
}

// Encode writes v to w.
func Encode(w io.Writer, v *Volume) error {
	if len(v.Ranks) != v.Size() {
		return fmt.Errorf("volume has %d ranks for %dx%dx%d", len(v.Ranks), v.D0, v.D1, v.D2)
	}
	raw := v.payload()

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("zstd encoder: %w", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(raw, nil)

	var hdr bytes.Buffer
	hdr.WriteString(magic)
	_ = hdr.WriteByte(version)
	_ = binary.Write(&hdr, binary.LittleEndian, uint32(v.D0))
	_ = binary.Write(&hdr, binary.LittleEndian, uint32(v.D1))
	_ = binary.Write(&hdr, binary.LittleEndian, uint32(v.D2))
	_ = binary.Write(&hdr, binary.LittleEndian, xxhash.Sum64(raw))

	if _, err := w.Write(hdr.Bytes()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("writing payload: %w", err)
	}
	return nil
}

// Decode reads a volume written by Encode and verifies its checksum.
func Decode(r io.Reader) (*Volume, error) {
	br := bufio.NewReader(r)

	var m [4]byte
	if _, err := io.ReadFull(br, m[:]); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if string(m[:]) != magic {
		return nil, fmt.Errorf("not a rank volume (magic %q)", m[:])
	}
	ver, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	if ver != version {
		return nil, fmt.Errorf("unsupported volume version %d", ver)
	}

	var dims [3]uint32
	var sum uint64
	if err := binary.Read(br, binary.LittleEndian, &dims); err != nil {
		return nil, fmt.Errorf("reading dims: %w", err)
	}
	if err := binary.Read(br, binary.LittleEndian, &sum); err != nil {
		return nil, fmt.Errorf("reading checksum: %w", err)
	}

	d0, d1, d2 := int(dims[0]), int(dims[1]), int(dims[2])
	n, err := lattice.CellCount(d0, d1, d2)
	if err != nil {
		return nil, fmt.Errorf("header dims %dx%dx%d: %w", dims[0], dims[1], dims[2], err)
	}
	want := 4 * uint64(n)

	compressed, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(want))
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	if uint64(len(raw)) != want {
		return nil, fmt.Errorf("payload is %d bytes, want %d", len(raw), want)
	}
	v, err := New(d0, d1, d2)
	if err != nil {
		return nil, err
	}
	if got := xxhash.Sum64(raw); got != sum {
		return nil, fmt.Errorf("checksum mismatch: stored %016x, computed %016x", sum, got)
	}
	for i := range v.Ranks {
		v.Ranks[i] = binary.LittleEndian.Uint32(raw[4*i:])
	}
	return v, nil
}

// Save writes v to path.
func Save(path string, v *Volume) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating volume file: %w", err)
	}
	if err := Encode(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads a volume from path.
func Load(path string) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening volume file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
