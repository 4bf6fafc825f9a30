package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/yyyoichi/bitstream-go"
)

var ErrCorrupt = errors.New("corrupt packed data")

// PackBools packs one bit per value into little-endian 64-bit words.
func PackBools(values []bool) []byte {
	words := (len(values) + 63) / 64
	out := make([]byte, words*8)
	if words == 0 {
		return out
	}
	w := bitstream.NewBitWriter[uint64](0, 0)
	for _, v := range values {
		w.WriteBool(v)
	}
	for i, word := range w.Data() {
		if i == words {
			break
		}
		binary.LittleEndian.PutUint64(out[i*8:], word)
	}
	return out
}

// UnpackBools reverses PackBools for n values.
func UnpackBools(data []byte, n int) ([]bool, error) {
	if n == 0 {
		return []bool{}, nil
	}
	words := (n + 63) / 64
	if len(data) < words*8 {
		return nil, fmt.Errorf("%w: %d bytes for %d bits", ErrCorrupt, len(data), n)
	}
	buf := make([]uint64, words)
	for i := range buf {
		buf[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	r := bitstream.NewBitReader(buf, 0, 0)
	r.SetBits(n)
	out := make([]bool, n)
	for i := range out {
		bit, err := r.ReadBitAt(i)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		out[i] = bit
	}
	return out, nil
}

// PackDecisions flattens per-date decisions into one bit stream and the
// length of every date.
func PackDecisions(decisions [][]bool) (lengths []int, packed []byte) {
	lengths = make([]int, len(decisions))
	var flat []bool
	for i, d := range decisions {
		lengths[i] = len(d)
		flat = append(flat, d...)
	}
	return lengths, PackBools(flat)
}

func UnpackDecisions(lengths []int, packed []byte) ([][]bool, error) {
	total := 0
	for _, n := range lengths {
		if n < 0 {
			return nil, fmt.Errorf("%w: negative length %d", ErrCorrupt, n)
		}
		total += n
	}
	flat, err := UnpackBools(packed, total)
	if err != nil {
		return nil, err
	}
	out := make([][]bool, len(lengths))
	at := 0
	for i, n := range lengths {
		out[i] = flat[at : at+n : at+n]
		at += n
	}
	return out, nil
}

// PackInts encodes values as consecutive signed varints.
func PackInts(values []int) []byte {
	out := make([]byte, 0, len(values))
	for _, v := range values {
		out = binary.AppendVarint(out, int64(v))
	}
	return out
}

func UnpackInts(data []byte) ([]int, error) {
	out := []int{}
	for len(data) > 0 {
		v, n := binary.Varint(data)
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad varint after %d values", ErrCorrupt, len(out))
		}
		out = append(out, int(v))
		data = data[n:]
	}
	return out, nil
}
