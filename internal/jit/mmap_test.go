package jit

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestMmapCodeSegment(t *testing.T) {
	code := make([]byte, 32)
	for i := range code {
		code[i] = byte(i)
	}
	binary.LittleEndian.PutUint64(code[8:16], 24)

	segment, err := mmapCodeSegment(&assembledCode{code: code, relocations: []int64{8}})
	require.NoError(t, err)
	defer func() { require.NoError(t, munmap(segment)) }()

	require.Equal(t, code[:8], segment[:8])
	require.Equal(t, code[16:], segment[16:])
	base := uint64(uintptr(unsafe.Pointer(&segment[0])))
	require.Equal(t, base+24, binary.LittleEndian.Uint64(segment[8:16]))
}

func TestMmapCodeSegment_ZeroLength(t *testing.T) {
	require.PanicsWithValue(t, "BUG: mmapCodeSegment with zero length", func() {
		_, _ = mmapCodeSegment(&assembledCode{})
	})
}

func TestMmapTape(t *testing.T) {
	tape, err := mmapTape(4096)
	require.NoError(t, err)
	require.Equal(t, make([]byte, 4096), tape)
	tape[4095] = 1
	require.NoError(t, munmap(tape))
}
