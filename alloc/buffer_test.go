package alloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestAllocate(t *testing.T) {
	const (
		size      = 1000
		alignment = 11
	)

	requireT := require.New(t)

	p, release, err := Allocate(size, alignment, false)
	requireT.NoError(err)
	t.Cleanup(release)

	requireT.Zero(uintptr(p) % alignment)

	b := unsafe.Slice((*byte)(p), size)
	for i := range size {
		b[i] = byte(i)
	}
}

func TestMake(t *testing.T) {
	requireT := require.New(t)

	for _, kind := range []Kind{Heap, Mmap} {
		buf, release, err := Make[float64](kind, 100)
		requireT.NoError(err)

		requireT.Len(buf, 100)
		for i := range buf {
			requireT.Zero(buf[i])
			buf[i] = float64(i)
		}
		requireT.Equal(99.0, buf[99])
		release()
	}

	buf, release, err := Make[int32](Mmap, 0)
	requireT.NoError(err)
	requireT.Empty(buf)
	release()

	cbuf, release, err := Make[complex128](Mmap, 8)
	requireT.NoError(err)
	requireT.Len(cbuf, 8)
	cbuf[7] = complex(1, 2)
	requireT.Equal(complex(1, 2), cbuf[7])
	release()
}
