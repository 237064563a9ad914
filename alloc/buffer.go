// Package alloc allocates patch buffers.
package alloc

import (
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/outofforest/photon"
)

// Kind selects where patch buffers live.
type Kind uint8

const (
	// Heap allocates buffers on the Go heap.
	Heap Kind = iota

	// Mmap allocates buffers in anonymous memory mappings outside of the Go heap.
	Mmap

	// MmapHugePages allocates buffers in anonymous memory mappings backed by huge pages.
	MmapHugePages
)

func (k Kind) String() string {
	switch k {
	case Heap:
		return "heap"
	case Mmap:
		return "mmap"
	case MmapHugePages:
		return "mmap-hugepages"
	default:
		return "unknown"
	}
}

// Alignment is the alignment of mapped buffers, equal to the cache line size.
const Alignment = 64

// Make allocates buffer of n elements. Returned function releases the buffer, it must be called exactly once
// and the buffer must not be used after that. Mapped buffers must not store Go pointers, so only plain value
// types should be used as T.
func Make[T comparable](kind Kind, n int) ([]T, func(), error) {
	if n == 0 || kind == Heap {
		return make([]T, n), func() {}, nil
	}

	var t T
	p, release, err := Allocate(uint64(n)*uint64(unsafe.Sizeof(t)), Alignment, kind == MmapHugePages)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "allocating buffer of %d elements failed", n)
	}
	return photon.SliceFromPointer[T](p, n), release, nil
}

// Allocate maps anonymous memory of the size and returns pointer aligned to alignment.
func Allocate(size, alignment uint64, useHugePages bool) (unsafe.Pointer, func(), error) {
	opts := unix.MAP_PRIVATE | unix.MAP_ANONYMOUS
	if useHugePages {
		opts |= unix.MAP_HUGETLB
	}

	mappedSize := uintptr(size + alignment)
	mappedP, err := unix.MmapPtr(-1, 0, nil, mappedSize, unix.PROT_READ|unix.PROT_WRITE, opts)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "mapping %d bytes failed", mappedSize)
	}

	a := uintptr(alignment)
	p := unsafe.Add(mappedP, (uintptr(mappedP)+a-1)/a*a-uintptr(mappedP))

	return p, func() {
		// Kernel rounds the mapping up to the page size and munmap must receive the rounded size.
		// Size of huge page is not exposed, 2MB and 1GB are tried.
		if useHugePages {
			if unmap(mappedP, mappedSize, 2*1024*1024) == nil {
				return
			}
			if unmap(mappedP, mappedSize, 1024*1024*1024) == nil {
				return
			}
		}
		_ = unmap(mappedP, mappedSize, uintptr(os.Getpagesize()))
	}, nil
}

func unmap(p unsafe.Pointer, size, pageSize uintptr) error {
	return unix.MunmapPtr(p, (size+pageSize-1)/pageSize*pageSize)
}
