package engine

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/outofforest/tessera/alloc"
	"github.com/outofforest/tessera/observer"
)

// BlockObserver is notified about transitions of the block. Notifications are delivered while the block is
// locked, so observers must not call back into the block.
type BlockObserver[T Element] interface {
	// OnCompress is called when the block is compressed to the value.
	OnCompress(value *T)

	// OnUncompress is called when the block is expanded to the buffer.
	OnUncompress(data []T)
}

// Block stores either the buffer of elements or a single value shared by all of them. Engines attached to
// the block are notified about every transition. New block is compressed and holds the zero value.
type Block[T Element] struct {
	mu sync.Mutex

	size       int
	kind       alloc.Kind
	data       []T
	release    func()
	value      *T
	compressed bool
	observers  observer.Registry[BlockObserver[T]]
}

// NewBlock creates compressed block of the size.
func NewBlock[T Element](size int, kind alloc.Kind) *Block[T] {
	return &Block[T]{
		size:       size,
		kind:       kind,
		value:      new(T),
		compressed: true,
	}
}

// Size returns the number of elements.
func (b *Block[T]) Size() int {
	return b.size
}

// Attach registers observer and immediately notifies it about the current state.
func (b *Block[T]) Attach(o BlockObserver[T]) observer.Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := b.observers.Attach(o)
	if b.compressed {
		o.OnCompress(b.value)
	} else {
		o.OnUncompress(b.data)
	}
	return h
}

// Detach unregisters observer. Buffer is released when the last observer is detached.
func (b *Block[T]) Detach(h observer.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.observers.Detach(h) == 0 && !b.compressed {
		b.release()
		b.data = nil
		b.release = nil
		b.compressed = true
	}
}

// Refs returns the number of attached observers.
func (b *Block[T]) Refs() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.observers.Count()
}

// Compressed returns true if block stores single value.
func (b *Block[T]) Compressed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.compressed
}

// Value returns the value of compressed block.
func (b *Block[T]) Value() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.compressed {
		var zero T
		return zero, false
	}
	return *b.value, true
}

// Uncompress allocates the buffer filled with the compressed value.
func (b *Block[T]) Uncompress() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.compressed {
		return nil
	}

	data, release, err := alloc.Make[T](b.kind, b.size)
	if err != nil {
		return errors.Wrap(err, "uncompressing block failed")
	}
	v := *b.value
	for i := range data {
		data[i] = v
	}

	b.data = data
	b.release = release
	b.compressed = false
	b.observers.Notify(func(o BlockObserver[T]) {
		o.OnUncompress(data)
	})
	return nil
}

// TryCompress compresses the block if all the elements are equal. It returns true if block is compressed
// afterwards. It must not run concurrently with writers of the block.
func (b *Block[T]) TryCompress() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.compressed {
		return true
	}
	if len(b.data) > 0 {
		v := b.data[0]
		for _, x := range b.data[1:] {
			if x != v {
				return false
			}
		}
		b.compress(v)
		return true
	}
	var zero T
	b.compress(zero)
	return true
}

// CompressTo compresses the block to the value, discarding current elements.
func (b *Block[T]) CompressTo(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.compressed && *b.value == v {
		return
	}
	b.compress(v)
}

func (b *Block[T]) compress(v T) {
	if !b.compressed {
		b.release()
		b.data = nil
		b.release = nil
	}
	b.value = &v
	b.compressed = true
	b.observers.Notify(func(o BlockObserver[T]) {
		o.OnCompress(b.value)
	})
}

// Clone returns the block of the same state, not shared with anyone.
func (b *Block[T]) Clone() (*Block[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := NewBlock[T](b.size, b.kind)
	if b.compressed {
		*c.value = *b.value
		return c, nil
	}

	data, release, err := alloc.Make[T](b.kind, b.size)
	if err != nil {
		return nil, errors.Wrap(err, "cloning block failed")
	}
	copy(data, b.data)
	c.data = data
	c.release = release
	c.compressed = false
	return c, nil
}
