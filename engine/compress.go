package engine

// Compressible is implemented by engines able to store uniform elements as a single value.
type Compressible interface {
	// Elements returns the number of elements the engine is responsible for.
	Elements() int

	// ElementsCompressed returns the number of elements stored compressed.
	ElementsCompressed() int

	// TryCompress compresses storage whose elements are all equal and returns true if everything is compressed.
	TryCompress() bool

	// Uncompress expands the storage.
	Uncompress() error
}

// Compressed returns true if all the elements are compressed.
func Compressed(c Compressible) bool {
	return c.ElementsCompressed() == c.Elements()
}

// ElementsCompressed returns the number of compressed elements.
func ElementsCompressed(c Compressible) int {
	return c.ElementsCompressed()
}

// CompressedFraction returns the fraction of compressed elements. Engine without elements is fully compressed.
func CompressedFraction(c Compressible) float64 {
	elements := c.Elements()
	if elements == 0 {
		return 1
	}
	return float64(c.ElementsCompressed()) / float64(elements)
}

// Compress compresses uniform storage.
func Compress(c Compressible) bool {
	return c.TryCompress()
}

// Uncompress expands compressed storage.
func Uncompress(c Compressible) error {
	return c.Uncompress()
}
