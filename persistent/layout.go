// Package persistent defines binary format of the layout records.
package persistent

import (
	"bytes"
	"io"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/outofforest/photon"
	"github.com/outofforest/tessera/domain"
	"github.com/outofforest/tessera/types"
)

// axisRecord is the persisted form of one axis of the patch domain. Words are stored in the native byte order.
type axisRecord struct {
	Kind     int64
	First    int64
	Stride   int64
	Length   int64
	Reserved [2]int64
}

const wordSize = 8

var recordSize = len(photon.NewFromValue(&axisRecord{}).B)

// WriteLayout writes the number of patches followed by one record per axis of each patch domain.
func WriteLayout(w io.Writer, domains []domain.Domain) error {
	count := int64(len(domains))
	if _, err := w.Write(photon.NewFromValue(&count).B); err != nil {
		return errors.WithStack(err)
	}

	for _, d := range domains {
		for axis := range d.Dim() {
			a := d.Axis(axis)
			rec := axisRecord{
				Kind:   int64(d.Kind()),
				First:  int64(a.First),
				Stride: int64(a.Stride),
				Length: int64(a.Length),
			}
			if _, err := w.Write(photon.NewFromValue(&rec).B); err != nil {
				return errors.WithStack(err)
			}
		}
	}
	return nil
}

// ReadLayout reads domains of dimension dim. Byte order is detected from the stride of the first record, which
// is expected to be 1. If it is not, all the words are byte-swapped.
func ReadLayout(r io.Reader, dim int) ([]domain.Domain, error) {
	if dim <= 0 || dim > types.MaxDim {
		return nil, errors.Errorf("invalid dimension %d", dim)
	}

	countBuf := make([]byte, wordSize)
	if _, err := io.ReadFull(r, countBuf); err != nil {
		return nil, errors.Wrap(err, "reading patch count failed")
	}
	count := *photon.FromBytes[int64](countBuf)
	if count == 0 {
		return []domain.Domain{}, nil
	}

	patchBuf := make([]byte, dim*recordSize)
	if _, err := io.ReadFull(r, patchBuf); err != nil {
		return nil, errors.Wrap(err, "reading first patch failed")
	}

	var swap bool
	switch stride := photon.FromBytes[axisRecord](patchBuf[:recordSize]).Stride; {
	case stride == 1:
	case int64(bits.ReverseBytes64(uint64(stride))) == 1:
		swap = true
		count = reverse(count)
	default:
		return nil, errors.Errorf("byte order cannot be detected, stride of the first record is %d", stride)
	}
	if count < 0 {
		return nil, errors.Errorf("invalid patch count %d", count)
	}

	domains := make([]domain.Domain, 0, min(count, 1024))
	axes := make([]domain.Axis, dim)
	for i := range count {
		if i > 0 {
			if _, err := io.ReadFull(r, patchBuf); err != nil {
				return nil, errors.Wrapf(err, "reading patch %d failed", i)
			}
		}

		var kind domain.Kind
		for axis := range dim {
			rec := *photon.FromBytes[axisRecord](patchBuf[axis*recordSize : (axis+1)*recordSize])
			if swap {
				rec.Kind = reverse(rec.Kind)
				rec.First = reverse(rec.First)
				rec.Stride = reverse(rec.Stride)
				rec.Length = reverse(rec.Length)
			}

			a, k, err := decodeAxis(rec)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid axis %d of patch %d", axis, i)
			}
			axes[axis] = a
			kind = k
		}
		domains = append(domains, domain.New(kind, axes...))
	}
	return domains, nil
}

// MarshalDomains returns the binary form of domains.
func MarshalDomains(domains []domain.Domain) []byte {
	buf := bytes.NewBuffer(nil)
	// Writes to bytes.Buffer never fail.
	_ = WriteLayout(buf, domains)
	return buf.Bytes()
}

// UnmarshalDomains decodes domains of the dimension.
func UnmarshalDomains(b []byte, dim int) ([]domain.Domain, error) {
	r := bytes.NewReader(b)
	domains, err := ReadLayout(r, dim)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.Errorf("%d unexpected trailing bytes", r.Len())
	}
	return domains, nil
}

func decodeAxis(rec axisRecord) (domain.Axis, domain.Kind, error) {
	kind := domain.Kind(rec.Kind)
	switch {
	case rec.Kind < int64(domain.KindLoc) || rec.Kind > int64(domain.KindRange):
		return domain.Axis{}, 0, errors.Errorf("invalid kind %d", rec.Kind)
	case rec.Stride == 0:
		return domain.Axis{}, 0, errors.New("zero stride")
	case rec.Length < 0:
		return domain.Axis{}, 0, errors.Errorf("negative length %d", rec.Length)
	case kind == domain.KindLoc && rec.Length != 1:
		return domain.Axis{}, 0, errors.Errorf("loc axis of length %d", rec.Length)
	case kind == domain.KindInterval && rec.Length > 1 && rec.Stride != 1:
		return domain.Axis{}, 0, errors.Errorf("interval axis with stride %d", rec.Stride)
	}

	return domain.Axis{First: int(rec.First), Stride: int(rec.Stride), Length: int(rec.Length)}, kind, nil
}

func reverse(v int64) int64 {
	return int64(bits.ReverseBytes64(uint64(v)))
}
