// Package descriptor provides ready-made message-type descriptors for
// ddsctx topics and sample slots.
//
//   - Raw: fixed-size opaque byte buffers
//   - Int32: a single little-endian 32-bit integer
//   - JSON: any Go value serialised as JSON
//   - Proto: protobuf messages
//
// Every descriptor decodes in place: the buffer returned by Alloc keeps its
// address across reads, which is what sample slots rely on.
package descriptor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/drblury/ddsctx/dds"
)

// ErrUnsupportedSample is wrapped by Encode/Decode when the value has the
// wrong Go type for the descriptor.
var ErrUnsupportedSample = errors.New("descriptor: unsupported sample type")

func unsupported(desc dds.Descriptor, v any) error {
	return fmt.Errorf("%w %T for %s", ErrUnsupportedSample, v, desc.TypeName())
}

// Raw describes opaque byte payloads of a fixed size. Buffers are *[]byte.
type Raw struct {
	Name string
	Size int
}

// NewRaw returns a raw descriptor for payloads of size bytes.
func NewRaw(name string, size int) Raw {
	return Raw{Name: name, Size: size}
}

func (r Raw) TypeName() string {
	if r.Name == "" {
		return fmt.Sprintf("raw[%d]", r.Size)
	}
	return r.Name
}

func (r Raw) Alloc(size int) any {
	if size <= 0 {
		size = r.Size
	}
	buf := make([]byte, size)
	return &buf
}

func (r Raw) Free(buf any) {
	if b, ok := buf.(*[]byte); ok && b != nil {
		clear(*b)
	}
}

func (r Raw) Encode(sample any) ([]byte, error) {
	var data []byte
	switch v := sample.(type) {
	case []byte:
		data = v
	case *[]byte:
		if v == nil {
			return nil, unsupported(r, sample)
		}
		data = *v
	default:
		return nil, unsupported(r, sample)
	}
	if r.Size > 0 && len(data) > r.Size {
		return nil, fmt.Errorf("descriptor: %s payload of %d bytes exceeds %d", r.TypeName(), len(data), r.Size)
	}
	return append([]byte(nil), data...), nil
}

func (r Raw) Decode(data []byte, buf any) error {
	b, ok := buf.(*[]byte)
	if !ok || b == nil {
		return unsupported(r, buf)
	}
	if len(data) > len(*b) {
		return fmt.Errorf("descriptor: %s buffer of %d bytes cannot hold %d", r.TypeName(), len(*b), len(data))
	}
	n := copy(*b, data)
	clear((*b)[n:])
	return nil
}

// Int32 describes a single little-endian int32. Buffers are *int32.
type Int32 struct {
	Name string
}

// Int32Size is the encoded size of an Int32 sample.
const Int32Size = 4

func (d Int32) TypeName() string {
	if d.Name == "" {
		return "int32"
	}
	return d.Name
}

func (Int32) Alloc(int) any { return new(int32) }

func (Int32) Free(buf any) {
	if p, ok := buf.(*int32); ok && p != nil {
		*p = 0
	}
}

func (d Int32) Encode(sample any) ([]byte, error) {
	var v int32
	switch s := sample.(type) {
	case int32:
		v = s
	case *int32:
		if s == nil {
			return nil, unsupported(d, sample)
		}
		v = *s
	case int:
		if s < math.MinInt32 || s > math.MaxInt32 {
			return nil, fmt.Errorf("descriptor: %s value %d out of range", d.TypeName(), s)
		}
		v = int32(s)
	default:
		return nil, unsupported(d, sample)
	}
	return binary.LittleEndian.AppendUint32(nil, uint32(v)), nil
}

func (d Int32) Decode(data []byte, buf any) error {
	p, ok := buf.(*int32)
	if !ok || p == nil {
		return unsupported(d, buf)
	}
	if len(data) != Int32Size {
		return fmt.Errorf("descriptor: %s expects %d bytes, got %d", d.TypeName(), Int32Size, len(data))
	}
	*p = int32(binary.LittleEndian.Uint32(data))
	return nil
}
