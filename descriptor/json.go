package descriptor

import (
	"reflect"

	"github.com/drblury/ddsctx/dds"
	"github.com/drblury/ddsctx/internal/runtime/jsoncodec"
)

// JSON describes samples of type T encoded as JSON. Buffers are *T.
type JSON[T any] struct {
	name string
}

// NewJSON returns a JSON descriptor. An empty name defaults to the Go type
// name of T.
func NewJSON[T any](name string) JSON[T] {
	if name == "" {
		name = reflect.TypeFor[T]().String()
	}
	return JSON[T]{name: name}
}

func (j JSON[T]) TypeName() string {
	if j.name == "" {
		return reflect.TypeFor[T]().String()
	}
	return j.name
}

func (JSON[T]) Alloc(int) any { return new(T) }

func (JSON[T]) Free(buf any) {
	if p, ok := buf.(*T); ok && p != nil {
		var zero T
		*p = zero
	}
}

func (j JSON[T]) Encode(sample any) ([]byte, error) {
	switch v := sample.(type) {
	case T:
		return jsoncodec.Marshal(v)
	case *T:
		if v == nil {
			return nil, unsupported(j, sample)
		}
		return jsoncodec.Marshal(v)
	}
	return nil, unsupported(j, sample)
}

func (j JSON[T]) Decode(data []byte, buf any) error {
	p, ok := buf.(*T)
	if !ok || p == nil {
		return unsupported(j, buf)
	}
	var zero T
	*p = zero
	return jsoncodec.Unmarshal(data, p)
}

var _ dds.Descriptor = JSON[struct{}]{}
