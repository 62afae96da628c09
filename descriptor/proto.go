package descriptor

import (
	"google.golang.org/protobuf/proto"

	"github.com/drblury/ddsctx/dds"
)

// Proto describes protobuf samples. Buffers are fresh messages of the
// prototype's type.
type Proto[T proto.Message] struct {
	prototype T
}

// NewProto returns a descriptor for messages shaped like prototype.
func NewProto[T proto.Message](prototype T) Proto[T] {
	return Proto[T]{prototype: prototype}
}

func (p Proto[T]) TypeName() string {
	return string(p.prototype.ProtoReflect().Descriptor().FullName())
}

func (p Proto[T]) Alloc(int) any {
	return p.prototype.ProtoReflect().New().Interface()
}

func (Proto[T]) Free(buf any) {
	if m, ok := buf.(proto.Message); ok && m != nil {
		proto.Reset(m)
	}
}

func (p Proto[T]) Encode(sample any) ([]byte, error) {
	m, ok := sample.(proto.Message)
	if !ok || m == nil {
		return nil, unsupported(p, sample)
	}
	if m.ProtoReflect().Descriptor().FullName() != p.prototype.ProtoReflect().Descriptor().FullName() {
		return nil, unsupported(p, sample)
	}
	return proto.Marshal(m)
}

func (p Proto[T]) Decode(data []byte, buf any) error {
	m, ok := buf.(proto.Message)
	if !ok || m == nil {
		return unsupported(p, buf)
	}
	return proto.Unmarshal(data, m)
}

var _ dds.Descriptor = Proto[proto.Message]{}
