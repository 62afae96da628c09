package runtime

import (
	"fmt"
	"sync"

	"github.com/drblury/ddsctx/dds"
	errspkg "github.com/drblury/ddsctx/internal/runtime/errors"
	"github.com/drblury/ddsctx/internal/runtime/logging"
)

// sampleSlot is one receive buffer and the info of the last read or take
// into it. The buffer keeps its address for the registry's lifetime.
type sampleSlot struct {
	desc dds.Descriptor
	size int
	buf  any

	mu   sync.Mutex
	info dds.SampleInfo
}

func (s *sampleSlot) free() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.desc.Free(s.buf)
	s.info.Reset()
}

// Sample allocates the receive buffer for index with desc. Registering an
// index again is a no-op.
func (r *Registry) Sample(index, size int, desc dds.Descriptor) error {
	if desc == nil {
		return errspkg.ErrDescriptorRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errspkg.ErrClosed
	}
	if slot, ok := r.samples[index]; ok {
		if r.strict && (slot.size != size || slot.desc.TypeName() != desc.TypeName()) {
			return fmt.Errorf("%w: sample %d is %s[%d]", errspkg.ErrRegistrationMismatch, index, slot.desc.TypeName(), slot.size)
		}
		return nil
	}

	r.samples[index] = &sampleSlot{desc: desc, size: size, buf: desc.Alloc(size)}
	r.metrics.entityCreated(errspkg.KindSample)
	r.log.Debug("Sample slot allocated", logging.LogFields{"index": index, "size": size, "type": desc.TypeName()})
	return nil
}

func (r *Registry) slot(index int) (*sampleSlot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, errspkg.ErrClosed
	}
	slot, ok := r.samples[index]
	if !ok {
		return nil, errspkg.UnknownSample(index)
	}
	return slot, nil
}

// Data returns the receive buffer of index. The value is the pointer
// returned by the descriptor's Alloc and is stable across reads.
func (r *Registry) Data(index int) (any, error) {
	slot, err := r.slot(index)
	if err != nil {
		return nil, err
	}
	return slot.buf, nil
}

// Valid reports whether the last read or take into index delivered data.
func (r *Registry) Valid(index int) (bool, error) {
	slot, err := r.slot(index)
	if err != nil {
		return false, err
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.info.ValidData, nil
}

// Info returns a copy of the sample info of the last read or take into
// index.
func (r *Registry) Info(index int) (dds.SampleInfo, error) {
	slot, err := r.slot(index)
	if err != nil {
		return dds.SampleInfo{}, err
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.info, nil
}
