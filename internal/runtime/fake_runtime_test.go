package runtime

import (
	"sync"

	"github.com/drblury/ddsctx/dds"
)

// fakeRuntime counts creations and records the listeners it was handed so
// tests can fire synthetic events.
type fakeRuntime struct {
	mu sync.Mutex

	next      dds.Entity
	creates   map[string]int
	listeners map[dds.Entity]*dds.Listener
	qos       map[dds.Entity]*dds.QoS
	deleted   []dds.Entity
	kinds     map[dds.Entity]string
	calls     []string
	written   []any
	closed    bool

	createErr map[string]error
	writeErr  error
	readErr   error
	takeErr   error
	deleteErr error
	closeErr  error

	// samples returned by Read/Take; each one is an int32 value
	pending []int32
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		creates:   make(map[string]int),
		listeners: make(map[dds.Entity]*dds.Listener),
		qos:       make(map[dds.Entity]*dds.QoS),
		kinds:     make(map[dds.Entity]string),
		createErr: make(map[string]error),
	}
}

func (f *fakeRuntime) create(kind string, qos *dds.QoS, l *dds.Listener) (dds.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create_"+kind)
	if err := f.createErr[kind]; err != nil {
		return 0, err
	}
	f.next++
	f.creates[kind]++
	f.kinds[f.next] = kind
	f.qos[f.next] = qos
	if l != nil {
		f.listeners[f.next] = l
	}
	return f.next, nil
}

func (f *fakeRuntime) CreateParticipant(dds.DomainID) (dds.Entity, error) {
	return f.create("participant", nil, nil)
}

func (f *fakeRuntime) CreateTopic(_ dds.Entity, _ dds.Descriptor, _ string, qos *dds.QoS, l *dds.Listener) (dds.Entity, error) {
	return f.create("topic", qos, l)
}

func (f *fakeRuntime) CreateReader(_, _ dds.Entity, qos *dds.QoS, l *dds.Listener) (dds.Entity, error) {
	return f.create("reader", qos, l)
}

func (f *fakeRuntime) CreateWriter(_, _ dds.Entity, qos *dds.QoS, l *dds.Listener) (dds.Entity, error) {
	return f.create("writer", qos, l)
}

func (f *fakeRuntime) Write(_ dds.Entity, sample any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "write")
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, sample)
	return nil
}

func (f *fakeRuntime) Read(_ dds.Entity, buf any, info *dds.SampleInfo) (int, error) {
	return f.receive("read", f.readErr, buf, info, false)
}

func (f *fakeRuntime) Take(_ dds.Entity, buf any, info *dds.SampleInfo) (int, error) {
	return f.receive("take", f.takeErr, buf, info, true)
}

func (f *fakeRuntime) receive(op string, err error, buf any, info *dds.SampleInfo, remove bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if err != nil {
		return 0, err
	}
	if len(f.pending) == 0 {
		return 0, nil
	}
	*buf.(*int32) = f.pending[0]
	*info = dds.SampleInfo{ValidData: true, SequenceNumber: uint64(len(f.pending))}
	if remove {
		f.pending = f.pending[1:]
	}
	return 1, nil
}

func (f *fakeRuntime) Delete(e dds.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, e)
	return f.deleteErr
}

func (f *fakeRuntime) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

func (f *fakeRuntime) listener(e dds.Entity) *dds.Listener {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listeners[e]
}

func (f *fakeRuntime) totalCreates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.creates {
		n += c
	}
	return n
}

func (f *fakeRuntime) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRuntime) deletedKinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]string, 0, len(f.deleted))
	for _, e := range f.deleted {
		kinds = append(kinds, f.kinds[e])
	}
	return kinds
}

// countingDescriptor wraps an int32 layout and counts Free calls.
type countingDescriptor struct {
	name  string
	frees *int
}

func (d countingDescriptor) TypeName() string { return d.name }
func (countingDescriptor) Alloc(int) any      { return new(int32) }
func (d countingDescriptor) Free(buf any) {
	*d.frees++
	*buf.(*int32) = 0
}
func (countingDescriptor) Encode(any) ([]byte, error) { return nil, nil }
func (countingDescriptor) Decode([]byte, any) error   { return nil }
