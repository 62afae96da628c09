package dds

// Descriptor describes a message type: how to allocate and free a receive
// buffer for it and how to move samples on and off the wire. Descriptors are
// supplied by the application; the registry treats them as opaque.
type Descriptor interface {
	// TypeName identifies the type on the wire. Topics sharing a name must
	// agree on it.
	TypeName() string
	// Alloc returns a pointer-like buffer able to hold one sample. size is the
	// caller's hint in bytes; descriptors with a static layout may ignore it.
	Alloc(size int) any
	// Free releases nested resources of a buffer obtained from Alloc.
	Free(buf any)
	// Encode serialises a sample supplied to Write.
	Encode(sample any) ([]byte, error)
	// Decode deserialises data into buf in place, keeping buf's address.
	Decode(data []byte, buf any) error
}
