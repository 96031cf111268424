package heap

// Object is an allocated cell in the model heap. It carries a fixed number of
// reference slots and an opaque byte payload; the collector interprets
// nothing beyond that.
type Object struct {
	addr Address
	size uint64
	refs []Address
	data []byte
}

func (o *Object) Addr() Address { return o.addr }
func (o *Object) Size() uint64  { return o.size }
func (o *Object) NumRefs() int  { return len(o.refs) }

// RefAt returns the value of the i-th reference slot.
func (o *Object) RefAt(i int) Address { return o.refs[i] }

// SetRef stores a reference into the i-th slot. Callers are responsible for
// the usual mutator-vs-collector synchronization; object slots are not
// scanned concurrently with mutation.
func (o *Object) SetRef(i int, to Address) { o.refs[i] = to }

// Bytes exposes the object's payload for in-place reads and writes.
func (o *Object) Bytes() []byte { return o.data }

// VisitRefs applies v to every reference slot of the object.
func (o *Object) VisitRefs(v RefVisitor) {
	for i := range o.refs {
		v.VisitRef(&o.refs[i])
	}
}
