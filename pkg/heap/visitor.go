package heap

// Address is a position in the managed address space. An object is identified
// by the address of its first word; 0 is the null reference.
type Address uint64

// NullAddress is the cleared reference value.
const NullAddress Address = 0

// RefVisitor is applied to every discovered reference slot during a root or
// object walk. The slot pointer stays valid only for the duration of the
// call; implementations that need the value later must copy it out.
type RefVisitor interface {
	VisitRef(slot *Address)
}

// RefVisitorFunc adapts a plain function to a RefVisitor.
type RefVisitorFunc func(slot *Address)

func (f RefVisitorFunc) VisitRef(slot *Address) { f(slot) }
