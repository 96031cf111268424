package gcroots

// Misuse of the verifier is a programming error in the collector's phase
// driver. Every precondition failure panics at the violation point instead
// of producing an incomplete root set.

func (v *Verifier) requireSafepoint() {
	if !v.collector.AtSafepoint() {
		panic("gcroots: requires a stop-the-world pause")
	}
}

func (v *Verifier) requireLockedOrSafepoint(what string, held func() bool) {
	if held() || v.collector.AtSafepoint() {
		return
	}
	panic("gcroots: requires the " + what + " lock or a stop-the-world pause")
}
