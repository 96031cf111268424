// Package gcroots verifies the collector's root set. A verifier walks a
// configurable subset of root categories in a fixed order and hands every
// discovered reference to a caller-supplied visitor, leaving collector
// state exactly as it found it. Categories carry different synchronization
// preconditions: most require a stop-the-world pause, the code cache and
// the class-loader graph accept their exclusivity lock instead, and the
// concurrent weak category runs with mutators live.
package gcroots

import (
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/cinder/pkg/classloader"
	"github.com/grafana/cinder/pkg/codecache"
	"github.com/grafana/cinder/pkg/heap"
	"github.com/grafana/cinder/pkg/weakproc"
)

// Verifier walks root categories and applies a verification visitor to each
// discovered reference. A verifier is built for a single pass; construction
// opens a fresh thread-claim epoch, so a new pass never inherits claim
// marks from an earlier one.
type Verifier struct {
	logger    log.Logger
	collector Collector
	sources   RootSources
	metrics   *metrics
	types     Types
}

func NewVerifier(collector Collector, sources RootSources, types Types, reg prometheus.Registerer, logger log.Logger) *Verifier {
	if collector == nil {
		panic("gcroots: collector is nil")
	}
	sources.validate()
	if logger == nil {
		logger = log.NewNopLogger()
	}
	v := &Verifier{
		logger:    logger,
		collector: collector,
		sources:   sources,
		metrics:   newMetrics(reg),
		types:     types,
	}
	epoch := sources.Threads.AdvanceClaimToken()
	level.Debug(logger).Log("msg", "root verifier constructed", "scope", types.String(), "claim_epoch", epoch)
	return v
}

// Excludes narrows the scope by clearing every bit of types. Excluding a
// category that is already absent is a no-op.
func (v *Verifier) Excludes(types Types) {
	v.types &^= types
}

// InScope reports whether every category of types is part of the current
// scope.
func (v *Verifier) InScope(types Types) bool {
	return v.types.Contains(types)
}

// VerifySelected walks only the categories currently in scope, asserting
// each category's own precondition. The three weak strategies are mutually
// exclusive: the full walk wins over serial-only, which wins over
// concurrent-only.
func (v *Verifier) VerifySelected(rv heap.RefVisitor) {
	resetter := NewGCStateResetter(v.collector)
	defer resetter.Restore()
	done := v.beginPass("selected")
	defer done()

	if v.InScope(CodeCacheRoots) {
		v.requireLockedOrSafepoint("code cache", v.sources.CodeCache.LockHeld)
		code := v.counted("code-cache", rv)
		v.sources.CodeCache.VisitBlobs(codecache.NewBlobRefVisitor(code, false))
	}

	if v.InScope(ClassLoaderDataRoots) {
		v.requireLockedOrSafepoint("class loader graph", v.sources.Loaders.LockHeld)
		v.sources.Loaders.VisitAll(classloader.ClaimNone, v.counted("class-loader", rv))
	}

	if v.InScope(SerialRoots) {
		// No dedicated serial entries remain; the category still carries
		// its pause requirement.
		v.requireSafepoint()
	}

	if v.InScope(JNIHandleRoots) {
		v.requireSafepoint()
		jh := v.counted("jni", rv)
		v.sources.Handles.VisitRefs(jh)
		v.sources.VMGlobal.VisitRefs(jh)
	}

	if v.InScope(WeakRoots) {
		v.requireSafepoint()
		v.sources.Weak.VisitAll(weakproc.AlwaysLive, v.counted("weak", rv))
	} else if v.InScope(SerialWeakRoots) {
		v.requireSafepoint()
		v.serialWeakRootsDo(rv)
	} else if v.InScope(ConcurrentWeakRoots) {
		v.concurrentWeakRootsDo(rv)
	}

	if v.sources.Dedup.Enabled() && v.InScope(StringDedupRoots) {
		v.requireSafepoint()
		v.sources.Dedup.VisitRefs(v.counted("string-dedup", rv))
	}

	if v.InScope(ThreadRoots) {
		v.requireSafepoint()
		// Thread roots go last: damage reachable from the dedicated root
		// sets should surface before the same object is reached through a
		// transient stack slot.
		tv := v.counted("threads", rv)
		v.sources.Threads.VisitThreadRoots(false, tv, codecache.NewBlobRefVisitor(tv, false))
	}
}

// VerifyAll walks every category unconditionally under a single pause
// precondition, with the full stop-the-world weak walk and a parallel
// thread scan.
func (v *Verifier) VerifyAll(rv heap.RefVisitor) {
	resetter := NewGCStateResetter(v.collector)
	defer resetter.Restore()
	done := v.beginPass("all")
	defer done()
	v.requireSafepoint()

	code := v.counted("code-cache", rv)
	v.sources.CodeCache.VisitBlobs(codecache.NewBlobRefVisitor(code, false))

	v.sources.Loaders.VisitAll(classloader.ClaimNone, v.counted("class-loader", rv))

	jh := v.counted("jni", rv)
	v.sources.Handles.VisitRefs(jh)
	v.sources.VMGlobal.VisitRefs(jh)

	v.sources.Weak.VisitAll(weakproc.AlwaysLive, v.counted("weak", rv))

	if v.sources.Dedup.Enabled() {
		v.sources.Dedup.VisitRefs(v.counted("string-dedup", rv))
	}

	// Thread roots go last, as in the selective walk.
	tv := v.counted("threads", rv)
	v.sources.Threads.VisitThreadRoots(true, tv, codecache.NewBlobRefVisitor(tv, false))
}

// VerifyStrong walks only the strong categories: loader roots restricted to
// GC-root-registered loaders, handle areas, and thread roots. Weak state is
// deliberately invisible here. There is no direct code-cache walk; compiled
// code is only reached through the blob visitor handed to the thread scan.
func (v *Verifier) VerifyStrong(rv heap.RefVisitor) {
	resetter := NewGCStateResetter(v.collector)
	defer resetter.Restore()
	done := v.beginPass("strong")
	defer done()
	v.requireSafepoint()

	v.sources.Loaders.VisitRoots(classloader.ClaimNone, v.counted("class-loader", rv))

	jh := v.counted("jni", rv)
	v.sources.Handles.VisitRefs(jh)
	v.sources.VMGlobal.VisitRefs(jh)

	// Thread roots go last, as in the selective walk.
	tv := v.counted("threads", rv)
	v.sources.Threads.VisitThreadRoots(true, tv, codecache.NewBlobRefVisitor(tv, false))
}

// serialWeakRootsDo walks the fixed serial phase list, treating every entry
// as live.
func (v *Verifier) serialWeakRootsDo(rv heap.RefVisitor) {
	cl := v.counted("serial-weak", rv)
	for _, ph := range v.sources.Weak.Phases() {
		ph.VisitWeakRefs(weakproc.AlwaysLive, cl)
	}
}

// concurrentWeakRootsDo walks every registered weak storage directly. No
// pause is required; the storages tolerate concurrent mutation.
func (v *Verifier) concurrentWeakRootsDo(rv heap.RefVisitor) {
	cl := v.counted("concurrent-weak", rv)
	it := v.sources.WeakStorages.Weak()
	for it.Next() {
		it.At().VisitRefs(cl)
	}
	_ = it.Close()
}

func (v *Verifier) counted(category string, rv heap.RefVisitor) heap.RefVisitor {
	c := v.metrics.refsVisited.WithLabelValues(category)
	return heap.RefVisitorFunc(func(slot *heap.Address) {
		c.Inc()
		rv.VisitRef(slot)
	})
}

func (v *Verifier) beginPass(mode string) func() {
	v.metrics.passes.WithLabelValues(mode).Inc()
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		v.metrics.passDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
		level.Debug(v.logger).Log("msg", "root verification pass done", "mode", mode, "scope", v.types.String(), "duration", elapsed)
	}
}
