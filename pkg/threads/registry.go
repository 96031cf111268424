package threads

import (
	"flag"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/grafana/cinder/pkg/codecache"
	"github.com/grafana/cinder/pkg/heap"
	"github.com/grafana/cinder/pkg/util"
)

type Config struct {
	ScanWorkers util.ConcurrencyLimit `yaml:"scan_workers"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.ScanWorkers = *util.GoMaxProcsConcurrencyLimit()
	f.Var(&cfg.ScanWorkers, "threads.root-scan-workers", "Workers claiming threads during a parallel root scan. 0 uses all cores.")
}

// Registry holds every attached thread and owns the claim token. Advancing
// the token opens a fresh scan epoch: claims from earlier epochs no longer
// shield a thread from being visited.
type Registry struct {
	logger log.Logger
	cfg    Config

	mu      sync.Mutex
	threads []*VMThread

	claimToken atomic.Uint64
}

func NewRegistry(cfg Config, logger log.Logger) *Registry {
	r := &Registry{logger: logger, cfg: cfg}
	r.claimToken.Store(1)
	return r
}

func (r *Registry) Attach(name string) *VMThread {
	t := newThread(name)
	r.mu.Lock()
	r.threads = append(r.threads, t)
	r.mu.Unlock()
	level.Debug(r.logger).Log("msg", "thread attached", "thread", name)
	return t
}

func (r *Registry) Detach(t *VMThread) {
	r.mu.Lock()
	for i, cur := range r.threads {
		if cur == t {
			r.threads = append(r.threads[:i], r.threads[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	level.Debug(r.logger).Log("msg", "thread detached", "thread", t.Name())
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.threads)
}

// ForEach walks attached threads in attach order until fn returns false.
func (r *Registry) ForEach(fn func(t *VMThread) bool) {
	for _, t := range r.snapshot() {
		if !fn(t) {
			return
		}
	}
}

func (r *Registry) snapshot() []*VMThread {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*VMThread(nil), r.threads...)
}

// AdvanceClaimToken opens the next scan epoch and returns its token.
func (r *Registry) AdvanceClaimToken() uint64 {
	return r.claimToken.Inc()
}

func (r *Registry) ClaimToken() uint64 {
	return r.claimToken.Load()
}

// VisitThreadRoots scans every thread at most once in the current epoch.
// The serial form walks the list in order, claiming unconditionally. The
// parallel form races the configured number of workers over the full list;
// the claim CAS decides which worker scans which thread, so work division
// needs no static partition.
func (r *Registry) VisitThreadRoots(parallel bool, v heap.RefVisitor, bv codecache.BlobVisitor) {
	token := r.claimToken.Load()
	threads := r.snapshot()

	scan := func() {
		for _, t := range threads {
			if t.claim(token, parallel) {
				t.VisitRoots(v, bv)
			}
		}
	}

	if !parallel {
		scan()
		return
	}
	workers := r.cfg.ScanWorkers.Value()
	if workers == 1 {
		scan()
		return
	}
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			scan()
			return nil
		})
	}
	_ = g.Wait()
}
