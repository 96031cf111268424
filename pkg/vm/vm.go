// Package vm assembles the managed runtime: the heap, every root-bearing
// subsystem, and the glue the collector's phase driver needs to run root
// verification passes against them.
package vm

import (
	"flag"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/flagext"
	"github.com/grafana/dskit/multierror"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/grafana/cinder/pkg/classloader"
	"github.com/grafana/cinder/pkg/codecache"
	"github.com/grafana/cinder/pkg/gcroots"
	"github.com/grafana/cinder/pkg/heap"
	"github.com/grafana/cinder/pkg/jni"
	"github.com/grafana/cinder/pkg/refstore"
	"github.com/grafana/cinder/pkg/stringdedup"
	"github.com/grafana/cinder/pkg/threads"
	"github.com/grafana/cinder/pkg/weakproc"
)

type Config struct {
	Heap    heap.Config        `yaml:"heap"`
	Dedup   stringdedup.Config `yaml:"string_dedup"`
	Threads threads.Config     `yaml:"threads"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.Heap.RegisterFlags(f)
	cfg.Dedup.RegisterFlags(f)
	cfg.Threads.RegisterFlags(f)
}

func (cfg *Config) Validate() error {
	errs := multierror.New()
	errs.Add(cfg.Heap.Validate())
	return errs.Err()
}

// LoadConfig reads a YAML configuration file on top of the flag defaults.
// Fields absent from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	flagext.DefaultValues(&cfg)
	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config file %s", path)
	}
	return cfg, errors.Wrap(cfg.Validate(), "invalid config")
}

// Runtime owns one heap and the full set of root sources around it.
type Runtime struct {
	logger log.Logger
	reg    prometheus.Registerer

	heap      *heap.Heap
	stores    *refstore.Set
	vmGlobal  *refstore.Store
	handles   *jni.Handles
	cache     *codecache.Cache
	loaders   *classloader.Graph
	finalizer *weakproc.FinalizerQueue
	tags      *weakproc.TagMap
	weak      *weakproc.Processor
	dedup     *stringdedup.Table
	threads   *threads.Registry
}

func New(cfg Config, reg prometheus.Registerer, logger log.Logger) (*Runtime, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid runtime config")
	}

	h, err := heap.New(cfg.Heap, reg, log.With(logger, "component", "heap"))
	if err != nil {
		return nil, errors.Wrap(err, "initializing heap")
	}

	stores := refstore.NewSet()
	fin := weakproc.NewFinalizerQueue()
	tags := weakproc.NewTagMap()
	rt := &Runtime{
		logger:    logger,
		reg:       reg,
		heap:      h,
		stores:    stores,
		vmGlobal:  stores.CreateStrong("vm-global"),
		handles:   jni.NewHandles(stores),
		cache:     codecache.NewCache(),
		loaders:   classloader.NewGraph(),
		finalizer: fin,
		tags:      tags,
		weak:      weakproc.NewProcessor(stores, []weakproc.Phase{fin, tags}, log.With(logger, "component", "weakproc")),
		dedup:     stringdedup.NewTable(cfg.Dedup, reg, log.With(logger, "component", "stringdedup")),
		threads:   threads.NewRegistry(cfg.Threads, log.With(logger, "component", "threads")),
	}
	level.Info(logger).Log(
		"msg", "runtime assembled",
		"regions", h.NumRegions(),
		"string_dedup", cfg.Dedup.Enabled,
		"root_scan_workers", cfg.Threads.ScanWorkers.Value(),
	)
	return rt, nil
}

func (rt *Runtime) Heap() *heap.Heap { return rt.heap }

func (rt *Runtime) Stores() *refstore.Set { return rt.stores }

func (rt *Runtime) VMGlobal() *refstore.Store { return rt.vmGlobal }

func (rt *Runtime) Handles() *jni.Handles { return rt.handles }

func (rt *Runtime) CodeCache() *codecache.Cache { return rt.cache }

func (rt *Runtime) Loaders() *classloader.Graph { return rt.loaders }

func (rt *Runtime) FinalizerQueue() *weakproc.FinalizerQueue { return rt.finalizer }

func (rt *Runtime) TagMap() *weakproc.TagMap { return rt.tags }

func (rt *Runtime) WeakProcessor() *weakproc.Processor { return rt.weak }

func (rt *Runtime) Dedup() *stringdedup.Table { return rt.dedup }

func (rt *Runtime) Threads() *threads.Registry { return rt.threads }

// Deduplicate canonicalizes the object at addr through the dedup table,
// keyed on the object's own payload bytes. Addresses without an allocated
// object pass through unchanged.
func (rt *Runtime) Deduplicate(addr heap.Address) heap.Address {
	o, ok := rt.heap.ObjectAt(addr)
	if !ok {
		return addr
	}
	return rt.dedup.Deduplicate(addr, o.Bytes())
}

// RootSources bundles the runtime's collaborators for the verifier.
func (rt *Runtime) RootSources() gcroots.RootSources {
	return gcroots.RootSources{
		CodeCache:    rt.cache,
		Loaders:      rt.loaders,
		Handles:      rt.handles,
		VMGlobal:     rt.vmGlobal,
		Weak:         rt.weak,
		WeakStorages: rt.stores,
		Dedup:        rt.dedup,
		Threads:      rt.threads,
	}
}

// NewRootVerifier builds a verifier for a single pass over the given scope.
func (rt *Runtime) NewRootVerifier(types gcroots.Types) *gcroots.Verifier {
	return gcroots.NewVerifier(rt.heap, rt.RootSources(), types, rt.reg, log.With(rt.logger, "component", "gcroots"))
}
