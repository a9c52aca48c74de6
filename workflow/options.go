package workflow

import (
	"time"

	"github.com/graphrun/agentengine/model"
	"github.com/graphrun/agentengine/tool"
)

// Default caps and limits (§6).
const (
	DefaultMaxIterations     = 1000
	DefaultMaxNodeExecutions = 100
	DefaultMaxToolIterations = 10
)

// Options configures a single Execute call (§6). Functional Option values
// layer on top of an Options struct, mirroring the teacher's
// graph/options.go pattern.
type Options struct {
	MaxIterations     int
	MaxNodeExecutions int
	MaxToolIterations int
	DefaultModel      string
	Preflight         *bool

	Models           map[string]model.ChatModel
	Memory           MemoryAdapter
	Tools            map[string]RegisteredTool
	CustomEvaluators map[string]LoopEvaluator
	Compaction       CompactionConfig
	SubflowRegistry  SubflowRegistry

	Metrics     *PrometheusMetrics
	CostTracker *CostTracker
	Store       Store

	// sessionID, when non-empty, seeds ExecContext.SessionID instead of a
	// freshly generated id. Set via the unexported withSessionID option used
	// by the subflow executor's shareSession support (§4.10); not part of
	// the public Option surface since ordinary callers never need it.
	sessionID string
}

// withSessionID overrides the run's session id, used internally to
// implement subflow shareSession.
func withSessionID(id string) Option {
	return func(o *Options) { o.sessionID = id }
}

// ResolvedOptions is Options after default-filling, threaded through the
// execution context so executors never re-derive a zero-value default.
type ResolvedOptions struct {
	MaxIterations     int
	MaxNodeExecutions int
	MaxToolIterations int
	DefaultModel      string
	Preflight         bool

	Metrics     *PrometheusMetrics
	CostTracker *CostTracker
	Store       Store
}

// Option is a functional option for Execute, applied over an Options value.
type Option func(*Options)

// WithMaxIterations overrides the global step cap (default 1000).
func WithMaxIterations(n int) Option {
	return func(o *Options) { o.MaxIterations = n }
}

// WithMaxNodeExecutions overrides the per-node execution cap (default 100).
func WithMaxNodeExecutions(n int) Option {
	return func(o *Options) { o.MaxNodeExecutions = n }
}

// WithMaxToolIterations overrides the default tool-loop cap (default 10),
// itself overridable per-node via AgentData.MaxToolIterations.
func WithMaxToolIterations(n int) Option {
	return func(o *Options) { o.MaxToolIterations = n }
}

// WithDefaultModel sets the model name used when a node names none.
func WithDefaultModel(name string) Option {
	return func(o *Options) { o.DefaultModel = name }
}

// WithPreflight toggles preflight validation (default true).
func WithPreflight(enabled bool) Option {
	return func(o *Options) { o.Preflight = &enabled }
}

// WithModels registers the named ChatModel providers a run may call.
func WithModels(models map[string]model.ChatModel) Option {
	return func(o *Options) { o.Models = models }
}

// WithMemory installs the MemoryAdapter backing memory nodes.
func WithMemory(m MemoryAdapter) Option {
	return func(o *Options) { o.Memory = m }
}

// WithTools registers host tool handlers addressable by tool nodes and by
// the reasoning executor's tool loop.
func WithTools(tools map[string]RegisteredTool) Option {
	return func(o *Options) { o.Tools = tools }
}

// WithToolHandler is a convenience for registering a single tool by id with
// no declared schema.
func WithToolHandler(id string, handler tool.Tool) Option {
	return func(o *Options) {
		if o.Tools == nil {
			o.Tools = make(map[string]RegisteredTool)
		}
		o.Tools[id] = RegisteredTool{Handler: handler}
	}
}

// WithCustomEvaluators registers named whileLoop evaluators.
func WithCustomEvaluators(evals map[string]LoopEvaluator) Option {
	return func(o *Options) { o.CustomEvaluators = evals }
}

// WithCompaction overrides the default history compaction configuration.
func WithCompaction(cfg CompactionConfig) Option {
	return func(o *Options) { o.Compaction = cfg }
}

// WithSubflowRegistry installs the registry subflow nodes resolve against.
func WithSubflowRegistry(reg SubflowRegistry) Option {
	return func(o *Options) { o.SubflowRegistry = reg }
}

// WithMetrics enables Prometheus metrics collection for this run.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithCostTracker enables LLM cost tracking for this run.
func WithCostTracker(t *CostTracker) Option {
	return func(o *Options) { o.CostTracker = t }
}

// WithStore enables per-step run persistence.
func WithStore(s Store) Option {
	return func(o *Options) { o.Store = s }
}

func resolve(opts Options) ResolvedOptions {
	r := ResolvedOptions{
		MaxIterations:     opts.MaxIterations,
		MaxNodeExecutions: opts.MaxNodeExecutions,
		MaxToolIterations: opts.MaxToolIterations,
		DefaultModel:      opts.DefaultModel,
		Preflight:         true,
		Metrics:           opts.Metrics,
		CostTracker:       opts.CostTracker,
		Store:             opts.Store,
	}
	if r.MaxIterations <= 0 {
		r.MaxIterations = DefaultMaxIterations
	}
	if r.MaxNodeExecutions <= 0 {
		r.MaxNodeExecutions = DefaultMaxNodeExecutions
	}
	if r.MaxToolIterations <= 0 {
		r.MaxToolIterations = DefaultMaxToolIterations
	}
	if opts.Preflight != nil {
		r.Preflight = *opts.Preflight
	}
	return r
}

// defaultNodeTimeout bounds a single provider call when a node specifies
// none of its own; unlike the teacher's DefaultNodeTimeout this is not
// separately configurable in the minimal spec, so it is a package constant.
const defaultNodeTimeout = 2 * time.Minute
