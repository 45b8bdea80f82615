package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/sync/singleflight"

	"github.com/MithilSaiReddy/bujji/internal/schema"
)

// Unit is one reloadable source of tool definitions (a manifest file).
type Unit struct {
	ID      string
	ModTime time.Time
}

// Source discovers units and loads the definitions they declare.
type Source interface {
	Scan() ([]Unit, error)
	Load(u Unit) ([]Definition, error)
}

// Result is the outcome of one Invoke. Output is always model-ready text:
// handler failures are rendered as "[TOOL ERROR] <msg>" with Err set.
type Result struct {
	Output    string
	Err       error
	Truncated bool
	Omitted   int
}

// RefreshReport lists what one Refresh changed. Failed units keep their
// previously loaded definitions.
type RefreshReport struct {
	Loaded  []string
	Failed  map[string]error
	Removed []string
}

// Changed reports whether the active tool set may differ after the refresh.
func (r RefreshReport) Changed() bool {
	return len(r.Loaded) > 0 || len(r.Removed) > 0
}

type entry struct {
	def    Definition
	schema *gojsonschema.Schema
	seq    uint64
}

type unitState struct {
	modTime   time.Time
	failedMod time.Time
	failErr   error
	entries   []*entry
}

type snapshot struct {
	byName map[string]*entry
	names  []string
}

// Registry maps tool names to handlers. Lookups read an immutable snapshot
// that writers replace atomically, so Refresh may run alongside Invoke.
type Registry struct {
	log         zerolog.Logger
	maxOutput   int
	callTimeout time.Duration

	mu      sync.Mutex // serializes writers
	seq     uint64
	static  map[string]*entry
	sources []Source
	units   []map[string]*unitState // parallel to sources

	snap atomic.Pointer[snapshot]
	sf   singleflight.Group
}

type RegistryOption func(*Registry)

// WithMaxOutput sets the per-call output budget in characters.
func WithMaxOutput(n int) RegistryOption { return func(r *Registry) { r.maxOutput = n } }

// WithCallTimeout bounds how long one handler may run.
func WithCallTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.callTimeout = d }
}

// WithSource adds a reloadable source of definitions.
func WithSource(s Source) RegistryOption {
	return func(r *Registry) {
		r.sources = append(r.sources, s)
		r.units = append(r.units, map[string]*unitState{})
	}
}

func NewRegistry(log zerolog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		log:    log,
		static: map[string]*entry{},
	}
	for _, o := range opts {
		o(r)
	}
	r.snap.Store(&snapshot{byName: map[string]*entry{}})
	return r
}

// Register adds a tool registered in code. A later registration or load
// with the same name shadows it.
func (r *Registry) Register(spec schema.ToolSpec, h Handler) error {
	if spec.Name == "" {
		return fmt.Errorf("register: empty tool name")
	}
	if !h.valid() {
		return fmt.Errorf("register %s: nil handler", spec.Name)
	}
	if spec.Source == "" {
		spec.Source = SourceBuiltin
	}
	compiled, err := compileSchema(spec.Parameters)
	if err != nil {
		return fmt.Errorf("register %s: %w", spec.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.static[spec.Name] = &entry{def: Definition{Spec: spec, Handler: h}, schema: compiled, seq: r.seq}
	r.rebuildLocked()
	return nil
}

// RegisterAll registers every definition, stopping at the first error.
func (r *Registry) RegisterAll(defs ...Definition) error {
	for _, d := range defs {
		if err := r.Register(d.Spec, d.Handler); err != nil {
			return err
		}
	}
	return nil
}

// List returns the active tool specs sorted by name.
func (r *Registry) List() []schema.ToolSpec {
	s := r.snap.Load()
	out := make([]schema.ToolSpec, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.byName[n].def.Spec)
	}
	return out
}

// Definitions returns the active tools in OpenAI function-calling format.
func (r *Registry) Definitions() []map[string]any {
	specs := r.List()
	out := make([]map[string]any, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.Definition())
	}
	return out
}

// Has reports whether name is currently registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.snap.Load().byName[name]
	return ok
}

// Invoke runs the named tool. The only error returned is ErrToolNotFound;
// every handler failure, including a panic, comes back inside Result.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any, tc ToolContext) (Result, error) {
	e, ok := r.snap.Load().byName[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", schema.ErrToolNotFound, name)
	}

	if msg := validateArgs(e.schema, args); msg != "" {
		err := fmt.Errorf("%w: invalid arguments: %s", schema.ErrToolExecution, msg)
		return Result{Output: "[TOOL ERROR] invalid arguments: " + msg, Err: err}, nil
	}

	if r.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := r.safeCall(ctx, e, tc, args)
	r.log.Debug().
		Str("tool", name).
		Dur("took", time.Since(start)).
		Bool("failed", err != nil).
		Msg("tool call")

	if err != nil {
		return Result{
			Output: "[TOOL ERROR] " + err.Error(),
			Err:    fmt.Errorf("%w: %s: %w", schema.ErrToolExecution, name, err),
		}, nil
	}

	res := Result{Output: out}
	if r.maxOutput > 0 {
		if cut, omitted := TruncateOutput(out, r.maxOutput); omitted > 0 {
			res.Output, res.Truncated, res.Omitted = cut, true, omitted
			r.log.Debug().Str("tool", name).Int("omitted", omitted).Msg(schema.ErrToolOutputTruncated.Error())
		}
	}
	return res, nil
}

func (r *Registry) safeCall(ctx context.Context, e *entry, tc ToolContext, args map[string]any) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().
				Str("tool", e.def.Spec.Name).
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Msg("tool handler panicked")
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return e.def.Handler.call(ctx, tc, args)
}

// Refresh rescans every source and reloads units whose modification time
// changed. Concurrent callers share one scan.
func (r *Registry) Refresh(ctx context.Context) (RefreshReport, error) {
	if len(r.sources) == 0 {
		return RefreshReport{}, nil
	}
	v, err, _ := r.sf.Do("refresh", func() (any, error) {
		return r.refresh(ctx)
	})
	if err != nil {
		return RefreshReport{}, err
	}
	return v.(RefreshReport), nil
}

func (r *Registry) refresh(ctx context.Context) (RefreshReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := RefreshReport{Failed: map[string]error{}}
	for i, src := range r.sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		units, err := src.Scan()
		if err != nil {
			return report, fmt.Errorf("scan tool sources: %w", err)
		}

		seen := make(map[string]bool, len(units))
		states := r.units[i]
		for _, u := range units {
			seen[u.ID] = true
			st := states[u.ID]
			if st != nil && st.modTime.Equal(u.ModTime) {
				continue
			}
			if st != nil && st.failErr != nil && st.failedMod.Equal(u.ModTime) {
				report.Failed[u.ID] = st.failErr
				continue
			}

			entries, err := r.loadUnit(src, u)
			if err != nil {
				if st == nil {
					st = &unitState{}
					states[u.ID] = st
				}
				st.failedMod, st.failErr = u.ModTime, err
				report.Failed[u.ID] = err
				r.log.Warn().Err(err).Str("unit", u.ID).Int("kept", len(st.entries)).Msg("tool unit failed to load")
				continue
			}
			states[u.ID] = &unitState{modTime: u.ModTime, entries: entries}
			report.Loaded = append(report.Loaded, u.ID)
			r.log.Info().Str("unit", u.ID).Int("tools", len(entries)).Msg("tool unit loaded")
		}

		for id := range states {
			if !seen[id] {
				delete(states, id)
				report.Removed = append(report.Removed, id)
				r.log.Info().Str("unit", id).Msg("tool unit removed")
			}
		}
	}
	sort.Strings(report.Loaded)
	sort.Strings(report.Removed)

	if report.Changed() {
		r.rebuildLocked()
	}
	return report, nil
}

func (r *Registry) loadUnit(src Source, u Unit) ([]*entry, error) {
	defs, err := src.Load(u)
	if err != nil {
		return nil, err
	}
	entries := make([]*entry, 0, len(defs))
	for _, d := range defs {
		if d.Spec.Name == "" || !d.Handler.valid() {
			return nil, fmt.Errorf("tool without name or handler")
		}
		compiled, err := compileSchema(d.Spec.Parameters)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.Spec.Name, err)
		}
		if d.Spec.Source == "" {
			d.Spec.Source = u.ID
		}
		r.seq++
		entries = append(entries, &entry{def: d, schema: compiled, seq: r.seq})
	}
	return entries, nil
}

// rebuildLocked publishes a new snapshot. Entries are applied in load
// order so the most recent load of a name wins.
func (r *Registry) rebuildLocked() {
	var all []*entry
	for _, e := range r.static {
		all = append(all, e)
	}
	for _, states := range r.units {
		for _, st := range states {
			all = append(all, st.entries...)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })

	next := &snapshot{byName: make(map[string]*entry, len(all))}
	for _, e := range all {
		name := e.def.Spec.Name
		if prev, ok := next.byName[name]; ok {
			r.log.Info().
				Str("tool", name).
				Str("shadowed", prev.def.Spec.Source).
				Str("by", e.def.Spec.Source).
				Msg("tool name collision, later load wins")
		}
		next.byName[name] = e
	}
	next.names = make([]string, 0, len(next.byName))
	for n := range next.byName {
		next.names = append(next.names, n)
	}
	sort.Strings(next.names)
	r.snap.Store(next)
}
