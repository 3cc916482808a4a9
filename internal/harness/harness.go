package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/roach88/pagechain/internal/config"
	"github.com/roach88/pagechain/internal/diff"
	"github.com/roach88/pagechain/internal/engine"
	"github.com/roach88/pagechain/internal/journal"
	"github.com/roach88/pagechain/internal/paging"
	"github.com/roach88/pagechain/internal/testutil"
)

// maxDrainLoads stops a drain step against a source that never ends.
const maxDrainLoads = 10000

type source = paging.Source[int, int]

// Option configures a run.
type Option func(*runOptions)

type runOptions struct {
	logger   *slog.Logger
	config   *config.File
	journal  *journal.Journal
	sessions journal.SessionGenerator
	metrics  *engine.Metrics
	timeout  time.Duration
}

// WithLogger sets the engine logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *runOptions) { o.logger = l }
}

// WithConfig replaces the scenario's config section.
func WithConfig(f *config.File) Option {
	return func(o *runOptions) { o.config = f }
}

// WithJournal records every batch into a new session of j. gen may be nil
// for UUIDv7 session ids.
func WithJournal(j *journal.Journal, gen journal.SessionGenerator) Option {
	return func(o *runOptions) {
		o.journal = j
		o.sessions = gen
	}
}

// WithMetrics attaches engine metrics.
func WithMetrics(m *engine.Metrics) Option {
	return func(o *runOptions) { o.metrics = m }
}

// WithTimeout bounds how long a push step waits for its update. Default 5s.
func WithTimeout(d time.Duration) Option {
	return func(o *runOptions) { o.timeout = d }
}

type runner struct {
	engine  *engine.Engine[int, int]
	sources map[string]*testutil.ListSource[int]
	col     *testutil.Collector[int]
	timeout time.Duration

	mu     sync.Mutex
	result *Result
}

// Run executes a scenario against a fresh engine and returns the result.
// A returned error means the scenario could not run; failed expectations
// are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := runOptions{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	cfg := o.config
	if cfg == nil {
		values := scenario.Config
		if values == nil {
			values = map[string]any{}
		}
		var err error
		if cfg, err = config.FromValue(values); err != nil {
			return nil, fmt.Errorf("scenario config: %w", err)
		}
	}

	sources := buildSources(scenario.Sources)
	chainIDs := scenario.Chain
	if len(chainIDs) == 0 {
		for _, spec := range scenario.Sources {
			chainIDs = append(chainIDs, spec.ID)
		}
	}

	eng, err := engine.New(resolve(sources, chainIDs), cfg.Engine(),
		engine.WithLogger(o.logger),
		engine.WithMetrics(o.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	r := &runner{
		engine:  eng,
		sources: sources,
		col:     testutil.NewCollector[int](),
		timeout: o.timeout,
		result:  NewResult(),
	}
	eng.Subscribe(r.col.Handle)
	eng.Subscribe(r.trace)

	ctx := context.Background()
	var rec *journal.Recorder[int]
	if o.journal != nil {
		recOpts := []journal.RecorderOption{journal.WithRecorderLogger(o.logger)}
		if o.sessions != nil {
			recOpts = append(recOpts, journal.WithSessionGenerator(o.sessions))
		}
		rec, err = journal.NewRecorder[int](ctx, o.journal, scenario.Name, recOpts...)
		if err != nil {
			eng.Close()
			return nil, fmt.Errorf("start recorder: %w", err)
		}
		eng.Subscribe(rec.Handle)
		r.result.Session = rec.Session()
	}

	runErr := r.run(ctx, scenario)
	closeErr := eng.Close()
	if rec != nil {
		if err := rec.Close(); err != nil && runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		return nil, runErr
	}
	if closeErr != nil {
		return nil, closeErr
	}
	return r.result, nil
}

func buildSources(specs []SourceSpec) map[string]*testutil.ListSource[int] {
	out := make(map[string]*testutil.ListSource[int], len(specs))
	for _, spec := range specs {
		src := testutil.NewListSource(spec.ID, spec.Pages...)
		for _, page := range spec.FailOn {
			src.FailOn(page, fmt.Errorf("%s: page %d unavailable", spec.ID, page))
		}
		for _, page := range spec.Live {
			src.Live(page)
		}
		out[spec.ID] = src
	}
	return out
}

func resolve(sources map[string]*testutil.ListSource[int], ids []string) []source {
	out := make([]source, len(ids))
	for i, id := range ids {
		out[i] = sources[id]
	}
	return out
}

func (r *runner) run(ctx context.Context, scenario *Scenario) error {
	r.line("scenario: %s", scenario.Name)
	for i, step := range scenario.Steps {
		r.line("step %d: %s", i+1, describeStep(step))
		out, err := r.step(ctx, step)
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
		}
		out.Step = i + 1
		out.Action = step.Action
		r.line("  result: %s", describeOutcome(out))

		r.mu.Lock()
		r.result.Outcomes = append(r.result.Outcomes, out)
		r.mu.Unlock()
		r.check(i+1, step, out)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Items = r.col.Items()
	if r.result.Items == nil {
		r.result.Items = []int{}
	}
	r.result.Placeholders = countPlaceholders(r.col.Slots())
	if scenario.ExpectItems != nil && !slices.Equal(r.result.Items, scenario.ExpectItems) {
		r.result.AddError(fmt.Sprintf("final items = %v, want %v", r.result.Items, scenario.ExpectItems))
	}
	if err := r.col.Err(); err != nil {
		r.result.AddError(fmt.Sprintf("inconsistent event stream: %v", err))
	}
	return nil
}

// step runs one step. Errors returned by edits are part of the outcome;
// only failures of the harness itself are returned.
func (r *runner) step(ctx context.Context, step Step) (StepOutcome, error) {
	var out StepOutcome
	switch step.Action {
	case ActionLoad:
		dir, _ := paging.ParseDirection(step.Direction)
		res, err := r.engine.Load(ctx, dir, nil)
		if err != nil {
			return out, err
		}
		setLoad(&out, res)
		out.Loads = 1

	case ActionDrain:
		dir, _ := paging.ParseDirection(step.Direction)
		for out.Loads < maxDrainLoads {
			res, err := r.engine.Load(ctx, dir, nil)
			if err != nil {
				return out, err
			}
			out.Loads++
			setLoad(&out, res)
			if res.Kind != paging.OutcomeSuccess {
				break
			}
		}

	case ActionInvalidate:
		behavior, _ := paging.ParseInvalidateBehavior(step.Behavior)
		out.Error = errString(r.engine.Invalidate(ctx, behavior, step.DropCache))

	case ActionSetSources:
		fn, _ := diffFunc(step.Diff)
		out.Error = errString(r.engine.SetSources(ctx, resolve(r.sources, step.Sources), fn))

	case ActionAddSource:
		out.Error = errString(r.engine.AddSource(ctx, r.sources[step.Source], step.Index))

	case ActionRemoveSource:
		out.Error = errString(r.engine.RemoveSource(ctx, r.sources[step.Source]))

	case ActionMoveSource:
		out.Error = errString(r.engine.MoveSource(ctx, r.sources[step.Source], step.Index))

	case ActionPush:
		before := len(r.col.Batches())
		if err := r.sources[step.Source].Push(step.Page, step.Items...); err != nil {
			out.Error = err.Error()
			break
		}
		waitCtx, cancel := context.WithTimeout(ctx, r.timeout)
		delivered := r.col.WaitFor(waitCtx, func(_ []int, batches []paging.Batch[int]) bool {
			return len(batches) > before
		})
		cancel()
		if !delivered {
			out.Error = "live update not delivered"
		}
	}
	return out, nil
}

func setLoad(out *StepOutcome, res paging.Outcome[int]) {
	out.Outcome = res.Kind.String()
	out.HasNext = res.HasNext
	out.Error = errString(res.Err)
}

// check compares the state after a step with its expectations.
func (r *runner) check(n int, step Step, out StepOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp := step.Expect
	if exp == nil {
		if out.Error != "" && !isLoad(step.Action) {
			r.result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %s", n, step.Action, out.Error))
		}
		return
	}

	fail := func(format string, args ...any) {
		r.result.AddError(fmt.Sprintf("step %d (%s): ", n, step.Action) + fmt.Sprintf(format, args...))
	}

	if exp.Outcome != "" && exp.Outcome != out.Outcome {
		fail("outcome = %s, want %s", out.Outcome, exp.Outcome)
	}
	if exp.HasNext != nil && *exp.HasNext != out.HasNext {
		fail("has_next = %t, want %t", out.HasNext, *exp.HasNext)
	}
	if exp.Items != nil {
		if items := r.col.Items(); !slices.Equal(items, exp.Items) {
			fail("items = %v, want %v", items, exp.Items)
		}
	}
	if exp.Placeholders != nil {
		if got := countPlaceholders(r.col.Slots()); got != *exp.Placeholders {
			fail("placeholders = %d, want %d", got, *exp.Placeholders)
		}
	}
	switch {
	case exp.Error != "" && !strings.Contains(out.Error, exp.Error):
		fail("error = %q, want it to contain %q", out.Error, exp.Error)
	case exp.Error == "" && out.Error != "" && !isLoad(step.Action):
		fail("unexpected error: %s", out.Error)
	}
}

// trace is an engine subscriber rendering batches into the trace.
func (r *runner) trace(b paging.Batch[int]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Trace = append(r.result.Trace, fmt.Sprintf("  batch %d", b.Seq))
	for _, ev := range b.Events {
		r.result.Trace = append(r.result.Trace, "    "+paging.Describe[int](ev))
	}
}

func (r *runner) line(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Trace = append(r.result.Trace, fmt.Sprintf(format, args...))
}

func diffFunc(name string) (diff.Func[source], error) {
	switch name {
	case "", "sequential":
		return diff.Sequential[source], nil
	case "lcs":
		return diff.LCS[source], nil
	default:
		return nil, fmt.Errorf("unknown diff %q (want sequential|lcs)", name)
	}
}
