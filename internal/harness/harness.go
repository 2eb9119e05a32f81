package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/shelf/internal/backend"
	"github.com/roach88/shelf/internal/config"
	"github.com/roach88/shelf/internal/ident"
	"github.com/roach88/shelf/internal/record"
	"github.com/roach88/shelf/internal/store"
)

// Run executes a scenario against a fresh store and returns the result.
//
// The store lives in a temp directory that is removed afterwards. A
// returned error means the scenario could not run at all; failed
// expectations are reported through Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "shelf-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	codecName := scenario.Codec
	if codecName == "" {
		codecName = "cbor"
	}
	cfg := config.StoreConfig{
		Path:    filepath.Join(dir, "scenario.db"),
		Backend: scenario.Backend,
		Codec:   codecName,
		Timeout: time.Second,
	}
	deps := backend.Deps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		IDs:    ident.NewSequentialGenerator(scenario.Kind),
	}

	switch scenario.Kind {
	case record.KindImage:
		return run(context.Background(), scenario, &runner[record.Image]{
			open:  func() (store.Store[record.Image], error) { return backend.OpenImages(cfg, deps) },
			build: buildImage,
			equal: record.Image.Equal,
		})
	case record.KindVerse:
		return run(context.Background(), scenario, &runner[record.Verse]{
			open:  func() (store.Store[record.Verse], error) { return backend.OpenVerses(cfg, deps) },
			build: decodeRecord[record.Verse],
			equal: func(a, b record.Verse) bool { return a == b },
		})
	default:
		return nil, fmt.Errorf("unknown kind %q", scenario.Kind)
	}
}

// runner holds the per-kind pieces of a scenario run.
type runner[T store.Record[T]] struct {
	open  func() (store.Store[T], error)
	build func(fields map[string]any) (T, error)
	equal func(a, b T) bool

	st       store.Store[T]
	labels   map[string]string
	inserted map[string]T
}

func run[T store.Record[T]](ctx context.Context, scenario *Scenario, r *runner[T]) (*Result, error) {
	st, err := r.open()
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	r.st = st
	r.labels = make(map[string]string)
	r.inserted = make(map[string]T)
	defer func() {
		if r.st != nil {
			r.st.Close()
		}
	}()

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := r.execute(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Op, err)
		}
	}

	all, err := r.st.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read final state: %w", err)
	}
	result.FinalCount = len(all)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs one step, records it in the trace and checks its
// expectation. Only a failed reopen is returned as an error, since no
// later step can run without a store.
func (r *runner[T]) execute(ctx context.Context, i int, step Step, result *Result) error {
	ev := TraceEvent{Op: step.Op, Ref: step.Ref}
	var stepErr error

	switch step.Op {
	case OpInsert:
		ev.Ref = step.As
		rec, err := r.build(step.Record)
		if err != nil {
			stepErr = err
			break
		}
		if step.ID != "" {
			rec = rec.WithKey(step.ID)
		}
		id, err := r.st.Insert(ctx, rec)
		switch {
		case err == nil:
			ev.ID = id
			ev.Outcome = OutcomeOK
			if step.As != "" {
				r.labels[step.As] = id
			}
			r.inserted[id] = rec.WithKey(id)
		case errors.Is(err, store.ErrInvalid):
			ev.Outcome = OutcomeInvalid
		default:
			stepErr = err
		}

	case OpGet:
		ev.ID = r.resolve(step.Ref)
		got, found, err := r.st.Get(ctx, ev.ID)
		switch {
		case err != nil:
			stepErr = err
		case !found:
			ev.Outcome = OutcomeMissing
		default:
			ev.Outcome = OutcomeFound
			if want, ok := r.inserted[ev.ID]; ok && !r.equal(want, got) {
				result.AddError(fmt.Sprintf("steps[%d] get %s: read back %+v, want %+v", i, step.Ref, got, want))
			}
		}

	case OpList:
		all, err := r.st.GetAll(ctx)
		if err != nil {
			stepErr = err
			break
		}
		n := len(all)
		ev.Count = &n
		ev.Outcome = OutcomeOK
		if step.ExpectCount != nil && *step.ExpectCount != n {
			result.AddError(fmt.Sprintf("steps[%d] list: expected %d records, got %d", i, *step.ExpectCount, n))
		}

	case OpDelete:
		ev.ID = r.resolve(step.Ref)
		err := r.st.Delete(ctx, ev.ID)
		switch {
		case err == nil:
			ev.Outcome = OutcomeOK
			delete(r.inserted, ev.ID)
		case store.IsNotFound(err):
			ev.Outcome = OutcomeNotFound
		default:
			stepErr = err
		}

	case OpFlush:
		stepErr = r.st.Flush(ctx)
		ev.Outcome = OutcomeOK

	case OpReopen:
		if err := r.st.Close(); err != nil {
			return fmt.Errorf("close: %w", err)
		}
		r.st = nil
		st, err := r.open()
		if err != nil {
			return fmt.Errorf("reopen: %w", err)
		}
		r.st = st
		ev.Outcome = OutcomeOK
	}

	if stepErr != nil {
		ev.Outcome = OutcomeError
		result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, step.Op, stepErr))
	}
	result.AddTrace(ev)

	want := step.Expect
	if want == "" {
		want = defaultOutcome(step.Op)
	}
	if stepErr == nil && ev.Outcome != want {
		result.AddError(fmt.Sprintf("steps[%d] %s %s: expected %s, got %s", i, step.Op, ev.Ref, want, ev.Outcome))
	}
	return nil
}

// resolve maps a label to the id it was given, or returns ref unchanged.
func (r *runner[T]) resolve(ref string) string {
	if id, ok := r.labels[ref]; ok {
		return id
	}
	return ref
}

func defaultOutcome(op string) string {
	if op == OpGet {
		return OutcomeFound
	}
	return OutcomeOK
}

// decodeRecord converts scenario fields into T through its yaml tags.
func decodeRecord[T any](fields map[string]any) (T, error) {
	var rec T
	data, err := yaml.Marshal(fields)
	if err != nil {
		return rec, fmt.Errorf("encode record fields: %w", err)
	}
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode record fields: %w", err)
	}
	return rec, nil
}

// buildImage is decodeRecord plus the raw "data" string, which the Image
// yaml form leaves out.
func buildImage(fields map[string]any) (record.Image, error) {
	rest := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != "data" {
			rest[k] = v
		}
	}
	img, err := decodeRecord[record.Image](rest)
	if err != nil {
		return img, err
	}

	if raw, ok := fields["data"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return img, fmt.Errorf("image data must be a string, got %T", raw)
		}
		img.Data = []byte(s)
	}
	return img, nil
}
