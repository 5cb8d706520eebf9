package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/buildwatch/internal/jenkins"
	"git.home.luguber.info/inful/buildwatch/internal/logfields"
	"git.home.luguber.info/inful/buildwatch/internal/state"
)

const unknown = "unknown"

// WalkError reports the subtree whose fetch failed.
type WalkError struct {
	Key string
	Err error
}

func (e *WalkError) Error() string {
	key := e.Key
	if key == "" {
		key = "/"
	}
	return fmt.Sprintf("walk %s: %v", key, e.Err)
}

func (e *WalkError) Unwrap() error { return e.Err }

// WalkResult is the outcome of one traversal.
type WalkResult struct {
	// Directives in traversal order: children before their parent.
	Directives []Directive
	// Visited counts the job records fetched.
	Visited int
	// BudgetExceeded is set when the project cap stopped the traversal early.
	BudgetExceeded bool
}

// Walker traverses a job tree and proposes snapshot updates.
type Walker struct {
	reader       Reader
	filterPrefix string
	logger       *slog.Logger
}

// NewWalker returns a walker skipping every key that does not start with
// filterPrefix. An empty prefix keeps everything.
func NewWalker(reader Reader, filterPrefix string) *Walker {
	return &Walker{reader: reader, filterPrefix: filterPrefix, logger: slog.Default()}
}

// walkState is handed to each recursive call and returned from it.
type walkState struct {
	directives []Directive
	visited    int
	budget     int
	exceeded   bool
}

func (s walkState) full() bool {
	return s.budget > 0 && len(s.directives) >= s.budget
}

func (s walkState) emit(d Directive) walkState {
	s.directives = append(s.directives, d)
	return s
}

// Walk visits the children of container depth-first. Keys are prefix + "/" + name.
// At most budget directives are produced; budget <= 0 disables the cap. Reaching
// the cap is not an error: it is reported through WalkResult.BudgetExceeded and
// the directives gathered so far are kept.
func (w *Walker) Walk(ctx context.Context, container jenkins.Container, prefix string, budget int) (WalkResult, error) {
	s, err := w.walk(ctx, container, prefix, walkState{budget: budget})
	if err != nil {
		return WalkResult{}, err
	}
	if s.exceeded {
		w.logger.InfoContext(ctx, "Project cap reached, skipping remaining jobs",
			slog.Int("max_projects", budget),
			logfields.JobKey(prefix))
	}
	return WalkResult{Directives: s.directives, Visited: s.visited, BudgetExceeded: s.exceeded}, nil
}

func (w *Walker) walk(ctx context.Context, container jenkins.Container, prefix string, s walkState) (walkState, error) {
	children := container.Children()
	w.logger.DebugContext(ctx, "Walking jobs", logfields.JobKey(prefix), slog.Int("count", len(children)))

	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		key := prefix + "/" + child.Name
		if w.filterPrefix != "" && !strings.HasPrefix(key, w.filterPrefix) {
			continue
		}
		if s.full() {
			s.exceeded = true
			return s, nil
		}

		job, err := w.reader.FetchJob(ctx, child.URL)
		if err != nil {
			return s, &WalkError{Key: key, Err: err}
		}
		s.visited++

		if s, err = w.walk(ctx, job, key, s); err != nil {
			return s, err
		}
		if s.exceeded {
			return s, nil
		}

		d, emit, err := w.resolve(ctx, key, job)
		if err != nil {
			return s, err
		}
		if !emit {
			continue
		}
		if s.full() {
			s.exceeded = true
			return s, nil
		}
		s = s.emit(d)
	}
	return s, nil
}

// resolve turns the last build of job into a directive. Jobs without builds are
// evicted; running builds leave the stored entry alone.
func (w *Walker) resolve(ctx context.Context, key string, job *jenkins.Job) (Directive, bool, error) {
	ref, ok := job.LastBuild().Get()
	if !ok {
		return Remove(key), true, nil
	}
	build, err := w.reader.FetchBuild(ctx, ref.URL)
	if err != nil {
		return Directive{}, false, &WalkError{Key: key, Err: err}
	}
	if build.Building {
		return Directive{}, false, nil
	}
	return Update(buildStateOf(key, ref, build)), true, nil
}

// buildStateOf applies the fallbacks for fields Jenkins leaves empty.
func buildStateOf(key string, ref jenkins.BuildRef, build *jenkins.Build) state.BuildState {
	number := build.Number
	if number == 0 {
		number = ref.Number
	}
	culprits := make([]string, 0, len(build.Culprits))
	for _, p := range build.Culprits {
		culprits = append(culprits, p.Name().UnwrapOr(unknown))
	}
	return state.BuildState{
		Key:      key,
		BuildID:  number,
		Color:    build.Result().UnwrapOr(unknown),
		Culprits: culprits,
	}
}
