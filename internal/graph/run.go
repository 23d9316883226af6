package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// defaultMaxSteps bounds a single run. A well-formed panel episode is
// far below this; hitting it means a routing loop.
const defaultMaxSteps = 1000

// ErrStepLimit indicates a run exceeded its step budget.
var ErrStepLimit = errors.New("step limit exceeded")

// NodeError wraps a failure inside a node body, carrying the node name.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// RouteError indicates a router returned a name outside its declared targets.
type RouteError struct {
	Node     string
	Decision string
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("router on %q returned undeclared target %q", e.Node, e.Decision)
}

// ErrorHandler is consulted when a node fails. Returning nil resumes
// routing from the failed node against the (possibly repaired) state;
// returning an error aborts the run.
type ErrorHandler[S any] func(node string, state S, err error) error

// Option configures a compiled Runnable.
type Option[S any] func(*Runnable[S])

// WithNodeTimeout bounds each node execution. A node that overruns is
// treated as failed with context.DeadlineExceeded. The overrunning
// goroutine is abandoned, not killed; see the NodeFunc contract on
// state writes after cancellation.
func WithNodeTimeout[S any](d time.Duration) Option[S] {
	return func(r *Runnable[S]) { r.nodeTimeout = d }
}

// WithErrorHandler installs a node failure handler.
func WithErrorHandler[S any](h ErrorHandler[S]) Option[S] {
	return func(r *Runnable[S]) { r.onError = h }
}

// WithMaxSteps overrides the run step budget.
func WithMaxSteps[S any](n int) Option[S] {
	return func(r *Runnable[S]) {
		if n > 0 {
			r.maxSteps = n
		}
	}
}

// WithTraceFunc installs a callback invoked before each node executes.
func WithTraceFunc[S any](fn func(node string)) Option[S] {
	return func(r *Runnable[S]) { r.onVisit = fn }
}

// Runnable is a compiled, executable graph. It is immutable and safe
// for concurrent runs with distinct state values.
type Runnable[S any] struct {
	nodes       map[string]NodeFunc[S]
	edges       map[string]string
	conditional map[string]conditionalEdge[S]
	entry       string

	nodeTimeout time.Duration
	onError     ErrorHandler[S]
	onVisit     func(node string)
	maxSteps    int
}

// Entry returns the entry node name.
func (r *Runnable[S]) Entry() string {
	return r.entry
}

// NodeCount returns the number of registered nodes (excluding End).
func (r *Runnable[S]) NodeCount() int {
	return len(r.nodes)
}

// NodeNames returns all registered node names, sorted.
func (r *Runnable[S]) NodeNames() []string {
	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	sortStrings(names)
	return names
}

// Run moves the state through the graph from the entry until End.
// It returns the visited node names in order.
func (r *Runnable[S]) Run(ctx context.Context, state S) ([]string, error) {
	var trace []string
	current := r.entry

	for steps := 0; ; steps++ {
		if steps >= r.maxSteps {
			return trace, fmt.Errorf("%w after %d steps at node %q", ErrStepLimit, steps, current)
		}
		if err := ctx.Err(); err != nil {
			return trace, err
		}

		trace = append(trace, current)
		if r.onVisit != nil {
			r.onVisit(current)
		}

		if err := r.runNode(ctx, current, state); err != nil {
			nerr := &NodeError{Node: current, Err: err}
			if r.onError == nil {
				return trace, nerr
			}
			if herr := r.onError(current, state, err); herr != nil {
				return trace, fmt.Errorf("error handler: %w", herr)
			}
			// Handler repaired the state; fall through to routing.
		}

		next, err := r.next(current, state)
		if err != nil {
			return trace, err
		}
		if next == End {
			return trace, nil
		}
		current = next
	}
}

// runNode executes one node body, enforcing the per-node timeout.
// The node runs in its own goroutine so a body that ignores its
// context cannot stall the run past the deadline.
func (r *Runnable[S]) runNode(ctx context.Context, name string, state S) error {
	fn := r.nodes[name]

	if r.nodeTimeout <= 0 {
		return fn(ctx, state)
	}

	nodeCtx, cancel := context.WithTimeout(ctx, r.nodeTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(nodeCtx, state)
	}()

	select {
	case err := <-done:
		return err
	case <-nodeCtx.Done():
		return nodeCtx.Err()
	}
}

// next computes the node following current.
func (r *Runnable[S]) next(current string, state S) (string, error) {
	if to, ok := r.edges[current]; ok {
		return to, nil
	}
	ce, ok := r.conditional[current]
	if !ok {
		// Compile guarantees an outgoing edge; this is defensive.
		return "", fmt.Errorf("node %q has no outgoing edge", current)
	}
	decision := ce.router(state)
	if !ce.targets[decision] {
		return "", &RouteError{Node: current, Decision: decision}
	}
	return decision, nil
}

func sortStrings(s []string) {
	sort.Strings(s)
}
