package graph

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type testState struct {
	visited []string
	flag    bool
}

func record(name string) NodeFunc[*testState] {
	return func(ctx context.Context, s *testState) error {
		s.visited = append(s.visited, name)
		return nil
	}
}

func TestCompileRequiresEntry(t *testing.T) {
	g := New[*testState]()
	g.AddNode("a", record("a")).AddEdge("a", End)

	if _, err := g.Compile(); !errors.Is(err, ErrNoEntry) {
		t.Errorf("expected ErrNoEntry, got %v", err)
	}
}

func TestCompileRejectsDuplicateNode(t *testing.T) {
	g := New[*testState]()
	g.AddNode("a", record("a")).AddNode("a", record("a"))
	g.SetEntry("a").AddEdge("a", End)

	if _, err := g.Compile(); !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("expected ErrDuplicateNode, got %v", err)
	}
}

func TestCompileRejectsUnknownEdgeTarget(t *testing.T) {
	g := New[*testState]()
	g.AddNode("a", record("a")).SetEntry("a").AddEdge("a", "ghost")

	if _, err := g.Compile(); err == nil {
		t.Error("expected error for edge to unknown node")
	}
}

func TestCompileRejectsUnknownConditionalTarget(t *testing.T) {
	g := New[*testState]()
	g.AddNode("a", record("a")).SetEntry("a")
	g.AddConditionalEdges("a", func(s *testState) string { return "ghost" }, []string{"ghost"})

	if _, err := g.Compile(); err == nil {
		t.Error("expected error for conditional edge to unknown node")
	}
}

func TestCompileRejectsUnreachableNode(t *testing.T) {
	g := New[*testState]()
	g.AddNode("a", record("a")).AddNode("orphan", record("orphan"))
	g.SetEntry("a").AddEdge("a", End).AddEdge("orphan", End)

	_, err := g.Compile()
	if err == nil || !strings.Contains(err.Error(), "orphan") {
		t.Errorf("expected unreachable error naming orphan, got %v", err)
	}
}

func TestCompileRejectsDeadEndNode(t *testing.T) {
	g := New[*testState]()
	g.AddNode("a", record("a")).AddNode("b", record("b"))
	g.SetEntry("a").AddEdge("a", "b")

	_, err := g.Compile()
	if err == nil || !strings.Contains(err.Error(), "no outgoing edge") {
		t.Errorf("expected dead-end error, got %v", err)
	}
}

func TestRunLinear(t *testing.T) {
	g := New[*testState]()
	g.AddNode("a", record("a")).AddNode("b", record("b")).AddNode("c", record("c"))
	g.SetEntry("a").AddEdge("a", "b").AddEdge("b", "c").AddEdge("c", End)

	r, err := g.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	s := &testState{}
	trace, err := r.Run(context.Background(), s)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{"a", "b", "c"}
	if len(trace) != len(want) {
		t.Fatalf("expected trace %v, got %v", want, trace)
	}
	for i := range want {
		if trace[i] != want[i] || s.visited[i] != want[i] {
			t.Errorf("step %d: expected %q, got trace=%q visited=%q", i, want[i], trace[i], s.visited[i])
		}
	}
}

func TestRunConditionalRouting(t *testing.T) {
	g := New[*testState]()
	g.AddNode("decide", func(ctx context.Context, s *testState) error { return nil })
	g.AddNode("yes", record("yes"))
	g.AddNode("no", record("no"))
	g.SetEntry("decide")
	g.AddConditionalEdges("decide", func(s *testState) string {
		if s.flag {
			return "yes"
		}
		return "no"
	}, []string{"yes", "no"})
	g.AddEdge("yes", End).AddEdge("no", End)

	r, err := g.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	s := &testState{flag: true}
	if _, err := r.Run(context.Background(), s); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(s.visited) != 1 || s.visited[0] != "yes" {
		t.Errorf("expected [yes], got %v", s.visited)
	}
}

func TestRunRejectsUndeclaredRouteTarget(t *testing.T) {
	g2 := New[*testState]()
	g2.AddNode("a", record("a")).AddNode("b", record("b"))
	g2.SetEntry("a")
	g2.AddConditionalEdges("a", func(s *testState) string { return "undeclared" }, []string{"b", End})
	g2.AddEdge("b", End)

	r, err := g2.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	_, err = r.Run(context.Background(), &testState{})
	var rerr *RouteError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RouteError, got %v", err)
	}
	if rerr.Decision != "undeclared" {
		t.Errorf("expected decision %q, got %q", "undeclared", rerr.Decision)
	}
}

func TestRunStepLimit(t *testing.T) {
	g := New[*testState]()
	g.AddNode("a", record("a")).AddNode("b", record("b"))
	g.SetEntry("a").AddEdge("a", "b")
	g.AddConditionalEdges("b", func(s *testState) string { return "a" }, []string{"a", End})

	r, err := g.Compile(WithMaxSteps[*testState](10))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := r.Run(context.Background(), &testState{}); !errors.Is(err, ErrStepLimit) {
		t.Errorf("expected ErrStepLimit, got %v", err)
	}
}

func TestRunNodeErrorWithoutHandler(t *testing.T) {
	boom := errors.New("boom")
	g := New[*testState]()
	g.AddNode("a", func(ctx context.Context, s *testState) error { return boom })
	g.SetEntry("a").AddEdge("a", End)

	r, err := g.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	_, err = r.Run(context.Background(), &testState{})
	var nerr *NodeError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NodeError, got %v", err)
	}
	if nerr.Node != "a" || !errors.Is(err, boom) {
		t.Errorf("expected node a wrapping boom, got %v", err)
	}
}

func TestRunNodeErrorHandlerResumes(t *testing.T) {
	boom := errors.New("boom")
	g := New[*testState]()
	g.AddNode("a", func(ctx context.Context, s *testState) error { return boom })
	g.AddNode("b", record("b"))
	g.SetEntry("a").AddEdge("a", "b").AddEdge("b", End)

	var handled string
	r, err := g.Compile(WithErrorHandler[*testState](func(node string, s *testState, err error) error {
		handled = node
		return nil
	}))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	s := &testState{}
	if _, err := r.Run(context.Background(), s); err != nil {
		t.Fatalf("run: %v", err)
	}
	if handled != "a" {
		t.Errorf("expected handler for node a, got %q", handled)
	}
	if len(s.visited) != 1 || s.visited[0] != "b" {
		t.Errorf("expected routing to continue to b, got %v", s.visited)
	}
}

func TestRunNodeTimeout(t *testing.T) {
	g := New[*testState]()
	g.AddNode("slow", func(ctx context.Context, s *testState) error {
		select {
		case <-time.After(5 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	g.SetEntry("slow").AddEdge("slow", End)

	r, err := g.Compile(WithNodeTimeout[*testState](20 * time.Millisecond))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	start := time.Now()
	_, err = r.Run(context.Background(), &testState{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout did not bound node execution")
	}
}

func TestRunCanceledContext(t *testing.T) {
	g := New[*testState]()
	g.AddNode("a", record("a")).SetEntry("a").AddEdge("a", End)

	r, err := g.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Run(ctx, &testState{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNodeNamesSorted(t *testing.T) {
	g := New[*testState]()
	g.AddNode("c", record("c")).AddNode("a", record("a")).AddNode("b", record("b"))
	g.SetEntry("a").AddEdge("a", "b").AddEdge("b", "c").AddEdge("c", End)

	r, err := g.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	names := r.NodeNames()
	want := []string{"a", "b", "c"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
			break
		}
	}
	if r.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", r.NodeCount())
	}
}
