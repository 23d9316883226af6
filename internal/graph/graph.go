// Package graph provides a state graph engine for routing work between
// named nodes. A graph is built from nodes, unconditional edges, and
// conditional edges (router functions), then compiled into a Runnable
// that moves a single state value through the graph one node at a time.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// End is the terminal pseudo-node. Routing to End finishes the run.
const End = "__end__"

// ErrNoEntry indicates Compile was called before SetEntry.
var ErrNoEntry = errors.New("graph has no entry point")

// ErrDuplicateNode indicates a node name was registered twice.
var ErrDuplicateNode = errors.New("duplicate node name")

// NodeFunc is a node body. It runs to completion, mutating the state
// in place, before the next transition is computed.
//
// A body must stop mutating state once ctx is done: under a node
// timeout the runner moves on while the body's goroutine is still
// alive, and a late write would race with the nodes that follow.
type NodeFunc[S any] func(ctx context.Context, state S) error

// RouterFunc decides the next node name from the current state.
// Routers must be pure: no mutation, same state in, same name out.
type RouterFunc[S any] func(state S) string

type conditionalEdge[S any] struct {
	router  RouterFunc[S]
	targets map[string]bool
}

// StateGraph accumulates nodes and edges before compilation.
type StateGraph[S any] struct {
	mu          sync.Mutex
	nodes       map[string]NodeFunc[S]
	edges       map[string]string
	conditional map[string]conditionalEdge[S]
	entry       string
	err         error
}

// New creates an empty state graph.
func New[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:       make(map[string]NodeFunc[S]),
		edges:       make(map[string]string),
		conditional: make(map[string]conditionalEdge[S]),
	}
}

// AddNode registers a named node. Builder errors are deferred to Compile
// so call sites can chain registrations without per-call checks.
func (g *StateGraph[S]) AddNode(name string, fn NodeFunc[S]) *StateGraph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if name == End {
		g.setErr(fmt.Errorf("node name %q is reserved", End))
		return g
	}
	if fn == nil {
		g.setErr(fmt.Errorf("node %q has nil body", name))
		return g
	}
	if _, exists := g.nodes[name]; exists {
		g.setErr(fmt.Errorf("%w: %q", ErrDuplicateNode, name))
		return g
	}
	g.nodes[name] = fn
	return g
}

// AddEdge registers an unconditional edge from one node to another.
func (g *StateGraph[S]) AddEdge(from, to string) *StateGraph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.edges[from]; exists {
		g.setErr(fmt.Errorf("node %q already has an outgoing edge", from))
		return g
	}
	if _, exists := g.conditional[from]; exists {
		g.setErr(fmt.Errorf("node %q already has a conditional edge", from))
		return g
	}
	g.edges[from] = to
	return g
}

// AddConditionalEdges registers a router on a node's outgoing edge.
// Every name the router may return must be listed in targets.
func (g *StateGraph[S]) AddConditionalEdges(from string, router RouterFunc[S], targets []string) *StateGraph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if router == nil {
		g.setErr(fmt.Errorf("node %q has nil router", from))
		return g
	}
	if _, exists := g.edges[from]; exists {
		g.setErr(fmt.Errorf("node %q already has an outgoing edge", from))
		return g
	}
	if _, exists := g.conditional[from]; exists {
		g.setErr(fmt.Errorf("node %q already has a conditional edge", from))
		return g
	}
	set := make(map[string]bool, len(targets))
	for _, t := range targets {
		set[t] = true
	}
	g.conditional[from] = conditionalEdge[S]{router: router, targets: set}
	return g
}

// SetEntry marks the node where every run starts.
func (g *StateGraph[S]) SetEntry(name string) *StateGraph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entry = name
	return g
}

// setErr records the first builder error. Later errors are dropped;
// the first one is the root cause.
func (g *StateGraph[S]) setErr(err error) {
	if g.err == nil {
		g.err = err
	}
}

// Compile validates the graph and returns an executable Runnable.
// Validation checks: a deferred builder error, the entry point, that
// every edge endpoint and conditional target names a real node, and
// that every node is reachable from the entry.
func (g *StateGraph[S]) Compile(opts ...Option[S]) (*Runnable[S], error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.err != nil {
		return nil, g.err
	}
	if g.entry == "" {
		return nil, ErrNoEntry
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("entry point %q is not a registered node", g.entry)
	}

	exists := func(name string) bool {
		if name == End {
			return true
		}
		_, ok := g.nodes[name]
		return ok
	}

	for from, to := range g.edges {
		if !exists(from) {
			return nil, fmt.Errorf("edge from unknown node %q", from)
		}
		if !exists(to) {
			return nil, fmt.Errorf("edge %q -> %q targets unknown node", from, to)
		}
	}
	for from, ce := range g.conditional {
		if !exists(from) {
			return nil, fmt.Errorf("conditional edge from unknown node %q", from)
		}
		for target := range ce.targets {
			if !exists(target) {
				return nil, fmt.Errorf("conditional edge %q -> %q targets unknown node", from, target)
			}
		}
	}

	// Every node needs a way out; a node with no outgoing edge would
	// strand the run.
	for name := range g.nodes {
		if _, ok := g.edges[name]; ok {
			continue
		}
		if _, ok := g.conditional[name]; ok {
			continue
		}
		return nil, fmt.Errorf("node %q has no outgoing edge", name)
	}

	if unreached := g.unreachableLocked(); len(unreached) > 0 {
		return nil, fmt.Errorf("nodes unreachable from entry: %v", unreached)
	}

	r := &Runnable[S]{
		nodes:       g.nodes,
		edges:       g.edges,
		conditional: g.conditional,
		entry:       g.entry,
		maxSteps:    defaultMaxSteps,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// unreachableLocked returns node names not reachable from the entry.
// Uses DFS over both edge kinds; assumes the lock is held.
func (g *StateGraph[S]) unreachableLocked() []string {
	visited := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if name == End || visited[name] {
			return
		}
		visited[name] = true
		if to, ok := g.edges[name]; ok {
			visit(to)
		}
		if ce, ok := g.conditional[name]; ok {
			for target := range ce.targets {
				visit(target)
			}
		}
	}
	visit(g.entry)

	var unreached []string
	for name := range g.nodes {
		if !visited[name] {
			unreached = append(unreached, name)
		}
	}
	sortStrings(unreached)
	return unreached
}
