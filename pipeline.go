// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// NodeKind discriminates the three shapes a Description node can take
// (spec §4.9, §9's "sum type {Stage(name) | Pipe(children) | Or(children)}").
type NodeKind int

const (
	NodeStage NodeKind = iota
	NodePipe
	NodeOr
)

// Description is the recursive pipeline description of spec §4.9. It
// has no direct counterpart in the teacher (whose pipeline is a flat,
// config-ordered list — scheduling/internal/decision/pipelines/lib's
// filtersOrder/weighersOrder); it is grounded instead on the teacher's
// step-running mechanics, generalized into a recursive evaluator (see
// Evaluate).
type Description struct {
	Kind     NodeKind
	Name     string
	Children []Description
}

// Stage builds a leaf node naming a registered Algorithm.
func Stage(name string) Description { return Description{Kind: NodeStage, Name: name} }

// Pipe builds a sequential-composition node (spec §4.9).
func Pipe(children ...Description) Description { return Description{Kind: NodePipe, Children: children} }

// Or builds a first-non-empty-wins alternation node (spec §4.9).
func Or(children ...Description) Description { return Description{Kind: NodeOr, Children: children} }

// ParseDescription parses the JSON/YAML array-of-arrays shape of spec
// §4.9 — a string leaf, or ["pipe", ...]/["or", ...] — into a
// Description tree. raw is the already-decoded value (e.g. from
// encoding/json or gopkg.in/yaml.v3 into []any/string).
func ParseDescription(raw any) (Description, error) {
	switch v := raw.(type) {
	case string:
		return Stage(v), nil
	case []any:
		if len(v) == 0 {
			return Description{}, ErrEmptyDescription
		}
		head, ok := v[0].(string)
		if !ok {
			return Description{}, fmt.Errorf("placement: pipeline description must start with a combinator name, got %T", v[0])
		}
		children := make([]Description, 0, len(v)-1)
		for _, childRaw := range v[1:] {
			child, err := ParseDescription(childRaw)
			if err != nil {
				return Description{}, err
			}
			children = append(children, child)
		}
		switch head {
		case "pipe":
			return Pipe(children...), nil
		case "or":
			return Or(children...), nil
		default:
			return Description{}, fmt.Errorf("placement: unknown combinator %q", head)
		}
	default:
		return Description{}, fmt.Errorf("placement: invalid pipeline description node of type %T", raw)
	}
}

// StageNames returns every leaf stage name referenced by desc, in
// depth-first order, deduplicated. Used to resolve+Init every
// algorithm a description touches before the pipeline ever runs.
func StageNames(desc Description) []string {
	seen := map[string]struct{}{}
	var names []string
	var walk func(Description)
	walk = func(d Description) {
		switch d.Kind {
		case NodeStage:
			if _, ok := seen[d.Name]; !ok {
				seen[d.Name] = struct{}{}
				names = append(names, d.Name)
			}
		default:
			for _, c := range d.Children {
				walk(c)
			}
		}
	}
	walk(desc)
	return names
}

// StageTrace is one entry of the Allocator's returned "ordered log of
// each stage's remaining/removed counts" (spec §4.11 step 9).
type StageTrace struct {
	Name   string
	Before int
	After  int
}

// Result is what Evaluate returns: the surviving servers, accumulated
// rejection reasons and score deltas, the per-stage trace, and — in
// capacity mode — the per-server capacity budgets.
type Result struct {
	Servers         []*Server
	Reasons         map[string]string
	Scores          map[string]float64
	Trace           []StageTrace
	CapacityMode    bool
	Capacity        map[string]CapacityBudget
	CapacityReasons map[string]string
}

// evalContext threads the read-only pieces every stage invocation needs.
type evalContext struct {
	registry     *Registry
	instances    map[string]Algorithm
	log          Logger
	state        *State
	constraints  Constraints
	capacityMode bool
	monitor      *PipelineMonitor
}

// Evaluate interprets desc against servers, per spec §4.9. Pipe
// children are threaded sequentially, each receiving the previous
// child's surviving servers; consecutive scorer-kind leaf children
// within one Pipe are batched and run concurrently via errgroup (the
// teacher's own runWeighers fans weighers out with sync.WaitGroup —
// here their score contributions commute, so the reordering is safe,
// and errgroup additionally propagates the first error). Or children
// all receive the pipe's current input; the first non-empty output
// wins, otherwise the last child's output is returned verbatim (spec
// §8 property 3).
func Evaluate(instances map[string]Algorithm, log Logger, state *State, servers []*Server, c Constraints, desc Description, capacityMode bool) (*Result, error) {
	return evaluate(instances, log, state, servers, c, desc, capacityMode, nil)
}

// EvaluateWithMonitor is Evaluate plus per-stage Prometheus timing.
func EvaluateWithMonitor(instances map[string]Algorithm, log Logger, state *State, servers []*Server, c Constraints, desc Description, capacityMode bool, monitor *PipelineMonitor) (*Result, error) {
	return evaluate(instances, log, state, servers, c, desc, capacityMode, monitor)
}

func evaluate(instances map[string]Algorithm, log Logger, state *State, servers []*Server, c Constraints, desc Description, capacityMode bool, monitor *PipelineMonitor) (*Result, error) {
	ec := &evalContext{instances: instances, log: log, state: state, constraints: c, capacityMode: capacityMode, monitor: monitor}
	res := &Result{
		Reasons:      map[string]string{},
		Scores:       map[string]float64{},
		CapacityMode: capacityMode,
	}
	if capacityMode {
		res.Capacity = map[string]CapacityBudget{}
		res.CapacityReasons = map[string]string{}
		for _, srv := range servers {
			res.Capacity[srv.UUID] = CapacityBudget{
				RAM:  srv.Derived.UnreservedRAM,
				CPU:  srv.Derived.UnreservedCPU,
				Disk: srv.Derived.UnreservedDisk,
			}
		}
	}
	out, err := evalNode(ec, desc, servers, res)
	if err != nil {
		return nil, err
	}
	res.Servers = out
	return res, nil
}

func evalNode(ec *evalContext, desc Description, in []*Server, res *Result) ([]*Server, error) {
	switch desc.Kind {
	case NodeStage:
		return evalStageBatch(ec, []Description{desc}, in, res)
	case NodePipe:
		return evalPipe(ec, desc.Children, in, res)
	case NodeOr:
		return evalOr(ec, desc.Children, in, res)
	default:
		return nil, fmt.Errorf("placement: invalid description node kind %d", desc.Kind)
	}
}

// evalPipe threads children sequentially, batching adjacent
// scorer-kind leaves for concurrent execution.
func evalPipe(ec *evalContext, children []Description, in []*Server, res *Result) ([]*Server, error) {
	current := in
	i := 0
	for i < len(children) {
		if isScorerLeaf(ec, children[i]) {
			j := i
			var batch []Description
			for j < len(children) && isScorerLeaf(ec, children[j]) {
				batch = append(batch, children[j])
				j++
			}
			out, err := evalStageBatch(ec, batch, current, res)
			if err != nil {
				return nil, err
			}
			current = out
			i = j
			continue
		}
		out, err := evalNode(ec, children[i], current, res)
		if err != nil {
			return nil, err
		}
		current = out
		i++
		if !ec.capacityMode && len(current) == 0 {
			// Spec §4.9: stop early with empty result outside capacity
			// mode. Capacity mode must keep going since no stage there
			// ever removes a server.
			return current, nil
		}
	}
	return current, nil
}

// evalOr gives every child the same input and keeps the first
// non-empty output, falling back to the last child's output verbatim
// (spec §4.9, §8 property 3). In capacity mode no stage ever empties
// the set, so the first child's output is always used; merging
// multiple alternative branches' capacity numbers is not defined by
// the spec (see DESIGN.md open questions).
func evalOr(ec *evalContext, children []Description, in []*Server, res *Result) ([]*Server, error) {
	if len(children) == 0 {
		return in, nil
	}
	var last []*Server
	for idx, child := range children {
		out, err := evalNode(ec, child, in, res)
		if err != nil {
			return nil, err
		}
		last = out
		if len(out) > 0 || ec.capacityMode {
			return out, nil
		}
		_ = idx
	}
	return last, nil
}

func isScorerLeaf(ec *evalContext, d Description) bool {
	if d.Kind != NodeStage {
		return false
	}
	alg, ok := ec.instances[d.Name]
	return ok && alg.Kind() == KindScorer
}

// evalStageBatch runs one or more Stage leaves against the same input
// servers and merges their effects. A batch of size 1 is the common
// case (any filter/transform); a batch >1 only occurs for adjacent
// scorer leaves, which run concurrently.
func evalStageBatch(ec *evalContext, batch []Description, in []*Server, res *Result) ([]*Server, error) {
	if len(batch) == 1 {
		return runOneStage(ec, batch[0].Name, in, res)
	}
	results := make([]*StepResult, len(batch))
	var g errgroup.Group
	for idx, d := range batch {
		idx, name := idx, d.Name
		g.Go(func() error {
			r, err := runAlgorithm(ec, name, in, res)
			if err != nil {
				return fmt.Errorf("algorithm %s: %w", name, err)
			}
			results[idx] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := in
	for i, d := range batch {
		out = mergeStepResult(ec, d.Name, results[i], out, res)
	}
	return out, nil
}

func runOneStage(ec *evalContext, name string, in []*Server, res *Result) ([]*Server, error) {
	r, err := runAlgorithm(ec, name, in, res)
	if err != nil {
		return nil, fmt.Errorf("algorithm %s: %w", name, err)
	}
	return mergeStepResult(ec, name, r, in, res), nil
}

func runAlgorithm(ec *evalContext, name string, in []*Server, res *Result) (*StepResult, error) {
	alg, ok := ec.instances[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}
	stop := ec.monitor.timeStage(name)
	defer stop()
	if ec.capacityMode && alg.Kind() == KindHardFilter && alg.AffectsCapacity() {
		return runCapacityProbe(ec, alg, in, res)
	}
	if ec.capacityMode && alg.Kind() == KindHardFilter {
		// Declares no capacity effect -- pass every server through
		// unchanged, per spec §4.10's "stages that declare
		// affectsCapacity=false behave as in normal mode" read together
		// with capacity mode's "no server removed" invariant.
		return keepAll(in), nil
	}
	r, err := alg.Run(ec.log, ec.state, in, ec.constraints)
	if errors.Is(err, ErrStepSkipped) {
		return keepAll(in), nil
	}
	return r, err
}

func runCapacityProbe(ec *evalContext, alg Algorithm, in []*Server, res *Result) (*StepResult, error) {
	prober, ok := alg.(CapacityProber)
	if !ok {
		return keepAll(in), nil
	}
	for _, srv := range in {
		budget := res.Capacity[srv.UUID]
		newBudget, wouldPass, reason := prober.ProbeCapacity(ec.state, srv, ec.constraints, budget)
		res.Capacity[srv.UUID] = newBudget
		if !wouldPass && reason != "" {
			res.CapacityReasons[srv.UUID] = alg.Name() + ": " + reason
		}
	}
	return keepAll(in), nil
}

func mergeStepResult(ec *evalContext, stageName string, r *StepResult, before []*Server, res *Result) []*Server {
	beforeCount := len(before)
	after := r.Servers
	if after == nil {
		// Scorers and transforms leave Servers nil to mean "unchanged";
		// a filter that returns nil has emptied the candidate set.
		if alg, ok := ec.instances[stageName]; !ok || (alg.Kind() != KindHardFilter && alg.Kind() != KindSoftFilter) {
			after = before
		}
	}
	if !ec.capacityMode {
		for uuid, reason := range r.Reasons {
			res.Reasons[uuid] = stageName + ": " + reason
		}
	}
	for uuid, delta := range r.ScoreDelta {
		res.Scores[uuid] += delta
	}
	trace := StageTrace{Name: stageName, Before: beforeCount, After: len(after)}
	res.Trace = append(res.Trace, trace)
	ec.monitor.observeStage(trace)
	return after
}

// PickBest selects the highest-scored server, breaking ties on the
// lexicographically smallest UUID (spec §4.6, §4.11 step 7).
func PickBest(servers []*Server, scores map[string]float64) *Server {
	if len(servers) == 0 {
		return nil
	}
	best := make([]*Server, len(servers))
	copy(best, servers)
	sort.Slice(best, func(i, j int) bool {
		si, sj := scores[best[i].UUID], scores[best[j].UUID]
		if si != sj {
			return si > sj
		}
		return best[i].UUID < best[j].UUID
	})
	return best[0]
}
