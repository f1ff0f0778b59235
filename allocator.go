// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"encoding/json"
	"fmt"
	"time"
)

// AllocationInput is everything the caller hands to one Allocate call
// (spec §4.11's "allocate(servers, vm, image, package, tickets,
// checkCapacity)").
type AllocationInput struct {
	VM            VM
	Image         Image
	Package       Package
	Servers       []Server
	Tickets       []Ticket
	CheckCapacity bool
}

// AllocationTrace is the non-server part of Allocate's result: the
// ordered per-stage log, the accumulated rejection reasons, and, when
// CheckCapacity was set, the per-server capacity report (spec §4.11
// step 9).
type AllocationTrace struct {
	Stages   []StageTrace
	Reasons  map[string]string
	Scores   map[string]float64
	Capacity map[string]CapacityResult
}

// Allocator is the library entry point of spec §6/§4.11. It owns the
// one piece of cross-call mutable state (RecentServers, spec §4.7) and
// the resolved set of Algorithm instances referenced by its pipeline
// description; everything else is read-only per call.
//
// Grounded on the teacher's nova.NewPipeline/novaPipeline.Run
// composition (modify pre-step, Pipeline.Run, post-processing) and
// scheduling/internal/decision/pipelines/lib.InitNewFilterWeigherPipeline's
// wiring of supportedSteps+config into an ordered, wrapped pipeline.
type Allocator struct {
	log       Logger
	registry  *Registry
	desc      Description
	defaults  Defaults
	instances map[string]Algorithm
	recent    *RecentServers
	monitor   *PipelineMonitor
}

// New constructs an Allocator. desc names the algorithms to run — pass
// DefaultDescription() for the complete built-in pipeline (spec
// §4.11's "the default pipeline description... the complete pipeline
// described in docs"). monitor may be nil to disable metrics.
func New(log Logger, registry *Registry, desc Description, defaults Defaults, monitor *PipelineMonitor) (*Allocator, error) {
	if log == nil {
		log = NopLogger()
	}
	instances := make(map[string]Algorithm)
	for _, name := range StageNames(desc) {
		alg, err := registry.New(name)
		if err != nil {
			return nil, err
		}
		if err := alg.Init(EmptyRawOpts()); err != nil {
			return nil, fmt.Errorf("placement: failed to init algorithm %s: %w", name, err)
		}
		instances[name] = alg
	}
	return &Allocator{
		log:       log,
		registry:  registry,
		desc:      desc,
		defaults:  defaults,
		instances: instances,
		recent:    NewRecentServers(RecentServersTTL),
		monitor:   monitor,
	}, nil
}

// Recent exposes the allocator's recent-server memory, mostly so hosts
// can inspect it for diagnostics; algorithms reach it through State
// instead (see StateKeyRecentServers).
func (a *Allocator) Recent() *RecentServers { return a.recent }

// Allocate runs the full pipeline of spec §4.11 and returns the chosen
// server (nil if none survived), the trace, and an error for
// input-invalid failures or when a stage's Run returns an error.
func (a *Allocator) Allocate(input AllocationInput) (*Server, AllocationTrace, error) {
	stop := a.monitor.timePipeline()
	defer stop()

	if err := a.validateInput(input); err != nil {
		return nil, AllocationTrace{}, err
	}

	constraints := BuildConstraints(input.VM, input.Image, input.Package, a.defaults, !a.defaults.DisableOverrideOverprovisioning)

	now := time.Now()
	a.recent.Purge(now)

	servers := a.prepareServers(input, constraints)

	state := NewState()
	state.Set(StateKeyRecentServers, a.recent)
	state.Set(StateKeyNow, now)
	state.Set(StateKeyVM, input.VM)

	hardNear, hardFar, softNear, softFar := ResolveLocality(input.VM, servers)
	constraints.HardNearServers, constraints.HardFarServers = hardNear, hardFar
	constraints.SoftNearServers, constraints.SoftFarServers = softNear, softFar

	result, err := EvaluateWithMonitor(a.instances, a.log, state, servers, constraints, a.desc, input.CheckCapacity, a.monitor)
	if err != nil {
		return nil, AllocationTrace{}, fmt.Errorf("placement: pipeline evaluation failed: %w", err)
	}

	trace := AllocationTrace{
		Stages:  result.Trace,
		Reasons: result.Reasons,
		Scores:  result.Scores,
	}
	if input.CheckCapacity {
		trace.Capacity = BuildCapacityReport(result)
	}

	a.monitor.observeRun(len(servers), len(result.Servers), len(result.Servers) > 0)

	if input.CheckCapacity {
		return nil, trace, nil
	}

	chosen := PickBest(result.Servers, result.Scores)
	if chosen == nil {
		return nil, trace, nil
	}

	for _, alg := range a.instances {
		alg.Post(a.log, state, chosen)
	}

	return chosen, trace, nil
}

func (a *Allocator) validateInput(input AllocationInput) error {
	if err := ValidateDefaults(a.defaults); err != nil {
		return fmt.Errorf("%w: %v", ErrInputInvalid, err)
	}
	if err := ValidateImage(input.Image); err != nil {
		return fmt.Errorf("%w: %v", ErrInputInvalid, err)
	}
	if err := ValidatePackage(input.Package); err != nil {
		return fmt.Errorf("%w: %v", ErrInputInvalid, err)
	}
	if err := ValidateVM(input.VM); err != nil {
		return fmt.Errorf("%w: %v", ErrInputInvalid, err)
	}
	if err := ValidateVMAgainstImage(input.VM, input.Image); err != nil {
		return fmt.Errorf("%w: %v", ErrInputInvalid, err)
	}
	for _, t := range input.Tickets {
		if err := ValidateTicket(t); err != nil {
			return fmt.Errorf("%w: %v", ErrInputInvalid, err)
		}
	}
	return nil
}

// prepareServers implements spec §4.11 steps 3-4: pre-charges tickets
// for VMs not yet surfaced in a server's inventory
// (calculate-recent-vms), then runs Server Derivation on every server
// unconditionally. Per spec §9, validity is a filter's job, not the
// Facade's: a malformed server still gets Derived populated here and is
// only dropped later, by name with a recorded reason, if the pipeline
// happens to include hard-filter-invalid-servers.
func (a *Allocator) prepareServers(input AllocationInput, c Constraints) []*Server {
	chargesByServer := make(map[string]TicketCharge, len(input.Tickets))
	for _, t := range input.Tickets {
		if t.Status == TicketStatusFinished {
			continue
		}
		servers := input.Servers
		for i := range servers {
			if servers[i].UUID != t.ServerUUID {
				continue
			}
			if t.VMUUID != "" {
				if _, known := servers[i].VMs[t.VMUUID]; known {
					continue
				}
			}
			charge := chargesByServer[t.ServerUUID]
			charge.RAM += t.RAM
			charge.CPUCap += t.CPUCap
			chargesByServer[t.ServerUUID] = charge
		}
	}

	out := make([]*Server, len(input.Servers))
	for i := range input.Servers {
		srv := input.Servers[i]
		srv.Derived = DeriveServer(srv, c, chargesByServer[srv.UUID])
		out[i] = &srv
	}
	return out
}

// DefaultDescription returns the complete built-in pipeline described
// in spec §4.11: hard filters, then soft filters, then scorers, in the
// order documented by the defaults table.
func DefaultDescription() Description {
	return Pipe(
		Pipe(
			Stage("hard-filter-force-failure"),
			Stage("hard-filter-invalid-servers"),
			Stage("hard-filter-setup"),
			Stage("hard-filter-running"),
			Stage("hard-filter-reserved"),
			Stage("hard-filter-reservoir"),
			Stage("hard-filter-headnode"),
			Stage("hard-filter-virtual-servers"),
			Stage("hard-filter-min-ram"),
			Stage("hard-filter-min-cpu"),
			Stage("hard-filter-min-disk"),
			Stage("hard-filter-min-free-disk"),
			Stage("hard-filter-overprovision-ratios"),
			Stage("hard-filter-platform-versions"),
			Stage("hard-filter-feature-min-platform"),
			Stage("hard-filter-traits"),
			Stage("hard-filter-vlans"),
			Stage("hard-filter-vm-count"),
			Stage("hard-filter-volumes-from"),
			Stage("hard-filter-locality-hints"),
			Stage("hard-filter-large-servers"),
			Stage("hard-filter-recent-servers"),
		),
		Pipe(
			Stage("soft-filter-locality-hints"),
			Stage("soft-filter-recent-servers"),
		),
		Pipe(
			Stage("score-current-platform"),
			Stage("score-next-reboot"),
			Stage("score-num-owner-zones"),
			Stage("score-unreserved-ram"),
			Stage("score-unreserved-disk"),
			Stage("score-uniform-random"),
		),
	)
}

// ParseDescriptionJSON is a convenience wrapper around ParseDescription
// for callers whose pipeline description arrives as a JSON document
// (spec §6's "input formats are JSON-shaped objects").
func ParseDescriptionJSON(raw []byte) (Description, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Description{}, fmt.Errorf("placement: invalid pipeline description json: %w", err)
	}
	return ParseDescription(v)
}

// State keys shared between the Allocator and built-in algorithms.
const (
	StateKeyRecentServers = "recent-servers"
	StateKeyNow           = "now"
	StateKeyVM            = "vm"
)
