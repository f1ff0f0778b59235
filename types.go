// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

// Package placement implements the compute-node placement engine: a pure,
// in-memory decision function that picks one compute node (CN) to host a
// given VM request, out of a candidate fleet. The engine owns no
// persistence, performs no network I/O, and never mutates caller-owned
// inputs; it is invoked synchronously, once per allocation, by a
// control-plane host that owns the RPC surface and inventory.
package placement

import "time"

// TraitValue is the tagged union of the value shapes a trait can take:
// a boolean flag, a scalar string, or a list of strings.
type TraitValue struct {
	Bool    *bool
	Str     *string
	StrList []string
}

// BoolTrait builds a boolean-valued trait.
func BoolTrait(b bool) TraitValue { return TraitValue{Bool: &b} }

// StrTrait builds a scalar string-valued trait.
func StrTrait(s string) TraitValue { return TraitValue{Str: &s} }

// StrListTrait builds a list-valued trait.
func StrListTrait(l []string) TraitValue { return TraitValue{StrList: l} }

// IsZero reports whether no variant of the union was set.
func (t TraitValue) IsZero() bool {
	return t.Bool == nil && t.Str == nil && t.StrList == nil
}

// Traits is a named collection of trait values.
type Traits map[string]TraitValue

// Locality describes near/far placement hints relative to named VMs.
type Locality struct {
	Near   []string
	Far    []string
	Strict bool
}

// AffinityOperator is the comparison an AffinityRule applies.
type AffinityOperator string

const (
	AffinityEquals    AffinityOperator = "=="
	AffinityNotEquals AffinityOperator = "!="
)

// AffinityValueType selects how AffinityRule.Value is interpreted.
type AffinityValueType string

const (
	AffinityValueExact AffinityValueType = "exact"
	AffinityValueGlob  AffinityValueType = "glob"
	AffinityValueRegex AffinityValueType = "re"
)

// AffinityRule is one entry of VM.Affinity (spec §4.8).
type AffinityRule struct {
	Key       string
	Operator  AffinityOperator
	Value     string
	ValueType AffinityValueType
	IsSoft    bool
}

// VM is the workload description handed to the allocator (spec §3).
type VM struct {
	UUID             string
	OwnerUUID        string
	RAM              float64 // MiB
	Quota            float64 // MiB, optional (0 = unset)
	CPUCap           float64 // percent, optional (0 = unset)
	Traits           Traits
	NicTags          []string
	Locality         Locality
	Affinity         []AffinityRule
	InternalMetadata map[string]string
	Brand            string
}

// ImageRequirements constrains the RAM/platform range an image supports.
type ImageRequirements struct {
	MinRAM      float64 // MiB, 0 = unset
	MaxRAM      float64 // MiB, 0 = unset
	MinPlatform map[string]string // SDC version -> ISO platform timestamp
	MaxPlatform map[string]string
}

// Image is the image manifest referenced by the VM (spec §3).
type Image struct {
	ImageSize    float64 // MiB
	Traits       Traits
	Requirements ImageRequirements
}

// ServerSpread is the deprecated package.alloc_server_spread enum (spec §3, §9).
type ServerSpread string

const (
	SpreadNone    ServerSpread = ""
	SpreadMinRAM  ServerSpread = "min-ram"
	SpreadMaxRAM  ServerSpread = "max-ram"
	SpreadRandom  ServerSpread = "random"
	SpreadMinOwner ServerSpread = "min-owner"
)

// Package is the billing/sizing package applied to the VM (spec §3).
type Package struct {
	MaxPhysicalMemory float64 // MiB
	Quota             float64
	CPUCap            float64
	Traits            Traits
	MinPlatform       map[string]string
	AllocServerSpread ServerSpread

	OverprovisionCPU     float64
	OverprovisionMemory  float64
	OverprovisionStorage float64
	OverprovisionIO      float64 // currently ignored, spec §3
	OverprovisionNetwork float64 // currently ignored, spec §3
}

// VMState is the lifecycle state of a VM already running on a server.
type VMState string

const (
	VMStateRunning      VMState = "running"
	VMStateStopped      VMState = "stopped"
	VMStateFailed       VMState = "failed"
	VMStateProvisioning VMState = "provisioning"
)

// HostedVM is one entry of Server.VMs: a VM already running on that server.
type HostedVM struct {
	OwnerUUID         string
	Brand             string
	State             VMState
	CPUCap            float64
	Quota             float64
	MaxPhysicalMemory float64
	LastModified       time.Time
	Alias             string
	DockerID          string
	Tags              map[string]string
}

// NetworkInterface describes one entry of sysinfo's "Network Interfaces".
type NetworkInterface struct {
	NICNames   []string
	LinkStatus string // "up" or "down"
}

// SysInfo is the subset of a server's raw sysinfo hash the engine consults.
type SysInfo struct {
	CPUOnlineCount    int
	LiveImage         string // ISO platform timestamp
	NetworkInterfaces map[string]NetworkInterface
	BootTime          time.Time
	NextRebootTime    time.Time // zero value = no scheduled reboot
}

// Server is one compute node in the candidate fleet (spec §3).
type Server struct {
	UUID string

	MemoryTotalBytes     float64
	MemoryAvailableBytes float64

	DiskPoolSizeBytes             float64
	DiskInstalledImagesUsedBytes  float64
	DiskZoneQuotaBytes            float64
	DiskKVMQuotaBytes             float64
	DiskCoresQuotaUsedBytes       float64

	ReservationRatio float64 // fraction of DRAM reserved for OS/ARC, [0,1]
	Reserved         bool
	Setup            bool
	Running          bool
	Headnode         bool
	Reservoir        bool // spare-capacity pool, excluded from ordinary allocation
	IsVirtual        bool // non-physical (e.g. nested/KVM-hosted) compute node

	SysInfo SysInfo
	Traits  Traits
	VMs     map[string]HostedVM

	OverprovisionCPU     *float64 // nil = server does not advertise a ratio
	OverprovisionMemory  *float64
	OverprovisionStorage *float64

	// Derived is populated by DeriveServer; zero value until then.
	Derived ServerDerived
}

// ServerDerived holds the per-server fields computed by Server Derivation
// (spec §4.2). DeriveServer always sets DerivationOK to true; a server
// whose Derived was never filled in keeps it false and is dropped by
// hard-filter-invalid-servers, which is not fatal to the allocation.
type ServerDerived struct {
	UnreservedRAM  float64 // MiB
	UnreservedCPU  float64 // percent
	UnreservedDisk float64 // MiB
	DerivationOK   bool

	// RatioCPU/Memory/Storage are this server's resolved overprovision
	// ratios (spec §4.3), resolved per-server because the precedence
	// chain can fall back to an individual server's advertised ratio.
	// The Unreserved* formulas use them; hard-filter-overprovision-ratios
	// compares the package's and the server's raw ratios instead.
	RatioCPU     float64
	RatioMemory  float64
	RatioStorage float64
}

// TicketStatus is the lifecycle state of a provisioning Ticket.
type TicketStatus string

const (
	TicketStatusQueued   TicketStatus = "queued"
	TicketStatusActive   TicketStatus = "active"
	TicketStatusFinished TicketStatus = "finished"
)

// Ticket represents an in-flight provision (spec §3).
type Ticket struct {
	ID         string
	ServerUUID string
	Scope      string
	Action     string
	Status     TicketStatus
	VMUUID     string
	RAM        float64 // MiB, pre-charged if the VM hasn't surfaced yet
	CPUCap     float64
}

// Defaults is the caller-supplied defaults record (spec §4.3, §6).
type Defaults struct {
	FilterHeadnode                              bool
	FilterMinResources                          bool
	FilterLargeServers                          bool
	DisableOverrideOverprovisioning             bool
	FilterVMLimit                               int
	FilterDockerMinPlatform                     map[string]string
	FilterFlexibleDiskMinPlatform                map[string]string
	FilterDockerNFSVolumesAutomountMinPlatform   map[string]string
	FilterNonDockerNFSVolumesAutomountMinPlatform map[string]string

	OverprovisionRatioCPU     float64
	OverprovisionRatioRAM     float64
	OverprovisionRatioDisk    float64

	ServerSpread ServerSpread

	WeightCurrentPlatform float64
	WeightNextReboot      float64
	WeightNumOwnerZones   float64
	WeightUnreservedRAM   float64
	WeightUnreservedDisk  float64
	WeightUniformRandom   float64
}

// DefaultDefaults returns the documented out-of-the-box weights and
// thresholds (spec §4.6, §4.4).
func DefaultDefaults() Defaults {
	return Defaults{
		FilterHeadnode:           true,
		FilterMinResources:       true,
		FilterLargeServers:       true,
		FilterVMLimit:            224,
		OverprovisionRatioCPU:    1.0,
		OverprovisionRatioRAM:    1.0,
		OverprovisionRatioDisk:   1.0,
		WeightCurrentPlatform:    1,
		WeightNextReboot:         0.5,
		WeightNumOwnerZones:      0,
		WeightUnreservedRAM:      2,
		WeightUnreservedDisk:     1,
		WeightUniformRandom:      0.5,
	}
}

// Constraints is the merged, effective view of VM+image+package+defaults
// that the pipeline's stages consult (spec §4.3). It is built once per
// allocation by the Allocator Facade, before the pipeline runs.
type Constraints struct {
	VM       VM
	Image    Image
	Package  Package
	Defaults Defaults

	// OverrideOverprovisioning mirrors the override-overprovisioning
	// transform: when true, per-server ratio resolution (spec §4.2,
	// §4.3) discards package- and server-advertised ratios in favor of
	// Defaults.OverprovisionRatio{CPU,RAM,Disk}.
	OverrideOverprovisioning bool

	// Union of VM+image+package traits, VM taking precedence (spec §4.3).
	RequiredTraits Traits

	// Resolved locality/affinity hints, after ResolveLocality (spec §4.8).
	// Hard-* feed hard-filter-locality-hints, Soft-* feed
	// soft-filter-locality-hints.
	HardNearServers map[string]struct{}
	HardFarServers  map[string]struct{}
	SoftNearServers map[string]struct{}
	SoftFarServers  map[string]struct{}
}
