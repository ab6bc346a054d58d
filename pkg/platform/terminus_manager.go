package platform

import (
	"context"
	"errors"
	"sync"

	"github.com/pldm-stack/pldm-go/pkg/discovery"
	"github.com/pldm-stack/pldm-go/pkg/log"
	"github.com/pldm-stack/pldm-go/pkg/terminus"
	"github.com/pldm-stack/pldm-go/pkg/wire"
)

// TerminusManager errors.
var (
	ErrNoFreeTID         = errors.New("no free TID")
	ErrEndpointNotMapped = errors.New("endpoint not mapped to a TID")
)

// Initializer queries a newly assigned terminus and returns its populated
// model (name, sensors). Implementations typically walk the terminus's
// PDR repository through the requester.
type Initializer interface {
	InitTerminus(ctx context.Context, tid terminus.TID, ep discovery.EndpointInfo) (*terminus.Terminus, error)
}

// InitializerFunc adapts a function to the Initializer interface.
type InitializerFunc func(ctx context.Context, tid terminus.TID, ep discovery.EndpointInfo) (*terminus.Terminus, error)

// InitTerminus implements Initializer.
func (f InitializerFunc) InitTerminus(ctx context.Context, tid terminus.TID, ep discovery.EndpointInfo) (*terminus.Terminus, error) {
	return f(ctx, tid, ep)
}

// discoveryHook runs immediately before or after a discovery pass.
// Failures are logged and do not abort discovery.
type discoveryHook func(ctx context.Context) wire.CompletionCode

// TerminusManager performs discovery bookkeeping: it assigns TIDs to
// transport endpoints, populates the registry through the Initializer,
// and resolves endpoints back to TIDs.
//
// Lifecycle transitions for one TID never run concurrently; all
// discovery and removal passes are serialized by the manager's mutex.
type TerminusManager struct {
	mu sync.Mutex

	registry    *terminus.Registry
	initializer Initializer
	logger      log.Logger

	// Endpoint to TID mapping and its inverse.
	tids      map[discovery.EndpointKey]terminus.TID
	endpoints map[terminus.TID]discovery.EndpointInfo

	// Endpoints whose initialization is still in flight. Their mapping
	// is reserved but not yet resolvable through ToTID.
	initializing map[discovery.EndpointKey]bool

	// Endpoint-level availability, tracked even for endpoints that have
	// not completed discovery.
	endpointAvail map[discovery.EndpointKey]bool

	// nextTID seeds the TID allocation scan.
	nextTID uint8

	// Hooks run around each discovery pass.
	beforeDiscover discoveryHook
	afterDiscover  discoveryHook

	// Lifecycle callbacks into the composing Manager.
	onReady  func(tid terminus.TID)
	onRemove func(tid terminus.TID)
}

// NewTerminusManager creates a terminus manager over the shared registry.
func NewTerminusManager(registry *terminus.Registry, initializer Initializer, logger log.Logger) *TerminusManager {
	return &TerminusManager{
		registry:      registry,
		initializer:   initializer,
		logger:        log.OrNoop(logger),
		tids:          make(map[discovery.EndpointKey]terminus.TID),
		endpoints:     make(map[terminus.TID]discovery.EndpointInfo),
		initializing:  make(map[discovery.EndpointKey]bool),
		endpointAvail: make(map[discovery.EndpointKey]bool),
		nextTID:       1,
	}
}

// setHooks installs the before/after discovery hooks.
func (tm *TerminusManager) setHooks(before, after discoveryHook) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.beforeDiscover = before
	tm.afterDiscover = after
}

// setLifecycleCallbacks installs the ready/remove callbacks.
func (tm *TerminusManager) setLifecycleCallbacks(onReady, onRemove func(tid terminus.TID)) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.onReady = onReady
	tm.onRemove = onRemove
}

// allocTID reserves a free TID. TIDs 0x00 and 0xFF are reserved by the
// protocol.
func (tm *TerminusManager) allocTID() (terminus.TID, error) {
	start := tm.nextTID
	for i := 0; i < 0xFE; i++ {
		candidate := start + uint8(i)
		if candidate == 0x00 || candidate == 0xFF {
			continue
		}
		tid := terminus.TID(candidate)
		if _, used := tm.endpoints[tid]; used {
			continue
		}
		tm.nextTID = candidate + 1
		return tid, nil
	}
	return 0, ErrNoFreeTID
}

// DiscoverEndpoints runs one discovery pass over a batch of added
// endpoints. Endpoints already mapped to a TID are skipped; each new
// endpoint is assigned a TID, initialized, and registered. Initialization
// failures skip the endpoint, they never abort the pass.
func (tm *TerminusManager) DiscoverEndpoints(ctx context.Context, eps []discovery.EndpointInfo) {
	tm.mu.Lock()
	before, after := tm.beforeDiscover, tm.afterDiscover
	tm.mu.Unlock()

	if before != nil {
		if cc := before(ctx); !cc.OK() {
			tm.logError("before-discovery hook failed: "+cc.String(), "discovery")
		}
	}

	for _, ep := range eps {
		tm.discoverOne(ctx, ep)
	}

	if after != nil {
		if cc := after(ctx); !cc.OK() {
			tm.logError("after-discovery hook failed: "+cc.String(), "discovery")
		}
	}
}

// discoverOne maps and initializes a single endpoint.
func (tm *TerminusManager) discoverOne(ctx context.Context, ep discovery.EndpointInfo) {
	tm.mu.Lock()
	if _, mapped := tm.tids[ep.Key()]; mapped {
		tm.mu.Unlock()
		return
	}
	tid, err := tm.allocTID()
	if err != nil {
		tm.mu.Unlock()
		tm.logError(err.Error(), "discovery")
		return
	}
	// Reserve the mapping before the (slow) init so a concurrent pass
	// cannot double-assign the endpoint. The mapping stays hidden from
	// ToTID until the registry holds the terminus, so no availability
	// update can act on a half-initialized TID.
	tm.tids[ep.Key()] = tid
	tm.endpoints[tid] = ep
	tm.initializing[ep.Key()] = true
	onReady := tm.onReady
	tm.mu.Unlock()

	t, err := tm.initializer.InitTerminus(ctx, tid, ep)
	if err != nil {
		tm.logError(err.Error(), "terminus init")
		tm.rollback(ep.Key(), tid)
		return
	}

	if err := tm.registry.Add(t); err != nil {
		tm.logError(err.Error(), "registry add")
		tm.rollback(ep.Key(), tid)
		return
	}

	tm.mu.Lock()
	delete(tm.initializing, ep.Key())
	tm.endpointAvail[ep.Key()] = true
	tm.mu.Unlock()

	if onReady != nil {
		onReady(tid)
	}
}

// RemoveEndpoints retracts termini whose endpoints were reported removed.
// Polling is stopped (via the remove callback) before the terminus leaves
// the registry, so no task can operate on a removed terminus.
func (tm *TerminusManager) RemoveEndpoints(ctx context.Context, eps []discovery.EndpointInfo) {
	for _, ep := range eps {
		tm.mu.Lock()
		tid, mapped := tm.tids[ep.Key()]
		onRemove := tm.onRemove
		tm.mu.Unlock()
		if !mapped {
			continue
		}

		if onRemove != nil {
			onRemove(tid)
		}
		tm.registry.Remove(tid)

		tm.mu.Lock()
		delete(tm.tids, ep.Key())
		delete(tm.endpoints, tid)
		delete(tm.endpointAvail, ep.Key())
		tm.mu.Unlock()
	}
}

// rollback retracts a reserved mapping whose initialization failed.
func (tm *TerminusManager) rollback(key discovery.EndpointKey, tid terminus.TID) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	delete(tm.tids, key)
	delete(tm.endpoints, tid)
	delete(tm.initializing, key)
}

// ToTID resolves an endpoint to the TID of its initialized terminus.
// Endpoints still going through initialization do not resolve.
func (tm *TerminusManager) ToTID(key discovery.EndpointKey) (terminus.TID, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.initializing[key] {
		return 0, false
	}
	tid, ok := tm.tids[key]
	return tid, ok
}

// Endpoint returns the endpoint a TID was discovered from.
func (tm *TerminusManager) Endpoint(tid terminus.TID) (discovery.EndpointInfo, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	ep, ok := tm.endpoints[tid]
	return ep, ok
}

// UpdateEndpointAvailability records endpoint-level availability. This is
// kept for all endpoints, including ones that never completed discovery.
func (tm *TerminusManager) UpdateEndpointAvailability(key discovery.EndpointKey, available bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.endpointAvail[key] = available
}

// EndpointAvailable reports the recorded endpoint availability.
func (tm *TerminusManager) EndpointAvailable(key discovery.EndpointKey) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.endpointAvail[key]
}

// GetActiveEIDByName returns the endpoint ID of the available terminus
// with the given name.
func (tm *TerminusManager) GetActiveEIDByName(name string) (uint8, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	for tid, ep := range tm.endpoints {
		if !tm.endpointAvail[ep.Key()] {
			continue
		}
		t, err := tm.registry.Get(tid)
		if err != nil {
			continue
		}
		if t.Name() == name {
			return ep.EID, true
		}
	}
	return 0, false
}

// logError emits an error event.
func (tm *TerminusManager) logError(msg, context string) {
	tm.logger.Log(log.Event{
		Timestamp: timeNow(),
		Direction: log.DirectionLocal,
		Layer:     log.LayerPlatform,
		Category:  log.CategoryError,
		Error:     &log.ErrorEventData{Layer: log.LayerPlatform, Message: msg, Context: context},
	})
}
