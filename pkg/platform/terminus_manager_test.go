package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pldm-stack/pldm-go/pkg/discovery"
	"github.com/pldm-stack/pldm-go/pkg/terminus"
	"github.com/pldm-stack/pldm-go/pkg/wire"
)

func namedEndpoint(eid uint8, name string) discovery.EndpointInfo {
	return discovery.EndpointInfo{EID: eid, Name: name, SupportedTypes: []uint8{0x02}}
}

// plainInitializer builds an empty terminus named after its endpoint.
func plainInitializer() Initializer {
	return InitializerFunc(func(ctx context.Context, tid terminus.TID, ep discovery.EndpointInfo) (*terminus.Terminus, error) {
		return terminus.New(tid, ep.EID, ep.Name), nil
	})
}

func TestDiscoverAssignsSequentialTIDs(t *testing.T) {
	reg := terminus.NewRegistry()
	tm := NewTerminusManager(reg, plainInitializer(), nil)

	var ready []terminus.TID
	tm.setLifecycleCallbacks(func(tid terminus.TID) { ready = append(ready, tid) }, nil)

	eps := []discovery.EndpointInfo{namedEndpoint(10, "bmc0"), namedEndpoint(11, "bmc1")}
	tm.DiscoverEndpoints(context.Background(), eps)

	assert.Equal(t, []terminus.TID{1, 2}, ready)
	assert.Equal(t, 2, reg.Len())

	tid, ok := tm.ToTID(eps[0].Key())
	require.True(t, ok)
	assert.Equal(t, terminus.TID(1), tid)

	ep, ok := tm.Endpoint(2)
	require.True(t, ok)
	assert.Equal(t, uint8(11), ep.EID)

	assert.True(t, tm.EndpointAvailable(eps[0].Key()))
}

func TestDiscoverSkipsAlreadyMappedEndpoints(t *testing.T) {
	reg := terminus.NewRegistry()
	tm := NewTerminusManager(reg, plainInitializer(), nil)

	ep := namedEndpoint(10, "bmc0")
	tm.DiscoverEndpoints(context.Background(), []discovery.EndpointInfo{ep})
	tm.DiscoverEndpoints(context.Background(), []discovery.EndpointInfo{ep})

	assert.Equal(t, 1, reg.Len())
	tid, _ := tm.ToTID(ep.Key())
	assert.Equal(t, terminus.TID(1), tid)
}

func TestDiscoverInitFailureRollsBack(t *testing.T) {
	reg := terminus.NewRegistry()
	broken := InitializerFunc(func(ctx context.Context, tid terminus.TID, ep discovery.EndpointInfo) (*terminus.Terminus, error) {
		return nil, errors.New("PDR walk failed")
	})
	tm := NewTerminusManager(reg, broken, nil)

	readyCalled := false
	tm.setLifecycleCallbacks(func(terminus.TID) { readyCalled = true }, nil)

	ep := namedEndpoint(10, "bmc0")
	tm.DiscoverEndpoints(context.Background(), []discovery.EndpointInfo{ep})

	assert.Equal(t, 0, reg.Len())
	assert.False(t, readyCalled)
	_, mapped := tm.ToTID(ep.Key())
	assert.False(t, mapped, "failed discovery must release the mapping")
	assert.False(t, tm.EndpointAvailable(ep.Key()))
}

func TestDiscoverFailedEndpointCanRetry(t *testing.T) {
	reg := terminus.NewRegistry()
	attempts := 0
	flaky := InitializerFunc(func(ctx context.Context, tid terminus.TID, ep discovery.EndpointInfo) (*terminus.Terminus, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient")
		}
		return terminus.New(tid, ep.EID, ep.Name), nil
	})
	tm := NewTerminusManager(reg, flaky, nil)

	ep := namedEndpoint(10, "bmc0")
	tm.DiscoverEndpoints(context.Background(), []discovery.EndpointInfo{ep})
	require.Equal(t, 0, reg.Len())

	tm.DiscoverEndpoints(context.Background(), []discovery.EndpointInfo{ep})
	assert.Equal(t, 1, reg.Len())
	assert.True(t, reg.Contains(2), "retry allocates a fresh TID")
}

func TestRemoveEndpointsTearsDownMapping(t *testing.T) {
	reg := terminus.NewRegistry()
	tm := NewTerminusManager(reg, plainInitializer(), nil)

	var removedWhileRegistered bool
	tm.setLifecycleCallbacks(nil, func(tid terminus.TID) {
		// The remove callback fires before the registry entry goes away
		// so polling can be stopped against a still-valid terminus.
		removedWhileRegistered = reg.Contains(tid)
	})

	ep := namedEndpoint(10, "bmc0")
	tm.DiscoverEndpoints(context.Background(), []discovery.EndpointInfo{ep})
	tm.RemoveEndpoints(context.Background(), []discovery.EndpointInfo{ep})

	assert.True(t, removedWhileRegistered)
	assert.Equal(t, 0, reg.Len())
	_, mapped := tm.ToTID(ep.Key())
	assert.False(t, mapped)
	assert.False(t, tm.EndpointAvailable(ep.Key()))
}

func TestRemoveUnknownEndpointIsNoop(t *testing.T) {
	reg := terminus.NewRegistry()
	tm := NewTerminusManager(reg, plainInitializer(), nil)

	callbackFired := false
	tm.setLifecycleCallbacks(nil, func(terminus.TID) { callbackFired = true })

	tm.RemoveEndpoints(context.Background(), []discovery.EndpointInfo{namedEndpoint(99, "ghost")})
	assert.False(t, callbackFired)
}

func TestDiscoveryHooksRunAroundPass(t *testing.T) {
	reg := terminus.NewRegistry()
	tm := NewTerminusManager(reg, plainInitializer(), nil)

	var trace []string
	tm.setHooks(
		func(ctx context.Context) wire.CompletionCode {
			trace = append(trace, "before")
			return wire.CodeSuccess
		},
		func(ctx context.Context) wire.CompletionCode {
			trace = append(trace, "after")
			return wire.CodeSuccess
		})
	tm.setLifecycleCallbacks(func(terminus.TID) { trace = append(trace, "ready") }, nil)

	tm.DiscoverEndpoints(context.Background(), []discovery.EndpointInfo{namedEndpoint(10, "bmc0")})
	assert.Equal(t, []string{"before", "ready", "after"}, trace)
}

func TestAllocTIDSkipsReservedValues(t *testing.T) {
	reg := terminus.NewRegistry()
	tm := NewTerminusManager(reg, plainInitializer(), nil)

	// Force the allocation scan to wrap through 0xFF and 0x00.
	tm.mu.Lock()
	tm.nextTID = 0xFE
	tm.mu.Unlock()

	eps := []discovery.EndpointInfo{namedEndpoint(10, "a"), namedEndpoint(11, "b")}
	tm.DiscoverEndpoints(context.Background(), eps)

	tidA, _ := tm.ToTID(eps[0].Key())
	tidB, _ := tm.ToTID(eps[1].Key())
	assert.Equal(t, terminus.TID(0xFE), tidA)
	assert.Equal(t, terminus.TID(0x01), tidB, "scan wraps past the reserved 0xFF and 0x00")
}

func TestGetActiveEIDByName(t *testing.T) {
	reg := terminus.NewRegistry()
	tm := NewTerminusManager(reg, plainInitializer(), nil)

	ep := namedEndpoint(10, "bmc0")
	tm.DiscoverEndpoints(context.Background(), []discovery.EndpointInfo{ep})

	eid, ok := tm.GetActiveEIDByName("bmc0")
	require.True(t, ok)
	assert.Equal(t, uint8(10), eid)

	_, ok = tm.GetActiveEIDByName("nope")
	assert.False(t, ok)

	// An unavailable endpoint no longer resolves.
	tm.UpdateEndpointAvailability(ep.Key(), false)
	_, ok = tm.GetActiveEIDByName("bmc0")
	assert.False(t, ok)
}

// blockingInitializer pauses inside InitTerminus until release receives
// the init outcome.
func blockingInitializer(entered chan<- struct{}, release <-chan error) Initializer {
	return InitializerFunc(func(ctx context.Context, tid terminus.TID, ep discovery.EndpointInfo) (*terminus.Terminus, error) {
		close(entered)
		if err := <-release; err != nil {
			return nil, err
		}
		return terminus.New(tid, ep.EID, ep.Name), nil
	})
}

func TestToTIDUnresolvedDuringInit(t *testing.T) {
	reg := terminus.NewRegistry()
	entered := make(chan struct{})
	release := make(chan error)
	tm := NewTerminusManager(reg, blockingInitializer(entered, release), nil)

	ep := namedEndpoint(10, "bmc0")
	done := make(chan struct{})
	go func() {
		tm.DiscoverEndpoints(context.Background(), []discovery.EndpointInfo{ep})
		close(done)
	}()

	<-entered
	_, ok := tm.ToTID(ep.Key())
	assert.False(t, ok, "the mapping must not resolve while init is in flight")

	release <- errors.New("no response to PDR query")
	<-done

	_, ok = tm.ToTID(ep.Key())
	assert.False(t, ok, "a failed init leaves no mapping behind")
	assert.Equal(t, 0, reg.Len())
}

func TestToTIDResolvesAfterInit(t *testing.T) {
	reg := terminus.NewRegistry()
	entered := make(chan struct{})
	release := make(chan error)
	tm := NewTerminusManager(reg, blockingInitializer(entered, release), nil)

	ep := namedEndpoint(10, "bmc0")
	done := make(chan struct{})
	go func() {
		tm.DiscoverEndpoints(context.Background(), []discovery.EndpointInfo{ep})
		close(done)
	}()

	<-entered
	release <- nil
	<-done

	tid, ok := tm.ToTID(ep.Key())
	require.True(t, ok)
	assert.True(t, reg.Contains(tid))
}
