package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svcctl/internal/api"
	"svcctl/internal/services"
)

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	node, err := f.p.CreateControllerService("X", "svc-1", true)
	require.NoError(t, err)
	assert.Equal(t, services.StateDisabled, node.State())

	require.NoError(t, f.p.EnableControllerService(ctx, node))
	assert.True(t, f.p.IsControllerServiceEnabled("svc-1"))

	err = f.p.RemoveControllerService(node)
	assert.True(t, api.IsInvalidState(err), "an enabled service cannot be removed")

	require.NoError(t, f.p.DisableControllerService(ctx, node))
	require.NoError(t, f.p.RemoveControllerService(node))

	_, ok := f.p.GetControllerServiceNode("svc-1")
	assert.False(t, ok)
	assert.Equal(t, []string{"enable:svc-1", "disable:svc-1"}, f.j.list())
}

func TestCreateControllerServiceErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.p.CreateControllerService("X", "a", true)
	require.NoError(t, err)

	_, err = f.p.CreateControllerService("Y", "a", true)
	assert.True(t, api.IsDuplicateID(err))

	_, err = f.p.CreateControllerService("Nope", "b", true)
	assert.True(t, api.IsUnknownType(err))
	_, ok := f.p.GetControllerServiceNode("b")
	assert.False(t, ok)
}

func TestLookups(t *testing.T) {
	f := newFixture(t)
	f.service("b")
	f.service("a")
	_, err := f.p.CreateControllerService("Y", "c", true)
	require.NoError(t, err)

	instance, ok := f.p.GetControllerService("a")
	assert.True(t, ok)
	assert.NotNil(t, instance)

	_, ok = f.p.GetControllerService("missing")
	assert.False(t, ok)
	assert.False(t, f.p.IsControllerServiceEnabled("missing"))

	assert.Equal(t, []string{"a", "b"}, f.p.GetControllerServiceIdentifiers("X"))
	assert.Equal(t, []string{"c"}, f.p.GetControllerServiceIdentifiers("Y"))
	assert.Empty(t, f.p.GetControllerServiceIdentifiers("Z"))

	all := f.p.GetAllControllerServices()
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID())
	assert.Equal(t, "c", all[2].ID())
}

func TestByIDOperationsOnUnknownService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name string
		op   func() error
	}{
		{"enable", func() error { return f.p.EnableControllerServiceByID(ctx, "ghost") }},
		{"disable", func() error { return f.p.DisableControllerServiceByID(ctx, "ghost") }},
		{"remove", func() error { return f.p.RemoveControllerServiceByID("ghost") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			require.Error(t, err)
			assert.True(t, api.IsNotFound(err))
			assert.Contains(t, err.Error(), "ghost")
		})
	}
}

func TestByIDOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.service("a")

	require.NoError(t, f.p.EnableControllerServiceByID(ctx, "a"))
	assert.True(t, f.p.IsControllerServiceEnabled("a"))
	require.NoError(t, f.p.DisableControllerServiceByID(ctx, "a"))
	require.NoError(t, f.p.RemoveControllerServiceByID("a"))
	assert.Empty(t, f.p.GetAllControllerServices())
}

func TestForeignNodeIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other := newFixture(t)

	foreign := other.service("a")
	f.service("a")

	assert.True(t, api.IsNotMember(f.p.EnableControllerService(ctx, foreign)))
	assert.True(t, api.IsNotMember(f.p.DisableControllerService(ctx, foreign)))
	assert.True(t, api.IsNotMember(f.p.RemoveControllerService(foreign)))
	assert.True(t, api.IsNotMember(f.p.VerifyCanDisable(foreign)))
	assert.True(t, api.IsNotMember(f.p.EnableControllerServices(ctx, []*services.ServiceNode{foreign})))

	assert.Equal(t, services.StateDisabled, foreign.State())
	assert.Equal(t, services.StateDisabled, f.state("a"))
}

func TestNilNodeIsRejected(t *testing.T) {
	f := newFixture(t)
	err := f.p.EnableControllerService(context.Background(), nil)
	require.Error(t, err)
	assert.False(t, api.IsNotMember(err))
}

func TestVerifyCanDisable(t *testing.T) {
	f := newFixture(t)

	c := f.enabledService("C")
	b := f.service("B", "C")
	f.processor("P", true, false, "C")

	require.NoError(t, f.p.VerifyCanDisable(c), "only inactive dependents")

	require.NoError(t, f.p.EnableControllerService(context.Background(), b))
	f.processor("P", true, true, "C")

	err := f.p.VerifyCanDisable(c)
	require.Error(t, err)
	assert.True(t, api.IsActiveReferences(err))

	var activeErr *api.ActiveReferencesError
	require.ErrorAs(t, err, &activeErr)
	assert.Equal(t, "C", activeErr.ID)
	assert.ElementsMatch(t, []api.ComponentRef{svcRef("B"), procRef("P")}, activeErr.Active)

	_, err = f.p.DeactivateReferencingComponents(context.Background(), c)
	require.NoError(t, err)
	assert.NoError(t, f.p.VerifyCanDisable(c))
}

func TestVerifyCanDisableIgnoresTransitiveDependents(t *testing.T) {
	f := newFixture(t)

	c := f.enabledService("C")
	f.service("B", "C")
	f.processor("A", true, true, "B")

	assert.NoError(t, f.p.VerifyCanDisable(c))
}

func TestEnableControllerServicesInLevels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// a <- b, a <- c, b,c <- d
	a := f.service("a")
	b := f.service("b", "a")
	c := f.service("c", "a")
	d := f.service("d", "b", "c")

	require.NoError(t, f.p.EnableControllerServices(ctx, []*services.ServiceNode{d, c, b, a}))

	entries := f.j.list()
	require.Len(t, entries, 4)
	assert.Equal(t, "enable:a", entries[0])
	assert.ElementsMatch(t, []string{"enable:b", "enable:c"}, entries[1:3])
	assert.Equal(t, "enable:d", entries[3])

	for _, id := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, services.StateEnabled, f.state(id))
	}
}

func TestEnableControllerServicesSkipsEnabled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.enabledService("a")
	b := f.service("b", "a")
	f.j.reset()

	require.NoError(t, f.p.EnableControllerServices(ctx, []*services.ServiceNode{a, b}))
	assert.Equal(t, []string{"enable:b"}, f.j.list())
}

func TestEnableControllerServicesStopsAtFailingLevel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.service("a")
	b := f.service("b", "a")
	c := f.service("c", "b")
	f.failOnEnable("b", errors.New("port in use"))

	err := f.p.EnableControllerServices(ctx, []*services.ServiceNode{a, b, c})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "level 1")
	assert.Contains(t, err.Error(), "port in use")

	assert.Equal(t, services.StateEnabled, f.state("a"))
	assert.Equal(t, services.StateDisabled, f.state("b"))
	assert.Equal(t, services.StateDisabled, f.state("c"), "later levels are not attempted")
}

func TestEnableControllerServicesEnablesOutsidePrerequisites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// db <- mid <- cache; only cache is requested
	f.service("db")
	f.service("mid", "db")
	cache := f.service("cache", "mid")

	require.NoError(t, f.p.EnableControllerServices(ctx, []*services.ServiceNode{cache}))
	assert.Equal(t, []string{"enable:db", "enable:mid", "enable:cache"}, f.j.list())
	for _, id := range []string{"db", "mid", "cache"} {
		assert.Equal(t, services.StateEnabled, f.state(id))
	}
}

func TestEnableControllerServicesOrdersThroughEnabledPrerequisite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// mid was enabled while db was later disabled on its own
	db := f.enabledService("db")
	f.enabledService("mid", "db")
	require.NoError(t, f.p.DisableControllerService(ctx, db))
	cache := f.service("cache", "mid")
	f.j.reset()

	require.NoError(t, f.p.EnableControllerServices(ctx, []*services.ServiceNode{cache}))
	assert.Equal(t, []string{"enable:db", "enable:cache"}, f.j.list())
}

func TestEnableControllerServicesPrerequisiteFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.service("db")
	cache := f.service("cache", "db")
	f.failOnEnable("db", errors.New("dial tcp: connection refused"))

	err := f.p.EnableControllerServices(ctx, []*services.ServiceNode{cache})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, services.StateDisabled, f.state("cache"), "nothing is enabled above a failed prerequisite")
}

func TestEnableControllerServicesMissingPrerequisite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	base := f.service("base")
	cache := f.service("cache", "ghost")

	err := f.p.EnableControllerServices(ctx, []*services.ServiceNode{base, cache})
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))
	assert.Empty(t, f.j.list(), "a level with an unknown service starts no enables")
	assert.Equal(t, services.StateDisabled, f.state("base"))
	assert.Equal(t, services.StateDisabled, f.state("cache"))
}

func TestEnableControllerServicesBoundedParallelism(t *testing.T) {
	ctx := context.Background()
	j := &journal{}

	var mu sync.Mutex
	inFlight, peak := 0, 0
	hooks := services.Hooks{
		OnEnabled: func(ctx context.Context, id string, instance services.Instance) error {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
			j.add("enable:%s", id)
			return nil
		},
	}
	p := New(Config{Factory: testFactory(), Hooks: &hooks, EnableParallelism: 2})

	var nodes []*services.ServiceNode
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		node, err := p.CreateControllerService("X", id, true)
		require.NoError(t, err)
		nodes = append(nodes, node)
	}

	require.NoError(t, p.EnableControllerServices(ctx, nodes))
	assert.Len(t, j.list(), 5)
	assert.LessOrEqual(t, peak, 2)
}

func TestSubscribeToStateChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	events := f.p.SubscribeToStateChanges()

	node := f.service("svc-1")
	require.NoError(t, f.p.EnableControllerService(ctx, node))

	expected := []struct {
		old, new services.ServiceState
	}{
		{services.StateDisabled, services.StateEnabling},
		{services.StateEnabling, services.StateEnabled},
	}
	for _, want := range expected {
		select {
		case event := <-events:
			assert.Equal(t, "svc-1", event.ID)
			assert.Equal(t, "X", event.Type)
			assert.Equal(t, want.old, event.OldState)
			assert.Equal(t, want.new, event.NewState)
			assert.NoError(t, event.Error)
			assert.False(t, event.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for state change event")
		}
	}
}

func TestSubscribeToStateChangesReportsFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	events := f.p.SubscribeToStateChanges()

	node := f.service("svc-1")
	f.failOnEnable("svc-1", errors.New("boom"))
	require.Error(t, f.p.EnableControllerService(ctx, node))

	<-events // DISABLED -> ENABLING
	select {
	case event := <-events:
		assert.Equal(t, services.StateEnabling, event.OldState)
		assert.Equal(t, services.StateDisabled, event.NewState)
		assert.ErrorContains(t, event.Error, "boom")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for failure event")
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_ = f.p.SubscribeToStateChanges() // never drained

	node := f.service("svc-1")
	for i := 0; i < 60; i++ {
		require.NoError(t, f.p.EnableControllerService(ctx, node))
		require.NoError(t, f.p.DisableControllerService(ctx, node))
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	f.enabledService("a")
	f.service("b", "a")
	f.failOnEnable("c", errors.New("bad"))
	c := f.service("c")
	require.Error(t, f.p.EnableControllerService(context.Background(), c))

	statuses := f.p.Snapshot()
	require.Len(t, statuses, 3)

	assert.Equal(t, "a", statuses[0].ID)
	assert.Equal(t, services.StateEnabled, statuses[0].State)
	assert.Equal(t, "X", statuses[0].Type)

	assert.Equal(t, "b", statuses[1].ID)
	assert.Equal(t, services.StateDisabled, statuses[1].State)
	assert.Equal(t, []string{"a"}, statuses[1].References)

	assert.Equal(t, "c", statuses[2].ID)
	assert.Error(t, statuses[2].LastError)
}

func TestGraphReflectsComponents(t *testing.T) {
	f := newFixture(t)
	f.service("a")
	f.service("b", "a")
	f.processor("p", true, false, "b")

	g := f.p.Graph()
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, api.KindProcessor, g.Kind("p"))
	assert.Len(t, g.TransitiveDependents("a").Order, 2)
}

func TestConcurrentOperationsDoNotDeadlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	c := f.enabledService("C")
	b := f.enabledService("B", "C")
	f.processor("A", true, true, "B")

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(4)
			go func() {
				defer wg.Done()
				_, _ = f.p.DeactivateReferencingComponents(ctx, c)
			}()
			go func() {
				defer wg.Done()
				_, _ = f.p.ActivateReferencingComponents(ctx, c)
			}()
			go func() {
				defer wg.Done()
				_ = f.p.EnableControllerService(ctx, b)
				_ = f.p.DisableControllerService(ctx, b)
			}()
			go func() {
				defer wg.Done()
				_ = f.p.Snapshot()
				_ = f.p.VerifyCanDisable(c)
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent cascades did not finish")
	}

	for _, status := range f.p.Snapshot() {
		assert.False(t, status.State.IsTransitional(), "%s left in %s", status.ID, status.State)
	}
}
