package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svcctl/internal/api"
	"svcctl/internal/extension"
	"svcctl/internal/orchestrator"
	"svcctl/internal/services"
	"svcctl/pkg/logging"
)

type stubLookup map[string]bool

func (s stubLookup) IsControllerServiceEnabled(id string) bool { return s[id] }

func TestAdd(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		kind    api.ComponentKind
		wantErr bool
	}{
		{"processor", "p", api.KindProcessor, false},
		{"reporting task", "r", api.KindReportingTask, false},
		{"empty id", "", api.KindProcessor, true},
		{"service kind", "s", api.KindControllerService, true},
		{"unknown kind", "u", api.ComponentKind("funnel"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(Options{})
			err := f.Add(tt.id, tt.kind, true)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			status, ok := f.Get(tt.id)
			require.True(t, ok)
			assert.Equal(t, tt.kind, status.Kind)
			assert.False(t, status.Running)
		})
	}
}

func TestAddDuplicate(t *testing.T) {
	f := New(Options{})
	require.NoError(t, f.Add("p", api.KindProcessor, true))
	assert.True(t, api.IsDuplicateID(f.Add("p", api.KindReportingTask, false)))
}

func TestReferences(t *testing.T) {
	f := New(Options{})
	require.NoError(t, f.Add("p", api.KindProcessor, true))
	require.NoError(t, f.SetServiceReference("p", "pool", "db"))
	require.NoError(t, f.SetServiceReference("p", "backup-pool", "db"))
	require.NoError(t, f.SetServiceReference("p", "schemas", "registry"))

	components := f.ReferencingComponents()
	require.Len(t, components, 1)
	assert.Equal(t, []string{"db", "registry"}, components[0].References)
	assert.True(t, components[0].AutoStart)

	require.NoError(t, f.RemoveServiceReference("p", "schemas"))
	require.NoError(t, f.SetServiceReference("p", "pool", ""))
	assert.Equal(t, []string{"db"}, f.ReferencingComponents()[0].References)

	status, _ := f.Get("p")
	assert.Equal(t, map[string]string{"backup-pool": "db"}, status.References)

	assert.True(t, api.IsNotFound(f.SetServiceReference("ghost", "x", "db")))
}

func TestStatusIsACopy(t *testing.T) {
	f := New(Options{})
	require.NoError(t, f.Add("p", api.KindProcessor, true))
	require.NoError(t, f.SetServiceReference("p", "pool", "db"))

	status, _ := f.Get("p")
	status.References["pool"] = "other"

	again, _ := f.Get("p")
	assert.Equal(t, "db", again.References["pool"])
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	f := New(Options{})
	require.NoError(t, f.Add("p", api.KindProcessor, false))

	require.NoError(t, f.StartComponent(ctx, "p"))
	assert.True(t, f.IsRunning("p"))
	status, _ := f.Get("p")
	assert.False(t, status.StartedAt.IsZero())

	require.NoError(t, f.StartComponent(ctx, "p"), "starting twice is a no-op")
	require.NoError(t, f.StopComponent(ctx, "p"))
	assert.False(t, f.IsRunning("p"))
	require.NoError(t, f.StopComponent(ctx, "p"), "stopping twice is a no-op")

	assert.True(t, api.IsNotFound(f.StartComponent(ctx, "ghost")))
	assert.True(t, api.IsNotFound(f.StopComponent(ctx, "ghost")))
	assert.False(t, f.IsRunning("ghost"))
}

func TestStartRequiresEnabledServices(t *testing.T) {
	ctx := context.Background()
	lookup := stubLookup{"db": true}
	f := New(Options{Services: lookup})
	require.NoError(t, f.Add("p", api.KindProcessor, true))
	require.NoError(t, f.SetServiceReference("p", "pool", "db"))
	require.NoError(t, f.SetServiceReference("p", "schemas", "registry"))

	err := f.StartComponent(ctx, "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry")
	assert.False(t, f.IsRunning("p"))

	lookup["registry"] = true
	require.NoError(t, f.StartComponent(ctx, "p"))
}

func TestStartStopHooks(t *testing.T) {
	ctx := context.Background()
	f := New(Options{
		OnStart: func(ctx context.Context, id string) error { return errors.New("cannot schedule") },
		OnStop:  func(ctx context.Context, id string) error { return errors.New("threads busy") },
	})
	require.NoError(t, f.Add("p", api.KindProcessor, true))

	assert.EqualError(t, f.StartComponent(ctx, "p"), "cannot schedule")
	assert.False(t, f.IsRunning("p"))
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	f := New(Options{})
	require.NoError(t, f.Add("p", api.KindProcessor, true))
	require.NoError(t, f.StartComponent(ctx, "p"))

	assert.Error(t, f.Remove("p"), "running components cannot be removed")
	require.NoError(t, f.StopComponent(ctx, "p"))
	require.NoError(t, f.Remove("p"))
	assert.Empty(t, f.Components())
	assert.True(t, api.IsNotFound(f.Remove("p")))
}

func TestComponentsSorted(t *testing.T) {
	f := New(Options{})
	require.NoError(t, f.Add("b", api.KindProcessor, true))
	require.NoError(t, f.Add("a", api.KindReportingTask, false))

	components := f.Components()
	require.Len(t, components, 2)
	assert.Equal(t, "a", components[0].ID)
	assert.Equal(t, "b", components[1].ID)
}

// TestFlowWithProvider runs both cascades against real services and a flow
// that refuses to start components whose services are not enabled.
func TestFlowWithProvider(t *testing.T) {
	ctx := context.Background()
	logging.Discard()

	f := New(Options{})
	p := orchestrator.New(orchestrator.Config{
		Factory:    extension.Builtin(),
		Components: f,
		Controller: f,
	})
	f.SetServiceLookup(p)

	pool, err := p.CreateControllerService(extension.TypeConnectionPool, "db", true)
	require.NoError(t, err)
	cache, err := p.CreateControllerService(extension.TypeCache, "cache", true)
	require.NoError(t, err)
	cache.SetServiceReference("backing-store", "db")

	require.NoError(t, f.Add("ingest", api.KindProcessor, true))
	require.NoError(t, f.SetServiceReference("ingest", "cache", "cache"))
	require.NoError(t, f.Add("report", api.KindReportingTask, true))
	require.NoError(t, f.SetServiceReference("report", "pool", "db"))

	result, err := p.ActivateReferencingComponents(ctx, pool)
	require.NoError(t, err)
	assert.Len(t, result.Applied, 4)
	assert.True(t, f.IsRunning("ingest"))
	assert.True(t, f.IsRunning("report"))
	assert.Equal(t, services.StateEnabled, cache.State())

	assert.True(t, api.IsActiveReferences(p.VerifyCanDisable(pool)))

	_, err = p.DeactivateReferencingComponents(ctx, pool)
	require.NoError(t, err)
	assert.False(t, f.IsRunning("ingest"))
	assert.False(t, f.IsRunning("report"))
	assert.Equal(t, services.StateDisabled, cache.State())

	require.NoError(t, p.VerifyCanDisable(pool))
	require.NoError(t, p.DisableControllerService(ctx, pool))
}
