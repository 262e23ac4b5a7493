package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"svcctl/internal/api"
	"svcctl/internal/services"
	"svcctl/pkg/logging"
)

// journal records side effects in the order they happen
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...interface{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.entries))
	copy(out, j.entries)
	return out
}

func (j *journal) reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = nil
}

// mockController implements ComponentSource and ComponentController
type mockController struct {
	mu         sync.Mutex
	components map[string]*ReferencingComponent
	running    map[string]bool
	startErr   map[string]error
	stopErr    map[string]error
	j          *journal
}

func newMockController(j *journal) *mockController {
	return &mockController{
		components: make(map[string]*ReferencingComponent),
		running:    make(map[string]bool),
		startErr:   make(map[string]error),
		stopErr:    make(map[string]error),
		j:          j,
	}
}

func (m *mockController) ReferencingComponents() []ReferencingComponent {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.components))
	for id := range m.components {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]ReferencingComponent, 0, len(ids))
	for _, id := range ids {
		c := *m.components[id]
		c.References = append([]string(nil), c.References...)
		out = append(out, c)
	}
	return out
}

func (m *mockController) StartComponent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.startErr[id]; err != nil {
		return err
	}
	m.running[id] = true
	m.j.add("start:%s", id)
	return nil
}

func (m *mockController) StopComponent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.stopErr[id]; err != nil {
		return err
	}
	m.running[id] = false
	m.j.add("stop:%s", id)
	return nil
}

func (m *mockController) IsRunning(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[id]
}

func (m *mockController) add(c ReferencingComponent, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[c.ID] = &c
	m.running[c.ID] = running
}

// fixture wires a provider to a mock controller and journaling hooks
type fixture struct {
	t    *testing.T
	p    *Provider
	ctrl *mockController
	j    *journal

	failMu      sync.Mutex
	failEnable  map[string]error
	failDisable map[string]error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logging.Discard()

	f := &fixture{
		t:           t,
		j:           &journal{},
		failEnable:  make(map[string]error),
		failDisable: make(map[string]error),
	}
	f.ctrl = newMockController(f.j)

	hooks := services.Hooks{
		OnEnabled: func(ctx context.Context, id string, instance services.Instance) error {
			if err := f.enableErr(id); err != nil {
				return err
			}
			f.j.add("enable:%s", id)
			return nil
		},
		OnDisabled: func(ctx context.Context, id string, instance services.Instance) error {
			f.j.add("disable:%s", id)
			return f.disableErr(id)
		},
	}

	f.p = New(Config{
		Factory:    testFactory(),
		Hooks:      &hooks,
		Components: f.ctrl,
		Controller: f.ctrl,
	})
	return f
}

func (f *fixture) enableErr(id string) error {
	f.failMu.Lock()
	defer f.failMu.Unlock()
	return f.failEnable[id]
}

func (f *fixture) disableErr(id string) error {
	f.failMu.Lock()
	defer f.failMu.Unlock()
	return f.failDisable[id]
}

func (f *fixture) failOnEnable(id string, err error) {
	f.failMu.Lock()
	defer f.failMu.Unlock()
	f.failEnable[id] = err
}

func (f *fixture) failOnDisable(id string, err error) {
	f.failMu.Lock()
	defer f.failMu.Unlock()
	f.failDisable[id] = err
}

// service creates a DISABLED service referencing refs
func (f *fixture) service(id string, refs ...string) *services.ServiceNode {
	f.t.Helper()
	node, err := f.p.CreateControllerService("X", id, true)
	require.NoError(f.t, err)
	for i, ref := range refs {
		node.SetServiceReference(fmt.Sprintf("ref-%d", i), ref)
	}
	return node
}

// enabledService creates a service and enables it without journaling
func (f *fixture) enabledService(id string, refs ...string) *services.ServiceNode {
	f.t.Helper()
	node := f.service(id, refs...)
	require.NoError(f.t, f.p.EnableControllerService(context.Background(), node))
	return node
}

func (f *fixture) processor(id string, autoStart, running bool, refs ...string) {
	f.ctrl.add(ReferencingComponent{ID: id, Kind: api.KindProcessor, References: refs, AutoStart: autoStart}, running)
}

func (f *fixture) reportingTask(id string, autoStart, running bool, refs ...string) {
	f.ctrl.add(ReferencingComponent{ID: id, Kind: api.KindReportingTask, References: refs, AutoStart: autoStart}, running)
}

func (f *fixture) state(id string) services.ServiceState {
	f.t.Helper()
	node, ok := f.p.GetControllerServiceNode(id)
	require.True(f.t, ok, "service %s missing", id)
	return node.State()
}

func testFactory() services.Factory {
	return services.FactoryFunc(func(typeName string) (services.Instance, error) {
		switch typeName {
		case "X", "Y":
			return &struct{ typeName string }{typeName}, nil
		default:
			return nil, &api.UnknownTypeError{TypeName: typeName}
		}
	})
}

func procRef(id string) api.ComponentRef {
	return api.ComponentRef{ID: id, Kind: api.KindProcessor}
}

func svcRef(id string) api.ComponentRef {
	return api.ComponentRef{ID: id, Kind: api.KindControllerService}
}
