package listview

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanmishaTech/jssp-sub001/internal/apiclient"
	"github.com/SanmishaTech/jssp-sub001/internal/screen"
)

type fakeClient struct {
	*fakeBackend
}

func (fakeClient) Get(ctx context.Context, token, resource, key, id string) (apiclient.Entity, error) {
	return apiclient.Entity{"id": id}, nil
}

func (fakeClient) Create(ctx context.Context, token, resource, key string, p apiclient.Payload) (apiclient.Entity, error) {
	return nil, nil
}

func (fakeClient) Update(ctx context.Context, token, resource, key, id string, p apiclient.Payload) (apiclient.Entity, error) {
	return nil, nil
}

func newRegistry(t *testing.T) (*Registry, *screen.Catalogue) {
	t.Helper()
	cat, err := screen.Load(strings.NewReader(`
screens:
  - slug: rooms
    key: Rooms
    headers: [{label: Room, key: one, field: name}]
    fields: [{name: name, rules: required}]
  - slug: events
    key: Events
    headers: [{label: Venue, key: one, field: venue}]
`))
	require.NoError(t, err)

	r, err := NewRegistry(RegistryConfig{
		Catalogue: cat,
		Client:    fakeClient{&fakeBackend{total: 1, perPage: 10}},
		IdleTTL:   time.Minute,
		Logger:    discard,
	})
	require.NoError(t, err)
	t.Cleanup(r.Shutdown)
	return r, cat
}

func TestNewRegistry_RejectsUnknownRules(t *testing.T) {
	cat, err := screen.Load(strings.NewReader(`
screens:
  - slug: rooms
    key: Rooms
    headers: [{label: Room, key: one, field: name}]
    fields: [{name: name, rules: "required,nonsense"}]
`))
	require.NoError(t, err)

	_, err = NewRegistry(RegistryConfig{Catalogue: cat, Logger: discard})
	assert.ErrorContains(t, err, "rooms")
}

func TestRegistry_InstancePerSessionAndScreen(t *testing.T) {
	r, cat := newRegistry(t)
	rooms, _ := cat.Get("rooms")
	events, _ := cat.Get("events")

	a := r.Instance("s1", "tok1", rooms)
	assert.Same(t, a, r.Instance("s1", "tok1", rooms))
	assert.NotSame(t, a, r.Instance("s1", "tok1", events))
	assert.NotSame(t, a, r.Instance("s2", "tok2", rooms))
	assert.Equal(t, 3, r.Len())

	got, ok := r.Lookup("s1", "rooms")
	require.True(t, ok)
	assert.Same(t, a, got)
	_, ok = r.Lookup("s3", "rooms")
	assert.False(t, ok)
}

func TestRegistry_CloseSessionTearsDownInstances(t *testing.T) {
	r, cat := newRegistry(t)
	rooms, _ := cat.Get("rooms")
	events, _ := cat.Get("events")

	a := r.Instance("s1", "tok1", rooms)
	b := r.Instance("s1", "tok1", events)
	other := r.Instance("s2", "tok2", rooms)

	assert.Equal(t, 2, r.CloseSession("s1"))
	assert.True(t, a.Controller.Closed())
	assert.True(t, b.Controller.Closed())
	assert.False(t, other.Controller.Closed())
	assert.Equal(t, 1, r.Len())

	assert.ErrorIs(t, a.Controller.Refresh(context.Background()), ErrClosed)
}

func TestRegistry_SweepClosesIdleInstances(t *testing.T) {
	r, cat := newRegistry(t)
	rooms, _ := cat.Get("rooms")
	events, _ := cat.Get("events")

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	idle := r.Instance("s1", "tok", rooms)
	now = now.Add(50 * time.Second)
	busy := r.Instance("s1", "tok", events)

	now = now.Add(20 * time.Second)
	assert.Equal(t, 1, r.Sweep())
	assert.True(t, idle.Controller.Closed())
	assert.False(t, busy.Controller.Closed())

	// The dialog and controller are wired together: a successful create
	// refetches the list.
	busy.Dialog.OpenCreate()
	require.NoError(t, busy.Dialog.Submit(context.Background(), map[string]string{}, nil))
	assert.NotNil(t, busy.Controller.State().Result)
}
