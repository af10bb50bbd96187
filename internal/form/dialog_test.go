package form

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanmishaTech/jssp-sub001/internal/apiclient"
	"github.com/SanmishaTech/jssp-sub001/internal/domain"
	"github.com/SanmishaTech/jssp-sub001/internal/screen"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func staffScreen() *screen.Screen {
	return &screen.Screen{
		Slug:      "staff",
		Resource:  "staff",
		Key:       "Staff",
		EntityKey: "Staff",
		Title:     "Staff",
		Singular:  "Staff member",
		Fields: []screen.FieldSpec{
			{Name: "name", Label: "Name", Type: screen.FieldText, Rules: "required,max=20"},
			{Name: "email", Label: "Email", Type: screen.FieldEmail, Rules: "required,email"},
			{Name: "joined_on", Label: "Joined on", Type: screen.FieldDate, Rules: "omitempty,datetime=2006-01-02"},
			{Name: "password", Label: "Password", Type: screen.FieldPassword, Rules: "required,min=6"},
			{Name: "status", Label: "Status", Type: screen.FieldText, EditOnly: true, Rules: "required"},
		},
	}
}

type fakeBackend struct {
	get    func(ctx context.Context, id string) (apiclient.Entity, error)
	create func(p apiclient.Payload) error
	update func(id string, p apiclient.Payload) error
	calls  atomic.Int32
}

func (f *fakeBackend) Get(ctx context.Context, token, resource, key, id string) (apiclient.Entity, error) {
	f.calls.Add(1)
	return f.get(ctx, id)
}

func (f *fakeBackend) Create(ctx context.Context, token, resource, key string, p apiclient.Payload) (apiclient.Entity, error) {
	f.calls.Add(1)
	return nil, f.create(p)
}

func (f *fakeBackend) Update(ctx context.Context, token, resource, key, id string, p apiclient.Payload) (apiclient.Entity, error) {
	f.calls.Add(1)
	return nil, f.update(id, p)
}

type fakeOwner struct {
	created, refreshed int
}

func (o *fakeOwner) AfterCreate(context.Context) error { o.created++; return nil }
func (o *fakeOwner) Refresh(context.Context) error     { o.refreshed++; return nil }

func newDialog(t *testing.T, s *screen.Screen, b Backend, owner Owner) *Dialog {
	t.Helper()
	schema, err := NewSchema(s.Fields)
	require.NoError(t, err)
	d := New(context.Background(), Config{Screen: s, Schema: schema, Backend: b, Owner: owner, Token: "tok", Logger: discard})
	t.Cleanup(d.Teardown)
	return d
}

func TestCheckRules(t *testing.T) {
	assert.NoError(t, CheckRules("required,email"))
	assert.NoError(t, CheckRules("omitempty,datetime=2006-01-02"))
	assert.Error(t, CheckRules("requird"))

	_, err := NewSchema([]screen.FieldSpec{{Name: "x", Rules: "bogus_rule"}})
	assert.Error(t, err)
}

func TestSchema_Validate(t *testing.T) {
	schema, err := NewSchema(staffScreen().Fields)
	require.NoError(t, err)

	errs := schema.Validate(ModeCreate, map[string]string{"name": "", "email": "nope", "joined_on": "31/01/2024"}, nil)
	assert.Equal(t, map[string][]string{
		"name":      {"Name is required."},
		"email":     {"Email must be a valid email address."},
		"joined_on": {"Joined on must be a valid date."},
		"password":  {"Password is required."},
	}, errs)

	// Edit: status is shown, an empty password keeps the current one.
	errs = schema.Validate(ModeEdit, map[string]string{"name": "Asha", "email": "asha@jssp.in"}, nil)
	assert.Equal(t, map[string][]string{"status": {"Status is required."}}, errs)

	assert.Nil(t, schema.Validate(ModeCreate, map[string]string{"name": "Asha", "email": "asha@jssp.in", "password": "secret1"}, nil))
}

func TestOpenEdit_ShowsLoadingWhileFetchPending(t *testing.T) {
	release := make(chan struct{})
	b := &fakeBackend{get: func(ctx context.Context, id string) (apiclient.Entity, error) {
		<-release
		return apiclient.Entity{"id": id, "name": "Asha", "email": "asha@jssp.in", "joined_on": "2024-01-31T00:00:00.000000Z", "status": "active"}, nil
	}}
	d := newDialog(t, staffScreen(), b, nil)

	done := d.OpenEdit("7")

	snap := d.Snapshot()
	assert.Equal(t, Loading, snap.State)
	assert.Equal(t, "7", snap.ID)
	assert.Empty(t, snap.Values)
	assert.ErrorIs(t, d.Submit(context.Background(), map[string]string{"name": "x"}, nil), ErrNotOpen)

	close(release)
	<-done

	snap = d.Snapshot()
	assert.Equal(t, Open, snap.State)
	assert.Equal(t, ModeEdit, snap.Mode)
	assert.Equal(t, "Asha", snap.Values["name"])
	assert.Equal(t, "2024-01-31", snap.Values["joined_on"])
	assert.NotContains(t, snap.Values, "password")
}

func TestOpenEdit_CloseDiscardsPendingFetch(t *testing.T) {
	release := make(chan struct{})
	b := &fakeBackend{get: func(ctx context.Context, id string) (apiclient.Entity, error) {
		<-release
		return apiclient.Entity{"id": id, "name": "Asha"}, nil
	}}
	d := newDialog(t, staffScreen(), b, nil)

	done := d.OpenEdit("7")
	d.Close()
	close(release)
	<-done

	snap := d.Snapshot()
	assert.Equal(t, Closed, snap.State)
	assert.Empty(t, snap.Values)
}

func TestOpenEdit_FetchFailureClosesWithNotice(t *testing.T) {
	b := &fakeBackend{get: func(ctx context.Context, id string) (apiclient.Entity, error) {
		return nil, domain.NotFound("staff.get", "Staff", id)
	}}
	d := newDialog(t, staffScreen(), b, nil)

	<-d.OpenEdit("404")

	assert.Equal(t, Closed, d.Snapshot().State)
	notices := d.TakeNotices()
	require.Len(t, notices, 1)
	assert.Equal(t, "error", notices[0].Kind)
	assert.Empty(t, d.TakeNotices())
}

func TestSubmit_LocalValidationBlocksNetworkCall(t *testing.T) {
	b := &fakeBackend{create: func(apiclient.Payload) error {
		t.Fatal("backend must not be called")
		return nil
	}}
	d := newDialog(t, staffScreen(), b, nil)
	d.OpenCreate()

	err := d.Submit(context.Background(), map[string]string{"name": "Asha"}, nil)

	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"email", "password"}, ve.FieldNames())
	assert.Equal(t, int32(0), b.calls.Load())

	snap := d.Snapshot()
	assert.Equal(t, Open, snap.State)
	assert.Equal(t, "Asha", snap.Values["name"])
	assert.Equal(t, "Email is required.", snap.Errors["email"])
	assert.Empty(t, d.TakeNotices())
}

// The real client is used here so the backend's error payload travels the
// full decoding path.
func TestSubmit_ServerFieldErrorsOnePerField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"message":"The given data was invalid.","errors":{
			"email":["The email has already been taken.","The email domain is blocked."],
			"name":["The name format is invalid."]}}`)
	}))
	defer srv.Close()

	client, err := apiclient.New(apiclient.Config{BaseURL: srv.URL}, discard)
	require.NoError(t, err)

	owner := &fakeOwner{}
	d := newDialog(t, staffScreen(), client, owner)
	d.OpenCreate()

	err = d.Submit(context.Background(), map[string]string{"name": "Asha", "email": "asha@jssp.in", "password": "secret1"}, nil)
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	snap := d.Snapshot()
	assert.Equal(t, Open, snap.State)
	assert.Equal(t, map[string]string{
		"email": "The email has already been taken. The email domain is blocked.",
		"name":  "The name format is invalid.",
	}, snap.Errors)

	notices := d.TakeNotices()
	require.Len(t, notices, 2)
	assert.Equal(t, "email", notices[0].Field)
	assert.Equal(t, "name", notices[1].Field)
	assert.Zero(t, owner.created)
}

func TestSubmit_NonFieldFailuresProduceOneNotice(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "message only",
			err:  &apiclient.Error{Kind: apiclient.KindMessage, Op: "staff.create", Status: http.StatusConflict, Message: "Employee code already exists."},
			want: "Employee code already exists.",
		},
		{
			name: "unknown shape",
			err:  &apiclient.Error{Kind: apiclient.KindUnknown, Op: "staff.create", Status: http.StatusInternalServerError},
			want: domain.GenericMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{create: func(apiclient.Payload) error { return tt.err }}
			d := newDialog(t, staffScreen(), b, nil)
			d.OpenCreate()

			err := d.Submit(context.Background(), map[string]string{"name": "Asha", "email": "asha@jssp.in", "password": "secret1"}, nil)
			require.Error(t, err)

			assert.Equal(t, Open, d.Snapshot().State)
			assert.Empty(t, d.Snapshot().Errors)
			notices := d.TakeNotices()
			require.Len(t, notices, 1)
			assert.Equal(t, tt.want, notices[0].Message)
		})
	}
}

func TestSubmit_SuccessClosesAndSignalsOwner(t *testing.T) {
	var sent apiclient.Payload
	b := &fakeBackend{
		get: func(ctx context.Context, id string) (apiclient.Entity, error) {
			return apiclient.Entity{"id": id, "name": "Asha", "email": "asha@jssp.in", "status": "active"}, nil
		},
		create: func(p apiclient.Payload) error { sent = p; return nil },
		update: func(id string, p apiclient.Payload) error { sent = p; return nil },
	}
	owner := &fakeOwner{}
	d := newDialog(t, staffScreen(), b, owner)

	d.OpenCreate()
	require.NoError(t, d.Submit(context.Background(), map[string]string{"name": " Asha ", "email": "asha@jssp.in", "password": "secret1", "status": "ignored"}, nil))

	assert.Equal(t, Closed, d.Snapshot().State)
	assert.Empty(t, d.Snapshot().Values)
	assert.Equal(t, 1, owner.created)
	assert.Equal(t, "Asha", sent.Values["name"])
	assert.NotContains(t, sent.Values, "status")
	assert.Equal(t, []Notice{{Kind: "success", Message: "Staff member created."}}, d.TakeNotices())

	<-d.OpenEdit("7")
	require.NoError(t, d.Submit(context.Background(), map[string]string{"name": "Asha K", "email": "asha@jssp.in", "status": "active"}, nil))

	assert.Equal(t, 1, owner.refreshed)
	assert.NotContains(t, sent.Values, "password")
	assert.Equal(t, "Asha K", sent.Values["name"])
}

func TestSubmit_AcceptedAfterCloseStillSignalsOwner(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	b := &fakeBackend{create: func(p apiclient.Payload) error {
		close(entered)
		<-release
		return nil
	}}
	owner := &fakeOwner{}
	d := newDialog(t, staffScreen(), b, owner)

	d.OpenCreate()
	result := make(chan error, 1)
	go func() {
		result <- d.Submit(context.Background(), map[string]string{"name": "Asha", "email": "asha@jssp.in", "password": "secret1"}, nil)
	}()

	<-entered
	d.Close()
	close(release)

	require.NoError(t, <-result)
	assert.Equal(t, 1, owner.created)
	assert.Equal(t, Closed, d.Snapshot().State)
	assert.Equal(t, []Notice{{Kind: "success", Message: "Staff member created."}}, d.TakeNotices())
}

func TestSubmit_AcceptedAfterReopenKeepsNewDialog(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	b := &fakeBackend{create: func(p apiclient.Payload) error {
		close(entered)
		<-release
		return nil
	}}
	owner := &fakeOwner{}
	d := newDialog(t, staffScreen(), b, owner)

	d.OpenCreate()
	result := make(chan error, 1)
	go func() {
		result <- d.Submit(context.Background(), map[string]string{"name": "Asha", "email": "asha@jssp.in", "password": "secret1"}, nil)
	}()

	<-entered
	d.Close()
	d.OpenCreate()
	close(release)

	require.NoError(t, <-result)
	assert.Equal(t, 1, owner.created)
	assert.Equal(t, Open, d.Snapshot().State)
}

func TestSubmit_FailureAfterCloseIsSuperseded(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	b := &fakeBackend{create: func(p apiclient.Payload) error {
		close(entered)
		<-release
		return &apiclient.Error{Kind: apiclient.KindMessage, Status: http.StatusConflict, Message: "Duplicate."}
	}}
	owner := &fakeOwner{}
	d := newDialog(t, staffScreen(), b, owner)

	d.OpenCreate()
	result := make(chan error, 1)
	go func() {
		result <- d.Submit(context.Background(), map[string]string{"name": "Asha", "email": "asha@jssp.in", "password": "secret1"}, nil)
	}()

	<-entered
	d.Close()
	close(release)

	assert.ErrorIs(t, <-result, ErrSuperseded)
	assert.Zero(t, owner.created)
	assert.Empty(t, d.TakeNotices())
}
