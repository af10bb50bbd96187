// Package form implements the create/edit dialog of a list screen: a small
// state machine around schema validation and the backend create/update call.
//
//	closed -> open(empty) -> submitting -> closed                      (create)
//	closed -> loading -> open(populated) -> submitting -> closed       (edit)
//
// A failed submission returns to open with field errors and notices.
package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/SanmishaTech/jssp-sub001/internal/apiclient"
	"github.com/SanmishaTech/jssp-sub001/internal/domain"
	"github.com/SanmishaTech/jssp-sub001/internal/metrics"
	"github.com/SanmishaTech/jssp-sub001/internal/screen"
)

// State is the dialog state.
type State int

const (
	Closed State = iota
	Loading
	Open
	Submitting
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Open:
		return "open"
	case Submitting:
		return "submitting"
	default:
		return "closed"
	}
}

// Mode tells create and edit apart.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

var (
	// ErrNotOpen is returned when submitting a dialog that is not open.
	ErrNotOpen = errors.New("form: dialog is not open")
	// ErrSuperseded is returned when a submission failed after the dialog was
	// closed or reopened.
	ErrSuperseded = errors.New("form: dialog superseded")
)

// Notice is a transient notification produced by the dialog.
type Notice struct {
	Kind    string // "success" or "error"
	Field   string // set for field-level errors
	Message string
}

// Backend is the part of the REST client the dialog needs.
type Backend interface {
	Get(ctx context.Context, token, resource, key, id string) (apiclient.Entity, error)
	Create(ctx context.Context, token, resource, key string, p apiclient.Payload) (apiclient.Entity, error)
	Update(ctx context.Context, token, resource, key, id string, p apiclient.Payload) (apiclient.Entity, error)
}

// Owner is the list that refetches after a successful submission.
type Owner interface {
	AfterCreate(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// Snapshot is a copy of the dialog state for rendering.
type Snapshot struct {
	State  State
	Mode   Mode
	ID     string
	Fields []screen.FieldSpec
	Values map[string]string
	// Errors holds one display message per field.
	Errors map[string]string
}

// Config configures a dialog.
type Config struct {
	Screen      *screen.Screen
	Schema      *Schema
	Backend     Backend
	Owner       Owner
	Token       string
	MaxImageDim int
	Logger      *slog.Logger
}

// Dialog is the form of one screen for one session.
type Dialog struct {
	cfg    Config
	logger *slog.Logger
	life   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	mode    Mode
	id      string
	values  map[string]string
	errs    map[string][]string
	notices []Notice
	gen     uint64
}

// New creates a closed dialog. parent bounds the lifetime of background fetches.
func New(parent context.Context, cfg Config) *Dialog {
	life, cancel := context.WithCancel(parent)
	return &Dialog{
		cfg:    cfg,
		logger: cfg.Logger.With("screen", cfg.Screen.Slug, "component", "form"),
		life:   life,
		cancel: cancel,
	}
}

// OpenCreate opens an empty form.
func (d *Dialog) OpenCreate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.state, d.mode, d.id = Open, ModeCreate, ""
	d.values = make(map[string]string)
	d.errs = nil
}

// OpenEdit enters the loading state and fetches the entity in the
// background. The returned channel is closed when the fetch completes.
func (d *Dialog) OpenEdit(id string) <-chan struct{} {
	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.state, d.mode, d.id = Loading, ModeEdit, id
	d.values = make(map[string]string)
	d.errs = nil
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.fetch(gen, id)
	}()
	return done
}

func (d *Dialog) fetch(gen uint64, id string) {
	s := d.cfg.Screen
	entity, err := d.cfg.Backend.Get(d.life, d.cfg.Token, s.Resource, s.EntityKey, id)

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen || d.state != Loading {
		d.logger.Debug("discarding stale entity fetch", "id", id)
		return
	}
	if err != nil {
		d.logger.Warn("entity fetch failed", "id", id, "error", err)
		d.state = Closed
		d.values = nil
		d.notices = append(d.notices, Notice{Kind: "error", Message: noticeMessage(err)})
		return
	}

	values := make(map[string]string)
	for _, f := range d.cfg.Schema.Fields(ModeEdit) {
		if f.IsFile() || f.Type == screen.FieldPassword {
			continue
		}
		v, ok := apiclient.Lookup(entity, f.Name)
		if !ok {
			continue
		}
		values[f.Name] = editValue(f, apiclient.Stringify(v))
	}
	d.values = values
	d.state = Open
}

// editValue adapts backend values to what the input expects.
func editValue(f screen.FieldSpec, v string) string {
	if f.Type == screen.FieldDate && len(v) > 10 {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t.Format(time.DateOnly)
		}
		return v[:10]
	}
	return v
}

// Snapshot returns a copy of the current state.
func (d *Dialog) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := Snapshot{
		State:  d.state,
		Mode:   d.mode,
		ID:     d.id,
		Values: make(map[string]string, len(d.values)),
		Errors: make(map[string]string, len(d.errs)),
	}
	if d.state != Closed {
		snap.Fields = d.cfg.Schema.Fields(d.mode)
	}
	for k, v := range d.values {
		snap.Values[k] = v
	}
	for k, msgs := range d.errs {
		snap.Errors[k] = strings.Join(msgs, " ")
	}
	return snap
}

// TakeNotices returns pending notices and clears them.
func (d *Dialog) TakeNotices() []Notice {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.notices
	d.notices = nil
	return n
}

// Submit validates values and sends them to the backend. Local validation
// failures return a *domain.ValidationError without any network call. Backend
// failures leave the dialog open with field errors and notices; success closes
// it and signals the owner to refetch.
func (d *Dialog) Submit(ctx context.Context, values map[string]string, attachments []apiclient.Attachment) error {
	d.mu.Lock()
	if d.state != Open {
		d.mu.Unlock()
		return ErrNotOpen
	}
	mode, id, gen := d.mode, d.id, d.gen
	d.values = copyValues(values)
	d.errs = nil

	hasFile := make(map[string]bool, len(attachments))
	for _, a := range attachments {
		hasFile[a.Field] = true
	}
	if errs := d.cfg.Schema.Validate(mode, d.values, hasFile); errs != nil {
		d.errs = errs
		d.mu.Unlock()
		metrics.FormSubmitted(d.cfg.Screen.Slug, string(mode), "invalid")
		return &domain.ValidationError{Op: d.op(mode), Fields: errs}
	}
	d.state = Submitting
	payload := d.payload(mode, attachments)
	d.mu.Unlock()

	sctx, done := d.scope(ctx)
	err := d.send(sctx, mode, id, payload)
	done()

	d.mu.Lock()
	if err != nil && gen != d.gen {
		d.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		d.state = Open
		d.applyError(err)
		d.mu.Unlock()
		result := "failed"
		if domain.ErrorCode(err) == domain.EINVALID {
			result = "invalid"
		}
		metrics.FormSubmitted(d.cfg.Screen.Slug, string(mode), result)
		d.logger.Info("submission rejected", "mode", mode, "id", id, "error", err)
		return err
	}

	// The backend accepted the record even if the dialog moved on meanwhile;
	// only the state it still owns is reset.
	if gen == d.gen {
		d.gen++
		d.state, d.id = Closed, ""
		d.values, d.errs = nil, nil
	}
	d.notices = append(d.notices, Notice{Kind: "success", Message: successMessage(d.cfg.Screen, mode)})
	d.mu.Unlock()

	metrics.FormSubmitted(d.cfg.Screen.Slug, string(mode), "ok")
	d.logger.Info("submission accepted", "mode", mode, "id", id)

	if d.cfg.Owner != nil {
		var ownerErr error
		if mode == ModeCreate {
			ownerErr = d.cfg.Owner.AfterCreate(ctx)
		} else {
			ownerErr = d.cfg.Owner.Refresh(ctx)
		}
		if ownerErr != nil {
			d.logger.Warn("refetch after submission failed", "error", ownerErr)
		}
	}
	return nil
}

func (d *Dialog) send(ctx context.Context, mode Mode, id string, p apiclient.Payload) error {
	s := d.cfg.Screen
	var err error
	if mode == ModeCreate {
		_, err = d.cfg.Backend.Create(ctx, d.cfg.Token, s.Resource, s.EntityKey, p)
	} else {
		_, err = d.cfg.Backend.Update(ctx, d.cfg.Token, s.Resource, s.EntityKey, id, p)
	}
	return err
}

// applyError merges a backend failure into the dialog. Each field in a
// field-error response gets one error display and one notice. Callers hold mu.
func (d *Dialog) applyError(err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) && len(ve.Fields) > 0 {
		d.errs = make(map[string][]string, len(ve.Fields))
		for _, name := range ve.FieldNames() {
			msgs := ve.Fields[name]
			d.errs[name] = append([]string(nil), msgs...)
			d.notices = append(d.notices, Notice{Kind: "error", Field: name, Message: strings.Join(msgs, " ")})
		}
		return
	}
	d.notices = append(d.notices, Notice{Kind: "error", Message: noticeMessage(err)})
}

// payload builds the request body from the fields of the current mode.
func (d *Dialog) payload(mode Mode, attachments []apiclient.Attachment) apiclient.Payload {
	p := apiclient.Payload{Values: make(map[string]string), Multipart: d.cfg.Screen.Multipart}
	for _, f := range d.cfg.Schema.Fields(mode) {
		if f.IsFile() {
			continue
		}
		v := strings.TrimSpace(d.values[f.Name])
		if f.Type == screen.FieldPassword && v == "" {
			continue
		}
		p.Values[f.Name] = v
	}
	for _, a := range attachments {
		if _, ok := d.cfg.Screen.Field(a.Field); !ok {
			continue
		}
		scaled, err := Downscale(a, d.cfg.MaxImageDim)
		if err != nil {
			d.logger.Warn("image downscale failed, sending original", "file", a.Filename, "error", err)
		}
		p.Attachments = append(p.Attachments, scaled)
	}
	return p
}

// Close closes the dialog and drops any pending fetch.
func (d *Dialog) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	d.state, d.id = Closed, ""
	d.values, d.errs = nil, nil
}

// Teardown closes the dialog for good, cancelling background work.
func (d *Dialog) Teardown() {
	d.Close()
	d.cancel()
}

func (d *Dialog) scope(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(d.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (d *Dialog) op(mode Mode) string {
	return d.cfg.Screen.Resource + "." + string(mode)
}

func noticeMessage(err error) string {
	if e, ok := apiclient.AsError(err); ok && e.Kind == apiclient.KindMessage && e.Message != "" {
		return e.Message
	}
	switch domain.ErrorCode(err) {
	case domain.EUNAVAILABLE:
		return domain.ErrorMessage(err)
	case domain.ENOTFOUND, domain.EFORBIDDEN, domain.EUNAUTHORIZED:
		return domain.ErrorMessage(err)
	}
	return domain.GenericMessage
}

func successMessage(s *screen.Screen, mode Mode) string {
	if mode == ModeCreate {
		return fmt.Sprintf("%s created.", s.Singular)
	}
	return fmt.Sprintf("%s updated.", s.Singular)
}

func copyValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
