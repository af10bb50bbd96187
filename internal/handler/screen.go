package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/SanmishaTech/jssp-sub001/internal/apiclient"
	"github.com/SanmishaTech/jssp-sub001/internal/domain"
	"github.com/SanmishaTech/jssp-sub001/internal/form"
	"github.com/SanmishaTech/jssp-sub001/internal/listview"
	"github.com/SanmishaTech/jssp-sub001/internal/screen"
	"github.com/SanmishaTech/jssp-sub001/internal/session"
	"github.com/SanmishaTech/jssp-sub001/internal/table"
)

// =============================================================================
// Template Data Types
// =============================================================================

// ScreenPageData contains data for a list screen.
type ScreenPageData struct {
	PageData
	Screen    *screen.Screen
	Table     table.View
	Dialog    DialogView
	CanCreate bool
}

// DialogView is the create/edit dialog as the templates see it.
type DialogView struct {
	Slug      string
	Title     string
	State     string // closed, loading, open, submitting
	IsEdit    bool
	ID        string
	Action    string // form target, used for both htmx and plain posts
	Multipart bool
	PollURL   string
	CloseURL  string
	CSRFToken string
	Fields    []FieldView
}

// Open reports whether the dialog shows a form.
func (d DialogView) Open() bool {
	return d.State == form.Open.String() || d.State == form.Submitting.String()
}

// Loading reports whether the dialog waits for the entity to edit.
func (d DialogView) Loading() bool {
	return d.State == form.Loading.String()
}

// FieldView is one form field with its current value and error.
type FieldView struct {
	screen.FieldSpec
	Value string
	Error string
}

// DetailRow is one label/value pair on the detail page.
type DetailRow struct {
	Label string
	Value string
}

// DetailPageData contains data for the detail and delete confirmation pages.
type DetailPageData struct {
	PageData
	Screen  *screen.Screen
	ID      string
	Rows    []DetailRow
	BackURL string
	CanEdit bool
	CanDel  bool
}

// =============================================================================
// Handler Configuration
// =============================================================================

// ScreenRegistry holds the mounted screen instances of every session.
type ScreenRegistry interface {
	Instance(sessionID, token string, s *screen.Screen) *listview.Instance
	Lookup(sessionID, slug string) (*listview.Instance, bool)
	CloseSession(sessionID string) int
}

// EntityGetter fetches one entity for the detail page.
type EntityGetter interface {
	Get(ctx context.Context, token, resource, key, id string) (apiclient.Entity, error)
}

// SessionDeleter removes sessions the backend no longer accepts.
type SessionDeleter interface {
	Delete(id string)
}

// ScreenHandlerConfig holds the dependencies of a ScreenHandler.
type ScreenHandlerConfig struct {
	Catalogue *screen.Catalogue
	Registry  ScreenRegistry
	Client    EntityGetter
	Sessions  SessionDeleter
	Renderer  TemplateRenderer
	Logger    *slog.Logger

	// UploadMaxBytes bounds the in-memory part of multipart forms.
	UploadMaxBytes int64
	// EditWait is how long opening the edit dialog waits for the entity
	// before answering with the loading state.
	EditWait time.Duration
	IsSecure bool
}

// ScreenHandler serves every screen of the catalogue. Each screen gets its
// own routes; the handlers share one implementation.
type ScreenHandler struct {
	catalogue      *screen.Catalogue
	registry       ScreenRegistry
	client         EntityGetter
	sessions       SessionDeleter
	renderer       TemplateRenderer
	logger         *slog.Logger
	uploadMaxBytes int64
	editWait       time.Duration
	isSecure       bool
}

// NewScreenHandler creates a new ScreenHandler.
func NewScreenHandler(cfg ScreenHandlerConfig) *ScreenHandler {
	h := &ScreenHandler{
		catalogue:      cfg.Catalogue,
		registry:       cfg.Registry,
		client:         cfg.Client,
		sessions:       cfg.Sessions,
		renderer:       cfg.Renderer,
		logger:         cfg.Logger,
		uploadMaxBytes: cfg.UploadMaxBytes,
		editWait:       cfg.EditWait,
		isSecure:       cfg.IsSecure,
	}
	if h.uploadMaxBytes <= 0 {
		h.uploadMaxBytes = 10 << 20
	}
	if h.editWait <= 0 {
		h.editWait = 250 * time.Millisecond
	}
	return h
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers the routes of every screen with the provided mux.
//
// All routes require authentication via the requireUser middleware.
//
// Routes, for each screen slug:
// - GET    /{slug}               -> Index (list page, table partial for htmx)
// - GET    /{slug}/table         -> Table (pager, refresh)
// - POST   /{slug}/search        -> Search
// - GET    /{slug}/new           -> New (create dialog)
// - POST   /{slug}               -> Create
// - GET    /{slug}/dialog        -> Dialog (poll while loading)
// - POST   /{slug}/dialog/close  -> CloseDialog
// - GET    /{slug}/{id}          -> Show
// - GET    /{slug}/{id}/edit     -> Edit
// - PUT    /{slug}/{id}          -> Update (POST for plain forms)
// - GET    /{slug}/{id}/delete   -> ConfirmDelete
// - DELETE /{slug}/{id}          -> Delete (POST /{slug}/{id}/delete for plain forms)
func (h *ScreenHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	for _, s := range h.catalogue.All() {
		base := "/" + s.Slug
		route := func(pattern string, fn func(http.ResponseWriter, *http.Request, *screen.Screen)) {
			mux.Handle(pattern, requireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fn(w, r, s)
			})))
		}

		route("GET "+base, h.Index)
		route("GET "+base+"/table", h.Table)
		route("POST "+base+"/search", h.Search)
		route("GET "+base+"/dialog", h.Dialog)
		route("POST "+base+"/dialog/close", h.CloseDialog)

		if len(s.Fields) > 0 {
			route("GET "+base+"/new", h.New)
			route("POST "+base, h.Create)
		}
		if s.HasAction(screen.ActionView) {
			route("GET "+base+"/{id}", h.Show)
		}
		if s.HasAction(screen.ActionEdit) && len(s.Fields) > 0 {
			route("GET "+base+"/{id}/edit", h.Edit)
			route("PUT "+base+"/{id}", h.Update)
			route("POST "+base+"/{id}", h.Update)
		}
		if s.HasAction(screen.ActionDelete) {
			route("GET "+base+"/{id}/delete", h.ConfirmDelete)
			route("DELETE "+base+"/{id}", h.Delete)
			route("POST "+base+"/{id}/delete", h.Delete)
		}
	}
}

// =============================================================================
// GET /{slug} - List Page
// =============================================================================

// Index loads the requested page of the listing. Full page loads mount the
// screen with a closed dialog; htmx requests get the table partial only and,
// on a mounted screen, page through PageChange like the pager does.
func (h *ScreenHandler) Index(w http.ResponseWriter, r *http.Request, s *screen.Screen) {
	sess, inst, ok := h.instance(w, r, s)
	if !ok {
		return
	}

	var err error
	q := listview.QueryFromRequest(r)
	st := inst.Controller.State()
	if isHTMX(r) && st.Result != nil && q.Search == st.Query.Search {
		err = inst.Controller.PageChange(r.Context(), q.Page)
	} else {
		err = inst.Controller.Load(r.Context(), q)
	}
	if h.sessionRejected(w, r, sess, err) {
		return
	}

	if isHTMX(r) {
		h.renderTable(w, inst, http.StatusOK)
		return
	}

	inst.Dialog.Close()
	h.renderPage(w, r, inst, http.StatusOK)
}

// =============================================================================
// GET /{slug}/table - Table Partial
// =============================================================================

// Table answers pager links and refresh triggers. Without query parameters
// it renders the current state; a page of the current search goes through
// PageChange so out-of-range pages are ignored.
func (h *ScreenHandler) Table(w http.ResponseWriter, r *http.Request, s *screen.Screen) {
	sess, inst, ok := h.instance(w, r, s)
	if !ok {
		return
	}

	var err error
	params := r.URL.Query()
	st := inst.Controller.State()
	switch {
	case !params.Has("page") && !params.Has("search"):
		if st.Result == nil {
			err = inst.Controller.Refresh(r.Context())
		}
	default:
		q := listview.QueryFromRequest(r)
		if st.Result != nil && q.Search == st.Query.Search {
			err = inst.Controller.PageChange(r.Context(), q.Page)
		} else {
			err = inst.Controller.Load(r.Context(), q)
		}
	}
	if h.sessionRejected(w, r, sess, err) {
		return
	}

	h.renderTable(w, inst, http.StatusOK)
}

// =============================================================================
// POST /{slug}/search - Search
// =============================================================================

// Search runs a new search from page 1.
func (h *ScreenHandler) Search(w http.ResponseWriter, r *http.Request, s *screen.Screen) {
	sess, inst, ok := h.instance(w, r, s)
	if !ok {
		return
	}

	q := listview.QueryFromRequest(r)
	err := inst.Controller.Search(r.Context(), q.Search)
	if h.sessionRejected(w, r, sess, err) {
		return
	}

	if !isHTMX(r) {
		http.Redirect(w, r, listURL(s, inst.Controller.State().Query), http.StatusSeeOther)
		return
	}
	w.Header().Set("HX-Push-Url", listURL(s, inst.Controller.State().Query))
	h.renderTable(w, inst, http.StatusOK)
}

// =============================================================================
// GET /{slug}/new, POST /{slug} - Create
// =============================================================================

// New opens an empty create dialog.
func (h *ScreenHandler) New(w http.ResponseWriter, r *http.Request, s *screen.Screen) {
	sess, inst, ok := h.instance(w, r, s)
	if !ok {
		return
	}
	inst.Dialog.OpenCreate()

	if isHTMX(r) {
		h.renderDialog(w, r, inst, http.StatusOK)
		return
	}
	if err := h.ensureLoaded(r.Context(), inst); h.sessionRejected(w, r, sess, err) {
		return
	}
	h.renderPage(w, r, inst, http.StatusOK)
}

// Create submits the create dialog. A plain form post opens the dialog first
// so that the page works without JavaScript.
func (h *ScreenHandler) Create(w http.ResponseWriter, r *http.Request, s *screen.Screen) {
	_, inst, ok := h.instance(w, r, s)
	if !ok {
		return
	}

	snap := inst.Dialog.Snapshot()
	if snap.State == form.Closed || snap.Mode != form.ModeCreate {
		inst.Dialog.OpenCreate()
	}
	h.submit(w, r, inst)
}

// =============================================================================
// GET /{slug}/{id}/edit, PUT /{slug}/{id} - Edit
// =============================================================================

// Edit opens the edit dialog. The entity is fetched in the background; if it
// does not arrive within the edit wait the loading state is returned and the
// dialog polls GET /{slug}/dialog.
func (h *ScreenHandler) Edit(w http.ResponseWriter, r *http.Request, s *screen.Screen) {
	sess, inst, ok := h.instance(w, r, s)
	if !ok {
		return
	}

	done := inst.Dialog.OpenEdit(r.PathValue("id"))

	if isHTMX(r) {
		select {
		case <-done:
		case <-time.After(h.editWait):
		case <-r.Context().Done():
			return
		}
		h.renderDialog(w, r, inst, http.StatusOK)
		return
	}

	select {
	case <-done:
	case <-r.Context().Done():
		return
	}
	if err := h.ensureLoaded(r.Context(), inst); h.sessionRejected(w, r, sess, err) {
		return
	}
	h.renderPage(w, r, inst, http.StatusOK)
}

// Update submits the edit dialog. The dialog must be open on the same record.
func (h *ScreenHandler) Update(w http.ResponseWriter, r *http.Request, s *screen.Screen) {
	_, inst, ok := h.instance(w, r, s)
	if !ok {
		return
	}

	snap := inst.Dialog.Snapshot()
	if snap.Mode != form.ModeEdit || snap.ID != r.PathValue("id") || snap.State == form.Closed {
		h.conflict(w, r, inst, "This form is no longer open. Open the record again to edit it.")
		return
	}
	h.submit(w, r, inst)
}

// submit reads the posted form and hands it to the dialog.
func (h *ScreenHandler) submit(w http.ResponseWriter, r *http.Request, inst *listview.Instance) {
	s := inst.Controller.Screen()
	sess := session.FromRequest(r)

	values, attachments, err := h.readForm(r, s)
	if err != nil {
		h.logger.Info("form could not be read", "screen", s.Slug, "error", err)
		msg := "The form could not be read. Please try again."
		if domain.ErrorCode(err) == domain.ETOOLARGE {
			msg = domain.ErrorMessage(err)
		}
		h.failDialog(w, r, inst, ErrorCodeToHTTPStatus(domain.ErrorCode(err)), msg)
		return
	}

	err = inst.Dialog.Submit(r.Context(), values, attachments)
	switch {
	case err == nil:
		h.submitted(w, r, inst)
	case h.sessionRejected(w, r, sess, err):
	case errors.Is(err, form.ErrNotOpen):
		h.conflict(w, r, inst, "This form was closed or is already being saved.")
	case errors.Is(err, form.ErrSuperseded):
		h.conflict(w, r, inst, "The form was closed before it could be saved. Please try again.")
	default:
		status := http.StatusUnprocessableEntity
		if code := domain.ErrorCode(err); code != domain.EINVALID && !isHTMX(r) {
			status = ErrorCodeToHTTPStatus(code)
		}
		h.respondDialog(w, r, inst, status)
	}
}

// submitted answers a successful submission: the dialog closes and the table
// refreshes itself through the changed event.
func (h *ScreenHandler) submitted(w http.ResponseWriter, r *http.Request, inst *listview.Instance) {
	s := inst.Controller.Screen()
	if !isHTMX(r) {
		// The success notice stays queued and is shown by the list page.
		http.Redirect(w, r, listURL(s, inst.Controller.State().Query), http.StatusSeeOther)
		return
	}
	w.Header().Set("HX-Trigger", changedEvent(s))
	h.renderDialog(w, r, inst, http.StatusOK)
}

// =============================================================================
// GET /{slug}/dialog, POST /{slug}/dialog/close
// =============================================================================

// Dialog renders the current dialog state. The loading state polls it.
func (h *ScreenHandler) Dialog(w http.ResponseWriter, r *http.Request, s *screen.Screen) {
	_, inst, ok := h.instance(w, r, s)
	if !ok {
		return
	}
	h.renderDialog(w, r, inst, http.StatusOK)
}

// CloseDialog closes the dialog, dropping any pending fetch.
func (h *ScreenHandler) CloseDialog(w http.ResponseWriter, r *http.Request, s *screen.Screen) {
	_, inst, ok := h.instance(w, r, s)
	if !ok {
		return
	}
	inst.Dialog.Close()

	if !isHTMX(r) {
		http.Redirect(w, r, listURL(s, inst.Controller.State().Query), http.StatusSeeOther)
		return
	}
	h.renderDialog(w, r, inst, http.StatusOK)
}

// =============================================================================
// GET /{slug}/{id} - Detail Page
// =============================================================================

// Show renders one record with the screen's columns.
func (h *ScreenHandler) Show(w http.ResponseWriter, r *http.Request, s *screen.Screen) {
	h.renderDetail(w, r, s, "screens/show")
}

// =============================================================================
// GET /{slug}/{id}/delete, DELETE /{slug}/{id} - Delete
// =============================================================================

// ConfirmDelete renders the confirmation page used without JavaScript.
func (h *ScreenHandler) ConfirmDelete(w http.ResponseWriter, r *http.Request, s *screen.Screen) {
	h.renderDetail(w, r, s, "screens/delete")
}

// Delete removes a record and reloads the current page of the listing.
func (h *ScreenHandler) Delete(w http.ResponseWriter, r *http.Request, s *screen.Screen) {
	sess, inst, ok := h.instance(w, r, s)
	if !ok {
		return
	}

	id := r.PathValue("id")
	err := inst.Controller.Delete(r.Context(), id)
	if h.sessionRejected(w, r, sess, err) {
		return
	}

	// A failed reload after the delete is shown by the table itself.
	toast := ToastData{Type: "success", Message: s.Singular + " deleted."}
	if err != nil && !errors.Is(err, listview.ErrReload) {
		toast = ToastData{Type: "error", Message: failureMessage(err)}
	}

	if !isHTMX(r) {
		if toast.Type == "error" {
			h.renderPage(w, r, inst, ErrorCodeToHTTPStatus(domain.ErrorCode(err)), toast)
			return
		}
		http.Redirect(w, r, listURL(s, inst.Controller.State().Query), http.StatusSeeOther)
		return
	}
	h.renderTable(w, inst, http.StatusOK, toast.withDefaults())
}

// =============================================================================
// Helpers
// =============================================================================

// instance returns the session and its instance of s.
func (h *ScreenHandler) instance(w http.ResponseWriter, r *http.Request, s *screen.Screen) (*session.Session, *listview.Instance, bool) {
	sess := session.FromRequest(r)
	if sess == nil {
		h.logger.Error("screen handler called without session", "screen", s.Slug)
		RedirectToLogin(w, r)
		return nil, nil, false
	}
	return sess, h.registry.Instance(sess.ID, sess.Token, s), true
}

// ensureLoaded loads the current query when nothing has been fetched yet.
func (h *ScreenHandler) ensureLoaded(ctx context.Context, inst *listview.Instance) error {
	if inst.Controller.State().Result != nil {
		return nil
	}
	return inst.Controller.Refresh(ctx)
}

// sessionRejected ends the session when the backend no longer accepts its
// token. Other errors are left to the caller and reported as false.
func (h *ScreenHandler) sessionRejected(w http.ResponseWriter, r *http.Request, sess *session.Session, err error) bool {
	if err == nil || !apiclient.IsUnauthorized(err) {
		return false
	}
	h.logger.Info("backend rejected session token", "user_id", sess.User.ID)
	endSession(w, sess.ID, h.sessions, h.registry, h.isSecure)
	RedirectToLogin(w, r)
	return true
}

// readForm collects the values of the screen's fields and any uploaded files.
func (h *ScreenHandler) readForm(r *http.Request, s *screen.Screen) (map[string]string, []apiclient.Attachment, error) {
	if err := h.parseForm(r); err != nil {
		return nil, nil, err
	}

	values := make(map[string]string, len(s.Fields))
	var attachments []apiclient.Attachment
	for _, f := range s.Fields {
		if !f.IsFile() {
			values[f.Name] = r.PostFormValue(f.Name)
			continue
		}
		if r.MultipartForm == nil {
			continue
		}
		for _, fh := range r.MultipartForm.File[f.Name] {
			if fh.Size == 0 {
				continue
			}
			file, err := fh.Open()
			if err != nil {
				return nil, nil, fmt.Errorf("open upload %s: %w", f.Name, err)
			}
			data, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				return nil, nil, fmt.Errorf("read upload %s: %w", f.Name, err)
			}
			attachments = append(attachments, apiclient.Attachment{
				Field:       f.Name,
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	return values, attachments, nil
}

func (h *ScreenHandler) parseForm(r *http.Request) error {
	var err error
	if isMultipart(r) {
		err = r.ParseMultipartForm(h.uploadMaxBytes)
	} else {
		err = r.ParseForm()
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return domain.Errorf(domain.ETOOLARGE, "handler.readForm", "The upload is larger than %d MB.", tooLarge.Limit>>20)
	}
	return err
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// conflict answers a submission that no longer matches the dialog state.
func (h *ScreenHandler) conflict(w http.ResponseWriter, r *http.Request, inst *listview.Instance, msg string) {
	if isHTMX(r) {
		h.renderer.RenderPartial(w, http.StatusOK, "", nil, ToastData{Type: "warning", Message: msg}.withDefaults())
		return
	}
	h.renderPage(w, r, inst, http.StatusConflict, ToastData{Type: "warning", Message: msg})
}

// failDialog re-renders the dialog with an error toast.
func (h *ScreenHandler) failDialog(w http.ResponseWriter, r *http.Request, inst *listview.Instance, status int, msg string) {
	toast := ToastData{Type: "error", Message: msg}.withDefaults()
	if isHTMX(r) {
		h.renderer.RenderPartial(w, http.StatusOK, "dialog", h.dialogView(r, inst), toast)
		return
	}
	h.renderPage(w, r, inst, status, toast)
}

// respondDialog renders the dialog after a rejected submission.
func (h *ScreenHandler) respondDialog(w http.ResponseWriter, r *http.Request, inst *listview.Instance, status int) {
	if isHTMX(r) {
		h.renderDialog(w, r, inst, status)
		return
	}
	if err := h.ensureLoaded(r.Context(), inst); err != nil {
		h.logger.Warn("list load behind rejected form failed", "error", err)
	}
	h.renderPage(w, r, inst, status)
}

// renderDialog writes the dialog partial with pending notices as toasts.
func (h *ScreenHandler) renderDialog(w http.ResponseWriter, r *http.Request, inst *listview.Instance, status int) {
	view := h.dialogView(r, inst)
	toasts := noticeToasts(inst.Controller.Screen(), inst.Dialog.TakeNotices())
	h.renderer.RenderPartial(w, status, "dialog", view, toasts...)
}

// renderTable writes the table partial.
func (h *ScreenHandler) renderTable(w http.ResponseWriter, inst *listview.Instance, status int, toasts ...ToastData) {
	h.renderer.RenderPartial(w, status, "screen_table", tableView(inst), toasts...)
}

// renderPage writes the full list page with the dialog in its current state.
func (h *ScreenHandler) renderPage(w http.ResponseWriter, r *http.Request, inst *listview.Instance, status int, extra ...ToastData) {
	s := inst.Controller.Screen()
	data := ScreenPageData{
		PageData:  newPageData(r, h.catalogue),
		Screen:    s,
		Table:     tableView(inst),
		Dialog:    h.dialogView(r, inst),
		CanCreate: len(s.Fields) > 0,
	}
	data.Toasts = append(noticeToasts(s, inst.Dialog.TakeNotices()), extra...)
	for i := range data.Toasts {
		data.Toasts[i] = data.Toasts[i].withDefaults()
	}
	h.renderer.RenderHTTPStatus(w, status, "screens/index", data)
}

// renderDetail fetches one record for the detail or delete page.
func (h *ScreenHandler) renderDetail(w http.ResponseWriter, r *http.Request, s *screen.Screen, page string) {
	sess := session.FromRequest(r)
	if sess == nil {
		RedirectToLogin(w, r)
		return
	}

	id := r.PathValue("id")
	entity, err := h.client.Get(r.Context(), sess.Token, s.Resource, s.EntityKey, id)
	if h.sessionRejected(w, r, sess, err) {
		return
	}
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	data := DetailPageData{
		PageData: newPageData(r, h.catalogue),
		Screen:   s,
		ID:       id,
		BackURL:  "/" + s.Slug,
		CanEdit:  s.HasAction(screen.ActionEdit) && len(s.Fields) > 0,
		CanDel:   s.HasAction(screen.ActionDelete),
	}
	if inst, ok := h.registry.Lookup(sess.ID, s.Slug); ok {
		data.BackURL = listURL(s, inst.Controller.State().Query)
	}
	for _, row := range table.MapRows(s, []apiclient.Entity{entity}) {
		for _, col := range s.Headers {
			if col.Key == screen.ActionKey {
				continue
			}
			data.Rows = append(data.Rows, DetailRow{Label: col.Label, Value: row.Cells[col.Key]})
		}
	}
	h.renderer.RenderHTTP(w, page, data)
}

// dialogView converts the dialog snapshot for the templates.
func (h *ScreenHandler) dialogView(r *http.Request, inst *listview.Instance) DialogView {
	s := inst.Controller.Screen()
	snap := inst.Dialog.Snapshot()

	view := DialogView{
		Slug:      s.Slug,
		State:     snap.State.String(),
		IsEdit:    snap.Mode == form.ModeEdit,
		ID:        snap.ID,
		Action:    "/" + s.Slug,
		Multipart: s.Multipart || s.HasFileFields(),
		PollURL:   "/" + s.Slug + "/dialog",
		CloseURL:  "/" + s.Slug + "/dialog/close",
		CSRFToken: newPageData(r, h.catalogue).CSRFToken,
	}
	if view.IsEdit {
		view.Title = "Edit " + s.Singular
		view.Action = "/" + s.Slug + "/" + url.PathEscape(snap.ID)
	} else {
		view.Title = "New " + s.Singular
	}
	for _, f := range snap.Fields {
		view.Fields = append(view.Fields, FieldView{FieldSpec: f, Value: snap.Values[f.Name], Error: snap.Errors[f.Name]})
	}
	return view
}

// tableView builds the table from the controller state.
func tableView(inst *listview.Instance) table.View {
	st := inst.Controller.State()
	cfg := table.Config{Screen: inst.Controller.Screen(), Search: st.Query.Search, Error: st.Err}
	if st.Result == nil {
		return table.Build(cfg, nil, apiclient.Pagination{CurrentPage: 1, LastPage: 1})
	}
	return table.Build(cfg, st.Result.Rows, st.Result.Pagination)
}

// listURL is the address of a screen showing q.
func listURL(s *screen.Screen, q listview.Query) string {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if len(v) == 0 {
		return "/" + s.Slug
	}
	return "/" + s.Slug + "?" + v.Encode()
}

// changedEvent is the htmx event that makes a screen's table refetch.
func changedEvent(s *screen.Screen) string {
	return s.Slug + "-changed"
}

// failureMessage is the user-facing text of a failed backend call.
func failureMessage(err error) string {
	if e, ok := apiclient.AsError(err); ok && e.Kind == apiclient.KindMessage && e.Message != "" {
		return e.Message
	}
	switch domain.ErrorCode(err) {
	case domain.EINTERNAL, domain.ECANCELED:
		return domain.GenericMessage
	}
	return domain.ErrorMessage(err)
}
