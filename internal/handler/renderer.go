package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
)

// Renderer manages template parsing and rendering with isolated template sets.
// It supports two layouts:
//   - "auth" layout for unauthenticated pages (login)
//   - "app" layout for the console (dashboard, screens)
//
// Templates are organized as:
//   - layouts/auth.html, layouts/app.html - base layouts
//   - components/*.html - reusable components (shared across layouts)
//   - partials/*.html - fragments for htmx responses, also usable from pages
//   - pages/auth/*.html - auth pages (use auth layout)
//   - pages/*.html and pages/<dir>/*.html - app pages (use app layout)
type Renderer struct {
	fsys   fs.FS
	logger *slog.Logger
	isDev  bool

	mu        sync.RWMutex
	templates map[string]*template.Template
	partials  *template.Template
}

// RendererConfig holds configuration for the renderer.
type RendererConfig struct {
	// FS holds the template tree. Use web.Templates() for the embedded copy
	// or os.DirFS("web/templates") to edit templates without rebuilding.
	FS     fs.FS
	Logger *slog.Logger
	// IsDev reloads templates on every render.
	IsDev bool
}

// NewRenderer creates a new template renderer.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	r := &Renderer{
		fsys:   cfg.FS,
		logger: cfg.Logger,
		isDev:  cfg.IsDev,
	}

	if err := r.load(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Renderer) load() error {
	componentFiles, err := globAll(r.fsys, "components")
	if err != nil {
		return fmt.Errorf("failed to walk components dir: %w", err)
	}
	partialFiles, err := fs.Glob(r.fsys, "partials/*.html")
	if err != nil {
		return fmt.Errorf("failed to glob partials: %w", err)
	}
	shared := append(componentFiles, partialFiles...)

	templates := make(map[string]*template.Template)

	// Partials and components form one standalone set for htmx fragments.
	partials := template.New("partials").Funcs(TemplateFuncs())
	if len(shared) > 0 {
		if partials, err = partials.ParseFS(r.fsys, shared...); err != nil {
			return fmt.Errorf("failed to parse partials: %w", err)
		}
	}

	layouts := map[string]string{"auth": "layouts/auth.html", "app": "layouts/app.html"}
	bases := make(map[string]*template.Template, len(layouts))
	for name, file := range layouts {
		files := append([]string{file}, shared...)
		base, err := template.New(name).Funcs(TemplateFuncs()).ParseFS(r.fsys, files...)
		if err != nil {
			return fmt.Errorf("failed to parse %s layout: %w", name, err)
		}
		bases[name] = base
	}

	// Auth pages are stored as "auth/login"; app pages as "dashboard" or
	// "screens/index".
	authPages, err := fs.Glob(r.fsys, "pages/auth/*.html")
	if err != nil {
		return fmt.Errorf("failed to glob auth pages: %w", err)
	}
	for _, page := range authPages {
		if err := addPage(templates, bases["auth"], r.fsys, page, "auth/"+baseName(page)); err != nil {
			return err
		}
	}

	appPages, err := fs.Glob(r.fsys, "pages/*.html")
	if err != nil {
		return fmt.Errorf("failed to glob app pages: %w", err)
	}
	nested, err := fs.Glob(r.fsys, "pages/*/*.html")
	if err != nil {
		return fmt.Errorf("failed to glob nested pages: %w", err)
	}
	for _, page := range nested {
		if !strings.HasPrefix(page, "pages/auth/") {
			appPages = append(appPages, page)
		}
	}
	for _, page := range appPages {
		name := strings.TrimSuffix(strings.TrimPrefix(page, "pages/"), ".html")
		if err := addPage(templates, bases["app"], r.fsys, page, name); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.templates = templates
	r.partials = partials
	r.mu.Unlock()

	r.logger.Debug("templates loaded", "count", len(templates))
	return nil
}

func addPage(dst map[string]*template.Template, base *template.Template, fsys fs.FS, file, name string) error {
	tmpl, err := base.Clone()
	if err != nil {
		return fmt.Errorf("failed to clone layout for %s: %w", file, err)
	}
	if tmpl, err = tmpl.ParseFS(fsys, file); err != nil {
		return fmt.Errorf("failed to parse page %s: %w", file, err)
	}
	dst[name] = tmpl
	return nil
}

func globAll(fsys fs.FS, dir string) ([]string, error) {
	var files []string
	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ".html") {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

func baseName(file string) string {
	return strings.TrimSuffix(path.Base(file), path.Ext(file))
}

// Reload re-parses every template. Useful for development.
func (r *Renderer) Reload() error {
	return r.load()
}

func (r *Renderer) reloadIfDev() error {
	if !r.isDev {
		return nil
	}
	if err := r.Reload(); err != nil {
		return fmt.Errorf("template reload failed: %w", err)
	}
	return nil
}

// Render renders a page to an io.Writer.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	if err := r.reloadIfDev(); err != nil {
		return err
	}

	r.mu.RLock()
	tmpl, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}

	return tmpl.ExecuteTemplate(w, layoutFor(name), data)
}

// RenderHTTP renders a page with status 200.
func (r *Renderer) RenderHTTP(w http.ResponseWriter, name string, data any) {
	r.RenderHTTPStatus(w, http.StatusOK, name, data)
}

// RenderHTTPStatus renders a page directly to an http.ResponseWriter.
func (r *Renderer) RenderHTTPStatus(w http.ResponseWriter, status int, name string, data any) {
	// Render to buffer first to catch errors before writing headers
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		r.logger.Error("template execution failed", "name", name, "error", err)
		http.Error(w, "Template execution failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// RenderPartial renders a fragment for an htmx response and appends every
// toast as an out-of-band swap into #toast-container.
func (r *Renderer) RenderPartial(w http.ResponseWriter, status int, name string, data any, toasts ...ToastData) {
	if err := r.reloadIfDev(); err != nil {
		r.logger.Error("template reload failed", "error", err)
		http.Error(w, "Template reload failed", http.StatusInternalServerError)
		return
	}

	r.mu.RLock()
	partials := r.partials
	r.mu.RUnlock()

	var buf bytes.Buffer
	if name != "" {
		if err := partials.ExecuteTemplate(&buf, name, data); err != nil {
			r.logger.Error("partial execution failed", "name", name, "error", err)
			http.Error(w, "Partial execution failed", http.StatusInternalServerError)
			return
		}
	}
	for _, t := range toasts {
		if err := partials.ExecuteTemplate(&buf, "toast_oob", t.withDefaults()); err != nil {
			r.logger.Error("toast execution failed", "error", err)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// layoutFor determines which base template to execute.
func layoutFor(name string) string {
	if strings.HasPrefix(name, "auth/") {
		return "auth"
	}
	return "app"
}

// ListTemplates returns a sorted list of all loaded page names.
func (r *Renderer) ListTemplates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToastData holds data for rendering a toast notification.
type ToastData struct {
	Type        string // success, error, warning, info
	Title       string // optional
	Message     string
	AutoDismiss int // seconds, default 5
}

func (t ToastData) withDefaults() ToastData {
	if t.AutoDismiss == 0 {
		t.AutoDismiss = 5
	}
	if t.Type == "" {
		t.Type = "info"
	}
	return t
}
