// Package site routes public requests to pages and static assets on disk.
package site

import (
	"fmt"
	"html"
	"io/fs"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	IndexPage    = "templates/index.html"
	SearchPage   = "templates/search.html"
	NotFoundPage = "templates/error.html"

	// FallbackPage is read when a resolved file cannot be. It is
	// root-relative, unlike NotFoundPage.
	FallbackPage = "error.html"

	StaticPrefix = "/static/"

	htmlContentType = "text/html"
)

// ErrFallbackUnavailable is returned when the fallback page itself
// cannot be read. No response can be produced in that case.
var ErrFallbackUnavailable = errors.New("fallback page unavailable")

// Response is what a single request resolves to.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

type route struct {
	match func(p string) bool
	serve func(d *Dispatcher, p string) (Response, error)
}

// Evaluated in order; the last route matches everything.
var routes = []route{
	{
		match: func(p string) bool { return p == "/" },
		serve: func(d *Dispatcher, _ string) (Response, error) { return d.page(IndexPage, http.StatusOK) },
	},
	{
		match: func(p string) bool { return p == "/search" },
		serve: func(d *Dispatcher, _ string) (Response, error) { return d.page(SearchPage, http.StatusOK) },
	},
	{
		match: func(p string) bool { return strings.HasPrefix(p, StaticPrefix) },
		serve: (*Dispatcher).static,
	},
	{
		match: func(string) bool { return true },
		serve: func(d *Dispatcher, _ string) (Response, error) { return d.page(NotFoundPage, http.StatusOK) },
	},
}

// Dispatcher maps request paths to responses read from files.
// It holds no per-request state and is safe for concurrent use.
type Dispatcher struct {
	files fs.FS
	log   *zap.Logger
}

// NewDispatcher serves files from files. A nil logger discards output.
func NewDispatcher(files fs.FS, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{files: files, log: log}
}

// Handle resolves path (without query) to a response.
func (d *Dispatcher) Handle(p string) (Response, error) {
	for _, r := range routes {
		if r.match(p) {
			return r.serve(d, p)
		}
	}
	// unreachable, the catch-all route matches
	return d.page(NotFoundPage, http.StatusOK)
}

func (d *Dispatcher) page(name string, status int) (Response, error) {
	body, err := fs.ReadFile(d.files, name)
	if err != nil {
		d.log.Warn("page read failed", zap.String("file", name), zap.Error(err))
		return d.fallback()
	}
	return Response{Status: status, ContentType: htmlContentType, Body: body}, nil
}

func (d *Dispatcher) static(p string) (Response, error) {
	name := staticName(p)
	body, err := fs.ReadFile(d.files, name)
	if err != nil {
		d.log.Warn("static read failed", zap.String("file", name), zap.Error(err))
		return d.fallback()
	}
	return Response{Status: http.StatusOK, ContentType: ContentType(name), Body: body}, nil
}

// staticName maps a request path to a file name relative to the root.
// Empty and "." segments are dropped the way a filesystem would; ".." and
// a trailing slash are left in place so that the read fails.
func staticName(p string) string {
	name := strings.TrimPrefix(p, "/")
	if strings.HasSuffix(name, "/") {
		return name
	}
	segs := strings.Split(name, "/")
	kept := segs[:0]
	for _, s := range segs {
		if s == "" || s == "." {
			continue
		}
		kept = append(kept, s)
	}
	return strings.Join(kept, "/")
}

func (d *Dispatcher) fallback() (Response, error) {
	body, err := fs.ReadFile(d.files, FallbackPage)
	if err != nil {
		return Response{}, errors.Wrapf(ErrFallbackUnavailable, "read %s: %v", FallbackPage, err)
	}
	return Response{Status: http.StatusNotFound, ContentType: htmlContentType, Body: body}, nil
}

// ServeHTTP writes the response for r. Only GET is routed.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		d.notImplemented(w, r.Method)
		return
	}
	resp, err := d.Handle(r.URL.Path)
	if err != nil {
		d.log.Error("no response for request", zap.String("path", r.URL.Path), zap.Error(err))
		panic(http.ErrAbortHandler)
	}
	w.Header().Set("Content-Type", resp.ContentType)
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

func (d *Dispatcher) notImplemented(w http.ResponseWriter, method string) {
	w.Header().Set("Content-Type", htmlContentType)
	w.WriteHeader(http.StatusNotImplemented)
	fmt.Fprintf(w, "<html><body><h1>Error 501</h1><p>Unsupported method ('%s')</p></body></html>\n", html.EscapeString(method))
}
