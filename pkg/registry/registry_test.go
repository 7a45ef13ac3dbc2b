package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/monopub/pkg/cache"
	"github.com/matzehuels/monopub/pkg/errors"
)

// fakeRegistry serves package documents and dist-tags from memory.
type fakeRegistry struct {
	mu       sync.Mutex
	versions map[string][]string
	tags     map[string]map[string]any
	auth     []string
	hits     atomic.Int32
}

func (f *fakeRegistry) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			f.hits.Add(1)
			f.mu.Lock()
			f.auth = append(f.auth, req.Header.Get("Authorization"))
			f.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/-/package/{name}/dist-tags", func(w http.ResponseWriter, req *http.Request) {
		name, _ := url.PathUnescape(chi.URLParam(req, "name"))
		tags, ok := f.tags[name]
		if !ok {
			http.NotFound(w, req)
			return
		}
		json.NewEncoder(w).Encode(tags)
	})
	r.Get("/{name}", func(w http.ResponseWriter, req *http.Request) {
		name, _ := url.PathUnescape(chi.URLParam(req, "name"))
		if name == "broken" {
			w.Write([]byte("{not json"))
			return
		}
		if name == "null-doc" {
			w.Write([]byte("null"))
			return
		}
		if name == "array-doc" {
			w.Write([]byte("[]"))
			return
		}
		if name == "down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		vs, ok := f.versions[name]
		if !ok {
			http.NotFound(w, req)
			return
		}
		doc := map[string]any{"name": name, "versions": map[string]any{}}
		for _, v := range vs {
			doc["versions"].(map[string]any)[v] = map[string]any{"version": v}
		}
		json.NewEncoder(w).Encode(doc)
	})
	return r
}

func newFake(t *testing.T) (*fakeRegistry, *httptest.Server) {
	t.Helper()
	f := &fakeRegistry{
		versions: map[string][]string{
			"react":        {"18.2.0", "17.0.2", "19.0.0"},
			"@scope/pkg-a": {"1.0.0"},
		},
		tags: map[string]map[string]any{
			"react":        {"latest": "19.0.0", "next": "19.1.0-rc.1"},
			"@scope/pkg-a": {"latest": "1.0.0", "weird": 42},
			"array":        nil,
		},
	}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, srv
}

func TestFetchVersions(t *testing.T) {
	_, srv := newFake(t)
	c := New(Options{URL: srv.URL})
	defer c.Close()
	ctx := context.Background()

	tests := []struct {
		name string
		pkg  string
		want []string
	}{
		{"sorted", "react", []string{"17.0.2", "18.2.0", "19.0.0"}},
		{"scoped", "@scope/pkg-a", []string{"1.0.0"}},
		{"never published", "nothing-here", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.FetchVersions(ctx, tt.pkg)
			if err != nil {
				t.Fatalf("FetchVersions(%q): %v", tt.pkg, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("FetchVersions(%q) = %v, want %v", tt.pkg, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("FetchVersions(%q)[%d] = %q, want %q", tt.pkg, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFetchVersionsErrors(t *testing.T) {
	_, srv := newFake(t)
	c := New(Options{URL: srv.URL + "/"})
	defer c.Close()
	ctx := context.Background()

	_, err := c.FetchVersions(ctx, "down")
	var regErr *Error
	if !asError(err, &regErr) {
		t.Fatalf("FetchVersions(down) error = %v, want *Error", err)
	}
	if regErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", regErr.StatusCode)
	}
	if want := "HTTP 503: failed fetching " + srv.URL + "/down"; regErr.Error() != want {
		t.Errorf("Error() = %q, want %q", regErr.Error(), want)
	}
	if !errors.Is(err, errors.ErrCodeRegistry) {
		t.Errorf("error should carry %s", errors.ErrCodeRegistry)
	}

	if _, err := c.FetchVersions(ctx, "broken"); !errors.Is(err, errors.ErrCodeRegistry) {
		t.Errorf("malformed JSON: got %v", err)
	}

	for _, name := range []string{"null-doc", "array-doc"} {
		got, err := c.FetchVersions(ctx, name)
		if !errors.Is(err, errors.ErrCodeRegistry) {
			t.Errorf("FetchVersions(%s) = %v, %v, want registry error", name, got, err)
		}
	}

	if _, err := c.FetchVersions(ctx, "../etc"); !errors.Is(err, errors.ErrCodeInvalidPackage) {
		t.Errorf("invalid name: got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no response", &Error{URL: "u", Err: io.ErrUnexpectedEOF}, true},
		{"server error", &Error{URL: "u", StatusCode: 503}, true},
		{"not found", &Error{URL: "u", StatusCode: 404}, false},
		{"forbidden", &Error{URL: "u", StatusCode: 403}, false},
		{"bad body", &Error{URL: "u", StatusCode: 200}, false},
		{"wrapped", fmt.Errorf("lookup: %w", &Error{URL: "u", StatusCode: 500}), true},
		{"other", errors.New(errors.ErrCodeInvalidPackage, "bad name"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestFetchDistTags(t *testing.T) {
	_, srv := newFake(t)
	c := New(Options{URL: srv.URL})
	defer c.Close()
	ctx := context.Background()

	tags, err := c.FetchDistTags(ctx, "react")
	if err != nil {
		t.Fatalf("FetchDistTags: %v", err)
	}
	if tags["latest"] != "19.0.0" || tags["next"] != "19.1.0-rc.1" {
		t.Errorf("tags = %v", tags)
	}

	tags, err = c.FetchDistTags(ctx, "@scope/pkg-a")
	if err != nil {
		t.Fatalf("FetchDistTags(scoped): %v", err)
	}
	if _, ok := tags["weird"]; ok || len(tags) != 1 {
		t.Errorf("non-string tags should be dropped: %v", tags)
	}

	if _, err := c.FetchDistTags(ctx, "array"); !errors.Is(err, errors.ErrCodeRegistry) {
		t.Errorf("non-object dist-tags: got %v", err)
	}
	if _, err := c.FetchDistTags(ctx, "missing"); !errors.Is(err, errors.ErrCodeRegistry) {
		t.Errorf("missing dist-tags: got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	f, srv := newFake(t)
	ctx := context.Background()

	c := New(Options{URL: srv.URL, Token: "s3cret"})
	c.FetchVersions(ctx, "react")
	c.FetchDistTags(ctx, "react")
	c.Close()

	anon := New(Options{URL: srv.URL})
	anon.FetchVersions(ctx, "react")
	anon.Close()

	want := []string{"Bearer s3cret", "Bearer s3cret", ""}
	if len(f.auth) != len(want) {
		t.Fatalf("auth headers = %q", f.auth)
	}
	for i := range want {
		if f.auth[i] != want[i] {
			t.Errorf("request %d Authorization = %q, want %q", i, f.auth[i], want[i])
		}
	}
}

func TestCloseIdempotent(t *testing.T) {
	c := New(Options{})
	if c.URL() != DefaultURL {
		t.Errorf("URL() = %q, want %q", c.URL(), DefaultURL)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestEscapeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"react", "react"},
		{"@types/node", "@types%2fnode"},
		{"lodash.debounce", "lodash.debounce"},
	}
	for _, tt := range tests {
		if got := EscapeName(tt.in); got != tt.want {
			t.Errorf("EscapeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIdentifier(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://registry.npmjs.org/", "//registry.npmjs.org/"},
		{"https://registry.npmjs.org", "//registry.npmjs.org/"},
		{"http://localhost:4873/", "//localhost:4873/"},
		{"https://user:pw@npm.corp.io/api/npm/x?foo=1#frag", "//npm.corp.io/api/npm/x/"},
		{"//npm.corp.io/", "//npm.corp.io/"},
	}
	for _, tt := range tests {
		if got := Identifier(tt.in); got != tt.want {
			t.Errorf("Identifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRetrier(t *testing.T) {
	ctx := context.Background()
	r := Retrier{Attempts: 3, Delay: time.Millisecond}

	var calls int
	err := r.Do(ctx, func() error {
		calls++
		if calls < 3 {
			return errors.New(errors.ErrCodeRegistry, "flaky")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("Do() = %v after %d calls, want success after 3", err, calls)
	}

	calls = 0
	err = r.Do(ctx, func() error {
		calls++
		return errors.New(errors.ErrCodeRegistry, "always")
	})
	if err == nil || calls != 3 {
		t.Errorf("Do() = %v after %d calls, want error after 3", err, calls)
	}
}

func TestRetrierCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := Retrier{Attempts: 5, Delay: time.Hour}

	var calls int
	err := r.Do(ctx, func() error {
		calls++
		cancel()
		return errors.New(errors.ErrCodeRegistry, "fail")
	})
	if err != context.Canceled {
		t.Errorf("Do() = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestCachedTags(t *testing.T) {
	f, srv := newFake(t)
	c := New(Options{URL: srv.URL})
	defer c.Close()
	ctx := context.Background()

	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cached := NewCachedTags(c, fc, time.Hour)

	for range 3 {
		tags, err := cached.FetchDistTags(ctx, "react")
		if err != nil {
			t.Fatal(err)
		}
		if tags["latest"] != "19.0.0" {
			t.Errorf("tags = %v", tags)
		}
	}
	if n := f.hits.Load(); n != 1 {
		t.Errorf("registry hit %d times, want 1", n)
	}

	if _, err := cached.FetchDistTags(ctx, "missing"); err == nil {
		t.Error("source errors should propagate")
	}
}

func TestCachedTagsNullCache(t *testing.T) {
	f, srv := newFake(t)
	c := New(Options{URL: srv.URL})
	defer c.Close()
	cached := NewCachedTags(c, cache.NewNullCache(), time.Hour)

	cached.FetchDistTags(context.Background(), "react")
	cached.FetchDistTags(context.Background(), "react")
	if n := f.hits.Load(); n != 2 {
		t.Errorf("registry hit %d times, want 2", n)
	}
}

func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if ok {
		*target = e
	}
	return ok
}
