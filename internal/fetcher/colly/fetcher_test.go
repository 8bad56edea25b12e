package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/prudentia/pje-monitor/internal/pje"
)

func TestFetcherBuildCollector(t *testing.T) {
	t.Parallel()

	f, err := New(Config{UserAgent: "coverage-agent", Timeout: time.Second})
	if err != nil {
		t.Fatalf("failed to build fetcher: %v", err)
	}
	req := pje.FetchRequest{
		URL:     "https://comunica.pje.jus.br/consulta",
		Headers: http.Header{"X-Trace": {"yes"}},
	}

	collector := f.buildCollector(req, time.Unix(0, 0), &pje.FetchResponse{}, new(error))
	if collector.UserAgent != "coverage-agent" {
		t.Fatalf("expected user agent override, got %q", collector.UserAgent)
	}
	if !collector.AllowURLRevisit {
		t.Fatal("expected URL revisits to be allowed")
	}
	if !collector.ParseHTTPErrorResponse {
		t.Fatal("expected HTTP error responses to be parsed")
	}
}

func TestNewRejectsBadProxyURL(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{ProxyURL: "://bad"}); err == nil {
		t.Fatal("expected error for malformed proxy url")
	}
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f, err := New(Config{})
	if err != nil {
		t.Fatalf("failed to build fetcher: %v", err)
	}
	req := pje.FetchRequest{
		URL:     "https://comunica.pje.jus.br/consulta",
		Headers: http.Header{"X-Trace": {"yes"}},
	}
	start := time.Unix(0, 0)
	var result pje.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, start, &result, &fetchErr)
	if hooks.onRequest == nil || hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	if collyReq.Headers.Get("X-Trace") != "yes" {
		t.Fatalf("expected header propagation, got %+v", collyReq.Headers)
	}

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("<html></html>"),
		Headers:    &http.Header{"Content-Type": {"text/html"}},
		Request: &colly.Request{
			URL: mustParseURL(t, "https://comunica.pje.jus.br/consulta"),
		},
	})
	if result.StatusCode != http.StatusOK || string(result.Body) != "<html></html>" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Headers.Get("Content-Type") != "text/html" {
		t.Fatalf("expected headers copied, got %+v", result.Headers)
	}

	hooks.onError(nil, errors.New("boom"))
	if fetchErr == nil || fetchErr.Error() != "boom" {
		t.Fatalf("expected fetchErr set, got %v", fetchErr)
	}
}

func TestFetchAgainstServer(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			if _, err := w.Write([]byte("pagina inexistente")); err != nil {
				t.Log(err)
			}
			return
		}
		if _, err := w.Write([]byte("<html><body>ok</body></html>")); err != nil {
			t.Log(err)
		}
	}))
	defer ts.Close()

	f, err := New(Config{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("failed to build fetcher: %v", err)
	}

	resp, err := f.Fetch(context.Background(), pje.FetchRequest{URL: ts.URL + "/consulta"})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if string(resp.Body) != "<html><body>ok</body></html>" {
		t.Fatalf("unexpected body: %q", resp.Body)
	}
	if resp.Duration <= 0 {
		t.Fatal("expected a positive fetch duration")
	}

	// Error statuses must come back as responses so the classifier can
	// inspect the status code and body markers.
	resp, err = f.Fetch(context.Background(), pje.FetchRequest{URL: ts.URL + "/missing"})
	if err != nil {
		t.Fatalf("fetch of 404 page failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if string(resp.Body) != "pagina inexistente" {
		t.Fatalf("unexpected body: %q", resp.Body)
	}

	// Same URL again: revisits must not be rejected.
	if _, err := f.Fetch(context.Background(), pje.FetchRequest{URL: ts.URL + "/consulta"}); err != nil {
		t.Fatalf("revisit failed: %v", err)
	}
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	blocked := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-blocked
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()
	defer close(blocked)

	f, err := New(Config{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("failed to build fetcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := f.Fetch(ctx, pje.FetchRequest{URL: ts.URL}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestCopyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	f, err := New(Config{})
	if err != nil {
		t.Fatalf("failed to build fetcher: %v", err)
	}
	collyReq := &colly.Request{Headers: &http.Header{}}
	f.copyHeaders(pje.FetchRequest{}, collyReq)
	if len(*collyReq.Headers) != 0 {
		t.Fatalf("expected no headers to be copied, got %+v", *collyReq.Headers)
	}
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
