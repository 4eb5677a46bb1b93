package scraper

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-harvest/config"
)

func testFetcherConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.APIKey = "secret"
	cfg.ProxyURL = "https://proxy.test/"
	cfg.Concurrency = 2
	cfg.RenderPage = true
	return cfg
}

func newMockedFetcher(t *testing.T, cfg *config.Config) (*ProxyFetcher, *httpmock.MockTransport) {
	t.Helper()
	f, err := NewProxyFetcher(cfg)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	transport := httpmock.NewMockTransport()
	f.WithTransport(transport)
	return f, transport
}

func TestProxyFetcherRequestURL(t *testing.T) {
	cfg := testFetcherConfig()
	cfg.KeepHeaders = true
	f, err := NewProxyFetcher(cfg)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	got := f.RequestURL("https://catalog.test/a?b=1&c=2")
	want := "https://proxy.test/?api_key=secret&keep_headers=true&render=true&url=https%3A%2F%2Fcatalog.test%2Fa%3Fb%3D1%26c%3D2"
	if got != want {
		t.Fatalf("RequestURL = %q, want %q", got, want)
	}

	cfg.RenderPage = false
	cfg.KeepHeaders = false
	f, _ = NewProxyFetcher(cfg)
	if got := f.RequestURL("x"); strings.Contains(got, "render") || strings.Contains(got, "keep_headers") {
		t.Fatalf("toggles leaked into %q", got)
	}
}

func TestProxyFetcherSuccess(t *testing.T) {
	cfg := testFetcherConfig()
	cfg.ContactInfo = "Webmaster: ops@example.test"
	f, transport := newMockedFetcher(t, cfg)

	var seen *http.Request
	transport.RegisterResponder("GET", `=~^https://proxy\.test/`, func(req *http.Request) (*http.Response, error) {
		seen = req
		resp := httpmock.NewStringResponse(http.StatusOK, `{"results":[]}`)
		resp.Header.Set("Sa-Final-Url", "https://catalog.test/final")
		return resp, nil
	})

	resp, err := f.Fetch(context.Background(), "https://catalog.test/a")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != `{"results":[]}` {
		t.Fatalf("resp = %d %q", resp.StatusCode, resp.Body)
	}
	if resp.Target != "https://catalog.test/a" {
		t.Fatalf("Target = %q", resp.Target)
	}
	if got := resp.Headers.Get("sa-final-url"); got != "https://catalog.test/final" {
		t.Fatalf("final url header = %q", got)
	}

	if seen == nil {
		t.Fatal("responder was not called")
	}
	if got := seen.URL.Query().Get("url"); got != "https://catalog.test/a" {
		t.Fatalf("url param = %q", got)
	}
	if got := seen.URL.Query().Get("api_key"); got != "secret" {
		t.Fatalf("api_key param = %q", got)
	}
	if got := seen.Header.Get("X-Contact-Info"); got != cfg.ContactInfo {
		t.Fatalf("X-Contact-Info = %q", got)
	}
	if ua := seen.Header.Get("User-Agent"); !strings.HasPrefix(ua, "Mozilla/5.0") {
		t.Fatalf("User-Agent = %q", ua)
	}
	accept := seen.Header.Get("Accept")
	found := false
	for _, a := range AcceptHeaders {
		if a == accept {
			found = true
		}
	}
	if !found {
		t.Fatalf("Accept %q not from pool", accept)
	}
}

func TestProxyFetcherHTTPStatus(t *testing.T) {
	f, transport := newMockedFetcher(t, testFetcherConfig())
	transport.RegisterResponder("GET", `=~^https://proxy\.test/`,
		httpmock.NewStringResponder(http.StatusInternalServerError, "proxy overloaded"))

	resp, err := f.Fetch(context.Background(), "https://catalog.test/a")
	var status ErrHTTPStatus
	if !errors.As(err, &status) {
		t.Fatalf("expected ErrHTTPStatus, got %v", err)
	}
	if status.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", status.StatusCode)
	}
	if string(status.Body) != "proxy overloaded" {
		t.Fatalf("body = %q", status.Body)
	}
	if resp == nil || resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("response should accompany the status error, got %+v", resp)
	}
}

func TestProxyFetcherConnectionDrop(t *testing.T) {
	f, transport := newMockedFetcher(t, testFetcherConfig())
	transport.RegisterNoResponder(httpmock.NewErrorResponder(&net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}))

	_, err := f.Fetch(context.Background(), "https://catalog.test/a")
	var conn ErrConnection
	if !errors.As(err, &conn) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestProxyFetcherCancelledContext(t *testing.T) {
	f, transport := newMockedFetcher(t, testFetcherConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Fetch(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n := transport.GetTotalCallCount(); n != 0 {
		t.Fatalf("transport called %d times", n)
	}
}

func TestProxyFetcherPublicIP(t *testing.T) {
	f, transport := newMockedFetcher(t, testFetcherConfig())
	transport.RegisterResponder("GET", "https://ip.test/?format=json",
		httpmock.NewStringResponder(http.StatusOK, `{"ip":"203.0.113.7"}`))
	transport.RegisterResponder("GET", "https://broken.test/",
		httpmock.NewStringResponder(http.StatusBadGateway, "nope"))

	ip, err := f.PublicIP(context.Background(), "https://ip.test/?format=json")
	if err != nil {
		t.Fatalf("PublicIP: %v", err)
	}
	if ip != "203.0.113.7" {
		t.Fatalf("ip = %q", ip)
	}

	if _, err := f.PublicIP(context.Background(), "https://broken.test/"); err == nil {
		t.Fatal("expected error for failed ip check")
	}
}

func TestNewProxyFetcherRejectsBadURL(t *testing.T) {
	cfg := testFetcherConfig()
	cfg.ProxyURL = "not a url"
	if _, err := NewProxyFetcher(cfg); err == nil {
		t.Fatal("expected error for proxy url without host")
	}
}
