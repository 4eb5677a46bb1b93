package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-harvest/config"
	"github.com/aluiziolira/go-harvest/models"
)

const responseKey = "response"

// Fetcher issues one request for a target. Non-success statuses are reported
// as ErrHTTPStatus alongside the response; transport drops as ErrConnection.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (*models.Response, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, target string) (*models.Response, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, target string) (*models.Response, error) {
	return f(ctx, target)
}

// ProxyFetcher sends every target through the fetch proxy with a colly collector.
type ProxyFetcher struct {
	collector   *colly.Collector
	proxyURL    *url.URL
	apiKey      string
	renderPage  bool
	keepHeaders bool
	headers     *HeaderPool
}

// NewProxyFetcher builds a fetcher configured from cfg.
func NewProxyFetcher(cfg *config.Config) (*ProxyFetcher, error) {
	parsed, err := url.Parse(cfg.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("proxy url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Concurrency,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	store := func(r *colly.Response) {
		r.Ctx.Put(responseKey, r)
	}
	collector.OnResponse(store)
	collector.OnError(func(r *colly.Response, _ error) {
		if r != nil && r.Ctx != nil {
			store(r)
		}
	})

	return &ProxyFetcher{
		collector:   collector,
		proxyURL:    parsed,
		apiKey:      cfg.APIKey,
		renderPage:  cfg.RenderPage,
		keepHeaders: cfg.KeepHeaders,
		headers:     NewHeaderPool(cfg.ContactInfo),
	}, nil
}

// WithTransport replaces the collector transport. Used by tests and custom dialers.
func (f *ProxyFetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// RequestURL builds the proxy URL for target.
func (f *ProxyFetcher) RequestURL(target string) string {
	q := url.Values{}
	q.Set("api_key", f.apiKey)
	q.Set("url", target)
	if f.renderPage {
		q.Set("render", "true")
	}
	if f.keepHeaders {
		q.Set("keep_headers", "true")
	}
	u := *f.proxyURL
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch implements Fetcher.
func (f *ProxyFetcher) Fetch(ctx context.Context, target string) (*models.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := f.get(f.RequestURL(target), f.headers.Headers())
	resp := toResponse(target, r)
	statusCode := 0
	var body []byte
	if resp != nil {
		statusCode = resp.StatusCode
		body = resp.Body
	}
	if classified := classifyError(err, statusCode, body); classified != nil {
		return resp, classified
	}
	return resp, nil
}

func (f *ProxyFetcher) get(rawURL string, hdr http.Header) (*colly.Response, error) {
	cctx := colly.NewContext()
	err := f.collector.Request(http.MethodGet, rawURL, nil, cctx, hdr)
	r, _ := cctx.GetAny(responseKey).(*colly.Response)
	return r, err
}

func toResponse(target string, r *colly.Response) *models.Response {
	if r == nil {
		return nil
	}
	resp := &models.Response{
		Target:     target,
		StatusCode: r.StatusCode,
		Body:       r.Body,
	}
	if r.Headers != nil {
		resp.Headers = r.Headers.Clone()
	}
	return resp
}

type ipResponse struct {
	IP string `json:"ip"`
}

// PublicIP asks checkURL for the egress IP, e.g. {"ip":"203.0.113.7"}.
func (f *ProxyFetcher) PublicIP(ctx context.Context, checkURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	hdr := f.headers.Headers()
	hdr.Set("Accept", "application/json")
	r, err := f.get(checkURL, hdr)
	if err != nil {
		return "", fmt.Errorf("ip check: %w", err)
	}
	if r == nil {
		return "", errors.New("ip check: no response")
	}
	if !isSuccess(r.StatusCode) {
		return "", fmt.Errorf("ip check: %w", ErrHTTPStatus{StatusCode: r.StatusCode, Body: r.Body})
	}
	var payload ipResponse
	if err := json.Unmarshal(r.Body, &payload); err != nil {
		return "", fmt.Errorf("ip check: decode: %w", err)
	}
	if payload.IP == "" {
		return "", errors.New("ip check: empty ip")
	}
	return payload.IP, nil
}
