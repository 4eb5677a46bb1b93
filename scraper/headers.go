package scraper

import (
	"fmt"
	"math/rand/v2"
	"net/http"
)

// AcceptHeaders is the pool of Accept values rotated per request.
var AcceptHeaders = []string{
	"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
}

var desktopPlatforms = []string{
	"Windows NT 10.0; Win64; x64",
	"Macintosh; Intel Mac OS X 10_15_7",
	"X11; Linux x86_64",
}

var chromeVersions = []string{"120.0.0.0", "121.0.0.0", "122.0.0.0", "123.0.0.0", "124.0.0.0"}

var firefoxVersions = []string{"121.0", "122.0", "123.0", "124.0"}

// DesktopUserAgents builds a deduplicated pool of desktop browser User-Agent strings.
func DesktopUserAgents() []string {
	seen := make(map[string]struct{})
	var pool []string
	add := func(ua string) {
		if _, ok := seen[ua]; ok {
			return
		}
		seen[ua] = struct{}{}
		pool = append(pool, ua)
	}
	for _, platform := range desktopPlatforms {
		for _, v := range chromeVersions {
			add(fmt.Sprintf("Mozilla/5.0 (%s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", platform, v))
		}
		for _, v := range firefoxVersions {
			ffPlatform := platform
			if platform == "Macintosh; Intel Mac OS X 10_15_7" {
				ffPlatform = "Macintosh; Intel Mac OS X 10.15"
			}
			add(fmt.Sprintf("Mozilla/5.0 (%s; rv:%s) Gecko/20100101 Firefox/%s", ffPlatform, v, v))
		}
	}
	return pool
}

// HeaderPool picks randomized request headers.
type HeaderPool struct {
	accept      []string
	userAgents  []string
	contactInfo string
	intn        func(n int) int
}

// NewHeaderPool returns a pool over the default Accept and User-Agent sets.
func NewHeaderPool(contactInfo string) *HeaderPool {
	return &HeaderPool{
		accept:      AcceptHeaders,
		userAgents:  DesktopUserAgents(),
		contactInfo: contactInfo,
		intn:        rand.IntN,
	}
}

// Headers returns a fresh header set for one request.
func (p *HeaderPool) Headers() http.Header {
	hdr := make(http.Header, 3)
	hdr.Set("Accept", p.accept[p.intn(len(p.accept))])
	hdr.Set("User-Agent", p.userAgents[p.intn(len(p.userAgents))])
	hdr.Set("X-Contact-Info", p.contactInfo)
	return hdr
}
