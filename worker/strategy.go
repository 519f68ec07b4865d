package worker

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Strategy names the caching discipline applied to a request.
type Strategy string

const (
	NetworkFirstAPI        Strategy = "network-first-api"
	CacheFirstStatic       Strategy = "cache-first-static"
	StaleWhileRevalidate   Strategy = "stale-while-revalidate"
	NetworkFirstNavigation Strategy = "network-first-navigation"
	CacheFirstDefault      Strategy = "cache-first"
)

// staticExtensions are the script/style/image/font types served cache-first.
var staticExtensions = map[string]struct{}{
	".js": {}, ".mjs": {}, ".css": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".ico": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
}

// Classifier decides which strategy applies to a request. The first matching
// rule wins: API, static shell, cross-origin, navigation, everything else.
type Classifier struct {
	origin      *url.URL
	apiHosts    []string
	apiPrefixes []string
	shell       map[string]struct{}
}

func NewClassifier(origin *url.URL, apiHosts, apiPrefixes, shell []string) *Classifier {
	c := &Classifier{
		origin:      origin,
		apiHosts:    apiHosts,
		apiPrefixes: apiPrefixes,
		shell:       make(map[string]struct{}, len(shell)),
	}
	for _, s := range shell {
		c.shell[s] = struct{}{}
	}
	return c
}

// SameOrigin reports whether u is served by the upstream origin.
func (c *Classifier) SameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, c.origin.Scheme) && strings.EqualFold(u.Host, c.origin.Host)
}

func (c *Classifier) Classify(target *url.URL, r *http.Request) Strategy {
	if c.isAPI(target) {
		return NetworkFirstAPI
	}
	same := c.SameOrigin(target)
	if same && c.isStatic(target.Path) {
		return CacheFirstStatic
	}
	if !same {
		return StaleWhileRevalidate
	}
	if IsNavigation(r) {
		return NetworkFirstNavigation
	}
	return CacheFirstDefault
}

func (c *Classifier) isAPI(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	for _, p := range c.apiHosts {
		if strings.Contains(host, strings.ToLower(p)) {
			return true
		}
	}
	if c.SameOrigin(u) {
		for _, p := range c.apiPrefixes {
			if strings.HasPrefix(u.Path, p) {
				return true
			}
		}
	}
	return false
}

func (c *Classifier) isStatic(p string) bool {
	if _, ok := c.shell[p]; ok {
		return true
	}
	_, ok := staticExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

// IsNavigation reports whether r is an HTML document load.
func IsNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" || r.Header.Get("Sec-Fetch-Dest") == "document" {
		return true
	}
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}
