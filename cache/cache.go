// Package cache implements named, versioned cache partitions holding
// request/response pairs keyed by normalized request URL.
package cache

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned by Match when a partition has no entry for the key.
var ErrNotFound = errors.New("cache: entry not found")

// Entry is a stored response. Bodies are full copies; entries are replaced
// wholesale on Put.
type Entry struct {
	Key      string      `json:"key"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header,omitempty"`
	Body     []byte      `json:"body,omitempty"`
	StoredAt time.Time   `json:"storedAt"`
}

// Clone returns a deep copy so callers never share a body with the store.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Header = e.Header.Clone()
	c.Body = append([]byte(nil), e.Body...)
	return &c
}

// Partition is an open handle on one named cache. Handles are cheap and are
// opened per operation, never held across requests.
type Partition interface {
	Name() string
	Match(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context) ([]string, error)
}

// Storage owns the set of partitions.
type Storage interface {
	Open(ctx context.Context, name string) (Partition, error)
	Has(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) (bool, error)
	Names(ctx context.Context) ([]string, error)
}

// MatchAny looks key up in each named partition in order and returns the first
// hit. Partitions that do not exist are skipped.
func MatchAny(ctx context.Context, s Storage, key string, names ...string) (*Entry, string, error) {
	for _, name := range names {
		ok, err := s.Has(ctx, name)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			continue
		}
		p, err := s.Open(ctx, name)
		if err != nil {
			return nil, "", err
		}
		e, err := p.Match(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return e, name, nil
	}
	return nil, "", ErrNotFound
}

// NormalizeURL turns a request URL into a partition key: lower-case scheme and
// host, default ports and fragments dropped, query parameters sorted.
func NormalizeURL(u *url.URL) string {
	n := *u
	n.Scheme = strings.ToLower(n.Scheme)
	host := strings.ToLower(n.Host)
	switch {
	case n.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case n.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	n.Host = host
	n.Fragment = ""
	n.RawFragment = ""
	n.User = nil
	if n.Path == "" {
		n.Path = "/"
	}
	if n.RawQuery != "" {
		q := n.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			vals := q[k]
			sort.Strings(vals)
			for _, v := range vals {
				if b.Len() > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(k))
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
		n.RawQuery = b.String()
	}
	return n.String()
}
