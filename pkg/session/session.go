// Package session owns the network session shared by the inbound stream and
// the outbound dispatcher: one http.Client and one cookie jar carrying the
// platform credential.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/tinyland-inc/bilichat/pkg/auth"
	"github.com/tinyland-inc/bilichat/pkg/logger"
)

// ErrClosed is returned by Do after Close.
var ErrClosed = errors.New("session closed")

type Config struct {
	// CookieDomain is the parent domain the credential cookies are scoped
	// to, e.g. ".bilibili.com". The send endpoint rejects cookies set on
	// a narrower host.
	CookieDomain string
	Timeout      time.Duration
	Transport    http.RoundTripper
}

type Session struct {
	client    *http.Client
	jar       http.CookieJar
	closed    atomic.Bool
	closeOnce sync.Once
}

func New(cred auth.Credential, cfg Config) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	domain := strings.TrimPrefix(cfg.CookieDomain, ".")
	if domain == "" {
		return nil, errors.New("cookie domain is required")
	}
	base := &url.URL{Scheme: "https", Host: "www." + domain, Path: "/"}

	cookies := make([]*http.Cookie, 0, 2)
	for _, c := range cred.Cookies() {
		if c.Value == "" {
			continue
		}
		c.Domain = "." + domain
		c.Path = "/"
		cookies = append(cookies, c)
	}
	jar.SetCookies(base, cookies)

	logger.DebugCF("session", "Credential cookies loaded", map[string]any{
		"domain":  "." + domain,
		"cookies": len(cookies),
	})

	return &Session{
		client: &http.Client{
			Jar:       jar,
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		jar: jar,
	}, nil
}

// Do issues req over the shared client.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.client.Do(req)
}

// Jar exposes the cookie jar so the stream dial carries the same cookies.
func (s *Session) Jar() http.CookieJar {
	return s.jar
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Close releases idle connections. Only the first call has any effect.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.client.CloseIdleConnections()
		logger.DebugC("session", "Session closed")
	})
	return nil
}
