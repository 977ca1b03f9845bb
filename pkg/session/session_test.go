package session

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/bilichat/pkg/auth"
)

func cookieMap(cookies []*http.Cookie) map[string]string {
	m := make(map[string]string, len(cookies))
	for _, c := range cookies {
		m[c.Name] = c.Value
	}
	return m
}

func TestNew_CookiesScopedToParentDomain(t *testing.T) {
	s, err := New(auth.Credential{SessData: "sess", CSRF: "jct"}, Config{CookieDomain: ".bilibili.com"})
	require.NoError(t, err)

	for _, raw := range []string{
		"https://api.live.bilibili.com/msg/send",
		"https://live.bilibili.com/32362442",
		"https://www.bilibili.com/",
	} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		got := cookieMap(s.Jar().Cookies(u))
		assert.Equal(t, "sess", got["SESSDATA"], raw)
		assert.Equal(t, "jct", got["bili_jct"], raw)
	}

	other, _ := url.Parse("https://example.com/")
	assert.Empty(t, s.Jar().Cookies(other))
}

func TestNew_RequiresDomain(t *testing.T) {
	_, err := New(auth.Credential{SessData: "s", CSRF: "j"}, Config{})
	assert.Error(t, err)
}

func TestSession_CloseOnce(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	s, err := New(auth.Credential{}, Config{CookieDomain: "bilibili.com"})
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := s.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.True(t, s.IsClosed())

	req, _ = http.NewRequest(http.MethodGet, server.URL, nil)
	_, err = s.Do(req)
	assert.ErrorIs(t, err, ErrClosed)
}
