package danmaku

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/bilichat/pkg/auth"
)

func newSendServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func buildFor(t *testing.T, endpoint string) *SignedRequest {
	t.Helper()
	req, err := NewBuilder(StaticSigner(testWRID), WithEndpoint(endpoint)).
		Build(context.Background(), 6, "hello", testCred, time.Now())
	require.NoError(t, err)
	return req
}

func TestDispatcher_Outcomes(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv, _ := newSendServer(t, http.StatusOK, `{"code":0,"data":{},"message":"","msg":""}`)
		err := NewDispatcher(srv.Client()).Send(context.Background(), buildFor(t, srv.URL))
		assert.NoError(t, err)
	})

	t.Run("api error", func(t *testing.T) {
		srv, _ := newSendServer(t, http.StatusOK, `{"code":1,"message":"频率过快"}`)
		err := NewDispatcher(srv.Client()).Send(context.Background(), buildFor(t, srv.URL))

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 1, apiErr.Code)
		assert.Equal(t, "频率过快", apiErr.Message)
	})

	t.Run("api error falls back to msg", func(t *testing.T) {
		srv, _ := newSendServer(t, http.StatusOK, `{"code":10030,"msg":"too fast"}`)
		err := NewDispatcher(srv.Client()).Send(context.Background(), buildFor(t, srv.URL))

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "too fast", apiErr.Message)
	})

	t.Run("non-200", func(t *testing.T) {
		srv, _ := newSendServer(t, http.StatusPreconditionFailed, `blocked`)
		err := NewDispatcher(srv.Client()).Send(context.Background(), buildFor(t, srv.URL))

		var tErr *TransportError
		require.ErrorAs(t, err, &tErr)
		assert.Equal(t, 412, tErr.StatusCode)
	})

	t.Run("malformed json", func(t *testing.T) {
		srv, _ := newSendServer(t, http.StatusOK, `<html>`)
		err := NewDispatcher(srv.Client()).Send(context.Background(), buildFor(t, srv.URL))

		var pErr *ParseError
		require.ErrorAs(t, err, &pErr)
		assert.Equal(t, []byte("<html>"), pErr.Body)
	})

	t.Run("missing code", func(t *testing.T) {
		srv, _ := newSendServer(t, http.StatusOK, `{"data":{}}`)
		err := NewDispatcher(srv.Client()).Send(context.Background(), buildFor(t, srv.URL))

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, MissingCode, apiErr.Code)
		assert.Equal(t, "❌ 发送失败：未知错误", Describe(err))
	})
}

type errDoer struct{ err error }

func (d errDoer) Do(*http.Request) (*http.Response, error) { return nil, d.err }

func TestDispatcher_NetworkFailure(t *testing.T) {
	boom := errors.New("connection refused")
	err := NewDispatcher(errDoer{err: boom}).Send(context.Background(), buildFor(t, "http://127.0.0.1:1/"))

	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Zero(t, tErr.StatusCode)
	assert.ErrorIs(t, err, boom)
}

func TestDispatcher_SendsForm(t *testing.T) {
	gotMsg := make(chan string, 1)
	gotCSRF := make(chan string, 1)
	gotCookie := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotMsg <- r.PostForm.Get("msg")
		gotCSRF <- r.PostForm.Get("csrf_token")
		gotCookie <- r.Header.Get("Cookie")
		_, _ = io.WriteString(w, `{"code":0}`)
	}))
	defer srv.Close()

	require.NoError(t, NewDispatcher(srv.Client()).Send(context.Background(), buildFor(t, srv.URL)))
	assert.Equal(t, "hello", <-gotMsg)
	assert.Equal(t, "csrf-value", <-gotCSRF)
	assert.Contains(t, <-gotCookie, "SESSDATA=sess-value")
}

func TestClient_MissingCredentialIssuesNoRequest(t *testing.T) {
	srv, hits := newSendServer(t, http.StatusOK, `{"code":0}`)

	client := NewClient(
		auth.NewStore(auth.Credential{SessData: "s"}),
		NewBuilder(StaticSigner(testWRID), WithEndpoint(srv.URL)),
		NewDispatcher(srv.Client()),
	)

	err := client.Send(context.Background(), 6, "hello")
	assert.ErrorIs(t, err, auth.ErrMissingCredential)
	assert.Zero(t, hits.Load())
}

func TestClient_Send(t *testing.T) {
	srv, hits := newSendServer(t, http.StatusOK, `{"code":0}`)
	now := time.Unix(1_700_000_000, 0)

	client := NewClient(
		auth.NewStore(testCred),
		NewBuilder(StaticSigner(testWRID), WithEndpoint(srv.URL)),
		NewDispatcher(srv.Client()),
		WithClock(func() time.Time { return now }),
	)

	require.NoError(t, client.Send(context.Background(), 6, "hello"))
	assert.Equal(t, int32(1), hits.Load())

	assert.ErrorIs(t, client.Send(context.Background(), 6, "   "), ErrEmptyMessage)
	assert.Equal(t, int32(1), hits.Load())
}
