// Package danmaku builds, signs and dispatches outbound chat messages to the
// live room send endpoint.
package danmaku

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tinyland-inc/bilichat/pkg/auth"
)

const (
	DefaultEndpoint    = "https://api.live.bilibili.com/msg/send"
	DefaultWebLocation = "444.8"
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36"

	liveOrigin = "https://live.bilibili.com"

	// rnd is backdated by a random offset within this window, in seconds.
	minNonceOffset = 60
	maxNonceOffset = 120
)

// presentation fields sent unchanged with every message
var fixedForm = map[string]string{
	"bubble":      "0",
	"color":       "16777215",
	"mode":        "1",
	"room_type":   "0",
	"jumpfrom":    "81011",
	"reply_mid":   "0",
	"reply_attr":  "0",
	"replay_dmid": "",
	"statistics":  `{"appId":100,"platform":5}`,
	"reply_type":  "0",
	"reply_uname": "",
	"data_extend": `{"trackid":"-99998"}`,
	"fontsize":    "25",
}

// SignedRequest is a fully formed send request, ready for dispatch.
type SignedRequest struct {
	RoomID    int64
	Text      string
	Timestamp int64 // wts
	Nonce     int64 // rnd
	Endpoint  string
	Query     url.Values
	Form      url.Values
	Header    http.Header
}

// HTTPRequest materializes the POST.
func (r *SignedRequest) HTTPRequest(ctx context.Context) (*http.Request, error) {
	target, err := url.Parse(r.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", r.Endpoint, err)
	}
	target.RawQuery = r.Query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), strings.NewReader(r.Form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header = r.Header.Clone()
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

type BuilderOption func(*Builder)

func WithEndpoint(endpoint string) BuilderOption {
	return func(b *Builder) { b.endpoint = endpoint }
}

func WithWebLocation(loc string) BuilderOption {
	return func(b *Builder) { b.webLocation = loc }
}

func WithUserAgent(ua string) BuilderOption {
	return func(b *Builder) { b.userAgent = ua }
}

// WithNonceOffset replaces the random rnd offset source. The returned value
// is clamped to [60, 120].
func WithNonceOffset(f func() int64) BuilderOption {
	return func(b *Builder) { b.nonceOffset = f }
}

// Builder produces SignedRequests. It has no side effects beyond calling
// its Signer.
type Builder struct {
	signer      Signer
	endpoint    string
	webLocation string
	userAgent   string
	nonceOffset func() int64
}

func NewBuilder(signer Signer, opts ...BuilderOption) *Builder {
	b := &Builder{
		signer:      signer,
		endpoint:    DefaultEndpoint,
		webLocation: DefaultWebLocation,
		userAgent:   DefaultUserAgent,
		nonceOffset: randomNonceOffset,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func randomNonceOffset() int64 {
	return minNonceOffset + rand.Int64N(maxNonceOffset-minNonceOffset+1)
}

// Build assembles the request for text in roomID at time now.
func (b *Builder) Build(
	ctx context.Context,
	roomID int64,
	text string,
	cred auth.Credential,
	now time.Time,
) (*SignedRequest, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if roomID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRoom, roomID)
	}

	wts := now.Unix()
	offset := min(max(b.nonceOffset(), minNonceOffset), maxNonceOffset)
	rnd := wts - offset
	room := strconv.FormatInt(roomID, 10)

	query := url.Values{}
	query.Set("web_location", b.webLocation)
	query.Set("wts", strconv.FormatInt(wts, 10))

	sig, err := b.signer.Sign(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("signing request: %w", err)
	}
	// the signer may keep what it was given; never write into it
	signed := make(url.Values, len(query)+1)
	for k, v := range query {
		signed[k] = append([]string(nil), v...)
	}
	signed.Set("w_rid", sig)

	form := url.Values{}
	for k, v := range fixedForm {
		form.Set(k, v)
	}
	form.Set("msg", text)
	form.Set("rnd", strconv.FormatInt(rnd, 10))
	form.Set("roomid", room)
	// the endpoint reads the token under both names
	form.Set("csrf", cred.CSRF)
	form.Set("csrf_token", cred.CSRF)

	header := http.Header{}
	header.Set("User-Agent", b.userAgent)
	header.Set("Referer", liveOrigin+"/"+room)
	header.Set("Origin", liveOrigin)
	header.Set("Cookie", cred.CookieHeader())

	return &SignedRequest{
		RoomID:    roomID,
		Text:      text,
		Timestamp: wts,
		Nonce:     rnd,
		Endpoint:  b.endpoint,
		Query:     signed,
		Form:      form,
		Header:    header,
	}, nil
}
