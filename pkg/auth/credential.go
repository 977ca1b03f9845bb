// Package auth holds the pre-obtained platform credential used to sign and
// authenticate outbound chat messages.
package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	SessDataCookie = "SESSDATA"
	CSRFCookie     = "bili_jct"
)

// ErrMissingCredential is returned when the session or csrf token is blank.
var ErrMissingCredential = errors.New("missing credential: SESSDATA and bili_jct are required")

// Credential is the session cookie plus the anti-forgery token. It is
// immutable after load and passed by value.
type Credential struct {
	SessData string
	CSRF     string
}

func (c Credential) Validate() error {
	if strings.TrimSpace(c.SessData) == "" || strings.TrimSpace(c.CSRF) == "" {
		return ErrMissingCredential
	}
	return nil
}

// Cookies returns the credential as cookies, without any domain scoping.
func (c Credential) Cookies() []*http.Cookie {
	return []*http.Cookie{
		{Name: SessDataCookie, Value: c.SessData},
		{Name: CSRFCookie, Value: c.CSRF},
	}
}

// CookieHeader renders the fallback Cookie header sent alongside the jar.
func (c Credential) CookieHeader() string {
	return SessDataCookie + "=" + c.SessData + "; " + CSRFCookie + "=" + c.CSRF
}

// Store hands out the loaded credential. No refresh or rotation happens.
type Store struct {
	cred Credential
}

func NewStore(cred Credential) *Store {
	return &Store{cred: cred}
}

// Load returns the credential, failing fast if it is incomplete.
func (s *Store) Load() (Credential, error) {
	if err := s.cred.Validate(); err != nil {
		return Credential{}, err
	}
	return s.cred, nil
}

// ParseCookie extracts the credential from a browser Cookie header value.
// Unrelated cookies and empty parts, such as a trailing ";" left by copying
// from devtools, are ignored.
func ParseCookie(raw string) (Credential, error) {
	parts := strings.Split(raw, ";")
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return Credential{}, ErrMissingCredential
	}

	cookies, err := http.ParseCookie(strings.Join(kept, "; "))
	if err != nil {
		return Credential{}, fmt.Errorf("parsing cookie: %w", err)
	}

	var cred Credential
	for _, c := range cookies {
		switch c.Name {
		case SessDataCookie:
			cred.SessData = c.Value
		case CSRFCookie:
			cred.CSRF = c.Value
		}
	}
	if err := cred.Validate(); err != nil {
		return Credential{}, err
	}
	return cred, nil
}

// ReadCookie reads one pasted cookie line from r.
func ReadCookie(r io.Reader) (Credential, error) {
	fmt.Println("Paste the Cookie header from a logged-in live.bilibili.com tab:")
	fmt.Print("> ")

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Credential{}, fmt.Errorf("reading cookie: %w", err)
		}
		return Credential{}, errors.New("no input received")
	}

	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return Credential{}, errors.New("cookie cannot be empty")
	}
	return ParseCookie(line)
}
