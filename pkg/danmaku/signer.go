package danmaku

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"
	"time"
)

// Signer supplies the w_rid signature for a send request. The value is
// embedded unmodified; this package never derives it.
type Signer interface {
	Sign(ctx context.Context, query url.Values) (string, error)
}

// StaticSigner returns a previously captured w_rid. Such values stop working
// once the platform rotates its signing keys.
type StaticSigner string

func (s StaticSigner) Sign(context.Context, url.Values) (string, error) {
	if s == "" {
		return "", errors.New("no w_rid configured")
	}
	return string(s), nil
}

const defaultSignerTimeout = 5 * time.Second

// CommandSigner obtains w_rid from an external program. The encoded query
// (without w_rid) is written to its stdin; the trimmed stdout is the value.
type CommandSigner struct {
	Path    string
	Args    []string
	Timeout time.Duration
}

// NewCommandSigner splits a command line on whitespace.
func NewCommandSigner(command string) (*CommandSigner, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("empty signer command")
	}
	return &CommandSigner{Path: fields[0], Args: fields[1:]}, nil
}

func (s *CommandSigner) Sign(ctx context.Context, query url.Values) (string, error) {
	timeout := s.Timeout
	if timeout == 0 {
		timeout = defaultSignerTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.Path, s.Args...)
	cmd.Stdin = strings.NewReader(query.Encode())
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("signer %s failed: %w\n%s", s.Path, err, stderr.String())
	}

	sig := strings.TrimSpace(string(out))
	if sig == "" {
		return "", fmt.Errorf("signer %s returned an empty signature", s.Path)
	}
	return sig, nil
}
