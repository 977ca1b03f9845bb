package danmaku

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage is returned for text that is blank after trimming.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrInvalidRoom is returned for a non-positive room id.
	ErrInvalidRoom = errors.New("invalid room id")
)

// MissingCode is the APIError code used when the reply carried no code.
const MissingCode = -1

// APIError is a well-formed response whose code is not 0.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Sprintf("send rejected (code %d): %s", e.Code, msg)
}

// TransportError is a request that never produced a usable 200 response.
// StatusCode is 0 when the request failed before a response arrived.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("send failed: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("send failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError is a 200 response whose body is not the expected JSON.
type ParseError struct {
	Body []byte
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed send response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Describe renders a send failure for the console.
func Describe(err error) string {
	var (
		apiErr       *APIError
		parseErr     *ParseError
		transportErr *TransportError
	)
	switch {
	case errors.As(err, &apiErr):
		msg := apiErr.Message
		if msg == "" {
			msg = "未知错误"
		}
		return "❌ 发送失败：" + msg
	case errors.As(err, &parseErr):
		return "❌ 响应解析失败"
	case errors.As(err, &transportErr) && transportErr.StatusCode != 0:
		return fmt.Sprintf("❌ 请求失败，状态码：%d", transportErr.StatusCode)
	default:
		return fmt.Sprintf("❌ 发送异常：%v", err)
	}
}
