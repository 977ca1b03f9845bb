package danmaku

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinyland-inc/bilichat/pkg/auth"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"api", &APIError{Code: 1, Message: "频率过快"}, "❌ 发送失败：频率过快"},
		{"api no message", &APIError{Code: 1}, "❌ 发送失败：未知错误"},
		{"wrapped api", fmt.Errorf("room 6: %w", &APIError{Code: 2, Message: "x"}), "❌ 发送失败：x"},
		{"parse", &ParseError{Err: errors.New("eof")}, "❌ 响应解析失败"},
		{"status", &TransportError{StatusCode: 412}, "❌ 请求失败，状态码：412"},
		{"network", &TransportError{Err: errors.New("dial tcp: refused")}, "❌ 发送异常：send failed: dial tcp: refused"},
		{"credential", auth.ErrMissingCredential, "❌ 发送异常：" + auth.ErrMissingCredential.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.err))
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &TransportError{Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "send failed: HTTP 500", (&TransportError{StatusCode: 500}).Error())
}
