package pipeline

import (
	"errors"
	"fmt"

	"github.com/jaykayhq/insight-pipeline/internal/payload"
)

// 代理失败原因分类。last_error 保存的是包装后的完整文本。
var (
	ErrConfigMissing      = errors.New("configuration missing")
	ErrUpstream           = errors.New("upstream request failed")
	ErrMalformedPayload   = payload.ErrMalformed
	ErrMalformedResult    = errors.New("malformed result")
	ErrNoData             = errors.New("no data found")
	ErrUndeclaredFollowUp = errors.New("follow-up not declared in pipeline graph")
	ErrActionPanic        = errors.New("action panicked")
)

// UpstreamError 外部服务返回非成功状态
type UpstreamError struct {
	Status  int
	Body    string
	Message string
}

func (e *UpstreamError) Error() string {
	return ErrUpstream.Error() + ": " + e.Message
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// Upstream 构造 UpstreamError
func Upstream(status int, body, format string, args ...any) error {
	return &UpstreamError{Status: status, Body: body, Message: fmt.Sprintf(format, args...)}
}

// ConfigMissing 缺少某项配置
func ConfigMissing(name string) error {
	return fmt.Errorf("%w: %s is not set", ErrConfigMissing, name)
}

// NoData 上游没有返回可用数据
func NoData(msg string) error {
	return fmt.Errorf("%w: %s", ErrNoData, msg)
}

// ErrorKind 返回错误分类名（用于指标标签和 API 响应）
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfigMissing):
		return "config_missing"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrMalformedResult):
		return "malformed_result"
	case errors.Is(err, ErrNoData):
		return "no_data"
	case errors.Is(err, ErrUndeclaredFollowUp):
		return "undeclared_follow_up"
	case errors.Is(err, ErrActionPanic):
		return "panic"
	default:
		return "internal"
	}
}
