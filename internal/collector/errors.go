package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrNotFound 上游返回 404，翻页时视为“没有更多数据”
	ErrNotFound = errors.New("collector: not found")
	// ErrMalformed 页面中找不到预期的内容容器
	ErrMalformed = errors.New("collector: malformed document")
	// ErrInvalidLink 链接不在允许的站点内，请求未发出
	ErrInvalidLink = errors.New("collector: link is not on the configured site")
)

// FetchError 描述一次抓取失败；StatusCode 为 0 表示连接层错误
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient 连接错误与 5xx 属于可重试的临时错误（重试已在传输层做完）
func (e *FetchError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
}

// 预览结果中的 error_kind 取值
const (
	KindNotFound    = "not_found"
	KindTimeout     = "timeout"
	KindUnavailable = "unavailable"
	KindMalformed   = "malformed"
	KindCanceled    = "canceled"
	KindFailed      = "fetch_failed"
	KindInvalidLink = "invalid_link"
)

// ErrorKind 把错误归类为预览结果中的 error_kind
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrInvalidLink) {
		return KindInvalidLink
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	if errors.Is(err, ErrMalformed) {
		return KindMalformed
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var fe *FetchError
	if errors.As(err, &fe) && fe.Transient() {
		return KindUnavailable
	}
	return KindFailed
}
