package apperr

import (
	"errors"
	"fmt"
)

// Kind 业务错误分类（HTTP层据此映射状态码）
type Kind string

const (
	KindValidation Kind = "validation" // 入参非法：区间倒置、缺字段、里程回退等
	KindConflict   Kind = "conflict"   // 重叠冲突或锁等待超时，调用方可重试
	KindNotFound   Kind = "not_found"  // 车辆/预订不存在
	KindForbidden  Kind = "forbidden"  // 操作者缺少所需角色
	KindState      Kind = "state"      // 预订不处于要求的源状态
)

// Error 结构化业务错误：分类 + 可读原因
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...interface{}) *Error {
	return newf(KindValidation, format, args...)
}

func Conflictf(format string, args ...interface{}) *Error {
	return newf(KindConflict, format, args...)
}

func NotFoundf(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

func Forbiddenf(format string, args ...interface{}) *Error {
	return newf(KindForbidden, format, args...)
}

func Statef(format string, args ...interface{}) *Error {
	return newf(KindState, format, args...)
}

// KindOf 返回错误的分类；非业务错误返回空串。
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// Is 判断错误是否属于某个分类。
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
