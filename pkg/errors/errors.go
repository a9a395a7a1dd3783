package errors

import "errors"

// ── 错误分类 ──
//
// 业务错误统一归入四类，Handler 层按类别映射 HTTP 状态码：
//   - ErrValidation    → 400
//   - ErrConflict      → 409
//   - ErrAuthorization → 403
//   - ErrNotFound      → 404

var (
	ErrValidation    = errors.New("validation error")
	ErrConflict      = errors.New("conflict")
	ErrAuthorization = errors.New("authorization error")
	ErrNotFound      = errors.New("not found")
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("record was modified by another request, reload and retry")

// Error 带分类的业务错误
// Message 直接返回给调用方，需可读且不含内部细节
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

// Unwrap 使 errors.Is(err, ErrValidation) 等判断生效
func (e *Error) Unwrap() error { return e.Kind }

// Validation 创建校验错误
func Validation(msg string) *Error { return &Error{Kind: ErrValidation, Message: msg} }

// Conflict 创建冲突错误
func Conflict(msg string) *Error { return &Error{Kind: ErrConflict, Message: msg} }

// Authorization 创建权限错误
func Authorization(msg string) *Error { return &Error{Kind: ErrAuthorization, Message: msg} }

// NotFound 创建资源不存在错误
func NotFound(msg string) *Error { return &Error{Kind: ErrNotFound, Message: msg} }

// KindOf 返回错误所属分类，无法识别时返回 nil
func KindOf(err error) error {
	for _, k := range []error{ErrValidation, ErrConflict, ErrAuthorization, ErrNotFound} {
		if errors.Is(err, k) {
			return k
		}
	}
	if errors.Is(err, ErrOptimisticLock) {
		return ErrConflict
	}
	return nil
}

// Message 提取可展示的错误信息
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
