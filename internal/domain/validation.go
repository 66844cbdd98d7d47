package domain

import (
	"errors"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrEmailTooLong     = errors.New("email address too long")
	ErrEmptyFilename    = errors.New("filename must not be empty")
	ErrUnsafeFilename   = errors.New("filename contains path separators")
)

// MaxEmailLength RFC 5322 邮箱地址最大长度
const MaxEmailLength = 254

// ValidateRecipient 校验收件人地址
//
// 只做轻量格式检查：必须包含 @ 分隔符且两侧非空。
// 真实的可达性由投递阶段的 SMTP 会话裁决。
func ValidateRecipient(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrInvalidEmail
	}
	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}

	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateStoredFilename 校验对外接口传入的存储文件名
//
// 存储文件名由服务端生成，不应包含任何路径成分；
// 带路径分隔符的输入一律拒绝，防止目录穿越。
func ValidateStoredFilename(name string) error {
	if name == "" {
		return ErrEmptyFilename
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return ErrUnsafeFilename
	}
	return nil
}
