package domain

import (
	"errors"
	"strings"
)

// 校验相关的错误定义
//
// 错误文本会原样出现在 HTTP 响应的 error 字段中，修改时需同步前端。
var (
	ErrFieldsRequired = errors.New("All fields are required")
	ErrInvalidEmail   = errors.New("Invalid email")
	ErrNameTooLong    = errors.New("Name too long")
	ErrEmailTooLong   = errors.New("Email too long")
	ErrMessageTooLong = errors.New("Message too long")
)

// 字段长度限制
const (
	MaxNameLength    = 120
	MaxEmailLength   = 254 // RFC 5322 整个邮箱地址最大长度
	MaxMessageLength = 5000
)

// SubmissionInput 联系表单的原始输入字段。
//
// Company 是蜜罐字段：前端表单中对人类不可见，
// 自动化提交程序往往会填写它。
type SubmissionInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
	Company string `json:"company"`
}

// ValidatedSubmission 校验通过后的规范化字段
type ValidatedSubmission struct {
	Name    string
	Email   string
	Message string
}

// Validate 对原始输入做规范化与校验。
//
// 校验顺序：
//  1. 去除 name/email/message 的首尾空白
//  2. 蜜罐字段非空 -> honeypot=true（调用方需对外返回成功但静默丢弃）
//  3. 必填检查
//  4. 字段长度上限
//  5. 邮箱形状检查（local@domain，不含空白字符）
//
// 返回值:
//   - *ValidatedSubmission: 规范化后的字段，校验失败或蜜罐触发时为 nil
//   - honeypot: 是否命中蜜罐
//   - error: 校验错误，蜜罐命中时为 nil
func Validate(input SubmissionInput) (*ValidatedSubmission, bool, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	message := strings.TrimSpace(input.Message)

	// 蜜罐判定先于必填检查：机器人填写了隐藏字段即视为垃圾提交
	if strings.TrimSpace(input.Company) != "" {
		return nil, true, nil
	}

	if name == "" || email == "" || message == "" {
		return nil, false, ErrFieldsRequired
	}

	if len(name) > MaxNameLength {
		return nil, false, ErrNameTooLong
	}
	if len(email) > MaxEmailLength {
		return nil, false, ErrEmailTooLong
	}
	if len(message) > MaxMessageLength {
		return nil, false, ErrMessageTooLong
	}

	if !isEmailShaped(email) {
		return nil, false, ErrInvalidEmail
	}

	return &ValidatedSubmission{
		Name:    name,
		Email:   email,
		Message: message,
	}, false, nil
}

// isEmailShaped 宽松的邮箱形状检查
//
// 只要求恰好一个 @ 分隔非空的本地部分与域名，且不含空白字符；
// 不做 RFC 5322 全量解析，由收件方 SMTP 服务器做最终裁决。
func isEmailShaped(email string) bool {
	if strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}
	local, domain := email[:at], email[at+1:]
	return local != "" && domain != ""
}

// IsValidationError 判断是否为用户输入校验错误（应映射为 400）
func IsValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrFieldsRequired),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrNameTooLong),
		errors.Is(err, ErrEmailTooLong),
		errors.Is(err, ErrMessageTooLong):
		return true
	}
	return false
}
