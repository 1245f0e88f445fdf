// Package rule 基于 go-playground/validator 的配置与输入校验，结构体标签名为 rule.
// gin 的 binding 标签由 gin 自己的引擎处理，两者互不影响.
package rule

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var engine = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("rule")

	_ = v.RegisterValidation("notnumeric", notNumeric)
	_ = v.RegisterValidation("noat", noAt)

	// 对象扩展名：1 到 16 位小写字母数字，且不能全为数字
	v.RegisterAlias("chest_ext", "required,max=16,alphanum,lowercase,notnumeric")
	// 命名空间会拼进别名 id，不能含 '@' 或空白
	v.RegisterAlias("chest_ns", "required,max=64,printascii,excludesall= \t,noat")
	// 内容哈希：小写十六进制 SHA-256
	v.RegisterAlias("chest_hash", "len=64,hexadecimal,lowercase")

	return v
})

func notNumeric(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}

	return strings.ContainsFunc(s, func(r rune) bool { return r < '0' || r > '9' })
}

func noAt(fl validator.FieldLevel) bool {
	return !strings.Contains(fl.Field().String(), "@")
}

// ValidateStruct 按 rule 标签校验结构体，失败时返回 validator.ValidationErrors.
func ValidateStruct(s any) error {
	return engine().Struct(s)
}

// ValidateVar 按规则校验单个值，例如 ValidateVar(ext, "chest_ext").
func ValidateVar(field any, tag string) error {
	return engine().Var(field, tag)
}
