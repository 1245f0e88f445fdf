package service

import (
	"mime"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"github.com/yeisme/chest/pkg/rule"
)

const maxNameBytes = 255

// SanitizeName 去掉 POSIX 与 Windows 风格的目录和盘符，并移除文件系统不安全的字符.
// 结果为空时返回空字符串，由调用方决定缺省名称.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")

	// C:evil.txt 这类只带盘符的写法
	if len(name) >= 2 && name[1] == ':' && isASCIILetter(name[0]) {
		name = name[2:]
	}

	name = path.Base(name)

	name = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r), strings.ContainsRune(`<>:"/\|?*`, r):
			return -1
		default:
			return r
		}
	}, name)

	// Windows 不允许以点或空格结尾
	name = strings.TrimRight(name, ". ")

	if name == "" || name == "." || name == ".." || reservedName(name) {
		return ""
	}

	for len(name) > maxNameBytes {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}

	return name
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// reservedName Windows 保留的设备名.
func reservedName(name string) bool {
	base := strings.ToUpper(strings.SplitN(name, ".", 2)[0])

	switch base {
	case "CON", "PRN", "AUX", "NUL":
		return true
	}

	if len(base) == 4 && (strings.HasPrefix(base, "COM") || strings.HasPrefix(base, "LPT")) {
		return base[3] >= '1' && base[3] <= '9'
	}

	return false
}

// DeriveExtension 按 显式 > 文件名 > MIME 子类型 的顺序选择第一个合法的扩展名.
// 合法扩展名为 1 到 16 位小写字母数字且不全为数字，都不合法时返回空字符串.
func DeriveExtension(explicit, name, mimeType string) string {
	candidates := []string{
		explicit,
		path.Ext(name),
		mimeSubtype(mimeType),
	}

	for _, cand := range candidates {
		cand = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cand), "."))
		if rule.ValidateVar(cand, "chest_ext") == nil {
			return cand
		}
	}

	return ""
}

func mimeSubtype(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return ""
	}

	_, sub, ok := strings.Cut(mediaType, "/")
	if !ok {
		return ""
	}

	// image/svg+xml 取 svg
	sub, _, _ = strings.Cut(sub, "+")

	return sub
}

// sniff 从文件内容识别 MIME 类型与字符集.
func sniff(file string) (mediaType, charset string) {
	mt, err := mimetype.DetectFile(file)
	if err != nil {
		return "application/octet-stream", ""
	}

	mediaType, params, err := mime.ParseMediaType(mt.String())
	if err != nil {
		return mt.String(), ""
	}

	return mediaType, params["charset"]
}
