package platform

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// DecodeOutput converts raw child-process output to UTF-8. On Windows the
// default console code page for Chinese locales is GBK, which shows up as
// mojibake if treated as UTF-8; everywhere else output is passed through.
// Undecodable bytes are replaced, never dropped.
func DecodeOutput(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	if !IsWindows() || utf8.Valid(raw) {
		return string(raw)
	}
	decoded, _, err := transform.Bytes(simplifiedchinese.GBK.NewDecoder(), raw)
	if err != nil {
		// Fall back to lossy UTF-8 interpretation.
		return string(raw)
	}
	return string(decoded)
}
