package textutil

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxFileNameBytes keeps upload names well under common filesystem limits.
const maxFileNameBytes = 128

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName makes a client-supplied upload name safe to create inside
// a scratch directory. Separators and reserved characters are replaced,
// control characters and leading dots are dropped, and long names are cut to
// maxFileNameBytes while keeping the extension. It returns "" when nothing
// usable remains.
func SanitizeFileName(name string) string {
	name = fileNameReplacer.Replace(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, name)
	name = strings.TrimLeft(strings.TrimSpace(name), ".")
	name = strings.TrimSpace(name)
	if len(name) <= maxFileNameBytes {
		return name
	}

	ext := filepath.Ext(name)
	if len(ext) > maxFileNameBytes/4 {
		ext = ""
	}
	stem := strings.TrimSuffix(name, ext)
	limit := maxFileNameBytes - len(ext)
	for len(stem) > limit {
		_, size := utf8.DecodeLastRuneInString(stem)
		stem = stem[:len(stem)-size]
	}
	return strings.TrimSpace(stem) + ext
}

// SanitizeToken lowercases value and keeps only ASCII letters, digits,
// hyphens, and underscores. Runs of other characters collapse into a single
// underscore. Empty results become "unknown".
func SanitizeToken(value string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
