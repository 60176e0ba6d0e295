package language

import (
	"fmt"
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto is the sentinel hint that asks the recognizer to detect the language.
const Auto = "auto"

type entry struct {
	code2 string   // ISO 639-1 (2-letter)
	code3 string   // ISO 639-2 primary (3-letter)
	alt3  string   // ISO 639-2 alternate (e.g. "fre" vs "fra")
	words []string // Full word forms (e.g. "english")
}

var languages = []entry{
	{"en", "eng", "", []string{"english"}},
	{"fa", "fas", "per", []string{"persian", "farsi"}},
	{"es", "spa", "", []string{"spanish"}},
	{"fr", "fra", "fre", []string{"french"}},
	{"de", "deu", "ger", []string{"german"}},
	{"it", "ita", "", []string{"italian"}},
	{"pt", "por", "", []string{"portuguese"}},
	{"ja", "jpn", "", []string{"japanese"}},
	{"ko", "kor", "", []string{"korean"}},
	{"zh", "zho", "chi", []string{"chinese"}},
	{"ru", "rus", "", []string{"russian"}},
	{"ar", "ara", "", []string{"arabic"}},
	{"hi", "hin", "", []string{"hindi"}},
	{"tr", "tur", "", []string{"turkish"}},
	{"nl", "nld", "dut", []string{"dutch"}},
}

var index map[string]*entry

func init() {
	index = make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		index[e.code2] = e
		index[e.code3] = e
		if e.alt3 != "" {
			index[e.alt3] = e
		}
		for _, w := range e.words {
			index[w] = e
		}
	}
}

// IsAuto reports whether value requests automatic detection.
func IsAuto(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	return value == "" || value == Auto
}

// NormalizeHint converts a user supplied language into the short code the
// recognizer expects. Auto-detect hints return Auto. Word forms ("persian"),
// ISO 639-2 codes, and BCP 47 tags ("en-US") are accepted.
func NormalizeHint(value string) (string, error) {
	if IsAuto(value) {
		return Auto, nil
	}
	value = strings.ToLower(strings.TrimSpace(value))
	if e, ok := index[value]; ok {
		return e.code2, nil
	}
	tag, err := xlanguage.Parse(value)
	if err != nil {
		return "", fmt.Errorf("unrecognized language %q: %w", value, err)
	}
	base, confidence := tag.Base()
	if confidence == xlanguage.No {
		return "", fmt.Errorf("unrecognized language %q", value)
	}
	return base.String(), nil
}

// ToISO2 converts any recognized language code or word to ISO 639-1 (2-letter).
// Returns empty string for unrecognized input.
func ToISO2(code string) string {
	normalized, err := NormalizeHint(code)
	if err != nil || normalized == Auto || len(normalized) != 2 {
		return ""
	}
	return normalized
}

// DisplayName returns an English name for a detected language code.
// Returns "Unknown" for empty or sentinel input.
func DisplayName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, "unknown") || IsAuto(code) {
		return "Unknown"
	}
	normalized, err := NormalizeHint(code)
	if err != nil {
		return strings.ToUpper(code)
	}
	tag, err := xlanguage.Parse(normalized)
	if err != nil {
		return strings.ToUpper(code)
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return strings.ToUpper(code)
}
