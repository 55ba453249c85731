package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var words = map[string]string{
	"english":    "en",
	"japanese":   "ja",
	"chinese":    "zh",
	"korean":     "ko",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"russian":    "ru",
}

func parseBase(code string) (xlang.Base, bool) {
	code = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(code, "\u0000", "")))
	if code == "" || code == "und" {
		return xlang.Base{}, false
	}
	if mapped, ok := words[code]; ok {
		code = mapped
	}
	if base, err := xlang.ParseBase(code); err == nil {
		return base, true
	}
	tag, err := xlang.Parse(code)
	if err != nil {
		return xlang.Base{}, false
	}
	base, conf := tag.Base()
	if conf == xlang.No {
		return xlang.Base{}, false
	}
	return base, true
}

// ToISO2 converts a language code, BCP 47 tag, or English name to its
// shortest base code (ISO 639-1 where one exists). Unrecognized input
// returns "".
func ToISO2(code string) string {
	base, ok := parseBase(code)
	if !ok {
		return ""
	}
	return base.String()
}

// ToISO3 converts a language code to ISO 639-2. Unrecognized input returns "und".
func ToISO3(code string) string {
	base, ok := parseBase(code)
	if !ok {
		return "und"
	}
	return base.ISO3()
}

// DisplayName returns the English name for a language code, "Unknown" for
// empty input, or the upper-cased input when it cannot be parsed.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	base, ok := parseBase(trimmed)
	if !ok {
		return strings.ToUpper(trimmed)
	}
	tag, err := xlang.Compose(base)
	if err != nil {
		return strings.ToUpper(trimmed)
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return strings.ToUpper(trimmed)
}

// Matches reports whether two language codes name the same base language.
func Matches(a, b string) bool {
	left := ToISO2(a)
	return left != "" && left == ToISO2(b)
}
