package translator

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// aliases maps informal codes found in story file names to BCP-47.
var aliases = map[string]string{
	"jp": "ja",
	"cn": "zh",
	"kr": "ko",
	"gr": "el",
	"dk": "da",
	"se": "sv",
}

// ParseLanguage parses a language code, accepting the informal aliases
// used in story file names (stories-jp.json).
func ParseLanguage(code string) (language.Tag, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if alias, ok := aliases[code]; ok {
		code = alias
	}
	return language.Parse(code)
}

// NormalizeLanguage returns the canonical BCP-47 form of code, or code
// unchanged if it cannot be parsed.
func NormalizeLanguage(code string) string {
	tag, err := ParseLanguage(code)
	if err != nil {
		return code
	}
	return tag.String()
}

// LanguageName returns the English display name of a language code, as
// used in the polishing prompt ("ja" -> "Japanese"). Unknown codes are
// returned as given.
func LanguageName(code string) string {
	tag, err := ParseLanguage(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
