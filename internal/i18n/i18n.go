package i18n

import "strings"

type Lang string

const (
	RU Lang = "ru"
	EN Lang = "en"
)

// FromLanguageCode maps a Telegram language_code ("ru", "ru-RU", "en-GB")
// to a supported language.
func FromLanguageCode(code string) Lang {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(code)), "ru") {
		return RU
	}
	return EN
}

// Parse reads a stored language tag; anything unknown is English.
func Parse(s string) Lang {
	if Lang(strings.ToLower(strings.TrimSpace(s))) == RU {
		return RU
	}
	return EN
}

// Pick returns the variant for lang, falling back to English.
func Pick(lang Lang, en, ru string) string {
	if lang == RU && ru != "" {
		return ru
	}
	return en
}

// Text is a short label shown in the user's language. Replies typed in
// either language are accepted.
type Text struct {
	EN string
	RU string
}

func (t Text) In(lang Lang) string {
	return Pick(lang, t.EN, t.RU)
}

// Matches compares a reply against every translation, ignoring case and
// surrounding whitespace.
func (t Text) Matches(reply string) bool {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return false
	}
	return strings.EqualFold(reply, t.EN) || (t.RU != "" && strings.EqualFold(reply, t.RU))
}
