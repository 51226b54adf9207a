// Package i18n detects the language of inbound chat text and translates
// between supported languages and the English pivot.
package i18n

// Supported language codes.
const (
	LangEnglish = "en"
	LangUrdu    = "ur"
	LangArabic  = "ar"
	LangChinese = "zh"
	LangTurkish = "tr"
)

var languageNames = map[string]string{
	LangEnglish: "English",
	LangUrdu:    "Urdu",
	LangArabic:  "Arabic",
	LangChinese: "Chinese",
	LangTurkish: "Turkish",
}

// LanguageName returns the human-readable name for a language code,
// defaulting to English for unknown codes.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return "English"
}

var turkishSpecial = map[rune]struct{}{
	'ğ': {}, 'ş': {}, 'ı': {}, 'ö': {}, 'ü': {}, 'ç': {},
	'Ğ': {}, 'Ş': {}, 'İ': {}, 'Ö': {}, 'Ü': {}, 'Ç': {},
}

// Urdu letters absent from standard Arabic, used to tell the two apart.
var urduSpecific = map[rune]struct{}{
	'ں': {}, 'ے': {}, 'ہ': {}, 'ڈ': {}, 'ٹ': {}, 'ڑ': {}, 'ژ': {},
}

// Detect classifies text into a supported language code using character
// range heuristics. Ambiguous or empty input defaults to English.
func Detect(text string) string {
	if text == "" {
		return LangEnglish
	}

	var total, chinese, arabic, urdu, turkish int
	for _, r := range text {
		total++
		switch {
		case isChinese(r):
			chinese++
		case isArabic(r):
			arabic++
		}
		if _, ok := urduSpecific[r]; ok {
			urdu++
		}
		if _, ok := turkishSpecial[r]; ok {
			turkish++
		}
	}
	if total == 0 {
		return LangEnglish
	}

	if chinese > 0 && float64(chinese)/float64(total) > 0.3 {
		return LangChinese
	}
	if arabic > 0 && float64(arabic)/float64(total) > 0.4 {
		if urdu > 0 {
			return LangUrdu
		}
		return LangArabic
	}
	if turkish > 0 {
		return LangTurkish
	}
	return LangEnglish
}

func isChinese(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}

// Arabic script block, which covers Urdu as well.
func isArabic(r rune) bool {
	return r >= 0x0600 && r <= 0x06FF
}
