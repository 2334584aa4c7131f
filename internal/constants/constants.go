package constants

const (
	LanguageEnglish    = "en"
	LanguageFrench     = "fr"
	LanguageSpanish    = "es"
	LanguagePortuguese = "pt"

	DefaultLanguage = LanguageEnglish
)
