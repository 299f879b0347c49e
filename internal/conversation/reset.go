package conversation

import "regexp"

// Reset vocabulary in Russian and English. Go's \b is ASCII-only, so the
// Cyrillic alternatives use explicit non-letter boundaries instead.
var resetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(^|[^\p{L}])(отмена|отмени(ть)?|отменяю)($|[^\p{L}])`),
	regexp.MustCompile(`(?i)(^|[^\p{L}])(очисти(ть)?|сброс(ить)?|сбрось)($|[^\p{L}])`),
	regexp.MustCompile(`(?i)(^|[^\p{L}])(заново|сначала|перезапус(к|ти))($|[^\p{L}])`),
	regexp.MustCompile(`(?i)(^|[^\p{L}])(стоп|хватит|останови(сь)?)($|[^\p{L}])`),
	regexp.MustCompile(`(?i)(^|[^a-z])(cancel|reset|clear|restart|stop)($|[^a-z])`),
}

// IsResetCommand reports whether the utterance is an explicit request to
// discard all session state.
func IsResetCommand(message string) bool {
	for _, p := range resetPatterns {
		if p.MatchString(message) {
			return true
		}
	}
	return false
}
