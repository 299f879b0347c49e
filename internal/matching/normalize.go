package matching

import "strings"

// transliterator converts Latin-typed names to Cyrillic so that a name typed
// in either script normalizes to the same form. Digraphs are listed before
// single letters; strings.Replacer tries patterns in argument order at each
// position, which gives digraphs precedence.
var transliterator = strings.NewReplacer(
	"shch", "щ",
	"sch", "щ",
	"yo", "е",
	"zh", "ж",
	"kh", "х",
	"ts", "ц",
	"ch", "ч",
	"sh", "ш",
	"yu", "ю",
	"ya", "я",
	"ye", "е",
	"a", "а",
	"b", "б",
	"c", "к",
	"d", "д",
	"e", "е",
	"f", "ф",
	"g", "г",
	"h", "х",
	"i", "и",
	"j", "ж",
	"k", "к",
	"l", "л",
	"m", "м",
	"n", "н",
	"o", "о",
	"p", "п",
	"q", "к",
	"r", "р",
	"s", "с",
	"t", "т",
	"u", "у",
	"v", "в",
	"w", "в",
	"x", "х",
	"y", "й",
	"z", "з",
)

// Normalize prepares a name for comparison: trim, lower-case, fold ё onto е,
// collapse repeated whitespace, then transliterate Latin input to Cyrillic.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "ё", "е")
	s = strings.Join(strings.Fields(s), " ")
	return transliterator.Replace(s)
}
