package ocr

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// directFixes are applied everywhere after NFKC.
var directFixes = strings.NewReplacer(
	"―", "ー",
	"–", "ー",
	"·", "・",
	"•", "・",
	"．", ".",
	"，", ",",
)

// katakanaFixes maps kanji that recognizers confuse with katakana. They are
// only rewritten when both neighbours are katakana.
var katakanaFixes = map[rune]rune{
	'力': 'カ',
	'夕': 'タ',
	'工': 'エ',
	'二': 'ニ',
	'口': 'ロ',
}

// NormalizeScript applies NFKC, the fixed substitution table, the
// context-guarded katakana corrections and CJK spacing cleanup.
func NormalizeScript(text string) string {
	if text == "" {
		return ""
	}
	text = norm.NFKC.String(text)
	text = directFixes.Replace(text)
	text = fixKatakanaContext(text)
	return collapseSpaces(text)
}

func isKatakana(r rune) bool {
	return (r >= 'ァ' && r <= 'ヴ') || r == 'ー'
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) || r == 'ー'
}

func isCJKPunct(r rune) bool {
	return r == '、' || r == '。'
}

func fixKatakanaContext(text string) string {
	rs := []rune(text)
	for i := 1; i < len(rs)-1; i++ {
		fixed, ok := katakanaFixes[rs[i]]
		if !ok {
			continue
		}
		if isKatakana(rs[i-1]) && isKatakana(rs[i+1]) {
			rs[i] = fixed
		}
	}
	return string(rs)
}

// collapseSpaces folds whitespace runs to one space, then drops spaces
// between CJK characters and around ideographic commas and full stops.
func collapseSpaces(text string) string {
	rs := []rune(strings.Join(strings.Fields(text), " "))
	var sb strings.Builder
	sb.Grow(len(rs))
	for i, r := range rs {
		if r == ' ' && i > 0 && i < len(rs)-1 {
			prev, next := rs[i-1], rs[i+1]
			if isCJKPunct(prev) || isCJKPunct(next) || (isCJK(prev) && isCJK(next)) {
				continue
			}
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
