package merge

import (
	"strings"
	"unicode/utf8"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/ocr"
)

// The separation below is approximate. Quoted spans in a description are
// assumed to repeat OCR output, and sentences that talk about visible text
// are dropped. Some duplication survives and some analysis may be lost.

// quotePairs lists the quotation families recognized, Latin and CJK.
// Straight single quotes are left out; they collide with apostrophes.
var quotePairs = [][2]rune{
	{'"', '"'},
	{'“', '”'},
	{'‘', '’'},
	{'「', '」'},
	{'『', '』'},
	{'【', '】'},
	{'［', '］'},
	{'[', ']'},
	{'〈', '〉'},
	{'《', '》'},
}

// descriptivePhrases mark a quoted span as prose rather than image text.
var descriptivePhrases = []string{
	"the image", "this image", "appears to be", "seems to", "looks like",
	"shows", "depicts", "contains",
}

// referentialPhrases flag sentences that restate visible text.
var referentialPhrases = []string{
	"titled", "labeled", "labelled", "text reads", "reads:", "displays text",
	"shows text", "contains text", "the text", "written",
}

const minSentenceRunes = 10

// QuotedSpans returns text enclosed by any recognized quotation pair,
// excluding spans that read like description.
func QuotedSpans(desc string) []string {
	var spans []string
	seen := make(map[string]bool)
	for _, q := range quotePairs {
		rest := desc
		for {
			i := strings.IndexRune(rest, q[0])
			if i < 0 {
				break
			}
			after := rest[i+utf8.RuneLen(q[0]):]
			j := strings.IndexRune(after, q[1])
			if j < 0 {
				break
			}
			span := strings.TrimSpace(after[:j])
			rest = after[j+utf8.RuneLen(q[1]):]
			if span == "" || seen[span] || isDescriptive(span) {
				continue
			}
			seen[span] = true
			spans = append(spans, span)
		}
	}
	return spans
}

func isDescriptive(span string) bool {
	low := strings.ToLower(span)
	for _, p := range descriptivePhrases {
		if strings.Contains(low, p) {
			return true
		}
	}
	return false
}

// splitSentences cuts after Latin and CJK terminal punctuation and line
// breaks. Each piece keeps its trailing whitespace so joining the pieces
// restores the text.
func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	rs := []rune(text)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		cur.WriteRune(r)
		if !isTerminal(r) {
			continue
		}
		if r == '.' && (isListOrdinal(cur.String()) || (i+1 < len(rs) && rs[i+1] != ' ' && rs[i+1] != '\n')) {
			continue
		}
		for i+1 < len(rs) && (rs[i+1] == ' ' || rs[i+1] == '\n') {
			i++
			cur.WriteRune(rs[i])
		}
		out = append(out, cur.String())
		cur.Reset()
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '\n':
		return true
	}
	return false
}

// isListOrdinal reports whether the current line so far is "12." style.
func isListOrdinal(s string) bool {
	if k := strings.LastIndexByte(s, '\n'); k >= 0 {
		s = s[k+1:]
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "."))
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// AnalysisWithoutOCR removes sentences of desc that restate OCR text. When
// filtering would leave nothing the original description is returned.
func AnalysisWithoutOCR(desc, ocrText string) string {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return ""
	}

	dupes := QuotedSpans(desc)
	for _, line := range strings.Split(ocr.StripMarkers(ocrText), "\n") {
		if line = strings.TrimSpace(line); utf8.RuneCountInString(line) >= 4 {
			dupes = append(dupes, line)
		}
	}

	var sb strings.Builder
	for _, piece := range splitSentences(desc) {
		s := strings.TrimSpace(piece)
		if utf8.RuneCountInString(s) <= minSentenceRunes || mentionsAny(s, dupes) || refersToText(s) {
			continue
		}
		sb.WriteString(piece)
	}
	kept := strings.TrimSpace(sb.String())
	if kept == "" {
		return desc
	}
	return kept
}

func mentionsAny(s string, spans []string) bool {
	for _, span := range spans {
		if strings.Contains(s, span) {
			return true
		}
	}
	return false
}

func refersToText(s string) bool {
	low := strings.ToLower(s)
	for _, p := range referentialPhrases {
		if strings.Contains(low, p) {
			return true
		}
	}
	return false
}
