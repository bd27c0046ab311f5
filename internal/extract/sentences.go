package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// abbreviations that end with a period but do not end a sentence
var abbreviations = map[string]bool{
	"mr.": true, "mrs.": true, "ms.": true, "dr.": true, "prof.": true,
	"sr.": true, "jr.": true, "st.": true, "vs.": true, "etc.": true,
	"e.g.": true, "i.e.": true, "u.s.": true, "u.k.": true, "inc.": true,
	"co.": true, "corp.": true, "ltd.": true, "no.": true, "jan.": true,
	"feb.": true, "aug.": true, "sept.": true, "oct.": true, "nov.": true,
	"dec.": true,
}

// SplitSentences splits article text into sentences. A sentence ends at
// '.', '!' or '?' followed by whitespace, or at a CJK full stop. Known
// abbreviations and single-letter initials ("J. Smith") do not end a
// sentence. Terminators are kept; empty fragments are dropped.
func SplitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")

	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for i, r := range text {
		current.WriteRune(r)

		switch r {
		case '。', '！', '？':
			flush()
		case '.', '!', '?':
			rest := text[i+utf8.RuneLen(r):]
			if next, _ := utf8.DecodeRuneInString(rest); rest != "" && !unicode.IsSpace(next) {
				continue
			}
			if r == '.' && isAbbreviation(current.String()) {
				continue
			}
			flush()
		}
	}
	flush()

	return sentences
}

// isAbbreviation reports whether the text ends in a known abbreviation or
// a single-letter initial
func isAbbreviation(text string) bool {
	idx := strings.LastIndexFunc(text, unicode.IsSpace)
	word := strings.ToLower(text[idx+1:])

	if abbreviations[word] {
		return true
	}

	// "J." style initials
	if utf8.RuneCountInString(word) == 2 {
		first, _ := utf8.DecodeRuneInString(word)
		return unicode.IsLetter(first) && first < unicode.MaxASCII
	}
	return false
}
