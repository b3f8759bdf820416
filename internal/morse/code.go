// internal/morse/code.go
package morse

import (
	"strings"
	"time"
	"unicode"
)

// Token-stream markers. A stream is a space-separated list of these; see
// EncodeSentence for the produced shape and StreamItems for consumption.
const (
	// TokenDit is a dit sound.
	TokenDit = "."
	// TokenDah is a dah sound.
	TokenDah = "-"
	// TokenInterGap is the silent gap between characters.
	TokenInterGap = "/"
	// TokenWordGap is the silent gap between words.
	TokenWordGap = "|"
)

// codeTable maps characters to their dit/dah patterns (ITU plus the common
// punctuation and prosign-adjacent signs). Decoding uses the inverse map.
var codeTable = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".",
	'F': "..-.", 'G': "--.", 'H': "....", 'I': "..", 'J': ".---",
	'K': "-.-", 'L': ".-..", 'M': "--", 'N': "-.", 'O': "---",
	'P': ".--.", 'Q': "--.-", 'R': ".-.", 'S': "...", 'T': "-",
	'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-", 'Y': "-.--",
	'Z': "--..",

	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",

	'.': ".-.-.-", ',': "--..--", '?': "..--..", '\'': ".----.",
	'!': "-.-.--", '/': "-..-.", '(': "-.--.", ')': "-.--.-",
	'&': ".-...", ':': "---...", ';': "-.-.-.", '=': "-...-",
	'+': ".-.-.", '-': "-....-", '_': "..--.-", '"': ".-..-.",
	'$': "...-..-", '@': ".--.-.",
}

var patternTable = func() map[string]rune {
	m := make(map[string]rune, len(codeTable))
	for r, pat := range codeTable {
		m[pat] = r
	}
	return m
}()

// EncodeChar returns the dit/dah pattern for a character. Lowercase
// letters are folded to uppercase. The second return is false for
// characters outside the table.
func EncodeChar(r rune) (string, bool) {
	pat, ok := codeTable[unicode.ToUpper(r)]
	return pat, ok
}

// DecodeSequence maps an accumulated pattern (e.g. ".-") back to its
// character. The second return is false for unknown sequences.
func DecodeSequence(seq string) (rune, bool) {
	r, ok := patternTable[seq]
	return r, ok
}

// EncodeSentence converts text into a token stream: symbols within a
// character are separated by single spaces, characters by " / ", words by
// " | ". Unknown characters are dropped; there are no leading or trailing
// separators.
func EncodeSentence(text string) string {
	var words []string
	for _, word := range strings.Fields(text) {
		var chars []string
		for _, r := range word {
			pat, ok := EncodeChar(r)
			if !ok {
				continue
			}
			syms := make([]string, len(pat))
			for i := range pat {
				syms[i] = string(pat[i])
			}
			chars = append(chars, strings.Join(syms, " "))
		}
		if len(chars) > 0 {
			words = append(words, strings.Join(chars, " "+TokenInterGap+" "))
		}
	}
	return strings.Join(words, " "+TokenWordGap+" ")
}

// StreamItem is one step of a token stream walk: either a sound of the
// given duration or a silent advance of the logical clock.
type StreamItem struct {
	Sound    bool
	Symbol   Symbol
	Duration time.Duration
}

// StreamItems expands a token stream into the linear sound/silence steps
// the scheduler plays. Every sound is followed by the default intra-gap
// unless an explicit gap token (or the end of the stream) comes next.
func StreamItems(stream string, t Timing) []StreamItem {
	fields := strings.Fields(stream)
	var items []StreamItem
	for i, f := range fields {
		switch f {
		case TokenInterGap:
			items = append(items, StreamItem{Duration: t.InterGap})
			continue
		case TokenWordGap:
			items = append(items, StreamItem{Duration: t.WordGap})
			continue
		}
		runes := []rune(f)
		for j, r := range runes {
			var sym Symbol
			switch r {
			case '.':
				sym = Dit
			case '-':
				sym = Dah
			default:
				// Unknown token, dropped.
				continue
			}
			items = append(items, StreamItem{Sound: true, Symbol: sym, Duration: t.Element(sym)})
			if j < len(runes)-1 {
				items = append(items, StreamItem{Duration: t.IntraGap})
				continue
			}
			if i < len(fields)-1 && fields[i+1] != TokenInterGap && fields[i+1] != TokenWordGap {
				items = append(items, StreamItem{Duration: t.IntraGap})
			}
		}
	}
	return items
}
