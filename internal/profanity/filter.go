// Package profanity detects obscene Russian words, including leetspeak spellings.
package profanity

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Message is returned for every field that failed the check.
const Message = "text contains obscene language"

var defaultWords = []string{
	"хуй", "хуе", "хуя", "пизд", "бляд", "блят", "ебат", "ебан", "ебал", "ебну",
	"уеб", "заеб", "выеб", "мудак", "мудил", "сука", "сучк", "гандон", "пидор",
	"пидар", "шлюх", "залуп", "дроч",
}

// innocent holds stems of ordinary words that contain a dictionary root.
// They are cut out of every word before matching.
var innocent = []string{
	"барсук", "сучков", "сучкоруб", "потребл", "скорбл", "страху",
}

// leet maps look-alike latin letters, digits and symbols onto Cyrillic.
var leet = map[rune]rune{
	'a': 'а', '@': 'а',
	'b': 'в', 'v': 'в',
	'6': 'б',
	'g': 'г', 'r': 'г',
	'd': 'д',
	'e': 'е', 'ё': 'е',
	'3': 'з', 'z': 'з',
	'i': 'и', 'u': 'и', '1': 'и',
	'k': 'к',
	'l': 'л',
	'm': 'м',
	'h': 'н',
	'n': 'п',
	'o': 'о', '0': 'о',
	'p': 'р',
	'c': 'с', 's': 'с', '$': 'с',
	't': 'т',
	'y': 'у',
	'f': 'ф',
	'x': 'х',
	'4': 'ч',
	'w': 'ш',
}

// Filter checks text against a normalized dictionary. It is safe for concurrent use.
type Filter struct {
	words   []string
	allowed []string
}

// New returns a filter with the built-in dictionary plus extra words.
func New(extra ...string) *Filter {
	f := &Filter{}
	seen := make(map[string]bool)
	for _, w := range append(append([]string{}, defaultWords...), extra...) {
		for _, n := range words(Normalize(w)) {
			if n != "" && !seen[n] {
				seen[n] = true
				f.words = append(f.words, n)
			}
		}
	}
	for _, w := range innocent {
		f.allowed = append(f.allowed, Normalize(w))
	}
	return f
}

// Contains reports whether any dictionary entry occurs in a normalized word or in the
// whole text with spaces removed, so "х у й" and "пиз да" are caught as well.
func (f *Filter) Contains(text string) bool {
	var kept []string
	for _, tok := range words(Normalize(text)) {
		for _, part := range f.strip(tok) {
			if f.match(part) {
				return true
			}
			kept = append(kept, part)
		}
	}
	return len(kept) > 0 && f.match(strings.Join(kept, ""))
}

// Check returns field -> message for every field containing profanity. Nil means clean.
func (f *Filter) Check(fields map[string]string) map[string]string {
	var out map[string]string
	for name, v := range fields {
		if f.Contains(v) {
			if out == nil {
				out = make(map[string]string)
			}
			out[name] = Message
		}
	}
	return out
}

// strip cuts allowed stems out of word and returns the remaining fragments.
func (f *Filter) strip(word string) []string {
	for _, a := range f.allowed {
		if strings.Contains(word, a) {
			word = strings.ReplaceAll(word, a, " ")
		}
	}
	return words(word)
}

func (f *Filter) match(word string) bool {
	for _, w := range f.words {
		if strings.Contains(word, w) {
			return true
		}
	}
	return false
}

// Normalize lowercases text, maps leetspeak onto Cyrillic, drops punctuation inside words,
// and collapses repeated letters. Words stay separated by single spaces.
func Normalize(text string) string {
	var b strings.Builder
	var prev rune
	for _, r := range cases.Lower(language.Russian).String(text) {
		if m, ok := leet[r]; ok {
			r = m
		}
		switch {
		case unicode.IsSpace(r):
			if prev != ' ' && b.Len() > 0 {
				b.WriteRune(' ')
			}
			prev = ' '
		case unicode.IsLetter(r):
			if r != prev {
				b.WriteRune(r)
			}
			prev = r
		}
	}
	return strings.TrimSpace(b.String())
}

func words(s string) []string {
	return strings.Fields(s)
}
