package hanzi

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/mozillazg/go-pinyin"

	"github.com/hanziwordle/hanziwordle/pkg/query"
)

// Sentinel terminates every stored pinyin string so patterns can anchor on
// the end of the word.
const Sentinel = "$"

// Version returns the current version of the package.
func Version() string { return "0.1.0" }

//go:embed phrases.txt
var phrasesTxt string

var defaultPhrases = mustParsePhrases(phrasesTxt)

// phraseTable holds whole-word readings that override the per-character
// default.
type phraseTable struct {
	readings map[string][]string
	// maxLen is the longest word in runes.
	maxLen int
}

// parsePhrases reads lines of "word syllable...". Blank lines and lines
// starting with # are ignored.
func parsePhrases(src string) (phraseTable, error) {
	t := phraseTable{readings: make(map[string][]string)}
	for i, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		word, syllables := fields[0], fields[1:]
		if !query.IsLiteral(word) {
			return phraseTable{}, fmt.Errorf("phrases line %d: not a CJK word: %q", i+1, word)
		}
		n := len([]rune(word))
		if n < 2 || n != len(syllables) {
			return phraseTable{}, fmt.Errorf("phrases line %d: %q has %d characters and %d syllables", i+1, word, n, len(syllables))
		}
		t.readings[word] = syllables
		if n > t.maxLen {
			t.maxLen = n
		}
	}
	return t, nil
}

func mustParsePhrases(src string) phraseTable {
	t, err := parsePhrases(src)
	if err != nil {
		panic(err)
	}
	return t
}

// match returns the length of the longest known word at the start of rs, or 0.
func (t phraseTable) match(rs []rune) int {
	for n := min(t.maxLen, len(rs)); n >= 2; n-- {
		if _, ok := t.readings[string(rs[:n])]; ok {
			return n
		}
	}
	return 0
}

// Romanizer converts words into tone-numbered pinyin ("ni3 hao3$").
type Romanizer struct {
	args    pinyin.Args
	phrases phraseTable
}

// NewRomanizer creates a romanizer. Words from the built-in phrase list keep
// their dictionary reading; other characters get their most common reading.
// Neutral tones carry no digit.
func NewRomanizer() *Romanizer {
	args := pinyin.NewArgs()
	args.Style = pinyin.Tone3
	args.Heteronym = false
	return &Romanizer{args: args, phrases: defaultPhrases}
}

// Syllables returns one tone-numbered syllable per character of word.
func (r *Romanizer) Syllables(word string) ([]string, error) {
	if !query.IsLiteral(word) {
		return nil, fmt.Errorf("not a CJK word: %q", word)
	}
	readings := pinyin.Pinyin(word, r.args)
	if n := len([]rune(word)); len(readings) != n {
		return nil, fmt.Errorf("romanize %q: got %d readings for %d characters", word, len(readings), n)
	}
	out := make([]string, len(readings))
	for i, rs := range readings {
		if len(rs) == 0 || rs[0] == "" {
			return nil, fmt.Errorf("romanize %q: no reading for character %d", word, i)
		}
		out[i] = rs[0]
	}

	runes := []rune(word)
	for i := 0; i < len(runes); {
		n := r.phrases.match(runes[i:])
		if n == 0 {
			i++
			continue
		}
		copy(out[i:i+n], r.phrases.readings[string(runes[i:i+n])])
		i += n
	}
	return out, nil
}

// Romanize returns the stored form of word's pinyin: syllables joined by
// single spaces, followed by the sentinel.
func (r *Romanizer) Romanize(word string) (string, error) {
	syllables, err := r.Syllables(word)
	if err != nil {
		return "", err
	}
	return strings.Join(syllables, " ") + Sentinel, nil
}
