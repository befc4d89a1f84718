package dictionary

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Entry is one record of a word list. Only Title is used; other fields of
// the source files are ignored.
type Entry struct {
	Title string `json:"title"`
}

// DecodeError reports a chunk that is not a valid JSON object. It is
// recoverable: the rest of the file is still read.
type DecodeError struct {
	Path  string
	Chunk int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ImportDecodeError: %s chunk %d: %v", e.Path, e.Chunk, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// maxLineSize bounds a single line of an input file.
const maxLineSize = 4 * 1024 * 1024

// ChunkScanner splits a stream of concatenated JSON objects into chunks.
// Lines are trimmed and appended until the braces seen so far balance,
// ignoring braces inside JSON strings. A chunk may end in the middle of a
// line; the rest of that line starts the next chunk.
type ChunkScanner struct {
	sc      *bufio.Scanner
	buf     strings.Builder
	pending string
	depth   int
	inStr   bool
	esc     bool
	chunk   string
	n       int
}

// NewChunkScanner returns a scanner reading from r.
func NewChunkScanner(r io.Reader) *ChunkScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &ChunkScanner{sc: sc}
}

// feed tracks nesting across lines. It returns the length of the prefix of
// line that closes the current object, or -1 when the object is still open.
func (s *ChunkScanner) feed(line string) int {
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case s.esc:
			s.esc = false
		case s.inStr && c == '\\':
			s.esc = true
		case c == '"':
			s.inStr = !s.inStr
		case s.inStr:
		case c == '{':
			s.depth++
		case c == '}':
			s.depth--
			if s.depth <= 0 {
				return i + 1
			}
		}
	}
	return -1
}

func (s *ChunkScanner) emit() {
	s.chunk = s.buf.String()
	s.buf.Reset()
	s.depth, s.inStr, s.esc = 0, false, false
	s.n++
}

// next returns the rest of the current line, or the next non-empty line.
func (s *ChunkScanner) next() (string, bool) {
	if s.pending != "" {
		line := s.pending
		s.pending = ""
		return line, true
	}
	for s.sc.Scan() {
		if line := strings.TrimSpace(s.sc.Text()); line != "" {
			return line, true
		}
	}
	return "", false
}

// Scan advances to the next chunk. A trailing unbalanced remainder is
// returned as a final chunk so the caller can report it.
func (s *ChunkScanner) Scan() bool {
	for {
		line, ok := s.next()
		if !ok {
			break
		}
		if end := s.feed(line); end >= 0 {
			s.buf.WriteString(line[:end])
			s.pending = strings.TrimSpace(line[end:])
			s.emit()
			return true
		}
		s.buf.WriteString(line)
		// A line that never opened an object is a chunk of its own.
		if s.depth <= 0 && !s.inStr {
			s.emit()
			return true
		}
	}
	if s.buf.Len() > 0 {
		s.emit()
		return true
	}
	return false
}

// Chunk returns the text of the current chunk.
func (s *ChunkScanner) Chunk() string { return s.chunk }

// Index returns the 1-based number of the current chunk.
func (s *ChunkScanner) Index() int { return s.n }

// Err returns the first non-EOF read error.
func (s *ChunkScanner) Err() error { return s.sc.Err() }

// DecodeEntry parses one chunk.
func DecodeEntry(chunk string) (Entry, error) {
	var e Entry
	if err := json.Unmarshal([]byte(chunk), &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// ReadEntries decodes every chunk of r, calling fn for each entry and onBad
// for each chunk that fails to decode. It stops early only when fn returns an
// error or reading fails.
func ReadEntries(path string, r io.Reader, fn func(Entry) error, onBad func(*DecodeError)) error {
	s := NewChunkScanner(r)
	for s.Scan() {
		e, err := DecodeEntry(s.Chunk())
		if err != nil {
			if onBad != nil {
				onBad(&DecodeError{Path: path, Chunk: s.Index(), Err: err})
			}
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a word-list file with ReadEntries.
func LoadFile(path string, fn func(Entry) error, onBad func(*DecodeError)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReadEntries(path, f, fn, onBad)
}
