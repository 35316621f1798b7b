// Package sections splits the inspection script's free-form text into
// numbered, titled sections.
//
// The text contract is line based:
//
//	###############################################
//	1. Linux Kernel Information
//	Linux host 6.1.0 x86_64
//	###############################################
//
// A header line ("<int>. <title>") opens a section, every following line is
// content, and a line made only of the delimiter character closes it. A
// header seen while a section is already open is ordinary content. Text
// before the first header has no section to belong to and is dropped. If a
// section id repeats, the later section replaces the earlier one's title and
// content but keeps its position.
package sections

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/hostaudit/hostaudit/pkg/defaults"
)

// Section is one block of script output. Immutable once parsed.
type Section struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Set is an insertion-ordered mapping of section id to Section.
type Set struct {
	order []int
	byID  map[int]Section
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{byID: make(map[int]Section)}
}

// put inserts or replaces s, keeping the id's first position.
func (s *Set) put(sec Section) {
	if _, ok := s.byID[sec.ID]; !ok {
		s.order = append(s.order, sec.ID)
	}
	s.byID[sec.ID] = sec
}

// Len returns the number of distinct section ids.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// IDs returns section ids in order of first appearance.
func (s *Set) IDs() []int {
	if s == nil {
		return nil
	}
	out := make([]int, len(s.order))
	copy(out, s.order)
	return out
}

// Get returns the section with the given id.
func (s *Set) Get(id int) (Section, bool) {
	if s == nil {
		return Section{}, false
	}
	sec, ok := s.byID[id]
	return sec, ok
}

// Sections returns all sections in order of first appearance.
func (s *Set) Sections() []Section {
	if s == nil {
		return nil
	}
	out := make([]Section, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Options tune what counts as a delimiter line.
type Options struct {
	Delimiter rune // character the terminator line is made of
	MinRun    int  // minimum number of Delimiter characters
}

// DefaultOptions matches the stock inspection script.
func DefaultOptions() Options {
	return Options{Delimiter: defaults.DelimiterChar, MinRun: defaults.DelimiterMinRun}
}

var headerRe = regexp.MustCompile(`^\s*(\d+)\.\s+(.*)$`)

// Parser holds the delimiter settings. The zero value uses DefaultOptions.
type Parser struct {
	opts Options
}

// NewParser returns a Parser with the given options.
func NewParser(opts Options) *Parser {
	if opts.Delimiter == 0 {
		opts.Delimiter = defaults.DelimiterChar
	}
	if opts.MinRun <= 0 {
		opts.MinRun = defaults.DelimiterMinRun
	}
	return &Parser{opts: opts}
}

// Parse reads r to EOF. A trailing newline ends the last line; it does not
// start an extra empty one.
func Parse(r io.Reader) (*Set, error) {
	return NewParser(DefaultOptions()).Parse(r)
}

// ParseString is Parse over an in-memory string.
func ParseString(text string) *Set {
	set, _ := Parse(strings.NewReader(text))
	return set
}

// Parse implements the section algorithm over r.
func (p *Parser) Parse(r io.Reader) (*Set, error) {
	set := NewSet()
	var (
		open    bool
		current Section
		content []string
	)
	flush := func() {
		current.Content = strings.Join(content, "\n")
		set.put(current)
		open = false
		content = content[:0]
	}

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 || err == nil {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")

			switch {
			case p.isDelimiter(line):
				if open {
					flush()
				}
			case open:
				content = append(content, line)
			default:
				if id, title, ok := parseHeader(line); ok {
					current = Section{ID: id, Title: title}
					open = true
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if open {
		flush()
	}
	return set, nil
}

func (p *Parser) isDelimiter(line string) bool {
	trimmed := strings.TrimSpace(line)
	n := 0
	for _, r := range trimmed {
		if r != p.opts.Delimiter {
			return false
		}
		n++
	}
	return n >= p.opts.MinRun
}

func parseHeader(line string) (int, string, bool) {
	m := headerRe.FindStringSubmatch(line)
	if m == nil {
		return 0, "", false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return id, strings.TrimSpace(m[2]), true
}

// Format reconstructs raw text from s such that parsing the result yields an
// equal Set.
func Format(s *Set) string {
	delim := strings.Repeat(string(defaults.DelimiterChar), defaults.DelimiterWidth)
	var b strings.Builder
	b.WriteString(delim)
	b.WriteByte('\n')
	for _, sec := range s.Sections() {
		b.WriteString(strconv.Itoa(sec.ID))
		b.WriteString(". ")
		b.WriteString(sec.Title)
		b.WriteByte('\n')
		if sec.Content != "" {
			b.WriteString(sec.Content)
			b.WriteByte('\n')
		}
		b.WriteString(delim)
		b.WriteByte('\n')
	}
	return b.String()
}
