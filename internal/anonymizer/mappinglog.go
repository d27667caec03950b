package anonymizer

import (
	"io"
	"strings"
)

// NoMatch is the line recorded for a pass that replaced nothing.
const NoMatch = "No match found."

// Entry is one replacement: the identifier written into the text and the
// literal substring it replaced.
type Entry struct {
	ID       Identifier
	Original string
}

func (e Entry) String() string { return e.ID.String() + ": " + e.Original }

// Section groups the entries written by one pass.
type Section struct {
	Category Category
	Entries  []Entry
}

// Lines renders the section as header, entries (or NoMatch).
func (s Section) Lines() []string {
	lines := make([]string, 0, len(s.Entries)+1)
	lines = append(lines, s.Category.Header())
	if len(s.Entries) == 0 {
		return append(lines, NoMatch)
	}
	for _, e := range s.Entries {
		lines = append(lines, e.String())
	}
	return lines
}

// MappingLog is the append-only record of every replacement, grouped by
// category in the order the passes ran.
type MappingLog struct {
	sections []*Section
}

// NewMappingLog returns an empty log.
func NewMappingLog() *MappingLog { return &MappingLog{} }

// begin opens the section for c; subsequent appends go to it.
func (l *MappingLog) begin(c Category) *Section {
	s := &Section{Category: c}
	l.sections = append(l.sections, s)
	return s
}

func (s *Section) add(id Identifier, original string) {
	s.Entries = append(s.Entries, Entry{ID: id, Original: original})
}

// Sections returns a copy of the sections in pass order.
func (l *MappingLog) Sections() []Section {
	out := make([]Section, 0, len(l.sections))
	for _, s := range l.sections {
		entries := make([]Entry, len(s.Entries))
		copy(entries, s.Entries)
		out = append(out, Section{Category: s.Category, Entries: entries})
	}
	return out
}

// Entries returns the entries recorded for c.
func (l *MappingLog) Entries(c Category) []Entry {
	var out []Entry
	for _, s := range l.sections {
		if s.Category == c {
			out = append(out, s.Entries...)
		}
	}
	return out
}

// Len returns the total number of entries across all sections.
func (l *MappingLog) Len() int {
	n := 0
	for _, s := range l.sections {
		n += len(s.Entries)
	}
	return n
}

// String renders the log: sections separated by a blank line, each line
// newline-terminated.
func (l *MappingLog) String() string {
	var b strings.Builder
	for i, s := range l.sections {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, line := range s.Lines() {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// WriteTo writes the rendered log to w.
func (l *MappingLog) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, l.String())
	return int64(n), err
}
