package anonymizer

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
)

// run carries the state of one Anonymize call. Nothing in it outlives the call.
type run struct {
	lib      *Library
	alloc    *Allocator
	registry *Registry
	log      *MappingLog
}

func newRun(lib *Library) *run {
	return &run{
		lib:      lib,
		alloc:    NewAllocator(),
		registry: NewRegistry(),
		log:      NewMappingLog(),
	}
}

// splitName tokenizes a full-name match on whitespace and hyphens.
func splitName(match string) []string {
	return strings.FieldsFunc(match, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-'
	})
}

// fullNames replaces every titled full name with a fresh "<n>.1" and seeds the
// registry with its first/last name tokens. Replacement is positional, so the
// k-th occurrence gets the k-th identifier even when two matches are identical.
func (r *run) fullNames(text string) (string, int, error) {
	sec := r.log.begin(FullName)
	out, err := r.lib.Recognizer(FullName).ReplaceFunc(text, func(m regexp2.Match) string {
		match := m.String()
		tokens := splitName(match)
		if len(tokens) < 3 {
			return match
		}
		id := r.alloc.Allocate(FullName)
		title, first, last := tokens[0], tokens[1], tokens[len(tokens)-1]
		for _, key := range []NameKey{
			{Text: first},
			{Text: last},
			{Text: title + " " + first, Titled: true},
			{Text: title + " " + last, Titled: true},
		} {
			r.registry.Register(key, id.N)
		}
		sec.add(id, match)
		return id.String()
	}, -1, -1)
	if err != nil {
		return text, 0, r.lib.matchError(FullName)
	}
	return out, len(sec.Entries), nil
}

// entities is the uniform bulk pass: every match of c's recognizer gets the
// next identifier from c's counter.
func (r *run) entities(c Category, text string) (string, int, error) {
	re := r.lib.Recognizer(c)
	if re == nil {
		return text, 0, fmt.Errorf("no recognizer for %s", c)
	}
	sec := r.log.begin(c)
	out, err := re.ReplaceFunc(text, func(m regexp2.Match) string {
		id := r.alloc.Allocate(c)
		sec.add(id, m.String())
		return id.String()
	}, -1, -1)
	if err != nil {
		return text, 0, r.lib.matchError(c)
	}
	return out, len(sec.Entries), nil
}

// refNames rewrites bare and titled mentions of registered people to
// "<n>.4", reusing the prefix from the full-name pass. Titled keys go first
// so "Mr. Alex" is not half-consumed by the bare "Alex". Each key that fired
// is logged once; the log entries are ordered by prefix.
func (r *run) refNames(text string) (string, int, error) {
	sec := r.log.begin(RefName)
	titled, untitled := r.registry.Partition()

	var pending []Entry
	total := 0
	for _, keys := range [][]NameKey{titled, untitled} {
		for _, key := range keys {
			n, _ := r.registry.Lookup(key.Text)
			id := Identifier{N: n, Category: RefName}

			re, err := r.lib.wholeWord(key.Text)
			if err != nil {
				return text, 0, fmt.Errorf("%s pass: compile registered key", RefName)
			}
			hits := 0
			out, err := re.ReplaceFunc(text, func(regexp2.Match) string {
				hits++
				return id.String()
			}, -1, -1)
			if err != nil {
				return text, 0, r.lib.matchError(RefName)
			}
			if hits > 0 {
				text = out
				total += hits
				pending = append(pending, Entry{ID: id, Original: key.Text})
			}
		}
	}

	sort.SliceStable(pending, func(i, j int) bool { return pending[i].ID.N < pending[j].ID.N })
	for _, e := range pending {
		sec.add(e.ID, e.Original)
	}
	return text, total, nil
}
