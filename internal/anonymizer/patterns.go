package anonymizer

import (
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var patternsYAML []byte

// ErrMatchTimeout reports a recognizer that ran past the library's match
// timeout. The error never carries the document text.
var ErrMatchTimeout = errors.New("match timeout")

// Pattern pairs a compiled recognizer with its category.
type Pattern struct {
	Category    Category
	Description string
	re          *regexp2.Regexp
}

// Expression returns the source expression of the recognizer.
func (p Pattern) Expression() string { return p.re.String() }

// Library is the immutable recognizer catalogue. REF_NAME has no static
// recognizer; its expressions are built from the Name Registry at run time.
type Library struct {
	patterns []Pattern
	byCat    map[Category]*regexp2.Regexp
	timeout  time.Duration
}

type catalogue struct {
	Recognizers []struct {
		Category    string `yaml:"category"`
		Description string `yaml:"description"`
		Expression  string `yaml:"expression"`
	} `yaml:"recognizers"`
}

// LoadLibrary parses the embedded catalogue and compiles every recognizer.
// A non-zero timeout bounds the time any single match may take.
func LoadLibrary(timeout time.Duration) (*Library, error) {
	return parseLibrary(patternsYAML, timeout)
}

func parseLibrary(data []byte, timeout time.Duration) (*Library, error) {
	var raw catalogue
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse pattern catalogue: %w", err)
	}

	lib := &Library{
		byCat:   make(map[Category]*regexp2.Regexp, len(raw.Recognizers)),
		timeout: timeout,
	}
	for _, r := range raw.Recognizers {
		cat, err := ParseCategory(r.Category)
		if err != nil {
			return nil, fmt.Errorf("pattern catalogue: %w", err)
		}
		if cat == RefName {
			return nil, fmt.Errorf("pattern catalogue: %s is derived from the name registry", cat)
		}
		if _, dup := lib.byCat[cat]; dup {
			return nil, fmt.Errorf("pattern catalogue: duplicate recognizer for %s", cat)
		}
		re, err := lib.compile(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("compile %s recognizer: %w", cat, err)
		}
		lib.byCat[cat] = re
		lib.patterns = append(lib.patterns, Pattern{Category: cat, Description: r.Description, re: re})
	}

	for _, c := range Categories {
		if c == RefName {
			continue
		}
		if _, ok := lib.byCat[c]; !ok {
			return nil, fmt.Errorf("pattern catalogue: missing recognizer for %s", c)
		}
	}
	return lib, nil
}

// compile applies the library-wide match timeout to a new expression.
func (l *Library) compile(expr string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return nil, err
	}
	if l.timeout > 0 {
		re.MatchTimeout = l.timeout
	}
	return re, nil
}

// matchError replaces a regexp2 failure, whose message embeds the whole
// input, with one naming only the pass and the configured limit. A timeout
// is the only error regexp2 returns from a match.
func (l *Library) matchError(c Category) error {
	return fmt.Errorf("%s pass: %w after %s", c, ErrMatchTimeout, l.timeout)
}

// wholeWord compiles a literal matched only at word boundaries.
func (l *Library) wholeWord(literal string) (*regexp2.Regexp, error) {
	return l.compile(`\b` + regexp2.Escape(literal) + `\b`)
}

// Recognizer returns the compiled expression for c, or nil for REF_NAME.
func (l *Library) Recognizer(c Category) *regexp2.Regexp {
	return l.byCat[c]
}

// Patterns returns the recognizers in catalogue order.
func (l *Library) Patterns() []Pattern {
	out := make([]Pattern, len(l.patterns))
	copy(out, l.patterns)
	return out
}
