package gadget

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// LineFunc observes every classified line. Used for labeled output.
type LineFunc func(cat Category, line string)

// Classifier assigns gadget lines to categories.
// A Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	rules []Rule
	mode  MatchMode
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithRules replaces the rule table. Rules are evaluated in slice order.
func WithRules(rules []Rule) Option {
	return func(c *Classifier) {
		c.rules = rules
	}
}

// WithMatchMode sets the keyword matching mode.
func WithMatchMode(mode MatchMode) Option {
	return func(c *Classifier) {
		c.mode = mode
	}
}

// NewClassifier creates a classifier using DefaultRules and substring matching
// unless overridden.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		rules: DefaultRules,
		mode:  MatchSubstring,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.mode == "" {
		c.mode = MatchSubstring
	}
	return c
}

// Mode returns the classifier's match mode.
func (c *Classifier) Mode() MatchMode {
	return c.mode
}

// Classify returns the category of a single gadget line.
// Lines matching no rule, including empty lines, are Other.
func (c *Classifier) Classify(line string) Category {
	var mnemonics []string
	if c.mode == MatchMnemonic {
		mnemonics = Mnemonics(line)
	}
	for _, r := range c.rules {
		if r.matches(line, mnemonics, c.mode) {
			return r.Category
		}
	}
	return Other
}

// ClassifyLines classifies every line and returns the resulting counts.
func (c *Classifier) ClassifyLines(lines []string) Counts {
	var counts Counts
	for _, line := range lines {
		counts.Add(c.Classify(line))
	}
	return counts
}

// ClassifyReader classifies r line by line. Every line counts toward Total,
// blank lines included. Lines may be arbitrarily long. fn, if non-nil, sees
// each line with its category.
func (c *Classifier) ClassifyReader(ctx context.Context, r io.Reader, fn LineFunc) (Counts, error) {
	var counts Counts

	br := bufio.NewReader(r)
	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return counts, err
			}
		}

		line, err := ReadLine(br)
		if err == io.EOF {
			return counts, nil
		}
		if err != nil {
			return counts, fmt.Errorf("read gadget line %d: %w", n+1, err)
		}

		cat := c.Classify(line)
		counts.Add(cat)
		if fn != nil {
			fn(cat, line)
		}
	}
}

// ReadLine returns the next line from br without its line ending. A final
// line without a newline is returned as-is; io.EOF is returned only once no
// bytes are left. There is no limit on line length.
func ReadLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}
