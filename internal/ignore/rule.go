// Package ignore implements diagnostic suppression: declarative rules from the
// project configuration are matched against analyzer diagnostics, and matching
// diagnostics are dropped before they reach the consumer.
package ignore

import (
	"regexp"
	"strings"
)

// Matcher decides whether a rule's message matcher matches a diagnostic message.
type Matcher interface {
	Match(message string) bool
	String() string
}

// Substring matches by containment.
type Substring string

func (s Substring) Match(message string) bool { return strings.Contains(message, string(s)) }
func (s Substring) String() string            { return string(s) }

// Pattern matches by full regular-expression test.
type Pattern struct {
	re *regexp.Regexp
}

func (p Pattern) Match(message string) bool { return p.re.MatchString(message) }
func (p Pattern) String() string            { return "/" + p.re.String() + "/" }

// Compile builds a Matcher from a rule's message text. Text wrapped in slashes
// (`/.../`) compiles as a regular expression; anything else is a substring.
func Compile(text string) (Matcher, error) {
	if len(text) >= 2 && strings.HasPrefix(text, "/") && strings.HasSuffix(text, "/") {
		re, err := regexp.Compile(text[1 : len(text)-1])
		if err != nil {
			return nil, err
		}
		return Pattern{re: re}, nil
	}
	return Substring(text), nil
}

// Rule is one suppression directive. A valid rule has a non-nil Message;
// an invalid rule (one that failed to parse) has a nil Message and carries the
// offending raw text in Raw. Invalid rules never match but stay in the set so
// positional reporting remains stable.
type Rule struct {
	Message Matcher
	// Count is the remaining match quota. nil means unlimited. A rule whose
	// count reaches zero is inert for the rest of the pass but is not removed.
	Count *int
	// Paths scopes the rule to files whose path contains at least one entry.
	// Empty means the rule applies to every file.
	Paths []string
	// Raw is the original text of an entry that could not be parsed.
	Raw string
}

// Invalid reports whether the rule is a parse-failure marker.
func (r *Rule) Invalid() bool { return r.Message == nil }

// AppliesTo reports whether the rule is in scope for the given file path.
func (r *Rule) AppliesTo(filePath string) bool {
	if len(r.Paths) == 0 {
		return true
	}
	for _, p := range r.Paths {
		if strings.Contains(filePath, p) {
			return true
		}
	}
	return false
}

// clone copies the rule, including a private copy of the quota so decrements
// on the clone never reach the original.
func (r *Rule) clone() *Rule {
	c := *r
	if r.Count != nil {
		n := *r.Count
		c.Count = &n
	}
	return &c
}
