// Package sanitize cleans user supplied chat content before it is sent or
// displayed.
//
// Message keeps a small set of formatting tags and forces safe link
// attributes. StripAll removes every tag and keeps the text. Both truncate
// their input to a maximum number of characters before sanitizing.
package sanitize

import (
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultMaxLength is the input limit applied when none is given
const DefaultMaxLength = 1000

var (
	allowedTags = []string{"b", "i", "em", "strong", "a", "code", "pre", "br", "p", "ul", "ol", "li"}

	anchorTag = regexp.MustCompile(`(?i)<a\s+([^>]*href=["'][^"']+["'][^>]*)>`)
	hasRel    = regexp.MustCompile(`\brel=`)
	hasTarget = regexp.MustCompile(`\btarget=`)

	// script and style are raw text elements: the tokenizer hands their
	// content over unparsed and bluemonday drops it
	rawTextTag = regexp.MustCompile(`(?i)<(/?)(script|style)\b`)

	sharedRich   = sync.OnceValue(richPolicy)
	sharedStrict = sync.OnceValue(strictPolicy)
	defaultSan   = sync.OnceValue(func() *Sanitizer { return New(DefaultMaxLength) })
)

// Sanitizer holds the compiled policies. It is safe for concurrent use.
type Sanitizer struct {
	maxLen int
	rich   *bluemonday.Policy
	strict *bluemonday.Policy
}

// New returns a sanitizer truncating input to maxLen characters. A
// non-positive maxLen selects DefaultMaxLength.
func New(maxLen int) *Sanitizer {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	return &Sanitizer{
		maxLen: maxLen,
		rich:   sharedRich(),
		strict: sharedStrict(),
	}
}

// forLength returns the shared default sanitizer unless maxLen asks for a
// different limit
func forLength(maxLen int) *Sanitizer {
	if maxLen <= 0 || maxLen == DefaultMaxLength {
		return defaultSan()
	}
	return New(maxLen)
}

func richPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(allowedTags...)
	p.AllowAttrs("title").Globally()
	p.AllowAttrs("href", "rel", "target").OnElements("a")
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("mailto", "http", "https")
	return p
}

func strictPolicy() *bluemonday.Policy {
	return bluemonday.StrictPolicy()
}

// MaxLength returns the configured input limit
func (s *Sanitizer) MaxLength() int {
	return s.maxLen
}

// Message sanitizes input for display as formatted chat content
func (s *Sanitizer) Message(input string) string {
	return normalizeLinks(s.rich.Sanitize(truncate(input, s.maxLen)))
}

// StripAll removes every tag from input and returns the remaining text,
// including what was inside script and style elements. The text stays
// escaped.
func (s *Sanitizer) StripAll(input string) string {
	input = rawTextTag.ReplaceAllString(truncate(input, s.maxLen), "<${1}x-${2}")
	return s.strict.Sanitize(input)
}

// Message sanitizes input with a one-off limit
func Message(input string, maxLen int) string {
	return forLength(maxLen).Message(input)
}

// StripAll strips input with a one-off limit
func StripAll(input string, maxLen int) string {
	return forLength(maxLen).StripAll(input)
}

// truncate keeps the first n characters of s
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// normalizeLinks adds rel="noopener noreferrer" and target="_blank" to
// anchors that do not set them
func normalizeLinks(html string) string {
	return anchorTag.ReplaceAllStringFunc(html, func(tag string) string {
		attrs := anchorTag.FindStringSubmatch(tag)[1]
		var b strings.Builder
		b.WriteString("<a ")
		b.WriteString(attrs)
		if !hasRel.MatchString(attrs) {
			b.WriteString(` rel="noopener noreferrer"`)
		}
		if !hasTarget.MatchString(attrs) {
			b.WriteString(` target="_blank"`)
		}
		b.WriteString(">")
		return b.String()
	})
}
