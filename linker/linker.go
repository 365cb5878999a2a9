// Package linker finds known slang terms in free text and marks them up as
// references to their definition page, without changing the visible text.
package linker

import (
	"context"
	"regexp"
	"strings"
	"unicode"
)

// A Segment is a span of the input text. Plain spans have an empty Key; term
// references carry the lowercased key of the term they matched.
type Segment struct {
	Text string `json:"text"`
	Key  string `json:"key,omitempty"`
}

func (s Segment) IsTerm() bool {
	return s.Key != ""
}

// Linker links text against whatever vocabulary its cache currently holds.
type Linker struct {
	cache *VocabularyCache
}

func New(cache *VocabularyCache) *Linker {
	return &Linker{cache: cache}
}

func (l *Linker) Link(ctx context.Context, text string) []Segment {
	if text == "" {
		return nil
	}
	return Link(text, l.cache.Get(ctx))
}

// Snapshot returns the vocabulary the next Link call would use. Callers that
// link many pieces of text for one page can fetch it once and use the Link
// function directly.
func (l *Linker) Snapshot(ctx context.Context) *Snapshot {
	return l.cache.Get(ctx)
}

// Invalidate forces the next lookup to refetch the vocabulary, e.g. after a
// new term was added.
func (l *Linker) Invalidate() {
	l.cache.Invalidate()
}

// Link splits text into plain and term segments using the snapshot's
// vocabulary. Longer terms win over the shorter terms they contain.
func Link(text string, snap *Snapshot) []Segment {
	if text == "" {
		return nil
	}
	pattern := snap.pattern()
	if pattern == nil {
		return []Segment{{Text: text}}
	}
	matches := pattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []Segment{{Text: text}}
	}
	segments := make([]Segment, 0, 2*len(matches)+1)
	last := 0
	for _, m := range matches {
		if m[0] > last {
			segments = append(segments, Segment{Text: text[last:m[0]]})
		}
		surface := text[m[0]:m[1]]
		segments = append(segments, Segment{Text: surface, Key: normalizeTerm(surface)})
		last = m[1]
	}
	if last < len(text) {
		segments = append(segments, Segment{Text: text[last:]})
	}
	return segments
}

// Text concatenates the visible text of the segments.
func Text(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// normalizeTerm lowercases a term and collapses runs of whitespace, so that
// "No   Cap" and "no cap" share a key.
func normalizeTerm(term string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(term), unicode.IsSpace), " ")
}

// compilePattern builds one case-insensitive alternation over the terms, in
// the order given. Go's regexp prefers the leftmost alternative, so the
// caller must pass longer terms first.
func compilePattern(terms []string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString(`(?i)\b(?:`)
	for i, term := range terms {
		if i > 0 {
			b.WriteByte('|')
		}
		quoted := regexp.QuoteMeta(term)
		// QuoteMeta leaves spaces alone, but match any run of whitespace
		// between the words of a phrase.
		b.WriteString(strings.ReplaceAll(quoted, " ", `\s+`))
	}
	b.WriteString(`)\b`)
	return regexp.Compile(b.String())
}
