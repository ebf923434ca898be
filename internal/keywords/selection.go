// Package keywords holds the keyword taxonomy selection for the SEO keyword step.
//
// Selection is a value type. Every operation returns a new Selection and leaves
// the receiver untouched, so callers can keep the previous value for undo or
// comparison. After every operation a non-empty MainKeyword is a member of the
// primary category.
package keywords

import (
	"fmt"
	"slices"
	"strings"
)

// Category names one keyword list of the taxonomy.
type Category string

const (
	Primary   Category = "primary"
	Secondary Category = "secondary"
	LSI       Category = "lsi"
	LongTail  Category = "long_tail"
)

// Categories lists the taxonomy in display order.
var Categories = []Category{Primary, Secondary, LSI, LongTail}

// ParseCategory accepts the wire names plus a few common spellings.
func ParseCategory(raw string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "primary":
		return Primary, nil
	case "secondary":
		return Secondary, nil
	case "lsi":
		return LSI, nil
	case "long_tail", "long-tail", "longtail":
		return LongTail, nil
	}
	return "", fmt.Errorf("unknown keyword category: %q", raw)
}

// Label returns a human readable name.
func (c Category) Label() string {
	switch c {
	case Primary:
		return "Primary"
	case Secondary:
		return "Secondary"
	case LSI:
		return "LSI"
	case LongTail:
		return "Long-tail"
	}
	return string(c)
}

// Selection is the reviewer's current keyword choice.
type Selection struct {
	MainKeyword string
	Primary     []string
	Secondary   []string
	LSI         []string
	LongTail    []string
}

// Payload is the selected_keywords object sent with a keyword decision.
type Payload struct {
	Primary   []string `json:"primary"`
	Secondary []string `json:"secondary"`
	LSI       []string `json:"lsi"`
	LongTail  []string `json:"long_tail"`
}

// Keywords returns a copy of the keywords selected in c.
func (s Selection) Keywords(c Category) []string {
	return slices.Clone(s.list(c))
}

// Contains reports whether kw is selected in c.
func (s Selection) Contains(c Category, kw string) bool {
	return slices.Contains(s.list(c), normalize(kw))
}

// Count returns the number of keywords selected in c.
func (s Selection) Count(c Category) int {
	return len(s.list(c))
}

// IsSubmittable reports whether the selection may be sent as a decision.
func (s Selection) IsSubmittable() bool {
	return s.MainKeyword != ""
}

// CanToggle reports whether the UI may flip kw in c. The main keyword cannot
// leave primary except by promoting a replacement.
func (s Selection) CanToggle(c Category, kw string) bool {
	kw = normalize(kw)
	return !(c == Primary && kw != "" && kw == s.MainKeyword)
}

// SetMainKeyword makes kw the main keyword, prepending it to primary when absent.
// An empty kw clears the main keyword.
func (s Selection) SetMainKeyword(kw string) Selection {
	kw = normalize(kw)
	next := s.clone()
	next.MainKeyword = kw
	if kw != "" && !slices.Contains(next.Primary, kw) {
		next.Primary = prepend(next.Primary, kw)
	}
	return next
}

// Promote moves kw out of from into the main keyword slot. A displaced main
// keyword stays in primary.
func (s Selection) Promote(kw string, from Category) Selection {
	kw = normalize(kw)
	if kw == "" {
		return s.clone()
	}

	next := s.clone()
	next.set(from, remove(next.list(from), kw))

	previous := next.MainKeyword
	if previous != "" && previous != kw && !slices.Contains(next.Primary, previous) {
		next.Primary = append(next.Primary, previous)
	}

	next.MainKeyword = kw
	if !slices.Contains(next.Primary, kw) {
		next.Primary = prepend(next.Primary, kw)
	}
	return next
}

// Toggle flips membership of kw in c. It does not enforce CanToggle.
func (s Selection) Toggle(c Category, kw string) Selection {
	kw = normalize(kw)
	next := s.clone()
	if kw == "" || !c.valid() {
		return next
	}
	current := next.list(c)
	if slices.Contains(current, kw) {
		next.set(c, remove(current, kw))
	} else {
		next.set(c, append(current, kw))
	}
	return next
}

// SelectAll replaces c with full. Primary always keeps the main keyword first.
func (s Selection) SelectAll(c Category, full []string) Selection {
	next := s.clone()
	if !c.valid() {
		return next
	}
	list := dedupe(full)
	if c == Primary && next.MainKeyword != "" {
		list = prepend(remove(list, next.MainKeyword), next.MainKeyword)
	}
	next.set(c, list)
	return next
}

// DeselectAll empties c. Primary keeps the main keyword as its sole member.
func (s Selection) DeselectAll(c Category) Selection {
	next := s.clone()
	if !c.valid() {
		return next
	}
	if c == Primary && next.MainKeyword != "" {
		next.set(c, []string{next.MainKeyword})
		return next
	}
	next.set(c, []string{})
	return next
}

// Payload returns the wire form with non-nil lists.
func (s Selection) Payload() Payload {
	return Payload{
		Primary:   nonNil(s.Primary),
		Secondary: nonNil(s.Secondary),
		LSI:       nonNil(s.LSI),
		LongTail:  nonNil(s.LongTail),
	}
}

func (c Category) valid() bool {
	return slices.Contains(Categories, c)
}

func (s Selection) list(c Category) []string {
	switch c {
	case Primary:
		return s.Primary
	case Secondary:
		return s.Secondary
	case LSI:
		return s.LSI
	case LongTail:
		return s.LongTail
	}
	return nil
}

func (s *Selection) set(c Category, list []string) {
	switch c {
	case Primary:
		s.Primary = list
	case Secondary:
		s.Secondary = list
	case LSI:
		s.LSI = list
	case LongTail:
		s.LongTail = list
	}
}

func (s Selection) clone() Selection {
	return Selection{
		MainKeyword: s.MainKeyword,
		Primary:     slices.Clone(s.Primary),
		Secondary:   slices.Clone(s.Secondary),
		LSI:         slices.Clone(s.LSI),
		LongTail:    slices.Clone(s.LongTail),
	}
}

func normalize(kw string) string {
	return strings.TrimSpace(kw)
}

func prepend(list []string, kw string) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, kw)
	return append(out, list...)
}

func remove(list []string, kw string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item != kw {
			out = append(out, item)
		}
	}
	return out
}

func dedupe(list []string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		item = normalize(item)
		if item == "" || slices.Contains(out, item) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return slices.Clone(list)
}
