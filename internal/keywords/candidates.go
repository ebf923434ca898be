package keywords

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Candidates is the full keyword taxonomy proposed by the keyword step.
type Candidates struct {
	MainKeyword string
	Primary     []string
	Secondary   []string
	LSI         []string
	LongTail    []string
}

// Keywords returns the proposed keywords for c.
func (c Candidates) Keywords(category Category) []string {
	switch category {
	case Primary:
		return c.Primary
	case Secondary:
		return c.Secondary
	case LSI:
		return c.LSI
	case LongTail:
		return c.LongTail
	}
	return nil
}

// Total counts every proposed keyword across categories.
func (c Candidates) Total() int {
	return len(c.Primary) + len(c.Secondary) + len(c.LSI) + len(c.LongTail)
}

type stepOutput struct {
	MainKeyword string      `json:"main_keyword"`
	Primary     keywordList `json:"primary_keywords"`
	Secondary   keywordList `json:"secondary_keywords"`
	LSI         keywordList `json:"lsi_keywords"`
	LongTail    keywordList `json:"long_tail_keywords"`
}

// keywordList decodes either ["a","b"] or [{"keyword":"a","volume":10}].
type keywordList []string

func (l *keywordList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*l = nil
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var text string
		if err := json.Unmarshal(item, &text); err == nil {
			out = append(out, text)
			continue
		}
		var obj struct {
			Keyword string `json:"keyword"`
			Term    string `json:"term"`
			Text    string `json:"text"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return fmt.Errorf("keyword entry must be a string or object: %w", err)
		}
		switch {
		case strings.TrimSpace(obj.Keyword) != "":
			out = append(out, obj.Keyword)
		case strings.TrimSpace(obj.Term) != "":
			out = append(out, obj.Term)
		default:
			out = append(out, obj.Text)
		}
	}
	*l = out
	return nil
}

// FromOutput builds the initial selection from a keyword step's output_data.
// Every proposed keyword starts selected; the main keyword defaults to the
// first primary keyword when the output does not name one.
func FromOutput(output json.RawMessage) (Selection, Candidates, error) {
	if len(bytes.TrimSpace(output)) == 0 || bytes.Equal(bytes.TrimSpace(output), []byte("null")) {
		return Selection{}, Candidates{}, nil
	}

	var parsed stepOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return Selection{}, Candidates{}, fmt.Errorf("parse keyword output: %w", err)
	}

	candidates := Candidates{
		MainKeyword: normalize(parsed.MainKeyword),
		Primary:     dedupe(parsed.Primary),
		Secondary:   dedupe(parsed.Secondary),
		LSI:         dedupe(parsed.LSI),
		LongTail:    dedupe(parsed.LongTail),
	}

	selection := Selection{
		Primary:   append([]string{}, candidates.Primary...),
		Secondary: append([]string{}, candidates.Secondary...),
		LSI:       append([]string{}, candidates.LSI...),
		LongTail:  append([]string{}, candidates.LongTail...),
	}

	main := candidates.MainKeyword
	if main == "" && len(candidates.Primary) > 0 {
		main = candidates.Primary[0]
	}
	return selection.SetMainKeyword(main), candidates, nil
}
