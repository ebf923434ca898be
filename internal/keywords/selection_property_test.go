package keywords

import (
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var propertyPool = []string{"alpha", "beta", "gamma", "delta", "epsilon", ""}

type opKind int

const (
	opSetMain opKind = iota
	opPromote
	opToggle
	opSelectAll
	opDeselectAll
	opKindCount
)

// applyCode decodes one generated integer into an operation and applies it.
func applyCode(sel Selection, code int) (Selection, opKind, Category) {
	kind := opKind(code % int(opKindCount))
	category := Categories[(code/int(opKindCount))%len(Categories)]
	kw := propertyPool[(code/(int(opKindCount)*len(Categories)))%len(propertyPool)]

	switch kind {
	case opSetMain:
		return sel.SetMainKeyword(kw), kind, category
	case opPromote:
		return sel.Promote(kw, category), kind, category
	case opToggle:
		return sel.Toggle(category, kw), kind, category
	case opSelectAll:
		return sel.SelectAll(category, propertyPool[:code%len(propertyPool)]), kind, category
	default:
		return sel.DeselectAll(category), kind, category
	}
}

func mainKeywordInPrimary(sel Selection) bool {
	return sel.MainKeyword == "" || slices.Contains(sel.Primary, sel.MainKeyword)
}

func TestSelectionProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("main keyword stays in primary after every non-toggle operation", prop.ForAll(
		func(codes []int) bool {
			sel := Selection{}
			for _, code := range codes {
				next, kind, category := applyCode(sel, code)
				// Raw toggles of the main keyword out of primary are refused by
				// CanToggle at the UI boundary; mirror that policy here.
				kw := propertyPool[(code/(int(opKindCount)*len(Categories)))%len(propertyPool)]
				if kind == opToggle && !sel.CanToggle(category, kw) {
					continue
				}
				sel = next
				if !mainKeywordInPrimary(sel) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 9999)),
	))

	properties.Property("toggle only changes the edited category", prop.ForAll(
		func(codes []int, toggleCode int) bool {
			sel := Selection{}
			for _, code := range codes {
				sel, _, _ = applyCode(sel, code)
			}
			category := Categories[toggleCode%len(Categories)]
			kw := propertyPool[toggleCode%len(propertyPool)]
			next := sel.Toggle(category, kw)

			if next.MainKeyword != sel.MainKeyword {
				return false
			}
			for _, other := range Categories {
				if other == category {
					continue
				}
				if !slices.Equal(next.Keywords(other), sel.Keywords(other)) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 9999)),
		gen.IntRange(0, 999),
	))

	properties.Property("categories never hold duplicates", prop.ForAll(
		func(codes []int) bool {
			sel := Selection{}
			for _, code := range codes {
				sel, _, _ = applyCode(sel, code)
			}
			for _, category := range Categories {
				list := sel.Keywords(category)
				seen := make(map[string]bool, len(list))
				for _, kw := range list {
					if kw == "" || seen[kw] {
						return false
					}
					seen[kw] = true
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 9999)),
	))

	properties.Property("deselect all on primary leaves only the main keyword", prop.ForAll(
		func(codes []int, main string) bool {
			sel := Selection{}
			for _, code := range codes {
				sel, _, _ = applyCode(sel, code)
			}
			sel = sel.SetMainKeyword(main).DeselectAll(Primary)
			if sel.MainKeyword == "" {
				return len(sel.Primary) == 0
			}
			return slices.Equal(sel.Primary, []string{sel.MainKeyword})
		},
		gen.SliceOf(gen.IntRange(0, 9999)),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
