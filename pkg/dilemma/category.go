package dilemma

import "strings"

// Category is the display class of a record's evaluation.
type Category int

const (
	Neutral Category = iota
	Positive
	Negative
	Missing
	Injury
	Illness
	Cursed
)

func (c Category) String() string {
	switch c {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	case Missing:
		return "missing"
	case Injury:
		return "injury"
	case Illness:
		return "illness"
	case Cursed:
		return "cursed"
	default:
		return "neutral"
	}
}

// Style is the pair of presentation tokens a category renders with.
type Style struct {
	Color string // text color token
	Icon  string // icon token
	Dim   bool
}

// Style returns the tokens for c. Unknown values get the Neutral style.
func (c Category) Style() Style {
	switch c {
	case Positive:
		return Style{Color: "emerald-700", Icon: "check"}
	case Negative:
		return Style{Color: "red-700", Icon: "cross"}
	case Missing:
		return Style{Color: "purple-700", Icon: "ghost"}
	case Injury:
		return Style{Color: "rose-700", Icon: "bandage"}
	case Illness:
		return Style{Color: "yellow-700", Icon: "biohazard"}
	case Cursed:
		return Style{Color: "indigo-700", Icon: "skull"}
	default:
		return Style{Color: "stone-600", Icon: "dot", Dim: true}
	}
}

type rule struct {
	category Category
	markers  []string
}

// rules is checked top to bottom and the first hit wins, so an evaluation
// carrying both 负面 and 诅咒 is Negative.
var rules = []rule{
	{Positive, []string{"正面", "positive"}},
	{Negative, []string{"负面", "negative"}},
	{Missing, []string{"失踪", "missing", "disappeared"}},
	{Injury, []string{"伤病", "injury"}},
	{Illness, []string{"疾病", "illness"}},
	{Cursed, []string{"诅咒", "curse"}},
}

// Classify maps a free-text evaluation tag to its display category.
// Matching is a case-sensitive substring test; anything unmatched, including "", is Neutral.
func Classify(evaluation string) Category {
	if evaluation == "" {
		return Neutral
	}
	for _, r := range rules {
		for _, m := range r.markers {
			if strings.Contains(evaluation, m) {
				return r.category
			}
		}
	}
	return Neutral
}

// Categories lists every category in rule priority order, Neutral last.
func Categories() []Category {
	return []Category{Positive, Negative, Missing, Injury, Illness, Cursed, Neutral}
}
