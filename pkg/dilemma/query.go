package dilemma

import (
	"strings"

	"golang.org/x/text/cases"
)

// OptionGroup holds every record sharing one (dilemma, option) pair, in filter order.
type OptionGroup struct {
	Option  string   `json:"option"`
	Records []Record `json:"records"`
}

// DilemmaGroup holds the option groups of one dilemma in first-seen order.
// Map is taken from the first record that created the group.
type DilemmaGroup struct {
	Name    string        `json:"name"`
	Map     string        `json:"map"`
	Options []OptionGroup `json:"options"`
}

// DisplayMap returns the group's map name, or UnknownMap when it is empty.
func (g DilemmaGroup) DisplayMap() string {
	if g.Map == "" {
		return UnknownMap
	}
	return g.Map
}

// Len returns the number of records across all option groups.
func (g DilemmaGroup) Len() int {
	n := 0
	for _, o := range g.Options {
		n += len(o.Records)
	}
	return n
}

// Search filters records by query and groups the matches by dilemma, then by option.
// An empty or whitespace-only query yields nil.
func Search(records []Record, query string) []DilemmaGroup {
	matched := Filter(records, query)
	if len(matched) == 0 {
		return nil
	}
	return Group(matched)
}

// Filter returns the records whose dilemma or map name contains the trimmed query,
// compared case-insensitively. Store order is kept. An empty trimmed query matches nothing.
func Filter(records []Record, query string) []Record {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil
	}
	// A Caser carries state; one per call keeps Filter safe for concurrent use.
	fold := cases.Fold()
	q = fold.String(q)

	var out []Record
	for _, r := range records {
		if containsFolded(fold, r.Dilemma, q) || containsFolded(fold, r.Map, q) {
			out = append(out, r)
		}
	}
	return out
}

func containsFolded(fold cases.Caser, field, foldedQuery string) bool {
	if field == "" {
		return false
	}
	return strings.Contains(fold.String(field), foldedQuery)
}

// Group partitions records into dilemma groups and, inside each, option groups.
// Both levels keep the order in which their key was first seen.
func Group(records []Record) []DilemmaGroup {
	var groups []DilemmaGroup
	dilemmaIdx := make(map[string]int)
	// optionIdx[i] maps option text to its index inside groups[i].Options.
	var optionIdx []map[string]int

	for _, r := range records {
		gi, ok := dilemmaIdx[r.Dilemma]
		if !ok {
			gi = len(groups)
			dilemmaIdx[r.Dilemma] = gi
			groups = append(groups, DilemmaGroup{Name: r.Dilemma, Map: r.Map})
			optionIdx = append(optionIdx, make(map[string]int))
		}

		g := &groups[gi]
		oi, ok := optionIdx[gi][r.Option]
		if !ok {
			oi = len(g.Options)
			optionIdx[gi][r.Option] = oi
			g.Options = append(g.Options, OptionGroup{Option: r.Option})
		}
		g.Options[oi].Records = append(g.Options[oi].Records, r)
	}
	return groups
}
