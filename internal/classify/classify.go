// Package classify splits reflected database tables into the four
// disjoint classes the replication worker treats differently: views,
// dynamic tables, excluded tables, and ordered tables.
package classify

import (
	"regexp"

	"github.com/jalalmostafa/timeds/internal/config"
)

// Class tags a single reflected table or view.
type Class int

const (
	Ordered Class = iota
	Dynamic
	Excluded
	View
)

func (c Class) String() string {
	switch c {
	case View:
		return "view"
	case Dynamic:
		return "dynamic"
	case Excluded:
		return "excluded"
	default:
		return "ordered"
	}
}

// Result is the four-way partition of a schema's reflected entities.
type Result struct {
	Views    []string
	Dynamic  []string
	Excluded []string
	Ordered  []string
}

// Classify applies the rules from spec.md §4.3, in order, to every
// reflected table name. viewNames identifies which reflected names are
// actually views (as opposed to base tables) so rule 1 can be applied
// before any of the table-only rules.
//
// Tie-break: the first matching class wins; a table never appears in
// two sets. An empty (nil) regex in rule is treated as "unset" and
// never matches.
func Classify(tables []string, viewNames map[string]bool, rule *config.DatabaseRule) Result {
	var res Result

	remaining := make([]string, 0, len(tables))
	for _, name := range tables {
		if viewNames[name] {
			if rule.ReplicateViews {
				res.Views = append(res.Views, name)
			}
			continue
		}
		remaining = append(remaining, name)
	}

	stillRemaining := make([]string, 0, len(remaining))
	for _, name := range remaining {
		if matches(rule.DynamicTables, name) {
			res.Dynamic = append(res.Dynamic, name)
			continue
		}
		stillRemaining = append(stillRemaining, name)
	}
	remaining = stillRemaining

	stillRemaining = stillRemaining[:0]
	for _, name := range remaining {
		if matches(rule.ExcludeTables, name) {
			res.Excluded = append(res.Excluded, name)
			continue
		}
		stillRemaining = append(stillRemaining, name)
	}
	remaining = stillRemaining

	for _, name := range remaining {
		if rule.IncludeTables == nil || matches(rule.IncludeTables, name) {
			res.Ordered = append(res.Ordered, name)
		}
	}

	return res
}

func matches(pattern *regexp.Regexp, name string) bool {
	if pattern == nil {
		return false
	}
	return pattern.MatchString(name)
}
