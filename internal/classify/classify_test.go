package classify

import (
	"regexp"
	"sort"
	"testing"

	"github.com/jalalmostafa/timeds/internal/config"
)

func TestClassifyDisjointAndComplete(t *testing.T) {
	tables := []string{"events", "lookup", "archive", "tmp_2020", "v_summary"}
	views := map[string]bool{"v_summary": true}

	rule := &config.DatabaseRule{
		ReplicateViews: true,
		DynamicTables:  regexp.MustCompile(`^lookup$`),
		ExcludeTables:  regexp.MustCompile(`^tmp_`),
	}

	res := Classify(tables, views, rule)

	all := map[string]string{}
	record := func(class string, names []string) {
		for _, n := range names {
			if prev, ok := all[n]; ok {
				t.Errorf("table %q classified twice: %s and %s", n, prev, class)
			}
			all[n] = class
		}
	}
	record("view", res.Views)
	record("dynamic", res.Dynamic)
	record("excluded", res.Excluded)
	record("ordered", res.Ordered)

	if len(all) != len(tables) {
		t.Fatalf("classified %d of %d tables", len(all), len(tables))
	}

	want := map[string]string{
		"events":    "ordered",
		"lookup":    "dynamic",
		"archive":   "ordered",
		"tmp_2020":  "excluded",
		"v_summary": "view",
	}
	for name, class := range want {
		if all[name] != class {
			t.Errorf("table %q classified as %q, want %q", name, all[name], class)
		}
	}
}

func TestClassifyUnreplicatedViewIsDropped(t *testing.T) {
	tables := []string{"events", "v_summary"}
	views := map[string]bool{"v_summary": true}
	rule := &config.DatabaseRule{ReplicateViews: false}

	res := Classify(tables, views, rule)
	if len(res.Views) != 0 {
		t.Errorf("Views = %v, want empty when ReplicateViews is false", res.Views)
	}
	if len(res.Ordered) != 1 || res.Ordered[0] != "events" {
		t.Errorf("Ordered = %v, want [events]", res.Ordered)
	}
}

func TestClassifyIncludeTablesNarrowsOrdered(t *testing.T) {
	tables := []string{"events", "archive", "misc"}
	rule := &config.DatabaseRule{
		IncludeTables: regexp.MustCompile(`^(events|archive)$`),
	}

	res := Classify(tables, nil, rule)
	sort.Strings(res.Ordered)
	if len(res.Ordered) != 2 || res.Ordered[0] != "archive" || res.Ordered[1] != "events" {
		t.Errorf("Ordered = %v, want [archive events]", res.Ordered)
	}
}

func TestClassifyTieBreakOrder(t *testing.T) {
	// A table matching both dynamic_tables and exclude_tables is
	// Dynamic: rule 2 (dynamic) is evaluated before rule 3 (excluded).
	tables := []string{"lookup"}
	rule := &config.DatabaseRule{
		DynamicTables: regexp.MustCompile(`^lookup$`),
		ExcludeTables: regexp.MustCompile(`^lookup$`),
	}
	res := Classify(tables, nil, rule)
	if len(res.Dynamic) != 1 || len(res.Excluded) != 0 {
		t.Errorf("got Dynamic=%v Excluded=%v, want lookup classified Dynamic", res.Dynamic, res.Excluded)
	}
}
