// Package query builds the Kusto (KQL) queries the sync engine runs against
// Azure Resource Graph, including the tag-based filter clause compiled from
// the configured include/exclude tag sets.
package query

import (
	"fmt"
	"sort"
	"strings"
)

// TagFilters holds the include/exclude tag constraints used to scope which
// resource containers are synchronized. Empty maps mean "no constraint".
// Include entries are ANDed; exclude entries are ORed and negated; the two
// groups combine with AND.
type TagFilters struct {
	Include map[string]string `json:"include,omitempty"`
	Exclude map[string]string `json:"exclude,omitempty"`
}

// HasFilters reports whether any constraint is configured.
func (f TagFilters) HasFilters() bool {
	return len(f.Include) > 0 || len(f.Exclude) > 0
}

// Compile turns the filter set into a KQL `| where` clause, or the empty
// string when no filters apply. Keys are iterated in lexicographic order so
// identical filter sets always compile to identical text.
func Compile(filters TagFilters) string {
	if !filters.HasFilters() {
		return ""
	}

	var groups []string

	if len(filters.Include) > 0 {
		groups = append(groups, fmt.Sprintf("(%s)", strings.Join(tagConditions(filters.Include), " and ")))
	}
	if len(filters.Exclude) > 0 {
		groups = append(groups, fmt.Sprintf("not (%s)", strings.Join(tagConditions(filters.Exclude), " or ")))
	}

	return "| where " + strings.Join(groups, " and ")
}

// tagConditions renders one case-insensitive equality test per tag pair,
// sorted by key for deterministic output.
func tagConditions(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conditions := make([]string, 0, len(keys))
	for _, k := range keys {
		conditions = append(conditions, fmt.Sprintf(
			"tostring(tags['%s']) =~ '%s'",
			escapeQuotes(k), escapeQuotes(tags[k]),
		))
	}
	return conditions
}

// escapeQuotes doubles single quotes so the value stays embeddable inside a
// KQL string literal.
func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
