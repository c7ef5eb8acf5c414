package main

import (
	"fmt"
	"sort"

	"github.com/miami-mobility/workprogram/internal/workprogram"
)

// printQualityReport renders a quality report for the operator.
func printQualityReport(r workprogram.QualityReport) {
	fmt.Printf("Total rows:        %d\n", r.Total)
	fmt.Printf("Empty geometries:  %d\n", r.EmptyGeometries)
	fmt.Printf("Null geometries:   %d\n", r.NullGeometries)
	fmt.Printf("Missing LOC_ERROR: %d\n", r.MissingLocError)

	entries := locErrorEntries(r.LocErrorCounts)
	if len(entries) == 0 {
		return
	}

	fmt.Println("\nLocation error breakdown:")
	for _, e := range entries {
		fmt.Printf("  %-24s %d\n", e.value, e.count)
	}
}

type locErrorEntry struct {
	value string
	count int
}

// locErrorEntries sorts the breakdown by count descending, ties by value.
func locErrorEntries(counts map[string]int) []locErrorEntry {
	entries := make([]locErrorEntry, 0, len(counts))
	for v, n := range counts {
		entries = append(entries, locErrorEntry{value: v, count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].value < entries[j].value
	})
	return entries
}
