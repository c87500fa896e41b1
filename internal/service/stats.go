package service

import (
	"cmp"
	"slices"

	"github.com/vipul43/gigwatch/internal/models"
)

type CategoryStat struct {
	Slug        string  `json:"slug"`
	DisplayName string  `json:"display_name"`
	Count       int64   `json:"count"`
	Percent     float64 `json:"percent"`
}

type Stats struct {
	Categories []CategoryStat `json:"categories"`
	Total      int64          `json:"total"`
}

// SummarizeStats turns per-category counts into shares of the total, largest
// first. Display names come from active; unknown slugs show as themselves.
func SummarizeStats(counts map[string]int64, active []models.Category) Stats {
	names := make(map[string]string, len(active))
	for _, c := range active {
		names[c.Slug] = c.DisplayName
	}

	stats := Stats{Categories: make([]CategoryStat, 0, len(counts))}
	for _, n := range counts {
		stats.Total += n
	}
	for slug, n := range counts {
		stat := CategoryStat{Slug: slug, DisplayName: cmp.Or(names[slug], slug), Count: n}
		if stats.Total > 0 {
			stat.Percent = float64(n) * 100 / float64(stats.Total)
		}
		stats.Categories = append(stats.Categories, stat)
	}
	slices.SortFunc(stats.Categories, func(a, b CategoryStat) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Slug, b.Slug))
	})
	return stats
}
