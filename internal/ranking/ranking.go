// Package ranking merges per-query graded results into one
// deduplicated, deterministically ordered list. Pure in-memory
// transformations, no I/O.
package ranking

import (
	"math"
	"sort"
	"strings"

	"github.com/yungbote/hermes-backend/internal/grading"
)

const DefaultPageSize = 5

// QueryResults pairs a search query with its graded creators. The
// slice form (rather than a map) pins the merge order to the
// expansion's query order so ranking stays deterministic.
type QueryResults struct {
	Query   string
	Results []grading.GradedCreator
}

// Page is one slice of the ranked list.
type Page struct {
	Creators     []grading.GradedCreator `json:"creators"`
	Page         int                     `json:"page"`
	PageSize     int                     `json:"pageSize"`
	TotalResults int                     `json:"totalResults"`
	TotalPages   int                     `json:"totalPages"`
}

// EmptyPage returns the zero-result page shape.
func EmptyPage(page, pageSize int) Page {
	return Page{Creators: []grading.GradedCreator{}, Page: page, PageSize: pageSize}
}

// Rank merges, deduplicates, and orders graded creators.
func Rank(grouped []QueryResults) []grading.GradedCreator {
	return sortCreators(Dedupe(Merge(grouped)))
}

// Merge flattens per-query results preserving group order.
func Merge(grouped []QueryResults) []grading.GradedCreator {
	var all []grading.GradedCreator
	for _, group := range grouped {
		all = append(all, group.Results...)
	}
	return all
}

// Dedupe collapses duplicates by channelID: the highest-scoring
// instance survives and carries the union of every label seen for
// that channel, in first-seen order.
func Dedupe(creators []grading.GradedCreator) []grading.GradedCreator {
	best := map[string]grading.GradedCreator{}
	labelSeen := map[string]map[string]bool{}
	labelOrder := map[string][]string{}
	var order []string

	for _, creator := range creators {
		id := creator.ChannelID
		if _, ok := best[id]; !ok {
			order = append(order, id)
			labelSeen[id] = map[string]bool{}
		}
		for _, label := range creator.Labels {
			if !labelSeen[id][label] {
				labelSeen[id][label] = true
				labelOrder[id] = append(labelOrder[id], label)
			}
		}
		if existing, ok := best[id]; !ok || creator.FinalScore() > existing.FinalScore() {
			best[id] = creator
		}
	}

	result := make([]grading.GradedCreator, 0, len(order))
	for _, id := range order {
		chosen := best[id]
		chosen.Labels = labelOrder[id]
		result = append(result, chosen)
	}
	return result
}

// sortCreators orders by finalScore descending; ties break on channel
// name ascending case-insensitive, empty names last.
func sortCreators(creators []grading.GradedCreator) []grading.GradedCreator {
	ranked := make([]grading.GradedCreator, len(creators))
	copy(ranked, creators)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].FinalScore() != ranked[j].FinalScore() {
			return ranked[i].FinalScore() > ranked[j].FinalScore()
		}
		return lessNameIgnoreCase(ranked[i].ChannelName, ranked[j].ChannelName)
	})
	return ranked
}

func lessNameIgnoreCase(a, b string) bool {
	if a == "" {
		return false
	}
	if b == "" {
		return true
	}
	return strings.ToLower(a) < strings.ToLower(b)
}

// Window computes the clamped slice bounds for a zero-based page over
// total items. Out-of-range pages land on the last page; an empty
// list yields start == end == 0.
func Window(total, page, pageSize int) (start, end, effectivePage, totalPages int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 0 {
		page = 0
	}

	totalPages = int(math.Ceil(float64(total) / float64(pageSize)))

	effectivePage = page
	if maxPage := totalPages - 1; effectivePage > maxPage {
		if maxPage < 0 {
			maxPage = 0
		}
		effectivePage = maxPage
	}

	start = effectivePage * pageSize
	end = start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return start, end, effectivePage, totalPages
}

// Paginate slices the ranked list. Pages are zero-based and clamped
// into the valid range; out-of-range requests land on the last page.
func Paginate(ranked []grading.GradedCreator, page, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	start, end, effectivePage, totalPages := Window(len(ranked), page, pageSize)

	creators := []grading.GradedCreator{}
	creators = append(creators, ranked[start:end]...)
	return Page{
		Creators:     creators,
		Page:         effectivePage,
		PageSize:     pageSize,
		TotalResults: len(ranked),
		TotalPages:   totalPages,
	}
}
