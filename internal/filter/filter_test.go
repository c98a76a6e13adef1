package filter

import (
	"reflect"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/hermes-backend/internal/types"
)

func result(rank int, audienceFit, engagement float64) types.SearchSessionResult {
	return types.SearchSessionResult{
		Rank:              rank,
		ChannelID:         "ch" + string(rune('0'+rank)),
		AudienceFit:       audienceFit,
		EngagementQuality: engagement,
	}
}

func ranks(results []types.SearchSessionResult) []int {
	out := make([]int, 0, len(results))
	for _, r := range results {
		out = append(out, r.Rank)
	}
	return out
}

func TestApplyAndsAcrossCategoriesOrsWithin(t *testing.T) {
	results := []types.SearchSessionResult{
		result(1, 0.15, 0.85),
		result(2, 0.45, 0.55),
		result(3, 0.75, 0.25),
		result(4, 0.10, 0.20),
		result(5, 0.80, 0.90),
	}
	criteria := Criteria{
		Audience:   []string{"small", "large"},
		Engagement: []string{"high"},
	}

	got := ranks(Apply(results, criteria))
	want := []int{1, 5}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestBucketBoundaries(t *testing.T) {
	cases := []struct {
		value string
		got   string
		want  string
	}{
		{"audience 0.0", AudienceBucket(0.0), "small"},
		{"audience 0.39", AudienceBucket(0.39), "small"},
		{"audience 0.4", AudienceBucket(0.4), "medium"},
		{"audience 0.69", AudienceBucket(0.69), "medium"},
		{"audience 0.7", AudienceBucket(0.7), "large"},
		{"audience 1.0", AudienceBucket(1.0), "large"},
		{"engagement 0.5", EngagementBucket(0.5), "medium"},
		{"activity 0.71", ActivityBucket(0.71), "high"},
		{"competitiveness 0.0", CompetitivenessBucket(0.0), "nascent"},
		{"competitiveness 0.2", CompetitivenessBucket(0.2), "emerging"},
		{"competitiveness 0.45", CompetitivenessBucket(0.45), "growing"},
		{"competitiveness 0.6", CompetitivenessBucket(0.6), "established"},
		{"competitiveness 0.95", CompetitivenessBucket(0.95), "dominant"},
		{"competitiveness 1.0", CompetitivenessBucket(1.0), "dominant"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("%s: got=%q want=%q", tc.value, tc.got, tc.want)
		}
	}
}

func TestMatchesCompetitivenessAndActivity(t *testing.T) {
	row := types.SearchSessionResult{
		Rank:                 1,
		CompetitivenessScore: 0.65,
		ActivityConsistency:  0.9,
	}

	cases := []struct {
		name     string
		criteria Criteria
		want     bool
	}{
		{name: "competitiveness matches", criteria: Criteria{Competitiveness: []string{"established"}}, want: true},
		{name: "competitiveness case-insensitive", criteria: Criteria{Competitiveness: []string{"Established"}}, want: true},
		{name: "competitiveness misses", criteria: Criteria{Competitiveness: []string{"nascent", "emerging"}}, want: false},
		{name: "activity matches", criteria: Criteria{Activity: []string{"high"}}, want: true},
		{name: "both categories must match", criteria: Criteria{Competitiveness: []string{"established"}, Activity: []string{"low"}}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.criteria.Matches(row); got != tc.want {
				t.Fatalf("got=%v want=%v", got, tc.want)
			}
		})
	}
}

func TestMatchesGenresAgainstLabels(t *testing.T) {
	row := types.SearchSessionResult{
		Rank:   1,
		Labels: datatypes.JSONSlice[string]{"Top match", "High engagement"},
	}

	if !(Criteria{Genres: []string{"top MATCH"}}).Matches(row) {
		t.Fatalf("case-insensitive label intersection should match")
	}
	if (Criteria{Genres: []string{"gaming"}}).Matches(row) {
		t.Fatalf("non-intersecting genres should not match")
	}
}

func TestPlatformNeverExcludes(t *testing.T) {
	row := types.SearchSessionResult{Rank: 1}
	criteria := Criteria{Platform: []string{"twitch"}}
	if !criteria.Matches(row) {
		t.Fatalf("platform filter must not exclude rows")
	}
	if got := criteria.ActiveFilterCount(); got != 1 {
		t.Fatalf("activeFilterCount got=%d want=1", got)
	}
}

func TestParse(t *testing.T) {
	params := map[string]string{
		"audience":   "small, large",
		"engagement": "",
		"genres":     "gaming,,music ",
	}
	criteria := Parse(func(key string) string { return params[key] })

	if !reflect.DeepEqual(criteria.Audience, []string{"small", "large"}) {
		t.Fatalf("audience=%v", criteria.Audience)
	}
	if criteria.Engagement != nil {
		t.Fatalf("engagement=%v want nil", criteria.Engagement)
	}
	if !reflect.DeepEqual(criteria.Genres, []string{"gaming", "music"}) {
		t.Fatalf("genres=%v", criteria.Genres)
	}
	if got := criteria.ActiveFilterCount(); got != 2 {
		t.Fatalf("activeFilterCount got=%d want=2", got)
	}
	if criteria.IsEmpty() {
		t.Fatalf("criteria with values reported empty")
	}
}

func TestSortBySubscribers(t *testing.T) {
	results := []types.SearchSessionResult{
		{Rank: 1, SubscriberCount: 100},
		{Rank: 2, SubscriberCount: 900},
		{Rank: 3, SubscriberCount: 900},
		{Rank: 4, SubscriberCount: 5000},
	}

	got := ranks(Sort(results, types.SortSubscribers))
	want := []int{4, 2, 3, 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestSortByActivityPutsUnknownDatesLast(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	older := now.AddDate(0, -2, 0)
	results := []types.SearchSessionResult{
		{Rank: 1, LastVideoDate: nil},
		{Rank: 2, LastVideoDate: &older},
		{Rank: 3, LastVideoDate: &now},
		{Rank: 4, LastVideoDate: nil},
	}

	got := ranks(Sort(results, types.SortActivity))
	want := []int{3, 2, 1, 4}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestSortDefaultKeyTiebreaksByRank(t *testing.T) {
	results := []types.SearchSessionResult{
		{Rank: 3, Score: 0.5},
		{Rank: 1, Score: 0.5},
		{Rank: 2, Score: 0.9},
	}

	got := ranks(Sort(results, types.SortFinalScore))
	want := []int{2, 1, 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}
