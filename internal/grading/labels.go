package grading

const (
	labelHighThreshold   = 0.75
	labelMediumThreshold = 0.5
	labelLowThreshold    = 0.25
)

// GenerateLabels derives the qualitative label bag from a score
// breakdown. Deterministic; label order is fixed.
func GenerateLabels(score CreatorScore) []string {
	var labels []string

	if score.GenreRelevance >= labelHighThreshold {
		labels = append(labels, "Strong genre fit")
	} else if score.GenreRelevance >= labelMediumThreshold {
		labels = append(labels, "Good genre match")
	}

	if score.AudienceFit >= labelHighThreshold {
		labels = append(labels, "Perfect audience size")
	} else if score.AudienceFit >= labelMediumThreshold {
		labels = append(labels, "Suitable audience")
	}

	if score.EngagementQuality >= labelHighThreshold {
		labels = append(labels, "High engagement")
	} else if score.EngagementQuality >= labelMediumThreshold {
		labels = append(labels, "Good engagement")
	} else if score.EngagementQuality < labelLowThreshold {
		labels = append(labels, "Low engagement")
	}

	if score.ActivityConsistency >= labelHighThreshold {
		labels = append(labels, "Very active")
	} else if score.ActivityConsistency >= labelMediumThreshold {
		labels = append(labels, "Consistently active")
	} else if score.ActivityConsistency < labelLowThreshold {
		labels = append(labels, "Occasionally active")
	}

	if score.Freshness >= labelHighThreshold {
		labels = append(labels, "Recently active")
	} else if score.Freshness < labelLowThreshold {
		labels = append(labels, "Inactive recently")
	}

	// Tier label only from Emerging upward; Nascent carries no label.
	if c := CompetitivenessFromScore(score); c >= ThresholdEmerging {
		labels = append(labels, CompetitivenessBucket(c))
	}

	if score.FinalScore >= 0.8 {
		labels = append(labels, "Top match")
	} else if score.FinalScore >= 0.6 {
		labels = append(labels, "Good match")
	}

	return labels
}
