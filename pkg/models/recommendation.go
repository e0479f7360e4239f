package models

// RecommendationPriority orders recommendations for operators.
type RecommendationPriority string

const (
	PriorityLow    RecommendationPriority = "low"
	PriorityMedium RecommendationPriority = "medium"
	PriorityHigh   RecommendationPriority = "high"
)

// Rank maps a priority to a sortable weight, higher is more urgent.
func (p RecommendationPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// RecommendationCategory groups recommendations by the subsystem they target.
type RecommendationCategory string

const (
	CategoryStorage  RecommendationCategory = "storage"
	CategoryAPI      RecommendationCategory = "api"
	CategorySystem   RecommendationCategory = "system"
	CategoryCache    RecommendationCategory = "cache"
	CategoryFrontend RecommendationCategory = "frontend"
	CategoryCapacity RecommendationCategory = "capacity"
)

// Recommendation is a derived, human-readable optimization suggestion.
// Recomputed per analysis pass, never persisted as authoritative state.
type Recommendation struct {
	Category            RecommendationCategory `json:"category"`
	Priority            RecommendationPriority `json:"priority"`
	Title               string                 `json:"title"`
	Description         string                 `json:"description"`
	Steps               []string               `json:"steps"`
	ExpectedImprovement string                 `json:"expected_improvement"`
	AffectedComponents  []string               `json:"affected_components"`
	ConfidenceScore     float64                `json:"confidence_score"`
}
