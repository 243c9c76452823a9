package service

import (
	"github.com/sirupsen/logrus"

	"github.com/pashuvlogs/home-app/internal/domain"
)

// Rating thresholds. A score at or above the High threshold rates High, at or
// above the Medium threshold rates Medium, and anything lower rates Low.
const (
	housingNeedHighThreshold   = 7
	housingNeedMediumThreshold = 4
	grossHighThreshold         = 13
	grossMediumThreshold       = 6
	residualHighThreshold      = 9
	residualMediumThreshold    = 4
)

// HousingType is a kind of placement suggested in the part 7 summary.
type HousingType string

const (
	HousingStandalone    HousingType = "standalone"
	HousingComplex2To10  HousingType = "complex_2_10"
	HousingComplex11To20 HousingType = "complex_11_20"
	HousingComplex20Plus HousingType = "complex_20_plus"
	HousingInstitutional HousingType = "institutional"
)

// ScoreReport is the full output of a scoring run.
type ScoreReport struct {
	Breakdowns       map[domain.Section]domain.ScoreBreakdown `json:"breakdowns"`
	Ratings          domain.AssessmentRatings                 `json:"ratings"`
	RecommendedTypes []HousingType                            `json:"recommended_housing_types"`
}

// ScoringEngine turns form selections into sub-scores and ratings.
type ScoringEngine struct {
	table  *CategoryScoreTable
	logger *logrus.Logger
}

// NewScoringEngine creates a new scoring engine
func NewScoringEngine(table *CategoryScoreTable, logger *logrus.Logger) *ScoringEngine {
	if table == nil {
		table = NewCategoryScoreTable()
	}
	return &ScoringEngine{table: table, logger: logger}
}

// Breakdown scores one section from the form data.
func (e *ScoringEngine) Breakdown(fd domain.FormData, section domain.Section) domain.ScoreBreakdown {
	b := domain.ScoreBreakdown{CategoryScores: make(map[domain.Category]int)}
	for _, c := range section.Categories() {
		score := e.table.ScoreOf(section, c, fd.Selection(c))
		b.CategoryScores[c] = score
		b.Total += score
	}
	return b
}

// Compute derives every rating from the form data. It is deterministic and
// tolerates missing answers, which score 0.
func (e *ScoringEngine) Compute(fd domain.FormData) domain.AssessmentRatings {
	return e.fromBreakdowns(e.breakdowns(fd))
}

// Report computes ratings together with section breakdowns and housing type
// recommendations.
func (e *ScoringEngine) Report(fd domain.FormData) *ScoreReport {
	breakdowns := e.breakdowns(fd)
	ratings := e.fromBreakdowns(breakdowns)

	report := &ScoreReport{
		Breakdowns:       breakdowns,
		Ratings:          ratings,
		RecommendedTypes: RecommendHousingTypes(ratings.ResidualScore, fd.Selection(domain.CatAccessibilityNeeds)),
	}

	if e.logger != nil {
		e.logger.WithFields(logrus.Fields{
			"housing_need":  ratings.HousingNeedRating,
			"gross":         ratings.GrossChallengeScore,
			"mitigation":    ratings.MitigationScore,
			"residual":      ratings.ResidualScore,
			"overall_match": ratings.OverallMatchChallenge(),
		}).Debug("Computed assessment scores")
	}
	return report
}

func (e *ScoringEngine) breakdowns(fd domain.FormData) map[domain.Section]domain.ScoreBreakdown {
	out := make(map[domain.Section]domain.ScoreBreakdown, len(domain.Sections()))
	for _, s := range domain.Sections() {
		out[s] = e.Breakdown(fd, s)
	}
	return out
}

func (e *ScoringEngine) fromBreakdowns(b map[domain.Section]domain.ScoreBreakdown) domain.AssessmentRatings {
	housingNeed := b[domain.SectionHousingNeed].Total
	tenancy := b[domain.SectionTenancy].Total
	health := b[domain.SectionHealthWellbeing].Total
	mitigation := b[domain.SectionSupportNetworks].Total
	gross := tenancy + health

	return domain.AssessmentRatings{
		HousingNeedScore:        housingNeed,
		HousingNeedRating:       HousingNeedRating(housingNeed),
		TenancyChallengeScore:   tenancy,
		HealthWellbeingScore:    health,
		GrossChallengeScore:     gross,
		GrossChallengeRating:    GrossChallengeRating(gross),
		MitigationScore:         mitigation,
		ResidualScore:           ResidualScore(gross, mitigation),
		ResidualChallengeRating: ResidualChallengeRating(ResidualScore(gross, mitigation)),
	}
}

// ResidualScore applies mitigation to the gross challenge, flooring at zero.
func ResidualScore(gross, mitigation int) int {
	if r := gross + mitigation; r > 0 {
		return r
	}
	return 0
}

// HousingNeedRating rates a housing need score.
func HousingNeedRating(score int) domain.Rating {
	return rateScore(score, housingNeedMediumThreshold, housingNeedHighThreshold)
}

// GrossChallengeRating rates a gross challenge score.
func GrossChallengeRating(score int) domain.Rating {
	return rateScore(score, grossMediumThreshold, grossHighThreshold)
}

// ResidualChallengeRating rates a residual score.
func ResidualChallengeRating(score int) domain.Rating {
	return rateScore(score, residualMediumThreshold, residualHighThreshold)
}

func rateScore(score, medium, high int) domain.Rating {
	switch {
	case score >= high:
		return domain.RatingHigh
	case score >= medium:
		return domain.RatingMedium
	default:
		return domain.RatingLow
	}
}

// RecommendHousingTypes suggests placements from the residual score. Severe
// accessibility needs take precedence over the score.
func RecommendHousingTypes(residual int, accessibility domain.Option) []HousingType {
	switch {
	case accessibility == "severe":
		return []HousingType{HousingStandalone, HousingInstitutional}
	case residual >= residualHighThreshold:
		return []HousingType{HousingComplex20Plus, HousingInstitutional}
	case residual >= residualMediumThreshold:
		return []HousingType{HousingComplex2To10, HousingComplex11To20}
	default:
		return []HousingType{HousingStandalone, HousingComplex2To10}
	}
}
