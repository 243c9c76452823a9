package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/pashuvlogs/home-app/internal/domain"
	"github.com/pashuvlogs/home-app/internal/service"
)

var toolNames = []string{"score_assessment", "resolve_pathway", "scoring_guide"}

// ScoreInput is the questionnaire to score, keyed "part1".."part8".
type ScoreInput struct {
	FormData domain.FormData `json:"form_data" jsonschema:"questionnaire answers keyed part1..part8"`
}

// ScoreOutput is the scoring result plus anything still missing for submission.
type ScoreOutput struct {
	Breakdowns            map[domain.Section]domain.ScoreBreakdown `json:"breakdowns"`
	Ratings               RatingsOutput                            `json:"ratings"`
	RecommendedTypes      []service.HousingType                    `json:"recommended_housing_types"`
	OverallMatchChallenge domain.Rating                            `json:"overall_match_challenge"`
	Submittable           bool                                     `json:"submittable"`
	Problems              []domain.Problem                         `json:"problems,omitempty"`
}

// RatingsOutput mirrors domain.AssessmentRatings field for field. It has no
// custom marshaller, so the encoded object matches the inferred schema.
type RatingsOutput struct {
	HousingNeedScore        int           `json:"housing_need_score"`
	HousingNeedRating       domain.Rating `json:"housing_need_rating"`
	TenancyChallengeScore   int           `json:"tenancy_challenge_score"`
	HealthWellbeingScore    int           `json:"health_wellbeing_score"`
	GrossChallengeScore     int           `json:"gross_challenge_score"`
	GrossChallengeRating    domain.Rating `json:"gross_challenge_rating"`
	MitigationScore         int           `json:"mitigation_score"`
	ResidualScore           int           `json:"residual_score"`
	ResidualChallengeRating domain.Rating `json:"residual_challenge_rating"`
}

func ratingsOutput(r domain.AssessmentRatings) RatingsOutput {
	return RatingsOutput(r)
}

// PathwayInput is a computed rating with an optional override.
type PathwayInput struct {
	ComputedRating domain.Rating `json:"computed_rating" jsonschema:"rating produced by the scoring engine: Low, Medium or High"`
	OverrideFrom   domain.Rating `json:"override_original,omitempty" jsonschema:"rating recorded when the override was made"`
	OverrideTo     domain.Rating `json:"override_adjusted,omitempty" jsonschema:"manually adjusted rating"`
}

// PathwayOutput explains the effective and routing ratings and the pathway.
type PathwayOutput struct {
	Resolution service.Resolution      `json:"resolution"`
	Pathway    service.PathwayDecision `json:"pathway"`
}

// GuideInput takes no arguments.
type GuideInput struct{}

// GuideOutput is the static scoring table.
type GuideOutput struct {
	Sections []service.SectionGuide `json:"sections"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "score_assessment",
		Description: "Score a housing suitability questionnaire: section breakdowns, ratings and recommended housing types",
	}, s.scoreAssessment)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "resolve_pathway",
		Description: "Resolve the effective and routing ratings for a computed rating and optional override, and the approval pathway",
	}, s.resolvePathway)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "scoring_guide",
		Description: "List every scored category with its options and scores",
	}, s.scoringGuide)

	for _, name := range toolNames {
		s.logger.WithField("tool_name", name).Debug("Registered MCP tool")
	}
}

func (s *Server) scoreAssessment(_ context.Context, _ *mcp.CallToolRequest, in ScoreInput) (*mcp.CallToolResult, ScoreOutput, error) {
	report := s.engine.Report(in.FormData)
	out := ScoreOutput{
		Breakdowns:            report.Breakdowns,
		Ratings:               ratingsOutput(report.Ratings),
		RecommendedTypes:      report.RecommendedTypes,
		OverallMatchChallenge: report.Ratings.OverallMatchChallenge(),
		Submittable:           true,
	}

	if err := s.completeness.Validate(in.FormData); err != nil {
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			return nil, ScoreOutput{}, err
		}
		out.Submittable = false
		out.Problems = verr.Problems
	}

	s.logger.WithFields(logrus.Fields{
		"tool_name":   "score_assessment",
		"overall":     out.OverallMatchChallenge,
		"submittable": out.Submittable,
	}).Info("Tool executed")
	return nil, out, nil
}

func (s *Server) resolvePathway(_ context.Context, _ *mcp.CallToolRequest, in PathwayInput) (*mcp.CallToolResult, PathwayOutput, error) {
	computed, err := domain.ParseRating(string(in.ComputedRating))
	if err != nil {
		return nil, PathwayOutput{}, fmt.Errorf("computed_rating: %w", err)
	}

	var override *domain.Override
	if in.OverrideTo != "" {
		adjusted, err := domain.ParseRating(string(in.OverrideTo))
		if err != nil {
			return nil, PathwayOutput{}, fmt.Errorf("override_adjusted: %w", err)
		}
		original := computed
		if in.OverrideFrom != "" {
			if original, err = domain.ParseRating(string(in.OverrideFrom)); err != nil {
				return nil, PathwayOutput{}, fmt.Errorf("override_original: %w", err)
			}
		}
		override = &domain.Override{OriginalScore: original, AdjustedScore: adjusted}
	}

	res := s.overrides.Resolve(computed, override)
	out := PathwayOutput{Resolution: res, Pathway: s.pathways.Resolve(res.Determining)}

	s.logger.WithFields(logrus.Fields{
		"tool_name":   "resolve_pathway",
		"determining": res.Determining,
		"pathway":     out.Pathway.Pathway,
	}).Info("Tool executed")
	return nil, out, nil
}

func (s *Server) scoringGuide(_ context.Context, _ *mcp.CallToolRequest, _ GuideInput) (*mcp.CallToolResult, GuideOutput, error) {
	return nil, GuideOutput{Sections: s.table.Guide()}, nil
}
