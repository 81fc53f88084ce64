package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"creatorlab/pkg/domain"
)

// contextDateFormat is the human-readable date embedded into prompts.
const contextDateFormat = "January 2, 2006"

// previousSummaryLimit caps how much of each prior deliverable feeds the
// next month's context.
const previousSummaryLimit = 500

// monthTitles indexes the program curriculum by month 1..8.
var monthTitles = map[int]string{
	1: "Foundation & Brand Identity",
	2: "Content Engine",
	3: "Audience Growth",
	4: "Community & Engagement",
	5: "Monetization Launch",
	6: "Offer Optimization",
	7: "Scaling Systems",
	8: "Long-Term Strategy",
}

// BuildContext assembles the flat variable map used for prompt substitution
// from a client's onboarding profile. onboarded_date and generation_date are
// formatted at call time; a multi-section run snapshots this map into its
// checkpoint so a resume keeps the original dates.
func (a *App) BuildContext(ctx context.Context, clientID string) (map[string]string, error) {
	profile, ok, err := a.store.GetClientProfile(clientID)
	if err != nil {
		return nil, fmt.Errorf("load client profile: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
	}
	now := time.Now()
	vars := map[string]string{
		"client_name":          profile.Name,
		"business_name":        profile.BusinessName,
		"niche":                profile.Niche,
		"vision_statement":     profile.VisionStatement,
		"target_audience":      profile.TargetAudience,
		"audience_age":         profile.AudienceAge,
		"audience_pain_points": joinList(profile.AudiencePainPoints),
		"brand_personality":    joinList(profile.BrandPersonality),
		"brand_values":         joinList(profile.BrandValues),
		"content_pillars":      joinList(profile.ContentPillars),
		"current_platforms":    joinList(profile.CurrentPlatforms),
		"current_followers":    profile.CurrentFollowers,
		"monthly_revenue":      profile.MonthlyRevenue,
		"revenue_goal":         profile.RevenueGoal,
		"scaling_goals":        joinList(profile.ScalingGoals),
		"biggest_challenge":    profile.BiggestChallenge,
		"onboarded_date":       profile.OnboardedAt.Format(contextDateFormat),
		"generation_date":      now.Format(contextDateFormat),
	}
	return vars, nil
}

// BuildDeliverableContext extends the base context with the month's
// curriculum title and a summary of every prior month's deliverable.
func (a *App) BuildDeliverableContext(ctx context.Context, clientID string, month int) (map[string]string, error) {
	if month < 1 || month > domain.ProgramMonths {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMonth, month)
	}
	vars, err := a.BuildContext(ctx, clientID)
	if err != nil {
		return nil, err
	}
	vars["current_month_number"] = strconv.Itoa(month)
	vars["month_title"] = monthTitles[month]
	vars["previous_months_summary"] = a.previousMonthsSummary(clientID, month)
	return vars, nil
}

// previousMonthsSummary concatenates the opening of each earlier month's
// deliverable, headed by its title. Missing months are skipped.
func (a *App) previousMonthsSummary(clientID string, month int) string {
	var parts []string
	for m := 1; m < month; m++ {
		doc, ok, err := a.store.GetClientDeliverable(clientID, m)
		if err != nil || !ok {
			continue
		}
		content := doc.ContentMarkdown
		if runes := []rune(content); len(runes) > previousSummaryLimit {
			content = string(runes[:previousSummaryLimit])
		}
		parts = append(parts, fmt.Sprintf("%s:\n%s", doc.Title, content))
	}
	return strings.Join(parts, "\n\n")
}

func joinList(values []string) string {
	return strings.Join(values, ", ")
}
