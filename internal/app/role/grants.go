package role

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

// SkillProvider reports a user's current proficiency score. ok=false means
// the user has no recorded score and no skill grants apply.
type SkillProvider interface {
	Score(ctx context.Context, userID uuid.UUID) (score float64, ok bool, err error)
}

// AchievementProvider reports the badges a user has earned.
type AchievementProvider interface {
	Achievements(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// SkillTier unlocks permissions at and above MinScore. Tiers are cumulative:
// a score unlocks the union of every tier it reaches, so a higher score always
// holds a superset of a lower one.
type SkillTier struct {
	Name        string
	MinScore    float64
	Permissions []Permission
}

type tierTable []SkillTier

func (t tierTable) permissionsForScore(score float64, set PermissionSet) {
	for _, tier := range t {
		if score >= tier.MinScore {
			set.Add(tier.Permissions...)
		}
	}
}

func DefaultSkillTiers() []SkillTier {
	tiers := []SkillTier{
		{
			Name:     "improver",
			MinScore: 25,
			Permissions: []Permission{
				{Name: "view_advanced_stats", Category: CategoryRead, ResourceType: "stats", Action: "read"},
			},
		},
		{
			Name:     "club_player",
			MinScore: 50,
			Permissions: []Permission{
				{Name: "enter_club_tournaments", Category: CategoryMember, ResourceType: "tournament", Action: "enter"},
			},
		},
		{
			Name:     "competitor",
			MinScore: 75,
			Permissions: []Permission{
				{Name: "enter_regional_tournaments", Category: CategoryMember, ResourceType: "tournament", Action: "enter"},
				{Name: "access_pro_tees", Category: CategoryMember, ResourceType: "course", Action: "access"},
			},
		},
		{
			Name:     "elite",
			MinScore: 90,
			Permissions: []Permission{
				{Name: "mentor_members", Category: CategoryMember, ResourceType: "member", Action: "mentor"},
			},
		},
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinScore < tiers[j].MinScore })

	return tiers
}

// DefaultAchievementGrants maps earned badges to the permissions they unlock.
func DefaultAchievementGrants() map[string][]Permission {
	return map[string][]Permission{
		"club_champion": {
			{Name: "book_priority_tee_times", Category: CategoryMember, ResourceType: "tee_time", Action: "book"},
		},
		"course_record": {
			{Name: "access_championship_tees", Category: CategoryMember, ResourceType: "course", Action: "access"},
		},
		"tournament_winner": {
			{Name: "enter_invitational_tournaments", Category: CategoryMember, ResourceType: "tournament", Action: "enter"},
		},
	}
}

// NopGrantSource serves deployments without skill or achievement tracking.
type NopGrantSource struct{}

func (NopGrantSource) Score(_ context.Context, _ uuid.UUID) (float64, bool, error) {
	return 0, false, nil
}

func (NopGrantSource) Achievements(_ context.Context, _ uuid.UUID) ([]string, error) {
	return nil, nil
}
