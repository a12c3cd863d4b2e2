package election

import (
	"fmt"
	"time"

	"github.com/IgrejaConnect/Election-Backend/internal/directory"
)

// Classification buckets for giving and participation signals. The member
// directory normalizes its records into these before they reach the
// evaluator; "none" also covers uninformed data.
type Classification string

const (
	ClassificationPunctual  Classification = "punctual"
	ClassificationSeasonal  Classification = "seasonal"
	ClassificationRecurring Classification = "recurring"
	ClassificationNone      Classification = "none"
)

// MemberProfile is the evaluator's input contract: the narrow, normalized
// view of a member that eligibility rules are allowed to see.
type MemberProfile struct {
	MemberID          int64
	Name              string
	Tither            Classification
	Offering          Classification
	Participation     Classification
	YearsSinceBaptism int
	Role              string
}

// Evaluation is the per-member result. Reasons list every enabled criterion
// the member failed, for the admin's override view.
type Evaluation struct {
	MemberID int64    `json:"member_id"`
	Name     string   `json:"name"`
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons,omitempty"`
}

func classify(s string) Classification {
	switch Classification(s) {
	case ClassificationPunctual, ClassificationSeasonal, ClassificationRecurring:
		return Classification(s)
	default:
		return ClassificationNone
	}
}

// profileFor normalizes a directory member into the evaluator's contract.
func profileFor(m directory.Member, now time.Time) MemberProfile {
	return MemberProfile{
		MemberID:          m.ID,
		Name:              m.Name,
		Tither:            classify(m.TitherClassification),
		Offering:          classify(m.OfferingClassification),
		Participation:     classify(m.ParticipationClassification),
		YearsSinceBaptism: m.YearsSinceBaptism(now),
		Role:              m.Role,
	}
}

func flagsMatch(f CriterionFlags, c Classification) bool {
	switch c {
	case ClassificationPunctual:
		return f.Punctual
	case ClassificationSeasonal:
		return f.Seasonal
	case ClassificationRecurring:
		return f.Recurring
	default:
		return false
	}
}

// minimumYears converts a months threshold into whole baptism years,
// rounding up.
func minimumYears(months int) int {
	return (months + 11) / 12
}

// Evaluate classifies one member against the criteria set. Each enabled
// criterion independently vetoes eligibility; disabled criteria are skipped.
// The cross-position constraints (positionLimit, eldersCount) are applied at
// candidate-pool build time, not here.
//
// Faithfulness uses OR semantics across the two income signals: a member
// whose tither classification matches an enabled sub-flag passes even if
// their offering classification does not, and vice versa.
func Evaluate(p MemberProfile, c Criteria) Evaluation {
	ev := Evaluation{MemberID: p.MemberID, Name: p.Name, Eligible: true}

	if c.Faithfulness.Enabled {
		if !flagsMatch(c.Faithfulness, p.Tither) && !flagsMatch(c.Faithfulness, p.Offering) {
			ev.Eligible = false
			ev.Reasons = append(ev.Reasons, fmt.Sprintf(
				"faithfulness: neither tither (%s) nor offering (%s) classification matches the enabled flags",
				p.Tither, p.Offering))
		}
	}

	if c.Attendance.Enabled {
		// "none" participation always fails, regardless of sub-flags.
		if p.Participation == ClassificationNone || !flagsMatch(c.Attendance, p.Participation) {
			ev.Eligible = false
			ev.Reasons = append(ev.Reasons, fmt.Sprintf(
				"attendance: participation classification (%s) does not match the enabled flags",
				p.Participation))
		}
	}

	if c.ChurchTime.Enabled {
		need := minimumYears(c.ChurchTime.MinimumMonths)
		if p.YearsSinceBaptism < need {
			ev.Eligible = false
			ev.Reasons = append(ev.Reasons, fmt.Sprintf(
				"churchTime: %d year(s) since baptism, %d required",
				p.YearsSinceBaptism, need))
		}
	}

	return ev
}
