package directory

import "time"

// Member is a church member record. The giving and participation
// classifications are normalized here (punctual / seasonal / recurring /
// none) so the election module never has to parse free-form membership data.
type Member struct {
	ID     int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID string `gorm:"uniqueIndex" json:"user_id"`
	Name   string `gorm:"not null" json:"name"`
	Email  string `json:"email"`
	Church string `gorm:"index;not null" json:"church"`
	Role   string `gorm:"default:'member'" json:"role"`
	Status string `gorm:"default:'approved'" json:"status"`

	TitherClassification        string     `gorm:"default:'none'" json:"tither_classification"`
	OfferingClassification      string     `gorm:"default:'none'" json:"offering_classification"`
	ParticipationClassification string     `gorm:"default:'none'" json:"participation_classification"`
	BaptismDate                 *time.Time `json:"baptism_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Member) TableName() string { return "directory_members" }

// YearsSinceBaptism returns whole years since the member's baptism, or zero
// when the date is unknown.
func (m Member) YearsSinceBaptism(now time.Time) int {
	if m.BaptismDate == nil {
		return 0
	}
	years := now.Year() - m.BaptismDate.Year()
	anniversary := m.BaptismDate.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
