package election

import (
	"time"
)

const (
	StatusDraft     = "draft"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

const (
	PhaseNomination       = "nomination"
	PhaseOralObservations = "oral_observations"
	PhaseVoting           = "voting"
	PhaseCompleted        = "completed"
)

const (
	BallotNomination = "nomination"
	BallotVote       = "vote"
)

// ElectionConfig holds one church's election setup: who may vote, the
// eligibility rule set and the ordered list of positions to fill.
type ElectionConfig struct {
	ID                   string     `gorm:"primaryKey" json:"id"`
	ChurchID             int64      `gorm:"not null" json:"church_id"`
	ChurchName           string     `gorm:"not null" json:"church_name"`
	Voters               Int64List  `gorm:"type:jsonb" json:"voters"`
	Criteria             Criteria   `gorm:"type:jsonb" json:"criteria"`
	Positions            StringList `gorm:"type:jsonb" json:"positions"`
	PositionDescriptions StringMap  `gorm:"type:jsonb" json:"position_descriptions"`
	Status               string     `gorm:"default:'draft'" json:"status"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (ElectionConfig) TableName() string { return "election_configs" }

// ElectionSession is the run-time state of one election: which position is
// open and in which phase. One active session per configuration.
type ElectionSession struct {
	ID                     string    `gorm:"primaryKey" json:"id"`
	ConfigID               string    `gorm:"index;not null" json:"config_id"`
	ChurchID               int64     `gorm:"index" json:"church_id"`
	Status                 string    `gorm:"default:'active'" json:"status"`
	CurrentPositionIndex   int       `json:"current_position_index"`
	CurrentPhase           string    `gorm:"default:'nomination'" json:"current_phase"`
	MaxNominationsPerVoter int       `gorm:"default:1" json:"max_nominations_per_voter"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func (ElectionSession) TableName() string { return "election_sessions" }

// PositionState tracks per-position run-time data: the vote generation
// (bumped on reset so superseded votes are ignored without being deleted),
// the skipped flag and the recorded winner.
type PositionState struct {
	ID            string     `gorm:"primaryKey" json:"id"`
	SessionID     string     `gorm:"index:idx_session_position,unique;not null" json:"session_id"`
	PositionIndex int        `gorm:"index:idx_session_position,unique" json:"position_index"`
	Generation    int        `gorm:"default:0" json:"generation"`
	Skipped       bool       `json:"skipped"`
	WinnerID      *int64     `json:"winner_id,omitempty"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (PositionState) TableName() string { return "election_position_states" }

// Ballot is one nomination or vote. The unique key makes resubmission by the
// same voter for the same slot an overwrite rather than a duplicate; votes
// always use slot 0.
type Ballot struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	SessionID     string    `gorm:"index:idx_ballot_key,unique;not null" json:"session_id"`
	Kind          string    `gorm:"index:idx_ballot_key,unique;not null" json:"kind"`
	PositionIndex int       `gorm:"index:idx_ballot_key,unique" json:"position_index"`
	Generation    int       `gorm:"index:idx_ballot_key,unique" json:"generation"`
	VoterID       int64     `gorm:"index:idx_ballot_key,unique" json:"voter_id"`
	Slot          int       `gorm:"index:idx_ballot_key,unique" json:"slot"`
	CandidateID   int64     `gorm:"not null" json:"candidate_id"`
	CastAt        time.Time `json:"cast_at"`
}

func (Ballot) TableName() string { return "election_ballots" }

// EligibilityOverride is the audit record of an admin manually promoting an
// ineligible member into a position's candidate pool.
type EligibilityOverride struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	SessionID     string    `gorm:"index;not null" json:"session_id"`
	PositionIndex int       `json:"position_index"`
	MemberID      int64     `json:"member_id"`
	AdminID       string    `json:"admin_id"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}

func (EligibilityOverride) TableName() string { return "election_overrides" }
