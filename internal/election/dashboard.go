package election

import (
	"log"
	"sort"
	"time"

	"gorm.io/gorm"
)

// SessionSummary is the session slice of the dashboard read model.
type SessionSummary struct {
	ID                     string    `json:"id"`
	ConfigID               string    `json:"config_id"`
	Status                 string    `json:"status"`
	ChurchName             string    `json:"church_name"`
	CurrentPositionIndex   int       `json:"current_position_index"`
	CurrentPhase           string    `json:"current_phase"`
	MaxNominationsPerVoter int       `json:"max_nominations_per_voter"`
	CreatedAt              time.Time `json:"created_at"`
}

// PositionBlock is one position's slot in the dashboard. When the tally for
// a single position fails, its block degrades to an error placeholder so the
// rest of the feed still renders.
type PositionBlock struct {
	Position string         `json:"position"`
	Tally    *PositionTally `json:"tally,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Dashboard is the admin read model, assembled from one consistent snapshot
// of session and ledger.
type Dashboard struct {
	Election        SessionSummary  `json:"election"`
	TotalVoters     int             `json:"total_voters"`
	VotedVoters     int             `json:"voted_voters"`
	CurrentPosition int             `json:"current_position"`
	TotalPositions  int             `json:"total_positions"`
	Positions       []PositionBlock `json:"positions"`
}

// BuildDashboard assembles the polled read model for a configuration's
// active (or just-completed) session.
func BuildDashboard(db *gorm.DB, configID string) (*Dashboard, error) {
	var dash *Dashboard
	err := db.Transaction(func(tx *gorm.DB) error {
		cfg, err := loadConfig(tx, configID)
		if err != nil {
			return err
		}
		s, err := latestSession(tx, cfg.ID)
		if err != nil {
			return err
		}

		dash = &Dashboard{
			Election: SessionSummary{
				ID:                     s.ID,
				ConfigID:               s.ConfigID,
				Status:                 s.Status,
				ChurchName:             cfg.ChurchName,
				CurrentPositionIndex:   s.CurrentPositionIndex,
				CurrentPhase:           s.CurrentPhase,
				MaxNominationsPerVoter: s.MaxNominationsPerVoter,
				CreatedAt:              s.CreatedAt,
			},
			TotalVoters:     len(cfg.Voters),
			CurrentPosition: s.CurrentPositionIndex,
			TotalPositions:  len(cfg.Positions),
		}

		var states []PositionState
		err = tx.Where("session_id = ?", s.ID).Order("position_index ASC").Find(&states).Error
		if err != nil {
			return err
		}
		stateByIndex := make(map[int]*PositionState, len(states))
		for i := range states {
			stateByIndex[states[i].PositionIndex] = &states[i]
		}

		for i, name := range cfg.Positions {
			state, ok := stateByIndex[i]
			if !ok {
				// Position not opened yet: empty block.
				dash.Positions = append(dash.Positions, PositionBlock{
					Position: name,
					Tally:    &PositionTally{Position: name, PositionIndex: i, Results: []CandidateTally{}},
				})
				continue
			}
			tally, err := tallyPosition(tx, cfg, state)
			if err != nil {
				// Degrade this block only; the rest of the feed still renders.
				log.Printf("[election] dashboard tally failed for position %d (%s): %v", i, name, err)
				dash.Positions = append(dash.Positions, PositionBlock{
					Position: name,
					Error:    "tally unavailable",
				})
				continue
			}
			dash.Positions = append(dash.Positions, PositionBlock{Position: name, Tally: tally})
			if i == s.CurrentPositionIndex {
				dash.VotedVoters = tally.VotedVoters
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dash, nil
}

// latestSession returns the newest session for a configuration, active or
// completed, so dashboards keep working after the election finishes.
func latestSession(tx *gorm.DB, configID string) (*ElectionSession, error) {
	var session ElectionSession
	err := tx.Where("config_id = ?", configID).Order("created_at DESC").First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundf("no election for this configuration")
		}
		return nil, err
	}
	return &session, nil
}

// VoterCandidate is one selectable candidate in the voter view.
type VoterCandidate struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Nominations int    `json:"nominations,omitempty"`
}

// VoterView is the read model behind the member voting screen: current
// position, phase and the candidate list for that phase, plus the caller's
// own progress.
type VoterView struct {
	Election            SessionSummary   `json:"election"`
	CurrentPosition     int              `json:"current_position"`
	TotalPositions      int              `json:"total_positions"`
	CurrentPositionName string           `json:"current_position_name"`
	Phase               string           `json:"phase"`
	Candidates          []VoterCandidate `json:"candidates"`
	HasVoted            bool             `json:"has_voted"`
	VotedCandidateName  string           `json:"voted_candidate_name,omitempty"`
	NominationCount     int              `json:"nomination_count"`
	MaxNominations      int              `json:"max_nominations_per_voter"`
}

// BuildVoterView assembles the voting screen for one voter. During the
// nomination phase the candidate list is the eligible pool; during voting it
// narrows to the nominated candidates.
func BuildVoterView(db *gorm.DB, configID string, voterID int64) (*VoterView, error) {
	var view *VoterView
	err := db.Transaction(func(tx *gorm.DB) error {
		cfg, err := loadConfig(tx, configID)
		if err != nil {
			return err
		}
		s, err := latestSession(tx, cfg.ID)
		if err != nil {
			return err
		}

		view = &VoterView{
			Election: SessionSummary{
				ID:                     s.ID,
				ConfigID:               s.ConfigID,
				Status:                 s.Status,
				ChurchName:             cfg.ChurchName,
				CurrentPositionIndex:   s.CurrentPositionIndex,
				CurrentPhase:           s.CurrentPhase,
				MaxNominationsPerVoter: s.MaxNominationsPerVoter,
				CreatedAt:              s.CreatedAt,
			},
			CurrentPosition: s.CurrentPositionIndex,
			TotalPositions:  len(cfg.Positions),
			Phase:           s.CurrentPhase,
			MaxNominations:  s.MaxNominationsPerVoter,
			Candidates:      []VoterCandidate{},
		}
		if s.CurrentPositionIndex >= len(cfg.Positions) {
			return nil
		}
		view.CurrentPositionName = cfg.Positions[s.CurrentPositionIndex]

		state, err := positionState(tx, s.ID, s.CurrentPositionIndex)
		if err != nil {
			return err
		}

		if s.CurrentPhase == PhaseVoting {
			tally, err := tallyPosition(tx, cfg, state)
			if err != nil {
				return err
			}
			for _, c := range tally.Results {
				if c.Nominations > 0 {
					view.Candidates = append(view.Candidates, VoterCandidate{
						ID: c.ID, Name: c.Name, Nominations: c.Nominations,
					})
				}
			}
		} else {
			pool, err := candidatePool(tx, cfg, s.ID, s.CurrentPositionIndex)
			if err != nil {
				return err
			}
			ids := make([]int64, 0, len(pool))
			for id := range pool {
				ids = append(ids, id)
			}
			names, err := candidateNames(tx, ids)
			if err != nil {
				return err
			}
			for id := range pool {
				view.Candidates = append(view.Candidates, VoterCandidate{ID: id, Name: names[id]})
			}
			sortCandidates(view.Candidates)
		}

		var myNominations int64
		err = tx.Model(&Ballot{}).
			Where("session_id = ? AND kind = ? AND position_index = ? AND generation = ? AND voter_id = ?",
				s.ID, BallotNomination, s.CurrentPositionIndex, nominationGeneration, voterID).
			Count(&myNominations).Error
		if err != nil {
			return err
		}
		view.NominationCount = int(myNominations)

		var myVote Ballot
		err = tx.Where("session_id = ? AND kind = ? AND position_index = ? AND generation = ? AND voter_id = ?",
			s.ID, BallotVote, s.CurrentPositionIndex, state.Generation, voterID).
			First(&myVote).Error
		if err == nil {
			view.HasVoted = true
			names, err := candidateNames(tx, []int64{myVote.CandidateID})
			if err != nil {
				return err
			}
			view.VotedCandidateName = names[myVote.CandidateID]
		} else if err != gorm.ErrRecordNotFound {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ActiveElection is the voter-facing pointer to a running election.
type ActiveElection struct {
	Election  SessionSummary `json:"election"`
	Positions StringList     `json:"positions"`
}

// ActiveElectionFor finds the running election whose voter roll includes the
// given member, if any.
func ActiveElectionFor(db *gorm.DB, memberID int64) (*ActiveElection, error) {
	var sessions []ElectionSession
	err := db.Where("status = ?", StatusActive).Order("created_at DESC").Find(&sessions).Error
	if err != nil {
		return nil, err
	}

	for _, s := range sessions {
		var cfg ElectionConfig
		if err := db.First(&cfg, "id = ?", s.ConfigID).Error; err != nil {
			continue
		}
		if !cfg.Voters.Contains(memberID) {
			continue
		}
		return &ActiveElection{
			Election: SessionSummary{
				ID:                     s.ID,
				ConfigID:               s.ConfigID,
				Status:                 s.Status,
				ChurchName:             cfg.ChurchName,
				CurrentPositionIndex:   s.CurrentPositionIndex,
				CurrentPhase:           s.CurrentPhase,
				MaxNominationsPerVoter: s.MaxNominationsPerVoter,
				CreatedAt:              s.CreatedAt,
			},
			Positions: cfg.Positions,
		}, nil
	}
	return nil, notFoundf("no active election found")
}

// VoteLogEntry is one ballot with names resolved, for the admin audit view.
type VoteLogEntry struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	PositionIndex int       `json:"position_index"`
	Generation    int       `json:"generation"`
	VoterID       int64     `json:"voter_id"`
	VoterName     string    `json:"voter_name"`
	CandidateID   int64     `json:"candidate_id"`
	CandidateName string    `json:"candidate_name"`
	CastAt        time.Time `json:"cast_at"`
}

// VoteLog returns every ballot of a session, newest first, with voter and
// candidate names resolved. Superseded generations are included; the
// generation column tells them apart.
func VoteLog(db *gorm.DB, sessionID string) ([]VoteLogEntry, error) {
	var ballots []Ballot
	err := db.Where("session_id = ?", sessionID).Order("cast_at DESC").Find(&ballots).Error
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(ballots)*2)
	for _, b := range ballots {
		ids = append(ids, b.VoterID, b.CandidateID)
	}
	names, err := candidateNames(db, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]VoteLogEntry, 0, len(ballots))
	for _, b := range ballots {
		entries = append(entries, VoteLogEntry{
			ID:            b.ID,
			Kind:          b.Kind,
			PositionIndex: b.PositionIndex,
			Generation:    b.Generation,
			VoterID:       b.VoterID,
			VoterName:     names[b.VoterID],
			CandidateID:   b.CandidateID,
			CandidateName: names[b.CandidateID],
			CastAt:        b.CastAt,
		})
	}
	return entries, nil
}

func sortCandidates(cs []VoterCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		return collator.CompareString(cs[i].Name, cs[j].Name) < 0
	})
}
