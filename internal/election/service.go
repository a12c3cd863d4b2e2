package election

import (
	"errors"
	"sync"
	"time"

	"github.com/IgrejaConnect/Election-Backend/internal/directory"
	"github.com/IgrejaConnect/Election-Backend/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Nominations are not generation-scoped: a voting reset re-runs only the
// vote, the nominated candidate list stays as cast.
const nominationGeneration = 0

// Module-wide state set by Init (overridable in tests).
var (
	catalog   = DefaultCatalog()
	modConfig = ModuleConfig{DashboardRate: 2, DashboardBurst: 5, DefaultMaxNominations: 1}
)

// configLocks serializes admin commands per configuration so e.g. a
// reset-voting and an advance-position can never race on the same
// generation.
var configLocks sync.Map

func lockConfig(configID string) func() {
	v, _ := configLocks.LoadOrStore(configID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func loadConfig(tx *gorm.DB, configID string) (*ElectionConfig, error) {
	var cfg ElectionConfig
	q := tx.Order("created_at DESC")
	if configID != "" {
		q = q.Where("id = ?", configID)
	}
	if err := q.First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("election configuration not found")
		}
		return nil, err
	}
	return &cfg, nil
}

func activeSession(tx *gorm.DB, configID string) (*ElectionSession, error) {
	var session ElectionSession
	err := tx.Where("config_id = ? AND status = ?", configID, StatusActive).
		Order("created_at DESC").First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("no active election for this configuration")
		}
		return nil, err
	}
	return &session, nil
}

// positionState loads the per-position row, creating it at generation 0 the
// first time the position is touched.
func positionState(tx *gorm.DB, sessionID string, index int) (*PositionState, error) {
	var state PositionState
	err := tx.Where("session_id = ? AND position_index = ?", sessionID, index).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = PositionState{
			ID:            utils.GenerateUUID(),
			SessionID:     sessionID,
			PositionIndex: index,
		}
		if err := tx.Create(&state).Error; err != nil {
			return nil, err
		}
		return &state, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func churchMembers(tx *gorm.DB, churchName string) ([]directory.Member, error) {
	var members []directory.Member
	err := tx.Where("church = ? AND role = ? AND status = ?", churchName, "member", "approved").
		Find(&members).Error
	return members, err
}

// recordedWins walks the session's decided positions and returns per-member
// win counts, the set of members holding an elder seat, and how many elder
// seats are decided so far.
func recordedWins(tx *gorm.DB, cfg *ElectionConfig, sessionID string) (map[int64]int, map[int64]bool, int, error) {
	var states []PositionState
	err := tx.Where("session_id = ? AND winner_id IS NOT NULL", sessionID).Find(&states).Error
	if err != nil {
		return nil, nil, 0, err
	}

	wins := make(map[int64]int)
	elderWinners := make(map[int64]bool)
	eldersDecided := 0
	for _, s := range states {
		if s.WinnerID == nil || s.PositionIndex >= len(cfg.Positions) {
			continue
		}
		wins[*s.WinnerID]++
		if catalog.IsElderSeat(cfg.Positions[s.PositionIndex]) {
			eldersDecided++
			elderWinners[*s.WinnerID] = true
		}
	}
	return wins, elderWinners, eldersDecided, nil
}

// candidatePool builds the set of member IDs that may be nominated for a
// position: eligible church members plus admin overrides, minus the
// forward-only cross-position exclusions.
func candidatePool(tx *gorm.DB, cfg *ElectionConfig, sessionID string, positionIndex int) (map[int64]bool, error) {
	members, err := churchMembers(tx, cfg.ChurchName)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	pool := make(map[int64]bool)
	for _, m := range members {
		if Evaluate(profileFor(m, now), cfg.Criteria).Eligible {
			pool[m.ID] = true
		}
	}

	var overrides []EligibilityOverride
	err = tx.Where("session_id = ? AND position_index = ?", sessionID, positionIndex).
		Find(&overrides).Error
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		pool[o.MemberID] = true
	}

	wins, elderWinners, eldersDecided, err := recordedWins(tx, cfg, sessionID)
	if err != nil {
		return nil, err
	}
	if cfg.Criteria.PositionLimit.Enabled {
		for id, n := range wins {
			if n >= cfg.Criteria.PositionLimit.MaxPositions {
				delete(pool, id)
			}
		}
	}
	if cfg.Criteria.EldersCount.Enabled &&
		positionIndex < len(cfg.Positions) &&
		catalog.IsElderSeat(cfg.Positions[positionIndex]) &&
		eldersDecided >= cfg.Criteria.EldersCount.Count {
		for id := range elderWinners {
			delete(pool, id)
		}
	}

	return pool, nil
}

func countVotedVoters(tx *gorm.DB, sessionID string, positionIndex, generation int) (int, error) {
	var voted int64
	err := tx.Model(&Ballot{}).
		Where("session_id = ? AND kind = ? AND position_index = ? AND generation = ?",
			sessionID, BallotVote, positionIndex, generation).
		Distinct("voter_id").Count(&voted).Error
	return int(voted), err
}

func countNominations(tx *gorm.DB, sessionID string, positionIndex int) (int, error) {
	var n int64
	err := tx.Model(&Ballot{}).
		Where("session_id = ? AND kind = ? AND position_index = ? AND generation = ?",
			sessionID, BallotNomination, positionIndex, nominationGeneration).
		Count(&n).Error
	return int(n), err
}

// casSession applies updates to the session row only if it still matches the
// state it had when the command validated its preconditions; zero affected
// rows means a concurrent command got there first.
func casSession(tx *gorm.DB, s *ElectionSession, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	res := tx.Model(&ElectionSession{}).
		Where("id = ? AND status = ? AND current_position_index = ? AND current_phase = ?",
			s.ID, s.Status, s.CurrentPositionIndex, s.CurrentPhase).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return conflictf("election state changed concurrently, retry")
	}
	return nil
}

// CreateConfig validates and stores a new election configuration in draft
// status. Voter roll and positions may still be empty at this point; they
// are enforced when the election starts.
func CreateConfig(db *gorm.DB, cfg *ElectionConfig) error {
	if cfg.ChurchID == 0 || cfg.ChurchName == "" {
		return validationf("church is required")
	}
	cfg.ID = utils.GenerateUUID()
	cfg.Status = StatusDraft
	return db.Create(cfg).Error
}

// DeleteConfig removes a configuration together with its sessions, ballots
// and override records.
func DeleteConfig(db *gorm.DB, configID string) error {
	unlock := lockConfig(configID)
	defer unlock()

	return db.Transaction(func(tx *gorm.DB) error {
		cfg, err := loadConfig(tx, configID)
		if err != nil {
			return err
		}

		var sessionIDs []string
		if err := tx.Model(&ElectionSession{}).Where("config_id = ?", cfg.ID).
			Pluck("id", &sessionIDs).Error; err != nil {
			return err
		}
		if len(sessionIDs) > 0 {
			if err := tx.Where("session_id IN ?", sessionIDs).Delete(&Ballot{}).Error; err != nil {
				return err
			}
			if err := tx.Where("session_id IN ?", sessionIDs).Delete(&EligibilityOverride{}).Error; err != nil {
				return err
			}
			if err := tx.Where("session_id IN ?", sessionIDs).Delete(&PositionState{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", sessionIDs).Delete(&ElectionSession{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(cfg).Error
	})
}

// StartElection opens position 0 of the configuration in the nomination
// phase. Any other active session for the same church is completed first.
func StartElection(db *gorm.DB, configID string) (*ElectionSession, error) {
	unlock := lockConfig(configID)
	defer unlock()

	var session *ElectionSession
	err := db.Transaction(func(tx *gorm.DB) error {
		cfg, err := loadConfig(tx, configID)
		if err != nil {
			return err
		}
		if len(cfg.Positions) == 0 {
			return validationf("configuration has no positions")
		}
		if len(cfg.Voters) == 0 {
			return validationf("configuration has no voters")
		}

		// One live election per church.
		err = tx.Model(&ElectionSession{}).
			Where("church_id = ? AND status = ?", cfg.ChurchID, StatusActive).
			Updates(map[string]interface{}{"status": StatusCompleted, "current_phase": PhaseCompleted}).Error
		if err != nil {
			return err
		}

		session = &ElectionSession{
			ID:                     utils.GenerateUUID(),
			ConfigID:               cfg.ID,
			ChurchID:               cfg.ChurchID,
			Status:                 StatusActive,
			CurrentPositionIndex:   0,
			CurrentPhase:           PhaseNomination,
			MaxNominationsPerVoter: modConfig.DefaultMaxNominations,
		}
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		if _, err := positionState(tx, session.ID, 0); err != nil {
			return err
		}

		return tx.Model(cfg).Update("status", StatusActive).Error
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// AdvancePhase moves the current position between the nomination,
// oral_observations and voting phases. Moving into voting requires at least
// one nomination on record.
func AdvancePhase(db *gorm.DB, configID, target string) (*ElectionSession, error) {
	unlock := lockConfig(configID)
	defer unlock()

	var session *ElectionSession
	err := db.Transaction(func(tx *gorm.DB) error {
		s, err := activeSession(tx, configID)
		if err != nil {
			return err
		}

		allowed := map[string][]string{
			PhaseNomination:       {PhaseOralObservations, PhaseVoting},
			PhaseOralObservations: {PhaseNomination, PhaseVoting},
		}
		ok := false
		for _, t := range allowed[s.CurrentPhase] {
			if t == target {
				ok = true
				break
			}
		}
		if !ok {
			return phaseMismatchf("cannot move from %s to %s", s.CurrentPhase, target)
		}

		if target == PhaseVoting {
			n, err := countNominations(tx, s.ID, s.CurrentPositionIndex)
			if err != nil {
				return err
			}
			if n == 0 {
				return preconditionf("no nominations recorded for the current position")
			}
		}

		if err := casSession(tx, s, map[string]interface{}{"current_phase": target}); err != nil {
			return err
		}
		s.CurrentPhase = target
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// AdvancePosition closes the current position and opens the next one in the
// nomination phase, or completes the election when the list is exhausted.
// Without the skip flag it requires full turnout and records the winner (a
// tie records none); with skip the position is marked skipped and voting is
// bypassed entirely.
func AdvancePosition(db *gorm.DB, configID string, skip bool) (*ElectionSession, error) {
	unlock := lockConfig(configID)
	defer unlock()

	var session *ElectionSession
	err := db.Transaction(func(tx *gorm.DB) error {
		cfg, err := loadConfig(tx, configID)
		if err != nil {
			return err
		}
		s, err := activeSession(tx, cfg.ID)
		if err != nil {
			return err
		}
		state, err := positionState(tx, s.ID, s.CurrentPositionIndex)
		if err != nil {
			return err
		}

		if skip {
			if err := tx.Model(state).Update("skipped", true).Error; err != nil {
				return err
			}
		} else {
			if s.CurrentPhase != PhaseVoting {
				return preconditionf("current position is in %s phase, not voting", s.CurrentPhase)
			}
			voted, err := countVotedVoters(tx, s.ID, s.CurrentPositionIndex, state.Generation)
			if err != nil {
				return err
			}
			if voted < len(cfg.Voters) {
				return preconditionf("%d of %d voters have not yet voted", len(cfg.Voters)-voted, len(cfg.Voters))
			}

			if winnerID, ok, err := positionWinner(tx, s.ID, s.CurrentPositionIndex, state.Generation); err != nil {
				return err
			} else if ok {
				now := time.Now()
				err = tx.Model(state).Updates(map[string]interface{}{
					"winner_id":  winnerID,
					"decided_at": now,
				}).Error
				if err != nil {
					return err
				}
			}
		}

		next := s.CurrentPositionIndex + 1
		updates := map[string]interface{}{"current_position_index": next}
		if next >= len(cfg.Positions) {
			updates["current_phase"] = PhaseCompleted
			updates["status"] = StatusCompleted
		} else {
			updates["current_phase"] = PhaseNomination
		}

		if err := casSession(tx, s, updates); err != nil {
			return err
		}

		if next >= len(cfg.Positions) {
			if err := tx.Model(cfg).Update("status", StatusCompleted).Error; err != nil {
				return err
			}
			s.Status = StatusCompleted
			s.CurrentPhase = PhaseCompleted
		} else {
			if _, err := positionState(tx, s.ID, next); err != nil {
				return err
			}
			s.CurrentPhase = PhaseNomination
		}
		s.CurrentPositionIndex = next
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// positionWinner returns the candidate with strictly the most votes at the
// given generation. A tie or zero votes yields no winner.
func positionWinner(tx *gorm.DB, sessionID string, positionIndex, generation int) (int64, bool, error) {
	type row struct {
		CandidateID int64
		Votes       int64
	}
	var rows []row
	err := tx.Model(&Ballot{}).
		Select("candidate_id, COUNT(*) as votes").
		Where("session_id = ? AND kind = ? AND position_index = ? AND generation = ?",
			sessionID, BallotVote, positionIndex, generation).
		Group("candidate_id").
		Order("votes DESC").
		Scan(&rows).Error
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 || rows[0].Votes == 0 {
		return 0, false, nil
	}
	if len(rows) > 1 && rows[1].Votes == rows[0].Votes {
		return 0, false, nil
	}
	return rows[0].CandidateID, true, nil
}

// ResetVoting bumps the current position's generation so every vote cast so
// far is superseded without being deleted. Nominations stay as they are; the
// phase remains voting.
func ResetVoting(db *gorm.DB, configID string) (*PositionState, error) {
	unlock := lockConfig(configID)
	defer unlock()

	var state *PositionState
	err := db.Transaction(func(tx *gorm.DB) error {
		s, err := activeSession(tx, configID)
		if err != nil {
			return err
		}
		if s.CurrentPhase != PhaseVoting {
			return preconditionf("current position is in %s phase, not voting", s.CurrentPhase)
		}

		st, err := positionState(tx, s.ID, s.CurrentPositionIndex)
		if err != nil {
			return err
		}
		res := tx.Model(&PositionState{}).
			Where("id = ? AND generation = ?", st.ID, st.Generation).
			Update("generation", st.Generation+1)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return conflictf("voting was reset concurrently, retry")
		}
		st.Generation++
		state = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// SetMaxNominations changes how many nominations each voter may cast for the
// current position. Only meaningful while nominations are open.
func SetMaxNominations(db *gorm.DB, configID string, max int) error {
	if max < 1 {
		return validationf("max nominations must be at least 1")
	}

	unlock := lockConfig(configID)
	defer unlock()

	return db.Transaction(func(tx *gorm.DB) error {
		s, err := activeSession(tx, configID)
		if err != nil {
			return err
		}
		if s.CurrentPhase != PhaseNomination {
			return preconditionf("nominations are closed for the current position")
		}
		return casSession(tx, s, map[string]interface{}{"max_nominations_per_voter": max})
	})
}

// ForceComplete ends the election immediately, regardless of the remaining
// positions.
func ForceComplete(db *gorm.DB, configID string) error {
	unlock := lockConfig(configID)
	defer unlock()

	return db.Transaction(func(tx *gorm.DB) error {
		cfg, err := loadConfig(tx, configID)
		if err != nil {
			return err
		}
		s, err := activeSession(tx, cfg.ID)
		if err != nil {
			return err
		}
		err = casSession(tx, s, map[string]interface{}{
			"status":        StatusCompleted,
			"current_phase": PhaseCompleted,
		})
		if err != nil {
			return err
		}
		return tx.Model(cfg).Update("status", StatusCompleted).Error
	})
}

// OverrideCandidate records an admin manually promoting a member into the
// candidate pool of one position. The eligibility evaluation itself is never
// mutated; the override is a separate, audited record.
func OverrideCandidate(db *gorm.DB, configID string, positionIndex int, memberID int64, adminID, reason string) (*EligibilityOverride, error) {
	unlock := lockConfig(configID)
	defer unlock()

	var override *EligibilityOverride
	err := db.Transaction(func(tx *gorm.DB) error {
		cfg, err := loadConfig(tx, configID)
		if err != nil {
			return err
		}
		s, err := activeSession(tx, cfg.ID)
		if err != nil {
			return err
		}
		if positionIndex < 0 || positionIndex >= len(cfg.Positions) {
			return validationf("position index %d out of range", positionIndex)
		}

		var member directory.Member
		if err := tx.First(&member, "id = ?", memberID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundf("member not found")
			}
			return err
		}
		if member.Church != cfg.ChurchName {
			return validationf("member does not belong to %s", cfg.ChurchName)
		}

		override = &EligibilityOverride{
			ID:            utils.GenerateUUID(),
			SessionID:     s.ID,
			PositionIndex: positionIndex,
			MemberID:      memberID,
			AdminID:       adminID,
			Reason:        reason,
		}
		return tx.Create(override).Error
	})
	if err != nil {
		return nil, err
	}
	return override, nil
}

// upsertBallot writes a ballot through the ledger's unique key so repeated
// submissions overwrite. CastAt is server time: last write wins by arrival
// order at the store, not by any client clock.
func upsertBallot(tx *gorm.DB, b *Ballot) error {
	b.ID = utils.GenerateUUID()
	b.CastAt = time.Now()
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "session_id"}, {Name: "kind"}, {Name: "position_index"},
			{Name: "generation"}, {Name: "voter_id"}, {Name: "slot"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"candidate_id", "cast_at"}),
	}).Create(b).Error
}

// guardBallotState re-checks, inside the ballot transaction, that the
// session and position generation still match what validation saw. A
// concurrent phase transition or reset makes the write fail closed.
func guardBallotState(tx *gorm.DB, s *ElectionSession, state *PositionState) error {
	if err := casSession(tx, s, map[string]interface{}{}); err != nil {
		return err
	}
	res := tx.Model(&PositionState{}).
		Where("id = ? AND generation = ?", state.ID, state.Generation).
		Update("updated_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return conflictf("voting was reset concurrently, refresh and retry")
	}
	return nil
}

// SubmitNomination records one voter's nomination for the current position.
// Valid only during the nomination phase; the candidate must be in the
// eligible-or-overridden pool and the voter on the configuration's roll.
func SubmitNomination(db *gorm.DB, configID string, voterID, candidateID int64) (*Ballot, error) {
	var ballot *Ballot
	err := db.Transaction(func(tx *gorm.DB) error {
		cfg, err := loadConfig(tx, configID)
		if err != nil {
			return err
		}
		s, err := activeSession(tx, cfg.ID)
		if err != nil {
			return err
		}
		if s.CurrentPhase != PhaseNomination {
			return phaseMismatchf("nominations are not open for the current position, refresh and try again")
		}
		if !cfg.Voters.Contains(voterID) {
			return newError(KindNotEligibleVoter, "you are not on this election's voter roll")
		}

		pool, err := candidatePool(tx, cfg, s.ID, s.CurrentPositionIndex)
		if err != nil {
			return err
		}
		if !pool[candidateID] {
			return newError(KindNotEligibleCandidate, "candidate is not eligible for this position")
		}

		// Slot selection: same candidate refreshes its slot; a new candidate
		// takes the next free slot, or overwrites slot 0 when only one
		// nomination is allowed.
		var existing []Ballot
		err = tx.Where("session_id = ? AND kind = ? AND position_index = ? AND generation = ? AND voter_id = ?",
			s.ID, BallotNomination, s.CurrentPositionIndex, nominationGeneration, voterID).
			Order("slot ASC").Find(&existing).Error
		if err != nil {
			return err
		}

		slot := len(existing)
		for _, b := range existing {
			if b.CandidateID == candidateID {
				slot = b.Slot
				break
			}
		}
		if slot == len(existing) && len(existing) >= s.MaxNominationsPerVoter {
			if s.MaxNominationsPerVoter == 1 {
				slot = 0
			} else {
				return preconditionf("nomination limit of %d reached for this position", s.MaxNominationsPerVoter)
			}
		}

		state, err := positionState(tx, s.ID, s.CurrentPositionIndex)
		if err != nil {
			return err
		}

		ballot = &Ballot{
			SessionID:     s.ID,
			Kind:          BallotNomination,
			PositionIndex: s.CurrentPositionIndex,
			Generation:    nominationGeneration,
			VoterID:       voterID,
			Slot:          slot,
			CandidateID:   candidateID,
		}
		if err := upsertBallot(tx, ballot); err != nil {
			return err
		}
		return guardBallotState(tx, s, state)
	})
	if err != nil {
		return nil, err
	}
	return ballot, nil
}

// SubmitVote records one voter's vote for the current position at its
// current generation. Valid only during the voting phase; the candidate must
// have been nominated. Resubmission changes the vote until the position
// advances.
func SubmitVote(db *gorm.DB, configID string, voterID, candidateID int64) (*Ballot, error) {
	var ballot *Ballot
	err := db.Transaction(func(tx *gorm.DB) error {
		cfg, err := loadConfig(tx, configID)
		if err != nil {
			return err
		}
		s, err := activeSession(tx, cfg.ID)
		if err != nil {
			return err
		}
		if s.CurrentPhase != PhaseVoting {
			return phaseMismatchf("voting is not open for the current position, refresh and try again")
		}
		if !cfg.Voters.Contains(voterID) {
			return newError(KindNotEligibleVoter, "you are not on this election's voter roll")
		}

		var nominated int64
		err = tx.Model(&Ballot{}).
			Where("session_id = ? AND kind = ? AND position_index = ? AND generation = ? AND candidate_id = ?",
				s.ID, BallotNomination, s.CurrentPositionIndex, nominationGeneration, candidateID).
			Count(&nominated).Error
		if err != nil {
			return err
		}
		if nominated == 0 {
			return newError(KindNotEligibleCandidate, "candidate was not nominated for this position")
		}

		state, err := positionState(tx, s.ID, s.CurrentPositionIndex)
		if err != nil {
			return err
		}

		ballot = &Ballot{
			SessionID:     s.ID,
			Kind:          BallotVote,
			PositionIndex: s.CurrentPositionIndex,
			Generation:    state.Generation,
			VoterID:       voterID,
			Slot:          0,
			CandidateID:   candidateID,
		}
		if err := upsertBallot(tx, ballot); err != nil {
			return err
		}
		return guardBallotState(tx, s, state)
	})
	if err != nil {
		return nil, err
	}
	return ballot, nil
}

// PreviewCandidates evaluates every approved member of a church against a
// criteria set, without touching any stored election state.
func PreviewCandidates(db *gorm.DB, churchName string, criteria Criteria) (eligible, ineligible []Evaluation, err error) {
	if churchName == "" {
		return nil, nil, validationf("church is required")
	}
	members, err := churchMembers(db, churchName)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	for _, m := range members {
		ev := Evaluate(profileFor(m, now), criteria)
		if ev.Eligible {
			eligible = append(eligible, ev)
		} else {
			ineligible = append(ineligible, ev)
		}
	}
	return eligible, ineligible, nil
}
