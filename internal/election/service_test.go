package election

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IgrejaConnect/Election-Backend/internal/directory"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = gdb.AutoMigrate(
		&directory.Member{},
		&ElectionConfig{},
		&ElectionSession{},
		&PositionState{},
		&Ballot{},
		&EligibilityOverride{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return gdb
}

const testChurch = "Igreja Central"

// seedMembers creates n approved members of the test church and returns
// their IDs.
func seedMembers(t *testing.T, gdb *gorm.DB, n int) []int64 {
	t.Helper()
	baptism := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		m := directory.Member{
			UserID:                      fmt.Sprintf("user-%d", i+1),
			Name:                        fmt.Sprintf("Membro %02d", i+1),
			Church:                      testChurch,
			Role:                        "member",
			Status:                      "approved",
			TitherClassification:        "punctual",
			OfferingClassification:      "recurring",
			ParticipationClassification: "punctual",
			BaptismDate:                 &baptism,
		}
		if err := gdb.Create(&m).Error; err != nil {
			t.Fatalf("failed to seed member: %v", err)
		}
		ids = append(ids, m.ID)
	}
	return ids
}

// newConfig stores a configuration with the given voters and positions. The
// criteria set is empty, so every approved member is an eligible candidate.
func newConfig(t *testing.T, gdb *gorm.DB, voters []int64, positions ...string) *ElectionConfig {
	t.Helper()
	cfg := &ElectionConfig{
		ChurchID:   1,
		ChurchName: testChurch,
		Voters:     voters,
		Positions:  positions,
	}
	if err := CreateConfig(gdb, cfg); err != nil {
		t.Fatalf("CreateConfig: %v", err)
	}
	return cfg
}

func kindOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// startVoting drives a freshly started position through nomination into the
// voting phase with the given candidate nominated by the first voter.
func startVoting(t *testing.T, gdb *gorm.DB, cfg *ElectionConfig, candidateID int64) {
	t.Helper()
	if _, err := SubmitNomination(gdb, cfg.ID, cfg.Voters[0], candidateID); err != nil {
		t.Fatalf("SubmitNomination: %v", err)
	}
	if _, err := AdvancePhase(gdb, cfg.ID, PhaseVoting); err != nil {
		t.Fatalf("AdvancePhase: %v", err)
	}
}

func TestStartElection_Validation(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)

	noPositions := newConfig(t, gdb, ids)
	if _, err := StartElection(gdb, noPositions.ID); kindOf(err) != KindValidation {
		t.Errorf("expected validation error for empty positions, got %v", err)
	}

	noVoters := newConfig(t, gdb, nil, "Secretário(a)")
	if _, err := StartElection(gdb, noVoters.ID); kindOf(err) != KindValidation {
		t.Errorf("expected validation error for empty voter roll, got %v", err)
	}
}

func TestStartElection_CompletesPreviousSession(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)
	cfg := newConfig(t, gdb, ids, "Secretário(a)")

	first, err := StartElection(gdb, cfg.ID)
	if err != nil {
		t.Fatalf("StartElection: %v", err)
	}
	second, err := StartElection(gdb, cfg.ID)
	if err != nil {
		t.Fatalf("StartElection (restart): %v", err)
	}

	var old ElectionSession
	if err := gdb.First(&old, "id = ?", first.ID).Error; err != nil {
		t.Fatalf("load first session: %v", err)
	}
	if old.Status != StatusCompleted {
		t.Errorf("expected first session completed on restart, got %s", old.Status)
	}
	if second.CurrentPhase != PhaseNomination || second.CurrentPositionIndex != 0 {
		t.Errorf("expected fresh session at position 0 nomination, got %+v", second)
	}
}

func TestAdvancePhase_RequiresNominations(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)
	cfg := newConfig(t, gdb, ids, "Secretário(a)")
	if _, err := StartElection(gdb, cfg.ID); err != nil {
		t.Fatalf("StartElection: %v", err)
	}

	if _, err := AdvancePhase(gdb, cfg.ID, PhaseVoting); kindOf(err) != KindPreconditionFailed {
		t.Errorf("expected precondition failure with zero nominations, got %v", err)
	}

	// Oral observations needs no nominations and can go back.
	if _, err := AdvancePhase(gdb, cfg.ID, PhaseOralObservations); err != nil {
		t.Fatalf("AdvancePhase to oral_observations: %v", err)
	}
	if _, err := AdvancePhase(gdb, cfg.ID, PhaseNomination); err != nil {
		t.Fatalf("AdvancePhase back to nomination: %v", err)
	}

	if _, err := AdvancePhase(gdb, cfg.ID, PhaseCompleted); kindOf(err) != KindPhaseMismatch {
		t.Errorf("expected phase mismatch for invalid target, got %v", err)
	}
}

func TestBallots_PhaseGating(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)
	cfg := newConfig(t, gdb, ids, "Secretário(a)")
	if _, err := StartElection(gdb, cfg.ID); err != nil {
		t.Fatalf("StartElection: %v", err)
	}

	// Voting is closed during nomination.
	if _, err := SubmitVote(gdb, cfg.ID, ids[0], ids[1]); kindOf(err) != KindPhaseMismatch {
		t.Errorf("expected phase mismatch voting during nomination, got %v", err)
	}

	startVoting(t, gdb, cfg, ids[1])

	// Nominations are closed during voting.
	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], ids[2]); kindOf(err) != KindPhaseMismatch {
		t.Errorf("expected phase mismatch nominating during voting, got %v", err)
	}
}

// The oral observations pause accepts neither ballot kind.
func TestBallots_RejectedDuringOralObservations(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)
	cfg := newConfig(t, gdb, ids, "Secretário(a)")
	if _, err := StartElection(gdb, cfg.ID); err != nil {
		t.Fatalf("StartElection: %v", err)
	}
	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], ids[1]); err != nil {
		t.Fatalf("nominate: %v", err)
	}
	if _, err := AdvancePhase(gdb, cfg.ID, PhaseOralObservations); err != nil {
		t.Fatalf("AdvancePhase: %v", err)
	}

	if _, err := SubmitNomination(gdb, cfg.ID, ids[1], ids[2]); kindOf(err) != KindPhaseMismatch {
		t.Errorf("expected phase mismatch nominating during observations, got %v", err)
	}
	if _, err := SubmitVote(gdb, cfg.ID, ids[0], ids[1]); kindOf(err) != KindPhaseMismatch {
		t.Errorf("expected phase mismatch voting during observations, got %v", err)
	}

	// The pause is reversible; nominations reopen on return.
	if _, err := AdvancePhase(gdb, cfg.ID, PhaseNomination); err != nil {
		t.Fatalf("AdvancePhase back: %v", err)
	}
	if _, err := SubmitNomination(gdb, cfg.ID, ids[1], ids[2]); err != nil {
		t.Errorf("expected nomination accepted after returning, got %v", err)
	}
}

func TestSubmitNomination_RollAndPool(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)
	baptism := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	extra := directory.Member{
		UserID: "outsider", Name: "Fora da Lista", Church: testChurch,
		Role: "member", Status: "approved", BaptismDate: &baptism,
	}
	if err := gdb.Create(&extra).Error; err != nil {
		t.Fatalf("seed outsider: %v", err)
	}
	outsider := extra.ID // approved member, but not on the roll
	cfg := newConfig(t, gdb, ids[:3], "Secretário(a)")
	if _, err := StartElection(gdb, cfg.ID); err != nil {
		t.Fatalf("StartElection: %v", err)
	}

	if _, err := SubmitNomination(gdb, cfg.ID, outsider, ids[0]); kindOf(err) != KindNotEligibleVoter {
		t.Errorf("expected voter-roll rejection, got %v", err)
	}
	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], 999); kindOf(err) != KindNotEligibleCandidate {
		t.Errorf("expected candidate-pool rejection, got %v", err)
	}

	// Members not on the voter roll can still be candidates.
	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], outsider); err != nil {
		t.Errorf("expected off-roll member to be nominatable, got %v", err)
	}
}

func TestSubmitNomination_SingleSlotOverwrites(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)
	cfg := newConfig(t, gdb, ids, "Secretário(a)")
	session, err := StartElection(gdb, cfg.ID)
	if err != nil {
		t.Fatalf("StartElection: %v", err)
	}

	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], ids[1]); err != nil {
		t.Fatalf("first nomination: %v", err)
	}
	// With max 1, nominating someone else replaces the previous choice.
	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], ids[2]); err != nil {
		t.Fatalf("replacement nomination: %v", err)
	}

	var ballots []Ballot
	err = gdb.Where("session_id = ? AND kind = ? AND voter_id = ?", session.ID, BallotNomination, ids[0]).
		Find(&ballots).Error
	if err != nil {
		t.Fatalf("load ballots: %v", err)
	}
	if len(ballots) != 1 {
		t.Fatalf("expected 1 nomination ballot, got %d", len(ballots))
	}
	if ballots[0].CandidateID != ids[2] {
		t.Errorf("expected nomination overwritten to %d, got %d", ids[2], ballots[0].CandidateID)
	}
}

func TestSubmitNomination_MultiSlotLimit(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 5)
	cfg := newConfig(t, gdb, ids, "Diáconos")
	if _, err := StartElection(gdb, cfg.ID); err != nil {
		t.Fatalf("StartElection: %v", err)
	}
	if err := SetMaxNominations(gdb, cfg.ID, 2); err != nil {
		t.Fatalf("SetMaxNominations: %v", err)
	}

	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], ids[1]); err != nil {
		t.Fatalf("nomination 1: %v", err)
	}
	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], ids[2]); err != nil {
		t.Fatalf("nomination 2: %v", err)
	}
	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], ids[3]); kindOf(err) != KindPreconditionFailed {
		t.Errorf("expected nomination limit rejection, got %v", err)
	}
	// Repeating an already-nominated candidate refreshes, not rejects.
	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], ids[2]); err != nil {
		t.Errorf("expected repeat nomination to refresh its slot, got %v", err)
	}
}

func TestSetMaxNominations_OnlyDuringNomination(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)
	cfg := newConfig(t, gdb, ids, "Secretário(a)")
	if _, err := StartElection(gdb, cfg.ID); err != nil {
		t.Fatalf("StartElection: %v", err)
	}

	if err := SetMaxNominations(gdb, cfg.ID, 0); kindOf(err) != KindValidation {
		t.Errorf("expected validation error for max 0, got %v", err)
	}

	startVoting(t, gdb, cfg, ids[1])
	if err := SetMaxNominations(gdb, cfg.ID, 2); kindOf(err) != KindPreconditionFailed {
		t.Errorf("expected rejection after nominations closed, got %v", err)
	}
}

func TestSubmitVote_OverwriteIsIdempotent(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)
	cfg := newConfig(t, gdb, ids, "Secretário(a)")
	session, err := StartElection(gdb, cfg.ID)
	if err != nil {
		t.Fatalf("StartElection: %v", err)
	}

	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], ids[1]); err != nil {
		t.Fatalf("nominate: %v", err)
	}
	if _, err := SubmitNomination(gdb, cfg.ID, ids[1], ids[2]); err != nil {
		t.Fatalf("nominate: %v", err)
	}
	if _, err := AdvancePhase(gdb, cfg.ID, PhaseVoting); err != nil {
		t.Fatalf("AdvancePhase: %v", err)
	}

	if _, err := SubmitVote(gdb, cfg.ID, ids[0], ids[1]); err != nil {
		t.Fatalf("vote: %v", err)
	}
	// Changing one's mind replaces the vote, never duplicates it.
	if _, err := SubmitVote(gdb, cfg.ID, ids[0], ids[2]); err != nil {
		t.Fatalf("revote: %v", err)
	}

	var ballots []Ballot
	err = gdb.Where("session_id = ? AND kind = ? AND voter_id = ?", session.ID, BallotVote, ids[0]).
		Find(&ballots).Error
	if err != nil {
		t.Fatalf("load ballots: %v", err)
	}
	if len(ballots) != 1 {
		t.Fatalf("expected 1 vote ballot, got %d", len(ballots))
	}
	if ballots[0].CandidateID != ids[2] {
		t.Errorf("expected vote overwritten to %d, got %d", ids[2], ballots[0].CandidateID)
	}
}

func TestSubmitVote_RequiresNominatedCandidate(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)
	cfg := newConfig(t, gdb, ids, "Secretário(a)")
	if _, err := StartElection(gdb, cfg.ID); err != nil {
		t.Fatalf("StartElection: %v", err)
	}
	startVoting(t, gdb, cfg, ids[1])

	if _, err := SubmitVote(gdb, cfg.ID, ids[0], ids[2]); kindOf(err) != KindNotEligibleCandidate {
		t.Errorf("expected rejection of un-nominated candidate, got %v", err)
	}
}

func TestAdvancePosition_TurnoutGate(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)
	cfg := newConfig(t, gdb, ids, "Secretário(a)", "Tesoureiro(a)")
	if _, err := StartElection(gdb, cfg.ID); err != nil {
		t.Fatalf("StartElection: %v", err)
	}

	// Not in voting phase yet.
	if _, err := AdvancePosition(gdb, cfg.ID, false); kindOf(err) != KindPreconditionFailed {
		t.Errorf("expected precondition failure outside voting phase, got %v", err)
	}

	startVoting(t, gdb, cfg, ids[1])
	if _, err := SubmitVote(gdb, cfg.ID, ids[0], ids[1]); err != nil {
		t.Fatalf("vote: %v", err)
	}

	// 2 of 3 voters still missing.
	if _, err := AdvancePosition(gdb, cfg.ID, false); kindOf(err) != KindPreconditionFailed {
		t.Errorf("expected turnout gate with 1/3 voted, got %v", err)
	}

	if _, err := SubmitVote(gdb, cfg.ID, ids[1], ids[1]); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := SubmitVote(gdb, cfg.ID, ids[2], ids[1]); err != nil {
		t.Fatalf("vote: %v", err)
	}

	session, err := AdvancePosition(gdb, cfg.ID, false)
	if err != nil {
		t.Fatalf("AdvancePosition with full turnout: %v", err)
	}
	if session.CurrentPositionIndex != 1 || session.CurrentPhase != PhaseNomination {
		t.Errorf("expected position 1 in nomination, got %+v", session)
	}

	var state PositionState
	err = gdb.First(&state, "session_id = ? AND position_index = ?", session.ID, 0).Error
	if err != nil {
		t.Fatalf("load position state: %v", err)
	}
	if state.WinnerID == nil || *state.WinnerID != ids[1] {
		t.Errorf("expected winner %d recorded, got %v", ids[1], state.WinnerID)
	}
	if state.DecidedAt == nil {
		t.Error("expected decided_at to be set")
	}
}

func TestAdvancePosition_TieRecordsNoWinner(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 2)
	cfg := newConfig(t, gdb, ids, "Secretário(a)")
	session, err := StartElection(gdb, cfg.ID)
	if err != nil {
		t.Fatalf("StartElection: %v", err)
	}

	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], ids[0]); err != nil {
		t.Fatalf("nominate: %v", err)
	}
	if _, err := SubmitNomination(gdb, cfg.ID, ids[1], ids[1]); err != nil {
		t.Fatalf("nominate: %v", err)
	}
	if _, err := AdvancePhase(gdb, cfg.ID, PhaseVoting); err != nil {
		t.Fatalf("AdvancePhase: %v", err)
	}
	if _, err := SubmitVote(gdb, cfg.ID, ids[0], ids[0]); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := SubmitVote(gdb, cfg.ID, ids[1], ids[1]); err != nil {
		t.Fatalf("vote: %v", err)
	}

	// A 1-1 tie still advances, but records no winner.
	if _, err := AdvancePosition(gdb, cfg.ID, false); err != nil {
		t.Fatalf("AdvancePosition: %v", err)
	}

	var state PositionState
	err = gdb.First(&state, "session_id = ? AND position_index = ?", session.ID, 0).Error
	if err != nil {
		t.Fatalf("load position state: %v", err)
	}
	if state.WinnerID != nil {
		t.Errorf("expected no winner on a tie, got %d", *state.WinnerID)
	}
}

func TestSkipPosition_NoTurnoutRequired(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)
	cfg := newConfig(t, gdb, ids, "Secretário(a)", "Tesoureiro(a)")
	session, err := StartElection(gdb, cfg.ID)
	if err != nil {
		t.Fatalf("StartElection: %v", err)
	}

	// Skip straight out of nomination with zero ballots.
	next, err := AdvancePosition(gdb, cfg.ID, true)
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if next.CurrentPositionIndex != 1 {
		t.Errorf("expected position 1 after skip, got %d", next.CurrentPositionIndex)
	}

	var state PositionState
	err = gdb.First(&state, "session_id = ? AND position_index = ?", session.ID, 0).Error
	if err != nil {
		t.Fatalf("load position state: %v", err)
	}
	if !state.Skipped {
		t.Error("expected position 0 marked skipped")
	}
	if state.WinnerID != nil {
		t.Error("expected no winner on a skipped position")
	}
}

func TestResetVoting_GenerationIsolation(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)
	cfg := newConfig(t, gdb, ids, "Secretário(a)")
	session, err := StartElection(gdb, cfg.ID)
	if err != nil {
		t.Fatalf("StartElection: %v", err)
	}

	// Reset is only valid during voting.
	if _, err := ResetVoting(gdb, cfg.ID); kindOf(err) != KindPreconditionFailed {
		t.Errorf("expected precondition failure resetting during nomination, got %v", err)
	}

	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], ids[1]); err != nil {
		t.Fatalf("nominate: %v", err)
	}
	if _, err := SubmitNomination(gdb, cfg.ID, ids[1], ids[2]); err != nil {
		t.Fatalf("nominate: %v", err)
	}
	if _, err := AdvancePhase(gdb, cfg.ID, PhaseVoting); err != nil {
		t.Fatalf("AdvancePhase: %v", err)
	}
	for _, voter := range ids {
		if _, err := SubmitVote(gdb, cfg.ID, voter, ids[1]); err != nil {
			t.Fatalf("vote: %v", err)
		}
	}

	state, err := ResetVoting(gdb, cfg.ID)
	if err != nil {
		t.Fatalf("ResetVoting: %v", err)
	}
	if state.Generation != 1 {
		t.Fatalf("expected generation 1 after reset, got %d", state.Generation)
	}

	// The old votes are superseded, so turnout is back to zero.
	if _, err := AdvancePosition(gdb, cfg.ID, false); kindOf(err) != KindPreconditionFailed {
		t.Errorf("expected turnout gate after reset, got %v", err)
	}

	// Nominations survive: voting can restart immediately on a new result.
	for _, voter := range ids {
		if _, err := SubmitVote(gdb, cfg.ID, voter, ids[2]); err != nil {
			t.Fatalf("vote after reset: %v", err)
		}
	}
	if _, err := AdvancePosition(gdb, cfg.ID, false); err != nil {
		t.Fatalf("AdvancePosition after reset: %v", err)
	}

	var decided PositionState
	err = gdb.First(&decided, "session_id = ? AND position_index = ?", session.ID, 0).Error
	if err != nil {
		t.Fatalf("load position state: %v", err)
	}
	if decided.WinnerID == nil || *decided.WinnerID != ids[2] {
		t.Errorf("expected winner from the new generation (%d), got %v", ids[2], decided.WinnerID)
	}

	// Superseded ballots are kept, not deleted.
	var old int64
	err = gdb.Model(&Ballot{}).
		Where("session_id = ? AND kind = ? AND generation = ?", session.ID, BallotVote, 0).
		Count(&old).Error
	if err != nil {
		t.Fatalf("count superseded ballots: %v", err)
	}
	if old != 3 {
		t.Errorf("expected 3 superseded ballots retained, got %d", old)
	}
}

func TestFullCycle_CompletesElection(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)
	cfg := newConfig(t, gdb, ids, "Secretário(a)", "Tesoureiro(a)")
	if _, err := StartElection(gdb, cfg.ID); err != nil {
		t.Fatalf("StartElection: %v", err)
	}

	for position := 0; position < 2; position++ {
		startVoting(t, gdb, cfg, ids[1])
		for _, voter := range ids {
			if _, err := SubmitVote(gdb, cfg.ID, voter, ids[1]); err != nil {
				t.Fatalf("position %d vote: %v", position, err)
			}
		}
		if _, err := AdvancePosition(gdb, cfg.ID, false); err != nil {
			t.Fatalf("position %d advance: %v", position, err)
		}
	}

	var final ElectionSession
	if err := gdb.First(&final, "config_id = ?", cfg.ID).Error; err != nil {
		t.Fatalf("load session: %v", err)
	}
	if final.Status != StatusCompleted || final.CurrentPhase != PhaseCompleted {
		t.Errorf("expected completed session, got %+v", final)
	}

	var finalCfg ElectionConfig
	if err := gdb.First(&finalCfg, "id = ?", cfg.ID).Error; err != nil {
		t.Fatalf("load config: %v", err)
	}
	if finalCfg.Status != StatusCompleted {
		t.Errorf("expected completed config, got %s", finalCfg.Status)
	}

	// Every command now fails: no active session remains.
	if _, err := SubmitVote(gdb, cfg.ID, ids[0], ids[1]); kindOf(err) != KindNotFound {
		t.Errorf("expected not-found after completion, got %v", err)
	}
}

func TestForceComplete(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)
	cfg := newConfig(t, gdb, ids, "Secretário(a)", "Tesoureiro(a)", "Patrimônio")
	if _, err := StartElection(gdb, cfg.ID); err != nil {
		t.Fatalf("StartElection: %v", err)
	}

	if err := ForceComplete(gdb, cfg.ID); err != nil {
		t.Fatalf("ForceComplete: %v", err)
	}

	var finalCfg ElectionConfig
	if err := gdb.First(&finalCfg, "id = ?", cfg.ID).Error; err != nil {
		t.Fatalf("load config: %v", err)
	}
	if finalCfg.Status != StatusCompleted {
		t.Errorf("expected completed config, got %s", finalCfg.Status)
	}
	if err := ForceComplete(gdb, cfg.ID); kindOf(err) != KindNotFound {
		t.Errorf("expected not-found on second force-complete, got %v", err)
	}
}

func TestOverrideCandidate_ExpandsPool(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)

	// Ineligible member: baptized this year, against a church-time criterion.
	recent := time.Now().AddDate(0, -3, 0)
	novice := directory.Member{
		UserID: "novice", Name: "Novato", Church: testChurch,
		Role: "member", Status: "approved", BaptismDate: &recent,
	}
	if err := gdb.Create(&novice).Error; err != nil {
		t.Fatalf("seed novice: %v", err)
	}

	cfg := &ElectionConfig{
		ChurchID:   1,
		ChurchName: testChurch,
		Voters:     ids,
		Positions:  StringList{"Secretário(a)"},
		Criteria:   Criteria{ChurchTime: ChurchTimeCriterion{Enabled: true, MinimumMonths: 24}},
	}
	if err := CreateConfig(gdb, cfg); err != nil {
		t.Fatalf("CreateConfig: %v", err)
	}
	if _, err := StartElection(gdb, cfg.ID); err != nil {
		t.Fatalf("StartElection: %v", err)
	}

	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], novice.ID); kindOf(err) != KindNotEligibleCandidate {
		t.Fatalf("expected novice to be ineligible before override, got %v", err)
	}

	override, err := OverrideCandidate(gdb, cfg.ID, 0, novice.ID, "admin-1", "aprovado em reunião")
	if err != nil {
		t.Fatalf("OverrideCandidate: %v", err)
	}
	if override.Reason == "" || override.AdminID != "admin-1" {
		t.Errorf("expected audit fields on override, got %+v", override)
	}

	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], novice.ID); err != nil {
		t.Errorf("expected novice nominatable after override, got %v", err)
	}

	// Range and membership validation.
	if _, err := OverrideCandidate(gdb, cfg.ID, 5, novice.ID, "admin-1", ""); kindOf(err) != KindValidation {
		t.Errorf("expected out-of-range rejection, got %v", err)
	}
	if _, err := OverrideCandidate(gdb, cfg.ID, 0, 999, "admin-1", ""); kindOf(err) != KindNotFound {
		t.Errorf("expected unknown-member rejection, got %v", err)
	}
}

func TestPositionLimit_ExcludesRepeatWinners(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)

	cfg := &ElectionConfig{
		ChurchID:   1,
		ChurchName: testChurch,
		Voters:     ids,
		Positions:  StringList{"Secretário(a)", "Tesoureiro(a)"},
		Criteria:   Criteria{PositionLimit: PositionLimitCriterion{Enabled: true, MaxPositions: 1}},
	}
	if err := CreateConfig(gdb, cfg); err != nil {
		t.Fatalf("CreateConfig: %v", err)
	}
	if _, err := StartElection(gdb, cfg.ID); err != nil {
		t.Fatalf("StartElection: %v", err)
	}

	// Position 0: everyone elects member 2.
	startVoting(t, gdb, cfg, ids[1])
	for _, voter := range ids {
		if _, err := SubmitVote(gdb, cfg.ID, voter, ids[1]); err != nil {
			t.Fatalf("vote: %v", err)
		}
	}
	if _, err := AdvancePosition(gdb, cfg.ID, false); err != nil {
		t.Fatalf("advance: %v", err)
	}

	// Position 1: the winner of position 0 is excluded from the pool.
	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], ids[1]); kindOf(err) != KindNotEligibleCandidate {
		t.Errorf("expected position-limit exclusion, got %v", err)
	}
	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], ids[2]); err != nil {
		t.Errorf("expected other members still nominatable, got %v", err)
	}
}

func TestEldersCount_ExcludesSeatedElders(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)

	cfg := &ElectionConfig{
		ChurchID:   1,
		ChurchName: testChurch,
		Voters:     ids,
		Positions:  StringList{"Primeiro Ancião(ã)", "Ancião/Anciã Jovem"},
		Criteria:   Criteria{EldersCount: EldersCountCriterion{Enabled: true, Count: 1}},
	}
	if err := CreateConfig(gdb, cfg); err != nil {
		t.Fatalf("CreateConfig: %v", err)
	}
	if _, err := StartElection(gdb, cfg.ID); err != nil {
		t.Fatalf("StartElection: %v", err)
	}

	// Fill the first elder seat with member 2.
	startVoting(t, gdb, cfg, ids[1])
	for _, voter := range ids {
		if _, err := SubmitVote(gdb, cfg.ID, voter, ids[1]); err != nil {
			t.Fatalf("vote: %v", err)
		}
	}
	if _, err := AdvancePosition(gdb, cfg.ID, false); err != nil {
		t.Fatalf("advance: %v", err)
	}

	// The elder quota is met, so the seated elder is out of the next elder
	// pool while other members remain in.
	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], ids[1]); kindOf(err) != KindNotEligibleCandidate {
		t.Errorf("expected seated elder excluded, got %v", err)
	}
	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], ids[2]); err != nil {
		t.Errorf("expected non-elder member nominatable, got %v", err)
	}
}

func TestDeleteConfig_Cascades(t *testing.T) {
	gdb := newTestDB(t)
	ids := seedMembers(t, gdb, 3)
	cfg := newConfig(t, gdb, ids, "Secretário(a)")
	session, err := StartElection(gdb, cfg.ID)
	if err != nil {
		t.Fatalf("StartElection: %v", err)
	}
	if _, err := SubmitNomination(gdb, cfg.ID, ids[0], ids[1]); err != nil {
		t.Fatalf("nominate: %v", err)
	}

	if err := DeleteConfig(gdb, cfg.ID); err != nil {
		t.Fatalf("DeleteConfig: %v", err)
	}

	for name, count := range map[string]int64{
		"configs":  countRows(t, gdb, &ElectionConfig{}, "id = ?", cfg.ID),
		"sessions": countRows(t, gdb, &ElectionSession{}, "config_id = ?", cfg.ID),
		"ballots":  countRows(t, gdb, &Ballot{}, "session_id = ?", session.ID),
		"states":   countRows(t, gdb, &PositionState{}, "session_id = ?", session.ID),
	} {
		if count != 0 {
			t.Errorf("expected %s to be removed, found %d rows", name, count)
		}
	}
}

func countRows(t *testing.T, gdb *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := gdb.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestPreviewCandidates_SplitsByVerdict(t *testing.T) {
	gdb := newTestDB(t)
	seedMembers(t, gdb, 3)

	recent := time.Now().AddDate(0, -6, 0)
	novice := directory.Member{
		UserID: "novice", Name: "Novato", Church: testChurch,
		Role: "member", Status: "approved", BaptismDate: &recent,
	}
	if err := gdb.Create(&novice).Error; err != nil {
		t.Fatalf("seed novice: %v", err)
	}

	criteria := Criteria{ChurchTime: ChurchTimeCriterion{Enabled: true, MinimumMonths: 24}}
	eligible, ineligible, err := PreviewCandidates(gdb, testChurch, criteria)
	if err != nil {
		t.Fatalf("PreviewCandidates: %v", err)
	}
	if len(eligible) != 3 {
		t.Errorf("expected 3 eligible members, got %d", len(eligible))
	}
	if len(ineligible) != 1 {
		t.Fatalf("expected 1 ineligible member, got %d", len(ineligible))
	}
	if len(ineligible[0].Reasons) == 0 {
		t.Error("expected a reason on the ineligible member")
	}

	if _, _, err := PreviewCandidates(gdb, "", criteria); kindOf(err) != KindValidation {
		t.Errorf("expected validation error for empty church, got %v", err)
	}
}
