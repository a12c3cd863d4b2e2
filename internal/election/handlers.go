package election

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/IgrejaConnect/Election-Backend/internal/db"
	"github.com/IgrejaConnect/Election-Backend/internal/directory"
	"github.com/IgrejaConnect/Election-Backend/internal/utils"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// callerMember resolves the authenticated user to their directory member
// record. Voter commands act on the member ID, never on a client-supplied
// identity.
func callerMember(r *http.Request) (*directory.Member, error) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		return nil, newError(KindValidation, "missing user identity")
	}
	var member directory.Member
	if err := db.DB.First(&member, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotEligibleVoter, "no member record for this account")
		}
		return nil, err
	}
	return &member, nil
}

// CatalogHandler returns the standard position catalog.
func CatalogHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, catalog)
}

// CreateConfigHandler stores a new draft configuration.
func CreateConfigHandler(w http.ResponseWriter, r *http.Request) {
	var cfg ElectionConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := CreateConfig(db.DB, &cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, cfg)
}

// GetConfigHandler returns one configuration by ID, or the latest one when
// no ID is given.
func GetConfigHandler(w http.ResponseWriter, r *http.Request) {
	configID := chi.URLParam(r, "config_id")
	if configID == "" {
		configID = r.URL.Query().Get("id")
	}

	cfg, err := loadConfig(db.DB, configID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, cfg)
}

// ConfigSummary is a configuration joined with its most recent session.
type ConfigSummary struct {
	ElectionConfig
	SessionStatus string `json:"session_status,omitempty"`
	SessionPhase  string `json:"session_phase,omitempty"`
}

// ListConfigsHandler returns every configuration with its latest session
// state attached.
func ListConfigsHandler(w http.ResponseWriter, r *http.Request) {
	var configs []ElectionConfig
	if err := db.DB.Order("created_at DESC").Find(&configs).Error; err != nil {
		http.Error(w, "Failed to fetch configurations: "+err.Error(), http.StatusInternalServerError)
		return
	}

	summaries := make([]ConfigSummary, 0, len(configs))
	for _, cfg := range configs {
		summary := ConfigSummary{ElectionConfig: cfg}
		if s, err := latestSession(db.DB, cfg.ID); err == nil {
			summary.SessionStatus = s.Status
			summary.SessionPhase = s.CurrentPhase
		}
		summaries = append(summaries, summary)
	}
	writeJSON(w, summaries)
}

// DeleteConfigHandler removes a configuration and everything hanging off it.
func DeleteConfigHandler(w http.ResponseWriter, r *http.Request) {
	configID := chi.URLParam(r, "config_id")

	if err := DeleteConfig(db.DB, configID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"message": "configuration deleted"})
}

// PreviewCandidatesHandler evaluates a church's members against a criteria
// set, for the admin's configuration screen.
func PreviewCandidatesHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ChurchName string   `json:"church_name"`
		Criteria   Criteria `json:"criteria"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	eligible, ineligible, err := PreviewCandidates(db.DB, input.ChurchName, input.Criteria)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"eligible":   eligible,
		"ineligible": ineligible,
	})
}

type configCommand struct {
	ConfigID string `json:"config_id"`
}

// StartHandler opens position 0 in the nomination phase.
func StartHandler(w http.ResponseWriter, r *http.Request) {
	var input configCommand
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := StartElection(db.DB, input.ConfigID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, session)
}

// AdvancePhaseHandler moves the current position to the requested phase.
func AdvancePhaseHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ConfigID string `json:"config_id"`
		Phase    string `json:"phase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := AdvancePhase(db.DB, input.ConfigID, input.Phase)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, session)
}

// AdvancePositionHandler closes the current position (full turnout required)
// and opens the next.
func AdvancePositionHandler(w http.ResponseWriter, r *http.Request) {
	var input configCommand
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := AdvancePosition(db.DB, input.ConfigID, false)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, session)
}

// SkipPositionHandler advances past the current position without a winner,
// marking it skipped.
func SkipPositionHandler(w http.ResponseWriter, r *http.Request) {
	var input configCommand
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := AdvancePosition(db.DB, input.ConfigID, true)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, session)
}

// ResetVotingHandler supersedes every vote on the current position so the
// voters can vote again. Nominations are kept.
func ResetVotingHandler(w http.ResponseWriter, r *http.Request) {
	var input configCommand
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	state, err := ResetVoting(db.DB, input.ConfigID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"message":    "voting reset",
		"generation": state.Generation,
	})
}

// SetMaxNominationsHandler adjusts the per-voter nomination allowance.
func SetMaxNominationsHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ConfigID       string `json:"config_id"`
		MaxNominations int    `json:"max_nominations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := SetMaxNominations(db.DB, input.ConfigID, input.MaxNominations); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"message":         "max nominations updated",
		"max_nominations": input.MaxNominations,
	})
}

// ForceCompleteHandler ends the election regardless of remaining positions.
func ForceCompleteHandler(w http.ResponseWriter, r *http.Request) {
	var input configCommand
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := ForceComplete(db.DB, input.ConfigID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"message": "election completed"})
}

// OverrideCandidateHandler records an admin promoting an ineligible member
// into a position's candidate pool.
func OverrideCandidateHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var input struct {
		ConfigID      string `json:"config_id"`
		PositionIndex int    `json:"position_index"`
		MemberID      int64  `json:"member_id"`
		Reason        string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	override, err := OverrideCandidate(db.DB, input.ConfigID, input.PositionIndex, input.MemberID, adminID, input.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, override)
}

type ballotCommand struct {
	ConfigID    string `json:"config_id"`
	CandidateID int64  `json:"candidate_id"`
}

// NominateHandler records the caller's nomination for the current position.
func NominateHandler(w http.ResponseWriter, r *http.Request) {
	member, err := callerMember(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var input ballotCommand
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ballot, err := SubmitNomination(db.DB, input.ConfigID, member.ID, input.CandidateID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, ballot)
}

// VoteHandler records the caller's vote for the current position.
func VoteHandler(w http.ResponseWriter, r *http.Request) {
	member, err := callerMember(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var input ballotCommand
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ballot, err := SubmitVote(db.DB, input.ConfigID, member.ID, input.CandidateID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, ballot)
}

// ActiveElectionHandler returns the caller's running election, if any.
func ActiveElectionHandler(w http.ResponseWriter, r *http.Request) {
	member, err := callerMember(r)
	if err != nil {
		writeError(w, err)
		return
	}

	active, err := ActiveElectionFor(db.DB, member.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, active)
}

// VotingViewHandler returns the voting screen read model for the caller.
func VotingViewHandler(w http.ResponseWriter, r *http.Request) {
	member, err := callerMember(r)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := BuildVoterView(db.DB, chi.URLParam(r, "config_id"), member.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, view)
}

// DashboardHandler returns the polled admin read model.
func DashboardHandler(w http.ResponseWriter, r *http.Request) {
	dash, err := BuildDashboard(db.DB, chi.URLParam(r, "config_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, dash)
}

// VoteLogHandler returns a session's full ballot log with names resolved.
func VoteLogHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := VoteLog(db.DB, chi.URLParam(r, "session_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, entries)
}
