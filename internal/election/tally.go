package election

import (
	"sort"

	"github.com/IgrejaConnect/Election-Backend/internal/directory"
	"gorm.io/gorm"
)

// CandidateTally is one candidate's aggregated nominations and votes for a
// position. Percentage is votes over the full voter roll, so it doubles as a
// turnout signal.
type CandidateTally struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Nominations int     `json:"nominations"`
	Votes       int     `json:"votes"`
	Percentage  float64 `json:"percentage"`
}

// PositionTally is the aggregated view of one position at its current
// generation.
type PositionTally struct {
	Position         string           `json:"position"`
	PositionIndex    int              `json:"position_index"`
	Generation       int              `json:"generation"`
	Skipped          bool             `json:"skipped"`
	TotalNominations int              `json:"total_nominations"`
	VotedVoters      int              `json:"voted_voters"`
	Winner           *CandidateTally  `json:"winner"`
	Results          []CandidateTally `json:"results"`
}

func candidateNames(tx *gorm.DB, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var members []directory.Member
	if err := tx.Where("id IN ?", ids).Find(&members).Error; err != nil {
		return nil, err
	}
	for _, m := range members {
		names[m.ID] = m.Name
	}
	return names, nil
}

// tallyPosition aggregates one position: nomination counts, vote counts at
// the current generation, percentages over the voter roll, turnout and the
// winner (nil on a tie or zero votes).
func tallyPosition(tx *gorm.DB, cfg *ElectionConfig, state *PositionState) (*PositionTally, error) {
	tally := &PositionTally{
		PositionIndex: state.PositionIndex,
		Generation:    state.Generation,
		Skipped:       state.Skipped,
	}
	if state.PositionIndex < len(cfg.Positions) {
		tally.Position = cfg.Positions[state.PositionIndex]
	}

	type countRow struct {
		CandidateID int64
		Kind        string
		Generation  int
		N           int64
	}
	var rows []countRow
	err := tx.Model(&Ballot{}).
		Select("candidate_id, kind, generation, COUNT(*) as n").
		Where("session_id = ? AND position_index = ?", state.SessionID, state.PositionIndex).
		Group("candidate_id").Group("kind").Group("generation").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byCandidate := make(map[int64]*CandidateTally)
	candidate := func(id int64) *CandidateTally {
		if c, ok := byCandidate[id]; ok {
			return c
		}
		c := &CandidateTally{ID: id}
		byCandidate[id] = c
		return c
	}
	for _, r := range rows {
		switch {
		case r.Kind == BallotNomination && r.Generation == nominationGeneration:
			candidate(r.CandidateID).Nominations += int(r.N)
			tally.TotalNominations += int(r.N)
		case r.Kind == BallotVote && r.Generation == state.Generation:
			// Votes from superseded generations are skipped, not deleted.
			// Each voter holds at most one vote row per generation, so the
			// turnout is the sum of these counts.
			candidate(r.CandidateID).Votes += int(r.N)
			tally.VotedVoters += int(r.N)
		}
	}

	ids := make([]int64, 0, len(byCandidate))
	for id := range byCandidate {
		ids = append(ids, id)
	}
	names, err := candidateNames(tx, ids)
	if err != nil {
		return nil, err
	}

	totalVoters := len(cfg.Voters)
	results := make([]CandidateTally, 0, len(byCandidate))
	for id, c := range byCandidate {
		c.Name = names[id]
		if totalVoters > 0 {
			c.Percentage = float64(c.Votes) / float64(totalVoters) * 100
		}
		results = append(results, *c)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Votes != results[j].Votes {
			return results[i].Votes > results[j].Votes
		}
		if results[i].Nominations != results[j].Nominations {
			return results[i].Nominations > results[j].Nominations
		}
		return collator.CompareString(results[i].Name, results[j].Name) < 0
	})
	tally.Results = results

	if len(results) > 0 && results[0].Votes > 0 {
		if len(results) == 1 || results[1].Votes < results[0].Votes {
			winner := results[0]
			tally.Winner = &winner
		}
	}

	return tally, nil
}
