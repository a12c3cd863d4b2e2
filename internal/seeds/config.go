package seeds

import (
	"fmt"
	"log"

	"github.com/IgrejaConnect/Election-Backend/internal/db"
	"github.com/IgrejaConnect/Election-Backend/internal/directory"
	"github.com/IgrejaConnect/Election-Backend/internal/election"
	"github.com/IgrejaConnect/Election-Backend/internal/utils"
)

const demoChurch = "Igreja Central"

// SeedDemoConfig creates one draft election for the demo church, with every
// seeded member on the voter roll.
func SeedDemoConfig() error {
	var count int64
	if err := db.DB.Model(&election.ElectionConfig{}).
		Where("church_name = ?", demoChurch).
		Count(&count).Error; err != nil {
		return fmt.Errorf("DB error checking demo config: %w", err)
	}
	if count > 0 {
		log.Printf("⚠️ Demo config exists, skipping")
		return nil
	}

	var members []directory.Member
	if err := db.DB.Where("church = ? AND status = ?", demoChurch, "approved").
		Find(&members).Error; err != nil {
		return fmt.Errorf("failed to load demo members: %w", err)
	}
	if len(members) == 0 {
		return fmt.Errorf("no members for church %q; seed members first", demoChurch)
	}

	voters := make(election.Int64List, 0, len(members))
	for _, m := range members {
		voters = append(voters, m.ID)
	}

	cfg := election.ElectionConfig{
		ID:         utils.GenerateUUID(),
		ChurchID:   1,
		ChurchName: demoChurch,
		Voters:     voters,
		Criteria: election.Criteria{
			Faithfulness: election.CriterionFlags{Enabled: true, Punctual: true, Recurring: true},
			ChurchTime:   election.ChurchTimeCriterion{Enabled: true, MinimumMonths: 12},
		},
		Positions: election.StringList{
			"Primeiro Ancião(ã)",
			"Secretário(a)",
			"Tesoureiro(a)",
		},
		PositionDescriptions: election.StringMap{
			"Primeiro Ancião(ã)": "Lidera o corpo de anciãos da igreja.",
			"Secretário(a)":      "Mantém os registros e atas da igreja.",
			"Tesoureiro(a)":      "Administra os recursos financeiros.",
		},
		Status: election.StatusDraft,
	}

	if err := db.DB.Create(&cfg).Error; err != nil {
		return fmt.Errorf("failed to create demo config: %w", err)
	}

	log.Printf("✅ Seeded demo config %s with %d voters", cfg.ID, len(voters))
	return nil
}
