package seeds

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/IgrejaConnect/Election-Backend/internal/db"
	"github.com/IgrejaConnect/Election-Backend/internal/directory"
	"gorm.io/gorm"
)

func SeedMembers() error {
	var members []directory.Member

	file, err := os.ReadFile("internal/directory/data/members.json")
	if err != nil {
		return fmt.Errorf("could not read members.json: %w", err)
	}

	if err := json.Unmarshal(file, &members); err != nil {
		return fmt.Errorf("failed to parse members.json: %w", err)
	}

	created := 0
	for _, member := range members {
		var existing directory.Member
		err := db.DB.First(&existing, "user_id = ?", member.UserID).Error

		if err == nil {
			log.Printf("⚠️ Member exists, skipping: %s", member.Name)
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("DB error on member %s: %w", member.Name, err)
		}

		if err := db.DB.Create(&member).Error; err != nil {
			return fmt.Errorf("failed to create member %s: %w", member.Name, err)
		}
		created++
	}

	log.Printf("✅ Seeded %d members", created)
	return nil
}
