package election

import (
	"log"

	"github.com/IgrejaConnect/Election-Backend/internal/db"
)

// Init loads the module configuration and catalog, then migrates the
// election tables.
func Init() {
	cfg := LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid election configuration: ", err)
	}
	modConfig = cfg

	if cfg.CatalogPath != "" {
		loaded, err := LoadCatalog(cfg.CatalogPath)
		if err != nil {
			log.Fatal("Failed to load position catalog: ", err)
		}
		catalog = loaded
	}

	err := db.DB.AutoMigrate(
		&ElectionConfig{},
		&ElectionSession{},
		&PositionState{},
		&Ballot{},
		&EligibilityOverride{},
	)
	if err != nil {
		log.Fatal("Failed to migrate election tables: ", err)
	}
}
