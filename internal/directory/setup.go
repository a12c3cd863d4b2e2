package directory

import (
	"log"

	"github.com/IgrejaConnect/Election-Backend/internal/db"
)

func Init() {
	if err := db.DB.AutoMigrate(&Member{}); err != nil {
		log.Fatal("Failed to auto-migrate directory tables: ", err)
	}
}
