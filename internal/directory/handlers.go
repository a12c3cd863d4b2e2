package directory

import (
	"encoding/json"
	"net/http"

	"github.com/IgrejaConnect/Election-Backend/internal/db"
	"github.com/go-chi/chi/v5"
)

// ListMembers returns members, optionally filtered by church and status.
func ListMembers(w http.ResponseWriter, r *http.Request) {
	query := db.DB.Model(&Member{})

	if church := r.URL.Query().Get("church"); church != "" {
		query = query.Where("church = ?", church)
	}
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if role := r.URL.Query().Get("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	var members []Member
	if err := query.Order("name ASC").Find(&members).Error; err != nil {
		http.Error(w, "Failed to fetch members: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(members)
}

// GetMember returns a single member by ID.
func GetMember(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "member_id")

	var member Member
	if err := db.DB.First(&member, "id = ?", memberID).Error; err != nil {
		http.Error(w, "Member not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(member)
}
