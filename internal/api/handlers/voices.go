package handlers

import (
	"net/http"

	"github.com/rkstudio/podcastai/internal/voices"
)

type VoicesHandler struct{}

func NewVoicesHandler() *VoicesHandler {
	return &VoicesHandler{}
}

func (h *VoicesHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"voices": voices.All()})
}
