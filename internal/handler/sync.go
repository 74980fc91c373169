package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"smartmoney/internal/repository"
)

type SyncStateHandler struct {
	Repo repository.Repository
}

func (h *SyncStateHandler) Register(r *gin.Engine) {
	s := r.Group("/api/v1/sync")
	s.GET("/state", h.list)
	s.GET("/state/:scope", h.get)
}

func (h *SyncStateHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListSyncStates(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *SyncStateHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	scope := strings.TrimSpace(c.Param("scope"))
	if scope == "" {
		Error(c, http.StatusBadRequest, "invalid scope", nil)
		return
	}
	state, err := h.Repo.GetSyncState(c.Request.Context(), scope)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if state == nil {
		Error(c, http.StatusNotFound, "scope not found", nil)
		return
	}
	Ok(c, state, nil)
}
