package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"smartmoney/internal/repository"
)

type MarketHandler struct {
	Repo repository.Repository
}

func (h *MarketHandler) Register(r *gin.Engine) {
	m := r.Group("/api/v1/markets")
	m.GET("/:condition_id", h.get)
}

func (h *MarketHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	conditionID := strings.TrimSpace(c.Param("condition_id"))
	if conditionID == "" {
		Error(c, http.StatusBadRequest, "invalid condition id", nil)
		return
	}
	market, err := h.Repo.GetMarketByConditionID(c.Request.Context(), conditionID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if market == nil {
		Error(c, http.StatusNotFound, "market not found", nil)
		return
	}
	Ok(c, market, nil)
}
