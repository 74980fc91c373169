package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"smartmoney/internal/repository"
)

type PositionHandler struct {
	Repo repository.Repository
}

func (h *PositionHandler) Register(r *gin.Engine) {
	p := r.Group("/api/v1/positions")
	p.GET("", h.list)
}

func (h *PositionHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	orderBy := parseOrder(c.Query("order_by"), map[string]string{
		"pnl":              "pnl",
		"amount_spent":     "amount_spent",
		"amount_remaining": "amount_remaining",
		"updated_at":       "updated_at",
		"created_at":       "created_at",
	})
	if orderBy == "" {
		orderBy = "updated_at"
	}
	asc := strings.EqualFold(strings.TrimSpace(c.Query("order")), "asc")

	params := repository.ListPositionsParams{
		Limit:       limit,
		Offset:      offset,
		WalletID:    uint64QueryPtr(c, "wallet_id"),
		MarketID:    uint64QueryPtr(c, "market_id"),
		Status:      strQueryPtr(c, "status"),
		TradeStatus: strQueryPtr(c, "trade_status"),
		Outcome:     strQueryPtr(c, "outcome"),
		OrderBy:     orderBy,
		Asc:         boolPtr(asc),
	}
	items, err := h.Repo.ListPositions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountPositions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}
