package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"smartmoney/internal/models"
	"smartmoney/internal/repository"
)

type WalletHandler struct {
	Repo repository.Repository
}

func (h *WalletHandler) Register(r *gin.Engine) {
	w := r.Group("/api/v1/wallets")
	w.GET("", h.list)
	w.GET("/:address", h.get)
	w.GET("/:address/positions", h.positions)
	w.GET("/:address/pnl", h.pnl)
}

func (h *WalletHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	orderBy := parseOrder(c.Query("order_by"), map[string]string{
		"first_seen_at":  "first_seen_at",
		"last_synced_at": "last_synced_at",
		"username":       "username",
		"created_at":     "created_at",
	})
	if orderBy == "" {
		orderBy = "first_seen_at"
	}
	asc := strings.EqualFold(strings.TrimSpace(c.Query("order")), "asc")

	params := repository.ListWalletsParams{
		Limit:    limit,
		Offset:   offset,
		Active:   boolQueryPtr(c, "active"),
		Category: strQueryPtr(c, "category"),
		Type:     strQueryPtr(c, "type"),
		Address:  strQueryPtr(c, "address"),
		OrderBy:  orderBy,
		Asc:      boolPtr(asc),
	}
	items, err := h.Repo.ListWallets(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountWallets(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *WalletHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	address := strings.TrimSpace(c.Param("address"))
	if address == "" {
		Error(c, http.StatusBadRequest, "invalid address", nil)
		return
	}
	wallet, err := h.Repo.GetWalletByAddress(c.Request.Context(), address)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if wallet == nil {
		Error(c, http.StatusNotFound, "wallet not found", nil)
		return
	}
	Ok(c, wallet, nil)
}

func (h *WalletHandler) positions(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	wallet, ok := h.walletParam(c)
	if !ok {
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
		WalletID:    &wallet.ID,
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

func (h *WalletHandler) pnl(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	wallet, ok := h.walletParam(c)
	if !ok {
		return
	}
	period := intQuery(c, "period", 30)
	rollup, err := h.Repo.GetWalletPnl(c.Request.Context(), wallet.ID, period)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if rollup == nil {
		Error(c, http.StatusNotFound, "no rollup for period", map[string]any{"period": period})
		return
	}
	Ok(c, rollup, map[string]any{"pnl": rollup.Pnl()})
}

// walletParam resolves the :address route param to a persisted wallet and
// writes the error response itself when it cannot.
func (h *WalletHandler) walletParam(c *gin.Context) (*models.Wallet, bool) {
	address := strings.TrimSpace(c.Param("address"))
	if address == "" {
		Error(c, http.StatusBadRequest, "invalid address", nil)
		return nil, false
	}
	wallet, err := h.Repo.GetWalletByAddress(c.Request.Context(), address)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return nil, false
	}
	if wallet == nil {
		Error(c, http.StatusNotFound, "wallet not found", nil)
		return nil, false
	}
	return wallet, true
}
