package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/models"
)

// handleListTrades implements `GET /trades` (§6).
func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	trades, err := s.trades.ListForOwner(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

type submitTradeRequest struct {
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	OrderType      string          `json:"order_type"`
	Quantity       decimal.Decimal `json:"quantity"`
	LimitPrice     decimal.Decimal `json:"limit_price"`
	StopLoss       decimal.Decimal `json:"stop_loss"`
	TakeProfit     decimal.Decimal `json:"take_profit"`
	PlatformID     string          `json:"platform_id"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// handleSubmitTrade implements `POST /trades` (§6), threading the
// caller's trading mode through to the Trade Router so LearningOnly
// and Assisted accounts get the gating §4.6.1 requires. A request
// without an idempotency key is assigned one so a client retry of the
// exact same network call (not a deliberate resubmission) can't double
// up; callers that want explicit dedup should supply their own.
func (s *Server) handleSubmitTrade(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req submitTradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	side, ok := parseOrderSide(req.Side)
	if !ok {
		writeError(w, errs.New(errs.KindValidation, "unknown order side"))
		return
	}
	orderType, ok := parseOrderType(req.OrderType)
	if !ok {
		writeError(w, errs.New(errs.KindValidation, "unknown order type"))
		return
	}
	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		writeError(w, errs.New(errs.KindValidation, "quantity must be positive"))
		return
	}

	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	user, err := s.usersRepo.GetByID(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	order := models.TradeOrder{
		OwnerID: p.UserID, Symbol: req.Symbol, Side: side, OrderType: orderType,
		Quantity: req.Quantity, LimitPrice: req.LimitPrice, StopPrice: req.StopLoss,
		PlatformID: req.PlatformID, IdempotencyKey: idempotencyKey,
	}

	result, err := s.router.Submit(r.Context(), order, user.Mode)
	if err != nil {
		writeError(w, err)
		return
	}

	if result.Trade == nil {
		writeJSON(w, http.StatusAccepted, map[string]string{"state": string(result.ReachedState), "status": "queued_for_approval"})
		return
	}

	s.hub.PublishTrade(p.UserID, result.Trade)
	writeJSON(w, http.StatusOK, result.Trade)
}

func parseOrderSide(s string) (models.OrderSide, bool) {
	switch models.OrderSide(s) {
	case models.OrderBuy, models.OrderSell:
		return models.OrderSide(s), true
	}
	return "", false
}

func parseOrderType(s string) (models.OrderType, bool) {
	switch models.OrderType(s) {
	case models.OrderMarket, models.OrderLimit, models.OrderStopLoss, models.OrderTakeProfit:
		return models.OrderType(s), true
	}
	return "", false
}

func parseTradingMode(s string) (models.TradingMode, bool) {
	switch models.TradingMode(s) {
	case models.ModeLearningOnly, models.ModeAssisted, models.ModeAutopilot:
		return models.TradingMode(s), true
	}
	return "", false
}
