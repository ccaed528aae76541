package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-escrow-market.git/internal/escrow"
	"github.com/ariefcatur/go-escrow-market.git/internal/orders"
)

// AdminHandler is the ops surface: pause gate, developer account, seller
// registry, dispute resolution and the break-glass withdraw. Everything is
// behind the configured admin token.
type AdminHandler struct {
	Svc   *orders.Service
	Log   *zap.Logger
	Token string
}

type RegisterSellerReq struct {
	SellerID string `json:"seller_id"`
}

type DeveloperAccountReq struct {
	Account string `json:"account"`
}

type ResolveDisputeReq struct {
	Resolution string `json:"resolution"`
}

func (h *AdminHandler) Register(r *chi.Mux) {
	r.Route("/admin", func(ar chi.Router) {
		ar.Use(h.auth)
		ar.Post("/pause", h.setPaused(true))
		ar.Post("/unpause", h.setPaused(false))
		ar.Put("/developer-account", h.setDeveloperAccount)
		ar.Post("/sellers", h.registerSeller)
		ar.Post("/orders/{id}/resolve", h.resolveDispute)
		ar.Post("/emergency-withdraw", h.emergencyWithdraw)
	})
}

func (h *AdminHandler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Token == "" || r.Header.Get("X-Admin-Token") != h.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "admin token required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AdminHandler) setPaused(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := h.Svc.SetPaused(ctx, paused); err != nil {
			writeError(w, err)
			return
		}
		h.Log.Info("pause state changed", zap.Bool("paused", paused))
		writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
	}
}

func (h *AdminHandler) setDeveloperAccount(w http.ResponseWriter, r *http.Request) {
	var req DeveloperAccountReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.SetDeveloperAccount(ctx, req.Account); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"developer_account": req.Account})
}

func (h *AdminHandler) registerSeller(w http.ResponseWriter, r *http.Request) {
	var req RegisterSellerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.RegisterSeller(ctx, req.SellerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"seller_id": req.SellerID})
}

func (h *AdminHandler) resolveDispute(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	var req ResolveDisputeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	resolution, err := escrow.ParseResolution(req.Resolution)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.ResolveDispute(ctx, "admin", id, resolution); err != nil {
		writeError(w, err)
		return
	}
	recordDisbursement("dispute_" + string(resolution))
	o, err := h.Svc.GetOrder(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *AdminHandler) emergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	swept, err := h.Svc.EmergencyWithdraw(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"swept_cents": swept})
}
