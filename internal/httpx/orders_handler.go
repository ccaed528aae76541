package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-escrow-market.git/internal/orders"
	"github.com/ariefcatur/go-escrow-market.git/internal/redisx"
)

type OrdersHandler struct {
	Svc   *orders.Service
	Redis *redis.Client
	Log   *zap.Logger
}

type CreateOrderReq struct {
	ExternalID      string             `json:"external_id,omitempty"`
	Items           []orders.ItemInput `json:"items"`
	ShippingAddress string             `json:"shipping_address"`
	PaymentCents    int64              `json:"payment_cents"`
}

type ShipReq struct {
	TrackingInfo string `json:"tracking_info"`
}

type DisputeReq struct {
	Reason string `json:"reason"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/escrow", h.getEscrow)
	r.Post("/orders/{id}/processing", h.transition(func(ctx context.Context, actor string, id int64) error {
		return h.Svc.StartProcessing(ctx, actor, id)
	}))
	r.Post("/orders/{id}/ship", h.ship)
	r.Post("/orders/{id}/in-delivery", h.transition(func(ctx context.Context, actor string, id int64) error {
		return h.Svc.MarkInDelivery(ctx, actor, id)
	}))
	r.Post("/orders/{id}/delivered", h.transition(func(ctx context.Context, actor string, id int64) error {
		return h.Svc.MarkDelivered(ctx, actor, id)
	}))
	r.Post("/orders/{id}/confirm", h.confirm)
	r.Post("/orders/{id}/cancel", h.transition(func(ctx context.Context, actor string, id int64) error {
		return h.Svc.Cancel(ctx, actor, id)
	}))
	r.Post("/orders/{id}/dispute", h.dispute)
	r.Post("/orders/{id}/claim", h.claim)
	// permissionless by design: any caller may trigger the time-gated release
	r.Post("/orders/{id}/auto-release", h.autoRelease)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	buyerID := actorID(r)
	if buyerID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing X-User-Id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Fast-path idempotency via Redis; the unique external_id column in the
	// store stays the source of truth.
	if req.ExternalID != "" && h.Redis != nil {
		idemKey := fmt.Sprintf(redisx.KeyIdemOrderCreate, req.ExternalID)
		if s, err := h.Redis.Get(ctx, idemKey).Result(); err == nil && s != "" {
			if id, err := strconv.ParseInt(s, 10, 64); err == nil {
				if o, err := h.Svc.GetOrder(ctx, id); err == nil {
					writeJSON(w, http.StatusOK, o)
					return
				}
			}
		}
	}

	o, err := h.Svc.CreateOrder(ctx, buyerID, req.ExternalID, req.Items, req.ShippingAddress, req.PaymentCents)
	if err != nil {
		writeError(w, err)
		return
	}
	recordOrderCreated()

	if h.Redis != nil {
		if req.ExternalID != "" {
			idemKey := fmt.Sprintf(redisx.KeyIdemOrderCreate, req.ExternalID)
			_ = h.Redis.Set(ctx, idemKey, strconv.FormatInt(o.ID, 10), redisx.TTLIdempotency).Err()
		}
		h.cacheStatus(ctx, o.ID, o.Status)
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Svc.GetOrder(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Redis != nil {
		h.cacheStatus(ctx, o.ID, o.Status)
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getEscrow(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rec, err := h.Svc.GetEscrow(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// transition wraps the single-actor status-advance endpoints that share one
// request/response shape.
func (h *OrdersHandler) transition(fn func(ctx context.Context, actor string, id int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := orderID(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := fn(ctx, actorID(r), id); err != nil {
			writeError(w, err)
			return
		}
		h.refreshStatus(ctx, w, id)
	}
}

func (h *OrdersHandler) ship(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	var req ShipReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.Ship(ctx, actorID(r), id, req.TrackingInfo); err != nil {
		writeError(w, err)
		return
	}
	h.refreshStatus(ctx, w, id)
}

func (h *OrdersHandler) confirm(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.Confirm(ctx, actorID(r), id); err != nil {
		writeError(w, err)
		return
	}
	recordDisbursement("claimable")
	h.refreshStatus(ctx, w, id)
}

func (h *OrdersHandler) dispute(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	var req DisputeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.OpenDispute(ctx, actorID(r), id, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	h.refreshStatus(ctx, w, id)
}

func (h *OrdersHandler) claim(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Svc.Claim(ctx, actorID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	recordDisbursement("claimed")
	writeJSON(w, http.StatusOK, rec)
}

func (h *OrdersHandler) autoRelease(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.AutoRelease(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	recordDisbursement("auto_release")
	h.refreshStatus(ctx, w, id)
}

func (h *OrdersHandler) refreshStatus(ctx context.Context, w http.ResponseWriter, id int64) {
	o, err := h.Svc.GetOrder(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Redis != nil {
		h.cacheStatus(ctx, id, o.Status)
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, id int64, status orders.Status) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, id)
	body, _ := json.Marshal(map[string]orders.Status{"status": status})
	if err := h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err(); err != nil && h.Log != nil {
		h.Log.Debug("status cache write failed", zap.Int64("order_id", id), zap.Error(err))
	}
}

func orderID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
