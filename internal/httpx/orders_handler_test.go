package httpx_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/ariefcatur/go-escrow-market.git/internal/httpx"
	"github.com/ariefcatur/go-escrow-market.git/internal/orders"
	"github.com/ariefcatur/go-escrow-market.git/internal/storetest"
)

func newServer(t *testing.T) (*httptest.Server, *orders.Service) {
	t.Helper()
	log := zaptest.NewLogger(t)
	svc := &orders.Service{
		Store:            storetest.New(),
		Log:              log,
		Name:             "market-api-test",
		FeeRateBps:       100,
		ShippingFeeCents: 500,
		AutoReleaseAfter: 14 * 24 * time.Hour,
		AutoUnlist:       true,
	}
	if err := svc.RegisterSeller(context.Background(), "s1"); err != nil {
		t.Fatalf("register seller: %v", err)
	}

	r := httpx.NewRouter()
	(&httpx.ProductsHandler{Svc: svc, Log: log}).Register(r)
	(&httpx.OrdersHandler{Svc: svc, Log: log}).Register(r)
	(&httpx.AdminHandler{Svc: svc, Log: log, Token: "hunter2"}).Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc
}

func do(t *testing.T, method, url, actor, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if actor != "" {
		req.Header.Set("X-User-Id", actor)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	srv, _ := newServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/products", "s1",
		`{"name":"widget","price_cents":100,"stock":5}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create product: status %d", resp.StatusCode)
	}
	p := decode[struct {
		ID int64 `json:"id"`
	}](t, resp)

	resp = do(t, http.MethodPost, srv.URL+"/orders", "b1",
		`{"items":[{"product_id":1,"qty":5}],"shipping_address":"12 Main St","payment_cents":1000}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create order: status %d", resp.StatusCode)
	}
	o := decode[struct {
		ID     int64         `json:"id"`
		Status orders.Status `json:"status"`
	}](t, resp)
	if o.Status != orders.StatusPaid {
		t.Fatalf("status = %s, want %s", o.Status, orders.StatusPaid)
	}
	if p.ID != 1 {
		t.Fatalf("product id = %d, want 1", p.ID)
	}

	steps := []struct {
		path  string
		body  string
		wants orders.Status
	}{
		{"/processing", "", orders.StatusProcessing},
		{"/ship", `{"tracking_info":"TRACK-1"}`, orders.StatusShipped},
		{"/in-delivery", "", orders.StatusInDelivery},
		{"/delivered", "", orders.StatusDelivered},
	}
	base := srv.URL + "/orders/1"
	for _, s := range steps {
		resp = do(t, http.MethodPost, base+s.path, "s1", s.body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status %d", s.path, resp.StatusCode)
		}
		got := decode[struct {
			Status orders.Status `json:"status"`
		}](t, resp)
		if got.Status != s.wants {
			t.Fatalf("%s: status = %s, want %s", s.path, got.Status, s.wants)
		}
	}

	resp = do(t, http.MethodPost, base+"/confirm", "b1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm: status %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, base+"/claim", "s1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim: status %d", resp.StatusCode)
	}
	rec := decode[struct {
		Claimed  bool `json:"claimed"`
		Released bool `json:"released"`
	}](t, resp)
	if !rec.Claimed || !rec.Released {
		t.Fatalf("claim result = %+v, want claimed and released", rec)
	}
}

func TestCreateOrderErrors(t *testing.T) {
	srv, svc := newServer(t)
	if _, err := svc.CreateProduct(context.Background(), "s1", "widget", 100, 5); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	cases := []struct {
		name  string
		actor string
		body  string
		want  int
	}{
		{"no actor", "", `{"items":[{"product_id":1,"qty":1}],"shipping_address":"a","payment_cents":600}`, http.StatusUnauthorized},
		{"bad json", "b1", `{`, http.StatusBadRequest},
		{"payment mismatch", "b1", `{"items":[{"product_id":1,"qty":1}],"shipping_address":"a","payment_cents":1}`, http.StatusUnprocessableEntity},
		{"unknown product", "b1", `{"items":[{"product_id":99,"qty":1}],"shipping_address":"a","payment_cents":600}`, http.StatusNotFound},
		{"too much stock", "b1", `{"items":[{"product_id":1,"qty":9}],"shipping_address":"a","payment_cents":1400}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, srv.URL+"/orders", tc.actor, tc.body)
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestTransitionConflictsOverHTTP(t *testing.T) {
	srv, svc := newServer(t)
	ctx := context.Background()
	if _, err := svc.CreateProduct(ctx, "s1", "widget", 100, 5); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if _, err := svc.CreateOrder(ctx, "b1", "", []orders.ItemInput{{ProductID: 1, Qty: 1}}, "12 Main St", 600); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	// skipping straight to delivered is a state conflict
	resp := do(t, http.MethodPost, srv.URL+"/orders/1/delivered", "s1", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("delivered from PAID: status %d, want 409", resp.StatusCode)
	}

	// wrong actor on a valid transition is forbidden
	resp = do(t, http.MethodPost, srv.URL+"/orders/1/processing", "intruder", "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("processing as intruder: status %d, want 403", resp.StatusCode)
	}
}

func TestAdminEndpoints(t *testing.T) {
	srv, _ := newServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/admin/pause", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("pause without token: status %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/admin/pause", nil)
	req.Header.Set("X-Admin-Token", "hunter2")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("pause with token: status %d", resp2.StatusCode)
	}

	// paused market rejects writes
	resp = do(t, http.MethodPost, srv.URL+"/products", "s1", `{"name":"w","price_cents":1,"stock":1}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("create product while paused: status %d, want 409", resp.StatusCode)
	}
}
