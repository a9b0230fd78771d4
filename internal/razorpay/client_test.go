package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateOrder_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/orders" {
			t.Fatalf("path = %s, want /v1/orders", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key_id" || pass != "key_secret" {
			t.Fatalf("unexpected basic auth: %q %q %v", user, pass, ok)
		}

		var req OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Amount != 2000 || req.Notes["packageId"] != "growth" {
			t.Fatalf("unexpected request: %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Order{ID: "order_1", Amount: req.Amount, Currency: req.Currency, Status: "created"})
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "key_id", "key_secret")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	order, err := client.CreateOrder(ctx, OrderRequest{
		Amount:   2000,
		Currency: "USD",
		Receipt:  "rcpt_1",
		Notes:    Notes{"packageId": "growth"},
	})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if order.ID != "order_1" || order.Amount != 2000 {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestCreateOrder_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "id", "secret")

	_, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 100, Currency: "USD"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestCreateOrder_RejectsZeroAmount(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "id", "secret")

	if _, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 0}); err == nil {
		t.Fatalf("expected error for zero amount")
	}
}

func TestGetOrderPayments_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orders/order_1/payments" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entity":"collection","count":1,"items":[
			{"id":"pay_1","order_id":"order_1","amount":2000,"currency":"USD","status":"captured","notes":[]}
		]}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "id", "secret")

	items, code, retry, err := client.GetOrderPayments(context.Background(), "order_1")
	if err != nil {
		t.Fatalf("GetOrderPayments error: %v", err)
	}
	if code != http.StatusOK || retry != 0 {
		t.Fatalf("code = %d, retry = %v", code, retry)
	}
	if len(items) != 1 || !items[0].Captured() || items[0].ID != "pay_1" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestGetOrderPayments_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "id", "secret")

	items, code, retry, err := client.GetOrderPayments(context.Background(), "order_1")
	if err != nil {
		t.Fatalf("GetOrderPayments error: %v", err)
	}
	if items != nil {
		t.Fatalf("expected no items for 429")
	}
	if code != http.StatusTooManyRequests || retry != 3*time.Second {
		t.Fatalf("code = %d, retry = %v", code, retry)
	}
}

func TestNotes_Unmarshal(t *testing.T) {
	var n Notes
	if err := json.Unmarshal([]byte(`{"userId":"42","credits":3000}`), &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n["userId"] != "42" || n["credits"] != "3000" {
		t.Fatalf("unexpected notes: %v", n)
	}

	if err := json.Unmarshal([]byte(`[]`), &n); err != nil || len(n) != 0 {
		t.Fatalf("empty array notes: %v %v", n, err)
	}
}
