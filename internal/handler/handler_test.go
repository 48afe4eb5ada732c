package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"freight-bidding-api/internal/database"
	"freight-bidding-api/internal/middleware"
	"freight-bidding-api/internal/models"
	"freight-bidding-api/internal/service"
)

func setupTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewHandlerWithOptions(service.NewService(db, service.Options{}), NewHandlerOptions{MaxBodySize: 4 << 10})

	r := chi.NewRouter()
	h.Register(r)
	return r
}

func newActor(role models.Role) models.Actor {
	return models.Actor{ID: uuid.New().String(), Role: role}
}

func doRequest(t *testing.T, r http.Handler, method, path string, who models.Actor, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who.ID != "" {
		req.Header.Set(middleware.HeaderUserID, who.ID)
		req.Header.Set(middleware.HeaderUserRole, string(who.Role))
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func registerPartner(t *testing.T, r http.Handler, partner models.Actor, recharge string) {
	t.Helper()

	rr := doRequest(t, r, http.MethodPut, "/partners/capabilities", partner, models.PartnerCapability{
		CompanyName:      "Sahyadri Roadways",
		SubscriptionTier: models.TierStandard,
		ServiceStates:    []string{"Maharashtra", " "},
		FleetTypes:       []models.VehicleType{models.VehicleTruck},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200 registering partner, got %d: %s", rr.Code, rr.Body.String())
	}

	if recharge != "" {
		rr = doRequest(t, r, http.MethodPost, "/wallet/recharge", partner, map[string]string{
			"amount":         recharge,
			"payment_method": "NEFT",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected status 200 recharging, got %d: %s", rr.Code, rr.Body.String())
		}
	}
}

func quoteBody() models.SubmitQuoteRequest {
	return models.SubmitQuoteRequest{
		CargoName:             "  Steel coils  ",
		Quantity:              decimal.NewFromInt(20),
		QuantityUnit:          "MT",
		PickupCity:            "Mumbai",
		PickupState:           "Maharashtra",
		DeliveryCity:          "Pune",
		DeliveryState:         "Maharashtra",
		PreferredVehicleTypes: []models.VehicleType{models.VehicleTruck},
		CargoReadyDate:        time.Now().Add(24 * time.Hour),
	}
}

func offerBody(quoteID string, price int64) models.SubmitOfferRequest {
	return models.SubmitOfferRequest{
		QuoteID:             quoteID,
		Price:               decimal.NewFromInt(price),
		TransitDays:         2,
		OfferValidUntil:     time.Now().Add(48 * time.Hour),
		PickupAvailableFrom: time.Now().Add(24 * time.Hour),
	}
}

func TestHealthCheck(t *testing.T) {
	r := setupTestRouter(t)

	rr := doRequest(t, r, http.MethodGet, "/health", models.Actor{}, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if rr.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", rr.Body.String())
	}
}

func TestBiddingFlow(t *testing.T) {
	r := setupTestRouter(t)
	trader := newActor(models.RoleTrader)
	p1 := newActor(models.RolePartner)
	p2 := newActor(models.RolePartner)
	registerPartner(t, r, p1, "1000")
	registerPartner(t, r, p2, "1000")

	rr := doRequest(t, r, http.MethodPost, "/quotes", trader, quoteBody())
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var submitted models.SubmitQuoteResponse
	decodeBody(t, rr, &submitted)
	if submitted.MatchedPartners != 2 {
		t.Errorf("Expected 2 matched partners, got %d", submitted.MatchedPartners)
	}
	if submitted.Quote.CargoName != "Steel coils" {
		t.Errorf("Expected sanitized cargo name, got %q", submitted.Quote.CargoName)
	}
	quoteID := submitted.Quote.ID

	rr = doRequest(t, r, http.MethodGet, "/quotes/"+quoteID+"/lead-cost", p1, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var est models.LeadCostEstimate
	decodeBody(t, rr, &est)
	if !est.LeadCost.Equal(decimal.RequireFromString("510")) {
		t.Errorf("Expected lead cost 510, got %s", est.LeadCost)
	}

	rr = doRequest(t, r, http.MethodPost, "/offers", p1, offerBody(quoteID, 45000))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = doRequest(t, r, http.MethodPost, "/offers", p2, offerBody(quoteID, 42000))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var cheap models.Offer
	decodeBody(t, rr, &cheap)

	rr = doRequest(t, r, http.MethodPost, "/offers", p2, offerBody(quoteID, 41000))
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for duplicate offer, got %d", rr.Code)
	}

	rr = doRequest(t, r, http.MethodGet, "/offers?quote_id="+quoteID, trader, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var offers []models.Offer
	decodeBody(t, rr, &offers)
	if len(offers) != 2 || offers[0].ID != cheap.ID {
		t.Errorf("Expected cheapest offer first, got %+v", offers)
	}

	rr = doRequest(t, r, http.MethodPost, "/quotes/"+quoteID+"/select", trader, models.SelectOfferRequest{OfferID: cheap.ID})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res models.SelectionResult
	decodeBody(t, rr, &res)
	if res.Quote.Status != models.QuoteSelected || res.Shipment.ID == "" {
		t.Errorf("Unexpected selection result: %+v", res)
	}

	rr = doRequest(t, r, http.MethodPost, "/quotes/"+quoteID+"/select", trader, models.SelectOfferRequest{OfferID: cheap.ID})
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for second selection, got %d", rr.Code)
	}

	rr = doRequest(t, r, http.MethodGet, "/wallet", p2, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var wallet models.WalletResponse
	decodeBody(t, rr, &wallet)
	if !wallet.Wallet.Balance.Equal(decimal.RequireFromString("490")) {
		t.Errorf("Expected balance 490, got %s", wallet.Wallet.Balance)
	}
	if !wallet.IsLowBalance || len(wallet.Transactions) != 2 {
		t.Errorf("Unexpected wallet response: %+v", wallet)
	}

	rr = doRequest(t, r, http.MethodGet, "/shipments/"+res.Shipment.ID, trader, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 for shipment, got %d", rr.Code)
	}
	rr = doRequest(t, r, http.MethodGet, "/shipments/"+res.Shipment.ID, p1, nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for losing partner, got %d", rr.Code)
	}

	admin := newActor(models.RoleAdmin)
	rr = doRequest(t, r, http.MethodPatch, "/shipments/"+res.Shipment.ID, admin, models.ShipmentUpdateRequest{
		Status: models.ShipmentPickedUp,
	})
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 updating shipment, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSubmitOffer_InsufficientFunds(t *testing.T) {
	r := setupTestRouter(t)
	trader := newActor(models.RoleTrader)
	partner := newActor(models.RolePartner)
	registerPartner(t, r, partner, "")

	rr := doRequest(t, r, http.MethodPost, "/quotes", trader, quoteBody())
	var submitted models.SubmitQuoteResponse
	decodeBody(t, rr, &submitted)

	rr = doRequest(t, r, http.MethodPost, "/offers", partner, offerBody(submitted.Quote.ID, 42000))
	if rr.Code != http.StatusPaymentRequired {
		t.Errorf("Expected status 402, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestErrorMapping(t *testing.T) {
	r := setupTestRouter(t)
	trader := newActor(models.RoleTrader)
	partner := newActor(models.RolePartner)

	tests := []struct {
		name   string
		method string
		path   string
		who    models.Actor
		body   any
		want   int
	}{
		{"missing identity", http.MethodGet, "/wallet", models.Actor{}, nil, http.StatusBadRequest},
		{"unknown role", http.MethodGet, "/wallet", models.Actor{ID: uuid.New().String(), Role: "GUEST"}, nil, http.StatusBadRequest},
		{"trader wallet", http.MethodGet, "/wallet", trader, nil, http.StatusForbidden},
		{"partner quote", http.MethodPost, "/quotes", partner, quoteBody(), http.StatusForbidden},
		{"unknown quote", http.MethodGet, "/quotes/" + uuid.New().String(), trader, nil, http.StatusNotFound},
		{"malformed quote id", http.MethodGet, "/quotes/not-a-uuid", trader, nil, http.StatusBadRequest},
		{"uppercase quote id", http.MethodGet, "/quotes/" + strings.ToUpper(uuid.New().String()), trader, nil, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/offers", partner, nil, http.StatusBadRequest},
		{"invalid json", http.MethodPost, "/offers", partner, "{", http.StatusBadRequest},
		{"body too large", http.MethodPost, "/quotes", trader, `{"cargo_name":"` + strings.Repeat("x", 8<<10) + `"}`, http.StatusRequestEntityTooLarge},
		{"recharge too large", http.MethodPost, "/wallet/recharge", partner, map[string]string{"amount": "2000000"}, http.StatusBadRequest},
		{"no capabilities", http.MethodGet, "/partners/capabilities", partner, nil, http.StatusNotFound},
		{"non-admin shipment update", http.MethodPatch, "/shipments/" + uuid.New().String(), trader, models.ShipmentUpdateRequest{Status: models.ShipmentDelivered}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, r, tt.method, tt.path, tt.who, tt.body)
			if rr.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}

			var resp models.ErrorResponse
			decodeBody(t, rr, &resp)
			if resp.Error == "" {
				t.Error("Expected an error message")
			}
		})
	}
}

func TestWithdrawOffer(t *testing.T) {
	r := setupTestRouter(t)
	trader := newActor(models.RoleTrader)
	partner := newActor(models.RolePartner)
	registerPartner(t, r, partner, "500")

	rr := doRequest(t, r, http.MethodPost, "/quotes", trader, quoteBody())
	var submitted models.SubmitQuoteResponse
	decodeBody(t, rr, &submitted)

	rr = doRequest(t, r, http.MethodPost, "/offers", partner, offerBody(submitted.Quote.ID, 42000))
	var offer models.Offer
	decodeBody(t, rr, &offer)

	rr = doRequest(t, r, http.MethodPost, "/offers/"+offer.ID+"/withdraw", partner, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, r, http.MethodPost, "/offers/"+offer.ID+"/withdraw", partner, nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409 on repeat withdrawal, got %d", rr.Code)
	}

	rr = doRequest(t, r, http.MethodGet, "/offers?status=withdrawn", partner, nil)
	var offers []models.Offer
	decodeBody(t, rr, &offers)
	if len(offers) != 1 || offers[0].Status != models.OfferWithdrawn {
		t.Errorf("Expected one withdrawn offer, got %+v", offers)
	}
}
