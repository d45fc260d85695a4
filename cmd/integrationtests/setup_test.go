package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	auction "auction-engine/internal/auctionService"
	"auction-engine/internal/events"
	"auction-engine/internal/ledger"
	model "auction-engine/internal/models"
	"auction-engine/internal/server"

	"github.com/gin-gonic/gin"
)

// SetupTestRouter initializes the router with an in-memory ledger for
// integration testing. The returned bus must be closed by the caller.
func SetupTestRouter(t *testing.T) (*gin.Engine, *ledger.MemoryLedger, *events.Bus) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := ledger.NewMemoryLedger()
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	service := auction.NewAuctionService(store, bus, auction.DefaultConfig())
	router := server.SetupRouter(service, bus)
	return router, store, bus
}

// SetupTestRouterWithAuctions initializes the router and seeds the ledger
// with auctions, bypassing the listing validation of the service layer.
func SetupTestRouterWithAuctions(t *testing.T, auctions ...model.Auction) (*gin.Engine, *ledger.MemoryLedger) {
	t.Helper()
	router, store, _ := SetupTestRouter(t)
	for _, a := range auctions {
		if a.Status == "" {
			a.Status = model.StatusActive
		}
		if a.CurrentPrice == 0 {
			a.CurrentPrice = a.StartingPrice
		}
		if _, err := store.CreateAuction(a); err != nil {
			t.Fatalf("failed to seed auction %s: %v", a.AuctionID, err)
		}
	}
	return router, store
}

// ExecuteRequest executes an HTTP request and returns the response recorder.
func ExecuteRequest(t *testing.T, router *gin.Engine, method, url string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ExecuteRequestAndParse executes an HTTP request on the given router and parses the response
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	case nil:
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		if err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}

		if data, ok := resp["data"].(map[string]any); ok && w.Code < 300 {
			resp = data
		}
	}

	return resp, w
}
