// smoke-tracker runs an end-to-end scenario against a live API instance:
// issue identity proofs, register a product, hand it to a carrier, append
// events and verify the queries see them.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"chainlogistics.org/internal/tracking"
)

var base string

func main() {
	base = os.Getenv("CHAINLOG_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	productID := fmt.Sprintf("SMOKE-%d", rand.New(rand.NewSource(time.Now().UnixNano())).Intn(1_000_000))
	ownerToken := obtainToken("GSMOKE_OWNER")
	carrierToken := obtainToken("GSMOKE_CARRIER")

	var product tracking.Product
	request(http.MethodPost, "/v1/products", ownerToken, map[string]any{
		"id":              productID,
		"name":            "Smoke Test Crate",
		"description":     "Synthetic crate for smoke runs",
		"origin_location": "Warehouse 12",
		"category":        "smoke",
	}, http.StatusCreated, &product)
	if product.Owner != "GSMOKE_OWNER" || !product.Active {
		log.Fatalf("unexpected product after register: %+v", product)
	}

	request(http.MethodPost, "/v1/products/"+productID+"/actors", ownerToken,
		map[string]any{"actor": "GSMOKE_CARRIER"}, http.StatusCreated, nil)

	hash := strings.Repeat("ab", 32)
	var appended struct {
		EventID uint64 `json:"event_id"`
	}
	request(http.MethodPost, "/v1/products/"+productID+"/events", carrierToken, map[string]any{
		"event_type": "PICKED_UP",
		"location":   "Warehouse 12",
		"data_hash":  hash,
	}, http.StatusCreated, &appended)
	if appended.EventID == 0 {
		log.Fatal("append returned zero event id")
	}

	request(http.MethodPost, "/v1/products/"+productID+"/events", ownerToken, map[string]any{
		"event_type": "DELIVERED",
		"location":   "Customer Dock",
		"data_hash":  hash,
	}, http.StatusCreated, nil)

	var page tracking.EventPage
	request(http.MethodGet, "/v1/products/"+productID+"/events", "", nil, http.StatusOK, &page)
	if page.TotalCount != 2 || len(page.Events) != 2 {
		log.Fatalf("expected 2 events, got %+v", page)
	}
	if page.Events[0].EventType != "PICKED_UP" || page.Events[1].EventType != "DELIVERED" {
		log.Fatalf("events out of order: %+v", page.Events)
	}

	request(http.MethodGet, "/v1/products/"+productID+"/events?type=DELIVERED", "", nil, http.StatusOK, &page)
	if page.TotalCount != 1 || page.Events[0].Location != "Customer Dock" {
		log.Fatalf("typed query mismatch: %+v", page)
	}

	var stats tracking.Stats
	request(http.MethodGet, "/v1/stats", "", nil, http.StatusOK, &stats)
	if stats.TotalProducts == 0 || stats.ActiveProducts == 0 {
		log.Fatalf("stats did not move: %+v", stats)
	}

	request(http.MethodPost, "/v1/products/"+productID+"/deactivate", ownerToken,
		map[string]any{"reason": "smoke run complete"}, http.StatusOK, nil)
	request(http.MethodGet, "/v1/products/"+productID, "", nil, http.StatusOK, &product)
	if product.Active || product.Deactivation == nil {
		log.Fatalf("deactivation not recorded: %+v", product)
	}

	fmt.Printf("✅ tracker smoke test passed: product=%s events=%d\n", productID, page.TotalCount)
}

func obtainToken(address string) string {
	var resp struct {
		Token string `json:"token"`
	}
	request(http.MethodPost, "/v1/auth/token", "", map[string]any{"address": address}, http.StatusOK, &resp)
	if resp.Token == "" {
		log.Fatalf("empty token for %s", address)
	}
	return resp.Token
}

func request(method, path, token string, body any, wantStatus int, out any) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			log.Fatalf("marshal %s %s: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, base+path, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("new request %s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		log.Fatalf("%s %s: status %d, want %d", method, path, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
}
