// Package main runs end-to-end scenarios against a running bridge.
//
// Usage:
//
//	BRIDGE_BASE_URL=http://localhost:8080 BEARER_TOKEN=... CHEF_ID=12 go run scripts/e2e/run_e2e.go
//	BRIDGE_BASE_URL=... BEARER_TOKEN=... CHEF_ID=12 go run scripts/e2e/run_e2e.go quota
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

var (
	bridgeBase string
	token      string
	chefID     int64
	client     = &http.Client{Timeout: 30 * time.Second}
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
		return
	}
	fmt.Printf("    FAIL: %s\n", name)
	t.failed++
}

func call(method, path string, body any) (int, map[string]any) {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, bridgeBase+path, reader)
	if err != nil {
		return 0, nil
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("    request %s %s failed: %v\n", method, path, err)
		return 0, nil
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format("2006-01-02")
}

func newDraft(t *T, durationDays int) string {
	status, out := call(http.MethodPost, "/v1/drafts", map[string]any{
		"chefId":  chefID,
		"package": map[string]any{"id": 1, "durationDays": durationDays},
	})
	t.check("draft created", status == http.StatusCreated)
	id, _ := out["id"].(string)
	return id
}

func quotaScenario(t *T) {
	id := newDraft(t, 3)
	if id == "" {
		return
	}
	for i := 1; i <= 3; i++ {
		status, _ := call(http.MethodPost, "/v1/drafts/"+id+"/dates/"+futureDate(i)+"/toggle", nil)
		t.check("date "+strconv.Itoa(i)+" selected", status == http.StatusOK)
	}
	status, out := call(http.MethodPost, "/v1/drafts/"+id+"/dates/"+futureDate(4)+"/toggle", nil)
	t.check("fourth date rejected", status == http.StatusUnprocessableEntity)
	t.check("rejection carries a message", out["error"] != nil)

	_, view := call(http.MethodGet, "/v1/drafts/"+id, nil)
	sel, _ := view["selection"].(map[string]any)
	days, _ := sel["days"].([]any)
	t.check("selection still holds three days", len(days) == 3)
}

func durationMismatchScenario(t *T) {
	id := newDraft(t, 3)
	if id == "" {
		return
	}
	call(http.MethodPost, "/v1/drafts/"+id+"/dates/"+futureDate(1)+"/toggle", nil)
	call(http.MethodPost, "/v1/drafts/"+id+"/dates/"+futureDate(2)+"/toggle", nil)
	status, _ := call(http.MethodPost, "/v1/drafts/"+id+"/calculate", map[string]any{"guestCount": 2, "address": "1 Main St"})
	t.check("incomplete draft not priced", status == http.StatusUnprocessableEntity)
}

func menuExclusivityScenario(t *T) {
	id := newDraft(t, 1)
	if id == "" {
		return
	}
	date := futureDate(1)
	call(http.MethodPost, "/v1/drafts/"+id+"/dates/"+date+"/toggle", nil)

	_, menus := call(http.MethodGet, "/v1/drafts/"+id+"/menus", nil)
	list, _ := menus["menus"].([]any)
	_, dishes := call(http.MethodGet, "/v1/drafts/"+id+"/dates/"+date+"/dishes", nil)
	dishList, _ := dishes["dishes"].([]any)
	if len(list) == 0 || len(dishList) == 0 {
		fmt.Println("    SKIP: chef has no menus or dishes")
		return
	}
	menuID := int64(list[0].(map[string]any)["id"].(float64))
	dishID := int64(dishList[0].(map[string]any)["id"].(float64))

	call(http.MethodPost, fmt.Sprintf("/v1/drafts/%s/dates/%s/dishes/%d/toggle", id, date, dishID), nil)
	status, _ := call(http.MethodPost, fmt.Sprintf("/v1/drafts/%s/dates/%s/menu/%d/toggle", id, date, menuID), nil)
	t.check("menu rejected while dishes are selected", status == http.StatusConflict)
}

var scenarios = []scenario{
	{Name: "quota", Fn: quotaScenario},
	{Name: "duration-mismatch", Fn: durationMismatchScenario},
	{Name: "menu-exclusivity", Fn: menuExclusivityScenario},
}

func main() {
	bridgeBase = os.Getenv("BRIDGE_BASE_URL")
	token = os.Getenv("BEARER_TOKEN")
	chefID, _ = strconv.ParseInt(os.Getenv("CHEF_ID"), 10, 64)
	if bridgeBase == "" || token == "" || chefID == 0 {
		fmt.Println("BRIDGE_BASE_URL, BEARER_TOKEN and CHEF_ID are required")
		os.Exit(2)
	}

	only := ""
	if len(os.Args) > 1 {
		only = os.Args[1]
	}

	passed, failed := 0, 0
	for _, sc := range scenarios {
		if only != "" && sc.Name != only {
			continue
		}
		fmt.Printf("=== %s\n", sc.Name)
		t := &T{name: sc.Name}
		sc.Fn(t)
		passed += t.passed
		failed += t.failed
	}
	fmt.Printf("\n%d passed, %d failed\n", passed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
