package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"kpitrack/internal/app/server"
	"kpitrack/internal/platform/config"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error any             `json:"error"`
}

func testConfig(dbURL string) config.Config {
	return config.Config{
		DatabaseURL:        dbURL,
		JWTSecret:          "test-secret",
		Environment:        "test",
		SeedAdminEmail:     "admin@test.local",
		SeedAdminPassword:  "ChangeMe123!",
		EmailFrom:          "no-reply@test.local",
		RunMigrations:      true,
		RunSeed:            true,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 1000,
	}
}

func TestCaptureApproveReportJourney(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	app, err := server.New(context.Background(), testConfig(dbURL))
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()

	client := ts.Client()
	token := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")

	suffix := time.Now().UnixNano()
	directorPos := createPosition(t, client, ts.URL, token, fmt.Sprintf("Director %d", suffix), 0)
	cashierPos := createPosition(t, client, ts.URL, token, fmt.Sprintf("Cashier %d", suffix), directorPos)

	kpiID := createKPI(t, client, ts.URL, token, fmt.Sprintf("Revenue %d", suffix))
	replaceAssignments(t, client, ts.URL, token, cashierPos, map[string]string{
		fmt.Sprintf("%d", kpiID): "100",
	})

	employeeID := createEmployee(t, client, ts.URL, token, fmt.Sprintf("journey-%d@example.com", suffix), cashierPos)

	const year, month = 2025, 6

	record := capture(t, client, ts.URL, token, employeeID, kpiID, "", map[string]any{
		"year": year, "month": month, "value": "85",
	})
	if record["grade"] != "green" {
		t.Fatalf("expected grade green for 85 against thresholds 50/80, got %v", record["grade"])
	}
	if score, _ := record["score"].(float64); score != 100 {
		t.Fatalf("expected score 100, got %v", record["score"])
	}

	record = postLifecycle(t, client, ts.URL, token, employeeID, kpiID, "approve", map[string]any{
		"year": year, "month": month,
	})
	if approved, _ := record["approved"].(bool); !approved {
		t.Fatal("expected result to be approved")
	}

	record = postLifecycle(t, client, ts.URL, token, employeeID, kpiID, "send-to-review", map[string]any{
		"year": year, "month": month, "reason": "please double-check the source numbers",
	})
	if approved, _ := record["approved"].(bool); approved {
		t.Fatal("expected approval to be cleared by send-to-review")
	}
	if record["reviewReason"] == nil {
		t.Fatal("expected review reason to be recorded")
	}

	report := getJSON(t, client, ts.URL, token, fmt.Sprintf("/api/v1/reports/position-score?positionId=%d&year=%d&month=%d", cashierPos, year, month))
	var parsed struct {
		Rows []struct {
			EmployeeID  int64 `json:"employeeId"`
			Aggregation struct {
				Total   float64 `json:"total"`
				Counted int     `json:"counted"`
			} `json:"aggregation"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(report, &parsed); err != nil {
		t.Fatalf("failed to parse report: %v", err)
	}
	if len(parsed.Rows) != 1 {
		t.Fatalf("expected one report row, got %d", len(parsed.Rows))
	}
	if parsed.Rows[0].Aggregation.Total != 100 {
		t.Fatalf("expected weighted total 100, got %v", parsed.Rows[0].Aggregation.Total)
	}

	resp := doRequest(t, client, http.MethodGet, ts.URL+fmt.Sprintf("/api/v1/reports/export.xlsx?year=%d&month=%d", year, month), token, nil, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected xlsx export to succeed, got %d", resp.StatusCode)
	}
	content, _ := io.ReadAll(resp.Body)
	if len(content) == 0 {
		t.Fatal("expected non-empty workbook")
	}
}

func TestCaptureIdempotencyReplay(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	app, err := server.New(context.Background(), testConfig(dbURL))
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()

	client := ts.Client()
	token := login(t, client, ts.URL, "admin@test.local", "ChangeMe123!")

	suffix := time.Now().UnixNano()
	posID := createPosition(t, client, ts.URL, token, fmt.Sprintf("Analyst %d", suffix), 0)
	kpiID := createKPI(t, client, ts.URL, token, fmt.Sprintf("Margin %d", suffix))
	replaceAssignments(t, client, ts.URL, token, posID, map[string]string{fmt.Sprintf("%d", kpiID): "100"})
	employeeID := createEmployee(t, client, ts.URL, token, fmt.Sprintf("idem-%d@example.com", suffix), posID)

	key := fmt.Sprintf("idem-%d", suffix)
	payload := map[string]any{"year": 2025, "month": 6, "value": "60"}

	first := capture(t, client, ts.URL, token, employeeID, kpiID, key, payload)
	second := capture(t, client, ts.URL, token, employeeID, kpiID, key, payload)
	if first["id"] != second["id"] {
		t.Fatalf("expected idempotent replay to return the same record, got %v and %v", first["id"], second["id"])
	}

	conflicting := map[string]any{"year": 2025, "month": 6, "value": "70"}
	body, _ := json.Marshal(conflicting)
	resp := doRequest(t, client, http.MethodPost, ts.URL+fmt.Sprintf("/api/v1/results/%d/%d", employeeID, kpiID), token, bytes.NewReader(body), key)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict for reused key with different payload, got %d", resp.StatusCode)
	}
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp := doRequest(t, client, http.MethodPost, baseURL+"/api/v1/auth/login", "", bytes.NewReader(body), "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed with status %d", resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("login returned no token: %v", err)
	}
	return data.Token
}

func createPosition(t *testing.T, client *http.Client, baseURL, token, name string, reportsTo int64) int64 {
	t.Helper()
	payload := map[string]any{"name": name, "reportsTo": reportsTo}
	data := postJSON(t, client, baseURL+"/api/v1/positions", token, payload, http.StatusCreated)
	var out struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &out); err != nil || out.ID == 0 {
		t.Fatalf("position create returned no id: %v", err)
	}
	return out.ID
}

func createKPI(t *testing.T, client *http.Client, baseURL, token, name string) int64 {
	t.Helper()
	payload := map[string]any{
		"name":            name,
		"target":          "80",
		"unit":            "%",
		"scoreType":       "NUMBER",
		"direction":       "HIGHER_BETTER",
		"thresholdYellow": 50,
		"thresholdGreen":  80,
	}
	data := postJSON(t, client, baseURL+"/api/v1/kpis", token, payload, http.StatusCreated)
	var out struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &out); err != nil || out.ID == 0 {
		t.Fatalf("kpi create returned no id: %v", err)
	}
	return out.ID
}

func replaceAssignments(t *testing.T, client *http.Client, baseURL, token string, positionID int64, weights map[string]string) {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"weights": weights})
	resp := doRequest(t, client, http.MethodPut, baseURL+fmt.Sprintf("/api/v1/positions/%d/assignments", positionID), token, bytes.NewReader(body), "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assignment replace failed with status %d", resp.StatusCode)
	}
}

func createEmployee(t *testing.T, client *http.Client, baseURL, token, email string, positionID int64) int64 {
	t.Helper()
	payload := map[string]any{"name": "Journey Employee", "email": email, "positionId": positionID}
	data := postJSON(t, client, baseURL+"/api/v1/employees", token, payload, http.StatusCreated)
	var out struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &out); err != nil || out.ID == 0 {
		t.Fatalf("employee create returned no id: %v", err)
	}
	return out.ID
}

func capture(t *testing.T, client *http.Client, baseURL, token string, employeeID, kpiID int64, idempotencyKey string, payload map[string]any) map[string]any {
	t.Helper()
	body, _ := json.Marshal(payload)
	resp := doRequest(t, client, http.MethodPost, baseURL+fmt.Sprintf("/api/v1/results/%d/%d", employeeID, kpiID), token, bytes.NewReader(body), idempotencyKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("capture failed with status %d", resp.StatusCode)
	}
	return decodeRecord(t, resp)
}

func postLifecycle(t *testing.T, client *http.Client, baseURL, token string, employeeID, kpiID int64, action string, payload map[string]any) map[string]any {
	t.Helper()
	body, _ := json.Marshal(payload)
	resp := doRequest(t, client, http.MethodPost, baseURL+fmt.Sprintf("/api/v1/results/%d/%d/%s", employeeID, kpiID, action), token, bytes.NewReader(body), "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s failed with status %d", action, resp.StatusCode)
	}
	return decodeRecord(t, resp)
}

func decodeRecord(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(env.Data, &record); err != nil {
		t.Fatalf("failed to decode record: %v", err)
	}
	return record
}

func postJSON(t *testing.T, client *http.Client, url, token string, payload map[string]any, wantStatus int) json.RawMessage {
	t.Helper()
	body, _ := json.Marshal(payload)
	resp := doRequest(t, client, http.MethodPost, url, token, bytes.NewReader(body), "")
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("POST %s: expected status %d, got %d: %s", url, wantStatus, resp.StatusCode, raw)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env.Data
}

func getJSON(t *testing.T, client *http.Client, baseURL, token, path string) json.RawMessage {
	t.Helper()
	resp := doRequest(t, client, http.MethodGet, baseURL+path, token, nil, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: expected status 200, got %d", path, resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env.Data
}

func doRequest(t *testing.T, client *http.Client, method, url, token string, body io.Reader, idempotencyKey string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}
