package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stevemurr/simple-record-server/handler"
	"github.com/stevemurr/simple-record-server/log"
	"github.com/stevemurr/simple-record-server/record"
	"github.com/stevemurr/simple-record-server/store"
)

func TestMain(m *testing.M) {
	log.SetDisabled(true)
	os.Exit(m.Run())
}

func setup(t *testing.T) *httptest.Server {
	t.Helper()
	return setupWith(t, store.NewMemoryStore(), handler.Options{})
}

func setupWith(t *testing.T, s store.Store, opts handler.Options) *httptest.Server {
	t.Helper()
	h := handler.New(record.NewService(s, "counters"), opts)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func do(t *testing.T, method, url string, body []byte) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL, want, resp.StatusCode, body)
	}
}

func decodeJSON(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func decodeJSONArray(t *testing.T, r io.Reader) []map[string]any {
	t.Helper()
	var v []map[string]any
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := decodeJSON(t, resp.Body)
	e, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error object, got %v", body)
	}
	code, _ := e["code"].(string)
	return code
}

func create(t *testing.T, ts *httptest.Server, id string, value any) *http.Response {
	t.Helper()
	payload := map[string]any{"id": id}
	if value != nil {
		payload["value"] = value
	}
	return do(t, http.MethodPost, ts.URL+"/create", mustJSON(t, payload))
}

func TestHealth(t *testing.T) {
	ts := setup(t)
	resp := do(t, http.MethodGet, ts.URL+"/health", nil)
	expectStatus(t, resp, http.StatusOK)
	if body := decodeJSON(t, resp.Body); body["status"] != "healthy" {
		t.Fatalf("expected status=healthy, got %v", body["status"])
	}
}

func TestCreateThenRead(t *testing.T) {
	ts := setup(t)

	resp := create(t, ts, "a", nil)
	expectStatus(t, resp, http.StatusOK)
	body := decodeJSON(t, resp.Body)
	if body["id"] != "a" || body["message"] == "" {
		t.Fatalf("unexpected create response %v", body)
	}

	resp = do(t, http.MethodGet, ts.URL+"/read?id=a", nil)
	expectStatus(t, resp, http.StatusOK)
	got := decodeJSON(t, resp.Body)
	if got["id"] != "a" || got["value"] != float64(0) {
		t.Fatalf("expected {id:a value:0}, got %v", got)
	}
}

func TestCreateWithTextValue(t *testing.T) {
	ts := setup(t)
	expectStatus(t, create(t, ts, "idea-1", "build a birdhouse"), http.StatusOK)

	resp := do(t, http.MethodGet, ts.URL+"/read?id=idea-1", nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decodeJSON(t, resp.Body); got["value"] != "build a birdhouse" {
		t.Fatalf("expected idea text, got %v", got["value"])
	}
}

func TestCreateFromQuery(t *testing.T) {
	ts := setup(t)
	expectStatus(t, do(t, http.MethodPost, ts.URL+"/create?id=q", nil), http.StatusOK)
	expectStatus(t, do(t, http.MethodGet, ts.URL+"/read?id=q", nil), http.StatusOK)
}

func TestCreateDuplicate(t *testing.T) {
	ts := setup(t)
	expectStatus(t, create(t, ts, "a", float64(7)), http.StatusOK)

	resp := create(t, ts, "a", float64(100))
	expectStatus(t, resp, http.StatusConflict)
	if code := errorCode(t, resp); code != "conflict" {
		t.Fatalf("expected conflict code, got %q", code)
	}

	resp = do(t, http.MethodGet, ts.URL+"/read?id=a", nil)
	if got := decodeJSON(t, resp.Body); got["value"] != float64(7) {
		t.Fatalf("expected original value 7, got %v", got["value"])
	}
}

func TestCreateWithoutIDCreatesNothing(t *testing.T) {
	ts := setup(t)
	expectStatus(t, create(t, ts, "existing", nil), http.StatusOK)

	resp := do(t, http.MethodPost, ts.URL+"/create", mustJSON(t, map[string]any{"value": 3}))
	expectStatus(t, resp, http.StatusBadRequest)
	if code := errorCode(t, resp); code != "invalid_request" {
		t.Fatalf("expected invalid_request, got %q", code)
	}

	resp = do(t, http.MethodGet, ts.URL+"/all", nil)
	if items := decodeJSONArray(t, resp.Body); len(items) != 1 {
		t.Fatalf("expected 1 record, got %d", len(items))
	}
}

func TestCreateInvalidJSON(t *testing.T) {
	ts := setup(t)
	resp := do(t, http.MethodPost, ts.URL+"/create", []byte(`{"id":`))
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestMissingRecord(t *testing.T) {
	ts := setup(t)

	expectStatus(t, do(t, http.MethodGet, ts.URL+"/read?id=ghost", nil), http.StatusNotFound)
	expectStatus(t, do(t, http.MethodPut, ts.URL+"/update?id=ghost", mustJSON(t, map[string]any{"value": 1})), http.StatusNotFound)
	expectStatus(t, do(t, http.MethodPut, ts.URL+"/increment?id=ghost", nil), http.StatusNotFound)
	resp := do(t, http.MethodDelete, ts.URL+"/delete?id=ghost", nil)
	expectStatus(t, resp, http.StatusNotFound)
	if code := errorCode(t, resp); code != "not_found" {
		t.Fatalf("expected not_found, got %q", code)
	}

	resp = do(t, http.MethodGet, ts.URL+"/all", nil)
	if items := decodeJSONArray(t, resp.Body); len(items) != 0 {
		t.Fatalf("expected no records, got %d", len(items))
	}
}

func TestMissingID(t *testing.T) {
	ts := setup(t)

	expectStatus(t, do(t, http.MethodGet, ts.URL+"/read", nil), http.StatusBadRequest)
	expectStatus(t, do(t, http.MethodPut, ts.URL+"/update", mustJSON(t, map[string]any{"value": 1})), http.StatusBadRequest)
	expectStatus(t, do(t, http.MethodDelete, ts.URL+"/delete", nil), http.StatusBadRequest)
}

func TestUpdateThenRead(t *testing.T) {
	ts := setup(t)
	expectStatus(t, create(t, ts, "a", nil), http.StatusOK)

	resp := do(t, http.MethodPut, ts.URL+"/update?id=a", mustJSON(t, map[string]any{"value": 5}))
	expectStatus(t, resp, http.StatusOK)
	if body := decodeJSON(t, resp.Body); body["id"] != "a" {
		t.Fatalf("expected id=a, got %v", body)
	}

	resp = do(t, http.MethodGet, ts.URL+"/read?id=a", nil)
	if got := decodeJSON(t, resp.Body); got["value"] != float64(5) {
		t.Fatalf("expected value 5, got %v", got["value"])
	}
}

func TestUpdateRequiresValue(t *testing.T) {
	ts := setup(t)
	expectStatus(t, create(t, ts, "a", nil), http.StatusOK)

	expectStatus(t, do(t, http.MethodPut, ts.URL+"/update?id=a", nil), http.StatusBadRequest)
	expectStatus(t, do(t, http.MethodPut, ts.URL+"/update?id=a", mustJSON(t, map[string]any{"value": []int{1}})), http.StatusBadRequest)
}

func TestIncrement(t *testing.T) {
	ts := setup(t)
	expectStatus(t, create(t, ts, "c", float64(41)), http.StatusOK)

	resp := do(t, http.MethodPut, ts.URL+"/increment?id=c", nil)
	expectStatus(t, resp, http.StatusOK)
	if body := decodeJSON(t, resp.Body); body["value"] != float64(42) {
		t.Fatalf("expected value 42, got %v", body["value"])
	}

	expectStatus(t, create(t, ts, "idea", "text"), http.StatusOK)
	expectStatus(t, do(t, http.MethodPut, ts.URL+"/increment?id=idea", nil), http.StatusBadRequest)
}

func TestDeleteThenRead(t *testing.T) {
	ts := setup(t)
	expectStatus(t, create(t, ts, "a", nil), http.StatusOK)

	resp := do(t, http.MethodDelete, ts.URL+"/delete?id=a", nil)
	expectStatus(t, resp, http.StatusOK)
	if body := decodeJSON(t, resp.Body); body["id"] != "a" {
		t.Fatalf("expected id=a, got %v", body)
	}
	expectStatus(t, do(t, http.MethodGet, ts.URL+"/read?id=a", nil), http.StatusNotFound)
}

func TestListAll(t *testing.T) {
	ts := setup(t)

	resp := do(t, http.MethodGet, ts.URL+"/all", nil)
	expectStatus(t, resp, http.StatusOK)
	if items := decodeJSONArray(t, resp.Body); len(items) != 0 {
		t.Fatalf("expected empty list, got %d", len(items))
	}

	for _, id := range []string{"one", "two", "three"} {
		expectStatus(t, create(t, ts, id, nil), http.StatusOK)
	}
	do(t, http.MethodPut, ts.URL+"/update?id=one", mustJSON(t, map[string]any{"value": "x"}))

	resp = do(t, http.MethodGet, ts.URL+"/all", nil)
	items := decodeJSONArray(t, resp.Body)
	if len(items) != 3 {
		t.Fatalf("expected 3 records, got %d", len(items))
	}
	for i, want := range []string{"three", "two", "one"} {
		if items[i]["id"] != want {
			t.Fatalf("position %d: expected %q, got %v", i, want, items[i]["id"])
		}
	}
	if items[2]["value"] != "x" {
		t.Fatalf("expected updated value, got %v", items[2]["value"])
	}
}

func TestTrailingSlash(t *testing.T) {
	ts := setup(t)
	expectStatus(t, create(t, ts, "a", nil), http.StatusOK)
	expectStatus(t, do(t, http.MethodGet, ts.URL+"/read/?id=a", nil), http.StatusOK)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := setup(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/create"},
		{http.MethodPost, "/read"},
		{http.MethodDelete, "/update"},
		{http.MethodPatch, "/update"},
		{http.MethodPost, "/all"},
		{http.MethodGet, "/delete"},
		{http.MethodGet, "/nothing-here"},
		{http.MethodPost, "/"},
		{http.MethodGet, "/"}, // no static dir configured
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := do(t, tt.method, ts.URL+tt.path, nil)
			expectStatus(t, resp, http.StatusMethodNotAllowed)
			if ct := resp.Header.Get("Content-Type"); ct != "text/plain" {
				t.Fatalf("expected text/plain, got %q", ct)
			}
			body, _ := io.ReadAll(resp.Body)
			if string(body) != "Method Not Allowed" {
				t.Fatalf("expected body %q, got %q", "Method Not Allowed", body)
			}
		})
	}
}

func TestOptionsPreflight(t *testing.T) {
	ts := setup(t)
	for _, path := range []string{"/create", "/anything/at/all"} {
		resp := do(t, http.MethodOptions, ts.URL+path, nil)
		expectStatus(t, resp, http.StatusOK)
		body, _ := io.ReadAll(resp.Body)
		if len(body) != 0 {
			t.Fatalf("expected empty body, got %q", body)
		}
		if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
			t.Fatalf("expected wildcard CORS header, got %q", resp.Header.Get("Access-Control-Allow-Origin"))
		}
	}
}

func TestCORSAllowedOrigins(t *testing.T) {
	ts := setupWith(t, store.NewMemoryStore(), handler.Options{AllowedOrigins: []string{"https://ok.example"}})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/all", nil)
	req.Header.Set("Origin", "https://ok.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://ok.example" {
		t.Fatalf("expected echoed origin, got %q", got)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/all", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header, got %q", got)
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Counters</h1>"), 0o644)
	os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log('hi')"), 0o644)
	ts := setupWith(t, store.NewMemoryStore(), handler.Options{StaticDir: dir})

	for _, path := range []string{"/", "/client", "/client/", "/index.html"} {
		resp := do(t, http.MethodGet, ts.URL+path, nil)
		expectStatus(t, resp, http.StatusOK)
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "<h1>Counters</h1>" {
			t.Fatalf("%s: expected index, got %q", path, body)
		}
	}

	for _, path := range []string{"/app.js", "/client/app.js"} {
		resp := do(t, http.MethodGet, ts.URL+path, nil)
		expectStatus(t, resp, http.StatusOK)
		if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "javascript") {
			t.Fatalf("%s: expected javascript content type, got %q", path, ct)
		}
	}

	resp := do(t, http.MethodGet, ts.URL+"/missing.css", nil)
	expectStatus(t, resp, http.StatusNotFound)
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "Not found: /missing.css" {
		t.Fatalf("unexpected body %q", body)
	}

	// Routes still win over the static fallback.
	expectStatus(t, do(t, http.MethodGet, ts.URL+"/all", nil), http.StatusOK)
	// Non-asset GET paths are still rejected.
	expectStatus(t, do(t, http.MethodGet, ts.URL+"/admin", nil), http.StatusMethodNotAllowed)
}

type brokenStore struct {
	store.Store
}

func (brokenStore) List(context.Context, string) ([]*store.Document, error) {
	return nil, errors.New("disk on fire")
}

func TestStoreFailure(t *testing.T) {
	ts := setupWith(t, brokenStore{Store: store.NewMemoryStore()}, handler.Options{})

	resp := do(t, http.MethodGet, ts.URL+"/all", nil)
	expectStatus(t, resp, http.StatusInternalServerError)
	body := decodeJSON(t, resp.Body)
	e := body["error"].(map[string]any)
	if e["code"] != "internal_error" {
		t.Fatalf("expected internal_error, got %v", e["code"])
	}
	details, _ := e["details"].(map[string]any)
	if details["cause"] != "disk on fire" {
		t.Fatalf("expected diagnostic cause, got %v", e["details"])
	}
}
