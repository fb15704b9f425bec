package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/flatmate/internal/config"
	"github.com/dukerupert/flatmate/internal/credential"
	"github.com/dukerupert/flatmate/internal/database"
)

type testClient struct {
	t     *testing.T
	h     http.Handler
	token string
}

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{
		SecretKey:      "test-key",
		JWTAlgorithm:   "HS256",
		TokenTTL:       time.Hour,
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	creds, err := credential.New(credential.Config{
		SigningKey: cfg.SecretKey,
		Algorithm:  cfg.JWTAlgorithm,
		TokenTTL:   cfg.TokenTTL,
		BcryptCost: bcrypt.MinCost,
	})
	if err != nil {
		t.Fatalf("credential service: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(db, cfg, creds, logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, srv.Router()
}

func (c *testClient) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	status, raw := c.raw(method, path, body)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			c.t.Fatalf("%s %s: decode: %v (%s)", method, path, err, raw)
		}
	}
	return status, out
}

func (c *testClient) list(method, path string) (int, []map[string]any) {
	c.t.Helper()
	status, raw := c.raw(method, path, nil)
	var out []map[string]any
	if status == http.StatusOK {
		if err := json.Unmarshal(raw, &out); err != nil {
			c.t.Fatalf("%s %s: decode: %v (%s)", method, path, err, raw)
		}
	}
	return status, out
}

func (c *testClient) raw(method, path string, body any) (int, []byte) {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes()
}

func register(t *testing.T, h http.Handler, name, email string) (*testClient, int64) {
	t.Helper()
	c := &testClient{t: t, h: h}
	status, body := c.do("POST", "/auth/register", map[string]any{
		"name": name, "email": email, "password": "pw123456",
	})
	if status != http.StatusOK {
		t.Fatalf("register %s: status = %d, body = %v", email, status, body)
	}
	if body["token_type"] != "bearer" {
		t.Errorf("token_type = %v, want bearer", body["token_type"])
	}
	c.token = body["access_token"].(string)
	user := body["user"].(map[string]any)
	return c, int64(user["id"].(float64))
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)
	c := &testClient{t: t, h: h}

	for _, path := range []string{"/health", "/api/v1/health"} {
		status, body := c.do("GET", path, nil)
		if status != http.StatusOK || body["status"] != "healthy" {
			t.Errorf("GET %s = %d %v", path, status, body)
		}
	}
}

func TestAuthFlow(t *testing.T) {
	_, h := newTestServer(t)
	alice, id := register(t, h, "Alice", "alice@example.com")

	status, me := alice.do("GET", "/auth/me", nil)
	if status != http.StatusOK {
		t.Fatalf("me: status = %d", status)
	}
	if int64(me["id"].(float64)) != id || me["email"] != "alice@example.com" {
		t.Errorf("me = %v", me)
	}
	if _, ok := me["password_hash"]; ok {
		t.Error("password hash leaked")
	}

	anon := &testClient{t: t, h: h}
	status, body := anon.do("POST", "/auth/register", map[string]any{
		"name": "Alice", "email": "alice@example.com", "password": "x",
	})
	if status != http.StatusBadRequest || body["code"] != "EMAIL_TAKEN" {
		t.Errorf("duplicate register = %d %v", status, body)
	}

	status, body = anon.do("POST", "/auth/login", map[string]any{"username": "alice@example.com", "password": "pw123456"})
	if status != http.StatusOK || body["access_token"] == "" {
		t.Errorf("login = %d %v", status, body)
	}

	status, body = anon.do("POST", "/auth/login", map[string]any{"email": "alice@example.com", "password": "wrong"})
	if status != http.StatusBadRequest || body["code"] != "INVALID_CREDENTIALS" {
		t.Errorf("bad login = %d %v", status, body)
	}
}

func TestLoginForm(t *testing.T) {
	_, h := newTestServer(t)
	register(t, h, "Alice", "alice@example.com")

	form := url.Values{"username": {"alice@example.com"}, "password": {"pw123456"}}
	req := httptest.NewRequest("POST", "/auth/login-form", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"access_token"`) {
		t.Errorf("body = %s, want access_token", rec.Body)
	}
}

func TestUnauthenticated(t *testing.T) {
	_, h := newTestServer(t)
	anon := &testClient{t: t, h: h}

	for _, path := range []string{"/auth/me", "/houses", "/tasks", "/tasks/today"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s: status = %d, want 401", path, rec.Code)
		}
		if rec.Header().Get("WWW-Authenticate") != "Bearer" {
			t.Errorf("GET %s: missing WWW-Authenticate", path)
		}
	}

	anon.token = "garbage"
	if status, _ := anon.do("GET", "/houses", nil); status != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", status)
	}
}

func TestLoginRateLimited(t *testing.T) {
	_, h := newTestServer(t)
	anon := &testClient{t: t, h: h}

	var last int
	for i := 0; i < 11; i++ {
		last, _ = anon.do("POST", "/auth/login", map[string]any{"username": "x@example.com", "password": "pw"})
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("11th login: status = %d, want 429", last)
	}
}

func TestHouseAndTaskScenario(t *testing.T) {
	_, h := newTestServer(t)
	a, aID := register(t, h, "A", "a@example.com")
	b, _ := register(t, h, "B", "b@example.com")

	status, house := a.do("POST", "/houses", map[string]any{"name": "Flat 1"})
	if status != http.StatusOK {
		t.Fatalf("create house: %d %v", status, house)
	}
	if house["is_creator"] != true || house["members_count"].(float64) != 1 {
		t.Errorf("house = %v", house)
	}
	hid := int64(house["id"].(float64))

	status, body := b.do("POST", "/tasks", map[string]any{"house_id": hid, "title": "Buy milk"})
	if status != http.StatusForbidden || body["code"] != "FORBIDDEN" {
		t.Errorf("B create before invite = %d %v", status, body)
	}

	status, body = a.do("POST", fmt.Sprintf("/houses/%d/invite", hid), map[string]any{"email": "b@example.com"})
	if status != http.StatusOK {
		t.Fatalf("invite: %d %v", status, body)
	}

	status, body = a.do("POST", fmt.Sprintf("/houses/%d/invite", hid), map[string]any{"email": "b@example.com"})
	if status != http.StatusBadRequest || body["code"] != "ALREADY_MEMBER" {
		t.Errorf("second invite = %d %v", status, body)
	}

	status, members := a.list("GET", fmt.Sprintf("/houses/%d/members", hid))
	if status != http.StatusOK || len(members) != 2 {
		t.Fatalf("members = %d %v", status, members)
	}
	if int64(members[0]["user_id"].(float64)) != aID || members[0]["is_creator"] != true {
		t.Errorf("first member = %v, want creator", members[0])
	}

	status, task := b.do("POST", "/tasks", map[string]any{
		"house_id": hid, "title": "Buy milk", "deadline": "2025-03-01T18:00:00Z",
	})
	if status != http.StatusOK {
		t.Fatalf("B create task: %d %v", status, task)
	}
	if task["priority"] != "medium" || task["deadline"] != "2025-03-01T18:00:00Z" {
		t.Errorf("task = %v", task)
	}
	tid := int64(task["id"].(float64))

	status, done := a.do("POST", fmt.Sprintf("/tasks/%d/complete", tid), nil)
	if status != http.StatusOK || done["completed"] != true || done["completed_at"] == nil {
		t.Errorf("complete = %d %v", status, done)
	}

	for _, path := range []string{"/tasks", "/tasks/today", fmt.Sprintf("/tasks?house_id=%d", hid), "/api/v1/tasks"} {
		status, tasks := b.list("GET", path)
		if status != http.StatusOK || len(tasks) != 1 || tasks[0]["completed"] != true {
			t.Errorf("GET %s = %d %v", path, status, tasks)
		}
	}

	status, patched := b.do("PATCH", fmt.Sprintf("/tasks/%d", tid), map[string]any{"completed": false, "deadline": ""})
	if status != http.StatusOK || patched["completed"] != false || patched["completed_at"] != nil || patched["deadline"] != nil {
		t.Errorf("patch = %d %v", status, patched)
	}

	status, body = a.do("POST", fmt.Sprintf("/houses/%d/exit", hid), nil)
	if status != http.StatusBadRequest || body["code"] != "FORBIDDEN_CREATOR_EXIT" {
		t.Errorf("creator exit = %d %v", status, body)
	}

	status, body = b.do("DELETE", fmt.Sprintf("/houses/%d", hid), nil)
	if status != http.StatusForbidden {
		t.Errorf("member delete = %d %v", status, body)
	}

	if status, _ = b.do("POST", fmt.Sprintf("/houses/%d/exit", hid), nil); status != http.StatusOK {
		t.Errorf("member exit = %d", status)
	}
	if status, _ = b.do("GET", fmt.Sprintf("/tasks/%d", tid), nil); status != http.StatusForbidden {
		t.Errorf("B get after exit = %d, want 403", status)
	}

	if status, _ = a.do("DELETE", fmt.Sprintf("/houses/%d", hid), nil); status != http.StatusOK {
		t.Errorf("creator delete = %d", status)
	}
	status, body = a.do("GET", fmt.Sprintf("/tasks/%d", tid), nil)
	if status != http.StatusNotFound || body["code"] != "TASK_NOT_FOUND" {
		t.Errorf("get after delete = %d %v", status, body)
	}
	status, houses := a.list("GET", "/houses/user")
	if status != http.StatusOK || len(houses) != 0 {
		t.Errorf("houses after delete = %d %v", status, houses)
	}
}

func TestErrorResponses(t *testing.T) {
	_, h := newTestServer(t)
	a, _ := register(t, h, "A", "a@example.com")

	tests := []struct {
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"POST", "/houses", map[string]any{"name": "  "}, 400, "VALIDATION"},
		{"POST", "/houses/999/invite", map[string]any{"email": "x@example.com"}, 404, "HOUSE_NOT_FOUND"},
		{"POST", "/houses/999/exit", nil, 404, "HOUSE_NOT_FOUND"},
		{"DELETE", "/houses/999", nil, 404, "HOUSE_NOT_FOUND"},
		{"GET", "/tasks/999", nil, 404, "TASK_NOT_FOUND"},
		{"GET", "/tasks?house_id=abc", nil, 400, "VALIDATION"},
		{"POST", "/tasks", map[string]any{"house_id": 999, "title": "x"}, 404, "HOUSE_NOT_FOUND"},
		{"GET", "/tasks/abc", nil, 400, "VALIDATION"},
	}
	for _, tt := range tests {
		status, body := a.do(tt.method, tt.path, tt.body)
		if status != tt.status || body["code"] != tt.code {
			t.Errorf("%s %s = %d %v, want %d %s", tt.method, tt.path, status, body, tt.status, tt.code)
		}
	}

	_, house := a.do("POST", "/houses", map[string]any{"name": "Flat"})
	hid := house["id"]
	checks := []struct {
		body any
		code string
	}{
		{map[string]any{"email": "nobody@example.com"}, "USER_NOT_FOUND"},
		{map[string]any{"email": "a@example.com"}, "ALREADY_MEMBER"},
	}
	for _, c := range checks {
		status, body := a.do("POST", fmt.Sprintf("/houses/%v/invite", hid), c.body)
		if body["code"] != c.code {
			t.Errorf("invite %v = %d %v, want %s", c.body, status, body, c.code)
		}
	}

	status, body := a.do("POST", "/tasks", map[string]any{"house_id": hid, "title": "x", "deadline": "whenever"})
	if status != http.StatusBadRequest || body["code"] != "INVALID_DEADLINE" {
		t.Errorf("bad deadline = %d %v", status, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t)
	anon := &testClient{t: t, h: h}
	anon.do("GET", "/health", nil)

	status, raw := anon.raw("GET", "/metrics", nil)
	if status != http.StatusOK {
		t.Fatalf("metrics status = %d", status)
	}
	if !strings.Contains(string(raw), `route="GET /health"`) {
		t.Error("metrics missing health route")
	}
}

func TestWebsocketReceivesHouseEvents(t *testing.T) {
	srv, h := newTestServer(t)
	a, _ := register(t, h, "A", "a@example.com")
	outsider, _ := register(t, h, "C", "c@example.com")

	ts := httptest.NewServer(h)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dial := func(token string) *ws.Conn {
		t.Helper()
		conn, _, err := ws.Dial(ctx, strings.Replace(ts.URL, "http", "ws", 1)+"/ws?token="+token, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		return conn
	}
	aConn := dial(a.token)
	defer aConn.CloseNow()
	cConn := dial(outsider.token)
	defer cConn.CloseNow()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Hub().ClientCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	_, house := a.do("POST", "/houses", map[string]any{"name": "Flat 1"})
	a.do("POST", "/tasks", map[string]any{"house_id": house["id"], "title": "Buy milk"})

	_, data, err := aConn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg["type"] != "task_created" {
		t.Errorf("type = %v, want task_created", msg["type"])
	}

	readCtx, readCancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer readCancel()
	if _, _, err := cConn.Read(readCtx); err == nil {
		t.Error("user outside the house received an event")
	}
}

func TestWebsocketRequiresToken(t *testing.T) {
	_, h := newTestServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	_, resp, err := ws.Dial(context.Background(), strings.Replace(ts.URL, "http", "ws", 1)+"/ws", nil)
	if err == nil {
		t.Fatal("dial without token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
}
