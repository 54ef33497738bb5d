package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cmertens/flashpack/internal/domain"
	"github.com/cmertens/flashpack/internal/handler"
	"github.com/cmertens/flashpack/internal/realtime"
	"github.com/cmertens/flashpack/internal/repository/sqlite"
	"github.com/cmertens/flashpack/internal/service"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*httptest.Server, *realtime.Hub) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := realtime.NewHub()
	go hub.Run(ctx)

	auth := service.NewAuthService(db.Users(), "integration-test-secret", 4)
	packs := service.NewPackService(db.Packs(), hub)
	users := service.NewUserService(db.Users(), db.Packs())

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, auth, packs, users, hub, db, false, "")

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, hub
}

// doJSON issues a request with an optional bearer token and decodes the
// JSON response body into out (when out is non-nil).
func doJSON(t *testing.T, srv *httptest.Server, method, path, token string, body, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// signUp registers and logs in a user, returning the auth token.
func signUp(t *testing.T, srv *httptest.Server, email string) string {
	t.Helper()

	creds := map[string]string{"email": email, "password": "password123"}
	if status := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", creds, nil); status != http.StatusCreated {
		t.Fatalf("register %s: status %d", email, status)
	}

	var login struct {
		Token string `json:"token"`
	}
	if status := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", creds, &login); status != http.StatusOK {
		t.Fatalf("login %s: status %d", email, status)
	}
	if login.Token == "" {
		t.Fatalf("login %s: empty token", email)
	}
	return login.Token
}

func TestAPI_AuthFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	creds := map[string]string{"email": "flow@example.com", "password": "password123"}

	var registered struct {
		User struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if status := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", creds, &registered); status != http.StatusCreated {
		t.Fatalf("register: status %d", status)
	}
	if registered.User.Email != "flow@example.com" || registered.User.ID == 0 {
		t.Fatalf("unexpected register response: %+v", registered)
	}

	if status := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", creds, nil); status != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", status)
	}

	bad := map[string]string{"email": "flow@example.com", "password": "wrong-password"}
	if status := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", bad, nil); status != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", status)
	}

	token := ""
	{
		var login struct {
			Token string `json:"token"`
		}
		if status := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", creds, &login); status != http.StatusOK {
			t.Fatalf("login: status %d", status)
		}
		token = login.Token
	}

	var profile struct {
		ID           int64   `json:"id"`
		Email        string  `json:"email"`
		OwnedPackIDs []int64 `json:"ownedPackIds"`
	}
	if status := doJSON(t, srv, http.MethodGet, "/api/users/me", token, nil, &profile); status != http.StatusOK {
		t.Fatalf("me: status %d", status)
	}
	if profile.Email != "flow@example.com" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if profile.OwnedPackIDs == nil {
		t.Fatal("ownedPackIds must serialize as an empty array, not null")
	}

	if status := doJSON(t, srv, http.MethodGet, "/api/users/me", "", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("me without token: expected 401, got %d", status)
	}
}

func TestAPI_PackLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	alice := signUp(t, srv, "alice@example.com")
	bob := signUp(t, srv, "bob@example.com")

	// Create defaults to PRIVATE.
	var pack domain.Pack
	status := doJSON(t, srv, http.MethodPost, "/api/packs", alice,
		map[string]string{"title": "Biology", "description": "cells"}, &pack)
	if status != http.StatusCreated {
		t.Fatalf("create: status %d", status)
	}
	if pack.Visibility != domain.VisibilityPrivate || pack.ID == 0 {
		t.Fatalf("unexpected created pack: %+v", pack)
	}
	packPath := fmt.Sprintf("/api/packs/%d", pack.ID)

	// Owner reads; stranger gets 403, not 404.
	if status := doJSON(t, srv, http.MethodGet, packPath, alice, nil, nil); status != http.StatusOK {
		t.Fatalf("owner get: status %d", status)
	}
	if status := doJSON(t, srv, http.MethodGet, packPath, bob, nil, nil); status != http.StatusForbidden {
		t.Fatalf("stranger get: expected 403, got %d", status)
	}

	// Bob cannot save it while private.
	if status := doJSON(t, srv, http.MethodPost, packPath+"/save", bob, nil, nil); status != http.StatusForbidden {
		t.Fatalf("save private: expected 403, got %d", status)
	}

	// Publish, then Bob saves it.
	if status := doJSON(t, srv, http.MethodPatch, packPath+"/visibility", alice,
		map[string]string{"visibility": "PUBLIC"}, &pack); status != http.StatusOK {
		t.Fatalf("publish: status %d", status)
	}
	if status := doJSON(t, srv, http.MethodPost, packPath+"/save", bob, nil, nil); status != http.StatusCreated {
		t.Fatalf("save: status %d", status)
	}

	// Alice cannot save her own pack.
	if status := doJSON(t, srv, http.MethodPost, packPath+"/save", alice, nil, nil); status != http.StatusUnprocessableEntity {
		t.Fatalf("save own pack: expected 422, got %d", status)
	}

	var saved []struct {
		ID         int64  `json:"id"`
		OwnerEmail string `json:"ownerEmail"`
	}
	if status := doJSON(t, srv, http.MethodGet, "/api/packs/saved", bob, nil, &saved); status != http.StatusOK {
		t.Fatalf("list saved: status %d", status)
	}
	if len(saved) != 1 || saved[0].ID != pack.ID || saved[0].OwnerEmail != "alice@example.com" {
		t.Fatalf("unexpected saved list: %+v", saved)
	}

	// Edit meta and cards.
	var updated domain.Pack
	if status := doJSON(t, srv, http.MethodPatch, packPath, alice,
		map[string]string{"title": "Cell Biology"}, &updated); status != http.StatusOK {
		t.Fatalf("update meta: status %d", status)
	}
	if updated.Title != "Cell Biology" {
		t.Fatalf("expected updated title, got %q", updated.Title)
	}

	cards := map[string]any{"cards": []map[string]any{
		{"question": "What is a mitochondrion?", "answer": "The powerhouse of the cell"},
	}}
	if status := doJSON(t, srv, http.MethodPatch, packPath+"/cards", alice, cards, &updated); status != http.StatusOK {
		t.Fatalf("replace cards: status %d", status)
	}
	if len(updated.Cards) != 1 || updated.Cards[0].ID == "" {
		t.Fatalf("unexpected cards: %+v", updated.Cards)
	}
	if updated.Cards[0].Width != domain.DefaultCardWidth {
		t.Fatalf("expected default card width, got %g", updated.Cards[0].Width)
	}

	// Bob, as a subscriber, reads the public pack.
	if status := doJSON(t, srv, http.MethodGet, packPath, bob, nil, nil); status != http.StatusOK {
		t.Fatalf("subscriber get: status %d", status)
	}

	// Revoke: Bob loses both access and his saved reference.
	if status := doJSON(t, srv, http.MethodPatch, packPath+"/visibility", alice,
		map[string]string{"visibility": "PRIVATE"}, &pack); status != http.StatusOK {
		t.Fatalf("revoke: status %d", status)
	}
	if status := doJSON(t, srv, http.MethodGet, packPath, bob, nil, nil); status != http.StatusForbidden {
		t.Fatalf("post-revoke get: expected 403, got %d", status)
	}
	saved = nil
	if status := doJSON(t, srv, http.MethodGet, "/api/packs/saved", bob, nil, &saved); status != http.StatusOK {
		t.Fatalf("list saved after revoke: status %d", status)
	}
	if len(saved) != 0 {
		t.Fatalf("expected empty saved list, got %+v", saved)
	}

	// Only the owner may delete.
	if status := doJSON(t, srv, http.MethodDelete, packPath, bob, nil, nil); status != http.StatusForbidden {
		t.Fatalf("stranger delete: expected 403, got %d", status)
	}
	if status := doJSON(t, srv, http.MethodDelete, packPath, alice, nil, nil); status != http.StatusOK {
		t.Fatalf("delete: status %d", status)
	}
	if status := doJSON(t, srv, http.MethodGet, packPath, alice, nil, nil); status != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", status)
	}
}

func TestAPI_CardCeiling(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := signUp(t, srv, "alice@example.com")

	var pack domain.Pack
	if status := doJSON(t, srv, http.MethodPost, "/api/packs", alice,
		map[string]string{"title": "Big Deck"}, &pack); status != http.StatusCreated {
		t.Fatalf("create: status %d", status)
	}

	over := make([]map[string]string, domain.MaxCardsPerPack+1)
	for i := range over {
		over[i] = map[string]string{"question": "q", "answer": "a"}
	}
	status := doJSON(t, srv, http.MethodPatch, fmt.Sprintf("/api/packs/%d/cards", pack.ID), alice,
		map[string]any{"cards": over}, nil)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for %d cards, got %d", len(over), status)
	}
}

func TestAPI_FriendsAndSearch(t *testing.T) {
	srv, _ := newTestServer(t)

	alice := signUp(t, srv, "alice@example.com")
	signUp(t, srv, "bob@example.com")

	var added struct {
		Friend struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		} `json:"friend"`
	}
	status := doJSON(t, srv, http.MethodPost, "/api/users/me/friends", alice,
		map[string]string{"friendEmail": "bob@example.com"}, &added)
	if status != http.StatusCreated {
		t.Fatalf("add friend: status %d", status)
	}
	if added.Friend.Email != "bob@example.com" {
		t.Fatalf("unexpected friend: %+v", added)
	}

	if status := doJSON(t, srv, http.MethodPost, "/api/users/me/friends", alice,
		map[string]string{"friendEmail": "ghost@example.com"}, nil); status != http.StatusNotFound {
		t.Fatalf("unknown friend email: expected 404, got %d", status)
	}

	var friends []struct {
		Email string `json:"email"`
	}
	if status := doJSON(t, srv, http.MethodGet, "/api/users/me/friends", alice, nil, &friends); status != http.StatusOK {
		t.Fatalf("list friends: status %d", status)
	}
	if len(friends) != 1 || friends[0].Email != "bob@example.com" {
		t.Fatalf("unexpected friends: %+v", friends)
	}

	var results []struct {
		Email string `json:"email"`
	}
	if status := doJSON(t, srv, http.MethodGet, "/api/users/search?q=bob", alice, nil, &results); status != http.StatusOK {
		t.Fatalf("search: status %d", status)
	}
	if len(results) != 1 || results[0].Email != "bob@example.com" {
		t.Fatalf("unexpected search results: %+v", results)
	}

	path := fmt.Sprintf("/api/users/me/friends/%d", added.Friend.ID)
	if status := doJSON(t, srv, http.MethodDelete, path, alice, nil, nil); status != http.StatusOK {
		t.Fatalf("remove friend: status %d", status)
	}
	friends = nil
	doJSON(t, srv, http.MethodGet, "/api/users/me/friends", alice, nil, &friends)
	if len(friends) != 0 {
		t.Fatalf("expected no friends after removal, got %+v", friends)
	}
}

func TestAPI_PublicPacksView(t *testing.T) {
	srv, _ := newTestServer(t)

	alice := signUp(t, srv, "alice@example.com")
	bob := signUp(t, srv, "bob@example.com")

	var me struct {
		ID int64 `json:"id"`
	}
	doJSON(t, srv, http.MethodGet, "/api/users/me", alice, nil, &me)

	doJSON(t, srv, http.MethodPost, "/api/packs", alice, map[string]string{"title": "Hidden"}, nil)
	var public domain.Pack
	doJSON(t, srv, http.MethodPost, "/api/packs", alice,
		map[string]string{"title": "Shown", "visibility": "PUBLIC"}, &public)

	var view struct {
		Owner struct {
			Email string `json:"email"`
		} `json:"owner"`
		Packs []domain.Pack `json:"packs"`
	}
	path := fmt.Sprintf("/api/users/%d/public-packs", me.ID)
	if status := doJSON(t, srv, http.MethodGet, path, bob, nil, &view); status != http.StatusOK {
		t.Fatalf("public packs: status %d", status)
	}
	if view.Owner.Email != "alice@example.com" {
		t.Fatalf("unexpected owner: %+v", view.Owner)
	}
	if len(view.Packs) != 1 || view.Packs[0].ID != public.ID {
		t.Fatalf("expected only the public pack, got %+v", view.Packs)
	}
}

func TestAPI_Healthz(t *testing.T) {
	srv, _ := newTestServer(t)

	var health struct {
		Status string `json:"status"`
	}
	if status := doJSON(t, srv, http.MethodGet, "/healthz", "", nil, &health); status != http.StatusOK {
		t.Fatalf("healthz: status %d", status)
	}
	if health.Status != "ok" {
		t.Fatalf("expected ok, got %q", health.Status)
	}
}

func TestAPI_LoginRateLimited(t *testing.T) {
	srv, _ := newTestServer(t)
	signUp(t, srv, "victim@example.com")

	bad := map[string]string{"email": "victim@example.com", "password": "guessing"}

	// signUp already spent two attempts; burn through the rest of the
	// burst, then the next attempt must be throttled.
	sawTooMany := false
	for i := 0; i < 12; i++ {
		status := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", bad, nil)
		if status == http.StatusTooManyRequests {
			sawTooMany = true
			break
		}
		if status != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401 or 429, got %d", i+1, status)
		}
	}
	if !sawTooMany {
		t.Fatal("expected a 429 after exhausting the attempt budget")
	}
}

// TestAPI_RealtimeEndToEnd drives a full loop: authenticate, open the
// socket, join a pack's channel, mutate the pack over HTTP, and receive
// the broadcast.
func TestAPI_RealtimeEndToEnd(t *testing.T) {
	srv, hub := newTestServer(t)

	alice := signUp(t, srv, "alice@example.com")

	var pack domain.Pack
	if status := doJSON(t, srv, http.MethodPost, "/api/packs", alice,
		map[string]string{"title": "Live Deck"}, &pack); status != http.StatusCreated {
		t.Fatalf("create: status %d", status)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	header := http.Header{"Authorization": []string{"Bearer " + alice}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "join-pack", "packId": pack.ID}); err != nil {
		t.Fatalf("join: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for hub.RoomSize(pack.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("join was never processed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if status := doJSON(t, srv, http.MethodPatch, fmt.Sprintf("/api/packs/%d", pack.ID), alice,
		map[string]string{"title": "Renamed Live"}, nil); status != http.StatusOK {
		t.Fatalf("rename: status %d", status)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev struct {
		Type      string      `json:"type"`
		EventType string      `json:"eventType"`
		Pack      domain.Pack `json:"pack"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if ev.Type != "pack-updated" || ev.EventType != domain.PackEventMetaUpdated {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Pack.Title != "Renamed Live" {
		t.Fatalf("broadcast must carry the new title, got %q", ev.Pack.Title)
	}
}

func TestAPI_WebSocketRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected the unauthenticated upgrade to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}
