package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appAnnouncement "github.com/Mr-houngbo/Colit/internal/application/announcement"
	appMatching "github.com/Mr-houngbo/Colit/internal/application/matching"
	appMessaging "github.com/Mr-houngbo/Colit/internal/application/messaging"
	appNotification "github.com/Mr-houngbo/Colit/internal/application/notification"
	"github.com/Mr-houngbo/Colit/internal/application/realtime"
	appTimeline "github.com/Mr-houngbo/Colit/internal/application/timeline"
	"github.com/Mr-houngbo/Colit/internal/infrastructure/memory"
	"github.com/Mr-houngbo/Colit/internal/infrastructure/sse"
)

const testSecret = "test-secret"

type testEnv struct {
	srv      *httptest.Server
	store    *memory.Store
	notifier *appNotification.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	store := memory.NewStore()
	hub := sse.NewHub(logger)
	notifier := appNotification.NewService(store.Notifications, hub, store.Announcements, store.Profiles, time.Second, logger)
	matching := appMatching.NewService(store.ColiSpaces, logger)
	server := NewServer(
		appAnnouncement.NewService(store.Announcements, matching, logger),
		matching,
		appTimeline.NewService(store.ColiSpaces, store.Announcements, notifier, logger),
		appMessaging.NewService(store.ColiSpaces, store.ColiSpaces, store.Profiles, notifier, logger),
		notifier,
		realtime.NewAdapter(store.ColiSpaces, store.ColiSpaces, store.ColiSpaces, logger),
		hub,
		AuthConfig{JWTSecret: testSecret},
		logger,
	)
	srv := httptest.NewServer(server.Router())
	srv.Config.RegisterOnShutdown(server.CloseStreams)
	t.Cleanup(func() {
		srv.Close()
		notifier.Wait()
	})
	return &testEnv{srv: srv, store: store, notifier: notifier}
}

func token(t *testing.T, sub, email string) string {
	t.Helper()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(t *testing.T, method, path, tok string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]interface{}{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func offerBody() map[string]interface{} {
	return map[string]interface{}{
		"kind":          "GP_OFFER",
		"departureCity": "Paris",
		"arrivalCity":   "Dakar",
		"date":          "2026-11-20T00:00:00Z",
		"weightKg":      15,
		"transportMode": "PLANE",
	}
}

func TestHealthAndAuth(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/v1/coli-spaces", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body["error"])

	resp, _ = env.do(t, http.MethodGet, "/v1/coli-spaces", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	resp, _ = env.do(t, http.MethodGet, "/v1/coli-spaces", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/v1/coli-spaces", token(t, "u1", ""), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAnnouncementEndpoints(t *testing.T) {
	env := newTestEnv(t)
	gp := token(t, "gp1", "gp1@example.com")

	resp, created := env.do(t, http.MethodPost, "/v1/announcements", gp, offerBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := created["id"].(string)

	resp, got := env.do(t, http.MethodGet, "/v1/announcements/"+id, gp, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gp1", got["posterId"])

	resp, list := env.do(t, http.MethodGet, "/v1/announcements?kind=gp_offer&from=paris&where=weightKg%20%3E%3D%2010", gp, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list["items"], 1)

	resp, list = env.do(t, http.MethodGet, "/v1/announcements?to=Abidjan", gp, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, list["items"])

	bad := offerBody()
	bad["weightKg"] = 0
	resp, body := env.do(t, http.MethodPost, "/v1/announcements", gp, bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_INPUT", body["error"])

	unknown := offerBody()
	unknown["color"] = "red"
	resp, body = env.do(t, http.MethodPost, "/v1/announcements", gp, unknown)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_BODY", body["error"])

	resp, _ = env.do(t, http.MethodGet, "/v1/announcements/not-a-uuid", gp, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/v1/announcements/00000000-0000-0000-0000-000000000001", gp, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestColiSpaceFlow(t *testing.T) {
	env := newTestEnv(t)
	gp := token(t, "gp1", "gp1@example.com")
	sender := token(t, "s1", "s1@example.com")
	outsider := token(t, "x1", "x1@example.com")

	_, created := env.do(t, http.MethodPost, "/v1/announcements", gp, offerBody())
	annID := created["id"].(string)

	resp, body := env.do(t, http.MethodPost, "/v1/announcements/"+annID+"/respond", gp, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "SELF_MATCH", body["error"])

	resp, first := env.do(t, http.MethodPost, "/v1/announcements/"+annID+"/respond", sender, map[string]interface{}{
		"receiverContact": map[string]string{"name": "Awa", "email": "awa@example.com"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, first["isNew"])
	spaceID := first["coliSpace"].(map[string]interface{})["id"].(string)

	resp, again := env.do(t, http.MethodPost, "/v1/announcements/"+annID+"/respond", sender, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, again["isNew"])
	assert.Equal(t, spaceID, again["coliSpace"].(map[string]interface{})["id"])

	base := "/v1/coli-spaces/" + spaceID

	resp, view := env.do(t, http.MethodGet, base, sender, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "sender", view["role"])
	assert.Len(t, view["steps"], 6)

	resp, body = env.do(t, http.MethodGet, base, outsider, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "NOT_PARTICIPANT", body["error"])

	resp, body = env.do(t, http.MethodPost, base+"/steps/picked_up/validate", sender, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED_STEP", body["error"])

	resp, body = env.do(t, http.MethodPost, base+"/steps/created/validate", gp, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED_STEP", body["error"])

	resp, body = env.do(t, http.MethodPost, base+"/steps/delivered/validate", gp, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "OUT_OF_ORDER", body["error"])

	resp, _ = env.do(t, http.MethodPost, base+"/steps/validated/validate", sender, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, base+"/steps/validated/validate", gp, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ALREADY_COMPLETED", body["error"])

	resp, body = env.do(t, http.MethodPost, base+"/steps/teleported/validate", gp, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, res := env.do(t, http.MethodPost, base+"/steps/picked_up/validate", gp, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, res["events"], 2)
	assert.Equal(t, "IN_TRANSIT", res["space"].(map[string]interface{})["status"])

	resp, msg := env.do(t, http.MethodPost, base+"/messages", gp, map[string]interface{}{"text": "Je suis à l'aéroport"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "gp1", msg["userId"])

	resp, body = env.do(t, http.MethodPost, base+"/messages", sender, map[string]interface{}{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	receiver := token(t, "r1", "awa@example.com")
	resp, msgs := env.do(t, http.MethodGet, base+"/messages", receiver, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, msgs["items"], 1)

	resp, joined := env.do(t, http.MethodPost, base+"/join", receiver, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "r1", joined["receiverId"])

	resp, people := env.do(t, http.MethodGet, base+"/participants", receiver, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, people["items"], 3)

	resp, _ = env.do(t, http.MethodPost, base+"/steps/delivered/validate", gp, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, mine := env.do(t, http.MethodGet, "/v1/coli-spaces", sender, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, mine["items"], 1)
	assert.Equal(t, "DELIVERED", mine["items"].([]interface{})[0].(map[string]interface{})["status"])

	resp, body = env.do(t, http.MethodPost, base+"/cancel", sender, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, ann := env.do(t, http.MethodGet, "/v1/announcements/"+annID, sender, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "DELIVERED", ann["status"])

	env.notifier.Wait()
	resp, notes := env.do(t, http.MethodGet, "/v1/notifications", sender, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, notes["items"])
}

func TestValidateStep_PendingSendRequest(t *testing.T) {
	env := newTestEnv(t)
	sender := token(t, "s1", "s1@example.com")
	gp := token(t, "gp1", "gp1@example.com")

	req := offerBody()
	req["kind"] = "SEND_REQUEST"
	req["receiverContact"] = map[string]string{"name": "Awa", "email": "awa@example.com"}
	resp, created := env.do(t, http.MethodPost, "/v1/announcements", sender, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_, mine := env.do(t, http.MethodGet, "/v1/coli-spaces", sender, nil)
	require.Len(t, mine["items"], 1)
	spaceID := mine["items"].([]interface{})[0].(map[string]interface{})["id"].(string)

	resp, body := env.do(t, http.MethodPost, "/v1/coli-spaces/"+spaceID+"/steps/validated/validate", sender, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "AWAITING_GP", body["error"])

	resp, first := env.do(t, http.MethodPost, "/v1/announcements/"+created["id"].(string)+"/respond", gp, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, spaceID, first["coliSpace"].(map[string]interface{})["id"])

	resp, _ = env.do(t, http.MethodPost, "/v1/coli-spaces/"+spaceID+"/steps/validated/validate", sender, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCancelColiSpace(t *testing.T) {
	env := newTestEnv(t)
	gp := token(t, "gp1", "")
	sender := token(t, "s1", "")

	_, created := env.do(t, http.MethodPost, "/v1/announcements", gp, offerBody())
	_, first := env.do(t, http.MethodPost, "/v1/announcements/"+created["id"].(string)+"/respond", sender, nil)
	base := "/v1/coli-spaces/" + first["coliSpace"].(map[string]interface{})["id"].(string)

	resp, space := env.do(t, http.MethodPost, base+"/cancel", gp, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CANCELLED", space["status"])

	resp, body := env.do(t, http.MethodPost, base+"/messages", sender, map[string]interface{}{"text": "hello?"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CLOSED", body["error"])
}

func TestStreamColiSpace(t *testing.T) {
	env := newTestEnv(t)
	gp := token(t, "gp1", "")
	sender := token(t, "s1", "")

	_, created := env.do(t, http.MethodPost, "/v1/announcements", gp, offerBody())
	_, first := env.do(t, http.MethodPost, "/v1/announcements/"+created["id"].(string)+"/respond", sender, nil)
	spaceID := first["coliSpace"].(map[string]interface{})["id"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/v1/coli-spaces/"+spaceID+"/stream?access_token="+sender, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "event: ") {
				events <- strings.TrimPrefix(line, "event: ")
			}
		}
		close(events)
	}()

	assert.Equal(t, "snapshot", <-events)

	r, _ := env.do(t, http.MethodPost, "/v1/coli-spaces/"+spaceID+"/messages", gp, map[string]interface{}{"text": "live"})
	require.Equal(t, http.StatusCreated, r.StatusCode)

	for ev := range events {
		if ev == "MESSAGE_INSERTED" {
			return
		}
	}
	t.Fatal("stream ended without the message change")
}

func TestStreamColiSpace_Forbidden(t *testing.T) {
	env := newTestEnv(t)
	gp := token(t, "gp1", "")
	sender := token(t, "s1", "")
	_, created := env.do(t, http.MethodPost, "/v1/announcements", gp, offerBody())
	_, first := env.do(t, http.MethodPost, "/v1/announcements/"+created["id"].(string)+"/respond", sender, nil)
	spaceID := first["coliSpace"].(map[string]interface{})["id"].(string)

	resp, body := env.do(t, http.MethodGet, "/v1/coli-spaces/"+spaceID+"/stream", token(t, "x1", ""), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "NOT_PARTICIPANT", body["error"])
}

func TestRespondServiceError_Unknown(t *testing.T) {
	s := &Server{logger: zerolog.Nop()}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	s.respondServiceError(rec, req, assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestShutdownEndsOpenStreams(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/v1/notifications/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, "s1", ""))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	assert.NoError(t, env.srv.Config.Shutdown(ctx))
}
