package adaptor_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/ponyo877/livedeck/server/adaptor"
)

type request struct {
	method  string
	path    string
	body    any
	cookies []*http.Cookie
	bearer  string
}

type response struct {
	status  int
	body    map[string]any
	cookies []*http.Cookie
}

func (s *testServer) do(t *testing.T, req request) response {
	t.Helper()
	var body io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	r, err := http.NewRequest(req.method, s.http.URL+req.path, body)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if req.body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}
	if req.bearer != "" {
		r.Header.Set("Authorization", "Bearer "+req.bearer)
	}

	resp, err := http.DefaultClient.Do(r)
	if err != nil {
		t.Fatalf("%s %s failed: %v", req.method, req.path, err)
	}
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, cookies: resp.Cookies(), body: map[string]any{}}
	raw, _ := io.ReadAll(resp.Body)
	if resp.Header.Get("Content-Type") == "application/json" && len(raw) > 0 {
		if err := json.Unmarshal(raw, &out.body); err != nil {
			t.Fatalf("bad json %s: %v", raw, err)
		}
	}
	return out
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRegisterAndReportPosition(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, request{method: http.MethodPost, path: "/p/deck/register", body: map[string]any{"name": "Alice"}})
	if resp.status != http.StatusOK {
		t.Fatalf("register status = %d, body %v", resp.status, resp.body)
	}
	session := cookieNamed(resp.cookies, "livedeck_session")
	if session == nil || session.Value == "" {
		t.Fatal("session cookie not set")
	}
	if resp.body["sessionId"] != session.Value {
		t.Errorf("sessionId %v does not match cookie %q", resp.body["sessionId"], session.Value)
	}
	participant := resp.body["participant"].(map[string]any)
	if participant["name"] != "Alice" || participant["current_slide"] != nil || participant["is_active"] != true {
		t.Errorf("unexpected participant: %v", participant)
	}

	resp = s.do(t, request{
		method:  http.MethodPost,
		path:    "/participant/update-slide",
		body:    map[string]any{"slide_number": 2},
		cookies: []*http.Cookie{session},
	})
	if resp.status != http.StatusOK || resp.body["outcome"] != "position_updated" {
		t.Fatalf("update-slide = %d %v", resp.status, resp.body)
	}

	resp = s.do(t, request{method: http.MethodPost, path: "/p/deck/register", cookies: []*http.Cookie{session}})
	participant = resp.body["participant"].(map[string]any)
	if participant["name"] != "Anonymous" || participant["current_slide"] != float64(2) {
		t.Errorf("re-register lost state: %v", participant)
	}
}

func TestRegisterErrors(t *testing.T) {
	s := newTestServer(t)

	if resp := s.do(t, request{method: http.MethodPost, path: "/p/missing/register"}); resp.status != http.StatusNotFound {
		t.Errorf("unknown presentation status = %d", resp.status)
	}
	resp := s.do(t, request{method: http.MethodPost, path: "/participant/update-slide", body: map[string]any{"session_id": "ghost", "slide_number": 1}})
	if resp.status != http.StatusNotFound {
		t.Errorf("unknown session status = %d", resp.status)
	}
	resp = s.do(t, request{method: http.MethodPost, path: "/participant/update-slide", body: map[string]any{"session_id": "ghost"}})
	if resp.status != http.StatusBadRequest {
		t.Errorf("missing slide_number status = %d", resp.status)
	}
}

func TestPresenterFlow(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, request{method: http.MethodPost, path: "/p/deck/presenter", body: map[string]any{"password": "wrong"}})
	if resp.status != http.StatusForbidden {
		t.Fatalf("wrong password status = %d", resp.status)
	}

	publish := map[string]any{"slide_number": 1, "presentation_uid": "deck", "is_presenter": true}
	resp = s.do(t, request{method: http.MethodPost, path: "/participant/update-slide", body: publish})
	if resp.status != http.StatusForbidden {
		t.Fatalf("publish without token status = %d", resp.status)
	}

	resp = s.do(t, request{method: http.MethodPost, path: "/p/deck/presenter", body: map[string]any{"password": "pw"}})
	if resp.status != http.StatusOK {
		t.Fatalf("presenter status = %d %v", resp.status, resp.body)
	}
	token := cookieNamed(resp.cookies, "presenter-token")
	if token == nil || token.Value != resp.body["token"] {
		t.Fatal("presenter cookie missing or different from body token")
	}

	resp = s.do(t, request{method: http.MethodGet, path: "/p/deck/state"})
	if resp.status != http.StatusOK || resp.body["slideIndex"] != nil {
		t.Fatalf("state before publish = %d %v", resp.status, resp.body)
	}

	resp = s.do(t, request{method: http.MethodPost, path: "/participant/update-slide", body: publish, cookies: []*http.Cookie{token}})
	if resp.status != http.StatusOK || resp.body["outcome"] != "broadcast" {
		t.Fatalf("publish = %d %v", resp.status, resp.body)
	}

	resp = s.do(t, request{method: http.MethodGet, path: "/p/deck/state"})
	if resp.body["slideIndex"] != float64(1) {
		t.Errorf("state after publish = %v", resp.body)
	}

	owner := s.do(t, request{method: http.MethodPost, path: "/p/secret/presenter", bearer: s.identityToken(t, 8)})
	if owner.status != http.StatusOK {
		t.Errorf("owner without password status = %d", owner.status)
	}
}

func TestPresenterReads(t *testing.T) {
	s := newTestServer(t)
	s.do(t, request{method: http.MethodPost, path: "/p/deck/register", body: map[string]any{"session_id": "s1"}})
	id := strconv.FormatInt(s.deck.ID, 10)

	for _, path := range []string{
		"/presentations/" + id + "/participants",
		"/presentations/" + id + "/analytics",
		"/presentations/" + id + "/analytics/summary",
	} {
		if resp := s.do(t, request{method: http.MethodGet, path: path}); resp.status != http.StatusForbidden {
			t.Errorf("anonymous %s status = %d", path, resp.status)
		}
		if resp := s.do(t, request{method: http.MethodGet, path: path, bearer: s.identityToken(t, 8)}); resp.status != http.StatusForbidden {
			t.Errorf("non owner %s status = %d", path, resp.status)
		}
		if resp := s.do(t, request{method: http.MethodGet, path: path, bearer: s.identityToken(t, 7)}); resp.status != http.StatusOK {
			t.Errorf("owner %s status = %d", path, resp.status)
		}
	}

	resp := s.do(t, request{
		method:  http.MethodGet,
		path:    "/presentations/" + id + "/participants",
		cookies: []*http.Cookie{{Name: "presenter-token", Value: s.presenterToken(t, "deck")}},
	})
	participants, _ := resp.body["participants"].([]any)
	if resp.status != http.StatusOK || len(participants) != 1 {
		t.Errorf("presenter participants = %d %v", resp.status, resp.body)
	}

	if resp := s.do(t, request{method: http.MethodGet, path: "/presentations/abc/participants"}); resp.status != http.StatusBadRequest {
		t.Errorf("non numeric id status = %d", resp.status)
	}
	if resp := s.do(t, request{method: http.MethodGet, path: "/presentations/" + id + "/analytics?page=0", bearer: s.identityToken(t, 7)}); resp.status != http.StatusBadRequest {
		t.Errorf("page 0 status = %d", resp.status)
	}
}

func TestDisconnect(t *testing.T) {
	s := newTestServer(t)

	if resp := s.do(t, request{method: http.MethodPost, path: "/participant/disconnect"}); resp.status != http.StatusBadRequest {
		t.Errorf("disconnect without session status = %d", resp.status)
	}
	resp := s.do(t, request{method: http.MethodPost, path: "/participant/disconnect", body: map[string]any{"session_id": "never-seen"}})
	if resp.status != http.StatusOK {
		t.Errorf("disconnect of unknown session status = %d", resp.status)
	}
}

func TestTrack(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, request{method: http.MethodPost, path: "/analytics/track", body: map[string]any{
		"session_id":       "nobody",
		"presentation_uid": "deck",
		"event_type":       "slide_view",
		"slide_id":         1,
		"data":             map[string]any{"slideIndex": 0},
	}})
	if resp.status != http.StatusAccepted {
		t.Errorf("track status = %d %v", resp.status, resp.body)
	}

	resp = s.do(t, request{method: http.MethodPost, path: "/analytics/track", body: map[string]any{"presentation_uid": "deck"}})
	if resp.status != http.StatusBadRequest {
		t.Errorf("invalid track status = %d", resp.status)
	}
}

func TestChannelAuth(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, request{method: http.MethodPost, path: "/broadcasting/auth", body: map[string]any{
		"socket_id":    "1.2",
		"channel_name": "presentation.deck",
	}})
	want := adaptor.ChannelSignature(testChannelKey, testChannelSecret, "1.2", "presentation.deck")
	if resp.status != http.StatusOK || resp.body["auth"] != want {
		t.Errorf("public channel auth = %d %v", resp.status, resp.body)
	}

	presenter := "private-presenter-" + strconv.FormatInt(s.secret.ID, 10)
	resp = s.do(t, request{method: http.MethodPost, path: "/broadcasting/auth", body: map[string]any{
		"socket_id":    "1.2",
		"channel_name": presenter,
	}})
	if resp.status != http.StatusForbidden {
		t.Errorf("anonymous presenter channel status = %d", resp.status)
	}

	form := url.Values{"socket_id": {"1.2"}, "channel_name": {presenter}}
	r, _ := http.NewRequest(http.MethodPost, s.http.URL+"/broadcasting/auth", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set("Authorization", "Bearer "+s.identityToken(t, 8))
	formResp, err := http.DefaultClient.Do(r)
	if err != nil {
		t.Fatalf("form auth failed: %v", err)
	}
	formResp.Body.Close()
	if formResp.StatusCode != http.StatusOK {
		t.Errorf("owner form auth status = %d", formResp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, request{method: http.MethodGet, path: "/healthz"})
	if resp.status != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.status)
	}
	if resp.body["status"] != "ok" {
		t.Errorf("unexpected body: %v", resp.body)
	}
	if _, ok := resp.body["channels"]; !ok {
		t.Errorf("missing channels: %v", resp.body)
	}
}
