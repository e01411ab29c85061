package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tapalogi/game-room/internal/relay"
)

func testOptions() Options {
	return Options{
		MaxMessageSize: 1024,
		PingPeriod:     time.Second,
		PongWait:       30 * time.Second,
		WriteWait:      time.Second,
	}
}

func newTestServer(t *testing.T, notify bool) *httptest.Server {
	t.Helper()
	return newTestServerWith(t, zerolog.Nop(), notify, testOptions())
}

func newTestServerWith(t *testing.T, logger zerolog.Logger, notify bool, opts Options) *httptest.Server {
	t.Helper()
	reg := relay.NewRegistry(relay.Options{NotifyServer: notify, Logger: zerolog.Nop()})
	srv := httptest.NewServer(NewRouter(logger, reg, opts))
	t.Cleanup(srv.Close)
	return srv
}

// syncBuffer collects log output written from handler goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, path), nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func dialStatus(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, path), nil)
	if err == nil {
		conn.Close()
		t.Fatalf("dial %s: expected handshake failure", path)
	}
	if !errors.Is(err, websocket.ErrBadHandshake) || resp == nil {
		t.Fatalf("dial %s: expected bad handshake, got %v", path, err)
	}
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, strings.TrimSpace(string(body))
}

func readFrame(t *testing.T, conn *websocket.Conn) (int, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return mt, data
}

func listRooms(t *testing.T, srv *httptest.Server) []string {
	t.Helper()
	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /: expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("GET /: expected application/json, got %q", ct)
	}
	var ids []string
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		t.Fatalf("decode room list: %v", err)
	}
	return ids
}

func waitForRooms(t *testing.T, srv *httptest.Server, want int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		ids := listRooms(t, srv)
		if len(ids) == want {
			return ids
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d rooms, got %v", want, ids)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestListRoomsEmpty(t *testing.T) {
	srv := newTestServer(t, false)

	ids := listRooms(t, srv)
	if ids == nil || len(ids) != 0 {
		t.Fatalf("expected empty JSON array, got %#v", ids)
	}
}

func TestServerAndClientRelay(t *testing.T) {
	srv := newTestServer(t, false)
	roomID := uuid.New()

	server := dial(t, srv, "/server?client_id="+roomID.String())

	ids := listRooms(t, srv)
	if len(ids) != 1 || ids[0] != roomID.String() {
		t.Fatalf("expected [%s], got %v", roomID, ids)
	}

	client := dial(t, srv, "/client?client_id="+uuid.NewString()+"&room_id="+roomID.String())

	if err := server.WriteMessage(websocket.BinaryMessage, []byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("server write: %v", err)
	}
	mt, data := readFrame(t, client)
	if mt != websocket.BinaryMessage || string(data) != "\xaa\xbb" {
		t.Fatalf("client got type %d data %x", mt, data)
	}

	if err := client.WriteMessage(websocket.TextMessage, []byte("ready")); err != nil {
		t.Fatalf("client write: %v", err)
	}
	mt, data = readFrame(t, server)
	if mt != websocket.TextMessage || string(data) != "ready" {
		t.Fatalf("server got type %d data %q", mt, data)
	}
}

func TestClientToClientIsNotRelayed(t *testing.T) {
	srv := newTestServer(t, false)
	roomID := uuid.NewString()

	server := dial(t, srv, "/server?client_id="+roomID)
	c1 := dial(t, srv, "/client?client_id="+uuid.NewString()+"&room_id="+roomID)
	c2 := dial(t, srv, "/client?client_id="+uuid.NewString()+"&room_id="+roomID)

	if err := c1.WriteMessage(websocket.TextMessage, []byte("secret")); err != nil {
		t.Fatalf("c1 write: %v", err)
	}
	if _, data := readFrame(t, server); string(data) != "secret" {
		t.Fatalf("server expected secret, got %q", data)
	}

	c2.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, data, err := c2.ReadMessage(); err == nil {
		t.Fatalf("c2 should not receive client traffic, got %q", data)
	}
}

func TestDuplicateServerRejected(t *testing.T) {
	srv := newTestServer(t, false)
	path := "/server?client_id=" + uuid.NewString()

	dial(t, srv, path)

	status, _ := dialStatus(t, srv, path)
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
	if ids := listRooms(t, srv); len(ids) != 1 {
		t.Fatalf("expected the first room to survive, got %v", ids)
	}
}

func TestClientUnknownRoom(t *testing.T) {
	srv := newTestServer(t, false)
	missing := uuid.NewString()

	status, body := dialStatus(t, srv, "/client?client_id="+uuid.NewString()+"&room_id="+missing)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if body != "Room not found!" {
		t.Fatalf("unexpected body %q", body)
	}
	for _, id := range listRooms(t, srv) {
		if id == missing {
			t.Fatalf("missing room %s listed", missing)
		}
	}
}

func TestBadQueryParams(t *testing.T) {
	srv := newTestServer(t, false)

	cases := []string{
		"/server",
		"/server?client_id=not-a-uuid",
		"/client?client_id=" + uuid.NewString(),
		"/client?room_id=" + uuid.NewString(),
	}
	for _, path := range cases {
		if status, _ := dialStatus(t, srv, path); status != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, status)
		}
	}
}

func TestServerLeaveClosesClients(t *testing.T) {
	srv := newTestServer(t, false)
	roomID := uuid.NewString()

	server := dial(t, srv, "/server?client_id="+roomID)
	client := dial(t, srv, "/client?client_id="+uuid.NewString()+"&room_id="+roomID)

	server.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	server.Close()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going away close, got %v", err)
	}

	waitForRooms(t, srv, 0)

	status, _ := dialStatus(t, srv, "/client?client_id="+uuid.NewString()+"&room_id="+roomID)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 after room closed, got %d", status)
	}
}

func TestJoinNoticeReachesServer(t *testing.T) {
	srv := newTestServer(t, true)
	roomID := uuid.NewString()
	clientID := uuid.New()

	server := dial(t, srv, "/server?client_id="+roomID)
	client := dial(t, srv, "/client?client_id="+clientID.String()+"&room_id="+roomID)

	mt, data := readFrame(t, server)
	op, id, ok := relay.ParseNotice(data)
	if mt != websocket.BinaryMessage || !ok || op != relay.NoticeJoin || id != clientID {
		t.Fatalf("expected join notice for %s, got %x", clientID, data)
	}

	client.Close()
	_, data = readFrame(t, server)
	op, id, ok = relay.ParseNotice(data)
	if !ok || op != relay.NoticeLeave || id != clientID {
		t.Fatalf("expected leave notice for %s, got %x", clientID, data)
	}
}

func TestOversizedFrameEndsSession(t *testing.T) {
	srv := newTestServer(t, false)
	server := dial(t, srv, "/server?client_id="+uuid.NewString())

	if err := server.WriteMessage(websocket.BinaryMessage, make([]byte, 4096)); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitForRooms(t, srv, 0)
}

func TestNotFoundRoute(t *testing.T) {
	srv := newTestServer(t, false)

	resp, err := http.Get(srv.URL + "/nowhere")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if strings.TrimSpace(string(body)) != "Nothing to look here..." {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, false)
	roomID := uuid.NewString()
	dial(t, srv, "/server?client_id="+roomID)
	dial(t, srv, "/client?client_id="+uuid.NewString()+"&room_id="+roomID)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "healthy" || health.Rooms != 1 || health.Clients != 1 {
		t.Fatalf("unexpected health %+v", health)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "game_room_rooms_open") {
		t.Fatal("metrics output missing game_room_rooms_open")
	}
}

func TestRoomListingAllowsCrossOrigin(t *testing.T) {
	srv := newTestServer(t, false)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
	req.Header.Set("Origin", "http://dashboard.example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected Access-Control-Allow-Origin *, got %q", got)
	}
}

func TestClientCannotForgeNotice(t *testing.T) {
	srv := newTestServer(t, true)
	roomID := uuid.NewString()
	victimID := uuid.New()
	malloryID := uuid.New()

	server := dial(t, srv, "/server?client_id="+roomID)
	dial(t, srv, "/client?client_id="+victimID.String()+"&room_id="+roomID)
	readFrame(t, server)
	mallory := dial(t, srv, "/client?client_id="+malloryID.String()+"&room_id="+roomID)
	readFrame(t, server)

	forged := append([]byte{relay.NoticeLeave}, victimID[:]...)
	if err := mallory.WriteMessage(websocket.BinaryMessage, forged); err != nil {
		t.Fatalf("mallory write: %v", err)
	}

	mt, data := readFrame(t, server)
	if _, _, ok := relay.ParseNotice(data); ok {
		t.Fatalf("client payload arrived as a notice: %x", data)
	}
	e, err := relay.ParseEnvelope(data)
	if mt != websocket.BinaryMessage || err != nil {
		t.Fatalf("expected binary envelope, got type %d err %v", mt, err)
	}
	if e.ClientID != malloryID || !bytes.Equal(e.Payload, forged) {
		t.Fatalf("expected envelope from %s carrying %x, got %+v", malloryID, forged, e)
	}
}

func TestSilentPeerIsDropped(t *testing.T) {
	opts := testOptions()
	opts.PingPeriod = 100 * time.Millisecond
	opts.PongWait = 300 * time.Millisecond
	srv := newTestServerWith(t, zerolog.Nop(), false, opts)

	// Never reading means pings are never answered.
	dial(t, srv, "/server?client_id="+uuid.NewString())
	if ids := listRooms(t, srv); len(ids) != 1 {
		t.Fatalf("expected the room listed, got %v", ids)
	}

	waitForRooms(t, srv, 0)
}

func TestAnsweringPeerSurvivesHeartbeat(t *testing.T) {
	opts := testOptions()
	opts.PingPeriod = 100 * time.Millisecond
	opts.PongWait = 300 * time.Millisecond
	srv := newTestServerWith(t, zerolog.Nop(), false, opts)

	server := dial(t, srv, "/server?client_id="+uuid.NewString())
	go func() {
		for {
			if _, _, err := server.ReadMessage(); err != nil {
				return
			}
		}
	}()

	time.Sleep(time.Second)
	if ids := listRooms(t, srv); len(ids) != 1 {
		t.Fatalf("expected the room to survive, got %v", ids)
	}
}

func TestUpgradeLoggedAsSwitchingProtocols(t *testing.T) {
	var out syncBuffer
	srv := newTestServerWith(t, zerolog.New(&out), false, testOptions())

	dial(t, srv, "/server?client_id="+uuid.NewString())

	deadline := time.Now().Add(2 * time.Second)
	for {
		for _, line := range strings.Split(out.String(), "\n") {
			if strings.Contains(line, `"path":"/server"`) {
				if !strings.Contains(line, `"status":101`) {
					t.Fatalf("expected status 101 in %s", line)
				}
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("no request log for /server in %q", out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
