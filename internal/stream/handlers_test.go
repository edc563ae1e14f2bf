package stream

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/thisyearnofear/IMONMYWAY-sub003/internal/session"
)

func newTestApp(t *testing.T) (*Broadcaster, string) {
	t.Helper()

	store := session.NewStore()
	b := NewBroadcaster(store, NewHub(), 16)
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), b)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() { _ = app.Shutdown() })

	return b, "ws://" + ln.Addr().String() + "/stream/ws"
}

func readEvent(t *testing.T, conn *websocket.Conn, out any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if err := json.Unmarshal(msg, out); err != nil {
		t.Fatalf("unmarshal %s: %v", msg, err)
	}
}

func TestStreamHandlersUpgradeRequired(t *testing.T) {
	b := NewBroadcaster(session.NewStore(), NewHub(), 16)
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), b)

	req := httptest.NewRequest(http.MethodGet, "/stream/ws", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode == http.StatusOK {
		t.Fatalf("expected non-200 for non-websocket request")
	}
}

func TestStreamPublishAndWatch(t *testing.T) {
	b, wsURL := newTestApp(t)

	pub, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer pub.Close()

	if err := pub.WriteMessage(websocket.TextMessage, []byte(`{"type":"start-session","pace":10}`)); err != nil {
		t.Fatalf("write error: %v", err)
	}
	var reply StartReply
	readEvent(t, pub, &reply)
	if !reply.Success || reply.SharingID == "" {
		t.Fatalf("unexpected reply %+v", reply)
	}

	watcher, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer watcher.Close()

	if err := watcher.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","sharingId":"`+reply.SharingID+`"}`)); err != nil {
		t.Fatalf("write error: %v", err)
	}
	var snapshot WatchEvent
	readEvent(t, watcher, &snapshot)
	if snapshot.LocationData.ID != reply.SharingID {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	if err := pub.WriteMessage(websocket.TextMessage, []byte(`{"type":"update-location","sharingId":"`+reply.SharingID+`","latitude":1.5,"longitude":2.5}`)); err != nil {
		t.Fatalf("write error: %v", err)
	}
	var update WatchEvent
	readEvent(t, watcher, &update)
	if update.LocationData.Latitude != 1.5 || update.LocationData.Longitude != 2.5 {
		t.Fatalf("unexpected update %+v", update.LocationData)
	}

	// Publisher disconnect deactivates the session and notifies the watcher.
	pub.Close()
	var teardown WatchEvent
	readEvent(t, watcher, &teardown)
	if teardown.LocationData.Active {
		t.Fatalf("expected inactive record after publisher disconnect")
	}

	deadline := time.Now().Add(time.Second)
	for {
		sess, err := b.store.Get(reply.SharingID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !sess.Active {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never deactivated")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamWatcherCloseCleansRoom(t *testing.T) {
	b, wsURL := newTestApp(t)

	pub, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer pub.Close()

	if err := pub.WriteMessage(websocket.TextMessage, []byte(`{"type":"start-session"}`)); err != nil {
		t.Fatalf("write error: %v", err)
	}
	var reply StartReply
	readEvent(t, pub, &reply)

	watcher, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	if err := watcher.WriteMessage(websocket.TextMessage, []byte(`{"type":"join","sharingId":"`+reply.SharingID+`"}`)); err != nil {
		t.Fatalf("write error: %v", err)
	}
	var snapshot WatchEvent
	readEvent(t, watcher, &snapshot)

	_ = watcher.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	watcher.Close()

	deadline := time.Now().Add(time.Second)
	for b.hub.Subscribers(reply.SharingID) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("room never emptied after watcher close")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Watcher teardown must not deactivate the publisher's session.
	sess, err := b.store.Get(reply.SharingID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !sess.Active {
		t.Fatalf("expected session still active")
	}
}
