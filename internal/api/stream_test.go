package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hyperengineering/leettrack/internal/session"
	"github.com/hyperengineering/leettrack/internal/types"
)

func dialStream(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stats/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("Dial() error = %v (status %d)", err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) StreamMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var msg StreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("frame %q is not JSON: %v", data, err)
	}
	return msg
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d clients, want %d", hub.Clients(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStream_InitialFrameThenUpdates(t *testing.T) {
	// Given: a logged-in session served over a real listener
	env := newTestEnv(t, "", true)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	conn := dialStream(t, srv, nil)

	// Then: the first frame carries the current statistics and goal
	first := readMessage(t, conn)
	if first.Type != session.EventStatistics || first.Statistics == nil || first.Goal == nil {
		t.Fatalf("initial frame = %+v", first)
	}
	if first.Statistics.Completed != 1 || first.Goal.Goal != 3 {
		t.Errorf("initial stats = %+v, goal = %+v", first.Statistics, first.Goal)
	}
	waitForClients(t, env.hub, 1)

	// When: progress changes
	done := types.StatusDone
	if _, ok := env.session.UpdateProgress("two-sum", types.ProgressUpdate{Status: &done}); !ok {
		t.Fatal("UpdateProgress() not applied")
	}

	// Then: a statistics frame follows with the new count
	msg := readMessage(t, conn)
	if msg.Type != session.EventStatistics || msg.Statistics == nil {
		t.Fatalf("update frame = %+v", msg)
	}
	if msg.Statistics.Completed != 2 || msg.Statistics.TodayCompleted != 1 {
		t.Errorf("stats after update = %+v", msg.Statistics)
	}
	if msg.Timestamp.IsZero() {
		t.Error("frame has no timestamp")
	}
}

func TestStream_RequiresKey(t *testing.T) {
	env := newTestEnv(t, testAPIKey, true)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stats/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial() without key succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+testAPIKey)
	conn := dialStream(t, srv, header)
	if msg := readMessage(t, conn); msg.Statistics == nil {
		t.Errorf("initial frame = %+v", msg)
	}
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	env := newTestEnv(t, "", true)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	conn := dialStream(t, srv, nil)
	readMessage(t, conn)
	waitForClients(t, env.hub, 1)

	// When: the hub shuts down
	env.hub.Close()

	// Then: the client sees the connection end
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("ReadMessage() after Close succeeded, want error")
	}
	if n := env.hub.Clients(); n != 0 {
		t.Errorf("Clients() = %d, want 0", n)
	}
}

func TestHub_PublishWithoutClients(t *testing.T) {
	env := newTestEnv(t, "", true)

	env.hub.Publish(session.Event{Type: session.EventStatistics})

	if n := env.hub.Clients(); n != 0 {
		t.Errorf("Clients() = %d, want 0", n)
	}
}
