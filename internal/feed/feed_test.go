package feed

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, conn net.Conn) <-chan string {
	t.Helper()
	out := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			out <- sc.Text()
		}
		close(out)
	}()
	return out
}

func recvLine(t *testing.T, lines <-chan string) string {
	t.Helper()
	select {
	case line, ok := <-lines:
		require.True(t, ok, "feed closed before the expected line arrived")
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed line")
		return ""
	}
}

func TestHub_BroadcastPreservesOrder(t *testing.T) {
	hub := NewHub()

	client, server := net.Pipe()
	defer client.Close()
	hub.Add(server)

	lines := readLines(t, client)

	for vol := 1; vol <= 3; vol++ {
		hub.Broadcast(RecordEvent{Type: EventAdd, Title: "Foo", Volume: vol})
	}

	for vol := 1; vol <= 3; vol++ {
		var ev RecordEvent
		require.NoError(t, json.Unmarshal([]byte(recvLine(t, lines)), &ev))
		assert.Equal(t, EventAdd, ev.Type)
		assert.Equal(t, vol, ev.Volume, "events arrive in broadcast order")
	}
}

func TestHub_BroadcastDropsDeadClient(t *testing.T) {
	hub := NewHub()

	client, server := net.Pipe()
	hub.Add(server)
	_ = client.Close()

	// write fails against the closed pipe; the client gets evicted and the
	// broadcast still returns
	hub.Broadcast(RecordEvent{Type: EventDelete, ID: "x"})
	assert.Equal(t, 0, hub.Count())
}

func TestWSHandler_WelcomeArrivesBeforeBroadcasts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()

	r := gin.New()
	r.GET("/ws", WSHandler(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	// the client joins the hub only after its welcome write completed
	require.Eventually(t, func() bool {
		return hub.Stats().WSClients == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast(RecordEvent{Type: EventUpdate, Title: "Bar", Volume: 2})

	var first struct {
		Type string `json:"type"`
	}
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, ws.ReadJSON(&first))
	assert.Equal(t, "welcome", first.Type, "welcome precedes any broadcast")

	var ev RecordEvent
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, EventUpdate, ev.Type)
	assert.Equal(t, "Bar", ev.Title)
}
