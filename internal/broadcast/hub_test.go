package broadcast

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHub sets up a Hub behind a test WebSocket server. Dialed connections are
// registered on upgrade and unregistered when their read pump observes a close.
func testHub(t *testing.T, maxClients int) (*Hub, func() *ws.Conn) {
	t.Helper()

	hub := NewHub(clockwork.NewRealClock(), maxClients)
	t.Cleanup(func() { hub.Stop() })

	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		if err := hub.Register(conn); err != nil {
			return
		}

		go func() {
			defer hub.Unregister(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}))
	t.Cleanup(func() { server.Close() })

	dial := func() *ws.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(server.URL, "http")
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	return hub, dial
}

// newTestConnPair returns both ends of a live WebSocket connection without
// registering the server side anywhere.
func newTestConnPair(t *testing.T) (server *ws.Conn, client *ws.Conn) {
	t.Helper()
	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	ready := make(chan *ws.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		ready <- conn
	}))
	t.Cleanup(func() { srv.Close() })

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	serverConn := <-ready
	t.Cleanup(func() { serverConn.Close() })
	return serverConn, clientConn
}

func waitForClientCount(h *Hub, expected int) bool {
	for i := 0; i < 200; i++ {
		if h.ClientCount() == expected {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestHub_RegisterAndClientCount(t *testing.T) {
	hub, dial := testHub(t, 50)

	assert.Equal(t, 0, hub.ClientCount())

	conn1 := dial()
	require.True(t, waitForClientCount(hub, 1))

	dial()
	require.True(t, waitForClientCount(hub, 2))

	conn1.Close()
	require.True(t, waitForClientCount(hub, 1))
}

func TestHub_RegisterIdempotent(t *testing.T) {
	hub := NewHub(clockwork.NewRealClock(), 50)
	t.Cleanup(func() { hub.Stop() })

	server, _ := newTestConnPair(t)
	require.NoError(t, hub.Register(server))
	require.NoError(t, hub.Register(server))
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHub_UnregisterAbsentIsNoop(t *testing.T) {
	hub, dial := testHub(t, 50)

	dial()
	require.True(t, waitForClientCount(hub, 1))

	stranger, _ := newTestConnPair(t)
	hub.Unregister(stranger)

	assert.Equal(t, 1, hub.ClientCount())
}

func TestHub_SnapshotIsPointInTime(t *testing.T) {
	hub, dial := testHub(t, 50)

	conn1 := dial()
	dial()
	require.True(t, waitForClientCount(hub, 2))

	snapshot := hub.Snapshot()
	require.Len(t, snapshot, 2)

	// Later mutations must not affect the copy already taken.
	conn1.Close()
	require.True(t, waitForClientCount(hub, 1))
	assert.Len(t, snapshot, 2)
	assert.Len(t, hub.Snapshot(), 1)
}

func TestHub_MaxClients(t *testing.T) {
	hub := NewHub(clockwork.NewRealClock(), 2)
	t.Cleanup(func() { hub.Stop() })

	for i := 0; i < 2; i++ {
		server, _ := newTestConnPair(t)
		require.NoError(t, hub.Register(server), "client %d should register", i)
	}
	assert.Equal(t, 2, hub.ClientCount())

	server, _ := newTestConnPair(t)
	err := hub.Register(server)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max clients")
	assert.Equal(t, 2, hub.ClientCount())
}

func TestHub_BroadcastDeliversToAll(t *testing.T) {
	hub, dial := testHub(t, 50)

	conn1 := dial()
	conn2 := dial()
	require.True(t, waitForClientCount(hub, 2))

	hub.Broadcast([]byte(`{"hello":"viewers"}`))

	for _, conn := range []*ws.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, `{"hello":"viewers"}`, string(msg))
	}
}

func TestHub_BroadcastEvictsDeadViewer(t *testing.T) {
	hub := NewHub(clockwork.NewRealClock(), 50)
	t.Cleanup(func() { hub.Stop() })

	server, client := newTestConnPair(t)
	require.NoError(t, hub.Register(server))
	require.Equal(t, 1, hub.ClientCount())

	// Kill the peer; the writer dies on its next failed write, after which
	// the broadcast path deregisters it.
	client.Close()

	evicted := false
	for i := 0; i < 200; i++ {
		hub.Broadcast([]byte(`{"n":1}`))
		if hub.ClientCount() == 0 {
			evicted = true
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, evicted, "dead viewer should be evicted by broadcast path")
}

func TestHub_StopClosesConnections(t *testing.T) {
	hub := NewHub(clockwork.NewRealClock(), 50)

	server, client := newTestConnPair(t)
	require.NoError(t, hub.Register(server))

	hub.Stop()

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := client.ReadMessage()
	require.Error(t, err)
	assert.True(t, ws.IsCloseError(err, ws.CloseNormalClosure), "expected normal close, got %v", err)
}
