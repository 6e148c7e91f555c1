package main

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) (*httptest.Server, *SessionRegistry) {
	t.Helper()

	cfg := testConfig()
	registry := newSessionRegistry(cfg, testBank(3))

	mux := httprouter.New()
	registerQuizGame(cfg, "/quiz", mux, registry)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, registry
}

func dialRoom(t *testing.T, srv *httptest.Server, code string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/quiz/" + code + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	return conn
}

// readMessageOfType skips unrelated frames (ticks, room updates) until the
// wanted type arrives.
func readMessageOfType(t *testing.T, conn *websocket.Conn, wanted string) map[string]any {
	t.Helper()

	for i := 0; i < 50; i++ {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))

		if msg["type"] == wanted {
			return msg
		}
	}

	t.Fatalf("no %q message received", wanted)

	return nil
}

func TestWebsocketCreateRoom(t *testing.T) {
	srv, registry := testServer(t)

	conn := dialRoom(t, srv, "NEW")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":   "hello",
		"name":   "Alice",
		"avatar": "🦊",
		"create": true,
	}))

	hello := readMessageOfType(t, conn, "hello:ok")
	token, _ := hello["token"].(string)
	code, _ := hello["room_code"].(string)
	require.NotEmpty(t, token)
	require.Len(t, code, 5)

	update := readMessageOfType(t, conn, "room:update")
	room, _ := update["room"].(map[string]any)
	require.NotNil(t, room)
	assert.Equal(t, "lobby", room["phase"])
	assert.Equal(t, token, room["host_token"])
	assert.Equal(t, code, room["code"])

	_, exists := registry.Get(code)
	assert.True(t, exists)
}

func TestWebsocketJoinAndPlay(t *testing.T) {
	srv, _ := testServer(t)

	host := dialRoom(t, srv, "NEW")
	require.NoError(t, host.WriteJSON(map[string]any{
		"type": "hello", "name": "Alice", "avatar": "🦊", "create": true,
	}))
	hello := readMessageOfType(t, host, "hello:ok")
	code := hello["room_code"].(string)

	player := dialRoom(t, srv, code)
	require.NoError(t, player.WriteJSON(map[string]any{
		"type": "hello", "name": "Bob", "avatar": "🐼",
	}))
	playerHello := readMessageOfType(t, player, "hello:ok")
	assert.NotEqual(t, hello["token"], playerHello["token"])

	// a non-host start attempt is rejected without state change
	require.NoError(t, player.WriteJSON(map[string]any{"type": "game:start"}))
	errMsg := readMessageOfType(t, player, "error")
	assert.Equal(t, errNotHost.Error(), errMsg["message"])

	require.NoError(t, host.WriteJSON(map[string]any{"type": "game:start"}))

	var update map[string]any
	for {
		update = readMessageOfType(t, player, "room:update")
		room := update["room"].(map[string]any)
		if room["phase"] == "question" {
			break
		}
	}

	room := update["room"].(map[string]any)
	question := room["current_q_public"].(map[string]any)
	assert.Len(t, question["choices"], 4)

	require.NoError(t, player.WriteJSON(map[string]any{
		"type": "answer:submit", "choice": 2,
	}))

	for {
		update = readMessageOfType(t, player, "room:update")
		room = update["room"].(map[string]any)

		var answered bool
		for _, entry := range room["players"].([]any) {
			p := entry.(map[string]any)
			if p["name"] == "Bob" && p["answered"] == true {
				answered = true
			}
		}
		if answered {
			break
		}
	}
}

func TestWebsocketRequiresHello(t *testing.T) {
	srv, _ := testServer(t)

	conn := dialRoom(t, srv, "NEW")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "game:start"}))

	errMsg := readMessageOfType(t, conn, "error")
	assert.Contains(t, errMsg["message"], "hello")
}

func TestWebsocketJoinUnknownRoom(t *testing.T) {
	srv, _ := testServer(t)

	conn := dialRoom(t, srv, "ZZZZZ")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "hello", "name": "Bob", "avatar": "🐼",
	}))

	errMsg := readMessageOfType(t, conn, "error")
	assert.Equal(t, "Room not found.", errMsg["message"])
}

func TestWebsocketJoinReservedCode(t *testing.T) {
	srv, _ := testServer(t)

	conn := dialRoom(t, srv, "NEW")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "hello", "name": "Bob", "avatar": "🐼",
	}))

	errMsg := readMessageOfType(t, conn, "error")
	assert.Equal(t, "To join, enter a real room code.", errMsg["message"])
}

func TestWebsocketPing(t *testing.T) {
	srv, _ := testServer(t)

	conn := dialRoom(t, srv, "NEW")
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "hello", "name": "Alice", "avatar": "🦊", "create": true,
	}))
	readMessageOfType(t, conn, "hello:ok")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	readMessageOfType(t, conn, "pong")
}

func TestWebsocketUnknownType(t *testing.T) {
	srv, _ := testServer(t)

	conn := dialRoom(t, srv, "NEW")
	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "hello", "name": "Alice", "avatar": "🦊", "create": true,
	}))
	readMessageOfType(t, conn, "hello:ok")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "bogus"}))

	errMsg := readMessageOfType(t, conn, "error")
	assert.Contains(t, errMsg["message"], "bogus")
}

func TestWebsocketReconnect(t *testing.T) {
	srv, registry := testServer(t)

	host := dialRoom(t, srv, "NEW")
	require.NoError(t, host.WriteJSON(map[string]any{
		"type": "hello", "name": "Alice", "avatar": "🦊", "create": true,
	}))
	hello := readMessageOfType(t, host, "hello:ok")
	code := hello["room_code"].(string)
	token := hello["token"].(string)

	room, exists := registry.Get(code)
	require.True(t, exists)

	room.mu.Lock()
	room.players[token].score = 3
	room.mu.Unlock()

	require.NoError(t, host.Close())

	require.Eventually(t, func() bool {
		room.mu.Lock()
		defer room.mu.Unlock()
		return !room.players[token].connected()
	}, 2*time.Second, 5*time.Millisecond)

	reconnected := dialRoom(t, srv, code)
	require.NoError(t, reconnected.WriteJSON(map[string]any{
		"type": "hello", "token": token, "name": "Alice", "avatar": "🦊",
	}))

	helloAgain := readMessageOfType(t, reconnected, "hello:ok")
	assert.Equal(t, token, helloAgain["token"])

	room.mu.Lock()
	assert.Equal(t, 3, room.players[token].score)
	assert.True(t, room.players[token].connected())
	assert.Len(t, room.players, 1)
	room.mu.Unlock()
}

func TestWebsocketKickClosesConnection(t *testing.T) {
	srv, registry := testServer(t)

	host := dialRoom(t, srv, "NEW")
	require.NoError(t, host.WriteJSON(map[string]any{
		"type": "hello", "name": "Alice", "avatar": "🦊", "create": true,
	}))
	hello := readMessageOfType(t, host, "hello:ok")
	code := hello["room_code"].(string)

	player := dialRoom(t, srv, code)
	require.NoError(t, player.WriteJSON(map[string]any{
		"type": "hello", "name": "Bob", "avatar": "🐼",
	}))
	playerHello := readMessageOfType(t, player, "hello:ok")
	playerToken := playerHello["token"].(string)

	require.NoError(t, host.WriteJSON(map[string]any{
		"type": "player:kick", "target_token": playerToken,
	}))

	// the player's connection ends, by notice or by close
	require.Eventually(t, func() bool {
		var msg map[string]any
		if err := player.ReadJSON(&msg); err != nil {
			return true
		}
		return msg["type"] == "error"
	}, 2*time.Second, 5*time.Millisecond)

	room, _ := registry.Get(code)

	require.Eventually(t, func() bool {
		return !room.knows(playerToken)
	}, 2*time.Second, 5*time.Millisecond)
}
