/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Messages coming from clients
type clientMessage struct {
	Type        string `json:"type"`                   // "hello", "ping", "game:start", "host:reveal", "host:next", "player:kick", "answer:submit", "joker:5050", "joker:spy", "joker:risk"
	Token       string `json:"token,omitempty"`        // hello (reconnect token)
	Name        string `json:"name,omitempty"`         // hello
	Avatar      string `json:"avatar,omitempty"`       // hello
	Create      bool   `json:"create,omitempty"`       // hello
	TargetToken string `json:"target_token,omitempty"` // player:kick
	Choice      *int   `json:"choice,omitempty"`       // answer:submit
}

// helloOKMessage acknowledges a hello with the assigned token and room code.
type helloOKMessage struct {
	Type     string `json:"type"` // "hello:ok"
	Token    string `json:"token"`
	RoomCode string `json:"room_code"`
}

// roomUpdateMessage carries a full room view to every player.
type roomUpdateMessage struct {
	Type string        `json:"type"` // "room:update"
	Room *roomSnapshot `json:"room"`
}

type roomSnapshot struct {
	Code            string        `json:"code"`
	Phase           gamePhase     `json:"phase"`
	HostToken       string        `json:"host_token"`
	QuestionIndex   int           `json:"question_index"`
	Deadline        *float64      `json:"q_deadline_ts"`
	JokerUsedThisQ  bool          `json:"joker_used_this_q"`
	QuestionClosed  bool          `json:"question_closed"`
	RevealData      *revealData   `json:"reveal_data"`
	Players         []playerView  `json:"players"`
	CurrentQuestion *questionView `json:"current_q_public"`
	Avatars         []string      `json:"avatars"`
}

// playerView is the public slice of a player shown on every scoreboard.
type playerView struct {
	Token     string `json:"token"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
	Answered  bool   `json:"answered"`
}

// questionView is the visible part of the current question. The correct
// index only ever travels inside reveal data.
type questionView struct {
	Text    string   `json:"text"`
	Choices []string `json:"choices"`
}

// tickMessage is the lightweight countdown broadcast during a question.
type tickMessage struct {
	Type     string  `json:"type"` // "tick"
	Now      float64 `json:"now"`
	Deadline float64 `json:"deadline"`
}

// fiftyFiftyMessage is sent only to the caller of the 50/50 joker.
type fiftyFiftyMessage struct {
	Type        string `json:"type"` // "joker:5050"
	HideIndices []int  `json:"hide_indices"`
}

// spyUpdateMessage is the caller-private live pick feed.
type spyUpdateMessage struct {
	Type  string   `json:"type"` // "spy:update"
	Lines []string `json:"lines"`
}

type infoMessage struct {
	Type    string `json:"type"` // "info"
	Message string `json:"message"`
}

type errorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type pongMessage struct {
	Type string `json:"type"` // "pong"
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one live connection. Outbound delivery is fire-and-forget: a
// full buffer or a closed connection drops the message, and the loss shows
// up only as the player's connected flag in later room views.
type Client struct {
	conn *websocket.Conn
	send chan any
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan any, 16),
		done: make(chan struct{}),
	}
}

func (c *Client) trySend(msg any) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *Client) sendError(message string) {
	c.trySend(&errorMessage{
		Type:    "error",
		Message: message,
	})
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Player"
	}

	runes := []rune(name)
	if len(runes) > 24 {
		name = string(runes[:24])
	}

	return name
}

func sanitizeAvatar(avatar string) string {
	if slices.Contains(avatars, avatar) {
		return avatar
	}
	return avatars[0]
}

// serveQuizWS upgrades the connection and runs the per-connection message
// loop for the room code in the path.
func serveQuizWS(cfg *Config, registry *SessionRegistry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := strings.ToUpper(ps.ByName("code"))
		if code == "" {
			http.Error(w, "missing room code", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Websocket upgrade from %s: %v", realIP(r), err)
			return
		}

		client := newClient(conn)

		go client.writePump()
		client.readPump(cfg, registry, code)
	}
}

// readPump demultiplexes inbound messages to room operations. Every message
// except hello and ping requires a completed hello first.
func (c *Client) readPump(cfg *Config, registry *SessionRegistry, pathCode string) {
	var room *Room
	var me *Player

	defer func() {
		if room != nil && me != nil {
			room.detach(c, me)
		}
		c.close()
	}()

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if msg.Type == "hello" {
			room, me = c.handleHello(cfg, registry, pathCode, msg, room, me)
			continue
		}

		if room == nil || me == nil {
			c.sendError("Not initialized. Send hello first.")
			continue
		}

		var err error

		switch msg.Type {
		case "ping":
			room.touch(me)
			c.trySend(&pongMessage{Type: "pong"})

		case "game:start":
			err = room.startGame(me)
			if err == nil {
				logf(cfg, "GAMES: Game started in %s", room.code)
			}

		case "host:reveal":
			err = room.revealAnswers(me)

		case "host:next":
			err = room.nextQuestion(me)

		case "player:kick":
			err = room.kick(me, msg.TargetToken)
			if err == nil {
				logf(cfg, "GAMES: Player %.8s kicked from %s", msg.TargetToken, room.code)
			}

		case "answer:submit":
			if msg.Choice == nil {
				err = errInvalidChoice
			} else {
				err = room.submitAnswer(me, *msg.Choice)
			}

		case "joker:5050":
			err = room.useFiftyFifty(me)

		case "joker:spy":
			err = room.useSpy(me)

		case "joker:risk":
			err = room.useRisk(me)

		default:
			c.sendError("Unknown message type: " + msg.Type)
		}

		if err != nil {
			c.sendError(err.Error())
		}
	}
}

// handleHello processes create, join, and reconnect. A token matching an
// existing player in the room re-identifies that player; anything else
// allocates a fresh identity.
func (c *Client) handleHello(cfg *Config, registry *SessionRegistry, pathCode string, msg clientMessage, room *Room, me *Player) (*Room, *Player) {
	name := sanitizeName(msg.Name)
	avatar := sanitizeAvatar(msg.Avatar)
	token := strings.TrimSpace(msg.Token)

	if msg.Create {
		if token == "" {
			token = uuid.NewString()
		}

		created := registry.Create(token)

		c.trySend(&helloOKMessage{
			Type:     "hello:ok",
			Token:    token,
			RoomCode: created.code,
		})

		logf(cfg, "GAMES: Room %s created by %q", created.code, name)

		return created, created.attach(c, token, name, avatar)
	}

	if pathCode == reservedRoomCode {
		c.sendError("To join, enter a real room code.")
		return room, me
	}

	target, exists := registry.Get(pathCode)
	if !exists {
		c.sendError("Room not found.")
		return room, me
	}

	if token == "" || !target.knows(token) {
		token = uuid.NewString()
	}

	c.trySend(&helloOKMessage{
		Type:     "hello:ok",
		Token:    token,
		RoomCode: target.code,
	})

	logf(cfg, "GAMES: Player %q joined %s", name, target.code)

	return target, target.attach(c, token, name, avatar)
}
