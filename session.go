/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"sync"
)

// reservedRoomCode is the sentinel clients connect with when creating a
// room; it can never be allocated or joined.
const reservedRoomCode = "NEW"

// SessionRegistry holds every room in the process, keyed by room code.
// Rooms live until shutdown; only their offline players are reaped.
type SessionRegistry struct {
	mu    sync.Mutex
	cfg   *Config
	bank  *QuestionBank
	rooms map[string]*Room
}

func newSessionRegistry(cfg *Config, bank *QuestionBank) *SessionRegistry {
	return &SessionRegistry{
		cfg:   cfg,
		bank:  bank,
		rooms: make(map[string]*Room),
	}
}

// Create allocates a fresh room code and registers a new room with the
// given host token.
func (s *SessionRegistry) Create(hostToken string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := s.newRoomCodeLocked()
	room := newRoom(s.cfg, s.bank, code, hostToken)
	s.rooms[code] = room

	return room
}

func (s *SessionRegistry) Get(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[code]

	return room, exists
}

func (s *SessionRegistry) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.rooms)
}

// newRoomCodeLocked generates a crypto-random 5-character room code,
// retrying on collisions and the reserved sentinel.
func (s *SessionRegistry) newRoomCodeLocked() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	for {
		buf := make([]byte, 5)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 5)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		code := string(out)

		if code == reservedRoomCode {
			continue
		}
		if _, exists := s.rooms[code]; !exists {
			return code
		}
	}
}
