/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Quizbox Trivia Game
//
// A host creates a room and shares its code. Players join over WebSockets,
// pick a name and avatar, and the host drives a question/reveal cycle.
// Answers close when everyone has picked or the timer runs out, scoring
// happens once at reveal, and three one-shot jokers (50/50, spy, risk)
// can each be spent once per game, at most one per question room-wide.
//
// Features:
// - WebSockets per room: /quiz/:code and /quiz/:code/ws
// - Rooms addressed by short alphanumeric codes ("NEW" is reserved)
// - Players identified by an opaque token, stable across reconnects
// - In-progress score, jokers, and picks survive a reconnect
// - Disconnected players kept for a grace period, then purged
// - Host can kick players and advance the question cycle
// - Background timer closes each question when all have answered or time is up
// - In-browser QR button to share the current room, backed by go-qrcode

package main

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"
)

type gamePhase string

const (
	phaseLobby    gamePhase = "lobby"
	phaseQuestion gamePhase = "question"
	phaseReveal   gamePhase = "reveal"
	phaseFinished gamePhase = "finished"
)

// choiceUnset marks a player who has not answered the current question.
const choiceUnset = -1

var avatars = []string{"🦊", "🐼", "🐸", "🐵", "🐯", "🐙", "🐧", "🦄"}

var (
	errNotHost         = errors.New("only the host can do that")
	errNoPlayers       = errors.New("no players in the room")
	errNoQuestion      = errors.New("no active question right now")
	errAnswersClosed   = errors.New("answers are closed")
	errInvalidChoice   = errors.New("invalid answer")
	errRevealNotClosed = errors.New("wait until everyone has answered or time has run out")
	errNotRevealPhase  = errors.New("reveal the answers before moving on")
	errJokerClosed     = errors.New("jokers are closed")
	errJokerUsed       = errors.New("a joker has already been used this question")
	errJokerSpent5050  = errors.New("50/50 joker already spent")
	errJokerSpentSpy   = errors.New("spy joker already spent")
	errJokerSpentRisk  = errors.New("risk joker already spent")
	errKickNotFound    = errors.New("target not found")
	errKickHost        = errors.New("the host cannot be kicked")
)

// Player is a participant in a single room. Owned exclusively by its Room;
// all fields are guarded by the room mutex.
type Player struct {
	token    string
	name     string
	avatar   string
	score    int
	client   *Client // nil while disconnected
	lastSeen time.Time

	// one per game
	joker5050 bool
	jokerSpy  bool
	jokerRisk bool

	// per question
	selectedChoice int
	usedRiskThisQ  bool
	usedSpyThisQ   bool
}

func (p *Player) connected() bool {
	return p.client != nil
}

func (p *Player) answered() bool {
	return p.selectedChoice != choiceUnset
}

// pickEntry identifies a player within reveal data.
type pickEntry struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Token  string `json:"token"`
}

// revealData groups respondents by the choice they picked.
type revealData struct {
	CorrectIndex  int           `json:"correct_index"`
	PicksByChoice [][]pickEntry `json:"picks_by_choice"`
}

// Room owns all state for one game session. Every mutation, including the
// question timer's, goes through mu; rooms are fully independent of each
// other.
type Room struct {
	mu sync.Mutex

	cfg  *Config
	bank *QuestionBank

	code      string
	hostToken string
	createdAt time.Time
	players   map[string]*Player

	phase         gamePhase
	questionIndex int
	questionOrder []int

	currentQ *RenderedQuestion
	deadline time.Time

	jokerUsedThisQ bool
	livePicks      map[string]int

	questionClosed bool
	reveal         *revealData
}

func newRoom(cfg *Config, bank *QuestionBank, code, hostToken string) *Room {
	return &Room{
		cfg:           cfg,
		bank:          bank,
		code:          code,
		hostToken:     hostToken,
		createdAt:     time.Now(),
		players:       make(map[string]*Player),
		phase:         phaseLobby,
		questionIndex: -1,
		livePicks:     make(map[string]int),
	}
}

// attach adds a new player, or reattaches an existing one when the token
// matches. Score, jokers, and the current pick survive a reconnect.
func (r *Room) attach(c *Client, token, name, avatar string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.players[token]
	if exists {
		p.name = name
		p.avatar = avatar
	} else {
		p = &Player{
			token:          token,
			name:           name,
			avatar:         avatar,
			joker5050:      true,
			jokerSpy:       true,
			jokerRisk:      true,
			selectedChoice: choiceUnset,
		}
		r.players[token] = p
		if _, ok := r.livePicks[token]; !ok {
			r.livePicks[token] = choiceUnset
		}
	}

	p.client = c
	p.lastSeen = time.Now()

	r.broadcastLocked()

	return p
}

// detach handles connection loss. The player record is kept for the grace
// period so a reconnect finds it; players offline past the grace period are
// purged. A stale connection never detaches a newer one.
func (r *Room) detach(c *Client, p *Player) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.client != c {
		return
	}

	p.client = nil
	p.lastSeen = time.Now()

	r.purgeOfflineLocked()
	r.broadcastLocked()
}

func (r *Room) purgeOfflineLocked() {
	cutoff := time.Now().Add(-r.cfg.offlineGrace)

	for token, p := range r.players {
		if !p.connected() && p.lastSeen.Before(cutoff) {
			delete(r.players, token)
			delete(r.livePicks, token)
		}
	}
}

// knows reports whether a token identifies an existing player in the room.
func (r *Room) knows(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.players[token]

	return exists
}

func (r *Room) touch(p *Player) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.lastSeen = time.Now()
}

// startGame begins the question cycle: scores and jokers reset, a fresh
// shuffled question order is drawn, and the first question goes out.
func (r *Room) startGame(p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.token != r.hostToken {
		return errNotHost
	}
	if len(r.players) == 0 {
		return errNoPlayers
	}

	for _, p := range r.players {
		p.score = 0
		p.joker5050 = true
		p.jokerSpy = true
		p.jokerRisk = true
	}

	r.questionOrder = r.bank.ShuffledOrder(r.cfg.maxQuestions)
	r.questionIndex = -1

	r.advanceLocked()

	return nil
}

// nextQuestion moves from reveal to the next question, or to finished when
// the order is exhausted.
func (r *Room) nextQuestion(p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.token != r.hostToken {
		return errNotHost
	}
	if r.phase != phaseReveal {
		return errNotRevealPhase
	}

	r.advanceLocked()

	return nil
}

func (r *Room) advanceLocked() {
	r.questionIndex++

	r.jokerUsedThisQ = false
	r.questionClosed = false
	r.reveal = nil
	r.currentQ = nil
	r.deadline = time.Time{}
	r.livePicks = make(map[string]int)

	for _, p := range r.players {
		p.selectedChoice = choiceUnset
		p.usedRiskThisQ = false
		p.usedSpyThisQ = false
		r.livePicks[p.token] = choiceUnset
	}

	if r.questionIndex >= len(r.questionOrder) {
		r.phase = phaseFinished
		r.broadcastLocked()
		return
	}

	r.currentQ = r.bank.Render(r.questionOrder[r.questionIndex])
	r.phase = phaseQuestion
	r.deadline = time.Now().Add(r.cfg.questionTime)

	r.broadcastLocked()

	go r.runTimer(r.questionIndex)
}

// runTimer closes the question it was started for once every player has
// answered or the deadline has passed, broadcasting countdown ticks in the
// meantime. It is the sole writer of questionClosed. A timer whose question
// is over (phase left, or a later question started) exits without effect.
func (r *Room) runTimer(index int) {
	for {
		r.mu.Lock()

		if r.phase != phaseQuestion || r.questionIndex != index || r.questionClosed {
			r.mu.Unlock()
			return
		}

		now := time.Now()

		allAnswered := len(r.players) > 0
		for _, p := range r.players {
			if !p.answered() {
				allAnswered = false
				break
			}
		}

		if allAnswered || !now.Before(r.deadline) {
			r.questionClosed = true
			r.broadcastLocked()
			r.mu.Unlock()
			return
		}

		tick := &tickMessage{
			Type:     "tick",
			Now:      unixSeconds(now),
			Deadline: unixSeconds(r.deadline),
		}
		for _, p := range r.players {
			p.send(tick)
		}

		r.mu.Unlock()

		time.Sleep(r.cfg.tickInterval)
	}
}

// submitAnswer records a player's pick. Only the first submission per
// question counts; repeats are silently ignored.
func (r *Room) submitAnswer(p *Player, choice int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != phaseQuestion || r.currentQ == nil {
		return errNoQuestion
	}
	if r.questionClosed {
		return errAnswersClosed
	}
	if choice < 0 || choice > 3 {
		return errInvalidChoice
	}

	if p.answered() {
		return nil
	}

	p.selectedChoice = choice
	r.livePicks[p.token] = choice

	r.pushSpyUpdatesLocked(nil)
	r.broadcastLocked()

	return nil
}

// revealAnswers scores the question and moves to the reveal phase. Scoring
// runs exactly once per question: reveal can only be entered once per cycle,
// and requires the question to be closed first.
func (r *Room) revealAnswers(p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.token != r.hostToken {
		return errNotHost
	}
	if r.phase != phaseQuestion || r.currentQ == nil {
		return errNoQuestion
	}
	if !r.questionClosed {
		return errRevealNotClosed
	}

	picks := make([][]pickEntry, 4)
	for i := range picks {
		picks[i] = []pickEntry{}
	}

	for _, p := range r.players {
		if !p.answered() {
			continue
		}
		picks[p.selectedChoice] = append(picks[p.selectedChoice], pickEntry{
			Name:   p.name,
			Avatar: p.avatar,
			Token:  p.token,
		})
	}

	correctIndex := r.currentQ.CorrectIndex

	for _, p := range r.players {
		if !p.answered() {
			continue
		}
		correct := p.selectedChoice == correctIndex

		switch {
		case p.usedRiskThisQ && correct:
			p.score += 2 * r.cfg.points
		case p.usedRiskThisQ:
			p.score -= r.cfg.points
		case correct:
			p.score += r.cfg.points
		}
	}

	r.phase = phaseReveal
	r.reveal = &revealData{
		CorrectIndex:  correctIndex,
		PicksByChoice: picks,
	}

	r.broadcastLocked()

	return nil
}

// checkJokerLocked enforces the preconditions shared by all jokers: an open
// question, and the room-wide one-joker-per-question gate.
func (r *Room) checkJokerLocked() error {
	if r.phase != phaseQuestion || r.currentQ == nil {
		return errNoQuestion
	}
	if r.questionClosed {
		return errJokerClosed
	}
	if r.jokerUsedThisQ {
		return errJokerUsed
	}
	return nil
}

// useFiftyFifty hides two of the three wrong choices for the caller only.
func (r *Room) useFiftyFifty(p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkJokerLocked(); err != nil {
		return err
	}
	if !p.joker5050 {
		return errJokerSpent5050
	}

	wrong := make([]int, 0, 3)
	for i := 0; i < 4; i++ {
		if i != r.currentQ.CorrectIndex {
			wrong = append(wrong, i)
		}
	}
	rand.Shuffle(len(wrong), func(i, j int) {
		wrong[i], wrong[j] = wrong[j], wrong[i]
	})

	p.joker5050 = false
	r.jokerUsedThisQ = true

	p.send(&fiftyFiftyMessage{
		Type:        "joker:5050",
		HideIndices: wrong[:2],
	})

	r.broadcastLocked()

	return nil
}

// useSpy starts a caller-private live feed of everyone's current picks,
// refreshed on every answer submission this question.
func (r *Room) useSpy(p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkJokerLocked(); err != nil {
		return err
	}
	if !p.jokerSpy {
		return errJokerSpentSpy
	}

	p.jokerSpy = false
	p.usedSpyThisQ = true
	r.jokerUsedThisQ = true

	r.pushSpyUpdatesLocked(p)
	r.broadcastLocked()

	return nil
}

// useRisk doubles the payout for a correct answer and makes a wrong one
// cost points, for this question only.
func (r *Room) useRisk(p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkJokerLocked(); err != nil {
		return err
	}
	if !p.jokerRisk {
		return errJokerSpentRisk
	}

	p.jokerRisk = false
	p.usedRiskThisQ = true
	r.jokerUsedThisQ = true

	p.send(&infoMessage{
		Type:    "info",
		Message: fmt.Sprintf("Risk active: correct = +%d, wrong = -%d", 2*r.cfg.points, r.cfg.points),
	})

	r.broadcastLocked()

	return nil
}

// kick removes a player from the room. The notice to the target is
// best-effort; the connection is closed regardless.
func (r *Room) kick(p *Player, targetToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.token != r.hostToken {
		return errNotHost
	}

	target, exists := r.players[targetToken]
	if !exists {
		return errKickNotFound
	}
	if targetToken == r.hostToken {
		return errKickHost
	}

	target.send(&errorMessage{
		Type:    "error",
		Message: "You have been kicked by the host.",
	})
	if target.client != nil {
		target.client.close()
	}

	delete(r.players, targetToken)
	delete(r.livePicks, targetToken)

	r.broadcastLocked()

	return nil
}

// pushSpyUpdatesLocked sends the current pick lines to every player with an
// active spy joker, or only to one when given.
func (r *Room) pushSpyUpdatesLocked(only *Player) {
	var lines []string
	for _, p := range r.sortedPlayersLocked() {
		lines = append(lines, fmt.Sprintf("%s %s → %s", p.avatar, p.name, choiceLabel(r.livePicks[p.token])))
	}

	msg := &spyUpdateMessage{
		Type:  "spy:update",
		Lines: lines,
	}

	for _, p := range r.players {
		if !p.usedSpyThisQ {
			continue
		}
		if only != nil && p != only {
			continue
		}
		p.send(msg)
	}
}

func choiceLabel(choice int) string {
	if choice == choiceUnset {
		return "—"
	}
	return string(rune('A' + choice))
}

func (r *Room) sortedPlayersLocked() []*Player {
	players := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}

	sort.SliceStable(players, func(i, j int) bool {
		return players[i].score > players[j].score
	})

	return players
}

// snapshotLocked builds the full room view broadcast to every player.
func (r *Room) snapshotLocked() *roomSnapshot {
	snapshot := &roomSnapshot{
		Code:           r.code,
		Phase:          r.phase,
		HostToken:      r.hostToken,
		QuestionIndex:  r.questionIndex,
		JokerUsedThisQ: r.jokerUsedThisQ,
		QuestionClosed: r.questionClosed,
		RevealData:     r.reveal,
		Avatars:        avatars,
	}

	if !r.deadline.IsZero() {
		deadline := unixSeconds(r.deadline)
		snapshot.Deadline = &deadline
	}

	for _, p := range r.sortedPlayersLocked() {
		snapshot.Players = append(snapshot.Players, playerView{
			Token:     p.token,
			Name:      p.name,
			Avatar:    p.avatar,
			Score:     p.score,
			Connected: p.connected(),
			Answered:  p.answered(),
		})
	}

	if r.currentQ != nil && (r.phase == phaseQuestion || r.phase == phaseReveal) {
		snapshot.CurrentQuestion = &questionView{
			Text:    r.currentQ.Text,
			Choices: r.currentQ.Choices,
		}
	}

	return snapshot
}

// broadcastLocked queues the current room view for every connected player.
// Sends are fire-and-forget: a dead or slow recipient never blocks the
// mutation that produced the snapshot.
func (r *Room) broadcastLocked() {
	msg := &roomUpdateMessage{
		Type: "room:update",
		Room: r.snapshotLocked(),
	}

	for _, p := range r.players {
		p.send(msg)
	}
}

// send queues a message for the player's current connection, if any.
func (p *Player) send(msg any) {
	if p.client != nil {
		p.client.trySend(msg)
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000.0
}
