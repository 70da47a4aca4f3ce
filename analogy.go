/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Analogy Game facilitation rooms.
//
// Each room is one facilitator screen (plus any mirrors of it) driving a
// single workshop session:
// - WebSockets per room ID: /path/:room and /path/:room/ws
// - Every connected screen sees the same session and may issue commands
// - Session state lives in the configured store under a per-room prefix
// - Rooms are unloaded after an idle timeout; their sessions stay saved
// - Random 8-char room IDs via crypto/rand, with server-side collision check
// - JSON and Markdown exports of the current session
// - In-browser QR button to share the room, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/analogy/games/analogy"
	"github.com/Seednode/analogy/store"
)

// ClientMessage is a command from a facilitator screen. Only the fields
// relevant to Type are set.
type ClientMessage struct {
	Type         string            `json:"type"`
	Side         string            `json:"side,omitempty"`         // vote / unvote
	Index        *int              `json:"index,omitempty"`        // go_to / update_item / remove_item
	Phase        int               `json:"phase,omitempty"`        // set_phase
	Field        string            `json:"field,omitempty"`        // update
	Value        string            `json:"value,omitempty"`        // update
	Values       []string          `json:"values,omitempty"`       // update keywords
	Participants *int              `json:"participants,omitempty"` // update participants
	Seconds      int               `json:"seconds,omitempty"`      // timer_duration
	Template     string            `json:"template,omitempty"`     // apply_*_template
	Kind         string            `json:"kind,omitempty"`         // *_item
	Fields       map[string]string `json:"fields,omitempty"`       // update_item
}

// StateMessage carries the full session view after every change.
type StateMessage struct {
	Type  string       `json:"type"` // "state"
	Room  string       `json:"room"`
	State analogy.View `json:"state"`
}

// CueMessage asks the screen to play a timer tone.
type CueMessage struct {
	Type string      `json:"type"` // "cue"
	Cue  analogy.Cue `json:"cue"`
}

// SimpleMessage is for notifications to a single screen ("error").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	clientID string
}

type command struct {
	client *Client
	msg    ClientMessage
}

var errUnknownCommand = errors.New("unknown command")

// Hub fans one room's controller out to every connected screen.
type Hub struct {
	id      string
	clients map[*Client]bool
	ctrl    *analogy.Controller
	log     zerolog.Logger

	register chan *Client
	unreg    chan *Client
	commands chan command
	changed  chan struct{}
	cues     chan analogy.Cue

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.RWMutex
	lastActive time.Time
	clock      clockwork.Clock
}

func newHub(roomID string, ctrl *analogy.Controller, clock clockwork.Clock, log zerolog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		id:         roomID,
		clients:    make(map[*Client]bool),
		ctrl:       ctrl,
		log:        log,
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		commands:   make(chan command),
		changed:    make(chan struct{}, 1),
		cues:       make(chan analogy.Cue, 16),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		lastActive: clock.Now(),
		clock:      clock,
	}

	// Listeners run on whichever goroutine changed the session, possibly
	// run itself, so they only signal.
	ctrl.OnChange(func() {
		select {
		case h.changed <- struct{}{}:
		default:
		}
	})
	ctrl.OnCue(func(c analogy.Cue) {
		select {
		case h.cues <- c:
		default:
		}
	})

	return h
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = h.clock.Now()
	h.mu.Unlock()
}

func (h *Hub) idleSince() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive
}

func (h *Hub) run() {
	defer close(h.done)

	go h.ctrl.RunAutoSave(h.ctx)

	for {
		select {
		case <-h.ctx.Done():
			for c := range h.clients {
				close(c.send)
				_ = c.conn.Close()
				delete(h.clients, c)
			}

			return

		case c := <-h.register:
			h.touch()
			h.clients[c] = true
			h.sendTo(c, h.stateMessage())

		case c := <-h.unreg:
			h.touch()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case cmd := <-h.commands:
			h.touch()
			if err := h.dispatch(cmd.msg); err != nil {
				h.log.Debug().Err(err).Str("command", cmd.msg.Type).Str("client", cmd.client.clientID).Msg("command rejected")
				h.sendTo(cmd.client, SimpleMessage{Type: "error", Message: err.Error()})
			}

		case <-h.changed:
			h.broadcast(h.stateMessage())

		case cue := <-h.cues:
			h.broadcast(CueMessage{Type: "cue", Cue: cue})
		}
	}
}

func (h *Hub) stateMessage() StateMessage {
	return StateMessage{Type: "state", Room: h.id, State: h.ctrl.View()}
}

func (h *Hub) sendTo(c *Client, msg any) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(msg any) {
	for c := range h.clients {
		h.sendTo(c, msg)
	}
}

func indexOf(msg ClientMessage) (int, error) {
	if msg.Index == nil {
		return 0, errors.New("missing index")
	}

	return *msg.Index, nil
}

// dispatch applies one command to the room's controller. Commands that
// turn out to be no-ops are not errors.
func (h *Hub) dispatch(msg ClientMessage) error {
	c := h.ctrl

	switch msg.Type {
	case "vote", "unvote":
		side, err := analogy.ParseSide(msg.Side)
		if err != nil {
			return err
		}
		if msg.Type == "vote" {
			c.Vote(side)
		} else {
			c.Unvote(side)
		}

	case "reset_votes":
		c.ResetVotes()

	case "next_pair":
		c.NextPair()

	case "previous_pair":
		c.PreviousPair()

	case "go_to":
		i, err := indexOf(msg)
		if err != nil {
			return err
		}
		c.GoToPair(i)

	case "timer_start":
		c.StartTimer()

	case "timer_pause":
		c.PauseTimer()

	case "timer_toggle":
		if !c.PauseTimer() {
			c.StartTimer()
		}

	case "timer_reset":
		c.ResetTimer()

	case "timer_duration":
		if !c.SetTimerDuration(msg.Seconds) {
			return fmt.Errorf("invalid timer duration: %d", msg.Seconds)
		}

	case "next_round":
		c.NextRound()

	case "set_phase":
		c.SetPhase(msg.Phase)

	case "update":
		return h.update(msg)

	case "apply_archetype_template":
		return c.ApplyArchetypeTemplate(msg.Template)

	case "apply_hypothesis_template":
		return c.ApplyHypothesisTemplate(msg.Template)

	case "add_item":
		return c.AddItem(analogy.ItemKind(msg.Kind))

	case "update_item":
		i, err := indexOf(msg)
		if err != nil {
			return err
		}
		return c.UpdateItem(analogy.ItemKind(msg.Kind), i, msg.Fields)

	case "remove_item":
		i, err := indexOf(msg)
		if err != nil {
			return err
		}
		return c.RemoveItem(analogy.ItemKind(msg.Kind), i)

	case "save":
		return c.Save(h.ctx)

	case "reset_session":
		h.log.Info().Msg("session reset requested")
		return c.Reset(h.ctx)

	case "clear_storage":
		h.log.Info().Msg("storage clear requested")
		return c.ClearStorage(h.ctx)

	default:
		return fmt.Errorf("%w: %q", errUnknownCommand, msg.Type)
	}

	return nil
}

func (h *Hub) update(msg ClientMessage) error {
	c := h.ctrl

	switch msg.Field {
	case "teamName":
		c.UpdateDetails(analogy.Details{TeamName: &msg.Value})
	case "facilitator":
		c.UpdateDetails(analogy.Details{Facilitator: &msg.Value})
	case "participants":
		c.UpdateDetails(analogy.Details{Participants: msg.Participants})
	case "patterns":
		c.SetPatterns(msg.Value)
	case "archetype":
		c.SetArchetype(msg.Value)
	case "keywords":
		c.SetKeywords(msg.Values)
	case "forerunner":
		c.SetForerunner(msg.Value)
	default:
		return fmt.Errorf("unknown field %q", msg.Field)
	}

	return nil
}

// close stops the room and flushes unsaved changes.
func (h *Hub) close() {
	h.cancel()
	<-h.done

	if h.ctrl.Dirty() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := h.ctrl.Save(ctx); err != nil {
			h.log.Error().Err(err).Msg("failed to flush session on close")
		}
	}

	h.ctrl.Close()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const clientCookieName = "analogy_id"

func getOrSetClientID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(clientCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     clientCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// RoomManager holds a set of hubs keyed by room ID, so each $path/$room
// is its own isolated session inside the shared store.
type RoomManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration

	cfg     *Config
	backend store.Store
	catalog []analogy.CompanyPair
	clock   clockwork.Clock

	stop chan struct{}
	wg   sync.WaitGroup
}

func newRoomManager(cfg *Config, backend store.Store, catalog []analogy.CompanyPair) *RoomManager {
	rm := newRoomManagerWithClock(cfg, backend, catalog, clockwork.NewRealClock())
	if rm.idleTimeout > 0 {
		rm.wg.Add(1)
		go rm.reaperLoop()
	}
	return rm
}

// newRoomManagerWithClock does not start the reaper; callers drive reap.
func newRoomManagerWithClock(cfg *Config, backend store.Store, catalog []analogy.CompanyPair, clock clockwork.Clock) *RoomManager {
	return &RoomManager{
		hubs:        make(map[string]*Hub),
		idleTimeout: cfg.sessionTimeout,
		cfg:         cfg,
		backend:     backend,
		catalog:     catalog,
		clock:       clock,
		stop:        make(chan struct{}),
	}
}

const (
	roomIDLetters   = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxRoomIDLength = 64
)

// validRoomID accepts only ids drawn from roomIDLetters, so no room's key
// prefix can be a prefix of another's.
func validRoomID(roomID string) bool {
	if roomID == "" || len(roomID) > maxRoomIDLength {
		return false
	}

	for i := 0; i < len(roomID); i++ {
		if strings.IndexByte(roomIDLetters, roomID[i]) < 0 {
			return false
		}
	}

	return true
}

func roomPrefix(roomID string) string {
	return "room:" + roomID + ":"
}

// roomOnly rejects requests whose :room parameter is not a valid room id.
func roomOnly(h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !validRoomID(ps.ByName("room")) {
			http.NotFound(w, r)

			return
		}

		h(w, r, ps)
	}
}

func (rm *RoomManager) getHub(ctx context.Context, roomID string) *Hub {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if hub, ok := rm.hubs[roomID]; ok {
		return hub
	}

	log := rm.cfg.logger.With().Str("room", roomID).Logger()

	ctrl := analogy.NewController(analogy.Config{
		Store:            store.WithPrefix(rm.backend, roomPrefix(roomID)),
		Clock:            rm.clock,
		Logger:           log,
		Catalog:          rm.catalog,
		PairCount:        rm.cfg.pairCount,
		TimerDuration:    rm.cfg.timerDuration,
		AutoSaveInterval: rm.cfg.autoSaveInterval,
		Archive:          rm.cfg.archiveSessions,
	})

	// A failed load still leaves a usable in-memory session with the
	// error status shown on screen.
	if err := ctrl.Open(ctx); err != nil {
		log.Error().Err(err).Msg("failed to open session")
	}

	hub := newHub(roomID, ctrl, rm.clock, log)
	rm.hubs[roomID] = hub
	go hub.run()

	logf(rm.cfg, "GAMES: Loaded room %s", roomID)

	return hub
}

// newRoomID generates a crypto-random room ID and ensures it doesn't
// collide with loaded rooms.
func (rm *RoomManager) newRoomID() string {
	const letters = roomIDLetters
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		rm.mu.Lock()
		_, exists := rm.hubs[id]
		rm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reap unloads hubs idle since before the cutoff and reports how many.
func (rm *RoomManager) reap() int {
	cutoff := rm.clock.Now().Add(-rm.idleTimeout)

	var idle []*Hub

	rm.mu.Lock()
	for id, hub := range rm.hubs {
		if hub.idleSince().Before(cutoff) {
			delete(rm.hubs, id)
			idle = append(idle, hub)
		}
	}
	rm.mu.Unlock()

	for _, hub := range idle {
		hub.close()
		logf(rm.cfg, "GAMES: Unloaded idle room %s", hub.id)
	}

	return len(idle)
}

// reaperLoop periodically unloads rooms that have been idle longer than
// idleTimeout.
func (rm *RoomManager) reaperLoop() {
	defer rm.wg.Done()

	ticker := rm.clock.NewTicker(rm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-rm.stop:
			return
		case <-ticker.Chan():
			rm.reap()
		}
	}
}

// Close stops the reaper and flushes every loaded room.
func (rm *RoomManager) Close() {
	close(rm.stop)
	rm.wg.Wait()

	rm.mu.Lock()
	hubs := rm.hubs
	rm.hubs = make(map[string]*Hub)
	rm.mu.Unlock()

	for _, hub := range hubs {
		hub.close()
	}
}

// WebSocket handler that picks the hub based on :room
func serveWSForManager(cfg *Config, rm *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("room")
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		clientID := getOrSetClientID(w, r)

		hub := rm.getHub(r.Context(), roomID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.logger.Debug().Err(err).Str("room", roomID).Msg("websocket upgrade failed")
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 16),
			clientID: clientID,
		}

		select {
		case hub.register <- client:
		case <-hub.ctx.Done():
			_ = conn.Close()
			return
		}

		logf(cfg, "GAMES: Screen %s joined room %s from %s", clientID, roomID, realIP(r))

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.ctx.Done():
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		select {
		case h.commands <- command{client: c, msg: msg}:
		case <-h.ctx.Done():
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current room URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomID := ps.ByName("room")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:room/qr; strip trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func exportFilename(s *analogy.Session, ext string) string {
	return "analogy-session-" + s.ID + ext
}

func serveExportJSON(cfg *Config, rm *RoomManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		hub := rm.getHub(r.Context(), ps.ByName("room"))
		session := hub.ctrl.Document()

		data, err := analogy.ExportJSON(session)
		if err != nil {
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename(session, ".json")+`"`)
		securityHeaders(cfg, w)

		if _, err := w.Write(data); err != nil {
			errs <- err
		}
	}
}

func serveExportMarkdown(cfg *Config, rm *RoomManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		hub := rm.getHub(r.Context(), ps.ByName("room"))
		session := hub.ctrl.Document()

		report := analogy.MarkdownReport(session, hub.ctrl.Winners(), time.Now())

		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename(session, ".md")+`"`)
		securityHeaders(cfg, w)

		if _, err := w.Write([]byte(report)); err != nil {
			errs <- err
		}
	}
}

func getIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := assets.ReadFile("assets/analogy/index.html")
		if err != nil {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		_ = getOrSetClientID(w, r)

		_, _ = w.Write(data)
	}
}

// redirectNewRoom handles GET /path by generating a new random room ID
// (with server-side collision detection) and redirecting to /path/:room.
func redirectNewRoom(cfg *Config, path string, rm *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		roomID := rm.newRoomID()
		logf(cfg, "GAMES: Created room %s%s/%s", cfg.prefix, path, roomID)
		http.Redirect(w, r, cfg.prefix+path+"/"+roomID, http.StatusTemporaryRedirect)
	}
}

// registerAnalogyGame sets up routes so that:
//   - $path                    → redirects to new random room (8-char ID)
//   - $path/:room              → HTML client
//   - $path/:room/ws           → WebSocket for that room
//   - $path/:room/qr           → PNG QR code for that room URL
//   - $path/:room/export.json  → full session document
//   - $path/:room/export.md    → markdown session report
func registerAnalogyGame(cfg *Config, path string, mux *httprouter.Router, rm *RoomManager, errs chan<- error) {
	mux.GET(cfg.prefix+path, redirectNewRoom(cfg, path, rm))

	mux.GET(cfg.prefix+path+"/:room", roomOnly(getIndexHandler(cfg)))

	mux.GET(cfg.prefix+path+"/:room/ws", roomOnly(serveWSForManager(cfg, rm)))

	mux.GET(cfg.prefix+path+"/:room/qr", roomOnly(qrHandler))

	mux.GET(cfg.prefix+path+"/:room/export.json", roomOnly(serveExportJSON(cfg, rm, errs)))

	mux.GET(cfg.prefix+path+"/:room/export.md", roomOnly(serveExportMarkdown(cfg, rm, errs)))
}
