package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cvrpga/internal/model"
)

// Minimal GraphQL over WebSocket (graphql-transport-ws like) to stream runProgress

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// GraphQLWSHandler handles /graphql/ws
func (s *Server) GraphQLWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()
	tenant := s.getPrincipal(r).Tenant

	// Track subscriptions: id -> runID and channel
	type sub struct {
		runID string
		ch    chan model.ProgressEvent
	}
	var subsMu sync.Mutex
	subs := map[string]sub{}
	// drop ends subscription id; safe to call more than once
	drop := func(id string) {
		subsMu.Lock()
		s0, ok := subs[id]
		delete(subs, id)
		subsMu.Unlock()
		if ok {
			s.Broker.Unsubscribe(s0.runID, s0.ch)
		}
	}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	// gorilla allows one concurrent writer
	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		return conn.WriteJSON(v)
	}
	done := make(chan struct{})
	defer close(done)
	fail := func(id, message string) {
		b, _ := json.Marshal([]map[string]string{{"message": message}})
		_ = write(wsMessage{Type: "error", ID: id, Payload: b})
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		// any client message keeps the connection alive
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						if err := write(wsMessage{Type: "ping"}); err != nil {
							return
						}
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			var pl subscribePayload
			_ = json.Unmarshal(msg.Payload, &pl)
			if !strings.Contains(pl.Query, "runProgress") {
				fail(msg.ID, "only the runProgress subscription is supported")
				continue
			}
			rid, _ := pl.Variables["runId"].(string)
			if rid == "" {
				fail(msg.ID, "runId required")
				continue
			}
			subsMu.Lock()
			_, dup := subs[msg.ID]
			subsMu.Unlock()
			if dup {
				fail(msg.ID, "subscriber for "+msg.ID+" already exists")
				continue
			}
			ch := s.Broker.Subscribe(rid)
			rec, err := s.Store.GetRun(r.Context(), tenant, rid)
			if err != nil {
				s.Broker.Unsubscribe(rid, ch)
				fail(msg.ID, "run not found")
				continue
			}
			if rec.Status != model.RunRunning {
				s.Broker.Unsubscribe(rid, ch)
				_ = write(progressNext(msg.ID, model.ProgressEvent{Type: rec.Status, RunID: rid, Error: rec.Error}))
				_ = write(wsMessage{Type: "complete", ID: msg.ID})
				continue
			}
			subsMu.Lock()
			subs[msg.ID] = sub{runID: rid, ch: ch}
			subsMu.Unlock()
			go func(id string, c chan model.ProgressEvent) {
				for evt := range c {
					if err := write(progressNext(id, evt)); err != nil {
						return
					}
					if isTerminal(evt.Type) {
						drop(id)
						break
					}
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch)
		case "complete":
			drop(msg.ID)
		default:
			// ignore
		}
	}
	subsMu.Lock()
	ids := make([]string, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	subsMu.Unlock()
	for _, id := range ids {
		drop(id)
	}
}

func progressNext(id string, evt model.ProgressEvent) wsMessage {
	payload, _ := json.Marshal(map[string]any{"data": map[string]any{"runProgress": evt}})
	return wsMessage{Type: "next", ID: id, Payload: payload}
}
