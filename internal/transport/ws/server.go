// Package ws serves the read-only observer endpoint over websockets.
// Observers attach and detach freely; a slow or dead observer loses
// frames, never slows the tick loop, and can never mutate state.
package ws

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tickmind.ai/internal/protocol"
)

type subscriber struct {
	out  chan []byte
	quit chan struct{}

	mu            sync.Mutex
	entities      map[uint64]struct{}
	includeMemory bool
}

func (sub *subscriber) update(msg *protocol.SubscribeMsg) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.includeMemory = msg.IncludeMemory
	if len(msg.Entities) == 0 {
		sub.entities = nil
		return
	}
	sub.entities = make(map[uint64]struct{}, len(msg.Entities))
	for _, e := range msg.Entities {
		sub.entities[e] = struct{}{}
	}
}

// view filters a tick message for this subscriber.
func (sub *subscriber) view(msg *protocol.TickMsg) protocol.TickMsg {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	out := protocol.TickMsg{
		Type:            msg.Type,
		ProtocolVersion: msg.ProtocolVersion,
		Tick:            msg.Tick,
		Digest:          msg.Digest,
	}
	for _, a := range msg.Agents {
		if sub.entities != nil {
			if _, ok := sub.entities[a.Entity]; !ok {
				continue
			}
		}
		if !sub.includeMemory {
			a.Memory = nil
		}
		out.Agents = append(out.Agents, a)
	}
	return out
}

type Server struct {
	logger    *log.Logger
	bootstrap func() protocol.BootstrapResponse

	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// NewServer builds the observer server. bootstrap is called per request
// so the reported tick is current.
func NewServer(logger *log.Logger, bootstrap func() protocol.BootstrapResponse) *Server {
	return &Server{
		logger:    logger,
		bootstrap: bootstrap,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// Subscribers returns the current observer count.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.bootstrap())
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: the first frame must be a SUBSCRIBE.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg protocol.SubscribeMsg
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "SUBSCRIBE" || msg.ProtocolVersion != protocol.Version {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"),
				time.Now().Add(time.Second))
			return
		}

		sub := &subscriber{out: make(chan []byte, 64), quit: make(chan struct{})}
		sub.update(&msg)

		s.mu.Lock()
		s.subs[sub] = struct{}{}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
		}()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-sub.quit:
					return
				case b := <-sub.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						return
					}
				}
			}
		}()

		// Reader loop: accept SUBSCRIBE updates until the peer goes away.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var upd protocol.SubscribeMsg
			if err := json.Unmarshal(raw, &upd); err != nil {
				continue
			}
			if upd.Type != "SUBSCRIBE" || upd.ProtocolVersion != protocol.Version {
				continue
			}
			sub.update(&upd)
		}

		close(sub.quit)
		<-done
	}
}

// Broadcast pushes one tick frame to every subscriber, each through its
// own filter. Slow subscribers drop frames.
func (s *Server) Broadcast(msg protocol.TickMsg) {
	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		b, err := json.Marshal(sub.view(&msg))
		if err != nil {
			if s.logger != nil {
				s.logger.Printf("observer marshal: %v", err)
			}
			continue
		}
		select {
		case sub.out <- b:
		default:
			// Frame dropped; the next tick supersedes it anyway.
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
