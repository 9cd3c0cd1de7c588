// Package network replicates the editor scene to websocket clients.
package network

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/mapeditor/internal/network/packets"
	"github.com/Faultbox/mapeditor/internal/node"
	"github.com/Faultbox/mapeditor/pkg/math"
)

// DefaultQueueLimit is the number of packets a session may have waiting
// before it is dropped as too slow.
const DefaultQueueLimit = 4096

// Scene is the part of the node scene the hub replicates.
type Scene interface {
	AddListener(l node.Listener)
	Snapshot(fn func(nodes []node.Node))
}

// Config configures a Hub.
type Config struct {
	// AllowedOrigins lists the Origin headers accepted on upgrade.
	// Empty accepts every origin.
	AllowedOrigins []string
	QueueLimit     int
	Log            *zap.Logger
}

// Hub broadcasts scene changes to every connected session.
// New sessions first receive every spawned node followed by ZC_SNAPSHOT_DONE.
type Hub struct {
	scene    Scene
	log      *zap.Logger
	limit    int
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[uint64]*session
	nextID   uint64
	closed   bool
}

// NewHub creates a hub and registers it as a listener of scene.
func NewHub(scene Scene, cfg Config) *Hub {
	h := &Hub{
		scene:    scene,
		log:      cfg.Log,
		limit:    cfg.QueueLimit,
		sessions: make(map[uint64]*session),
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.limit <= 0 {
		h.limit = DefaultQueueLimit
	}

	origins := cfg.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(origins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range origins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	scene.AddListener(h)
	return h
}

// ServeHTTP upgrades the request and streams scene packets until the
// client disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	s := h.subscribe(conn)
	if s == nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	log := h.log.With(zap.Uint64("session", s.id), zap.String("remote", r.RemoteAddr))
	log.Info("session connected")

	written := make(chan struct{})
	go func() {
		defer close(written)
		if err := s.writeLoop(); err != nil {
			log.Debug("session write ended", zap.Error(err))
		}
		conn.Close()
	}()

	if err := s.readLoop(); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Debug("session read ended", zap.Error(err))
	}
	h.unsubscribe(s)
	<-written
	log.Info("session disconnected")
}

// Sessions returns the number of connected sessions.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close disconnects every session and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, s := range h.sessions {
		s.close()
		delete(h.sessions, id)
	}
}

// subscribe registers a session while the scene is locked so no change can
// fall between the snapshot and the first broadcast.
func (h *Hub) subscribe(conn *websocket.Conn) *session {
	var s *session
	h.scene.Snapshot(func(nodes []node.Node) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.closed {
			return
		}

		h.nextID++
		s = newSession(h.nextID, conn)
		for _, n := range nodes {
			s.enqueue(spawnPacket(n).Encode(), 0)
		}
		s.enqueue((&packets.SnapshotDone{Count: uint32(len(nodes))}).Encode(), 0)
		h.sessions[s.id] = s
	})
	return s
}

func (h *Hub) unsubscribe(s *session) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()
	s.close()
}

func (h *Hub) broadcast(p packets.Packet) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.sessions) == 0 {
		return
	}
	data := p.Encode()
	for id, s := range h.sessions {
		if !s.enqueue(data, h.limit) {
			h.log.Warn("dropping slow session", zap.Uint64("session", id), zap.Int("limit", h.limit))
			delete(h.sessions, id)
			s.close()
		}
	}
}

// NodeSpawned implements node.Listener.
func (h *Hub) NodeSpawned(n node.Node) {
	h.broadcast(spawnPacket(n))
}

// NodeTransformed implements node.Listener.
func (h *Hub) NodeTransformed(handle node.Handle, t math.Transform) {
	h.broadcast(&packets.NodeTransform{Handle: uint32(handle), Transform: t})
}

// NodePropertiesChanged implements node.Listener.
func (h *Hub) NodePropertiesChanged(handle node.Handle, props node.Properties) {
	h.broadcast(&packets.NodeProperties{Handle: uint32(handle), Properties: props})
}

// NodeDestroyed implements node.Listener.
func (h *Hub) NodeDestroyed(handle node.Handle) {
	h.broadcast(&packets.NodeDestroy{Handle: uint32(handle)})
}

func spawnPacket(n node.Node) *packets.NodeSpawn {
	return &packets.NodeSpawn{
		Handle:     uint32(n.Handle),
		Kind:       uint8(n.Kind),
		Transform:  n.Transform,
		Properties: n.Properties,
	}
}
