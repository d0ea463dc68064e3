package hub

import (
	"sort"
	"sync"

	"recipe-server/internal/metrics"
)

// Hub is the connection registry: user id -> live connections of that user.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{}
	owners      map[*Connection]string
}

func New() *Hub {
	return &Hub{
		connections: make(map[string]map[*Connection]struct{}),
		owners:      make(map[*Connection]string),
	}
}

// Register adds conn under userID. A connection belongs to one user at a time, so a
// previous registration under another user is dropped. Closed connections are ignored.
func (h *Hub) Register(userID string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn.State() == StateClosed {
		return
	}
	if prev, ok := h.owners[conn]; ok {
		if prev == userID {
			return
		}
		h.removeLocked(prev, conn)
	}
	if h.connections[userID] == nil {
		h.connections[userID] = make(map[*Connection]struct{})
	}
	h.connections[userID][conn] = struct{}{}
	h.owners[conn] = userID
	metrics.WSConnectionsActive.Inc()
}

func (h *Hub) Unregister(userID string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.owners[conn] != userID {
		return
	}
	h.removeLocked(userID, conn)
}

func (h *Hub) removeLocked(userID string, conn *Connection) {
	set := h.connections[userID]
	if _, ok := set[conn]; !ok {
		return
	}
	delete(set, conn)
	delete(h.owners, conn)
	if len(set) == 0 {
		delete(h.connections, userID)
	}
	metrics.WSConnectionsActive.Dec()
}

// Connections returns a snapshot of userID's connections ordered by id.
func (h *Hub) Connections(userID string) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedConns(h.connections[userID])
}

// Owner reports which user conn is registered under.
func (h *Hub) Owner(conn *Connection) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	userID, ok := h.owners[conn]
	return userID, ok
}

func (h *Hub) Users() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// SendToUser writes payload to every connection of userID. An offline user is not an error.
// Connections whose write failed are returned so the caller can tear them down.
func (h *Hub) SendToUser(userID string, payload []byte) (delivered int, failed []*Connection) {
	return deliver(h.Connections(userID), payload)
}

func deliver(conns []*Connection, payload []byte) (delivered int, failed []*Connection) {
	for _, c := range conns {
		if err := c.Send(payload); err != nil {
			failed = append(failed, c)
			continue
		}
		delivered++
	}
	return delivered, failed
}

func sortedConns(set map[*Connection]struct{}) []*Connection {
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].ID < conns[j].ID })
	return conns
}
