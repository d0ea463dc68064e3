package hub

import (
	"sort"
	"sync"

	"recipe-server/internal/metrics"
)

// Topics is the subscription table: recipe id -> connections interested in that recipe.
// byConn mirrors it so a closing connection can leave every topic in one call.
type Topics struct {
	mu       sync.RWMutex
	byRecipe map[RecipeID]map[*Connection]struct{}
	byConn   map[*Connection]map[RecipeID]struct{}
}

func NewTopics() *Topics {
	return &Topics{
		byRecipe: make(map[RecipeID]map[*Connection]struct{}),
		byConn:   make(map[*Connection]map[RecipeID]struct{}),
	}
}

// Subscribe adds conn to id. A closed connection is refused so it cannot outlive
// its UnsubscribeAll; the result reports whether conn was added.
func (t *Topics) Subscribe(id RecipeID, conn *Connection) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if conn.State() == StateClosed {
		return false
	}

	set := t.byRecipe[id]
	if set == nil {
		set = make(map[*Connection]struct{})
		t.byRecipe[id] = set
		metrics.RecipeTopicsActive.Inc()
	}
	set[conn] = struct{}{}

	if t.byConn[conn] == nil {
		t.byConn[conn] = make(map[RecipeID]struct{})
	}
	t.byConn[conn][id] = struct{}{}
	return true
}

// Unsubscribe removes one mapping. Unknown pairs are ignored.
func (t *Topics) Unsubscribe(id RecipeID, conn *Connection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(id, conn)
}

// UnsubscribeAll drops conn from every topic and returns how many it left.
func (t *Topics) UnsubscribeAll(conn *Connection) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := t.byConn[conn]
	n := len(ids)
	for id := range ids {
		t.removeLocked(id, conn)
	}
	return n
}

func (t *Topics) removeLocked(id RecipeID, conn *Connection) {
	set := t.byRecipe[id]
	if _, ok := set[conn]; !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(t.byRecipe, id)
		metrics.RecipeTopicsActive.Dec()
	}

	ids := t.byConn[conn]
	delete(ids, id)
	if len(ids) == 0 {
		delete(t.byConn, conn)
	}
}

// Publish writes payload to every subscriber of id. No subscribers is not an error.
func (t *Topics) Publish(id RecipeID, payload []byte) (delivered int, failed []*Connection) {
	return deliver(t.Subscribers(id), payload)
}

// Subscribers returns a snapshot of id's subscribers ordered by connection id.
func (t *Topics) Subscribers(id RecipeID) []*Connection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedConns(t.byRecipe[id])
}

// SubscriptionsOf lists the topics conn is subscribed to, sorted.
func (t *Topics) SubscriptionsOf(conn *Connection) []RecipeID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]RecipeID, 0, len(t.byConn[conn]))
	for id := range t.byConn[conn] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len is the number of topics with at least one subscriber.
func (t *Topics) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byRecipe)
}
