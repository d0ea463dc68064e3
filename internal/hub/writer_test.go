package hub

import (
	"errors"
	"sync"

	"github.com/goccy/go-json"
)

var errTest = errors.New("test")

type testWriter struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed int
}

func (w *testWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errTest
	}
	w.frames = append(w.frames, append([]byte(nil), message...))
	return nil
}

func (w *testWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}

func (w *testWriter) writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

func (w *testWriter) decoded() []map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]map[string]any, 0, len(w.frames))
	for _, f := range w.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// openConn returns a connection that has passed authentication as userID.
func openConn(userID string) (*Connection, *testWriter) {
	return openConnWithToken(userID, "")
}

func openConnWithToken(userID, tokenID string) (*Connection, *testWriter) {
	w := &testWriter{}
	c := NewConnection(w)
	c.BeginAuth()
	c.Open(userID, tokenID)
	return c, w
}
