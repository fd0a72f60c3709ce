package signal

import (
	"sync"
	"sync/atomic"
	"time"

	"livecast/internal/core/domain"

	"github.com/gorilla/websocket"
)

// wsTransport wraps a gorilla connection behind domain.Transport. The write
// mutex serializes concurrent WriteJSON calls; gorilla connections do not
// tolerate interleaved writers.
type wsTransport struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex
	closed       atomic.Bool
	writeTimeout time.Duration
}

func newTransport(conn *websocket.Conn, writeTimeout time.Duration) *wsTransport {
	return &wsTransport{conn: conn, writeTimeout: writeTimeout}
}

func (t *wsTransport) WriteJSON(v interface{}) error {
	if t.closed.Load() {
		return domain.ErrConnectionClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	if err := t.conn.WriteJSON(v); err != nil {
		t.closed.Store(true)
		return err
	}
	return nil
}

func (t *wsTransport) writeControl(messageType int) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.conn.WriteMessage(messageType, nil)
}

func (t *wsTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.conn.Close()
}

func (t *wsTransport) IsOpen() bool {
	return !t.closed.Load()
}
