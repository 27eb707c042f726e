package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/decalforge/internal/customizer/store"
)

const (
	writeWait   = 5 * time.Second
	sendBuffer  = 32
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	eventInit   = "snapshot"
	readLimitKB = 4
)

// Message is one frame of the state feed.
type Message struct {
	Event   string      `json:"event"`
	Part    string      `json:"part,omitempty"`
	DecalID string      `json:"decalId,omitempty"`
	State   store.State `json:"state"`
}

type client struct {
	conn *websocket.Conn
	send chan Message
}

// Feed streams store changes to websocket clients. Each client first
// receives a snapshot, then one message per store event. Slow clients are
// dropped instead of stalling the app loop.
type Feed struct {
	store    Store
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	unsubscribe func()
}

// NewFeed subscribes to s.
func NewFeed(s Store, log *zap.Logger) *Feed {
	if log == nil {
		log = zap.NewNop()
	}
	f := &Feed{
		store: s,
		upgrader: websocket.Upgrader{
			// The viewer UI may be served from a dev server on another port.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:     log,
		clients: make(map[*client]struct{}),
	}
	f.unsubscribe = s.Subscribe(f.publish)
	return f
}

// RegisterRoutes mounts the feed on rg.
func (f *Feed) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ws", f.Serve)
}

// Len returns the number of connected clients.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Serve upgrades the request and streams until the client leaves.
func (f *Feed) Serve(c *gin.Context) {
	conn, err := f.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		f.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	cl := &client{conn: conn, send: make(chan Message, sendBuffer)}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		conn.Close()
		return
	}
	cl.send <- Message{Event: eventInit, State: f.store.State()}
	f.clients[cl] = struct{}{}
	n := len(f.clients)
	f.mu.Unlock()
	f.log.Debug("feed client connected", zap.Int("clients", n))

	go f.writeLoop(cl)
	f.readLoop(cl)
}

// readLoop discards client input and detects disconnects.
func (f *Feed) readLoop(cl *client) {
	defer f.drop(cl)
	cl.conn.SetReadLimit(readLimitKB << 10)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *Feed) writeLoop(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := cl.conn.WriteJSON(msg); err != nil {
				f.log.Debug("feed write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// publish runs on whichever goroutine mutated the store and must not block.
// The state copy is skipped while nobody listens; a client connecting in
// between still starts from its own snapshot.
func (f *Feed) publish(ev store.Event) {
	if f.Len() == 0 {
		return
	}
	msg := Message{Event: ev.Kind.String(), Part: ev.Part, DecalID: ev.DecalID, State: f.store.State()}

	f.mu.Lock()
	defer f.mu.Unlock()
	for cl := range f.clients {
		select {
		case cl.send <- msg:
		default:
			f.log.Warn("dropping slow feed client")
			delete(f.clients, cl)
			close(cl.send)
		}
	}
}

func (f *Feed) drop(cl *client) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[cl]; ok {
		delete(f.clients, cl)
		close(cl.send)
	}
}

// Close disconnects every client and stops listening to the store.
func (f *Feed) Close() {
	f.unsubscribe()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for cl := range f.clients {
		delete(f.clients, cl)
		close(cl.send)
	}
}
