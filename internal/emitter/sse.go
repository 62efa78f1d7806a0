package emitter

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/appshell/internal/metrics"
)

type sseMsg struct {
	event string
	data  any
}

// SSEEmitter broadcasts signals to browser UIs over Server-Sent Events. In
// headless mode the frontend subscribes to GET /events; the same surface
// exposes /metrics and /healthz. Slow or absent subscribers never block Emit.
type SSEEmitter struct {
	mu   sync.Mutex
	subs map[chan sseMsg]struct{}
}

func NewSSEEmitter() *SSEEmitter {
	return &SSEEmitter{subs: make(map[chan sseMsg]struct{})}
}

func (e *SSEEmitter) Emit(event string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs {
		select {
		case ch <- sseMsg{event: event, data: payload}:
		default:
			// subscriber is not keeping up; drop rather than block the core
		}
	}
	return nil
}

func (e *SSEEmitter) subscribe() chan sseMsg {
	ch := make(chan sseMsg, 16)
	e.mu.Lock()
	e.subs[ch] = struct{}{}
	e.mu.Unlock()
	return ch
}

func (e *SSEEmitter) unsubscribe(ch chan sseMsg) {
	e.mu.Lock()
	delete(e.subs, ch)
	e.mu.Unlock()
	close(ch)
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (e *SSEEmitter) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/events", e.handleEvents)
	g.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

func (e *SSEEmitter) handleEvents(c *gin.Context) {
	ch := e.subscribe()
	defer e.unsubscribe(ch)

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(msg.event, msg.data)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// NewServer starts a standalone HTTP server on addr for the emitter surface.
// WriteTimeout stays zero so event streams are not cut off.
func NewServer(addr string, e *SSEEmitter) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           e.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}
