package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"path"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/alexandrevicenzi/go-sse"
	"github.com/labstack/echo/v4"

	"github.com/udovin/duel/internal/events"
	"github.com/udovin/duel/internal/pkg/logs"
)

const eventStreamBuffer = 1024

// eventStream delivers bus events to SSE clients.
//
// Every session or tournament has its own SSE channel named by its ID.
type eventStream struct {
	server   *sse.Server
	logger   *logs.Logger
	queue    chan events.Event
	dropped  atomic.Int64
	ctx      context.Context
	cancel   context.CancelFunc
	mutex    sync.Mutex
	closed   bool
	handlers sync.WaitGroup
}

func newEventStream(logger *logs.Logger) *eventStream {
	ctx, cancel := context.WithCancel(context.Background())
	return &eventStream{
		server: sse.NewServer(&sse.Options{
			ChannelNameFunc: func(r *http.Request) string {
				return path.Base(r.URL.Path)
			},
			Logger: log.New(logger.Output(), "go-sse: ", log.Ldate|log.Ltime),
		}),
		logger: logger,
		queue:  make(chan events.Event, eventStreamBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ServeHTTP serves event stream until client disconnects or stream
// is shut down.
func (s *eventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.acquire() {
		http.Error(w, "Event stream is closed.", http.StatusServiceUnavailable)
		return
	}
	defer s.handlers.Done()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()
	s.server.ServeHTTP(w, r.WithContext(ctx))
}

func (s *eventStream) acquire() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return false
	}
	s.handlers.Add(1)
	return true
}

// Send enqueues event for delivery.
//
// Event is dropped when delivery queue is full.
func (s *eventStream) Send(event events.Event) {
	select {
	case s.queue <- event:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns amount of events dropped due to full queue.
func (s *eventStream) Dropped() int64 {
	return s.dropped.Load()
}

func (s *eventStream) deliver(event events.Event) {
	if s.ctx.Err() != nil || !s.server.HasChannel(event.SessionID) {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("Cannot marshal event", logs.Any("session_id", event.SessionID), err)
		return
	}
	s.server.SendMessage(event.SessionID, sse.NewMessage(
		strconv.FormatInt(event.Seq, 10), string(data), string(event.Type),
	))
}

// run delivers queued events until context is done.
func (s *eventStream) run(ctx context.Context) {
	for {
		select {
		case event := <-s.queue:
			s.deliver(event)
		case <-ctx.Done():
			return
		}
	}
}

// shutdown disconnects all clients and stops SSE server.
//
// Server is stopped only after all handlers have returned, because
// its clients are removed through channels closed on shutdown.
func (s *eventStream) shutdown() {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return
	}
	s.closed = true
	s.mutex.Unlock()
	s.cancel()
	s.handlers.Wait()
	s.server.Shutdown()
}

// registerEventHandlers registers handlers for event streams.
func (v *View) registerEventHandlers(g *echo.Group) {
	g.GET("/v0/events/:topic", echo.WrapHandler(v.stream))
}
