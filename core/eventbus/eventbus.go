package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sammwyy/ploogz/api"
)

// clientBuffer is how many events a slow socket client may fall behind
// before events are dropped for it.
const clientBuffer = 64

// EventBus distributes lifecycle events to in-process subscribers and to
// clients connected on a Unix domain socket.
type EventBus struct {
	socketPath  string
	listener    net.Listener
	subscribers []subscription
	clients     map[*client]struct{}
	mutex       sync.RWMutex
	wg          sync.WaitGroup
	logger      api.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscription struct {
	filter  api.EventFilter
	handler api.EventHandler
}

type client struct {
	conn   net.Conn
	events chan api.Event
}

// NewEventBus creates a new event bus. An empty socketPath disables the
// socket listener.
func NewEventBus(socketPath string, logger api.Logger) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventBus{
		socketPath:  socketPath,
		subscribers: make([]subscription, 0),
		clients:     make(map[*client]struct{}),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the event bus and begins listening for connections
func (eb *EventBus) Start() error {
	if eb.socketPath == "" {
		eb.logger.Debug("EventBus started without socket")
		return nil
	}

	// Remove existing socket file if it exists
	if err := os.RemoveAll(eb.socketPath); err != nil {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	// Create the socket
	listener, err := net.Listen("unix", eb.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}

	eb.listener = listener
	eb.logger.Info("EventBus started", "socket", eb.socketPath)

	// Start accepting connections
	eb.wg.Add(1)
	go eb.acceptConnections()

	return nil
}

// Stop stops the event bus and disconnects every client
func (eb *EventBus) Stop() error {
	eb.cancel()
	if eb.listener != nil {
		if err := eb.listener.Close(); err != nil {
			eb.logger.Error("Failed to close listener", "error", err)
		}
	}

	eb.mutex.Lock()
	for c := range eb.clients {
		close(c.events)
		c.conn.Close()
		delete(eb.clients, c)
	}
	eb.mutex.Unlock()

	eb.wg.Wait()

	// Remove socket file
	if eb.socketPath != "" {
		if err := os.Remove(eb.socketPath); err != nil && !os.IsNotExist(err) {
			eb.logger.Error("Failed to remove socket file", "error", err)
		}
	}

	eb.logger.Info("EventBus stopped")
	return nil
}

// EmitEvent emits an event to all subscribers
func (eb *EventBus) EmitEvent(event api.Event) error {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Distribute to subscribers
	for _, sub := range eb.subscribers {
		if eb.matchesFilter(event, sub.filter) {
			go func(handler api.EventHandler) {
				if err := handler(event); err != nil {
					eb.logger.Error("Event handler failed", "error", err, "event_id", event.ID)
				}
			}(sub.handler)
		}
	}

	for c := range eb.clients {
		select {
		case c.events <- event:
		default:
			eb.logger.Warn("Dropping event for slow client", "event_id", event.ID)
		}
	}

	return nil
}

// SubscribeToEvents subscribes to events matching the given filter
func (eb *EventBus) SubscribeToEvents(filter api.EventFilter, handler api.EventHandler) error {
	if handler == nil {
		return errors.New("event handler is nil")
	}
	for field, pattern := range filter.Regex {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid regex for %s: %w", field, err)
		}
	}

	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	eb.subscribers = append(eb.subscribers, subscription{
		filter:  filter,
		handler: handler,
	})

	eb.logger.Debug("New event subscription added", "filter", filter)
	return nil
}

// Observe publishes a lifecycle transition as an event
func (eb *EventBus) Observe(t api.Transition) {
	payload := map[string]interface{}{
		"from": t.From,
		"to":   t.To,
	}
	if t.Err != nil {
		payload["error"] = t.Err.Error()
	}

	source := t.Name
	if source == "" {
		source = t.Machine
	}

	if err := eb.EmitEvent(api.Event{
		Source:  source,
		Type:    t.Type(),
		Payload: payload,
	}); err != nil {
		eb.logger.Error("Failed to emit transition", "error", err)
	}
}

// acceptConnections accepts incoming socket connections
func (eb *EventBus) acceptConnections() {
	defer eb.wg.Done()
	for {
		conn, err := eb.listener.Accept()
		if err != nil {
			select {
			case <-eb.ctx.Done():
				return
			default:
				eb.logger.Error("Failed to accept connection", "error", err)
				continue
			}
		}

		c := &client{conn: conn, events: make(chan api.Event, clientBuffer)}
		eb.mutex.Lock()
		if eb.ctx.Err() != nil {
			eb.mutex.Unlock()
			conn.Close()
			return
		}
		eb.clients[c] = struct{}{}
		eb.mutex.Unlock()

		eb.wg.Add(1)
		go eb.handleConnection(c)
	}
}

// handleConnection streams events to a client as newline-delimited JSON
func (eb *EventBus) handleConnection(c *client) {
	defer eb.wg.Done()
	defer c.conn.Close()

	encoder := json.NewEncoder(c.conn)
	for event := range c.events {
		if err := encoder.Encode(event); err != nil {
			eb.logger.Debug("Client disconnected", "error", err)
			eb.removeClient(c)
			return
		}
	}
}

func (eb *EventBus) removeClient(c *client) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	if _, ok := eb.clients[c]; ok {
		delete(eb.clients, c)
		close(c.events)
	}
}

// matchesFilter checks if an event matches the given filter
func (eb *EventBus) matchesFilter(event api.Event, filter api.EventFilter) bool {
	// Check sources filter
	if len(filter.Sources) > 0 {
		found := false
		for _, source := range filter.Sources {
			if event.Source == source {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	// Check types filter
	if len(filter.Types) > 0 {
		found := false
		for _, eventType := range filter.Types {
			if event.Type == eventType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	// Check regex filters
	for field, pattern := range filter.Regex {
		var fieldValue string

		switch field {
		case "source":
			fieldValue = event.Source
		case "type":
			fieldValue = event.Type
		default:
			// Check in payload
			if val, exists := event.Payload[field]; exists {
				fieldValue = fmt.Sprintf("%v", val)
			}
		}

		matched, err := regexp.MatchString(pattern, fieldValue)
		if err != nil {
			eb.logger.Error("Invalid regex pattern", "pattern", pattern, "error", err)
			return false
		}

		if !matched {
			return false
		}
	}

	return true
}
