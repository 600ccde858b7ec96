package server

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
)

const (
	frameTypeTallyUpdate      = "tally_update"
	frameTypeProjectionUpdate = "projection_update"
	frameTypeCompleted        = "completed"
	frameTypeCancelled        = "cancelled"
	frameTypeError            = "error"
)

// subscriberQueueLimit bounds how many undelivered events a single stream
// subscriber may hold before the drop policy kicks in.
const subscriberQueueLimit = 64

// eventFrame is the wire envelope for one stream event. Sequence numbers are
// assigned per session in publish order and never repeat or decrease.
type eventFrame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Sequence  int64           `json:"sequence"`
	Payload   json.RawMessage `json:"payload"`
}

// terminal reports whether the frame ends the session's stream.
func (f eventFrame) terminal() bool {
	return f.Type == frameTypeCompleted || f.Type == frameTypeCancelled
}

// droppable reports whether the frame may be discarded under backpressure.
// Projections are idempotent recomputations; tallies and terminal events are
// not, a subscriber must never observe a gap in them.
func (f eventFrame) droppable() bool {
	return f.Type == frameTypeProjectionUpdate
}

type streamHub struct {
	mu    sync.Mutex
	rooms map[string]*sessionRoom
}

func newStreamHub() *streamHub {
	return &streamHub{rooms: make(map[string]*sessionRoom)}
}

func (h *streamHub) room(sessionID string) *sessionRoom {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[sessionID]
	if ok {
		return room
	}

	room = newSessionRoom(sessionID)
	h.rooms[sessionID] = room
	return room
}

// drop removes a session's room and disconnects any remaining subscribers.
// Called when the registry evicts a terminal session.
func (h *streamHub) drop(sessionID string) {
	h.mu.Lock()
	room, ok := h.rooms[sessionID]
	if ok {
		delete(h.rooms, sessionID)
	}
	h.mu.Unlock()

	if room != nil {
		room.closeAll()
	}
}

// sessionRoom fans one session's events out to its stream subscribers. It
// retains the most recent tally, projection, and terminal frames so a late
// joiner can splice into the stream without missing the current state.
type sessionRoom struct {
	mu               sync.Mutex
	sessionID        string
	nextSequence     int64
	latestTally      *eventFrame
	latestProjection *eventFrame
	terminalFrame    *eventFrame
	subscribers      map[*streamSubscriber]struct{}
}

func newSessionRoom(sessionID string) *sessionRoom {
	return &sessionRoom{
		sessionID:   sessionID,
		subscribers: make(map[*streamSubscriber]struct{}),
	}
}

// publish assigns the next sequence number, stores the frame for late-joiner
// replay, and enqueues it to every subscriber. Subscribers whose queue cannot
// accept an undroppable frame are evicted so the caller never blocks.
func (r *sessionRoom) publish(frameType string, payload any) {
	raw := mustJSON(payload)

	r.mu.Lock()
	r.nextSequence++
	frame := eventFrame{
		Type:      frameType,
		SessionID: r.sessionID,
		Sequence:  r.nextSequence,
		Payload:   raw,
	}
	switch frameType {
	case frameTypeTallyUpdate:
		r.latestTally = &frame
	case frameTypeProjectionUpdate:
		r.latestProjection = &frame
	case frameTypeCompleted, frameTypeCancelled:
		r.terminalFrame = &frame
	}

	var evicted []*streamSubscriber
	for subscriber := range r.subscribers {
		if !subscriber.enqueue(frame) {
			evicted = append(evicted, subscriber)
		}
	}
	for _, subscriber := range evicted {
		delete(r.subscribers, subscriber)
	}
	r.mu.Unlock()

	for _, subscriber := range evicted {
		log.Printf("simulation %s: evicting slow stream subscriber at sequence %d", r.sessionID, frame.Sequence)
		subscriber.evict()
	}
}

// join replays the retained frames in sequence order, then registers the
// subscriber for live events. A subscriber joining after the terminal frame
// receives the replay only; its writer exits once the terminal frame is sent.
func (r *sessionRoom) join(subscriber *streamSubscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	replay := make([]eventFrame, 0, 3)
	for _, frame := range []*eventFrame{r.latestTally, r.latestProjection, r.terminalFrame} {
		if frame != nil {
			replay = append(replay, *frame)
		}
	}
	sort.Slice(replay, func(i, j int) bool {
		return replay[i].Sequence < replay[j].Sequence
	})
	for _, frame := range replay {
		subscriber.enqueue(frame)
	}

	if r.terminalFrame == nil {
		r.subscribers[subscriber] = struct{}{}
	}
}

func (r *sessionRoom) leave(subscriber *streamSubscriber) {
	r.mu.Lock()
	delete(r.subscribers, subscriber)
	r.mu.Unlock()
}

func (r *sessionRoom) subscriberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers)
}

func (r *sessionRoom) closeAll() {
	r.mu.Lock()
	subscribers := make([]*streamSubscriber, 0, len(r.subscribers))
	for subscriber := range r.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	r.subscribers = make(map[*streamSubscriber]struct{})
	r.mu.Unlock()

	for _, subscriber := range subscribers {
		subscriber.disconnect()
	}
}

// streamSubscriber decouples event publication from delivery. The publishing
// goroutine appends to a bounded queue and a dedicated writer goroutine
// drains it, so a stalled connection never backs up the session tick loop.
type streamSubscriber struct {
	write func(eventFrame) error

	mu     sync.Mutex
	queue  []eventFrame
	closed bool
	slow   bool

	wake chan struct{}
	done chan struct{}
}

func newStreamSubscriber(write func(eventFrame) error) *streamSubscriber {
	return &streamSubscriber{
		write: write,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// enqueue appends a frame for delivery. When the queue is full it first drops
// the oldest queued projection, then an incoming projection; it reports false
// only when an undroppable frame cannot be accepted, which marks the
// subscriber as failed.
func (s *streamSubscriber) enqueue(frame eventFrame) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return true
	}
	if len(s.queue) >= subscriberQueueLimit {
		dropped := false
		for i, queued := range s.queue {
			if queued.droppable() {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			s.mu.Unlock()
			return frame.droppable()
		}
	}
	s.queue = append(s.queue, frame)
	s.mu.Unlock()

	s.signal()
	return true
}

// disconnect marks the subscriber failed and releases its writer. Pending
// frames are discarded; the connection teardown is owned by the caller that
// waits on done.
func (s *streamSubscriber) disconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	s.signal()
}

// evict disconnects a subscriber that fell behind the event stream and records
// the reason so the connection handler can report it before closing.
func (s *streamSubscriber) evict() {
	s.mu.Lock()
	s.slow = true
	s.mu.Unlock()

	s.disconnect()
}

func (s *streamSubscriber) evicted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slow
}

func (s *streamSubscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run drains the queue until the subscriber is disconnected, a write fails,
// or a terminal frame is delivered. It closes done on exit.
func (s *streamSubscriber) run() {
	defer close(s.done)
	for {
		frame, ok := s.next()
		if !ok {
			return
		}
		if err := s.write(frame); err != nil {
			s.disconnect()
			return
		}
		if frame.terminal() {
			s.disconnect()
			return
		}
	}
}

func (s *streamSubscriber) next() (eventFrame, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			frame := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return frame, true
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return eventFrame{}, false
		}
		<-s.wake
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal stream event payload: %v", err)
		return nil
	}
	return b
}
