// Package system is the small capability surface a process.Process and
// project.Project are handed instead of reaching for global state
// directly (spec.md §5 "capability object"), grounded on the teacher's
// db/store.go interface-for-side-effects idiom.
package system

import (
	"log"
	"math/rand/v2"
	"time"
)

// Message is an inbound or outbound cross-entity/cross-project message
// (spec.md §5 "send_message / poll_messages").
type Message struct {
	Target string
	Name   string
	Args   []string
}

// System is the capability interface a Project is stepped with. It
// exists so tests can supply a deterministic clock and RNG instead of
// the wall clock (spec.md §9 "Testability").
type System interface {
	// Now returns the current time, used to resolve OpWait deadlines.
	Now() time.Time
	// RandUniform returns a uniform random float in [0, 1).
	RandUniform() float64
	// SendMessage enqueues an outbound message for delivery.
	SendMessage(msg Message)
	// PollMessages drains and returns all messages queued for target
	// since the last call.
	PollMessages(target string) []Message
	// Logger returns the logger best-effort diagnostics should go to
	// (spec.md has no logging surface of its own; grounded on the
	// teacher's uniform use of the standard library log package).
	Logger() *log.Logger
}

// Std is the real-clock, real-RNG System used outside of tests.
type Std struct {
	inbox  map[string][]Message
	logger *log.Logger
}

// NewStd creates a System backed by the wall clock and crypto-unseeded
// math/rand/v2 global generator, logging to log.Default().
func NewStd() *Std {
	return &Std{inbox: make(map[string][]Message), logger: log.Default()}
}

// SetLogger overrides the default logger.
func (s *Std) SetLogger(l *log.Logger) { s.logger = l }

func (s *Std) Logger() *log.Logger { return s.logger }

func (s *Std) Now() time.Time { return time.Now() }

func (s *Std) RandUniform() float64 { return rand.Float64() }

func (s *Std) SendMessage(msg Message) {
	s.inbox[msg.Target] = append(s.inbox[msg.Target], msg)
}

func (s *Std) PollMessages(target string) []Message {
	msgs := s.inbox[target]
	delete(s.inbox, target)
	return msgs
}
