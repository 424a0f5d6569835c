package process_test

import (
	"log"
	"time"

	"github.com/dragazo/NetsBlox-vm/system"
)

// fakeClock is a minimal system.System whose Now() is advanced manually,
// for deterministic OpWait tests (real time.Now() would make a suspend-
// until-elapsed test flaky under load).
type fakeClock struct {
	nanos int64
}

func (c *fakeClock) advance(d int64) { c.nanos += d }

func (c *fakeClock) Now() time.Time                              { return time.Unix(0, c.nanos) }
func (c *fakeClock) RandUniform() float64                        { return 0.5 }
func (c *fakeClock) SendMessage(msg system.Message)               {}
func (c *fakeClock) PollMessages(target string) []system.Message { return nil }
func (c *fakeClock) Logger() *log.Logger                         { return nil }
