package admission

import "time"

// Defaults applied when corresponding Config fields are unset. They mirror
// the service this gateway replaces: a window of 1024 tokens, five queue
// slots, one generation at a time, and a wait just under the client timeout.
const (
	defaultWindow      = 1024
	defaultQueueDepth  = 5
	defaultConcurrency = 1
	defaultMaxWait     = 25 * time.Second
)

// Config encapsulates all tunables for Controller construction.
type Config struct {
	// Window is the context window size in tokens.
	Window int
	// GenFloor is the minimum generation budget for a viable request.
	GenFloor int
	// QueueDepth is the number of requests allowed to wait for a slot
	// beyond those executing.
	QueueDepth int
	// Concurrency is the generation slot pool size. One per GPU slot.
	Concurrency int
	// MaxQueueWait bounds how long a queued request may wait before it is
	// resolved as a timeout instead of served.
	MaxQueueWait time.Duration
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = defaultWindow
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = defaultQueueDepth
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.MaxQueueWait <= 0 {
		c.MaxQueueWait = defaultMaxWait
	}
	return c
}
