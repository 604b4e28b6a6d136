package stream

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the controller FSM state.
type State int32

const (
	StateIdle State = iota
	StateLaunching
	StateStreaming
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLaunching:
		return "Launching"
	case StateStreaming:
		return "Streaming"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// session is the state of one streaming activity. handle is guarded by the
// controller's session mutex; everything else is set once or atomic.
type session struct {
	id        string
	startedAt time.Time

	handle    *ProcessHandle
	lastValue int
	restarts  atomic.Int64

	ctx      context.Context
	cancel   context.CancelFunc
	stopped  atomic.Bool
	loopDone chan struct{}
}

func newSession() *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		id:        uuid.NewString(),
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		loopDone:  make(chan struct{}),
	}
}

// requestStop sets the stop flag and wakes every wait of the session.
func (s *session) requestStop() {
	s.stopped.Store(true)
	s.cancel()
}

func (s *session) stopRequested() bool {
	return s.stopped.Load()
}
