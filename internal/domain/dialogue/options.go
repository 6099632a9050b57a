package dialogue

import (
	"github.com/okian/callgen/pkg/logger"
)

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithMaxTurns caps the transcript length.
func WithMaxTurns(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

// WithArbitrationInterval runs arbitration after every n-th turn.
func WithArbitrationInterval(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.interval = n
		}
	}
}

// WithArbitrationFrom sets the first transcript length that may be arbitrated.
func WithArbitrationFrom(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.from = n
		}
	}
}

// WithSeedMessage sets the synthetic cue that opens the call for the initiator.
func WithSeedMessage(msg string) Option {
	return func(s *Session) {
		if msg != "" {
			s.seed = msg
		}
	}
}

// WithID tags log lines with a conversation id.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}
