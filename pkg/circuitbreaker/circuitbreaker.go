package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/jwalitptl/barber-api/pkg/logger"
)

type Settings struct {
	Name string
	// MaxRequests is how many calls pass through while half-open.
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// ConsecutiveFailures trips the breaker. Zero means 5.
	ConsecutiveFailures uint32
}

// CircuitBreaker runs calls through a gobreaker state machine.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

func NewCircuitBreaker(settings Settings, log *logger.Logger) *CircuitBreaker {
	threshold := settings.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	return &CircuitBreaker{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        settings.Name,
			MaxRequests: settings.MaxRequests,
			Interval:    settings.Interval,
			Timeout:     settings.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				if log != nil {
					log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
				}
			},
		}),
	}
}

// Execute calls fn unless the breaker is open, in which case it fails fast
// with gobreaker.ErrOpenState or gobreaker.ErrTooManyRequests.
func (c *CircuitBreaker) Execute(fn func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

func (c *CircuitBreaker) State() string {
	return c.cb.State().String()
}
