package emailer

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

const (
	timeInterval = 30 * time.Second
	timeTimeOut  = 15 * time.Second

	repeatNumber = 5
)

type sender interface {
	Send(to, subject, additionalHeaders, body string) error
}

// BreakerSender trips after consecutive SMTP failures so a provider outage
// fails fast instead of stalling every signup request on a dead connection.
type BreakerSender struct {
	name    string
	cb      *gobreaker.CircuitBreaker
	wrapped sender
}

func NewBreakerSender(name string, wrapped sender) *BreakerSender {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    timeInterval,
		Timeout:     timeTimeOut,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= repeatNumber
		},
	}
	return &BreakerSender{
		name:    name,
		cb:      gobreaker.NewCircuitBreaker(settings),
		wrapped: wrapped,
	}
}

func (b *BreakerSender) Send(to, subject, additionalHeaders, body string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.wrapped.Send(to, subject, additionalHeaders, body)
	})
	if err != nil {
		return errors.New(b.name + " unavailable: " + err.Error())
	}
	return nil
}
