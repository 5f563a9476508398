// Package eventpub publishes committed ledger entries to a message broker.
package eventpub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
)

var (
	// ErrUnknownDriver indicates an unsupported EVENTS_DRIVER value.
	ErrUnknownDriver = errors.New("unknown events driver")
	// ErrNoBrokers indicates that the kafka driver is selected without brokers.
	ErrNoBrokers = errors.New("no kafka brokers configured")
)

// Publisher delivers EntryCommitted events and releases its connection on Close.
type Publisher interface {
	PublishEntry(ctx context.Context, event domain.EntryCommitted) error
	Close() error
}

// New returns the publisher selected by config.EventsDriver.
func New(config configpkg.Config) (Publisher, error) {
	switch config.EventsDriver {
	case "", configpkg.EventsNone:
		return Noop{}, nil
	case configpkg.EventsKafka:
		brokers := config.Brokers()
		if len(brokers) == 0 {
			return nil, ErrNoBrokers
		}

		return NewKafka(brokers, config.KafkaTopic), nil
	case configpkg.EventsNATS:
		return NewNATS(config.NATSURL, config.NATSSubject)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, config.EventsDriver)
	}
}

// Noop drops every event.
type Noop struct{}

// PublishEntry does nothing.
func (Noop) PublishEntry(context.Context, domain.EntryCommitted) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }

func encode(event domain.EntryCommitted) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", event.EventID, err)
	}

	return data, nil
}
