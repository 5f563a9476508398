package eventpub

import (
	"context"
	"fmt"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// DefaultNATSSubject is used when no subject is configured.
const DefaultNATSSubject = "ledger.entries"

// NATS publishes events on a NATS subject.
type NATS struct {
	conn    *nats.Conn
	subject string
}

// NewNATS connects to the NATS server at url.
func NewNATS(url, subject string) (*NATS, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	if subject == "" {
		subject = DefaultNATSSubject
	}

	conn, err := nats.Connect(url,
		nats.Name("pet-ledger"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}

	return &NATS{conn: conn, subject: subject}, nil
}

// PublishEntry publishes the event. The event ID goes into the Nats-Msg-Id header so
// JetStream consumers can deduplicate.
func (p *NATS) PublishEntry(ctx context.Context, event domain.EntryCommitted) error {
	msg, err := natsMessage(p.subject, event)
	if err != nil {
		return err
	}

	if err := p.conn.PublishMsg(msg); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Debug().Str("subject", p.subject).Str("event_id", event.EventID).Msg("event published")

	return nil
}

// Close drains the connection so buffered messages are flushed.
func (p *NATS) Close() error {
	return p.conn.Drain()
}

func natsMessage(subject string, event domain.EntryCommitted) (*nats.Msg, error) {
	data, err := encode(event)
	if err != nil {
		return nil, err
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.EventID)

	return msg, nil
}
