package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSSubscriber subscribes to NATS JetStream subjects and feeds events
// into the deterministic core via the eventChan. JetStream is the primary
// high-throughput ingestion surface; each subject maps to one event type.
type NATSSubscriber struct {
	js        jetstream.JetStream
	eventChan chan<- RawEvent
	consumers []jetstream.ConsumeContext
}

// RawEvent is the parsed-but-untyped event from NATS, ready for the shell
// to validate and convert into a typed event.Event before sending to the core.
type RawEvent struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // Call to ACK the NATS message after successful processing
	NakFunc   func() // Call to NAK on failure (will be redelivered)
}

// SubjectConfig maps NATS subjects to event types.
type SubjectConfig struct {
	Subject      string
	EventType    string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject configuration. Each event
// type gets its own durable consumer so subjects scale independently.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "farm.positions.minted.>", EventType: "PositionMinted", ConsumerName: "ledger-pos-mint", StreamName: "FARM_POSITIONS"},
		{Subject: "farm.positions.burned.>", EventType: "PositionBurned", ConsumerName: "ledger-pos-burn", StreamName: "FARM_POSITIONS"},
		{Subject: "farm.stakes.staked.>", EventType: "Staked", ConsumerName: "ledger-staked", StreamName: "FARM_STAKES"},
		{Subject: "farm.stakes.withdrawn.>", EventType: "Withdrawn", ConsumerName: "ledger-withdrawn", StreamName: "FARM_STAKES"},
		{Subject: "farm.stakes.claimed.>", EventType: "RewardClaimed", ConsumerName: "ledger-claimed", StreamName: "FARM_STAKES"},
		{Subject: "farm.stakes.exited.>", EventType: "Exited", ConsumerName: "ledger-exited", StreamName: "FARM_STAKES"},
		{Subject: "farm.lend.batch.>", EventType: "LendBatch", ConsumerName: "ledger-lend-batch", StreamName: "FARM_LEND"},
		{Subject: "farm.lend.withdraw.>", EventType: "WithdrawBatch", ConsumerName: "ledger-lend-withdraw", StreamName: "FARM_LEND"},
		{Subject: "farm.debt.issued.>", EventType: "DebtIssued", ConsumerName: "ledger-debt-issue", StreamName: "FARM_DEBT"},
		{Subject: "farm.debt.repaid.>", EventType: "DebtRepaid", ConsumerName: "ledger-debt-repay", StreamName: "FARM_DEBT"},
		{Subject: "farm.rates.>", EventType: "RewardRateUpdate", ConsumerName: "ledger-rates", StreamName: "FARM_RATES"},
		{Subject: "farm.incentive.created.>", EventType: "IncentiveCreated", ConsumerName: "ledger-inc-create", StreamName: "FARM_INCENTIVE"},
		{Subject: "farm.incentive.entered.>", EventType: "IncentiveEntered", ConsumerName: "ledger-inc-enter", StreamName: "FARM_INCENTIVE"},
		{Subject: "farm.incentive.exited.>", EventType: "IncentiveExited", ConsumerName: "ledger-inc-exit", StreamName: "FARM_INCENTIVE"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, eventChan chan<- RawEvent) *NATSSubscriber {
	return &NATSSubscriber{
		js:        js,
		eventChan: eventChan,
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawEvent{
				Subject:   msg.Subject(),
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
			}

			select {
			case ns.eventChan <- raw:
				// Queued for processing
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		log.Printf("INFO: subscribed to %s (consumer=%s)", cfg.Subject, cfg.ConsumerName)
	}

	return nil
}

// EnsureStreams creates the required JetStream streams if they don't exist.
// Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      "FARM_POSITIONS",
			Subjects:  []string{"farm.positions.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "FARM_STAKES",
			Subjects:  []string{"farm.stakes.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "FARM_LEND",
			Subjects:  []string{"farm.lend.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "FARM_DEBT",
			Subjects:  []string{"farm.debt.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "FARM_RATES",
			Subjects:  []string{"farm.rates.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "FARM_INCENTIVE",
			Subjects:  []string{"farm.incentive.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Printf("INFO: ensured stream %s", cfg.Name)
	}

	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	log.Println("INFO: NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("WARN: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("INFO: NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
