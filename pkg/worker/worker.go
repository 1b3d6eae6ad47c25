package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipway-sh/slipway/pkg/agentcard"
	"github.com/slipway-sh/slipway/pkg/auth"
	"github.com/slipway-sh/slipway/pkg/backend"
	"github.com/slipway-sh/slipway/pkg/cluster"
	"github.com/slipway-sh/slipway/pkg/events"
	"github.com/slipway-sh/slipway/pkg/journal"
	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/metrics"
	"github.com/slipway-sh/slipway/pkg/observability"
	"github.com/slipway-sh/slipway/pkg/status"
	"github.com/slipway-sh/slipway/pkg/stream"
	"github.com/slipway-sh/slipway/pkg/types"
	"github.com/slipway-sh/slipway/pkg/version"
)

const (
	// DefaultPollInterval is how often the build wait polls job status
	DefaultPollInterval = 5 * time.Second

	// DefaultBuildTimeout is the ceiling on one image build
	DefaultBuildTimeout = 10 * time.Minute

	// DefaultAgentPort is the container port agents listen on
	DefaultAgentPort = 8080
)

// Config wires the worker's collaborators and tunables
type Config struct {
	Consumer *stream.Consumer
	Status   *status.Store
	Backend  *backend.Client
	Auth     *auth.Client
	Driver   cluster.Driver
	Versions *version.Engine
	Cards    *agentcard.Resolver
	Stager   *observability.Stager // optional, nil disables staging
	Journal  *journal.Journal      // optional, nil disables effect tracking
	Broker   *events.Broker        // optional, nil disables event publishing

	GatewayBaseURL string
	Registry       string
	LLMAPIKey      string
	Namespace      string
	AgentPort      int32

	PollInterval time.Duration
	BuildTimeout time.Duration
}

// Worker consumes orchestration commands from the stream and drives each
// one through its lifecycle: build, deploy, register, grant permissions,
// finalize. One command is processed at a time; the consumer group spreads
// load across replicas.
type Worker struct {
	consumer *stream.Consumer
	status   *status.Store
	backend  *backend.Client
	auth     *auth.Client
	driver   cluster.Driver
	versions *version.Engine
	cards    *agentcard.Resolver
	stager   *observability.Stager
	journal  *journal.Journal
	broker   *events.Broker

	gatewayBaseURL string
	registry       string
	llmAPIKey      string
	namespace      string
	agentPort      int32

	pollInterval time.Duration
	buildTimeout time.Duration

	clock func() time.Time
	log   zerolog.Logger
}

// New validates the wiring and returns a ready worker
func New(cfg *Config) (*Worker, error) {
	if cfg.Consumer == nil {
		return nil, errors.New("worker requires a stream consumer")
	}
	if cfg.Status == nil {
		return nil, errors.New("worker requires a status store")
	}
	if cfg.Backend == nil {
		return nil, errors.New("worker requires a backend client")
	}
	if cfg.Auth == nil {
		return nil, errors.New("worker requires an auth client")
	}
	if cfg.Driver == nil {
		return nil, errors.New("worker requires a cluster driver")
	}
	if cfg.Versions == nil {
		return nil, errors.New("worker requires a version engine")
	}
	if cfg.Cards == nil {
		return nil, errors.New("worker requires an agent card resolver")
	}
	if cfg.GatewayBaseURL == "" {
		return nil, errors.New("worker requires a gateway base URL")
	}
	if cfg.Registry == "" {
		return nil, errors.New("worker requires an image registry")
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	buildTimeout := cfg.BuildTimeout
	if buildTimeout <= 0 {
		buildTimeout = DefaultBuildTimeout
	}
	agentPort := cfg.AgentPort
	if agentPort <= 0 {
		agentPort = DefaultAgentPort
	}

	return &Worker{
		consumer:       cfg.Consumer,
		status:         cfg.Status,
		backend:        cfg.Backend,
		auth:           cfg.Auth,
		driver:         cfg.Driver,
		versions:       cfg.Versions,
		cards:          cfg.Cards,
		stager:         cfg.Stager,
		journal:        cfg.Journal,
		broker:         cfg.Broker,
		gatewayBaseURL: cfg.GatewayBaseURL,
		registry:       cfg.Registry,
		llmAPIKey:      cfg.LLMAPIKey,
		namespace:      cfg.Namespace,
		agentPort:      agentPort,
		pollInterval:   pollInterval,
		buildTimeout:   buildTimeout,
		clock:          time.Now,
		log:            log.WithComponent("worker"),
	}, nil
}

// Run consumes commands until ctx is cancelled. The command in flight when
// cancellation arrives runs to completion on a detached context, so shutdown
// never strands a half-finished deploy.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Msg("Worker started")

	for {
		msg, err := w.consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.log.Info().Msg("Worker stopping")
				return nil
			}
			w.log.Warn().Err(err).Msg("Stream read failed, retrying")
			metrics.StreamMessagesTotal.WithLabelValues("read_error").Inc()
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		if msg == nil {
			if ctx.Err() != nil {
				w.log.Info().Msg("Worker stopping")
				return nil
			}
			continue
		}

		w.handle(context.WithoutCancel(ctx), msg)
	}
}

// handle processes one stream message start to finish. Acknowledgement is
// always eventual: a definitive failure is recorded rather than leaving the
// message pending forever.
func (w *Worker) handle(ctx context.Context, msg *stream.Message) {
	cmd, err := types.ParseCommand(msg.Fields)
	if err != nil {
		w.rejectMessage(ctx, msg, err)
		return
	}

	header := cmd.Header()
	action := string(cmd.Action())
	cmdLog := log.WithCommand(action, header.AgentName)
	cmdLog.Info().Str("message_id", msg.ID).Msg("Command received")
	metrics.StreamMessagesTotal.WithLabelValues("received").Inc()
	w.publishEvent(events.EventCommandReceived, header.AgentName, "command "+action+" received", map[string]string{
		"message_id": msg.ID,
	})

	entry := w.journalEntry(msg.ID, cmd)
	if entry != nil && entry.Completed {
		cmdLog.Info().
			Str("message_id", msg.ID).
			Msg("Redelivery of a completed command, acknowledging without rework")
		metrics.StreamMessagesTotal.WithLabelValues("replayed").Inc()
		w.ack(ctx, msg.ID)
		return
	}

	start := w.clock()
	err = w.dispatch(ctx, cmd, entry)
	metrics.CommandDuration.WithLabelValues(action).Observe(w.clock().Sub(start).Seconds())

	if err != nil {
		metrics.CommandsTotal.WithLabelValues(action, "failure").Inc()
		w.failCommand(ctx, cmd, start, err)
	} else {
		metrics.CommandsTotal.WithLabelValues(action, "success").Inc()
		w.publishEvent(events.EventCommandCompleted, header.AgentName, "command "+action+" completed", map[string]string{
			"message_id": msg.ID,
		})
	}

	w.saveJournal(entry, func(e *journal.Entry) { e.Completed = true })
	w.ack(ctx, msg.ID)
}

// rejectMessage handles unparseable commands. They are poison, not
// transient: the error is recorded and the message acknowledged so it never
// blocks the group.
func (w *Worker) rejectMessage(ctx context.Context, msg *stream.Message, parseErr error) {
	agentName := strings.TrimSpace(msg.Fields["agent_name"])
	w.log.Error().
		Err(parseErr).
		Str("message_id", msg.ID).
		Str("agent", agentName).
		Msg("Invalid command")
	metrics.StreamMessagesTotal.WithLabelValues("poison").Inc()

	if agentName != "" {
		w.setAgentStatus(ctx, agentName, types.AgentStatusError, map[string]string{
			"error": parseErr.Error(),
		})
		w.backend.UpdateUploadStatus(ctx, agentName, &types.UploadStatusUpdate{
			Status:             types.UploadStateFailed,
			ProgressPercentage: 0,
			StatusMessage:      "Invalid orchestration command",
			ErrorDetails:       []string{parseErr.Error()},
		})
	}
	w.ack(ctx, msg.ID)
}

// journalEntry loads or creates the effect journal entry for a message.
// Without a journal, or when it errors, the worker still runs, but a
// redelivered message may repeat side effects.
func (w *Worker) journalEntry(msgID string, cmd types.Command) *journal.Entry {
	if w.journal == nil {
		return nil
	}
	entry, err := w.journal.Get(msgID)
	if err != nil {
		w.log.Warn().Err(err).Str("message_id", msgID).Msg("Journal read failed")
		return nil
	}
	if entry == nil {
		entry = &journal.Entry{
			MessageID: msgID,
			Action:    string(cmd.Action()),
			AgentName: cmd.Header().AgentName,
		}
		if err := w.journal.Put(entry); err != nil {
			w.log.Warn().Err(err).Str("message_id", msgID).Msg("Journal write failed")
		}
	}
	return entry
}

// saveJournal applies a mutation to the journal entry and persists it.
// Journal loss degrades at-most-once effects to at-least-once, so failures
// are logged rather than raised.
func (w *Worker) saveJournal(entry *journal.Entry, mutate func(*journal.Entry)) {
	if entry == nil || w.journal == nil {
		return
	}
	mutate(entry)
	if err := w.journal.Put(entry); err != nil {
		w.log.Warn().Err(err).Str("message_id", entry.MessageID).Msg("Journal write failed")
	}
}

func (w *Worker) ack(ctx context.Context, id string) {
	if err := w.consumer.Ack(ctx, id); err != nil {
		w.log.Warn().Err(err).Str("message_id", id).Msg("Failed to acknowledge message")
		metrics.StreamMessagesTotal.WithLabelValues("ack_error").Inc()
		return
	}
	metrics.StreamMessagesTotal.WithLabelValues("acked").Inc()
}

func (w *Worker) publishEvent(eventType events.EventType, agentName, message string, metadata map[string]string) {
	if w.broker == nil {
		return
	}
	w.broker.Publish(&events.Event{
		Type:      eventType,
		AgentName: agentName,
		Message:   message,
		Metadata:  metadata,
	})
}
