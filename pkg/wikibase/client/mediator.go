package client

import (
	"context"
	goerrors "errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/knowbase/wikibase/internal/pkg/infrastructure/metrics"
	"github.com/knowbase/wikibase/pkg/wikibase"
	"github.com/knowbase/wikibase/pkg/wikibase/auth"
	"github.com/knowbase/wikibase/pkg/wikibase/diff"
	"github.com/knowbase/wikibase/pkg/wikibase/errors"
	"github.com/knowbase/wikibase/pkg/wikibase/types/entities"
)

// WriteState tracks where in its lifecycle a mediated write currently
// is.
type WriteState int

const (
	StateIdle WriteState = iota
	StateTokenReady
	StateSubmitting
	StateCommitted
	StateConflict
	StateRateLimited
	StateFailed
)

func (s WriteState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTokenReady:
		return "token-ready"
	case StateSubmitting:
		return "submitting"
	case StateCommitted:
		return "committed"
	case StateConflict:
		return "conflict"
	case StateRateLimited:
		return "rate-limited"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// WriteMediator drives locally modified entities through the store's
// optimistic concurrency protocol: it computes the change set, keeps an
// edit token warm, submits, and absorbs the store's failure modes by
// refreshing tokens, rebasing onto concurrent edits, waiting out rate
// limits and verifying writes whose confirmation was lost.
type WriteMediator struct {
	client    EntityClient
	tokens    *auth.TokenSession
	retry     RetryConfig
	bot       bool
	collector *metrics.WriteCollector
}

func Metrics(collector *metrics.WriteCollector) func(*WriteMediator) {
	return func(m *WriteMediator) {
		m.collector = collector
	}
}

func Tokens(session *auth.TokenSession) func(*WriteMediator) {
	return func(m *WriteMediator) {
		m.tokens = session
	}
}

func NewWriteMediator(entityClient EntityClient, cfg *Config, options ...func(*WriteMediator)) *WriteMediator {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	m := &WriteMediator{
		client: entityClient,
		retry:  cfg.Retry,
		bot:    cfg.Bot,
	}

	for _, option := range options {
		option(m)
	}

	if m.tokens == nil {
		m.tokens = auth.NewTokenSession(entityClient.FetchCSRFToken)
	}

	return m
}

type WriteOptionFunc func(*writeOptions)

type writeOptions struct {
	summary string
}

// Summary attaches an edit summary to the write.
func Summary(summary string) WriteOptionFunc {
	return func(o *writeOptions) {
		o.summary = summary
	}
}

// Write submits the entity's local modifications and returns once the
// edit has committed or failed for good. On success the entity adopts
// the committed state, so a subsequent Write with no further
// modifications is a no-op.
func (m *WriteMediator) Write(ctx context.Context, entity *entities.Entity, options ...WriteOptionFunc) (*wikibase.WriteResult, error) {
	var err error

	ctx, span := tracer.Start(ctx, "mediate-write",
		trace.WithAttributes(attribute.String(TraceAttributeEntityID, entity.ID())),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	opts := &writeOptions{}
	for _, option := range options {
		option(opts)
	}

	patch := diff.Between(entity.Base(), entity)
	if patch.IsEmpty() {
		return wikibase.NewNoopWriteResult(entity), nil
	}

	w := &write{
		mediator: m,
		entity:   entity,
		patch:    patch,
		summary:  opts.summary,
		log:      logging.GetFromContext(ctx),
		state:    StateIdle,
		started:  time.Now(),
		deadline: time.Now().Add(time.Duration(m.retry.MaxElapsedTime)),
		backoff:  m.newBackOff(),
	}

	result, werr := w.run(ctx)
	err = werr
	return result, err
}

func (m *WriteMediator) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(m.retry.InitialInterval)
	bo.MaxInterval = time.Duration(m.retry.MaxInterval)
	bo.Multiplier = m.retry.Multiplier
	bo.RandomizationFactor = m.retry.RandomizationFactor
	return bo
}

// write is the state for one mediated write attempt chain.
type write struct {
	mediator *WriteMediator
	entity   *entities.Entity
	patch    *diff.Patch
	summary  string
	log      *slog.Logger

	state      WriteState
	started    time.Time
	deadline   time.Time
	backoff    *backoff.ExponentialBackOff
	attempts   int
	rebased    bool
	recovered  bool
	tokenRetry bool
}

func (w *write) run(ctx context.Context) (*wikibase.WriteResult, error) {
	m := w.mediator

	for {
		if w.attempts >= m.retry.MaxAttempts || time.Now().After(w.deadline) {
			w.transition(StateFailed)
			m.collector.RecordSubmission("exhausted")
			return nil, errors.NewTransportError("submission retry budget exhausted")
		}

		token, err := m.tokens.Token(ctx)
		if err != nil {
			w.transition(StateFailed)
			return nil, err
		}
		w.transition(StateTokenReady)

		w.attempts++

		w.transition(StateSubmitting)
		result, err := m.client.SubmitEntity(ctx, Submission{
			Patch:   w.patch,
			Token:   token,
			Summary: w.summary,
			Bot:     m.bot,
		})

		if err == nil {
			return w.commit(result.Entity(), result.RevisionID())
		}

		switch {
		case goerrors.Is(err, errors.ErrToken):
			m.tokens.Invalidate(token)
			if w.tokenRetry {
				w.transition(StateFailed)
				return nil, err
			}
			w.tokenRetry = true
			w.log.Debug("edit token rejected, refreshing and resubmitting")

		case goerrors.Is(err, errors.ErrConflict):
			w.transition(StateConflict)
			result, rerr := w.resolveConflict(ctx)
			if result != nil || rerr != nil {
				return result, rerr
			}

		case goerrors.Is(err, errors.ErrRateLimited):
			w.transition(StateRateLimited)
			if werr := w.waitOut(ctx, err); werr != nil {
				w.transition(StateFailed)
				return nil, werr
			}

		case goerrors.Is(err, errors.ErrTransport):
			result, verr := w.verifyOutcome(ctx)
			if result != nil || verr != nil {
				return result, verr
			}

		default:
			// validation and other terminal failures
			w.transition(StateFailed)
			m.collector.RecordSubmission("rejected")
			return nil, err
		}
	}
}

func (w *write) commit(committed *entities.Entity, revisionID int64) (*wikibase.WriteResult, error) {
	w.entity.Commit(committed)
	w.transition(StateCommitted)

	m := w.mediator
	m.collector.RecordSubmission("committed")
	m.collector.RecordCommit(time.Since(w.started))

	decorators := []wikibase.WriteResultDecoratorFunc{}
	if w.rebased {
		decorators = append(decorators, wikibase.Rebased())
	}
	if w.recovered {
		decorators = append(decorators, wikibase.Recovered())
	}

	return wikibase.NewWriteResult(committed, revisionID, decorators...), nil
}

// resolveConflict fetches the upstream state and tries to carry the
// change set over onto it. A nil, nil return means the rebased patch
// should be resubmitted.
func (w *write) resolveConflict(ctx context.Context) (*wikibase.WriteResult, error) {
	m := w.mediator

	if w.rebased {
		m.collector.RecordConflict("unresolved")
		return nil, errors.NewConflictError("conflicting edit persisted after rebase", w.patch, nil)
	}

	upstream, err := m.client.FetchEntity(ctx, w.patch.EntityID)
	if err != nil {
		m.collector.RecordConflict("unresolved")
		return nil, err
	}

	rebased, err := diff.Rebase(w.patch, w.entity.Base(), upstream)
	if err != nil {
		m.collector.RecordConflict("unresolved")
		return nil, err
	}

	if rebased.IsEmpty() {
		// the concurrent edit already contains every local change
		m.collector.RecordConflict("absorbed")
		return w.commit(upstream, upstream.LastRevisionID())
	}

	w.log.Debug("rebased change set onto newer revision",
		"entity", w.patch.EntityID, "revision", upstream.LastRevisionID())

	m.collector.RecordConflict("rebased")
	w.patch = rebased
	w.rebased = true
	return nil, nil
}

// waitOut sleeps through a rate limit signal, preferring the store's
// suggested delay over the local backoff schedule.
func (w *write) waitOut(ctx context.Context, cause error) error {
	wait := w.backoff.NextBackOff()

	var rle *errors.RateLimitError
	if goerrors.As(cause, &rle) && rle.RetryAfter > 0 {
		wait = rle.RetryAfter
	}

	if time.Now().Add(wait).After(w.deadline) {
		return cause
	}

	w.log.Debug("store is overloaded, backing off", "wait", wait.String())
	w.mediator.collector.RecordRateLimitWait(wait)

	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// verifyOutcome decides what happened to a submission whose
// confirmation was lost. A nil, nil return means the edit provably did
// not land and the exact same patch should be resubmitted.
func (w *write) verifyOutcome(ctx context.Context) (*wikibase.WriteResult, error) {
	m := w.mediator

	if w.patch.EntityID == "" {
		// a created entity has no id to verify against
		w.transition(StateFailed)
		m.collector.RecordAmbiguousOutcome()
		return nil, errors.NewAmbiguousOutcomeError("lost confirmation for an entity creation")
	}

	current, err := m.client.FetchEntity(ctx, w.patch.EntityID)
	if err != nil {
		if w.attempts >= m.retry.MaxAttempts || time.Now().After(w.deadline) {
			w.transition(StateFailed)
			m.collector.RecordAmbiguousOutcome()
			return nil, errors.NewAmbiguousOutcomeError("write confirmation lost and verification failed: " + err.Error())
		}

		if werr := w.waitOut(ctx, err); werr != nil {
			w.transition(StateFailed)
			return nil, werr
		}
		return nil, nil
	}

	if current.LastRevisionID() == w.patch.BaseRevisionID {
		// the edit never landed, resubmitting it is safe
		w.log.Debug("write confirmation lost but base revision unchanged, resubmitting")
		return nil, nil
	}

	if diff.AppliedTo(w.patch, current) {
		w.log.Debug("write confirmation lost but change set found upstream, adopting")
		w.recovered = true
		return w.commit(current, current.LastRevisionID())
	}

	w.transition(StateFailed)
	m.collector.RecordAmbiguousOutcome()
	return nil, errors.NewAmbiguousOutcomeError("entity advanced past the base revision without the change set")
}

func (w *write) transition(next WriteState) {
	if w.state == next {
		return
	}

	w.log.Debug("write state transition", "from", w.state.String(), "to", next.String())
	w.state = next
}
