package wikibase

import (
	"github.com/knowbase/wikibase/pkg/wikibase/types/entities"
)

// SubmitEntityResult is the outcome of a single accepted edit
// submission.
type SubmitEntityResult struct {
	entity     *entities.Entity
	revisionID int64
}

func NewSubmitEntityResult(entity *entities.Entity, revisionID int64) *SubmitEntityResult {
	return &SubmitEntityResult{
		entity:     entity,
		revisionID: revisionID,
	}
}

// Entity returns the committed entity state as the store echoed it
// back.
func (r SubmitEntityResult) Entity() *entities.Entity {
	return r.entity
}

func (r SubmitEntityResult) RevisionID() int64 {
	return r.revisionID
}

// WriteResult is the outcome of a mediated write, after any token
// refreshes, retries and rebases.
type WriteResult struct {
	entity     *entities.Entity
	revisionID int64
	noop       bool
	rebased    bool
	recovered  bool
}

type WriteResultDecoratorFunc func(*WriteResult)

// Rebased marks that a concurrent edit forced the change set to be
// rebased onto a newer revision before it committed.
func Rebased() WriteResultDecoratorFunc {
	return func(r *WriteResult) { r.rebased = true }
}

// Recovered marks that the commit was confirmed by a verification read
// after the original confirmation was lost in transit.
func Recovered() WriteResultDecoratorFunc {
	return func(r *WriteResult) { r.recovered = true }
}

func NewWriteResult(entity *entities.Entity, revisionID int64, decorators ...WriteResultDecoratorFunc) *WriteResult {
	r := &WriteResult{
		entity:     entity,
		revisionID: revisionID,
	}
	for _, decorate := range decorators {
		decorate(r)
	}
	return r
}

// NewNoopWriteResult reports a write whose change set was empty, so no
// submission was made.
func NewNoopWriteResult(entity *entities.Entity) *WriteResult {
	return &WriteResult{
		entity:     entity,
		revisionID: entity.LastRevisionID(),
		noop:       true,
	}
}

// Entity returns the committed entity state.
func (r WriteResult) Entity() *entities.Entity {
	return r.entity
}

func (r WriteResult) RevisionID() int64 {
	return r.revisionID
}

// WasNoop reports that the change set was empty and nothing was
// submitted.
func (r WriteResult) WasNoop() bool {
	return r.noop
}

// WasRebased reports that a concurrent edit forced the change set to be
// rebased onto a newer revision before it committed.
func (r WriteResult) WasRebased() bool {
	return r.rebased
}

// WasRecovered reports that the commit was confirmed by a verification
// read after the original confirmation was lost in transit.
func (r WriteResult) WasRecovered() bool {
	return r.recovered
}
