package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/ceyewan/shardis/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParticipant struct {
	name       string
	log        *[]string
	prepareErr error
	commitErr  error
	released   int
}

func (p *fakeParticipant) Prepare(context.Context) error {
	*p.log = append(*p.log, p.name+".prepare")
	return p.prepareErr
}

func (p *fakeParticipant) Commit(context.Context) error {
	*p.log = append(*p.log, p.name+".commit")
	return p.commitErr
}

func (p *fakeParticipant) Rollback(context.Context) error {
	*p.log = append(*p.log, p.name+".rollback")
	return nil
}

func (p *fakeParticipant) Release() error {
	p.released++
	return nil
}

func TestBeginFromContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx, tx := Begin(context.Background())
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, tx, got)
	assert.True(t, tx.Active())
	assert.NotEmpty(t, tx.ID())
}

func TestCommit(t *testing.T) {
	var log []string
	a := &fakeParticipant{name: "a", log: &log}
	b := &fakeParticipant{name: "b", log: &log}

	ctx, tx := Begin(context.Background())
	require.NoError(t, tx.Enlist(a))
	require.NoError(t, tx.Enlist(b))
	assert.Equal(t, 2, tx.Len())

	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, []string{"a.prepare", "b.prepare", "a.commit", "b.commit"}, log)
	assert.Equal(t, StatusCommitted, tx.Status())
	assert.Equal(t, 1, a.released)
	assert.Equal(t, 1, b.released)

	// 只能做一次决定
	assert.ErrorIs(t, tx.Commit(ctx), ErrTxDone)
	assert.ErrorIs(t, tx.Rollback(ctx), ErrTxDone)
	assert.ErrorIs(t, tx.Enlist(&fakeParticipant{log: &log}), ErrTxDone)
	assert.Equal(t, 1, a.released)
}

func TestCommitPrepareFailureRollsBackAll(t *testing.T) {
	var log []string
	boom := errors.New("connection lost")
	a := &fakeParticipant{name: "a", log: &log}
	b := &fakeParticipant{name: "b", log: &log, prepareErr: boom}
	c := &fakeParticipant{name: "c", log: &log}

	ctx, tx := Begin(context.Background())
	for _, p := range []*fakeParticipant{a, b, c} {
		require.NoError(t, tx.Enlist(p))
	}

	err := tx.Commit(ctx)
	assert.ErrorIs(t, err, ErrRolledBack)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a.prepare", "b.prepare", "a.rollback", "b.rollback", "c.rollback"}, log)
	assert.Equal(t, StatusRolledBack, tx.Status())
	for _, p := range []*fakeParticipant{a, b, c} {
		assert.Equal(t, 1, p.released, p.name)
	}
}

func TestCommitPartialFailure(t *testing.T) {
	var log []string
	boom := errors.New("disk full")
	a := &fakeParticipant{name: "a", log: &log}
	b := &fakeParticipant{name: "b", log: &log, commitErr: boom}

	ctx, tx := Begin(context.Background())
	require.NoError(t, tx.Enlist(a))
	require.NoError(t, tx.Enlist(b))

	err := tx.Commit(ctx)
	assert.ErrorIs(t, err, ErrHeuristic)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusHeuristic, tx.Status())
	assert.Equal(t, 1, b.released)
}

func TestCommitHeuristicCollectsEachFailure(t *testing.T) {
	var log []string
	diskFull := errors.New("disk full")
	lost := errors.New("connection lost")
	a := &fakeParticipant{name: "a", log: &log}
	b := &fakeParticipant{name: "b", log: &log, commitErr: diskFull}
	c := &fakeParticipant{name: "c", log: &log, commitErr: lost}

	ctx, tx := Begin(context.Background())
	for _, p := range []*fakeParticipant{a, b, c} {
		require.NoError(t, tx.Enlist(p))
	}

	err := tx.Commit(ctx)
	assert.ErrorIs(t, err, ErrHeuristic)

	var multi *xerrors.MultiError
	require.True(t, xerrors.As(err, &multi))
	assert.Equal(t, []error{diskFull, lost}, multi.Errors)
}

func TestCommitAllFail(t *testing.T) {
	var log []string
	boom := errors.New("gone")
	a := &fakeParticipant{name: "a", log: &log, commitErr: boom}

	ctx, tx := Begin(context.Background())
	require.NoError(t, tx.Enlist(a))

	err := tx.Commit(ctx)
	assert.ErrorIs(t, err, ErrCommitFailed)
	assert.NotErrorIs(t, err, ErrHeuristic)
}

func TestRollback(t *testing.T) {
	var log []string
	a := &fakeParticipant{name: "a", log: &log}

	ctx, tx := Begin(context.Background())
	require.NoError(t, tx.Enlist(a))
	require.NoError(t, tx.Rollback(ctx))

	assert.Equal(t, []string{"a.rollback"}, log)
	assert.Equal(t, 1, a.released)
	assert.Equal(t, "rolled_back", tx.Status().String())
}

func TestEmptyTransaction(t *testing.T) {
	ctx, tx := Begin(context.Background())
	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, StatusCommitted, tx.Status())
}
