package kgs

import (
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandQueueOrdering(t *testing.T) {
	q := newCommandQueue()
	defer q.Release()

	var order []int
	for i := 0; i < 100; i++ {
		q.Submit(func() error {
			order = append(order, i)
			return nil
		})
	}
	require.NoError(t, q.Finish())

	require.Len(t, order, 100)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestCommandQueueFinishReportsFirstError(t *testing.T) {
	q := newCommandQueue()
	defer q.Release()

	first := pkgerrors.New("first failure")
	q.Submit(func() error { return nil })
	q.Submit(func() error { return first })
	q.Submit(func() error { return pkgerrors.New("second failure") })

	err := q.Finish()
	require.Error(t, err)
	assert.ErrorIs(t, err, first)

	// The failure is consumed; the queue is usable again.
	q.Submit(func() error { return nil })
	assert.NoError(t, q.Finish())
}

func TestCommandQueueFinishIdle(t *testing.T) {
	q := newCommandQueue()
	defer q.Release()
	assert.NoError(t, q.Finish())
}
