package transaction

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollbackRunsInReverseOrder(t *testing.T) {
	tx := New(zerolog.Nop())

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		tx.OnRollback(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	tx.Rollback(context.Background())

	assert.Equal(t, []string{"third", "second", "first"}, order)
	assert.Equal(t, 0, tx.Depth())
}

func TestRollbackContinuesPastFailures(t *testing.T) {
	tx := New(zerolog.Nop())

	var order []string
	tx.OnRollback("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	tx.OnRollback("second", func(context.Context) error {
		order = append(order, "second")
		return errors.New("boom")
	})
	tx.OnRollback("third", func(context.Context) error {
		order = append(order, "third")
		panic("worse")
	})

	tx.Rollback(context.Background())

	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestCommitDiscardsCompensators(t *testing.T) {
	tx := New(zerolog.Nop())

	ran := false
	tx.OnRollback("step", func(context.Context) error {
		ran = true
		return nil
	})
	require.Equal(t, 1, tx.Depth())

	tx.Commit()

	tx.Rollback(context.Background())
	assert.False(t, ran)
	assert.Equal(t, 0, tx.Depth())
}

func TestRegisterAfterClosePanics(t *testing.T) {
	tx := New(zerolog.Nop())
	tx.Commit()

	assert.Panics(t, func() {
		tx.OnRollback("late", func(context.Context) error { return nil })
	})
	assert.Panics(t, tx.Commit)
}

func TestRollbackDuringRollbackPanics(t *testing.T) {
	tx := New(zerolog.Nop())

	tx.OnRollback("step", func(context.Context) error {
		assert.Panics(t, func() {
			tx.OnRollback("nested", func(context.Context) error { return nil })
		})
		return nil
	})

	tx.Rollback(context.Background())
}
