package shop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusNew, StatusConfirmed))
	assert.True(t, CanTransition(StatusConfirmed, StatusShipped))
	assert.True(t, CanTransition(StatusShipped, StatusDelivered))

	// cancel from any non-terminal state
	assert.True(t, CanTransition(StatusNew, StatusCancelled))
	assert.True(t, CanTransition(StatusConfirmed, StatusCancelled))
	assert.True(t, CanTransition(StatusShipped, StatusCancelled))

	// no skipping, no going back, terminal states stay terminal
	assert.False(t, CanTransition(StatusNew, StatusShipped))
	assert.False(t, CanTransition(StatusConfirmed, StatusNew))
	assert.False(t, CanTransition(StatusDelivered, StatusCancelled))
	assert.False(t, CanTransition(StatusCancelled, StatusConfirmed))
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusNew, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled} {
		assert.True(t, ValidStatus(s))
	}
	assert.False(t, ValidStatus("pending"))
	assert.False(t, ValidStatus(""))
}
