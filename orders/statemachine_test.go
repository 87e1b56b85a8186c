package orders

import (
	"testing"

	"spicery/models"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []models.OrderStatus{
	models.StatusPending,
	models.StatusConfirmed,
	models.StatusProcessing,
	models.StatusShipped,
	models.StatusDelivered,
	models.StatusCancelled,
	models.StatusReturned,
}

func TestCanTransition_Table(t *testing.T) {
	legal := map[[2]models.OrderStatus]bool{
		{models.StatusPending, models.StatusConfirmed}:    true,
		{models.StatusPending, models.StatusCancelled}:    true,
		{models.StatusConfirmed, models.StatusProcessing}: true,
		{models.StatusConfirmed, models.StatusCancelled}:  true,
		{models.StatusProcessing, models.StatusShipped}:   true,
		{models.StatusShipped, models.StatusDelivered}:    true,
		{models.StatusDelivered, models.StatusReturned}:   true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			assert.Equal(t, legal[[2]models.OrderStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range allStatuses {
		want := s == models.StatusCancelled || s == models.StatusReturned
		assert.Equal(t, want, IsTerminal(s), s)
	}
	assert.False(t, IsTerminal("bogus"))
	assert.False(t, Known("bogus"))
}

func TestNextStatuses_ReturnsCopy(t *testing.T) {
	next := NextStatuses(models.StatusPending)
	next[0] = models.StatusReturned
	assert.Equal(t, []models.OrderStatus{models.StatusConfirmed, models.StatusCancelled}, NextStatuses(models.StatusPending))
}
