package orders

import (
	"slices"

	"spicery/models"
)

// transitions lists the only legal edges of the order lifecycle.
//
//	pending → confirmed → processing → shipped → delivered
//	pending|confirmed → cancelled
//	delivered → returned
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending:    {models.StatusConfirmed, models.StatusCancelled},
	models.StatusConfirmed:  {models.StatusProcessing, models.StatusCancelled},
	models.StatusProcessing: {models.StatusShipped},
	models.StatusShipped:    {models.StatusDelivered},
	models.StatusDelivered:  {models.StatusReturned},
	models.StatusCancelled:  nil,
	models.StatusReturned:   nil,
}

// Known reports whether s is one of the order statuses.
func Known(s models.OrderStatus) bool {
	_, ok := transitions[s]
	return ok
}

func CanTransition(from, to models.OrderStatus) bool {
	return slices.Contains(transitions[from], to)
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s models.OrderStatus) bool {
	return Known(s) && len(transitions[s]) == 0
}

// NextStatuses returns the statuses reachable from s in one step.
func NextStatuses(s models.OrderStatus) []models.OrderStatus {
	return slices.Clone(transitions[s])
}

// releasesStock reports whether entering s gives the order's stock back.
func releasesStock(s models.OrderStatus) bool {
	return s == models.StatusCancelled || s == models.StatusReturned
}
