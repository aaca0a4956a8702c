package store

import "github.com/BIecoSRL/aweyt/internal/models"

var transitionMap = map[string][]models.Status{
	"call":     {models.StatusWaiting},
	"serve":    {models.StatusCalled},
	"complete": {models.StatusServing},
	"cancel":   {models.StatusWaiting, models.StatusCalled, models.StatusServing},
	"redirect": {models.StatusServing},
}

// AllowedFrom returns the statuses an action may start from.
func AllowedFrom(action string) []models.Status {
	return transitionMap[action]
}

func ValidTransition(action string, fromStatus models.Status) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}
