// Package statemachine defines the legal transitions a Story's status may
// take. It has no side effects; the Repository consults it before issuing
// any status UPDATE, and the Orchestrator consults it before claiming a job.
package statemachine

import "github.com/fablecast/storypipe/internal/models"

var edges = map[models.Status]map[models.Status]bool{
	models.StatusPending: {
		models.StatusProcessing: true,
		models.StatusFailed:     true, // enqueue_failed, before any processing starts
	},
	models.StatusProcessing: {
		models.StatusProcessing: true, // re-claim after a crashed worker, same terminal set
		models.StatusCompleted:  true,
		models.StatusFailed:     true,
	},
	models.StatusCompleted: {},
	models.StatusFailed:    {},
}

// Allowed reports whether a transition from `from` to `to` is legal.
func Allowed(from, to models.Status) bool {
	targets, ok := edges[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Terminal reports whether a status has no outgoing transitions.
func Terminal(s models.Status) bool {
	return s == models.StatusCompleted || s == models.StatusFailed
}
