package statemachine

import (
	"testing"

	"github.com/fablecast/storypipe/internal/models"
)

func TestAllowed(t *testing.T) {
	all := []models.Status{
		models.StatusPending, models.StatusProcessing, models.StatusCompleted, models.StatusFailed,
	}

	allowed := map[[2]models.Status]bool{
		{models.StatusPending, models.StatusProcessing}:    true,
		{models.StatusPending, models.StatusFailed}:        true,
		{models.StatusProcessing, models.StatusProcessing}: true,
		{models.StatusProcessing, models.StatusCompleted}:  true,
		{models.StatusProcessing, models.StatusFailed}:     true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]models.Status{from, to}]
			got := Allowed(from, to)
			if got != want {
				t.Errorf("Allowed(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminal(t *testing.T) {
	tests := []struct {
		status models.Status
		want   bool
	}{
		{models.StatusPending, false},
		{models.StatusProcessing, false},
		{models.StatusCompleted, true},
		{models.StatusFailed, true},
	}
	for _, tt := range tests {
		if got := Terminal(tt.status); got != tt.want {
			t.Errorf("Terminal(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
