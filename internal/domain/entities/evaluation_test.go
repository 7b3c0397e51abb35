package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecklistProgress_Complete(t *testing.T) {
	tests := []struct {
		name     string
		progress ChecklistProgress
		total    int
		want     bool
	}{
		{name: "every step once", progress: ChecklistProgress{0, 1, 2}, total: 3, want: true},
		{name: "any order", progress: ChecklistProgress{2, 0, 1}, total: 3, want: true},
		{name: "one step repeated", progress: ChecklistProgress{0, 0, 0, 0, 0, 0}, total: 3, want: false},
		{name: "missing step padded with extras", progress: ChecklistProgress{0, 1, 5, 7}, total: 3, want: false},
		{name: "extra steps past the checklist", progress: ChecklistProgress{0, 1, 2, 5}, total: 3, want: true},
		{name: "negative index ignored", progress: ChecklistProgress{-1, 0, 1}, total: 3, want: false},
		{name: "nothing done", progress: nil, total: 3, want: false},
		{name: "empty checklist", progress: nil, total: 0, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.progress.Complete(tt.total))
		})
	}
}
