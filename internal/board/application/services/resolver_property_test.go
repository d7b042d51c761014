package services_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/taskboard/internal/board/application/services"
	"github.com/felixgeelhaar/taskboard/internal/board/domain/task"
	"pgregory.net/rapid"
)

// Any sequence of current and stale baselines: applied updates bump the
// version by exactly one, stale ones conflict and leave it alone.
func TestConflictResolver_VersionProperty(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	ctx := context.Background()
	run := 0

	rapid.Check(t, func(t *rapid.T) {
		run++
		tk, err := task.NewTask(fmt.Sprintf("property %d", run), "", task.PriorityMedium, alice.ID)
		if err != nil {
			t.Fatalf("new task: %v", err)
		}
		if err := f.tasks.Create(ctx, tk); err != nil {
			t.Fatalf("create: %v", err)
		}

		version := 1
		steps := rapid.IntRange(1, 8).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			baseline := version
			stale := version > 1 && rapid.Bool().Draw(t, "stale")
			if stale {
				baseline = rapid.IntRange(1, version-1).Draw(t, "baseline")
			}
			title := fmt.Sprintf("property %d step %d", run, i)

			out, err := f.resolver.Update(ctx, services.UpdateRequest{
				TaskID:      tk.ID(),
				Fields:      task.Fields{Title: &title},
				PerformedBy: alice.ID,
				Baseline:    &baseline,
			})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if stale {
				if !out.IsConflict() || out.Conflict.CurrentVersion != version {
					t.Fatalf("baseline %d against version %d did not conflict", baseline, version)
				}
				continue
			}
			if !out.Applied || out.Task.Version() != version+1 {
				t.Fatalf("baseline %d: want applied at version %d", baseline, version+1)
			}
			version++
		}

		stored, err := f.tasks.FindByID(ctx, tk.ID())
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if stored.Version() != version {
			t.Fatalf("stored version %d, want %d", stored.Version(), version)
		}
	})
}
