package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/familyfunds/internal/models"
	"github.com/mmynk/familyfunds/internal/realtime"
)

func TestCreateGoal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group, users := f.family(t, "Bob")
	carol := f.user(t, "carol@example.com", "Carol")

	tests := []struct {
		name     string
		userID   string
		goalName string
		target   string
		deadline int64
		wantErr  error
	}{
		{name: "member creates", userID: users[1].ID, goalName: "Holiday", target: "1000", deadline: 1800000000},
		{name: "non-member", userID: carol.ID, goalName: "Holiday", target: "1000", wantErr: ErrNotAuthorized},
		{name: "zero target", userID: users[0].ID, goalName: "Holiday", target: "0", wantErr: ErrValidation},
		{name: "empty name", userID: users[0].ID, goalName: " ", target: "10", wantErr: ErrValidation},
		{name: "negative deadline", userID: users[0].ID, goalName: "Holiday", target: "10", deadline: -1, wantErr: ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			goal, err := f.goals.CreateGoal(ctx, tt.userID, group.ID, tt.goalName, dec(tt.target), tt.deadline)
			assertErr(t, err, tt.wantErr)
			if tt.wantErr != nil {
				return
			}
			if goal.Status != models.GoalInProgress || !goal.CurrentAmount.IsZero() {
				t.Errorf("new goal should be empty and in progress: %+v", goal)
			}
			if goal.CreatedBy != tt.userID || goal.Deadline != tt.deadline {
				t.Errorf("unexpected goal %+v", goal)
			}
		})
	}

	goals, err := f.goals.ListGoals(ctx, users[0].ID, group.ID)
	if err != nil {
		t.Fatalf("ListGoals failed: %v", err)
	}
	if len(goals) != 1 {
		t.Errorf("expected 1 goal, got %d", len(goals))
	}
	_, err = f.goals.ListGoals(ctx, carol.ID, group.ID)
	assertErr(t, err, ErrNotAuthorized)
}

func TestContribute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group, users := f.family(t, "Bob")
	carol := f.user(t, "carol@example.com", "Carol")

	goal, err := f.goals.CreateGoal(ctx, users[0].ID, group.ID, "Bike", dec("100"), 0)
	if err != nil {
		t.Fatalf("CreateGoal failed: %v", err)
	}

	t.Run("missing goal", func(t *testing.T) {
		_, err := f.goals.Contribute(ctx, users[0].ID, "nope", dec("1"))
		assertErr(t, err, ErrNotFound)
	})
	t.Run("non-member", func(t *testing.T) {
		_, err := f.goals.Contribute(ctx, carol.ID, goal.ID, dec("1"))
		assertErr(t, err, ErrNotAuthorized)
	})
	for _, amount := range []string{"0", "-5"} {
		t.Run("amount "+amount, func(t *testing.T) {
			_, err := f.goals.Contribute(ctx, users[0].ID, goal.ID, dec(amount))
			assertErr(t, err, ErrValidation)
		})
	}

	steps := []struct {
		userID     string
		amount     string
		wantTotal  string
		wantStatus models.GoalStatus
	}{
		{users[0].ID, "40", "40", models.GoalInProgress},
		{users[1].ID, "59.99", "99.99", models.GoalInProgress},
		{users[1].ID, "0.01", "100", models.GoalCompleted},
		{users[0].ID, "5", "105", models.GoalCompleted},
	}
	for i, step := range steps {
		updated, err := f.goals.Contribute(ctx, step.userID, goal.ID, dec(step.amount))
		if err != nil {
			t.Fatalf("step %d: Contribute failed: %v", i, err)
		}
		if !updated.CurrentAmount.Equal(dec(step.wantTotal)) {
			t.Errorf("step %d: total %s, want %s", i, updated.CurrentAmount, step.wantTotal)
		}
		if updated.Status != step.wantStatus {
			t.Errorf("step %d: status %s, want %s", i, updated.Status, step.wantStatus)
		}
		if len(updated.Contributions) != i+1 {
			t.Errorf("step %d: %d contributions", i, len(updated.Contributions))
		}
		if ev := f.events.last(); ev.Event != realtime.EventGoalUpdated || ev.GroupID != group.ID {
			t.Errorf("step %d: unexpected event %+v", i, ev)
		}
	}
}

func TestContributeConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group, users := f.family(t, "Bob")

	goal, err := f.goals.CreateGoal(ctx, users[0].ID, group.ID, "Car", dec("10000"), 0)
	if err != nil {
		t.Fatalf("CreateGoal failed: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			if _, err := f.goals.Contribute(ctx, userID, goal.ID, dec("10.25")); err != nil {
				errs <- err
			}
		}(users[i%len(users)].ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Contribute failed: %v", err)
	}

	got, err := f.store.GetGoal(ctx, goal.ID)
	if err != nil {
		t.Fatalf("GetGoal failed: %v", err)
	}
	want := dec("10.25").Mul(decimal.NewFromInt(workers))
	if !got.CurrentAmount.Equal(want) {
		t.Errorf("current amount %s, want %s", got.CurrentAmount, want)
	}
	if len(got.Contributions) != workers {
		t.Errorf("expected %d contributions, got %d", workers, len(got.Contributions))
	}
}

func TestDeleteGoal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group, users := f.family(t, "Bob")

	goal, err := f.goals.CreateGoal(ctx, users[1].ID, group.ID, "Bike", dec("100"), 0)
	if err != nil {
		t.Fatalf("CreateGoal failed: %v", err)
	}

	err = f.goals.DeleteGoal(ctx, users[1].ID, goal.ID)
	assertErr(t, err, ErrNotAuthorized)

	err = f.goals.DeleteGoal(ctx, users[0].ID, goal.ID)
	assertErr(t, err, nil)

	err = f.goals.DeleteGoal(ctx, users[0].ID, goal.ID)
	assertErr(t, err, ErrNotFound)
}

// Target 1000, contribute 400 then 700.
func TestGoalScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group, users := f.family(t)

	goal, err := f.goals.CreateGoal(ctx, users[0].ID, group.ID, "Emergency fund", dec("1000"), 0)
	if err != nil {
		t.Fatalf("CreateGoal failed: %v", err)
	}
	if _, err := f.goals.Contribute(ctx, users[0].ID, goal.ID, dec("400")); err != nil {
		t.Fatalf("Contribute failed: %v", err)
	}
	goal, err = f.goals.Contribute(ctx, users[0].ID, goal.ID, dec("700"))
	if err != nil {
		t.Fatalf("Contribute failed: %v", err)
	}

	if !goal.CurrentAmount.Equal(dec("1100")) {
		t.Errorf("current amount %s, want 1100", goal.CurrentAmount)
	}
	if goal.Status != models.GoalCompleted {
		t.Errorf("status %s, want completed", goal.Status)
	}
}
