package services

import (
	"context"
	"testing"
	"time"

	"github.com/playforge/esports-platform/models"
)

func TestGroupLabel(t *testing.T) {
	tests := []struct {
		index, groupSize int
		expected         string
	}{
		{0, 20, "G1"},
		{19, 20, "G1"},
		{20, 20, "G2"},
		{39, 20, "G2"},
		{40, 20, "G3"},
		{0, 5, "G1"},
		{5, 5, "G2"},
	}
	for _, tt := range tests {
		if got := GroupLabel(tt.index, tt.groupSize); got != tt.expected {
			t.Errorf("GroupLabel(%d, %d) = %s, want %s", tt.index, tt.groupSize, got, tt.expected)
		}
	}
}

func (e *testEnv) groupSizes(t *testing.T, tournamentID int) map[string]int {
	t.Helper()
	active, err := e.registrations.ListActiveByTournament(context.Background(), tournamentID)
	if err != nil {
		t.Fatal(err)
	}
	sizes := make(map[string]int)
	for _, reg := range active {
		if reg.Group == nil {
			t.Fatalf("registration %d left without group", reg.ID)
		}
		sizes[*reg.Group]++
	}
	return sizes
}

func TestGroupRecomputePartition(t *testing.T) {
	env := newTestEnv(time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC))
	tournament := env.openTournament(64, models.GroupingConfig{Enabled: true, GroupSize: 20})

	// 45 заявок при размере группы 20 дают разбиение 20/20/5.
	for i := 1; i <= 45; i++ {
		env.mustSubmit(t, tournament.ID, i)
	}

	sizes := env.groupSizes(t, tournament.ID)
	want := map[string]int{"G1": 20, "G2": 20, "G3": 5}
	for label, size := range want {
		if sizes[label] != size {
			t.Errorf("group %s has %d teams, want %d", label, sizes[label], size)
		}
	}
	if len(sizes) != 3 {
		t.Errorf("got %d groups, want 3", len(sizes))
	}
}

func TestGroupRecomputeIdempotent(t *testing.T) {
	env := newTestEnv(time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC))
	tournament := env.openTournament(32, models.GroupingConfig{Enabled: true, GroupSize: 5})
	for i := 1; i <= 12; i++ {
		env.mustSubmit(t, tournament.ID, i)
	}

	before := env.registrations.groupWrites
	updated, totalGroups, err := env.groups.Recompute(context.Background(), tournament.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated != 0 {
		t.Errorf("no-op recompute rewrote %d rows", updated)
	}
	if totalGroups != 3 {
		t.Errorf("totalGroups = %d, want 3", totalGroups)
	}
	if env.registrations.groupWrites != before {
		t.Errorf("no-op recompute issued %d extra writes", env.registrations.groupWrites-before)
	}
}

func TestGroupRecomputeCompactsAfterRejection(t *testing.T) {
	env := newTestEnv(time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC))
	tournament := env.openTournament(32, models.GroupingConfig{Enabled: true, GroupSize: 5})
	ctx := context.Background()

	regs := make([]*models.Registration, 0, 11)
	for i := 1; i <= 11; i++ {
		regs = append(regs, env.mustSubmit(t, tournament.ID, i))
	}

	// Отклонение заявки из первой группы подтягивает хвост: дыр не остаётся.
	if err := env.service.Reject(ctx, regs[2].ID, 99, "smurf account"); err != nil {
		t.Fatal(err)
	}

	sizes := env.groupSizes(t, tournament.ID)
	if sizes["G1"] != 5 || sizes["G2"] != 5 {
		t.Errorf("groups after rejection = %v, want G1=5 G2=5", sizes)
	}
	if len(sizes) != 2 {
		t.Errorf("got %d groups, want 2", len(sizes))
	}
}

func TestGroupPinSurvivesRecompute(t *testing.T) {
	env := newTestEnv(time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC))
	tournament := env.openTournament(32, models.GroupingConfig{Enabled: true, GroupSize: 5})
	ctx := context.Background()

	var pinned *models.Registration
	for i := 1; i <= 10; i++ {
		reg := env.mustSubmit(t, tournament.ID, i)
		if i == 1 {
			pinned = reg
		}
	}

	if err := env.groups.Pin(ctx, pinned.ID, "G2"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := env.groups.Recompute(ctx, tournament.ID); err != nil {
		t.Fatal(err)
	}

	got, _ := env.service.Get(ctx, pinned.ID)
	if got.Group == nil || *got.Group != "G2" || !got.GroupPinned {
		t.Errorf("pin lost after recompute: %+v", got)
	}

	// Снятие закрепления возвращает заявку автоматике.
	if err := env.groups.Unpin(ctx, pinned.ID); err != nil {
		t.Fatal(err)
	}
	if _, _, err := env.groups.Recompute(ctx, tournament.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = env.service.Get(ctx, pinned.ID)
	if got.Group == nil || *got.Group != "G1" || got.GroupPinned {
		t.Errorf("unpinned registration not reassigned: %+v", got)
	}
}

func TestGroupRecomputeDisabled(t *testing.T) {
	env := newTestEnv(time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC))
	tournament := env.openTournament(16, models.GroupingConfig{})
	env.mustSubmit(t, tournament.ID, 1)

	updated, totalGroups, err := env.groups.Recompute(context.Background(), tournament.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated != 0 || totalGroups != 0 {
		t.Errorf("recompute on disabled grouping: updated=%d groups=%d", updated, totalGroups)
	}

	reg, _ := env.registrations.ListActiveByTournament(context.Background(), tournament.ID)
	if reg[0].Group != nil {
		t.Errorf("group assigned with grouping disabled: %s", *reg[0].Group)
	}
}
