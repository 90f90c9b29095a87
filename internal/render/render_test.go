package render_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/rpgbot/internal/game/combat"
	"github.com/cory-johannsen/rpgbot/internal/game/duel"
	"github.com/cory-johannsen/rpgbot/internal/render"
)

func filled(bar string) int {
	return strings.Count(bar, "█")
}

func TestHealthBar_Bounds(t *testing.T) {
	assert.Equal(t, 0, filled(render.HealthBar(0, 100)))
	assert.Equal(t, render.HealthBarLength, filled(render.HealthBar(100, 100)))
	assert.Equal(t, 1, filled(render.HealthBar(1, 100)))
	assert.Equal(t, render.HealthBarLength-1, filled(render.HealthBar(99, 100)))
	assert.Equal(t, 3, filled(render.HealthBar(50, 100)))
}

func TestProperty_HealthBar_PartialHealthIsNeverEmptyOrFull(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxHealth := rapid.IntRange(2, 10_000).Draw(rt, "max")
		health := rapid.IntRange(1, maxHealth-1).Draw(rt, "health")
		bar := render.HealthBar(health, maxHealth)
		n := filled(bar)
		assert.GreaterOrEqual(rt, n, 1)
		assert.LessOrEqual(rt, n, render.HealthBarLength-1)
		assert.Equal(rt, render.HealthBarLength, n+strings.Count(bar, "░"))
	})
}

func view(name string, health int) combat.View {
	return combat.View{
		ID:         uuid.NewString(),
		Name:       name,
		Icon:       "🙂",
		Health:     health,
		MaxHealth:  100,
		Armor:      7,
		WeaponName: "Sword",
		WeaponIcon: "🗡",
	}
}

func TestTurn(t *testing.T) {
	p1, p2 := view("Alice", 100), view("Bob", 40)
	out := render.Turn(duel.TurnView{
		Number:   2,
		ActingID: p2.ID,
		P1:       p1,
		P2:       p2,
		Recent:   []string{"🗡 Alice attacked Bob for 60 damage."},
	})

	assert.True(t, strings.HasPrefix(out, "🙂 Bob's turn\n"))
	assert.Contains(t, out, "❤ ██████ 100")
	assert.Contains(t, out, "❤ ██░░░░ 40")
	assert.Contains(t, out, "🗡 Sword")
	assert.Contains(t, out, "🛡 7")
	assert.Contains(t, out, "Alice attacked Bob for 60 damage.")
}

func TestTurn_EmptyLogShowsPlaceholder(t *testing.T) {
	p1, p2 := view("Alice", 100), view("Bob", 100)
	out := render.Turn(duel.TurnView{ActingID: p1.ID, P1: p1, P2: p2})
	assert.True(t, strings.HasPrefix(out, "🙂 Alice's turn\n"))
	assert.Contains(t, out, "\n"+combat.EmptyLogLine+"\n")
}

func TestSummary(t *testing.T) {
	p1, p2 := view("Alice", 20), view("Bob", 0)
	out := render.Summary(duel.SummaryView{P1: p1, P2: p2, Winner: &p1, Turns: 5, Log: []string{"🏳 Bob surrendered."}})
	assert.True(t, strings.HasPrefix(out, "🏆 Alice won!\n"))
	assert.Contains(t, out, "Turns: 5")
	assert.Contains(t, out, "❤ ░░░░░░ 0")
	assert.Contains(t, out, "Bob surrendered.")

	tie := render.Summary(duel.SummaryView{P1: view("Alice", 0), P2: view("Bob", 0), Tie: true})
	assert.True(t, strings.HasPrefix(tie, "The battle was a tie..."))
}

func TestInvite(t *testing.T) {
	v := duel.InviteView{
		Challenger: duel.Participant{UserID: "a", Name: "Alice"},
		Target:     duel.Participant{UserID: "b", Name: "Bob"},
		Status:     duel.InvitePending,
	}
	assert.Contains(t, render.Invite(v), "Alice has challenged Bob to a duel!")
	assert.Contains(t, render.Invite(v), "fight or run")

	v.Status = duel.InviteRanAway
	assert.Contains(t, render.Invite(v), "Bob ran away.")

	v.Status = duel.InviteTimedOut
	assert.Contains(t, render.Invite(v), duel.NoticeInviteTimedOut)
}
