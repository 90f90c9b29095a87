// Package render formats duel views as plain text for chat-style clients.
package render

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/rpgbot/internal/game/combat"
	"github.com/cory-johannsen/rpgbot/internal/game/duel"
)

// HealthBarLength is the number of segments in a health bar.
const HealthBarLength = 6

const (
	filledSegment = "█"
	emptySegment  = "░"
)

// HealthBar draws health out of maxHealth as HealthBarLength segments.
//
// Postcondition: zero health draws no filled segments; full health draws all
// of them; anything in between draws at least one and at most
// HealthBarLength-1.
func HealthBar(health, maxHealth int) string {
	var filled int
	switch {
	case health <= 0 || maxHealth <= 0:
		filled = 0
	case health >= maxHealth:
		filled = HealthBarLength
	default:
		filled = int(float64(HealthBarLength) * float64(health) / float64(maxHealth))
		filled = min(max(filled, 1), HealthBarLength-1)
	}
	return strings.Repeat(filledSegment, filled) + strings.Repeat(emptySegment, HealthBarLength-filled)
}

// Turn formats the live turn display: a title naming the acting battler, a
// stats block per battler and the recent log lines.
func Turn(v duel.TurnView) string {
	var b strings.Builder
	acting := v.Acting()
	b.WriteString(fmt.Sprintf("%s %s's turn\n", acting.Icon, acting.Name))
	b.WriteString("\n")
	writeStats(&b, v.P1)
	b.WriteString("\n")
	writeStats(&b, v.P2)
	b.WriteString("\n")
	writeLines(&b, v.Recent)
	return b.String()
}

// Summary formats the final display: the winner or a tie, both battlers and
// the summary window of the log.
func Summary(v duel.SummaryView) string {
	var b strings.Builder
	switch {
	case v.Winner != nil:
		b.WriteString(fmt.Sprintf("🏆 %s won!\n", v.Winner.Name))
	default:
		b.WriteString("The battle was a tie...\n")
	}
	b.WriteString(fmt.Sprintf("Turns: %d\n", v.Turns))
	b.WriteString("\n")
	writeStats(&b, v.P1)
	b.WriteString("\n")
	writeStats(&b, v.P2)
	b.WriteString("\n")
	writeLines(&b, v.Log)
	return b.String()
}

// Invite formats an invitation and its current status.
func Invite(v duel.InviteView) string {
	var b strings.Builder
	b.WriteString("⚔ Duel Invitation\n")
	b.WriteString(fmt.Sprintf("%s has challenged %s to a duel!\n", v.Challenger.Name, v.Target.Name))
	switch v.Status {
	case duel.InvitePending:
		b.WriteString("Will you fight or run?\n")
	case duel.InviteAccepted:
		b.WriteString(fmt.Sprintf("%s accepted the challenge.\n", v.Target.Name))
	case duel.InviteRanAway:
		b.WriteString(fmt.Sprintf("%s ran away.\n", v.Target.Name))
	case duel.InviteTimedOut:
		b.WriteString(duel.NoticeInviteTimedOut + "\n")
	}
	return b.String()
}

func writeStats(b *strings.Builder, c combat.View) {
	name := c.Name
	if c.Icon != "" {
		name = c.Icon + " " + name
	}
	b.WriteString(name + "\n")
	b.WriteString(fmt.Sprintf("❤ %s %d\n", HealthBar(c.Health, c.MaxHealth), c.Health))
	b.WriteString(fmt.Sprintf("%s %s\n", c.WeaponIcon, c.WeaponName))
	b.WriteString(fmt.Sprintf("🛡 %d\n", c.Armor))
}

// writeLines writes lines, or the empty placeholder when there are none.
func writeLines(b *strings.Builder, lines []string) {
	if len(lines) == 0 {
		b.WriteString(combat.EmptyLogLine + "\n")
		return
	}
	for _, l := range lines {
		b.WriteString(l + "\n")
	}
}
