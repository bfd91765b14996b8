package messages

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const unreachableNote = "\n\n⚠️ Member could not be reached. Please follow up manually."

func reachNote(delivered bool) string {
	if delivered {
		return ""
	}
	return unreachableNote
}

func AdminReminderInfo(member string, daysLeft int, due string, delivered bool) string {
	return fmt.Sprintf("⏰ <b>Upcoming renewal</b>\n%s is due in %d day(s) (%s).", member, daysLeft, due) + reachNote(delivered)
}

func AdminExpiredPrompt(member string, daysSince int, offerGrace, delivered bool) string {
	text := fmt.Sprintf("⌛ <b>Membership expired</b>\n%s expired %d day(s) ago.", member, daysSince)
	if offerGrace {
		text += "\nGrant a 2-day grace period or remove the member?"
	} else {
		text += "\nRemove the member or keep them without access changes?"
	}
	return text + reachNote(delivered)
}

func AdminGraceEndedPrompt(member, due string) string {
	return fmt.Sprintf("🕊 <b>Grace period over</b>\n%s (due %s) has not renewed. Kick or keep?", member, due)
}

func AdminPaymentReview(member, plan, method string, price int, renewal bool) string {
	kind := "New membership"
	if renewal {
		kind = "Renewal"
	}
	return fmt.Sprintf("💰 <b>%s payment</b>\nMember: %s\nPlan: %s (%d)\nMethod: %s", kind, member, Escape(plan), price, Escape(method))
}

func AdminOldMemberReview(member string) string {
	return fmt.Sprintf("🔎 <b>Old member verification</b>\n%s says they were a member before. Verify?", member)
}

func AdminWaitingReminder(member, status string, waited time.Duration) string {
	return fmt.Sprintf("⏳ <b>Still waiting</b>\n%s has been waiting %d min for a decision (%s).", member, int(waited.Minutes()), Escape(status))
}

func AdminDecisionDone(action, member string) string {
	return fmt.Sprintf("✅ %s: %s", action, member)
}

func AdminDecisionStale() string {
	return "ℹ️ Already handled or no longer applicable."
}

func AdminKickFailed(member string, err error) string {
	return fmt.Sprintf("⚠️ Could not remove %s from the group: %s\nPlease remove them manually.", member, Escape(err.Error()))
}

func AdminInviteFailed(member string) string {
	return fmt.Sprintf("⚠️ Could not create an invite link for %s. Please send one manually.", member)
}

func AdminMembersSummary(counts map[string]int, total int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "👥 <b>Members: %d</b>", total)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n• %s: %d", Escape(k), counts[k])
	}
	return b.String()
}

func AdminPendingList(lines []string) string {
	if len(lines) == 0 {
		return "📭 No requests waiting."
	}
	return "📬 <b>Waiting requests</b>\n" + strings.Join(lines, "\n")
}

func AdminCheckDone(reminded, expired, graceEnded, lapsed, failed int) string {
	return fmt.Sprintf("🔁 Payment check done: %d reminded, %d expired, %d grace ended, %d lapsed, %d failed.", reminded, expired, graceEnded, lapsed, failed)
}

type BoardLine struct {
	Name  string
	Score int64
}

func Leaderboard(title string, lines []BoardLine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 <b>%s</b>", Escape(title))
	if len(lines) == 0 {
		b.WriteString("\nNo activity recorded.")
		return b.String()
	}
	medals := []string{"🥇", "🥈", "🥉"}
	for i, l := range lines {
		prefix := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			prefix = medals[i]
		}
		fmt.Fprintf(&b, "\n%s %s — %d", prefix, Escape(l.Name), l.Score)
	}
	return b.String()
}

func ContentPost(prompt string) string {
	return "📝 <b>Today's challenge</b>\n\n" + Escape(prompt)
}
