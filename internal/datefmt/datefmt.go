// Package datefmt renders message timestamps for the chat room.
package datefmt

import (
	"fmt"
	"time"
)

// FormatChatDate renders t relative to now: "15:04" for today, "Yesterday 15:04"
// for the previous calendar day and "2 Jan 2006 15:04" otherwise. t is shown in
// now's location.
func FormatChatDate(t, now time.Time) string {
	t = t.In(now.Location())
	diff := now.Sub(t)
	clock := fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())

	if diff < 24*time.Hour && sameDay(t, now) {
		return clock
	}
	if diff < 48*time.Hour && sameDay(t, now.AddDate(0, 0, -1)) {
		return "Yesterday " + clock
	}
	return fmt.Sprintf("%d %s %d %s", t.Day(), t.Month().String()[:3], t.Year(), clock)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
