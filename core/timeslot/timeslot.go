// Package timeslot decomposes instruction time ranges into 15-minute slots.
package timeslot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sldctools/backdown/core/model"
)

const minutesPerDay = 24 * 60

// ParseMinutes converts a clock string ("HH:MM", "HH:MM:SS", "H:MM") into
// minutes since midnight. The second return is false when the input does not
// parse as an on-the-clock time.
func ParseMinutes(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return 0, false
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, false
	}
	if h < 0 || h >= 24 || m < 0 || m >= 60 {
		return 0, false
	}
	return h*60 + m, true
}

// FormatMinutes renders minutes since midnight as "HH:MM".
func FormatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// Normalize rewrites a time string into canonical "HH:MM" so that "0:00",
// "00:00" and "00:00:00" compare equal. Unparseable input is returned
// trimmed but otherwise unchanged.
func Normalize(s string) string {
	if m, ok := ParseMinutes(s); ok {
		return FormatMinutes(m)
	}
	return strings.TrimSpace(s)
}

// Floor15 floors minutes since midnight to the previous 15-minute boundary.
func Floor15(m int) int { return (m / 15) * 15 }

// Slots generates the 15-minute slots covering [from, to). The start is
// floored to the previous 15-minute boundary; to is treated as next-day when
// it is earlier than the floored start. An unparseable bound yields an empty
// sequence, meaning the instruction has no data.
func Slots(from, to string) []model.Slot {
	start, ok := ParseMinutes(from)
	if !ok {
		return nil
	}
	end, ok := ParseMinutes(to)
	if !ok {
		return nil
	}

	startSlot := Floor15(start)
	if startSlot > end {
		end += minutesPerDay
	}

	var out []model.Slot
	for m := startSlot; m < end; m += 15 {
		out = append(out, model.Slot{
			From: FormatMinutes(m % minutesPerDay),
			To:   FormatMinutes((m + 15) % minutesPerDay),
		})
	}
	return out
}
