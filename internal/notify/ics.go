package notify

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/example/tablebook/internal/reservation"
	"github.com/example/tablebook/internal/restaurant"
)

const icsStamp = "20060102T150405Z"

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\n", `\n`)

// Invite renders a single-event iCalendar document for the reservation.
// Lines end in CRLF.
func Invite(rest restaurant.Restaurant, r reservation.Reservation, now time.Time) ([]byte, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("invite: reservation has no id")
	}
	start := r.StartsAt().UTC()
	length := rest.Settings.SlotDuration()
	if length <= 0 {
		length = 90 * time.Minute
	}

	method, status := "REQUEST", "CONFIRMED"
	switch r.Status {
	case reservation.StatusPending:
		status = "TENTATIVE"
	case reservation.StatusCancelled:
		method, status = "CANCEL", "CANCELLED"
	}

	var b bytes.Buffer
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\r\n")
	}
	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:-//tablebook//reservations//EN")
	line("METHOD:%s", method)
	line("BEGIN:VEVENT")
	line("UID:%s@tablebook", r.ID)
	line("DTSTAMP:%s", now.UTC().Format(icsStamp))
	line("DTSTART:%s", start.Format(icsStamp))
	line("DTEND:%s", start.Add(length).Format(icsStamp))
	line("SUMMARY:%s", icsEscaper.Replace(fmt.Sprintf("Table for %s at %s", r.PartySize, rest.Name)))
	line("DESCRIPTION:%s", icsEscaper.Replace("Confirmation code "+r.ConfirmationCode()))
	if rest.Email != "" {
		line("ORGANIZER;CN=%s:mailto:%s", icsEscaper.Replace(rest.Name), rest.Email)
	}
	line("STATUS:%s", status)
	line("END:VEVENT")
	line("END:VCALENDAR")
	return b.Bytes(), nil
}
