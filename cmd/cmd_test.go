package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/tablebook/internal/availability"
	"github.com/example/tablebook/internal/calendar"
	"github.com/example/tablebook/internal/config"
	"github.com/example/tablebook/internal/logger"
	"github.com/example/tablebook/internal/reservation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"18:30", "20:00"}, splitCSV(" 18:30, ,20:00,"))
	assert.Nil(t, splitCSV(""))
}

func TestFilterAndPrintSlots(t *testing.T) {
	slots := []availability.Slot{
		{Time: calendar.MustClock("18:30"), AvailableTables: 2, Status: availability.Available},
		{Time: calendar.MustClock("20:00"), AvailableTables: 1, Status: availability.Limited},
		{Time: calendar.MustClock("00:00") + 24*60, AvailableTables: 0, Status: availability.Unavailable},
	}
	only, err := parseTimes("20:00,00:00")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printSlots(&buf, filterSlots(slots, only)))
	out := buf.String()
	assert.Contains(t, out, "TIME")
	assert.Contains(t, out, "20:00")
	assert.Contains(t, out, "00:00")
	assert.NotContains(t, out, "18:30")

	_, err = parseTimes("25:00")
	assert.Error(t, err)

	buf.Reset()
	require.NoError(t, printSlots(&buf, nil))
	assert.Equal(t, "no slots\n", buf.String())
}

const seedJSON = `{
  "restaurants": [{
    "id": "bistro",
    "name": "Bistro",
    "owner_id": 1,
    "hours": [{"weekday": 2, "open": "11:00", "close": "22:00"}],
    "tables": [{"id": "t1", "capacity": 4, "active": true}]
  }],
  "owners": [{"id": 1, "email": "owner@example.com", "password": "secret"}]
}`

func TestOpenMemoryAppFromSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(seedJSON), 0o600))

	cfg := config.Config{Store: "postgres", DefaultTimezone: "UTC", InitialStatus: "confirmed"}
	a, err := openApp(context.Background(), cfg, storeFlags{store: "memory", seed: path}, logger.Discard())
	require.NoError(t, err)
	defer a.Close()

	rest, err := a.directory.Restaurant(context.Background(), "bistro")
	require.NoError(t, err)
	assert.Equal(t, "UTC", rest.Timezone)
	assert.Equal(t, availability.DefaultSlotDurationMinutes, rest.Settings.SlotDurationMinutes)

	id, _, err := a.owners.Credentials(context.Background(), "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	// 2026-07-07 is a Tuesday.
	slots, err := a.service(nil).Availability(context.Background(), "bistro", "2026-07-07", mustParty(t, "2"))
	require.NoError(t, err)
	assert.Len(t, slots, 7)
}

func TestOpenAppRejectsUnknownStore(t *testing.T) {
	_, err := openApp(context.Background(), config.Config{}, storeFlags{store: "sqlite"}, logger.Discard())
	assert.Error(t, err)
}

func mustParty(t *testing.T, s string) reservation.PartySize {
	t.Helper()
	p, err := reservation.ParsePartySize(s)
	require.NoError(t, err)
	return p
}
