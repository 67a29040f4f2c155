package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/tablebook/internal/availability"
	"github.com/example/tablebook/internal/calendar"
	"github.com/example/tablebook/internal/inventory"
	"github.com/example/tablebook/internal/ledger"
	"github.com/example/tablebook/internal/ledger/memory"
	"github.com/example/tablebook/internal/reservation"
	"github.com/example/tablebook/internal/restaurant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Monday 2 June 2025.
var today = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) ReservationCreated(rest restaurant.Restaurant, r reservation.Reservation) {
	m.Called(rest.ID, r.ID)
}

func (m *MockNotifier) StatusChanged(rest restaurant.Restaurant, r reservation.Reservation, from reservation.Status, actor reservation.Actor) {
	m.Called(rest.ID, r.ID, from, r.Status, actor)
}

func bistro() restaurant.Restaurant {
	hours := calendar.OperatingHours{}
	for d := time.Monday; d <= time.Saturday; d++ {
		hours = append(hours, calendar.Rule{Weekday: d, Open: calendar.MustClock("11:00"), Close: calendar.MustClock("22:00")})
	}
	hours = append(hours, calendar.Rule{Weekday: time.Friday, Open: calendar.MustClock("22:30"), Close: calendar.MustClock("02:00")})
	settings := availability.DefaultSettings()
	// a half-hour grid keeps every :00 and :30 bookable
	settings.SlotDurationMinutes = 30
	return restaurant.Restaurant{
		ID:       "bistro",
		Name:     "Bistro",
		Timezone: "UTC",
		Hours:    hours,
		Settings: settings,
		Tables: []inventory.Table{
			{ID: "t1", Capacity: 4, Active: true},
			{ID: "t2", Capacity: 4, Active: true},
			{ID: "t3", Capacity: 6, Active: true},
			{ID: "t4", Capacity: 2, Active: true},
			{ID: "t5", Capacity: 8, Active: false},
		},
	}
}

type fixture struct {
	svc    *Service
	ledger *memory.Ledger
	reg    *restaurant.Registry
	clock  *time.Time
}

func newFixture(t *testing.T, rest restaurant.Restaurant, now time.Time) *fixture {
	t.Helper()
	f := &fixture{ledger: memory.New(), reg: restaurant.NewRegistry(rest), clock: &now}
	f.svc = NewService(Deps{
		Directory: f.reg,
		Ledger:    f.ledger,
		Now:       func() time.Time { return *f.clock },
	})
	return f
}

func (f *fixture) set(now time.Time) { *f.clock = now }

func request(date, at string, party int) CreateRequest {
	return CreateRequest{
		RestaurantID: "bistro",
		Date:         date,
		Time:         at,
		PartySize:    reservation.Party(party),
		Guest:        reservation.Guest{Name: "Ada Lovelace", Email: "ada@example.com"},
	}
}

func mustKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e, "got %v", err)
	require.Equal(t, kind, e.Kind, e.Message)
	return e
}

func TestCreateReservation(t *testing.T) {
	f := newFixture(t, bistro(), today.Add(9*time.Hour))
	notifier := &MockNotifier{}
	f.svc.notifier = notifier
	notifier.On("ReservationCreated", "bistro", mock.Anything).Return().Once()

	r, err := f.svc.CreateReservation(context.Background(), request("2025-06-03", "19:00", 4))
	require.NoError(t, err)

	assert.Equal(t, reservation.StatusConfirmed, r.Status)
	assert.Equal(t, "2025-06-03", r.DateString())
	assert.Equal(t, "19:00", r.Time.String())
	assert.Equal(t, 4, r.PartySize.Seats())
	assert.Len(t, r.ConfirmationCode(), 8)
	notifier.AssertExpectations(t)

	stored, err := f.svc.FindByCode(context.Background(), r.ConfirmationCode(), "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, r.ID, stored.ID)

	_, err = f.svc.FindByCode(context.Background(), r.ConfirmationCode(), "eve@example.com")
	mustKind(t, err, KindNotFound)
	_, err = f.svc.FindByCode(context.Background(), r.ConfirmationCode(), "")
	mustKind(t, err, KindNotFound)
}

func TestCreateReservationPendingConfig(t *testing.T) {
	f := newFixture(t, bistro(), today.Add(9*time.Hour))
	f.svc.initialStatus = reservation.StatusPending

	r, err := f.svc.CreateReservation(context.Background(), request("2025-06-03", "19:00", 2))
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusPending, r.Status)
}

func TestValidationOrder(t *testing.T) {
	ctx := context.Background()
	now := today.Add(18*time.Hour + 30*time.Minute)

	tests := []struct {
		name   string
		mutate func(*restaurant.Restaurant)
		req    CreateRequest
		want   Kind
	}{
		{
			name:   "disabled beats everything",
			mutate: func(r *restaurant.Restaurant) { r.Settings.OnlineReservationsEnabled = false; r.Settings.MaxPartySize = 2 },
			req:    request("2025-06-08", "03:00", 6),
			want:   KindNotAccepting,
		},
		{
			name: "closed day before hours",
			req:  request("2025-06-08", "03:00", 2), // Sunday
			want: KindClosedDay,
		},
		{
			name: "outside hours before cutoff",
			req:  request("2025-06-02", "10:30", 2),
			want: KindOutsideHours,
		},
		{
			name: "at close is outside",
			req:  request("2025-06-03", "22:00", 2),
			want: KindOutsideHours,
		},
		{
			name:   "cutoff before advance window",
			mutate: func(r *restaurant.Restaurant) { r.Settings.AdvanceBookingDays = 0; r.Settings.MaxPartySize = 2 },
			req:    request("2025-06-02", "19:30", 6),
			want:   KindWithinCutoff,
		},
		{
			name: "already passed today",
			req:  request("2025-06-02", "12:00", 2),
			want: KindWithinCutoff,
		},
		{
			name:   "advance window before party size",
			mutate: func(r *restaurant.Restaurant) { r.Settings.MaxPartySize = 2 },
			req:    request("2025-07-03", "19:00", 6),
			want:   KindOutsideWindow,
		},
		{
			name: "past date",
			req:  request("2025-05-27", "19:00", 2),
			want: KindOutsideWindow,
		},
		{
			name:   "party size limit",
			mutate: func(r *restaurant.Restaurant) { r.Settings.MaxPartySize = 4 },
			req:    request("2025-06-03", "19:00", 6),
			want:   KindPartySize,
		},
		{
			name: "no eligible table",
			req:  request("2025-06-03", "19:00", 7),
			want: KindNoAvailability,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rest := bistro()
			if tt.mutate != nil {
				tt.mutate(&rest)
			}
			f := newFixture(t, rest, now)
			_, err := f.svc.CreateReservation(ctx, tt.req)
			mustKind(t, err, tt.want)

			date, err := calendar.ParseDate(tt.req.Date, time.UTC)
			require.NoError(t, err)
			rs, err := f.ledger.ListDay(ctx, "bistro", date)
			require.NoError(t, err)
			assert.Empty(t, rs, "refused booking must not be stored")
		})
	}
}

func TestSameDayCutoffScenario(t *testing.T) {
	f := newFixture(t, bistro(), today.Add(18*time.Hour+30*time.Minute))
	ctx := context.Background()

	_, err := f.svc.CreateReservation(ctx, request("2025-06-02", "19:30", 2))
	mustKind(t, err, KindWithinCutoff)

	_, err = f.svc.CreateReservation(ctx, request("2025-06-02", "21:00", 2))
	assert.NoError(t, err)

	_, err = f.svc.CreateReservation(ctx, request("2025-06-02", "20:30", 2))
	assert.NoError(t, err, "exactly the cutoff is allowed")
}

func TestOffGridTimesAreRefused(t *testing.T) {
	rest := bistro()
	rest.Tables = rest.Tables[:1]
	rest.Settings.SlotDurationMinutes = 90
	f := newFixture(t, rest, today.Add(9*time.Hour))
	ctx := context.Background()

	_, err := f.svc.CreateReservation(ctx, request("2025-06-03", "18:30", 2))
	require.NoError(t, err)

	// 18:35 would otherwise see the single table free
	for _, at := range []string{"18:35", "19:00", "21:00"} {
		_, err = f.svc.CreateReservation(ctx, request("2025-06-03", at, 2))
		e := mustKind(t, err, KindOutsideHours)
		assert.Contains(t, e.Message, "every 90 minutes", at)
	}

	rs, err := f.ledger.ListDay(ctx, "bistro", time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, rs, 1)

	rest.Settings.BufferMinutes = 15
	f = newFixture(t, rest, today.Add(9*time.Hour))
	_, err = f.svc.CreateReservation(ctx, request("2025-06-03", "12:45", 2))
	assert.NoError(t, err, "the buffer widens the step")
	_, err = f.svc.CreateReservation(ctx, request("2025-06-03", "12:30", 2))
	mustKind(t, err, KindOutsideHours)
}

func TestAdvanceWindowBoundary(t *testing.T) {
	f := newFixture(t, bistro(), today.Add(9*time.Hour))
	ctx := context.Background()

	_, err := f.svc.CreateReservation(ctx, request("2025-07-02", "19:00", 2))
	assert.NoError(t, err, "30 days ahead")

	_, err = f.svc.CreateReservation(ctx, request("2025-07-03", "19:00", 2))
	mustKind(t, err, KindOutsideWindow)
}

func TestOpenEndedParty(t *testing.T) {
	rest := bistro()
	rest.Tables = append(rest.Tables, inventory.Table{ID: "banquet", Capacity: 24, Active: true})
	f := newFixture(t, rest, today.Add(9*time.Hour))

	req := request("2025-06-03", "19:00", 0)
	req.PartySize = reservation.PartyOpenEnded()
	r, err := f.svc.CreateReservation(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "20+", r.PartySize.String())

	_, err = f.svc.CreateReservation(context.Background(), req)
	mustKind(t, err, KindNoAvailability)
}

func TestStructuralInput(t *testing.T) {
	f := newFixture(t, bistro(), today.Add(9*time.Hour))

	req := request("06/03/2025", "7pm", 0)
	req.Guest = reservation.Guest{}
	req.Occasion = "wake"
	_, err := f.svc.CreateReservation(context.Background(), req)
	require.Error(t, err)

	var ie *InputError
	require.ErrorAs(t, err, &ie)
	for _, field := range []string{"date", "time", "party_size", "guest.name", "guest.email", "occasion"} {
		assert.Contains(t, ie.Fields, field)
	}
	assert.False(t, IsKind(err, KindNoAvailability))

	_, err = f.svc.CreateReservation(context.Background(), CreateRequest{RestaurantID: "nowhere"})
	mustKind(t, err, KindNotFound)
}

func TestConfigurationError(t *testing.T) {
	rest := bistro()
	rest.Settings.SlotDurationMinutes = 0
	f := newFixture(t, rest, today.Add(9*time.Hour))

	_, err := f.svc.Availability(context.Background(), "bistro", "2025-06-03", reservation.Party(2))
	e := mustKind(t, err, KindConfiguration)
	assert.ErrorIs(t, e, availability.ErrConfiguration)
}

func TestNoAvailabilitySuggestsNextSlot(t *testing.T) {
	f := newFixture(t, bistro(), today.Add(9*time.Hour))
	ctx := context.Background()

	// three tables seat a party of four
	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateReservation(ctx, request("2025-06-03", "18:30", 4))
		require.NoError(t, err)
	}

	slots, err := f.svc.Availability(ctx, "bistro", "2025-06-03", reservation.Party(4))
	require.NoError(t, err)
	for _, s := range slots {
		if s.Time.String() == "18:30" {
			assert.Zero(t, s.AvailableTables)
			assert.Equal(t, availability.Unavailable, s.Status)
		} else {
			assert.Equal(t, 3, s.AvailableTables)
		}
	}

	_, err = f.svc.CreateReservation(ctx, request("2025-06-03", "18:30", 4))
	e := mustKind(t, err, KindNoAvailability)
	require.NotNil(t, e.SuggestedTime)
	assert.Equal(t, "19:00", e.SuggestedTime.String())
	assert.ErrorIs(t, err, ledger.ErrNoCapacity)

	// a party of two still has the two-top
	_, err = f.svc.CreateReservation(ctx, request("2025-06-03", "18:30", 2))
	assert.NoError(t, err)
}

func TestSuggestionRespectsCutoff(t *testing.T) {
	rest := bistro()
	rest.Tables = rest.Tables[:1]
	rest.Settings.SlotDurationMinutes = 90
	ctx := context.Background()

	t.Run("next slot", func(t *testing.T) {
		f := newFixture(t, rest, today.Add(9*time.Hour))
		_, err := f.svc.CreateReservation(ctx, request("2025-06-02", "12:30", 2))
		require.NoError(t, err)

		f.set(today.Add(10 * time.Hour))
		_, err = f.svc.CreateReservation(ctx, request("2025-06-02", "12:30", 2))
		e := mustKind(t, err, KindNoAvailability)
		require.NotNil(t, e.SuggestedTime)
		assert.Equal(t, "14:00", e.SuggestedTime.String())
	})

	t.Run("earlier slot inside cutoff is not offered", func(t *testing.T) {
		f := newFixture(t, rest, today.Add(9*time.Hour))
		for _, at := range []string{"12:30", "14:00", "15:30", "17:00", "18:30", "20:00"} {
			_, err := f.svc.CreateReservation(ctx, request("2025-06-02", at, 2))
			require.NoError(t, err, at)
		}

		f.set(today.Add(10 * time.Hour))
		_, err := f.svc.CreateReservation(ctx, request("2025-06-02", "12:30", 2))
		e := mustKind(t, err, KindNoAvailability)
		assert.Nil(t, e.SuggestedTime, "11:00 is free but already inside the cutoff")
	})
}

func TestCancelledReservationFreesSlot(t *testing.T) {
	rest := bistro()
	rest.Tables = rest.Tables[:1]
	f := newFixture(t, rest, today.Add(9*time.Hour))
	ctx := context.Background()

	r, err := f.svc.CreateReservation(ctx, request("2025-06-03", "18:30", 2))
	require.NoError(t, err)
	_, err = f.svc.CreateReservation(ctx, request("2025-06-03", "18:30", 2))
	mustKind(t, err, KindNoAvailability)

	_, err = f.svc.Cancel(ctx, r.ID, reservation.ActorDiner)
	require.NoError(t, err)

	slots, err := f.svc.Availability(ctx, "bistro", "2025-06-03", reservation.Party(2))
	require.NoError(t, err)
	assert.Equal(t, 1, slotAt(t, slots, "18:30").AvailableTables)

	_, err = f.svc.CreateReservation(ctx, request("2025-06-03", "18:30", 2))
	assert.NoError(t, err)
}

func TestConcurrentBookingsForLastTables(t *testing.T) {
	const n, k = 3, 7
	f := newFixture(t, bistro(), today.Add(9*time.Hour))
	ctx := context.Background()

	start := make(chan struct{})
	errs := make([]error, n+k)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := request("2025-06-03", "19:00", 4)
			req.Guest.Email = fmt.Sprintf("guest%d@example.com", i)
			<-start
			_, errs[i] = f.svc.CreateReservation(ctx, req)
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, full int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.True(t, IsKind(err, KindNoAvailability), "unexpected %v", err)
		full++
	}
	assert.Equal(t, n, ok)
	assert.Equal(t, k, full)
}

func TestTransitions(t *testing.T) {
	f := newFixture(t, bistro(), today.Add(9*time.Hour))
	ctx := context.Background()
	notifier := &MockNotifier{}
	f.svc.notifier = notifier
	notifier.On("ReservationCreated", "bistro", mock.Anything).Return()

	r, err := f.svc.CreateReservation(ctx, request("2025-06-02", "19:00", 2))
	require.NoError(t, err)

	notifier.On("StatusChanged", "bistro", r.ID, reservation.StatusConfirmed, reservation.StatusSeated, reservation.ActorOwner).Return().Once()
	notifier.On("StatusChanged", "bistro", r.ID, reservation.StatusSeated, reservation.StatusCompleted, reservation.ActorOwner).Return().Once()

	_, err = f.svc.Transition(ctx, r.ID, reservation.StatusCompleted, reservation.ActorOwner)
	mustKind(t, err, KindInvalidTransition)

	_, err = f.svc.Transition(ctx, r.ID, reservation.StatusSeated, reservation.ActorDiner)
	mustKind(t, err, KindInvalidTransition)

	got, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusConfirmed, got.Status, "refused transitions leave state alone")

	f.set(today.Add(19 * time.Hour))
	seated, err := f.svc.Transition(ctx, r.ID, reservation.StatusSeated, reservation.ActorOwner)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusSeated, seated.Status)

	done, err := f.svc.Transition(ctx, r.ID, reservation.StatusCompleted, reservation.ActorOwner)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCompleted, done.Status)

	_, err = f.svc.Cancel(ctx, r.ID, reservation.ActorOwner)
	mustKind(t, err, KindInvalidTransition)
	notifier.AssertExpectations(t)

	_, err = f.svc.Transition(ctx, "missing", reservation.StatusSeated, reservation.ActorOwner)
	mustKind(t, err, KindNotFound)
}

func TestCancelWithinCutoff(t *testing.T) {
	f := newFixture(t, bistro(), today.Add(9*time.Hour))
	ctx := context.Background()

	r, err := f.svc.CreateReservation(ctx, request("2025-06-02", "19:30", 2))
	require.NoError(t, err)

	f.set(today.Add(18*time.Hour + 30*time.Minute))
	_, err = f.svc.Cancel(ctx, r.ID, reservation.ActorDiner)
	mustKind(t, err, KindWithinCutoff)

	got, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusConfirmed, got.Status)

	cancelled, err := f.svc.Cancel(ctx, r.ID, reservation.ActorOwner)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCancelled, cancelled.Status)
}

func TestModify(t *testing.T) {
	ctx := context.Background()

	t.Run("moves the booking", func(t *testing.T) {
		f := newFixture(t, bistro(), today.Add(9*time.Hour))
		old, err := f.svc.CreateReservation(ctx, request("2025-06-03", "19:00", 2))
		require.NoError(t, err)

		next, err := f.svc.Modify(ctx, old.ID, reservation.ActorDiner, ModifyRequest{Date: "2025-06-04", PartySize: reservation.Party(4)})
		require.NoError(t, err)
		assert.NotEqual(t, old.ID, next.ID)
		assert.Equal(t, "2025-06-04", next.DateString())
		assert.Equal(t, "19:00", next.Time.String())
		assert.Equal(t, 4, next.PartySize.Seats())
		assert.Equal(t, old.Guest, next.Guest)

		prev, err := f.svc.Get(ctx, old.ID)
		require.NoError(t, err)
		assert.Equal(t, reservation.StatusCancelled, prev.Status)
	})

	t.Run("full target keeps the original", func(t *testing.T) {
		rest := bistro()
		rest.Tables = rest.Tables[:1]
		f := newFixture(t, rest, today.Add(9*time.Hour))
		old, err := f.svc.CreateReservation(ctx, request("2025-06-03", "19:00", 2))
		require.NoError(t, err)
		_, err = f.svc.CreateReservation(ctx, request("2025-06-03", "20:30", 2))
		require.NoError(t, err)

		_, err = f.svc.Modify(ctx, old.ID, reservation.ActorDiner, ModifyRequest{Time: "20:30"})
		mustKind(t, err, KindNoAvailability)

		prev, err := f.svc.Get(ctx, old.ID)
		require.NoError(t, err)
		assert.Equal(t, reservation.StatusConfirmed, prev.Status)
	})

	t.Run("diner inside cutoff is refused", func(t *testing.T) {
		f := newFixture(t, bistro(), today.Add(9*time.Hour))
		old, err := f.svc.CreateReservation(ctx, request("2025-06-02", "19:00", 2))
		require.NoError(t, err)

		f.set(today.Add(18 * time.Hour))
		_, err = f.svc.Modify(ctx, old.ID, reservation.ActorDiner, ModifyRequest{Date: "2025-06-05"})
		mustKind(t, err, KindWithinCutoff)

		_, err = f.svc.Modify(ctx, old.ID, reservation.ActorOwner, ModifyRequest{Date: "2025-06-05"})
		assert.NoError(t, err)
	})

	t.Run("new slot is validated", func(t *testing.T) {
		f := newFixture(t, bistro(), today.Add(9*time.Hour))
		old, err := f.svc.CreateReservation(ctx, request("2025-06-03", "19:00", 2))
		require.NoError(t, err)

		_, err = f.svc.Modify(ctx, old.ID, reservation.ActorDiner, ModifyRequest{Date: "2025-06-08"})
		mustKind(t, err, KindClosedDay)
	})
}

func TestMidnightRolloverBooking(t *testing.T) {
	f := newFixture(t, bistro(), today.Add(9*time.Hour))
	ctx := context.Background()

	r, err := f.svc.CreateReservation(ctx, request("2025-06-06", "00:30", 2))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 7, 0, 30, 0, 0, time.UTC), r.StartsAt())

	_, err = f.svc.CreateReservation(ctx, request("2025-06-06", "02:00", 2))
	mustKind(t, err, KindOutsideHours)

	slots, err := f.svc.Availability(ctx, "bistro", "2025-06-06", reservation.Party(2))
	require.NoError(t, err)
	last := slots[len(slots)-1]
	assert.Equal(t, "01:30", last.Time.String())
}

func TestAutoConfirm(t *testing.T) {
	f := newFixture(t, bistro(), today.Add(9*time.Hour))
	f.svc.initialStatus = reservation.StatusPending
	ctx := context.Background()

	old, err := f.svc.CreateReservation(ctx, request("2025-06-03", "19:00", 2))
	require.NoError(t, err)
	f.set(today.Add(9*time.Hour + 10*time.Minute))
	fresh, err := f.svc.CreateReservation(ctx, request("2025-06-03", "20:30", 2))
	require.NoError(t, err)

	n, err := f.svc.AutoConfirm(ctx, 5*time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := f.svc.Get(ctx, old.ID)
	assert.Equal(t, reservation.StatusConfirmed, got.Status)
	got, _ = f.svc.Get(ctx, fresh.ID)
	assert.Equal(t, reservation.StatusPending, got.Status)
}

func TestRestaurantTimezone(t *testing.T) {
	rest := bistro()
	rest.Timezone = "America/New_York"
	// 14:30 UTC is 10:30 in New York
	f := newFixture(t, rest, time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC))

	_, err := f.svc.CreateReservation(context.Background(), request("2025-06-02", "12:00", 2))
	mustKind(t, err, KindWithinCutoff)

	r, err := f.svc.CreateReservation(context.Background(), request("2025-06-02", "13:00", 2))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC), r.StartsAt().UTC())
}

func TestSameDayCutoffAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	rest := bistro()
	rest.Timezone = "America/New_York"
	rest.Hours = append(rest.Hours, calendar.Rule{Weekday: time.Sunday, Open: calendar.MustClock("11:00"), Close: calendar.MustClock("22:00")})

	// both dates are Sundays on which New York changes clocks
	for _, day := range []string{"2026-03-08", "2026-11-01"} {
		t.Run(day, func(t *testing.T) {
			d, err := time.ParseInLocation(time.DateOnly, day, ny)
			require.NoError(t, err)
			f := newFixture(t, rest, time.Date(d.Year(), d.Month(), d.Day(), 17, 30, 0, 0, ny))
			ctx := context.Background()

			_, err = f.svc.CreateReservation(ctx, request(day, "19:00", 2))
			mustKind(t, err, KindWithinCutoff)

			r, err := f.svc.CreateReservation(ctx, request(day, "19:30", 2))
			require.NoError(t, err, "exactly the cutoff is allowed")
			assert.Equal(t, "19:30", r.StartsAt().In(ny).Format("15:04"))
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(KindNoAvailability, ledger.ErrNoCapacity, "full"))
	k, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindNoAvailability, k)
	assert.True(t, errors.Is(err, ledger.ErrNoCapacity))
	assert.Equal(t, "no_availability: full", errors.Unwrap(err).Error())

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)

	ie := &InputError{Fields: map[string]string{"time": "bad", "date": "bad"}}
	assert.Equal(t, "invalid input: date: bad; time: bad", ie.Error())
	assert.True(t, IsInputError(fmt.Errorf("x: %w", ie)))
}
