// Package notify delivers reservation notifications off the request path.
// Every failure here is logged and dropped; a booking never fails because a
// notification did.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/tablebook/internal/logger"
	"github.com/example/tablebook/internal/reservation"
	"github.com/example/tablebook/internal/restaurant"
	"golang.org/x/sync/errgroup"
)

type Email struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
	HTML    string
	// ICS is an optional text/calendar attachment.
	ICS []byte
}

type Mailer interface {
	Send(ctx context.Context, e Email) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

const (
	EventCreated       = "reservation.created"
	EventStatusChanged = "reservation.status_changed"
)

// Event is the lifecycle record published to the event stream.
type Event struct {
	Type             string    `json:"type"`
	ReservationID    string    `json:"reservation_id"`
	ConfirmationCode string    `json:"confirmation_code"`
	RestaurantID     string    `json:"restaurant_id"`
	Date             string    `json:"date"`
	Time             string    `json:"time"`
	PartySize        string    `json:"party_size"`
	Status           string    `json:"status"`
	From             string    `json:"from,omitempty"`
	Actor            string    `json:"actor,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

func newEvent(typ string, r reservation.Reservation, at time.Time) Event {
	return Event{
		Type:             typ,
		ReservationID:    r.ID,
		ConfirmationCode: r.ConfirmationCode(),
		RestaurantID:     r.RestaurantID,
		Date:             r.DateString(),
		Time:             r.Time.String(),
		PartySize:        r.PartySize.String(),
		Status:           string(r.Status),
		OccurredAt:       at.UTC(),
	}
}

type job struct {
	rest  restaurant.Restaurant
	r     reservation.Reservation
	event Event
}

type Options struct {
	Mailer Mailer
	SMS    SMSSender
	Events Publisher
	// BaseURL is linked from messages so guests can manage the booking.
	BaseURL string
	Workers int
	Queue   int
	// Timeout bounds one job's deliveries.
	Timeout time.Duration
	Now     func() time.Time
}

// Dispatcher queues notifications and delivers them from worker goroutines.
type Dispatcher struct {
	opts  Options
	l     *logger.Logger
	queue chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(l *logger.Logger, opts Options) *Dispatcher {
	if opts.Workers < 1 {
		opts.Workers = 2
	}
	if opts.Queue < 1 {
		opts.Queue = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{opts: opts, l: l, queue: make(chan job, opts.Queue)}
}

// Start launches the workers. They exit once Close drains the queue.
func (d *Dispatcher) Start() {
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range d.queue {
				d.deliver(j)
			}
		}()
	}
}

// Close stops accepting work and waits for queued jobs.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) enqueue(j job) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.l.LogErrorf("type: notify, reservation: %s, error: dispatcher closed", j.r.ID)
		return
	}
	select {
	case d.queue <- j:
	default:
		d.l.LogErrorf("type: notify, reservation: %s, error: queue full, dropping %s", j.r.ID, j.event.Type)
	}
}

func (d *Dispatcher) ReservationCreated(rest restaurant.Restaurant, r reservation.Reservation) {
	d.enqueue(job{rest: rest, r: r, event: newEvent(EventCreated, r, d.opts.Now())})
}

func (d *Dispatcher) StatusChanged(rest restaurant.Restaurant, r reservation.Reservation, from reservation.Status, actor reservation.Actor) {
	ev := newEvent(EventStatusChanged, r, d.opts.Now())
	ev.From = string(from)
	ev.Actor = string(actor)
	d.enqueue(job{rest: rest, r: r, event: ev})
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
	defer cancel()

	guestFacing := j.event.Type == EventCreated || j.r.Status == reservation.StatusCancelled

	var g errgroup.Group
	if d.opts.Events != nil {
		g.Go(func() error {
			return d.report("event", j, d.opts.Events.Publish(ctx, j.event))
		})
	}
	if d.opts.Mailer != nil && guestFacing && j.r.Guest.Email != "" {
		g.Go(func() error {
			e, err := d.email(j)
			if err != nil {
				return d.report("email", j, err)
			}
			return d.report("email", j, d.opts.Mailer.Send(ctx, e))
		})
	}
	if d.opts.SMS != nil && guestFacing && j.r.Guest.SMSOptIn && j.r.Guest.Phone != "" {
		g.Go(func() error {
			return d.report("sms", j, d.opts.SMS.SendSMS(ctx, j.r.Guest.Phone, smsBody(j)))
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) report(channel string, j job, err error) error {
	if err != nil {
		d.l.LogErrorf("type: notify, channel: %s, event: %s, reservation: %s, error: %v", channel, j.event.Type, j.r.ID, err)
	}
	return err
}

func (d *Dispatcher) manageURL(r reservation.Reservation) string {
	if d.opts.BaseURL == "" {
		return ""
	}
	return strings.TrimRight(d.opts.BaseURL, "/") + "/api/reservations/" + r.ConfirmationCode()
}

func (d *Dispatcher) email(j job) (Email, error) {
	r, rest := j.r, j.rest
	when := fmt.Sprintf("%s at %s", r.StartsAt().Format("Monday, January 2"), r.Time)
	e := Email{ToName: r.Guest.Name, ToEmail: r.Guest.Email}

	if r.Status == reservation.StatusCancelled {
		e.Subject = fmt.Sprintf("Reservation cancelled: %s", rest.Name)
		e.Text = fmt.Sprintf("Your reservation for %s at %s on %s (confirmation %s) has been cancelled.",
			r.PartySize, rest.Name, when, r.ConfirmationCode())
		e.HTML = "<p>" + e.Text + "</p>"
		return e, nil
	}

	e.Subject = fmt.Sprintf("Reservation confirmed: %s, %s", rest.Name, when)
	e.Text = fmt.Sprintf("Table for %s at %s on %s.\nConfirmation code: %s\nStatus: %s",
		r.PartySize, rest.Name, when, r.ConfirmationCode(), r.Status)
	if u := d.manageURL(r); u != "" {
		e.Text += "\nManage your booking: " + u
	}
	e.HTML = "<p>" + strings.ReplaceAll(e.Text, "\n", "<br>") + "</p>"

	ics, err := Invite(rest, r, d.opts.Now())
	if err != nil {
		return Email{}, err
	}
	e.ICS = ics
	return e, nil
}

func smsBody(j job) string {
	r := j.r
	if r.Status == reservation.StatusCancelled {
		return fmt.Sprintf("%s: your reservation %s on %s at %s was cancelled.", j.rest.Name, r.ConfirmationCode(), r.DateString(), r.Time)
	}
	return fmt.Sprintf("%s: table for %s on %s at %s. Code %s.", j.rest.Name, r.PartySize, r.DateString(), r.Time, r.ConfirmationCode())
}
