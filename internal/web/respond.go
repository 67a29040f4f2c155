package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/tablebook/internal/booking"
	"github.com/example/tablebook/internal/calendar"
	"github.com/example/tablebook/internal/reservation"
)

type errorBody struct {
	Error         string              `json:"error"`
	Message       string              `json:"message"`
	SuggestedTime *calendar.ClockTime `json:"suggested_time,omitempty"`
	Fields        map[string]string   `json:"fields,omitempty"`
}

const (
	codeInvalidInput = "invalid_input"
	codeUnauthorized = "unauthorized"
	codeForbidden    = "forbidden"
	codeInternal     = "internal"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(kind booking.Kind) int {
	switch kind {
	case booking.KindNoAvailability, booking.KindOutsideHours, booking.KindClosedDay,
		booking.KindWithinCutoff, booking.KindOutsideWindow,
		booking.KindInvalidTransition, booking.KindNotAccepting:
		return http.StatusConflict
	case booking.KindPartySize:
		return http.StatusBadRequest
	case booking.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var input *booking.InputError
	if errors.As(err, &input) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: codeInvalidInput, Message: input.Error(), Fields: input.Fields})
		return
	}

	var be *booking.Error
	if errors.As(err, &be) {
		status := statusFor(be.Kind)
		if status == http.StatusInternalServerError {
			s.l.LogErrorf("type: request, url: %s, error: %v", r.URL.Path, err)
		}
		writeJSON(w, status, errorBody{Error: string(be.Kind), Message: be.Message, SuggestedTime: be.SuggestedTime})
		return
	}

	s.l.LogErrorf("type: request, url: %s, error: %v", r.URL.Path, err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: codeInternal, Message: "internal error"})
}

func badRequest(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:   codeInvalidInput,
		Message: "invalid input: " + field + ": " + msg,
		Fields:  map[string]string{field: msg},
	})
}

type reservationResponse struct {
	ID               string                `json:"id"`
	ConfirmationCode string                `json:"confirmation_code"`
	RestaurantID     string                `json:"restaurant_id"`
	Date             string                `json:"date"`
	Time             calendar.ClockTime    `json:"time"`
	StartsAt         string                `json:"starts_at"`
	PartySize        reservation.PartySize `json:"party_size"`
	Status           reservation.Status    `json:"status"`
	Guest            reservation.Guest     `json:"guest"`
	Occasion         reservation.Occasion  `json:"occasion,omitempty"`
	SpecialRequests  string                `json:"special_requests,omitempty"`
}

func toResponse(r reservation.Reservation) reservationResponse {
	return reservationResponse{
		ID:               r.ID,
		ConfirmationCode: r.ConfirmationCode(),
		RestaurantID:     r.RestaurantID,
		Date:             r.DateString(),
		Time:             r.Time,
		StartsAt:         r.StartsAt().Format("2006-01-02T15:04:05Z07:00"),
		PartySize:        r.PartySize,
		Status:           r.Status,
		Guest:            r.Guest,
		Occasion:         r.Occasion,
		SpecialRequests:  r.SpecialRequests,
	}
}
