package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/example/tablebook/internal/auth"
	"github.com/example/tablebook/internal/availability"
	"github.com/example/tablebook/internal/booking"
	"github.com/example/tablebook/internal/reservation"
	"github.com/gorilla/mux"
)

const guestEmailHeader = "X-Guest-Email"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "body", "body must be JSON")
		return
	}
	id, err := s.Auth.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: codeUnauthorized, Message: "invalid email or password"})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Auth.SetSession(w, r, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"owner_id": id})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

type availabilityResponse struct {
	RestaurantID string              `json:"restaurant_id"`
	Date         string              `json:"date"`
	PartySize    string              `json:"party_size"`
	Slots        []availability.Slot `json:"slots"`
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := r.URL.Query()
	party, err := reservation.ParsePartySize(q.Get("party_size"))
	if err != nil {
		badRequest(w, "party_size", err.Error())
		return
	}
	date := q.Get("date")
	slots, err := s.Booking.Availability(r.Context(), id, date, party)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if slots == nil {
		slots = []availability.Slot{}
	}
	writeJSON(w, http.StatusOK, availabilityResponse{RestaurantID: id, Date: date, PartySize: party.String(), Slots: slots})
}

type createBody struct {
	Date            string                `json:"date"`
	Time            string                `json:"time"`
	PartySize       reservation.PartySize `json:"party_size"`
	Guest           reservation.Guest     `json:"guest"`
	SpecialRequests string                `json:"special_requests"`
	Occasion        reservation.Occasion  `json:"occasion"`
	DinerID         string                `json:"diner_id"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body createBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "body", err.Error())
		return
	}
	res, err := s.Booking.CreateReservation(r.Context(), booking.CreateRequest{
		RestaurantID:    mux.Vars(r)["id"],
		Date:            body.Date,
		Time:            body.Time,
		PartySize:       body.PartySize,
		Guest:           body.Guest,
		SpecialRequests: body.SpecialRequests,
		Occasion:        body.Occasion,
		DinerID:         body.DinerID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(res))
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	res, err := s.Booking.FindByCode(r.Context(), mux.Vars(r)["code"], r.URL.Query().Get("email"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

// actorFor decides who is acting on a reservation: the owner of its
// restaurant when a matching session is present, otherwise the guest named
// by the email header.
func (s *Server) actorFor(w http.ResponseWriter, r *http.Request, id string) (reservation.Actor, bool) {
	res, err := s.Booking.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return "", false
	}
	if oid, ok := auth.OwnerIDFromContext(r.Context()); ok {
		rest, err := s.Booking.Restaurant(r.Context(), res.RestaurantID)
		if err != nil {
			s.writeError(w, r, err)
			return "", false
		}
		if rest.OwnerID == oid {
			return reservation.ActorOwner, true
		}
	}

	email := strings.ToLower(strings.TrimSpace(r.Header.Get(guestEmailHeader)))
	if email == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: codeUnauthorized, Message: guestEmailHeader + " header or owner session required"})
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(email), []byte(strings.ToLower(res.Guest.Email))) != 1 {
		writeJSON(w, http.StatusNotFound, errorBody{Error: string(booking.KindNotFound), Message: "reservation " + id + " not found"})
		return "", false
	}
	return reservation.ActorDiner, true
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	actor, ok := s.actorFor(w, r, id)
	if !ok {
		return
	}
	res, err := s.Booking.Cancel(r.Context(), id, actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

type modifyBody struct {
	Date            string                `json:"date"`
	Time            string                `json:"time"`
	PartySize       reservation.PartySize `json:"party_size"`
	SpecialRequests *string               `json:"special_requests"`
	Occasion        *reservation.Occasion `json:"occasion"`
}

func (s *Server) handleModify(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body modifyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "body", err.Error())
		return
	}
	actor, ok := s.actorFor(w, r, id)
	if !ok {
		return
	}
	res, err := s.Booking.Modify(r.Context(), id, actor, booking.ModifyRequest{
		Date:            body.Date,
		Time:            body.Time,
		PartySize:       body.PartySize,
		SpecialRequests: body.SpecialRequests,
		Occasion:        body.Occasion,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

// ownsRestaurant writes 403 unless the session owner runs the restaurant.
func (s *Server) ownsRestaurant(w http.ResponseWriter, r *http.Request, restaurantID string) bool {
	rest, err := s.Booking.Restaurant(r.Context(), restaurantID)
	if err != nil {
		s.writeError(w, r, err)
		return false
	}
	oid, _ := auth.OwnerIDFromContext(r.Context())
	if rest.OwnerID == 0 || rest.OwnerID != oid {
		writeJSON(w, http.StatusForbidden, errorBody{Error: codeForbidden, Message: "not the owner of restaurant " + restaurantID})
		return false
	}
	return true
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.ownsRestaurant(w, r, id) {
		return
	}
	rs, err := s.Booking.DayReservations(r.Context(), id, r.URL.Query().Get("date"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]reservationResponse, 0, len(rs))
	for _, res := range rs {
		out = append(out, toResponse(res))
	}
	writeJSON(w, http.StatusOK, out)
}

type statusBody struct {
	Status string `json:"status"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body statusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "body", err.Error())
		return
	}
	to, err := reservation.ParseStatus(body.Status)
	if err != nil {
		badRequest(w, "status", err.Error())
		return
	}
	res, err := s.Booking.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.ownsRestaurant(w, r, res.RestaurantID) {
		return
	}
	res, err = s.Booking.Transition(r.Context(), id, to, reservation.ActorOwner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}
