// Package httpapi exposes the reservation engine over HTTP. Handlers parse
// and validate, then delegate to the service layer; no business rule lives
// here.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ridgeline-stays/booking-engine/internal/model"
	"github.com/ridgeline-stays/booking-engine/internal/service"
)

type Handler struct {
	bookings     *service.Bookings
	pricer       *service.Pricer
	availability *service.Availability
	validate     *validator.Validate
}

func NewHandler(bookings *service.Bookings, pricer *service.Pricer, availability *service.Availability) *Handler {
	return &Handler{
		bookings:     bookings,
		pricer:       pricer,
		availability: availability,
		validate:     validator.New(),
	}
}

type QuoteRequestDTO struct {
	Property     string  `json:"property" validate:"required,oneof=lodge cabins"`
	BookingMode  string  `json:"booking_mode" validate:"required,oneof=room day buyout"`
	CheckinDate  string  `json:"checkin_date" validate:"required"`
	CheckoutDate string  `json:"checkout_date" validate:"required"`
	GuestsCount  int     `json:"guests_count" validate:"required,min=1"`
	RoomIDs      []int64 `json:"room_ids" validate:"omitempty,dive,min=1"`
}

type CreateBookingRequestDTO struct {
	Property      string            `json:"property" validate:"required,oneof=lodge cabins"`
	BookingMode   string            `json:"booking_mode" validate:"required,oneof=room day buyout"`
	CheckinDate   string            `json:"checkin_date" validate:"required"`
	CheckoutDate  string            `json:"checkout_date" validate:"required"`
	GuestsCount   int               `json:"guests_count" validate:"required,min=1"`
	ChildrenCount int               `json:"children_count" validate:"min=0"`
	RoomIDs       []int64           `json:"room_ids" validate:"omitempty,dive,min=1"`
	Guests        []BookingGuestDTO `json:"guests" validate:"omitempty,dive"`
}

type BookingGuestDTO struct {
	Name          string `json:"name" validate:"required"`
	IsChild       bool   `json:"is_child"`
	IsBookingUser bool   `json:"is_booking_user"`
}

type BookingResponseDTO struct {
	ReferenceCode string                `json:"reference_code"`
	Property      model.Property        `json:"property"`
	BookingMode   model.BookingMode     `json:"booking_mode"`
	Status        model.BookingStatus   `json:"status"`
	CheckinDate   string                `json:"checkin_date"`
	CheckoutDate  string                `json:"checkout_date"`
	GuestsCount   int                   `json:"guests_count"`
	ChildrenCount int                   `json:"children_count"`
	TotalPrice    int64                 `json:"total_price"`
	Currency      string                `json:"currency"`
	Pricing       *model.PriceBreakdown `json:"pricing,omitempty"`
	HoldExpiresAt *time.Time            `json:"hold_expires_at,omitempty"`
	CheckedIn     bool                  `json:"checked_in"`
	RefundAmount  *int64                `json:"refund_amount,omitempty"`
}

func bookingResponse(b *model.Booking) BookingResponseDTO {
	resp := BookingResponseDTO{
		ReferenceCode: b.ReferenceCode,
		Property:      b.Property,
		BookingMode:   b.BookingMode,
		Status:        b.Status,
		CheckinDate:   model.Date(b.CheckinDate).Format(model.DateLayout),
		CheckoutDate:  model.Date(b.CheckoutDate).Format(model.DateLayout),
		GuestsCount:   b.GuestsCount,
		ChildrenCount: b.ChildrenCount,
		TotalPrice:    b.TotalPrice,
		Currency:      b.Currency,
		HoldExpiresAt: b.HoldExpiresAt,
		CheckedIn:     b.CheckedIn,
		RefundAmount:  b.RefundAmount,
	}
	if bd, err := b.Breakdown(); err == nil && len(bd.Lines) > 0 {
		resp.Pricing = &bd
	}
	return resp
}

func parseDate(value string) (time.Time, error) {
	return time.Parse(model.DateLayout, value)
}

// Quote prices a prospective stay without creating anything.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

	checkin, err := parseDate(req.CheckinDate)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid_date", "checkin_date must be YYYY-MM-DD")
		return
	}
	checkout, err := parseDate(req.CheckoutDate)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid_date", "checkout_date must be YYYY-MM-DD")
		return
	}

	breakdown, err := h.pricer.Quote(r.Context(), service.QuoteInput{
		Property:    model.Property(req.Property),
		BookingMode: model.BookingMode(req.BookingMode),
		Checkin:     checkin,
		Checkout:    checkout,
		GuestsCount: req.GuestsCount,
		RoomIDs:     req.RoomIDs,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, breakdown)
}

// Availability lists which of the requested rooms are free for the range and
// whether a blackout blocks it.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	property := model.Property(q.Get("property"))
	if !property.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_property", "property must be lodge or cabins")
		return
	}

	checkin, err := parseDate(q.Get("checkin"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_date", "checkin must be YYYY-MM-DD")
		return
	}
	checkout, err := parseDate(q.Get("checkout"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_date", "checkout must be YYYY-MM-DD")
		return
	}
	if !checkin.Before(checkout) {
		respondError(w, http.StatusUnprocessableEntity, "invalid_date_range", "checkin must be before checkout")
		return
	}

	roomIDs, err := parseRoomIDs(q.Get("room_ids"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_room_ids", "room_ids must be comma-separated integers")
		return
	}

	blackout, err := h.availability.HasBlackout(r.Context(), property, checkin, checkout)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	available := []int64{}
	if len(roomIDs) > 0 {
		available, err = h.availability.BatchCheckRooms(r.Context(), roomIDs, property, checkin, checkout)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		if available == nil {
			available = []int64{}
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"property":           property,
		"checkin":            model.Date(checkin).Format(model.DateLayout),
		"checkout":           model.Date(checkout).Format(model.DateLayout),
		"blackout":           blackout,
		"available_room_ids": available,
	})
}

func parseRoomIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CreateBooking persists a priced draft. Inventory is not claimed until the
// hold step.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

	checkin, err := parseDate(req.CheckinDate)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid_date", "checkin_date must be YYYY-MM-DD")
		return
	}
	checkout, err := parseDate(req.CheckoutDate)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid_date", "checkout_date must be YYYY-MM-DD")
		return
	}

	guests := make([]model.BookingGuest, len(req.Guests))
	for i, g := range req.Guests {
		guests[i] = model.BookingGuest{
			Name:          g.Name,
			IsChild:       g.IsChild,
			IsBookingUser: g.IsBookingUser,
			OrderIndex:    i,
		}
	}

	booking, err := h.bookings.Create(r.Context(), service.CreateInput{
		Property:      model.Property(req.Property),
		BookingMode:   model.BookingMode(req.BookingMode),
		Checkin:       checkin,
		Checkout:      checkout,
		GuestsCount:   req.GuestsCount,
		ChildrenCount: req.ChildrenCount,
		RoomIDs:       req.RoomIDs,
		Guests:        guests,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, bookingResponse(booking))
}

// GetBooking returns a booking by its reference code.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.bookings.Get(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bookingResponse(booking))
}

// PlaceHold claims inventory for a draft and starts the hold TTL.
func (h *Handler) PlaceHold(w http.ResponseWriter, r *http.Request) {
	booking, err := h.bookings.PlaceHold(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bookingResponse(booking))
}

// ConfirmBooking completes a held booking once its payment is found.
func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.bookings.Confirm(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bookingResponse(booking))
}

// CancelBooking cancels from any live status, applying the refund schedule
// for completed bookings.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.bookings.Cancel(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bookingResponse(booking))
}

// CheckIn flags arrival on a completed booking.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	if err := h.bookings.MarkCheckedIn(r.Context(), ref); err != nil {
		respondDomainError(w, err)
		return
	}
	booking, err := h.bookings.Get(r.Context(), ref)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bookingResponse(booking))
}
