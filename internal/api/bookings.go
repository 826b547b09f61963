package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/tarot-booking/internal/checkout"
	"github.com/hackgods/tarot-booking/internal/scheduling"
	"github.com/hackgods/tarot-booking/internal/timeutil"
	"github.com/hackgods/tarot-booking/pkg/logging"
)

func listServicesHandler(co *checkout.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, co.Catalogue().List())
	}
}

func checkoutHandler(co *checkout.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckoutRequest
		if err := decodeJSON(r, &req, false); err != nil {
			handleError(w, r, logger, err)
			return
		}
		date, err := timeutil.ParseDate(req.Date)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		at, err := timeutil.ParseTime(req.Time)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		wt, err := scheduling.ParseWindowType(req.Type)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		if wt == "" {
			wt = scheduling.WindowRegular
		}
		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			key = req.IdempotencyKey
		}

		b, err := co.Checkout(r.Context(), checkout.Request{
			ServiceCode:    req.ServiceCode,
			Date:           date,
			Time:           at,
			Type:           wt,
			Client:         req.Client,
			Details:        req.Details,
			PaymentMethod:  req.PaymentMethod,
			IdempotencyKey: key,
		})
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBookingResponse(b))
	}
}

func blockHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BlockRequest
		if err := decodeJSON(r, &req, false); err != nil {
			handleError(w, r, logger, err)
			return
		}
		date, err := timeutil.ParseDate(req.Date)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		at, err := timeutil.ParseTime(req.Time)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		wt, err := scheduling.ParseWindowType(req.Type)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		if wt == "" {
			wt = scheduling.WindowRegular
		}

		b, err := svc.Book(r.Context(), scheduling.BookingRequest{
			Date:     date,
			Time:     at,
			Duration: req.Duration,
			Type:     wt,
			Source:   scheduling.SourceManualBlock,
			Label:    req.Label,
		})
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBookingResponse(b))
	}
}

// listBookingsHandler serves the admin day view, or a single booking when a
// reference is given.
func listBookingsHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ref := r.URL.Query().Get("reference"); ref != "" {
			b, err := svc.GetBookingByReference(r.Context(), ref)
			if err != nil {
				handleError(w, r, logger, err)
				return
			}
			writeJSON(w, http.StatusOK, []BookingResponse{toBookingResponse(b)})
			return
		}

		date, err := queryDate(r)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		bookings, err := svc.ListBooked(r.Context(), date)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		resp := make([]BookingResponse, 0, len(bookings))
		for i := range bookings {
			resp = append(resp, toBookingResponse(&bookings[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// getBookingHandler accepts either the booking id or its TRT- reference.
func getBookingHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "id")
		var (
			b   *scheduling.Booking
			err error
		)
		if strings.HasPrefix(strings.ToUpper(raw), "TRT-") {
			b, err = svc.GetBookingByReference(r.Context(), raw)
		} else {
			var id uuid.UUID
			id, err = uuid.Parse(raw)
			if err != nil {
				err = fmt.Errorf("%w: id must be a UUID or booking reference", scheduling.ErrInvalidFormat)
			} else {
				b, err = svc.GetBooking(r.Context(), id)
			}
		}
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func cancelBookingHandler(co *checkout.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		var req CancelRequest
		if err := decodeJSON(r, &req, true); err != nil {
			handleError(w, r, logger, err)
			return
		}

		b, err := co.Cancel(r.Context(), id, strings.TrimSpace(req.Reason))
		if err != nil {
			if errors.Is(err, scheduling.ErrBookingNotFound) {
				writeError(w, http.StatusNotFound, "not_found", "booking not found")
				return
			}
			handleError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}
