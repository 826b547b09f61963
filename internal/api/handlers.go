package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/tarot-booking/internal/scheduling"
	"github.com/hackgods/tarot-booking/internal/timeutil"
	"github.com/hackgods/tarot-booking/pkg/logging"
)

func listWindowsHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := queryDate(r)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		windows, err := svc.ListWindows(r.Context(), date)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toWindowResponses(windows))
	}
}

// proposeWindowHandler answers 201 when the window was stored, and 409 with
// the conflict proposal when it overlaps existing windows.
func proposeWindowHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WindowRequest
		if err := decodeJSON(r, &req, false); err != nil {
			handleError(w, r, logger, err)
			return
		}
		date, err := timeutil.ParseDate(req.Date)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		start, end, err := parseRange(req.Start, req.End)
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

		p, err := svc.ProposeWindow(r.Context(), date, start, end, wt)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		status := http.StatusCreated
		if p.State == scheduling.ProposalConflict {
			status = http.StatusConflict
		}
		writeJSON(w, status, toProposalResponse(p))
	}
}

func updateWindowHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		var req UpdateWindowRequest
		if err := decodeJSON(r, &req, false); err != nil {
			handleError(w, r, logger, err)
			return
		}
		start, end, err := parseRange(req.Start, req.End)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		win, err := svc.UpdateWindow(r.Context(), id, start, end)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toWindowResponse(*win))
	}
}

func deleteWindowHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		if err := svc.DeleteWindow(r.Context(), id); err != nil {
			handleError(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getProposalHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return proposalAction(logger, svc.GetProposal)
}

func confirmProposalHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return proposalAction(logger, svc.ConfirmProposal)
}

func discardProposalHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return proposalAction(logger, svc.DiscardProposal)
}

func proposalAction(logger *logging.Logger, fn func(ctx context.Context, id uuid.UUID) (*scheduling.Proposal, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		p, err := fn(r.Context(), id)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toProposalResponse(p))
	}
}

func listSlotsHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseSlotQuery(r)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		slots, err := svc.GenerateSlots(r.Context(), q)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, toSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func parseSlotQuery(r *http.Request) (scheduling.SlotQuery, error) {
	var q scheduling.SlotQuery
	date, err := queryDate(r)
	if err != nil {
		return q, err
	}
	q.Date = date

	raw := r.URL.Query().Get("duration")
	q.Duration, err = strconv.Atoi(raw)
	if err != nil {
		return q, fmt.Errorf("%w: duration must be a number of minutes", scheduling.ErrInvalidFormat)
	}
	if q.Type, err = scheduling.ParseWindowType(r.URL.Query().Get("type")); err != nil {
		return q, err
	}
	if q.AvailableOnly, err = queryBool(r, "available_only"); err != nil {
		return q, err
	}
	if q.IncludeHistory, err = queryBool(r, "include_history"); err != nil {
		return q, err
	}
	return q, nil
}

func queryDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", scheduling.ErrInvalidFormat)
	}
	return timeutil.ParseDate(raw)
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", scheduling.ErrInvalidFormat, key)
	}
	return b, nil
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a valid UUID", scheduling.ErrInvalidFormat, key)
	}
	return id, nil
}

func parseRange(startRaw, endRaw string) (int, int, error) {
	start, err := timeutil.ParseTime(startRaw)
	if err != nil {
		return 0, 0, err
	}
	end, err := timeutil.ParseEndTime(endRaw)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}
