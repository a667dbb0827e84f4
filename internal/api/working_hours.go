package api

import (
	"encoding/json"
	"net/http"

	"github.com/calmclinic/therapy-booking/internal/booking"
)

func blockResponse(block *booking.WorkingHourBlock) WorkingHourBlockResponse {
	return WorkingHourBlockResponse{
		ID:          block.ID,
		TherapistID: block.TherapistID,
		DayOfWeek:   block.DayOfWeek,
		StartTime:   block.Start.String(),
		EndTime:     block.End.String(),
		Active:      block.Active,
	}
}

func parseBlockInput(w http.ResponseWriter, r *http.Request) (booking.BlockInput, bool) {
	var body WorkingHourBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return booking.BlockInput{}, false
	}

	start, err := booking.ParseTimeOfDay(body.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:MM")
		return booking.BlockInput{}, false
	}

	end, err := booking.ParseTimeOfDay(body.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_end_time", "end_time must be HH:MM")
		return booking.BlockInput{}, false
	}

	active := true
	if body.Active != nil {
		active = *body.Active
	}

	return booking.BlockInput{
		DayOfWeek: body.DayOfWeek,
		Start:     start,
		End:       end,
		Active:    active,
	}, true
}

func listWorkingHoursHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		therapistID, ok := pathID(w, r, "therapist_id")
		if !ok {
			return
		}

		blocks, err := svc.ListWorkingHours(r.Context(), therapistID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := make([]WorkingHourBlockResponse, 0, len(blocks))
		for i := range blocks {
			resp = append(resp, blockResponse(&blocks[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func addWorkingHourHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}

		therapistID, ok := pathID(w, r, "therapist_id")
		if !ok {
			return
		}
		if therapistID != sess.UserID {
			writeError(w, http.StatusForbidden, "permission_denied", "therapists manage only their own schedule")
			return
		}

		in, ok := parseBlockInput(w, r)
		if !ok {
			return
		}

		block, err := svc.AddWorkingHourBlock(r.Context(), sess, in)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, blockResponse(block))
	}
}

func updateWorkingHourHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}

		id, ok := pathID(w, r, "block_id")
		if !ok {
			return
		}

		in, ok := parseBlockInput(w, r)
		if !ok {
			return
		}

		block, err := svc.UpdateWorkingHourBlock(r.Context(), sess, id, in)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, blockResponse(block))
	}
}

func deleteWorkingHourHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}

		id, ok := pathID(w, r, "block_id")
		if !ok {
			return
		}

		if err := svc.DeleteWorkingHourBlock(r.Context(), sess, id); err != nil {
			writeServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
