package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/calmclinic/therapy-booking/internal/booking"
)

func requestResponse(req *booking.BookingRequest) BookingRequestResponse {
	return BookingRequestResponse{
		ID:            req.ID,
		PatientID:     req.PatientID,
		TherapistID:   req.TherapistID,
		Date:          req.Date.String(),
		Time:          req.Time.String(),
		Reason:        req.Reason,
		Status:        string(req.Status),
		AppointmentID: req.AppointmentID,
	}
}

func createRequestHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}

		var body CreateBookingRequestRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		therapistID, err := uuid.Parse(body.TherapistID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_therapist_id", "therapist_id must be a valid UUID")
			return
		}

		date, err := booking.ParseDate(body.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		tod, err := booking.ParseTimeOfDay(body.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "time must be HH:MM")
			return
		}

		req, err := svc.CreateRequest(r.Context(), sess, booking.CreateRequestInput{
			TherapistID: therapistID,
			Date:        date,
			Time:        tod,
			Reason:      body.Reason,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, requestResponse(req))
	}
}

func listRequestsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}

		reqs, err := svc.ListRequests(r.Context(), sess)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := make([]BookingRequestResponse, 0, len(reqs))
		for i := range reqs {
			resp = append(resp, requestResponse(&reqs[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func approveRequestHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}

		id, ok := pathID(w, r, "request_id")
		if !ok {
			return
		}

		appt, err := svc.ApproveRequest(r.Context(), sess, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentResponse(appt))
	}
}

func rejectRequestHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}

		id, ok := pathID(w, r, "request_id")
		if !ok {
			return
		}

		req, err := svc.RejectRequest(r.Context(), sess, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, requestResponse(req))
	}
}

func cancelRequestHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}

		id, ok := pathID(w, r, "request_id")
		if !ok {
			return
		}

		req, err := svc.CancelRequest(r.Context(), sess, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, requestResponse(req))
	}
}
