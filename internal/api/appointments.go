package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/calmclinic/therapy-booking/internal/booking"
)

func appointmentResponse(appt *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          appt.ID,
		PatientID:   appt.PatientID,
		TherapistID: appt.TherapistID,
		StartTime:   appt.Start,
		EndTime:     appt.End,
		Status:      string(appt.Status),
		Notes:       appt.Notes,
	}
}

func scheduleAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}

		var body ScheduleAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(body.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		var end time.Time
		if body.EndTime != nil {
			end = *body.EndTime
		}

		appt, err := svc.ScheduleAppointment(r.Context(), sess, booking.ScheduleInput{
			PatientID: patientID,
			Start:     body.StartTime,
			End:       end,
			Notes:     body.Notes,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, appointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		appts, err := svc.ListAppointments(r.Context(), sess, limit, offset)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, appointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func rescheduleAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}

		id, ok := pathID(w, r, "appointment_id")
		if !ok {
			return
		}

		var body RescheduleAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var in booking.RescheduleInput
		if body.StartTime != nil {
			in.Start = *body.StartTime
		}
		if body.EndTime != nil {
			in.End = *body.EndTime
		}
		in.Notes = body.Notes

		appt, err := svc.RescheduleAppointment(r.Context(), sess, id, in)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}

		id, ok := pathID(w, r, "appointment_id")
		if !ok {
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), sess, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentResponse(appt))
	}
}

func deleteAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := requireSession(w, r)
		if !ok {
			return
		}

		id, ok := pathID(w, r, "appointment_id")
		if !ok {
			return
		}

		if err := svc.DeleteAppointment(r.Context(), sess, id); err != nil {
			writeServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
