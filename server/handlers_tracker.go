package server

import (
	"net/http"

	"github.com/jobpath/jobpath-server/tracker"
)

func (s *Server) ApplicationListHandler() http.HandlerFunc {
	type response struct {
		Applications []*tracker.Application `json:"applications"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		apps, err := s.tracker.ListApplications(r.Context(), userIDFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response{Applications: apps})
	}
}

func (s *Server) ApplicationCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var app tracker.Application
		if err := decodeJSON(r, &app); err != nil {
			writeError(w, err)
			return
		}

		created, err := s.tracker.CreateApplication(r.Context(), userIDFromContext(r.Context()), &app)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func (s *Server) ApplicationGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app, err := s.tracker.GetApplication(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, app)
	}
}

func (s *Server) ApplicationUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update tracker.Application
		if err := decodeJSON(r, &update); err != nil {
			writeError(w, err)
			return
		}

		app, err := s.tracker.UpdateApplication(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"), &update)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, app)
	}
}

func (s *Server) ApplicationDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.tracker.DeleteApplication(r.Context(), userIDFromContext(r.Context()), r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// InterviewListHandler lists the rounds for the application given in the
// application_id query parameter.
func (s *Server) InterviewListHandler() http.HandlerFunc {
	type response struct {
		Interviews []*tracker.Interview `json:"interviews"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		applicationID := r.URL.Query().Get("application_id")
		if applicationID == "" {
			writeJSONError(w, http.StatusBadRequest, "application_id is required")
			return
		}

		interviews, err := s.tracker.ListInterviews(r.Context(), userIDFromContext(r.Context()), applicationID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response{Interviews: interviews})
	}
}

func (s *Server) InterviewCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input tracker.NewInterview
		if err := decodeJSON(r, &input); err != nil {
			writeError(w, err)
			return
		}

		interview, err := s.tracker.ScheduleInterview(r.Context(), userIDFromContext(r.Context()), &input)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, interview)
	}
}

func (s *Server) InterviewUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update tracker.Interview
		if err := decodeJSON(r, &update); err != nil {
			writeError(w, err)
			return
		}

		interview, err := s.tracker.UpdateInterview(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"), &update)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, interview)
	}
}

func (s *Server) InterviewDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.tracker.CancelInterview(r.Context(), userIDFromContext(r.Context()), r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ContactListHandler() http.HandlerFunc {
	type response struct {
		Contacts []*tracker.Contact `json:"contacts"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		contacts, err := s.tracker.ListContacts(r.Context(), userIDFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response{Contacts: contacts})
	}
}

func (s *Server) ContactCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var contact tracker.Contact
		if err := decodeJSON(r, &contact); err != nil {
			writeError(w, err)
			return
		}

		created, err := s.tracker.CreateContact(r.Context(), userIDFromContext(r.Context()), &contact)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func (s *Server) ContactUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update tracker.Contact
		if err := decodeJSON(r, &update); err != nil {
			writeError(w, err)
			return
		}

		contact, err := s.tracker.UpdateContact(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"), &update)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, contact)
	}
}

func (s *Server) ContactDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.tracker.DeleteContact(r.Context(), userIDFromContext(r.Context()), r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ProgramDaysListHandler() http.HandlerFunc {
	type response struct {
		Days []*tracker.DayProgress `json:"days"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := s.tracker.ListDayProgress(r.Context(), userIDFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response{Days: days})
	}
}

func (s *Server) ProgramDayUpsertHandler() http.HandlerFunc {
	type request struct {
		Day       int  `json:"day"`
		Completed bool `json:"completed"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}

		day, err := s.tracker.SetDayProgress(r.Context(), userIDFromContext(r.Context()), req.Day, req.Completed)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, day)
	}
}
