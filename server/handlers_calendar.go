package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jobpath/jobpath-server/calendar"
)

// CalendarListHandler proxies an event listing. Time bounds come from the
// time_min/time_max query parameters (RFC 3339).
func (s *Server) CalendarListHandler() http.HandlerFunc {
	type response struct {
		Events []calendar.Event `json:"events"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := calendar.ListOptions{
			Query:        q.Get("q"),
			SingleEvents: true,
			OrderBy:      "startTime",
		}
		if v := q.Get("time_min"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "time_min must be RFC 3339")
				return
			}
			opts.TimeMin = t
		}
		if v := q.Get("time_max"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "time_max must be RFC 3339")
				return
			}
			opts.TimeMax = t
		}
		if v := q.Get("max_results"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeJSONError(w, http.StatusBadRequest, "max_results must be a positive integer")
				return
			}
			opts.MaxResults = n
		}

		events, err := s.calendar.ListEvents(r.Context(), userIDFromContext(r.Context()), calendar.PrimaryCalendar, opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response{Events: events})
	}
}

func (s *Server) CalendarCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event calendar.Event
		if err := decodeJSON(r, &event); err != nil {
			writeError(w, err)
			return
		}
		if event.Summary == "" || event.Start == nil || event.End == nil {
			writeJSONError(w, http.StatusBadRequest, "summary, start and end are required")
			return
		}

		created, err := s.calendar.CreateEvent(r.Context(), userIDFromContext(r.Context()), calendar.PrimaryCalendar, &event)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func (s *Server) CalendarUpdateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event calendar.Event
		if err := decodeJSON(r, &event); err != nil {
			writeError(w, err)
			return
		}

		updated, err := s.calendar.UpdateEvent(r.Context(), userIDFromContext(r.Context()), calendar.PrimaryCalendar, r.PathValue("id"), &event)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func (s *Server) CalendarDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.calendar.DeleteEvent(r.Context(), userIDFromContext(r.Context()), calendar.PrimaryCalendar, r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
