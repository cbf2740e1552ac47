package handler

import (
	"net/http"
	"strings"
	"time"

	"club-planner-go/internal/ics"
	"github.com/go-chi/chi/v5"
)

// CalendarFeed serves the group schedule as an iCalendar document so
// members can subscribe from their calendar clients.
func (h *Handlers) CalendarFeed(w http.ResponseWriter, r *http.Request) {
	if !h.feed.Enabled {
		writeError(w, http.StatusNotFound, "feed_disabled", "calendar feed is disabled")
		return
	}

	groupID := strings.TrimSpace(chi.URLParam(r, "group_id"))
	if groupID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "group_id is required")
		return
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -h.feed.LookbackDays)

	occurrences, err := h.Schedule.ListGroupOccurrences(r.Context(), groupID, from, time.Time{})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	body := ics.BuildGroupCalendar(h.feed.ProductID, occurrences, now)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
