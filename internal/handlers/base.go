package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sdko-org/flathub-stats/internal/ref"
	"github.com/sdko-org/flathub-stats/internal/stats"
	"github.com/sirupsen/logrus"
)

// Source is the read side of the aggregated statistics.
type Source interface {
	Days() []string
	Day(date string) (*stats.DayStats, bool)
	RefHistory(name string) map[string]stats.Counts
}

type StatsHandler struct {
	source Source
	log    *logrus.Entry
}

func NewStatsHandler(logger *logrus.Logger, source Source) *StatsHandler {
	return &StatsHandler{
		source: source,
		log:    logger.WithField("component", "stats_handler"),
	}
}

func (h *StatsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *StatsHandler) HandleDays(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"days": h.source.Days()})
}

func (h *StatsHandler) HandleDay(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	date := fmt.Sprintf("%s/%s/%s", vars["year"], vars["month"], vars["day"])
	if _, err := stats.ParseDate(date); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date")
		return
	}

	day, ok := h.source.Day(date)
	if !ok {
		writeError(w, http.StatusNotFound, "No statistics for "+date)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (h *StatsHandler) HandleRef(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := ref.Ref{
		Kind:   vars["kind"],
		ID:     vars["id"],
		Arch:   vars["arch"],
		Branch: vars["branch"],
	}.String()

	if !ref.ShouldKeep(name) {
		h.log.WithField("ref", name).Debug("Ref not tracked")
		writeError(w, http.StatusNotFound, "Ref not tracked")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ref":  name,
		"days": h.source.RefHistory(name),
	})
}
