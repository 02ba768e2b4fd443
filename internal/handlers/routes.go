package handlers

import (
	"github.com/gorilla/mux"
)

func RegisterRoutes(r *mux.Router, h *StatsHandler) {
	r.HandleFunc("/healthz", h.HandleHealth).Methods("GET")
	r.HandleFunc("/stats", h.HandleDays).Methods("GET")
	r.HandleFunc("/stats/{year:[0-9]{4}}/{month:[0-9]{2}}/{day:[0-9]{2}}", h.HandleDay).Methods("GET")
	r.HandleFunc("/refs/{kind}/{id}/{arch}/{branch}", h.HandleRef).Methods("GET")
}
