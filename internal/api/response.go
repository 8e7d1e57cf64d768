// Argus RidePlan - Ride time and weather planning for GPS routes.
// Copyright (C) 2026  Paulo Sérgio
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package api

import (
	"encoding/json"
	"net/http"

	"argus-rideplan/internal/logging"

	"go.uber.org/zap"
)

// Response is the envelope of every JSON reply. Failed requests carry only
// Error; RequestID matches the X-Request-ID header so a client report can be
// traced to the server log line.
type Response[T any] struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	Data      *T     `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
}

func respondWithSuccess[T any](w http.ResponseWriter, r *http.Request, statusCode int, data *T) {
	writeJSON(w, r, statusCode, Response[T]{
		Status:    "success",
		RequestID: logging.RequestIDFromContext(r.Context()),
		Data:      data,
	})
}

func respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	writeJSON(w, r, statusCode, Response[struct{}]{
		Status:    "error",
		RequestID: logging.RequestIDFromContext(r.Context()),
		Error:     message,
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.WithContext(r.Context()).Debug("write response", zap.Error(err))
	}
}
