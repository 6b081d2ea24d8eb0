package api

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-blegw/internal/device"
)

// deviceResponse is the JSON view of one registry entry.
type deviceResponse struct {
	Address string `json:"address"`
	Payload string `json:"payload"`
	Message string `json:"message"`
}

func newDeviceResponse(address string, p device.Payload) deviceResponse {
	return deviceResponse{
		Address: address,
		Payload: p.Hex(),
		Message: device.Format(address, p),
	}
}

// handleListDevices returns every registry entry sorted by address.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := make([]deviceResponse, 0, s.registry.Len())
	for address, p := range s.registry.All() {
		devices = append(devices, newDeviceResponse(address, p))
	}
	slices.SortFunc(devices, func(a, b deviceResponse) int {
		return strings.Compare(a.Address, b.Address)
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns a single registry entry.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	p, ok := s.registry.Lookup(address)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, newDeviceResponse(address, p))
}

// handleDeviceJournal returns recently forwarded messages for one address.
//
// Query parameters:
//   - limit: maximum entries (default 50, max 200)
func (s *Server) handleDeviceJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeNotFound(w, "journal is not enabled")
		return
	}

	address := chi.URLParam(r, "address")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := s.journal.Recent(r.Context(), address, limit)
	if err != nil {
		if errors.Is(err, device.ErrInvalidAddress) {
			writeBadRequest(w, "invalid address")
			return
		}
		s.logger.Error("failed to read journal", "address", address, "error", err)
		writeInternalError(w, "failed to read journal")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address": address,
		"entries": entries,
		"count":   len(entries),
	})
}
