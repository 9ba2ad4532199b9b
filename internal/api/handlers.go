package api

import (
	"net/http"
	"strings"

	"staybook/internal/domain"
	"staybook/internal/export"
	"staybook/internal/filter"
	"staybook/internal/models"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	xlsxContentType      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}

	b, replayed, err := createIdempotent(r.Context(), s.deps.Bookings, s.deps.Idempotency, key, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		writeJSON(w, http.StatusOK, toBookingMessage(b))
		return
	}
	writeJSON(w, http.StatusCreated, toBookingMessage(b))
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	f, err := filter.Parse(r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	bookings, err := s.deps.Bookings.ListBookings(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListBookingsResponse{Bookings: toBookingMessages(bookings)})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Bookings.GetBooking(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingMessage(b))
}

func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	var req UpdateBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	b, err := s.deps.Bookings.UpdateBooking(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingMessage(b))
}

func (s *HTTPServer) handleTransitionStatus(w http.ResponseWriter, r *http.Request) {
	var req TransitionStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	to := models.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	b, err := s.deps.Bookings.TransitionStatus(r.Context(), r.PathValue("id"), to)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingMessage(b))
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Bookings.DeleteBooking(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := parseRange(q.Get("start"), q.Get("end"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	conflictID, available, err := s.deps.Bookings.CheckAvailability(r.Context(), strings.TrimSpace(q.Get("property_id")), rng)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckAvailabilityResponse{Available: available, ConflictingBookingID: conflictID})
}

func (s *HTTPServer) monthView(r *http.Request) (*models.MonthView, error) {
	q := r.URL.Query()
	year, month, err := models.ParseMonth(strings.TrimSpace(q.Get("month")))
	if err != nil {
		return nil, domain.NewValidationError(domain.ReasonInvalidDate)
	}
	return s.deps.Bookings.GetMonthView(r.Context(),
		strings.TrimSpace(q.Get("property_id")),
		strings.ToLower(strings.TrimSpace(q.Get("status"))),
		year, month)
}

func (s *HTTPServer) handleMonthView(w http.ResponseWriter, r *http.Request) {
	view, err := s.monthView(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthViewMessage(view))
}

func (s *HTTPServer) handleMonthExport(w http.ResponseWriter, r *http.Request) {
	view, err := s.monthView(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	properties, err := s.deps.Catalog.ListProperties(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if propertyID := strings.TrimSpace(r.URL.Query().Get("property_id")); propertyID != "" {
		var only []*models.Property
		for _, p := range properties {
			if p.ID == propertyID {
				only = append(only, p)
			}
		}
		properties = only
	}

	f, err := export.MonthWorkbook(view, properties, s.deps.Catalog)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(view.Year, view.Month)+`"`)
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		s.log.Error().Err(err).Msg("failed to write workbook")
	}
}

func (s *HTTPServer) handleDayDetail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day, err := parseDate(q.Get("date"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	bookings, err := s.deps.Bookings.GetDayDetail(r.Context(),
		strings.TrimSpace(q.Get("property_id")),
		strings.ToLower(strings.TrimSpace(q.Get("status"))),
		day)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":     day.Format(models.DateLayout),
		"bookings": toBookingMessages(bookings),
	})
}

func (s *HTTPServer) handleProperties(w http.ResponseWriter, r *http.Request) {
	properties, err := s.deps.Catalog.ListProperties(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if properties == nil {
		properties = []*models.Property{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"properties": properties})
}

func (s *HTTPServer) handleCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.deps.Catalog.ListCustomers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if customers == nil {
		customers = []*models.Customer{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}
