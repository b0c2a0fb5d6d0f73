package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"spacebook/internal/domain"
	"spacebook/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type reservationResponse struct {
	ID                  int64      `json:"id"`
	UserID              int64      `json:"user_id"`
	UserName            string     `json:"user_name,omitempty"`
	SpaceID             int64      `json:"space_id"`
	SpaceName           string     `json:"space_name,omitempty"`
	Date                string     `json:"date"`
	StartTime           string     `json:"start_time"`
	EndTime             string     `json:"end_time"`
	Reason              string     `json:"reason"`
	Status              string     `json:"status"`
	IsRecurring         bool       `json:"is_recurring"`
	RecurrenceType      string     `json:"recurrence_type,omitempty"`
	RecurrenceEndDate   string     `json:"recurrence_end_date,omitempty"`
	ParentReservationID *int64     `json:"parent_reservation_id,omitempty"`
	ChildrenCount       int        `json:"children_count,omitempty"`
	ReviewedBy          *int64     `json:"reviewed_by,omitempty"`
	ReviewerName        string     `json:"reviewer_name,omitempty"`
	ReviewedAt          *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

func toResponse(r *models.Reservation) reservationResponse {
	out := reservationResponse{
		ID:                  r.ID,
		UserID:              r.UserID,
		UserName:            r.UserName,
		SpaceID:             r.SpaceID,
		SpaceName:           r.SpaceName,
		Date:                r.DateString(),
		StartTime:           r.StartTime,
		EndTime:             r.EndTime,
		Reason:              r.Reason,
		Status:              r.Status,
		IsRecurring:         r.IsRecurring,
		RecurrenceType:      r.RecurrenceType,
		ParentReservationID: r.ParentReservationID,
		ChildrenCount:       r.ChildrenCount,
		ReviewedBy:          r.ReviewedBy,
		ReviewerName:        r.ReviewerName,
		ReviewedAt:          r.ReviewedAt,
		CreatedAt:           r.CreatedAt,
	}
	if r.RecurrenceEndDate != nil {
		out.RecurrenceEndDate = r.RecurrenceEndDate.Format(models.DateLayout)
	}
	return out
}

func toResponses(rs []*models.Reservation) []reservationResponse {
	out := make([]reservationResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, toResponse(r))
	}
	return out
}

type createRequest struct {
	SpaceID           int64  `json:"space_id"`
	Date              string `json:"date"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	Reason            string `json:"reason"`
	IsRecurring       bool   `json:"is_recurring"`
	RecurrenceType    string `json:"recurrence_type"`
	RecurrenceEndDate string `json:"recurrence_end_date"`
}

type createResponse struct {
	Data         []reservationResponse `json:"data"`
	Total        int                   `json:"total"`
	SkippedDates []string              `json:"skipped_dates"`
}

func (s *HTTPServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())

	var body createRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}

	single := domain.CreateSingleInput{
		ActorID:   actor.ID,
		SpaceID:   body.SpaceID,
		Date:      body.Date,
		StartTime: body.StartTime,
		EndTime:   body.EndTime,
		Reason:    body.Reason,
	}

	if !body.IsRecurring {
		res, err := s.service.CreateSingle(r.Context(), single)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, createResponse{
			Data:         []reservationResponse{toResponse(res)},
			Total:        1,
			SkippedDates: []string{},
		})
		return
	}

	series, err := s.service.CreateRecurring(r.Context(), domain.CreateRecurringInput{
		CreateSingleInput: single,
		RecurrenceType:    body.RecurrenceType,
		RecurrenceEndDate: body.RecurrenceEndDate,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	skipped := make([]string, 0, len(series.SkippedDates))
	for _, d := range series.SkippedDates {
		skipped = append(skipped, d.Format(models.DateLayout))
	}
	writeJSON(w, http.StatusCreated, createResponse{
		Data:         toResponses(series.Reservations),
		Total:        series.Total,
		SkippedDates: skipped,
	})
}

func (s *HTTPServer) handleList(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	q := r.URL.Query()

	filter, err := parseFilter(q.Get)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	filter.IncludeChildren = q.Get("calendar") == "true"

	// Без all=true обычный пользователь видит только свои брони
	if !actor.IsAdmin() && q.Get("all") != "true" {
		filter.UserID = actor.ID
	}

	list, err := s.service.ListReservations(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": toResponses(list)})
}

func (s *HTTPServer) handleGet(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())

	id, err := pathID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	res, err := s.service.GetReservation(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !actor.IsAdmin() && res.UserID != actor.ID {
		s.writeDomainError(w, r, &domain.PermissionError{ActorID: actor.ID, Action: "view reservation"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": toResponse(res)})
}

type statusRequest struct {
	Status string `json:"status"`
}

type statusResponse struct {
	Data            reservationResponse `json:"data"`
	ChildrenUpdated int                 `json:"children_updated"`
	CascadeWarning  string              `json:"cascade_warning,omitempty"`
}

func (s *HTTPServer) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !actor.IsAdmin() {
		s.writeDomainError(w, r, &domain.PermissionError{ActorID: actor.ID, Action: "change reservation status"})
		return
	}

	id, err := pathID(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	var body statusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}

	res, err := s.service.SetStatus(r.Context(), domain.SetStatusInput{
		ReservationID: id,
		Status:        strings.TrimSpace(body.Status),
		ActorID:       actor.ID,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	out := statusResponse{
		Data:            toResponse(res.Reservation),
		ChildrenUpdated: len(res.Children),
	}
	if res.CascadeErr != nil {
		out.CascadeWarning = res.CascadeErr.Error()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleConflicts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	spaceID, err := parseID(q.Get("space_id"), "space_id", domain.ReasonInvalidSpace)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	date, err := parseDate(q.Get("date"), "date")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	var exclude int64
	if raw := q.Get("exclude_id"); raw != "" {
		if exclude, err = parseID(raw, "exclude_id", domain.ReasonInvalidID); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
	}

	busy, err := s.service.CheckConflict(r.Context(), models.ConflictQuery{
		SpaceID:   spaceID,
		Date:      *date,
		StartTime: q.Get("start_time"),
		EndTime:   q.Get("end_time"),
		ExcludeID: exclude,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"conflict": busy})
}

func (s *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.ComputeStats(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": stats})
}

func (s *HTTPServer) handleToday(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.TodayReservations(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": toResponses(list)})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !actor.IsAdmin() {
		s.writeDomainError(w, r, &domain.PermissionError{ActorID: actor.ID, Action: "export reservations"})
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "export is not configured", "")
		return
	}

	filter, err := parseFilter(r.URL.Query().Get)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	filter.IncludeChildren = true

	var buf bytes.Buffer
	if _, err := s.exporter.Write(r.Context(), &buf, filter); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="reservations_%s.xlsx"`, time.Now().Format("20060102")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// writeDomainError maps engine errors onto HTTP status codes.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, err.Error(), string(verr.Reason))
	case errors.Is(err, domain.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_status")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error(), "conflict")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error(), "invalid_transition")
	case errors.Is(err, domain.ErrPermission):
		writeError(w, http.StatusForbidden, err.Error(), "")
	default:
		s.logger.Error().Err(err).
			Str("request_id", requestIDFrom(r.Context())).
			Str("path", r.URL.Path).
			Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal server error", "")
	}
}

func pathID(r *http.Request) (int64, error) {
	return parseID(r.PathValue("id"), "id", domain.ReasonInvalidID)
}

func parseID(raw, field string, reason domain.Reason) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Field: field, Reason: reason}
	}
	return id, nil
}

func parseDate(raw, field string) (*time.Time, error) {
	d, err := time.Parse(models.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return nil, &domain.ValidationError{Field: field, Reason: domain.ReasonInvalidDate}
	}
	return &d, nil
}

// parseFilter reads the list filters shared by listing and export.
func parseFilter(get func(string) string) (models.ReservationFilter, error) {
	var (
		filter models.ReservationFilter
		err    error
	)

	if raw := get("space_id"); raw != "" {
		if filter.SpaceID, err = parseID(raw, "space_id", domain.ReasonInvalidSpace); err != nil {
			return filter, err
		}
	}
	if raw := get("user_id"); raw != "" {
		if filter.UserID, err = parseID(raw, "user_id", domain.ReasonInvalidUser); err != nil {
			return filter, err
		}
	}
	for _, f := range []struct {
		name string
		dst  **time.Time
	}{
		{"date", &filter.Date},
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		raw := get(f.name)
		if raw == "" {
			continue
		}
		if *f.dst, err = parseDate(raw, f.name); err != nil {
			return filter, err
		}
	}
	if raw := get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return filter, &domain.ValidationError{Field: "limit"}
		}
		filter.Limit = n
	}
	filter.Status = strings.TrimSpace(get("status"))
	return filter, nil
}
