package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	scheduledomain "club-planner-go/internal/domain/schedule"
	"club-planner-go/internal/transport/httpserver/middleware"
	"github.com/go-chi/chi/v5"
)

type ruleRequest struct {
	GroupID         string `json:"group_id"`
	ClubID          string `json:"club_id"`
	ActivityType    string `json:"activity_type"`
	Title           string `json:"title"`
	Location        string `json:"location"`
	Notes           string `json:"notes"`
	DurationMinutes int    `json:"duration_minutes"`
	Weekday         int    `json:"weekday"`
	TimeOfDay       string `json:"time_of_day"`
	IntervalWeeks   int    `json:"interval_weeks"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	IsActive        *bool  `json:"is_active"`
}

type rosterMemberRequest struct {
	PersonID string `json:"person_id"`
	Role     string `json:"role"`
}

type structureItemRequest struct {
	Category string `json:"category"`
	Minutes  int    `json:"minutes"`
	Note     string `json:"note"`
}

type structureRequest struct {
	Items []structureItemRequest `json:"items"`
	Clear bool                   `json:"clear"`
}

type createSeriesRequest struct {
	Rule      ruleRequest           `json:"rule"`
	Roster    []rosterMemberRequest `json:"roster"`
	Coaches   []string              `json:"coaches"`
	Structure structureRequest      `json:"structure"`
}

type editSeriesRequest struct {
	Version   int64            `json:"version"`
	Rule      ruleRequest      `json:"rule"`
	Structure structureRequest `json:"structure"`
}

type createOccurrenceRequest struct {
	GroupID         string                `json:"group_id"`
	ClubID          string                `json:"club_id"`
	ActivityType    string                `json:"activity_type"`
	Title           string                `json:"title"`
	Location        string                `json:"location"`
	Notes           string                `json:"notes"`
	StartsAt        string                `json:"starts_at"`
	DurationMinutes int                   `json:"duration_minutes"`
	Roster          []rosterMemberRequest `json:"roster"`
	Coaches         []string              `json:"coaches"`
	Structure       structureRequest      `json:"structure"`
}

type editOccurrenceRequest struct {
	Version         int64                `json:"version"`
	Title           *string              `json:"title"`
	Location        *string              `json:"location"`
	Notes           *string              `json:"notes"`
	StartsAt        *string              `json:"starts_at"`
	DurationMinutes *int                 `json:"duration_minutes"`
	Status          *string              `json:"status"`
	Roster          *rosterUpdateRequest `json:"roster"`
	Structure       structureRequest     `json:"structure"`
}

type rosterUpdateRequest struct {
	Members []rosterMemberRequest `json:"members"`
	Coaches []string              `json:"coaches"`
}

type ruleResponse struct {
	ID              string `json:"id"`
	GroupID         string `json:"group_id"`
	ClubID          string `json:"club_id"`
	ActivityType    string `json:"activity_type"`
	Title           string `json:"title"`
	Location        string `json:"location"`
	Notes           string `json:"notes"`
	DurationMinutes int    `json:"duration_minutes"`
	Weekday         int    `json:"weekday"`
	TimeOfDay       string `json:"time_of_day"`
	IntervalWeeks   int    `json:"interval_weeks"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	IsActive        bool   `json:"is_active"`
	Version         int64  `json:"version"`
}

type seriesResponse struct {
	Rule          ruleResponse `json:"rule"`
	OccurrenceIDs []string     `json:"occurrence_ids"`
}

type occurrenceResponse struct {
	ID              string  `json:"id"`
	RuleID          *string `json:"rule_id,omitempty"`
	GroupID         string  `json:"group_id"`
	ClubID          string  `json:"club_id"`
	ActivityType    string  `json:"activity_type"`
	Title           string  `json:"title"`
	Location        string  `json:"location"`
	Notes           string  `json:"notes"`
	StartsAt        string  `json:"starts_at"`
	EndsAt          string  `json:"ends_at"`
	DurationMinutes int     `json:"duration_minutes"`
	Status          string  `json:"status"`
	Version         int64   `json:"version"`
}

type rosterEntryResponse struct {
	PersonID   string `json:"person_id"`
	PersonName string `json:"person_name,omitempty"`
	Role       string `json:"role"`
	Status     string `json:"status,omitempty"`
}

type structureItemResponse struct {
	Category string `json:"category"`
	Minutes  int    `json:"minutes"`
	Note     string `json:"note,omitempty"`
	Position int    `json:"position"`
}

type occurrenceDetailResponse struct {
	Occurrence occurrenceResponse      `json:"occurrence"`
	Roster     []rosterEntryResponse   `json:"roster"`
	Structure  []structureItemResponse `json:"structure"`
}

type propagationResponse struct {
	Targets int                          `json:"targets"`
	Updated int                          `json:"updated"`
	Failed  []propagationFailureResponse `json:"failed,omitempty"`
}

type propagationFailureResponse struct {
	OccurrenceID string `json:"occurrence_id,omitempty"`
	Error        string `json:"error"`
}

type editOccurrenceResponse struct {
	Occurrence  occurrenceResponse   `json:"occurrence"`
	Propagation *propagationResponse `json:"propagation,omitempty"`
}

func (h *Handlers) CreateSeries(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	var req createSeriesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	rule, err := toRuleInput(req.Rule)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	input := scheduledomain.CreateSeriesInput{
		Rule:      rule,
		Roster:    toRosterMembers(req.Roster),
		Coaches:   req.Coaches,
		Structure: toStructureUpdate(req.Structure),
		CreatedBy: user.ID,
	}

	result, err := h.Schedule.CreateSeries(r.Context(), input)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, seriesResponse{
		Rule:          toRuleResponse(result.Rule),
		OccurrenceIDs: result.OccurrenceIDs,
	})
}

func (h *Handlers) EditSeries(w http.ResponseWriter, r *http.Request) {
	ruleID := strings.TrimSpace(chi.URLParam(r, "id"))
	if ruleID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}

	var req editSeriesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	rule, err := toRuleInput(req.Rule)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := h.Schedule.EditSeries(r.Context(), scheduledomain.EditSeriesInput{
		RuleID:    ruleID,
		Version:   req.Version,
		Rule:      rule,
		Structure: toStructureUpdate(req.Structure),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, seriesResponse{
		Rule:          toRuleResponse(result.Rule),
		OccurrenceIDs: result.OccurrenceIDs,
	})
}

func (h *Handlers) DeleteSeries(w http.ResponseWriter, r *http.Request) {
	ruleID := strings.TrimSpace(chi.URLParam(r, "id"))
	if ruleID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}

	if err := h.Schedule.DeleteSeries(r.Context(), ruleID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) CreateOccurrence(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	var req createOccurrenceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	startsAt, err := parseTimestampRequired(req.StartsAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid starts_at")
		return
	}

	occurrence, err := h.Schedule.CreateOccurrence(r.Context(), scheduledomain.CreateOccurrenceInput{
		GroupID:         req.GroupID,
		ClubID:          req.ClubID,
		ActivityType:    req.ActivityType,
		Title:           req.Title,
		Location:        req.Location,
		Notes:           req.Notes,
		StartsAt:        startsAt,
		DurationMinutes: req.DurationMinutes,
		Roster:          toRosterMembers(req.Roster),
		Coaches:         req.Coaches,
		Structure:       toStructureUpdate(req.Structure),
		CreatedBy:       user.ID,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOccurrenceResponse(*occurrence))
}

func (h *Handlers) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	groupID := strings.TrimSpace(query.Get("group_id"))
	if groupID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "group_id is required")
		return
	}
	from, err := parseTimestampParam(query.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid from timestamp")
		return
	}
	to, err := parseTimestampParam(query.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid to timestamp")
		return
	}

	var fromAt, toAt time.Time
	if from != nil {
		fromAt = *from
	}
	if to != nil {
		toAt = *to
	}

	occurrences, err := h.Schedule.ListGroupOccurrences(r.Context(), groupID, fromAt, toAt)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	items := make([]occurrenceResponse, 0, len(occurrences))
	for _, occurrence := range occurrences {
		items = append(items, toOccurrenceResponse(occurrence))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handlers) GetOccurrence(w http.ResponseWriter, r *http.Request) {
	occurrenceID := strings.TrimSpace(chi.URLParam(r, "id"))
	if occurrenceID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}

	detail, err := h.Schedule.GetOccurrence(r.Context(), occurrenceID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	personIDs := make([]string, 0, len(detail.Roster))
	for _, entry := range detail.Roster {
		personIDs = append(personIDs, entry.PersonID)
	}
	names, err := h.Directory.DisplayNames(r.Context(), personIDs)
	if err != nil {
		h.log.InternalError("directory lookup failed", err, "occurrence_id", occurrenceID)
		names = map[string]string{}
	}

	roster := make([]rosterEntryResponse, 0, len(detail.Roster))
	for _, entry := range detail.Roster {
		roster = append(roster, rosterEntryResponse{
			PersonID:   entry.PersonID,
			PersonName: names[entry.PersonID],
			Role:       entry.Role,
			Status:     entry.Status,
		})
	}

	structure := make([]structureItemResponse, 0, len(detail.Structure))
	for _, item := range detail.Structure {
		structure = append(structure, structureItemResponse{
			Category: item.Category,
			Minutes:  item.Minutes,
			Note:     item.Note,
			Position: item.Position,
		})
	}

	writeJSON(w, http.StatusOK, occurrenceDetailResponse{
		Occurrence: toOccurrenceResponse(detail.Occurrence),
		Roster:     roster,
		Structure:  structure,
	})
}

func (h *Handlers) EditOccurrence(w http.ResponseWriter, r *http.Request) {
	occurrenceID := strings.TrimSpace(chi.URLParam(r, "id"))
	if occurrenceID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}

	var req editOccurrenceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	input := scheduledomain.EditOccurrenceInput{
		OccurrenceID:    occurrenceID,
		Version:         req.Version,
		Title:           req.Title,
		Location:        req.Location,
		Notes:           req.Notes,
		DurationMinutes: req.DurationMinutes,
		Status:          req.Status,
		Structure:       toStructureUpdate(req.Structure),
	}
	if req.StartsAt != nil {
		startsAt, err := parseTimestampRequired(*req.StartsAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid starts_at")
			return
		}
		input.StartsAt = &startsAt
	}
	if req.Roster != nil {
		input.Roster = &scheduledomain.RosterUpdate{
			Members: toRosterMembers(req.Roster.Members),
			Coaches: req.Roster.Coaches,
		}
	}

	result, err := h.Schedule.EditOccurrence(r.Context(), input)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	response := editOccurrenceResponse{Occurrence: toOccurrenceResponse(result.Occurrence)}
	if result.Propagation != nil {
		response.Propagation = toPropagationResponse(*result.Propagation)
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *Handlers) DeleteOccurrence(w http.ResponseWriter, r *http.Request) {
	occurrenceID := strings.TrimSpace(chi.URLParam(r, "id"))
	if occurrenceID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "id is required")
		return
	}

	if err := h.Schedule.DeleteOccurrence(r.Context(), occurrenceID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) DeleteGroupFuture(w http.ResponseWriter, r *http.Request) {
	groupID := strings.TrimSpace(chi.URLParam(r, "group_id"))
	if groupID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "group_id is required")
		return
	}

	count, err := h.Schedule.DeleteGroupKeepHistory(r.Context(), groupID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": count})
}

func (h *Handlers) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduledomain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, scheduledomain.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, "series_not_found", "series not found")
	case errors.Is(err, scheduledomain.ErrOccurrenceNotFound):
		writeError(w, http.StatusNotFound, "occurrence_not_found", "occurrence not found")
	case errors.Is(err, scheduledomain.ErrVersionConflict):
		writeError(w, http.StatusConflict, "conflict", "record was modified concurrently; reload and retry")
	default:
		h.log.InternalError("schedule request failed", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func toRuleInput(req ruleRequest) (scheduledomain.RuleInput, error) {
	startDate, err := parseDateRequired(req.StartDate)
	if err != nil {
		return scheduledomain.RuleInput{}, err
	}
	endDate, err := parseDateRequired(req.EndDate)
	if err != nil {
		return scheduledomain.RuleInput{}, err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	return scheduledomain.RuleInput{
		GroupID:         req.GroupID,
		ClubID:          req.ClubID,
		ActivityType:    req.ActivityType,
		Title:           req.Title,
		Location:        req.Location,
		Notes:           req.Notes,
		DurationMinutes: req.DurationMinutes,
		Weekday:         req.Weekday,
		TimeOfDay:       req.TimeOfDay,
		IntervalWeeks:   req.IntervalWeeks,
		StartDate:       startDate,
		EndDate:         endDate,
		IsActive:        isActive,
	}, nil
}

func toRosterMembers(requests []rosterMemberRequest) []scheduledomain.RosterMember {
	members := make([]scheduledomain.RosterMember, 0, len(requests))
	for _, req := range requests {
		members = append(members, scheduledomain.RosterMember{
			PersonID: req.PersonID,
			Role:     req.Role,
		})
	}
	return members
}

func toStructureUpdate(req structureRequest) scheduledomain.StructureUpdate {
	items := make([]scheduledomain.StructureItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, scheduledomain.StructureItemInput{
			Category: item.Category,
			Minutes:  item.Minutes,
			Note:     item.Note,
		})
	}
	return scheduledomain.StructureUpdate{Items: items, Clear: req.Clear}
}

func toRuleResponse(rule scheduledomain.RecurrenceRule) ruleResponse {
	return ruleResponse{
		ID:              rule.ID,
		GroupID:         rule.GroupID,
		ClubID:          rule.ClubID,
		ActivityType:    rule.ActivityType,
		Title:           rule.Title,
		Location:        rule.Location,
		Notes:           rule.Notes,
		DurationMinutes: rule.DurationMinutes,
		Weekday:         rule.Weekday,
		TimeOfDay:       rule.TimeOfDay,
		IntervalWeeks:   rule.IntervalWeeks,
		StartDate:       rule.StartDate.Format("2006-01-02"),
		EndDate:         rule.EndDate.Format("2006-01-02"),
		IsActive:        rule.IsActive,
		Version:         rule.Version,
	}
}

func toOccurrenceResponse(occurrence scheduledomain.Occurrence) occurrenceResponse {
	return occurrenceResponse{
		ID:              occurrence.ID,
		RuleID:          occurrence.RuleID,
		GroupID:         occurrence.GroupID,
		ClubID:          occurrence.ClubID,
		ActivityType:    occurrence.ActivityType,
		Title:           occurrence.Title,
		Location:        occurrence.Location,
		Notes:           occurrence.Notes,
		StartsAt:        occurrence.StartsAt.Format(time.RFC3339),
		EndsAt:          occurrence.EndsAt.Format(time.RFC3339),
		DurationMinutes: occurrence.DurationMinutes,
		Status:          occurrence.Status,
		Version:         occurrence.Version,
	}
}

func toPropagationResponse(report scheduledomain.PropagationReport) *propagationResponse {
	response := &propagationResponse{
		Targets: report.Targets,
		Updated: report.Updated,
	}
	for _, failure := range report.Failed {
		response.Failed = append(response.Failed, propagationFailureResponse{
			OccurrenceID: failure.OccurrenceID,
			Error:        failure.Err.Error(),
		})
	}
	return response
}
