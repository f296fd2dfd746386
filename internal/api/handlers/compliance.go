package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/engagement-compliance/internal/domain"
	"github.com/acme/engagement-compliance/internal/service/gate"
	"github.com/acme/engagement-compliance/internal/timezone"
)

type evaluateRequest struct {
	Kind              string            `json:"kind"`
	Candidate         *time.Time        `json:"candidate"`
	Timezone          string            `json:"timezone"`
	PriorSubmissionAt *time.Time        `json:"prior_submission_at"`
	TCPAViolation     *bool             `json:"tcpa_violation"`
	SubjectID         string            `json:"subject_id"`
	JourneyID         string            `json:"journey_id"`
	Metadata          map[string]string `json:"metadata"`
}

type outcomeResponse struct {
	Kind        domain.OutcomeKind `json:"kind"`
	Action      string             `json:"action,omitempty"`
	At          *time.Time         `json:"at,omitempty"`
	EventTypeID *uuid.UUID         `json:"event_type_id,omitempty"`
}

type decisionResponse struct {
	ID          uuid.UUID        `json:"id"`
	TenantID    uuid.UUID        `json:"tenant_id"`
	Kind        domain.CheckKind `json:"kind"`
	SubjectID   string           `json:"subject_id,omitempty"`
	JourneyID   string           `json:"journey_id,omitempty"`
	CandidateAt time.Time        `json:"candidate_at"`
	Outcome     outcomeResponse  `json:"outcome"`
	CreatedAt   time.Time        `json:"created_at"`
}

type listDecisionsResponse struct {
	Decisions []decisionResponse `json:"decisions"`
	NextPage  string             `json:"next_page_token,omitempty"`
}

type afterHoursRequest struct {
	Candidate *time.Time `json:"candidate"`
	Timezone  string     `json:"timezone"`
}

type afterHoursResponse struct {
	AfterHours        bool       `json:"after_hours"`
	EffectiveTimezone string     `json:"effective_timezone"`
	NextAvailableAt   *time.Time `json:"next_available_at,omitempty"`
}

func (h *HandlerSet) evaluate(ctx *fiber.Ctx) error {
	tenantID, err := tenantParam(ctx)
	if err != nil {
		return err
	}

	var req evaluateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	in := gate.EvaluateInput{
		TenantID:          tenantID,
		Kind:              domain.CheckKind(strings.ToLower(req.Kind)),
		Timezone:          req.Timezone,
		PriorSubmissionAt: req.PriorSubmissionAt,
		TCPAViolation:     req.TCPAViolation,
		SubjectID:         req.SubjectID,
		JourneyID:         req.JourneyID,
		Metadata:          req.Metadata,
	}
	if req.Candidate != nil {
		in.Candidate = *req.Candidate
	}

	decision, err := h.gate.Evaluate(ctx.UserContext(), in)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toDecisionResponse(*decision))
}

func (h *HandlerSet) checkAfterHours(ctx *fiber.Ctx) error {
	tenantID, err := tenantParam(ctx)
	if err != nil {
		return err
	}

	var req afterHoursRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	candidate := h.now().UTC()
	if req.Candidate != nil {
		candidate = *req.Candidate
	}

	r, err := h.rules.Get(ctx.UserContext(), tenantID)
	if err != nil {
		return translateError(err)
	}

	resp := afterHoursResponse{
		AfterHours:        h.afterHours.IsAfterHours(candidate, r, req.Timezone),
		EffectiveTimezone: h.afterHours.EffectiveZone(r, req.Timezone),
	}
	if resp.AfterHours && r.AfterHoursAction.Reschedules() {
		next := h.afterHours.NextAvailableInstant(candidate, r, req.Timezone).UTC()
		resp.NextAvailableAt = &next
	}
	return ctx.JSON(resp)
}

func (h *HandlerSet) listDecisions(ctx *fiber.Ctx) error {
	tenantID, err := tenantParam(ctx)
	if err != nil {
		return err
	}

	day := h.now().UTC()
	if raw := ctx.Query("day"); raw != "" {
		date, err := timezone.ParseDate(raw)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid day")
		}
		day = time.Date(date.Year, date.Month, date.Day, 0, 0, 0, 0, time.UTC)
	}

	res, err := h.gate.ListDecisions(ctx.UserContext(), tenantID, day, ctx.QueryInt("limit", 0), ctx.Query("page_token"))
	if err != nil {
		return translateError(err)
	}

	resp := listDecisionsResponse{
		Decisions: make([]decisionResponse, 0, len(res.Decisions)),
		NextPage:  res.NextPageToken,
	}
	for _, d := range res.Decisions {
		resp.Decisions = append(resp.Decisions, toDecisionResponse(d))
	}
	return ctx.JSON(resp)
}

func toDecisionResponse(d domain.Decision) decisionResponse {
	resp := decisionResponse{
		ID:          d.ID,
		TenantID:    d.TenantID,
		Kind:        d.Kind,
		SubjectID:   d.SubjectID,
		JourneyID:   d.JourneyID,
		CandidateAt: d.CandidateAt,
		Outcome: outcomeResponse{
			Kind:        d.Outcome.Kind,
			Action:      d.Outcome.Action,
			EventTypeID: d.Outcome.EventTypeID,
		},
		CreatedAt: d.CreatedAt,
	}
	if !d.Outcome.At.IsZero() {
		at := d.Outcome.At.UTC()
		resp.Outcome.At = &at
	}
	return resp
}
