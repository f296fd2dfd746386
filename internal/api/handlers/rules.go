package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/engagement-compliance/internal/domain"
	"github.com/acme/engagement-compliance/internal/rules"
	apperrors "github.com/acme/engagement-compliance/pkg/errors"
)

type businessHoursPayload struct {
	StartHour  int      `json:"start_hour"`
	EndHour    int      `json:"end_hour"`
	DaysOfWeek []string `json:"days_of_week"`
	Timezone   string   `json:"timezone,omitempty"`
}

type updateRulesRequest struct {
	EnableAfterHoursHandling   *bool `json:"enable_after_hours_handling"`
	EnableTCPAHandling         *bool `json:"enable_tcpa_handling"`
	EnableResubmissionHandling *bool `json:"enable_resubmission_handling"`

	AfterHoursAction             *string               `json:"after_hours_action"`
	AfterHoursBusinessHours      *businessHoursPayload `json:"after_hours_business_hours"`
	AfterHoursRescheduleTime     *string               `json:"after_hours_reschedule_time"`
	AfterHoursDefaultEventTypeID *uuid.UUID            `json:"after_hours_default_event_type_id"`

	TCPAViolationAction    *string    `json:"tcpa_violation_action"`
	TCPARescheduleTime     *string    `json:"tcpa_reschedule_time"`
	TCPADefaultEventTypeID *uuid.UUID `json:"tcpa_default_event_type_id"`

	ResubmissionAction               *string    `json:"resubmission_action"`
	ResubmissionDetectionWindowHours *int       `json:"resubmission_detection_window_hours"`
	ResubmissionRescheduleDelayHours *int       `json:"resubmission_reschedule_delay_hours"`
	ResubmissionDefaultEventTypeID   *uuid.UUID `json:"resubmission_default_event_type_id"`
}

type rulesResponse struct {
	TenantID uuid.UUID `json:"tenant_id"`

	EnableAfterHoursHandling   bool `json:"enable_after_hours_handling"`
	EnableTCPAHandling         bool `json:"enable_tcpa_handling"`
	EnableResubmissionHandling bool `json:"enable_resubmission_handling"`

	AfterHoursAction             string                `json:"after_hours_action"`
	AfterHoursBusinessHours      *businessHoursPayload `json:"after_hours_business_hours,omitempty"`
	AfterHoursRescheduleTime     string                `json:"after_hours_reschedule_time,omitempty"`
	AfterHoursDefaultEventTypeID *uuid.UUID            `json:"after_hours_default_event_type_id,omitempty"`

	TCPAViolationAction    string     `json:"tcpa_violation_action"`
	TCPARescheduleTime     string     `json:"tcpa_reschedule_time,omitempty"`
	TCPADefaultEventTypeID *uuid.UUID `json:"tcpa_default_event_type_id,omitempty"`

	ResubmissionAction               string     `json:"resubmission_action"`
	ResubmissionDetectionWindowHours int        `json:"resubmission_detection_window_hours"`
	ResubmissionRescheduleDelayHours int        `json:"resubmission_reschedule_delay_hours"`
	ResubmissionDefaultEventTypeID   *uuid.UUID `json:"resubmission_default_event_type_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *HandlerSet) getRules(ctx *fiber.Ctx) error {
	tenantID, err := tenantParam(ctx)
	if err != nil {
		return err
	}

	r, err := h.rules.Get(ctx.UserContext(), tenantID)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toRulesResponse(r))
}

func (h *HandlerSet) updateRules(ctx *fiber.Ctx) error {
	tenantID, err := tenantParam(ctx)
	if err != nil {
		return err
	}

	var req updateRulesRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	patch, err := toPatch(req)
	if err != nil {
		return translateError(err)
	}

	r, err := h.rules.Update(ctx.UserContext(), tenantID, patch)
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toRulesResponse(r))
}

func toPatch(req updateRulesRequest) (rules.Patch, error) {
	patch := rules.Patch{
		EnableAfterHoursHandling:         req.EnableAfterHoursHandling,
		EnableTCPAHandling:               req.EnableTCPAHandling,
		EnableResubmissionHandling:       req.EnableResubmissionHandling,
		AfterHoursRescheduleTime:         req.AfterHoursRescheduleTime,
		AfterHoursDefaultEventTypeID:     req.AfterHoursDefaultEventTypeID,
		TCPARescheduleTime:               req.TCPARescheduleTime,
		TCPADefaultEventTypeID:           req.TCPADefaultEventTypeID,
		ResubmissionDetectionWindowHours: req.ResubmissionDetectionWindowHours,
		ResubmissionRescheduleDelayHours: req.ResubmissionRescheduleDelayHours,
		ResubmissionDefaultEventTypeID:   req.ResubmissionDefaultEventTypeID,
	}

	if req.AfterHoursAction != nil {
		action := domain.AfterHoursAction(strings.ToUpper(*req.AfterHoursAction))
		patch.AfterHoursAction = &action
	}
	if req.TCPAViolationAction != nil {
		action := domain.TCPAAction(strings.ToUpper(*req.TCPAViolationAction))
		patch.TCPAViolationAction = &action
	}
	if req.ResubmissionAction != nil {
		action := domain.ResubmissionAction(strings.ToUpper(*req.ResubmissionAction))
		patch.ResubmissionAction = &action
	}

	if bh := req.AfterHoursBusinessHours; bh != nil {
		days := make([]time.Weekday, 0, len(bh.DaysOfWeek))
		for _, name := range bh.DaysOfWeek {
			day, err := domain.ParseWeekday(name)
			if err != nil {
				return rules.Patch{}, apperrors.Validationf("invalid day of week %q", name)
			}
			days = append(days, day)
		}
		patch.AfterHoursBusinessHours = &domain.BusinessHours{
			StartHour:  bh.StartHour,
			EndHour:    bh.EndHour,
			DaysOfWeek: days,
			Timezone:   bh.Timezone,
		}
	}

	return patch, nil
}

func toRulesResponse(r *domain.ExecutionRules) rulesResponse {
	resp := rulesResponse{
		TenantID:                         r.TenantID,
		EnableAfterHoursHandling:         r.EnableAfterHoursHandling,
		EnableTCPAHandling:               r.EnableTCPAHandling,
		EnableResubmissionHandling:       r.EnableResubmissionHandling,
		AfterHoursAction:                 string(r.AfterHoursAction),
		AfterHoursRescheduleTime:         r.AfterHoursRescheduleTime,
		AfterHoursDefaultEventTypeID:     r.AfterHoursDefaultEventTypeID,
		TCPAViolationAction:              string(r.TCPAViolationAction),
		TCPARescheduleTime:               r.TCPARescheduleTime,
		TCPADefaultEventTypeID:           r.TCPADefaultEventTypeID,
		ResubmissionAction:               string(r.ResubmissionAction),
		ResubmissionDetectionWindowHours: r.ResubmissionDetectionWindowHours,
		ResubmissionRescheduleDelayHours: r.ResubmissionRescheduleDelayHours,
		ResubmissionDefaultEventTypeID:   r.ResubmissionDefaultEventTypeID,
		CreatedAt:                        r.CreatedAt,
		UpdatedAt:                        r.UpdatedAt,
	}
	if bh := r.AfterHoursBusinessHours; bh != nil {
		days := make([]string, 0, len(bh.DaysOfWeek))
		for _, d := range bh.DaysOfWeek {
			days = append(days, domain.WeekdayName(d))
		}
		resp.AfterHoursBusinessHours = &businessHoursPayload{
			StartHour:  bh.StartHour,
			EndHour:    bh.EndHour,
			DaysOfWeek: days,
			Timezone:   bh.Timezone,
		}
	}
	return resp
}
