package rules

import (
	"time"

	"github.com/google/uuid"

	"github.com/acme/engagement-compliance/internal/domain"
	apperrors "github.com/acme/engagement-compliance/pkg/errors"
)

// Patch carries a partial rules update. Nil fields keep their stored value;
// business hours are replaced as a whole.
type Patch struct {
	EnableAfterHoursHandling   *bool
	EnableTCPAHandling         *bool
	EnableResubmissionHandling *bool

	AfterHoursAction             *domain.AfterHoursAction
	AfterHoursBusinessHours      *domain.BusinessHours
	AfterHoursRescheduleTime     *string
	AfterHoursDefaultEventTypeID *uuid.UUID

	TCPAViolationAction    *domain.TCPAAction
	TCPARescheduleTime     *string
	TCPADefaultEventTypeID *uuid.UUID

	ResubmissionAction               *domain.ResubmissionAction
	ResubmissionDetectionWindowHours *int
	ResubmissionRescheduleDelayHours *int
	ResubmissionDefaultEventTypeID   *uuid.UUID
}

// Apply merges the set fields into r.
func (p Patch) Apply(r *domain.ExecutionRules) {
	setBool(&r.EnableAfterHoursHandling, p.EnableAfterHoursHandling)
	setBool(&r.EnableTCPAHandling, p.EnableTCPAHandling)
	setBool(&r.EnableResubmissionHandling, p.EnableResubmissionHandling)

	if p.AfterHoursAction != nil {
		r.AfterHoursAction = *p.AfterHoursAction
	}
	if p.AfterHoursBusinessHours != nil {
		bh := *p.AfterHoursBusinessHours
		bh.DaysOfWeek = append([]time.Weekday(nil), p.AfterHoursBusinessHours.DaysOfWeek...)
		r.AfterHoursBusinessHours = &bh
	}
	setString(&r.AfterHoursRescheduleTime, p.AfterHoursRescheduleTime)
	setID(&r.AfterHoursDefaultEventTypeID, p.AfterHoursDefaultEventTypeID)

	if p.TCPAViolationAction != nil {
		r.TCPAViolationAction = *p.TCPAViolationAction
	}
	setString(&r.TCPARescheduleTime, p.TCPARescheduleTime)
	setID(&r.TCPADefaultEventTypeID, p.TCPADefaultEventTypeID)

	if p.ResubmissionAction != nil {
		r.ResubmissionAction = *p.ResubmissionAction
	}
	setInt(&r.ResubmissionDetectionWindowHours, p.ResubmissionDetectionWindowHours)
	setInt(&r.ResubmissionRescheduleDelayHours, p.ResubmissionRescheduleDelayHours)
	setID(&r.ResubmissionDefaultEventTypeID, p.ResubmissionDefaultEventTypeID)
}

// Validate checks a full rules value before it is persisted.
func Validate(r *domain.ExecutionRules) error {
	if !r.AfterHoursAction.Valid() {
		return apperrors.Validationf("unknown after hours action %q", r.AfterHoursAction)
	}
	if !r.TCPAViolationAction.Valid() {
		return apperrors.Validationf("unknown tcpa action %q", r.TCPAViolationAction)
	}
	if !r.ResubmissionAction.Valid() {
		return apperrors.Validationf("unknown resubmission action %q", r.ResubmissionAction)
	}

	if bh := r.AfterHoursBusinessHours; bh != nil {
		if bh.StartHour < 0 || bh.StartHour > 23 || bh.EndHour < 0 || bh.EndHour > 23 {
			return apperrors.Validationf("business hours must be between 0 and 23")
		}
		if bh.StartHour >= bh.EndHour {
			return apperrors.Validationf("business start hour %d must be before end hour %d", bh.StartHour, bh.EndHour)
		}
		for _, d := range bh.DaysOfWeek {
			if d < time.Sunday || d > time.Saturday {
				return apperrors.Validationf("invalid weekday %d", d)
			}
		}
		if bh.Timezone != "" {
			if _, err := time.LoadLocation(bh.Timezone); err != nil {
				return apperrors.Validationf("invalid time zone %s: %v", bh.Timezone, err)
			}
		}
	}

	for _, clock := range []string{r.AfterHoursRescheduleTime, r.TCPARescheduleTime} {
		if clock == "" {
			continue
		}
		if _, _, err := domain.ParseClock(clock); err != nil {
			return apperrors.Validationf("%v", err)
		}
	}

	if r.ResubmissionDetectionWindowHours < 0 {
		return apperrors.Validationf("detection window must not be negative")
	}
	if r.ResubmissionRescheduleDelayHours < 0 {
		return apperrors.Validationf("reschedule delay must not be negative")
	}
	return nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setID(dst **uuid.UUID, v *uuid.UUID) {
	if v != nil {
		id := *v
		*dst = &id
	}
}
