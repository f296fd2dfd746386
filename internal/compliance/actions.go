package compliance

import (
	"time"

	"github.com/acme/engagement-compliance/internal/domain"
	"github.com/acme/engagement-compliance/internal/timezone"
)

// TCPAContext describes a send that has been found to violate TCPA rules.
type TCPAContext struct {
	Candidate time.Time
	Timezone  string
}

// ResubmissionContext describes a detected resubmission.
type ResubmissionContext struct {
	Candidate         time.Time
	PriorSubmissionAt *time.Time
}

// ActionResolver maps a tenant's configured actions to outcomes.
type ActionResolver struct {
	afterHours *AfterHours
	tz         *timezone.Resolver
}

// NewActionResolver builds a resolver sharing the after-hours reschedule logic.
func NewActionResolver(afterHours *AfterHours, tz *timezone.Resolver) *ActionResolver {
	return &ActionResolver{afterHours: afterHours, tz: tz}
}

// AfterHours exposes the underlying business-hours resolver.
func (r *ActionResolver) AfterHours() *AfterHours {
	return r.afterHours
}

// ResolveAfterHours returns continue when candidate is inside business hours,
// otherwise the outcome of the configured after-hours action.
func (r *ActionResolver) ResolveAfterHours(rules *domain.ExecutionRules, candidate time.Time, tenantTimezone string) domain.Outcome {
	if !r.afterHours.IsAfterHours(candidate, rules, tenantTimezone) {
		return domain.Outcome{Kind: domain.OutcomeContinue}
	}

	action := rules.AfterHoursAction
	out := domain.Outcome{Action: string(action)}
	switch action {
	case domain.AfterHoursRescheduleNextAvailable, domain.AfterHoursRescheduleNextBusinessDay, domain.AfterHoursRescheduleSpecificTime:
		out.Kind = domain.OutcomeReschedule
		out.At = r.afterHours.NextAvailableInstant(candidate, rules, tenantTimezone)
	case domain.AfterHoursPauseJourney:
		out.Kind = domain.OutcomePause
	case domain.AfterHoursDefaultEvent:
		out.Kind = domain.OutcomeUseDefaultEvent
		out.EventTypeID = rules.AfterHoursDefaultEventTypeID
	default:
		out.Kind = domain.OutcomeSkip
	}
	return out
}

// ResolveTCPA maps an already detected TCPA violation to an outcome. Unknown
// actions block.
func (r *ActionResolver) ResolveTCPA(rules *domain.ExecutionRules, in TCPAContext) domain.Outcome {
	if rules == nil || !rules.EnableTCPAHandling {
		return domain.Outcome{Kind: domain.OutcomeContinue}
	}

	action := rules.TCPAViolationAction
	out := domain.Outcome{Action: string(action)}
	switch action {
	case domain.TCPARescheduleNextAvailable:
		out.Kind = domain.OutcomeReschedule
		out.At = r.clampToTCPAWindow(r.afterHours.reschedule(in.Candidate, domain.AfterHoursRescheduleNextAvailable, rules, rules.TCPARescheduleTime, in.Timezone), rules, in.Timezone)
	case domain.TCPARescheduleNextBusinessDay:
		out.Kind = domain.OutcomeReschedule
		out.At = r.clampToTCPAWindow(r.afterHours.reschedule(in.Candidate, domain.AfterHoursRescheduleNextBusinessDay, rules, rules.TCPARescheduleTime, in.Timezone), rules, in.Timezone)
	case domain.TCPASkipNode:
		out.Kind = domain.OutcomeSkip
	case domain.TCPAPauseJourney:
		out.Kind = domain.OutcomePause
	case domain.TCPADefaultEvent:
		out.Kind = domain.OutcomeUseDefaultEvent
		out.EventTypeID = rules.TCPADefaultEventTypeID
	default:
		out.Kind = domain.OutcomeBlock
	}
	return out
}

// ResolveResubmission maps an already detected resubmission to an outcome.
// RESCHEDULE_DELAY is relative to now and ignores business hours.
func (r *ActionResolver) ResolveResubmission(rules *domain.ExecutionRules, in ResubmissionContext) domain.Outcome {
	if rules == nil || !rules.EnableResubmissionHandling {
		return domain.Outcome{Kind: domain.OutcomeContinue}
	}

	action := rules.ResubmissionAction
	out := domain.Outcome{Action: string(action)}
	switch action {
	case domain.ResubmissionRescheduleDelay:
		hours := rules.ResubmissionRescheduleDelayHours
		if hours <= 0 {
			hours = domain.DefaultRescheduleDelayHours
		}
		out.Kind = domain.OutcomeReschedule
		out.At = r.tz.Now().UTC().Add(time.Duration(hours) * time.Hour)
	case domain.ResubmissionPauseJourney:
		out.Kind = domain.OutcomePause
	case domain.ResubmissionDefaultEvent:
		out.Kind = domain.OutcomeUseDefaultEvent
		out.EventTypeID = rules.ResubmissionDefaultEventTypeID
	case domain.ResubmissionContinue:
		out.Kind = domain.OutcomeContinue
	default:
		out.Kind = domain.OutcomeSkip
	}
	return out
}

// IsResubmission reports whether candidate falls within the detection window
// of a prior submission.
func (r *ActionResolver) IsResubmission(rules *domain.ExecutionRules, prior *time.Time, candidate time.Time) bool {
	if rules == nil || !rules.EnableResubmissionHandling || prior == nil || rules.ResubmissionDetectionWindowHours <= 0 {
		return false
	}
	gap := candidate.Sub(*prior)
	if gap < 0 {
		gap = -gap
	}
	return gap <= time.Duration(rules.ResubmissionDetectionWindowHours)*time.Hour
}

// Federal calling window applied by IsTCPAViolation, in the recipient's local time.
const (
	TCPAWindowStartHour = 8
	TCPAWindowEndHour   = 21
)

// IsTCPAViolation reports whether candidate falls outside 08:00-21:00 in the
// recipient zone. The window applies on every day of the week.
func (r *ActionResolver) IsTCPAViolation(rules *domain.ExecutionRules, candidate time.Time, recipientTimezone string) bool {
	if rules == nil || !rules.EnableTCPAHandling {
		return false
	}
	wc := r.tz.WallClock(candidate, r.afterHours.EffectiveZone(rules, recipientTimezone))
	return wc.Hour < TCPAWindowStartHour || wc.Hour >= TCPAWindowEndHour
}

// clampToTCPAWindow moves a reschedule target that lands outside the calling
// window to the next window opening, so a rescheduled send is never detected
// as a violation again.
func (r *ActionResolver) clampToTCPAWindow(target time.Time, rules *domain.ExecutionRules, recipientTimezone string) time.Time {
	zone := r.afterHours.EffectiveZone(rules, recipientTimezone)
	wc := r.tz.WallClock(target, zone)
	day := r.tz.DateParts(target, zone)
	switch {
	case wc.Hour < TCPAWindowStartHour:
		return r.tz.ToUTC(day, TCPAWindowStartHour, 0, zone)
	case wc.Hour >= TCPAWindowEndHour:
		return r.tz.ToUTC(day.AddDays(1), TCPAWindowStartHour, 0, zone)
	}
	return target
}
