// Package compliance decides whether a send time is usable under a tenant's
// business-hours, TCPA and resubmission rules, and what to do when it is not.
package compliance

import (
	"time"

	"go.uber.org/zap"

	"github.com/acme/engagement-compliance/internal/domain"
	"github.com/acme/engagement-compliance/internal/timezone"
)

// maxDaySearch bounds the scan for an allowed weekday.
const maxDaySearch = 7

// AfterHours evaluates instants against business hours.
type AfterHours struct {
	tz          *timezone.Resolver
	defaultZone string
	logger      *zap.Logger
}

// NewAfterHours constructs the resolver. defaultZone is used when neither the
// caller nor the rules name a zone; empty means America/New_York.
func NewAfterHours(tz *timezone.Resolver, defaultZone string, logger *zap.Logger) *AfterHours {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultZone == "" {
		defaultZone = domain.DefaultBusinessHoursTimezoneName
	}
	return &AfterHours{tz: tz, defaultZone: defaultZone, logger: logger}
}

// EffectiveZone resolves the zone business hours are evaluated in:
// explicit tenant zone, then the rules' zone, then the default.
func (a *AfterHours) EffectiveZone(rules *domain.ExecutionRules, tenantTimezone string) string {
	return timezone.First(
		timezone.Static(tenantTimezone),
		func() string {
			if rules == nil || rules.AfterHoursBusinessHours == nil {
				return ""
			}
			return rules.AfterHoursBusinessHours.Timezone
		},
		timezone.Static(a.defaultZone),
	)
}

// IsAfterHours reports whether instant falls outside the configured window.
// Handling disabled or no business hours configured means never after hours.
func (a *AfterHours) IsAfterHours(instant time.Time, rules *domain.ExecutionRules, tenantTimezone string) bool {
	if rules == nil || !rules.EnableAfterHoursHandling || rules.AfterHoursBusinessHours == nil {
		return false
	}
	bh := *rules.AfterHoursBusinessHours
	wc := a.tz.WallClock(instant, a.EffectiveZone(rules, tenantTimezone))

	if wc.Hour < bh.StartHour || wc.Hour >= bh.EndHour {
		return true
	}
	return !bh.Allows(wc.Weekday)
}

// NextAvailableInstant computes the reschedule target for the configured
// after-hours action. Targets are computed from the current time, not from
// instant; actions that do not reschedule return instant unchanged.
func (a *AfterHours) NextAvailableInstant(instant time.Time, rules *domain.ExecutionRules, tenantTimezone string) time.Time {
	if rules == nil {
		return instant
	}
	return a.reschedule(instant, rules.AfterHoursAction, rules, rules.AfterHoursRescheduleTime, tenantTimezone)
}

func (a *AfterHours) reschedule(instant time.Time, action domain.AfterHoursAction, rules *domain.ExecutionRules, specificTime, tenantTimezone string) time.Time {
	bh := businessHoursOrDefault(rules)
	zone := a.EffectiveZone(rules, tenantTimezone)

	now := a.tz.Now()
	wc := a.tz.WallClock(now, zone)
	today := a.tz.DateParts(now, zone)

	switch action {
	case domain.AfterHoursRescheduleNextAvailable:
		if wc.Hour < bh.EndHour && bh.Allows(wc.Weekday) && wc.Hour < bh.StartHour {
			return a.tz.ToUTC(today, bh.StartHour, 0, zone)
		}
		return a.tz.ToUTC(a.nextAllowedDay(today.AddDays(1), bh), bh.StartHour, 0, zone)

	case domain.AfterHoursRescheduleNextBusinessDay:
		return a.tz.ToUTC(a.nextAllowedDay(today.AddDays(1), bh), bh.StartHour, 0, zone)

	case domain.AfterHoursRescheduleSpecificTime:
		hour, minute, err := domain.ParseClock(specificTime)
		if err != nil {
			a.logger.Warn("after hours: invalid reschedule time, using business start",
				zap.String("reschedule_time", specificTime), zap.Error(err))
			hour, minute = bh.StartHour, 0
		}
		day := today
		if wc.MinuteOfDay() >= hour*60+minute {
			day = today.AddDays(1)
		}
		return a.tz.ToUTC(a.nextAllowedDay(day, bh), hour, minute, zone)
	}

	return instant
}

func (a *AfterHours) nextAllowedDay(from timezone.Date, bh domain.BusinessHours) timezone.Date {
	day := from
	for i := 0; i < maxDaySearch; i++ {
		if bh.Allows(day.Weekday()) {
			return day
		}
		day = day.AddDays(1)
	}
	a.logger.Warn("after hours: no allowed weekday configured, using next calendar day")
	return from
}

func businessHoursOrDefault(rules *domain.ExecutionRules) domain.BusinessHours {
	if rules != nil && rules.AfterHoursBusinessHours != nil {
		return *rules.AfterHoursBusinessHours
	}
	return domain.DefaultBusinessHours()
}
