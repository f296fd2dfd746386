package compliance

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/engagement-compliance/internal/domain"
	"github.com/acme/engagement-compliance/internal/timezone"
)

func newTestActionResolver(now time.Time) *ActionResolver {
	tz := timezone.NewResolver(nil, fixedClock(now))
	return NewActionResolver(NewAfterHours(tz, "", nil), tz)
}

func TestResolveAfterHours(t *testing.T) {
	// Tue 2024-07-09 10:00 EDT.
	now := utc(2024, time.July, 9, 14, 0)
	r := newTestActionResolver(now)
	saturday := utc(2024, time.July, 13, 16, 0)

	t.Run("inside business hours continues", func(t *testing.T) {
		out := r.ResolveAfterHours(rulesWithAction(domain.AfterHoursSkipNode), now, "")
		assert.Equal(t, domain.OutcomeContinue, out.Kind)
	})

	t.Run("reschedule carries target", func(t *testing.T) {
		out := r.ResolveAfterHours(rulesWithAction(domain.AfterHoursRescheduleNextBusinessDay), saturday, "")
		assert.Equal(t, domain.OutcomeReschedule, out.Kind)
		assert.Equal(t, utc(2024, time.July, 10, 12, 0), out.At)
		assert.Equal(t, string(domain.AfterHoursRescheduleNextBusinessDay), out.Action)
	})

	t.Run("default event carries event type", func(t *testing.T) {
		rules := rulesWithAction(domain.AfterHoursDefaultEvent)
		id := uuid.New()
		rules.AfterHoursDefaultEventTypeID = &id

		out := r.ResolveAfterHours(rules, saturday, "")
		assert.Equal(t, domain.OutcomeUseDefaultEvent, out.Kind)
		require.NotNil(t, out.EventTypeID)
		assert.Equal(t, id, *out.EventTypeID)
	})

	t.Run("pause and skip", func(t *testing.T) {
		assert.Equal(t, domain.OutcomePause, r.ResolveAfterHours(rulesWithAction(domain.AfterHoursPauseJourney), saturday, "").Kind)
		assert.Equal(t, domain.OutcomeSkip, r.ResolveAfterHours(rulesWithAction(domain.AfterHoursSkipNode), saturday, "").Kind)
		assert.Equal(t, domain.OutcomeSkip, r.ResolveAfterHours(rulesWithAction("BOGUS"), saturday, "").Kind)
	})
}

func TestResolveTCPA(t *testing.T) {
	// Fri 2024-03-08 22:00 EST.
	now := utc(2024, time.March, 9, 3, 0)
	r := newTestActionResolver(now)
	in := TCPAContext{Candidate: now}

	rulesFor := func(action domain.TCPAAction) *domain.ExecutionRules {
		rules := rulesWithAction(domain.AfterHoursSkipNode)
		rules.TCPAViolationAction = action
		return rules
	}

	t.Run("defaults block", func(t *testing.T) {
		rules := domain.DefaultExecutionRules(uuid.New(), now)
		assert.Equal(t, domain.OutcomeBlock, r.ResolveTCPA(rules, in).Kind)
	})

	t.Run("disabled continues", func(t *testing.T) {
		rules := rulesFor(domain.TCPABlock)
		rules.EnableTCPAHandling = false
		assert.Equal(t, domain.OutcomeContinue, r.ResolveTCPA(rules, in).Kind)
	})

	t.Run("next business day", func(t *testing.T) {
		out := r.ResolveTCPA(rulesFor(domain.TCPARescheduleNextBusinessDay), in)
		assert.Equal(t, domain.OutcomeReschedule, out.Kind)
		assert.Equal(t, utc(2024, time.March, 11, 12, 0), out.At)
	})

	t.Run("next available honours explicit zone", func(t *testing.T) {
		out := r.ResolveTCPA(rulesFor(domain.TCPARescheduleNextAvailable), TCPAContext{Candidate: now, Timezone: "America/Los_Angeles"})
		assert.Equal(t, domain.OutcomeReschedule, out.Kind)
		// Fri 19:00 PST, next allowed start is Mon 08:00 PDT.
		assert.Equal(t, utc(2024, time.March, 11, 15, 0), out.At)
	})

	t.Run("early business start is clamped to calling window", func(t *testing.T) {
		rules := rulesFor(domain.TCPARescheduleNextBusinessDay)
		rules.AfterHoursBusinessHours.StartHour = 7

		out := r.ResolveTCPA(rules, in)
		assert.Equal(t, domain.OutcomeReschedule, out.Kind)
		// Mon 07:00 EDT moves to 08:00 EDT.
		assert.Equal(t, utc(2024, time.March, 11, 12, 0), out.At)
		assert.False(t, r.IsTCPAViolation(rules, out.At, ""))
	})

	t.Run("late business start moves to next morning", func(t *testing.T) {
		rules := rulesFor(domain.TCPARescheduleNextAvailable)
		rules.AfterHoursBusinessHours.StartHour = 21
		rules.AfterHoursBusinessHours.EndHour = 23

		out := r.ResolveTCPA(rules, in)
		assert.Equal(t, domain.OutcomeReschedule, out.Kind)
		assert.Equal(t, utc(2024, time.March, 12, 12, 0), out.At)
		assert.False(t, r.IsTCPAViolation(rules, out.At, ""))
	})

	t.Run("non reschedule actions", func(t *testing.T) {
		assert.Equal(t, domain.OutcomeSkip, r.ResolveTCPA(rulesFor(domain.TCPASkipNode), in).Kind)
		assert.Equal(t, domain.OutcomePause, r.ResolveTCPA(rulesFor(domain.TCPAPauseJourney), in).Kind)
		assert.Equal(t, domain.OutcomeBlock, r.ResolveTCPA(rulesFor("BOGUS"), in).Kind)

		rules := rulesFor(domain.TCPADefaultEvent)
		id := uuid.New()
		rules.TCPADefaultEventTypeID = &id
		out := r.ResolveTCPA(rules, in)
		assert.Equal(t, domain.OutcomeUseDefaultEvent, out.Kind)
		assert.Equal(t, &id, out.EventTypeID)
	})
}

func TestResolveResubmission(t *testing.T) {
	now := utc(2024, time.July, 9, 14, 0)
	r := newTestActionResolver(now)
	in := ResubmissionContext{Candidate: now}

	rulesFor := func(action domain.ResubmissionAction) *domain.ExecutionRules {
		rules := domain.DefaultExecutionRules(uuid.New(), now)
		rules.ResubmissionAction = action
		return rules
	}

	assert.Equal(t, domain.OutcomeSkip, r.ResolveResubmission(rulesFor(domain.ResubmissionSkipDuplicate), in).Kind)
	assert.Equal(t, domain.OutcomeSkip, r.ResolveResubmission(rulesFor("BOGUS"), in).Kind)
	assert.Equal(t, domain.OutcomePause, r.ResolveResubmission(rulesFor(domain.ResubmissionPauseJourney), in).Kind)
	assert.Equal(t, domain.OutcomeContinue, r.ResolveResubmission(rulesFor(domain.ResubmissionContinue), in).Kind)

	disabled := rulesFor(domain.ResubmissionSkipDuplicate)
	disabled.EnableResubmissionHandling = false
	assert.Equal(t, domain.OutcomeContinue, r.ResolveResubmission(disabled, in).Kind)

	delayed := rulesFor(domain.ResubmissionRescheduleDelay)
	delayed.ResubmissionRescheduleDelayHours = 6
	out := r.ResolveResubmission(delayed, in)
	assert.Equal(t, domain.OutcomeReschedule, out.Kind)
	assert.Equal(t, now.Add(6*time.Hour), out.At)

	delayed.ResubmissionRescheduleDelayHours = 0
	assert.Equal(t, now.Add(24*time.Hour), r.ResolveResubmission(delayed, in).At)
}

func TestIsResubmission(t *testing.T) {
	now := utc(2024, time.July, 9, 14, 0)
	r := newTestActionResolver(now)
	rules := domain.DefaultExecutionRules(uuid.New(), now)

	recent := now.Add(-2 * time.Hour)
	edge := now.Add(-24 * time.Hour)
	old := now.Add(-30 * time.Hour)

	assert.True(t, r.IsResubmission(rules, &recent, now))
	assert.True(t, r.IsResubmission(rules, &edge, now))
	assert.False(t, r.IsResubmission(rules, &old, now))
	assert.False(t, r.IsResubmission(rules, nil, now))

	rules.EnableResubmissionHandling = false
	assert.False(t, r.IsResubmission(rules, &recent, now))
}

func TestIsTCPAViolation(t *testing.T) {
	r := newTestActionResolver(time.Now())
	rules := domain.DefaultExecutionRules(uuid.New(), time.Time{})

	// Saturday 2024-07-13; weekends are inside the window.
	assert.False(t, r.IsTCPAViolation(rules, utc(2024, time.July, 13, 15, 0), "America/Los_Angeles"))
	// 07:30 in Los Angeles.
	assert.True(t, r.IsTCPAViolation(rules, utc(2024, time.July, 13, 14, 30), "America/Los_Angeles"))
	// 21:00 in New York is the first violating minute.
	assert.True(t, r.IsTCPAViolation(rules, utc(2024, time.July, 11, 1, 0), newYork))
	assert.False(t, r.IsTCPAViolation(rules, utc(2024, time.July, 11, 0, 59), newYork))

	rules.EnableTCPAHandling = false
	assert.False(t, r.IsTCPAViolation(rules, utc(2024, time.July, 13, 14, 30), "America/Los_Angeles"))
}
