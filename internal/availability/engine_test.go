package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRules struct {
	rule *Rule
	err  error
	day  time.Weekday
}

func (f *fakeRules) ActiveRule(_ context.Context, _ string, _ uuid.UUID, day time.Weekday) (*Rule, error) {
	f.day = day
	return f.rule, f.err
}

type fakeBlocks struct {
	blocks   []Block
	err      error
	fromDate time.Time
	toDate   time.Time
}

func (f *fakeBlocks) ListBlocksIntersecting(_ context.Context, _ string, _ uuid.UUID, fromDate, toDate time.Time) ([]Block, error) {
	f.fromDate = fromDate
	f.toDate = toDate
	return f.blocks, f.err
}

type fakeAppointments struct {
	count   int
	err     error
	start   time.Time
	end     time.Time
	exclude *uuid.UUID
}

func (f *fakeAppointments) CountOverlapping(_ context.Context, _ string, _ uuid.UUID, start, end time.Time, exclude *uuid.UUID) (int, error) {
	f.start = start
	f.end = end
	f.exclude = exclude
	return f.count, f.err
}

func mondayRule(start, end string) *Rule {
	return &Rule{
		ID:             uuid.New(),
		TenantID:       "tenant-1",
		ProfessionalID: uuid.New(),
		DayOfWeek:      time.Monday,
		StartTime:      start,
		EndTime:        end,
		IsActive:       true,
	}
}

// 2025-06-02 is a Monday.
func mondayAt(hour, minute int) time.Time {
	return time.Date(2025, 6, 2, hour, minute, 0, 0, time.UTC)
}

func newTestEngine(rules RuleSource, blocks BlockSource, appts AppointmentSource) *Engine {
	return NewEngine(rules, blocks, appts, time.UTC, nil)
}

func TestEngineCheckAvailable(t *testing.T) {
	engine := newTestEngine(
		&fakeRules{rule: mondayRule("09:00", "12:00")},
		&fakeBlocks{},
		&fakeAppointments{},
	)

	reason, err := engine.Check(context.Background(), CheckRequest{
		TenantID:        "tenant-1",
		ProfessionalID:  uuid.New(),
		Start:           mondayAt(11, 0),
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonAvailable, reason)
}

func TestEngineCheckRejectsWindowPastRuleEnd(t *testing.T) {
	// 11:30 + 60min ends at 12:30, past the 12:00 close.
	engine := newTestEngine(
		&fakeRules{rule: mondayRule("09:00", "12:00")},
		&fakeBlocks{},
		&fakeAppointments{},
	)

	reason, err := engine.Check(context.Background(), CheckRequest{
		TenantID:        "tenant-1",
		ProfessionalID:  uuid.New(),
		Start:           mondayAt(11, 30),
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonOutsideHours, reason)
}

func TestEngineCheckRejectsStartBeforeRuleStart(t *testing.T) {
	engine := newTestEngine(
		&fakeRules{rule: mondayRule("09:00", "12:00")},
		&fakeBlocks{},
		&fakeAppointments{},
	)

	reason, err := engine.Check(context.Background(), CheckRequest{
		TenantID:        "tenant-1",
		ProfessionalID:  uuid.New(),
		Start:           mondayAt(8, 30),
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonOutsideHours, reason)
}

func TestEngineCheckNoRule(t *testing.T) {
	engine := newTestEngine(&fakeRules{rule: nil}, &fakeBlocks{}, &fakeAppointments{})

	reason, err := engine.Check(context.Background(), CheckRequest{
		TenantID:        "tenant-1",
		ProfessionalID:  uuid.New(),
		Start:           mondayAt(10, 0),
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonNoRule, reason)
}

func TestEngineCheckBlockedDate(t *testing.T) {
	blocks := &fakeBlocks{blocks: []Block{{
		StartDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		Reason:    "vacation",
	}}}
	engine := newTestEngine(&fakeRules{rule: mondayRule("09:00", "12:00")}, blocks, &fakeAppointments{})

	reason, err := engine.Check(context.Background(), CheckRequest{
		TenantID:        "tenant-1",
		ProfessionalID:  uuid.New(),
		Start:           mondayAt(10, 0),
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonBlocked, reason)

	// The block scan covers only the dates the window touches.
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), blocks.fromDate)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), blocks.toDate)
}

func TestEngineCheckBooked(t *testing.T) {
	appts := &fakeAppointments{count: 1}
	engine := newTestEngine(&fakeRules{rule: mondayRule("09:00", "12:00")}, &fakeBlocks{}, appts)

	reason, err := engine.Check(context.Background(), CheckRequest{
		TenantID:        "tenant-1",
		ProfessionalID:  uuid.New(),
		Start:           mondayAt(10, 0),
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonBooked, reason)

	// Half-open window [10:00, 10:30) handed to the overlap scan.
	assert.Equal(t, mondayAt(10, 0), appts.start)
	assert.Equal(t, mondayAt(10, 30), appts.end)
}

func TestEngineCheckPassesExclusionThrough(t *testing.T) {
	appts := &fakeAppointments{}
	engine := newTestEngine(&fakeRules{rule: mondayRule("09:00", "12:00")}, &fakeBlocks{}, appts)

	excludeID := uuid.New()
	reason, err := engine.Check(context.Background(), CheckRequest{
		TenantID:             "tenant-1",
		ProfessionalID:       uuid.New(),
		Start:                mondayAt(10, 0),
		DurationMinutes:      30,
		ExcludeAppointmentID: &excludeID,
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonAvailable, reason)
	require.NotNil(t, appts.exclude)
	assert.Equal(t, excludeID, *appts.exclude)
}

func TestEngineCheckTimezoneWeekday(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	rules := &fakeRules{rule: &Rule{
		ID:        uuid.New(),
		DayOfWeek: time.Monday,
		StartTime: "09:00",
		EndTime:   "18:00",
		IsActive:  true,
	}}
	engine := NewEngine(rules, &fakeBlocks{}, &fakeAppointments{}, loc, nil)

	// 2025-06-03 01:00 UTC is still Monday 22:00 in Sao Paulo (UTC-3);
	// outside the window, but the rule lookup must use the local weekday.
	reason, err := engine.Check(context.Background(), CheckRequest{
		TenantID:        "tenant-1",
		ProfessionalID:  uuid.New(),
		Start:           time.Date(2025, 6, 3, 1, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Monday, rules.day)
	assert.Equal(t, ReasonOutsideHours, reason)
}

func TestEngineIsAvailable(t *testing.T) {
	engine := newTestEngine(&fakeRules{rule: mondayRule("09:00", "12:00")}, &fakeBlocks{}, &fakeAppointments{})

	ok, err := engine.IsAvailable(context.Background(), CheckRequest{
		TenantID:        "tenant-1",
		ProfessionalID:  uuid.New(),
		Start:           mondayAt(9, 0),
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.IsAvailable(context.Background(), CheckRequest{
		TenantID:        "tenant-1",
		ProfessionalID:  uuid.New(),
		Start:           mondayAt(11, 30),
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngineListSlots(t *testing.T) {
	engine := newTestEngine(&fakeRules{rule: mondayRule("09:00", "12:00")}, &fakeBlocks{}, &fakeAppointments{})

	slots, err := engine.ListSlots(context.Background(), SlotsRequest{
		TenantID:        "tenant-1",
		ProfessionalID:  uuid.New(),
		Date:            mondayAt(0, 0),
		DurationMinutes: 60,
		StepMinutes:     30,
	})
	require.NoError(t, err)

	// 09:00 through 11:00 starts; a later start would end past 12:00.
	require.Len(t, slots, 5)
	assert.Equal(t, mondayAt(9, 0), slots[0].Start)
	assert.Equal(t, mondayAt(10, 0), slots[0].End)
	assert.Equal(t, mondayAt(11, 0), slots[4].Start)
	assert.Equal(t, mondayAt(12, 0), slots[4].End)
	for _, s := range slots {
		assert.True(t, s.Available)
	}
}

func TestEngineListSlotsMarksBookedSlots(t *testing.T) {
	appts := &fakeAppointments{count: 1}
	engine := newTestEngine(&fakeRules{rule: mondayRule("09:00", "11:00")}, &fakeBlocks{}, appts)

	slots, err := engine.ListSlots(context.Background(), SlotsRequest{
		TenantID:        "tenant-1",
		ProfessionalID:  uuid.New(),
		Date:            mondayAt(0, 0),
		DurationMinutes: 30,
		StepMinutes:     30,
	})
	require.NoError(t, err)
	require.Len(t, slots, 4)
	for _, s := range slots {
		assert.False(t, s.Available)
	}
}

func TestEngineListSlotsNoRule(t *testing.T) {
	engine := newTestEngine(&fakeRules{}, &fakeBlocks{}, &fakeAppointments{})

	slots, err := engine.ListSlots(context.Background(), SlotsRequest{
		TenantID:        "tenant-1",
		ProfessionalID:  uuid.New(),
		Date:            mondayAt(0, 0),
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestEngineListSlotsUsesLocalCalendarDay(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	rules := &fakeRules{rule: mondayRule("09:00", "11:00")}
	engine := NewEngine(rules, &fakeBlocks{}, &fakeAppointments{}, loc, nil)

	// A date parsed as UTC midnight is 21:00 of the previous local day in
	// Sao Paulo (UTC-3). The listing must still be for Monday June 2nd.
	slots, err := engine.ListSlots(context.Background(), SlotsRequest{
		TenantID:        "tenant-1",
		ProfessionalID:  uuid.New(),
		Date:            time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		StepMinutes:     60,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Monday, rules.day)
	require.Len(t, slots, 2)
	assert.Equal(t, time.Date(2025, 6, 2, 9, 0, 0, 0, loc), slots[0].Start)
	assert.Equal(t, time.Date(2025, 6, 2, 10, 0, 0, 0, loc), slots[1].Start)
}

func TestEngineListSlotsDefaultStep(t *testing.T) {
	engine := newTestEngine(&fakeRules{rule: mondayRule("09:00", "10:00")}, &fakeBlocks{}, &fakeAppointments{})

	slots, err := engine.ListSlots(context.Background(), SlotsRequest{
		TenantID:        "tenant-1",
		ProfessionalID:  uuid.New(),
		Date:            mondayAt(0, 0),
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, mondayAt(9, 30), slots[1].Start)
}
