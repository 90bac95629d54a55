package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
)

func appointmentRowColumns() []string {
	return []string{
		"id", "tenant_id", "professional_id", "client_id", "type", "title",
		"scheduled_at", "duration_minutes", "status", "location", "is_virtual",
		"cancellation_reason", "cancelled_at", "external_calendar_event_id",
		"external_calendar_synced", "created_at", "updated_at",
	}
}

func sampleAppointment() *Appointment {
	return &Appointment{
		TenantID:        "tenant-1",
		ProfessionalID:  uuid.New(),
		ClientID:        uuid.New(),
		Type:            TypeConsultation,
		Title:           "Initial consultation",
		ScheduledAt:     time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
	}
}

func TestStoreCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	appt := sampleAppointment()

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), appt.TenantID, appt.ProfessionalID, appt.ClientID,
			"consultation", appt.Title, appt.ScheduledAt, 60, "scheduled", "", false,
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.Create(context.Background(), appt); err != nil {
		t.Fatalf("create: %v", err)
	}
	if appt.ID == uuid.Nil {
		t.Fatal("expected generated id")
	}
	if appt.Status != StatusScheduled {
		t.Fatalf("expected scheduled status, got %s", appt.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreCreateMapsExclusionViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	appt := sampleAppointment()

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), appt.TenantID, appt.ProfessionalID, appt.ClientID,
			"consultation", appt.Title, appt.ScheduledAt, 60, "scheduled", "", false,
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"})

	err = store.Create(context.Background(), appt)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.ProfessionalID != appt.ProfessionalID {
		t.Fatalf("conflict carries wrong professional: %+v", conflict)
	}
	if !conflict.End.Equal(appt.ScheduledAt.Add(time.Hour)) {
		t.Fatalf("conflict carries wrong window end: %+v", conflict)
	}
}

func TestStoreGetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(id, "tenant-1").
		WillReturnRows(pgxmock.NewRows(appointmentRowColumns()))

	_, err = store.GetByID(context.Background(), "tenant-1", id)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestStoreGetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	id := uuid.New()
	professionalID := uuid.New()
	clientID := uuid.New()
	scheduledAt := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs(id, "tenant-1").
		WillReturnRows(pgxmock.NewRows(appointmentRowColumns()).
			AddRow(id, "tenant-1", professionalID, clientID, "training", "Leg day",
				scheduledAt, 45, "scheduled", "Studio 2", false,
				"", (*time.Time)(nil), "", false, now, now))

	appt, err := store.GetByID(context.Background(), "tenant-1", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if appt.Type != TypeTraining || appt.DurationMinutes != 45 {
		t.Fatalf("unexpected appointment: %+v", appt)
	}
	if !appt.EndsAt().Equal(scheduledAt.Add(45 * time.Minute)) {
		t.Fatalf("wrong end: %v", appt.EndsAt())
	}
}

func TestStoreUpdateNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	appt := sampleAppointment()
	appt.ID = uuid.New()

	mock.ExpectExec("UPDATE appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.Update(context.Background(), appt)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestStoreUpdateMapsExclusionViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	appt := sampleAppointment()
	appt.ID = uuid.New()

	mock.ExpectExec("UPDATE appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23P01"})

	err = store.Update(context.Background(), appt)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestStoreCountOverlapping(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	professionalID := uuid.New()
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	mock.ExpectQuery("SELECT COUNT(.+) FROM appointments").
		WithArgs("tenant-1", professionalID, end, start).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	count, err := store.CountOverlapping(context.Background(), "tenant-1", professionalID, start, end, nil)
	if err != nil {
		t.Fatalf("count overlapping: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 overlap, got %d", count)
	}
}

func TestStoreCountOverlappingExcludesSelf(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	professionalID := uuid.New()
	excludeID := uuid.New()
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectQuery("SELECT COUNT(.+) FROM appointments").
		WithArgs("tenant-1", professionalID, end, start, excludeID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))

	count, err := store.CountOverlapping(context.Background(), "tenant-1", professionalID, start, end, &excludeID)
	if err != nil {
		t.Fatalf("count overlapping: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 overlaps, got %d", count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreListWithFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	professionalID := uuid.New()
	status := StatusScheduled

	mock.ExpectQuery("SELECT (.+) FROM appointments").
		WithArgs("tenant-1", professionalID, "scheduled").
		WillReturnRows(pgxmock.NewRows(appointmentRowColumns()))

	appts, err := store.List(context.Background(), "tenant-1", Filter{
		ProfessionalID: &professionalID,
		Status:         &status,
		Limit:          20,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(appts) != 0 {
		t.Fatalf("expected empty result, got %d", len(appts))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)

	mock.ExpectQuery("SELECT(.+)COUNT(.+)FROM appointments").
		WithArgs("tenant-1").
		WillReturnRows(pgxmock.NewRows([]string{"total", "scheduled", "completed", "cancelled", "no_show"}).
			AddRow(int64(10), int64(4), int64(4), int64(1), int64(1)))

	stats, err := store.Stats(context.Background(), "tenant-1", nil, nil, nil)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 10 || stats.Completed != 4 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.CompletionRate != 0.4 || stats.CancelRate != 0.1 || stats.NoShowRate != 0.1 {
		t.Fatalf("unexpected rates: %+v", stats)
	}
}

func TestStoreSetCalendarSync(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE appointments").
		WithArgs("evt-9", true, pgxmock.AnyArg(), id, "tenant-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := store.SetCalendarSync(context.Background(), "tenant-1", id, "evt-9", true); err != nil {
		t.Fatalf("set calendar sync: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
