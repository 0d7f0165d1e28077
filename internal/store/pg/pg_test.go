package pg

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/evetools/slacksync/internal/access"
	"github.com/evetools/slacksync/internal/cache"
	"github.com/evetools/slacksync/internal/jobs"
	syncpkg "github.com/evetools/slacksync/internal/sync"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestUserChannels(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select distinct g.channel_id.*from slack_channel_users g").
		WithArgs(false, int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"channel_id"}).AddRow("C1").AddRow("C2"))

	got, err := store.UserChannels(context.Background(), 7, false)
	if err != nil {
		t.Fatalf("UserChannels: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"C1", "C2"}) {
		t.Fatalf("channels = %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTitleChannelsCompositeKey(t *testing.T) {
	store, mock := newMockStore(t)

	// Each pair binds corporation and title together in one predicate.
	mock.ExpectQuery("from slack_channel_titles g").
		WithArgs(true, int64(100), int64(5), int64(200), int64(6)).
		WillReturnRows(sqlmock.NewRows([]string{"channel_id"}).AddRow("C9"))

	got, err := store.TitleChannels(context.Background(), []access.TitleKey{
		{CorporationID: 100, TitleID: 5},
		{CorporationID: 200, TitleID: 6},
	}, true)
	if err != nil {
		t.Fatalf("TitleChannels: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"C9"}) {
		t.Fatalf("channels = %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRelationQueriesSkipEmptyKeySets(t *testing.T) {
	store, mock := newMockStore(t)

	// No keys means no query at all; the mock would fail on any hit.
	if got, err := store.RoleChannels(context.Background(), nil, false); err != nil || got != nil {
		t.Fatalf("RoleChannels = %v, %v", got, err)
	}
	if got, err := store.TitleChannels(context.Background(), nil, false); err != nil || got != nil {
		t.Fatalf("TitleChannels = %v, %v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindByEmailNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, email from users").
		WithArgs("ghost@example.org").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}))

	if _, err := store.FindByEmail(context.Background(), "ghost@example.org"); !errors.Is(err, access.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAffiliationsCoalesceAlliance(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("from character_affiliations").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"corporation_id", "alliance_id"}).
			AddRow(int64(100), int64(900)).
			AddRow(int64(101), int64(0)))

	got, err := store.Affiliations(context.Background(), 7)
	if err != nil {
		t.Fatalf("Affiliations: %v", err)
	}
	want := []access.Affiliation{
		{CorporationID: 100, AllianceID: 900},
		{CorporationID: 101},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("affiliations = %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJobCreateMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("insert into job_tracking").
		WithArgs("job-1", int64(7), "conversations.invite", "Queued", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := store.Jobs().Create(context.Background(), jobs.Record{
		JobID:    "job-1",
		OwnerID:  7,
		APIScope: "conversations.invite",
		Status:   jobs.StatusQueued,
	})
	if !errors.Is(err, jobs.ErrConflict) {
		t.Fatalf("err = %v, want jobs.ErrConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJobFindActive(t *testing.T) {
	store, mock := newMockStore(t)

	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("from job_tracking").
		WithArgs(int64(7), "users.info").
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "owner_id", "api_scope", "status", "created_at"}).
			AddRow("job-1", int64(7), "users.info", "Working", created))

	record, ok, err := store.Jobs().FindActive(context.Background(), 7, "users.info")
	if err != nil || !ok {
		t.Fatalf("FindActive: ok=%v err=%v", ok, err)
	}
	if record.JobID != "job-1" || record.Status != jobs.StatusWorking {
		t.Fatalf("record = %+v", record)
	}

	mock.ExpectQuery("from job_tracking").
		WithArgs(int64(7), "users.list").
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "owner_id", "api_scope", "status", "created_at"}))

	if _, ok, err := store.Jobs().FindActive(context.Background(), 7, "users.list"); err != nil || ok {
		t.Fatalf("FindActive empty: ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestJobSetStatusUnknownID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("update job_tracking set status").
		WithArgs("job-missing", "Done").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Jobs().SetStatus(context.Background(), "job-missing", jobs.StatusDone); !errors.Is(err, jobs.ErrUnknownJob) {
		t.Fatalf("err = %v, want jobs.ErrUnknownJob", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store, mock := newMockStore(t)

	snapshot := cache.Snapshot{
		ID:            "U1",
		Name:          "pilot",
		Conversations: []string{"C1", "C2"},
		FetchedAt:     time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	doc, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	mock.ExpectExec("insert into slack_snapshots").
		WithArgs("U1", doc).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("select doc from slack_snapshots").
		WithArgs("U1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(doc))

	if err := store.Set(context.Background(), snapshot); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := store.Get(context.Background(), "U1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(got, snapshot) {
		t.Fatalf("snapshot = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSnapshotGetMiss(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select doc from slack_snapshots").
		WithArgs("UNONE").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	if _, err := store.Get(context.Background(), "UNONE"); !errors.Is(err, cache.ErrNotCached) {
		t.Fatalf("err = %v, want cache.ErrNotCached", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSnapshotDeleteAbsent(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from slack_snapshots").
		WithArgs("UNONE").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Delete(context.Background(), "UNONE"); !errors.Is(err, cache.ErrNotCached) {
		t.Fatalf("err = %v, want cache.ErrNotCached", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssociationNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("from slack_users").
		WithArgs("UNONE").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "slack_id", "name", "created_at"}))

	if _, err := store.FindBySlackID(context.Background(), "UNONE"); !errors.Is(err, syncpkg.ErrNoAssociation) {
		t.Fatalf("err = %v, want ErrNoAssociation", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssociationCreateUpserts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("insert into slack_users").
		WithArgs(int64(7), "U1", "pilot", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Create(context.Background(), syncpkg.Association{UserID: 7, SlackID: "U1", Name: "pilot"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
