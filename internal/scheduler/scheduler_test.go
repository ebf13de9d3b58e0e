package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"quiz-practice/internal/content"
	"quiz-practice/internal/models"
	"quiz-practice/internal/question"
	"quiz-practice/internal/testutil"
	"quiz-practice/pkg/cache"
)

type fakeLock struct {
	err      error
	acquired int
	released int
}

func (f *fakeLock) lock(context.Context, string, time.Duration) (func(context.Context) error, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired++
	return func(context.Context) error {
		f.released++
		return nil
	}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	owners []uint
	items  []models.ItemDTO
	err    error
}

func (n *recordingNotifier) ItemDelivered(_ context.Context, item models.ItemDTO, ownerID uint) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, item)
	n.owners = append(n.owners, ownerID)
	return n.err
}

var now = time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T, o *testutil.FakeOracle, lock *fakeLock, notifiers ...Notifier) (*Scheduler, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	svc := content.NewService(content.NewRepository(db), o, question.NewValidator(), content.Options{}, testutil.Logger(t))
	s := New("0 * * * * *", svc, lock.lock, testutil.Logger(t), notifiers...)
	s.now = func() time.Time { return now }
	return s, db
}

func scheduled(t *testing.T, db *gorm.DB, text, deliveryTime string, createdAt time.Time) models.Item {
	t.Helper()
	it := models.Item{
		Topic: "Kubernetes", Level: "intermediate", QuestionText: text, Options: datatypes.JSON("[]"),
		OwnerUserID: 8, IsActive: true, DeliveryTime: deliveryTime, Frequency: models.FrequencyDaily,
		DisplayStatus: models.DisplayStatusPending, CreatedAt: createdAt,
	}
	if err := db.Create(&it).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	return it
}

func isActive(t *testing.T, db *gorm.DB, id uint) bool {
	t.Helper()
	var it models.Item
	if err := db.First(&it, id).Error; err != nil {
		t.Fatalf("load item %d: %v", id, err)
	}
	return it.IsActive
}

func TestTickDeliversDueItems(t *testing.T) {
	lock := &fakeLock{}
	rec := &recordingNotifier{}
	broken := &recordingNotifier{err: errors.New("socket closed")}
	o := &testutil.FakeOracle{}
	s, db := setup(t, o, lock, broken, rec)

	due := scheduled(t, db, "Due question?", "09:00:00", now.Add(-24*time.Hour))
	later := scheduled(t, db, "Later question?", "18:00:00", now.Add(-24*time.Hour))

	if n := s.Tick(context.Background()); n != 1 {
		t.Fatalf("delivered %d items, want 1", n)
	}
	if o.Calls() != 1 {
		t.Errorf("expected one generation, got %d", o.Calls())
	}
	if isActive(t, db, due.ID) {
		t.Errorf("delivered item must be retired")
	}
	if !isActive(t, db, later.ID) {
		t.Errorf("item not yet due must stay active")
	}
	if len(rec.items) != 1 || rec.owners[0] != 8 || rec.items[0].ID == 0 {
		t.Fatalf("notifier saw %+v for owners %v", rec.items, rec.owners)
	}
	if rec.items[0].CorrectAnswer != "" {
		t.Errorf("delivery notification leaked the answer %q", rec.items[0].CorrectAnswer)
	}
	if len(broken.items) != 1 {
		t.Errorf("a failing notifier must not stop delivery")
	}

	var next models.Item
	if err := db.First(&next, rec.items[0].ID).Error; err != nil {
		t.Fatalf("load new item: %v", err)
	}
	if !next.IsActive || next.DeliveryTime != "09:00:00" || next.Frequency != models.FrequencyDaily || next.OwnerUserID != 8 {
		t.Errorf("new item must carry the schedule: %+v", next)
	}
	if lock.acquired != 1 || lock.released != 1 {
		t.Errorf("lock acquired %d released %d", lock.acquired, lock.released)
	}

	if n := s.Tick(context.Background()); n != 0 {
		t.Errorf("second tick delivered %d items", n)
	}
}

func TestTickSkipsWhenLockHeld(t *testing.T) {
	o := &testutil.FakeOracle{}
	s, db := setup(t, o, &fakeLock{err: cache.ErrLockHeld})
	due := scheduled(t, db, "Due question?", "09:00:00", now.Add(-24*time.Hour))

	if n := s.Tick(context.Background()); n != 0 {
		t.Fatalf("delivered %d items while another instance held the lock", n)
	}
	if o.Calls() != 0 || !isActive(t, db, due.ID) {
		t.Errorf("nothing may happen without the lock")
	}
}

func TestTickLockFailure(t *testing.T) {
	o := &testutil.FakeOracle{}
	s, db := setup(t, o, &fakeLock{err: errors.New("redis: connection refused")})
	scheduled(t, db, "Due question?", "09:00:00", now.Add(-24*time.Hour))

	if n := s.Tick(context.Background()); n != 0 || o.Calls() != 0 {
		t.Fatalf("tick must stop when the lock cannot be taken")
	}
}

func TestTickKeepsItemWhenGenerationFails(t *testing.T) {
	rec := &recordingNotifier{}
	o := &testutil.FakeOracle{Reply: func(int, string) (string, error) { return testutil.InvalidReply, nil }}
	s, db := setup(t, o, &fakeLock{}, rec)
	due := scheduled(t, db, "Due question?", "09:00:00", now.Add(-24*time.Hour))

	if n := s.Tick(context.Background()); n != 0 {
		t.Fatalf("delivered %d items", n)
	}
	if !isActive(t, db, due.ID) {
		t.Errorf("item must stay active so the next tick retries")
	}
	if len(rec.items) != 0 {
		t.Errorf("nothing was delivered, notifier called %d times", len(rec.items))
	}
}

func TestTickStopsOnCancelledContext(t *testing.T) {
	lock := &fakeLock{}
	s, _ := setup(t, &testutil.FakeOracle{}, lock)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if n := s.Tick(ctx); n != 0 || lock.acquired != 0 {
		t.Fatalf("cancelled tick must not run")
	}
}

func TestStartValidatesSpec(t *testing.T) {
	s := New("every now and then", nil, (&fakeLock{}).lock, nil)
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected an error for a bad cron spec")
	}

	s = New("0 0 * * * *", nil, (&fakeLock{}).lock, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
	s.Stop()
}
