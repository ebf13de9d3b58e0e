package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"quiz-practice/internal/apperr"
	"quiz-practice/internal/models"
	"quiz-practice/internal/question"
	"quiz-practice/internal/testutil"
)

func seedItems(t *testing.T, db *gorm.DB, userID uint, topic string, n int) []models.Item {
	t.Helper()
	items := make([]models.Item, n)
	for i := range items {
		items[i] = models.Item{
			Topic:         topic,
			Level:         "basic",
			QuestionText:  fmt.Sprintf("Seeded question %d about %s?", i, topic),
			Options:       datatypes.JSON(`[{"letter":"A","text":"a"},{"letter":"B","text":"b"},{"letter":"C","text":"c"},{"letter":"D","text":"d"}]`),
			CorrectAnswer: "A",
			OwnerUserID:   userID,
			DisplayStatus: models.DisplayStatusActive,
		}
	}
	if err := db.Create(&items).Error; err != nil {
		t.Fatalf("seed items: %v", err)
	}
	return items
}

func newService(t *testing.T, db *gorm.DB, o *testutil.FakeOracle, opts Options) *Service {
	t.Helper()
	return NewService(NewRepository(db), o, question.NewValidator(), opts, testutil.Logger(t))
}

func countItems(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.Item{}).Where("owner_user_id = ?", userID).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestEnsureSupplyGeneratesTheGap(t *testing.T) {
	db := testutil.DB(t)
	seedItems(t, db, 1, "Linux", 3)
	o := &testutil.FakeOracle{}
	svc := newService(t, db, o, Options{GateOnValidation: true, MaxAttempts: 3})

	items, err := svc.EnsureSupply(context.Background(), 1, "Linux", ChallengeLimit(models.GameModeTimed))
	if err != nil {
		t.Fatalf("EnsureSupply: %v", err)
	}
	if o.Calls() != 7 {
		t.Errorf("expected 7 generations, got %d", o.Calls())
	}
	if len(items) != 10 {
		t.Errorf("expected 10 items, got %d", len(items))
	}
	if n := countItems(t, db, 1); n != 10 {
		t.Errorf("expected 10 stored items, got %d", n)
	}

	var generated models.Item
	if err := db.Where("question_text = ?", testutil.QuestionText(1)).First(&generated).Error; err != nil {
		t.Fatalf("load generated item: %v", err)
	}
	if generated.IsActive || generated.DisplayStatus != models.DisplayStatusActive || generated.Frequency != models.FrequencyDaily {
		t.Errorf("unexpected backfill schedule %+v", generated)
	}
	if generated.CorrectAnswer != "B" || generated.RawText == "" {
		t.Errorf("unexpected generated content %+v", generated)
	}
}

func TestEnsureSupplyWithFullStockSkipsGeneration(t *testing.T) {
	db := testutil.DB(t)
	seedItems(t, db, 1, "Linux", 15)
	o := &testutil.FakeOracle{}
	svc := newService(t, db, o, Options{GateOnValidation: true, MaxAttempts: 3})

	items, err := svc.EnsureSupply(context.Background(), 1, "Linux", ChallengeLimit(models.GameModeSurvival))
	if err != nil {
		t.Fatalf("EnsureSupply: %v", err)
	}
	if len(items) != 15 || o.Calls() != 0 {
		t.Fatalf("expected 15 items and no generation, got %d items / %d calls", len(items), o.Calls())
	}
}

func TestEnsureSupplyMatchesTopicLoosely(t *testing.T) {
	db := testutil.DB(t)
	seedItems(t, db, 1, "Linux Administration", 10)
	seedItems(t, db, 2, "Linux", 10)
	o := &testutil.FakeOracle{}
	svc := newService(t, db, o, Options{})

	items, err := svc.EnsureSupply(context.Background(), 1, "linux", TimedLimit)
	if err != nil {
		t.Fatalf("EnsureSupply: %v", err)
	}
	if len(items) != 10 || o.Calls() != 0 {
		t.Fatalf("expected own 10 items, got %d items / %d calls", len(items), o.Calls())
	}
	for _, it := range items {
		if it.OwnerUserID != 1 {
			t.Fatalf("item %d belongs to user %d", it.ID, it.OwnerUserID)
		}
	}
}

func TestBackfillFeedsEarlierItemsIntoLaterPrompts(t *testing.T) {
	db := testutil.DB(t)
	o := &testutil.FakeOracle{}
	svc := newService(t, db, o, Options{GateOnValidation: true, MaxAttempts: 1})

	if _, err := svc.EnsureSupply(context.Background(), 1, "Linux", 3); err != nil {
		t.Fatalf("EnsureSupply: %v", err)
	}
	prompts := o.Prompts()
	if len(prompts) != 3 {
		t.Fatalf("expected 3 prompts, got %d", len(prompts))
	}
	if strings.Contains(prompts[0], "RECENT QUESTIONS") {
		t.Error("first prompt should have no history")
	}
	if !strings.Contains(prompts[2], testutil.QuestionText(1)) || !strings.Contains(prompts[2], testutil.QuestionText(2)) {
		t.Error("third prompt must list both earlier questions")
	}
}

func TestBackfillRetriesRejectedSlots(t *testing.T) {
	db := testutil.DB(t)
	// every odd call is rejected, so each slot needs two attempts
	o := &testutil.FakeOracle{Reply: func(call int, _ string) (string, error) {
		if call%2 == 1 {
			return testutil.InvalidReply, nil
		}
		return testutil.ValidReply(call), nil
	}}
	svc := newService(t, db, o, Options{GateOnValidation: true, MaxAttempts: 2})

	items, err := svc.EnsureSupply(context.Background(), 1, "History", 4)
	if err != nil {
		t.Fatalf("EnsureSupply: %v", err)
	}
	if len(items) != 4 || o.Calls() != 8 {
		t.Fatalf("expected 4 items from 8 calls, got %d / %d", len(items), o.Calls())
	}
	if n := countItems(t, db, 1); n != 4 {
		t.Errorf("rejected items must not be stored, found %d rows", n)
	}
}

func TestBackfillSkipsSlotAfterAttemptBudget(t *testing.T) {
	db := testutil.DB(t)
	o := &testutil.FakeOracle{Reply: func(int, string) (string, error) { return testutil.InvalidReply, nil }}
	svc := newService(t, db, o, Options{GateOnValidation: true, MaxAttempts: 3})

	items, err := svc.EnsureSupply(context.Background(), 1, "History", 2)
	if err != nil {
		t.Fatalf("EnsureSupply: %v", err)
	}
	if len(items) != 0 || o.Calls() != 6 {
		t.Fatalf("expected nothing from 6 calls, got %d / %d", len(items), o.Calls())
	}
}

func TestBackfillWithoutGatePersistsEverything(t *testing.T) {
	db := testutil.DB(t)
	o := &testutil.FakeOracle{Reply: func(int, string) (string, error) { return testutil.InvalidReply, nil }}
	svc := newService(t, db, o, Options{GateOnValidation: false, MaxAttempts: 3})

	items, err := svc.EnsureSupply(context.Background(), 1, "History", 2)
	if err != nil {
		t.Fatalf("EnsureSupply: %v", err)
	}
	if len(items) != 2 || o.Calls() != 2 {
		t.Fatalf("expected 2 items from 2 calls, got %d / %d", len(items), o.Calls())
	}
}

func TestBackfillSurvivesOracleOutage(t *testing.T) {
	db := testutil.DB(t)
	seedItems(t, db, 1, "Linux", 2)
	o := &testutil.FakeOracle{Reply: func(int, string) (string, error) {
		return "", apperr.Upstream("question generator unavailable", errors.New("503"))
	}}
	svc := newService(t, db, o, Options{GateOnValidation: true, MaxAttempts: 3})

	items, err := svc.EnsureSupply(context.Background(), 1, "Linux", TimedLimit)
	if err != nil {
		t.Fatalf("EnsureSupply must not fail on generator errors: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected only the 2 existing items, got %d", len(items))
	}
	// upstream errors are not retried per slot; the client owns that budget
	if o.Calls() != 8 {
		t.Errorf("expected one call per slot, got %d", o.Calls())
	}
}

func TestContinuationExcludesUsedItems(t *testing.T) {
	db := testutil.DB(t)
	seeded := seedItems(t, db, 1, "Linux", 7)
	svc := newService(t, db, &testutil.FakeOracle{}, Options{})

	used := []uint{seeded[0].ID, seeded[1].ID, seeded[2].ID, seeded[3].ID}
	items, err := svc.Continuation(context.Background(), 1, "Linux", used)
	if err != nil {
		t.Fatalf("Continuation: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 remaining items, got %d", len(items))
	}
	for _, it := range items {
		for _, u := range used {
			if it.ID == u {
				t.Fatalf("item %d was already used", it.ID)
			}
		}
	}

	items, err = svc.Continuation(context.Background(), 1, "Linux", nil)
	if err != nil {
		t.Fatalf("Continuation: %v", err)
	}
	if len(items) != ContinuationSize {
		t.Fatalf("expected %d items, got %d", ContinuationSize, len(items))
	}
}

func TestGenerateOne(t *testing.T) {
	db := testutil.DB(t)
	o := &testutil.FakeOracle{}
	svc := newService(t, db, o, Options{})

	res, err := svc.GenerateOne(context.Background(), GenerateRequest{
		UserID:       9,
		Topic:        "Networking",
		Level:        "basic",
		DeliveryTime: "18:30:00",
		Frequency:    models.FrequencyWeekly,
	})
	if err != nil {
		t.Fatalf("GenerateOne: %v", err)
	}
	if !res.Saved || res.Item.ID == 0 || !res.Validation.IsValid {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Item.Options) != 4 || res.Item.CorrectAnswer != "B" {
		t.Errorf("unexpected item %+v", res.Item)
	}

	stored, err := NewRepository(db).GetByID(context.Background(), nil, res.Item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !stored.IsActive || stored.DisplayStatus != models.DisplayStatusPending || stored.DeliveryTime != "18:30:00" || stored.Frequency != models.FrequencyWeekly {
		t.Errorf("unexpected schedule %+v", stored)
	}
}

func TestGenerateOneRejectsInvalidItem(t *testing.T) {
	db := testutil.DB(t)
	o := &testutil.FakeOracle{Reply: func(int, string) (string, error) { return testutil.InvalidReply, nil }}
	svc := newService(t, db, o, Options{})

	res, err := svc.GenerateOne(context.Background(), GenerateRequest{UserID: 9, Topic: "Networking", Level: "basic"})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if res == nil || res.Validation.IsValid || len(res.Validation.Errors) == 0 {
		t.Fatalf("expected the validation report, got %+v", res)
	}
	if n := countItems(t, db, 9); n != 0 {
		t.Errorf("nothing may be stored, found %d", n)
	}
}

func TestGenerateFromNotes(t *testing.T) {
	db := testutil.DB(t)
	o := &testutil.FakeOracle{}
	svc := newService(t, db, o, Options{})
	notes := "Photosynthesis converts light energy into chemical energy stored in glucose."

	res, err := svc.GenerateFromNotes(context.Background(), NotesRequest{UserID: 3, Notes: notes, Topic: "Biology", Level: "basic"})
	if err != nil {
		t.Fatalf("GenerateFromNotes: %v", err)
	}
	if res.Saved || res.Item.ID != 0 {
		t.Errorf("unscheduled notes question must not be stored: %+v", res)
	}
	if !strings.Contains(o.Prompts()[0], notes) {
		t.Error("prompt must carry the notes")
	}

	res, err = svc.GenerateFromNotes(context.Background(), NotesRequest{UserID: 3, Notes: notes, Topic: "Biology", Level: "basic", Schedule: true})
	if err != nil {
		t.Fatalf("GenerateFromNotes: %v", err)
	}
	if !res.Saved || countItems(t, db, 3) != 1 {
		t.Errorf("scheduled notes question must be stored")
	}
}

func TestTopicsAndPending(t *testing.T) {
	db := testutil.DB(t)
	seedItems(t, db, 4, "Linux", 2)
	seedItems(t, db, 4, "Go", 1)
	seedItems(t, db, 5, "Rust", 1)
	pending := models.Item{Topic: "Go", QuestionText: "Pending question text?", Options: datatypes.JSON("[]"), OwnerUserID: 4, DisplayStatus: models.DisplayStatusPending}
	if err := db.Create(&pending).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	svc := newService(t, db, &testutil.FakeOracle{}, Options{})
	ctx := context.Background()

	topics, err := svc.Topics(ctx, 4)
	if err != nil {
		t.Fatalf("Topics: %v", err)
	}
	if strings.Join(topics, ",") != "Go,Linux" {
		t.Errorf("unexpected topics %v", topics)
	}

	items, err := svc.Pending(ctx, 4)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(items) != 1 || items[0].ID != pending.ID || items[0].CorrectAnswer != "" {
		t.Fatalf("unexpected pending items %+v", items)
	}

	if err := svc.MarkDisplayed(ctx, 4, pending.ID); err != nil {
		t.Fatalf("MarkDisplayed: %v", err)
	}
	if items, _ := svc.Pending(ctx, 4); len(items) != 0 {
		t.Errorf("item should no longer be pending")
	}
	if err := svc.MarkDisplayed(ctx, 5, pending.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("foreign item must be not found, got %v", err)
	}
}

func TestDueScheduled(t *testing.T) {
	db := testutil.DB(t)
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	mk := func(name, deliveryTime, frequency string, createdAt time.Time, active bool) models.Item {
		it := models.Item{
			Topic: "Linux", QuestionText: name, Options: datatypes.JSON("[]"), OwnerUserID: 1,
			IsActive: active, DeliveryTime: deliveryTime, Frequency: frequency, CreatedAt: createdAt,
			DisplayStatus: models.DisplayStatusPending,
		}
		if err := db.Create(&it).Error; err != nil {
			t.Fatalf("create: %v", err)
		}
		return it
	}

	dueDaily := mk("daily due", "09:00:00", models.FrequencyDaily, now.Add(-day), true)
	mk("daily later today", "11:00:00", models.FrequencyDaily, now.Add(-day), true)
	mk("daily created today", "09:00:00", models.FrequencyDaily, now.Add(-time.Hour), true)
	mk("weekly too young", "09:00:00", models.FrequencyWeekly, now.Add(-3*day), true)
	dueWeekly := mk("weekly due", "08:00:00", models.FrequencyWeekly, now.Add(-8*day), true)
	mk("inactive", "09:00:00", models.FrequencyDaily, now.Add(-2*day), false)

	svc := newService(t, db, &testutil.FakeOracle{}, Options{})
	due, err := svc.DueScheduled(context.Background(), now)
	if err != nil {
		t.Fatalf("DueScheduled: %v", err)
	}
	if len(due) != 2 || due[0].ID != dueDaily.ID || due[1].ID != dueWeekly.ID {
		names := make([]string, len(due))
		for i, d := range due {
			names[i] = d.QuestionText
		}
		t.Fatalf("unexpected due items %v", names)
	}
}

func TestRedeliverRetiresOldItem(t *testing.T) {
	db := testutil.DB(t)
	old := models.Item{
		Topic: "Linux", Level: "basic", QuestionText: "Old scheduled question?", Options: datatypes.JSON("[]"),
		OwnerUserID: 2, IsActive: true, DeliveryTime: "07:15:00", Frequency: models.FrequencyWeekly,
		DisplayStatus: models.DisplayStatusPending,
	}
	if err := db.Create(&old).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	o := &testutil.FakeOracle{}
	svc := newService(t, db, o, Options{})

	res, err := svc.Redeliver(context.Background(), old)
	if err != nil {
		t.Fatalf("Redeliver: %v", err)
	}
	if !strings.Contains(o.Prompts()[0], "Old scheduled question?") {
		t.Error("previous questions of the topic must be avoided")
	}

	repo := NewRepository(db)
	reloaded, _ := repo.GetByID(context.Background(), nil, old.ID)
	if reloaded.IsActive {
		t.Error("old item must be deactivated")
	}
	next, _ := repo.GetByID(context.Background(), nil, res.Item.ID)
	if !next.IsActive || next.DeliveryTime != "07:15:00" || next.Frequency != models.FrequencyWeekly || next.OwnerUserID != 2 {
		t.Errorf("new item must inherit the schedule: %+v", next)
	}
}

func TestRedeliverKeepsOldItemOnFailure(t *testing.T) {
	db := testutil.DB(t)
	old := models.Item{Topic: "Linux", QuestionText: "Old scheduled question?", Options: datatypes.JSON("[]"), OwnerUserID: 2, IsActive: true}
	if err := db.Create(&old).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	o := &testutil.FakeOracle{Reply: func(int, string) (string, error) { return testutil.InvalidReply, nil }}
	svc := newService(t, db, o, Options{})

	if _, err := svc.Redeliver(context.Background(), old); err == nil {
		t.Fatal("expected failure")
	}
	reloaded, _ := NewRepository(db).GetByID(context.Background(), nil, old.ID)
	if !reloaded.IsActive {
		t.Error("old item must stay active for the next tick")
	}
}

func TestAnswerGradesAndRecords(t *testing.T) {
	db := testutil.DB(t)
	svc := newService(t, db, &testutil.FakeOracle{}, Options{})
	item := seedItems(t, db, 4, "Linux", 1)[0]

	right, err := svc.Answer(context.Background(), AnswerRequest{UserID: 4, ItemID: item.ID, SelectedAnswer: "a", ResponseTime: 12})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !right.Correct || right.CorrectAnswer != "A" || right.ResponseID == 0 {
		t.Errorf("unexpected result for the right answer: %+v", right)
	}

	wrong, err := svc.Answer(context.Background(), AnswerRequest{UserID: 4, ItemID: item.ID, SelectedAnswer: "C", ResponseTime: 30})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if wrong.Correct || wrong.CorrectAnswer != "A" {
		t.Errorf("unexpected result for the wrong answer: %+v", wrong)
	}

	var rows []models.ItemResponse
	if err := db.Order("id").Find(&rows).Error; err != nil {
		t.Fatalf("load responses: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 stored responses, got %d", len(rows))
	}
	if rows[0].SelectedAnswer != "A" || !rows[0].Correct || rows[0].ResponseTime != 12 || rows[0].UserID != 4 {
		t.Errorf("unexpected first response %+v", rows[0])
	}
	if rows[1].SelectedAnswer != "C" || rows[1].Correct {
		t.Errorf("unexpected second response %+v", rows[1])
	}
}

func TestAnswerErrors(t *testing.T) {
	db := testutil.DB(t)
	svc := newService(t, db, &testutil.FakeOracle{}, Options{})
	item := seedItems(t, db, 4, "Linux", 1)[0]

	tests := []struct {
		name string
		req  AnswerRequest
		kind apperr.Kind
	}{
		{"foreign item", AnswerRequest{UserID: 5, ItemID: item.ID, SelectedAnswer: "A"}, apperr.KindNotFound},
		{"unknown item", AnswerRequest{UserID: 4, ItemID: item.ID + 100, SelectedAnswer: "A"}, apperr.KindNotFound},
		{"letter out of range", AnswerRequest{UserID: 4, ItemID: item.ID, SelectedAnswer: "E"}, apperr.KindValidation},
		{"negative time", AnswerRequest{UserID: 4, ItemID: item.ID, SelectedAnswer: "B", ResponseTime: -1}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Answer(context.Background(), tt.req)
			if apperr.KindOf(err) != tt.kind {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
		})
	}

	var n int64
	if err := db.Model(&models.ItemResponse{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("rejected answers must not be stored, found %d", n)
	}
}
