// internal/content/repository.go
package content

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"quiz-practice/internal/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func topicPattern(topic string) string {
	return "%" + strings.ToLower(strings.TrimSpace(topic)) + "%"
}

// FindByTopicAndUser returns up to limit random items of the user whose topic
// contains the given one.
func (r *Repository) FindByTopicAndUser(ctx context.Context, tx *gorm.DB, userID uint, topic string, limit int) ([]models.Item, error) {
	var items []models.Item
	err := r.conn(ctx, tx).
		Where("owner_user_id = ? AND LOWER(topic) LIKE ?", userID, topicPattern(topic)).
		Order("RANDOM()").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// FindExcluding is FindByTopicAndUser minus the given ids.
func (r *Repository) FindExcluding(ctx context.Context, tx *gorm.DB, userID uint, topic string, exclude []uint, limit int) ([]models.Item, error) {
	q := r.conn(ctx, tx).
		Where("owner_user_id = ? AND LOWER(topic) LIKE ?", userID, topicPattern(topic))
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	var items []models.Item
	err := q.Order("RANDOM()").Limit(limit).Find(&items).Error
	return items, err
}

// RecentQuestionTexts returns the newest question texts for a topic across all
// users, newest first.
func (r *Repository) RecentQuestionTexts(ctx context.Context, tx *gorm.DB, topic string, limit int) ([]string, error) {
	var texts []string
	err := r.conn(ctx, tx).
		Model(&models.Item{}).
		Where("LOWER(topic) LIKE ?", topicPattern(topic)).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Pluck("question_text", &texts).Error
	return texts, err
}

func (r *Repository) Create(ctx context.Context, tx *gorm.DB, item *models.Item) error {
	return r.conn(ctx, tx).Create(item).Error
}

func (r *Repository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Item, error) {
	var item models.Item
	if err := r.conn(ctx, tx).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// GetOwned loads an item only if userID owns it.
func (r *Repository) GetOwned(ctx context.Context, tx *gorm.DB, userID, itemID uint) (*models.Item, error) {
	var item models.Item
	err := r.conn(ctx, tx).
		Where("id = ? AND owner_user_id = ?", itemID, userID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) CreateResponse(ctx context.Context, tx *gorm.DB, resp *models.ItemResponse) error {
	return r.conn(ctx, tx).Create(resp).Error
}

func (r *Repository) DistinctTopics(ctx context.Context, tx *gorm.DB, userID uint) ([]string, error) {
	var topics []string
	err := r.conn(ctx, tx).
		Model(&models.Item{}).
		Where("owner_user_id = ? AND topic <> ''", userID).
		Distinct().
		Order("topic").
		Pluck("topic", &topics).Error
	return topics, err
}

// FindPending lists delivered items the user has not opened yet.
func (r *Repository) FindPending(ctx context.Context, tx *gorm.DB, userID uint) ([]models.Item, error) {
	var items []models.Item
	err := r.conn(ctx, tx).
		Where("owner_user_id = ? AND display_status = ? AND is_active = ?", userID, models.DisplayStatusPending, false).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// MarkDisplayed flips a pending item owned by userID to active. It reports
// whether a row matched.
func (r *Repository) MarkDisplayed(ctx context.Context, tx *gorm.DB, userID, itemID uint) (bool, error) {
	res := r.conn(ctx, tx).
		Model(&models.Item{}).
		Where("id = ? AND owner_user_id = ?", itemID, userID).
		Update("display_status", models.DisplayStatusActive)
	return res.RowsAffected > 0, res.Error
}

// ActiveScheduled returns every item still carrying a live schedule.
func (r *Repository) ActiveScheduled(ctx context.Context, tx *gorm.DB, createdBefore time.Time) ([]models.Item, error) {
	var items []models.Item
	err := r.conn(ctx, tx).
		Where("is_active = ? AND created_at < ?", true, createdBefore).
		Order("id").
		Find(&items).Error
	return items, err
}

// Deactivate clears is_active only if it is still set, so concurrent runs
// cannot both claim the same item.
func (r *Repository) Deactivate(ctx context.Context, tx *gorm.DB, itemID uint) (bool, error) {
	res := r.conn(ctx, tx).
		Model(&models.Item{}).
		Where("id = ? AND is_active = ?", itemID, true).
		Update("is_active", false)
	return res.RowsAffected > 0, res.Error
}

// ItemsWithRawText feeds the offline audit.
func (r *Repository) ItemsWithRawText(ctx context.Context, tx *gorm.DB, topic string, limit int) ([]models.Item, error) {
	q := r.conn(ctx, tx).Where("raw_text <> ''")
	if strings.TrimSpace(topic) != "" {
		q = q.Where("LOWER(topic) LIKE ?", topicPattern(topic))
	}
	var items []models.Item
	err := q.Order("created_at DESC").Limit(limit).Find(&items).Error
	return items, err
}
