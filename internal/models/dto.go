// internal/models/dto.go
package models

import (
	"encoding/json"
	"fmt"
)

type ItemDTO struct {
	ID            uint     `json:"id"`
	Topic         string   `json:"topic"`
	Level         string   `json:"level"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
}

type storedOption struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

// ToDTO deserializes the stored options. The correct answer is only included
// when withAnswer is set.
func (i Item) ToDTO(withAnswer bool) (ItemDTO, error) {
	var opts []storedOption
	if len(i.Options) > 0 {
		if err := json.Unmarshal(i.Options, &opts); err != nil {
			return ItemDTO{}, fmt.Errorf("decode options of item %d: %w", i.ID, err)
		}
	}
	texts := make([]string, len(opts))
	for idx, o := range opts {
		texts[idx] = o.Text
	}

	dto := ItemDTO{
		ID:       i.ID,
		Topic:    i.Topic,
		Level:    i.Level,
		Question: i.QuestionText,
		Options:  texts,
	}
	if withAnswer {
		dto.CorrectAnswer = i.CorrectAnswer
	}
	return dto, nil
}

func ItemsToDTO(items []Item, withAnswer bool) ([]ItemDTO, error) {
	out := make([]ItemDTO, 0, len(items))
	for _, it := range items {
		dto, err := it.ToDTO(withAnswer)
		if err != nil {
			return nil, err
		}
		out = append(out, dto)
	}
	return out, nil
}

type LeaderboardEntry struct {
	UserID     uint `json:"user_id"`
	TotalScore int  `json:"score"`
}
