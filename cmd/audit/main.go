// cmd/audit/main.go
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/pflag"

	"quiz-practice/internal/config"
	"quiz-practice/internal/content"
	"quiz-practice/internal/question"
	"quiz-practice/pkg/database"
	"quiz-practice/pkg/logger"
)

func main() {
	topic := pflag.StringP("topic", "t", "", "only audit items whose topic matches")
	limit := pflag.IntP("limit", "n", 200, "maximum number of stored replies to audit")
	verbose := pflag.BoolP("verbose", "v", false, "print every per-item result as JSON")
	pflag.Parse()

	log, err := logger.New("development")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	dbCfg, err := config.LoadDatabase()
	if err != nil {
		log.Fatal("invalid configuration", "error", err)
	}
	db, err := database.NewPostgresDB(&dbCfg)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}

	items, err := content.NewRepository(db).ItemsWithRawText(context.Background(), nil, *topic, *limit)
	if err != nil {
		log.Fatal("failed to load items", "error", err)
	}

	questions := make([]question.StructuredQuestion, 0, len(items))
	for _, it := range items {
		questions = append(questions, question.Parse(it.Topic, it.Level, it.RawText))
	}
	// Each item is judged against its own topic; --topic only filters.
	report := question.NewValidator().ValidateBatch(questions, "")

	log.Info("audit finished",
		"topic", *topic,
		"total", report.Total,
		"valid", report.Valid,
		"invalid", report.Invalid,
		"avg_score", report.AvgScore,
	)
	for i, res := range report.Results {
		if !res.IsValid {
			log.Warn("invalid stored item", "item_id", items[i].ID, "errors", res.Errors, "score", res.Score)
		}
	}

	if *verbose {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Error("could not print report", "error", err)
		}
	}
	if report.Invalid > 0 {
		log.Sync()
		os.Exit(1)
	}
}
