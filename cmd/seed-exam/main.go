package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prepforge/prepforge-backend/internal/config"
	"github.com/prepforge/prepforge-backend/internal/database"
	"github.com/prepforge/prepforge-backend/internal/logger"
	"github.com/prepforge/prepforge-backend/internal/model"
)

// Seeds a small sample exam for local development: four topics, five
// questions each, one exam covering all of them.

type seedQuestion struct {
	text    string
	options [4]string
	correct model.Answer
	topic   string
	explain string
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	fmt.Println("=== Seeding sample exam ===")

	topics := []string{"Algebra", "Geometry", "Mechanics", "Optics"}
	correctCycle := []model.Answer{model.AnswerA, model.AnswerB, model.AnswerC, model.AnswerD}

	var questionIDs []uuid.UUID
	created := 0
	for _, topic := range topics {
		for i := 1; i <= 5; i++ {
			q := seedQuestion{
				text:    fmt.Sprintf("%s practice question %d", topic, i),
				options: [4]string{"Option A", "Option B", "Option C", "Option D"},
				correct: correctCycle[i%len(correctCycle)],
				topic:   topic,
				explain: fmt.Sprintf("Worked solution for %s question %d.", topic, i),
			}

			id := uuid.New()
			_, err := pool.Exec(ctx,
				`INSERT INTO questions (id, text, option_a, option_b, option_c, option_d, correct, topic, explanation)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				id, q.text, q.options[0], q.options[1], q.options[2], q.options[3],
				string(q.correct), q.topic, q.explain,
			)
			if err != nil {
				fmt.Printf("Error creating question %q: %v\n", q.text, err)
				continue
			}
			questionIDs = append(questionIDs, id)
			created++
		}
	}
	fmt.Printf("Created %d questions\n", created)

	examID := uuid.New()
	_, err = pool.Exec(ctx,
		`INSERT INTO exams (id, name, question_ids, negative_mark, time_limit_minutes)
		 VALUES ($1, $2, $3, $4, $5)`,
		examID, "Sample Mixed Exam", questionIDs, model.DefaultNegativeMark, model.DefaultTimeLimit,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}

	fmt.Printf("\nSeed completed! Exam ID: %s (%d questions)\n", examID, len(questionIDs))
}
