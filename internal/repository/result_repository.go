package repository

import (
	"context"
	"fmt"
	"strings"

	"quizforge/internal/domain"

	"github.com/jmoiron/sqlx"
)

const optionsDelimiter = "|||"

// ResultRepository implements domain.PersistenceSink on Oracle via
// sqlx. One terminal RunResult becomes one RUN_RESULTS row plus its
// per-set and per-question rows, written in a single transaction.
type ResultRepository struct {
	db *sqlx.DB
}

func NewResultRepository(db *sqlx.DB) domain.PersistenceSink {
	return &ResultRepository{db: db}
}

// Save persists a terminal run result. The orchestrator calls this
// once per run, best effort.
func (r *ResultRepository) Save(ctx context.Context, result *domain.RunResult) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO run_results
			(run_id, status, topic, difficulty, requesting_user, accepted_count, failed_count, completed_at)
		VALUES (:1, :2, :3, :4, :5, :6, :7, :8)`,
		result.RunID,
		string(result.Status),
		result.Topic,
		string(result.Difficulty),
		result.RequestingUser,
		result.AcceptedCount,
		result.FailedCount,
		result.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run result %s: %w", result.RunID, err)
	}

	for _, set := range result.Sets {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_result_sets
				(run_id, set_index, status, attempts, validation_text, failure_reason)
			VALUES (:1, :2, :3, :4, :5, :6)`,
			result.RunID,
			set.Index,
			string(set.Status),
			set.Attempts,
			set.ValidationText,
			set.FailureReason,
		)
		if err != nil {
			return fmt.Errorf("failed to insert set %d of run %s: %w", set.Index, result.RunID, err)
		}

		for _, q := range set.Items {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO run_result_questions
					(run_id, set_index, order_index, description, options, answer, explanation)
				VALUES (:1, :2, :3, :4, :5, :6, :7)`,
				result.RunID,
				set.Index,
				q.OrderIndex,
				q.Description,
				strings.Join(q.Options, optionsDelimiter),
				q.Answer,
				q.Explanation,
			)
			if err != nil {
				return fmt.Errorf("failed to insert question %d of run %s set %d: %w",
					q.OrderIndex, result.RunID, set.Index, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run result %s: %w", result.RunID, err)
	}
	return nil
}
