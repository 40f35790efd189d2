package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo stores jobs in Postgres. Stage payloads live in JSONB columns
// so a checkpointed job reloads with byte-identical stage outputs.
type PGRepo struct {
	db *sql.DB
}

func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{db: db}
}

const jobColumns = `id, status, progress, current_stage, error_message,
	company_name, company_context,
	audio_key, audio_filename, chart_keys, chart_filenames,
	transcript, audio_analysis, sentiment_analysis, chart_analysis, fusion_result, narrative,
	overall_confidence, overall_sentiment, risk_level,
	created_at, updated_at, started_at, completed_at`

func (r *PGRepo) Create(ctx context.Context, job *Job) error {
	chartKeys, err := json.Marshal(orEmpty(job.ChartKeys))
	if err != nil {
		return fmt.Errorf("marshal chart keys: %w", err)
	}
	chartNames, err := json.Marshal(orEmpty(job.ChartFileNames))
	if err != nil {
		return fmt.Errorf("marshal chart filenames: %w", err)
	}

	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analysis_jobs
			(id, status, progress, current_stage, error_message,
			 company_name, company_context,
			 audio_key, audio_filename, chart_keys, chart_filenames,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		job.ID, job.Status, job.Progress, job.CurrentStage, job.ErrorMessage,
		job.CompanyName, job.CompanyContext,
		job.AudioKey, job.AudioFileName, chartKeys, chartNames,
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *PGRepo) Get(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]*Job, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

func (r *PGRepo) MarkProcessing(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE analysis_jobs
		SET status = $1, started_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		StatusProcessing, id, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	if affected == 0 {
		// Either the id is unknown or the job has already left
		// pending. Distinguish so the caller can 404 vs 409.
		var status string
		err := r.db.QueryRowContext(ctx,
			`SELECT status FROM analysis_jobs WHERE id = $1`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("mark processing: %w", err)
		}
		return ErrAlreadyRunning
	}
	return nil
}

func (r *PGRepo) Update(ctx context.Context, job *Job) error {
	chartKeys, err := json.Marshal(orEmpty(job.ChartKeys))
	if err != nil {
		return fmt.Errorf("marshal chart keys: %w", err)
	}
	chartNames, err := json.Marshal(orEmpty(job.ChartFileNames))
	if err != nil {
		return fmt.Errorf("marshal chart filenames: %w", err)
	}

	transcript, err := marshalNullable(job.Transcript)
	if err != nil {
		return err
	}
	audioAnalysis, err := marshalNullable(job.AudioAnalysis)
	if err != nil {
		return err
	}
	sentimentAnalysis, err := marshalNullable(job.SentimentAnalysis)
	if err != nil {
		return err
	}
	chartAnalysis, err := marshalNullable(job.ChartAnalysis)
	if err != nil {
		return err
	}
	fusionResult, err := marshalNullable(job.FusionResult)
	if err != nil {
		return err
	}
	report, err := marshalNullable(job.Narrative)
	if err != nil {
		return err
	}

	job.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE analysis_jobs SET
			status = $1, progress = $2, current_stage = $3, error_message = $4,
			chart_keys = $5, chart_filenames = $6,
			transcript = $7, audio_analysis = $8, sentiment_analysis = $9,
			chart_analysis = $10, fusion_result = $11, narrative = $12,
			overall_confidence = $13, overall_sentiment = $14, risk_level = $15,
			updated_at = $16, completed_at = $17
		WHERE id = $18`,
		job.Status, job.Progress, job.CurrentStage, job.ErrorMessage,
		chartKeys, chartNames,
		transcript, audioAnalysis, sentimentAnalysis,
		chartAnalysis, fusionResult, report,
		job.OverallConfidence, job.OverallSentiment, job.RiskLevel,
		job.UpdatedAt, job.CompletedAt,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job        Job
		chartKeys  []byte
		chartNames []byte

		transcript        []byte
		audioAnalysis     []byte
		sentimentAnalysis []byte
		chartAnalysis     []byte
		fusionResult      []byte
		report            []byte

		startedAt   sql.NullTime
		completedAt sql.NullTime
	)

	err := row.Scan(
		&job.ID, &job.Status, &job.Progress, &job.CurrentStage, &job.ErrorMessage,
		&job.CompanyName, &job.CompanyContext,
		&job.AudioKey, &job.AudioFileName, &chartKeys, &chartNames,
		&transcript, &audioAnalysis, &sentimentAnalysis, &chartAnalysis, &fusionResult, &report,
		&job.OverallConfidence, &job.OverallSentiment, &job.RiskLevel,
		&job.CreatedAt, &job.UpdatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(chartKeys, &job.ChartKeys); err != nil {
		return nil, fmt.Errorf("decode chart keys: %w", err)
	}
	if err := json.Unmarshal(chartNames, &job.ChartFileNames); err != nil {
		return nil, fmt.Errorf("decode chart filenames: %w", err)
	}
	if err := unmarshalNullable(transcript, &job.Transcript); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(audioAnalysis, &job.AudioAnalysis); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(sentimentAnalysis, &job.SentimentAnalysis); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(chartAnalysis, &job.ChartAnalysis); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(fusionResult, &job.FusionResult); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(report, &job.Narrative); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

// marshalNullable turns a nil pointer into SQL NULL instead of the
// JSON literal "null".
func marshalNullable[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal stage payload: %w", err)
	}
	return raw, nil
}

func unmarshalNullable[T any](raw []byte, dst **T) error {
	if len(raw) == 0 {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode stage payload: %w", err)
	}
	*dst = &v
	return nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
