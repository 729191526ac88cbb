package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/jonathan/job-ranker/internal/types"
)

// GetProfileBundle loads the profile, skills, experiences and preferences of a user.
func (db *DB) GetProfileBundle(ctx context.Context, userID uuid.UUID) (*types.ProfileBundle, error) {
	bundle := &types.ProfileBundle{}

	var p types.Profile
	err := db.pool.QueryRow(ctx,
		`SELECT user_id, COALESCE(full_name, ''), COALESCE(headline, ''), COALESCE(about, '')
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.FullName, &p.Headline, &p.About)
	switch {
	case err == nil:
		bundle.Profile = &p
	case !isNoRows(err):
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	rows, err := db.pool.Query(ctx,
		`SELECT name, years FROM skills WHERE user_id = $1 ORDER BY years DESC NULLS LAST`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get skills: %w", err)
	}
	for rows.Next() {
		var s types.Skill
		if err := rows.Scan(&s.Name, &s.Years); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan skill: %w", err)
		}
		bundle.Skills = append(bundle.Skills, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get skills: %w", err)
	}

	rows, err = db.pool.Query(ctx,
		`SELECT COALESCE(title, ''), COALESCE(company, ''), COALESCE(description, ''), start_date, end_date
		 FROM experiences WHERE user_id = $1 ORDER BY start_date DESC NULLS LAST`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get experiences: %w", err)
	}
	for rows.Next() {
		var e types.Experience
		if err := rows.Scan(&e.Title, &e.Company, &e.Description, &e.StartDate, &e.EndDate); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan experience: %w", err)
		}
		bundle.Experiences = append(bundle.Experiences, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get experiences: %w", err)
	}

	var pref types.Preference
	err = db.pool.QueryRow(ctx,
		`SELECT hourly_rate_min, hourly_rate_max, COALESCE(currency, ''), tightness
		 FROM preferences WHERE user_id = $1`,
		userID,
	).Scan(&pref.HourlyRateMin, &pref.HourlyRateMax, &pref.Currency, &pref.Tightness)
	switch {
	case err == nil:
		bundle.Preference = &pref
	case !isNoRows(err):
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	return bundle, nil
}

// UpdateProfileEmbedding overwrites the profile embedding and its timestamp.
func (db *DB) UpdateProfileEmbedding(ctx context.Context, userID uuid.UUID, embedding []float32, at time.Time) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE profiles SET embedding = $2, embedding_updated_at = $3 WHERE user_id = $1`,
		userID, pgvector.NewVector(embedding), at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update profile embedding: %w", err)
	}
	return nil
}
