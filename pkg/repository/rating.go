package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"

	"github.com/feedlab/persnews/pkg/domain"
)

// ErrKeywordNotFound is returned when a keyword id has no row
var ErrKeywordNotFound = errors.New("keyword not found")

// UpsertRating stores a rating for (userID, keywordText), allocating a keyword
// id on first sight of the text. An existing rating for the pair is replaced.
func (s *Store) UpsertRating(ctx context.Context, userID int64, keywordText string, rating int) (int64, error) {
	if rating < 1 || rating > 5 {
		return 0, fmt.Errorf("rating %d out of range 1..5", rating)
	}

	keywordID, err := s.keywordID(ctx, keywordText)
	if err != nil {
		return 0, fmt.Errorf("resolve keyword %q: %w", keywordText, err)
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	err = retrier.Do(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO ratings (user_id, keyword_id, rating) VALUES (?, ?, ?)",
			userID, keywordID, rating)
		if err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("upsert rating: %w", err)}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return keywordID, nil
}

// ListRatings returns the complete rating set, one row per (user, keyword) pair
func (s *Store) ListRatings(ctx context.Context) ([]domain.Rating, error) {
	var ratings []domain.Rating
	if err := s.db.SelectContext(ctx, &ratings, "SELECT user_id, keyword_id, rating FROM ratings"); err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	return ratings, nil
}

// GetKeyword resolves a keyword id to its text
func (s *Store) GetKeyword(ctx context.Context, keywordID int64) (string, error) {
	var text string
	err := s.db.GetContext(ctx, &text, "SELECT keyword FROM keywords WHERE keyword_id = ?", keywordID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrKeywordNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get keyword %d: %w", keywordID, err)
	}
	return text, nil
}

// HasRatings reports whether the user has any ratings on record,
// used by the orchestrator for the cold-start decision
func (s *Store) HasRatings(ctx context.Context, userID int64) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM ratings WHERE user_id = ?", userID)
	if err != nil {
		return false, fmt.Errorf("check ratings for user %d: %w", userID, err)
	}
	return count > 0, nil
}

// keywordID returns the id for a keyword text, inserting it if never seen
func (s *Store) keywordID(ctx context.Context, text string) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, "SELECT keyword_id FROM keywords WHERE keyword = ?", text)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, "INSERT INTO keywords (keyword) VALUES (?)", text)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
