package services

import (
	"context"
	"fmt"
	"log"

	"clipbot/internal/match"
	"clipbot/internal/models"
)

// SearchService turns free-form query text into a match outcome against
// the movie catalog.
type SearchService struct {
	movies   *MovieService
	sessions *SessionService
	stats    *StatsService
	metrics  *Metrics
}

func NewSearchService(movies *MovieService, sessions *SessionService, stats *StatsService, metrics *Metrics) *SearchService {
	return &SearchService{
		movies:   movies,
		sessions: sessions,
		stats:    stats,
		metrics:  metrics,
	}
}

// SearchOutcome is the resolved result of one search
type SearchOutcome struct {
	Kind       match.OutcomeKind
	Match      *models.Movie
	Candidates []*models.Movie
}

// Search normalizes the raw query, resolves it against the current
// catalog and records the outcome. Suggestion candidates are stashed in
// the session store so a later callback can pick one by index.
func (s *SearchService) Search(ctx context.Context, userID int64, rawQuery string) (*SearchOutcome, error) {
	query := match.NormalizeQuery(rawQuery)
	if len(query) < 2 {
		s.record("rejected")
		return &SearchOutcome{Kind: match.NoMatch}, nil
	}

	if s.stats != nil {
		_ = s.stats.IncrSearches(ctx)
	}

	movies, err := s.movies.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog load: %w", err)
	}

	outcome := match.Resolve(query, movies)

	switch outcome.Kind {
	case match.SingleMatch:
		s.record("single")
		return &SearchOutcome{Kind: match.SingleMatch, Match: outcome.Match}, nil

	case match.Suggestions:
		s.record("suggestions")
		if s.sessions != nil {
			titles := make([]string, len(outcome.Candidates))
			for i, c := range outcome.Candidates {
				titles[i] = c.Title
			}
			if err := s.sessions.SaveSuggestions(ctx, userID, titles); err != nil {
				log.Printf("⚠️ [SEARCH] Failed to stash suggestions for %d: %v", userID, err)
			}
		}
		return &SearchOutcome{Kind: match.Suggestions, Candidates: outcome.Candidates}, nil

	default:
		s.record("none")
		return &SearchOutcome{Kind: match.NoMatch}, nil
	}
}

// PickSuggestion resolves an earlier suggestion callback by index
func (s *SearchService) PickSuggestion(ctx context.Context, userID int64, index int) (*models.Movie, error) {
	if s.sessions == nil {
		return nil, fmt.Errorf("suggestion sessions unavailable")
	}
	title, err := s.sessions.Suggestion(ctx, userID, index)
	if err != nil {
		return nil, fmt.Errorf("suggestion lookup: %w", err)
	}
	if title == "" {
		return nil, fmt.Errorf("suggestion %d for user %d expired", index, userID)
	}
	return s.movies.GetByTitle(ctx, title)
}

func (s *SearchService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.Searches.WithLabelValues(outcome).Inc()
	}
}
