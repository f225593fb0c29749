package service

import (
	"context"
	"strings"

	"github.com/anivouch/anivouch/internal/anilist"
	"github.com/anivouch/anivouch/internal/domain"
	"github.com/anivouch/anivouch/internal/metrics"
)

// AnimeService validates search input and proxies it to AniList.
type AnimeService struct {
	client  *anilist.Client
	metrics *metrics.Metrics
}

func NewAnimeService(client *anilist.Client, m *metrics.Metrics) *AnimeService {
	return &AnimeService{client: client, metrics: m}
}

// SearchInput is a raw search request before validation.
type SearchInput struct {
	Search string
	Sort   string
}

// Search validates the input and runs the AniList query.
func (s *AnimeService) Search(ctx context.Context, input SearchInput) ([]anilist.Media, error) {
	var errs domain.ValidationErrors

	search := strings.TrimSpace(input.Search)
	switch {
	case search == "":
		errs = append(errs, domain.ValidationError{Field: "search", Message: "Search query cannot be empty"})
	case len(search) > 100:
		errs = append(errs, domain.ValidationError{Field: "search", Message: "Search query too long"})
	}

	sort := input.Sort
	if sort == "" {
		sort = anilist.DefaultSort
	} else if !anilist.ValidSort(sort) {
		errs = append(errs, domain.ValidationError{Field: "sort", Message: "invalid sort order"})
	}

	if len(errs) > 0 {
		return nil, errs
	}

	results, err := s.client.Search(ctx, search, sort)
	if err != nil {
		s.metrics.AnilistRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	s.metrics.AnilistRequests.WithLabelValues("ok").Inc()
	return results, nil
}
