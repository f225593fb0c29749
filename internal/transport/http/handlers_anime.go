package http

import (
	"net/http"

	"github.com/anivouch/anivouch/internal/service"
)

func (s *Server) handleAnimeSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	results, err := s.animeService.Search(r.Context(), service.SearchInput{
		Search: query.Get("search"),
		Sort:   query.Get("sort"),
	})
	if err != nil {
		s.writeError(w, err, map[string]any{"operation": "animeSearch", "search": query.Get("search")})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
