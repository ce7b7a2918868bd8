package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/feedlab/persnews/pkg/domain"
	"github.com/feedlab/persnews/pkg/service"
)

// newsResponse is the payload for GET /api/v1/news
type newsResponse struct {
	Headlines []domain.Headline `json:"headlines"`
	UserID    int64             `json:"user_id"`
}

// newsHandler returns personalized scored headlines for the caller
func (s *Server) newsHandler(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	headlines, err := s.personalizer.Personalize(r.Context(), uid)
	if err != nil {
		log.Printf("[ERROR] personalize for user %d failed: %v", uid, err)
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	if headlines == nil {
		headlines = []domain.Headline{}
	}
	RenderJSON(w, r, http.StatusOK, newsResponse{Headlines: headlines, UserID: uid})
}

// ratingHandler records a 1..5 keyword rating for the caller
func (s *Server) ratingHandler(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)

	keyword := strings.TrimSpace(r.PathValue("keyword"))
	if keyword == "" {
		RenderError(w, r, fmt.Errorf("keyword is required"), http.StatusBadRequest)
		return
	}

	rating, err := strconv.Atoi(r.PathValue("rating"))
	if err != nil {
		RenderError(w, r, fmt.Errorf("rating must be an integer"), http.StatusBadRequest)
		return
	}

	if err := s.personalizer.Rate(r.Context(), uid, keyword, rating); err != nil {
		if errors.Is(err, service.ErrInvalidRating) {
			RenderError(w, r, err, http.StatusBadRequest)
			return
		}
		log.Printf("[ERROR] rating for user %d failed: %v", uid, err)
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{"user_id": uid, "keyword": keyword, "rating": rating})
}
