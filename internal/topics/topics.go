package topics

import (
	"context"
	"encoding/json"
	"net/http"

	"onetalk/internal/models"
	"onetalk/internal/store"
)

type Service struct{ st *store.Store }

func NewService(st *store.Store) *Service { return &Service{st: st} }

func (s *Service) ListActive(ctx context.Context) ([]models.Topic, error) {
	out := []models.Topic{}
	err := s.st.DB.SelectContext(ctx, &out, `SELECT id, name, description, color, is_active
		FROM topics WHERE is_active ORDER BY name`)
	return out, err
}

func HandleList(s *Service, w http.ResponseWriter, r *http.Request) error {
	items, err := s.ListActive(r.Context())
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(items)
}
