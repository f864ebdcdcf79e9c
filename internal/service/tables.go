package service

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/mantikon-registration/internal/model"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/report"
)

// TableService lists game tables for the registration form.
type TableService struct {
	offerings OfferingStore
}

// NewTableService constructs a TableService.
func NewTableService(offerings OfferingStore) *TableService {
	return &TableService{offerings: offerings}
}

// List returns every offering, numeric ids first. Never nil.
func (s *TableService) List(ctx context.Context) ([]model.Offering, error) {
	offerings, err := s.offerings.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	if offerings == nil {
		offerings = []model.Offering{}
	}
	report.SortOfferings(offerings)
	return offerings, nil
}

// Selectable returns the offerings that still have free seats.
func (s *TableService) Selectable(ctx context.Context) ([]model.Offering, error) {
	offerings, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Offering, 0, len(offerings))
	for _, o := range offerings {
		if o.Selectable() {
			out = append(out, o)
		}
	}
	return out, nil
}
