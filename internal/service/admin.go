package service

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/mantikon-registration/internal/model"
	"github.com/Shivanand-hulikatti/mantikon-registration/internal/report"
	log "github.com/sirupsen/logrus"
)

// Overview is the admin view over all registrations.
type Overview struct {
	Groups  []model.TableGroup
	Report  string
	Orphans int
}

// AdminService backs the chat bot's roster and cleanup commands.
type AdminService struct {
	registrations RegistrationStore
}

// NewAdminService constructs an AdminService.
func NewAdminService(registrations RegistrationStore) *AdminService {
	return &AdminService{registrations: registrations}
}

// Overview groups every registration by table and renders the roster.
func (s *AdminService) Overview(ctx context.Context) (*Overview, error) {
	groups, err := s.groups(ctx)
	if err != nil {
		return nil, err
	}
	orphans, err := s.registrations.CountOrphans(ctx)
	if err != nil {
		return nil, fmt.Errorf("count orphans: %w", err)
	}
	return &Overview{
		Groups:  groups,
		Report:  report.Report(groups),
		Orphans: orphans,
	}, nil
}

// Group returns the registrations of one table; "" selects the no-table
// group. The bool is false when nobody is registered there.
func (s *AdminService) Group(ctx context.Context, tableID string) (model.TableGroup, bool, error) {
	groups, err := s.groups(ctx)
	if err != nil {
		return model.TableGroup{}, false, err
	}
	g, ok := report.Find(groups, tableID)
	if !ok || len(g.Players) == 0 {
		return model.TableGroup{TableID: tableID}, false, nil
	}
	return g, true, nil
}

// DeleteRegistration removes one registration by id. It returns
// repository.ErrNotFound when the row is already gone.
func (s *AdminService) DeleteRegistration(ctx context.Context, id int64) (*model.Registration, error) {
	reg, err := s.registrations.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"registration_id": id,
		"table_id":        reg.EffectiveTableID(),
	}).Info("registration deleted")
	return reg, nil
}

// CleanupOrphans deletes registrations whose table exists only in metadata.
func (s *AdminService) CleanupOrphans(ctx context.Context) (int64, error) {
	n, err := s.registrations.DeleteOrphans(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleanup orphans: %w", err)
	}
	log.WithField("deleted", n).Info("orphaned registrations removed")
	return n, nil
}

func (s *AdminService) groups(ctx context.Context) ([]model.TableGroup, error) {
	rows, err := s.registrations.ListRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return report.Group(rows), nil
}
