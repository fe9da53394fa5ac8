package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Israelam72/mini-seller-console/internal/crm"
)

const (
	LeadsKey         = "mini-seller-leads-data"
	OpportunitiesKey = "mini-seller-opportunities-data"
)

// LeadSource supplies the dataset used to bootstrap an empty lead
// collection. Implemented by the seed package.
type LeadSource interface {
	Leads(ctx context.Context) ([]crm.Lead, error)
}

// Store reads and writes the lead and opportunity collections as whole
// serialized arrays. Reads fail soft: an unreadable collection is empty.
//
// Each read-modify-write method holds mu for the full cycle. Sequences that
// span several methods are not isolated; the later write wins.
type Store struct {
	backend Backend
	logger  *slog.Logger

	mu sync.Mutex
}

// New creates a Store over backend. A nil logger uses slog.Default().
func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger}
}

// --- Leads ---

// LoadLeads returns the stored leads, or an empty slice if the key is absent
// or its content cannot be read.
func (s *Store) LoadLeads(ctx context.Context) []crm.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	return load[crm.Lead](ctx, s, LeadsKey)
}

// SaveLeads overwrites the lead collection. Failures are logged and returned
// wrapped in crm.ErrStorageUnavailable.
func (s *Store) SaveLeads(ctx context.Context, leads []crm.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return save(ctx, s, LeadsKey, leads)
}

// HasLeads reports whether the lead collection holds at least one lead.
func (s *Store) HasLeads(ctx context.Context) bool {
	return len(s.LoadLeads(ctx)) > 0
}

// InitializeLeads persists the seed dataset when the lead collection is
// empty. A populated collection is left untouched.
func (s *Store) InitializeLeads(ctx context.Context, src LeadSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(load[crm.Lead](ctx, s, LeadsKey)) > 0 {
		return nil
	}

	leads, err := src.Leads(ctx)
	if err != nil {
		s.logger.Error("loading seed leads failed", "error", err)
		return fmt.Errorf("loading seed leads: %w", err)
	}
	if len(leads) == 0 {
		return nil
	}
	if err := save(ctx, s, LeadsKey, leads); err != nil {
		return err
	}
	s.logger.Info("lead collection seeded", "count", len(leads))
	return nil
}

// UpdateLead applies fn to the lead with the given id and persists the
// collection. It returns the lead as it was before fn ran.
func (s *Store) UpdateLead(ctx context.Context, id int, fn func(*crm.Lead)) (crm.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	leads := load[crm.Lead](ctx, s, LeadsKey)
	idx := indexOfLead(leads, id)
	if idx < 0 {
		s.logger.Warn("lead not found", "lead_id", id)
		return crm.Lead{}, fmt.Errorf("lead %d: %w", id, crm.ErrNotFound)
	}

	prev := leads[idx]
	fn(&leads[idx])
	if err := save(ctx, s, LeadsKey, leads); err != nil {
		return prev, err
	}
	return prev, nil
}

// GetLead returns the lead with the given id.
func (s *Store) GetLead(ctx context.Context, id int) (crm.Lead, error) {
	leads := s.LoadLeads(ctx)
	idx := indexOfLead(leads, id)
	if idx < 0 {
		return crm.Lead{}, fmt.Errorf("lead %d: %w", id, crm.ErrNotFound)
	}
	return leads[idx], nil
}

// DeleteLead removes the lead with the given id.
func (s *Store) DeleteLead(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	leads := load[crm.Lead](ctx, s, LeadsKey)
	idx := indexOfLead(leads, id)
	if idx < 0 {
		s.logger.Warn("lead not found", "lead_id", id)
		return fmt.Errorf("lead %d: %w", id, crm.ErrNotFound)
	}

	leads = append(leads[:idx], leads[idx+1:]...)
	return save(ctx, s, LeadsKey, leads)
}

// ClearLeads removes the lead collection entirely.
func (s *Store) ClearLeads(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx, LeadsKey); err != nil {
		s.logger.Error("clearing leads failed", "key", LeadsKey, "error", err)
		return fmt.Errorf("clearing leads: %w: %v", crm.ErrStorageUnavailable, err)
	}
	return nil
}

// --- Opportunities ---

// LoadOpportunities returns the stored opportunities, or an empty slice if
// the key is absent or its content cannot be read.
func (s *Store) LoadOpportunities(ctx context.Context) []crm.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return load[crm.Opportunity](ctx, s, OpportunitiesKey)
}

func (s *Store) SaveOpportunities(ctx context.Context, opps []crm.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return save(ctx, s, OpportunitiesKey, opps)
}

// AddOpportunity appends o. Ids are not checked for uniqueness.
func (s *Store) AddOpportunity(ctx context.Context, o crm.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	opps := load[crm.Opportunity](ctx, s, OpportunitiesKey)
	opps = append(opps, o)
	return save(ctx, s, OpportunitiesKey, opps)
}

// RemoveOpportunity drops the most recently appended opportunity with the
// given id and leaves every other entry untouched.
func (s *Store) RemoveOpportunity(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	opps := load[crm.Opportunity](ctx, s, OpportunitiesKey)
	for i := len(opps) - 1; i >= 0; i-- {
		if opps[i].ID == id {
			opps = append(opps[:i], opps[i+1:]...)
			return save(ctx, s, OpportunitiesKey, opps)
		}
	}
	return fmt.Errorf("opportunity %d: %w", id, crm.ErrNotFound)
}

// --- helpers (callers hold s.mu) ---

func load[T any](ctx context.Context, s *Store, key string) []T {
	data, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return []T{}
	}
	if err != nil {
		s.logger.Error("reading collection failed", "key", key, "error", err)
		return []T{}
	}

	items, err := decode[T](data)
	if err != nil {
		s.logger.Error("decoding collection failed", "key", key, "error", err)
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	return items
}

func save[T any](ctx context.Context, s *Store, key string, items []T) error {
	data, err := encode(items)
	if err != nil {
		s.logger.Error("encoding collection failed", "key", key, "error", err)
		return fmt.Errorf("encoding %s: %w: %v", key, crm.ErrStorageUnavailable, err)
	}
	if err := s.backend.Put(ctx, key, data); err != nil {
		s.logger.Error("writing collection failed", "key", key, "error", err)
		return fmt.Errorf("writing %s: %w: %v", key, crm.ErrStorageUnavailable, err)
	}
	return nil
}

func indexOfLead(leads []crm.Lead, id int) int {
	for i, l := range leads {
		if l.ID == id {
			return i
		}
	}
	return -1
}
