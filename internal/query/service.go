// Package query serves filtered, sorted views of the lead and opportunity
// collections and the lead save path, behind a simulated remote-API policy.
package query

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/text/language"

	"github.com/Israelam72/mini-seller-console/internal/crm"
	"github.com/Israelam72/mini-seller-console/internal/persistence"
)

// Store is the subset of persistence.Store the service reads and writes.
type Store interface {
	InitializeLeads(ctx context.Context, src persistence.LeadSource) error
	LoadLeads(ctx context.Context) []crm.Lead
	LoadOpportunities(ctx context.Context) []crm.Opportunity
	UpdateLead(ctx context.Context, id int, fn func(*crm.Lead)) (crm.Lead, error)
}

// LeadQuery selects and orders leads. Empty fields mean "no filter"; an
// empty sort defaults to score, descending.
type LeadQuery struct {
	Search    string
	Statuses  []crm.Status
	SortBy    string
	SortOrder string
}

// OpportunityQuery selects and orders opportunities. An empty sort defaults
// to amount, descending.
type OpportunityQuery struct {
	Search    string
	SortBy    string
	SortOrder string
}

type Service struct {
	store  Store
	seed   persistence.LeadSource
	policy Policy
	logger *slog.Logger

	lang                language.Tag
	rollbackOnTransient bool
}

type Option func(*Service)

// WithCollation sets the language whose collation orders string fields.
func WithCollation(tag language.Tag) Option {
	return func(s *Service) { s.lang = tag }
}

// WithRollbackOnTransient makes SaveLead undo the local write when the
// simulated remote call fails.
func WithRollbackOnTransient(enabled bool) Option {
	return func(s *Service) { s.rollbackOnTransient = enabled }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service. A nil policy behaves like Instant.
func NewService(store Store, seed persistence.LeadSource, policy Policy, opts ...Option) *Service {
	if policy == nil {
		policy = Instant{}
	}
	s := &Service{
		store:  store,
		seed:   seed,
		policy: policy,
		logger: slog.Default(),
		lang:   language.English,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// QueryLeads returns every lead matching q, sorted. The lead collection is
// seeded first if it is empty.
func (s *Service) QueryLeads(ctx context.Context, q LeadQuery) ([]crm.Lead, error) {
	f, desc, err := sortSpec(leadFields, q.SortBy, q.SortOrder, "score")
	if err != nil {
		return nil, err
	}
	for _, st := range q.Statuses {
		if !st.Valid() {
			return nil, &crm.ValidationError{Fields: map[string]string{
				"status": "unknown status " + string(st),
			}}
		}
	}

	if err := s.policy.Delay(ctx); err != nil {
		return nil, err
	}

	if s.seed != nil {
		if err := s.store.InitializeLeads(ctx, s.seed); err != nil {
			s.logger.Warn("lead seeding failed, serving stored data", "error", err)
		}
	}

	leads := filterLeads(s.store.LoadLeads(ctx), q)
	sortStable(leads, f, desc, s.lang)
	return leads, nil
}

// QueryOpportunities returns every opportunity matching q, sorted.
func (s *Service) QueryOpportunities(ctx context.Context, q OpportunityQuery) ([]crm.Opportunity, error) {
	f, desc, err := sortSpec(opportunityFields, q.SortBy, q.SortOrder, "amount")
	if err != nil {
		return nil, err
	}

	if err := s.policy.Delay(ctx); err != nil {
		return nil, err
	}

	opps := filterOpportunities(s.store.LoadOpportunities(ctx), q.Search)
	sortStable(opps, f, desc, s.lang)
	return opps, nil
}

// SaveLead validates u and writes it to the lead with the given id.
//
// After the write the policy may report a transient failure. The returned
// *crm.TransientError then has Committed set when the edit stayed in the
// store: a caller that retries re-applies an edit that is already saved.
// With WithRollbackOnTransient the previous lead is restored first.
func (s *Service) SaveLead(ctx context.Context, id int, u crm.LeadUpdate) error {
	if err := crm.ValidateLeadUpdate(u); err != nil {
		return err
	}
	status, _ := crm.ParseStatus(u.Status)

	if err := s.policy.Delay(ctx); err != nil {
		return err
	}

	// The write runs to completion once started, so it does not observe ctx
	// cancellation.
	writeCtx := context.WithoutCancel(ctx)
	prev, err := s.store.UpdateLead(writeCtx, id, func(l *crm.Lead) {
		l.Email = u.Email
		l.Status = status
	})
	if err != nil {
		if !errors.Is(err, crm.ErrNotFound) {
			s.logger.Error("saving lead failed", "lead_id", id, "error", err)
		}
		return err
	}

	if !s.policy.Fail() {
		return nil
	}

	terr := &crm.TransientError{Op: "save lead", Committed: true}
	if s.rollbackOnTransient {
		// Replace in place only: a lead converted or deleted meanwhile stays gone.
		_, err := s.store.UpdateLead(writeCtx, id, func(l *crm.Lead) { *l = prev })
		switch {
		case errors.Is(err, crm.ErrNotFound):
			s.logger.Warn("lead removed before rollback", "lead_id", id)
		case err != nil:
			s.logger.Error("rolling back lead after transient failure", "lead_id", id, "error", err)
		default:
			terr.Committed = false
		}
	}
	s.logger.Warn("simulated transient failure on lead save", "lead_id", id, "committed", terr.Committed)
	return terr
}

func filterLeads(leads []crm.Lead, q LeadQuery) []crm.Lead {
	var allowed map[crm.Status]bool
	if len(q.Statuses) > 0 {
		allowed = make(map[crm.Status]bool, len(q.Statuses))
		for _, st := range q.Statuses {
			allowed[st] = true
		}
	}
	term := strings.ToLower(q.Search)

	out := make([]crm.Lead, 0, len(leads))
	for _, l := range leads {
		if allowed != nil && !allowed[l.Status] {
			continue
		}
		if term != "" && !containsAny(term, l.Name, l.Company, l.Email, l.Source) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func filterOpportunities(opps []crm.Opportunity, search string) []crm.Opportunity {
	term := strings.ToLower(search)

	out := make([]crm.Opportunity, 0, len(opps))
	for _, o := range opps {
		if term != "" && !containsAny(term, o.Name, o.Stage, amountString(o), o.AccountName) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// containsAny reports whether any of values contains the lower-cased term,
// ignoring case.
func containsAny(term string, values ...string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}
