// Package conversion turns a lead into an opportunity: the opportunity is
// appended and the lead removed, with the first write rolled back when the
// second fails.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/Israelam72/mini-seller-console/internal/crm"
)

// Store is the subset of persistence.Store the workflow needs.
type Store interface {
	GetLead(ctx context.Context, id int) (crm.Lead, error)
	DeleteLead(ctx context.Context, id int) error
	AddOpportunity(ctx context.Context, o crm.Opportunity) error
	RemoveOpportunity(ctx context.Context, id int) error
}

// Result describes a finished conversion. Partial is only ever set in
// legacy mode, where the opportunity was saved but the lead could not be
// removed.
type Result struct {
	Opportunity crm.Opportunity `json:"opportunity"`
	Partial     bool            `json:"partial"`
}

type Workflow struct {
	store  Store
	logger *slog.Logger
	amount func() int
	legacy bool
}

type Option func(*Workflow)

// WithAmountFunc overrides how opportunity amounts are chosen.
func WithAmountFunc(fn func() int) Option {
	return func(w *Workflow) { w.amount = fn }
}

// WithRand draws amounts from rng instead of the global source.
func WithRand(rng *rand.Rand) Option {
	var mu sync.Mutex
	return func(w *Workflow) {
		w.amount = func() int {
			mu.Lock()
			defer mu.Unlock()
			return crm.MinAmount + rng.IntN(crm.MaxAmount-crm.MinAmount+1)
		}
	}
}

// WithLegacyPartialSuccess reports a failed lead removal as a partial
// success instead of rolling back.
func WithLegacyPartialSuccess(enabled bool) Option {
	return func(w *Workflow) { w.legacy = enabled }
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) { w.logger = l }
}

func NewWorkflow(store Store, opts ...Option) *Workflow {
	w := &Workflow{
		store:  store,
		logger: slog.Default(),
		amount: randomAmount,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func randomAmount() int {
	return crm.MinAmount + rand.IntN(crm.MaxAmount-crm.MinAmount+1)
}

// ConvertByID looks up the lead and converts it.
func (w *Workflow) ConvertByID(ctx context.Context, id int) (Result, error) {
	lead, err := w.store.GetLead(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return w.Convert(ctx, lead)
}

// Convert creates an opportunity from lead and removes the lead.
//
// If the lead removal fails, the appended opportunity is removed again and
// the removal error is returned. Opportunities written concurrently are not
// touched. A failed compensation leaves both records in place and yields a
// *crm.PartialConversionError.
func (w *Workflow) Convert(ctx context.Context, lead crm.Lead) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	// Staging is not interruptible once started.
	ctx = context.WithoutCancel(ctx)

	opp := crm.NewOpportunity(lead, w.amount())
	log := w.logger.With("lead_id", lead.ID)

	if !w.legacy {
		if _, err := w.store.GetLead(ctx, lead.ID); err != nil {
			return Result{}, err
		}
	}
	if err := w.store.AddOpportunity(ctx, opp); err != nil {
		log.Error("saving opportunity failed", "error", err)
		return Result{}, fmt.Errorf("converting lead %d: %w", lead.ID, err)
	}

	err := w.store.DeleteLead(ctx, lead.ID)
	if err == nil {
		log.Info("lead converted", "opportunity_id", opp.ID, "amount", opp.Amount)
		return Result{Opportunity: opp}, nil
	}

	if w.legacy {
		if errors.Is(err, crm.ErrNotFound) {
			return Result{Opportunity: opp}, nil
		}
		log.Warn("lead removal failed after opportunity was saved", "error", err)
		return Result{Opportunity: opp, Partial: true}, nil
	}

	if rerr := w.store.RemoveOpportunity(ctx, opp.ID); rerr != nil {
		log.Error("rolling back opportunity failed", "error", rerr, "cause", err)
		return Result{}, &crm.PartialConversionError{LeadID: lead.ID, Cause: err}
	}
	log.Warn("lead removal failed, conversion rolled back", "error", err)
	return Result{}, fmt.Errorf("converting lead %d: %w", lead.ID, err)
}
