// Package export writes lead collections as downloadable JSON.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Israelam72/mini-seller-console/internal/crm"
)

// Filename is the suggested name for an exported lead file.
const Filename = "data-leads.json"

type LeadLoader interface {
	LoadLeads(ctx context.Context) []crm.Lead
}

// Leads returns subset when it is non-nil, otherwise every stored lead.
func Leads(ctx context.Context, store LeadLoader, subset []crm.Lead) []crm.Lead {
	if subset != nil {
		return subset
	}
	return store.LoadLeads(ctx)
}

// WriteLeads writes leads as a JSON array indented by two spaces. A nil
// slice is written as [].
func WriteLeads(w io.Writer, leads []crm.Lead) error {
	if leads == nil {
		leads = []crm.Lead{}
	}
	b, err := json.MarshalIndent(leads, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding leads: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("writing leads: %w", err)
	}
	return nil
}
