// Package seed provides the dataset that bootstraps an empty lead collection.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Israelam72/mini-seller-console/internal/crm"
)

//go:embed data-leads.json
var embeddedLeads []byte

// Source supplies seed leads.
type Source interface {
	Leads(ctx context.Context) ([]crm.Lead, error)
}

type bytesSource struct {
	name string
	data func() ([]byte, error)
}

func (s bytesSource) Leads(context.Context) ([]crm.Lead, error) {
	data, err := s.data()
	if err != nil {
		return nil, fmt.Errorf("reading seed %s: %w", s.name, err)
	}
	return Parse(data)
}

// Embedded returns the dataset bundled into the binary.
func Embedded() Source {
	return bytesSource{
		name: "data-leads.json",
		data: func() ([]byte, error) { return embeddedLeads, nil },
	}
}

// File returns a Source that reads a JSON array of leads from path on every call.
func File(path string) Source {
	return bytesSource{
		name: path,
		data: func() ([]byte, error) { return os.ReadFile(path) },
	}
}

// Static is a Source over an in-memory slice.
type Static []crm.Lead

func (s Static) Leads(context.Context) ([]crm.Lead, error) {
	out := make([]crm.Lead, len(s))
	copy(out, s)
	return out, nil
}

// Parse decodes a JSON array of leads and checks ids are unique and every
// record is valid.
func Parse(data []byte) ([]crm.Lead, error) {
	var leads []crm.Lead
	if err := json.Unmarshal(data, &leads); err != nil {
		return nil, fmt.Errorf("decoding seed leads: %w", err)
	}

	seen := make(map[int]bool, len(leads))
	for i, l := range leads {
		if seen[l.ID] {
			return nil, fmt.Errorf("seed lead #%d: duplicate id %d", i, l.ID)
		}
		seen[l.ID] = true
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("seed lead %d: %w", l.ID, err)
		}
	}
	return leads, nil
}
