package crm

// InitialStage is the stage every converted opportunity starts in.
const InitialStage = "Initial Contact"

const (
	MinAmount = 1000
	MaxAmount = 10999
)

type Opportunity struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Stage       string `json:"stage"`
	Amount      int    `json:"amount"`
	AccountName string `json:"account_name"`
}

// AccountName derives the opportunity account label for a lead.
func AccountName(l Lead) string {
	return l.Name + " - " + l.Company
}

// NewOpportunity builds the opportunity a lead converts into. The id is
// carried over from the lead.
func NewOpportunity(l Lead, amount int) Opportunity {
	return Opportunity{
		ID:          l.ID,
		Name:        l.Name,
		Stage:       InitialStage,
		Amount:      amount,
		AccountName: AccountName(l),
	}
}
