package dashboard

import "fmt"

// DefaultRepCapacity is the book-of-business ceiling per rep.
const DefaultRepCapacity int64 = 500000

// TerritoryPlan models moving accounts between two reps' books.
type TerritoryPlan struct {
	Source []Account
	Target []Account
}

// SamplePlan returns the demo reassignment.
func SamplePlan() *TerritoryPlan {
	return &TerritoryPlan{
		Source: []Account{
			{"ACC-001", "TechFlow Systems", 120000},
			{"ACC-002", "Global Logistics", 85000},
			{"ACC-003", "Apex Retail", 45000},
		},
		Target: []Account{
			{"ACC-004", "BioMed Labs", 210000},
			{"ACC-005", "FinCorp LLC", 155000},
		},
	}
}

// MoveToTarget moves an account from the source book to the target book.
func (p *TerritoryPlan) MoveToTarget(id string) error {
	return move(&p.Source, &p.Target, id)
}

// MoveToSource moves an account back.
func (p *TerritoryPlan) MoveToSource(id string) error {
	return move(&p.Target, &p.Source, id)
}

func move(from, to *[]Account, id string) error {
	for i, a := range *from {
		if a.ID == id {
			*from = append((*from)[:i:i], (*from)[i+1:]...)
			*to = append(*to, a)
			return nil
		}
	}
	return fmt.Errorf("account %s not found", id)
}

// Totals returns the book value of each side.
func (p *TerritoryPlan) Totals() (source, target int64) {
	for _, a := range p.Source {
		source += a.Value
	}
	for _, a := range p.Target {
		target += a.Value
	}
	return source, target
}
