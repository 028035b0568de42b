package modules

import "github.com/dejo1307/swiftmetrics/internal/facts"

// AggregateData is a summable snapshot of size and declaration counts.
type AggregateData struct {
	LOC           int `json:"loc"`
	CommentCount  int `json:"noc"`
	Interfaces    int `json:"n_a"`
	ConcreteTypes int `json:"n_c"`
	Methods       int `json:"nom"`
	Tests         int `json:"not"`
	Imports       int `json:"noi"`
}

// FromFact returns the contribution of a single file.
func FromFact(sf facts.SourceFact) AggregateData {
	return AggregateData{
		LOC:           sf.LOC,
		CommentCount:  sf.CommentCount,
		Interfaces:    len(sf.Interfaces),
		ConcreteTypes: sf.ConcreteTypes(),
		Methods:       len(sf.Functions),
		Tests:         len(sf.Tests()),
		Imports:       len(sf.Imports),
	}
}

// Add returns the pointwise sum of a and b.
func (a AggregateData) Add(b AggregateData) AggregateData {
	return AggregateData{
		LOC:           a.LOC + b.LOC,
		CommentCount:  a.CommentCount + b.CommentCount,
		Interfaces:    a.Interfaces + b.Interfaces,
		ConcreteTypes: a.ConcreteTypes + b.ConcreteTypes,
		Methods:       a.Methods + b.Methods,
		Tests:         a.Tests + b.Tests,
		Imports:       a.Imports + b.Imports,
	}
}

// Sub returns the pointwise difference a - b.
func (a AggregateData) Sub(b AggregateData) AggregateData {
	return AggregateData{
		LOC:           a.LOC - b.LOC,
		CommentCount:  a.CommentCount - b.CommentCount,
		Interfaces:    a.Interfaces - b.Interfaces,
		ConcreteTypes: a.ConcreteTypes - b.ConcreteTypes,
		Methods:       a.Methods - b.Methods,
		Tests:         a.Tests - b.Tests,
		Imports:       a.Imports - b.Imports,
	}
}

// Times returns a added to itself n times.
func (a AggregateData) Times(n int) AggregateData {
	return AggregateData{
		LOC:           a.LOC * n,
		CommentCount:  a.CommentCount * n,
		Interfaces:    a.Interfaces * n,
		ConcreteTypes: a.ConcreteTypes * n,
		Methods:       a.Methods * n,
		Tests:         a.Tests * n,
		Imports:       a.Imports * n,
	}
}

// IsZero reports whether every counter is zero.
func (a AggregateData) IsZero() bool {
	return a == AggregateData{}
}
