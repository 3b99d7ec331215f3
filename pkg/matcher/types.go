// Package matcher groups decoded entries into request/response transactions.
package matcher

import "github.com/ccollicutt/wiretrace/pkg/decoder"

// Unit is one element of the matcher output: a *PlainEntry or a
// *TransactionGroup.
type Unit interface {
	// Anchor returns the entry at whose position the unit is emitted.
	Anchor() *decoder.Entry

	isUnit()
}

// PlainEntry wraps one entry with no transaction semantics.
type PlainEntry struct {
	Entry *decoder.Entry
}

// Anchor implements Unit.
func (p *PlainEntry) Anchor() *decoder.Entry { return p.Entry }

func (*PlainEntry) isUnit() {}

// TransactionGroup is a request with its retries and, when one was seen,
// the matched response.
type TransactionGroup struct {
	NodeID  string
	TransID string

	// Requests holds every attempt in arrival order; the last one is the
	// anchor. Never empty.
	Requests []*decoder.Entry

	// Response is nil when no reply was observed.
	Response *decoder.Entry
}

// Anchor implements Unit.
func (g *TransactionGroup) Anchor() *decoder.Entry {
	return g.Requests[len(g.Requests)-1]
}

func (*TransactionGroup) isUnit() {}

// Retries returns the number of attempts after the first.
func (g *TransactionGroup) Retries() int {
	return len(g.Requests) - 1
}

// Answered reports whether a response was matched.
func (g *TransactionGroup) Answered() bool {
	return g.Response != nil
}

// Entries returns the requests followed by the response, if any.
func (g *TransactionGroup) Entries() []*decoder.Entry {
	entries := make([]*decoder.Entry, 0, len(g.Requests)+1)
	entries = append(entries, g.Requests...)
	if g.Response != nil {
		entries = append(entries, g.Response)
	}
	return entries
}

// Stats summarizes one matching pass.
type Stats struct {
	// Plain is the number of PlainEntry units, orphans and duplicates included.
	Plain int `json:"plain"`

	// Groups is the number of TransactionGroup units.
	Groups int `json:"groups"`

	// Retries counts request attempts beyond the first, across groups.
	Retries int `json:"retries"`

	// Unanswered counts groups without a response.
	Unanswered int `json:"unanswered"`

	// Orphans counts responses with no prior request for their key.
	Orphans int `json:"orphans"`

	// DuplicateResponses counts responses for a key already answered.
	DuplicateResponses int `json:"duplicate_responses"`
}

// Answered returns the number of groups with a response.
func (s Stats) Answered() int {
	return s.Groups - s.Unanswered
}
