package matcher

import (
	"github.com/rs/zerolog"

	"github.com/ccollicutt/wiretrace/pkg/decoder"
	"github.com/ccollicutt/wiretrace/pkg/schema"
)

// defaultNodeID is used for entries without a node segment.
const defaultNodeID = "0"

// Matcher reconstructs transactions from decoded entries.
type Matcher struct {
	schema    *schema.Schema
	reqToResp map[string]string
	respToReq map[string]string
	logger    zerolog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLogger sets the matcher's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Matcher) {
		m.logger = logger
	}
}

// New creates a Matcher from the request/response metadata of the schema.
// When several request types name the same response type, the last one in
// document order wins.
func New(sch *schema.Schema, opts ...Option) *Matcher {
	m := &Matcher{
		schema:    sch,
		reqToResp: make(map[string]string),
		respToReq: make(map[string]string),
		logger:    zerolog.Nop(),
	}
	for _, t := range sch.Types() {
		msg, _ := sch.Lookup(t)
		if msg.ResponseType == "" {
			continue
		}
		m.reqToResp[t] = msg.ResponseType
		m.respToReq[msg.ResponseType] = t
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// transaction is the pass-one grouping of one (node, TransID) key.
type transaction struct {
	nodeID   string
	transID  string
	requests []*decoder.Entry
	response *decoder.Entry
	emitted  bool
}

type txKey struct {
	nodeID  string
	transID string
}

// Match groups entries into units.
func (m *Matcher) Match(entries []*decoder.Entry) []Unit {
	units, _ := m.MatchWithStats(entries)
	return units
}

// MatchWithStats groups entries into units and summarizes the result.
// Every input entry appears in exactly one unit, and units are ordered by
// the position of their anchor entry.
func (m *Matcher) MatchWithStats(entries []*decoder.Entry) ([]Unit, Stats) {
	var stats Stats

	// Pass 1: assign entries to transactions through a side table indexed
	// by entry position.
	owner := make([]*transaction, len(entries))
	open := make(map[txKey]*transaction)

	for i, e := range entries {
		if e.IsProcessEvent() {
			continue
		}
		msgType := e.MessageType()
		if msgType == "" {
			continue
		}

		_, isRequest := m.reqToResp[msgType]
		requestType, isResponse := m.respToReq[msgType]
		if !isRequest && !isResponse {
			continue
		}
		if isRequest {
			requestType = msgType
		}

		transID, ok := m.transID(e, requestType)
		if !ok {
			continue
		}
		nodeID := e.Node()
		if nodeID == "" {
			nodeID = defaultNodeID
		}
		key := txKey{nodeID: nodeID, transID: transID}

		if isRequest {
			tx := open[key]
			if tx == nil {
				tx = &transaction{nodeID: nodeID, transID: transID}
				open[key] = tx
			}
			tx.requests = append(tx.requests, e)
			owner[i] = tx
			continue
		}

		tx := open[key]
		switch {
		case tx == nil:
			// Orphan: the key stays closed, so a later request starts afresh.
			owner[i] = &transaction{nodeID: nodeID, transID: transID, response: e}
			stats.Orphans++
			m.logger.Debug().
				Str("node", nodeID).
				Str("trans_id", transID).
				Int("seq", e.Seq).
				Msg("response without request")
		case tx.response == nil:
			tx.response = e
			owner[i] = tx
		default:
			stats.DuplicateResponses++
			m.logger.Debug().
				Str("node", nodeID).
				Str("trans_id", transID).
				Int("seq", e.Seq).
				Msg("duplicate response left unmatched")
		}
	}

	// Pass 2: flatten in original order.
	units := make([]Unit, 0, len(entries))
	for i, e := range entries {
		tx := owner[i]
		if tx == nil {
			units = append(units, &PlainEntry{Entry: e})
			stats.Plain++
			continue
		}
		if tx.emitted {
			continue
		}

		if len(tx.requests) > 0 {
			if e != tx.requests[len(tx.requests)-1] {
				continue
			}
			tx.emitted = true
			group := &TransactionGroup{
				NodeID:   tx.nodeID,
				TransID:  tx.transID,
				Requests: tx.requests,
				Response: tx.response,
			}
			units = append(units, group)
			stats.Groups++
			stats.Retries += group.Retries()
			if !group.Answered() {
				stats.Unanswered++
			}
			continue
		}

		if e == tx.response {
			tx.emitted = true
			units = append(units, &PlainEntry{Entry: e})
			stats.Plain++
		}
	}

	if stats.DuplicateResponses > 0 || stats.Orphans > 0 {
		m.logger.Info().
			Int("orphans", stats.Orphans).
			Int("duplicate_responses", stats.DuplicateResponses).
			Msg("unmatched responses")
	}

	return units, stats
}

// transID re-derives the message content and slices the transaction
// identifier at the request type's window.
func (m *Matcher) transID(e *decoder.Entry, requestType string) (string, bool) {
	msg, _ := m.schema.Lookup(requestType)
	pos := msg.TransIDWindow()
	content := decoder.MessageContent(e.Direction(), e.RawLine2)
	return decoder.Window(content, pos.Start, pos.Length)
}
