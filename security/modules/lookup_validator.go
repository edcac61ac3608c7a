package modules

import (
	"log"
	"sync/atomic"
	"time"

	"chordring/ring"
	"chordring/security"
	"chordring/transport"
)

// AlternativesFn returns a list of peers other than the one a lookup used,
// so LookupValidator can cross-check the answer. It is a capability
// closure supplied at construction -- never a reference to the whole node
// -- built from the node's distinct finger-table entries. ValidateLookup
// skips any alternative that is the candidate result itself.
type AlternativesFn func() []ring.NodeInfo

// LookupValidator re-queries up to numChecks alternative peers with their
// own find_successor(target) and compares against the candidate result.
// Agreement from at least one alternative confirms; if every alternative
// queried disagrees, the lookup is denied.
type LookupValidator struct {
	security.BaseModule

	alternatives AlternativesFn
	numChecks    int
	timeout      time.Duration

	totalValidations atomic.Uint64
	confirmed        atomic.Uint64
	conflicts        atomic.Uint64
}

// NewLookupValidator returns a validator that queries at most numChecks
// alternatives per lookup, each bounded by timeout (<= 0 falls back to
// transport.DefaultTimeout).
func NewLookupValidator(alternatives AlternativesFn, numChecks int, timeout time.Duration) *LookupValidator {
	return &LookupValidator{alternatives: alternatives, numChecks: numChecks, timeout: timeout}
}

func (m *LookupValidator) ValidateLookup(target ring.ID, result ring.NodeInfo) bool {
	alternatives := m.alternatives()
	if len(alternatives) == 0 {
		return true
	}

	confirmations := 0
	queriesMade := 0
	answered := 0

	for _, alt := range alternatives {
		if queriesMade >= m.numChecks {
			break
		}
		if alt.ID == result.ID {
			continue
		}

		altResult, err := transport.FindSuccessorRPC(alt.Address, target, m.timeout)
		queriesMade++
		m.totalValidations.Add(1)
		if err != nil || altResult == nil {
			continue
		}
		answered++
		if altResult.ID == result.ID {
			confirmations++
		}
	}

	// Alternatives that could not be reached are not counted as disagreeing;
	// with no answer at all there is nothing to compare against.
	if answered == 0 {
		return true
	}

	if confirmations > 0 {
		m.confirmed.Add(1)
		return true
	}

	m.conflicts.Add(1)
	log.Printf("[lookup_validator] conflict: lookup for %d returned node %d but every alternative disagreed", target, result.ID)
	return false
}

func (m *LookupValidator) Metrics() security.Metrics {
	return security.Metrics{
		ModuleName: m.Name(),
		Counters: map[string]uint64{
			"total_validations": m.totalValidations.Load(),
			"confirmed":         m.confirmed.Load(),
			"conflicts":         m.conflicts.Load(),
		},
	}
}

func (m *LookupValidator) ResetMetrics() {
	m.totalValidations.Store(0)
	m.confirmed.Store(0)
	m.conflicts.Store(0)
}

func (m *LookupValidator) Name() string { return "lookup_validator" }

var _ security.Module = (*LookupValidator)(nil)
