package redscore

import (
	"sync"

	"github.com/fortuna/hermes/internal/audit"
)

// recordingAudit captures audit records for assertions.
type recordingAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

type auditEntry struct {
	cat    audit.Category
	reason string
	fields []string
}

func (r *recordingAudit) Record(cat audit.Category, reason string, fields ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, auditEntry{cat: cat, reason: reason, fields: fields})
}

func (r *recordingAudit) count(cat audit.Category) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.cat == cat {
			n++
		}
	}
	return n
}
