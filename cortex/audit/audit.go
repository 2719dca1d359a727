// Package audit implements the tamper-evident audit log (spec §4.8): an
// append-only, hash-chained sequence of AuditEntry records.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/QuestoM/cortex-docs-sub005/cortex"
)

// Genesis is the chain_hash predecessor for the first entry (spec §4.8:
// "0"×64, the width of a hex-encoded SHA-256 sum).
var Genesis = strings.Repeat("0", sha256.Size*2)

// Entry is one AuditEntry (spec §3).
type Entry struct {
	EntryID     string
	TenantID    cortex.TenantId
	SessionID   cortex.SessionId
	UserID      cortex.UserId
	Timestamp   time.Time
	Type        string
	Severity    string
	Action      string
	Details     map[string]interface{}
	Outcome     string
	SequenceNum int64
	ChainHash   string
}

// canonical builds the pipe-delimited canonicalization string spec §4.8
// defines, with details rendered as canonical (key-sorted) JSON.
func (e Entry) canonical() (string, error) {
	detailsJSON, err := canonicalJSON(e.Details)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%d",
		e.EntryID, e.TenantID, e.SessionID, e.UserID,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.Type, e.Severity, e.Action, detailsJSON, e.Outcome, e.SequenceNum,
	), nil
}

// canonicalJSON marshals v with map keys sorted, so the same logical
// details always canonicalize to the same bytes regardless of Go map
// iteration order.
func canonicalJSON(details map[string]interface{}) (string, error) {
	if details == nil {
		return "{}", nil
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]byte, 0, 256)
	ordered = append(ordered, '{')
	for i, k := range keys {
		if i > 0 {
			ordered = append(ordered, ',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return "", err
		}
		valJSON, err := json.Marshal(details[k])
		if err != nil {
			return "", err
		}
		ordered = append(ordered, keyJSON...)
		ordered = append(ordered, ':')
		ordered = append(ordered, valJSON...)
	}
	ordered = append(ordered, '}')
	return string(ordered), nil
}

func chainHash(prevHash, canonical string) string {
	sum := sha256.Sum256([]byte(prevHash + ":" + canonical))
	return hex.EncodeToString(sum[:])
}

// Log owns one session's (or one tenant file's) append-only entry sequence
// in memory. Rotation and on-disk persistence are the collaborator's
// concern (cortex/persistence); Log only maintains the hash chain and
// sequencing invariants spec §4.8 and §5 require.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	lastSeq int64
	lastHash string
}

// New constructs an empty Log rooted at the genesis hash.
func New() *Log {
	return &Log{lastHash: Genesis}
}

// Append adds one entry, assigning it the next monotonic sequence number
// and computing its chain hash from the prior entry's hash (spec §4.8).
// EntryID is generated if unset.
func (l *Log) Append(e Entry) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.EntryID == "" {
		e.EntryID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	l.lastSeq++
	e.SequenceNum = l.lastSeq

	canonical, err := e.canonical()
	if err != nil {
		return Entry{}, cortex.WrapFault("audit.Append", cortex.InvalidArgument, e.EntryID, err)
	}
	e.ChainHash = chainHash(l.lastHash, canonical)
	l.lastHash = e.ChainHash
	l.entries = append(l.entries, e)
	return e, nil
}

// Tail returns the most recent n entries (or fewer if the log is shorter).
func (l *Log) Tail(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Entry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// All returns every entry in append order.
func (l *Log) All() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// VerifyIntegrity recomputes the entire chain and reports whether it is
// still intact (spec §4.8).
func (l *Log) VerifyIntegrity() bool {
	return l.VerifyIntegrityDetailed().Intact
}

// IntegrityReport is verify_integrity_detailed()'s return value.
type IntegrityReport struct {
	Intact     bool
	BreakIndex int // -1 if intact; otherwise the index (0-based) of the first entry whose chain_hash no longer matches
}

// VerifyIntegrityDetailed recomputes the chain hash for every entry from
// genesis, returning the index of the first entry whose recomputed hash
// disagrees with its stored ChainHash (spec §4.8, invariant A1).
func (l *Log) VerifyIntegrityDetailed() IntegrityReport {
	l.mu.Lock()
	defer l.mu.Unlock()

	prevHash := Genesis
	for i, e := range l.entries {
		canonical, err := e.canonical()
		if err != nil {
			return IntegrityReport{Intact: false, BreakIndex: i}
		}
		want := chainHash(prevHash, canonical)
		if want != e.ChainHash {
			return IntegrityReport{Intact: false, BreakIndex: i}
		}
		prevHash = e.ChainHash
	}
	return IntegrityReport{Intact: true, BreakIndex: -1}
}

// ShouldRotate reports whether the log's approximate on-disk size has
// crossed maxBytes, using each entry's canonicalized length as a proxy
// (spec §4.8, §6: audit.max_file_bytes).
func (l *Log) ShouldRotate(maxBytes int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total int64
	for _, e := range l.entries {
		c, err := e.canonical()
		if err != nil {
			continue
		}
		total += int64(len(c))
	}
	return maxBytes > 0 && total >= maxBytes
}

// Prune drops entries older than retentionDays relative to now, per spec
// §4.8's age-based retention. Pruning does not renumber sequence numbers
// or rehash survivors — it is a maintenance operation on a rotated,
// already-archived log, not on the live append chain.
func (l *Log) Prune(now time.Time, retentionDays int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if retentionDays <= 0 {
		return 0
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	kept := l.entries[:0]
	removed := 0
	for _, e := range l.entries {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	return removed
}

