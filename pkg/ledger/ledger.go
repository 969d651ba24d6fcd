package ledger

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gridshift-project/gridshift/pkg/models"
	"github.com/gridshift-project/gridshift/pkg/util/idgen"
)

const (
	decisionsFile = "decisions.jsonl"

	// DefaultRecentLimit caps how many records the ledger keeps in memory
	// for quick inspection. The file holds everything.
	DefaultRecentLimit = 100
)

type Params struct {
	Dir         string
	Clock       clock.Clock
	RecentLimit int
}

// Ledger is the append-only decision trail. Every optimization cycle lands
// as one JSON line in decisions.jsonl, hashed at append time so any later
// mutation of the file is detectable. A single writer lock serializes
// appends; reads replay the file.
type Ledger struct {
	path        string
	clock       clock.Clock
	recentLimit int

	mu      sync.Mutex
	recent  []models.DecisionRecord
	totals  models.DecisionMetrics
	records int
}

func NewLedger(params Params) (*Ledger, error) {
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	if params.RecentLimit <= 0 {
		params.RecentLimit = DefaultRecentLimit
	}
	if err := os.MkdirAll(params.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating ledger directory %s", params.Dir)
	}

	ledger := &Ledger{
		path:        filepath.Join(params.Dir, decisionsFile),
		clock:       params.Clock,
		recentLimit: params.RecentLimit,
	}
	if err := ledger.replay(); err != nil {
		return nil, err
	}
	return ledger, nil
}

// replay loads the existing trail so totals and the recent window survive
// restarts.
func (l *Ledger) replay() error {
	records, err := l.readAll()
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil
		}
		return err
	}
	for _, record := range records {
		l.accumulate(record)
	}
	return nil
}

// Record hashes and appends one decision. The record's ID, timestamp and
// hash are assigned here; callers pass everything else. The write is a
// single line followed by a sync so a crash never leaves a torn entry
// acknowledged.
func (l *Ledger) Record(ctx context.Context, record models.DecisionRecord) (models.DecisionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if record.ID == "" {
		record.ID = idgen.NewDecisionID()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = l.clock.Now().UTC()
	}
	record.Hash = ""
	hash, err := HashRecord(record)
	if err != nil {
		return models.DecisionRecord{}, err
	}
	record.Hash = hash

	line, err := json.Marshal(record)
	if err != nil {
		return models.DecisionRecord{}, errors.Wrap(err, "encoding decision record")
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return models.DecisionRecord{}, errors.Wrap(err, "opening decision ledger")
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return models.DecisionRecord{}, errors.Wrap(err, "appending decision record")
	}
	if err := f.Sync(); err != nil {
		return models.DecisionRecord{}, errors.Wrap(err, "syncing decision ledger")
	}

	l.accumulate(record)
	log.Ctx(ctx).Debug().Str("DecisionID", record.ID).Str("Hash", record.Hash[:12]).
		Msg("decision recorded")
	return record, nil
}

func (l *Ledger) accumulate(record models.DecisionRecord) {
	l.records++
	l.totals.TotalCost += record.Metrics.TotalCost
	l.totals.TotalCarbon += record.Metrics.TotalCarbon
	l.totals.TotalRevenue += record.Metrics.TotalRevenue
	l.totals.CostSavings += record.Metrics.CostSavings
	l.totals.CarbonSavings += record.Metrics.CarbonSavings
	l.totals.NetCost += record.Metrics.NetCost

	l.recent = append(l.recent, record)
	if len(l.recent) > l.recentLimit {
		l.recent = l.recent[len(l.recent)-l.recentLimit:]
	}
}

// Recent returns up to n of the latest records, newest last.
func (l *Ledger) Recent(n int) []models.DecisionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.recent) {
		n = len(l.recent)
	}
	out := make([]models.DecisionRecord, n)
	copy(out, l.recent[len(l.recent)-n:])
	return out
}

// Report summarizes the whole trail: record count and running totals.
type Report struct {
	Records int                    `json:"records"`
	Totals  models.DecisionMetrics `json:"totals"`
}

func (l *Ledger) Report() Report {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Report{Records: l.records, Totals: l.totals}
}

// VerifyResult is the outcome of a trail integrity check.
type VerifyResult struct {
	Records    int      `json:"records"`
	FileDigest string   `json:"file_digest"`
	Tampered   []string `json:"tampered,omitempty"`
}

func (v VerifyResult) OK() bool {
	return len(v.Tampered) == 0
}

// Verify re-reads the trail from disk and recomputes every record hash.
// Records whose stored hash no longer matches their content are reported
// by ID. The whole-file digest lets two parties compare trails cheaply.
func (l *Ledger) Verify(ctx context.Context) (VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := VerifyResult{}
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, errors.Wrap(err, "opening decision ledger")
	}
	defer f.Close()

	digest := sha256.New()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		digest.Write(scanner.Bytes())
		digest.Write([]byte{'\n'})

		var record models.DecisionRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return result, errors.Wrapf(err, "decoding ledger line %d", line)
		}
		result.Records++
		if !CheckRecord(record) {
			result.Tampered = append(result.Tampered, record.ID)
		}
	}
	if err := scanner.Err(); err != nil {
		return result, errors.Wrap(err, "reading decision ledger")
	}
	result.FileDigest = hex.EncodeToString(digest.Sum(nil))

	if !result.OK() {
		log.Ctx(ctx).Error().Strs("DecisionIDs", result.Tampered).
			Msg("decision ledger failed integrity check")
	}
	return result, nil
}

func (l *Ledger) readAll() ([]models.DecisionRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, errors.Wrap(err, "opening decision ledger")
	}
	defer f.Close()

	var records []models.DecisionRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		var record models.DecisionRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, errors.Wrap(err, "decoding ledger line")
		}
		records = append(records, record)
	}
	return records, scanner.Err()
}

// HashRecord computes the sha256 of the record's canonical serialization
// with the hash field cleared. Canonical form is JSON with object keys
// sorted, so field order in the stored line never affects the digest.
func HashRecord(record models.DecisionRecord) (string, error) {
	record.Hash = ""
	canonical, err := canonicalJSON(record)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// CheckRecord reports whether the record's stored hash matches its
// content.
func CheckRecord(record models.DecisionRecord) bool {
	stored := record.Hash
	if stored == "" {
		return false
	}
	computed, err := HashRecord(record)
	if err != nil {
		return false
	}
	return computed == stored
}

// canonicalJSON round-trips a value through a generic map so that the
// final marshal emits object keys in sorted order.
func canonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding record")
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, errors.Wrap(err, "normalizing record")
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, errors.Wrap(err, "canonicalizing record")
	}
	return canonical, nil
}

var _ fmt.Stringer = Report{}

func (r Report) String() string {
	return fmt.Sprintf("%d decisions, £%.2f cost, %.0f gCO2, £%.2f revenue",
		r.Records, r.Totals.TotalCost, r.Totals.TotalCarbon, r.Totals.TotalRevenue)
}
