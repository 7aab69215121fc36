// Package attend tracks per-day attendance records and applies the
// sighting dedup policy.
package attend

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/facegate/facegate/pkg/logger"
	"github.com/facegate/facegate/pkg/metrics"
)

// DateLayout is the calendar-day key format, local time.
const DateLayout = "2006-01-02"

// Record is the attendance state for one (student, day) pair.
type Record struct {
	StudentID   string `json:"student_id"`
	Date        string `json:"date"`
	FirstSeenTS int64  `json:"first_seen_ts"`
	LastSeenTS  int64  `json:"last_seen_ts"`
	Hits        int    `json:"hits"`
}

// Ledger decides whether a sighting counts as a new attendance hit.
// Recording is best-effort: persistence failures are logged, never returned.
type Ledger interface {
	// Record applies the dedup policy for a sighting of studentID at ts
	// (unix seconds). Returns true if the sighting was accepted.
	// The check-and-write is atomic; concurrent sightings of the same
	// student on the same day resolve to a single record.
	Record(ctx context.Context, studentID string, ts int64) bool

	// Today returns all records for the current calendar day.
	Today(ctx context.Context) []Record

	// ForStudent returns up to days most recent records for a student,
	// newest first.
	ForStudent(ctx context.Context, studentID string, days int) []Record

	// Count returns the number of records held.
	Count(ctx context.Context) int
}

type dayKey struct {
	studentID string
	date      string
}

// inMemoryLedger implements Ledger with a mutex-guarded map keyed by
// (student, day) and best-effort JSON persistence.
type inMemoryLedger struct {
	mu      sync.Mutex
	records map[dayKey]*Record

	enabled bool
	window  int64 // seconds; <= 0 means strict once per calendar day
	path    string
	now     func() time.Time
	logger  logger.Logger
}

// NewInMemoryLedger creates a ledger with configuration options and loads
// any previously persisted records.
func NewInMemoryLedger(opts ...Option) Ledger {
	l := &inMemoryLedger{
		records: make(map[dayKey]*Record),
		enabled: true,
		window:  60,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.logger == nil {
		l.logger = logger.Get().Named("attend")
	}

	l.load()

	return l
}

// Record applies the dedup policy. First sighting of the day is always
// accepted. With a positive window, later sightings are accepted only when
// at least window seconds passed since the last accepted one; the anchor is
// last_seen_ts, not first_seen_ts, so a steady trickle keeps postponing the
// next hit.
func (l *inMemoryLedger) Record(ctx context.Context, studentID string, ts int64) bool {
	if !l.enabled || studentID == "" {
		return false
	}

	date := time.Unix(ts, 0).Format(DateLayout)
	key := dayKey{studentID: studentID, date: date}

	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.records[key]
	switch {
	case !ok:
		l.records[key] = &Record{
			StudentID:   studentID,
			Date:        date,
			FirstSeenTS: ts,
			LastSeenTS:  ts,
			Hits:        1,
		}
	case l.window <= 0:
		// Day already marked; strict once-per-day.
		metrics.RecordAttendanceRejected()
		return false
	case ts-r.LastSeenTS >= l.window:
		r.LastSeenTS = ts
		r.Hits++
	default:
		metrics.RecordAttendanceRejected()
		return false
	}

	metrics.RecordAttendanceAccepted()
	metrics.UpdateAttendanceRecords(len(l.records))
	l.persistLocked(ctx)
	return true
}

// Today returns the records for the current calendar day, ordered by
// student id.
func (l *inMemoryLedger) Today(ctx context.Context) []Record {
	date := l.now().Format(DateLayout)

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, 0)
	for key, r := range l.records {
		if key.date == date {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

// ForStudent returns up to days most recent records, newest first.
func (l *inMemoryLedger) ForStudent(ctx context.Context, studentID string, days int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, 0)
	for key, r := range l.records {
		if key.studentID == studentID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if days > 0 && len(out) > days {
		out = out[:days]
	}
	return out
}

// Count returns the number of records held.
func (l *inMemoryLedger) Count(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// load reads persisted records. A missing or corrupt file is not fatal.
func (l *inMemoryLedger) load() {
	if l.path == "" {
		return
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn(context.Background(), "failed to read attendance file",
				logger.String("path", l.path), logger.Error(err))
		}
		return
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		l.logger.Warn(context.Background(), "skipping corrupt attendance file",
			logger.String("path", l.path), logger.Error(err))
		return
	}
	for i := range records {
		r := records[i]
		l.records[dayKey{studentID: r.StudentID, date: r.Date}] = &records[i]
	}
	metrics.UpdateAttendanceRecords(len(l.records))
}

// persistLocked writes all records to disk via rename for per-file
// atomicity. Must be called with l.mu held. Failures are logged only;
// attendance recording never fails the caller.
func (l *inMemoryLedger) persistLocked(ctx context.Context) {
	if l.path == "" {
		return
	}

	records := make([]Record, 0, len(l.records))
	for _, r := range l.records {
		records = append(records, *r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date < records[j].Date
		}
		return records[i].StudentID < records[j].StudentID
	})

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		metrics.RecordLedgerWriteFailure()
		l.logger.Error(ctx, "failed to encode attendance records", logger.Error(err))
		return
	}

	tmp := l.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		metrics.RecordLedgerWriteFailure()
		l.logger.Error(ctx, "failed to create attendance dir", logger.Error(err))
		return
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		metrics.RecordLedgerWriteFailure()
		l.logger.Error(ctx, "failed to write attendance file", logger.Error(err))
		return
	}
	if err := os.Rename(tmp, l.path); err != nil {
		metrics.RecordLedgerWriteFailure()
		l.logger.Error(ctx, "failed to replace attendance file", logger.Error(err))
	}
}
