package filestore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

const (
	AttendanceFile = "attendance_log.csv"
	TimeLayout     = "2006-01-02 15:04:05"
)

var attendanceHeader = []string{"Name", "Mobile", "Time"}

// AttendanceRepository appends events to a CSV journal. Times are written in
// the local time zone with second precision.
type AttendanceRepository struct {
	path     string
	lock     *dirLock
	location *time.Location

	mu sync.Mutex
}

func NewAttendanceRepository(dir string) (*AttendanceRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &AttendanceRepository{
		path:     filepath.Join(dir, AttendanceFile),
		lock:     newDirLock(dir),
		location: time.Local,
	}, nil
}

func (r *AttendanceRepository) Append(_ context.Context, event *domain.AttendanceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := r.lock.acquire()
	if err != nil {
		return err
	}
	defer unlock()

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", AttendanceFile, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", AttendanceFile, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(attendanceHeader); err != nil {
			return fmt.Errorf("write %s: %w", AttendanceFile, err)
		}
	}
	row := []string{event.IdentityName, event.Contact, event.Timestamp.In(r.location).Format(TimeLayout)}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write %s: %w", AttendanceFile, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", AttendanceFile, err)
	}
	return f.Sync()
}

// ListRecent returns the last limit events, newest first.
func (r *AttendanceRepository) ListRecent(_ context.Context, limit int) ([]domain.AttendanceEvent, error) {
	events, err := r.readAll()
	if err != nil {
		return nil, err
	}

	out := make([]domain.AttendanceEvent, 0, min(limit, len(events)))
	for i := len(events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, events[i])
	}
	return out, nil
}

// LatestByIdentity returns the newest event time per name at or after since.
func (r *AttendanceRepository) LatestByIdentity(_ context.Context, since time.Time) (map[string]time.Time, error) {
	events, err := r.readAll()
	if err != nil {
		return nil, err
	}

	latest := make(map[string]time.Time)
	for _, ev := range events {
		if ev.Timestamp.Before(since) {
			continue
		}
		if prev, ok := latest[ev.IdentityName]; !ok || ev.Timestamp.After(prev) {
			latest[ev.IdentityName] = ev.Timestamp
		}
	}
	return latest, nil
}

func (r *AttendanceRepository) readAll() ([]domain.AttendanceEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", AttendanceFile, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var events []domain.AttendanceEvent
	for line := 0; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", AttendanceFile, err)
		}
		if line == 0 && len(row) > 0 && row[0] == attendanceHeader[0] {
			continue
		}
		if len(row) < 3 {
			continue
		}

		at, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(row[2]), r.location)
		if err != nil {
			continue
		}
		events = append(events, domain.AttendanceEvent{
			// o CSV não guarda id; derivamos um estável a partir da linha
			ID:           uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(row, ","))),
			IdentityName: row[0],
			Contact:      row[1],
			Timestamp:    at,
		})
	}
	return events, nil
}
