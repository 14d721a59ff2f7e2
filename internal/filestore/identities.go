// Package filestore keeps identities, attendance and reference images in
// plain files, compatible with the layout of the original desktop tool:
// face_data.json, attendance_log.csv and the known_faces directory of JPEG
// crops. Several processes may share one data directory: every change
// re-reads the file under an advisory lock before rewriting it.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
)

const IdentitiesFile = "face_data.json"

// identityRecord is the on-disk shape: {name: {mobile, image, enc}}.
type identityRecord struct {
	Mobile    string    `json:"mobile"`
	Image     string    `json:"image"`
	Enc       []float64 `json:"enc,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// IdentityRepository stores identities in a single JSON document that is
// rewritten atomically on every change.
type IdentityRepository struct {
	path string
	lock *dirLock
	now  func() time.Time

	mu sync.Mutex
}

func NewIdentityRepository(dir string) (*IdentityRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	r := &IdentityRepository{
		path: filepath.Join(dir, IdentitiesFile),
		lock: newDirLock(dir),
		now:  time.Now,
	}
	// arquivo corrompido falha já na abertura
	if _, err := r.read(); err != nil {
		return nil, err
	}
	return r, nil
}

// read loads the document from disk. Writers replace it with a rename, so a
// reader never sees a partial file.
func (r *IdentityRepository) read() (map[string]identityRecord, error) {
	records := make(map[string]identityRecord)

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", IdentitiesFile, err)
	}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", IdentitiesFile, err)
	}
	return records, nil
}

// modify runs fn over the current document and writes the result, holding
// both the process mutex and the directory lock.
func (r *IdentityRepository) modify(fn func(records map[string]identityRecord) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := r.lock.acquire()
	if err != nil {
		return err
	}
	defer unlock()

	records, err := r.read()
	if err != nil {
		return err
	}
	if err := fn(records); err != nil {
		return err
	}
	return r.write(records)
}

// write must be called from modify.
func (r *IdentityRepository) write(records map[string]identityRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", IdentitiesFile, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".face_data-*.json")
	if err != nil {
		return fmt.Errorf("write %s: %w", IdentitiesFile, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", IdentitiesFile, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", IdentitiesFile, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", IdentitiesFile, err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("write %s: %w", IdentitiesFile, err)
	}
	return nil
}

func (r *IdentityRepository) List(_ context.Context) ([]domain.Identity, error) {
	records, err := r.read()
	if err != nil {
		return nil, err
	}

	out := make([]domain.Identity, 0, len(records))
	for name, rec := range records {
		out = append(out, toIdentity(name, rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *IdentityRepository) Get(_ context.Context, name string) (*domain.Identity, error) {
	records, err := r.read()
	if err != nil {
		return nil, err
	}

	rec, ok := records[name]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	ident := toIdentity(name, rec)
	return &ident, nil
}

// Upsert replaces the whole record for identity.Name and fills in its timestamps.
func (r *IdentityRepository) Upsert(_ context.Context, identity *domain.Identity) error {
	now := r.now().UTC()
	created := now

	err := r.modify(func(records map[string]identityRecord) error {
		if prev, ok := records[identity.Name]; ok && !prev.CreatedAt.IsZero() {
			created = prev.CreatedAt
		}
		records[identity.Name] = identityRecord{
			Mobile:    identity.Contact,
			Image:     identity.ImageRef,
			Enc:       identity.Embedding.Clone(),
			CreatedAt: created,
			UpdatedAt: now,
		}
		return nil
	})
	if err != nil {
		return err
	}

	identity.CreatedAt = created
	identity.UpdatedAt = now
	return nil
}

func (r *IdentityRepository) Delete(_ context.Context, name string) error {
	return r.modify(func(records map[string]identityRecord) error {
		if _, ok := records[name]; !ok {
			return domain.ErrIdentityNotFound
		}
		delete(records, name)
		return nil
	})
}

func toIdentity(name string, rec identityRecord) domain.Identity {
	return domain.Identity{
		Name:      name,
		Contact:   rec.Mobile,
		Embedding: domain.Embedding(rec.Enc).Clone(),
		ImageRef:  rec.Image,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}
