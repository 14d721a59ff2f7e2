package identity

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
)

// Repository is what the reconciler needs from the identity repository.
type Repository interface {
	Lister
	Upsert(ctx context.Context, identity *domain.Identity) error
}

// ImageLoader reads back a stored reference image.
type ImageLoader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

type ReconcileReport struct {
	Total      int      `json:"total"`
	Reembedded []string `json:"reembedded"`
	Dropped    []string `json:"dropped"`
}

// Reconciler fills in missing embeddings from the reference images and
// rebuilds the store with the identities that can take part in matching.
type Reconciler struct {
	store    *Store
	repo     Repository
	images   ImageLoader
	embedder provider.FaceEmbedder
	upsample int
	logger   *slog.Logger

	// Force re-embeds every record with a reference image, not only the ones
	// missing an embedding. Used after switching the embedding model.
	Force bool

	// OnProgress, when set, is called after each record is processed.
	OnProgress func(done, total int)
}

func NewReconciler(store *Store, repo Repository, images ImageLoader, embedder provider.FaceEmbedder, upsample int, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		repo:     repo,
		images:   images,
		embedder: embedder,
		upsample: upsample,
		logger:   logger,
	}
}

// Reconcile re-embeds records without an embedding. Records whose reference
// image is missing or holds no face are left in the repository but kept out
// of the store. An unavailable embedder aborts the pass without touching the store.
func (r *Reconciler) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	records, err := r.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile identities: %w", err)
	}

	report := &ReconcileReport{Total: len(records)}
	kept := make([]domain.Identity, 0, len(records))

	for i := range records {
		rec := records[i]

		if rec.HasEmbedding() && !r.Force {
			kept = append(kept, rec)
			r.progress(i+1, len(records))
			continue
		}

		emb, err := r.embed(ctx, rec)
		switch {
		case err == nil:
			rec.Embedding = emb
			if err := r.repo.Upsert(ctx, &rec); err != nil {
				return nil, domain.ErrStoreWriteFailed.WithError(fmt.Errorf("save embedding for %q: %w", rec.Name, err))
			}
			kept = append(kept, rec)
			report.Reembedded = append(report.Reembedded, rec.Name)
			r.logger.Info("identity re-embedded", slog.String("name", rec.Name))
		case errors.Is(err, domain.ErrEmbedderUnavailable), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("reconcile %q: %w", rec.Name, err)
		case rec.HasEmbedding():
			// forced pass: fica com o embedding anterior
			kept = append(kept, rec)
			r.logger.Warn("identity kept with previous embedding",
				slog.String("name", rec.Name),
				slog.Any("error", err),
			)
		default:
			report.Dropped = append(report.Dropped, rec.Name)
			r.logger.Warn("identity dropped from matching",
				slog.String("name", rec.Name),
				slog.String("image_ref", rec.ImageRef),
				slog.Any("error", err),
			)
		}
		r.progress(i+1, len(records))
	}

	r.store.replace(kept)
	return report, nil
}

func (r *Reconciler) embed(ctx context.Context, rec domain.Identity) (domain.Embedding, error) {
	if rec.ImageRef == "" {
		return nil, errors.New("no reference image")
	}

	img, err := r.images.Load(ctx, rec.ImageRef)
	if err != nil {
		return nil, fmt.Errorf("load reference image: %w", err)
	}

	dets, err := r.embedder.DetectAndEmbed(ctx, img, r.upsample)
	if err != nil {
		return nil, err
	}

	det, ok := provider.Largest(dets)
	if !ok {
		return nil, domain.ErrNoFaceDetected
	}
	return det.Embedding, nil
}

func (r *Reconciler) progress(done, total int) {
	if r.OnProgress != nil {
		r.OnProgress(done, total)
	}
}
