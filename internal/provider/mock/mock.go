package mock

import (
	"context"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/saturnino-fabrica-de-software/chamada/internal/domain"
	"github.com/saturnino-fabrica-de-software/chamada/internal/provider"
)

const (
	// minSide abaixo disso nenhuma face é "detectada"
	minSide = 32
	// faceFraction is the share of the shorter image side covered by the fake face
	faceFraction = 0.6
	// embeddingScale keeps mock distances in the same range as dlib descriptors
	embeddingScale = 0.5
)

// Provider implementa provider.RegionEmbedder para testes e desenvolvimento.
// It "detects" one face centered in the image and derives the embedding
// from a 16x8 luminance thumbnail of the region, so identical pixels give
// identical embeddings and similar pictures give nearby ones.
type Provider struct{}

// New cria uma nova instância do MockProvider
func New() *Provider {
	return &Provider{}
}

// DetectAndEmbed detecta a face central e calcula o embedding
func (p *Provider) DetectAndEmbed(ctx context.Context, img image.Image, upsample int) ([]provider.Detection, error) {
	boxes, err := p.Detect(ctx, img, upsample)
	if err != nil {
		return nil, err
	}
	embs, err := p.EmbedRegions(ctx, img, boxes)
	if err != nil {
		return nil, err
	}

	dets := make([]provider.Detection, 0, len(boxes))
	for i, box := range boxes {
		if embs[i] == nil {
			continue
		}
		dets = append(dets, provider.Detection{Box: box, Embedding: embs[i]})
	}
	return dets, nil
}

// Detect returns the centered box, or nothing for tiny or flat images.
func (p *Provider) Detect(ctx context.Context, img image.Image, _ int) ([]domain.BoundingBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	short := min(b.Dx(), b.Dy())
	if short < minSide {
		return nil, nil
	}

	side := int(float64(short) * faceFraction)
	cx, cy := b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2
	box := domain.BoundingBox{
		Top:    cy - side/2,
		Left:   cx - side/2,
		Bottom: cy - side/2 + side,
		Right:  cx - side/2 + side,
	}

	if thumbnail(img, box) == nil {
		return nil, nil
	}
	return []domain.BoundingBox{box}, nil
}

// EmbedRegions gera embedding determinístico a partir dos pixels da região
func (p *Provider) EmbedRegions(ctx context.Context, img image.Image, boxes []domain.BoundingBox) ([]domain.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Embedding, len(boxes))
	for i, box := range boxes {
		out[i] = thumbnail(img, box)
	}
	return out, nil
}

// thumbnail returns the zero-mean, fixed-norm luminance vector of the region,
// or nil when the region is empty or has no contrast.
func thumbnail(img image.Image, box domain.BoundingBox) domain.Embedding {
	r := box.Clamp(img.Bounds()).Rect()
	if r.Empty() {
		return nil
	}

	const w, h = 16, 8
	small := image.NewGray(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, r, draw.Src, nil)

	emb := make(domain.Embedding, domain.EmbeddingDimension)
	var mean float64
	for i, v := range small.Pix {
		emb[i] = float64(v)
		mean += emb[i]
	}
	mean /= float64(len(emb))

	var norm float64
	for i := range emb {
		emb[i] -= mean
		norm += emb[i] * emb[i]
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil
	}

	for i := range emb {
		emb[i] = emb[i] / norm * embeddingScale
	}
	return emb
}

var _ provider.RegionEmbedder = (*Provider)(nil)
