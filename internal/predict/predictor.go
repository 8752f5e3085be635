package predict

import (
	"context"
	"errors"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/reviq/backend/internal/encoding"
	"github.com/reviq/backend/internal/metrics"
	"github.com/reviq/backend/internal/scoring"
	"github.com/reviq/backend/internal/storage/models"
	"github.com/reviq/backend/internal/vector/milvus"
	"github.com/reviq/backend/pkg/logger"
)

// ErrInput is returned when a prediction payload is neither a single record
// nor a batch of records.
var ErrInput = errors.New("input must be a single patient record or a batch of records")

// NeighborSearcher is the lookup space: the milvus client in production, a
// fake in tests.
type NeighborSearcher interface {
	Search(ctx context.Context, features []float32, topK int) ([]milvus.Neighbor, error)
}

// SchemaStore loads the persisted categorical-encoding artifact.
type SchemaStore interface {
	LoadEncodingSchema() (*encoding.Schema, error)
}

// Predictor estimates the four component scores of an unscored record by
// retrieving its nearest scored patients and blending their scores, then
// composes the adherence score with the exact batch formula. There are no
// learned parameters anywhere in this path.
type Predictor struct {
	store    SchemaStore
	searcher NeighborSearcher
	topK     int

	mu     sync.Mutex
	schema *encoding.Schema
}

func NewPredictor(store SchemaStore, searcher NeighborSearcher, topK int) *Predictor {
	if topK <= 0 {
		topK = 5
	}
	return &Predictor{store: store, searcher: searcher, topK: topK}
}

func (p *Predictor) PredictOne(ctx context.Context, record models.PatientRecord) (*models.PatientScores, error) {
	schema, err := p.loadSchema()
	if err != nil {
		return nil, err
	}

	neighbors, err := p.searcher.Search(ctx, schema.Encode(record), p.topK)
	if err != nil {
		return nil, err
	}

	metrics.PredictionNeighbors.Observe(float64(len(neighbors)))

	scores := blendNeighbors(neighbors)
	scores = scoring.ComposeAdherence(&record, scores)

	logger.Debug("Record predicted",
		zap.String("patient_id", record.ID),
		zap.Int("neighbors", len(neighbors)),
	)

	return &models.PatientScores{Patient: record, Scores: scores}, nil
}

func (p *Predictor) PredictBatch(ctx context.Context, records []models.PatientRecord) ([]models.PatientScores, error) {
	out := make([]models.PatientScores, 0, len(records))
	for _, record := range records {
		ps, err := p.PredictOne(ctx, record)
		if err != nil {
			return nil, err
		}
		out = append(out, *ps)
	}
	return out, nil
}

// InvalidateSchema drops the cached encoding artifact so the next prediction
// reloads the one written by the latest batch run.
func (p *Predictor) InvalidateSchema() {
	p.mu.Lock()
	p.schema = nil
	p.mu.Unlock()
}

func (p *Predictor) loadSchema() (*encoding.Schema, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.schema != nil {
		return p.schema, nil
	}
	schema, err := p.store.LoadEncodingSchema()
	if err != nil {
		return nil, err
	}
	p.schema = schema
	return schema, nil
}

// blendNeighbors averages the neighbors' component scores weighted by
// inverse distance. No neighbors means no basis for a prediction: every
// score stays undefined rather than defaulting.
func blendNeighbors(neighbors []milvus.Neighbor) models.ScoreSet {
	if len(neighbors) == 0 {
		return scoring.EmptyScoreSet()
	}

	var weightSum, refill, price, awareness, coverage float64
	for _, n := range neighbors {
		w := 1 / (float64(n.Distance) + 1e-9)
		weightSum += w
		refill += w * n.RefillReminder
		price += w * n.PriceSensitivity
		awareness += w * n.Awareness
		coverage += w * n.CoverageConfusion
	}

	set := scoring.EmptyScoreSet()
	set.RefillReminder = round2(refill / weightSum)
	set.PriceSensitivity = round2(price / weightSum)
	set.Awareness = round2(awareness / weightSum)
	set.CoverageConfusion = round2(coverage / weightSum)
	return set
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
