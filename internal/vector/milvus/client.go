package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/reviq/backend/pkg/logger"
)

// Client stores one vector per scored patient: the encoded demographic
// features plus the component scores a lookup prediction blends from.
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

// PatientVector is one scored patient as stored in the collection.
type PatientVector struct {
	PatientID         string
	Features          []float32
	RefillReminder    float64
	PriceSensitivity  float64
	Awareness         float64
	CoverageConfusion float64
	Demographic       float64
}

// Neighbor is one kNN result, closest first.
type Neighbor struct {
	PatientID         string
	RefillReminder    float64
	PriceSensitivity  float64
	Awareness         float64
	CoverageConfusion float64
	Distance          float32
}

func NewClient(endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Encoded demographics and component scores of scored patients",
		Fields: []*entity.Field{
			{
				Name:       "patient_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       "features",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.vectorDim)},
			},
			{Name: "refill_reminder_score", DataType: entity.FieldTypeDouble},
			{Name: "price_sensitivity_score", DataType: entity.FieldTypeDouble},
			{Name: "awareness_score", DataType: entity.FieldTypeDouble},
			{Name: "coverage_confusion_score", DataType: entity.FieldTypeDouble},
			{Name: "demo_score", DataType: entity.FieldTypeDouble},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 128)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.collectionName, "features", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))
	return nil
}

// Replace drops any previously indexed vectors and inserts the given set.
// Called once per batch run so the lookup space always reflects the current
// patient_matrix.
func (m *Client) Replace(ctx context.Context, vectors []PatientVector) error {
	if len(vectors) == 0 {
		return nil
	}

	pks := entity.NewColumnVarChar("patient_id", allIDs(vectors))
	if err := m.client.DeleteByPks(ctx, m.collectionName, "", pks); err != nil {
		logger.Warn("Failed to delete stale vectors", zap.Error(err))
	}

	ids := make([]string, len(vectors))
	features := make([][]float32, len(vectors))
	refill := make([]float64, len(vectors))
	price := make([]float64, len(vectors))
	awareness := make([]float64, len(vectors))
	coverage := make([]float64, len(vectors))
	demo := make([]float64, len(vectors))

	for i, v := range vectors {
		ids[i] = v.PatientID
		features[i] = v.Features
		refill[i] = v.RefillReminder
		price[i] = v.PriceSensitivity
		awareness[i] = v.Awareness
		coverage[i] = v.CoverageConfusion
		demo[i] = v.Demographic
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("patient_id", ids),
		entity.NewColumnFloatVector("features", m.vectorDim, features),
		entity.NewColumnDouble("refill_reminder_score", refill),
		entity.NewColumnDouble("price_sensitivity_score", price),
		entity.NewColumnDouble("awareness_score", awareness),
		entity.NewColumnDouble("coverage_confusion_score", coverage),
		entity.NewColumnDouble("demo_score", demo),
	)
	if err != nil {
		return fmt.Errorf("failed to insert patient vectors: %w", err)
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Patient vectors indexed", zap.Int("count", len(vectors)))
	return nil
}

// Search returns the closest scored patients to an encoded record.
func (m *Client) Search(ctx context.Context, features []float32, topK int) ([]Neighbor, error) {
	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		[]string{"patient_id", "refill_reminder_score", "price_sensitivity_score",
			"awareness_score", "coverage_confusion_score"},
		[]entity.Vector{entity.FloatVector(features)},
		"features",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	neighbors := make([]Neighbor, 0)
	for _, sr := range searchResult {
		idCol := sr.Fields.GetColumn("patient_id")
		refillCol := sr.Fields.GetColumn("refill_reminder_score")
		priceCol := sr.Fields.GetColumn("price_sensitivity_score")
		awarenessCol := sr.Fields.GetColumn("awareness_score")
		coverageCol := sr.Fields.GetColumn("coverage_confusion_score")

		for i := 0; i < sr.ResultCount; i++ {
			id, _ := idCol.Get(i)
			refill, _ := refillCol.Get(i)
			price, _ := priceCol.Get(i)
			awareness, _ := awarenessCol.Get(i)
			coverage, _ := coverageCol.Get(i)

			neighbors = append(neighbors, Neighbor{
				PatientID:         id.(string),
				RefillReminder:    refill.(float64),
				PriceSensitivity:  price.(float64),
				Awareness:         awareness.(float64),
				CoverageConfusion: coverage.(float64),
				Distance:          sr.Scores[i],
			})
		}
	}

	logger.Debug("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(neighbors)),
	)

	return neighbors, nil
}

func allIDs(vectors []PatientVector) []string {
	ids := make([]string, len(vectors))
	for i, v := range vectors {
		ids[i] = v.PatientID
	}
	return ids
}
