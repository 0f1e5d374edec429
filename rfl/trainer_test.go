package rfl

import (
	"context"
	"encoding/json"
	"math/rand"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

//newClusteredDataset builds a three-class dataset with one well-separated
//cluster per class. Only the first two features carry the class signal.
func newClusteredDataset(t *testing.T, rows int) *Dataset {
	t.Helper()
	centers := [][]float64{
		{0, 0, 0, 0},
		{6, 6, 0, 0},
		{12, 0, 0, 0},
	}
	rng := rand.New(rand.NewSource(17))
	features := mat.NewDense(rows, 4, nil)
	classes := make([]float64, rows)
	for p := 0; p < rows; p++ {
		c := p % 3
		classes[p] = float64(c)
		for q := 0; q < 4; q++ {
			features.Set(p, q, centers[c][q]+rng.NormFloat64()*0.5)
		}
	}
	return newTestClassificationDataset(t, features, classes)
}

func TestTrainerConfigValidation(t *testing.T) {
	ds := newClusteredDataset(t, 30)

	cfg := DefaultTrainerConfig()
	cfg.NumberOfTrees = 0
	err := cfg.Validate(ds)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nTrees must be a positive number")

	cfg = DefaultTrainerConfig()
	cfg.OOBRatio = 0
	err = cfg.Validate(ds)
	require.Error(t, err)
	require.Contains(t, err.Error(), "OOBratio must be in the interval (0,1]")

	cfg = DefaultTrainerConfig()
	cfg.OOBRatio = 1.5
	require.Error(t, cfg.Validate(ds))

	cfg = DefaultTrainerConfig()
	cfg.NodeSize = 0
	require.Error(t, cfg.Validate(ds))

	cfg = DefaultTrainerConfig()
	cfg.Mtry = ds.NumFeatures() + 1
	require.Error(t, cfg.Validate(ds))

	require.NoError(t, DefaultTrainerConfig().Validate(ds))
}

func TestTrainClassificationEndToEnd(t *testing.T) {
	ds := newClusteredDataset(t, 150)

	cfg := DefaultTrainerConfig()
	cfg.NumberOfTrees = 10
	cfg.Mtry = 2
	cfg.ComputeOOBError = true
	cfg.ComputeFeatureImportances = true
	cfg.Seed = 1

	forest, err := NewTrainer(cfg).Train(context.Background(), ds)
	require.NoError(t, err)
	require.Len(t, forest.Trees, 10)
	require.True(t, forest.IsClassification())

	correct := 0
	for p := 0; p < ds.NumRows(); p++ {
		if forest.PredictClass(mat.Row(nil, p, ds.Features)) == ds.ClassOf(p) {
			correct++
		}
	}
	require.GreaterOrEqual(t, float64(correct)/float64(ds.NumRows()), 0.9)

	oob, ok := forest.OOBError()
	require.True(t, ok)
	require.LessOrEqual(t, oob, 0.15)

	imp := forest.FeatureImportances()
	require.Len(t, imp, 4)
	for q, v := range imp {
		require.GreaterOrEqual(t, v, 0.0, "feature %d", q)
	}
	// the class signal lives in the first two features
	require.Greater(t, imp[0], imp[2])
	require.Greater(t, imp[0], imp[3])
}

func TestTrainIsDeterministicAcrossThreadCounts(t *testing.T) {
	ds := newClusteredDataset(t, 90)

	train := func(threads int) []byte {
		cfg := DefaultTrainerConfig()
		cfg.NumberOfTrees = 8
		cfg.Threads = threads
		cfg.ComputeOOBError = true
		cfg.ComputeFeatureImportances = true
		cfg.Seed = 99
		forest, err := NewTrainer(cfg).Train(context.Background(), ds)
		require.NoError(t, err)
		raw, err := json.Marshal(forest)
		require.NoError(t, err)
		return raw
	}

	require.Equal(t, train(1), train(4))
}

func TestTrainRegressionEndToEnd(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	features := mat.NewDense(120, 2, nil)
	labels := mat.NewDense(120, 1, nil)
	for p := 0; p < 120; p++ {
		x := rng.Float64() * 10
		features.Set(p, 0, x)
		features.Set(p, 1, rng.Float64())
		if x < 5 {
			labels.Set(p, 0, 1)
		} else {
			labels.Set(p, 0, 10)
		}
	}
	ds, err := NewRegressionDataset(features, labels)
	require.NoError(t, err)

	cfg := DefaultTrainerConfig()
	cfg.NumberOfTrees = 10
	cfg.ComputeOOBError = true
	cfg.Seed = 2

	forest, err := NewTrainer(cfg).Train(context.Background(), ds)
	require.NoError(t, err)
	require.False(t, forest.IsClassification())

	require.InDelta(t, 1, forest.PredictRow([]float64{2, 0.5})[0], 1.0)
	require.InDelta(t, 10, forest.PredictRow([]float64{8, 0.5})[0], 1.0)

	oob, ok := forest.OOBError()
	require.True(t, ok)
	// the step is 9 units tall, so anything near the label variance means the
	// forest learned nothing
	require.Less(t, oob, 4.0)
}

func TestOOBErrorOnNoiseLabelsStaysHigh(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	features := mat.NewDense(120, 3, nil)
	classes := make([]float64, 120)
	for p := 0; p < 120; p++ {
		for q := 0; q < 3; q++ {
			features.Set(p, q, rng.Float64())
		}
		classes[p] = float64(rng.Intn(3))
	}
	ds := newTestClassificationDataset(t, features, classes)

	cfg := DefaultTrainerConfig()
	cfg.NumberOfTrees = 15
	cfg.ComputeOOBError = true
	cfg.Seed = 3

	forest, err := NewTrainer(cfg).Train(context.Background(), ds)
	require.NoError(t, err)

	oob, ok := forest.OOBError()
	require.True(t, ok)
	require.GreaterOrEqual(t, oob, 0.3)
}

func TestTrainSingleRowDataset(t *testing.T) {
	ds := newTestClassificationDataset(t, mat.NewDense(1, 2, []float64{1, 2}), []float64{0})

	cfg := DefaultTrainerConfig()
	cfg.NumberOfTrees = 3
	cfg.Seed = 4

	forest, err := NewTrainer(cfg).Train(context.Background(), ds)
	require.NoError(t, err)
	require.Len(t, forest.Trees, 3)
	require.Equal(t, 0, forest.PredictClass([]float64{1, 2}))
}

func TestTrainStopsOnCancelledContext(t *testing.T) {
	ds := newClusteredDataset(t, 30)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultTrainerConfig()
	cfg.NumberOfTrees = 5
	_, err := NewTrainer(cfg).Train(ctx, ds)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}

func TestForestSaveLoadRoundTrip(t *testing.T) {
	ds := newClusteredDataset(t, 60)

	cfg := DefaultTrainerConfig()
	cfg.NumberOfTrees = 5
	cfg.ComputeOOBError = true
	cfg.ComputeFeatureImportances = true
	cfg.Seed = 8

	forest, err := NewTrainer(cfg).Train(context.Background(), ds)
	require.NoError(t, err)

	modelFile := path.Join(t.TempDir(), "forest.json")
	require.NoError(t, forest.Save(modelFile))

	loaded, err := LoadForest(modelFile)
	require.NoError(t, err)
	require.Equal(t, forest.Classes, loaded.Classes)
	require.Equal(t, forest.Importances, loaded.Importances)
	require.Equal(t, forest.OOBErr, loaded.OOBErr)

	want := forest.PredictValue(ds.Features)
	got := loaded.PredictValue(ds.Features)
	require.True(t, mat.Equal(want, got))
}
