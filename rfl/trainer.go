package rfl

import (
	"context"
	"math"
	"math/rand"
	"runtime"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

//TrainerConfig collects the hyperparameters of a training run. The
//configuration is a value: Train never mutates it and no state leaks between
//runs. Zero values of Mtry and Threads select defaults at validation time.
type TrainerConfig struct {
	//NumberOfTrees is the number of trees to grow. Must be at least 1.
	NumberOfTrees int
	//Mtry is the number of features randomly drawn at each node. 0 selects
	//sqrt(features) for classification and features/3 for regression.
	Mtry int
	//NodeSize is the minimum number of rows a node needs to be split.
	NodeSize int
	//OOBRatio is the fraction of the dataset drawn per tree when sampling
	//without replacement. Must lie in (0,1].
	OOBRatio float64
	//BootstrapWithReplacement selects the classic bootstrap of full dataset
	//size; duplicates count as independent occurrences.
	BootstrapWithReplacement bool
	//Impurity selects the classification split criterion. Ignored for
	//regression, which always scores by squared-error reduction.
	Impurity ImpurityMeasure
	//ComputeFeatureImportances enables out-of-bag permutation importances.
	ComputeFeatureImportances bool
	//ComputeOOBError enables the forest-level out-of-bag error estimate.
	ComputeOOBError bool
	//Threads is the number of pool workers growing trees. 0 selects NumCPU.
	Threads int
	//Seed is the master seed; a fixed seed reproduces an identical forest
	//regardless of Threads.
	Seed int64
}

//DefaultTrainerConfig returns the configuration a training run starts from.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		NumberOfTrees:            100,
		NodeSize:                 1,
		OOBRatio:                 0.66,
		BootstrapWithReplacement: true,
		Impurity:                 Gini,
	}
}

//Validate checks the configuration against the dataset and fails fast before
//any tree is grown.
func (cfg TrainerConfig) Validate(ds *Dataset) error {
	if cfg.NumberOfTrees < 1 {
		return errors.Errorf("nTrees must be a positive number, got %d", cfg.NumberOfTrees)
	}
	if cfg.NodeSize < 1 {
		return errors.Errorf("nodeSize must be at least 1, got %d", cfg.NodeSize)
	}
	if !(cfg.OOBRatio > 0 && cfg.OOBRatio <= 1) {
		return errors.Errorf("OOBratio must be in the interval (0,1], got %g", cfg.OOBRatio)
	}
	if cfg.Mtry < 0 || cfg.Mtry > ds.NumFeatures() {
		return errors.Errorf("mtry %d outside [1, %d]", cfg.Mtry, ds.NumFeatures())
	}
	if cfg.Impurity != Gini && cfg.Impurity != Misclassification && cfg.Impurity != CrossEntropy {
		return errors.Errorf("unknown impurity measure %d", cfg.Impurity)
	}
	return nil
}

//resolveMtry returns the effective number of features drawn per node.
func (cfg TrainerConfig) resolveMtry(ds *Dataset) int {
	if cfg.Mtry > 0 {
		return cfg.Mtry
	}
	var mtry int
	if ds.IsClassification() {
		mtry = int(math.Sqrt(float64(ds.NumFeatures())))
	} else {
		mtry = ds.NumFeatures() / 3
	}
	if mtry < 1 {
		mtry = 1
	}
	return mtry
}

func (cfg TrainerConfig) threads() int {
	if cfg.Threads < 1 {
		return runtime.NumCPU()
	}
	return cfg.Threads
}

//Trainer grows a random forest for classification or regression. The task kind
//follows the dataset's label kind: class-id labels grow classification trees,
//numeric label vectors grow regression trees.
type Trainer struct {
	Config TrainerConfig
}

//NewTrainer returns a trainer with the given configuration.
func NewTrainer(config TrainerConfig) *Trainer {
	return &Trainer{Config: config}
}

//treeOutcome is the slot one pool task writes its results into. Slots are
//indexed by tree ordinal, so aggregation folds them in a fixed order no matter
//how the pool scheduled the tasks.
type treeOutcome struct {
	tree       *Tree
	oobRows    []int
	importance []float64
	err        error
}

type taskGrowTree struct {
	ctx     context.Context
	cfg     TrainerConfig
	ds      *Dataset
	mtry    int
	ordinal int
	outcome *treeOutcome
}

func (task *taskGrowTree) Run() {
	if err := task.ctx.Err(); err != nil {
		task.outcome.err = err
		return
	}
	rng := rand.New(rand.NewSource(treeSeed(task.cfg.Seed, task.ordinal)))
	inBag, oobRows := bootstrapSample(rng, task.ds.NumRows(), task.cfg.BootstrapWithReplacement, task.cfg.OOBRatio)
	tree, err := buildTree(task.ds, task.cfg.Impurity, task.cfg.NodeSize, task.mtry, rng, inBag)
	if err != nil {
		task.outcome.err = err
		return
	}
	task.outcome.tree = tree
	task.outcome.oobRows = oobRows
	if task.cfg.ComputeFeatureImportances {
		task.outcome.importance = permutationImportance(tree, task.ds, oobRows, rng)
	}
	log.Debugf("tree %d: %d nodes, %d leaves, %d rows out of bag",
		task.ordinal, len(tree.TreeNodes), len(tree.LeafNodes), len(oobRows))
}

//Train grows the configured number of independent trees over the dataset and
//returns the assembled forest. Trees are grown in parallel on the pool; each
//owns its sorted index, node arena and random stream. Train either returns a
//fully-formed forest or an error; there is no partial forest. The context is
//checked between tree completions only, never mid-tree.
func (tr *Trainer) Train(ctx context.Context, ds *Dataset) (*Forest, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ds == nil {
		return nil, errors.New("train needs a dataset")
	}
	if err := ds.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid dataset")
	}
	cfg := tr.Config
	if err := cfg.Validate(ds); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	mtry := cfg.resolveMtry(ds)

	log.Debugf("training %d trees over %d rows, %d features, mtry %d",
		cfg.NumberOfTrees, ds.NumRows(), ds.NumFeatures(), mtry)

	outcomes := make([]treeOutcome, cfg.NumberOfTrees)
	pool := NewPool(cfg.threads())
	for b := 0; b < cfg.NumberOfTrees; b++ {
		pool.AddTask(&taskGrowTree{
			ctx:     ctx,
			cfg:     cfg,
			ds:      ds,
			mtry:    mtry,
			ordinal: b,
			outcome: &outcomes[b],
		})
	}
	pool.Close()
	pool.WaitAll()

	forest := &Forest{
		Trees:    make([]*Tree, 0, cfg.NumberOfTrees),
		Classes:  ds.Classes,
		LabelDim: ds.LabelDim(),
		Impurity: cfg.Impurity,
	}
	for b := range outcomes {
		if outcomes[b].err != nil {
			return nil, errors.Wrapf(outcomes[b].err, "growing tree %d", b)
		}
		forest.Trees = append(forest.Trees, outcomes[b].tree)
	}

	if cfg.ComputeOOBError {
		acc := newOOBAccumulator(ds.NumRows(), forest.OutputDim())
		for b := range outcomes {
			if err := acc.accumulateTree(outcomes[b].tree, ds, outcomes[b].oobRows); err != nil {
				return nil, errors.Wrap(err, "accumulating out-of-bag predictions")
			}
		}
		est, ok, err := acc.estimate(ds)
		if err != nil {
			return nil, errors.Wrap(err, "estimating out-of-bag error")
		}
		if ok {
			forest.OOBErr = &est
			log.Infof("out-of-bag error estimate: %g", est)
		}
	}

	if cfg.ComputeFeatureImportances {
		imp := make([]float64, ds.NumFeatures())
		for b := range outcomes {
			for q, v := range outcomes[b].importance {
				imp[q] += v
			}
		}
		for q := range imp {
			imp[q] /= float64(cfg.NumberOfTrees)
			if imp[q] < 0 {
				imp[q] = 0
			}
		}
		forest.Importances = imp
	}

	return forest, nil
}
