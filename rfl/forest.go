package rfl

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/goccy/go-graphviz"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

//Forest is the trained ensemble model: an ordered sequence of independent
//trees, the criterion they were grown with and the optional out-of-bag
//statistics. Classification aggregates trees by majority vote, regression by
//the mean. A forest is immutable once training finishes.
type Forest struct {
	Trees       []*Tree
	Classes     int
	LabelDim    int
	Impurity    ImpurityMeasure
	Importances []float64 `json:",omitempty"`
	OOBErr      *float64  `json:",omitempty"`
}

//OutputDim returns the width of an aggregated prediction vector.
func (f *Forest) OutputDim() int {
	if f.Classes > 0 {
		return f.Classes
	}
	return f.LabelDim
}

//IsClassification reports whether the forest predicts class ids.
func (f *Forest) IsClassification() bool {
	return f.Classes > 0
}

//PredictRow aggregates the member trees on one feature vector: the share of
//majority votes per class for classification, the mean of the tree means for
//regression.
func (f *Forest) PredictRow(x []float64) []float64 {
	agg := make([]float64, f.OutputDim())
	for _, t := range f.Trees {
		pred := t.PredictRow(x)
		if f.IsClassification() {
			agg[argmax(pred)]++
		} else {
			for d, v := range pred {
				agg[d] += v
			}
		}
	}
	for d := range agg {
		agg[d] /= float64(len(f.Trees))
	}
	return agg
}

//PredictClass returns the majority-vote class id for one feature vector. Ties
//go to the lower class id.
func (f *Forest) PredictClass(x []float64) int {
	return argmax(f.PredictRow(x))
}

//PredictValue predicts every row of a feature matrix: a single column of class
//ids for classification, the mean label vectors for regression.
func (f *Forest) PredictValue(features *mat.Dense) *mat.Dense {
	h, _ := features.Dims()
	if f.IsClassification() {
		prediction := mat.NewDense(h, 1, nil)
		for p := 0; p < h; p++ {
			prediction.Set(p, 0, float64(f.PredictClass(mat.Row(nil, p, features))))
		}
		return prediction
	}
	prediction := mat.NewDense(h, f.LabelDim, nil)
	for p := 0; p < h; p++ {
		prediction.SetRow(p, f.PredictRow(mat.Row(nil, p, features)))
	}
	return prediction
}

//PredictProb returns the per-class vote shares for every row of a feature
//matrix. Only meaningful for classification forests.
func (f *Forest) PredictProb(features *mat.Dense) *mat.Dense {
	h, _ := features.Dims()
	prediction := mat.NewDense(h, f.OutputDim(), nil)
	for p := 0; p < h; p++ {
		prediction.SetRow(p, f.PredictRow(mat.Row(nil, p, features)))
	}
	return prediction
}

//FeatureImportances returns the per-feature permutation importance scores, or
//nil when importances were not computed.
func (f *Forest) FeatureImportances() []float64 {
	return f.Importances
}

//OOBError returns the out-of-bag error estimate. ok is false when the estimate
//was not computed.
func (f *Forest) OOBError() (estimate float64, ok bool) {
	if f.OOBErr == nil {
		return 0, false
	}
	return *f.OOBErr, true
}

//Save writes the forest as indented JSON.
func (f *Forest) Save(filename string) error {
	dest, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "can't open file %s to write", filename)
	}
	defer dest.Close()

	modelByteRepr, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	_, err = dest.Write(modelByteRepr)
	return err
}

//LoadForest reads a forest saved with Save.
func LoadForest(filename string) (*Forest, error) {
	source, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open model %s", filename)
	}
	defer source.Close()

	forest := &Forest{}
	if err := json.NewDecoder(source).Decode(forest); err != nil {
		return nil, errors.Wrapf(err, "decode model %s", filename)
	}
	return forest, nil
}

//RenderTrees renders every member tree into the pictures directory as
//dumpPrefix_NNNNN.figureType.
func (f *Forest) RenderTrees(dumpPrefix, figureType, picturesDirectory string) error {
	graphvizType, ok := map[string]graphviz.Format{
		"png": graphviz.PNG,
		"svg": graphviz.SVG,
		"jpg": graphviz.JPG,
	}[figureType]
	if !ok {
		return errors.Errorf("unknown figure type %q", figureType)
	}

	for graphInd, currentTree := range f.Trees {
		filename := fmt.Sprintf("%s_%05d.%s", dumpPrefix, graphInd, figureType)
		graphViz, graph, err := currentTree.DrawGraph()
		if err != nil {
			return errors.Wrapf(err, "draw tree %d", graphInd)
		}
		if err := graphViz.RenderFilename(graph, graphvizType, path.Join(picturesDirectory, filename)); err != nil {
			return errors.Wrapf(err, "render tree %d", graphInd)
		}
	}
	return nil
}
