package rfl

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

//Dataset holds a training set: a feature matrix with one row per element and the
//labels for those rows. For classification Classes holds the number of distinct
//class ids and Labels is a single column of class ids; for regression Classes is
//zero and Labels holds one numeric vector per row. A Dataset is read-only once
//built.
type Dataset struct {
	Features *mat.Dense
	Labels   *mat.Dense
	Classes  int
}

//NewClassificationDataset builds a dataset from a feature matrix and a column of
//class ids. The label cardinality is the largest class id plus one.
func NewClassificationDataset(features, labels *mat.Dense) (*Dataset, error) {
	ds := &Dataset{Features: features, Labels: labels}
	h, _ := labels.Dims()
	for p := 0; p < h; p++ {
		c := labels.At(p, 0)
		if c != math.Trunc(c) || c < 0 {
			return nil, errors.Errorf("row %d: class id %v is not a non-negative integer", p, c)
		}
		if int(c)+1 > ds.Classes {
			ds.Classes = int(c) + 1
		}
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

//NewRegressionDataset builds a dataset from a feature matrix and a matrix of
//numeric label vectors.
func NewRegressionDataset(features, labels *mat.Dense) (*Dataset, error) {
	ds := &Dataset{Features: features, Labels: labels}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

//NumRows returns the number of elements in the dataset.
func (ds *Dataset) NumRows() int {
	h, _ := ds.Features.Dims()
	return h
}

//NumFeatures returns the width of the feature matrix.
func (ds *Dataset) NumFeatures() int {
	_, w := ds.Features.Dims()
	return w
}

//LabelDim returns the width of a label vector. It is 1 for classification.
func (ds *Dataset) LabelDim() int {
	_, w := ds.Labels.Dims()
	return w
}

//IsClassification reports whether the labels are class ids.
func (ds *Dataset) IsClassification() bool {
	return ds.Classes > 0
}

//ClassOf returns the class id of the given row. Only meaningful for
//classification datasets.
func (ds *Dataset) ClassOf(row int) int {
	return int(ds.Labels.At(row, 0))
}

//Validate checks the consistency of the dataset before any sampling starts: a
//non-empty feature matrix, matching label height and, for classification, a
//single label column with ids inside the cardinality.
func (ds *Dataset) Validate() error {
	if ds.Features == nil || ds.Labels == nil {
		return errors.New("dataset needs both a feature matrix and labels")
	}
	h, w := ds.Features.Dims()
	if h == 0 || w == 0 {
		return errors.Errorf("empty dataset: feature matrix is %dx%d", h, w)
	}
	labelH, labelW := ds.Labels.Dims()
	if labelH != h {
		return errors.Errorf("the label height %d is not equal to the feature height %d", labelH, h)
	}
	if labelW == 0 {
		return errors.New("labels need at least one column")
	}
	if ds.Classes > 0 {
		if labelW != 1 {
			return errors.Errorf("the width of classification labels should be 1 not %d", labelW)
		}
		for p := 0; p < h; p++ {
			c := ds.Labels.At(p, 0)
			if c != math.Trunc(c) || c < 0 || int(c) >= ds.Classes {
				return errors.Errorf("row %d: class id %v outside cardinality %d", p, c, ds.Classes)
			}
		}
	}
	return nil
}

//ReadDataset reads the feature and label components of a data set from npy
//files and unites them into one Dataset object.
func ReadDataset(fileNameFeatures, fileNameLabels string, classification bool) (*Dataset, error) {
	log.Debug("\ttry to load features <", fileNameFeatures, ">")
	features, err := ReadNpy(fileNameFeatures)
	if err != nil {
		return nil, err
	}
	log.Debug("\ttry to load labels <", fileNameLabels, ">")
	labels, err := ReadNpy(fileNameLabels)
	if err != nil {
		return nil, err
	}
	if lh, lw := labels.Dims(); lw == 0 && lh > 0 {
		return nil, errors.Errorf("labels in %s have no columns", fileNameLabels)
	}
	if classification {
		return NewClassificationDataset(features, labels)
	}
	return NewRegressionDataset(features, labels)
}

//ReadNpy reads the content of an npy file into a dense matrix.
func ReadNpy(fileName string) (*mat.Dense, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", fileName)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read npy header of %s", fileName)
	}

	denseMat := &mat.Dense{}
	if err := r.Read(denseMat); err != nil {
		return nil, errors.Wrapf(err, "read npy body of %s", fileName)
	}
	return denseMat, nil
}
