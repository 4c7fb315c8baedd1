package dataset

import (
	"context"
	"math"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/findhome/pkg/errors"
	"github.com/YuminosukeSato/findhome/pkg/log"
)

// Artifact file names for the persisted partitions.
const (
	TrainFile = "Train.csv"
	TestFile  = "Test.csv"
)

// Split randomly partitions the rows of f without replacement.
//
// The train partition holds floor(trainFraction*n) rows and the test
// partition holds the rest. Equal inputs and seed always yield equal
// partitions.
func Split(f *Frame, trainFraction float64, seed uint64) (train, test *Frame, err error) {
	if math.IsNaN(trainFraction) || trainFraction <= 0 || trainFraction >= 1 {
		return nil, nil, errors.NewConfigurationError("split.train_fraction", trainFraction, "must be in (0, 1)")
	}
	n := f.Len()
	nTrain := int(math.Floor(trainFraction * float64(n)))
	if nTrain == 0 || nTrain == n {
		return nil, nil, errors.NewDataAccessError("Split", f.Source,
			"not enough rows for a non-empty train and test partition", nil)
	}

	r := rand.New(rand.NewPCG(seed, seed))
	perm := r.Perm(n)

	return f.Subset(perm[:nTrain]), f.Subset(perm[nTrain:]), nil
}

// Partition is the result of a Splitter run.
type Partition struct {
	Train     *Frame
	Test      *Frame
	Seed      uint64
	TrainPath string
	TestPath  string
}

// Splitter loads a dataset, checks the label column, splits it and persists
// both partitions under Dir.
type Splitter struct {
	TrainFraction float64
	// Seed fixes the partition. Zero derives a seed from the clock; the derived
	// value is logged and returned in the Partition so the run can be replayed.
	Seed   uint64
	Label  string
	Dir    string
	Logger log.Logger
}

// Run executes load, split and persist.
func (s *Splitter) Run(ctx context.Context, path string) (*Partition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := log.OrDefault(s.Logger, "dataset").With(log.OperationKey, log.OperationSplit)

	frame, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := frame.RequireColumns(s.Label); err != nil {
		return nil, err
	}
	if _, err := frame.FloatColumn(s.Label); err != nil {
		return nil, err
	}

	seed := s.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
		logger.Info("Split seed derived from clock", log.RandomSeedKey, seed)
	}

	train, test, err := Split(frame, s.TrainFraction, seed)
	if err != nil {
		return nil, err
	}

	p := &Partition{
		Train:     train,
		Test:      test,
		Seed:      seed,
		TrainPath: filepath.Join(s.Dir, TrainFile),
		TestPath:  filepath.Join(s.Dir, TestFile),
	}
	if err := WriteCSV(train, p.TrainPath); err != nil {
		return nil, err
	}
	if err := WriteCSV(test, p.TestPath); err != nil {
		return nil, err
	}

	logger.Info("Dataset split",
		log.PathKey, path,
		log.SamplesKey, frame.Len(),
		"train_rows", train.Len(),
		"test_rows", test.Len(),
		log.RandomSeedKey, seed,
	)
	return p, nil
}
