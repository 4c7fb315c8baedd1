package pipeline

import (
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/dataset"
	"github.com/YuminosukeSato/findhome/pkg/errors"
	"github.com/YuminosukeSato/findhome/pkg/log"
)

func fitHousing(t *testing.T, frame *dataset.Frame) *Pipeline {
	t.Helper()
	p, err := New(HousingSchema())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger, _ := log.NewTestLogger(log.LevelDebug)
	p.SetLogger(logger)

	labels, err := frame.FloatColumn(dataset.ColPrice)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Fit(frame, labels); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	return p
}

func TestPipelineFitDeterministic(t *testing.T) {
	frame := dataset.Synthetic(300, 1)
	a := fitHousing(t, frame)
	b := fitHousing(t, frame)

	if !reflect.DeepEqual(a.Target[0].Encoding, b.Target[0].Encoding) {
		t.Error("target encodings differ between fits")
	}
	if !reflect.DeepEqual(a.Scaler.DataMin, b.Scaler.DataMin) || !reflect.DeepEqual(a.Scaler.DataMax, b.Scaler.DataMax) {
		t.Error("scaler ranges differ between fits")
	}
	if a.Label.Lambda != b.Label.Lambda {
		t.Errorf("lambda differs: %v vs %v", a.Label.Lambda, b.Label.Lambda)
	}

	xa, err := a.Apply(frame)
	if err != nil {
		t.Fatal(err)
	}
	xb, err := b.Apply(frame)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(xa, xb) {
		t.Error("applied matrices differ between fits")
	}
}

func TestPipelineTrainingRowsInUnitRange(t *testing.T) {
	frame := dataset.Synthetic(200, 2)
	p := fitHousing(t, frame)

	X, err := p.Apply(frame)
	if err != nil {
		t.Fatal(err)
	}
	r, c := X.Dims()
	if c != len(p.FeatureNames()) {
		t.Fatalf("got %d columns, %d names", c, len(p.FeatureNames()))
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := X.At(i, j); v < 0 || v > 1 {
				t.Fatalf("training value (%d,%d)=%v outside [0,1]", i, j, v)
			}
		}
	}
}

func TestPipelineNoSentinelOnTrainingData(t *testing.T) {
	frame := dataset.Synthetic(200, 3)
	p := fitHousing(t, frame)

	raw, err := p.encode(frame)
	if err != nil {
		t.Fatal(err)
	}
	r, _ := raw.Dims()
	for j := range p.Schema.Ordinal {
		for i := 0; i < r; i++ {
			if raw.At(i, j) < 0 {
				t.Fatalf("column %s row %d holds the unknown sentinel", p.Schema.Ordinal[j].Name, i)
			}
		}
	}
}

func TestPipelineUnseenCategories(t *testing.T) {
	train := dataset.Synthetic(200, 4)
	p := fitHousing(t, train)

	test := dataset.Synthetic(3, 5)
	test.Rows[0][test.ColumnIndex(dataset.ColSector)] = "sector 999"
	test.Rows[1][test.ColumnIndex(dataset.ColPropertyType)] = "penthouse"
	test.Rows[2][test.ColumnIndex(dataset.ColLuxury)] = "Ultra"
	// label column is not a feature and may be absent at inference
	X, err := p.Apply(test.Without(dataset.ColPrice))
	if err != nil {
		t.Fatalf("Apply must not fail on unseen categories: %v", err)
	}

	names := p.FeatureNames()
	col := func(name string) int {
		for j, n := range names {
			if n == name {
				return j
			}
		}
		t.Fatalf("no feature named %s in %v", name, names)
		return -1
	}

	// unseen sector falls back to the prior
	want := (p.Target[0].Prior - p.Scaler.DataMin[col(dataset.ColSector)]) / p.Scaler.Scale[col(dataset.ColSector)]
	if got := X.At(0, col(dataset.ColSector)); got != want {
		t.Errorf("unseen sector: got %v, want %v", got, want)
	}
	// unseen property type gives all-zero indicators
	if got := X.At(1, col(dataset.ColPropertyType+"_house")); got != 0 {
		t.Errorf("unseen property type: got %v, want 0", got)
	}
	// unseen luxury tier is the sentinel, which scales below zero
	if got := X.At(2, col(dataset.ColLuxury)); got >= 0 {
		t.Errorf("unseen luxury tier: got %v, want a negative value", got)
	}
}

func TestPipelineTestRowsMayLeaveUnitRange(t *testing.T) {
	train := dataset.Synthetic(100, 6)
	p := fitHousing(t, train)

	test := dataset.Synthetic(1, 7)
	test.Rows[0][test.ColumnIndex(dataset.ColBuiltUpArea)] = "1000000"
	X, err := p.Apply(test)
	if err != nil {
		t.Fatal(err)
	}
	j := len(p.Schema.Ordinal) + len(p.Nominal[0].OutputNames("")) + len(p.Schema.Target)
	if got := X.At(0, j); got <= 1 {
		t.Errorf("area beyond the training max should scale above 1, got %v", got)
	}
}

func TestPipelineApplyBeforeFit(t *testing.T) {
	p, err := New(HousingSchema())
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Apply(dataset.Synthetic(5, 1))

	var fe *errors.FitBeforeApplyError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FitBeforeApplyError, got %v", err)
	}
	if _, err := p.InverseLabels([]float64{1}); !errors.As(err, &fe) {
		t.Errorf("expected FitBeforeApplyError from InverseLabels, got %v", err)
	}
}

func TestPipelineRefitRejected(t *testing.T) {
	frame := dataset.Synthetic(50, 1)
	p := fitHousing(t, frame)
	labels, _ := frame.FloatColumn(dataset.ColPrice)

	if err := p.Fit(frame, labels); err == nil {
		t.Error("second Fit should be rejected")
	}
}

func TestPipelineMissingColumn(t *testing.T) {
	frame := dataset.Synthetic(50, 1)
	p := fitHousing(t, frame)

	if _, err := p.Apply(frame.Without(dataset.ColSector)); err == nil {
		t.Error("Apply without a feature column should fail")
	}
}

func TestPipelineConcurrentApply(t *testing.T) {
	p := fitHousing(t, dataset.Synthetic(200, 1))
	shared := dataset.Synthetic(40, 9)

	results := make([]*mat.Dense, 6)
	errs := make([]error, len(results))
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Apply(shared)
		}(i)
	}
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("Apply %d: %v", i, errs[i])
		}
		if !mat.Equal(results[0], results[i]) {
			t.Errorf("Apply %d differs from Apply 0", i)
		}
	}
}

func TestPipelineApplyColumnCountMismatch(t *testing.T) {
	frame := dataset.Synthetic(50, 1)
	p := fitHousing(t, frame)
	p.Names = append(p.Names, "stale")

	_, err := p.Apply(frame)
	var se *errors.InputShapeError
	if !errors.As(err, &se) {
		t.Fatalf("expected InputShapeError, got %v", err)
	}
	if se.Expected[1] != len(p.Names) || se.Got[1] != len(p.Names)-1 {
		t.Errorf("shape = %v, want %v", se.Got, se.Expected)
	}
}

func TestPipelineApplyRejectsNonFiniteFeatures(t *testing.T) {
	schema := HousingSchema()
	schema.Functions[0].Func = "sqrt"
	p, err := New(schema)
	if err != nil {
		t.Fatal(err)
	}
	train := dataset.Synthetic(100, 1)
	labels, err := train.FloatColumn(dataset.ColPrice)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Fit(train, labels); err != nil {
		t.Fatal(err)
	}

	rows := dataset.Synthetic(10, 2)
	rows.Rows[3][rows.ColumnIndex(dataset.ColBuiltUpArea)] = "-4"
	_, err = p.Apply(rows)
	var ne *errors.NumericalInstabilityError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
}

func TestPipelineLabelRoundTrip(t *testing.T) {
	frame := dataset.Synthetic(200, 8)
	p := fitHousing(t, frame)
	labels, _ := frame.FloatColumn(dataset.ColPrice)

	xt, err := p.TransformLabels(labels)
	if err != nil {
		t.Fatal(err)
	}
	back, err := p.InverseLabels(xt)
	if err != nil {
		t.Fatal(err)
	}
	for i := range labels {
		if d := back[i] - labels[i]; d > 1e-9 || d < -1e-9 {
			t.Fatalf("row %d: got %v, want %v", i, back[i], labels[i])
		}
	}
}

func TestPipelineSaveLoad(t *testing.T) {
	frame := dataset.Synthetic(120, 9)
	p := fitHousing(t, frame)
	path := filepath.Join(t.TempDir(), ArtifactName)

	if err := p.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want, _ := p.Apply(frame)
	got, err := loaded.Apply(frame)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(want, got) {
		t.Error("loaded pipeline applies differently")
	}
	if loaded.Label.Lambda != p.Label.Lambda {
		t.Errorf("lambda not persisted: %v vs %v", loaded.Label.Lambda, p.Label.Lambda)
	}
}

func TestSchemaValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Schema)
	}{
		{"label as feature", func(s *Schema) { s.Passthrough = append(s.Passthrough, s.Label) }},
		{"duplicate role", func(s *Schema) { s.Nominal = append(s.Nominal, dataset.ColSector) }},
		{"empty", func(s *Schema) { *s = Schema{Label: "price"} }},
		{"unknown function", func(s *Schema) { s.Functions[0].Func = "exp2" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := HousingSchema()
			tt.mutate(&s)
			if _, err := New(s); err == nil {
				t.Error("expected an error")
			}
		})
	}

	s := HousingSchema()
	s.Functions[0].Func = "exp2"
	_, err := New(s)
	if err == nil || !strings.Contains(err.Error(), "cbrt, log1p, sqrt") {
		t.Errorf("error should list the known functions, got %v", err)
	}
}
