package preprocessing

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/pkg/errors"
)

func TestOrdinalEncoder(t *testing.T) {
	enc := NewOrdinalEncoder("Low", "Medium", "High")
	if err := enc.Fit([]string{"Low", "High"}, nil); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	got, err := enc.Transform([]string{"Low", " Medium", "High", "Ultra", ""})
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	want := []float64{0, 1, 2, UnknownCategory, UnknownCategory}
	for i, w := range want {
		if got.At(i, 0) != w {
			t.Errorf("row %d: got %v, want %v", i, got.At(i, 0), w)
		}
	}

	if err := enc.Fit([]string{"Low"}, nil); err == nil {
		t.Error("second Fit should be rejected")
	}
	if err := NewOrdinalEncoder("a", "a").Fit([]string{"a"}, nil); err == nil {
		t.Error("duplicate categories should be rejected")
	}
}

func TestOneHotEncoder(t *testing.T) {
	enc := NewOneHotEncoder()
	if err := enc.Fit([]string{"house", "flat", "house", "villa"}, nil); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	names := enc.OutputNames("property_type")
	wantNames := []string{"property_type_house", "property_type_villa"}
	if len(names) != len(wantNames) {
		t.Fatalf("got names %v, want %v", names, wantNames)
	}
	for i := range names {
		if names[i] != wantNames[i] {
			t.Errorf("name %d: got %q, want %q", i, names[i], wantNames[i])
		}
	}

	got, err := enc.Transform([]string{"flat", "house", "villa", "castle"})
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	want := mat.NewDense(4, 2, []float64{
		0, 0, // dropped first category
		1, 0,
		0, 1,
		0, 0, // unseen
	})
	if !mat.Equal(got, want) {
		t.Errorf("got\n%v\nwant\n%v", mat.Formatted(got), mat.Formatted(want))
	}
}

func TestOneHotEncoderSingleCategory(t *testing.T) {
	enc := NewOneHotEncoder()
	if err := enc.Fit([]string{"flat", "flat"}, nil); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	got, err := enc.Transform([]string{"flat"})
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if got != nil || len(enc.OutputNames("p")) != 0 {
		t.Errorf("expected no output columns, got %v", got)
	}
}

func TestTargetEncoder(t *testing.T) {
	enc := NewTargetEncoder()
	values := []string{"a", "a", "a", "b"}
	y := []float64{1, 2, 3, 10}
	if err := enc.Fit(values, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	prior := 4.0
	w := 1 / (1 + math.Exp(-(3.0-DefaultMinSamplesLeaf)/DefaultSmoothing))
	tests := []struct {
		category string
		want     float64
	}{
		{"a", prior*(1-w) + 2*w},
		{"b", prior}, // single occurrence falls back to the prior
		{"unseen", prior},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			if got := enc.Value(tt.category); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if err := NewTargetEncoder().Fit(values, y[:2]); err == nil {
		t.Error("length mismatch should be rejected")
	}
}

func TestTargetEncoderDeterministic(t *testing.T) {
	values := []string{"s1", "s2", "s1", "s3", "s2", "s1"}
	y := []float64{1.2, 3.4, 0.7, 9.1, 2.2, 1.0}

	a, b := NewTargetEncoder(), NewTargetEncoder()
	if err := a.Fit(values, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(values, y); err != nil {
		t.Fatal(err)
	}
	for c, v := range a.Encoding {
		if b.Encoding[c] != v {
			t.Errorf("category %s: %v != %v", c, v, b.Encoding[c])
		}
	}
}

func TestFunctionTransformer(t *testing.T) {
	ft, err := NewFunctionTransformer("cbrt")
	if err != nil {
		t.Fatal(err)
	}
	X := mat.NewDense(3, 1, []float64{27, 1000, -8})
	got, err := ft.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{3, 10, -2} {
		if math.Abs(got.At(i, 0)-want) > 1e-12 {
			t.Errorf("row %d: got %v, want %v", i, got.At(i, 0), want)
		}
	}

	if _, err := NewFunctionTransformer("exp2"); err == nil {
		t.Error("unknown function should be rejected")
	}
}

func TestMinMaxScaler(t *testing.T) {
	train := mat.NewDense(3, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
	})
	scaler := NewMinMaxScalerDefault()
	scaled, err := scaler.FitTransform(train)
	if err != nil {
		t.Fatal(err)
	}
	r, c := scaled.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := scaled.At(i, j); v < 0 || v > 1 {
				t.Errorf("training value (%d,%d)=%v outside [0,1]", i, j, v)
			}
		}
	}

	// values outside the training range are not clipped
	test := mat.NewDense(1, 2, []float64{5, 4})
	out, err := scaler.Transform(test)
	if err != nil {
		t.Fatal(err)
	}
	if out.At(0, 0) != 2 {
		t.Errorf("got %v, want 2", out.At(0, 0))
	}
	if out.At(0, 1) != -1 {
		t.Errorf("constant column: got %v, want -1", out.At(0, 1))
	}

	back, err := scaler.InverseTransform(out)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(back, test, 1e-12) {
		t.Errorf("inverse mismatch: %v", mat.Formatted(back))
	}
}

func TestTransformBeforeFit(t *testing.T) {
	tests := []struct {
		name string
		call func() error
	}{
		{"MinMaxScaler", func() error {
			_, err := NewMinMaxScalerDefault().Transform(mat.NewDense(1, 1, nil))
			return err
		}},
		{"OrdinalEncoder", func() error {
			_, err := NewOrdinalEncoder("a").Transform([]string{"a"})
			return err
		}},
		{"OneHotEncoder", func() error {
			_, err := NewOneHotEncoder().Transform([]string{"a"})
			return err
		}},
		{"TargetEncoder", func() error {
			_, err := NewTargetEncoder().Transform([]string{"a"})
			return err
		}},
		{"PowerTransformer", func() error {
			_, err := NewPowerTransformer().InverseTransform([]float64{1})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fe *errors.FitBeforeApplyError
			if err := tt.call(); !errors.As(err, &fe) {
				t.Errorf("expected FitBeforeApplyError, got %v", err)
			}
		})
	}
}

func TestYeoJohnsonRoundTrip(t *testing.T) {
	values := []float64{-5, -1.5, -0.1, 0, 0.1, 0.9, 2.5, 10, 250}
	for _, lambda := range []float64{-1, 0, 0.3, 1, 2, 2.7} {
		for _, y := range values {
			x := yeoJohnson(y, lambda)
			back := yeoJohnsonInverse(x, lambda)
			if math.Abs(back-y) > 1e-9*math.Max(1, math.Abs(y)) {
				t.Errorf("lambda=%v y=%v: round trip gave %v", lambda, y, back)
			}
		}
	}
}

func TestPowerTransformerFit(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	y := make([]float64, 2000)
	for i := range y {
		// log1p(y) is normal, so the maximum likelihood λ is close to 0
		y[i] = math.Expm1(1 + 0.5*r.NormFloat64())
	}

	p := NewPowerTransformer()
	if err := p.Fit(y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if math.Abs(p.Lambda) > 0.25 {
		t.Errorf("lambda = %v, expected close to 0", p.Lambda)
	}

	best := yeoJohnsonLogLikelihood(y, p.Lambda)
	for _, d := range []float64{-0.1, 0.1} {
		if yeoJohnsonLogLikelihood(y, p.Lambda+d) > best {
			t.Errorf("lambda %v is not a local maximum (delta %v)", p.Lambda, d)
		}
	}

	xt, err := p.Transform(y)
	if err != nil {
		t.Fatal(err)
	}
	back, err := p.InverseTransform(xt)
	if err != nil {
		t.Fatal(err)
	}
	for i := range y {
		if math.Abs(back[i]-y[i]) > 1e-8*math.Max(1, y[i]) {
			t.Fatalf("row %d: got %v, want %v", i, back[i], y[i])
		}
	}
}

func TestPowerTransformerConstantLabels(t *testing.T) {
	if err := NewPowerTransformer().Fit([]float64{3, 3, 3}); err == nil {
		t.Error("constant labels should be rejected")
	}
}
