package linear_model

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// TestRidge_RecoversLinearModel tests y = 3 + 2*x0 - x1 with negligible regularization
func TestRidge_RecoversLinearModel(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 1,
		1, 0,
		2, 3,
		3, 1,
		4, 4,
		5, 2,
	})
	y := mat.NewDense(6, 1, nil)
	for i := 0; i < 6; i++ {
		y.Set(i, 0, 3+2*X.At(i, 0)-X.At(i, 1))
	}

	r := NewRidge(WithAlpha(1e-10))
	if err := r.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if math.Abs(r.Coef[0]-2) > 1e-6 || math.Abs(r.Coef[1]+1) > 1e-6 || math.Abs(r.Intercept-3) > 1e-6 {
		t.Errorf("coef = %v intercept = %v, want [2 -1] and 3", r.Coef, r.Intercept)
	}

	pred, err := r.Predict(mat.NewDense(1, 2, []float64{10, 10}))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pred.At(0, 0)-13) > 1e-6 {
		t.Errorf("prediction = %v, want 13", pred.At(0, 0))
	}
}

// TestRidge_CollinearColumns tests that duplicated columns still solve and share the weight
func TestRidge_CollinearColumns(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{1, 1, 2, 2, 3, 3, 4, 4})
	y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})

	r := NewRidge()
	if err := r.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if math.Abs(r.Coef[0]-r.Coef[1]) > 1e-9 {
		t.Errorf("collinear coefficients differ: %v", r.Coef)
	}
}

// TestRidge_Errors tests parameter and state checks
func TestRidge_Errors(t *testing.T) {
	r := NewRidge()
	if _, err := r.Predict(mat.NewDense(1, 1, nil)); err == nil {
		t.Error("expected error predicting before fit")
	}

	neg := NewRidge(WithAlpha(-1))
	err := neg.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, 2}))
	var ve *errors.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}

	if err := r.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(3, 1, nil)); err == nil {
		t.Error("expected dimension error")
	}

	clone := r.Clone()
	if clone.IsFitted() || clone.Name() != "Ridge" {
		t.Errorf("clone = %s fitted=%v", clone.Name(), clone.IsFitted())
	}
}
