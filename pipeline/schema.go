package pipeline

import (
	"github.com/YuminosukeSato/findhome/dataset"
	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// OrdinalColumn is a categorical column with a declared rank order.
type OrdinalColumn struct {
	Name       string
	Categories []string
}

// FunctionColumn is a numeric column transformed element-wise before scaling.
type FunctionColumn struct {
	Name string
	Func string
}

// Schema assigns every feature column to a stage. Columns the schema does not
// name are not features and are ignored by Apply.
type Schema struct {
	Label       string
	Ordinal     []OrdinalColumn
	Nominal     []string
	Target      []string
	Functions   []FunctionColumn
	Passthrough []string
}

// HousingSchema returns the column roles of the housing price dataset.
func HousingSchema() Schema {
	return Schema{
		Label: dataset.ColPrice,
		Ordinal: []OrdinalColumn{
			{Name: dataset.ColBalcony, Categories: []string{"0", "1", "2", "3", "3+"}},
			{Name: dataset.ColAgePossession, Categories: []string{
				"Under Construction", "New Property", "Relatively New", "Moderately Old", "Old Property",
			}},
			{Name: dataset.ColLuxury, Categories: []string{"Low", "Medium", "High"}},
			{Name: dataset.ColFloor, Categories: []string{"Low Floor", "Mid Floor", "High Floor"}},
		},
		Nominal:   []string{dataset.ColPropertyType},
		Target:    []string{dataset.ColSector},
		Functions: []FunctionColumn{{Name: dataset.ColBuiltUpArea, Func: "cbrt"}},
		Passthrough: []string{
			dataset.ColBedroom, dataset.ColBathroom, dataset.ColServantRoom, dataset.ColFurnishing,
		},
	}
}

// Columns returns every feature column in stage order.
func (s Schema) Columns() []string {
	var cols []string
	for _, c := range s.Ordinal {
		cols = append(cols, c.Name)
	}
	cols = append(cols, s.Nominal...)
	cols = append(cols, s.Target...)
	for _, c := range s.Functions {
		cols = append(cols, c.Name)
	}
	return append(cols, s.Passthrough...)
}

// Validate rejects schemas without features, with a column in two roles or
// with the label used as a feature.
func (s Schema) Validate() error {
	cols := s.Columns()
	if len(cols) == 0 {
		return errors.NewConfigurationError("schema", nil, "no feature columns")
	}
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if c == "" {
			return errors.NewConfigurationError("schema", c, "empty column name")
		}
		if c == s.Label {
			return errors.NewConfigurationError("schema", c, "label column cannot be a feature")
		}
		if seen[c] {
			return errors.NewConfigurationError("schema", c, "column assigned to more than one stage")
		}
		seen[c] = true
	}
	return nil
}
