package dataset

import (
	"math"
	"math/rand/v2"
	"strconv"
)

// Column names of the housing table.
const (
	ColPropertyType  = "property_type"
	ColSector        = "sector"
	ColPrice         = "price"
	ColBedroom       = "bedRoom"
	ColBathroom      = "bathroom"
	ColBalcony       = "balcony"
	ColAgePossession = "agePossession"
	ColBuiltUpArea   = "built_up_area"
	ColServantRoom   = "servant room"
	ColFurnishing    = "furnishing_type"
	ColLuxury        = "luxury_category"
	ColFloor         = "floor_category"
)

var (
	synthPropertyTypes = []string{"flat", "house"}
	synthBalcony       = []string{"0", "1", "2", "3", "3+"}
	synthAge           = []string{"Under Construction", "New Property", "Relatively New", "Moderately Old", "Old Property"}
	synthLuxury        = []string{"Low", "Medium", "High"}
	synthFloor         = []string{"Low Floor", "Mid Floor", "High Floor"}
)

// SyntheticHeader is the column order produced by Synthetic.
var SyntheticHeader = []string{
	ColPropertyType, ColSector, ColPrice, ColBedroom, ColBathroom, ColBalcony,
	ColAgePossession, ColBuiltUpArea, ColServantRoom, ColFurnishing, ColLuxury, ColFloor,
}

// Synthetic generates n housing-like rows. Prices (in crore) grow with area,
// sector premium, property type and luxury, with multiplicative noise, so a
// regressor has real signal to learn. Equal n and seed give equal frames.
func Synthetic(n int, seed uint64) *Frame {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	const sectors = 40
	premium := make([]float64, sectors)
	for i := range premium {
		premium[i] = 0.6 + 1.4*r.Float64()
	}

	rows := make([][]string, n)
	for i := range rows {
		ptype := synthPropertyTypes[r.IntN(len(synthPropertyTypes))]
		sector := r.IntN(sectors)
		bed := 1 + r.IntN(5)
		bath := max(1, bed-1+r.IntN(2))
		balcony := synthBalcony[r.IntN(len(synthBalcony))]
		age := r.IntN(len(synthAge))
		area := 350 + float64(bed)*300 + r.Float64()*900
		if ptype == "house" {
			area *= 1.6
		}
		servant := r.IntN(2)
		furnishing := r.IntN(3)
		luxury := r.IntN(len(synthLuxury))
		floor := synthFloor[r.IntN(len(synthFloor))]

		price := area / 1000 * premium[sector] * (1 + 0.15*float64(luxury)) * (1 - 0.04*float64(age))
		if ptype == "house" {
			price *= 1.3
		}
		price *= math.Exp(0.1 * r.NormFloat64())

		rows[i] = []string{
			ptype,
			"sector " + strconv.Itoa(sector+1),
			strconv.FormatFloat(math.Round(price*100)/100, 'f', -1, 64),
			strconv.Itoa(bed),
			strconv.Itoa(bath),
			balcony,
			synthAge[age],
			strconv.FormatFloat(math.Round(area), 'f', -1, 64),
			strconv.Itoa(servant),
			strconv.Itoa(furnishing),
			synthLuxury[luxury],
			floor,
		}
	}

	header := make([]string, len(SyntheticHeader))
	copy(header, SyntheticHeader)
	return &Frame{Source: "synthetic", Header: header, Rows: rows}
}
