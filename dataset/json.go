package dataset

import (
	"encoding/json"
	"math"
	"os"

	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// jsonFile is the on-disk layout of a JSON dataset. null entries decode as
// nil pointers and become NaN before NaN replacement.
type jsonFile struct {
	Flux [][]*float64 `json:"flux"`
	Time [][]*float64 `json:"time"`
}

func readJSON(path string) (flux, time [][]float64, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	var f jsonFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, nil, errors.Wrap(err, "decode JSON dataset")
	}
	if f.Flux == nil || f.Time == nil {
		return nil, nil, errors.NewValueError("dataset.readJSON", `both "flux" and "time" arrays are required`)
	}
	return fromNullable(f.Flux), fromNullable(f.Time), nil
}

func fromNullable(rows [][]*float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				out[i][j] = math.NaN()
			} else {
				out[i][j] = *v
			}
		}
	}
	return out
}

// WriteJSON writes flux and time in the layout Load reads. NaN values are
// written as null.
func WriteJSON(path string, flux, time [][]float64) error {
	f := jsonFile{Flux: toNullable(flux), Time: toNullable(time)}
	raw, err := json.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "encode JSON dataset")
	}
	return errors.WithStack(os.WriteFile(path, raw, 0o644))
}

func toNullable(rows [][]float64) [][]*float64 {
	out := make([][]*float64, len(rows))
	for i, row := range rows {
		out[i] = make([]*float64, len(row))
		for j := range row {
			if !math.IsNaN(row[j]) {
				v := row[j]
				out[i][j] = &v
			}
		}
	}
	return out
}
