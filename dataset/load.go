package dataset

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/lcgen/pkg/errors"
	"github.com/YuminosukeSato/lcgen/pkg/log"
)

// LoadReport counts the NaN values replaced while loading.
type LoadReport struct {
	Path     string
	Format   string
	FluxNaNs int
	TimeNaNs int
	// FluxInfs and TimeInfs count ±Inf values clamped to ±MaxFloat64.
	FluxInfs int
	TimeInfs int
}

// Load reads a dataset from path. The format follows the extension:
// .h5/.hdf5 (requires the hdf5 build tag) or .json.
//
// NaN values are replaced with 0 and ±Inf with ±math.MaxFloat64, the same
// as numpy.nan_to_num(x, nan=0.0). Replacements are counted in the report
// and logged as warnings.
func Load(path string) (*Dataset, LoadReport, error) {
	report := LoadReport{Path: path}
	var (
		flux, time [][]float64
		err        error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".h5", ".hdf5":
		report.Format = "hdf5"
		flux, time, err = readHDF5(path)
	case ".json":
		report.Format = "json"
		flux, time, err = readJSON(path)
	default:
		return nil, report, errors.NewValueError("dataset.Load", "unsupported file extension "+filepath.Ext(path))
	}
	if err != nil {
		return nil, report, errors.Wrapf(err, "load %s", path)
	}

	report.FluxNaNs, report.FluxInfs = nanToNum(flux)
	report.TimeNaNs, report.TimeInfs = nanToNum(time)

	logger := log.GetLoggerWithName("dataset")
	if report.FluxNaNs > 0 {
		logger.Warn("NaN values found in flux, replaced with 0", log.ArrayKey, "flux", log.NaNCountKey, report.FluxNaNs)
	}
	if report.TimeNaNs > 0 {
		logger.Warn("NaN values found in timestamps, replaced with 0", log.ArrayKey, "time", log.NaNCountKey, report.TimeNaNs)
	}

	ds, err := New(flux, time)
	if err != nil {
		return nil, report, err
	}
	logger.Info("Loaded light curves",
		log.PathKey, path,
		log.SamplesKey, ds.Len(),
		log.LengthKey, ds.SeqLen(),
	)
	return ds, report, nil
}

// nanToNum replaces non-finite values in place and returns the number of
// NaNs and the number of infinities replaced.
func nanToNum(rows [][]float64) (nans, infs int) {
	for _, row := range rows {
		for j, v := range row {
			switch {
			case math.IsNaN(v):
				row[j] = 0
				nans++
			case math.IsInf(v, 1):
				row[j] = math.MaxFloat64
				infs++
			case math.IsInf(v, -1):
				row[j] = -math.MaxFloat64
				infs++
			}
		}
	}
	return nans, infs
}
