//go:build !hdf5

package dataset

import (
	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// HDF5Enabled reports whether this binary was built with HDF5 support.
const HDF5Enabled = false

func readHDF5(path string) (flux, time [][]float64, err error) {
	return nil, nil, errors.NewValueError("dataset.readHDF5",
		"HDF5 support not compiled in; rebuild with -tags hdf5 or convert the file to JSON")
}

// WriteHDF5 is unavailable without the hdf5 build tag.
func WriteHDF5(path string, flux, time [][]float64) error {
	return errors.NewValueError("dataset.WriteHDF5",
		"HDF5 support not compiled in; rebuild with -tags hdf5")
}
