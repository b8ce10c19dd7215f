//go:build hdf5

package dataset

import (
	"gonum.org/v1/hdf5"

	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// HDF5Enabled reports whether this binary was built with HDF5 support.
const HDF5Enabled = true

func readHDF5(path string) (flux, time [][]float64, err error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open HDF5 file")
	}
	defer f.Close()

	flux, err = readMatrix(f, "flux")
	if err != nil {
		return nil, nil, err
	}
	time, err = readMatrix(f, "time")
	if err != nil {
		return nil, nil, err
	}
	return flux, time, nil
}

func readMatrix(f *hdf5.File, name string) ([][]float64, error) {
	ds, err := f.OpenDataset(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %q", name)
	}
	defer ds.Close()

	space := ds.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, errors.Wrapf(err, "read shape of %q", name)
	}
	if len(dims) != 2 {
		return nil, errors.NewValueError("dataset.readHDF5", name+" must be a 2-D (N, L) array")
	}
	n, l := int(dims[0]), int(dims[1])

	data := make([]float64, n*l)
	if err := ds.Read(&data); err != nil {
		return nil, errors.Wrapf(err, "read %q", name)
	}
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = data[i*l : (i+1)*l]
	}
	return rows, nil
}

// WriteHDF5 writes flux and time as (N, L) float64 datasets.
func WriteHDF5(path string, flux, time [][]float64) error {
	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return errors.Wrap(err, "create HDF5 file")
	}
	defer f.Close()
	if err := writeMatrix(f, "flux", flux); err != nil {
		return err
	}
	return writeMatrix(f, "time", time)
}

func writeMatrix(f *hdf5.File, name string, rows [][]float64) error {
	n := len(rows)
	l := 0
	if n > 0 {
		l = len(rows[0])
	}
	if n == 0 || l == 0 {
		return errors.NewEmptyDatasetError("dataset.WriteHDF5", name+" has no values")
	}
	data := make([]float64, 0, n*l)
	for _, r := range rows {
		data = append(data, r...)
	}
	space, err := hdf5.CreateSimpleDataspace([]uint{uint(n), uint(l)}, nil)
	if err != nil {
		return errors.Wrapf(err, "create dataspace for %q", name)
	}
	defer space.Close()
	dtype, err := hdf5.NewDatatypeFromValue(data[0])
	if err != nil {
		return errors.Wrapf(err, "datatype for %q", name)
	}
	ds, err := f.CreateDataset(name, dtype, space)
	if err != nil {
		return errors.Wrapf(err, "create dataset %q", name)
	}
	defer ds.Close()
	return errors.Wrapf(ds.Write(&data), "write %q", name)
}
