package datasets

import (
	"github.com/petar/GoMNIST"
	"github.com/pkg/errors"
	"github.com/sharnoff/cohort"
)

// MNISTClasses is the number of digit classes
const MNISTClasses int = 10

// FromMNIST converts the first 'limit' images of the set into a Memory dataset, with one feature
// per pixel. If limit is not positive, or is more than the size of the set, every image is used.
func FromMNIST(set *GoMNIST.Set, limit int) (*Memory, error) {
	if set == nil {
		return nil, errors.Errorf("Can't convert MNIST set, set is nil")
	}

	n := set.Count()
	if limit > 0 && limit < n {
		n = limit
	}

	samples := make([]cohort.Sample, n)
	for i := 0; i < n; i++ {
		img, label := set.Get(i)
		if int(label) >= MNISTClasses {
			return nil, errors.Errorf("Can't convert MNIST image %d, label %d is out of range", i, label)
		}

		features := make([]float64, len(img))
		for p, v := range img {
			features[p] = float64(v)
		}

		samples[i] = cohort.NewSample(int(label), features, MNISTClasses)
	}

	return &Memory{samples: samples}, nil
}

// LoadMNIST reads a pair of idx files (optionally gzipped) of images and labels
func LoadMNIST(imagesPath, labelsPath string, limit int) (*Memory, error) {
	set, err := GoMNIST.ReadSet(imagesPath, labelsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read MNIST set from %s and %s\n", imagesPath, labelsPath)
	}

	return FromMNIST(set, limit)
}

// LoadMNISTDir reads the standard training and test sets from a directory, as named by the
// original distribution (train-images-idx3-ubyte.gz, etc.)
func LoadMNISTDir(dir string, trainLimit, testLimit int) (train, test *Memory, err error) {
	trainSet, testSet, err := GoMNIST.Load(dir)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "Can't load MNIST from %s\n", dir)
	}

	if train, err = FromMNIST(trainSet, trainLimit); err != nil {
		return nil, nil, err
	}
	if test, err = FromMNIST(testSet, testLimit); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}
