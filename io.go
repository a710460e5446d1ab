package cohort

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// layerFilePrefix is followed by the zero-padded index of the layer and ".txt"
const layerFilePrefix string = "layer_"

func layerFileName(i int) string {
	return fmt.Sprintf("%s%03d.txt", layerFilePrefix, i)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// WriteLayer writes the Layer in its text format. The first line is the TypeString of the
// Activation; each following line is a single node:
//
//		<last activation>,<bias>:<weight 0>,<weight 1>,...
//
// The last activation is given to 7 decimal places. Weights and biases are written exactly, so
// that reading them back gives identical values.
func (l *Layer) WriteLayer(w io.Writer) error {
	return l.writeLayer(w, formatFloat)
}

// WriteLayerDecimals is WriteLayer, but with weights and biases given to a fixed number of
// decimal places. WriteLayerDecimals(w, 7) gives the older format, which loses precision.
func (l *Layer) WriteLayerDecimals(w io.Writer, decimals int) error {
	if decimals < 0 {
		panic(ErrNonPositiveSize)
	}

	return l.writeLayer(w, func(f float64) string {
		return strconv.FormatFloat(f, 'f', decimals, 64)
	})
}

func (l *Layer) writeLayer(w io.Writer, format func(float64) string) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(l.act.TypeString() + "\n"); err != nil {
		return errors.Wrapf(err, "Can't write layer, failed to write activation tag\n")
	}

	size, inputWidth := l.weights.Dims()
	for n := 0; n < size; n++ {
		var last float64
		if l.a != nil {
			last = l.a.AtVec(n)
		}

		var sb strings.Builder
		sb.WriteString(strconv.FormatFloat(last, 'f', 7, 64))
		sb.WriteByte(',')
		sb.WriteString(format(l.biases.AtVec(n)))
		sb.WriteByte(':')
		for i := 0; i < inputWidth; i++ {
			if i != 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(format(l.weights.At(n, i)))
		}
		sb.WriteByte('\n')

		if _, err := bw.WriteString(sb.String()); err != nil {
			return errors.Wrapf(err, "Can't write layer, failed to write node %d\n", n)
		}
	}

	return bw.Flush()
}

// ReadLayer reads a Layer that was written by WriteLayer. The Activation named on the first line
// must have been registered. Both the size and input width of the Layer are given by the file.
//
// Malformed input gives a FormatError.
func ReadLayer(r io.Reader) (*Layer, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)

	formatErr := func(line int, format string, args ...interface{}) error {
		return FormatError{Line: line, Msg: fmt.Sprintf(format, args...)}
	}

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, errors.Wrapf(err, "Can't read layer\n")
		}
		return nil, formatErr(1, "missing activation tag")
	}

	act, err := ActivationByTag(strings.TrimSpace(sc.Text()))
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read layer\n")
	}

	var (
		lasts, biases, weights []float64
		inputWidth             = -1
		line                   = 1
	)

	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		head, tail, ok := strings.Cut(text, ":")
		if !ok {
			return nil, formatErr(line, "missing ':'")
		}

		lastStr, biasStr, ok := strings.Cut(head, ",")
		if !ok {
			return nil, formatErr(line, "missing ',' between last activation and bias")
		}

		last, err := strconv.ParseFloat(lastStr, 64)
		if err != nil {
			return nil, formatErr(line, "bad last activation %q", lastStr)
		}
		bias, err := strconv.ParseFloat(biasStr, 64)
		if err != nil {
			return nil, formatErr(line, "bad bias %q", biasStr)
		}

		ws := strings.Split(tail, ",")
		if inputWidth == -1 {
			inputWidth = len(ws)
		} else if len(ws) != inputWidth {
			return nil, formatErr(line, "node has %d weights, expected %d", len(ws), inputWidth)
		}

		for i, s := range ws {
			w, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, formatErr(line, "bad weight %d (%q)", i, s)
			}
			weights = append(weights, w)
		}

		lasts = append(lasts, last)
		biases = append(biases, bias)
	}

	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "Can't read layer\n")
	} else if len(biases) == 0 {
		return nil, formatErr(line, "layer has no nodes")
	}

	l := newLayer(act, mat.NewDense(len(biases), inputWidth, weights), mat.NewVecDense(len(biases), biases))
	l.a = mat.NewVecDense(len(lasts), lasts)

	return l, nil
}

// Save writes the Network to the directory at 'dirPath', one file per Layer. If 'overwrite' is
// false and the directory already exists, Save returns ErrSaveDirectoryInUse.
func (net *Network) Save(dirPath string, overwrite bool) error {
	if _, err := os.Stat(dirPath); err == nil {
		if !overwrite {
			return errors.Wrapf(ErrSaveDirectoryInUse, "Can't save network to %s\n", dirPath)
		}

		if err = os.RemoveAll(dirPath); err != nil {
			return errors.Wrapf(err, "Can't save network, couldn't remove pre-existing folder to overwrite\n")
		}
	}

	if err := os.MkdirAll(dirPath, 0700); err != nil {
		return errors.Wrapf(err, "Couldn't make directory to save network\n")
	}

	for i, l := range net.layers {
		if err := saveLayer(filepath.Join(dirPath, layerFileName(i)), l); err != nil {
			return errors.Wrapf(err, "Can't save network, failed on layer %d\n", i)
		}
	}

	return nil
}

func saveLayer(path string, l *Layer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err = l.WriteLayer(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// Load reads a Network from a directory written by Save. Layer files are read in the order of their
// names. Missing or malformed files give an error; nothing is defaulted.
func Load(dirPath string) (*Network, error) {
	paths, err := filepath.Glob(filepath.Join(dirPath, layerFilePrefix+"*.txt"))
	if err != nil {
		return nil, errors.Wrapf(err, "Can't load network from %s\n", dirPath)
	} else if len(paths) == 0 {
		if _, err := os.Stat(dirPath); err != nil {
			return nil, errors.Wrapf(err, "Can't load network\n")
		}
		return nil, errors.Wrapf(ErrNoLayers, "Can't load network from %s\n", dirPath)
	}

	sort.Strings(paths)

	layers := make([]*Layer, len(paths))
	for i, p := range paths {
		if filepath.Base(p) != layerFileName(i) {
			return nil, errors.Errorf("Can't load network, expected %s but found %s", layerFileName(i), filepath.Base(p))
		}

		if layers[i], err = loadLayer(p); err != nil {
			return nil, errors.Wrapf(err, "Can't load network, failed on layer %d\n", i)
		}
	}

	return NewNetworkFromLayers(layers[0].InputWidth(), layers...)
}

func loadLayer(path string) (*Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	l, err := ReadLayer(f)
	if err != nil {
		if fe, ok := errors.Cause(err).(FormatError); ok {
			fe.Path = path
			return nil, fe
		}
		return nil, err
	}

	return l, nil
}
