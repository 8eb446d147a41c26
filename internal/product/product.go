// Package product defines the in-memory representation of each data product
// kind and the static table of deserializers used to build them.
package product

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/kamusis/valcache/internal/catalog"
)

// ErrNotHDF5 indicates a file without an HDF5 superblock signature.
var ErrNotHDF5 = errors.New("not an HDF5 file")

// hdf5Signature starts every HDF5 superblock. The superblock may sit at byte
// 0, 512, 1024, 2048, ... to leave room for a user block.
var hdf5Signature = []byte("\x89HDF\r\n\x1a\n")

// Container is the raw content of one product file as read from disk.
// Dataset-level decoding is left to consumers.
type Container struct {
	Path     string
	Size     int64
	ModTime  time.Time
	Checksum uint64
	// SuperblockOffset is where the HDF5 signature was found.
	SuperblockOffset int64
	Data             []byte
}

// Source returns c itself; it lets every product type satisfy Product.
func (c *Container) Source() *Container { return c }

// Product is any deserialized data product.
type Product interface {
	Source() *Container
}

type (
	// DelaySpectrum is a delay power spectrum of one day.
	DelaySpectrum struct{ Container }
	// RingMap is a ring map of one day, either from all baselines or
	// intercylinder baselines only.
	RingMap struct {
		Container
		Intercylinder bool
	}
	// SystemSensitivity is the radiometric sensitivity estimate of one day.
	SystemSensitivity struct{ Container }
	// RFIMask is the RFI flagging mask of one day.
	RFIMask struct{ Container }
	// Template is a shared reference product, e.g. an averaged ring map
	// subtracted from daily maps.
	Template struct{ Container }
)

// Decoder reads the file at path into a Product.
type Decoder func(path string) (Product, error)

var decoders = map[catalog.Kind]Decoder{
	catalog.KindDelaySpectrum: func(path string) (Product, error) {
		c, err := ReadContainer(path)
		if err != nil {
			return nil, err
		}
		return &DelaySpectrum{Container: *c}, nil
	},
	catalog.KindRingMap: func(path string) (Product, error) {
		c, err := ReadContainer(path)
		if err != nil {
			return nil, err
		}
		return &RingMap{Container: *c}, nil
	},
	catalog.KindRingMapIntercyl: func(path string) (Product, error) {
		c, err := ReadContainer(path)
		if err != nil {
			return nil, err
		}
		return &RingMap{Container: *c, Intercylinder: true}, nil
	},
	catalog.KindSensitivity: func(path string) (Product, error) {
		c, err := ReadContainer(path)
		if err != nil {
			return nil, err
		}
		return &SystemSensitivity{Container: *c}, nil
	},
	catalog.KindRFI: func(path string) (Product, error) {
		c, err := ReadContainer(path)
		if err != nil {
			return nil, err
		}
		return &RFIMask{Container: *c}, nil
	},
}

// DecoderFor returns the deserializer for kind.
func DecoderFor(kind catalog.Kind) (Decoder, bool) {
	d, ok := decoders[kind]
	return d, ok
}

// DecodeTemplate reads a shared reference file.
func DecodeTemplate(path string) (Product, error) {
	c, err := ReadContainer(path)
	if err != nil {
		return nil, err
	}
	return &Template{Container: *c}, nil
}

// ReadContainer reads path fully and validates the HDF5 signature.
func ReadContainer(path string) (*Container, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	off, ok := superblockOffset(data)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotHDF5, path)
	}
	return &Container{
		Path:             path,
		Size:             int64(len(data)),
		ModTime:          st.ModTime(),
		Checksum:         xxhash.Sum64(data),
		SuperblockOffset: off,
		Data:             data,
	}, nil
}

func superblockOffset(data []byte) (int64, bool) {
	for off := int64(0); off+int64(len(hdf5Signature)) <= int64(len(data)); {
		if bytes.Equal(data[off:off+int64(len(hdf5Signature))], hdf5Signature) {
			return off, true
		}
		if off == 0 {
			off = 512
		} else {
			off *= 2
		}
	}
	return 0, false
}
