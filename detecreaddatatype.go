package sigvival

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"compress/zlib"
	"io"

	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

type DataType byte

const (
	DataTypeInvalid DataType = iota
	DataTypeNoCompression
	DataTypeGzip
	DataTypeZip
	DataTypeXZ
	DataTypeZ
	DataTypeBZip2
)

// CompressionExtensions are the file suffixes that are stripped before a
// dataset file's format is inferred from its name.
var CompressionExtensions = []string{".gz", ".bz2", ".xz", ".zip", ".z"}

var byteCodeSigs = map[DataType][]byte{
	DataTypeGzip:  {0x1f, 0x8b, 0x08},
	DataTypeZip:   {0x50, 0x4b, 0x03, 0x04},
	DataTypeXZ:    {0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00},
	DataTypeZ:     {0x1f, 0x9d},
	DataTypeBZip2: {0x42, 0x5a, 0x68},
}

// DetectDataType attempts to detect the data type of a stream by checking
// against a set of known data types without consuming it. Byte code signatures
// from https://stackoverflow.com/a/19127748/199475
func DetectDataType(br *bufio.Reader) (DataType, error) {
	buff, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return DataTypeInvalid, err
	}

	// Match known signatures
Outer:
	for dt, sig := range byteCodeSigs {
		if len(buff) < len(sig) {
			continue
		}
		for position := range sig {
			if buff[position] != sig[position] {
				continue Outer
			}
		}
		return dt, nil
	}

	return DataTypeNoCompression, nil
}

// MaybeDecompressReadCloser wraps rc in a decompressor if its leading bytes
// match a known compression format. Closing the result closes rc. Because
// detection only peeks, this works on streams that cannot seek (e.g., Google
// Storage objects).
func MaybeDecompressReadCloser(rc io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReaderSize(rc, BufferSize)

	dt, err := DetectDataType(br)
	if err != nil {
		rc.Close()
		return nil, err
	}

	var r io.Reader
	switch dt {
	case DataTypeGzip:
		r, err = gzip.NewReader(br)
	case DataTypeZip:
		// Only the first file in a zip archive is read
		zr := zipstream.NewReader(br)
		if _, err = zr.Next(); err == nil {
			r = zr
		}
	case DataTypeBZip2:
		r = bzip2.NewReader(br)
	case DataTypeXZ:
		r, err = xz.NewReader(br, 0)
	case DataTypeZ:
		r, err = zlib.NewReader(br)
	default:
		// No data type detected. For now, we assume this is uncompressed.
		r = br
	}
	if err != nil {
		rc.Close()
		return nil, err
	}

	return &readCloser{Reader: r, closer: rc}, nil
}

// readCloser closes the underlying source when the wrapping reader is done
type readCloser struct {
	io.Reader
	closer io.Closer
}

func (c *readCloser) Close() error {
	if rc, ok := c.Reader.(io.Closer); ok {
		rc.Close()
	}

	return c.closer.Close()
}
