package repodata

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/bzip2"
	"github.com/klauspost/compress/zstd"
)

// decompress wraps r according to the compression implied by filename's
// extension: ".zst" via github.com/klauspost/compress/zstd, ".bz2" via
// github.com/klauspost/compress/bzip2, anything else passed through
// unchanged. .json.zst is preferred, then .json.bz2, then plain.
//
// The returned closer releases any decoder resources in addition to
// closing the underlying reader.
func decompress(filename string, r io.ReadCloser) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(filename, ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("repodata: opening zstd stream: %w", err)
		}
		return &zstdCloser{r: zr, underlying: r}, nil
	case strings.HasSuffix(filename, ".bz2"):
		return &bz2Closer{r: bzip2.NewReader(r), underlying: r}, nil
	default:
		return r, nil
	}
}

type zstdCloser struct {
	r          *zstd.Decoder
	underlying io.ReadCloser
}

func (z *zstdCloser) Read(p []byte) (int, error) { return z.r.Read(p) }
func (z *zstdCloser) Close() error {
	z.r.Close()
	return z.underlying.Close()
}

type bz2Closer struct {
	r          io.Reader
	underlying io.ReadCloser
}

func (b *bz2Closer) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *bz2Closer) Close() error                { return b.underlying.Close() }

// defaultRepodataFilenames is the ordered list of filenames tried at each
// (channel, subdir), stopping at the first one that is fetched and parsed
// successfully. Overridable via config's repodata_fns.
var defaultRepodataFilenames = []string{"repodata.json.zst", "repodata.json.bz2", "repodata.json"}
