package sigvival

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"google.golang.org/api/iterator"
)

// BufferSize is the read buffer used for dataset files, which are often wide
// single-line-per-gene matrices.
const BufferSize = 4096 * 64

// IsGoogleStoragePath reports whether p is a gs:// URL.
func IsGoogleStoragePath(p string) bool {
	return strings.HasPrefix(p, "gs://")
}

// SplitGoogleStoragePath returns the bucket and object name of a gs:// URL.
func SplitGoogleStoragePath(p string) (bucket, object string, err error) {
	pathParts := strings.SplitN(strings.TrimPrefix(p, "gs://"), "/", 2)
	if len(pathParts) < 1 || pathParts[0] == "" {
		return "", "", fmt.Errorf("Tried to split your google storage path into a bucket and a path, but got %v", pathParts)
	}
	if len(pathParts) == 1 {
		return pathParts[0], "", nil
	}

	return pathParts[0], pathParts[1], nil
}

// JoinPath joins a dataset root with a file name. Google Storage roots are
// joined with forward slashes regardless of the local OS.
func JoinPath(root, name string) string {
	if IsGoogleStoragePath(root) {
		return strings.TrimSuffix(root, "/") + "/" + name
	}

	return filepath.Join(root, name)
}

// MaybeOpenFromGoogleStorage opens a local file, or, if client is non-nil and
// the path is a gs:// URL, a Google Storage object. The caller must close the
// result.
func MaybeOpenFromGoogleStorage(ctx context.Context, p string, client *storage.Client) (io.ReadCloser, error) {
	if IsGoogleStoragePath(p) {
		if client == nil {
			return nil, fmt.Errorf("%s: a Google Storage client is required to read gs:// paths", p)
		}

		bucketName, pathName, err := SplitGoogleStoragePath(p)
		if err != nil {
			return nil, pfx.Err(err)
		}

		rdr, err := client.Bucket(bucketName).Object(pathName).NewReader(ctx)
		if err == storage.ErrObjectNotExist {
			return nil, fmt.Errorf("%s: %w", p, os.ErrNotExist)
		} else if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %s", p, err))
		}

		return rdr, nil
	}

	return os.Open(p)
}

// ListFiles returns the base names of the files directly under root, which
// may be a local folder or a gs:// prefix. Names are sorted.
func ListFiles(ctx context.Context, root string, client *storage.Client) ([]string, error) {
	out := make([]string, 0)

	if !IsGoogleStoragePath(root) {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, pfx.Err(err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			out = append(out, entry.Name())
		}
		sort.Strings(out)
		return out, nil
	}

	if client == nil {
		return nil, fmt.Errorf("%s: a Google Storage client is required to list gs:// paths", root)
	}

	bucketName, prefix, err := SplitGoogleStoragePath(root)
	if err != nil {
		return nil, pfx.Err(err)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	it := client.Bucket(bucketName).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}

		// Synthetic directory entries have only a Prefix
		if attrs.Name == "" {
			continue
		}

		out = append(out, path.Base(attrs.Name))
	}
	sort.Strings(out)

	return out, nil
}
