package static

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/karrick/godirwalk"
	"golang.org/x/sys/unix"

	"gitlab.com/leafless/leafless/internal/httperrors"
	"gitlab.com/leafless/leafless/internal/logging"
	"gitlab.com/leafless/leafless/internal/lru"
	"gitlab.com/leafless/leafless/metrics"
)

const (
	// DefaultIndex is the file also served at the path of its directory
	DefaultIndex = "index.html"
	// DefaultCacheMaxFileSize is the largest file kept in the content cache
	DefaultCacheMaxFileSize = 64 * 1024
)

// Options of a static directory.
type Options struct {
	// Index is the name of the file also served at its directory path.
	// Defaults to DefaultIndex, "-" disables it.
	Index string
	// Dotfiles registers files and directories starting with a dot.
	Dotfiles bool
	// MaxAge sets a Cache-Control max-age header when positive.
	MaxAge time.Duration
	// CacheEntries is the number of files kept in memory, zero disables the cache.
	CacheEntries int64
	// CacheExpiry is how long a cached file stays valid.
	CacheExpiry time.Duration
	// CacheMaxFileSize bounds the size of cached files.
	CacheMaxFileSize int64
}

// RegisterFunc registers handler as the GET handler of template.
type RegisterFunc func(template string, handler http.Handler) error

// Directory is a registered static directory.
type Directory struct {
	// Routes is the number of registered routes
	Routes int

	cache  *lru.Cache
	closed int32
}

// Close releases the content cache, files are read from disk afterwards.
func (d *Directory) Close() {
	if d.cache != nil && atomic.CompareAndSwapInt32(&d.closed, 0, 1) {
		d.cache.Stop()
	}
}

func (d *Directory) liveCache() *lru.Cache {
	if atomic.LoadInt32(&d.closed) == 1 {
		return nil
	}

	return d.cache
}

// Register walks directory and calls register for every regular file found,
// under urlPath joined with the file's path relative to directory. On
// registration errors the returned Directory holds the routes that were
// registered.
func Register(directory, urlPath string, opts Options, register RegisterFunc) (*Directory, error) {
	LoadMIMETypes()

	root, err := filepath.Abs(directory)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("static root %q is not a directory", directory)
	}

	if opts.Index == "" {
		opts.Index = DefaultIndex
	}
	if opts.CacheMaxFileSize <= 0 {
		opts.CacheMaxFileSize = DefaultCacheMaxFileSize
	}

	d := &Directory{}
	if opts.CacheEntries > 0 {
		d.cache = lru.New("static", opts.CacheEntries, opts.CacheExpiry, metrics.StaticCachedEntries, metrics.StaticCacheRequests)
	}

	var result *multierror.Error

	add := func(template string, f *file) {
		if err := register(template, f); err != nil {
			result = multierror.Append(result, fmt.Errorf("registering %s: %w", f.fullPath, err))
			return
		}

		d.Routes++
		metrics.StaticFilesRegistered.Inc()
	}

	err = godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if osPathname == root {
				return nil
			}

			if skipName(de.Name(), opts.Dotfiles) {
				if de.IsDir() {
					return godirwalk.SkipThis
				}
				return nil
			}

			if !de.IsRegular() {
				return nil
			}

			rel, err := filepath.Rel(root, osPathname)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			f := &file{fullPath: osPathname, maxAge: opts.MaxAge, dir: d, cacheMaxFileSize: opts.CacheMaxFileSize}

			add(path.Join("/", urlPath, rel), f)

			if opts.Index != "-" && de.Name() == opts.Index {
				add(path.Join("/", urlPath, path.Dir(rel)), f)
			}

			return nil
		},
	})
	if err != nil {
		return d, fmt.Errorf("walking %s: %w", directory, err)
	}

	return d, result.ErrorOrNil()
}

// skipName reports whether a file or directory name can't be registered:
// dot files unless allowed, and names that would read as a route capture.
func skipName(name string, dotfiles bool) bool {
	if strings.HasPrefix(name, ".") && !dotfiles {
		return true
	}

	return strings.HasPrefix(name, ":")
}

func openNoFollow(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDONLY|unix.O_NOFOLLOW, 0)
}

type file struct {
	fullPath         string
	maxAge           time.Duration
	dir              *Directory
	cacheMaxFileSize int64
}

func (f *file) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fd, err := openNoFollow(f.fullPath)
	if err != nil {
		logging.LogRequest(r).WithError(err).Debug("static file can't be opened")
		httperrors.Serve404(w)
		return
	}
	defer fd.Close()

	fi, err := fd.Stat()
	if err != nil || !fi.Mode().IsRegular() {
		httperrors.Serve404(w)
		return
	}

	contentType, err := detectContentType(f.fullPath)
	if err != nil {
		httperrors.Serve500WithRequest(w, r, "detecting content type", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if f.maxAge > 0 {
		w.Header().Set("Cache-Control", "max-age="+strconv.Itoa(int(f.maxAge.Seconds())))
	}

	content := io.ReadSeeker(fd)
	if cache := f.dir.liveCache(); cache != nil && fi.Size() <= f.cacheMaxFileSize {
		key := fmt.Sprintf("%s:%d:%d", f.fullPath, fi.ModTime().UnixNano(), fi.Size())
		cached, err := cache.FindOrFetch(key, func() (interface{}, error) {
			return io.ReadAll(fd)
		})
		if err != nil {
			httperrors.Serve500WithRequest(w, r, "reading static file", err)
			return
		}

		content = bytes.NewReader(cached.([]byte))
	}

	http.ServeContent(w, r, filepath.Base(f.fullPath), fi.ModTime(), content)
}
