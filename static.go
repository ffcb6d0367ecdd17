package leafless

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"gitlab.com/leafless/leafless/internal/static"
)

// StaticOptions configures a static directory.
type StaticOptions = static.Options

// Static registers every regular file below directory as a GET and HEAD
// route under urlPath. Files are registered once: files added later are not
// served, removed files answer 404. Shutdown releases the directory's cache.
func (s *Server) Static(urlPath, directory string, opts StaticOptions) error {
	dir, err := static.Register(directory, urlPath, opts, func(template string, handler http.Handler) error {
		return s.Handle(template, staticHandler(handler))
	})
	if dir == nil {
		return err
	}

	s.mu.Lock()
	s.statics = append(s.statics, dir)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"url_path":  urlPath,
		"directory": directory,
		"files":     dir.Routes,
	}).Info("static directory registered")

	return err
}

func staticHandler(handler http.Handler) Shared {
	serve := func(ctx *Context) (Response, error) {
		handler.ServeHTTP(ctx.Response(), ctx.Request())
		return Empty(), nil
	}

	return Shared{GET: serve, HEAD: serve}
}
