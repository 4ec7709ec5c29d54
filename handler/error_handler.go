package handler

import (
	"net/http"

	"smad-api/common"
	"smad-api/logger"

	"github.com/sirupsen/logrus"
)

// AppHandler is an HTTP handler that reports failures by returning them.
type AppHandler func(http.ResponseWriter, *http.Request) error

// ErrorHandlingMiddleware answers a returned error with its JSON body. When
// the handler already started the response the error is only logged.
func ErrorHandlingMiddleware(next AppHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := wrapWriter(w)
		err := next(sw, r)
		if err == nil {
			return
		}
		if sw.written {
			logger.Log.WithError(err).WithFields(logrus.Fields{
				"path":   r.URL.Path,
				"req_id": common.RequestIDFromContext(r.Context()),
			}).Error("Error after response was sent")
			return
		}
		common.Handle(sw, r, err)
	}
}

// NotFoundHandler answers every unmapped route with 404 NOT_FOUND.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) error {
	return common.NotFound()
}
