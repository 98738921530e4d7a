// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api implements an HTTP API serving the regions, tracks and
// matrices held in genome architecture stores.
//
// Stores are addressed as /<kind>/<bucket>/<object> and opened read-only for
// each request.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/googlegenomics/genomearch/architecture"
	"github.com/googlegenomics/genomearch/feature"
	"github.com/googlegenomics/genomearch/internal/genomics"
	"github.com/googlegenomics/genomearch/internal/metrics"
	"github.com/googlegenomics/genomearch/internal/storage"
	"github.com/googlegenomics/genomearch/internal/table"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

const (
	regionsPath = "/regions/:bucket/*object"
	tracksPath  = "/tracks/:bucket/*object"
	matrixPath  = "/matrix/:bucket/*object"
	metricsPath = "/metrics"

	requestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
)

var (
	errInvalidOrUnspecifiedID = errors.New("invalid or unspecified ID")
	errMissingTrack           = errors.New("no track specified")
)

// Server serves the API.  Must be created with NewServer.
type Server struct {
	newStorageClient storage.NewClientFunc
	maxMatrixSize    int
	allowed          map[string]bool
	logger           *zap.Logger
}

// NewServer returns a new Server that opens stores with a client obtained
// from newStorageClient for every request.  Matrix responses are limited to
// maxMatrixSize cells.
func NewServer(newStorageClient storage.NewClientFunc, maxMatrixSize int, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{newStorageClient, maxMatrixSize, make(map[string]bool), logger}
}

// AllowBuckets adds buckets to the set of buckets which the server is allowed
// to access.  If AllowBuckets is never called for a given Server then reads
// from any bucket are allowed.
func (server *Server) AllowBuckets(buckets []string) {
	for _, bucket := range buckets {
		server.allowed[bucket] = true
	}
}

// Export registers the API endpoints and the metrics endpoint with router.
func (server *Server) Export(router gin.IRouter) {
	router.Use(server.requestID, server.observe, forwardOrigin)
	router.GET(regionsPath, server.serveRegions)
	router.GET(tracksPath, server.serveTracks)
	router.GET(matrixPath, server.serveMatrix)
	router.GET(metricsPath, gin.WrapH(promhttp.Handler()))
}

// Handler returns an http.Handler serving the API.
func (server *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	server.Export(router)
	return router
}

func (server *Server) requestID(c *gin.Context) {
	id := c.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(requestIDKey, id)
	c.Header(requestIDHeader, id)
	c.Next()
}

func (server *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	status := c.Writer.Status()
	metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	server.logger.Info("handled request",
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(start)))
}

func forwardOrigin(c *gin.Context) {
	if origin := c.GetHeader("Origin"); origin != "" {
		c.Header("Access-Control-Allow-Origin", origin)
	}
	c.Next()
}

func (server *Server) checkAllowed(bucket string) error {
	if len(server.allowed) == 0 || server.allowed[bucket] {
		return nil
	}
	return fmt.Errorf("access to bucket %s is not allowed", bucket)
}

// parseID returns the bucket and object named by the route parameters.
func parseID(c *gin.Context) (string, string, error) {
	bucket, object := c.Param("bucket"), c.Param("object")
	if len(object) > 0 && object[0] == '/' {
		object = object[1:]
	}
	if bucket == "" || object == "" {
		return "", "", errInvalidOrUnspecifiedID
	}
	return bucket, object, nil
}

// parseRegionKey returns the row key selecting the regions described by
// descriptor, or all regions if it is empty.
func parseRegionKey(descriptor string) (any, error) {
	if descriptor == "" {
		return feature.All, nil
	}
	region, err := genomics.ParseRegion(descriptor)
	if err != nil {
		return nil, err
	}
	return region, nil
}

// apiError is used to capture errors that have been defined in the API.
type apiError struct {
	name  string
	code  int
	cause error
}

func (err *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %v", err.name, err.code, err.cause)
}

func (err *apiError) Unwrap() error {
	return err.cause
}

func newAPIError(name string, code int, context string, err error) error {
	return &apiError{name, code, fmt.Errorf("%s: %w", context, err)}
}

func newInvalidAuthenticationError(context string, err error) error {
	return newAPIError("InvalidAuthentication", http.StatusUnauthorized, context, err)
}

func newInvalidInputError(context string, err error) error {
	return newAPIError("InvalidInput", http.StatusBadRequest, context, err)
}

func newPermissionDeniedError(context string, err error) error {
	return newAPIError("PermissionDenied", http.StatusForbidden, context, err)
}

func newNotFoundError(context string, err error) error {
	return newAPIError("NotFound", http.StatusNotFound, context, err)
}

func newStorageError(context string, err error) error {
	if errors.Is(err, storage.ErrMissingOrInvalidToken) {
		return newInvalidAuthenticationError(context, err)
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return newNotFoundError(context, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized:
			return newInvalidAuthenticationError(context, err)
		case http.StatusForbidden:
			return newPermissionDeniedError(context, err)
		case http.StatusNotFound:
			return newNotFoundError(context, err)
		}
	}
	return err
}

// newFeatureError classifies errors caused by the content of a request.
func newFeatureError(context string, err error) error {
	for _, target := range []error{
		architecture.ErrUnknownFeature,
		feature.ErrUnrecognizedKey,
		table.ErrNoSuchField,
		table.ErrTypeMismatch,
		table.ErrOutOfRange,
	} {
		if errors.Is(err, target) {
			return newInvalidInputError(context, err)
		}
	}
	return err
}

// writeError writes either a JSON object or bare HTTP error describing err.
// A JSON object is written only when the error has a name and code defined
// by the API.
func (server *Server) writeError(c *gin.Context, err error) {
	var aerr *apiError
	if errors.As(err, &aerr) {
		c.JSON(aerr.code, gin.H{
			"error":   aerr.name,
			"message": fmt.Sprintf("%s: %v", http.StatusText(aerr.code), aerr.cause),
		})
		return
	}
	server.logger.Error("request failed", zap.String("request_id", c.GetString(requestIDKey)), zap.Error(err))
	c.String(http.StatusInternalServerError, "%s: %v", http.StatusText(http.StatusInternalServerError), err)
}
