// Package routes defines the API routes and URL structure
package routes

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/eresh-mittal/ImageProc/pkg/api/v1/handlers"
)

/*

To keep this file organized, routes should be organized in the following way:

1. Smallest scope first
2. For similar scopes, put the endpoints in alphabetical order
3. Order routes in GET, POST, PUT, DELETE order.
	a. Within this ordering, param urls (ie /:id) should go last, otherwise fiber will interpret the route slug as that param.
	b. After param considerations, order alphabetically.
4. For clarity, naming should match the action (i.e. GetStatus, AbortJob)

*/

// API base configuration
const (
	// DefaultPort is the default port for the API
	DefaultPort = "8080"
	// APIPrefix is the prefix for all API endpoints
	APIPrefix = "/api"
	// ProcessedImagesPrefix serves the resized images
	ProcessedImagesPrefix = "/processed_images"
	// OutputsPrefix serves the result CSV files
	OutputsPrefix = "/outputs"
)

// DefaultBaseURL is the default base URL for the API
var DefaultBaseURL = fmt.Sprintf("http://localhost:%s", DefaultPort)

// Route names for lookup
const (
	// Health check
	HealthCheck = "HealthCheck"

	// Job routes
	GetStatus = "GetStatus"
	UploadCSV = "UploadCSV"
	AbortJob  = "AbortJob"
)

// StaticDirs are the directories served under the artifact prefixes. Empty
// entries are not served.
type StaticDirs struct {
	ProcessedImages string
	Outputs         string
}

// routeCache stores extracted routes for use prior to compilation
var (
	routeCache     map[string]string
	routeCacheMu   sync.RWMutex
	routeCacheInit sync.Once
)

// RegisterRoutes configures all the routes
func RegisterRoutes(app *fiber.App, jobHandler *handlers.JobHandler, static StaticDirs) {
	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	}).Name(HealthCheck)

	// Produced artifacts
	if static.ProcessedImages != "" {
		app.Static(ProcessedImagesPrefix, static.ProcessedImages)
	}
	if static.Outputs != "" {
		app.Static(OutputsPrefix, static.Outputs)
	}

	// ---------------------------
	// Job endpoints
	api := app.Group(APIPrefix)
	api.Get("/status/:id", jobHandler.GetStatus).Name(GetStatus)
	api.Post("/upload", jobHandler.Upload).Name(UploadCSV)
	api.Post("/abort/:id", jobHandler.Abort).Name(AbortJob)
}

// initRouteCache initializes the route cache by creating a mock app and extracting routes
func initRouteCache() {
	routeCacheInit.Do(func() {
		routeCache = make(map[string]string)

		app := fiber.New()
		RegisterRoutes(app, &handlers.JobHandler{}, StaticDirs{})

		for _, route := range app.GetRoutes() {
			if route.Name != "" {
				routeCache[route.Name] = route.Path
			}
		}
	})
}

// GetRoute returns the route pattern for the given route name
func GetRoute(name string) string {
	initRouteCache()

	routeCacheMu.RLock()
	defer routeCacheMu.RUnlock()
	return routeCache[name]
}

// BuildURL builds a URL for the given route name and parameters
func BuildURL(routeName string, params map[string]string, queryParams url.Values) string {
	route := GetRoute(routeName)
	if route == "" {
		return ""
	}

	for param, value := range params {
		route = strings.ReplaceAll(route, ":"+param, url.PathEscape(value))
	}

	if len(queryParams) > 0 {
		route = fmt.Sprintf("%s?%s", route, queryParams.Encode())
	}

	return route
}

// HealthCheckURL returns the URL for the health check endpoint
func HealthCheckURL() string {
	return BuildURL(HealthCheck, nil, nil)
}

// UploadURL returns the URL for uploading a CSV file
func UploadURL() string {
	return BuildURL(UploadCSV, nil, nil)
}

// GetStatusURL returns the URL for getting the status of a job
func GetStatusURL(requestID string) string {
	return BuildURL(GetStatus, map[string]string{"id": requestID}, nil)
}

// AbortJobURL returns the URL for aborting a job
func AbortJobURL(requestID string) string {
	return BuildURL(AbortJob, map[string]string{"id": requestID}, nil)
}
