package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sydlexius/driftwood/internal/analysis"
	"github.com/sydlexius/driftwood/internal/api/middleware"
	"github.com/sydlexius/driftwood/internal/backup"
	"github.com/sydlexius/driftwood/internal/event"
	"github.com/sydlexius/driftwood/internal/issue"
	"github.com/sydlexius/driftwood/internal/library"
	"github.com/sydlexius/driftwood/internal/logging"
	"github.com/sydlexius/driftwood/internal/maintenance"
	"github.com/sydlexius/driftwood/internal/metadata"
	"github.com/sydlexius/driftwood/internal/playback"
	"github.com/sydlexius/driftwood/internal/scanner"
	"github.com/sydlexius/driftwood/internal/settings"
	"github.com/sydlexius/driftwood/internal/show"
	"github.com/sydlexius/driftwood/internal/task"
)

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	Libraries   *library.Service
	Shows       *show.Service
	Issues      *issue.Service
	Playback    *playback.Service
	Scanner     *scanner.Service
	Analysis    *analysis.Service
	Metadata    *metadata.Service
	Settings    *settings.Service
	Backup      *backup.Service
	Maintenance *maintenance.Service
	Scheduler   *task.Scheduler
	Tasks       *task.Registry
	Bus         *event.Bus
	LogManager  *logging.Manager
	Logger      *slog.Logger
	BasePath    string
}

// Router sets up all HTTP routes for the application.
type Router struct {
	libraries   *library.Service
	shows       *show.Service
	issues      *issue.Service
	playback    *playback.Service
	scanner     *scanner.Service
	analysis    *analysis.Service
	metadata    *metadata.Service
	settings    *settings.Service
	backup      *backup.Service
	maintenance *maintenance.Service
	scheduler   *task.Scheduler
	tasks       *task.Registry
	bus         *event.Bus
	logManager  *logging.Manager
	logger      *slog.Logger
	basePath    string
}

// NewRouter creates a new Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		libraries:   deps.Libraries,
		shows:       deps.Shows,
		issues:      deps.Issues,
		playback:    deps.Playback,
		scanner:     deps.Scanner,
		analysis:    deps.Analysis,
		metadata:    deps.Metadata,
		settings:    deps.Settings,
		backup:      deps.Backup,
		maintenance: deps.Maintenance,
		scheduler:   deps.Scheduler,
		tasks:       deps.Tasks,
		bus:         deps.Bus,
		logManager:  deps.LogManager,
		logger:      deps.Logger,
		basePath:    strings.TrimSuffix(deps.BasePath, "/"),
	}
}

// Handler returns the fully configured HTTP handler with middleware applied.
func (r *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	bp := r.basePath

	mux.HandleFunc("GET "+bp+"/api/v1/health", r.handleHealth)
	mux.HandleFunc("GET "+bp+"/api/v1/version", r.handleVersion)

	mux.HandleFunc("GET "+bp+"/api/v1/libraries", r.handleListLibraries)
	mux.HandleFunc("POST "+bp+"/api/v1/libraries", r.handleCreateLibrary)
	mux.HandleFunc("GET "+bp+"/api/v1/libraries/{id}", r.handleGetLibrary)
	mux.HandleFunc("PUT "+bp+"/api/v1/libraries/{id}", r.handleUpdateLibrary)
	mux.HandleFunc("DELETE "+bp+"/api/v1/libraries/{id}", r.handleDeleteLibrary)
	mux.HandleFunc("POST "+bp+"/api/v1/libraries/{id}/scan", r.handleScanLibrary)

	mux.HandleFunc("GET "+bp+"/api/v1/shows", r.handleListShows)
	mux.HandleFunc("GET "+bp+"/api/v1/shows/{id}", r.handleGetShow)
	mux.HandleFunc("PATCH "+bp+"/api/v1/shows/{id}", r.handleUpdateShow)
	mux.HandleFunc("DELETE "+bp+"/api/v1/shows/{id}", r.handleDeleteShow)
	mux.HandleFunc("GET "+bp+"/api/v1/shows/{id}/seasons", r.handleListSeasons)
	mux.HandleFunc("POST "+bp+"/api/v1/shows/{id}/metadata/import", r.handleImportMetadata)
	mux.HandleFunc("GET "+bp+"/api/v1/seasons/{id}/episodes", r.handleListEpisodes)
	mux.HandleFunc("GET "+bp+"/api/v1/episodes/{id}", r.handleGetEpisode)
	mux.HandleFunc("GET "+bp+"/api/v1/episodes/{id}/files", r.handleListEpisodeFiles)

	mux.HandleFunc("GET "+bp+"/api/v1/files/{id}", r.handleGetFile)
	mux.HandleFunc("PUT "+bp+"/api/v1/files/{id}/quality", r.handleSetFileQuality)
	mux.HandleFunc("POST "+bp+"/api/v1/files/{id}/analyze", r.handleAnalyzeFile)
	mux.HandleFunc("GET "+bp+"/api/v1/files/{id}/playback-tests", r.handleListPlaybackTests)
	mux.HandleFunc("POST "+bp+"/api/v1/files/{id}/playback-tests", r.handleRecordPlaybackTest)
	mux.HandleFunc("DELETE "+bp+"/api/v1/playback-tests/{id}", r.handleDeletePlaybackTest)

	mux.HandleFunc("GET "+bp+"/api/v1/issues", r.handleListIssues)
	mux.HandleFunc("POST "+bp+"/api/v1/issues", r.handleCreateIssue)
	mux.HandleFunc("GET "+bp+"/api/v1/issues/{id}", r.handleGetIssue)
	mux.HandleFunc("POST "+bp+"/api/v1/issues/{id}/resolve", r.handleResolveIssue)
	mux.HandleFunc("DELETE "+bp+"/api/v1/issues/{id}", r.handleDeleteIssue)

	mux.HandleFunc("POST "+bp+"/api/v1/scans", r.handleStartScan)
	mux.HandleFunc("GET "+bp+"/api/v1/scans", r.handleListScans)
	mux.HandleFunc("GET "+bp+"/api/v1/scans/{id}", r.handleGetScan)

	mux.HandleFunc("GET "+bp+"/api/v1/tasks", r.handleListTasks)
	mux.HandleFunc("GET "+bp+"/api/v1/tasks/{id}", r.handleGetTask)
	mux.HandleFunc("POST "+bp+"/api/v1/tasks/{id}/cancel", r.handleCancelTask)
	mux.HandleFunc("GET "+bp+"/api/v1/tasks/{id}/stream", r.handleStreamTask)

	mux.HandleFunc("POST "+bp+"/api/v1/metadata/bulk-match", r.handleBulkMatch)
	mux.HandleFunc("POST "+bp+"/api/v1/metadata/bulk-refresh", r.handleBulkRefresh)
	mux.HandleFunc("POST "+bp+"/api/v1/metadata/refresh-missing", r.handleRefreshMissing)
	mux.HandleFunc("POST "+bp+"/api/v1/analysis/run", r.handleAnalyzeAll)

	mux.HandleFunc("GET "+bp+"/api/v1/settings", r.handleGetSettings)
	mux.HandleFunc("PUT "+bp+"/api/v1/settings/tasks", r.handleSetTaskSettings)
	mux.HandleFunc("PUT "+bp+"/api/v1/settings/logging", r.handleSetLogSettings)
	mux.HandleFunc("GET "+bp+"/api/v1/events/recent", r.handleRecentEvents)
	mux.HandleFunc("GET "+bp+"/api/v1/events/stream", r.handleStreamEvents)

	mux.HandleFunc("GET "+bp+"/api/v1/system/backups", r.handleListBackups)
	mux.HandleFunc("POST "+bp+"/api/v1/system/backups", r.handleCreateBackup)
	mux.HandleFunc("DELETE "+bp+"/api/v1/system/backups/{filename}", r.handleDeleteBackup)
	mux.HandleFunc("GET "+bp+"/api/v1/system/maintenance", r.handleMaintenanceStatus)
	mux.HandleFunc("POST "+bp+"/api/v1/system/maintenance/optimize", r.handleOptimize)
	mux.HandleFunc("POST "+bp+"/api/v1/system/maintenance/vacuum", r.handleVacuum)

	var handler http.Handler = mux
	handler = middleware.Logging(r.logger)(handler)
	handler = middleware.Recover(r.logger)(handler)
	return handler
}
