// Package api exposes the turn-orchestrator HTTP surface (spec §6): the
// turn endpoint, conversation read/export/autosave endpoints, project
// file management, lexical search, and a view-preview endpoint, all
// mounted on a chi router with the same middleware shape as the rest of
// this codebase's HTTP layers.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	apimw "turn-orchestrator/internal/api/middleware"
	"turn-orchestrator/internal/config"
	"turn-orchestrator/internal/filestore"
	"turn-orchestrator/internal/indexer"
	"turn-orchestrator/internal/logging"
	"turn-orchestrator/internal/orchestrator"
	"turn-orchestrator/internal/search"
	"turn-orchestrator/internal/store"
	"turn-orchestrator/internal/transcript"
)

// maxUploadBytes bounds the raw request body chi reads. It must stay
// above maxFileBytes: the body is the file content wrapped in a JSON
// envelope (field names, quoting, escaping), so a request carrying
// exactly maxFileBytes of content is always a few bytes larger than
// that on the wire. The headroom absorbs that envelope so the file-size
// check in handler_files.go — not this body-level cap — is what
// actually enforces spec §4.2's 10 MiB file limit.
const maxUploadBytes = maxFileBytes + (1 << 20)

// Router wires every handler in this package onto a *chi.Mux.
type Router struct {
	mux *chi.Mux

	store        *store.Store
	orchestrator *orchestrator.Orchestrator
	searcher     *search.Searcher
	files        *filestore.FileStore
	indexer      *indexer.Indexer
	transcripts  *transcript.Writer
	cfg          *config.Config
	log          logging.Logger

	startedAt time.Time
}

// NewRouter builds a Router and mounts its full route table.
func NewRouter(
	s *store.Store,
	orch *orchestrator.Orchestrator,
	searcher *search.Searcher,
	files *filestore.FileStore,
	idx *indexer.Indexer,
	transcripts *transcript.Writer,
	cfg *config.Config,
	log logging.Logger,
) *Router {
	if log == nil {
		log = logging.WithComponent("api")
	}
	r := &Router{
		store:        s,
		orchestrator: orch,
		searcher:     searcher,
		files:        files,
		indexer:      idx,
		transcripts:  transcripts,
		cfg:          cfg,
		log:          log,
		startedAt:    time.Now().UTC(),
	}
	r.mux = chi.NewRouter()
	r.setupMiddleware()
	r.setupRoutes()
	return r
}

// Handler returns the http.Handler to mount on an http.Server.
func (r *Router) Handler() http.Handler {
	return r.mux
}

func (r *Router) setupMiddleware() {
	r.mux.Use(chimiddleware.Recoverer)
	r.mux.Use(chimiddleware.RequestSize(maxUploadBytes))
	r.mux.Use(apimw.CORS(apimw.DefaultCORSConfig()))
	r.mux.Use(apimw.Logging(r.log))
	r.mux.Use(chimiddleware.Timeout(60 * time.Second))
}

func (r *Router) setupRoutes() {
	r.mux.Get("/health", r.handleHealth)

	r.mux.Post("/turn", r.handleTurn)
	r.mux.Post("/preview-view", r.handlePreviewView)

	r.mux.Route("/conversations/{conversation_id}", func(sub chi.Router) {
		sub.Get("/", r.handleGetConversation)
		sub.Get("/export", r.handleExportConversation)
		sub.Post("/autosave", r.handleSetAutosave)
	})

	r.mux.Route("/projects/{project_id}/files", func(sub chi.Router) {
		sub.Post("/", r.handleUploadFile)
		sub.Get("/", r.handleListFiles)
		sub.Get("/{file_id}", r.handleGetFile)
		sub.Delete("/{file_id}", r.handleDeleteFile)
	})

	r.mux.Post("/projects/{project_id}/search", r.handleSearch)
}
