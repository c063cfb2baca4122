package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/codelens/codelens/internal/corpus"
	"github.com/codelens/codelens/internal/embedder"
	"github.com/codelens/codelens/internal/fingerprint"
	"github.com/codelens/codelens/internal/indexer"
	"github.com/codelens/codelens/internal/provider"
	"github.com/codelens/codelens/internal/search"
	"github.com/codelens/codelens/internal/selector"
	"github.com/codelens/codelens/internal/service"
)

const (
	// ServerName is the MCP server name
	ServerName = "codelens"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultDataDir is the default location for corpus storage
	DefaultDataDir = "~/.codelens"
)

// Storage backend selectors for Options.StoreBackend.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendQdrant = "qdrant"
)

// Search backend selectors for Options.SearchBackend.
const (
	SearchLocal  = "local"
	SearchRemote = "remote"
)

// Options configures server construction. Zero values select the sqlite
// backend under the default data directory.
type Options struct {
	DataDir      string
	StoreBackend string

	// SearchBackend selects where queries are ranked: locally against the
	// corpus store (default) or on the inference service itself.
	SearchBackend string

	// Qdrant settings, used only with BackendQdrant.
	QdrantAddr       string
	QdrantCollection string
	VectorDimension  int

	Service service.Config
	Logger  *slog.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	store   corpus.Store
	indexer *indexer.Indexer
	backend search.Backend
	sup     *service.Supervisor
	logger  *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(ctx context.Context, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dataDir, err := expandDataDir(opts.DataDir)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, dataDir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize corpus store: %w", err)
	}

	sup := service.New(opts.Service)

	emb, err := embedder.NewFromEnv(sup, embedder.NewCache(0), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	batcher := embedder.NewBatcher(emb, embedder.DefaultBatcherConfig(), sup, logger)
	idx := indexer.New(provider.NewRegistry(), selector.New(),
		fingerprint.New(store), batcher, store, logger)

	var backend search.Backend
	switch opts.SearchBackend {
	case SearchRemote:
		backend = search.NewRemoteBackend(sup)
	case SearchLocal, "":
		backend = search.NewLocalBackend(emb, search.NewEngine(store))
	default:
		return nil, fmt.Errorf("unknown search backend %q", opts.SearchBackend)
	}

	return NewServerWith(store, idx, backend, sup, logger)
}

// NewServerWith assembles a server from pre-built dependencies. Tests use
// it to inject fakes.
func NewServerWith(store corpus.Store, idx *indexer.Indexer, backend search.Backend,
	sup *service.Supervisor, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion),
		store:   store,
		indexer: idx,
		backend: backend,
		sup:     sup,
		logger:  logger,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer s.shutdown()
	return server.ServeStdio(s.mcp)
}

// shutdown stops the supervised service and closes the store.
func (s *Server) shutdown() {
	if s.sup != nil {
		if err := s.sup.Stop(); err != nil {
			s.logger.Warn("service stop failed", "error", err)
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("store close failed", "error", err)
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexWorkspaceTool(), s.handleIndexWorkspace)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(regenerateEmbeddingsTool(), s.handleRegenerateEmbeddings)
	s.mcp.AddTool(serviceStatusTool(), s.handleServiceStatus)
}

// expandDataDir resolves the default home-relative data directory and
// makes sure it exists.
func expandDataDir(dir string) (string, error) {
	if dir == "" || dir == DefaultDataDir {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".codelens")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// openStore selects the corpus backend.
func openStore(ctx context.Context, dataDir string, opts Options) (corpus.Store, error) {
	switch opts.StoreBackend {
	case BackendMemory:
		return corpus.OpenSnapshotStore(filepath.Join(dataDir, "corpus.json"))
	case BackendQdrant:
		collection := opts.QdrantCollection
		if collection == "" {
			collection = "codelens"
		}
		return corpus.OpenQdrantStore(ctx, opts.QdrantAddr, collection, uint64(opts.VectorDimension))
	case BackendSQLite, "":
		return corpus.OpenSQLiteStore(filepath.Join(dataDir, "corpus.db"))
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.StoreBackend)
	}
}
