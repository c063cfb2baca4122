package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/codelens/codelens/internal/corpus"
	"github.com/codelens/codelens/internal/embedder"
	"github.com/codelens/codelens/internal/fingerprint"
	"github.com/codelens/codelens/internal/indexer"
	"github.com/codelens/codelens/internal/provider"
	"github.com/codelens/codelens/internal/retry"
	"github.com/codelens/codelens/internal/search"
	"github.com/codelens/codelens/internal/selector"
	"github.com/codelens/codelens/pkg/types"
)

const serviceFile = `package account

// ActiveUsers filters the roster down to users that logged in within
// the retention window.
func ActiveUsers(roster []User, cutoff int64) []User {
	var active []User
	for _, u := range roster {
		if u.LastLogin >= cutoff {
			active = append(active, u)
		}
	}
	return active
}
`

const constantsFile = `package account

var retentionDays = 90
`

// PipelineTestSuite exercises the full index-then-search pipeline over a
// real workspace on disk, with only the embedding provider mocked.
type PipelineTestSuite struct {
	suite.Suite
	ctx       context.Context
	workspace string
	fileA     string
	fileB     string
	store     corpus.Store
	embedder  *MockEmbedder
	indexer   *indexer.Indexer
	backend   *search.LocalBackend
}

func (s *PipelineTestSuite) SetupTest() {
	s.ctx = context.Background()

	s.workspace = s.T().TempDir()
	s.fileA = filepath.Join(s.workspace, "users.go")
	s.fileB = filepath.Join(s.workspace, "constants.go")
	s.Require().NoError(os.WriteFile(s.fileA, []byte(serviceFile), 0o644))
	s.Require().NoError(os.WriteFile(s.fileB, []byte(constantsFile), 0o644))

	s.store = corpus.NewMemoryStore()
	s.embedder = NewMockEmbedder(32)

	batcher := embedder.NewBatcher(s.embedder, embedder.BatcherConfig{
		BatchSize:   32,
		Parallelism: 2,
		Retry:       retry.Fixed(2, time.Millisecond),
	}, nil, nil)
	s.indexer = indexer.New(provider.NewRegistry(), selector.New(),
		fingerprint.New(s.store), batcher, s.store, nil)
	s.backend = search.NewLocalBackend(s.embedder, search.NewEngine(s.store))

	stats, err := s.indexer.IndexWorkspace(s.ctx, s.workspace, indexer.Options{})
	s.Require().NoError(err)
	s.Require().Zero(stats.FilesFailed)
}

func (s *PipelineTestSuite) TearDownTest() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

// storedChunk fetches the single chunk the workspace should produce.
func (s *PipelineTestSuite) storedChunk() types.Chunk {
	chunks, err := s.store.ChunksForFile(s.ctx, s.fileA)
	s.Require().NoError(err)
	s.Require().Len(chunks, 1)
	return chunks[0]
}

func (s *PipelineTestSuite) TestOnlyQualifyingFileProducesChunks() {
	chunk := s.storedChunk()
	s.Equal("ActiveUsers", chunk.Name)
	s.NotEmpty(chunk.Embedding)
	s.NotEmpty(chunk.Fingerprint)

	_, err := s.store.ChunksForFile(s.ctx, s.fileB)
	s.ErrorIs(err, corpus.ErrNotFound)

	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *PipelineTestSuite) TestSearchByStoredVectorIsExactMatch() {
	chunk := s.storedChunk()

	results, err := s.backend.Search(s.ctx, search.Request{
		QueryVector: chunk.Embedding,
	})
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal(s.fileA, results[0].Chunk.FilePath)
	s.Equal(1, results[0].Rank)
	s.InDelta(1.0, results[0].Score, 1e-6)
}

func (s *PipelineTestSuite) TestNaturalLanguageQueryFindsFunction() {
	results, err := s.backend.Search(s.ctx, search.Request{
		Query: "filter users by last login within retention window",
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(results)
	s.Equal(s.fileA, results[0].Chunk.FilePath)
	s.Equal("ActiveUsers", results[0].Chunk.Name)
}

func (s *PipelineTestSuite) TestDissimilarVectorReturnsEmpty() {
	chunk := s.storedChunk()
	opposite := make([]float32, len(chunk.Embedding))
	for i, v := range chunk.Embedding {
		opposite[i] = -v
	}

	results, err := s.backend.Search(s.ctx, search.Request{
		QueryVector: opposite,
	})
	s.Require().NoError(err)
	s.Empty(results)
}

func (s *PipelineTestSuite) TestReindexReusesEmbeddings() {
	callsBefore := s.embedder.Calls()

	stats, err := s.indexer.IndexWorkspace(s.ctx, s.workspace, indexer.Options{})
	s.Require().NoError(err)

	s.Equal(1, stats.ChunksReused)
	s.Zero(stats.ChunksEmbedded)
	s.Equal(callsBefore, s.embedder.Calls())
}

func (s *PipelineTestSuite) TestEditedFunctionIsReembedded() {
	edited := `package account

// ActiveUsers filters the roster down to users that logged in within
// the retention window, skipping deactivated accounts.
func ActiveUsers(roster []User, cutoff int64) []User {
	var active []User
	for _, u := range roster {
		if u.Deactivated {
			continue
		}
		if u.LastLogin >= cutoff {
			active = append(active, u)
		}
	}
	return active
}
`
	s.Require().NoError(os.WriteFile(s.fileA, []byte(edited), 0o644))

	stats, err := s.indexer.IndexWorkspace(s.ctx, s.workspace, indexer.Options{})
	s.Require().NoError(err)
	s.Equal(1, stats.ChunksEmbedded)
	s.Zero(stats.ChunksReused)

	chunk := s.storedChunk()
	s.Contains(chunk.Code, "Deactivated")
}

func (s *PipelineTestSuite) TestRemovedFileLeavesNoResults() {
	chunk := s.storedChunk()
	s.Require().NoError(s.indexer.RemoveFile(s.ctx, s.fileA))

	results, err := s.backend.Search(s.ctx, search.Request{
		QueryVector: chunk.Embedding,
	})
	s.Require().NoError(err)
	s.Empty(results)
}

func (s *PipelineTestSuite) TestEmptyQueryRejected() {
	_, err := s.backend.Search(s.ctx, search.Request{})
	s.Error(err)
	s.Contains(err.Error(), "query cannot be empty")
}

func TestPipelineTestSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}
