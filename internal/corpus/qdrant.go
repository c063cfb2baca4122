package corpus

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"

	"github.com/codelens/codelens/pkg/types"
)

// QdrantStore keeps the corpus in a Qdrant collection. It implements
// VectorSearcher, so similarity scoring happens inside Qdrant instead of
// the local search engine.
type QdrantStore struct {
	points     qdrant.PointsClient
	conn       *grpc.ClientConn
	collection string
}

const scrollPageSize = 256

// OpenQdrantStore connects to a Qdrant instance and ensures the collection
// exists with cosine distance and the given vector dimension.
func OpenQdrantStore(ctx context.Context, addr, collection string, dimension uint64) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	collections := qdrant.NewCollectionsClient(conn)
	if _, err := collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: collection}); err != nil {
		_, err = collections.Create(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     dimension,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("create qdrant collection: %w", err)
		}
	}

	return &QdrantStore{
		points:     qdrant.NewPointsClient(conn),
		conn:       conn,
		collection: collection,
	}, nil
}

// ReplaceFileChunks deletes the file's points and upserts the new subset.
// Point IDs are derived deterministically from the chunk key, so repeated
// replacements of identical content are idempotent.
func (s *QdrantStore) ReplaceFileChunks(ctx context.Context, filePath string, chunks []types.Chunk) error {
	_, err := s.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filePathFilter(filePath)},
		},
		Wait: proto.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("delete old points: %w", err)
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if len(c.Embedding) == 0 {
			continue
		}
		points = append(points, &qdrant.PointStruct{
			Id:      pointID(c),
			Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: c.Embedding}}},
			Payload: chunkPayload(c),
		})
	}
	if len(points) == 0 {
		return nil
	}

	_, err = s.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           proto.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

// ChunksForFile scrolls the file's points.
func (s *QdrantStore) ChunksForFile(ctx context.Context, filePath string) ([]types.Chunk, error) {
	chunks, err := s.scroll(ctx, filePathFilter(filePath))
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrNotFound
	}
	return chunks, nil
}

// AllChunks scrolls the whole collection.
func (s *QdrantStore) AllChunks(ctx context.Context) ([]types.Chunk, error) {
	return s.scroll(ctx, nil)
}

// Files lists distinct file paths by scrolling payloads.
func (s *QdrantStore) Files(ctx context.Context) ([]string, error) {
	chunks, err := s.scroll(ctx, nil)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var files []string
	for i := range chunks {
		if !seen[chunks[i].FilePath] {
			seen[chunks[i].FilePath] = true
			files = append(files, chunks[i].FilePath)
		}
	}
	return files, nil
}

// DeleteFile removes one file's points.
func (s *QdrantStore) DeleteFile(ctx context.Context, filePath string) error {
	_, err := s.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filePathFilter(filePath)},
		},
		Wait: proto.Bool(true),
	})
	return err
}

// Count returns the total point count.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	resp, err := s.points.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          proto.Bool(true),
	})
	if err != nil {
		return 0, err
	}
	return int(resp.GetResult().GetCount()), nil
}

// SearchVector delegates similarity ranking to Qdrant.
func (s *QdrantStore) SearchVector(ctx context.Context, vector []float32, limit int) ([]types.SearchResult, error) {
	if limit <= 0 {
		return nil, nil
	}
	resp, err := s.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	results := make([]types.SearchResult, 0, len(resp.GetResult()))
	for _, hit := range resp.GetResult() {
		c := chunkFromPayload(hit.GetPayload())
		if c == nil {
			continue
		}
		results = append(results, types.SearchResult{Chunk: *c, Score: float64(hit.GetScore())})
	}
	return results, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

func (s *QdrantStore) scroll(ctx context.Context, filter *qdrant.Filter) ([]types.Chunk, error) {
	var chunks []types.Chunk
	var offset *qdrant.PointId

	for {
		resp, err := s.points.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter:         filter,
			Limit:          proto.Uint32(scrollPageSize),
			Offset:         offset,
			WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
			WithVectors:    &qdrant.WithVectorsSelector{SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant scroll: %w", err)
		}

		for _, p := range resp.GetResult() {
			c := chunkFromPayload(p.GetPayload())
			if c == nil {
				continue
			}
			if v := p.GetVectors().GetVector(); v != nil {
				c.Embedding = v.GetData()
			}
			chunks = append(chunks, *c)
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			return chunks, nil
		}
	}
}

// pointID derives a stable UUID from the chunk's corpus key.
func pointID(c *types.Chunk) *qdrant.PointId {
	key := fmt.Sprintf("%s|%s|%d", c.FilePath, c.Fingerprint, c.StartLine)
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(key))
	return &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id.String()}}
}

func filePathFilter(filePath string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{{
			ConditionOneOf: &qdrant.Condition_Field{Field: &qdrant.FieldCondition{
				Key:   "file_path",
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: filePath}},
			}},
		}},
	}
}

func chunkPayload(c *types.Chunk) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		"file_path":   {Kind: &qdrant.Value_StringValue{StringValue: c.FilePath}},
		"fingerprint": {Kind: &qdrant.Value_StringValue{StringValue: c.Fingerprint}},
		"start_line":  {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(c.StartLine)}},
		"end_line":    {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(c.EndLine)}},
		"name":        {Kind: &qdrant.Value_StringValue{StringValue: c.Name}},
		"kind":        {Kind: &qdrant.Value_StringValue{StringValue: string(c.Kind)}},
		"code":        {Kind: &qdrant.Value_StringValue{StringValue: c.Code}},
		"context":     {Kind: &qdrant.Value_StringValue{StringValue: c.Context}},
	}
}

func chunkFromPayload(payload map[string]*qdrant.Value) *types.Chunk {
	if payload == nil {
		return nil
	}
	c := &types.Chunk{
		FilePath:    payload["file_path"].GetStringValue(),
		Fingerprint: payload["fingerprint"].GetStringValue(),
		StartLine:   int(payload["start_line"].GetIntegerValue()),
		EndLine:     int(payload["end_line"].GetIntegerValue()),
		Name:        payload["name"].GetStringValue(),
		Kind:        types.SymbolKind(payload["kind"].GetStringValue()),
		Code:        payload["code"].GetStringValue(),
		Context:     payload["context"].GetStringValue(),
	}
	if c.FilePath == "" || c.Fingerprint == "" {
		return nil
	}
	return c
}
