package vector

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/pipeline"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	payloadChunkID = "chunk_id"
	payloadText    = "text"
	payloadDocID   = "document_id"
	payloadSource  = "source"
	payloadPage    = "page"
	payloadSeq     = "seq"
	payloadOffset  = "offset"
)

// QdrantStore implements Store against a Qdrant instance over gRPC.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimensions  int
}

// NewQdrantStore connects to Qdrant at host:port. The collection is created
// lazily by EnsureCollection with cosine distance and the given dimension.
func NewQdrantStore(host string, port int, collection string, dimensions int) (*QdrantStore, error) {
	if dimensions <= 0 {
		return nil, pipeline.Configf("vector dimensions must be positive, got %d", dimensions)
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		dimensions:  dimensions,
	}, nil
}

// EnsureCollection creates the collection with cosine distance if absent.
// Dimension and metric are fixed at creation; queries against a collection
// built under a different metric would be silently wrong, so they are never
// per-request parameters.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	exists, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{
		CollectionName: s.collection,
	})
	if err != nil {
		return pipeline.Transientf("qdrant collection check: %v", err)
	}
	if exists.GetResult().GetExists() {
		return nil
	}
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(s.dimensions),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	return nil
}

// pointID derives a deterministic UUID from the chunk id so that upserting
// the same chunk replaces the existing point.
func pointID(chunkID string) *pb.PointId {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID))
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id.String()}}
}

func strValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func intValue(n int) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(n)}}
}

// Upsert writes entries; identical chunk ids map to identical point ids, so
// writes are idempotent.
func (s *QdrantStore) Upsert(ctx context.Context, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	points := make([]*pb.PointStruct, len(entries))
	for i, e := range entries {
		if len(e.Vector) != s.dimensions {
			return 0, pipeline.Inputf("vector dimension mismatch: got %d, expected %d", len(e.Vector), s.dimensions)
		}
		points[i] = &pb.PointStruct{
			Id:      pointID(e.ChunkID),
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: e.Vector}}},
			Payload: map[string]*pb.Value{
				payloadChunkID: strValue(e.ChunkID),
				payloadText:    strValue(e.Payload.Text),
				payloadDocID:   strValue(e.Payload.DocumentID),
				payloadSource:  strValue(e.Payload.Source),
				payloadPage:    intValue(e.Payload.Page),
				payloadSeq:     intValue(e.Payload.Seq),
				payloadOffset:  intValue(e.Payload.Offset),
			},
		}
	}
	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return 0, pipeline.Transientf("qdrant upsert: %v", err)
	}
	return len(entries), nil
}

func qdrantFilter(f *Filter) *pb.Filter {
	if f == nil || (f.DocumentID == "" && f.Source == "") {
		return nil
	}
	var must []*pb.Condition
	keyword := func(key, value string) *pb.Condition {
		return &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   key,
					Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
				},
			},
		}
	}
	if f.DocumentID != "" {
		must = append(must, keyword(payloadDocID, f.DocumentID))
	}
	if f.Source != "" {
		must = append(must, keyword(payloadSource, f.Source))
	}
	return &pb.Filter{Must: must}
}

func payloadFromValues(values map[string]*pb.Value) (chunkID string, p Payload) {
	chunkID = values[payloadChunkID].GetStringValue()
	p.Text = values[payloadText].GetStringValue()
	p.DocumentID = values[payloadDocID].GetStringValue()
	p.Source = values[payloadSource].GetStringValue()
	p.Page = int(values[payloadPage].GetIntegerValue())
	p.Seq = int(values[payloadSeq].GetIntegerValue())
	p.Offset = int(values[payloadOffset].GetIntegerValue())
	return chunkID, p
}

// Search performs ANN search and re-sorts client-side so equal scores order
// by chunk id ascending (Qdrant leaves tie order unspecified).
func (s *QdrantStore) Search(ctx context.Context, vec []float32, topK int, filter *Filter) ([]Scored, error) {
	if topK <= 0 {
		return nil, pipeline.Inputf("top_k must be positive, got %d", topK)
	}
	if len(vec) != s.dimensions {
		return nil, pipeline.Inputf("query dimension mismatch: got %d, expected %d", len(vec), s.dimensions)
	}
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vec,
		Limit:          uint64(topK),
		Filter:         qdrantFilter(filter),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, pipeline.Transientf("qdrant search: %v", err)
	}
	results := make([]Scored, len(resp.Result))
	for i, pt := range resp.Result {
		chunkID, payload := payloadFromValues(pt.Payload)
		results[i] = Scored{
			ChunkID: chunkID,
			Score:   float64(pt.Score),
			Payload: payload,
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	return results, nil
}

// DeleteByDocument removes every point of the given document id.
func (s *QdrantStore) DeleteByDocument(ctx context.Context, docID string) (int, error) {
	filter := qdrantFilter(&Filter{DocumentID: docID})
	exact := true
	count, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Filter:         filter,
		Exact:          &exact,
	})
	if err != nil {
		return 0, pipeline.Transientf("qdrant count: %v", err)
	}
	removed := int(count.GetResult().GetCount())
	if removed == 0 {
		return 0, nil
	}
	wait := true
	_, err = s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return 0, pipeline.Transientf("qdrant delete: %v", err)
	}
	return removed, nil
}

// Count returns the exact number of stored points.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, pipeline.Transientf("qdrant count: %v", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Sample scrolls up to n points without their vectors.
func (s *QdrantStore) Sample(ctx context.Context, n int) ([]Scored, error) {
	if n <= 0 {
		return nil, nil
	}
	limit := uint32(n)
	resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
		CollectionName: s.collection,
		Limit:          &limit,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, pipeline.Transientf("qdrant scroll: %v", err)
	}
	out := make([]Scored, len(resp.Result))
	for i, pt := range resp.Result {
		chunkID, payload := payloadFromValues(pt.Payload)
		out[i] = Scored{ChunkID: chunkID, Payload: payload}
	}
	return out, nil
}

// Drop deletes and recreates the collection.
func (s *QdrantStore) Drop(ctx context.Context) error {
	_, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection})
	if err != nil {
		return pipeline.Transientf("qdrant drop collection: %v", err)
	}
	return s.EnsureCollection(ctx)
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

var _ Store = (*QdrantStore)(nil)
