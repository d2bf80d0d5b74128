// Package qdrant is the alternative ANN backend for the vector adapter.
package qdrant

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kailas-cloud/kbroute/internal/domain/knowledge"
	"github.com/kailas-cloud/kbroute/internal/domain/search/hit"
	"github.com/kailas-cloud/kbroute/internal/domain/search/origin"
)

// Payload keys. The knowledge id travels in the payload because Qdrant point
// ids must be integers or UUIDs.
const (
	payloadID       = "kb_id"
	payloadTitle    = "title"
	payloadContent  = "content"
	payloadCategory = "category"
)

type pointsClient interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsClient interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Store owns the knowledge collection in Qdrant.
type Store struct {
	conn        *grpc.ClientConn
	points      pointsClient
	collections collectionsClient
	collection  string
}

// New connects to Qdrant over gRPC.
func New(addr, collection string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

func newWithClients(points pointsClient, collections collectionsClient, collection string) *Store {
	return &Store{points: points, collections: collections, collection: collection}
}

// Close closes the gRPC connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// EnsureCollection creates the cosine collection if it does not exist.
func (s *Store) EnsureCollection(ctx context.Context, dims, m, efConstruct int) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("qdrant: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	hnsw := &pb.HnswConfigDiff{}
	if m > 0 {
		v := uint64(m)
		hnsw.M = &v
	}
	if efConstruct > 0 {
		v := uint64(efConstruct)
		hnsw.EfConstruct = &v
	}
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		HnswConfig:     hnsw,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: uint64(dims), Distance: pb.Distance_Cosine},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", s.collection, err)
	}
	return nil
}

// Reset deletes the collection.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection}); err != nil {
		return fmt.Errorf("qdrant: delete collection %s: %w", s.collection, err)
	}
	return nil
}

// Put upserts entries that carry a vector. Entries without one are skipped.
func (s *Store) Put(ctx context.Context, entries []knowledge.Entry) error {
	points := make([]*pb.PointStruct, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if len(e.Vector) == 0 {
			continue
		}
		points = append(points, &pb.PointStruct{
			Id: pointID(e.ID),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: e.Vector}},
			},
			Payload: map[string]*pb.Value{
				payloadID:       stringValue(e.ID),
				payloadTitle:    stringValue(e.Title),
				payloadContent:  stringValue(e.Content),
				payloadCategory: stringValue(e.Category),
			},
		})
	}
	if len(points) == 0 {
		return nil
	}

	wait := true
	if _, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(points), err)
	}
	return nil
}

// SearchVector runs a k-NN search. ef > 0 sets the HNSW search breadth.
func (s *Store) SearchVector(ctx context.Context, vector []float32, limit, ef int) ([]hit.Hit, error) {
	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if ef > 0 {
		v := uint64(ef)
		req.Params = &pb.SearchParams{HnswEf: &v}
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	hits := make([]hit.Hit, 0, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		p := r.GetPayload()
		id := p[payloadID].GetStringValue()
		if id == "" {
			id = strconv.FormatUint(r.GetId().GetNum(), 10)
		}
		score := float64(r.GetScore())
		if score > 1 {
			score = 1
		}
		hits = append(hits, hit.New(
			id, score,
			p[payloadTitle].GetStringValue(),
			p[payloadContent].GetStringValue(),
			p[payloadCategory].GetStringValue(),
			origin.Vector, i+1,
		))
	}
	return hits, nil
}

// pointID maps numeric knowledge ids to numeric points and everything else
// to a stable name-based UUID.
func pointID(id string) *pb.PointId {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: n}}
	}
	u := uuid.NewSHA1(uuid.NameSpaceURL, []byte("kbroute:knowledge:"+id))
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: u.String()}}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}
