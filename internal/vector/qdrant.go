package vector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// DefaultCollection is the Qdrant collection holding all records.
const DefaultCollection = "agent_knowledge"

// QdrantEngine stores records in a Qdrant collection over gRPC.
type QdrantEngine struct {
	client     *qdrant.Client
	addr       string
	collection string
}

var _ Engine = (*QdrantEngine)(nil)

// NewQdrantEngine connects to the Qdrant server at addr (for example
// http://localhost:6333). An HTTP port of 6333 is mapped to the gRPC port 6334.
func NewQdrantEngine(ctx context.Context, addr, collection string) (*QdrantEngine, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant addr: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("parse qdrant addr %q: missing host", addr)
	}
	port := 6334
	if p, err := strconv.Atoi(u.Port()); err == nil && p != 6333 {
		port = p
	}
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   host,
		Port:                   port,
		UseTLS:                 u.Scheme == "https",
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrant health check: %w", err)
	}

	return &QdrantEngine{client: client, addr: addr, collection: collection}, nil
}

// pointID derives a stable UUID from a record key; Qdrant accepts only
// integers and UUIDs as point ids.
func pointID(key string) *qdrant.PointId {
	return qdrant.NewID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String())
}

func (e *QdrantEngine) exists(ctx context.Context) (bool, error) {
	ok, err := e.client.CollectionExists(ctx, e.collection)
	if err != nil {
		return false, fmt.Errorf("check collection: %w", err)
	}
	return ok, nil
}

func (e *QdrantEngine) Upsert(ctx context.Context, rec Record) error {
	if len(rec.Embedding) == 0 {
		return fmt.Errorf("record %s has no embedding", rec.Key)
	}
	ok, err := e.exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		err = e.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: e.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(len(rec.Embedding)),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}

	_, err = e.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: e.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      pointID(rec.Key),
				Vectors: qdrant.NewVectors(rec.Embedding...),
				Payload: buildPayload(rec),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert point %s: %w", rec.Key, err)
	}
	return nil
}

func (e *QdrantEngine) Delete(ctx context.Context, key string) error {
	ok, err := e.exists(ctx)
	if err != nil || !ok {
		return err
	}
	_, err = e.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: e.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointID(key)),
	})
	if err != nil {
		return fmt.Errorf("delete point %s: %w", key, err)
	}
	return nil
}

func (e *QdrantEngine) Search(ctx context.Context, query []float32, limit int) ([]Match, error) {
	ok, err := e.exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = 10
	}

	points, err := e.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: e.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}

	matches := make([]Match, 0, len(points))
	for _, p := range points {
		// Qdrant reports cosine similarity; convert back to a distance.
		matches = append(matches, Match{
			Record:   payloadToRecord(p.Payload),
			Distance: 1 - float64(p.Score),
		})
	}
	return matches, nil
}

func (e *QdrantEngine) Stats(ctx context.Context) (EngineStats, error) {
	st := EngineStats{Backend: "qdrant", Location: e.addr + "/" + e.collection}
	ok, err := e.exists(ctx)
	if err != nil || !ok {
		return st, err
	}
	st.Initialized = true

	n, err := e.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: e.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return st, fmt.Errorf("count points: %w", err)
	}
	st.Count = int(n)

	info, err := e.client.GetCollectionInfo(ctx, e.collection)
	if err == nil {
		if params := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); params != nil {
			st.Dims = int(params.GetSize())
		}
	}
	return st, nil
}

func (e *QdrantEngine) Clear(ctx context.Context) error {
	ok, err := e.exists(ctx)
	if err != nil || !ok {
		return err
	}
	return e.client.DeleteCollection(ctx, e.collection)
}

func (e *QdrantEngine) Close() error {
	return e.client.Close()
}

func buildPayload(rec Record) map[string]*qdrant.Value {
	tags := make([]*qdrant.Value, len(rec.Tags))
	for i, t := range rec.Tags {
		tags[i] = qdrant.NewValueString(t)
	}
	return map[string]*qdrant.Value{
		"key":       qdrant.NewValueString(rec.Key),
		"kind":      qdrant.NewValueString(rec.Kind),
		"source_id": qdrant.NewValueInt(rec.SourceID),
		"title":     qdrant.NewValueString(rec.Title),
		"preview":   qdrant.NewValueString(rec.Preview),
		"tags":      qdrant.NewValueList(&qdrant.ListValue{Values: tags}),
	}
}

func payloadToRecord(payload map[string]*qdrant.Value) Record {
	rec := Record{Tags: []string{}}
	if v, ok := payload["key"]; ok {
		rec.Key = v.GetStringValue()
	}
	if v, ok := payload["kind"]; ok {
		rec.Kind = v.GetStringValue()
	}
	if v, ok := payload["source_id"]; ok {
		rec.SourceID = v.GetIntegerValue()
	}
	if v, ok := payload["title"]; ok {
		rec.Title = v.GetStringValue()
	}
	if v, ok := payload["preview"]; ok {
		rec.Preview = v.GetStringValue()
	}
	if v, ok := payload["tags"]; ok && v.GetListValue() != nil {
		for _, item := range v.GetListValue().Values {
			if s := item.GetStringValue(); s != "" {
				rec.Tags = append(rec.Tags, s)
			}
		}
	}
	return rec
}
