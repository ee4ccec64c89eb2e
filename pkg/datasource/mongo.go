package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/insightloop/glean/pkg/models"
	"github.com/insightloop/glean/pkg/summary"
)

// DefaultMongoLimit caps find results when the plan sets no limit.
const DefaultMongoLimit = 100

// MongoAdapter executes document queries against one MongoDB connection.
// The mongo client is thread-safe and pooled by the driver.
type MongoAdapter struct {
	conn   *models.Connection
	client *mongo.Client
}

// NewMongoAdapter connects a pooled client for the connection record.
func NewMongoAdapter(ctx context.Context, conn *models.Connection) (*MongoAdapter, error) {
	uri := fmt.Sprintf("mongodb://%s:%d", conn.Host, conn.Port)
	opts := options.Client().ApplyURI(uri).SetConnectTimeout(5 * time.Second)
	if conn.Username != "" {
		opts.SetAuth(options.Credential{
			Username:   conn.Username,
			Password:   conn.Password,
			AuthSource: conn.DetailString("auth_source", "admin"),
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	return &MongoAdapter{conn: conn, client: client}, nil
}

func (a *MongoAdapter) ID() string              { return strconv.FormatInt(a.conn.ID, 10) }
func (a *MongoAdapter) Name() string            { return a.conn.Name }
func (a *MongoAdapter) Kind() models.SourceKind { return models.KindMongoDB }
func (a *MongoAdapter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.client.Disconnect(ctx)
}

// IsAvailable pings the primary. Never panics.
func (a *MongoAdapter) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.client.Ping(probeCtx, readpref.Primary()) == nil
}

func (a *MongoAdapter) database() *mongo.Database {
	return a.client.Database(a.conn.Database)
}

// ExtractSchema lists collections with a sampled field shape, index names,
// and estimated counts. Field types are inferred from one sample document.
func (a *MongoAdapter) ExtractSchema(ctx context.Context) (*models.SourceSchema, error) {
	db := a.database()
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, &SchemaExtractionError{SourceID: a.conn.ID, Kind: models.KindMongoDB, Err: err}
	}

	schema := &models.SourceSchema{
		SourceID:   a.conn.ID,
		SourceName: a.conn.Name,
		SourceKind: models.KindMongoDB,
	}

	for _, name := range names {
		coll := db.Collection(name)
		entry := models.Collection{Name: name}

		var sample bson.M
		if err := coll.FindOne(ctx, bson.D{}).Decode(&sample); err == nil {
			redacted := summary.RedactRow(map[string]any(sample))
			if data, err := json.Marshal(redacted); err == nil {
				entry.SampleDocument = string(data)
			}
			entry.Fields = inferMongoFields(sample)
		}

		if cursor, err := coll.Indexes().List(ctx); err == nil {
			var indexes []bson.M
			if cursor.All(ctx, &indexes) == nil {
				for _, idx := range indexes {
					if name, ok := idx["name"].(string); ok {
						entry.Indexes = append(entry.Indexes, name)
					}
				}
			}
		}

		if count, err := coll.EstimatedDocumentCount(ctx); err == nil {
			entry.ApproxCount = count
		}

		schema.Collections = append(schema.Collections, entry)
	}

	return schema, nil
}

func inferMongoFields(doc bson.M) []models.Field {
	fields := make([]models.Field, 0, len(doc))
	for name, value := range doc {
		fields = append(fields, models.Field{Name: name, Type: mongoFieldType(value)})
	}
	return fields
}

func mongoFieldType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bson.M, bson.D:
		return "Document"
	case bson.A:
		return "Array"
	case string:
		return "String"
	case int32, int64, int:
		return "Int"
	case float64:
		return "Double"
	case bool:
		return "Boolean"
	case time.Time:
		return "Date"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Execute dispatches find/count/aggregate. The filter arrives as JSON from
// the plan and is parsed as extended-JSON-tolerant BSON.
func (a *MongoAdapter) Execute(ctx context.Context, req *models.DataRequest) models.ExecutionResult {
	if req.Kind != models.RequestMongoQuery {
		return invalidKind(models.KindMongoDB, req.Kind)
	}
	if req.Collection == "" {
		return models.FailedExecution("mongo query missing collection")
	}

	coll := a.database().Collection(req.Collection)

	switch req.Operation {
	case models.MongoFind:
		return a.executeFind(ctx, coll, req)
	case models.MongoCount:
		return a.executeCount(ctx, coll, req)
	case models.MongoAggregate:
		return a.executeAggregate(ctx, coll, req)
	default:
		return models.FailedExecution(fmt.Sprintf("unsupported mongo operation %q", req.Operation))
	}
}

func parseFilter(raw json.RawMessage) (bson.M, error) {
	if len(raw) == 0 {
		return bson.M{}, nil
	}
	var filter bson.M
	if err := bson.UnmarshalExtJSON(raw, true, &filter); err != nil {
		return nil, fmt.Errorf("invalid filter JSON: %w", err)
	}
	return filter, nil
}

func (a *MongoAdapter) executeFind(ctx context.Context, coll *mongo.Collection, req *models.DataRequest) models.ExecutionResult {
	filter, err := parseFilter(req.Filter)
	if err != nil {
		return models.FailedExecution(err.Error())
	}

	limit := int64(req.Limit)
	if limit <= 0 {
		limit = DefaultMongoLimit
	}

	cursor, err := coll.Find(ctx, filter, options.Find().SetLimit(limit))
	if err != nil {
		return models.FailedExecution(SanitizeError(fmt.Sprintf("find failed: %v", err)))
	}
	return materializeCursor(ctx, cursor)
}

func (a *MongoAdapter) executeCount(ctx context.Context, coll *mongo.Collection, req *models.DataRequest) models.ExecutionResult {
	filter, err := parseFilter(req.Filter)
	if err != nil {
		return models.FailedExecution(err.Error())
	}

	count, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return models.FailedExecution(SanitizeError(fmt.Sprintf("count failed: %v", err)))
	}
	return models.ExecutionResult{
		Success:  true,
		Rows:     []map[string]any{{"count": count}},
		Columns:  []string{"count"},
		RowCount: 1,
	}
}

func (a *MongoAdapter) executeAggregate(ctx context.Context, coll *mongo.Collection, req *models.DataRequest) models.ExecutionResult {
	if len(req.Filter) == 0 {
		return models.FailedExecution("aggregate requires a pipeline in filter")
	}
	var pipeline bson.A
	if err := bson.UnmarshalExtJSON(req.Filter, true, &pipeline); err != nil {
		return models.FailedExecution(fmt.Sprintf("invalid aggregation pipeline: %v", err))
	}

	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return models.FailedExecution(SanitizeError(fmt.Sprintf("aggregate failed: %v", err)))
	}
	return materializeCursor(ctx, cursor)
}

func materializeCursor(ctx context.Context, cursor *mongo.Cursor) models.ExecutionResult {
	defer cursor.Close(ctx)

	var rows []map[string]any
	columnSet := make(map[string]bool)
	var columns []string

	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return models.FailedExecution(fmt.Sprintf("failed to decode document: %v", err))
		}
		row := make(map[string]any, len(doc))
		for k, v := range doc {
			row[k] = normalizeMongoValue(v)
			if !columnSet[k] {
				columnSet[k] = true
				columns = append(columns, k)
			}
		}
		rows = append(rows, row)
	}
	if err := cursor.Err(); err != nil {
		return models.FailedExecution(SanitizeError(fmt.Sprintf("cursor error: %v", err)))
	}

	return models.ExecutionResult{
		Success:  true,
		Rows:     rows,
		Columns:  columns,
		RowCount: len(rows),
	}
}

func normalizeMongoValue(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case bson.M, bson.D, bson.A:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	default:
		return v
	}
}
