package datasource

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/insightloop/glean/pkg/models"
)

// redisSampleKeys bounds the SCAN used for keyspace shape inference.
const redisSampleKeys = 200

// RedisAdapter provides availability and keyspace-shape schema for a Redis
// connection. No plan request variant targets Redis, so Execute rejects
// everything with INVALID_REQUEST_KIND; the schema still grounds the AI's
// clarification and direct-answer paths.
type RedisAdapter struct {
	conn   *models.Connection
	client *redis.Client
}

// NewRedisAdapter builds a pooled client for the connection record.
func NewRedisAdapter(conn *models.Connection) *RedisAdapter {
	db := 0
	if n, err := strconv.Atoi(conn.Database); err == nil {
		db = n
	}
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", conn.Host, conn.Port),
		Username:    conn.Username,
		Password:    conn.Password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})
	return &RedisAdapter{conn: conn, client: client}
}

func (a *RedisAdapter) ID() string              { return strconv.FormatInt(a.conn.ID, 10) }
func (a *RedisAdapter) Name() string            { return a.conn.Name }
func (a *RedisAdapter) Kind() models.SourceKind { return models.KindRedis }
func (a *RedisAdapter) Close() error            { return a.client.Close() }

// IsAvailable pings the server. Never panics.
func (a *RedisAdapter) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.client.Ping(probeCtx).Err() == nil
}

// ExtractSchema samples the keyspace and groups keys by their first segment
// (the conventional "prefix:rest" layout), recording the value type per group.
func (a *RedisAdapter) ExtractSchema(ctx context.Context) (*models.SourceSchema, error) {
	schema := &models.SourceSchema{
		SourceID:   a.conn.ID,
		SourceName: a.conn.Name,
		SourceKind: models.KindRedis,
	}

	groups := make(map[string]*models.KeyGroup)
	var cursor uint64
	scanned := 0

	for scanned < redisSampleKeys {
		keys, next, err := a.client.Scan(ctx, cursor, "*", 50).Result()
		if err != nil {
			return nil, &SchemaExtractionError{SourceID: a.conn.ID, Kind: models.KindRedis, Err: err}
		}
		for _, key := range keys {
			pattern := keyPattern(key)
			group, ok := groups[pattern]
			if !ok {
				valueType, err := a.client.Type(ctx, key).Result()
				if err != nil {
					valueType = "unknown"
				}
				group = &models.KeyGroup{Pattern: pattern, Type: valueType}
				groups[pattern] = group
			}
			group.Count++
			scanned++
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	for _, g := range groups {
		schema.KeyGroups = append(schema.KeyGroups, *g)
	}

	return schema, nil
}

func keyPattern(key string) string {
	if idx := strings.IndexAny(key, ":/"); idx > 0 {
		return key[:idx+1] + "*"
	}
	return key
}

// Execute always rejects: the plan model defines no Redis request variant.
func (a *RedisAdapter) Execute(_ context.Context, req *models.DataRequest) models.ExecutionResult {
	return invalidKind(models.KindRedis, req.Kind)
}
