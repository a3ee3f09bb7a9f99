// Package redis stores tracker links as Redis hashes. Every write that
// touches more than one key runs as a Lua script so it is applied atomically.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/ports"
)

const defaultKeyPrefix = "tracker:"

// KEYS: link hash, id sequence, created-at index, id->token index
// ARGV: token, destination, click count, created_at, created_at score
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
local id = redis.call('INCR', KEYS[2])
redis.call('HSET', KEYS[1], 'id', id, 'token', ARGV[1], 'destination_url', ARGV[2], 'click_count', ARGV[3], 'created_at', ARGV[4])
redis.call('ZADD', KEYS[3], ARGV[5], ARGV[1])
redis.call('HSET', KEYS[4], id, ARGV[1])
return id
`)

// KEYS: link hash
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('HINCRBY', KEYS[1], 'click_count', 1)
`)

// KEYS: link hash, created-at index, id->token index
// ARGV: token
var deleteScript = redis.NewScript(`
local id = redis.call('HGET', KEYS[1], 'id')
if not id then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('HDEL', KEYS[3], id)
return 1
`)

type Repository struct {
	client    *redis.Client
	keyPrefix string
}

// Open connects to a redis:// or rediss:// URL.
func Open(ctx context.Context, url string) (*Repository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, ""), nil
}

// New wraps an existing client. An empty keyPrefix selects "tracker:".
func New(client *redis.Client, keyPrefix string) *Repository {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &Repository{client: client, keyPrefix: keyPrefix}
}

func (r *Repository) Close() error { return r.client.Close() }

func (r *Repository) linkKey(token string) string {
	return r.keyPrefix + "link:" + token
}

func (r *Repository) seqKey() string {
	return r.keyPrefix + "links:seq"
}

func (r *Repository) createdKey() string {
	return r.keyPrefix + "links:created"
}

func (r *Repository) idsKey() string {
	return r.keyPrefix + "links:ids"
}

func (r *Repository) Create(ctx context.Context, link *domain.TrackerLink) error {
	created := link.CreatedAt.UTC()
	keys := []string{r.linkKey(link.Token), r.seqKey(), r.createdKey(), r.idsKey()}

	id, err := createScript.Run(ctx, r.client, keys,
		link.Token, link.DestinationURL, link.ClickCount,
		created.Format(time.RFC3339Nano), created.UnixMicro(),
	).Int64()
	if err != nil {
		return storageErr("create", err)
	}
	if id == 0 {
		return domain.ErrDuplicateToken
	}
	link.ID = id
	return nil
}

func (r *Repository) GetByToken(ctx context.Context, token string) (*domain.TrackerLink, error) {
	fields, err := r.client.HGetAll(ctx, r.linkKey(token)).Result()
	if err != nil {
		return nil, storageErr("get by token", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}
	return parseLink(fields)
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.TrackerLink, error) {
	token, err := r.client.HGet(ctx, r.idsKey(), strconv.FormatInt(id, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get by id", err)
	}
	return r.GetByToken(ctx, token)
}

func (r *Repository) TokenExists(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, r.linkKey(token)).Result()
	if err != nil {
		return false, storageErr("token exists", err)
	}
	return n > 0, nil
}

func (r *Repository) IncrementClicks(ctx context.Context, token string) error {
	n, err := incrementScript.Run(ctx, r.client, []string{r.linkKey(token)}).Int64()
	if err != nil {
		return storageErr("increment clicks", err)
	}
	if n < 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, token string) error {
	keys := []string{r.linkKey(token), r.createdKey(), r.idsKey()}
	n, err := deleteScript.Run(ctx, r.client, keys, token).Int64()
	if err != nil {
		return storageErr("delete", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]domain.TrackerLink, error) {
	tokens, err := r.client.ZRevRange(ctx, r.createdKey(), 0, -1).Result()
	if err != nil {
		return nil, storageErr("list", err)
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(tokens))
	for i, token := range tokens {
		cmds[i] = pipe.HGetAll(ctx, r.linkKey(token))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, storageErr("list", err)
	}

	links := make([]domain.TrackerLink, 0, len(tokens))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// deleted between the index read and the fetch
			continue
		}
		link, err := parseLink(fields)
		if err != nil {
			return nil, err
		}
		links = append(links, *link)
	}
	return links, nil
}

func parseLink(fields map[string]string) (*domain.TrackerLink, error) {
	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return nil, storageErr("decode id", err)
	}
	clicks, err := strconv.ParseInt(fields["click_count"], 10, 64)
	if err != nil {
		return nil, storageErr("decode click_count", err)
	}
	created, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, storageErr("decode created_at", err)
	}
	return &domain.TrackerLink{
		ID:             id,
		Token:          fields["token"],
		DestinationURL: fields["destination_url"],
		ClickCount:     clicks,
		CreatedAt:      created.UTC(),
	}, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("redis: %s: %w: %w", op, domain.ErrStorage, err)
}

var _ ports.LinkStore = (*Repository)(nil)
