package settingsRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bloomdispatch/config"
	"bloomdispatch/database"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// SettingsRepository reads raw key/value system settings.
// Missing keys are absent from the returned map.
type SettingsRepository interface {
	GetValues(ctx context.Context, keys ...string) (map[string]string, error)
}

type settingDoc struct {
	Key   string `bson:"key"`
	Value any    `bson:"value"`
}

// MongoSettingsRepo reads the system_settings collection.
type MongoSettingsRepo struct {
	coll *mongo.Collection
}

func NewMongoSettingsRepo() *MongoSettingsRepo {
	return &MongoSettingsRepo{coll: database.Database().Collection("system_settings")}
}

func (r *MongoSettingsRepo) GetValues(ctx context.Context, keys ...string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, bson.M{"key": bson.M{"$in": keys}})
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []settingDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	out := make(map[string]string, len(docs))
	for _, d := range docs {
		out[d.Key] = fmt.Sprint(d.Value)
	}
	return out, nil
}

// CachedSettingsRepo fronts another repository with a short-lived Redis cache.
type CachedSettingsRepo struct {
	Next   SettingsRepository
	Cache  *redis.Client
	TTL    time.Duration
	Logger *zap.Logger
}

const cachePrefix = "settings:"

func (r *CachedSettingsRepo) GetValues(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	var misses []string

	for _, k := range keys {
		v, err := r.Cache.Get(ctx, cachePrefix+k).Result()
		switch {
		case err == nil:
			out[k] = v
		case errors.Is(err, redis.Nil):
			misses = append(misses, k)
		default:
			r.Logger.Warn("settings cache read failed", zap.String("key", k), zap.Error(err))
			misses = append(misses, k)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	fresh, err := r.Next.GetValues(ctx, misses...)
	if err != nil {
		return nil, err
	}
	for k, v := range fresh {
		out[k] = v
		if err := r.Cache.Set(ctx, cachePrefix+k, v, r.TTL).Err(); err != nil {
			r.Logger.Warn("settings cache write failed", zap.String("key", k), zap.Error(err))
		}
	}
	return out, nil
}

// LoadTimeoutSettings reads both response windows. Any failure falls back to
// the defaults so that a settings outage never stops the sweep.
func LoadTimeoutSettings(ctx context.Context, repo SettingsRepository, logger *zap.Logger) config.TimeoutSettings {
	values, err := repo.GetValues(ctx, config.SameDayTimeoutKey, config.StandardTimeoutKey)
	if err != nil {
		logger.Warn("using default timeout settings", zap.Error(err))
		return config.DefaultTimeoutSettings()
	}
	settings := config.TimeoutSettingsFromRaw(values)
	logger.Debug("loaded timeout settings",
		zap.Duration("same_day", settings.SameDay),
		zap.Duration("standard", settings.Standard))
	return settings
}
