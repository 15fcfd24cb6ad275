package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const TAXON_CACHE_PREFIX = "taxon:"
const TAXON_CACHE_TTL = time.Hour * 24

// TaxonCache remembers resolved iNaturalist taxon ids by taxon name.
type TaxonCache struct {
	RedisClient *redis.Client
}

func NewTaxonCache(r *redis.Client) *TaxonCache {
	return &TaxonCache{RedisClient: r}
}

func taxonKey(name string) string {
	return TAXON_CACHE_PREFIX + strings.ToLower(strings.TrimSpace(name))
}

func (tc *TaxonCache) SetTaxonID(ctx context.Context, name string, id int, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TAXON_CACHE_TTL
	}

	res := tc.RedisClient.SetEX(ctx, taxonKey(name), strconv.Itoa(id), ttl)
	if res.Err() != nil {
		log.Error().Err(res.Err()).Str("taxon", name).Msg("failed to cache taxon id in redis")
	}

	return res.Err()
}

// GetTaxonID reports ok=false on a miss.
func (tc *TaxonCache) GetTaxonID(ctx context.Context, name string) (int, bool, error) {
	res := tc.RedisClient.Get(ctx, taxonKey(name))
	if err := res.Err(); err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}

		log.Error().Err(err).Str("taxon", name).Msg("failed to get taxon id from redis")
		return 0, false, err
	}

	id, err := res.Int()
	if err != nil {
		log.Warn().Err(err).Str("taxon", name).Msg("ignoring malformed cached taxon id")
		return 0, false, nil
	}

	return id, true, nil
}
