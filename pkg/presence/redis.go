package presence

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/pulse/pkg/geo"
	"github.com/dmitrymomot/pulse/pkg/logger"
)

const (
	entryPrefix = "donor:presence:"
	geoPrefix   = "donors:geo:"
)

const (
	fieldDonor     = "donorId"
	fieldLat       = "lat"
	fieldLon       = "lon"
	fieldGroup     = "bloodGroup"
	fieldCountry   = "countryCode"
	fieldAvailable = "available"
	fieldConn      = "connId"
	fieldUpdated   = "updatedAt"
)

// releaseScript deletes the hash and both GEO members in one step, but only
// while the stored connId still equals ARGV[1].
var releaseScript = redis.NewScript(`
local conn = redis.call('HGET', KEYS[1], 'connId')
if not conn then return 0 end
if conn ~= ARGV[1] then return 0 end
local cc = string.lower(redis.call('HGET', KEYS[1], 'countryCode') or '')
local bg = redis.call('HGET', KEYS[1], 'bloodGroup') or ''
redis.call('ZREM', ARGV[2] .. cc, ARGV[3])
redis.call('ZREM', ARGV[2] .. cc .. ':' .. bg, ARGV[3])
redis.call('DEL', KEYS[1])
return 1
`)

// pruneScript removes index members that no longer belong to the queried
// indexes: the hash expired, or the donor re-registered under another country
// or blood group. KEYS[1] is the country index, KEYS[2] the optional blood
// group index. ARGV is entry prefix, country, blood group (may be empty),
// then the members. The hash is re-read here so a concurrent re-registration
// into the same index is never removed.
var pruneScript = redis.NewScript(`
local removed = 0
for i = 4, #ARGV do
  local id = ARGV[i]
  local f = redis.call('HMGET', ARGV[1] .. id, 'countryCode', 'bloodGroup')
  local cc, bg = f[1], f[2]
  if not cc or cc ~= ARGV[2] then
    redis.call('ZREM', KEYS[1], id)
    if KEYS[2] then redis.call('ZREM', KEYS[2], id) end
    removed = removed + 1
  elseif KEYS[2] and bg ~= ARGV[3] then
    redis.call('ZREM', KEYS[2], id)
    removed = removed + 1
  end
end
return removed
`)

// RedisStore keeps presence in Redis hashes and GEO sets.
type RedisStore struct {
	rdb redis.UniversalClient
	options
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb redis.UniversalClient, opts ...Option) *RedisStore {
	return &RedisStore{rdb: rdb, options: newOptions(opts)}
}

func entryKey(donorID string) string { return entryPrefix + donorID }

func countryKey(cc string) string { return geoPrefix + strings.ToLower(cc) }

func groupKey(cc, bg string) string { return countryKey(cc) + ":" + bg }

func (s *RedisStore) op(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *RedisStore) SetAvailable(ctx context.Context, e Entry) error {
	e = normalize(e)
	if err := e.validate(); err != nil {
		return err
	}
	e.Available = true
	e.UpdatedAt = s.now().UTC()

	ctx, cancel := s.op(ctx)
	defer cancel()

	prev, err := s.rdb.HMGet(ctx, entryKey(e.DonorID), fieldCountry, fieldGroup).Result()
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	prevCC, _ := prev[0].(string)
	prevBG, _ := prev[1].(string)

	loc := &redis.GeoLocation{Name: e.DonorID, Longitude: e.Location.Lon, Latitude: e.Location.Lat}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prevCC != "" && (prevCC != e.CountryCode || prevBG != e.BloodGroup) {
			pipe.ZRem(ctx, countryKey(prevCC), e.DonorID)
			pipe.ZRem(ctx, groupKey(prevCC, prevBG), e.DonorID)
		}
		pipe.GeoAdd(ctx, countryKey(e.CountryCode), loc)
		pipe.GeoAdd(ctx, groupKey(e.CountryCode, e.BloodGroup), loc)
		pipe.HSet(ctx, entryKey(e.DonorID), encodeEntry(e))
		pipe.Expire(ctx, entryKey(e.DonorID), s.ttl)
		return nil
	})
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) SetUnavailable(ctx context.Context, donorID string) error {
	ctx, cancel := s.op(ctx)
	defer cancel()

	prev, err := s.rdb.HMGet(ctx, entryKey(donorID), fieldCountry, fieldGroup).Result()
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	cc, _ := prev[0].(string)
	bg, _ := prev[1].(string)

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if cc != "" {
			pipe.ZRem(ctx, countryKey(cc), donorID)
			pipe.ZRem(ctx, groupKey(cc, bg), donorID)
		}
		pipe.Del(ctx, entryKey(donorID))
		return nil
	})
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Pause(ctx context.Context, donorID string) error {
	ctx, cancel := s.op(ctx)
	defer cancel()

	n, err := s.rdb.Exists(ctx, entryKey(donorID)).Result()
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	err = s.rdb.HSet(ctx, entryKey(donorID),
		fieldAvailable, "0",
		fieldUpdated, strconv.FormatInt(s.now().UnixMilli(), 10),
	).Err()
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) QueryNearby(ctx context.Context, q NearbyQuery) ([]Nearby, error) {
	if q.RadiusKm <= 0 || q.Center.Validate() != nil || q.CountryCode == "" {
		return nil, ErrInvalidQuery
	}
	cc := strings.ToUpper(q.CountryCode)
	bg := strings.ToUpper(q.BloodGroup)
	key := countryKey(cc)
	if bg != "" {
		key = groupKey(cc, bg)
	}

	ctx, cancel := s.op(ctx)
	defer cancel()

	locs, err := s.rdb.GeoRadius(ctx, key, q.Center.Lon, q.Center.Lat, &redis.GeoRadiusQuery{
		Radius:    q.RadiusKm,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	if len(locs) == 0 {
		return nil, nil
	}

	entries, err := s.loadEntries(ctx, locs)
	if err != nil {
		return nil, err
	}

	var stale []string
	out := make([]Nearby, 0, len(locs))
	for i, loc := range locs {
		e, ok := entries[i]
		if !ok || !e.indexedIn(cc, bg) {
			stale = append(stale, loc.Name)
			continue
		}
		if !e.Available {
			continue
		}
		out = append(out, Nearby{Entry: e, DistanceKm: geo.RoundKm(loc.Dist)})
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	s.prune(ctx, cc, bg, stale)
	return out, nil
}

func (s *RedisStore) loadEntries(ctx context.Context, locs []redis.GeoLocation) (map[int]Entry, error) {
	cmds := make([]*redis.MapStringStringCmd, len(locs))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, loc := range locs {
			cmds[i] = pipe.HGetAll(ctx, entryKey(loc.Name))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	out := make(map[int]Entry, len(locs))
	for i, cmd := range cmds {
		if fields := cmd.Val(); len(fields) > 0 {
			out[i] = decodeEntry(fields)
		}
	}
	return out, nil
}

// prune drops GEO members that are expired or belong to other indexes.
// Failures only delay cleanup, so they are logged and ignored.
func (s *RedisStore) prune(ctx context.Context, cc, bg string, donorIDs []string) {
	if len(donorIDs) == 0 {
		return
	}
	keys := []string{countryKey(cc)}
	if bg != "" {
		keys = append(keys, groupKey(cc, bg))
	}
	args := make([]any, 0, len(donorIDs)+3)
	args = append(args, entryPrefix, cc, bg)
	for _, id := range donorIDs {
		args = append(args, id)
	}
	if err := pruneScript.Run(ctx, s.rdb, keys, args...).Err(); err != nil {
		s.log.LogAttrs(ctx, slog.LevelWarn, "presence: prune stale members failed",
			logger.Error(err),
			slog.Int("count", len(donorIDs)),
		)
	}
}

func (s *RedisStore) Get(ctx context.Context, donorID string) (Entry, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()

	fields, err := s.rdb.HGetAll(ctx, entryKey(donorID)).Result()
	if err != nil {
		return Entry{}, errors.Join(ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return Entry{}, ErrNotFound
	}
	return decodeEntry(fields), nil
}

func (s *RedisStore) Count(ctx context.Context, countryCode, bloodGroup string) (int, error) {
	cc := strings.ToUpper(countryCode)
	bg := strings.ToUpper(bloodGroup)
	key := countryKey(cc)
	if bg != "" {
		key = groupKey(cc, bg)
	}

	ctx, cancel := s.op(ctx)
	defer cancel()

	members, err := s.rdb.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	cmds := make([]*redis.SliceCmd, len(members))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range members {
			cmds[i] = pipe.HMGet(ctx, entryKey(id), fieldAvailable, fieldCountry, fieldGroup)
		}
		return nil
	})
	if err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}

	n := 0
	var stale []string
	for i, cmd := range cmds {
		v := cmd.Val()
		avail, _ := v[0].(string)
		e := Entry{}
		e.CountryCode, _ = v[1].(string)
		e.BloodGroup, _ = v[2].(string)
		switch {
		case e.CountryCode == "" || !e.indexedIn(cc, bg):
			stale = append(stale, members[i])
		case avail == "1":
			n++
		}
	}
	s.prune(ctx, cc, bg, stale)
	return n, nil
}

func (s *RedisStore) Heartbeat(ctx context.Context, donorID string) error {
	ctx, cancel := s.op(ctx)
	defer cancel()

	ok, err := s.rdb.Expire(ctx, entryKey(donorID), s.ttl).Result()
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	if !ok {
		return ErrNotFound
	}
	err = s.rdb.HSet(ctx, entryKey(donorID), fieldUpdated, strconv.FormatInt(s.now().UnixMilli(), 10)).Err()
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, donorID, connID string) (bool, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()

	n, err := releaseScript.Run(ctx, s.rdb, []string{entryKey(donorID)}, connID, geoPrefix, donorID).Int()
	if err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

func encodeEntry(e Entry) map[string]any {
	avail := "0"
	if e.Available {
		avail = "1"
	}
	return map[string]any{
		fieldDonor:     e.DonorID,
		fieldLat:       strconv.FormatFloat(e.Location.Lat, 'f', -1, 64),
		fieldLon:       strconv.FormatFloat(e.Location.Lon, 'f', -1, 64),
		fieldGroup:     e.BloodGroup,
		fieldCountry:   e.CountryCode,
		fieldAvailable: avail,
		fieldConn:      e.ConnID,
		fieldUpdated:   strconv.FormatInt(e.UpdatedAt.UnixMilli(), 10),
	}
}

func decodeEntry(f map[string]string) Entry {
	lat, _ := strconv.ParseFloat(f[fieldLat], 64)
	lon, _ := strconv.ParseFloat(f[fieldLon], 64)
	ms, _ := strconv.ParseInt(f[fieldUpdated], 10, 64)
	return Entry{
		DonorID:     f[fieldDonor],
		Location:    geo.Point{Lat: lat, Lon: lon},
		BloodGroup:  f[fieldGroup],
		CountryCode: f[fieldCountry],
		Available:   f[fieldAvailable] == "1",
		ConnID:      f[fieldConn],
		UpdatedAt:   time.UnixMilli(ms).UTC(),
	}
}
