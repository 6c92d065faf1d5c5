package speech

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/observability/telemetry"
	"github.com/seu-repo/mirror-voice/internal/ports"
)

const cacheKeyPrefix = "tts:"

// CachedSynthesizer memoizes synthesized audio keyed by voice and text.
// Cache errors never fail a synthesis.
type CachedSynthesizer struct {
	next  ports.Synthesizer
	cache ports.Cache
	ttl   time.Duration
	voice string
	log   *zap.Logger
}

// NewCachedSynthesizer wraps next. voice distinguishes entries produced
// with different voice settings.
func NewCachedSynthesizer(next ports.Synthesizer, cache ports.Cache, ttl time.Duration, voice string, log *zap.Logger) *CachedSynthesizer {
	return &CachedSynthesizer{
		next:  next,
		cache: cache,
		ttl:   ttl,
		voice: voice,
		log:   log,
	}
}

func (s *CachedSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	key := s.key(text)

	if cached, err := s.cache.Get(ctx, key); err == nil && cached != "" {
		if audio, err := base64.StdEncoding.DecodeString(cached); err == nil {
			telemetry.TTSCacheHitsTotal.WithLabelValues("hit").Inc()
			return audio, nil
		}
		s.log.Warn("Discarding corrupt TTS cache entry", zap.String("key", key))
		_ = s.cache.Delete(ctx, key)
	}
	telemetry.TTSCacheHitsTotal.WithLabelValues("miss").Inc()

	audio, err := s.next.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, base64.StdEncoding.EncodeToString(audio), s.ttl); err != nil {
		s.log.Warn("Failed to cache synthesized audio", zap.String("key", key), zap.Error(err))
	}
	return audio, nil
}

func (s *CachedSynthesizer) key(text string) string {
	sum := sha256.Sum256([]byte(s.voice + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
