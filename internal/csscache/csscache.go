// Package csscache serves the combined font kit CSS for each rendering
// context and caches the per-page detection results it depends on.
package csscache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"hlstype/internal/css"
	"hlstype/internal/fontkit"
	"hlstype/internal/metrics"
	"hlstype/internal/transient"
)

// Context selects which kits a combined stylesheet includes.
type Context string

const (
	Admin    Context = "admin"
	Editor   Context = "editor"
	Frontend Context = "frontend"
)

// ParseContext maps a route parameter onto a Context.
func ParseContext(s string) (Context, bool) {
	switch c := Context(s); c {
	case Admin, Editor, Frontend:
		return c, true
	}
	return "", false
}

// Cache keys and prefixes.
const (
	KeyAdminCSS       = "hls_admin_font_css"
	KeyEditorCSS      = "hls_editor_font_css"
	PrefixFrontendCSS = "hls_font_css_"
	PrefixHasStyled   = "hls_has_styled_"
	PrefixUsedFonts   = "hls_used_fonts_"
	PrefixEditorData  = "hls_editor_data_"
)

const (
	styledMarker = "hls-styled"
	fontAttr     = "data-font"
)

const (
	CombinedTTL  = 24 * time.Hour
	BootstrapTTL = time.Hour
	DetectionTTL = 12 * time.Hour
)

// KitLister is the read side of the font kit store.
type KitLister interface {
	List(ctx context.Context) ([]fontkit.FontKit, error)
}

type Cache struct {
	kits    KitLister
	cache   *transient.Cache
	group   singleflight.Group
	metrics *metrics.Metrics
	log     *zap.Logger

	// mu orders Invalidate against stores of rebuilt values; gen counts
	// invalidations so a build that started before one is never stored.
	mu  sync.Mutex
	gen uint64
}

func New(kits KitLister, cache *transient.Cache, m *metrics.Metrics, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{kits: kits, cache: cache, metrics: m, log: log.Named("csscache")}
}

func (c *Cache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// storeIfCurrent caches v under key unless an invalidation happened since
// gen was read.
func (c *Cache) storeIfCurrent(gen uint64, key string, v any, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.cache.Set(key, v, ttl)
	return true
}

// load runs build at most once per key and generation, caching the result
// when no invalidation raced it. The build is detached from the caller's
// cancellation because other callers may be waiting on it.
func (c *Cache) load(ctx context.Context, key string, ttl time.Duration, build func(context.Context) (any, error)) (any, error) {
	gen := c.generation()
	v, err, _ := c.group.Do(fmt.Sprintf("%s@%d", key, gen), func() (any, error) {
		if v, ok := c.cache.Get(key); ok {
			return v, nil
		}
		v, err := build(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if !c.storeIfCurrent(gen, key, v, ttl) {
			c.log.Debug("discarding value built before invalidation", zap.String("key", key))
		}
		return v, nil
	})
	return v, err
}

// FrontendKey is the cache key for the frontend stylesheet of families.
func FrontendKey(families []string) string {
	set := uniqueSorted(families)
	sum := sha256.Sum256([]byte(strings.Join(set, "\x00")))
	return PrefixFrontendCSS + hex.EncodeToString(sum[:])
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// CombinedCSS returns the minified stylesheet for c. Admin and editor get
// every kit; frontend only the kits declaring one of families, and nothing
// at all when families is empty.
func (c *Cache) CombinedCSS(ctx context.Context, cc Context, families []string) (string, error) {
	var key string
	switch cc {
	case Admin:
		key = KeyAdminCSS
	case Editor:
		key = KeyEditorCSS
	case Frontend:
		if len(families) == 0 {
			return "", nil
		}
		key = FrontendKey(families)
	default:
		return "", fmt.Errorf("unknown css context %q", cc)
	}

	if v, ok := c.cache.Get(key); ok {
		if s, ok := v.(string); ok {
			c.metrics.RecordCSSLookup(string(cc), true)
			return s, nil
		}
	}
	c.metrics.RecordCSSLookup(string(cc), false)

	v, err := c.load(ctx, key, CombinedTTL, func(ctx context.Context) (any, error) {
		return c.build(ctx, cc, families)
	})
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (c *Cache) build(ctx context.Context, cc Context, families []string) (string, error) {
	kits, err := c.kits.List(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list font kits: %w", err)
	}

	var wanted map[string]struct{}
	if cc == Frontend {
		wanted = make(map[string]struct{}, len(families))
		for _, f := range families {
			wanted[f] = struct{}{}
		}
	}

	parts := make([]string, 0, len(kits))
	for _, kit := range kits {
		if kit.CSSContent == "" {
			continue
		}
		if wanted != nil && !kit.HasFamily(wanted) {
			continue
		}
		parts = append(parts, css.Sanitize(kit.CSSContent))
	}
	combined := css.Minify(strings.Join(parts, "\n"))
	c.log.Debug("combined css rebuilt", zap.String("context", string(cc)), zap.Int("kits", len(parts)), zap.Int("bytes", len(combined)))
	return combined, nil
}

// PageInfo is what a page's content reveals about the fonts it needs.
type PageInfo struct {
	HasStyled    bool     `json:"has_styled"`
	UsedFamilies []string `json:"used_families"`
}

// detectionKey scopes a detection result to the page and the exact content
// it was computed from.
func detectionKey(prefix, pageID, content string) string {
	sum := sha256.Sum256([]byte(content))
	return prefix + pageID + "_" + hex.EncodeToString(sum[:8])
}

// DetectPage inspects content for styled headlines and the data-font
// families they reference. Both answers are cached per page and content.
func (c *Cache) DetectPage(pageID, content string) PageInfo {
	var info PageInfo
	gen := c.generation()

	styledKey := detectionKey(PrefixHasStyled, pageID, content)
	if v, ok := c.cache.Get(styledKey); ok {
		info.HasStyled, _ = v.(bool)
	} else {
		info.HasStyled = strings.Contains(content, styledMarker)
		c.storeIfCurrent(gen, styledKey, info.HasStyled, DetectionTTL)
	}

	fontsKey := detectionKey(PrefixUsedFonts, pageID, content)
	if v, ok := c.cache.Get(fontsKey); ok {
		info.UsedFamilies, _ = v.([]string)
	} else {
		info.UsedFamilies = c.usedFamilies(content)
		c.storeIfCurrent(gen, fontsKey, info.UsedFamilies, DetectionTTL)
	}
	if info.UsedFamilies == nil {
		info.UsedFamilies = []string{}
	}
	return info
}

func (c *Cache) usedFamilies(content string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		c.log.Warn("failed to parse page content", zap.Error(err))
		return []string{}
	}
	seen := map[string]struct{}{}
	families := []string{}
	doc.Find("[" + fontAttr + "]").Each(func(_ int, s *goquery.Selection) {
		family := strings.TrimSpace(s.AttrOr(fontAttr, ""))
		if family == "" {
			return
		}
		if _, ok := seen[family]; ok {
			return
		}
		seen[family] = struct{}{}
		families = append(families, family)
	})
	return families
}

// PageCSS returns the frontend stylesheet a page needs, "" when the page has
// no styled content.
func (c *Cache) PageCSS(ctx context.Context, pageID, content string) (string, PageInfo, error) {
	info := c.DetectPage(pageID, content)
	if !info.HasStyled {
		return "", info, nil
	}
	out, err := c.CombinedCSS(ctx, Frontend, info.UsedFamilies)
	return out, info, err
}

// EditorBootstrap returns the cached editor payload for user, building it
// with build on a miss.
func (c *Cache) EditorBootstrap(ctx context.Context, user string, build func(context.Context) (any, error)) (any, error) {
	key := PrefixEditorData + user
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	return c.load(ctx, key, BootstrapTTL, build)
}

// Invalidate drops every derived entry. It is registered as a change hook
// on the kit and preset stores.
func (c *Cache) Invalidate(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.cache.Delete(KeyAdminCSS)
	c.cache.Delete(KeyEditorCSS)
	n := 0
	for _, prefix := range []string{PrefixFrontendCSS, PrefixHasStyled, PrefixUsedFonts, PrefixEditorData} {
		n += c.cache.DeletePrefix(prefix)
	}
	c.metrics.RecordInvalidation()
	c.log.Debug("derived css invalidated", zap.Int("entries", n))
}
