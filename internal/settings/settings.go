// Package settings stores the service wide settings map.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"hlstype/internal/options"
	"hlstype/internal/sanitize"
)

type kind int

const (
	kindAbsInt kind = iota
	kindList
)

var allowed = map[string]kind{
	"enable_frontend_css": kindAbsInt,
	"default_features":    kindList,
	"allowed_blocks":      kindList,
}

// Settings is the sanitised settings map.
type Settings map[string]any

// FrontendCSSEnabled reports the enable_frontend_css flag. It defaults to on.
func (s Settings) FrontendCSSEnabled() bool {
	v, ok := s["enable_frontend_css"]
	if !ok {
		return true
	}
	n, _ := v.(int)
	return n != 0
}

func (s Settings) List(key string) []string {
	v, _ := s[key].([]string)
	return v
}

// Sanitize keeps only the known keys, coercing each to its type. Unknown keys
// are dropped silently.
func Sanitize(raw map[string]any) Settings {
	out := Settings{}
	for key, value := range raw {
		k, ok := allowed[key]
		if !ok {
			continue
		}
		switch k {
		case kindAbsInt:
			out[key] = absInt(value)
		case kindList:
			out[key] = stringList(value)
		}
	}
	return out
}

func absInt(v any) int {
	var f float64
	switch n := v.(type) {
	case bool:
		if n {
			return 1
		}
		return 0
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		f, _ = n.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Abs(math.Trunc(f))
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return sanitize.Texts(l)
	case []any:
		in := make([]string, 0, len(l))
		for _, item := range l {
			switch s := item.(type) {
			case string:
				in = append(in, s)
			case float64, int, bool:
				in = append(in, fmt.Sprint(s))
			}
		}
		return sanitize.Texts(in)
	}
	return []string{}
}

type Store struct {
	opts options.Store
	log  *zap.Logger
}

func NewStore(opts options.Store, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{opts: opts, log: log.Named("settings")}
}

func (s *Store) Get(ctx context.Context) (Settings, error) {
	raw, err := options.GetJSON(ctx, s.opts, options.KeyGlobalSettings, map[string]any{})
	if err != nil {
		return nil, err
	}
	return Sanitize(raw), nil
}

// Save replaces the stored map with the sanitised raw values.
func (s *Store) Save(ctx context.Context, raw map[string]any) (Settings, error) {
	clean := Sanitize(raw)
	_, err := options.UpdateJSON(ctx, s.opts, options.KeyGlobalSettings, map[string]any{}, func(map[string]any) (map[string]any, error) {
		return clean, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	s.log.Info("settings saved", zap.Int("keys", len(clean)))
	return clean, nil
}
