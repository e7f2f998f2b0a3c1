// Package ingest turns an uploaded webfont kit archive into a FontKit record:
// it extracts the archive into its own directory, drops everything that is
// not a stylesheet or font, rewrites and sanitises the kit CSS and parses its
// @font-face rules.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hlstype/internal/css"
	"hlstype/internal/fontkit"
	"hlstype/internal/sanitize"
	"hlstype/internal/storage"
)

// Limits bound the work one archive may cause.
type Limits struct {
	MaxCSSSize      int64
	MaxEntries      int
	MaxUncompressed int64
}

var DefaultLimits = Limits{
	MaxCSSSize:      1 << 20,
	MaxEntries:      100,
	MaxUncompressed: 64 << 20,
}

var reFontFaceOpen = regexp.MustCompile(`(?i)@font-face\s*\{`)

// Pipeline ingests archives into kit directories below root, which is
// published at baseURL.
type Pipeline struct {
	fs      *storage.FileSystem
	root    string
	baseURL string
	limits  Limits
	log     *zap.Logger
	now     func() time.Time
	token   func() string
}

type Option func(*Pipeline)

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithTokens replaces the random part of kit ids.
func WithTokens(token func() string) Option {
	return func(p *Pipeline) { p.token = token }
}

func New(fsys *storage.FileSystem, root, baseURL string, limits Limits, log *zap.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{
		fs:      fsys,
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		limits:  limits,
		log:     log.Named("ingest"),
		now:     time.Now,
		token:   randomToken,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Ingest processes archive and returns the kit record. Nothing is persisted
// besides the kit directory; on any failure, including ctx expiring, that
// directory is removed before returning.
func (p *Pipeline) Ingest(ctx context.Context, archive []byte, filename, kitName string) (kit fontkit.FontKit, err error) {
	id := "kit-" + strconv.FormatInt(p.now().Unix(), 10) + "-" + p.token()
	dir := filepath.Join(p.root, id)
	kitURL := p.baseURL + "/" + id
	log := p.log.With(zap.String("kit", id), zap.String("file", filename))

	defer func() {
		if err == nil {
			return
		}
		ie, ok := AsError(err)
		if !ok {
			ie = newError(KindUnclassified, err)
			err = ie
		}
		log.Warn("font kit ingestion failed", zap.String("code", ie.Code()), zap.Error(ie.Err))
		if rmErr := p.fs.RemoveAll(dir); rmErr != nil {
			log.Error("failed to remove kit directory", zap.Error(rmErr))
		}
	}()

	if err := ctx.Err(); err != nil {
		return kit, newError(KindMkdir, err)
	}
	if err := p.fs.MkdirAll(dir, 0755); err != nil {
		return kit, newError(KindMkdir, err)
	}

	if err := p.extract(ctx, archive, dir); err != nil {
		return kit, newError(KindUnzip, err)
	}
	if err := p.filterTree(dir); err != nil {
		return kit, newError(KindUnzip, err)
	}

	cssPath, err := p.findCSS(dir)
	if err != nil {
		return kit, newError(KindNoCSS, err)
	}
	if cssPath == "" {
		return kit, newError(KindNoCSS, errors.New("archive holds no stylesheet"))
	}

	content, err := p.readCSS(ctx, cssPath)
	if err != nil {
		return kit, err
	}

	rel, err := filepath.Rel(dir, filepath.Dir(cssPath))
	if err != nil {
		return kit, newError(KindInvalidCSS, err)
	}
	cssBase := kitURL
	if rel != "." {
		cssBase += "/" + filepath.ToSlash(rel)
	}

	content = css.Sanitize(css.RewriteURLs(content, cssBase))
	faces := css.ParseFontFaces(content)
	if len(faces) == 0 {
		return kit, newError(KindNoFontFaces, errors.New("stylesheet declares no usable @font-face rule"))
	}

	count, err := p.countFonts(dir)
	if err != nil {
		log.Warn("failed to count font files", zap.Error(err))
	}

	kit = fontkit.FontKit{
		ID:           sanitize.Key(id),
		Name:         sanitize.Text(kitName),
		CSSContent:   content,
		FontFaces:    faces,
		UploadPath:   dir,
		UploadURL:    kitURL,
		FileCount:    count,
		UploadedDate: p.now().Format(fontkit.DateLayout),
	}
	log.Info("font kit ingested", zap.Int("faces", len(faces)), zap.Int("files", count))
	return kit, nil
}

// findCSS returns the first stylesheet in natural traversal order, or "".
func (p *Pipeline) findCSS(dir string) (string, error) {
	var found string
	err := p.fs.WalkFiles(dir, func(file string, _ os.FileInfo) error {
		if extOf(file) == "css" {
			found = file
			return fs.SkipAll
		}
		return nil
	})
	return found, err
}

func (p *Pipeline) readCSS(ctx context.Context, cssPath string) (string, error) {
	info, err := p.fs.Lstat(cssPath)
	if err != nil {
		return "", newError(KindInvalidCSS, err)
	}
	if info.Mode()&os.ModeSymlink != 0 || !info.Mode().IsRegular() {
		return "", newError(KindInvalidCSS, fmt.Errorf("%s is not a regular file", cssPath))
	}
	if p.limits.MaxCSSSize > 0 && info.Size() > p.limits.MaxCSSSize {
		return "", newError(KindCSSTooLarge, fmt.Errorf("stylesheet is %d bytes", info.Size()))
	}

	if err := ctx.Err(); err != nil {
		return "", newError(KindCSSRead, err)
	}
	data, err := p.fs.ReadFile(cssPath)
	if err != nil {
		return "", newError(KindCSSRead, err)
	}

	content := string(data)
	if !reFontFaceOpen.MatchString(content) {
		return "", newError(KindInvalidCSS, errors.New("stylesheet has no @font-face block")).
			withMessage("CSS file does not contain @font-face declarations")
	}
	return content, nil
}

func (p *Pipeline) countFonts(dir string) (int, error) {
	n := 0
	err := p.fs.WalkFiles(dir, func(file string, info os.FileInfo) error {
		if info.Mode().IsRegular() && fontExt[extOf(file)] {
			n++
		}
		return nil
	})
	return n, err
}
