package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-content/internal/index"
	"github.com/goliatone/go-content/internal/logging"
	"github.com/goliatone/go-content/internal/parser"
	"github.com/goliatone/go-content/internal/pathmeta"
	"github.com/goliatone/go-content/pkg/interfaces"
)

// SourceFile describes one discovered file. Signature is the hex SHA-256 of
// the file bytes and is filled in once the file has been read.
type SourceFile struct {
	Source    pathmeta.Source
	AbsPath   string
	RelPath   string
	Format    parser.Format
	Signature string
	ModTime   time.Time
}

// BuildReport summarises one Build run.
type BuildReport struct {
	Indexed  int
	Reused   int
	Ignored  int
	Skipped  int
	Removed  int
	Failed   []*parser.ParseError
	Version  uint64
	Duration time.Duration
}

// Options configures a Pipeline. Parsers and Paths default to the stock
// registry and transformer; Store is optional.
type Options struct {
	Sources []pathmeta.Source
	Parsers *parser.Registry
	Paths   *pathmeta.Transformer
	Index   *index.Index
	Store   interfaces.DocumentStore
	Workers int
	Logger  interfaces.Logger
}

// Pipeline feeds source files into the index. Build, ProcessFile and
// RemoveFile are serialized; queries keep reading the index meanwhile.
type Pipeline struct {
	sources []pathmeta.Source
	parsers *parser.Registry
	paths   *pathmeta.Transformer
	index   *index.Index
	store   interfaces.DocumentStore
	workers int
	logger  interfaces.Logger

	// fingerprint covers the parser and path settings; it is folded into
	// persisted checksums so a config change invalidates the mirror.
	fingerprint string

	mu sync.Mutex
}

// New validates opts and resolves every source root to an absolute path.
func New(opts Options) (*Pipeline, error) {
	if opts.Index == nil {
		return nil, ErrIndexRequired
	}
	if len(opts.Sources) == 0 {
		return nil, ErrSourcesRequired
	}

	p := &Pipeline{
		parsers: opts.Parsers,
		paths:   opts.Paths,
		index:   opts.Index,
		store:   opts.Store,
		workers: opts.Workers,
		logger:  logging.Ensure(opts.Logger),
	}
	if p.parsers == nil {
		p.parsers = parser.NewRegistry(parser.DefaultOptions())
	}
	if p.paths == nil {
		p.paths = pathmeta.New(nil, "", nil)
	}
	if p.workers <= 0 {
		p.workers = runtime.NumCPU()
	}
	p.fingerprint = p.parsers.Fingerprint() + "|" + p.paths.Fingerprint()

	for _, source := range opts.Sources {
		name := strings.TrimSpace(source.Name)
		if name == "" {
			return nil, fmt.Errorf("pipeline: source %q has no name", source.Root)
		}
		root, err := filepath.Abs(source.Root)
		if err != nil {
			return nil, fmt.Errorf("pipeline: resolve source %s: %w", name, err)
		}
		p.sources = append(p.sources, pathmeta.Source{Name: name, Root: filepath.Clean(root), Prefix: source.Prefix})
	}
	return p, nil
}

// Sources returns the resolved sources.
func (p *Pipeline) Sources() []pathmeta.Source {
	return slices.Clone(p.sources)
}

type outcome struct {
	id     string
	file   SourceFile
	doc    interfaces.Document
	reused bool
	err    *parser.ParseError
}

type walkResult struct {
	ignored int
	skipped int
	err     error
}

// Build walks every source, parses supported files on the worker pool and
// commits the result as one index version. Documents of the configured
// sources whose files are gone (or now fail to parse) are removed.
func (p *Pipeline) Build(ctx context.Context) (*BuildReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := time.Now()
	jobs := make(chan SourceFile)
	results := make(chan outcome)
	walked := make(chan walkResult, 1)

	go func() {
		defer close(jobs)
		walked <- p.walk(ctx, jobs)
	}()

	var wg sync.WaitGroup
	for range p.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range jobs {
				select {
				case results <- p.load(ctx, file):
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	report := &BuildReport{}
	seen := map[string]struct{}{}
	var (
		mutations []index.Mutation
		fresh     []outcome
	)
	for out := range results {
		if out.err != nil {
			report.Failed = append(report.Failed, out.err)
			logging.WithSourceContext(p.logger, out.file.Source.Name, out.file.RelPath).
				Warn("pipeline.file.failed", "error", out.err)
			continue
		}
		seen[out.id] = struct{}{}
		mutations = append(mutations, index.Upsert(out.doc))
		if out.reused {
			report.Reused++
			continue
		}
		report.Indexed++
		fresh = append(fresh, out)
	}

	walk := <-walked
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if walk.err != nil {
		return nil, walk.err
	}
	report.Ignored = walk.ignored
	report.Skipped = walk.skipped

	owned := map[string]struct{}{}
	for _, source := range p.sources {
		owned[source.Name] = struct{}{}
	}
	p.index.Snapshot().Each(func(doc interfaces.Document) bool {
		if _, ok := owned[doc.String(interfaces.KeySource)]; !ok {
			return true
		}
		if _, ok := seen[doc.ID()]; !ok {
			mutations = append(mutations, index.Remove(doc.ID()))
		}
		return true
	})

	changes, err := p.index.Apply(ctx, mutations)
	if err != nil {
		return nil, fmt.Errorf("pipeline: apply build: %w", err)
	}
	for _, change := range changes {
		if change.Type == interfaces.ChangeRemoved {
			report.Removed++
		}
	}

	for _, out := range fresh {
		p.persist(ctx, out.doc, out.file.Signature)
	}
	p.forget(ctx, changes)

	slices.SortFunc(report.Failed, func(a, b *parser.ParseError) int {
		return strings.Compare(a.Path, b.Path)
	})
	report.Version = p.index.Snapshot().Version()
	report.Duration = time.Since(started)

	p.logger.Info("pipeline.build.completed",
		"indexed", report.Indexed,
		"reused", report.Reused,
		"ignored", report.Ignored,
		"skipped", report.Skipped,
		"removed", report.Removed,
		"failed", len(report.Failed),
		"version", report.Version,
		"duration", report.Duration,
	)
	return report, nil
}

func (p *Pipeline) walk(ctx context.Context, jobs chan<- SourceFile) walkResult {
	var res walkResult
	for _, source := range p.sources {
		err := filepath.WalkDir(source.Root, func(abs string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			rel, err := filepath.Rel(source.Root, abs)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if rel == "." {
				return nil
			}

			if d.IsDir() {
				if p.paths.Ignored(source, rel) {
					return fs.SkipDir
				}
				return nil
			}
			if p.paths.Ignored(source, rel) {
				res.ignored++
				return nil
			}
			format := p.parsers.FormatOf(rel)
			if format == parser.FormatUnknown {
				res.skipped++
				return nil
			}

			file := SourceFile{Source: source, AbsPath: abs, RelPath: rel, Format: format}
			if info, err := d.Info(); err == nil {
				file.ModTime = info.ModTime()
			}
			select {
			case jobs <- file:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			res.err = fmt.Errorf("pipeline: walk source %s: %w", source.Name, err)
			return res
		}
	}
	return res
}

// load reads and parses one file, reusing the persisted document when the
// file signature is unchanged.
func (p *Pipeline) load(ctx context.Context, file SourceFile) outcome {
	meta := p.paths.Derive(file.Source, file.RelPath)
	out := outcome{id: meta.ID, file: file}

	raw, err := os.ReadFile(file.AbsPath)
	if err != nil {
		out.err = &parser.ParseError{Path: meta.File, Format: file.Format, Err: err}
		return out
	}
	out.file.Signature = Signature(raw)

	if doc, ok := p.reuse(ctx, meta.ID, out.file.Signature); ok {
		out.doc, out.reused = doc, true
		return out
	}

	out.doc, out.err = p.parse(meta, raw)
	return out
}

func (p *Pipeline) reuse(ctx context.Context, id, signature string) (interfaces.Document, bool) {
	if p.store == nil {
		return nil, false
	}
	stored, err := p.store.Lookup(ctx, id)
	if err != nil {
		if !errors.Is(err, interfaces.ErrStoredDocumentNotFound) {
			logging.WithDocument(p.logger, id).Debug("pipeline.store.lookup_failed", "error", err)
		}
		return nil, false
	}
	if stored == nil || stored.Document == nil || stored.Checksum != p.checksum(signature) {
		return nil, false
	}
	return stored.Document, true
}

func (p *Pipeline) parse(meta pathmeta.Meta, raw []byte) (interfaces.Document, *parser.ParseError) {
	result, err := p.parsers.Parse(raw, meta.File)
	if err != nil {
		var parseErr *parser.ParseError
		if errors.As(err, &parseErr) {
			return nil, parseErr
		}
		return nil, &parser.ParseError{Path: meta.File, Format: p.parsers.FormatOf(meta.File), Err: err}
	}
	return Normalize(result, meta), nil
}

// ProcessFile re-parses the file at abs and upserts the result. A file that
// no longer exists is removed; a file that fails to parse is removed from
// the index and the categorised parse error is returned.
func (p *Pipeline) ProcessFile(ctx context.Context, abs string) ([]index.Change, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	source, rel, ok := p.resolve(abs)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutsideSources, abs)
	}
	logger := logging.WithSourceContext(p.logger, source.Name, rel)
	if p.paths.Ignored(source, rel) || !p.parsers.Supports(rel) {
		logger.Trace("pipeline.file.skipped")
		return nil, nil
	}

	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return p.removeLocked(ctx, source, rel), nil
	}
	if err == nil && info.IsDir() {
		return nil, nil
	}

	meta := p.paths.Derive(source, rel)
	raw, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return p.removeLocked(ctx, source, rel), nil
		}
		return p.exclude(ctx, meta, &parser.ParseError{Path: meta.File, Format: p.parsers.FormatOf(rel), Err: err}, logger)
	}

	doc, parseErr := p.parse(meta, raw)
	if parseErr != nil {
		return p.exclude(ctx, meta, parseErr, logger)
	}

	change, err := p.index.Upsert(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("pipeline: upsert %s: %w", meta.ID, err)
	}
	if change.ID == "" {
		logger.Trace("pipeline.file.unchanged")
		return nil, nil
	}
	p.persist(ctx, doc, Signature(raw))
	logger.Debug("pipeline.file.indexed", "document_id", change.ID, "change", change.Type, "version", change.Version)
	return []index.Change{change}, nil
}

func (p *Pipeline) exclude(ctx context.Context, meta pathmeta.Meta, parseErr *parser.ParseError, logger interfaces.Logger) ([]index.Change, error) {
	logger.Warn("pipeline.file.failed", "error", parseErr)
	var changes []index.Change
	if change, ok := p.index.Remove(ctx, meta.ID); ok {
		changes = append(changes, change)
		p.forget(ctx, changes)
	}
	return changes, WrapParseError(parseErr)
}

// RemoveFile drops the document parsed from abs. When abs was a directory
// every document beneath it is removed in one version.
func (p *Pipeline) RemoveFile(ctx context.Context, abs string) ([]index.Change, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	source, rel, ok := p.resolve(abs)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutsideSources, abs)
	}
	return p.removeLocked(ctx, source, rel), nil
}

func (p *Pipeline) removeLocked(ctx context.Context, source pathmeta.Source, rel string) []index.Change {
	meta := p.paths.Derive(source, rel)

	var changes []index.Change
	if change, ok := p.index.Remove(ctx, meta.ID); ok {
		changes = append(changes, change)
	} else {
		prefix := meta.File + "/"
		changes = p.index.RemoveWhere(ctx, func(doc interfaces.Document) bool {
			return doc.String(interfaces.KeySource) == source.Name &&
				strings.HasPrefix(doc.String(interfaces.KeyFile), prefix)
		})
	}
	if len(changes) > 0 {
		logging.WithSourceContext(p.logger, source.Name, rel).Debug("pipeline.file.removed", "documents", len(changes))
	}
	p.forget(ctx, changes)
	return changes
}

// resolve maps abs to the source with the longest matching root.
func (p *Pipeline) resolve(abs string) (pathmeta.Source, string, bool) {
	abs, err := filepath.Abs(abs)
	if err != nil {
		return pathmeta.Source{}, "", false
	}

	var (
		best  pathmeta.Source
		found bool
	)
	for _, source := range p.sources {
		if abs != source.Root && !strings.HasPrefix(abs, source.Root+string(filepath.Separator)) {
			continue
		}
		if !found || len(source.Root) > len(best.Root) {
			best, found = source, true
		}
	}
	if !found {
		return pathmeta.Source{}, "", false
	}
	rel, err := filepath.Rel(best.Root, abs)
	if err != nil || rel == "." {
		return pathmeta.Source{}, "", false
	}
	return best, filepath.ToSlash(rel), true
}

func (p *Pipeline) persist(ctx context.Context, doc interfaces.Document, signature string) {
	if p.store == nil {
		return
	}
	record := &interfaces.StoredDocument{
		Key:       doc.ID(),
		Source:    doc.String(interfaces.KeySource),
		File:      doc.String(interfaces.KeyFile),
		Locale:    doc.Locale(),
		Checksum:  p.checksum(signature),
		Document:  doc,
		UpdatedAt: time.Now().UTC(),
	}
	if err := p.store.Save(ctx, record); err != nil {
		logging.WithDocument(p.logger, record.Key).Warn("pipeline.store.save_failed", "error", err)
	}
}

func (p *Pipeline) forget(ctx context.Context, changes []index.Change) {
	if p.store == nil {
		return
	}
	for _, change := range changes {
		if change.Type != interfaces.ChangeRemoved {
			continue
		}
		if err := p.store.Delete(ctx, change.ID); err != nil && !errors.Is(err, interfaces.ErrStoredDocumentNotFound) {
			logging.WithDocument(p.logger, change.ID).Warn("pipeline.store.delete_failed", "error", err)
		}
	}
}

// checksum binds a file signature to the current parser and path settings.
func (p *Pipeline) checksum(signature string) string {
	return Signature([]byte(p.fingerprint + "\n" + signature))
}

// Signature returns the hex SHA-256 of raw.
func Signature(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
