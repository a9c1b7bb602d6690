package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"img2webp/common"
	"img2webp/config"
	"img2webp/docx"
	"img2webp/pattern"
	"img2webp/render"
	"img2webp/rewrite"
	"img2webp/sizes"
	"img2webp/state"
)

// Stage of document processing reported with progress.
type Stage string

const (
	StageStarted   Stage = "started"
	StageExtracted Stage = "extracted"
	StageHTML      Stage = "html"
	StageImage     Stage = "image"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
	StageFinished  Stage = "finished"
)

// Progress is a message about batch state. Consumers never share counters
// with the batch, everything they need is in the message.
type Progress struct {
	Stage    Stage
	Document string
	Index    int // 1-based document index
	Total    int
	Token    string
	Err      error
}

// Summary of a batch run.
type Summary struct {
	RunID     string
	Elapsed   time.Duration
	Documents int
	// documents which could not be processed at all
	FailedDocuments []string
	Tokens          []docx.Token
	Results         []render.Result
	Missing         []MissingImage
	// every recorded per item failure
	Failures error
}

// Converted returns number of newly produced files.
func (s *Summary) Converted() int {
	n := 0
	for _, r := range s.Results {
		if r.State == render.StateConverted {
			n++
		}
	}
	return n
}

// DocumentFormatFailures returns number of documents which were unreadable.
func (s *Summary) DocumentFormatFailures() int {
	n := 0
	for _, err := range multierr.Errors(s.Failures) {
		if errors.Is(err, common.ErrDocumentFormat) {
			n++
		}
	}
	return n
}

type pipeline struct {
	env       *state.LocalEnv
	dirs      config.DirectoriesConfig
	extractor *docx.Extractor
	resolver  *sizes.Resolver
	renderer  *render.Renderer
	rewriter  *rewrite.Rewriter
	progress  chan<- Progress
	log       *zap.Logger

	configErrors error
}

// Batch processes all documents found in dirs.Documents sequentially. Returned
// error signals catastrophic failure (unreadable directories, no documents,
// unusable configuration), per item failures are recorded in Summary. When
// progress is not nil messages are sent to it, Batch never closes it.
func Batch(ctx context.Context, env *state.LocalEnv, dirs config.DirectoriesConfig, progress chan<- Progress) (*Summary, error) {
	start := time.Now()
	log := env.Log.Named("convert")

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("unable to generate run id: %w", err)
	}
	summary := &Summary{RunID: id.String()}

	docs, err := docx.Discover(dirs.Documents)
	if err != nil {
		return nil, fmt.Errorf("unable to read documents directory: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents found in %s", dirs.Documents)
	}
	if fi, err := os.Stat(dirs.Images); err != nil {
		return nil, fmt.Errorf("unable to read images directory: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("images path %s is not a directory", dirs.Images)
	}
	if err := os.MkdirAll(dirs.Output, 0755); err != nil {
		return nil, fmt.Errorf("unable to create output directory: %w", err)
	}

	p, err := newPipeline(env, dirs, progress, log)
	if err != nil {
		return nil, err
	}
	summary.Failures = p.configErrors

	log.Info("Batch starting", zap.String("run_id", summary.RunID), zap.Int("documents", len(docs)),
		zap.String("images", dirs.Images), zap.String("output", dirs.Output))

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		p.send(ctx, Progress{Stage: StageStarted, Document: filepath.Base(doc), Index: i + 1, Total: len(docs)})
		if err := p.processDocument(ctx, doc, summary); err != nil {
			summary.FailedDocuments = append(summary.FailedDocuments, filepath.Base(doc))
			summary.Failures = multierr.Append(summary.Failures, err)
			log.Error("Unable to process document", zap.String("document", filepath.Base(doc)), zap.Error(err))
			p.send(ctx, Progress{Stage: StageFailed, Document: filepath.Base(doc), Index: i + 1, Total: len(docs), Err: err})
			continue
		}
		p.send(ctx, Progress{Stage: StageDone, Document: filepath.Base(doc), Index: i + 1, Total: len(docs)})
	}
	summary.Documents = len(docs)

	if err := p.writeManifests(summary); err != nil {
		return summary, err
	}
	summary.Elapsed = time.Since(start)
	p.send(ctx, Progress{Stage: StageFinished, Index: len(docs), Total: len(docs)})

	log.Info("Batch completed",
		zap.String("run_id", summary.RunID),
		zap.Duration("elapsed", summary.Elapsed),
		zap.Int("documents", summary.Documents),
		zap.Int("failed documents", len(summary.FailedDocuments)),
		zap.Int("images", len(summary.Tokens)),
		zap.Int("converted", summary.Converted()),
		zap.Int("existing", len(summary.Results)-summary.Converted()),
		zap.Int("missing", len(summary.Missing)),
		zap.Int("failures", len(multierr.Errors(summary.Failures))))
	return summary, nil
}

func newPipeline(env *state.LocalEnv, dirs config.DirectoriesConfig, progress chan<- Progress, log *zap.Logger) (*pipeline, error) {
	if env.Encoder == nil {
		return nil, errors.New("no image encoder configured")
	}
	m, err := pattern.NewFromConfig(&env.Cfg.Patterns)
	if err != nil {
		return nil, common.NewError(common.ErrorKindConfiguration, err)
	}
	resolver, err := sizes.New(env.Cfg)
	if err != nil {
		// only codes in error are unusable
		log.Warn("Sizes configuration has problems", zap.Error(err))
	}
	loc := render.NewLocator(dirs.Images, env.Cfg.Images.Extensions)
	return &pipeline{
		env:          env,
		dirs:         dirs,
		extractor:    docx.NewExtractor(m, &env.Cfg.Documents, loc.Exists, log),
		resolver:     resolver,
		renderer:     render.New(loc, env.Encoder, &env.Cfg.Images, log),
		rewriter:     rewrite.New(&env.Cfg.HTML, resolver, log),
		progress:     progress,
		configErrors: err,
		log:          log,
	}, nil
}

func (p *pipeline) send(ctx context.Context, msg Progress) {
	if p.progress == nil {
		return
	}
	select {
	case p.progress <- msg:
	case <-ctx.Done():
	}
}

// processDocument runs full pipeline for a single document. Only failures
// making the whole document unusable are returned, everything else is
// recorded in summary.
func (p *pipeline) processDocument(ctx context.Context, path string, s *Summary) (rerr error) {
	name := filepath.Base(path)
	stem := documentStem(path)
	outDir := filepath.Join(p.dirs.Output, outputDirName(stem, p.env.Cfg.Output.TransliterateNames))

	p.log.Info("Document processing starting", zap.String("document", name), zap.String("to", outDir))
	defer func(start time.Time) {
		// NOTE: some of golang graphic processing libraries are not mature
		// enough, if one document breaks we do not want to stop.
		if r := recover(); r != nil {
			p.log.Error("Document processing ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("document", name), zap.ByteString("stack", debug.Stack()))
			rerr = common.NewError(common.ErrorKindImageConversion, fmt.Errorf("processing panic: %v", r)).WithDocument(name)
		} else {
			p.log.Info("Document processing completed", zap.Duration("elapsed", time.Since(start)), zap.String("document", name))
		}
	}(time.Now())

	tokens, err := p.extractor.Extract(path, outDir)
	if err != nil {
		return err
	}
	s.Tokens = append(s.Tokens, tokens...)
	if p.env.Rpt != nil {
		p.env.Rpt.StoreData("tables/"+stem+".txt", []byte(docx.Dump(name, tokens)))
	}
	p.send(ctx, Progress{Stage: StageExtracted, Document: name})

	if p.env.Cfg.HTML.Enable {
		if err := p.processHTML(name, stem, outDir, tokens); err != nil {
			s.Failures = multierr.Append(s.Failures, err)
			p.log.Warn("HTML left unchanged", zap.String("document", name), zap.Error(err))
		}
		p.send(ctx, Progress{Stage: StageHTML, Document: name})
	}

	for _, tok := range tokens {
		if err := ctx.Err(); err != nil {
			return err
		}
		list, err := p.resolver.Sizes(tok.Code)
		if err != nil {
			err = withContext(err, tok)
			s.Failures = multierr.Append(s.Failures, err)
			p.log.Warn("Image skipped", zap.String("document", name), zap.String("code", tok.Code), zap.String("token", tok.Name), zap.Error(err))
			continue
		}
		results, err := p.renderer.Render(ctx, tok, list)
		s.Results = append(s.Results, results...)
		for _, e := range multierr.Errors(err) {
			if errors.Is(e, context.Canceled) || errors.Is(e, context.DeadlineExceeded) {
				return e
			}
			if errors.Is(e, render.ErrSourceNotFound) {
				s.Missing = append(s.Missing, MissingImage{Document: name, Name: tok.Name})
				p.log.Warn("Source image is missing", zap.String("document", name), zap.String("code", tok.Code), zap.String("token", tok.Name))
			} else {
				p.log.Error("Image conversion failed", zap.String("document", name), zap.String("code", tok.Code), zap.String("token", tok.Name), zap.Error(e))
			}
			s.Failures = multierr.Append(s.Failures, e)
		}
		p.send(ctx, Progress{Stage: StageImage, Document: name, Token: tok.Name, Err: err})
	}
	return nil
}

func withContext(err error, tok docx.Token) error {
	var ce *common.Error
	if errors.As(err, &ce) {
		return ce.WithDocument(tok.Document).WithToken(tok.Name)
	}
	return err
}

func (p *pipeline) processHTML(name, stem, outDir string, tokens []docx.Token) error {
	src, dst := htmlPaths(p.dirs.HTML, stem, outDir, p.env.Cfg.HTML.OverwriteSource)
	data, err := os.ReadFile(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if _, err := os.Stat(p.dirs.HTML); err != nil {
				p.log.Debug("No HTML directory, nothing to rewrite", zap.String("document", name), zap.String("dir", p.dirs.HTML))
				return nil
			}
			return common.NewError(common.ErrorKindHtmlProcessing, fmt.Errorf("no matching HTML file %s", filepath.Base(src))).WithDocument(name)
		}
		return common.NewError(common.ErrorKindHtmlProcessing, err).WithDocument(name)
	}

	out, repls, err := p.rewriter.Rewrite(name, data, tokens)
	if err != nil {
		return err
	}
	// snapshot before the source may be overwritten
	if err := p.env.Rpt.StoreCopy("html/"+filepath.Base(src), src); err != nil {
		p.log.Warn("Unable to store HTML in the report", zap.String("document", name), zap.Error(err))
	}
	// unchanged files are not touched, watcher would pick them up otherwise
	if prev, err := os.ReadFile(dst); err == nil && bytes.Equal(prev, out) {
		p.log.Debug("HTML is up to date", zap.String("document", name), zap.String("path", dst))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return common.NewError(common.ErrorKindHtmlProcessing, err).WithDocument(name)
	}
	if err := os.WriteFile(dst, out, 0644); err != nil {
		return common.NewError(common.ErrorKindHtmlProcessing, err).WithDocument(name)
	}
	p.log.Info("HTML rewritten", zap.String("document", name), zap.String("to", dst), zap.Int("replacements", len(repls)))
	return nil
}
