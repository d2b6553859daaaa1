// Package processor orchestrates the full lifecycle of one invoice file:
// validate, encode, call the model, parse, persist the extracted JSON,
// relocate the source, and record the terminal result. Every per-file
// failure is caught here and becomes a failed ProcessingResult; nothing
// propagates to the coordinator or the HTTP boundary as a fault.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/invoiceworks/invoice-agent/internal/ai"
	"github.com/invoiceworks/invoice-agent/internal/archive"
	"github.com/invoiceworks/invoice-agent/internal/invoice"
	"github.com/invoiceworks/invoice-agent/internal/logging"
)

// Config holds the processor's per-file limits and paths.
type Config struct {
	OutputDir        string
	SupportedFormats []string
	MaxFileSize      int64         // bytes; a file of exactly this size passes
	ModelTimeout     time.Duration // inner bound on the raw model call
	FileTimeout      time.Duration // outer bound on the whole pipeline, >= ModelTimeout
	MaxImageDim      int
	Retry            ai.RetryPolicy
}

type Processor struct {
	cfg     Config
	model   ai.Model
	store   *invoice.Store
	archive archive.Repository // optional write-behind; nil disables
	logger  *slog.Logger
}

func New(cfg Config, model ai.Model, store *invoice.Store, arch archive.Repository, logger *slog.Logger) *Processor {
	if cfg.MaxImageDim <= 0 {
		cfg.MaxImageDim = ai.MaxImageDimension
	}
	return &Processor{cfg: cfg, model: model, store: store, archive: arch, logger: logger}
}

// Store exposes the result store for boundary adapters.
func (p *Processor) Store() *invoice.Store {
	return p.store
}

// ProcessFile runs the pipeline for one file. When a prior result for the
// same original filename already succeeded and force is false, the cached
// result is returned without touching the model. A file that disappeared
// between listing and opening returns nil: someone else handled it.
func (p *Processor) ProcessFile(ctx context.Context, path string, force bool) *invoice.ProcessingResult {
	filename := filepath.Base(path)

	if !force {
		if prior := p.store.LatestByFilename(filename); prior != nil && prior.Status == invoice.StatusSuccess {
			p.logger.Info("file already processed successfully", "filename", filename, "file_id", prior.FileID)
			return prior
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			p.logger.Debug("file vanished before processing, skipping", "path", path)
			return nil
		}
		// Unreadable but present: record the failure.
		info = nil
	}

	now := time.Now().UTC()
	result := &invoice.ProcessingResult{
		FileID:           invoice.NewFileID(filename),
		OriginalFilename: filename,
		Status:           invoice.StatusProcessing,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	p.store.Put(result)

	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.FileTimeout)
	defer cancel()

	log := logging.WithFileID(p.logger, result.FileID)

	data, err := p.runPipeline(ctx, path, info)
	elapsed := time.Since(start).Seconds()
	result.ProcessingTime = &elapsed

	if err != nil {
		result.Status = invoice.StatusFailed
		result.ErrorMessage = err.Error()
		p.store.MarkUpdated(result)
		p.archiveResult(result)
		log.Error("failed to process file", "filename", filename, "error", err)
		return result
	}

	result.Status = invoice.StatusSuccess
	result.InvoiceData = data.invoiceData
	result.ProcessedFilename = data.artifactName
	p.store.MarkUpdated(result)
	p.archiveResult(result)

	log.Info("successfully processed file",
		"filename", filename,
		"artifact", data.artifactName,
		"duration", invoice.FormatDuration(elapsed),
	)
	return result
}

type pipelineOutput struct {
	invoiceData  *invoice.InvoiceData
	artifactName string
}

func (p *Processor) runPipeline(ctx context.Context, path string, info os.FileInfo) (*pipelineOutput, error) {
	filename := filepath.Base(path)

	if !invoice.IsSupportedFormat(filename, p.cfg.SupportedFormats) {
		return nil, fmt.Errorf("%w: unsupported format %q", invoice.ErrValidation, invoice.FileExtension(filename))
	}

	if info == nil {
		var err error
		if info, err = os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %v", invoice.ErrFileSystem, err)
		}
	}
	if info.Size() > p.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: file size (%.2fMB) exceeds maximum allowed size (%.2fMB)",
			invoice.ErrSizeExceeded,
			float64(info.Size())/(1024*1024),
			float64(p.cfg.MaxFileSize)/(1024*1024))
	}

	payload, err := ai.EncodeForModel(path, p.cfg.MaxImageDim)
	if err != nil {
		return nil, err
	}

	text, err := p.callModel(ctx, payload)
	if err != nil {
		return nil, err
	}

	data, err := invoice.ParseModelResponse(text)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: file processing exceeded %s", invoice.ErrProcessingTimeout, p.cfg.FileTimeout)
	}

	// One timestamp for both output files of this run.
	suffix := time.Now().UTC().Format(invoice.TimestampLayout)

	artifactName, err := p.persistArtifact(filename, suffix, data)
	if err != nil {
		return nil, err
	}

	if err := p.relocateSource(path, filename, suffix); err != nil {
		return nil, err
	}

	return &pipelineOutput{invoiceData: data, artifactName: artifactName}, nil
}

func (p *Processor) callModel(ctx context.Context, payload ai.Payload) (string, error) {
	var text string
	err := p.cfg.Retry.Do(ctx, func() error {
		mctx, cancel := context.WithTimeout(ctx, p.cfg.ModelTimeout)
		defer cancel()

		out, err := p.model.Extract(mctx, payload, ai.ExtractionPrompt)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				// The inner context inherits the per-file deadline;
				// attribute the expiry to the bound that actually fired.
				if ctx.Err() != nil {
					return fmt.Errorf("%w: file processing exceeded %s", invoice.ErrProcessingTimeout, p.cfg.FileTimeout)
				}
				return fmt.Errorf("%w: model call exceeded %s", invoice.ErrProcessingTimeout, p.cfg.ModelTimeout)
			}
			return err
		}
		text = out
		return nil
	})
	return text, err
}

// persistArtifact writes the extracted record as an indented JSON file
// named {stem}_{timestamp}.json, counter-suffixed on collision.
func (p *Processor) persistArtifact(filename, suffix string, data *invoice.InvoiceData) (string, error) {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))

	target := invoice.EnsureUniqueFilename(
		filepath.Join(p.cfg.OutputDir, fmt.Sprintf("%s_%s.json", stem, suffix)))

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: cannot serialise invoice data: %v", invoice.ErrFileSystem, err)
	}
	if err := os.WriteFile(target, raw, 0644); err != nil {
		return "", fmt.Errorf("%w: cannot write artifact: %v", invoice.ErrFileSystem, err)
	}
	return filepath.Base(target), nil
}

// relocateSource moves the original file into the output folder under a
// timestamped name. Rename is tried first; across filesystems it falls back
// to copy-then-delete, which is not transactional: a crash between the two
// steps leaves the file in both folders.
func (p *Processor) relocateSource(path, filename, suffix string) error {
	target := invoice.EnsureUniqueFilename(
		filepath.Join(p.cfg.OutputDir, invoice.TimestampedFilename(filename, suffix)))

	if err := os.Rename(path, target); err == nil {
		return nil
	}

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: cannot open source for relocation: %v", invoice.ErrFileSystem, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("%w: cannot create relocation target: %v", invoice.ErrFileSystem, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("%w: relocation copy failed: %v", invoice.ErrFileSystem, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("%w: relocation flush failed: %v", invoice.ErrFileSystem, err)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: cannot remove source after copy: %v", invoice.ErrFileSystem, err)
	}
	return nil
}

func (p *Processor) archiveResult(r *invoice.ProcessingResult) {
	if p.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.archive.Save(ctx, r); err != nil {
		p.logger.Warn("failed to archive result", "file_id", r.FileID, "error", err)
	}
}
