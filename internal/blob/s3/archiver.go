package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

const (
	contentTypeJSONL = "application/x-ndjson"
	watermarkPath    = "decisions/_watermark"
)

// DecisionSource is the part of the journal the archiver reads.
type DecisionSource interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]domain.Decision, error)
}

// Archiver copies the decision journal to object storage as JSONL. The end
// of the last archived window is kept in the bucket itself, so successive
// runs upload disjoint windows. Rows are never deleted from the journal.
type Archiver struct {
	source DecisionSource
	writer domain.BlobWriter
	reader domain.BlobReader
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(source DecisionSource, writer domain.BlobWriter, reader domain.BlobReader, audit domain.AuditStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		source: source,
		writer: writer,
		reader: reader,
		audit:  audit,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveDecisions uploads every decision created in [watermark, before),
// one object per UTC day, then moves the watermark to before. It returns the
// number of decisions uploaded.
func (a *Archiver) ArchiveDecisions(ctx context.Context, before time.Time) (int64, error) {
	before = before.UTC()
	from, err := a.watermark(ctx)
	if err != nil {
		return 0, err
	}
	if !before.After(from) {
		return 0, nil
	}

	decisions, err := a.source.ListBetween(ctx, from, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive decisions query: %w", err)
	}

	days := groupByDay(decisions)
	keys := make([]string, 0, len(days))
	for day := range days {
		keys = append(keys, day)
	}
	sort.Strings(keys)

	var count int64
	for _, day := range keys {
		buf, err := marshalJSONL(days[day])
		if err != nil {
			return count, fmt.Errorf("s3blob: archive decisions marshal: %w", err)
		}
		path := archivePath(day, from, before)
		if err := a.put(ctx, path, buf); err != nil {
			return count, fmt.Errorf("s3blob: archive decisions upload: %w", err)
		}
		count += int64(len(days[day]))
	}

	mark := []byte(before.Format(time.RFC3339Nano))
	if err := a.writer.Put(ctx, watermarkPath, bytes.NewReader(mark), "text/plain"); err != nil {
		return count, fmt.Errorf("s3blob: archive decisions watermark: %w", err)
	}

	a.logger.InfoContext(ctx, "decisions archived",
		slog.Int64("count", count),
		slog.Time("from", from),
		slog.Time("to", before),
	)
	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.decisions", map[string]any{
			"count": count,
			"from":  from.Format(time.RFC3339),
			"to":    before.Format(time.RFC3339),
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive decisions audit log: %w", err)
		}
	}
	return count, nil
}

// watermark returns the end of the last archived window, or the zero Unix
// time before the first run.
func (a *Archiver) watermark(ctx context.Context) (time.Time, error) {
	rc, err := a.reader.Get(ctx, watermarkPath)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return time.Unix(0, 0).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("s3blob: read watermark: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return time.Time{}, fmt.Errorf("s3blob: read watermark: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(raw)))
	if err != nil {
		return time.Time{}, fmt.Errorf("s3blob: parse watermark %q: %w", raw, err)
	}
	return ts.UTC(), nil
}

func (a *Archiver) put(ctx context.Context, path string, buf []byte) error {
	if int64(len(buf)) > minPartSize {
		return a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), contentTypeJSONL)
}

func groupByDay(decisions []domain.Decision) map[string][]domain.Decision {
	days := make(map[string][]domain.Decision)
	for _, d := range decisions {
		day := d.CreatedAt.UTC().Format("2006/01/02")
		days[day] = append(days[day], d)
	}
	return days
}

// archivePath names one day's slice of a window:
//
//	decisions/2025/09/01/20250901T093000Z-20250901T100000Z.jsonl
func archivePath(day string, from, to time.Time) string {
	const stamp = "20060102T150405Z"
	return fmt.Sprintf("decisions/%s/%s-%s.jsonl", day, from.UTC().Format(stamp), to.UTC().Format(stamp))
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
