package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/cyrustjj/optiver-trading-challenge/internal/domain"
)

type memBlobs struct {
	objects map[string][]byte
}

func (m *memBlobs) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = b
	return nil
}

func (m *memBlobs) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return m.Put(ctx, path, data, contentTypeJSONL)
}

func (m *memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

// under returns the paths stored below prefix.
func (m *memBlobs) under(prefix string) []string {
	var out []string
	for p := range m.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}

type memJournal struct {
	decisions []domain.Decision
	calls     [][2]time.Time
}

func (j *memJournal) ListBetween(_ context.Context, from, to time.Time) ([]domain.Decision, error) {
	j.calls = append(j.calls, [2]time.Time{from, to})
	var out []domain.Decision
	for _, d := range j.decisions {
		if !d.CreatedAt.Before(from) && d.CreatedAt.Before(to) {
			out = append(out, d)
		}
	}
	return out, nil
}

type memAudit struct {
	events []string
}

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, string, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func countLines(t *testing.T, b []byte) int {
	t.Helper()
	n := 0
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		var d domain.Decision
		if err := json.Unmarshal(sc.Bytes(), &d); err != nil {
			t.Fatalf("line %d: %v", n, err)
		}
		n++
	}
	return n
}

func TestArchiveDecisions(t *testing.T) {
	ctx := context.Background()
	day1 := time.Date(2025, 9, 1, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2025, 9, 2, 0, 1, 0, 0, time.UTC)
	journal := &memJournal{decisions: []domain.Decision{
		{ID: "a", Pair: "ASML", Outcome: domain.OutcomeEmitted, CreatedAt: day1},
		{ID: "b", Pair: "SAP", Outcome: domain.OutcomeNoOpportunity, CreatedAt: day1.Add(time.Second)},
		{ID: "c", Pair: "ASML", Outcome: domain.OutcomeLimitBreach, CreatedAt: day2},
	}}
	blobs := &memBlobs{objects: map[string][]byte{}}
	audit := &memAudit{}
	a := NewArchiver(journal, blobs, blobs, audit, slog.New(slog.NewTextHandler(io.Discard, nil)))

	cutoff := time.Date(2025, 9, 2, 1, 0, 0, 0, time.UTC)
	n, err := a.ArchiveDecisions(ctx, cutoff)
	if err != nil {
		t.Fatalf("ArchiveDecisions: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}

	day1Objs := blobs.under("decisions/2025/09/01/")
	day2Objs := blobs.under("decisions/2025/09/02/")
	if len(day1Objs) != 1 || len(day2Objs) != 1 {
		t.Fatalf("objects = %v / %v", day1Objs, day2Objs)
	}
	if got := countLines(t, blobs.objects[day1Objs[0]]); got != 2 {
		t.Errorf("day 1 lines = %d, want 2", got)
	}
	if !strings.HasSuffix(day2Objs[0], "-20250902T010000Z.jsonl") {
		t.Errorf("path = %s", day2Objs[0])
	}
	if len(audit.events) != 1 || audit.events[0] != "archive.decisions" {
		t.Errorf("audit = %v", audit.events)
	}

	// The next run starts where this one ended.
	journal.decisions = append(journal.decisions, domain.Decision{ID: "d", CreatedAt: cutoff.Add(time.Minute)})
	n, err = a.ArchiveDecisions(ctx, cutoff.Add(time.Hour))
	if err != nil {
		t.Fatalf("second ArchiveDecisions: %v", err)
	}
	if n != 1 {
		t.Errorf("second count = %d, want 1", n)
	}
	if from := journal.calls[1][0]; !from.Equal(cutoff) {
		t.Errorf("second window from = %v, want %v", from, cutoff)
	}
}

func TestArchiveDecisionsNothingNew(t *testing.T) {
	ctx := context.Background()
	cutoff := time.Date(2025, 9, 2, 1, 0, 0, 0, time.UTC)
	blobs := &memBlobs{objects: map[string][]byte{
		watermarkPath: []byte(cutoff.Format(time.RFC3339Nano)),
	}}
	journal := &memJournal{}
	a := NewArchiver(journal, blobs, blobs, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := a.ArchiveDecisions(ctx, cutoff)
	if err != nil || n != 0 {
		t.Fatalf("ArchiveDecisions = %d, %v", n, err)
	}
	if len(journal.calls) != 0 {
		t.Errorf("journal queried for an empty window")
	}
}
