package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/menta2k/cardsynth/pkg/annotation"
	"github.com/menta2k/cardsynth/pkg/background"
	"github.com/menta2k/cardsynth/pkg/catalog"
	"github.com/menta2k/cardsynth/pkg/fetch"
	"github.com/menta2k/cardsynth/pkg/imagefile"
)

const testCanvas = 192

// cardServer serves a solid PNG card for /ok/* and 404 for everything else.
func cardServer(t *testing.T) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, createSolid(100, 140, cardColor)); err != nil {
		t.Fatal(err)
	}
	body := buf.Bytes()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/ok/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testCards(baseURL string) []catalog.Card {
	legal := map[string]string{"legacy": "legal"}
	return []catalog.Card{
		{
			Name: "Serra Angel", Layout: "normal", BorderColor: "black", ColorIdentity: []string{"W"},
			ImageURIs: &catalog.ImageURIs{PNG: baseURL + "/ok/serra.png"}, Legalities: legal,
		},
		{
			Name: "Sol Ring: Reprint", Layout: "normal", BorderColor: "white",
			ImageURIs: &catalog.ImageURIs{Normal: baseURL + "/ok/sol.jpg"}, Legalities: legal,
		},
		{
			Name: "Lost Card", Layout: "normal", BorderColor: "black", ColorIdentity: []string{"R"},
			ImageURIs: &catalog.ImageURIs{PNG: baseURL + "/missing.png"}, Legalities: legal,
		},
		{
			Name: "Goblin Token", Layout: "token", BorderColor: "black", ColorIdentity: []string{"R"},
			ImageURIs: &catalog.ImageURIs{PNG: baseURL + "/ok/token.png"}, Legalities: legal,
		},
	}
}

func testPool(t *testing.T) *background.Pool {
	t.Helper()
	pool := background.NewPool(testCanvas)
	if err := pool.Add("bg", createSolid(testCanvas+40, testCanvas+10, bgColor)); err != nil {
		t.Fatal(err)
	}
	return pool
}

func newTestGenerator(t *testing.T, dir string, seed uint64, opts ...Option) *Generator {
	t.Helper()
	srv := cardServer(t)

	cfg := DefaultConfig()
	cfg.Cycles = 2
	cfg.Delay = 0
	cfg.OutputDir = dir
	cfg.Output = imagefile.SaveOptions{Format: imagefile.PNG}

	logger := log.New(io.Discard)
	opts = append([]Option{WithRand(NewRand(seed)), WithLogger(logger)}, opts...)
	return New(cfg, testCards(srv.URL), fetch.New(fetch.DefaultConfig()), testPool(t), newTestSynthesizer(testCanvas), opts...)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	g := newTestGenerator(t, dir, 11)

	stats, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Per cycle: Serra Angel and Sol Ring succeed, Lost Card fails to download.
	if stats.Samples != 4 || stats.Skipped != 2 {
		t.Errorf("Expected 4 samples and 2 skips, got %+v", stats)
	}
	// 3 borders x 7 groups = 21 combinations, 3 of which have a usable card.
	if stats.NoMatch != 2*18 {
		t.Errorf("Expected %d empty combinations, got %d", 2*18, stats.NoMatch)
	}

	records, err := annotation.ReadFile(filepath.Join(dir, "annotations.json"))
	if err != nil {
		t.Fatalf("Failed to read annotations: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("Expected 4 annotations, got %d", len(records))
	}

	for i, rec := range records {
		prefix := fmt.Sprintf("%05d_", i)
		if !strings.HasPrefix(rec.Filename, prefix) {
			t.Errorf("record %d: expected prefix %s, got %s", i, prefix, rec.Filename)
		}
		img, err := imagefile.Load(filepath.Join(dir, rec.Filename))
		if err != nil {
			t.Errorf("record %d: sample image not readable: %v", i, err)
			continue
		}
		if b := img.Bounds(); b.Dx() != testCanvas || b.Dy() != testCanvas {
			t.Errorf("record %d: expected %dx%d, got %dx%d", i, testCanvas, testCanvas, b.Dx(), b.Dy())
		}
	}

	if records[1].Filename != "00001_Sol Ring_ Reprint.png" || records[1].CardName != "Sol Ring: Reprint" {
		t.Errorf("Unexpected second record %+v", records[1])
	}
	if len(g.Annotations()) != 4 {
		t.Errorf("Expected 4 in-memory annotations, got %d", len(g.Annotations()))
	}
}

func TestRunDeterministic(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	if _, err := newTestGenerator(t, dirA, 99).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := newTestGenerator(t, dirB, 99).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	a, _ := os.ReadFile(filepath.Join(dirA, "annotations.json"))
	b, _ := os.ReadFile(filepath.Join(dirB, "annotations.json"))
	if !bytes.Equal(a, b) {
		t.Error("Expected identical annotations for identical seeds")
	}

	entries, _ := os.ReadDir(dirA)
	for _, e := range entries {
		x, _ := os.ReadFile(filepath.Join(dirA, e.Name()))
		y, err := os.ReadFile(filepath.Join(dirB, e.Name()))
		if err != nil || !bytes.Equal(x, y) {
			t.Errorf("%s differs between runs", e.Name())
		}
	}
}

func TestRunCanceled(t *testing.T) {
	dir := t.TempDir()
	g := newTestGenerator(t, dir, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := g.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if stats.Samples != 0 {
		t.Errorf("Expected no samples, got %d", stats.Samples)
	}
	records, err := annotation.ReadFile(filepath.Join(dir, "annotations.json"))
	if err != nil {
		t.Fatalf("Expected annotations to be written on cancel: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected empty annotations, got %d", len(records))
	}
}

func TestRunCanceledDuringDelay(t *testing.T) {
	dir := t.TempDir()
	g := newTestGenerator(t, dir, 5)
	g.config.Delay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stats, err := g.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context.DeadlineExceeded, got %v", err)
	}
	if stats.Samples != 1 {
		t.Errorf("Expected exactly one sample before the delay, got %d", stats.Samples)
	}
	records, _ := annotation.ReadFile(filepath.Join(dir, "annotations.json"))
	if len(records) != 1 {
		t.Errorf("Expected 1 annotation, got %d", len(records))
	}
}

type emptyBackgrounds struct{}

func (emptyBackgrounds) RandomCrop(background.Rand) (*image.NRGBA, error) {
	return nil, background.ErrEmptyPool
}

func TestRunSkipsBackgroundFailures(t *testing.T) {
	dir := t.TempDir()
	srv := cardServer(t)
	cfg := DefaultConfig()
	cfg.Cycles = 1
	cfg.Delay = 0
	cfg.OutputDir = dir

	g := New(cfg, testCards(srv.URL), fetch.New(fetch.DefaultConfig()), emptyBackgrounds{}, newTestSynthesizer(testCanvas),
		WithRand(NewRand(1)), WithLogger(log.New(io.Discard)))
	stats, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Samples != 0 || stats.Skipped != 3 {
		t.Errorf("Expected 0 samples and 3 skips, got %+v", stats)
	}
}

func TestAnnotationPath(t *testing.T) {
	cfg := Config{OutputDir: "out", AnnotationFile: "labels.json"}
	if got := cfg.AnnotationPath(); got != filepath.Join("out", "labels.json") {
		t.Errorf("Unexpected path %s", got)
	}
	cfg.AnnotationFile = "/tmp/labels.json"
	if got := cfg.AnnotationPath(); got != "/tmp/labels.json" {
		t.Errorf("Expected absolute path to be kept, got %s", got)
	}
}

func TestSleep(t *testing.T) {
	if err := sleep(context.Background(), 0); err != nil {
		t.Errorf("Expected nil for zero delay, got %v", err)
	}
	if err := sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Expected nil after short delay, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
