package demucs

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/demixkit/demix/pkg/audio/decode"
	"github.com/demixkit/demix/pkg/audio/pcm"
	"github.com/demixkit/demix/pkg/audio/wavenc"
)

// fakeModel returns its input unchanged for every source, so a separation
// reproduces the mix in each stem. It fails the test if forward passes ever
// overlap.
type fakeModel struct {
	t        *testing.T
	cfg      Config
	inFlight atomic.Int32
	applies  atomic.Int32
	failFrom int32 // fail passes numbered >= failFrom when > 0
}

func newFakeModel(t *testing.T) *fakeModel {
	return &fakeModel{
		t: t,
		cfg: Config{
			Name:           "fake",
			SampleRate:     8000,
			Channels:       2,
			Sources:        []string{"drums", "bass", "other", "vocals"},
			SegmentSamples: 4000,
			OverlapSamples: 1000,
		},
	}
}

func (f *fakeModel) Config() Config { return f.cfg }

func (f *fakeModel) Apply(ctx context.Context, chunk [][]float32) ([][][]float32, error) {
	if f.inFlight.Add(1) != 1 {
		f.t.Error("concurrent forward passes detected")
	}
	defer f.inFlight.Add(-1)

	n := f.applies.Add(1)
	if f.failFrom > 0 && n >= f.failFrom {
		return nil, ErrInference
	}

	out := make([][][]float32, len(f.cfg.Sources))
	for s := range out {
		out[s] = make([][]float32, len(chunk))
		for ch := range chunk {
			out[s][ch] = append([]float32(nil), chunk[ch]...)
		}
	}
	return out, nil
}

func (f *fakeModel) Close() error { return nil }

// writeInput writes a quantization-stable stereo test tone and returns its
// path together with the decoded reference samples.
func writeInput(t *testing.T, dir string, frames int) (string, *pcm.Buffer) {
	t.Helper()
	buf := pcm.New(2, frames, 8000)
	for ch := range 2 {
		for i := range frames {
			v := 0.2 * math.Sin(2*math.Pi*220*float64(i)/8000)
			buf.Samples[ch][i] = float32(math.Round(v*32767) / 32768)
		}
	}
	path := filepath.Join(dir, "mix.wav")
	if err := wavenc.Write(buf, path, nil); err != nil {
		t.Fatal(err)
	}
	ref, err := decode.File(path)
	if err != nil {
		t.Fatal(err)
	}
	return path, ref
}

func TestSeparateEndToEnd(t *testing.T) {
	model := newFakeModel(t)
	sep := NewSeparator(model)
	input, ref := writeInput(t, t.TempDir(), 10000)
	outDir := t.TempDir()

	var stages []Stage
	var lastChunk, chunkTotal int
	set, err := sep.Separate(context.Background(), input, outDir, &Options{
		SkipPostProcess: true,
		Progress: func(p Progress) {
			stages = append(stages, p.Stage)
			if p.Stage == StageInferring {
				lastChunk, chunkTotal = p.Chunk, p.Chunks
			}
		},
	})
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}

	if len(set.Paths) != 4 {
		t.Fatalf("got %d stems, want 4", len(set.Paths))
	}
	for _, label := range model.cfg.Sources {
		path, ok := set.Paths[label]
		if !ok {
			t.Fatalf("missing stem %q", label)
		}
		stem, err := decode.File(path)
		if err != nil {
			t.Fatalf("decode stem %s: %v", label, err)
		}
		if stem.Len() != ref.Len() {
			t.Fatalf("stem %s length %d, want %d", label, stem.Len(), ref.Len())
		}
		for ch := range stem.Samples {
			for i := range stem.Samples[ch] {
				diff := float64(stem.Samples[ch][i] - ref.Samples[ch][i])
				if math.Abs(diff) > 2e-4 {
					t.Fatalf("stem %s sample [%d][%d] off by %g", label, ch, i, diff)
				}
			}
		}
	}

	if stages[0] != StageDecoding || stages[len(stages)-1] != StageDone {
		t.Errorf("stage sequence %v", stages)
	}
	if lastChunk != chunkTotal || chunkTotal == 0 {
		t.Errorf("inference progress ended at %d/%d", lastChunk, chunkTotal)
	}
}

func TestSeparateTwoStems(t *testing.T) {
	model := newFakeModel(t)
	sep := NewSeparator(model)
	input, ref := writeInput(t, t.TempDir(), 9000)
	outDir := t.TempDir()

	set, err := sep.Separate(context.Background(), input, outDir, &Options{
		TwoStems:        true,
		SkipPostProcess: true,
	})
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if len(set.Paths) != 2 {
		t.Fatalf("got %d stems, want 2", len(set.Paths))
	}
	if _, ok := set.Paths["vocals"]; !ok {
		t.Error("missing vocals stem")
	}
	inst, err := decode.File(set.Paths["instrumental"])
	if err != nil {
		t.Fatal(err)
	}
	// The passthrough model makes the instrumental the sum of three
	// identical copies of the mix.
	for ch := range inst.Samples {
		for i := 0; i < inst.Len(); i += 997 {
			want := 3 * ref.Samples[ch][i]
			if diff := math.Abs(float64(inst.Samples[ch][i] - want)); diff > 1e-3 {
				t.Fatalf("instrumental sample [%d][%d] off by %g", ch, i, diff)
			}
		}
	}
}

func TestSeparateConcurrentRequests(t *testing.T) {
	model := newFakeModel(t)
	sep := NewSeparator(model)
	input, ref := writeInput(t, t.TempDir(), 12000)

	var wg sync.WaitGroup
	results := make([]*StemSet, 2)
	errs := make([]error, 2)
	dirs := []string{t.TempDir(), t.TempDir()}
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = sep.Separate(context.Background(), input, dirs[i],
				&Options{SkipPostProcess: true})
		}()
	}
	wg.Wait()

	for i := range 2 {
		if errs[i] != nil {
			t.Fatalf("request %d: %v", i, errs[i])
		}
		stem, err := decode.File(results[i].Paths["vocals"])
		if err != nil {
			t.Fatal(err)
		}
		if stem.Len() != ref.Len() {
			t.Errorf("request %d vocals length %d, want %d", i, stem.Len(), ref.Len())
		}
	}
	if results[0].Job == results[1].Job {
		t.Error("concurrent requests share a job id")
	}
}

func TestSeparateCancellation(t *testing.T) {
	model := newFakeModel(t)
	sep := NewSeparator(model)
	input, _ := writeInput(t, t.TempDir(), 12000)
	outDir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sep.Separate(ctx, input, outDir, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	entries, _ := os.ReadDir(outDir)
	if len(entries) != 0 {
		t.Errorf("cancelled request left %d files", len(entries))
	}
}

func TestSeparateBadInputKeepsModelUsable(t *testing.T) {
	model := newFakeModel(t)
	sep := NewSeparator(model)
	dir := t.TempDir()

	if _, err := sep.Separate(context.Background(), filepath.Join(dir, "missing.wav"), dir, nil); err == nil {
		t.Fatal("expected error for unreadable input")
	}

	unsupported := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(unsupported, []byte("not audio at all, just text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := sep.Separate(context.Background(), unsupported, dir, nil); !errors.Is(err, decode.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}

	input, _ := writeInput(t, t.TempDir(), 9000)
	if _, err := sep.Separate(context.Background(), input, t.TempDir(), nil); err != nil {
		t.Fatalf("model unusable after failed requests: %v", err)
	}
}

func TestSeparateInferenceFailureLeavesNoOutput(t *testing.T) {
	model := newFakeModel(t)
	model.failFrom = 2
	sep := NewSeparator(model)
	input, _ := writeInput(t, t.TempDir(), 12000)
	outDir := t.TempDir()

	var failed bool
	_, err := sep.Separate(context.Background(), input, outDir, &Options{
		Progress: func(p Progress) { failed = failed || p.Stage == StageFailed },
	})
	if !errors.Is(err, ErrInference) {
		t.Fatalf("err = %v, want ErrInference", err)
	}
	if !failed {
		t.Error("no StageFailed progress reported")
	}
	entries, _ := os.ReadDir(outDir)
	if len(entries) != 0 {
		t.Errorf("failed request left %d files", len(entries))
	}
}

func TestLookupConfig(t *testing.T) {
	cfg, err := LookupConfig("htdemucs")
	if err != nil {
		t.Fatalf("LookupConfig: %v", err)
	}
	if len(cfg.Sources) != 4 || cfg.SampleRate != 44100 {
		t.Errorf("unexpected htdemucs config: %+v", cfg)
	}
	if _, err := LookupConfig("nope"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("err = %v, want ErrUnknownModel", err)
	}
	for _, c := range Configs() {
		if err := c.Validate(); err != nil {
			t.Errorf("builtin %s invalid: %v", c.Name, err)
		}
	}
}
