package demucs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/demixkit/demix/pkg/audio/decode"
	"github.com/demixkit/demix/pkg/audio/pcm"
	"github.com/demixkit/demix/pkg/audio/resample"
	"github.com/demixkit/demix/pkg/audio/segment"
	"github.com/demixkit/demix/pkg/audio/wavenc"
)

// Stage identifies where a separation request currently is.
type Stage int

const (
	StageIdle Stage = iota
	StageDecoding
	StageResampling
	StageSegmenting
	StageInferring
	StageReconstructing
	StageEncoding
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageIdle:           "idle",
	StageDecoding:       "decoding",
	StageResampling:     "resampling",
	StageSegmenting:     "segmenting",
	StageInferring:      "inferring",
	StageReconstructing: "reconstructing",
	StageEncoding:       "encoding",
	StageDone:           "done",
	StageFailed:         "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Progress reports a request's position in the pipeline. During
// StageInferring, Chunk counts completed chunks out of Chunks.
type Progress struct {
	Job    string
	Stage  Stage
	Chunk  int
	Chunks int
}

// Options tunes a single separation request. The zero value separates into
// every stem the model produces, applies post-processing and writes 16-bit
// output.
type Options struct {
	// Progress, when set, is called synchronously at every stage change
	// and after each inferred chunk.
	Progress func(Progress)

	// TwoStems collapses the output to vocals plus an instrumental mix of
	// every other source.
	TwoStems bool

	// SkipPostProcess disables the per-stem cleanup filters.
	SkipPostProcess bool

	// BitDepth selects the output WAV sample width. Zero means 16.
	BitDepth int
}

// StemSet is the result of a completed separation: one written WAV file per
// stem label.
type StemSet struct {
	Job        string
	SampleRate int
	Paths      map[string]string
}

// Separator runs separation requests against one shared model. It is safe
// for concurrent use; only the forward passes are serialized.
type Separator struct {
	model Model
}

// NewSeparator wraps a loaded model.
func NewSeparator(model Model) *Separator {
	return &Separator{model: model}
}

// Separate decodes inputPath, separates it into stems and writes one WAV
// per stem into outDir. The context is checked between chunks; cancelling
// abandons the request after the in-flight forward pass. On failure no
// partial output files are left behind.
func (s *Separator) Separate(ctx context.Context, inputPath, outDir string, opts *Options) (*StemSet, error) {
	if opts == nil {
		opts = &Options{}
	}
	cfg := s.model.Config()
	job := uuid.NewString()

	report := func(p Progress) {
		p.Job = job
		if opts.Progress != nil {
			opts.Progress(p)
		}
	}
	fail := func(err error) (*StemSet, error) {
		report(Progress{Stage: StageFailed})
		return nil, err
	}

	slog.Debug("separation started", "job", job, "input", inputPath, "model", cfg.Name)

	report(Progress{Stage: StageDecoding})
	buf, err := decode.File(inputPath)
	if err != nil {
		return fail(err)
	}

	report(Progress{Stage: StageResampling})
	buf, err = resample.Buffer(buf, cfg.SampleRate)
	if err != nil {
		return fail(err)
	}
	buf, err = buf.WithChannels(cfg.Channels)
	if err != nil {
		return fail(err)
	}
	total := buf.Len()

	report(Progress{Stage: StageSegmenting})
	chunks, count, err := segment.Split(buf, cfg.SegmentSamples, cfg.OverlapSamples)
	if err != nil {
		return fail(err)
	}
	slog.Debug("input segmented", "job", job, "chunks", count, "samples", total)

	rec := segment.NewReconstructor(len(cfg.Sources), cfg.Channels, total, cfg.OverlapSamples)
	report(Progress{Stage: StageInferring, Chunk: 0, Chunks: count})

	var inferErr error
	chunks(func(c segment.Chunk) bool {
		if err := ctx.Err(); err != nil {
			inferErr = err
			return false
		}
		st := computeStats(c.Samples)
		normalize(c.Samples, st)

		out, err := s.model.Apply(ctx, c.Samples)
		if err != nil {
			inferErr = fmt.Errorf("chunk %d: %w", c.Index, err)
			return false
		}
		denormalize(out, st)

		if err := rec.Add(c, out); err != nil {
			inferErr = err
			return false
		}
		report(Progress{Stage: StageInferring, Chunk: c.Index + 1, Chunks: count})
		return true
	})
	if inferErr != nil {
		return fail(inferErr)
	}

	report(Progress{Stage: StageReconstructing})
	labels, stems := assemble(cfg, rec, opts.TwoStems)

	if !opts.SkipPostProcess {
		for i, label := range labels {
			postProcessStem(label, stems[i], cfg.SampleRate)
		}
	}

	report(Progress{Stage: StageEncoding})
	set := &StemSet{Job: job, SampleRate: cfg.SampleRate, Paths: make(map[string]string, len(labels))}
	for i, label := range labels {
		out := &pcm.Buffer{SampleRate: cfg.SampleRate, Samples: stems[i]}
		path := filepath.Join(outDir, label+".wav")
		if err := wavenc.Write(out, path, &wavenc.Options{BitDepth: opts.BitDepth}); err != nil {
			for _, written := range set.Paths {
				os.Remove(written)
			}
			return fail(fmt.Errorf("encode %s: %w", label, err))
		}
		set.Paths[label] = path
	}

	report(Progress{Stage: StageDone})
	slog.Debug("separation finished", "job", job, "stems", len(set.Paths))
	return set, nil
}

// assemble reads the reconstructed stems and optionally folds everything
// but the vocals into a single instrumental track.
func assemble(cfg Config, rec *segment.Reconstructor, twoStems bool) ([]string, [][][]float32) {
	if !twoStems {
		return cfg.Sources, rec.Stems()
	}

	vocalIdx := 0
	for i, src := range cfg.Sources {
		if src == "vocals" {
			vocalIdx = i
			break
		}
	}

	vocals := rec.Stem(vocalIdx)
	instrumental := make([][]float32, len(vocals))
	for ch := range instrumental {
		instrumental[ch] = make([]float32, len(vocals[ch]))
	}
	for i := range cfg.Sources {
		if i == vocalIdx {
			continue
		}
		stem := rec.Stem(i)
		for ch := range stem {
			for j, v := range stem[ch] {
				instrumental[ch][j] += v
			}
		}
	}
	return []string{"vocals", "instrumental"}, [][][]float32{vocals, instrumental}
}
