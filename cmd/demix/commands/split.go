package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/demixkit/demix/pkg/audio/meta"
	"github.com/demixkit/demix/pkg/demucs"
	"github.com/demixkit/demix/pkg/modelstore"
	"github.com/demixkit/demix/pkg/splitcache"
)

var (
	splitOut      string
	splitModel    string
	splitDevice   string
	splitTwoStems bool
	splitNoPost   bool
	splitNoCache  bool
	splitBitDepth int
	splitCover    bool
)

var (
	splitLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	splitDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
)

var splitCmd = &cobra.Command{
	Use:   "split <input>",
	Short: "Separate a track into instrument stems",
	Long: `Separate a music file into one WAV file per instrument stem.

The input is decoded, resampled to the model's rate and run through the
separation network in overlapping chunks. Results are cached by input
content and options; re-splitting the same file is instant unless
--no-cache is given.

Examples:
  demix split song.flac
  demix split song.mp3 -o out/ --two-stems
  demix split song.wav --model htdemucs_6s --bit-depth 24 --cover`,
	Args: cobra.ExactArgs(1),
	RunE: runSplit,
}

func init() {
	splitCmd.Flags().StringVarP(&splitOut, "out", "o", "", "output directory (default: <input name>_stems)")
	splitCmd.Flags().StringVarP(&splitModel, "model", "m", "", "separation model (default from config)")
	splitCmd.Flags().StringVar(&splitDevice, "device", "", "execution device: auto, cpu, cuda, coreml")
	splitCmd.Flags().BoolVar(&splitTwoStems, "two-stems", false, "produce vocals and instrumental only")
	splitCmd.Flags().BoolVar(&splitNoPost, "no-post", false, "skip per-stem cleanup filters")
	splitCmd.Flags().BoolVar(&splitNoCache, "no-cache", false, "bypass the separation result cache")
	splitCmd.Flags().IntVar(&splitBitDepth, "bit-depth", 16, "output WAV bit depth (16 or 24)")
	splitCmd.Flags().BoolVar(&splitCover, "cover", false, "extract embedded album art to cover.jpg")
	rootCmd.AddCommand(splitCmd)
}

func runSplit(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	input := args[0]
	if _, err := os.Stat(input); err != nil {
		return err
	}

	modelName := splitModel
	if modelName == "" {
		modelName = cfg.DefaultModel
	}
	device := splitDevice
	if device == "" {
		device = cfg.Device
	}

	outDir := splitOut
	if outDir == "" {
		base := filepath.Base(input)
		outDir = strings.TrimSuffix(base, filepath.Ext(base)) + "_stems"
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	mcfg, err := demucs.LookupConfig(modelName)
	if err != nil {
		return err
	}

	// Cache lookup before any heavy work.
	var cache *splitcache.Cache
	var cacheKey splitcache.Key
	useCache := !cfg.DisableCache && !splitNoCache
	if useCache {
		digest, err := splitcache.DigestFile(input)
		if err != nil {
			return err
		}
		cache, err = splitcache.Open(cfg.CacheDir)
		if err != nil {
			return err
		}
		defer cache.Close()

		cacheKey = splitcache.Key{
			Digest:   digest,
			Model:    modelName,
			TwoStems: splitTwoStems,
			BitDepth: splitBitDepth,
		}
		if entry, err := cache.Lookup(cacheKey); err == nil {
			printStemSummary(input, modelName, entry.Stems, true)
			return nil
		} else if !errors.Is(err, splitcache.ErrNotFound) {
			return err
		}
	}

	modelPath, err := resolveModel(cmd, cfg.ModelDir, cfg.S3Bucket, cfg.S3Prefix, modelName)
	if err != nil {
		return err
	}
	model, err := demucs.LoadONNX(modelPath, mcfg, demucs.Device(device))
	if err != nil {
		return err
	}
	defer model.Close()

	progress := mpb.New(mpb.WithWidth(64))
	var bar *mpb.Bar

	sep := demucs.NewSeparator(model)
	set, err := sep.Separate(cmd.Context(), input, outDir, &demucs.Options{
		TwoStems:        splitTwoStems,
		SkipPostProcess: splitNoPost,
		BitDepth:        splitBitDepth,
		Progress: func(p demucs.Progress) {
			if p.Stage != demucs.StageInferring {
				return
			}
			if bar == nil {
				bar = progress.AddBar(int64(p.Chunks),
					mpb.PrependDecorators(
						decor.Name("Separating: "),
						decor.CountersNoUnit("%d / %d"),
					),
					mpb.AppendDecorators(
						decor.Percentage(),
						decor.AverageETA(decor.ET_STYLE_GO),
					),
				)
			}
			bar.SetCurrent(int64(p.Chunk))
		},
	})
	if err != nil {
		if bar != nil {
			bar.Abort(true)
		}
		progress.Wait()
		return err
	}
	progress.Wait()

	if splitCover {
		cover, err := meta.ExtractCover(input, outDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: cover extraction failed: %v\n", err)
		} else if cover != "" {
			set.Paths["cover"] = cover
		}
	}

	if useCache {
		stems := make(map[string]string, len(set.Paths))
		for label, path := range set.Paths {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			stems[label] = path
		}
		if err := cache.Store(cacheKey, splitcache.Entry{Stems: stems, SampleRate: set.SampleRate}); err != nil {
			fmt.Fprintf(os.Stderr, "warning: cache store failed: %v\n", err)
		}
	}

	printStemSummary(input, modelName, set.Paths, false)
	return nil
}

// resolveModel locates the model file, fetching it from the configured
// object store when it is missing locally.
func resolveModel(cmd *cobra.Command, modelDir, bucket, prefix, name string) (string, error) {
	store, err := modelstore.Open(modelDir)
	if err != nil {
		return "", err
	}
	if bucket != "" {
		acfg, err := awsconfig.LoadDefaultConfig(cmd.Context())
		if err != nil {
			return "", fmt.Errorf("load AWS config: %w", err)
		}
		store.WithS3(s3.NewFromConfig(acfg), bucket, prefix)
	}
	path, err := store.Resolve(cmd.Context(), name)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("model %q not found in %s (set s3_bucket in config to fetch models)", name, modelDir)
	}
	return path, err
}

func printStemSummary(input, model string, stems map[string]string, cached bool) {
	header := splitLabelStyle.Render(filepath.Base(input))
	note := splitDimStyle.Render("model " + model)
	if cached {
		note += splitDimStyle.Render("  (cached)")
	}
	fmt.Printf("%s  %s\n", header, note)

	labels := make([]string, 0, len(stems))
	for label := range stems {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Printf("  %s  %s\n", splitLabelStyle.Render(fmt.Sprintf("%-12s", label)), stems[label])
	}
}
