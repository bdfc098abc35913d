package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/demixkit/demix/pkg/audio/analysis"
	"github.com/demixkit/demix/pkg/audio/decode"
	"github.com/demixkit/demix/pkg/audio/meta"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <input>",
	Short: "Estimate tempo and musical key",
	Long: `Decode a music file and estimate its tempo (BPM) and key.

Examples:
  demix analyze song.flac
  demix analyze song.mp3 -v`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		buf, err := decode.File(input)
		if err != nil {
			return err
		}

		bpm, err := analysis.DetectBPM(buf)
		if err != nil {
			return err
		}
		key, err := analysis.DetectKey(buf)
		if err != nil {
			return err
		}

		if track, err := meta.ReadTrack(input); err == nil && track.Title != "" {
			title := track.Title
			if track.Artist != "" {
				title = track.Artist + " - " + title
			}
			fmt.Println(splitLabelStyle.Render(title))
		}
		fmt.Printf("  %s  %.1f\n", splitLabelStyle.Render("bpm     "), bpm)
		fmt.Printf("  %s  %s\n", splitLabelStyle.Render("key     "), key)
		fmt.Printf("  %s  %s\n", splitLabelStyle.Render("duration"), buf.Duration().Round(time.Second))
		if IsVerbose() {
			fmt.Printf("  %s  %d Hz, %d channels\n",
				splitDimStyle.Render("format  "), buf.SampleRate, buf.Channels())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
