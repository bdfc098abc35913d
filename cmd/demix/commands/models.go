package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/demixkit/demix/pkg/demucs"
	"github.com/demixkit/demix/pkg/modelstore"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available separation models",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		store, err := modelstore.Open(cfg.ModelDir)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSOURCES\tRATE\tSTATUS")
		for _, c := range demucs.Configs() {
			status := "not downloaded"
			if _, err := store.Resolve(context.Background(), c.Name); err == nil {
				status = "ready"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				c.Name, strings.Join(c.Sources, ","), c.SampleRate, status)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
