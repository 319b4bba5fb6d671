package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sorter/internal/app"
	"sorter/internal/repository"
)

var detectionsLimit int

var detectionsCmd = &cobra.Command{
	Use:   "detections",
	Short: "Print the most recent actuations from the detection log",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := app.OpenRepository(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer repo.Close()

		records, err := repo.Recent(cmd.Context(), detectionsLimit)
		if err != nil {
			return fmt.Errorf("failed to read detection log: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("No detections logged yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tTEXT\tSERVO\tCONFIDENCE\tBBOX")
		fmt.Fprintln(w, "--\t----\t----\t-----\t----------\t----")
		for _, r := range records {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.2f\t%s\n",
				r.ID, r.Timestamp.Local().Format("2006-01-02 15:04:05"), r.Text, r.ActuatorID, r.Confidence, r.Box)
		}
		return w.Flush()
	},
}

func init() {
	detectionsCmd.Flags().IntVar(&detectionsLimit, "limit", repository.DefaultRecentLimit, "number of records to show")
	rootCmd.AddCommand(detectionsCmd)
}
