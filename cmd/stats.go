package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show indexed course statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed courses: %d\n", stats.TotalCourses)
	for _, t := range stats.CourseTitles {
		fmt.Printf("  - %s\n", t)
	}
	return nil
}
