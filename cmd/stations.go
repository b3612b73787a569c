package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sldctools/backdown/config"
	"github.com/sldctools/backdown/infra/xlsx"
)

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "List station names found in the instructions workbook",
	RunE:  listStations,
}

func init() {
	rootCmd.AddCommand(stationsCmd)
}

func listStations(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ins := cfg.Instructions
	stations, title, err := xlsx.ListStations(ins.Path, ins.Sheet, ins.StationColumn, ins.MaxHeaderRows)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), title)
	for _, s := range stations {
		fmt.Fprintln(cmd.OutOrStdout(), s)
	}
	return nil
}
