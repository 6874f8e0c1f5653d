package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/planwerk/planwerk/model"
	"github.com/planwerk/planwerk/rules"
)

func rulesCmd(configPath *string) *cobra.Command {
	var (
		trade  string
		export bool
	)

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the active rule catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			registry, err := buildRegistry(cfg, nil)
			if err != nil {
				return err
			}

			defs := registry.All()
			if trade != "" {
				filtered := defs[:0]
				for _, def := range defs {
					if def.Trade == model.Trade(trade) {
						filtered = append(filtered, def)
					}
				}
				defs = filtered
			}

			if export {
				data, err := (&rules.File{Version: "1", Rules: defs}).Marshal()
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			}

			for _, def := range defs {
				fmt.Printf("%-40s %-18s %-9s %-8s %s\n",
					def.ID, def.Trade, def.Category, def.Severity, def.Title)
			}
			fmt.Printf("\n%d rule(s)\n", len(defs))
			return nil
		},
	}
	cmd.Flags().StringVar(&trade, "trade", "", "Filter by trade code")
	cmd.Flags().BoolVar(&export, "export", false, "Print the catalog as a YAML rules file")
	return cmd
}
