package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"checkup/internal/conf"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the resolved ignore-rule set",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := flagConfig
		if path == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			path, err = conf.FindConfig(cwd)
			if err != nil {
				return err
			}
		}

		resolver := &conf.Resolver{Registry: registry, Logger: logger}
		cfg, err := resolver.Resolve(path)
		if err != nil {
			return err
		}

		if cfg.IgnoreErrors.Len() == 0 {
			fmt.Println("no ignore rules configured")
			return nil
		}
		for i, r := range cfg.IgnoreErrors.Rules {
			if r.Invalid() {
				fmt.Printf("%3d. INVALID: %s\n", i+1, r.Raw)
				continue
			}
			line := fmt.Sprintf("%3d. %s", i+1, r.Message.String())
			if r.Count != nil {
				line += fmt.Sprintf("  (count %d)", *r.Count)
			}
			if len(r.Paths) > 0 {
				line += fmt.Sprintf("  (paths %s)", strings.Join(r.Paths, ", "))
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
