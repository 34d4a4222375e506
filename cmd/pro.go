package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"checkup/internal/notify"
	"checkup/internal/pro"
	"checkup/internal/proc"
)

var proCmd = &cobra.Command{
	Use:   "pro",
	Short: "Start the long-running pro session and report its lifecycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}

		m := &pro.Manager{
			Binary:     flagBinary,
			WorkDir:    cwd,
			ConfigPath: flagConfig,
			Registry:   registry,
			Timeout:    flagTimeout,
			Retry:      proc.Retry{Attempts: flagRetries},
			Logger:     logger,
			Notifier:   &notify.LogNotifier{Logger: logger},
			OnProgress: func(p pro.Progress) {
				fmt.Printf("\ranalyzing %d/%d (%d%%)", p.Done, p.Total, p.Percentage)
			},
		}

		session, err := m.Start(cmd.Context())
		if err != nil {
			return err
		}
		defer m.Stop()
		fmt.Println()
		fmt.Println("pro session running; press Ctrl+C to stop")

		// Poll the side-channel artifacts until interrupted or the process
		// goes away. Port and login state appear asynchronously.
		portShown, loginShown := false, false
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case <-ticker.C:
				if !session.Alive() {
					return fmt.Errorf("pro session exited")
				}
				if port, ok := session.Port(); ok && !portShown {
					portShown = true
					fmt.Printf("dashboard listening on http://127.0.0.1:%d\n", port)
				}
				if session.LoggedIn() && !loginShown {
					loginShown = true
					fmt.Println("logged in")
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(proCmd)
}
