package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/habitboard/internal/app"
	"github.com/nhle/habitboard/internal/model"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "habitboard",
		Short:         "habitboard - habit and task tracking in the terminal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTUI,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return openLog()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", model.DefaultConfigPath(), "Path to config file")

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(toggleCmd())
	rootCmd.AddCommand(moveCmd())
	rootCmd.AddCommand(rmCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(todayCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openLog sends the standard logger to a file in the config directory so
// that it never draws over the terminal UI.
func openLog() error {
	dir := model.ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	if _, err := tea.LogToFile(filepath.Join(dir, "habitboard.log"), "habitboard"); err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	e, err := openEnv(configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	log.Printf("starting habitboard %s against %s", Version, e.cfg.API.BaseURL)

	p := tea.NewProgram(app.New(e.deps), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running terminal UI: %w", err)
	}
	return nil
}
