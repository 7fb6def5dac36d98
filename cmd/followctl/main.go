package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/followtrack/internal/api"
	"github.com/matheus3301/followtrack/internal/profile"
	"github.com/spf13/cobra"
)

var (
	profileFlag string
	jsonOut     bool
	timeout     time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "followctl",
	Short:         "Inspect and drive a followd daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile name (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// resolveProfile returns the validated profile name for this invocation.
func resolveProfile() (string, error) {
	name := profile.Resolve(profileFlag)
	if err := profile.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// withClient dials the profile's daemon and runs fn with a bounded context.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *api.Client) error) error {
	name, err := resolveProfile()
	if err != nil {
		return err
	}
	c := api.NewClient(profile.SocketPath(name))
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	if err := fn(ctx, c); err != nil {
		return fmt.Errorf("profile %q: %w", name, err)
	}
	return nil
}
