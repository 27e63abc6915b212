package main

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	endpoint string
	headers  map[string]string
	timeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "plpctl",
	Short:         "Inspect listing page fetch strategies",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "catalog GraphQL endpoint URL")
	rootCmd.PersistentFlags().StringToStringVarP(&headers, "header", "H", nil, "static request header (key=value)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "per-step wait timeout")
}
