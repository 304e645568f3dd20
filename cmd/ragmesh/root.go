package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ragmesh/config"
	"github.com/hupe1980/ragmesh/internal/app"
)

var rootCmd = &cobra.Command{
	Use:           "ragmesh",
	Short:         "Multi-agent question answering over documents and the web",
	Long:          `ragmesh routes a question between a Coordinator, a knowledge base specialist (Rag) and a web search specialist (Tavily) until the Coordinator produces a final answer.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("provider", "", "Override model.provider (openai, anthropic or mock)")
	rootCmd.PersistentFlags().String("log-level", "", "Override log.level")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if provider, _ := cmd.Flags().GetString("provider"); provider != "" {
		cfg.Model.Provider = provider
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}

	return cfg, nil
}

func newApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, func(o *app.Options) { o.LogOutput = cmd.ErrOrStderr() })
}
