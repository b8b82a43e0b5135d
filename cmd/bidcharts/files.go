package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dvloznov/keyword-bid-charts/internal/gcsuploader"
)

var fetchDir string

var fetchCmd = &cobra.Command{
	Use:   "fetch GCS_URI...",
	Short: "Download report files from GCS into a local directory",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFetch,
}

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchDir, "dir", ".", "Directory to write the files to")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(configCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, _, cancel := runContext(cmd)
	defer cancel()

	if err := os.MkdirAll(fetchDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", fetchDir, err)
	}

	for _, uri := range args {
		name := gcsuploader.ExtractFilenameFromGCSURI(uri)
		if name == "" {
			return fmt.Errorf("fetch: %q does not name an object", uri)
		}

		data, err := gcsuploader.FetchFromGCS(ctx, uri)
		if err != nil {
			return err
		}

		dst := filepath.Join(fetchDir, name)
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dst, err)
		}
		log.Info().Str("uri", uri).Str("file", dst).Int("bytes", len(data)).Msg("Fetched object")
		fmt.Fprintf(cmd.OutOrStdout(), "Fetched %s to %s\n", uri, dst)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", configPath, err)
	}

	if err := cfg.Save(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
	return nil
}
