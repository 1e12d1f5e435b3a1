/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package main

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sqpack-overlay/engine/internal/config"
	"github.com/sqpack-overlay/engine/pkg/overlay"
	"github.com/sqpack-overlay/engine/pkg/slices"
	"github.com/sqpack-overlay/engine/pkg/sqpack/creator"
	"github.com/sqpack-overlay/engine/pkg/sqpack/reader"
)

func newBuildCacheCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "build-cache <index-path>",
		Short: "Ingest the base archive plus every non-generated overlay source for one triplet and report the result",
		Long: "Primes the overlay sources (archive roots, TTMP packs, loose file trees) for a single\n" +
			"triplet ahead of a host process's first access. Excel-merge and font generation are not\n" +
			"driven from here since they require a RowMerger/FontGenerator only a host process supplies;\n" +
			"use this to validate the cheaper overlay sources before wiring those in.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return errors.Wrapf(err, "load config %s", configPath)
				}
				cfg = loaded
			}

			indexPath := args[0]
			expac := filepath.Base(filepath.Dir(indexPath))
			name := strings.TrimSuffix(filepath.Base(indexPath), ".win32.index")

			logger := logrus.StandardLogger()

			base, err := reader.Open(indexPath, logger)
			if err != nil {
				return errors.Wrapf(err, "open base archive %s", indexPath)
			}
			defer base.Close()

			c := creator.NewCreator(expac, name, logger)
			if _, err := c.AddEntriesFromSqPack(base, true, true); err != nil {
				return errors.Wrap(err, "ingest base archive")
			}

			sources := []overlay.Source{}
			for _, root := range cfg.AdditionalArchiveRoots {
				sources = append(sources, overlay.ArchiveRootSource{Root: root, Logger: logger})
			}
			sources = append(sources, overlay.NewTTMPSource(modpackDirs(cfg), logger))
			sources = append(sources, overlay.NewLooseFileSource(looseDirs(cfg), logger))

			report, err := overlay.ApplyAll(c, sources)
			if err != nil {
				return errors.Wrap(err, "apply overlays")
			}

			cmd.Printf("%s: added=%d replaced=%d skipped=%d errors=%d\n",
				indexPath, report.Added, report.Replaced, report.Skipped, report.Errors)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "configuration file (defaults used when omitted)")
	return cmd
}

// modpackDirs and looseDirs fold each configured default directory in
// alongside the user's own list, which a user can also name explicitly
// in their config; RemoveDuplicates keeps the overlay sources below
// from scanning the same root twice.

func modpackDirs(cfg *config.Config) []string {
	dirs := append([]string{}, cfg.AdditionalModpackDirectories...)
	if cfg.UseDefaultModpackDir {
		for _, base := range []string{cfg.BaseArchiveDir, cfg.CacheDir} {
			if base != "" {
				dirs = append(dirs, filepath.Join(base, "TexToolsMods"))
			}
		}
	}
	return slices.RemoveDuplicates(dirs)
}

func looseDirs(cfg *config.Config) []string {
	dirs := append([]string{}, cfg.AdditionalLooseRootDirectories...)
	if cfg.UseDefaultLooseRootDirectory {
		dirs = append(dirs, filepath.Join(cfg.BaseArchiveDir, "TexToolsFiles"))
	}
	return slices.RemoveDuplicates(dirs)
}
