/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sqpack-overlay/engine/internal/config"
	"github.com/sqpack-overlay/engine/pkg/engine"
	"github.com/sqpack-overlay/engine/pkg/sqpack"
)

func newResolvePathCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "resolve-path <index-path> <content-path>",
		Short: "Acquire a triplet's views and apply the filename-language-override rewrite to a content path",
		Long: "Exercises the same rewrite a host's own hash-computation hook would drive through\n" +
			"Engine.ResolveContentPath ahead of resolving a virtual content path, without requiring\n" +
			"the host process or its hook to be present.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return errors.Wrapf(err, "load config %s", configPath)
				}
				cfg = loaded
			}

			logger := logrus.StandardLogger()
			e, err := engine.New(engine.Options{
				BaseDir:             cfg.BaseArchiveDir,
				OSAPI:               osFileAPI{},
				CacheDir:            cfg.CacheDir,
				Logger:              logger,
				HashTrackerLanguage: sqpack.ParseLanguage(cfg.HashTrackerLanguageOverride),
				LogObservedHashKeys: cfg.UseHashTrackerKeyLogging,
			})
			if err != nil {
				return errors.Wrap(err, "construct engine")
			}
			defer e.Close()

			indexPath, contentPath := args[0], args[1]
			views, err := e.Acquire(indexPath)
			if err != nil {
				return errors.Wrapf(err, "acquire views for %s", indexPath)
			}
			if views != nil {
				views.Release()
			}

			cmd.Println(e.ResolveContentPath(contentPath))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "configuration file (defaults used when omitted)")
	return cmd
}
