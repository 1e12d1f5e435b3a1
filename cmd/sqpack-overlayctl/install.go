/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package main

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sqpack-overlay/engine/internal/config"
)

func newInstallCommand() *cobra.Command {
	var (
		outPath string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Write a default configuration file for a host process to load",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(outPath); err == nil {
					return errors.Errorf("%s already exists, pass --force to overwrite", outPath)
				}
			}

			data, err := toml.Marshal(config.Default())
			if err != nil {
				return errors.Wrap(err, "marshal default configuration")
			}

			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return errors.Wrapf(err, "write %s", outPath)
			}

			cmd.Printf("wrote default configuration to %s (use_resource_overriding left disabled)\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "sqpack-overlay.toml", "path to write the configuration file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
