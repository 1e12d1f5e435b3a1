/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

// Command sqpack-overlayctl is the administrator-facing entry point: it
// validates and scaffolds configuration, inspects an on-disk triplet,
// resolves content paths, and ingests a triplet's archive-root, TTMP and
// loose-file overlays ahead of time. It does not build the Excel-merge or
// font-generation caches, which need a host-supplied RowMerger or
// FontGenerator.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sqpack-overlay/engine/version"
)

func main() {
	root := &cobra.Command{
		Use:          "sqpack-overlayctl",
		Short:        "Administer the virtual SqPack overlay engine",
		Version:      version.Version,
		SilenceUsage: true,
	}

	root.AddCommand(newInstallCommand())
	root.AddCommand(newInspectCommand())
	root.AddCommand(newBuildCacheCommand())
	root.AddCommand(newResolvePathCommand())

	if err := root.Execute(); err != nil {
		logrus.WithError(err).Error("sqpack-overlayctl: command failed")
		os.Exit(1)
	}
}
