/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 */

package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sqpack-overlay/engine/pkg/sqpack/reader"
)

func newInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <index-path>",
		Short: "Print the directory summary of an on-disk SqPack triplet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := reader.Open(args[0], logrus.StandardLogger())
			if err != nil {
				return errors.Wrapf(err, "open %s", args[0])
			}
			defer r.Close()

			entries := r.Entries()
			cmd.Printf("%s\n", args[0])
			cmd.Printf("  entries:    %d\n", len(entries))
			cmd.Printf("  data spans: %d\n", r.SpanCount())
			cmd.Printf("  folders:    %d\n", len(r.Folders()))
			cmd.Printf("  unknown3:   %d\n", len(r.Unknown3()))
			return nil
		},
	}
	return cmd
}
