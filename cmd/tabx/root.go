package main

import (
	"github.com/spf13/cobra"

	"github.com/tabxdata/tabx/cli/logflags"
)

func newRootCmd() *cobra.Command {
	lf := &logflags.Flags{}
	root := &cobra.Command{
		Use:           "tabx",
		Short:         "Convert Tableau workbooks into Power BI model and report artifacts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	lf.SetFlags(root.PersistentFlags())
	root.AddCommand(newConvertCmd(lf))
	return root
}
