package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/freshbulk/storefront/internal/kernel"
	"github.com/freshbulk/storefront/internal/server"
	"github.com/freshbulk/storefront/pkg/cache"
	"github.com/freshbulk/storefront/pkg/database"
)

var serveMigrate bool

// freshbulk serve
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "Start the HTTP server and the gRPC health server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(server.Options{Migrate: serveMigrate})
	},
}

// freshbulk route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all registered named routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		// The route table does not depend on data; a throwaway database
		// satisfies the kernel.
		db, err := database.Open("sqlite", "file::memory:")
		if err != nil {
			return err
		}
		k, err := kernel.New(kernel.Deps{DB: db, Cache: cache.NewMemoryStore()})
		if err != nil {
			return err
		}

		infos := k.Routes()
		sort.Slice(infos, func(i, j int) bool {
			if infos[i].Path != infos[j].Path {
				return infos[i].Path < infos[j].Path
			}
			return infos[i].Method < infos[j].Method
		})

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, ri := range infos {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply pending migrations before serving")
}
