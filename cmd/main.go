package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "enlingo",
		Short: "Course progression service of the enlingo app",
		Long: `enlingo tracks the learner position in each course curriculum,
serves it to the app over HTTP and keeps it in the key-value store.

Run "enlingo serve --help" to list the configuration flags.`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	root.AddCommand(newServeCmd(), newProgressCmd())
	return root
}

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
