package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/adfharrison1/go-odm/pkg/config"
	"github.com/adfharrison1/go-odm/pkg/logging"
)

var (
	// Error is the error class of the command line tool
	Error = errs.Class("go-odm")

	rootCmd = &cobra.Command{
		Use:   "go-odm",
		Short: "Document models over MongoDB, served over HTTP",
		Long: `go-odm serves validated document models over a REST API.

Documents are stored in MongoDB, or in an in-memory database when the
connection string is memory://[snapshot file].`,
		SilenceUsage: true,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Example: `  go-odm serve                                   # MongoDB on localhost
  go-odm serve --mongo-uri memory://data.godb    # in-memory, snapshot on shutdown
  go-odm serve --mongo-uri memory://data.godb --snapshot-interval 5m`,
		RunE: cmdServe,
	}
	loadCmd = &cobra.Command{
		Use:   "load <number of users>",
		Short: "Insert random users into a running server",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdLoad,
	}

	loadCfg struct {
		url       string
		batchSize int
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loadCmd)
	config.BindFlags(rootCmd.PersistentFlags())
	loadCmd.Flags().StringVar(&loadCfg.url, "url", "http://localhost:8080", "base URL of the server")
	loadCmd.Flags().IntVar(&loadCfg.batchSize, "batch-size", 1, "users per request, 1 uses the single insert endpoint")
}

// setup loads the configuration of cmd and installs the global logger.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, Error.Wrap(err)
	}
	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return nil, nil, Error.Wrap(err)
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
