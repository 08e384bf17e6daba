package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eresh-mittal/ImageProc/internal/constants"
	"github.com/eresh-mittal/ImageProc/pkg/api/v1/client"
	"github.com/eresh-mittal/ImageProc/pkg/api/v1/routes"
)

// flag names
const (
	flagServerAddress = "server-address"
)

var (
	// apiClient is the shared API client instance
	apiClient client.Client
	// serverAddress holds the target API server address. Flag parsing sets this.
	serverAddress string
	// newClient builds the API client; tests replace it with a mock
	newClient = client.NewClient
)

// initClient initializes the API client
func initClient() error {
	var err error
	opts := client.DefaultOptions()
	opts.BaseURL = serverAddress

	apiClient, err = newClient(opts)
	return err
}

func init() {
	// PersistentPreRunE handles the env var override
	RootCmd.PersistentFlags().StringVarP(&serverAddress, flagServerAddress, "s", routes.DefaultBaseURL,
		"Address of the ImageProc API server (env: "+constants.EnvServerAddress+")")

	RootCmd.AddCommand(GetJobsCmd())
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "imageproc",
	Short: "ImageProc CLI - A command line interface for the ImageProc API",
	Long: `ImageProc CLI submits product CSV files for image processing,
follows their progress and aborts them through the ImageProc API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Flag > Env Var > Default
		if !cmd.Flags().Changed(flagServerAddress) {
			if envAddr := os.Getenv(constants.EnvServerAddress); envAddr != "" {
				serverAddress = envAddr
			}
		}

		if serverAddress == "" {
			return fmt.Errorf("server address cannot be empty")
		}
		return initClient()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return RootCmd.Execute()
}
