// Command aspects-demo runs small hook scenarios against a shape hierarchy.
package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/codysoyland/aspecthooks/pkg/aspects"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "aspects-demo",
	Short: "Run before, instead and after hook scenarios on a shape hierarchy.",
	Long: `aspects-demo hooks the area method of Rectangle and Square objects ` +
		`and prints what runs, in order. Set ASPECTS_VERBOSE=1 in the ` +
		`environment or in a .env file to see engine logs.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadEnv(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose engine logs (default $ASPECTS_VERBOSE)")
	for _, s := range scenarios {
		rootCmd.AddCommand(scenarioCommand(s))
	}
	rootCmd.AddCommand(allCmd)
}

func newEngine() (*aspects.Engine, error) {
	return aspects.New(aspects.WithVerbose(verbose))
}

// loadEnv reads .env from the working directory, then applies
// ASPECTS_VERBOSE unless --verbose was given.
func loadEnv(cmd *cobra.Command) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	if !cmd.Flags().Changed("verbose") {
		verbose = envBool("ASPECTS_VERBOSE")
	}
}

func envBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
