package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/udem-taln/nerbridge/config"
	"github.com/udem-taln/nerbridge/internal"
	"github.com/udem-taln/nerbridge/pkg/models"
)

var (
	log = internal.GetLogger()

	cfgFile     string
	showVersion bool
	dumpConfig  bool
	generateKey bool

	processSize   string
	processTarget string
	evalSize      string
	corpusFile    string
	outputFile    string
	llmFormat     bool
	spawnWorker   bool
)

var cmd = &cobra.Command{
	Use:   "nerbridge",
	Short: "nerbridge serves spaCy named entity labels to remote callers over a gateway",
	Run:   func(cmd *cobra.Command, args []string) { runWorker(cmd.Context()) },
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a worker and register it with the gateway",
	Run:   func(cmd *cobra.Command, args []string) { runWorker(cmd.Context()) },
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the gateway host workers register with",
	Run:   func(cmd *cobra.Command, args []string) { runGateway(cmd.Context()) },
}

var processCmd = &cobra.Command{
	Use:     "process [sentence]",
	Short:   "Label the entities of one sentence with a local model",
	Example: `nerbridge process --size lg --target "Paris" "Alice moved to Paris."`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd.Context(), args[0])
	},
}

var evaluateCmd = &cobra.Command{
	Use:     "evaluate",
	Short:   "Score a registered worker against an annotated corpus",
	Long: `Hosts the gateway, waits for a worker to register and scores it against an
annotated corpus. With --spawn-worker the worker is started as a child process using
the same config file.`,
	Example: "nerbridge evaluate --file corpus.txt --size md --output labels.txt",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEvaluate(cmd.Context())
	},
}

var dumpJsonSchemaCmd = &cobra.Command{
	Use:       "json-schema [config|labels]",
	Short:     "Generates JSON Schema for the configuration file or the labels document",
	Example:   "nerbridge json-schema > nerbridge_config_schema.json",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"config", "labels"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			schema []byte
			err    error
		)
		if len(args) == 1 && args[0] == "labels" {
			schema, err = config.ReflectSchema(&models.LabelsResponse{})
		} else {
			schema, err = config.JSONSchema()
		}
		if err != nil {
			return err
		}
		fmt.Println(string(schema))
		return nil
	},
}

func init() {
	cmd.AddCommand(serveCmd)
	cmd.AddCommand(gatewayCmd)
	cmd.AddCommand(processCmd)
	cmd.AddCommand(evaluateCmd)
	cmd.AddCommand(dumpJsonSchemaCmd)

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default config.yaml)")
	cmd.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "print version number")
	cmd.PersistentFlags().BoolVarP(&dumpConfig, "dump-config", "d", false, "dump config")
	cmd.PersistentFlags().
		BoolVarP(&generateKey, "generate-token", "g", false, "generate a new JWT token")

	processCmd.Flags().StringVarP(&processSize, "size", "s", "sm", "model size: sm, md or lg")
	processCmd.Flags().StringVarP(&processTarget, "target", "t", "", "only report entities with this text")

	evaluateCmd.Flags().StringVarP(&corpusFile, "file", "f", "", "annotated corpus, one sentence per line")
	evaluateCmd.Flags().StringVarP(&evalSize, "size", "s", "lg", "model size: sm, md or lg")
	evaluateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "write '<LABELS>: <sentence>' lines here")
	evaluateCmd.Flags().BoolVar(
		&llmFormat,
		"llm",
		false,
		"mark the target as [[target]] in each sentence, for workers that prompt an LLM rather than run a spaCy model",
	)
	evaluateCmd.Flags().BoolVar(&spawnWorker, "spawn-worker", false, "start a 'nerbridge serve' worker and stop it when done")
	_ = evaluateCmd.MarkFlagRequired("file")
}

// Execute executes the root cobra command.
func Execute() {
	log.SetLevel(logrus.InfoLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		os.Exit(1)
	}
}
