package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/udem-taln/nerbridge/pkg/analyser"
	"github.com/udem-taln/nerbridge/pkg/gateway"
	"github.com/udem-taln/nerbridge/pkg/models"
)

// runEvaluate hosts the gateway, waits for a worker to register and scores it against
// the annotated corpus.
func runEvaluate(ctx context.Context) error {
	cfg := loadConfig()

	size, err := models.ParseModelSize(evalSize)
	if err != nil {
		return err
	}

	f, err := os.Open(corpusFile)
	if err != nil {
		return err
	}
	lines, err := analyser.ReadLines(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("error reading %s: %w", corpusFile, err)
	}

	a := analyser.New()
	pairs := a.Format(lines, llmFormat)
	log.Infof("Evaluating %s on %d sentences", size.Method(), len(pairs))

	entry := gateway.NewEntryPoint()
	host, err := gateway.NewHost(cfg, entry)
	if err != nil {
		return err
	}
	srv := host.Server()
	serveErr, err := listen(srv)
	if err != nil {
		return fmt.Errorf("error starting gateway: %w", err)
	}
	defer shutdown(srv)

	stopped := []<-chan error{serveErr}
	if spawnWorker {
		worker, err := spawnServeWorker()
		if err != nil {
			return err
		}
		defer worker.Stop(shutdownTimeout)
		stopped = append(stopped, worker.Done())
	}

	err = awaitWorker(ctx, func(ctx context.Context) error {
		return entry.WaitForRegistration(ctx, cfg.Gateway.WaitTimeout)
	}, stopped...)
	if err != nil {
		return fmt.Errorf("no worker registered within %s: %w", cfg.Gateway.WaitTimeout, err)
	}

	start := time.Now()
	predictions, err := analyser.Predict(ctx, gateway.NewService(entry), size, pairs)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	score, err := a.Analyse(predictions)
	if err != nil {
		return err
	}
	fmt.Printf("Time (ms): %d\n", elapsed.Milliseconds())
	fmt.Printf("Accuracy (%s): %.4f\n", size.Method(), score)

	if outputFile != "" {
		return writeOutput(outputFile, analyser.OutputLines(pairs, predictions))
	}
	return nil
}

func writeOutput(path string, lines []string) error {
	log.Infof("Writing output to %s", path)
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
