package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/VISHAAL-1/ai-interview-platform/internal/pipeline"
)

var evalCmd = &cobra.Command{
	Use:   "eval <audio-file>",
	Short: "Evaluate one recorded answer and print progress events",
	Long: `Runs the full evaluation pipeline against a local audio file using the
same configuration as serve. Progress events are printed to stdout as JSON
lines; the command fails when the run ends with an error event.`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

var (
	evalQuestion    string
	evalInterviewID int64
)

func init() {
	evalCmd.Flags().StringVar(&evalQuestion, "question", "", "interview question the answer responds to")
	evalCmd.Flags().Int64Var(&evalInterviewID, "interview-id", 0, "interview id to store the evaluation under")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	comps, err := buildComponents(ctx, cfg, &linePrinter{w: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	defer comps.Close()

	return comps.pipeline.Run(ctx, pipeline.Clip{
		RoomID:      "cli",
		InterviewID: evalInterviewID,
		Question:    evalQuestion,
		Audio:       data,
	})
}

// linePrinter is a Broadcaster writing each event as one JSON line.
type linePrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *linePrinter) Broadcast(_ string, msg any) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, string(b))
}
