package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/VISHAAL-1/ai-interview-platform/internal/audio"
	"github.com/VISHAAL-1/ai-interview-platform/internal/pipeline"
)

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Submit answers from concurrent rooms and report pipeline latency",
	Long: `Each worker joins its own room on a running gateway and submits answers
back to back until the duration elapses. Latency is measured from sending
audio_data to the transcript and to the terminal evaluation or error event.`,
	Args: cobra.NoArgs,
	RunE: runLoadtest,
}

var (
	ltGateway     string
	ltRooms       int
	ltDuration    time.Duration
	ltAudioDir    string
	ltQuestion    string
	ltCallTimeout time.Duration
)

func init() {
	f := loadtestCmd.Flags()
	f.StringVar(&ltGateway, "gateway", "ws://localhost:8000", "gateway base URL")
	f.IntVar(&ltRooms, "rooms", 10, "number of concurrent rooms")
	f.DurationVar(&ltDuration, "duration", 30*time.Second, "test duration")
	f.StringVar(&ltAudioDir, "audio-dir", "", "directory with sample recordings; synthetic audio when empty")
	f.StringVar(&ltQuestion, "question", "Tell me about yourself.", "question sent with every answer")
	f.DurationVar(&ltCallTimeout, "call-timeout", 2*time.Minute, "max wait for a terminal event")
	rootCmd.AddCommand(loadtestCmd)
}

type callResult struct {
	success      bool
	transcriptMs float64
	totalMs      float64
	err          string
}

func runLoadtest(cmd *cobra.Command, args []string) error {
	files, err := findAudioFiles(ltAudioDir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Load test: %d rooms for %s against %s\n", ltRooms, ltDuration, ltGateway)
	if len(files) == 0 {
		fmt.Fprintln(out, "No sample recordings, using synthetic audio")
	}

	var mu sync.Mutex
	var results []callResult
	var wg sync.WaitGroup
	deadline := time.Now().Add(ltDuration)

	for i := range ltRooms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			url := strings.TrimRight(ltGateway, "/") + fmt.Sprintf("/ws/loadtest-%d", i)
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				mu.Lock()
				results = append(results, callResult{err: fmt.Sprintf("dial: %v", err)})
				mu.Unlock()
				return
			}
			defer conn.Close()

			for time.Now().Before(deadline) {
				r := runAnswer(conn, answerMessage(files, ltQuestion), ltCallTimeout)
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
				if r.err != "" && strings.HasPrefix(r.err, "read:") {
					return
				}
			}
		}()
	}

	wg.Wait()
	printSummary(out, results)
	return nil
}

// runAnswer submits one answer and waits for its terminal event. Every
// worker owns its room so all events on conn belong to this answer.
func runAnswer(conn *websocket.Conn, msg []byte, timeout time.Duration) callResult {
	start := time.Now()
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return callResult{err: fmt.Sprintf("send: %v", err)}
	}

	var res callResult
	_ = conn.SetReadDeadline(start.Add(timeout))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			res.err = fmt.Sprintf("read: %v", err)
			return res
		}
		var ev pipeline.Event
		if err = json.Unmarshal(data, &ev); err != nil {
			continue
		}
		elapsed := float64(time.Since(start).Microseconds()) / 1000
		switch ev.Type {
		case pipeline.EventTranscript:
			res.transcriptMs = elapsed
		case pipeline.EventEvaluation:
			res.success = true
			res.totalMs = elapsed
			return res
		case pipeline.EventError:
			res.err = ev.Message
			res.totalMs = elapsed
			return res
		}
	}
}

func answerMessage(files []string, question string) []byte {
	msg, _ := json.Marshal(map[string]any{
		"type":         "audio_data",
		"question":     question,
		"interview_id": nil,
		"data":         base64.StdEncoding.EncodeToString(answerAudio(files)),
	})
	return msg
}

func answerAudio(files []string) []byte {
	if len(files) > 0 {
		data, err := os.ReadFile(files[rand.Intn(len(files))])
		if err == nil {
			return data
		}
	}
	return syntheticAnswer(3 * time.Second)
}

// syntheticAnswer is a 16 kHz mono WAV of a 440 Hz tone with light noise.
func syntheticAnswer(dur time.Duration) []byte {
	const sampleRate = 16000
	samples := make([]float32, int(dur.Seconds()*sampleRate))
	for i := range samples {
		t := float64(i) / sampleRate
		samples[i] = float32(math.Sin(2*math.Pi*440*t)*0.3 + (rand.Float64()-0.5)*0.05)
	}
	return audio.SamplesToWAV(samples, sampleRate)
}

var audioExts = map[string]bool{".wav": true, ".webm": true, ".ogg": true, ".mp3": true, ".flac": true}

func findAudioFiles(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read audio dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && audioExts[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

func printSummary(w io.Writer, results []callResult) {
	var succeeded, failed int
	var transcriptAll, e2eAll []float64
	errs := map[string]int{}

	for _, r := range results {
		if !r.success {
			failed++
			errs[r.err]++
			continue
		}
		succeeded++
		transcriptAll = append(transcriptAll, r.transcriptMs)
		e2eAll = append(e2eAll, r.totalMs)
	}

	fmt.Fprintf(w, "\n=== Load Test Results ===\n")
	fmt.Fprintf(w, "Answers evaluated: %d\n", succeeded)
	fmt.Fprintf(w, "Answers failed:    %d\n", failed)
	for msg, n := range errs {
		fmt.Fprintf(w, "  %4d  %s\n", n, msg)
	}

	if len(e2eAll) == 0 {
		fmt.Fprintln(w, "No successful answers to report latency")
		return
	}

	fmt.Fprintf(w, "\n%-10s %8s %8s %8s\n", "Stage", "p50", "p95", "p99")
	fmt.Fprintf(w, "%-10s %6.0fms %6.0fms %6.0fms\n", "Transcript", percentile(transcriptAll, 50), percentile(transcriptAll, 95), percentile(transcriptAll, 99))
	fmt.Fprintf(w, "%-10s %6.0fms %6.0fms %6.0fms\n", "E2E", percentile(e2eAll, 50), percentile(e2eAll, 95), percentile(e2eAll, 99))
}

func percentile(data []float64, pct float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sort.Float64s(data)
	idx := int(math.Ceil(pct/100*float64(len(data)))) - 1
	idx = max(0, min(idx, len(data)-1))
	return data[idx]
}
