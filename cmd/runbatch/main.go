package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
)

type runView struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Provider string   `json:"provider"`
	Prompts  []string `json:"prompts"`
	Progress struct {
		Completed int `json:"completed"`
		Total     int `json:"total"`
	} `json:"progress"`
	Outcomes []struct {
		PromptIndex int    `json:"prompt_index"`
		Prompt      string `json:"prompt"`
		State       string `json:"state"`
		ArtifactURL string `json:"artifact_url"`
		Message     string `json:"message"`
	} `json:"outcomes"`
	ErrorMessage string `json:"error_message"`
}

func main() {
	var (
		serverFlag   string
		refFlag      string
		productFlag  string
		setFlag      string
		providerFlag string
		titleFlag    string
		fileFlag     string
		workersFlag  int
		watchFlag    bool
	)

	flag.StringVar(&serverFlag, "server", "http://localhost:8080", "API base URL")
	flag.StringVar(&refFlag, "ref", "", "reference image URL")
	flag.StringVar(&productFlag, "product", "", "product ID to take the reference image from")
	flag.StringVar(&setFlag, "set", "", "prompt set ID to load the batch from")
	flag.StringVar(&providerFlag, "provider", "", "generation provider (server default when empty)")
	flag.StringVar(&titleFlag, "title", "", "run title")
	flag.StringVar(&fileFlag, "f", "", "file with one prompt per line")
	flag.IntVar(&workersFlag, "workers", 0, "parallel workers (server default when 0)")
	flag.BoolVar(&watchFlag, "watch", false, "follow run events until the run finishes")
	flag.Parse()

	prompts := append([]string(nil), flag.Args()...)
	if fileFlag != "" {
		fromFile, err := readPrompts(fileFlag)
		if err != nil {
			exitWithError(err)
		}
		prompts = append(prompts, fromFile...)
	}
	if len(prompts) == 0 && setFlag == "" {
		exitWithError(errors.New("at least one prompt argument (or -f / -set) is required"))
	}
	if refFlag == "" && productFlag == "" && setFlag == "" {
		exitWithError(errors.New("either -ref, -product or -set must be provided"))
	}

	payload := map[string]any{
		"title":         titleFlag,
		"product_id":    productFlag,
		"prompt_set_id": setFlag,
		"reference_url": refFlag,
		"provider":      providerFlag,
		"prompts":       prompts,
		"workers":       workersFlag,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		exitWithError(fmt.Errorf("failed to encode request: %w", err))
	}

	base := strings.TrimRight(serverFlag, "/")
	resp, err := http.Post(base+"/v1/runs", "application/json", bytes.NewReader(body))
	if err != nil {
		exitWithError(fmt.Errorf("failed to reach server: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		exitWithError(fmt.Errorf("submit failed: %w", apiError(resp)))
	}

	var run runView
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		exitWithError(fmt.Errorf("failed to decode response: %w", err))
	}
	fmt.Printf("run %s submitted: %d prompts via %s\n", run.ID, len(run.Prompts), run.Provider)

	if !watchFlag {
		return
	}
	watch(base, run.ID)
}

func watch(base, runID string) {
	resp, err := http.Get(base + "/v1/runs/" + runID + "/events")
	if err != nil {
		exitWithError(fmt.Errorf("failed to open event stream: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		exitWithError(fmt.Errorf("event stream failed: %w", apiError(resp)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	seen := 0
	var last runView
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var view runView
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &view); err != nil {
			continue
		}
		last = view
		for ; seen < len(view.Outcomes); seen++ {
			outcome := view.Outcomes[seen]
			detail := outcome.ArtifactURL
			if outcome.State != "succeeded" {
				detail = outcome.Message
			}
			fmt.Printf("[%d/%d] prompt %02d %s: %s\n",
				view.Progress.Completed, view.Progress.Total,
				outcome.PromptIndex+1, outcome.State, detail)
		}
		if view.Status != "running" {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		exitWithError(fmt.Errorf("event stream interrupted: %w", err))
	}

	fmt.Printf("run %s finished: %s (%d/%d)\n", last.ID, last.Status, last.Progress.Completed, last.Progress.Total)
	if last.ErrorMessage != "" {
		fmt.Fprintln(os.Stderr, last.ErrorMessage)
	}
	if last.Status != "done" {
		os.Exit(1)
	}
}

func readPrompts(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}
	var prompts []string
	for _, line := range strings.Split(string(data), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			prompts = append(prompts, trimmed)
		}
	}
	return prompts, nil
}

func apiError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error.Code == "" {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
