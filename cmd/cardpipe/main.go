// cardpipe runs the card pipeline offline: transcript in, blueprint and
// generated code out. Useful for prompt work without the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"dreamcard/internal/agents"
	"dreamcard/internal/llm"
)

func main() {
	transcript := flag.String("transcript", "", "path to a chat transcript file")
	outDir := flag.String("out", "out", "output directory")
	model := flag.String("model", "gemini-2.5-flash", "Gemini model id")
	useFake := flag.Bool("fake", false, "use the canned fake backend instead of Gemini")
	edit := flag.String("edit", "", "optional edit request applied after the first generation")
	trace := flag.Bool("trace", false, "print every prompt and response")
	flag.Parse()
	if *transcript == "" {
		log.Fatal("--transcript is required")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal(err)
	}

	raw, err := os.ReadFile(*transcript)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	cli := buildClient(ctx, *useFake, *model)
	defer cli.Close()

	if *trace {
		ctx = llm.WithHook(ctx, printHook{})
	}

	architect := &agents.Architect{LLM: cli}
	engineer := &agents.Engineer{LLM: cli}

	log.Println("Architect")
	bp, err := architect.FromTranscript(ctx, string(raw))
	if err != nil {
		log.Fatal(err)
	}
	writeJSON(*outDir, "blueprint.json", bp)

	log.Println("Engineer")
	art, err := engineer.Generate(ctx, bp, "", nil)
	if err != nil {
		log.Fatal(err)
	}
	writeFile(*outDir, "App.tsx", art.Code)

	if *edit != "" {
		log.Printf("Iterate: %s", *edit)
		iterator := &agents.Iterator{
			LLM:      cli,
			Engineer: engineer,
			Watcher:  &agents.Watcher{Engineer: engineer},
		}
		next, err := iterator.Apply(ctx, *edit, art)
		if err != nil {
			log.Fatal(err)
		}
		writeJSON(*outDir, "blueprint_edited.json", next.Blueprint)
		writeFile(*outDir, "App_edited.tsx", next.Code)
	}

	log.Println("pipeline completed →", *outDir)
}

func buildClient(ctx context.Context, useFake bool, model string) llm.LLMClient {
	var base llm.LLMClient
	if useFake {
		base = llm.NewFakeClient().
			Respond("architect", `{"heading":"For your loved one","themeName":"warm"}`).
			Respond("engineer", "function Card() {\n  return null;\n}").
			Respond("realign", "function Card() {\n  return null;\n}")
	} else {
		_ = godotenv.Load()
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			log.Fatal("GEMINI_API_KEY is not set (or pass --fake)")
		}
		cli, err := llm.NewGeminiClient(ctx, apiKey, model)
		if err != nil {
			log.Fatal(err)
		}
		base = cli
	}

	return llm.Wrap(base,
		llm.RateLimitFromEnv("LLM"),
		llm.Retry(3, 500*time.Millisecond),
		llm.WithLogging(nil),
		llm.WithHooks(),
	)
}

// printHook dumps every prompt and response to stderr for prompt debugging.
type printHook struct{}

func (printHook) Before(_ context.Context, phase, prompt string, input any) {
	fmt.Fprintf(os.Stderr, "--- %s prompt ---\n%s\n", phase, prompt)
	if input != nil {
		b, _ := json.MarshalIndent(input, "", "  ")
		fmt.Fprintf(os.Stderr, "--- %s input ---\n%s\n", phase, b)
	}
}

func (printHook) After(_ context.Context, phase string, output []byte, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "--- %s error: %v ---\n", phase, err)
		return
	}
	fmt.Fprintf(os.Stderr, "--- %s output ---\n%s\n", phase, output)
}

func writeJSON(dir, name string, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
		log.Fatal(err)
	}
}

func writeFile(dir, name, content string) {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		log.Fatal(err)
	}
}
