package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mrcloudchase/inference-runtime/session"
	"github.com/mrcloudchase/inference-runtime/util/json"
	"github.com/mrcloudchase/inference-runtime/util/signalx"
)

var Version = "v0.0.0"

var (
	modelPath         string
	prompt            string
	configPath        string
	maxTokens         uint
	temperature       float64
	topK              uint
	topP              float64
	repetitionPenalty float64
	repetitionWindow  uint
	seed              uint64
	hasSeed           bool
	stream            bool
	inJSON            bool
)

// samplingConfig holds the subset of sampling flags a --config YAML file
// may set; CLI flags explicitly passed on the command line override it.
type samplingConfig struct {
	Temperature       *float64 `yaml:"temperature"`
	TopK              *uint    `yaml:"top_k"`
	TopP              *float64 `yaml:"top_p"`
	RepetitionPenalty *float64 `yaml:"repetition_penalty"`
	RepetitionWindow  *uint    `yaml:"repetition_window"`
}

func loadSamplingConfig(c *cli.Context) error {
	if configPath == "" {
		return nil
	}
	b, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var cfg samplingConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return fmt.Errorf("parse config %q: %w", configPath, err)
	}

	if cfg.Temperature != nil && !c.IsSet("temperature") {
		temperature = *cfg.Temperature
	}
	if cfg.TopK != nil && !c.IsSet("top-k") {
		topK = *cfg.TopK
	}
	if cfg.TopP != nil && !c.IsSet("top-p") {
		topP = *cfg.TopP
	}
	if cfg.RepetitionPenalty != nil && !c.IsSet("repetition-penalty") {
		repetitionPenalty = *cfg.RepetitionPenalty
	}
	if cfg.RepetitionWindow != nil && !c.IsSet("repetition-window") {
		repetitionWindow = *cfg.RepetitionWindow
	}
	return nil
}

func main() {
	name := filepath.Base(os.Args[0])
	app := &cli.App{
		Name:                   name,
		Usage:                  "Run LLaMA-family GGUF inference from the command line.",
		UsageText:              name + " [global options]",
		Version:                Version,
		UseShortOptionHandling: true,
		HideVersion:            true,
		HideHelp:               true,
		Reader:                 os.Stdin,
		Writer:                 os.Stdout,
		ErrWriter:              os.Stderr,
		OnUsageError: func(c *cli.Context, _ error, _ bool) error {
			return cli.ShowAppHelp(c)
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:               "help",
				Aliases:            []string{"h"},
				Usage:              "Print the usage.",
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "Print the version.",
				DisableDefaultText: true,
			},
			&cli.StringFlag{
				Destination: &modelPath,
				Category:    "Model",
				Name:        "model",
				Aliases:     []string{"m"},
				Usage:       "Path to the GGUF file to load, e.g. ./models/llama-3-8b.Q4_0.gguf.",
				Required:    true,
			},
			&cli.StringFlag{
				Destination: &prompt,
				Category:    "Generate",
				Name:        "prompt",
				Aliases:     []string{"p"},
				Usage:       "Prompt text to complete.",
			},
			&cli.StringFlag{
				Destination: &configPath,
				Category:    "Sampling",
				Name:        "config",
				Usage:       "Path to a YAML file of sampling defaults, overridden by any flag also given explicitly.",
			},
			&cli.UintFlag{
				Destination: &maxTokens,
				Value:       64,
				Category:    "Generate",
				Name:        "max-tokens",
				Aliases:     []string{"n"},
				Usage:       "Maximum number of tokens to generate.",
			},
			&cli.Float64Flag{
				Destination: &temperature,
				Value:       1,
				Category:    "Sampling",
				Name:        "temperature",
				Aliases:     []string{"t"},
				Usage:       "Softmax temperature; 1 leaves logits unscaled.",
			},
			&cli.UintFlag{
				Destination: &topK,
				Category:    "Sampling",
				Name:        "top-k",
				Usage:       "Keep only the k highest-logit tokens; 0 disables.",
			},
			&cli.Float64Flag{
				Destination: &topP,
				Category:    "Sampling",
				Name:        "top-p",
				Usage:       "Keep the smallest prefix of tokens whose cumulative probability exceeds p; 0 disables.",
			},
			&cli.Float64Flag{
				Destination: &repetitionPenalty,
				Category:    "Sampling",
				Name:        "repetition-penalty",
				Usage:       "Penalty applied to recently generated tokens' logits; 0 disables.",
			},
			&cli.UintFlag{
				Destination: &repetitionWindow,
				Value:       64,
				Category:    "Sampling",
				Name:        "repetition-window",
				Usage:       "Number of recent tokens the repetition penalty considers.",
			},
			&cli.Uint64Flag{
				Category: "Sampling",
				Name:     "seed",
				Usage:    "Seed a deterministic categorical sampler instead of greedy argmax.",
				Action: func(_ *cli.Context, v uint64) error {
					seed, hasSeed = v, true
					return nil
				},
			},
			&cli.BoolFlag{
				Destination: &stream,
				Category:    "Output",
				Name:        "stream",
				Usage:       "Print each generated piece as soon as it is produced.",
			},
			&cli.BoolFlag{
				Destination: &inJSON,
				Category:    "Output",
				Name:        "json",
				Usage:       "Print the result and stats as JSON instead of a table.",
			},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("help") {
				return cli.ShowAppHelp(c)
			}
			if c.Bool("version") {
				cli.ShowVersion(c)
				return nil
			}
			if err := loadSamplingConfig(c); err != nil {
				return err
			}
			return run(c.Context)
		},
	}

	if err := app.RunContext(signalx.Handler(), os.Args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	s := session.New()
	defer s.Close()

	if st := s.Load(modelPath); st != session.Ok {
		return fmt.Errorf("load %q: %s: %s", modelPath, st, s.LastError())
	}

	params := session.Params{
		MaxTokens:         uint32(maxTokens),
		Temperature:       float32(temperature),
		TopK:              uint32(topK),
		TopP:              float32(topP),
		RepetitionPenalty: float32(repetitionPenalty),
		RepetitionWindow:  int(repetitionWindow),
	}
	if hasSeed {
		params.Seed = &seed
	}

	var out strings.Builder
	var st session.Status
	if stream {
		st = s.GenerateStreaming(ctx, prompt, params, func(piece string) bool {
			fmt.Print(piece)
			out.WriteString(piece)
			return true
		})
		fmt.Println()
	} else {
		var text string
		text, st = s.Generate(ctx, prompt, params)
		out.WriteString(text)
	}
	if st != session.Ok {
		return fmt.Errorf("generate: %s: %s", st, s.LastError())
	}

	stats := s.Stats()
	if inJSON {
		return printJSON(out.String(), stats)
	}
	if !stream {
		fmt.Println(out.String())
	}
	tprint(stats)
	return nil
}

func printJSON(text string, stats session.Stats) error {
	b, err := json.Marshal(struct {
		Text            string `json:"text"`
		PromptTokens    int    `json:"prompt_tokens"`
		GeneratedTokens int    `json:"generated_tokens"`
	}{text, stats.PromptTokens, stats.GeneratedTokens})
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func tprint(stats session.Stats) {
	tb := tablewriter.NewWriter(os.Stdout)
	tb.SetTablePadding("\t")
	tb.SetAlignment(tablewriter.ALIGN_CENTER)
	tb.SetHeaderLine(true)
	tb.SetRowLine(true)
	tb.SetHeader([]string{"Prompt Tokens", "Generated Tokens"})
	tb.Append([]string{
		fmt.Sprintf("%d", stats.PromptTokens),
		fmt.Sprintf("%d", stats.GeneratedTokens),
	})
	tb.Render()
}
