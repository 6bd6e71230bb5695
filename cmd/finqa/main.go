package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"finqa/internal/config"
	"finqa/internal/domain"
	"finqa/internal/logging"
	"finqa/internal/service"
	"finqa/internal/tui"
)

type options struct {
	configPath  string
	file        string
	question    string
	batchFile   string
	interactive bool
	loadStore   bool
	storePath   string
	logLevel    string
	topK        int
}

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "finqa",
		Short: "Ask questions about 10-K and XBRL filings",
		Long: "finqa indexes PDF annual reports and XBRL or inline XBRL filings, " +
			"then answers questions about them with a language model, citing the chunks it used.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.file == "" && opts.question == "" && opts.batchFile == "" && !opts.interactive && !opts.loadStore {
				return cmd.Help()
			}
			err := run(cmd, opts)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Path to YAML or TOML config (default ./config.yaml or ~/.config/finqa/config.yaml)")
	f.StringVarP(&opts.file, "file", "f", "", "Financial document to process (.pdf, .xml, .xbrl, .htm, .html)")
	f.StringVarP(&opts.question, "question", "q", "", "Question to ask")
	f.StringVar(&opts.batchFile, "batch", "", "File with one question per line")
	f.BoolVarP(&opts.interactive, "interactive", "i", false, "Start interactive mode")
	f.BoolVar(&opts.loadStore, "load-store", false, "Load the saved vector store before anything else")
	f.StringVar(&opts.storePath, "store", "", "Vector store path prefix (overrides store.path)")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	f.IntVarP(&opts.topK, "top-k", "k", 0, "Chunks retrieved per question (overrides retrieval.top_k)")
	return cmd
}

func run(cmd *cobra.Command, opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	var logOut io.Writer = os.Stderr
	if opts.interactive {
		logOut = io.Discard
	}
	logger, closer, err := logging.New(cfg.Logging, logOut)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx := cmd.Context()
	needsAnswers := opts.question != "" || opts.batchFile != "" || opts.interactive
	bot, err := buildBot(ctx, cfg, needsAnswers, logger)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	timeout := time.Duration(cfg.Generator.TimeoutSecs) * time.Second

	if opts.loadStore {
		fmt.Fprintln(out, "Loading existing vector store...")
		if err := bot.LoadVectorStore(cfg.Store.Path); err != nil {
			return fmt.Errorf("failed to load vector store %s: %w", cfg.Store.Path, err)
		}
		fmt.Fprintf(out, "Vector store loaded: %d chunks\n", bot.Stats().TotalChunks)
	}

	var summary string
	if opts.file != "" {
		fmt.Fprintf(out, "Processing document: %s\n", opts.file)
		res, err := bot.ProcessDocument(ctx, opts.file)
		if err != nil {
			return err
		}
		summary = res.Summary
		fmt.Fprintf(out, "Processed %s: %d chunks indexed of %d\n", filepath.Base(res.Path), res.Added, res.Chunks)
		if res.Summary != "" {
			fmt.Fprintf(out, "Summary: %s\n", res.Summary)
		}
		if err := bot.SaveVectorStore(cfg.Store.Path); err != nil {
			return fmt.Errorf("failed to save vector store: %w", err)
		}
		fmt.Fprintf(out, "Vector store saved to %s\n", cfg.Store.Path)
	}

	if opts.question != "" {
		qctx, cancel := context.WithTimeout(ctx, timeout)
		ans, err := bot.AskQuestion(qctx, opts.question)
		cancel()
		if err != nil {
			return explain(err)
		}
		fmt.Fprintf(out, "Question: %s\n", opts.question)
		printAnswer(out, ans)
	}

	if opts.batchFile != "" {
		data, err := os.ReadFile(opts.batchFile)
		if err != nil {
			return err
		}
		if bot.State() == service.StateEmpty {
			return explain(domain.ErrNotIndexed)
		}
		bctx, cancel := context.WithTimeout(ctx, timeout*time.Duration(max(1, strings.Count(string(data), "\n")+1)))
		defer cancel()
		for _, r := range bot.AskBatch(bctx, strings.Split(string(data), "\n")) {
			fmt.Fprintf(out, "\nQuestion: %s\n", r.Question)
			if r.Err != nil {
				fmt.Fprintf(out, "Error: %v\n", r.Err)
				continue
			}
			printAnswer(out, r.Answer)
		}
	}

	if opts.interactive {
		if bot.State() == service.StateEmpty {
			return explain(domain.ErrNotIndexed)
		}
		if _, err := tea.NewProgram(tui.New(bot, summary, timeout), tea.WithAltScreen()).Run(); err != nil {
			return err
		}
	}
	return nil
}

func loadConfig(opts options) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if opts.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(opts.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.storePath != "" {
		cfg.Store.Path = opts.storePath
	}
	if opts.topK > 0 {
		cfg.Retrieval.TopK = opts.topK
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, nil
}

func printAnswer(out io.Writer, ans *domain.Answer) {
	fmt.Fprintf(out, "\nAnswer: %s\n", ans.Answer)
	fmt.Fprintf(out, "Confidence: %.2f\n", ans.Confidence)
	fmt.Fprintf(out, "Sources used: %d\n", ans.ContextUsed)
	for i, s := range ans.Sources {
		fmt.Fprintf(out, "  [%d] %s (%s) score=%.3f\n", i+1, filepath.Base(s.Chunk.Source), s.Chunk.Location(), s.Score)
	}
}

func explain(err error) error {
	if errors.Is(err, domain.ErrNotIndexed) {
		return fmt.Errorf("%w: process a document with --file or use --load-store first", err)
	}
	return err
}

// logStartup records the assembled components.
func logStartup(logger *log.Logger, cfg *config.AppConfig, embedder domain.Embedder, generator domain.Generator) {
	e := logger.Info().
		Str("embedder", embedder.Name()).
		Int("dimension", embedder.Dimension()).
		Int("chunk_size", cfg.Chunker.Size).
		Int("chunk_overlap", cfg.Chunker.Overlap).
		Str("store", cfg.Store.Path)
	if generator != nil {
		e = e.Str("generator", generator.Name())
	}
	e.Msg("finqa ready")
}
