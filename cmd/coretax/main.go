package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"coretax/internal"
	"coretax/internal/archive"
	"coretax/internal/cache"
	"coretax/internal/config"
	"coretax/internal/connectors"
	gmailconnector "coretax/internal/connectors/gmail"
	imapconnector "coretax/internal/connectors/imap"
	"coretax/internal/listener"
	"coretax/internal/pipeline"
	"coretax/internal/report"
	"coretax/internal/server"
	"coretax/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	setupLogger(cfg.LogLevel)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	switch cmd {
	case "parse":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "PDF file or folder of PDFs")
		jsonOut := fs.String("json", "", "write the batch result as JSON to this path (- for stdout)")
		xlsxOut := fs.String("xlsx", "", "write items and summary to this xlsx path")
		store := fs.Bool("store", true, "persist results in the local database")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}

		files, err := collectInputs(*input)
		must(err)

		parser := pipeline.NewParserFromConfig(cfg)
		batch := parser.ParseMany(ctx, files)
		printSummary(os.Stdout, batch)

		if *store {
			db, err := storage.Open(cfg.DBPath)
			must(err)
			defer db.Close()
			_, err = pipeline.NewProcessingService(db, parser, sinks(cfg)...).Record(ctx, files, batch, internal.SourceCLI, nil)
			must(err)
		}
		if *jsonOut != "" {
			must(writeJSONReport(*jsonOut, batch))
		}
		if *xlsxOut != "" {
			must(pipeline.ExportResultsToXLSX(batch.Results, *xlsxOut))
			fmt.Printf("exported %d documents to %s\n", batch.TotalFiles, *xlsxOut)
		}
	case "serve":
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		parser := newParser(ctx, cfg)
		processor := pipeline.NewProcessingService(db, parser, sinks(cfg)...)
		srv := server.New(cfg, parser, server.WithRecorder(processor))
		must(srv.Run(ctx))
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])

		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d known=%d\n", *provider, result.Fetched, result.Stored, result.Known)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "", "gmail|imap (empty for all)")
		messageID := fs.String("messageId", "", "specific message-id")
		batchSize := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])

		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		processor := pipeline.NewProcessingService(db, newParser(ctx, cfg), sinks(cfg)...)
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(ctx, *provider, *messageID)
			must(err)
			fmt.Printf("processed email id=%d skipped=%t documents=%d failed=%d items=%d\n", res.EmailID, res.Skipped, res.Documents, res.Failed, res.Items)
			return
		}
		emails, documents, err := processor.ProcessPending(ctx, *batchSize, *provider)
		must(err)
		fmt.Printf("processed pending emails=%d documents=%d\n", emails, documents)
	case "mail:listen":
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		processor := pipeline.NewProcessingService(db, newParser(ctx, cfg), sinks(cfg)...)
		must(listener.NewService(db, cfg, processor).Run(ctx))
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		documentID := fs.Int("documentId", 0, "stored document id")
		emailID := fs.Int("emailId", 0, "export every document of one email")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if (*documentID == 0 && *emailID == 0) || strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out and one of --documentId or --emailId are required"))
		}

		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		ids := []int{*documentID}
		if *emailID != 0 {
			docs, err := db.ListDocumentsByEmail(*emailID)
			must(err)
			ids = ids[:0]
			for _, d := range docs {
				ids = append(ids, d.ID)
			}
		}
		if len(ids) == 0 {
			must(fmt.Errorf("no documents for emailId=%d", *emailID))
		}
		results := make([]internal.ParseResult, 0, len(ids))
		for _, id := range ids {
			res, err := db.LoadResult(id)
			must(err)
			results = append(results, res)
		}
		must(pipeline.ExportResultsToXLSX(results, *out))
		fmt.Printf("exported %d documents to %s\n", len(results), *out)
	default:
		usage()
		os.Exit(1)
	}
}

// newParser adds the Redis result cache when REDIS_URL is set.
func newParser(ctx context.Context, cfg config.Config) *pipeline.Parser {
	if cfg.RedisURL == "" {
		return pipeline.NewParserFromConfig(cfg)
	}
	client, err := cache.Dial(ctx, cfg.RedisURL)
	if err != nil {
		slog.Warn("redis unavailable, parsing without cache", "error", err)
		return pipeline.NewParserFromConfig(cfg)
	}
	return pipeline.NewParserFromConfig(cfg, pipeline.WithCache(cache.NewRedisCache(client, cache.WithTTL(cfg.CacheTTL))))
}

// sinks opens the Postgres archive when DATABASE_URL is set.
func sinks(cfg config.Config) []pipeline.ResultSink {
	if cfg.DatabaseURL == "" {
		return nil
	}
	store, err := archive.Open(cfg.DatabaseURL)
	if err != nil {
		slog.Warn("archive unavailable", "error", err)
		return nil
	}
	return []pipeline.ResultSink{store}
}

func writeJSONReport(path string, batch internal.BatchResult) error {
	if path == "-" {
		return report.WriteJSON(os.Stdout, batch)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteJSON(f, batch); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func setupLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: coretax <command>")
	fmt.Println("commands:")
	fmt.Println("  parse --input=<file.pdf|folder> [--json=out.json] [--xlsx=out.xlsx] [--store=true]")
	fmt.Println("  serve")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process [--provider=gmail|imap] [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  export:xlsx --documentId=1|--emailId=1 --out=./out/result.xlsx")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
