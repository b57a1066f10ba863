package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"nakasem/internal"
	"nakasem/internal/catalog"
	"nakasem/internal/config"
	"nakasem/internal/connectors"
	"nakasem/internal/listener"
	"nakasem/internal/logging"
	"nakasem/internal/ocr"
	"nakasem/internal/pipeline"
	"nakasem/internal/storage"
	"nakasem/internal/util"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	must(err)
	defer func() { _ = log.Sync() }()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runner := ocr.NewExecRunner(log)
	processor := pipeline.NewProcessingService(db, cfg, ocr.NewTesseract(cfg, runner, log), ocr.NewPdftoppm(cfg, runner), log)

	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "catalog:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "catalog file (.yaml, .json backup or .xlsx)")
		replace := fs.Bool("replace", false, "clear stored clients, products and prices first")
		_ = fs.Parse(args)
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		stats, err := catalog.NewImportService(db, log).ImportFile(*file, catalog.ImportOptions{Replace: *replace})
		must(err)
		fmt.Printf("catalog import done clients=%d products=%d prices=%d orphanPrices=%d\n", stats.Clients, stats.Products, stats.Prices, stats.OrphanPrices)
	case "notes:extract":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "document path (.pdf, image or .txt)")
		accept := fs.Bool("accept", false, "store the notes as accepted")
		quiet := fs.Bool("quiet", false, "do not print progress")
		_ = fs.Parse(args)
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		var progress pipeline.ProgressFunc
		if !*quiet {
			progress = func(p int) { fmt.Fprintf(os.Stderr, "\rprogress %3d%%", p) }
		}
		res, err := processor.ExtractFile(ctx, *input, *accept, progress)
		if progress != nil {
			fmt.Fprintln(os.Stderr)
		}
		must(err)
		for _, note := range res.Saved {
			printNote(note)
		}
		for _, skipped := range res.Skipped {
			fmt.Printf("  skipped code=%s line=%d reason=%s\n", skipped.Code, skipped.LineNo, skipped.Reason)
		}
		for _, failed := range res.FailedPages {
			fmt.Printf("  failed %v\n", failed)
		}
		fmt.Printf("extract done pages=%d notes=%d\n", res.Pages, len(res.Saved))
	case "notes:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		status := fs.String("status", "", "pending|accepted (default all)")
		_ = fs.Parse(args)
		notes, err := db.ListNotes(storage.NoteFilter{Status: internal.NoteStatus(*status)})
		must(err)
		for _, note := range notes {
			printNote(note)
		}
		fmt.Printf("%d notes\n", len(notes))
	case "notes:accept":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "note id")
		all := fs.Bool("all", false, "accept every pending note")
		_ = fs.Parse(args)
		switch {
		case *all:
			n, err := processor.AcceptAllPending()
			must(err)
			fmt.Printf("accepted %d notes\n", n)
		case strings.TrimSpace(*id) != "":
			must(processor.Accept(*id))
			fmt.Printf("accepted %s\n", *id)
		default:
			must(fmt.Errorf("--id or --all is required"))
		}
	case "notes:delete":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "note id")
		_ = fs.Parse(args)
		if strings.TrimSpace(*id) == "" {
			must(fmt.Errorf("--id is required"))
		}
		must(db.DeleteNote(*id))
		fmt.Printf("deleted %s\n", *id)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		status := fs.String("status", string(internal.NoteAccepted), "pending|accepted|all")
		_ = fs.Parse(args)
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		filter := storage.NoteFilter{Status: internal.NoteStatus(*status)}
		if *status == "all" {
			filter.Status = ""
		}
		notes, err := db.ListNotes(filter)
		must(err)
		if len(notes) == 0 {
			must(fmt.Errorf("no notes with status=%s", *status))
		}
		must(pipeline.ExportNotesToXLSX(notes, *out))
		fmt.Printf("exported %d notes to %s\n", len(notes), *out)
	case "backup:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output json path")
		_ = fs.Parse(args)
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		f, err := os.Create(*out)
		must(err)
		err = processor.ExportBackup(f)
		closeErr := f.Close()
		must(err)
		must(closeErr)
		fmt.Printf("backup written to %s\n", *out)
	case "backup:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "backup json path")
		replace := fs.Bool("replace", false, "clear stored clients, products and prices first")
		_ = fs.Parse(args)
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}
		f, err := os.Open(*file)
		must(err)
		stats, err := processor.ImportBackup(f, catalog.ImportOptions{Replace: *replace})
		_ = f.Close()
		must(err)
		fmt.Printf("backup import done clients=%d products=%d prices=%d notes=%d known=%d\n",
			stats.Clients, stats.Products, stats.Prices, stats.Notes, stats.KnownNotes)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(args)
		conn, err := listener.NewConnector(ctx, cfg, *provider, log)
		must(err)
		result, err := connectors.NewFetchService(db, cfg.RawMailDir, conn, log).FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d known=%d\n", *provider, result.Fetched, result.Stored, result.Known)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(args)
		p, err := connectors.NormalizeProvider(*provider)
		must(err)
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(ctx, p, *messageID)
			must(err)
			fmt.Printf("processed email id=%d status=%s notes=%d\n", res.EmailID, res.Status, res.Notes)
			return
		}
		emails, notes, err := processor.ProcessPending(ctx, *batch, p)
		must(err)
		fmt.Printf("processed pending emails=%d notes=%d\n", emails, notes)
	case "mail:listen":
		log.Info("mail listener started", zap.String("provider", cfg.MailListenerProvider), zap.Int("intervalSec", cfg.MailListenerIntervalSec))
		must(listener.NewService(db, cfg, processor, log).Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

func printNote(note internal.DeliveryNote) {
	marker := " "
	if !note.Recognized() {
		marker = "?"
	}
	fmt.Printf("%s %s  %-8s  %-10s  %-10s  %s  items=%d  revenue=%.2f\n",
		marker, note.ID, note.Status, util.Deref(note.DocNumber), util.Deref(note.DocDate), note.ClientName,
		len(note.Items), internal.RoundMoney(note.TotalRevenue))
}

func usage() {
	fmt.Println("usage: nakasem <command>")
	fmt.Println("commands:")
	fmt.Println("  catalog:import --file=catalog.yaml|backup.json|catalog.xlsx [--replace]")
	fmt.Println("  notes:extract --input=note.pdf [--accept] [--quiet]")
	fmt.Println("  notes:list [--status=pending|accepted]")
	fmt.Println("  notes:accept --id=... | --all")
	fmt.Println("  notes:delete --id=...")
	fmt.Println("  export:xlsx --out=./out/notes.xlsx [--status=accepted|pending|all]")
	fmt.Println("  backup:export --out=backup.json")
	fmt.Println("  backup:import --file=backup.json [--replace]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
