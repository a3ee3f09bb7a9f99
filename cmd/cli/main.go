package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/wadjakorntonsri/go-link-tracker/pkg/adapters/repository"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/config"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/core/services"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/logging"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/ports"
	"gopkg.in/yaml.v3"
)

const usage = "usage: cli <create|delete|list|export|import> [flags]"

func main() {
	cfg := config.Load()
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx := context.Background()
	repo, err := repository.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to open link store", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	tokens := services.NewRandomTokenGenerator(repo, cfg.TokenLength, cfg.TokenMaxAttempts)
	svc := services.NewLinkService(repo, tokens, logger, cfg.TokenMaxAttempts)

	if err := run(ctx, svc, cfg, os.Args[1:], os.Stdout, logger); err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		repo.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, svc ports.LinkService, cfg *config.Config, args []string, out io.Writer, logger *slog.Logger) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("create", flag.ContinueOnError)
		dest := fs.String("url", "", "destination URL")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		link, err := svc.CreateLink(ctx, *dest)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\t%s\t%s\n", link.ID, link.Token, cfg.TrackerURL(link.Token))
		return nil

	case "delete":
		fs := flag.NewFlagSet("delete", flag.ContinueOnError)
		id := fs.String("id", "", "token or id:<n>")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if err := svc.DeleteLink(ctx, *id); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %s\n", *id)
		return nil

	case "list":
		links, err := svc.ListLinks(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTOKEN\tCLICKS\tCREATED\tDESTINATION")
		for _, l := range links {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", l.ID, l.Token, l.ClickCount, l.CreatedAt.Format("2006-01-02 15:04"), l.DestinationURL)
		}
		return tw.Flush()

	case "export":
		fs := flag.NewFlagSet("export", flag.ContinueOnError)
		format := fs.String("format", "json", "json or yaml")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		links, err := svc.ListLinks(ctx)
		if err != nil {
			return err
		}
		return encodeLinks(out, *format, links)

	case "import":
		fs := flag.NewFlagSet("import", flag.ContinueOnError)
		file := fs.String("file", "", "file to import")
		format := fs.String("format", "", "json or yaml (default: from file extension)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *file == "" {
			return fmt.Errorf("%w: -file is required", domain.ErrInvalidInput)
		}
		imported, skipped, err := importFile(ctx, svc, *file, *format, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "imported %d links, skipped %d\n", imported, skipped)
		return nil

	default:
		return fmt.Errorf("unknown command %q: %s", args[0], usage)
	}
}

func encodeLinks(w io.Writer, format string, links []domain.TrackerLink) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(links)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(links)
	default:
		return fmt.Errorf("%w: unsupported format %q", domain.ErrInvalidInput, format)
	}
}

func decodeLinks(r io.Reader, format string) ([]domain.TrackerLink, error) {
	var links []domain.TrackerLink
	switch strings.ToLower(format) {
	case "json":
		if err := json.NewDecoder(r).Decode(&links); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&links); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", domain.ErrInvalidInput, format)
	}
	return links, nil
}

func formatFromPath(path string) string {
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		return "yaml"
	}
	return "json"
}

// importFile keeps tokens, click counts and creation times. Tokens that
// already exist are skipped so an import can be re-run safely.
func importFile(ctx context.Context, svc ports.LinkService, path, format string, logger *slog.Logger) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	if format == "" {
		format = formatFromPath(path)
	}
	links, err := decodeLinks(f, format)
	if err != nil {
		return 0, 0, err
	}

	var imported, skipped int
	for i := range links {
		link := links[i]
		err := svc.ImportLink(ctx, &link)
		switch {
		case err == nil:
			imported++
		case domain.IsDuplicateToken(err):
			logger.Info("skipping existing token", "token", link.Token)
			skipped++
		case domain.IsInvalidInput(err):
			logger.Warn("skipping invalid record", "token", link.Token, "error", err)
			skipped++
		default:
			return imported, skipped, err
		}
	}
	return imported, skipped, nil
}
