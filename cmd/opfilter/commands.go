package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/rendis/opfilter/internal/diagram"
	"github.com/rendis/opfilter/internal/expressions"
	"github.com/rendis/opfilter/internal/graph"
	"github.com/rendis/opfilter/internal/hydrate"
	"github.com/rendis/opfilter/internal/logging"
	"github.com/rendis/opfilter/internal/predicate"
	"github.com/rendis/opfilter/internal/store"
	"github.com/rendis/opfilter/internal/validation"
	"github.com/rendis/opfilter/pkg/schema"
)

// --- run ---

func runFilter(ctx context.Context, cfg Config, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	condPath := fs.String("condition", "", "condition document (JSON or YAML, - for stdin)")
	itemsPath := fs.String("items", "", "items to filter: a JSON or YAML array (- for stdin)")
	ctxPath := fs.String("context", "", "ambient context document read by \"/...\" paths")
	itemsSchema := fs.String("items-schema", "", "JSON Schema the items document must satisfy")
	entityType := fs.String("entity-type", "", "filter stored entities of this type instead of -items")
	dbPath := fs.String("db", cfg.DBPath, "entity store path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *condPath == "" {
		return errors.New("run: -condition is required")
	}
	if (*itemsPath == "") == (*entityType == "") {
		return errors.New("run: exactly one of -items or -entity-type is required")
	}

	logger := logging.NewLogger(stderr, logging.ParseLevel(cfg.LogLevel))
	ctx = logging.WithIDs(ctx, filterName(*condPath), uuid.NewString())

	engines, err := expressions.NewRegistry()
	if err != nil {
		return err
	}
	cv, err := validation.NewConditionValidator(engines)
	if err != nil {
		return err
	}
	condJSON, err := loadCondition(*condPath, stdin)
	if err != nil {
		return err
	}
	cond, err := cv.ValidateCondition(condJSON)
	if err != nil {
		return err
	}

	deps := predicate.Dependencies{Engines: engines, Logger: logger, MaxParallel: cfg.MaxParallel}
	p, err := predicate.Build(cond, deps)
	if err != nil {
		return err
	}

	var st *store.EntityStore
	if *dbPath != "" {
		if st, err = openStore(ctx, *dbPath); err != nil {
			return err
		}
		defer st.Close()
	} else if *entityType != "" {
		return errors.New("run: -entity-type needs an entity store (-db or OPFILTER_DB_PATH)")
	}

	var data any
	if *ctxPath != "" {
		if data, err = loadDocument(*ctxPath, stdin); err != nil {
			return err
		}
		data = graph.LinkReferences(data)
	}
	var inc graph.Includer
	var hydrator *hydrate.Includer
	if st != nil {
		hydrator = hydrate.New(st, hydrate.Options{Logger: logger})
		inc = hydrator
	}
	pc := predicate.NewProviderContext(data, inc, deps)

	var items iter.Seq[any]
	var sourceErr error
	if *entityType != "" {
		items = func(yield func(any) bool) {
			for e, err := range st.ListEntities(ctx, *entityType) {
				if err != nil {
					sourceErr = err
					return
				}
				if !yield(e) {
					return
				}
			}
		}
	} else {
		list, err := loadItems(*itemsPath, stdin)
		if err != nil {
			return err
		}
		if *itemsSchema != "" {
			raw, err := readInput(*itemsSchema, stdin)
			if err != nil {
				return fmt.Errorf("read items schema: %w", err)
			}
			if err := cv.ValidateDocument(list, raw); err != nil {
				return err
			}
		}
		for i, item := range list {
			list[i] = graph.LinkReferences(item)
		}
		items = func(yield func(any) bool) {
			for _, item := range list {
				if !yield(item) {
					return
				}
			}
		}
	}

	enc := json.NewEncoder(stdout)
	matched := 0
	for item, err := range predicate.FilterLazy(ctx, items, p, pc) {
		if err != nil {
			return err
		}
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("write match: %w", err)
		}
		matched++
	}
	if sourceErr != nil {
		return sourceErr
	}

	attrs := []any{slog.Int("matched", matched)}
	if hydrator != nil {
		stats := hydrator.Stats()
		attrs = append(attrs, slog.Group("hydration",
			slog.Int64("fetches", stats.Fetches),
			slog.Int64("cache_hits", stats.CacheHits),
			slog.Int64("retries", stats.Retries)))
	}
	logger.InfoContext(ctx, "filter run completed", attrs...)
	return nil
}

// --- validate ---

func runValidate(_ context.Context, _ Config, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	condPath := fs.String("condition", "", "condition document (JSON or YAML, - for stdin)")
	rootAlias := fs.String("root-alias", predicate.DefaultRootAlias, "alias bound to the root scope")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *condPath == "" {
		return errors.New("validate: -condition is required")
	}

	engines, err := expressions.NewRegistry()
	if err != nil {
		return err
	}
	cv, err := validation.NewConditionValidator(engines)
	if err != nil {
		return err
	}
	condJSON, err := loadCondition(*condPath, stdin)
	if err != nil {
		return err
	}

	_, result := cv.WithRootAlias(*rootAlias).Validate(condJSON)
	for _, issue := range result.Errors {
		fmt.Fprintf(stdout, "error   %s\n", issue)
	}
	for _, issue := range result.Warnings {
		fmt.Fprintf(stdout, "warning %s\n", issue)
	}
	if !result.Valid() {
		return errInvalid
	}
	fmt.Fprintln(stdout, "condition is valid")
	return nil
}

// --- explain ---

func runExplain(ctx context.Context, cfg Config, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("explain", flag.ContinueOnError)
	fs.SetOutput(stderr)
	condPath := fs.String("condition", "", "condition document (JSON or YAML, - for stdin)")
	format := fs.String("format", "ascii", "output format: ascii, mermaid, png or svg")
	itemPath := fs.String("item", "", "sample item; annotates each condition with its result")
	ctxPath := fs.String("context", "", "ambient context document read by \"/...\" paths")
	outPath := fs.String("o", "", "write the diagram to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *condPath == "" {
		return errors.New("explain: -condition is required")
	}

	engines, err := expressions.NewRegistry()
	if err != nil {
		return err
	}
	cv, err := validation.NewConditionValidator(engines)
	if err != nil {
		return err
	}
	condJSON, err := loadCondition(*condPath, stdin)
	if err != nil {
		return err
	}
	cond, err := cv.ValidateCondition(condJSON)
	if err != nil {
		return err
	}

	model, err := diagram.Build(cond, filterName(*condPath))
	if err != nil {
		return err
	}

	if *itemPath != "" {
		item, err := loadDocument(*itemPath, stdin)
		if err != nil {
			return err
		}
		var data any
		if *ctxPath != "" {
			if data, err = loadDocument(*ctxPath, stdin); err != nil {
				return err
			}
		}
		logger := logging.NewLogger(stderr, logging.ParseLevel(cfg.LogLevel))
		deps := predicate.Dependencies{Engines: engines, Logger: logger, MaxParallel: cfg.MaxParallel}
		pc := predicate.NewProviderContext(graph.LinkReferences(data), nil, deps)
		item = graph.LinkReferences(item)
		diagram.Overlay(model, func(c *schema.Condition) (bool, error) {
			match, err := predicate.CompileCondition[any](ctx, c, pc)
			if err != nil {
				return false, err
			}
			return match(ctx, item)
		})
	}

	var out []byte
	switch *format {
	case "ascii":
		out = []byte(diagram.RenderASCII(model))
	case "mermaid":
		out = []byte(diagram.RenderMermaid(model))
	case diagram.FormatPNG, diagram.FormatSVG:
		if out, err = diagram.RenderImage(ctx, model, *format); err != nil {
			return err
		}
	default:
		return fmt.Errorf("explain: unknown format %q", *format)
	}

	if *outPath != "" {
		return os.WriteFile(*outPath, out, 0o644)
	}
	_, err = stdout.Write(out)
	return err
}

// --- import ---

func runImport(ctx context.Context, cfg Config, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "entities: an array of {\"type\", \"id\", \"properties\"} objects (- for stdin)")
	entityType := fs.String("type", "", "type for entries that carry none")
	dbPath := fs.String("db", cfg.DBPath, "entity store path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" || *dbPath == "" {
		return errors.New("import: -file and an entity store (-db or OPFILTER_DB_PATH) are required")
	}

	list, err := loadItems(*file, stdin)
	if err != nil {
		return err
	}
	entities := make([]*graph.Entity, 0, len(list))
	for i, raw := range list {
		e, err := toEntity(raw, *entityType)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		entities = append(entities, e)
	}

	st, err := openStore(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, e := range entities {
		if err := st.PutEntity(ctx, e); err != nil {
			return err
		}
	}
	fmt.Fprintf(stdout, "imported %d entities\n", len(entities))
	return nil
}

func toEntity(raw any, defaultType string) (*graph.Entity, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.New("expected an object")
	}
	e := &graph.Entity{Type: defaultType}
	if t, ok := m["type"].(string); ok && t != "" {
		e.Type = t
	}
	id, ok := m["id"].(string)
	if !ok {
		if n, isNum := m["id"].(json.Number); isNum {
			id, ok = n.String(), true
		}
	}
	if !ok || id == "" || e.Type == "" {
		return nil, errors.New("entity requires a type and an id")
	}
	e.ID = id
	if props, present := m["properties"]; present {
		pm, ok := props.(map[string]any)
		if !ok {
			return nil, errors.New("properties must be an object")
		}
		e.Properties = pm
	}
	return e, nil
}

// --- helpers ---

func openStore(ctx context.Context, path string) (*store.EntityStore, error) {
	dsn := path
	if !strings.Contains(path, ":") {
		dsn = "file:" + path
	}
	st, err := store.NewEntityStore(dsn)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate entity store: %w", err)
	}
	return st, nil
}

// filterName derives the filter id logged with every record.
func filterName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
