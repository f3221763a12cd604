package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/hanpama/graphjit/internal/jit"
	"github.com/hanpama/graphjit/internal/otel"
	"github.com/hanpama/graphjit/internal/schema"
	"github.com/hanpama/graphjit/internal/server"
)

const rootUsage = `graphjit — GraphQL query JIT compiler & tools

USAGE:
  graphjit <command> [flags]

COMMANDS:
  serve            Run an HTTP GraphQL endpoint over a compiled-query cache
  exec             Compile and execute one query against an SDL schema
  explain          Print the compiled plan listing for a query
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -schema.file <file>        GraphQL SDL schema file (required)
  -server.addr <addr>        HTTP listen address (default: :8080)
  -server.pretty             Pretty-print JSON responses
  -server.timeout <duration> Per-request timeout, e.g. 10s (default: 10s)
  -server.cache-entries <n>  Compiled-plan cache size (default: 1024)
  -otel.endpoint <addr>      OTLP collector endpoint
  -otel.service <name>       OpenTelemetry service name (default: graphjit)
`

const execUsage = `exec FLAGS:
  -schema.file <file>  GraphQL SDL schema file (required)
  -query <text>        Query text (required)
  -variables <json>    Variable values as a JSON object
  -root <json>         Root value as a JSON object
`

const explainUsage = `explain FLAGS:
  -schema.file <file>  GraphQL SDL schema file (required)
  -query <text>        Query text (required)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("graphjit", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs)
	case "exec":
		return cmdExec(cmdArgs)
	case "explain":
		return cmdExplain(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Print(serveUsage)
	case "exec":
		fmt.Print(execUsage)
	case "explain":
		fmt.Print(explainUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

func loadSchema(path string) (*schema.Schema, error) {
	if path == "" {
		return nil, fmt.Errorf("-schema.file is required")
	}
	sdl, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	sch, err := schema.BuildFromSDL(string(sdl))
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	return sch, nil
}

func cmdServe(args []string) error {
	schemaFile := ""
	addr := ":8080"
	pretty := false
	timeout := 10 * time.Second
	cacheEntries := int64(1024)
	otelEndpoint := ""
	otelService := "graphjit"

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&schemaFile, "schema.file", schemaFile, "GraphQL SDL schema file")
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", timeout, "Per-request timeout")
	fs.Int64Var(&cacheEntries, "server.cache-entries", cacheEntries, "Compiled-plan cache size")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	sch, err := loadSchema(schemaFile)
	if err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}

	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	sopts := []server.Option{server.WithCacheEntries(cacheEntries)}
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if timeout > 0 {
		sopts = append(sopts, server.WithTimeout(timeout))
	}
	h, err := server.New(sch, sopts...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)

	log.Printf("GraphQL server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func cmdExec(args []string) error {
	schemaFile := ""
	query := ""
	variablesJSON := ""
	rootJSON := ""

	fs := flag.NewFlagSet("exec", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&schemaFile, "schema.file", schemaFile, "GraphQL SDL schema file")
	fs.StringVar(&query, "query", query, "Query text")
	fs.StringVar(&variablesJSON, "variables", variablesJSON, "Variable values as JSON")
	fs.StringVar(&rootJSON, "root", rootJSON, "Root value as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, execUsage)
		return err
	}
	if query == "" {
		fmt.Fprint(os.Stderr, execUsage)
		return fmt.Errorf("-query is required")
	}

	sch, err := loadSchema(schemaFile)
	if err != nil {
		fmt.Fprint(os.Stderr, execUsage)
		return err
	}

	var variables map[string]any
	if variablesJSON != "" {
		if err := json.Unmarshal([]byte(variablesJSON), &variables); err != nil {
			return fmt.Errorf("invalid -variables JSON: %w", err)
		}
	}
	var root any
	if rootJSON != "" {
		if err := json.Unmarshal([]byte(rootJSON), &root); err != nil {
			return fmt.Errorf("invalid -root JSON: %w", err)
		}
	}

	compiler, err := jit.NewCompiler(sch)
	if err != nil {
		return err
	}
	exe, err := compiler.Compile(context.Background(), query)
	if err != nil {
		return err
	}
	for _, w := range exe.Warnings() {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}

	result := exe.Execute(context.Background(), root, nil, variables)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func cmdExplain(args []string) error {
	schemaFile := ""
	query := ""

	fs := flag.NewFlagSet("explain", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&schemaFile, "schema.file", schemaFile, "GraphQL SDL schema file")
	fs.StringVar(&query, "query", query, "Query text")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, explainUsage)
		return err
	}
	if query == "" {
		fmt.Fprint(os.Stderr, explainUsage)
		return fmt.Errorf("-query is required")
	}

	sch, err := loadSchema(schemaFile)
	if err != nil {
		fmt.Fprint(os.Stderr, explainUsage)
		return err
	}

	compiler, err := jit.NewCompiler(sch)
	if err != nil {
		return err
	}
	exe, err := compiler.Compile(context.Background(), query)
	if err != nil {
		return err
	}
	for _, w := range exe.Warnings() {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	fmt.Println(exe.Describe())
	return nil
}
