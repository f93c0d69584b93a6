// Package main is the ruiji CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/cli"
	"github.com/hyperjump/ruiji/internal/config"
	"github.com/hyperjump/ruiji/internal/corpus"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/poster"
	"github.com/hyperjump/ruiji/internal/recommend"
	"github.com/hyperjump/ruiji/internal/server"
	"github.com/hyperjump/ruiji/internal/storage"
	"github.com/hyperjump/ruiji/internal/vector"
	"github.com/hyperjump/ruiji/internal/watcher"
	"github.com/hyperjump/ruiji/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/ruiji/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if it exists, so "ruiji server" from a project dir uses the project's config.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "recommend":
		runRecommend()
	case "titles":
		runTitles()
	case "status":
		runStatus()
	case "pack":
		runPack()
	case "init-config":
		runInitConfig()
	case "version", "--version", "-v":
		fmt.Printf("ruiji version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (requests, reloads, poster lookups)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.Bool("posters", cfg.Poster.Enabled()),
	)

	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Corpus.WatchOrDefault() {
		svc := components.Service
		watchSvc := watcher.NewWatcher(components.Loader.Paths(), func() {
			if _, err := svc.Reload(context.Background()); err != nil {
				logger.Warn("corpus reload after change failed, keeping previous snapshot", zap.Error(err))
			}
		}, watcher.WithLogger(logger))
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(components.Service, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printRecommendUsage prints recommend subcommand usage.
func printRecommendUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: ruiji recommend [flags] <title>\n\n")
	fmt.Fprintf(fs.Output(), "The title is all remaining arguments joined by spaces and must match a corpus title exactly.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  ruiji recommend Avatar
  ruiji recommend --top-n 10 "The Dark Knight"
  ruiji recommend --posters --output json Inception
  ruiji recommend --server "" Avatar               # read the corpus directly
`)
}

// joinArgs joins positional args with spaces so multi-word titles work with or without quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// configPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func configPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// argsReorder moves flags that appear after the positional arguments to the front so that
// flag.Parse sees them. "ruiji recommend Avatar --top-n 10" would otherwise ignore --top-n.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// maxPostersFromConfig returns poster.max_posters from the config at path, or the built-in default.
func maxPostersFromConfig(path string) int {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil {
		fallback := &config.Config{}
		config.ApplyDefaults(fallback)
		return fallback.Poster.MaxPosters
	}
	return cfg.Poster.MaxPosters
}

func runRecommend() {
	args := argsReorder(os.Args[2:])
	configPath := configPathFromArgs(args, defaultConfigPath)

	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the corpus directly)")
	topN := fs.Int("top-n", 0, "number of recommendations (0 = configured default)")
	posters := fs.Bool("posters", false, "attach poster URLs to the leading results")
	featured := fs.Int("featured", maxPostersFromConfig(configPath), "results shown in full in text output")
	outputFormat := fs.String("output", "text", "output format: text, compact (one result per line) or json")
	fs.Usage = func() { printRecommendUsage(fs) }
	_ = fs.Parse(args)

	title := joinArgs(fs.Args())
	if title == "" {
		printRecommendUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	req := models.RecommendationRequest{Title: title, TopN: *topN, Posters: *posters}
	var resp *models.RecommendationResponse
	if *serverURL != "" {
		resp, err = recommendViaHTTP(*serverURL, req)
	} else {
		resp, err = withComponents(*configPathFlag, func(c *Components) (*models.RecommendationResponse, error) {
			return c.Service.Recommend(context.Background(), req)
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRecommendations(os.Stdout, resp, format, *featured); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func recommendViaHTTP(serverURL string, req models.RecommendationRequest) (*models.RecommendationResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/recommendations", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	var out models.RecommendationResponse
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func runTitles() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("titles", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the corpus directly)")
	limit := fs.Int("limit", 20, "maximum matches when searching")
	outputFormat := fs.String("output", "text", "output format: text, compact or json")
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	query := joinArgs(fs.Args())

	if query == "" {
		var titles []string
		if *serverURL != "" {
			titles, err = titlesViaHTTP(*serverURL)
		} else {
			titles, err = withComponents(*configPath, func(c *Components) ([]string, error) {
				return c.Service.Titles()
			})
		}
		if err == nil {
			err = cli.WriteTitles(os.Stdout, titles, format)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Titles failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var matches []models.TitleMatch
	if *serverURL != "" {
		matches, err = searchTitlesViaHTTP(*serverURL, query, *limit)
	} else {
		matches, err = withComponents(*configPath, func(c *Components) ([]models.TitleMatch, error) {
			return c.Service.SearchTitles(context.Background(), query, *limit)
		})
	}
	if err == nil {
		err = cli.WriteTitleMatches(os.Stdout, matches, format)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Title search failed: %v\n", err)
		os.Exit(1)
	}
}

func titlesViaHTTP(serverURL string) ([]string, error) {
	resp, err := http.Get(serverURL + "/api/v1/titles")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	var out struct {
		Titles []string `json:"titles"`
	}
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	return out.Titles, nil
}

func searchTitlesViaHTTP(serverURL, query string, limit int) ([]models.TitleMatch, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	resp, err := http.Get(serverURL + "/api/v1/titles?" + q.Encode())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	var out struct {
		Matches []models.TitleMatch `json:"matches"`
	}
	if err := decodeResponse(resp, &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

// statusResponse is the shape of the GET /api/v1/status response.
type statusResponse struct {
	Corpus         *recommend.Status      `json:"corpus"`
	Config         map[string]interface{} `json:"config,omitempty"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the corpus directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status *statusResponse
	var err error
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		status, err = statusDirect(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		writeStatusText(os.Stdout, status)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusDirect(configPath string) (*statusResponse, error) {
	return withComponents(configPath, func(c *Components) (*statusResponse, error) {
		st, err := c.Service.Status()
		if err != nil {
			return nil, err
		}
		out := &statusResponse{Corpus: st}
		cfg := c.Config
		if diskBytes, err := storage.DiskUsageBytes(cfg.Corpus.MetadataPath, cfg.Corpus.VectorsPath, cfg.Storage.DatabasePath); err == nil {
			out.DiskUsageBytes = &diskBytes
		}
		return out, nil
	})
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	var s statusResponse
	if err := decodeResponse(resp, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func writeStatusText(w io.Writer, status *statusResponse) {
	if st := status.Corpus; st != nil {
		fmt.Fprintf(w, "items:              %d   # movies in the active snapshot\n", st.Items)
		fmt.Fprintf(w, "dimensions:         %d\n", st.Dimensions)
		fmt.Fprintf(w, "version:            %s\n", st.Version)
		if st.Fingerprint != "" {
			fmt.Fprintf(w, "fingerprint:        %s\n", st.Fingerprint)
		}
		fmt.Fprintf(w, "loaded_at:          %s\n", st.LoadedAt.Format(time.RFC3339))
		if st.DuplicateTitles > 0 {
			fmt.Fprintf(w, "duplicate_titles:   %d   # later rows are unreachable by title\n", st.DuplicateTitles)
		}
		fmt.Fprintf(w, "result_cache:       %d entries, %d hits, %d misses\n", st.ResultCache.Size, st.ResultCache.Hits, st.ResultCache.Misses)
		fmt.Fprintf(w, "posters_enabled:    %t\n", st.PostersEnabled)
		if st.PosterCache != nil {
			fmt.Fprintf(w, "poster_cache:       %d entries, %d hits, %d misses\n", st.PosterCache.Size, st.PosterCache.Hits, st.PosterCache.Misses)
		}
		if st.PosterCircuit != "" {
			fmt.Fprintf(w, "poster_circuit:     %s\n", st.PosterCircuit)
		}
		if st.IndexedTitles > 0 {
			fmt.Fprintf(w, "indexed_titles:     %d\n", st.IndexedTitles)
		}
	}
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # corpus files + poster database\n", *status.DiskUsageBytes)
	}
	if len(status.Config) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		for _, key := range []string{"metadata_path", "vectors_path", "database_path", "default_top_n", "min_top_n", "max_top_n", "watch", "poster_api_key"} {
			if v, ok := status.Config[key]; ok && v != "" {
				fmt.Fprintf(w, "%-19s %v\n", key+":", v)
			}
		}
	}
}

func runPack() {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	normalize := fs.Bool("normalize", false, "scale every vector to unit length")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() != 2 {
		fmt.Println("Usage: ruiji pack [--normalize] <vectors.csv> <vectors.bin|vectors.bin.zst>")
		os.Exit(1)
	}
	n, zero, err := packVectors(fs.Arg(0), fs.Arg(1), *normalize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pack failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Packed %d vector(s) into %s\n", n, fs.Arg(1))
	if zero > 0 {
		fmt.Printf("Warning: %d zero vector(s) left unnormalized; they score 0 against everything\n", zero)
	}
}

// packVectors converts a CSV of "id,v1,v2,..." rows into the binary corpus format.
// Returns the row count and, when normalizing, the number of zero rows.
func packVectors(in, out string, normalize bool) (int, int, error) {
	f, err := os.Open(in)
	if err != nil {
		return 0, 0, fmt.Errorf("open %s: %w", in, err)
	}
	defer f.Close()
	ids, vectors, err := vector.ReadVectorsCSV(f)
	if err != nil {
		return 0, 0, err
	}
	zero := 0
	if normalize {
		zero = utils.NormalizeRows(vectors)
	}
	if err := vector.SaveFile(out, ids, vectors); err != nil {
		return 0, 0, err
	}
	return len(ids), zero, nil
}

func runInitConfig() {
	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])
	path := "config.yaml"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if err := writeStarterConfig(path, *force); err != nil {
		fmt.Fprintf(os.Stderr, "init-config failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", path)
}

// writeStarterConfig saves a config holding every default to path.
func writeStarterConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return config.Save(path, cfg)
}

func decodeResponse(resp *http.Response, v interface{}) error {
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Config  *config.Config
	Loader  *corpus.FileLoader
	Holder  *corpus.Holder
	Storage *storage.SQLiteStorage
	Posters *poster.Service
	Service *recommend.Service
}

func (c *Components) Close() {
	if c.Service != nil {
		_ = c.Service.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// withComponents loads config and components for a one-shot command and runs fn against them.
func withComponents[T any](configPath string, fn func(*Components) (T, error)) (T, error) {
	var zero T
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return zero, err
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return zero, err
	}
	defer logger.Sync()
	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		return zero, err
	}
	defer components.Close()
	return fn(components)
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	loader := corpus.NewFileLoader(cfg.Corpus.MetadataPath, cfg.Corpus.VectorsPath)
	holder := corpus.NewHolder(loader, corpus.WithLogger(logger))
	if _, err := holder.Reload(ctx); err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}

	c := &Components{Config: cfg, Loader: loader, Holder: holder}
	posterOpts := []poster.ServiceOption{
		poster.WithCache(cfg.Poster.CacheSize, cfg.Poster.CacheTTL),
		poster.WithServiceLogger(logger),
	}
	if cfg.Storage.DatabasePath != "" {
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		c.Storage = store
		posterOpts = append(posterOpts, poster.WithStore(store))
	}

	var fetcher poster.Fetcher
	if cfg.Poster.Enabled() {
		fetcher = poster.NewClient(cfg.Poster, poster.WithLogger(logger))
	}
	c.Posters = poster.NewService(fetcher, posterOpts...)
	if n, err := c.Posters.PurgeExpired(ctx); err != nil {
		logger.Warn("poster purge failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("purged expired posters", zap.Int64("count", n))
	}

	c.Service = recommend.NewService(holder, cfg.Recommend,
		recommend.WithLogger(logger),
		recommend.WithPosters(c.Posters, cfg.Poster.MaxPosters),
	)
	return c, nil
}

func printUsage() {
	fmt.Println(`ruiji - content-based movie recommendations

Usage:
  ruiji server [flags]               Start the HTTP server
  ruiji recommend [flags] <title>    Recommend movies similar to a title
  ruiji titles [flags] [query]       List titles, or search them when a query is given
  ruiji status [flags]               Show corpus and cache status
  ruiji pack [flags] <csv> <out>     Convert a CSV of vectors to the binary corpus format
  ruiji init-config [path]           Write a config file with every default
  ruiji version                      Show version
  ruiji help                         Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/ruiji/config.yaml)
  --debug            Enable debug logging

Recommend Flags:
  --config string    Config file path (for direct mode; also supplies --featured default)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to read the corpus directly.
  --top-n int        Number of recommendations (default from config)
  --posters          Attach poster URLs to the leading results
  --featured int     Results shown in full in text output (default: poster.max_posters)
  --output string    Output format: text, compact or json (default: text)

Titles Flags:
  --server string    Server URL, as for recommend
  --limit int        Maximum matches when searching (default: 20)
  --output string    Output format: text, compact or json

Status Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL, as for recommend
  --output string    Output format: text or json (default: text)

Pack Flags:
  --normalize        Scale every vector to unit length

Examples:
  ruiji server
  ruiji recommend Avatar
  ruiji recommend --top-n 10 --posters "The Dark Knight"
  ruiji recommend --output json Inception
  ruiji titles dark knight
  ruiji status --output json
  ruiji pack --normalize vectors.csv movie_vectors.bin.zst
  ruiji init-config ./config.yaml`)
}
