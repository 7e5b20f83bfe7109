package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/kalambet/bookwise/internal/catalog"
	"github.com/kalambet/bookwise/internal/composer"
	"github.com/kalambet/bookwise/internal/config"
	"github.com/kalambet/bookwise/internal/engine"
	"github.com/kalambet/bookwise/internal/retrieval"
	"github.com/kalambet/bookwise/internal/storage"
)

// --- recommend ---

const recommendPath = "/api/v1/aifeatures/recommends/"

var recommendCmd = &cobra.Command{
	Use:   "recommend <question>",
	Short: "Recommend books for a question",
	Long: `Recommend books for a question.

Runs the pipeline in-process unless --remote is given, in which case the
question is sent to the running server.

Examples:
  bookwise recommend "잠들기 전에 읽기 좋은 따뜻한 소설"
  bookwise recommend --raw "파이썬 입문서"
  bookwise recommend --remote "우주에 관한 교양서"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return fmt.Errorf("question is required")
		}
		remote, _ := cmd.Flags().GetBool("remote")
		raw, _ := cmd.Flags().GetBool("raw")

		var answer string
		if remote {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			a, err := recommendRemote(cmd.Context(), client, question)
			if err != nil {
				return err
			}
			answer = a
		} else {
			a, err := recommendLocal(cmd.Context(), question)
			if err != nil {
				return err
			}
			answer = a
		}

		if raw {
			fmt.Println(answer)
			return nil
		}
		printAnswer(answer)
		return nil
	},
}

func init() {
	recommendCmd.Flags().Bool("remote", false, "ask the running server instead of running in-process")
	recommendCmd.Flags().Bool("raw", false, "print the model answer as-is")
}

func recommendRemote(ctx context.Context, client *apiClient, question string) (string, error) {
	resp, err := client.post(ctx, recommendPath, map[string]string{"question": question})
	if err != nil {
		return "", err
	}
	var out struct {
		Answer string `json:"answer"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

func recommendLocal(ctx context.Context, question string) (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	defer installLogger(cfg.Log.Level)()

	svc, err := openServices(ctx, cfg, os.Stderr)
	if err != nil {
		return "", err
	}
	defer svc.Close()
	if svc.recommender == nil {
		return "", fmt.Errorf("recommendation feature is unavailable: %w", svc.initErr)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.RecommendTimeout())
	defer cancel()
	rec, err := svc.recommender.Recommend(ctx, question)
	if err != nil {
		return "", err
	}
	printStep("category %s via %s (%d candidate books, %v)", rec.Category, rec.Path, len(rec.Items), rec.Duration.Round(time.Millisecond))
	return rec.Answer, nil
}

// printAnswer prints the model's picks, or the raw answer when it is not the
// expected JSON shape.
func printAnswer(answer string) {
	picks, err := composer.ParseRecommendations(answer)
	if err != nil {
		fmt.Println(answer)
		return
	}
	if len(picks) == 0 {
		fmt.Println("No recommendations.")
		return
	}
	for i, p := range picks {
		fmt.Printf("\n%s %s\n", colorize(colorBold, fmt.Sprintf("%d.", i+1)), colorize(colorBold, p.Title))
		if p.Author != "" {
			fmt.Printf("   %s\n", colorize(colorCyan, p.Author))
		}
		if p.Description != "" {
			fmt.Printf("   %s\n", p.Description)
		}
	}
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the category index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the category index if missing (--force rebuilds)",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		defer installLogger(cfg.Log.Level)()

		mgr, closeFn, err := openIndexManager(cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		var idx *retrieval.CategoryIndex
		if force {
			idx, err = mgr.Rebuild(cmd.Context())
		} else {
			idx, err = mgr.EnsureIndex(cmd.Context())
		}
		if err != nil {
			return err
		}
		if idx.Len() == 0 {
			printWarning("catalog has no named categories; nothing indexed")
			return nil
		}
		printSuccess("Indexed %d categories at %s", idx.Len(), mgr.Path())
		return nil
	},
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted category index and books per category",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		path := cfg.IndexPath()
		idx, err := retrieval.LoadCategoryIndex(path)
		if errors.Is(err, os.ErrNotExist) {
			printStatus("Index", "not built (%s)", path)
			return nil
		}
		if err != nil {
			return err
		}

		printStatus("Index", "%s", path)
		printStatus("Model", "%s", idx.Model())
		if idx.Model() != cfg.LLM.EmbedModel {
			printWarning("index was built with %q but llm.embed_model is %q; it will be rebuilt on next start", idx.Model(), cfg.LLM.EmbedModel)
		}
		printStatus("Categories", "%d", idx.Len())
		printStatus("Dimensions", "%d", idx.Dimensions())

		counts, err := catalogBookCounts(cmd.Context(), cfg.Catalog.DBPath)
		if err != nil {
			printWarning("book counts unavailable: %v", err)
		}
		for _, line := range categoryRows(idx.Categories(), counts) {
			fmt.Println(line)
		}
		return nil
	},
}

func catalogBookCounts(ctx context.Context, dbPath string) (map[int64]int, error) {
	cat, err := catalog.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer cat.Close()
	return cat.CountBooks(ctx)
}

// categoryRows renders one line per indexed category. counts may be nil when
// the catalog could not be read; categories without books show 0.
func categoryRows(cats []retrieval.CategoryVector, counts map[int64]int) []string {
	rows := make([]string, 0, len(cats))
	for _, c := range cats {
		id := colorize(colorCyan, fmt.Sprintf("%4d", c.ID))
		if counts == nil {
			rows = append(rows, fmt.Sprintf("    %s %s", id, c.Name))
			continue
		}
		books := fmt.Sprintf("%3d books", counts[c.ID])
		if counts[c.ID] == 0 {
			books = colorize(colorYellow, books)
		}
		rows = append(rows, fmt.Sprintf("    %s %s  %s", id, books, c.Name))
	}
	return rows
}

func openIndexManager(cfg config.Config) (*retrieval.IndexManager, func(), error) {
	cat, err := catalog.Open(cfg.Catalog.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening catalog %s: %w", cfg.Catalog.DBPath, err)
	}
	eng, err := engine.Detect(cfg.LLM)
	if err != nil {
		cat.Close()
		return nil, nil, err
	}
	embedder := retrieval.NewEmbedder(eng, cfg.LLM.EmbedModel)
	return retrieval.NewIndexManager(cat, embedder, cfg.IndexPath()), func() { cat.Close() }, nil
}

func init() {
	indexBuildCmd.Flags().Bool("force", false, "rebuild even if an index file exists")
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexStatusCmd)
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect past recommendation runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent recommendation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withStore(func(store *storage.Store) error {
			recs, err := store.RecentRecommendations(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println("No recommendations recorded.")
				return nil
			}
			for _, r := range recs {
				fmt.Printf("%s  %s  %-8s  %s  %s\n",
					colorize(colorCyan, shortID(r.ID)),
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					r.Path,
					r.Category,
					truncateRunes(r.Question, 60),
				)
			}
			return nil
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single recommendation run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *storage.Store) error {
			rec, err := store.GetRecommendation(cmd.Context(), args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no recommendation with id %s", args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(rec)
		})
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than --older-than",
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		if olderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		return withStore(func(store *storage.Store) error {
			n, err := store.PruneBefore(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			printSuccess("Deleted %d recommendation runs", n)
			return nil
		})
	},
}

func withStore(fn func(*storage.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	historyPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "age cutoff")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
}

// --- catalog ---

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Local development catalog",
}

var catalogInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Create the catalog schema at path",
	Long: `Create the articles_category and articles_book tables at path.

The production catalog belongs to the library web app; this is for local
development. --sample adds a handful of Korean books in a few categories.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sample, _ := cmd.Flags().GetBool("sample")
		var seed []catalog.SeedBook
		if sample {
			seed = catalog.SampleBooks
		}
		if err := catalog.Init(cmd.Context(), args[0], seed); err != nil {
			return err
		}
		printSuccess("Catalog ready at %s (%d sample books)", args[0], len(seed))
		return nil
	},
}

func init() {
	catalogInitCmd.Flags().Bool("sample", false, "insert sample categories and books")
	catalogCmd.AddCommand(catalogInitCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
