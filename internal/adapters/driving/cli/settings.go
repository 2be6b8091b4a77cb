package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure AI providers, retrieval, chunking and storage options.

Use subcommands to change single values or run the interactive wizard.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure providers and query settings step by step.`,
	RunE:  runSettingsWizard,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Set a single setting by its config key, for example:

  thinkrag settings set query.top_k 8
  thinkrag settings set reranker.kind cross_encoder
  thinkrag settings set query.response_mode tree_summarize

Run 'thinkrag settings set --keys' to list every key.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if settingsListKeys {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: runSettingsSet,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Configure the embedding provider used to index and retrieve chunks.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Configure the LLM provider used to generate answers.`,
	RunE:  runSettingsLLM,
}

var settingsListKeys bool

func init() {
	settingsSetCmd.Flags().BoolVar(&settingsListKeys, "keys", false, "list the settable keys")
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	// Embedding settings
	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	if settings.Embedding.Provider == domain.AIProviderOllama {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		printAPIKey(cmd, settings.Embedding.APIKey)
	}
	printStatus(cmd, settings.Embedding.IsConfigured())
	cmd.Println()

	// LLM settings
	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.LLM.Model)
	if settings.LLM.Provider == domain.AIProviderOllama {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	if settings.LLM.Provider.RequiresAPIKey() {
		printAPIKey(cmd, settings.LLM.APIKey)
	}
	printStatus(cmd, settings.LLM.IsConfigured())
	cmd.Println()

	// Query settings
	q := settings.Query
	cmd.Println("[Query]")
	cmd.Printf("  Response Mode: %s\n", q.ResponseMode.Description())
	cmd.Printf("  Top K: %d\n", q.TopK)
	cmd.Printf("  Temperature: %.2f\n", q.Temperature)
	cmd.Printf("  Context Window: %d characters\n", q.ContextWindow)
	if q.Reranker.Resolve().Enabled() {
		cmd.Printf("  Reranker: on\n")
		cmd.Printf("  Top N: %d\n", q.TopN)
		cmd.Printf("  Reranker Model: %s\n", q.Reranker.Model)
		if q.Reranker.BaseURL != "" {
			cmd.Printf("  Reranker URL: %s\n", q.Reranker.BaseURL)
		}
	} else {
		cmd.Printf("  Reranker: off\n")
	}
	cmd.Println()

	// Chunking and storage
	cmd.Println("[Chunking]")
	cmd.Printf("  Chunk Size: %d\n", settings.Chunking.ChunkSize)
	cmd.Printf("  Overlap: %d\n", settings.Chunking.Overlap)
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Backend: %s\n", settings.Storage.Backend)
	if settings.Storage.Path != "" {
		cmd.Printf("  Path: %s\n", settings.Storage.Path)
	}
	cmd.Println()

	// Validation
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'thinkrag settings wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func printAPIKey(cmd *cobra.Command, key string) {
	if key != "" {
		cmd.Printf("  API Key: %s\n", maskAPIKey(key))
	} else {
		cmd.Printf("  API Key: (not set)\n")
	}
}

func printStatus(cmd *cobra.Command, configured bool) {
	status := "configured"
	if !configured {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Println("ThinkRAG Settings Wizard")
	cmd.Println("========================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	// Step 1: Embedding provider
	cmd.Println("Step 1: Configure Embedding Provider")
	cmd.Println("------------------------------------")
	if err := configureEmbeddingProvider(cmd, reader); err != nil {
		return err
	}

	// Step 2: LLM provider
	cmd.Println("Step 2: Configure LLM Provider")
	cmd.Println("------------------------------")
	if err := configureLLMProvider(cmd, reader); err != nil {
		return err
	}

	// Step 3: Query settings
	cmd.Println("Step 3: Configure Query Settings")
	cmd.Println("--------------------------------")
	if err := configureQuery(cmd, reader); err != nil {
		return err
	}

	// Final validation
	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("All settings are valid and saved.")
	}

	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureEmbeddingProvider(cmd, reader)
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureLLMProvider(cmd, reader)
}

//nolint:dupl // Similar to configureLLMProvider but for embeddings - intentional for CLI flow clarity
func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	// Get model
	defaults := domain.DefaultEmbeddingModels()
	defaultModel := defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// Get API key if needed
	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key (empty uses the environment): ")
		apiKey = readPassword(reader)
		cmd.Println()
	}

	if err := settingsService.SetEmbeddingProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

//nolint:dupl // Similar to configureEmbeddingProvider but for LLM - intentional for CLI flow clarity
func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select LLM Provider")
	providers := domain.AllLLMProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	// Get model
	defaults := domain.DefaultLLMModels()
	defaultModel := defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// Get API key if needed
	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key (empty uses the environment): ")
		apiKey = readPassword(reader)
		cmd.Println()
	}

	if err := settingsService.SetLLMProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

func configureQuery(cmd *cobra.Command, reader *bufio.Reader) error {
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	q := settings.Query

	cmd.Println("Select Response Mode")
	modes := domain.AllResponseModes()
	current := 1
	for i, m := range modes {
		if m == q.ResponseMode {
			current = i + 1
		}
		cmd.Printf("  %d. %s\n", i+1, m.Description())
	}
	cmd.Printf("\nEnter choice [%d]: ", current)
	q.ResponseMode = modes[parseChoice(readLine(reader), len(modes), current)-1]

	cmd.Printf("Top K [%d]: ", q.TopK)
	q.TopK = parseInt(readLine(reader), q.TopK)

	cmd.Printf("Temperature [%.2f]: ", q.Temperature)
	q.Temperature = parseFloat(readLine(reader), q.Temperature)

	rerankDefault := "n"
	if q.Reranker.Resolve().Enabled() {
		rerankDefault = "y"
	}
	cmd.Printf("Rerank retrieved chunks? (y/n) [%s]: ", rerankDefault)
	answer := strings.ToLower(readLine(reader))
	if answer == "" {
		answer = rerankDefault
	}
	if answer == "y" || answer == "yes" {
		q.Reranker.Kind = domain.RerankerCrossEncoder
		model := q.Reranker.Model
		if model == "" {
			model = domain.DefaultRerankerModel
		}
		cmd.Printf("Reranker model (%q for offline scoring) [%s]: ", domain.LexicalRerankerModel, model)
		if in := readLine(reader); in != "" {
			model = in
		}
		q.Reranker.Model = model
		cmd.Printf("Top N [%d]: ", q.TopN)
		q.TopN = parseInt(readLine(reader), q.TopN)
	} else {
		q.Reranker.Kind = domain.RerankerNone
	}

	if err := settingsService.SetQuery(q); err != nil {
		return fmt.Errorf("failed to configure query settings: %w", err)
	}
	cmd.Printf("Query settings saved: %s, top_k=%d, reranker %s\n\n", q.ResponseMode, q.TopK, q.Reranker.Resolve())
	return nil
}

// setter applies a string value to one typed setting.
type setter func(s *domain.AppSettings, v string) error

var settingSetters = map[string]setter{
	"embedding.base_url":       textSetter(func(s *domain.AppSettings) *string { return &s.Embedding.BaseURL }),
	"llm.base_url":             textSetter(func(s *domain.AppSettings) *string { return &s.LLM.BaseURL }),
	"llm.timeout":              durationSetter(func(s *domain.AppSettings) *time.Duration { return &s.LLM.Timeout }),
	"query.top_k":              intSetter(func(s *domain.AppSettings) *int { return &s.Query.TopK }),
	"query.top_n":              intSetter(func(s *domain.AppSettings) *int { return &s.Query.TopN }),
	"query.context_window":     intSetter(func(s *domain.AppSettings) *int { return &s.Query.ContextWindow }),
	"query.temperature":        floatSetter(func(s *domain.AppSettings) *float64 { return &s.Query.Temperature }),
	"query.response_mode":      textSetter(func(s *domain.AppSettings) *domain.ResponseMode { return &s.Query.ResponseMode }),
	"reranker.kind":            textSetter(func(s *domain.AppSettings) *domain.RerankerKind { return &s.Query.Reranker.Kind }),
	"reranker.model":           textSetter(func(s *domain.AppSettings) *string { return &s.Query.Reranker.Model }),
	"reranker.base_url":        textSetter(func(s *domain.AppSettings) *string { return &s.Query.Reranker.BaseURL }),
	"chunking.chunk_size":      intSetter(func(s *domain.AppSettings) *int { return &s.Chunking.ChunkSize }),
	"chunking.chunk_overlap":   intSetter(func(s *domain.AppSettings) *int { return &s.Chunking.Overlap }),
	"ingest.concurrency":       intSetter(func(s *domain.AppSettings) *int { return &s.Ingest.Concurrency }),
	"ingest.embed_batch_size":  intSetter(func(s *domain.AppSettings) *int { return &s.Ingest.EmbedBatchSize }),
	"ingest.embed_rate":        floatSetter(func(s *domain.AppSettings) *float64 { return &s.Ingest.EmbedRatePerSecond }),
	"ingest.dedupe_by_content": boolSetter(func(s *domain.AppSettings) *bool { return &s.Ingest.DedupeByContent }),
	"chat.greeting":            textSetter(func(s *domain.AppSettings) *string { return &s.Chat.Greeting }),
	"storage.backend":          textSetter(func(s *domain.AppSettings) *domain.StorageBackend { return &s.Storage.Backend }),
	"storage.path":             textSetter(func(s *domain.AppSettings) *string { return &s.Storage.Path }),
}

func textSetter[T ~string](field func(s *domain.AppSettings) *T) setter {
	return func(s *domain.AppSettings, v string) error {
		*field(s) = T(v)
		return nil
	}
}

func intSetter(field func(s *domain.AppSettings) *int) setter {
	return func(s *domain.AppSettings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(s) = n
		return nil
	}
}

func floatSetter(field func(s *domain.AppSettings) *float64) setter {
	return func(s *domain.AppSettings, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(s) = f
		return nil
	}
}

func boolSetter(field func(s *domain.AppSettings) *bool) setter {
	return func(s *domain.AppSettings, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(s) = b
		return nil
	}
}

func durationSetter(field func(s *domain.AppSettings) *time.Duration) setter {
	return func(s *domain.AppSettings, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(s) = d
		return nil
	}
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsListKeys {
		keys := make([]string, 0, len(settingSetters))
		for k := range settingSetters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cmd.Println(k)
		}
		return nil
	}

	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key, value := args[0], args[1]
	set, ok := settingSetters[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidConfig, key)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	if err := set(settings, value); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, key, err)
	}
	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	cmd.Printf("Set %s = %s\n", key, value)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

func parseInt(input string, defaultVal int) int {
	val, err := strconv.Atoi(input)
	if err != nil {
		return defaultVal
	}
	return val
}

func parseFloat(input string, defaultVal float64) float64 {
	val, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return defaultVal
	}
	return val
}

// readPassword reads without echo from a terminal, otherwise from reader.
func readPassword(reader *bufio.Reader) string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
