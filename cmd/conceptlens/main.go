package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/conceptlens/internal/profile"
	"github.com/hrygo/conceptlens/plugin/ai"
	"github.com/hrygo/conceptlens/plugin/ai/concept"
	"github.com/hrygo/conceptlens/server"
	"github.com/hrygo/conceptlens/store"
	"github.com/hrygo/conceptlens/store/db"
)

var version = "0.1.0"

var (
	rootCmd = &cobra.Command{
		Use:   "conceptlens",
		Short: "Concept identity resolution and relationship classification service.",
		Run: func(_ *cobra.Command, _ []string) {
			instanceProfile, err := loadProfile()
			if err != nil {
				slog.Error("failed to load profile", "error", err)
				return
			}

			ctx, cancel := context.WithCancel(context.Background())
			storeInstance, err := openStore(ctx, instanceProfile)
			if err != nil {
				cancel()
				slog.Error("failed to open store", "error", err)
				return
			}

			s, err := server.NewServer(ctx, instanceProfile, storeInstance)
			if err != nil {
				cancel()
				slog.Error("failed to create server", "error", err)
				return
			}

			c := make(chan os.Signal, 1)
			// Trigger graceful shutdown on SIGINT or SIGTERM.
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)

			if err := s.Start(ctx); err != nil {
				cancel()
				slog.Error("failed to start server", "error", err)
				return
			}

			printGreetings(instanceProfile)

			<-c
			s.Shutdown(ctx)
			cancel()
		},
	}

	resolveCmd = &cobra.Command{
		Use:   "resolve",
		Short: "Analyze a JSON array of concepts against the stored corpus of an owner.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			instanceProfile, err := loadProfile()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			storeInstance, err := openStore(ctx, instanceProfile)
			if err != nil {
				return err
			}
			defer storeInstance.Close()

			concepts, err := readConcepts(cmd.InOrStdin(), viper.GetString("file"))
			if err != nil {
				return err
			}

			config := concept.DefaultServiceConfig()
			config.Concurrency = instanceProfile.AnalyzeConcurrency
			if path := viper.GetString("catalogue"); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read catalogue: %w", err)
				}
				if config.Catalogue, err = concept.ParseCatalogue(data); err != nil {
					return err
				}
			}

			embeddingService, err := ai.NewEmbeddingServiceFromConfig(ai.NewConfigFromProfile(instanceProfile))
			if err != nil {
				slog.Warn("embedding provider disabled", "error", err)
				embeddingService = nil
			}

			service := concept.NewServiceWithConfig(storeInstance, embeddingService, config)
			results, err := service.Analyze(ctx, viper.GetInt32("owner"), concepts)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(results)
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	resolveCmd.Flags().Int32("owner", 0, "owner whose corpus is searched")
	resolveCmd.Flags().String("file", "", "JSON file of concepts, stdin when empty")
	resolveCmd.Flags().String("catalogue", "", "YAML alias catalogue replacing the built-in one")
	for _, flag := range []string{"owner", "file", "catalogue"} {
		if err := viper.BindPFlag(flag, resolveCmd.Flags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	rootCmd.AddCommand(resolveCmd)

	viper.SetEnvPrefix("conceptlens")
	viper.AutomaticEnv()
}

func loadProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:    viper.GetString("mode"),
		Addr:    viper.GetString("addr"),
		Port:    viper.GetInt("port"),
		Data:    viper.GetString("data"),
		Driver:  viper.GetString("driver"),
		DSN:     viper.GetString("dsn"),
		Version: version,
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	return instanceProfile, nil
}

func openStore(ctx context.Context, instanceProfile *profile.Profile) (*store.Store, error) {
	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return nil, fmt.Errorf("create db driver: %w", err)
	}
	storeInstance := store.New(dbDriver, instanceProfile)
	if err := storeInstance.Migrate(ctx); err != nil {
		_ = storeInstance.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return storeInstance, nil
}

func readConcepts(stdin io.Reader, path string) ([]concept.Concept, error) {
	reader := stdin
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		reader = file
	}

	var concepts []concept.Concept
	if err := json.NewDecoder(reader).Decode(&concepts); err != nil {
		return nil, fmt.Errorf("decode concepts: %w", err)
	}
	return concepts, nil
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("conceptlens %s started successfully!\n", p.Version)
	fmt.Printf("Data directory: %s\nDatabase driver: %s\nMode: %s\n", p.Data, p.Driver, p.Mode)
	if p.Addr == "" {
		fmt.Printf("Server running on port %d\n", p.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", p.Addr, p.Port)
	}
	fmt.Printf("Embedding provider enabled: %t\n", p.IsAIEnabled())
}

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
