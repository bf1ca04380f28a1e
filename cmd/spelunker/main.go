package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/strixlab/spelunker/internal/config"
	"github.com/strixlab/spelunker/internal/output"
	"github.com/strixlab/spelunker/internal/tui"
	"github.com/strixlab/spelunker/pkg/spelunk"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath  string
	profileName string
	jsonOutput  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "spelunker",
	Short: "Query and inspect enterprise search deployments",
	Long: `spelunker talks to the management REST API of one or more enterprise
search deployments: dispatch searches, list indexes, apps and users, and
fan a health check out across a whole fleet of targets.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify credentials against the selected profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, name, err := clientFromConfig()
		if err != nil {
			return err
		}
		defer client.Close()

		if _, err := client.Login(cmd.Context()); err != nil {
			return fmt.Errorf("login for profile %s: %w", name, err)
		}

		fmt.Printf("Login OK for profile %s (%s)\n", name, client.BaseURL())
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Dispatch a search and print its results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		earliest, _ := cmd.Flags().GetString("earliest")
		latest, _ := cmd.Flags().GetString("latest")
		maxCount, _ := cmd.Flags().GetInt("max-count")

		client, _, err := clientFromConfig()
		if err != nil {
			return err
		}
		defer client.Close()

		results, err := client.Search.Run(cmd.Context(), args[0], &spelunk.SearchOptions{
			EarliestTime: earliest,
			LatestTime:   latest,
			MaxCount:     maxCount,
		})
		if err != nil {
			return fmt.Errorf("running search: %w", err)
		}

		if jsonOutput {
			return output.PrintResultsJSON(os.Stdout, results)
		}
		output.PrintSearchResults(os.Stdout, results)
		return nil
	},
}

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "List event indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, name, err := clientFromConfig()
		if err != nil {
			return err
		}
		defer client.Close()

		indexes, err := client.Indexes.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing indexes: %w", err)
		}

		if jsonOutput {
			return output.PrintListingJSON(os.Stdout, name, "indexes", len(indexes), indexes)
		}
		output.PrintIndexes(os.Stdout, indexes)
		return nil
	},
}

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List installed apps",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, name, err := clientFromConfig()
		if err != nil {
			return err
		}
		defer client.Close()

		apps, err := client.Apps.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing apps: %w", err)
		}

		if jsonOutput {
			return output.PrintListingJSON(os.Stdout, name, "apps", len(apps), apps)
		}
		output.PrintApps(os.Stdout, apps)
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List user accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, name, err := clientFromConfig()
		if err != nil {
			return err
		}
		defer client.Close()

		users, err := client.Users.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing users: %w", err)
		}

		if jsonOutput {
			return output.PrintListingJSON(os.Stdout, name, "users", len(users), users)
		}
		output.PrintUsers(os.Stdout, users)
		return nil
	},
}

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Fetch resource counts from every configured profile",
	Long: `Runs the same resource fetch against every profile in the config file
concurrently and prints one merged report. A failing profile never
aborts the others.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resourceTimeout, _ := cmd.Flags().GetDuration("resource-timeout")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var profiles []spelunk.Profile
		for _, name := range cfg.ProfileNames() {
			profiles = append(profiles, profileFromConfig(name, cfg.Profiles[name]))
		}

		report := spelunk.FetchAll(cmd.Context(), profiles, nil, &spelunk.FleetOptions{
			ResourceTimeout: resourceTimeout,
		})

		if jsonOutput {
			return output.PrintFleetReportJSON(os.Stdout, report)
		}
		output.PrintFleetReport(os.Stdout, report)
		return nil
	},
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive search console",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, name, err := clientFromConfig()
		if err != nil {
			return err
		}
		defer client.Close()

		return tui.Run(client, name)
	},
}

func init() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to get home directory: %v\n", err)
		homeDir = "~"
	}
	defaultConfigPath := filepath.Join(homeDir, ".spelunker", "config.yaml")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to config file")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "profile to use (default from config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of tables")

	searchCmd.Flags().String("earliest", "-24h", "earliest time bound for the search window")
	searchCmd.Flags().String("latest", "now", "latest time bound for the search window")
	searchCmd.Flags().Int("max-count", 0, "cap the number of result rows (0 = server default)")

	fleetCmd.Flags().Duration("resource-timeout", 30*time.Second, "per-profile, per-resource fetch timeout")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(indexesCmd)
	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(fleetCmd)
	rootCmd.AddCommand(tuiCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// clientFromConfig builds a client for the selected profile and returns
// the resolved profile name alongside it.
func clientFromConfig() (*spelunk.Client, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}

	profile, name, err := cfg.Profile(profileName)
	if err != nil {
		return nil, "", err
	}

	opts := &spelunk.ClientOptions{
		BaseURL:       profile.BaseURL,
		Token:         profile.Token,
		Username:      profile.Username,
		Password:      profile.Password,
		SkipTLSVerify: profile.SkipTLSVerify,
		Timeout:       profile.Timeout.Std(),
	}
	if profile.MaxRetries > 0 {
		opts.RetryPolicy = &spelunk.RetryPolicy{
			MaxRetries:   profile.MaxRetries,
			RetryWaitMin: time.Second,
			RetryWaitMax: 30 * time.Second,
		}
	}

	client, err := spelunk.NewClient(opts)
	if err != nil {
		return nil, "", fmt.Errorf("building client for profile %s: %w", name, err)
	}
	return client, name, nil
}

func profileFromConfig(name string, pc *config.ProfileConfig) spelunk.Profile {
	return spelunk.Profile{
		Name:          name,
		BaseURL:       pc.BaseURL,
		Token:         pc.Token,
		Username:      pc.Username,
		Password:      pc.Password,
		SkipTLSVerify: pc.SkipTLSVerify,
		Timeout:       pc.Timeout.Std(),
	}
}
