package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/subosito/gotenv"

	"github.com/yurifrl/monzosync/pkg/config"
	"github.com/yurifrl/monzosync/pkg/executors"
	"github.com/yurifrl/monzosync/pkg/lunchmoney"
	"github.com/yurifrl/monzosync/pkg/monzo"
	"github.com/yurifrl/monzosync/pkg/notify"
	"github.com/yurifrl/monzosync/pkg/store"
)

var (
	cfgFile      string
	envName      string
	daysLookback int
	includePots  bool
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "monzosync",
	Short: "Sync Monzo transactions into Lunch Money",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Show help when no subcommand is provided
		return cmd.Help()
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch Monzo transactions and reconcile them into Lunch Money",
	Long: "Fetches the lookback window of transactions for every configured main and\n" +
		"pot account, reconciles them against the local database, uploads new\n" +
		"transactions to Lunch Money and pushes updates for edited ones.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		level := log.InfoLevel
		if verbose {
			level = log.DebugLevel
		}
		logger := log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			Prefix:          "monzosync",
			Level:           level,
		})

		if daysLookback < 1 || daysLookback > 90 {
			return fmt.Errorf("days must be between 1 and 90 (longer windows need re-authorisation in the Monzo app)")
		}

		if err := gotenv.Load(".env." + envName); err != nil {
			logger.Warn("no env file loaded", "file", ".env."+envName, "error", err)
		}

		cfg, err := config.Build(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		lookups, err := config.LoadLookups(cfg)
		if err != nil {
			return err
		}

		db, err := store.NewStore(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		source, err := monzo.NewClient(monzo.Options{
			APIURL:       cfg.Monzo.APIURL,
			AuthURL:      cfg.Monzo.AuthURL,
			ClientID:     cfg.Monzo.ClientID,
			ClientSecret: cfg.Monzo.ClientSecret,
			TokensPath:   cfg.Monzo.TokensPath,
		}, logger)
		if err != nil {
			return err
		}

		sink := lunchmoney.NewClient(cfg.LunchMoney.APIURL, cfg.LunchMoney.Token, logger)
		notifier := notify.New(cfg.Ntfy.URL, cfg.Ntfy.Topic, logger)

		exec := executors.New(logger, cfg, lookups, db, source, sink, notifier)
		if err := exec.Sync(daysLookback, includePots); err != nil {
			logger.Error("sync failed", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	syncCmd.Flags().IntVarP(&daysLookback, "days", "d", 30, "Days to look back when fetching transactions")
	syncCmd.Flags().StringVarP(&envName, "env", "e", "personal", "Budget environment (personal or joint), selects .env.<env>")
	syncCmd.Flags().BoolVar(&includePots, "pots", true, "Fetch pot account transactions too")

	rootCmd.AddCommand(syncCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
