package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dvs-go/internal/app"
	"dvs-go/internal/config"
	"dvs-go/internal/dvs"
	"dvs-go/internal/meta"
	"dvs-go/internal/oid"
	"dvs-go/internal/watch"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp opens the repository containing the current directory and
// wires an App. The caller must defer a.Close(). operation identifies
// the CLI command being run (e.g. "add").
func newApp(operation string) (*app.App, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}

	a, err := app.New(cwd, operation)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// shortState abbreviates a workspace state id for display.
func shortState(id oid.OID) string {
	if id.IsZero() {
		return "-"
	}
	if len(id.Hex) > 12 {
		return id.Algo.String() + ":" + id.Hex[:12]
	}
	return id.String()
}

var rootCmd = &cobra.Command{
	Use:   "dvs",
	Short: "Data version control for large files",
}

// init command
var initCmd = &cobra.Command{
	Use:   "init [DIR]",
	Short: "Initialize a repository",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		storageRoot, _ := cmd.Flags().GetString("storage")
		algoName, _ := cmd.Flags().GetString("algo")
		formatName, _ := cmd.Flags().GetString("format")

		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}

		cfg := config.NewConfig(storageRoot)
		if algoName != "" {
			algo, err := oid.ParseAlgo(algoName)
			if err != nil {
				return err
			}
			cfg.HashAlgo = algo
		}
		if formatName != "" {
			format, err := meta.ParseFormat(formatName)
			if err != nil {
				return err
			}
			cfg.MetadataFormat = format
		}

		a, err := app.Init(dir, cfg, "init")
		if err != nil {
			return fmt.Errorf("initializing repository: %w", err)
		}
		defer a.Close()

		fmt.Printf("Initialized repository at %s\n", a.Repo().Root)
		fmt.Printf("Storage:   %s (%s)\n", cfg.Storage.Root, cfg.Storage.Type)
		fmt.Printf("Hash algo: %s\n", cfg.HashAlgo)
		return nil
	},
}

// add command
var addCmd = &cobra.Command{
	Use:   "add PATTERN...",
	Short: "Track files and copy their content into storage",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message, _ := cmd.Flags().GetString("message")
		algoName, _ := cmd.Flags().GetString("algo")

		a, err := newApp("add")
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Add(args, message, algoName)
		if err != nil {
			return err
		}

		failed := 0
		for _, res := range results {
			if res.Err != nil {
				failed++
				fmt.Printf("failed   %s: %v\n", res.Path, res.Err)
				continue
			}
			fmt.Printf("%-8s %s  %s  %d bytes\n", res.Outcome, res.Path, shortState(res.OID), res.Size)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d file(s) failed", failed, len(results))
		}
		return nil
	},
}

// get command
var getCmd = &cobra.Command{
	Use:   "get PATTERN...",
	Short: "Restore tracked files from storage",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("get")
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.Get(args)
		if err != nil {
			return err
		}

		failed := 0
		for _, res := range results {
			if res.Err != nil {
				failed++
				fmt.Printf("failed   %s: %v\n", res.Path, res.Err)
				continue
			}
			fmt.Printf("%-8s %s  %s  %d bytes\n", res.Outcome, res.Path, shortState(res.OID), res.Size)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d file(s) failed", failed, len(results))
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status [PATTERN...]",
	Short: "Show file status against tracked metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("status")
		if err != nil {
			return err
		}
		defer a.Close()

		statuses, err := a.Status(args)
		if err != nil {
			return err
		}

		if len(statuses) == 0 {
			fmt.Println("No files tracked.")
			return nil
		}

		for _, s := range statuses {
			var indicator string
			switch s.Status {
			case dvs.Current:
				indicator = "= "
			case dvs.Unsynced:
				indicator = "M "
			case dvs.Absent:
				indicator = "! "
			default:
				indicator = "? "
			}
			fmt.Printf("%s %s\n", indicator, s.Path)
		}
		return nil
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the operation log, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("log")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Log(limit)
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, e := range entries {
			message := ""
			if e.Message != "" {
				message = "  " + e.Message
			}
			fmt.Printf("%s  %-8s  %s  %s  %d path(s)%s\n",
				shortState(e.NewState),
				e.Op,
				e.Time,
				e.Actor,
				len(e.Paths),
				message,
			)
		}
		return nil
	},
}

// rollback command
var rollbackCmd = &cobra.Command{
	Use:   "rollback [STATE]",
	Short: "Restore an earlier workspace state",
	Long: `Restore the workspace to a recorded state: sidecars, manifest and
file content are rewritten to match. With no STATE the workspace moves
to the state before the current one. STATE is a state id as printed by
"dvs log".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message, _ := cmd.Flags().GetString("message")

		a, err := newApp("rollback")
		if err != nil {
			return err
		}
		defer a.Close()

		target := ""
		if len(args) > 0 {
			target = args[0]
		}

		results, err := a.Rollback(target, message)
		if err != nil {
			return err
		}

		failed := 0
		for _, res := range results {
			if res.Err != nil {
				failed++
				fmt.Printf("failed   %s: %v\n", res.Path, res.Err)
				continue
			}
			fmt.Printf("%-8s %s\n", res.Outcome, res.Path)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d file(s) failed", failed, len(results))
		}
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Report tracked files drifting from their metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("watch")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		events := make(chan watch.Event)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range events {
				fmt.Printf("%-8s %s\n", ev.Status, ev.Path)
			}
		}()

		err = a.Watch(ctx, events)
		<-done
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show repository configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("config")
		if err != nil {
			return err
		}
		defer a.Close()

		r := a.Repo()
		fmt.Printf("Configuration from %s:\n\n", r.ConfigPath())
		fmt.Printf("Storage type: %s\n", r.Config.Storage.Type)
		if r.Config.Storage.Type == "filesystem" {
			fmt.Printf("Storage root: %s\n", r.Config.Storage.Root)
			fmt.Printf("Permissions:  %s\n", r.Config.Storage.Permissions)
			if r.Config.Storage.Group != "" {
				fmt.Printf("Group:        %s\n", r.Config.Storage.Group)
			}
		}
		fmt.Printf("Hash algo:    %s\n", r.Config.HashAlgo)
		if len(r.Config.ExtraDigests) > 0 {
			fmt.Printf("Extra digests:")
			for _, algo := range r.Config.ExtraDigests {
				fmt.Printf(" %s", algo)
			}
			fmt.Println()
		}
		fmt.Printf("Format:       %s\n", r.Config.MetadataFormat)
		return nil
	},
}

func init() {
	initCmd.Flags().String("storage", app.DefaultStorageRoot, "Object storage root (relative paths are inside the repository)")
	initCmd.Flags().String("algo", "", "Content hash algorithm (blake3, sha256, xxh3, md5)")
	initCmd.Flags().String("format", "", "Metadata sidecar format (json or toml)")
	rootCmd.AddCommand(initCmd)

	addCmd.Flags().StringP("message", "m", "", "Message recorded in the operation log")
	addCmd.Flags().String("algo", "", "Hash with this algorithm even for files tracked under another one")
	rootCmd.AddCommand(addCmd)

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(statusCmd)

	logCmd.Flags().IntP("limit", "n", 20, "Maximum number of entries to show")
	rootCmd.AddCommand(logCmd)

	rollbackCmd.Flags().StringP("message", "m", "", "Message recorded in the operation log")
	rootCmd.AddCommand(rollbackCmd)

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}
