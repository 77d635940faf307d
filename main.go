package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/isdelr/notesync-be/internal/auth"
	"github.com/isdelr/notesync-be/internal/backup"
	"github.com/isdelr/notesync-be/internal/config"
	"github.com/isdelr/notesync-be/internal/database"
	"github.com/isdelr/notesync-be/internal/logger"
	"github.com/isdelr/notesync-be/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var configPath string

// app bundles what every command needs. The caller must defer app.Close().
type app struct {
	cfg    *config.Config
	db     *database.DB
	clock  services.Clock
	events *services.EventService
	users  *services.UserService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	db, err := database.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	clock := services.RealClock{}
	events := services.NewEventService(db, clock)
	users := services.NewUserService(db, auth.NewSigner(cfg.JWTSecret, cfg.TokenTTL), events, clock, cfg.Policy.PasswordMinLength)

	return &app{cfg: cfg, db: db, clock: clock, events: events, users: users}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// backupService wires the configured sink into a BackupService.
func (a *app) backupService(ctx context.Context, notes services.NoteSource) (*services.BackupService, error) {
	sink, err := backup.NewSinkFromConfig(ctx, a.cfg.Backup)
	if err != nil {
		return nil, err
	}
	return services.NewBackupService(notes, sink, a.events, a.clock, a.cfg.Backup.AgeRecipient), nil
}

var rootCmd = &cobra.Command{
	Use:          "notesync",
	Short:        "Note synchronization server",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		log.Info().Str("driver", a.cfg.DatabaseDriver).Msg("Database is up to date")
		return nil
	},
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create USERNAME",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		groups, _ := cmd.Flags().GetStringSlice("group")

		if password == "" {
			var err error
			password, err = readPassword(cmd)
			if err != nil {
				return err
			}
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.users.CreateUser(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		for _, g := range groups {
			if err := a.users.AddToGroup(cmd.Context(), user.Username, g); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", user.Username, user.ID)
		return nil
	},
}

func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(cmd.OutOrStderr(), "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.OutOrStderr())
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

// group command
var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage group membership",
}

var groupAddCmd = &cobra.Command{
	Use:   "add USERNAME GROUP",
	Short: "Add a user to a group (students, teachers)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.users.AddToGroup(cmd.Context(), args[0], args[1])
	},
}

var groupRemoveCmd = &cobra.Command{
	Use:   "remove USERNAME GROUP",
	Short: "Remove a user from a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.users.RemoveFromGroup(cmd.Context(), args[0], args[1])
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up all notes once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
		defer cancel()

		notes := services.NewNoteService(a.db, a.users, a.events, nil, a.clock, a.cfg.Policy)
		svc, err := a.backupService(ctx, notes)
		if err != nil {
			return err
		}
		b, err := svc.CreateBackup(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d note(s) to %s\n", b.Notes, b.Location)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file (default $NOTESYNC_CONFIG)")

	// user subcommands
	userCmd.AddCommand(userCreateCmd)
	userCreateCmd.Flags().StringP("password", "p", "", "Password (prompted when omitted)")
	userCreateCmd.Flags().StringSliceP("group", "g", nil, "Group to add the user to (repeatable)")

	// group subcommands
	groupCmd.AddCommand(groupAddCmd)
	groupCmd.AddCommand(groupRemoveCmd)

	// root commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(backupCmd)
}
