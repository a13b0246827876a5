package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/victornm/orgquiz/internal/auth"
	"github.com/victornm/orgquiz/internal/config"
	"github.com/victornm/orgquiz/internal/domain"
	"github.com/victornm/orgquiz/internal/errors"
	"github.com/victornm/orgquiz/internal/server"
	"github.com/victornm/orgquiz/internal/store/postgres"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "orgquiz",
	Short:        "Company membership and quiz service",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

		s, err := server.Init(c)
		if err != nil {
			return fmt.Errorf("init server: %w", err)
		}

		go s.Start()

		<-shutdown
		s.Shutdown()
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := server.ConnectPostgres(cmd.Context(), c.Postgres)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()

		return postgres.Migrate(cmd.Context(), db)
	},
}

var createUser bool

var tokenCmd = &cobra.Command{
	Use:   "token EMAIL",
	Short: "Print an access token for the user with the given email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := server.ConnectPostgres(cmd.Context(), c.Postgres)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()

		s := postgres.New(postgres.Config{DB: db, ReadRetries: c.Store.ReadRetries})
		u, err := s.GetUserByEmail(cmd.Context(), args[0])
		if errors.Is(err, errors.CodeNotFound) && createUser {
			u = &domain.User{Email: args[0]}
			err = s.CreateUser(cmd.Context(), u)
		}
		if err != nil {
			return err
		}

		a := auth.NewAuthenticator(auth.Config{
			Users:  s,
			Secret: c.Auth.Secret,
			Issuer: c.Auth.Issuer,
			TTL:    c.Auth.TTL,
		})
		token, err := a.Issue(u)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $CONFIG_PATH)")
	tokenCmd.Flags().BoolVar(&createUser, "create", false, "create the user when it does not exist")

	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}

func loadConfig() (server.Config, error) {
	c := server.DefaultConfig()

	p := configPath
	if p == "" {
		p = os.Getenv("CONFIG_PATH")
	}
	if p == "" {
		return c, fmt.Errorf("config file not set, use --config or CONFIG_PATH")
	}

	if err := config.Load(p, &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}
