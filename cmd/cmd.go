package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/webitel/im-notification-gateway/config"
	"github.com/webitel/im-notification-gateway/internal/domain/model"
	"github.com/webitel/im-notification-gateway/internal/service"
)

const (
	ServiceName      = "im-notification-gateway"
	ServiceNamespace = "webitel"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	model.ServerVersion = version

	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Tagged notification gateway for Webitel platform",
		Version: fmt.Sprintf("%s (%s@%s, %s)", version, branch, commit, commitDate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config_file",
				Usage:   "Path to the configuration file",
				EnvVars: []string{"GATEWAY_CONFIG_FILE"},
			},
		},
		Commands: []*cli.Command{
			serverCmd(),
			tokenCmd(),
			monitorCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the HTTP gateway and the bus consumer",
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config_file"))
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			startCtx, cancel := context.WithTimeout(c.Context, app.StartTimeout())
			defer cancel()
			if err := app.Start(startCtx); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
			defer cancelStop()
			return app.Stop(stopCtx)
		},
	}
}

// tokenCmd mints credentials with the configured secrets, for operators and local testing.
func tokenCmd() *cli.Command {
	tokens := func(c *cli.Context) (*service.TokenService, error) {
		cfg, err := config.LoadConfig(c.String("config_file"))
		if err != nil {
			return nil, err
		}
		return service.NewTokenServiceFromConfig(cfg), nil
	}

	return &cli.Command{
		Name:  "token",
		Usage: "Issue signed tokens",
		Subcommands: []*cli.Command{
			{
				Name:  "sender",
				Usage: "Issue a sender token that may publish into a channel",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "channel", Required: true},
					&cli.StringFlag{Name: "email", Required: true, Usage: "Channel administrator"},
				},
				Action: func(c *cli.Context) error {
					ts, err := tokens(c)
					if err != nil {
						return err
					}
					token, err := ts.IssueSenderToken(c.String("channel"), c.String("email"))
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, token)
					return err
				},
			},
			{
				Name:  "bearer",
				Usage: "Issue a short-lived user bearer token",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "user-id", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
				},
				Action: func(c *cli.Context) error {
					ts, err := tokens(c)
					if err != nil {
						return err
					}
					token, err := ts.IssueBearer(c.Int64("user-id"), c.String("email"))
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, token)
					return err
				},
			},
		},
	}
}
