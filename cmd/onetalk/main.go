// onetalk is the terminal client for the OneTalk anonymous support chat.
//
// The server address and sign-in token are kept in a small YAML file so a
// restart resumes where the user left off. Logs go to a file because the
// alternate screen owns the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"onetalk/internal/account"
	"onetalk/internal/client"
	"onetalk/internal/logger"
	"onetalk/internal/models"
	"onetalk/internal/route"
	"onetalk/internal/tui"
)

const defaultServer = "http://localhost:8080"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		server   string
		cfgPath  string
		logFile  string
		logLevel string
		open     string
	)
	flagSet := pflag.NewFlagSet("onetalk", pflag.ContinueOnError)
	flagSet.StringVar(&server, "server", "", "OneTalk API address (default: saved address, $ONETALK_SERVER, or "+defaultServer+")")
	flagSet.StringVar(&cfgPath, "config", account.DefaultPath(), "file holding the server address and sign-in token")
	flagSet.StringVar(&logFile, "log-file", filepath.Join(os.TempDir(), "onetalk.log"), "where to write logs")
	flagSet.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	flagSet.StringVar(&open, "open", "", "screen path to start on, e.g. /history")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	lf, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer lf.Close()
	logger.Init(logLevel, "text", lf)
	log := logger.For("client")

	saved, err := account.Load(cfgPath)
	if err != nil {
		return err
	}
	if server == "" {
		server = saved.Server
	}
	if server == "" {
		server = os.Getenv("ONETALK_SERVER")
	}
	if server == "" {
		server = defaultServer
	}
	if server != saved.Server {
		// a token from another server is useless here
		saved = account.File{Server: server}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	acct := &account.Account{}
	api, err := client.New(server, acct)
	if err != nil {
		return err
	}
	if saved.Token != "" {
		resume(ctx, api, acct, saved.Token, cfgPath)
	}

	var start route.Route
	if open != "" {
		start = route.Parse(open)
	}
	app := tui.New(ctx, tui.Config{
		API:     api,
		Account: acct,
		Log:     log,
		Start:   start,
		Persist: func(token string) error {
			return account.Save(cfgPath, account.File{Server: server, Token: token})
		},
	})

	log.WithField("server", server).Info("starting")
	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// resume restores a saved sign-in. A token the server no longer accepts is
// dropped from the file.
func resume(ctx context.Context, api *client.Client, acct *account.Account, token, cfgPath string) {
	log := logger.For("client")
	acct.SignedIn(token, models.Profile{})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	p, err := api.Me(ctx)
	if err != nil {
		acct.SignOut()
		log.WithError(err).Info("saved sign-in not resumed")
		if client.IsStatus(err, http.StatusUnauthorized) {
			if err := account.Clear(cfgPath); err != nil {
				log.WithError(err).Warn("clear saved token")
			}
		}
		return
	}
	acct.SignedIn(token, p)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `onetalk: talk anonymously with a volunteer listener.

Usage:
  onetalk [flags]

Flags:
%s`, flagSet.FlagUsages())
}
