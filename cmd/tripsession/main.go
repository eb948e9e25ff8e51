package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: tripsession [flags] <command>

commands:
  login <email> <password>   authenticate and persist the session
  register <email> <password> <username>
  whoami                     show the current session
  logout                     revoke and clear the session`)
}

func main() {
	cfg := NewConfig()

	if err := cfg.LoadDotEnv(os.Getwd); err != nil {
		slog.Error("can't load .env file", "error", err.Error())
		os.Exit(1)
	}
	cfg.LoadEnv(os.Getenv)

	args, err := cfg.ParseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("can't initialize app, sorry", "error", err.Error())
		os.Exit(1)
	}
	defer app.Manager.Destroy()

	// Cancel pending work on SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		cancel()
	}()

	if err := run(ctx, app, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, app *App, args []string) error {
	switch args[0] {
	case "login":
		if len(args) != 3 {
			return fmt.Errorf("login needs <email> <password>")
		}
		return app.Login(ctx, args[1], args[2])
	case "register":
		if len(args) != 4 {
			return fmt.Errorf("register needs <email> <password> <username>")
		}
		_, err := app.Auth.Register(ctx, args[1], args[2], args[3])
		return err
	case "whoami":
		return app.WhoAmI()
	case "logout":
		app.Logout(ctx)
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}
