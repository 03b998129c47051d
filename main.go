package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/wfunc/ludoclient/client"
	"github.com/wfunc/ludoclient/config"
	"github.com/wfunc/ludoclient/logger"
	"github.com/wfunc/ludoclient/monitor"
	"github.com/wfunc/ludoclient/network"
	"github.com/wfunc/ludoclient/presentation"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ludoclient: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("ludoclient", pflag.ContinueOnError)
	config.BindFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// Load configuration
	cfg, err := config.LoadConfig("", fs)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Log.Level); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	var mon *monitor.Monitor
	if cfg.Monitor.Address != "" {
		mon = monitor.NewMonitor("ludoclient")
		mon.StartServer(cfg.Monitor.Address)
		logger.Log.Infof("Serving metrics on %s", cfg.Monitor.Address)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			mon.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(cfg, presentation.NewConsole(os.Stdout), os.Stdin, mon)
	logger.Log.Infof("Connecting to %s as %s", cfg.Server.Address, cfg.Player.Name)
	if err := c.Setup(ctx); err != nil {
		return err
	}
	defer c.Terminate()

	fmt.Println("Commands: roll | pick N | click X Y | quit")
	if err := c.Run(ctx); err != nil {
		var cerr *network.ConnectionError
		if errors.As(err, &cerr) {
			return fmt.Errorf("lost connection to %s: %w", cfg.Server.Address, err)
		}
		return err
	}
	return nil
}
