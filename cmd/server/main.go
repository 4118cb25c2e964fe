// Entry point: parses configuration, opens the listening socket, and
// runs the accept loop until an interrupt, terminate or hangup signal
// arrives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	ttt "github.com/TyuiX/TicTacToeServer"
	"github.com/TyuiX/TicTacToeServer/client"
	"github.com/TyuiX/TicTacToeServer/conf"
	"github.com/TyuiX/TicTacToeServer/player"
)

func main() {
	c, err := conf.Parse(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		var usage *conf.ErrUsage
		if errors.As(err, &usage) {
			os.Exit(2)
		}
		log.Fatal(err)
	}

	if c.Debug {
		ttt.Debug.SetOutput(os.Stderr)
	}

	if err := run(c); err != nil {
		log.Fatal(err)
	}
}

func run(c *conf.Conf) error {
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.FormatUint(uint64(c.Port), 10)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	players := player.NewRegistry(c.StartRating)
	registry := client.NewRegistry(players)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return acceptLoop(ctx, ln, c, registry)
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Println("shutting down, closing listener")
		_ = ln.Close()
		registry.ShutdownAll()
		registry.WaitForEmpty()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// acceptLoop accepts connections until ln is closed (by the shutdown
// goroutine) or a non-transient error occurs, spawning a Run goroutine
// per connection.
func acceptLoop(ctx context.Context, ln net.Listener, c *conf.Conf, registry *client.ClientRegistry) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		cl := client.New(conn, registry, c.MaxClients, int(c.TCP.Retries))
		go client.Run(cl, registry)
	}
}
