package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/KDT2006/chaser/internal/config"
	"github.com/KDT2006/chaser/internal/game"
	"github.com/KDT2006/chaser/internal/grid"
	"github.com/KDT2006/chaser/internal/mapfile"
	"github.com/KDT2006/chaser/internal/session"
	"github.com/KDT2006/chaser/internal/spectator"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := config.NewFlagSet("chaser-server")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return 2
	}
	cfg, err := config.Load(flags)
	if err != nil {
		log.WithError(err).Error("invalid configuration")
		return 2
	}
	if err := config.SetupLogging(log.StandardLogger(), cfg.Log); err != nil {
		log.WithError(err).Error("invalid configuration")
		return 2
	}

	out, err := serve(cfg)
	if err != nil {
		log.WithError(err).Error("failed to start match")
		return 1
	}
	if out.Reason.Failed() {
		return 1
	}
	return 0
}

func serve(cfg *config.Config) (game.Outcome, error) {
	mapEnc, err := cfg.MapEncoding()
	if err != nil {
		return game.Outcome{}, err
	}
	wireEnc, err := cfg.WireEncoding()
	if err != nil {
		return game.Outcome{}, err
	}

	m, err := mapfile.Load(cfg.Map.Path, mapEnc)
	if err != nil {
		return game.Outcome{}, err
	}
	floor, err := m.Grid()
	if err != nil {
		return game.Outcome{}, fmt.Errorf("map %s: %w", cfg.Map.Path, err)
	}

	logger := log.NewEntry(log.StandardLogger())
	sess := session.NewTCP(session.Config{
		CoolAddr: cfg.Cool.Addr,
		HotAddr:  cfg.Hot.Addr,
		Encoding: wireEnc,
		DumpDir:  cfg.DumpDir(),
	}, logger)
	match := game.New(floor, sess, m.TurnLimit, game.WithLogger(logger), game.WithName(m.Name))

	if cfg.Spectator.Addr != "" {
		hub := spectator.New(match, floor, logger)
		srv := &http.Server{Addr: cfg.Spectator.Addr, Handler: hub.Routes()}
		go func() {
			log.WithField("address", cfg.Spectator.Addr).Info("spectator feed listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("spectator feed stopped")
			}
		}()
		defer func() {
			hub.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	log.WithField("map", m.Name).
		WithField("size", fmt.Sprintf("%dx%d", m.Width, m.Height)).
		WithField("turn_limit", m.TurnLimit).
		Info("map loaded")

	out := match.Run()

	l := log.WithField("reason", out.Reason.String()).
		WithField("turn", out.Turn).
		WithField("cool", out.Teams[grid.Cool]).
		WithField("hot", out.Teams[grid.Hot]).
		WithField("cool_items", out.Items[grid.Cool]).
		WithField("hot_items", out.Items[grid.Hot])
	if out.Reason.Failed() {
		l.WithField("side", out.Side.String()).WithError(out.Err).Error("match aborted")
	} else {
		l.WithField("result", out.Result.String()).Info("match over")
	}
	return out, nil
}
