package main

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/KDT2006/chaser/internal/client"
	"github.com/KDT2006/chaser/internal/config"
)

func main() {
	addr := pflag.StringP("addr", "a", "localhost:40000", "server address of the side to play")
	team := pflag.StringP("team", "t", "bot", "team name")
	encName := pflag.String("encoding", "shift_jis", "text encoding of the line protocol")
	seed := pflag.Int64("seed", time.Now().UnixNano(), "random seed of the strategy")
	level := pflag.String("log-level", "info", "log level")
	pflag.Parse()

	if err := config.SetupLogging(log.StandardLogger(), config.LogConfig{Level: *level, Format: "text"}); err != nil {
		log.Fatal(err)
	}
	enc, err := htmlindex.Get(*encName)
	if err != nil {
		log.WithError(err).Fatal("unknown encoding")
	}

	c := client.New(*addr, *team, client.WithEncoding(enc), client.WithStrategy(client.NewGreedy(*seed)))
	if err := c.Connect(); err != nil {
		log.WithError(err).Fatal("failed to connect")
	}
	defer c.Close()

	sum, err := c.Play()
	if err != nil {
		log.WithError(err).Error("game failed")
		c.Close()
		os.Exit(1)
	}
	log.WithField("turns", sum.Turns).WithField("game_over", sum.GameOver).Info("done")
}
