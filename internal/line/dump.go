package line

import (
	"encoding/hex"
	"io"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/KDT2006/chaser/internal/grid"
)

// Traffic directions recorded by a Dumper.
const (
	Sent     = "sent"
	Received = "recv"
)

// Dumper records raw traffic of one side as hex dumps.
type Dumper struct {
	log *log.Entry
}

// NewDumper writes dumps for side to w.
func NewDumper(side grid.Side, w io.Writer) *Dumper {
	l := log.New()
	l.SetOutput(w)
	l.SetFormatter(&log.TextFormatter{DisableColors: true, FullTimestamp: true})
	return &Dumper{log: l.WithField("side", side.String())}
}

// NewFileDumper writes dumps for side into a rotated file under dir.
func NewFileDumper(side grid.Side, dir string) *Dumper {
	return NewDumper(side, &lumberjack.Logger{
		Filename:   filepath.Join(dir, strings.ToLower(side.String())+".log"),
		MaxSize:    10, // megabytes
		MaxBackups: 10,
	})
}

// Dump records b under the given direction. A nil Dumper discards.
func (d *Dumper) Dump(direction string, b []byte) {
	if d == nil {
		return
	}
	d.log.WithField("dir", direction).WithField("bytes", len(b)).Info("\n" + hex.Dump(b))
}
