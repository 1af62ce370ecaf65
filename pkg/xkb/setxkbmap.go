// Package xkb applies keyboard layouts to an X session with setxkbmap.
package xkb

import (
	"bytes"
	"codeberg.org/miketth/keybswitch/pkg/keybswitch"
	"context"
	"fmt"
	"go.uber.org/zap"
	"os"
	"os/exec"
	"strings"
)

const defaultPath = "setxkbmap"

type Setxkbmap struct {
	path string
	log  *zap.SugaredLogger
}

// NewSetxkbmap returns an applier running the binary at path, or setxkbmap
// from $PATH when path is empty.
func NewSetxkbmap(path string, log *zap.SugaredLogger) *Setxkbmap {
	if path == "" {
		path = defaultPath
	}

	return &Setxkbmap{
		path: path,
		log:  log.Named("setxkbmap"),
	}
}

// Apply runs setxkbmap with the layout and variant as its two arguments.
func (s *Setxkbmap) Apply(ctx context.Context, layout keybswitch.Layout) error {
	// setxkbmap talks to whatever display these point at
	s.log.Debugw("display environment", "DISPLAY", os.Getenv("DISPLAY"), "XAUTHORITY", os.Getenv("XAUTHORITY"))

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, s.path, layout.Code, layout.Variant)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	outStr := strings.TrimSpace(stdout.String())
	errStr := strings.TrimSpace(stderr.String())
	if err != nil {
		s.log.Errorw("setxkbmap failed", "args", cmd.Args[1:], "stdout", outStr, "stderr", errStr, "error", err)
		return fmt.Errorf("setxkbmap: %w, stdout: %s, stderr: %s", err, outStr, errStr)
	}
	s.log.Debugw("ran setxkbmap", "args", cmd.Args[1:], "stdout", outStr, "stderr", errStr)

	return nil
}
