package hyprland

import (
	"bytes"
	"codeberg.org/miketth/keybswitch/pkg/keybswitch"
	"context"
	"fmt"
	"go.uber.org/zap"
	"io"
	"strings"
	"time"
)

const requestTimeout = 5 * time.Second

// Keyword applies layouts by setting the input:kb_layout and input:kb_variant
// keywords over the hyprctl socket.
type Keyword struct {
	// SocketPath overrides the socket discovered from the environment.
	SocketPath string

	log *zap.SugaredLogger
}

func NewKeyword(log *zap.SugaredLogger) *Keyword {
	return &Keyword{log: log.Named("hyprland")}
}

func (k *Keyword) Apply(ctx context.Context, layout keybswitch.Layout) error {
	request := fmt.Sprintf("[[BATCH]]keyword input:kb_layout %s;keyword input:kb_variant %s", layout.Code, layout.Variant)

	resp, err := k.makeRequest(ctx, request)
	if err != nil {
		return err
	}
	k.log.Debugw("hyprctl response", "request", request, "response", resp)

	for _, field := range strings.Fields(resp) {
		if field != "ok" {
			return fmt.Errorf("hyprctl: %s", resp)
		}
	}

	return nil
}

func (k *Keyword) makeRequest(ctx context.Context, request string) (string, error) {
	path := k.SocketPath
	if path == "" {
		var err error
		path, err = controlSocketPath()
		if err != nil {
			return "", fmt.Errorf("get socket path: %w", err)
		}
	}

	conn, err := connect(path)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(requestTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("set deadline: %w", err)
	}

	if _, err := conn.Write([]byte(request)); err != nil {
		return "", fmt.Errorf("write to hyprctl socket: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil {
		return "", fmt.Errorf("read response from hyprctl socket: %w", err)
	}

	return buf.String(), nil
}
