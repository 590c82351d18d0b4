package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

// Query sends one command frame to addr and copies the reply to w until
// the server has been silent for idle, the server closes the connection,
// or ctx is done.
func Query(ctx context.Context, addr, command string, idle time.Duration, w io.Writer) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	command = strings.TrimSpace(command)
	if !strings.HasSuffix(command, ";") {
		command += ";"
	}
	if _, err := writeFull(conn, []byte(command)); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}

	buf := make([]byte, DefaultRxBufferLen)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := conn.SetReadDeadline(time.Now().Add(idle)); err != nil {
			return err
		}
		n, err := conn.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		switch {
		case err == nil:
			continue
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, io.EOF), errors.Is(err, os.ErrDeadlineExceeded):
			return nil
		default:
			return fmt.Errorf("failed to read reply: %w", err)
		}
	}
}
