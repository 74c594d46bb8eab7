// Command proactor-echo is a TCP echo server driven entirely through the
// proactor runtime: one ring-backed Accept loop, with each accepted
// connection handed to the task pool and serviced with ring-backed
// Read/Write.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/go-proactor"
	"github.com/ehrlich-b/go-proactor/internal/logging"
	"github.com/ehrlich-b/go-proactor/internal/taskpool"
	"github.com/ehrlich-b/go-proactor/ops"
)

func main() {
	var (
		addr    = flag.String("addr", "127.0.0.1", "listen address")
		port    = flag.Int("port", 1234, "listen port")
		verbose = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	listenFd, err := listen(*addr, *port)
	if err != nil {
		logger.Error("failed to listen", "error", err)
		os.Exit(1)
	}
	defer unix.Close(listenFd)

	p, err := proactor.New(proactor.DefaultConfig())
	if err != nil {
		logger.Error("failed to create proactor", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("listening", "addr", *addr, "port", *port)

	_, err = proactor.BlockOn(ctx, p, func(ctx context.Context, h *proactor.Handle) (struct{}, error) {
		return struct{}{}, acceptLoop(ctx, h, listenFd, logger)
	})
	if err != nil && ctx.Err() == nil {
		logger.Error("accept loop failed", "error", err)
		os.Exit(1)
	}
}

func acceptLoop(ctx context.Context, h *proactor.Handle, listenFd int, logger *logging.Logger) error {
	pool := taskpool.New(ctx, taskpool.DefaultConfig())
	defer pool.Close()

	for {
		connFd, _, err := ops.Accept(ctx, h, listenFd, 0)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		logger.Debug("accepted connection", "fd", connFd)

		pool.Go(func(ctx context.Context) error {
			defer func() {
				if err := ops.Close(ctx, h, connFd); err != nil {
					logger.Debug("close failed", "fd", connFd, "error", err)
				}
			}()
			n, err := echo(ctx, h, connFd)
			logger.Info("connection closed", "fd", connFd, "bytes", n)
			return err
		})
	}
}

// echo copies bytes from fd back to fd with ring-backed Read/Write until
// the peer closes.
func echo(ctx context.Context, h *proactor.Handle, fd int) (int64, error) {
	var total int64
	buf := make([]byte, 4096)
	for {
		n, err := ops.Read(ctx, h, fd, buf)
		if err != nil {
			return total, err
		}
		if len(n) == 0 {
			return total, nil
		}
		for rem := n; len(rem) > 0; {
			if rem, err = ops.Write(ctx, h, fd, rem); err != nil {
				return total, err
			}
		}
		total += int64(len(n))
	}
}

func listen(addr string, port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}

	var sa unix.SockaddrInet4
	ip := parseIPv4(addr)
	sa.Addr = ip
	sa.Port = port

	if err := unix.Bind(fd, &sa); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func parseIPv4(addr string) [4]byte {
	var out [4]byte
	var a, b, c, d int
	n, err := fmt.Sscanf(addr, "%d.%d.%d.%d", &a, &b, &c, &d)
	if err != nil || n != 4 {
		return [4]byte{127, 0, 0, 1}
	}
	out[0], out[1], out[2], out[3] = byte(a), byte(b), byte(c), byte(d)
	return out
}
