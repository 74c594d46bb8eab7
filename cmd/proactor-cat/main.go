// Command proactor-cat reads a file through the proactor runtime and
// writes it to stdout, a chunk at a time: open, then alternate
// Read/Write actions until a zero-length read signals EOF.
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
	"github.com/ehrlich-b/go-proactor/ops"
)

func main() {
	var verbose = flag.Bool("v", false, "verbose output")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: proactor-cat <file>")
		os.Exit(2)
	}
	target := flag.Arg(0)

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	p, err := proactor.New(proactor.DefaultConfig())
	if err != nil {
		logger.Error("failed to create proactor", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_, err = proactor.BlockOn(ctx, p, func(ctx context.Context, h *proactor.Handle) (struct{}, error) {
		return struct{}{}, catFile(ctx, h, target)
	})
	if err != nil {
		logger.Error("cat failed", "error", err)
		os.Exit(1)
	}
}

func catFile(ctx context.Context, h *proactor.Handle, target string) error {
	fd, err := ops.OpenAt(ctx, h, unix.AT_FDCWD, target, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer ops.Close(ctx, h, fd)

	buf := make([]byte, 32<<10)
	for {
		n, err := ops.Read(ctx, h, fd, buf)
		if err != nil {
			return err
		}
		if len(n) == 0 {
			return nil
		}

		rem := n
		for len(rem) > 0 {
			written, err := ops.Write(ctx, h, int(os.Stdout.Fd()), rem)
			if err != nil {
				return err
			}
			rem = written
		}
	}
}
