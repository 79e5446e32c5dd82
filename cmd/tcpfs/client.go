package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/client"
	"github.com/spf13/pflag"
)

type clientFlags struct {
	addr      string
	timeout   time.Duration
	ioTimeout time.Duration
}

func (f *clientFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.addr, "addr", "a", envOr("TCPFS_ADDR", "localhost:7070"), "Server address (host:port, env TCPFS_ADDR)")
	fs.DurationVar(&f.timeout, "dial-timeout", 10*time.Second, "Connection timeout")
	fs.DurationVar(&f.ioTimeout, "io-timeout", time.Minute, "Per read/write timeout (0 disables)")
}

func (f *clientFlags) client() *client.Client {
	return client.New(client.Config{
		Address:     f.addr,
		DialTimeout: f.timeout,
		IOTimeout:   f.ioTimeout,
	})
}

// parseClientArgs parses flags and checks the positional argument count.
func parseClientArgs(name, synopsis string, args []string, minArgs, maxArgs int) (*clientFlags, []string, error) {
	fs := newFlagSet(name, synopsis)
	var flags clientFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	positional := fs.Args()
	if len(positional) < minArgs || len(positional) > maxArgs {
		fs.Usage()
		return nil, nil, fmt.Errorf("%s: expected %s", name, synopsis)
	}
	return &flags, positional, nil
}

func runNamespace(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("ns: expected 'create' or 'delete'")
	}

	switch args[0] {
	case "create":
		flags, _, err := parseClientArgs("ns create", "[flags]", args[1:], 0, 0)
		if err != nil {
			return err
		}
		ns, err := flags.client().CreateNamespace(ctx)
		if err != nil {
			return err
		}
		fmt.Println(ns)
		return nil

	case "delete":
		flags, positional, err := parseClientArgs("ns delete", "<ns> [flags]", args[1:], 1, 1)
		if err != nil {
			return err
		}
		ns, err := parseNamespace(positional[0])
		if err != nil {
			return err
		}
		freed, err := flags.client().DeleteNamespace(ctx, ns)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted namespace %s, freed %s\n", ns, humanize.IBytes(freed))
		return nil

	default:
		return fmt.Errorf("ns: unknown subcommand %q", args[0])
	}
}

func runPut(ctx context.Context, args []string) error {
	flags, positional, err := parseClientArgs("put", "<ns> <path> <file|-> [flags]", args, 3, 3)
	if err != nil {
		return err
	}
	ns, err := parseNamespace(positional[0])
	if err != nil {
		return err
	}

	src, size, cleanup, err := openSource(positional[2])
	if err != nil {
		return err
	}
	defer cleanup()

	if err := flags.client().Upload(ctx, ns, positional[1], src, size); err != nil {
		return err
	}
	fmt.Printf("Uploaded %s (%s)\n", positional[1], humanize.IBytes(size))
	return nil
}

func runGet(ctx context.Context, args []string) error {
	flags, positional, err := parseClientArgs("get", "<ns> <path> [file] [flags]", args, 2, 3)
	if err != nil {
		return err
	}
	ns, err := parseNamespace(positional[0])
	if err != nil {
		return err
	}

	if len(positional) == 2 || positional[2] == "-" {
		_, err := flags.client().Download(ctx, ns, positional[1], os.Stdout)
		return err
	}

	dest := positional[2]
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	n, err := flags.client().Download(ctx, ns, positional[1], f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return err
	}

	fmt.Fprintf(os.Stderr, "Downloaded %s (%s)\n", positional[1], humanize.IBytes(uint64(n)))
	return nil
}

func runRemove(ctx context.Context, args []string) error {
	flags, positional, err := parseClientArgs("rm", "<ns> <path> [flags]", args, 2, 2)
	if err != nil {
		return err
	}
	ns, err := parseNamespace(positional[0])
	if err != nil {
		return err
	}

	freed, err := flags.client().Delete(ctx, ns, positional[1])
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %s, freed %s\n", positional[1], humanize.IBytes(freed))
	return nil
}

func runList(ctx context.Context, args []string) error {
	flags, positional, err := parseClientArgs("ls", "<ns> [prefix] [flags]", args, 1, 2)
	if err != nil {
		return err
	}
	ns, err := parseNamespace(positional[0])
	if err != nil {
		return err
	}

	prefix := ""
	if len(positional) == 2 {
		prefix = positional[1]
	}

	records, err := flags.client().List(ctx, ns, prefix)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if rec.IsDir {
			fmt.Printf("%10s  %s/\n", "-", rec.Path)
			continue
		}
		fmt.Printf("%10s  %s\n", humanize.IBytes(uint64(rec.Size)), rec.Path)
	}
	return nil
}

func parseNamespace(s string) (uuid.UUID, error) {
	ns, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid namespace %q: %w", s, err)
	}
	return ns, nil
}

// openSource opens a regular file, or spools stdin to a temp file so its
// size is known before the header is sent.
func openSource(name string) (io.Reader, uint64, func(), error) {
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, 0, nil, err
		}
		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, 0, nil, err
		}
		if !info.Mode().IsRegular() {
			_ = f.Close()
			return nil, 0, nil, fmt.Errorf("%s is not a regular file", name)
		}
		return f, uint64(info.Size()), func() { _ = f.Close() }, nil
	}

	spool, err := os.CreateTemp("", "tcpfs-put-*")
	if err != nil {
		return nil, 0, nil, err
	}
	cleanup := func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}

	n, err := io.Copy(spool, os.Stdin)
	if err == nil {
		_, err = spool.Seek(0, io.SeekStart)
	}
	if err != nil {
		cleanup()
		return nil, 0, nil, err
	}
	return spool, uint64(n), cleanup, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
