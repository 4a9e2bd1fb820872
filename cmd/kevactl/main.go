// Package main implements kevactl, the offline inspection tool for a keva
// store directory.
//
// kevactl opens the store the same way the server does and surfaces its
// diagnostics without going through the network layer:
//
//	kevactl --dir /var/lib/keva info         # engine statistics and size
//	kevactl --dir /var/lib/keva stats        # binlog queue summary
//	kevactl --dir /var/lib/keva keyrange     # smallest/largest name per type
//	kevactl --dir /var/lib/keva binlog-tail --from 1 --count 20
//
// A configuration file can stand in for --dir and carries the engine tuning
// the server runs with:
//
//	kevactl --config /etc/keva.yml stats
//
// The engine allows a single process at a time; run kevactl against a
// stopped server or a copy of its directory.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dreamware/keva/internal/binlog"
	"github.com/dreamware/keva/internal/config"
	"github.com/dreamware/keva/internal/store"
)

const usage = "usage: kevactl [--config file | --dir dir] <info|stats|keyrange|binlog-tail>"

func main() {
	cfgPath := pflag.String("config", "", "configuration file (yaml)")
	dir := pflag.String("dir", "", "store directory (overrides config)")
	from := pflag.Uint64("from", 1, "binlog-tail: first seq to read")
	count := pflag.Uint64("count", 10, "binlog-tail: how many records")
	verbose := pflag.Bool("verbose", false, "log engine diagnostics to stderr")
	pflag.Parse()

	out, err := run(pflag.Args(), *cfgPath, *dir, *from, *count, *verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "kevactl:", err)
		os.Exit(1)
	}
	fmt.Print(out)
}

func run(args []string, cfgPath, dir string, from, count uint64, verbose bool) (string, error) {
	if len(args) != 1 {
		return "", errors.New(usage)
	}

	opts := store.DefaultOptions()
	if cfgPath != "" {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return "", err
		}
		opts = cfg.StoreOptions()
		if dir == "" {
			dir = cfg.Dir
		}
	}
	if dir == "" {
		return "", errors.New("either --config or --dir is required")
	}
	if verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return "", err
		}
		defer logger.Sync()
		opts.Logger = logger
	}

	s, err := store.Open(dir, opts)
	if err != nil {
		return "", err
	}
	defer s.Close()

	switch args[0] {
	case "info":
		return infoText(s)
	case "stats":
		return s.Binlogs().Stats() + "\n", nil
	case "keyrange":
		return keyRangeText(s)
	case "binlog-tail":
		return tailText(s, from, count)
	default:
		return "", fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func infoText(s *store.Store) (string, error) {
	var sb strings.Builder
	size, err := s.Size()
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&sb, "approximate size: %d bytes\n", size)
	pairs := s.Info()
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&sb, "%s:\n%s\n", pairs[i], pairs[i+1])
	}
	return sb.String(), nil
}

func keyRangeText(s *store.Store) (string, error) {
	kr, err := s.KeyRange()
	if err != nil {
		return "", err
	}
	labels := []string{"kv", "hash", "zset", "queue"}
	var sb strings.Builder
	for i, label := range labels {
		fmt.Fprintf(&sb, "%s: [%q, %q]\n", label, kr[2*i], kr[2*i+1])
	}
	return sb.String(), nil
}

func tailText(s *store.Store, from, count uint64) (string, error) {
	var sb strings.Builder
	seq := from
	for n := uint64(0); n < count; n++ {
		rec, err := s.Binlogs().FindNext(seq)
		if errors.Is(err, binlog.ErrNotFound) {
			break
		}
		if err != nil {
			return "", err
		}
		fmt.Fprintln(&sb, rec.String())
		seq = rec.Seq() + 1
	}
	return sb.String(), nil
}
