package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-stdlog/stdlog"

	"github.com/heyvito/btrieve"
	"github.com/heyvito/btrieve/errors"
)

const usage = `usage: mbbsdb [flags] COMMAND [ARGS...]

Commands:
  view FILE...        print the layout and records of each file
  convert FILE...     convert legacy .DAT files into data files
  dump FILE OUT       write a compressed dump of FILE into OUT
  restore IN FILE     recreate FILE from the dump held by IN
  shell FILE          browse FILE interactively

Flags:
`

func main() {
	dir := flag.String("dir", ".", "Directory holding data files")
	verbose := flag.Bool("v", false, "Log registry activity to stderr")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := btrieve.Config{DataDir: *dir}
	if *verbose {
		cfg.Logger = stdlog.NewStd(os.Stderr)
	}
	r, err := btrieve.NewRegistry(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mbbsdb:", err)
		os.Exit(1)
	}

	err = run(r, args[0], args[1:], os.Stdin, os.Stdout)
	if shutdownErr := r.Shutdown(); err == nil {
		err = shutdownErr
	}
	if err == errUsage {
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "mbbsdb:", err)
		os.Exit(1)
	}
}

var errUsage = fmt.Errorf("invalid usage")

func run(r *btrieve.Registry, command string, args []string, in io.Reader, out io.Writer) error {
	switch command {
	case "view":
		if len(args) == 0 {
			return errUsage
		}
		for _, name := range args {
			if err := view(r, name, out); err != nil {
				return err
			}
		}
		return nil
	case "convert":
		if len(args) == 0 {
			return errUsage
		}
		for _, name := range args {
			if err := convert(r, name, out); err != nil {
				return err
			}
		}
		return nil
	case "dump":
		if len(args) != 2 {
			return errUsage
		}
		return dump(r, args[0], args[1], out)
	case "restore":
		if len(args) != 2 {
			return errUsage
		}
		return restore(r, args[0], args[1], out)
	case "shell":
		if len(args) != 1 {
			return errUsage
		}
		token, e, err := open(r, args[0])
		if err != nil {
			return err
		}
		defer r.Close(token)
		return newShell(e, out).run(in)
	}
	return errUsage
}

func open(r *btrieve.Registry, name string) (btrieve.Token, btrieve.Engine, error) {
	token, e, err := r.Open(name, make([]byte, btrieve.PositionBlockSize))
	if err != nil {
		return token, nil, fmt.Errorf("%s: %w", name, err)
	}
	return token, e, nil
}

func view(r *btrieve.Registry, name string, out io.Writer) error {
	token, e, err := open(r, name)
	if err != nil {
		return err
	}
	defer r.Close(token)

	fmt.Fprintf(out, "%s: %d records\n", name, e.RecordCount())
	printSchema(out, e.Schema())
	for rec, err := e.StepFirst(); ; rec, err = e.StepNext() {
		if errors.StatusOf(err) == errors.InvalidPositioning {
			return nil
		}
		if err != nil {
			return err
		}
		printRecord(out, rec)
	}
}

func convert(r *btrieve.Registry, name string, out io.Writer) error {
	token, e, err := open(r, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d records\n", name, e.RecordCount())
	return r.Close(token)
}

func dump(r *btrieve.Registry, name, path string, out io.Writer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	count, err := r.Dump(name, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: dumped %d records into %s\n", name, count, path)
	return nil
}

func restore(r *btrieve.Registry, path, name string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	count, err := r.Restore(name, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: restored %d records from %s\n", name, count, path)
	return nil
}

func printSchema(out io.Writer, s *btrieve.Schema) {
	fmt.Fprintf(out, "record length %d, page size %d, %d keys\n", s.RecordLength, s.PageSize, len(s.Keys))
	for _, k := range s.Keys {
		for i, seg := range k.Segments {
			label := fmt.Sprintf("key %d", k.Number)
			if i > 0 {
				label = strings.Repeat(" ", len(label))
			}
			fmt.Fprintf(out, "  %s  offset %-4d length %-4d %-14s attributes %#04x\n",
				label, seg.Offset, seg.Length, seg.EffectiveType(), uint16(seg.Attributes))
		}
	}
}

func printRecord(out io.Writer, rec *btrieve.Record) {
	fmt.Fprintf(out, "%8d  %s\n", rec.Offset, printable(rec.Data))
}

// printable renders data replacing control and non-ASCII bytes with dots.
func printable(data []byte) string {
	b := make([]byte, len(data))
	for i, c := range data {
		if c < 0x20 || c > 0x7E {
			c = '.'
		}
		b[i] = c
	}
	return string(b)
}
