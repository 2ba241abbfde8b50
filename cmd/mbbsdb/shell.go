package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/heyvito/btrieve"
	"github.com/heyvito/btrieve/internal"
)

const shellHelp = `Commands:
  first | last | next | prev      step through records in physical order
  seek KEY OP [VALUE]             look a record up by key; OP is one of
                                  eq gt ge lt le first last next prev
  pos                             print the position of the current record
  stat                            print the file layout
  delete                          delete the current record
  help                            print this message
  quit                            leave the shell`

var shellOperators = map[string]btrieve.Operator{
	"eq":    btrieve.Equal,
	"gt":    btrieve.GreaterThan,
	"ge":    btrieve.GreaterOrEqual,
	"lt":    btrieve.LessThan,
	"le":    btrieve.LessOrEqual,
	"first": btrieve.First,
	"last":  btrieve.Last,
	"next":  btrieve.Next,
	"prev":  btrieve.Previous,
}

type shell struct {
	e   btrieve.Engine
	out io.Writer
}

func newShell(e btrieve.Engine, out io.Writer) *shell {
	return &shell{e: e, out: out}
}

func (s *shell) run(in io.Reader) error {
	reader := bufio.NewReader(in)
	fmt.Fprintf(s.out, "%d records. Type 'help' for commands or 'quit' to leave.\n", s.e.RecordCount())

	for {
		fmt.Fprint(s.out, "> ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				return nil
			}
			return err
		}

		words, err := shellquote.Split(line)
		if err != nil {
			fmt.Fprintln(s.out, "parse error:", err)
			continue
		}
		if len(words) == 0 {
			continue
		}
		if words[0] == "quit" || words[0] == "exit" {
			return nil
		}
		if err = s.execute(words[0], words[1:]); err != nil {
			fmt.Fprintln(s.out, "error:", err)
		}
	}
}

func (s *shell) execute(command string, args []string) error {
	var (
		rec *btrieve.Record
		err error
	)
	switch command {
	case "help":
		fmt.Fprintln(s.out, shellHelp)
		return nil
	case "first":
		rec, err = s.e.StepFirst()
	case "last":
		rec, err = s.e.StepLast()
	case "next":
		rec, err = s.e.StepNext()
	case "prev":
		rec, err = s.e.StepPrevious()
	case "seek":
		rec, err = s.seek(args)
	case "pos":
		pos, err := s.e.GetPosition()
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "position %d of %d\n", pos, s.e.RecordCount())
		return nil
	case "stat":
		printSchema(s.out, s.e.Schema())
		fmt.Fprintf(s.out, "%d records\n", s.e.RecordCount())
		return nil
	case "delete":
		if err = s.e.Delete(); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "deleted")
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		return err
	}
	printRecord(s.out, rec)
	return nil
}

func (s *shell) seek(args []string) (*btrieve.Record, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: seek KEY OP [VALUE]")
	}
	number, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid key number %q", args[0])
	}
	op, ok := shellOperators[strings.ToLower(args[1])]
	if !ok {
		return nil, fmt.Errorf("unknown operator %q", args[1])
	}
	key, ok := s.e.Schema().Key(number)
	if !ok {
		return nil, fmt.Errorf("file has no key %d", number)
	}

	var value []byte
	switch op {
	case btrieve.First, btrieve.Last:
	case btrieve.Next, btrieve.Previous:
		return s.e.Seek(number, nil, op, false)
	default:
		if len(args) != 3 {
			return nil, fmt.Errorf("operator %s requires a value", args[1])
		}
		if value, err = encodeKeyValue(key, args[2]); err != nil {
			return nil, err
		}
	}
	return s.e.Seek(number, value, op, true)
}

// encodeKeyValue converts text into the representation used by key. Numeric
// keys parse text as a number, while other keys take its bytes as is.
func encodeKeyValue(key *btrieve.Key, text string) ([]byte, error) {
	if key.Composite() {
		return []byte(text), nil
	}
	seg := key.Segments[0]
	switch seg.EffectiveType() {
	case btrieve.Integer, btrieve.AutoInc:
		v, err := strconv.ParseInt(text, 10, 8*int(seg.Length))
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", text, err)
		}
		out := make([]byte, seg.Length)
		internal.EncodeSigned(out, v)
		return out, nil
	case btrieve.UnsignedBinary:
		v, err := strconv.ParseUint(text, 10, 8*int(seg.Length))
		if err != nil {
			return nil, fmt.Errorf("invalid unsigned value %q: %w", text, err)
		}
		out := binary.LittleEndian.AppendUint64(nil, v)
		return out[:seg.Length], nil
	case btrieve.Zstring:
		return append([]byte(text), 0), nil
	}
	return []byte(text), nil
}
