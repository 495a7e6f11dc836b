// oyster-cli runs a single command against a running oysterd server.
//
// Usage:
//
//	oyster-cli [-addr http://localhost:5072] <command> [args...]
//
// Commands:
//
//	dump
//	scan
//	get <KEY>
//	insert <KEY> <VALUE>
//	incr <KEY>
//	decr <KEY>
//	remove <KEY>
//	filter <PATTERN>
//	filter_keys <PATTERN>
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/oysterdb/oysterd/client"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: oyster-cli [-addr URL] <command> [args...]")
	fmt.Fprintln(os.Stderr, "commands: dump, scan, get KEY, insert KEY VALUE, incr KEY, decr KEY, remove KEY, filter PATTERN, filter_keys PATTERN")
}

func main() {
	addr := flag.String("addr", client.DefaultURL, "oysterd server URL")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	c := client.New(*addr)
	cmd, rest := args[0], args[1:]

	if err := run(c, cmd, rest); err != nil {
		fmt.Fprintf(os.Stderr, "oyster-cli: %v\n", err)
		os.Exit(1)
	}
}

func run(c *client.Client, cmd string, args []string) error {
	switch cmd {
	case "dump":
		out, err := c.Dump()
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil

	case "scan":
		return c.Scan()

	case "get":
		key, err := arg(args, 0, "KEY")
		if err != nil {
			return err
		}
		v, ok, err := c.Get(key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("key %q not found", key)
		}
		fmt.Println(v)
		return nil

	case "insert":
		key, err := arg(args, 0, "KEY")
		if err != nil {
			return err
		}
		value, err := arg(args, 1, "VALUE")
		if err != nil {
			return err
		}
		return c.Insert(key, value)

	case "incr":
		key, err := arg(args, 0, "KEY")
		if err != nil {
			return err
		}
		return c.Incr(key)

	case "decr":
		key, err := arg(args, 0, "KEY")
		if err != nil {
			return err
		}
		return c.Decr(key)

	case "remove":
		key, err := arg(args, 0, "KEY")
		if err != nil {
			return err
		}
		return c.Remove(key)

	case "filter":
		pattern, err := arg(args, 0, "PATTERN")
		if err != nil {
			return err
		}
		matches, err := c.Filter(pattern)
		if err != nil {
			return err
		}
		for _, m := range matches {
			fmt.Printf("%s = %s\n", m.Key, m.Value)
		}
		return nil

	case "filter_keys":
		pattern, err := arg(args, 0, "PATTERN")
		if err != nil {
			return err
		}
		keys, err := c.FilterKeys(pattern)
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func arg(args []string, i int, name string) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing required argument %s", name)
	}
	return args[i], nil
}
