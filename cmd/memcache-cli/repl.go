package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pior/memcached/client"
	"github.com/pior/memcached/protocol"
)

const help = `Commands:
  get <key>...                               Get values
  gets <key>                                 Get a value with its CAS token
  set|add|replace <key> <value> [ttl] [flags] Store a value
  append|prepend <key> <value>               Extend a value
  cas <key> <token> <value> [ttl] [flags]    Store if unchanged since gets
  stats                                      Show client and pool statistics
  help                                       Show this help
  quit                                       Exit`

// repl reads one command per line from in until EOF or quit.
func repl(in io.Reader, out io.Writer, c *client.Client, timeout time.Duration) error {
	fmt.Fprintln(out, "Type 'help' for available commands.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		command := strings.ToLower(parts[0])
		if command == "quit" || command == "exit" {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		start := time.Now()
		msg, err := execute(ctx, c, command, parts[1:])
		cancel()

		switch {
		case err != nil:
			fmt.Fprintf(out, "Error: %v (took %v)\n", err, time.Since(start))
		case msg != "":
			fmt.Fprintf(out, "%s (took %v)\n", msg, time.Since(start))
		}
	}

	return scanner.Err()
}

var errUsage = errors.New("invalid arguments, type 'help' for usage")

// execute runs one shell command and returns the message to print.
func execute(ctx context.Context, c *client.Client, command string, args []string) (string, error) {
	switch command {
	case "help":
		return help, nil

	case "get":
		if len(args) == 0 {
			return "", errUsage
		}
		items, err := c.GetMulti(ctx, args)
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		for _, key := range args {
			item, ok := items[key]
			if !ok {
				fmt.Fprintf(&sb, "%s: <not found>\n", key)
				continue
			}
			fmt.Fprintf(&sb, "%s: %s (flags %s)\n", key, item.Value, protocol.FormatFlags(item.Flags))
		}
		fmt.Fprintf(&sb, "Retrieved %d out of %d keys", len(items), len(args))
		return sb.String(), nil

	case "gets":
		if len(args) != 1 {
			return "", errUsage
		}
		item, err := c.Gets(ctx, args[0])
		if errors.Is(err, client.ErrCacheMiss) {
			return "Key not found", nil
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s (flags %s, cas %s)", item.Value, protocol.FormatFlags(item.Flags), item.CAS), nil

	case "set", "add", "replace":
		if len(args) < 2 || len(args) > 4 {
			return "", errUsage
		}
		item, err := parseItem(args[0], args[1], args[2:])
		if err != nil {
			return "", err
		}
		store := map[string]func(context.Context, client.Item) error{
			"set":     c.Set,
			"add":     c.Add,
			"replace": c.Replace,
		}[command]
		return outcome(store(ctx, item))

	case "append", "prepend":
		if len(args) != 2 {
			return "", errUsage
		}
		if command == "append" {
			return outcome(c.Append(ctx, args[0], []byte(args[1])))
		}
		return outcome(c.Prepend(ctx, args[0], []byte(args[1])))

	case "cas":
		if len(args) < 3 || len(args) > 5 {
			return "", errUsage
		}
		item, err := parseItem(args[0], args[2], args[3:])
		if err != nil {
			return "", err
		}
		item.CAS = args[1]
		return outcome(c.CompareAndSwap(ctx, item))

	case "stats":
		return formatStats(c), nil

	default:
		return "", fmt.Errorf("unknown command %q, type 'help' for available commands", command)
	}
}

// parseItem builds an item from a key, a value and optional ttl seconds and flags.
func parseItem(key, value string, rest []string) (client.Item, error) {
	item := client.Item{Key: key, Value: []byte(value)}

	if len(rest) > 0 {
		seconds, err := strconv.Atoi(rest[0])
		if err != nil || seconds < 0 {
			return client.Item{}, fmt.Errorf("invalid ttl %q", rest[0])
		}
		item.TTL = time.Duration(seconds) * time.Second
	}

	if len(rest) > 1 {
		flags, err := strconv.ParseFloat(rest[1], 64)
		if err != nil || flags < 0 {
			return client.Item{}, fmt.Errorf("invalid flags %q", rest[1])
		}
		item.Flags = flags
	}

	return item, nil
}

// outcome renders the result of a storage command.
func outcome(err error) (string, error) {
	switch {
	case err == nil:
		return "Stored", nil
	case errors.Is(err, client.ErrNotStored):
		return "Not stored", nil
	case errors.Is(err, client.ErrNotFound):
		return "Not found", nil
	case errors.Is(err, client.ErrCASConflict):
		return "Exists: modified since fetched", nil
	default:
		return "", err
	}
}

func formatStats(c *client.Client) string {
	var sb strings.Builder

	s := c.Stats()
	fmt.Fprintf(&sb, "Client: gets=%d hits=%d sets=%d adds=%d replaces=%d appends=%d prepends=%d cas=%d errors=%d\n",
		s.Gets, s.GetHits, s.Sets, s.Adds, s.Replaces, s.Appends, s.Prepends, s.CompareAndSwaps, s.Errors)

	pools := c.AllPoolStats()
	sort.Slice(pools, func(i, j int) bool { return pools[i].Addr < pools[j].Addr })

	for _, p := range pools {
		fmt.Fprintf(&sb, "Server %s: total=%d idle=%d active=%d created=%d destroyed=%d",
			p.Addr, p.PoolStats.TotalConns, p.PoolStats.IdleConns, p.PoolStats.ActiveConns,
			p.PoolStats.CreatedConns, p.PoolStats.DestroyedConns)
		if p.CircuitBreakerState != "" {
			fmt.Fprintf(&sb, " breaker=%s", p.CircuitBreakerState)
		}
		sb.WriteString("\n")
	}

	return strings.TrimSuffix(sb.String(), "\n")
}
