package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pior/memcached/client"
	"github.com/pior/memcached/protocol"
)

func rawCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "raw <frame>",
		Short: "Send one literal frame and print the reply",
		Long: `Send one literal frame to the first server and print the reply verbatim.
The escapes \r and \n are expanded and a missing final CRLF is added:

  memcache-cli raw 'set k 0 0 5\r\nhello'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			return sendRaw(ctx, opts.servers[0], expandFrame(args[0]), cmd.OutOrStdout())
		},
	}
}

// expandFrame turns a shell argument into a wire frame.
func expandFrame(arg string) []byte {
	frame := strings.NewReplacer(`\r`, "\r", `\n`, "\n").Replace(arg)
	if !strings.HasSuffix(frame, protocol.CRLF) {
		frame += protocol.CRLF
	}
	return []byte(frame)
}

// sendRaw writes frame and copies the reply to out. No reply is awaited for
// storage frames carrying the no-reply marker.
func sendRaw(ctx context.Context, addr string, frame []byte, out io.Writer) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}

	if _, err := conn.Write(frame); err != nil {
		return err
	}

	if cmd, err := protocol.Parse(frame); err == nil && cmd.NoReply {
		fmt.Fprintln(out, "(no reply requested)")
		return nil
	}

	// Tee the bytes consumed by the reply reader so the reply is printed verbatim.
	var reply strings.Builder
	r := bufio.NewReader(io.TeeReader(conn, &reply))
	if _, err := client.ReadResponse(r); err != nil {
		return err
	}

	_, err = io.WriteString(out, reply.String())
	return err
}
