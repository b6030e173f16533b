package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2cdev/cmd/regctl/console"
	"github.com/mklimuk/i2cdev/register"
	"github.com/mklimuk/i2cdev/resumable"
)

var scanCmd = cli.Command{
	Name:  "scan",
	Usage: "probe every 7-bit address and list the ones that acknowledge",
	Action: withSession(func(c *cli.Context, s *session) error {
		found := map[byte]bool{}
		for addr := byte(0x08); addr <= 0x77; addr++ {
			err := resumable.Run(s.ctx, register.New(s.transport, addr).Probe())
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				return console.Exit(1, "scan interrupted: %s", ctxErr)
			}
			// a missing device is a failed probe, not a scan error
			found[addr] = err == nil
		}

		w := tabwriter.NewWriter(os.Stdout, 4, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "  \t")
		for col := 0; col < 16; col++ {
			_, _ = fmt.Fprintf(w, "%x\t", col)
		}
		_, _ = fmt.Fprintln(w)
		count := 0
		for row := 0; row < 8; row++ {
			_, _ = fmt.Fprintf(w, "%x0\t", row)
			for col := 0; col < 16; col++ {
				addr := byte(row<<4 | col)
				switch {
				case addr < 0x08 || addr > 0x77:
					_, _ = fmt.Fprint(w, " \t")
				case found[addr]:
					count++
					_, _ = fmt.Fprintf(w, "%s\t", console.Green(fmt.Sprintf("%02x", addr)))
				default:
					_, _ = fmt.Fprint(w, "--\t")
				}
			}
			_, _ = fmt.Fprintln(w)
		}
		_ = w.Flush()
		console.Infof("%s devices found", console.White(count))
		return nil
	}),
}
