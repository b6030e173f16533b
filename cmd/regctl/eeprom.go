package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2cdev/cmd/regctl/console"
	"github.com/mklimuk/i2cdev/storage"
)

var eepromCmd = cli.Command{
	Name:  "eeprom",
	Usage: "24Cxx serial EEPROM",
	Subcommands: cli.Commands{
		&eepromProbeCmd,
		&eepromReadCmd,
		&eepromWriteCmd,
		&eepromDumpCmd,
	},
}

func newEEPROM(s *session) *storage.EEPROM {
	return storage.New(s.transport,
		storage.WithAddress(byte(s.cfg.Devices.EEPROM.Address)),
		storage.WithPageSize(s.cfg.Devices.EEPROM.PageSize),
		storage.WithTransferLimit(s.maxTransfer),
		storage.WithLogger(slog.Default()),
	)
}

// readChunked fills buf with reads no longer than the memory accepts.
func readChunked(ctx context.Context, mem *storage.EEPROM, addr uint16, buf []byte) error {
	for off := 0; off < len(buf); off += mem.MaxRead() {
		end := min(off+mem.MaxRead(), len(buf))
		if err := mem.ReadBlocking(ctx, addr+uint16(off), buf[off:end]); err != nil {
			return fmt.Errorf("read at %#04x: %w", int(addr)+off, err)
		}
	}
	return nil
}

func parseAddress(arg string) (uint16, error) {
	v, err := strconv.ParseUint(arg, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid memory address %q: %w", arg, err)
	}
	return uint16(v), nil
}

var eepromProbeCmd = cli.Command{
	Name:  "probe",
	Usage: "check whether the memory acknowledges its address",
	Action: withSession(func(c *cli.Context, s *session) error {
		if !newEEPROM(s).IsAvailableBlocking(s.ctx) {
			console.PInfof(console.PictoStop, "no answer at %#x", s.cfg.Devices.EEPROM.Address)
			return cli.Exit("", 2)
		}
		console.PInfof(console.PictoFloppy, "eeprom ready at %s", console.White(fmt.Sprintf("%#x", s.cfg.Devices.EEPROM.Address)))
		return nil
	}),
}

var eepromReadCmd = cli.Command{
	Name:      "read",
	Usage:     "read bytes starting at an address",
	ArgsUsage: "<address> [length]",
	Action: withSession(func(c *cli.Context, s *session) error {
		if c.NArg() < 1 {
			return console.Exit(1, "address is required")
		}
		addr, err := parseAddress(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%s", err)
		}
		length := 16
		if c.NArg() > 1 {
			length, err = strconv.Atoi(c.Args().Get(1))
			if err != nil || length <= 0 {
				return console.Exit(1, "invalid length %q", c.Args().Get(1))
			}
		}
		buf := make([]byte, length)
		if err := readChunked(s.ctx, newEEPROM(s), addr, buf); err != nil {
			return console.Exit(1, "read error: %s", console.Red(err))
		}
		console.Print(hexDump(addr, buf))
		return nil
	}),
}

var eepromWriteCmd = cli.Command{
	Name:      "write",
	Usage:     "write hex encoded bytes at an address; longer data is split into pages",
	ArgsUsage: "<address> <hex data>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
	},
	Action: withSession(func(c *cli.Context, s *session) error {
		if c.NArg() != 2 {
			return console.Exit(1, "address and data are required")
		}
		addr, err := parseAddress(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%s", err)
		}
		data, err := hex.DecodeString(strings.TrimPrefix(c.Args().Get(1), "0x"))
		if err != nil {
			return console.Exit(1, "invalid data: %s", console.Red(err))
		}
		if !c.Bool("yes") {
			ok, err := console.Confirm(fmt.Sprintf("write %d bytes at %#04x?", len(data), addr))
			if err != nil {
				return console.Exit(1, "prompt error: %s", err)
			}
			if !ok {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}
		if err := newEEPROM(s).WritePagesBlocking(s.ctx, addr, data); err != nil {
			return console.Exit(1, "write error: %s", console.Red(err))
		}
		console.PInfof(console.PictoFinish, "%s bytes written", console.Green(len(data)))
		return nil
	}),
}

var eepromDumpCmd = cli.Command{
	Name:  "dump",
	Usage: "read the whole memory",
	Action: withSession(func(c *cli.Context, s *session) error {
		mem := newEEPROM(s)
		size := s.cfg.Devices.EEPROM.Size
		chunk := make([]byte, mem.MaxRead())
		for addr := 0; addr < size; addr += len(chunk) {
			n := min(len(chunk), size-addr)
			if err := mem.ReadBlocking(s.ctx, uint16(addr), chunk[:n]); err != nil {
				return console.Exit(1, "read error at %#04x: %s", addr, console.Red(err))
			}
			console.Print(hexDump(uint16(addr), chunk[:n]))
		}
		return nil
	}),
}

// hexDump formats data in 16 byte rows prefixed with their memory address.
func hexDump(base uint16, data []byte) string {
	var sb strings.Builder
	for off := 0; off < len(data); off += 16 {
		end := min(off+16, len(data))
		fmt.Fprintf(&sb, "%s  % x\n", console.White(fmt.Sprintf("%04x", int(base)+off)), data[off:end])
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
