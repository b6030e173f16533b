package main

import (
	"context"
	"testing"

	fcolor "github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/i2cdev/color"
	"github.com/mklimuk/i2cdev/config"
	"github.com/mklimuk/i2cdev/environment"
	"github.com/mklimuk/i2cdev/storage"
)

func TestBench(t *testing.T) {
	cfg := config.Default()
	bus := newBench(cfg)
	ctx := context.Background()

	light := color.New(bus)
	require.NoError(t, light.InitializeBlocking(ctx))
	id, err := light.ReadIDBlocking(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(benchColorID), id)
	sample, err := light.GetNewColors(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0400), sample.Clear)

	temp, err := environment.NewTC74(bus).GetTemperature(ctx)
	require.NoError(t, err)
	assert.Equal(t, float32(22), temp)

	mem := storage.New(bus)
	require.NoError(t, mem.WritePagesBlocking(ctx, 0x3E, []byte{1, 2, 3, 4}))
	buf := make([]byte, 4)
	require.NoError(t, mem.ReadBlocking(ctx, 0x3E, buf))
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)
}

func TestHexDump(t *testing.T) {
	fcolor.NoColor = true
	data := make([]byte, 18)
	for i := range data {
		data[i] = byte(i)
	}
	expected := "0010  00 01 02 03 04 05 06 07 08 09 0a 0b 0c 0d 0e 0f\n" +
		"0020  10 11"
	assert.Equal(t, expected, hexDump(0x10, data))
}

func TestParseAddress(t *testing.T) {
	addr, err := parseAddress("0x1F40")
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1F40), addr)
	_, err = parseAddress("0x10000")
	assert.Error(t, err)
}
