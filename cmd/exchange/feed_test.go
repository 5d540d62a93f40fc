package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/joripage/coinexchange/config"
	"github.com/joripage/coinexchange/pkg/exchange"
	"github.com/stretchr/testify/require"
)

func newTestExchange(t *testing.T) *exchange.Exchange {
	t.Helper()
	instruments, err := buildInstruments([]config.InstrumentConfig{
		{Symbol: "BTCUSD", TickSize: "0.5", MaxPrice: "1000"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, instruments[0].Rules, 2)

	ex, err := exchange.New(instruments, exchange.Options{})
	require.NoError(t, err)
	return ex
}

func results(t *testing.T, out *bytes.Buffer) []result {
	t.Helper()
	var res []result
	s := bufio.NewScanner(out)
	for s.Scan() {
		var r result
		require.NoError(t, json.Unmarshal(s.Bytes(), &r))
		res = append(res, r)
	}
	return res
}

func TestRunFeed(t *testing.T) {
	ex := newTestExchange(t)
	feed := strings.Join([]string{
		`# resting ask`,
		`{"op":"submit","id":"1","symbol":"BTCUSD","side":"SELL","type":"LIMIT","price":"100","volume":"2","trader":"alice"}`,
		`{"op":"submit","id":"2","symbol":"BTCUSD","side":"buy","type":"market","volume":"1.5","trader":"bob"}`,
		`{"op":"submit","id":"3","symbol":"BTCUSD","side":"BUY","type":"LIMIT","price":"99.3","volume":"1","trader":"bob"}`,
		`{"op":"submit","id":"4","symbol":"BTCUSD","side":"BUY","type":"LIMIT","price":"2000","volume":"1","trader":"bob"}`,
		`{"op":"depth","symbol":"BTCUSD","levels":5}`,
		`{"op":"cancel","symbol":"BTCUSD","id":"1"}`,
		`{"op":"cancel","symbol":"BTCUSD","id":"1"}`,
		`not json`,
		`{"op":"modify"}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, runFeed(context.Background(), ex, strings.NewReader(feed), &out))
	res := results(t, &out)
	require.Len(t, res, 9)

	require.Empty(t, res[0].Error)
	require.Empty(t, res[0].Trades)

	require.Len(t, res[1].Trades, 1)
	require.Equal(t, "100", res[1].Trades[0].Price.String())
	require.Equal(t, "1.5", res[1].Trades[0].Volume.String())
	require.Equal(t, "1", res[1].Trades[0].Sell)

	require.Contains(t, res[2].Error, "tick")
	require.NotEmpty(t, res[3].Error)

	require.Empty(t, res[4].Bids)
	require.Len(t, res[4].Asks, 1)
	require.Equal(t, "0.5", res[4].Asks[0].Volume.String())

	require.True(t, *res[5].Canceled)
	require.False(t, *res[6].Canceled)

	require.Equal(t, "invalid", res[7].Op)
	require.Contains(t, res[8].Error, "unknown op")
}

func TestRunFeedStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := runFeed(ctx, newTestExchange(t), strings.NewReader(`{"op":"depth","symbol":"BTCUSD"}`), &out)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, out.Len())
}

func TestBuildInstrumentsWithoutBounds(t *testing.T) {
	instruments, err := buildInstruments([]config.InstrumentConfig{{Symbol: "ETHUSD", Base: "ETH", Quote: "USD"}}, nil)
	require.NoError(t, err)
	require.Empty(t, instruments[0].Rules) // no repository, no balance rule
}
