package geocode

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDump = "US\t02134\tAllston\tMassachusetts\tMA\tSuffolk\t025\t\t\t42.3539\t-71.1337\t\n" +
	"US\t02134\tDuplicate\tMassachusetts\tMA\tSuffolk\t025\t\t\t42.3539\t-71.1337\t\n" +
	"US\t96799\tPago Pago\tAmerican Samoa\tAS\t\t\t\t\t-14.2781\t-170.7023\t\n" +
	"US\t30301\tAtlanta\tGeorgia\tGA\tFulton\t121\t\t\t33.7525\t-84.3888\t4\n" +
	"short\trow\n"

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNormalizePostalCode(t *testing.T) {
	assert.Equal(t, "02134", NormalizePostalCode("02134-5678"))
	assert.Equal(t, "02134", NormalizePostalCode(" 02134 "))
	assert.Equal(t, "", NormalizePostalCode(""))
}

func TestLoadTable(t *testing.T) {
	table, err := LoadTable(strings.NewReader(sampleDump))
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())

	ctx := context.Background()

	place, err := table.Lookup(ctx, "02134-1234")
	require.NoError(t, err)
	assert.Equal(t, Place{StateCode: "MA", PlaceName: "Allston", CountyName: "Suffolk"}, place)

	place, err = table.Lookup(ctx, "96799")
	require.NoError(t, err)
	assert.Empty(t, place.CountyName)
	assert.Equal(t, "AS", place.StateCode)

	_, err = table.Lookup(ctx, "00000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTable_EachIsSorted(t *testing.T) {
	table := NewTable(map[string]Place{
		"30301": {StateCode: "GA"},
		"02134": {StateCode: "MA"},
	})

	var zips []string
	require.NoError(t, table.Each(func(zip string, _ Place) error {
		zips = append(zips, zip)
		return nil
	}))
	assert.Equal(t, []string{"02134", "30301"}, zips)
}

func TestRedisIndex_LoadAndLookup(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	table, err := LoadTable(strings.NewReader(sampleDump))
	require.NoError(t, err)

	index := NewRedisIndex(client, "")
	n, err := index.Load(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "Atlanta", mr.HGet("geo:us:30301", "place_name"))

	place, err := index.Lookup(ctx, "30301")
	require.NoError(t, err)
	assert.Equal(t, Place{StateCode: "GA", PlaceName: "Atlanta", CountyName: "Fulton"}, place)

	_, err = index.Lookup(ctx, "99999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisIndex_BackendDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err = NewRedisIndex(client, "").Lookup(context.Background(), "30301")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

type stubGeocoder struct {
	place Place
	err   error
	calls int
}

func (s *stubGeocoder) Lookup(context.Context, string) (Place, error) {
	s.calls++
	return s.place, s.err
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("redis unavailable")

	t.Run("falls through to next on failure", func(t *testing.T) {
		first := &stubGeocoder{err: boom}
		second := &stubGeocoder{place: Place{StateCode: "MA"}}

		place, err := Chain{first, second}.Lookup(ctx, "02134")
		require.NoError(t, err)
		assert.Equal(t, "MA", place.StateCode)
		assert.Equal(t, 1, first.calls)
	})

	t.Run("stops at first match", func(t *testing.T) {
		first := &stubGeocoder{place: Place{PlaceName: "Allston"}}
		second := &stubGeocoder{place: Place{StateCode: "MA"}}

		place, err := Chain{first, nil, second}.Lookup(ctx, "02134")
		require.NoError(t, err)
		assert.Equal(t, "Allston", place.PlaceName)
		assert.Zero(t, second.calls)
	})

	t.Run("miss everywhere", func(t *testing.T) {
		_, err := Chain{&stubGeocoder{err: ErrNotFound}, &stubGeocoder{}}.Lookup(ctx, "02134")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("reports backend errors", func(t *testing.T) {
		_, err := Chain{&stubGeocoder{err: boom}, &stubGeocoder{err: ErrNotFound}}.Lookup(ctx, "02134")
		assert.ErrorIs(t, err, boom)
	})
}
