package sequence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigilnet/backend/internal/apperr"
	"github.com/vigilnet/backend/internal/testutil"
)

func TestFormatters(t *testing.T) {
	assert.Equal(t, "SRV00000001", FormatServiceCode(1))
	assert.Equal(t, "SRV12345678", FormatServiceCode(12345678))
	assert.Equal(t, "REC2024000042", FormatReceiptNumber(2024, 42))
	assert.Equal(t, "TK000007", FormatTicketNumber(7))
}

func TestDBCounterIncrements(t *testing.T) {
	ctx := context.Background()
	c := NewDBCounter(testutil.NewDB(t))

	for want := int64(1); want <= 3; want++ {
		got, err := c.Next(ctx, "service")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, err := c.Next(ctx, "ticket")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)
}

func assertDistinctRun(t *testing.T, codes []string, prefix string) {
	t.Helper()
	sort.Strings(codes)
	for i := 1; i < len(codes); i++ {
		assert.Less(t, codes[i-1], codes[i], "codes must be unique")
	}
	assert.Equal(t, prefix+"00000001", codes[0])
}

func TestDBCounterConcurrentServiceCodes(t *testing.T) {
	n := NewNumberer(NewDBCounter(testutil.NewDB(t)))
	ctx := context.Background()

	const workers = 50
	codes := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, err := n.ServiceCode(ctx)
			assert.NoError(t, err)
			codes[i] = code
		}(i)
	}
	wg.Wait()

	assertDistinctRun(t, codes, "SRV")
	assert.Equal(t, FormatServiceCode(workers), codes[workers-1])
}

func TestRedisCounterConcurrentServiceCodes(t *testing.T) {
	rdb, _ := testutil.NewRedis(t)
	n := NewNumberer(NewRedisCounter(rdb, "vigilnet:seq:"))
	ctx := context.Background()

	const workers = 50
	codes := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, err := n.ServiceCode(ctx)
			assert.NoError(t, err)
			codes[i] = code
		}(i)
	}
	wg.Wait()

	assertDistinctRun(t, codes, "SRV")
}

func TestServiceCodesIncreaseInCallOrder(t *testing.T) {
	n := NewNumberer(NewDBCounter(testutil.NewDB(t)))
	ctx := context.Background()

	prev := ""
	for i := 0; i < 5; i++ {
		code, err := n.ServiceCode(ctx)
		require.NoError(t, err)
		assert.Greater(t, code, prev)
		prev = code
	}
}

func TestReceiptNumberResetsEachYear(t *testing.T) {
	n := NewNumberer(NewDBCounter(testutil.NewDB(t)))
	ctx := context.Background()

	dec31 := time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)
	jan1 := time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC)

	a, err := n.ReceiptNumber(ctx, dec31)
	require.NoError(t, err)
	b, err := n.ReceiptNumber(ctx, jan1)
	require.NoError(t, err)
	c, err := n.ReceiptNumber(ctx, jan1)
	require.NoError(t, err)

	assert.Equal(t, "REC2024000001", a)
	assert.Equal(t, "REC2025000001", b)
	assert.Equal(t, "REC2025000002", c)
}

func TestRedisSeedOnlyRaises(t *testing.T) {
	rdb, mr := testutil.NewRedis(t)
	c := NewRedisCounter(rdb, "seq:")
	ctx := context.Background()

	require.NoError(t, c.Seed(ctx, "ticket", 10))
	v, err := c.Next(ctx, "ticket")
	require.NoError(t, err)
	assert.Equal(t, int64(11), v)

	require.NoError(t, c.Seed(ctx, "ticket", 3))
	got, err := mr.Get("seq:ticket")
	require.NoError(t, err)
	assert.Equal(t, "11", got)
}

func TestRedisSeedFromDB(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	dbc := NewDBCounter(db)
	for i := 0; i < 3; i++ {
		_, err := dbc.Next(ctx, ServiceCounter)
		require.NoError(t, err)
	}
	_, err := dbc.Next(ctx, "receipt:2024")
	require.NoError(t, err)

	rdb, _ := testutil.NewRedis(t)
	rc := NewRedisCounter(rdb, "seq:")
	require.NoError(t, rc.SeedFromDB(ctx, db))

	n := NewNumberer(rc)
	code, err := n.ServiceCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SRV00000004", code)
	number, err := n.ReceiptNumber(ctx, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "REC2024000002", number)
}

func TestAssignRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	n := NewNumberer(NewDBCounter(testutil.NewDB(t)))

	var tried []string
	err := Assign(ctx, DefaultAttempts, n.TicketNumber, func(number string) error {
		tried = append(tried, number)
		if len(tried) < 2 {
			return apperr.Conflict("create_ticket", "ticket %s exists", number)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"TK000001", "TK000002"}, tried)
}

func TestAssignGivesUpAfterAttempts(t *testing.T) {
	ctx := context.Background()
	n := NewNumberer(NewDBCounter(testutil.NewDB(t)))

	calls := 0
	err := Assign(ctx, 2, n.TicketNumber, func(string) error {
		calls++
		return apperr.Conflict("create_ticket", "taken")
	})

	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Equal(t, 2, calls)
}

func TestAssignDoesNotRetryOtherErrors(t *testing.T) {
	ctx := context.Background()
	n := NewNumberer(NewDBCounter(testutil.NewDB(t)))

	calls := 0
	boom := errors.New("boom")
	err := Assign(ctx, 3, n.TicketNumber, func(string) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
