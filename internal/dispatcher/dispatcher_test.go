package dispatcher

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testConfig() Config {
	return Config{
		TargetInbox:      10,
		OverflowFactor:   1.2,
		UnderflowFactor:  0.8,
		SensitivityRatio: 1.2,
		MaxEvents:        100,
	}
}

func TestNextRate(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		name     string
		rate     float64
		queueLen int
		want     float64
	}{
		{"overflow grows rate", 50, 13, 60},
		{"overflow is capped", 90, 13, 100},
		{"inside band keeps rate", 50, 10, 50},
		{"upper bound is exclusive", 50, 12, 50},
		{"underflow shrinks rate", 60, 7, 50},
		{"underflow is floored", 18, 0, 100.0 / 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NextRate(cfg, tt.rate, tt.queueLen), 1e-9)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, testConfig().Validate())

	broken := []func(*Config){
		func(c *Config) { c.TargetInbox = 0 },
		func(c *Config) { c.OverflowFactor = 1 },
		func(c *Config) { c.UnderflowFactor = 1 },
		func(c *Config) { c.SensitivityRatio = 0.5 },
		func(c *Config) { c.MaxEvents = 0 },
	}
	for i, mutate := range broken {
		cfg := testConfig()
		mutate(&cfg)
		_, err := CreateDispatcher(cfg)
		assert.Error(t, err, "case %d", i)
	}
}

func TestInitialRateIsHalfOfMaxEvents(t *testing.T) {
	d, err := CreateDispatcher(testConfig())
	require.NoError(t, err)
	assert.Equal(t, 50.0, d.Rate())
}

func TestInterval(t *testing.T) {
	assert.Equal(t, 20*time.Millisecond, interval(50))
	assert.Equal(t, time.Second, interval(0.4))
}

func TestReleaseOrder(t *testing.T) {
	d, err := CreateDispatcher(testConfig())
	require.NoError(t, err)

	tickets := make([]*Ticket, 0)
	for _, p := range []int64{5, 1, 5, 2} {
		ticket, err := d.Submit(p)
		require.NoError(t, err)
		tickets = append(tickets, ticket)
	}

	order := make([]int, 0)
	for d.releaseNext() {
		for i, ticket := range tickets {
			if slices.Contains(order, i) {
				continue
			}
			select {
			case err := <-ticket.item.release:
				require.NoError(t, err)
				order = append(order, i)
			default:
			}
		}
	}
	assert.Equal(t, []int{1, 3, 0, 2}, order)
}

func TestReleaseOrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		priorities := rapid.SliceOf(rapid.Int64Range(-5, 5)).Draw(t, "priorities")
		d, err := CreateDispatcher(testConfig())
		if err != nil {
			t.Fatal(err)
		}
		items := make([]*queueItem, 0, len(priorities))
		for _, p := range priorities {
			ticket, err := d.Submit(p)
			if err != nil {
				t.Fatal(err)
			}
			items = append(items, ticket.item)
		}

		want := make([]int, len(priorities))
		for i := range want {
			want[i] = i
		}
		slices.SortStableFunc(want, func(a, b int) int {
			switch {
			case priorities[a] < priorities[b]:
				return -1
			case priorities[a] > priorities[b]:
				return 1
			}
			return 0
		})

		for _, idx := range want {
			if !d.releaseNext() {
				t.Fatalf("queue drained early")
			}
			select {
			case <-items[idx].release:
			default:
				t.Fatalf("item %d (priority %d) was not released next", idx, priorities[idx])
			}
		}
		if d.releaseNext() {
			t.Fatalf("queue should be empty")
		}
	})
}

func TestDispatchLoopReleasesWaiters(t *testing.T) {
	cfg := testConfig()
	cfg.MaxEvents = 1000
	d, err := CreateDispatcher(cfg)
	require.NoError(t, err)
	d.Start()
	defer d.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := range 20 {
		wg.Go(func() {
			errs <- d.Wait(ctx, int64(i%3))
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 0, d.QueueLen())
}

func TestStopReleasesWaitersWithError(t *testing.T) {
	d, err := CreateDispatcher(testConfig())
	require.NoError(t, err)

	results := make(chan error, 3)
	for i := range 3 {
		go func() { results <- d.Wait(context.Background(), int64(i)) }()
	}
	require.Eventually(t, func() bool { return d.QueueLen() == 3 }, time.Second, time.Millisecond)

	d.Stop()
	d.Stop()
	for range 3 {
		select {
		case err := <-results:
			assert.ErrorIs(t, err, ErrClosedDispatcher)
		case <-time.After(time.Second):
			t.Fatal("waiter stayed blocked after Stop")
		}
	}

	assert.ErrorIs(t, d.Wait(context.Background(), 0), ErrClosedDispatcher)
	_, err = d.Submit(0)
	assert.ErrorIs(t, err, ErrClosedDispatcher)
}

func TestStopAfterStartEndsLoop(t *testing.T) {
	d, err := CreateDispatcher(testConfig())
	require.NoError(t, err)
	d.Start()
	d.Stop()
	select {
	case <-d.doneCh:
	default:
		t.Fatal("dispatch loop still running after Stop")
	}
}

func TestCancelRemovesOnlyThatCaller(t *testing.T) {
	d, err := CreateDispatcher(testConfig())
	require.NoError(t, err)

	keep, err := d.Submit(1)
	require.NoError(t, err)
	drop, err := d.Submit(0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, drop.Wait(ctx), context.Canceled)
	assert.Equal(t, 1, d.QueueLen())

	require.True(t, d.releaseNext())
	assert.NoError(t, keep.Wait(context.Background()))
}

func TestPriorityIndex(t *testing.T) {
	n := 3
	assert.Equal(t, 42, TableSize(n))

	seen := make(map[int]bool)
	for class := range 7 {
		for from := range n {
			for to := range n {
				if from == to {
					continue
				}
				idx, err := PriorityIndex(class, from, to, n)
				require.NoError(t, err)
				assert.False(t, seen[idx], "index %d used twice", idx)
				assert.Less(t, idx, TableSize(n))
				seen[idx] = true
			}
		}
	}
	assert.Len(t, seen, TableSize(n))

	idx, err := PriorityIndex(1, 2, 0, n)
	require.NoError(t, err)
	assert.Equal(t, 1*6+2*2+0, idx)

	_, err = PriorityIndex(7, 0, 1, n)
	assert.Error(t, err)
	_, err = PriorityIndex(0, 1, 1, n)
	assert.Error(t, err)
}
