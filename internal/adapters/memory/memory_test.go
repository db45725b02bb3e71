package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/mail-threat-engine/internal/core"
)

func TestReputationStoreUnseenSender(t *testing.T) {
	store := NewReputationStore()

	rep, err := store.Get(context.Background(), "t1", "New@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", rep.Email)
	assert.Equal(t, "example.com", rep.Domain)
	assert.Zero(t, rep.TotalEmails)
	assert.False(t, rep.IsBlocked)
}

func TestReputationStoreConcurrentOutcomes(t *testing.T) {
	ctx := context.Background()
	store := NewReputationStore()
	store.Put(&core.SenderReputation{TenantID: "t1", Email: "bulk@example.com", TotalEmails: 5, SpamEmails: 2})

	const n, spam = 200, 75
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.RecordOutcome(ctx, "t1", "bulk@example.com", i < spam, 50)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	rep, err := store.Get(ctx, "t1", "bulk@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(5+n), rep.TotalEmails)
	assert.Equal(t, uint64(2+spam), rep.SpamEmails)
	assert.LessOrEqual(t, rep.SpamEmails, rep.TotalEmails)
}

func TestReputationStoreTenantIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewReputationStore()

	_, err := store.RecordOutcome(ctx, "t1", "a@example.com", true, 90)
	require.NoError(t, err)

	other, err := store.Get(ctx, "t2", "a@example.com")
	require.NoError(t, err)
	assert.Zero(t, other.TotalEmails)
}

func TestReputationStoreFlagsAndPurge(t *testing.T) {
	ctx := context.Background()
	store := NewReputationStore()

	require.NoError(t, store.SetBlocked(ctx, "t1", "x@bad.com", true))
	require.NoError(t, store.SetWhitelisted(ctx, "t1", "x@bad.com", true))
	rep, err := store.Get(ctx, "t1", "x@bad.com")
	require.NoError(t, err)
	assert.True(t, rep.IsBlocked)
	assert.True(t, rep.IsWhitelisted)

	require.NoError(t, store.Purge(ctx, "t1", "x@bad.com"))
	rep, err = store.Get(ctx, "t1", "x@bad.com")
	require.NoError(t, err)
	assert.False(t, rep.IsBlocked)
}

func TestReputationStoreTopSpamSenders(t *testing.T) {
	ctx := context.Background()
	store := NewReputationStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	for i, count := range []int{3, 1, 5} {
		for j := 0; j < count; j++ {
			_, err := store.RecordOutcome(ctx, "t1", fmt.Sprintf("s%d@spam.com", i), true, 90)
			require.NoError(t, err)
		}
	}
	_, err := store.RecordOutcome(ctx, "t1", "clean@ok.com", false, 0)
	require.NoError(t, err)

	top, err := store.TopSpamSenders(ctx, "t1", now.Add(-time.Hour), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "s2@spam.com", top[0].Email)
	assert.Equal(t, "s0@spam.com", top[1].Email)

	none, err := store.TopSpamSenders(ctx, "t1", now.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReputationStoreDomainReputation(t *testing.T) {
	ctx := context.Background()
	store := NewReputationStore()

	_, _ = store.RecordOutcome(ctx, "t1", "a@spam.com", true, 90)
	_, _ = store.RecordOutcome(ctx, "t1", "b@spam.com", false, 10)
	_ = store.SetBlocked(ctx, "t1", "b@spam.com", true)
	_, _ = store.RecordOutcome(ctx, "t1", "c@other.com", true, 90)

	agg, err := store.DomainReputation(ctx, "t1", "spam.com")
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Senders)
	assert.Equal(t, 1, agg.BlockedSenders)
	assert.Equal(t, uint64(2), agg.TotalEmails)
	assert.Equal(t, 50.0, agg.Score())
}

func TestRuleRepositoryReplaceIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewRuleRepository()

	set := func(tag string, n int) []*core.SpamRule {
		rules := make([]*core.SpamRule, n)
		for i := range rules {
			rules[i] = &core.SpamRule{ID: fmt.Sprintf("%s-%d", tag, i), Name: tag, Priority: i}
		}
		return rules
	}
	require.NoError(t, repo.ReplaceRules(ctx, "t1", set("old", 5)))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				rules, err := repo.ListRules(ctx, "t1")
				if !assert.NoError(t, err) {
					return
				}
				names := map[string]bool{}
				for _, rule := range rules {
					names[rule.Name] = true
				}
				assert.LessOrEqual(t, len(names), 1, "reader saw a mixed rule set")
				if names["old"] {
					assert.Len(t, rules, 5)
				}
				if names["new"] {
					assert.Len(t, rules, 8)
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			require.NoError(t, repo.ReplaceRules(ctx, "t1", set("new", 8)))
		} else {
			require.NoError(t, repo.ReplaceRules(ctx, "t1", set("old", 5)))
		}
	}
	close(stop)
	wg.Wait()
}

func TestRuleRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewRuleRepository()
	require.NoError(t, repo.ReplaceRules(ctx, "t1", []*core.SpamRule{{ID: "r1", Name: "orig"}}))

	rules, err := repo.ListRules(ctx, "t1")
	require.NoError(t, err)
	rules[0].Name = "mutated"

	again, err := repo.ListRules(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "orig", again[0].Name)
}

func TestEventLogQuery(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	events := []*core.SecurityEvent{
		{ID: "1", TenantID: "t1", Type: core.EventInboundScan, CreatedAt: base},
		{ID: "2", TenantID: "t1", Type: core.EventTraining, CreatedAt: base.Add(time.Hour)},
		{ID: "3", TenantID: "t2", Type: core.EventInboundScan, CreatedAt: base.Add(time.Hour)},
		{ID: "4", TenantID: "t1", Type: core.EventInboundScan, CreatedAt: base.Add(48 * time.Hour)},
	}
	for _, e := range events {
		require.NoError(t, log.Append(ctx, e))
	}
	assert.Equal(t, 4, log.Len())

	got, err := log.Query(ctx, core.EventQuery{
		TenantID: "t1",
		Types:    []string{core.EventInboundScan},
		Since:    base,
		Until:    base.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)

	all, err := log.Query(ctx, core.EventQuery{TenantID: "t1"})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
