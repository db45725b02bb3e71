package sqlstore

import (
	"context"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/core"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	store, err := Open(DialectSQLite, ":memory:", 0, zap.NewNop())
	require.NoError(t, err)
	store.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteReputationLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)

	rep, err := store.Get(ctx, "t1", "A@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", rep.Email)
	assert.Equal(t, "example.com", rep.Domain)
	assert.Zero(t, rep.TotalEmails)

	rep, err = store.RecordOutcome(ctx, "t1", "a@example.com", true, 90)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rep.TotalEmails)
	assert.Equal(t, uint64(1), rep.SpamEmails)
	assert.Equal(t, 90.0, rep.LastScore)
	assert.Equal(t, fixedNow, rep.LastSeen)

	rep, err = store.RecordOutcome(ctx, "t1", "A@example.com", false, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rep.TotalEmails)
	assert.Equal(t, uint64(1), rep.SpamEmails)
	assert.Equal(t, 50.0, rep.Score())

	require.NoError(t, store.SetBlocked(ctx, "t1", "a@example.com", true))
	require.NoError(t, store.SetWhitelisted(ctx, "t1", "new@example.com", true))

	rep, err = store.Get(ctx, "t1", "a@example.com")
	require.NoError(t, err)
	assert.True(t, rep.IsBlocked)
	assert.Equal(t, uint64(2), rep.TotalEmails, "flag update keeps counters")

	rep, err = store.Get(ctx, "t1", "new@example.com")
	require.NoError(t, err)
	assert.True(t, rep.IsWhitelisted)
	assert.Zero(t, rep.TotalEmails)

	other, err := store.Get(ctx, "t2", "a@example.com")
	require.NoError(t, err)
	assert.Zero(t, other.TotalEmails, "tenants are isolated")

	require.NoError(t, store.Purge(ctx, "t1", "a@example.com"))
	rep, err = store.Get(ctx, "t1", "a@example.com")
	require.NoError(t, err)
	assert.Zero(t, rep.TotalEmails)
	assert.False(t, rep.IsBlocked)
}

func TestSQLiteConcurrentOutcomes(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.RecordOutcome(ctx, "t1", "burst@example.com", i%2 == 0, 50)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	rep, err := store.Get(ctx, "t1", "burst@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), rep.TotalEmails)
	assert.Equal(t, uint64(25), rep.SpamEmails)
}

func TestSQLiteTopSpamSendersAndDomain(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)

	for i := 0; i < 3; i++ {
		_, err := store.RecordOutcome(ctx, "t1", "worst@bad.com", true, 90)
		require.NoError(t, err)
	}
	_, err := store.RecordOutcome(ctx, "t1", "mild@bad.com", true, 80)
	require.NoError(t, err)
	_, err = store.RecordOutcome(ctx, "t1", "clean@bad.com", false, 5)
	require.NoError(t, err)
	require.NoError(t, store.SetBlocked(ctx, "t1", "worst@bad.com", true))

	top, err := store.TopSpamSenders(ctx, "t1", fixedNow.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "worst@bad.com", top[0].Email)
	assert.Equal(t, "mild@bad.com", top[1].Email)

	top, err = store.TopSpamSenders(ctx, "t1", fixedNow.Add(-time.Hour), 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	top, err = store.TopSpamSenders(ctx, "t1", fixedNow.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, top)

	agg, err := store.DomainReputation(ctx, "t1", "bad.com")
	require.NoError(t, err)
	assert.Equal(t, 3, agg.Senders)
	assert.Equal(t, 1, agg.BlockedSenders)
	assert.Equal(t, uint64(5), agg.TotalEmails)
	assert.Equal(t, uint64(4), agg.SpamEmails)
	assert.Equal(t, fixedNow, agg.LastSeen)

	empty, err := store.DomainReputation(ctx, "t1", "nobody.org")
	require.NoError(t, err)
	assert.Zero(t, empty.Senders)
	assert.True(t, empty.LastSeen.IsZero())
}

func TestSQLiteReplaceRules(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)

	first := []*core.SpamRule{
		{ID: "r2", Name: "second", Type: core.RuleTypeSubject, Pattern: "win", Action: core.ActionFlag, Priority: 2, IsActive: true, CreatedAt: fixedNow},
		{ID: "r1", Name: "first", Type: core.RuleTypeSender, Pattern: `.*@bad\.com`, IsRegex: true, Action: core.ActionBlock, Priority: 1, IsActive: true, CreatedAt: fixedNow},
	}
	require.NoError(t, store.ReplaceRules(ctx, "t1", first))

	rules, err := store.ListRules(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "first", rules[0].Name)
	assert.Equal(t, "t1", rules[0].TenantID)
	assert.True(t, rules[0].IsRegex)
	assert.Equal(t, core.ActionBlock, rules[0].Action)
	assert.Equal(t, core.RuleTypeSender, rules[0].Type)
	assert.Equal(t, fixedNow, rules[0].CreatedAt)

	require.NoError(t, store.ReplaceRules(ctx, "t1", []*core.SpamRule{
		{ID: "r3", Name: "only", Type: core.RuleTypeContent, Pattern: "x", Action: core.ActionQuarantine, Priority: 5, IsActive: false},
	}))
	rules, err = store.ListRules(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "only", rules[0].Name)
	assert.False(t, rules[0].IsActive)

	require.NoError(t, store.ReplaceRules(ctx, "t1", nil))
	rules, err = store.ListRules(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestSQLiteReplaceRulesIsAtomicForReaders(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)

	set := func(prefix string) []*core.SpamRule {
		var rules []*core.SpamRule
		for i := 0; i < 5; i++ {
			rules = append(rules, &core.SpamRule{
				ID: prefix + string(rune('a'+i)), Name: prefix, Type: core.RuleTypeContent,
				Pattern: "p", Action: core.ActionFlag, Priority: i, IsActive: true,
			})
		}
		return rules
	}
	require.NoError(t, store.ReplaceRules(ctx, "t1", set("old")))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 3; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				rules, err := store.ListRules(ctx, "t1")
				if !assert.NoError(t, err) {
					return
				}
				if assert.Len(t, rules, 5) {
					for _, rule := range rules {
						assert.Equal(t, rules[0].Name, rule.Name, "mixed rule sets observed")
					}
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		name := "old"
		if i%2 == 0 {
			name = "new"
		}
		require.NoError(t, store.ReplaceRules(ctx, "t1", set(name)))
	}
	close(stop)
	wg.Wait()
}

func TestSQLiteEventLog(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)

	events := []*core.SecurityEvent{
		{ID: "e1", TenantID: "t1", EventType: core.EventTypeEmailSecurity, Type: core.EventInboundScan, Action: "block", Severity: core.SeverityHigh, CreatedAt: fixedNow.Add(-2 * time.Hour)},
		{ID: "e2", TenantID: "t1", EventType: core.EventTypeEmailSecurity, Type: core.EventTraining, Action: "not_spam", Severity: core.SeverityInfo,
			Details: map[string]any{"correction": core.CorrectionFalsePositive, "item_id": "m1"}, CreatedAt: fixedNow.Add(-time.Hour)},
		{ID: "e3", TenantID: "t2", EventType: core.EventTypeEmailSecurity, Type: core.EventInboundScan, Action: "allow", Severity: core.SeverityInfo, CreatedAt: fixedNow},
		{ID: "e4", TenantID: "t1", EventType: core.EventTypeEmailSecurity, Type: core.EventRulesUpdate, Action: "replace", Severity: core.SeverityInfo, CreatedAt: fixedNow},
	}
	for _, e := range events {
		require.NoError(t, store.Append(ctx, e))
	}

	all, err := store.Query(ctx, core.EventQuery{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "e1", all[0].ID)
	assert.Nil(t, all[0].Details)

	scans, err := store.Query(ctx, core.EventQuery{
		TenantID: "t1",
		Types:    []string{core.EventInboundScan, core.EventTraining},
		Since:    fixedNow.Add(-90 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "e2", scans[0].ID)
	assert.Equal(t, core.CorrectionFalsePositive, scans[0].Details["correction"])
	assert.Equal(t, fixedNow.Add(-time.Hour), scans[0].CreatedAt)

	until, err := store.Query(ctx, core.EventQuery{TenantID: "t1", Until: fixedNow.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Len(t, until, 2)
}

func TestSQLiteSchemaSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "threat.db")

	store, err := Open(DialectSQLite, path, 0, zap.NewNop())
	require.NoError(t, err)
	_, err = store.RecordOutcome(ctx, "t1", "a@example.com", true, 80)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(DialectSQLite, path, 0, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	rep, err := store.Get(ctx, "t1", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rep.SpamEmails)
}

func TestOpenRejectsUnknownDialect(t *testing.T) {
	_, err := Open(Dialect("oracle"), "dsn", 0, zap.NewNop())
	assert.Error(t, err)
}

func TestMySQLRecordOutcomeUsesDuplicateKeyUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := New(db, DialectMySQL, zap.NewNop())
	store.now = func() time.Time { return fixedNow }

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE") + `\s+total_emails = total_emails \+ 1`).
		WithArgs("t1", "a@example.com", "example.com", 1, 90.0, fixedNow.UnixMilli()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT (.+) FROM sender_reputation").
		WithArgs("t1", "a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"tenant_id", "email", "domain", "total_emails", "spam_emails", "last_score", "is_blocked", "is_whitelisted", "last_seen",
		}).AddRow("t1", "a@example.com", "example.com", int64(4), int64(3), 90.0, false, false, fixedNow.UnixMilli()))
	mock.ExpectCommit()

	rep, err := store.RecordOutcome(context.Background(), "t1", "A@example.com", true, 90)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), rep.TotalEmails)
	assert.Equal(t, uint64(3), rep.SpamEmails)
	assert.Equal(t, fixedNow, rep.LastSeen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLReplaceRulesRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := New(db, DialectMySQL, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM spam_rules").WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectPrepare("INSERT INTO spam_rules").
		ExpectExec().
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = store.ReplaceRules(context.Background(), "t1", []*core.SpamRule{
		{ID: "r1", Name: "one", Type: core.RuleTypeSubject, Pattern: "x", Action: core.ActionFlag, Priority: 1, IsActive: true},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := New(db, DialectPostgres, zap.NewNop())
	assert.Equal(t, "a = $1 AND b IN ($2, $3)", store.rebind("a = ? AND b IN (?, ?)"))

	mock.ExpectExec(`DELETE FROM sender_reputation\s+WHERE tenant_id = \$1 AND email = \$2`).
		WithArgs("t1", "a@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Purge(context.Background(), "t1", " A@Example.com "))

	mock.ExpectExec(`ON CONFLICT \(tenant_id, email\) DO UPDATE SET is_blocked = excluded.is_blocked`).
		WithArgs("t1", "a@example.com", "example.com", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.SetBlocked(context.Background(), "t1", "a@example.com", true))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMillisRoundTrip(t *testing.T) {
	assert.Zero(t, toMillis(time.Time{}))
	assert.True(t, fromMillis(0).IsZero())
	assert.Equal(t, fixedNow, fromMillis(toMillis(fixedNow)))
}
