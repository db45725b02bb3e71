package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/mail-threat-engine/internal/core"
)

// harness runs threatctl commands against one SQLite database so state
// carries over between invocations
type harness struct {
	t          *testing.T
	dir        string
	configPath string
}

func newHarness(t *testing.T) *harness {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	config := `
storage:
  type: sqlite
  sqlite_path: ` + filepath.Join(dir, "engine.db") + `
cache:
  type: none
retrain:
  provider: log
`
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))
	return &harness{t: t, dir: dir, configPath: configPath}
}

func (h *harness) writeFile(name, content string) string {
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (h *harness) execute(stdin string, args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", h.configPath, "--tenant", "acme", "--user", "admin"}, args...))
	err := root.Execute()
	return out.String(), err
}

func (h *harness) mustExecute(stdin string, args ...string) string {
	out, err := h.execute(stdin, args...)
	require.NoError(h.t, err, out)
	return out
}

const spamMessage = "From: Deals <bad@spam.test>\r\n" +
	"To: user@acme.test\r\n" +
	"Subject: You are a winner\r\n" +
	"\r\n" +
	"Claim your prize today.\r\n"

func TestRulesAndScan(t *testing.T) {
	h := newHarness(t)

	rules := h.writeFile("rules.yaml", `
rules:
  - name: known spammer
    type: sender
    pattern: bad@spam.test
    action: block
    priority: 1
  - name: invoice lure
    type: subject
    pattern: "invoice.*overdue"
    is_regex: true
    action: flag
    priority: 2
`)
	out := h.mustExecute("", "rules", "replace", rules)
	assert.Contains(t, out, `"rules_created": 2`)

	out = h.mustExecute("", "rules", "list")
	assert.Contains(t, out, "known spammer")
	assert.Contains(t, out, "/invoice.*overdue/")

	out = h.mustExecute(spamMessage, "scan", "--json")
	var result core.ScanResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.IsSpam)
	assert.Contains(t, result.Actions, core.ActionBlock)
	require.Len(t, result.MatchedRules, 1)
	assert.Equal(t, "known spammer", result.MatchedRules[0].Name)

	out = h.mustExecute("", "reputation", "get", "bad@spam.test")
	var rep core.SenderReputation
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, uint64(1), rep.TotalEmails)
	assert.Equal(t, uint64(1), rep.SpamEmails)

	out = h.mustExecute("", "stats", "--days", "1")
	var stats core.Statistics
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.Scanned)
	assert.Equal(t, 1, stats.Blocked)

	out = h.mustExecute("", "rules", "replace", h.writeFile("empty.yaml", "rules: []\n"))
	assert.Contains(t, out, `"rules_created": 0`)
	assert.Contains(t, h.mustExecute("", "rules", "list"), "No rules")
}

func TestInvalidRulesAreRejected(t *testing.T) {
	h := newHarness(t)

	rules := h.writeFile("rules.yaml", `
rules:
  - name: broken
    type: subject
    pattern: "(["
    is_regex: true
    action: block
    priority: 1
`)
	_, err := h.execute("", "rules", "replace", rules)
	assert.Error(t, err)

	_, err = h.execute("", "rules", "replace", h.writeFile("garbage.yaml", "rules: {"))
	assert.Error(t, err)
}

func TestScanReport(t *testing.T) {
	h := newHarness(t)

	messagePath := h.writeFile("message.eml", spamMessage)
	out := h.mustExecute("", "scan", messagePath)
	assert.Contains(t, out, "=== Results ===")
	assert.Contains(t, out, "From: bad@spam.test (Deals)")
}

func TestReputationAdministration(t *testing.T) {
	h := newHarness(t)

	h.mustExecute("", "reputation", "block", "Someone@Example.com")
	out := h.mustExecute("", "reputation", "get", "someone@example.com")
	assert.Contains(t, out, `"is_blocked": true`)

	h.mustExecute("", "reputation", "unblock", "someone@example.com")
	h.mustExecute("", "reputation", "whitelist", "someone@example.com")
	out = h.mustExecute("", "reputation", "get", "someone@example.com")
	assert.Contains(t, out, `"is_blocked": false`)
	assert.Contains(t, out, `"is_whitelisted": true`)

	h.mustExecute("", "reputation", "whitelist", "--remove", "someone@example.com")
	out = h.mustExecute("", "reputation", "get", "someone@example.com")
	assert.Contains(t, out, `"is_whitelisted": false`)

	out = h.mustExecute("", "reputation", "domain", "example.com")
	assert.Contains(t, out, `"senders": 1`)

	h.mustExecute("", "reputation", "purge", "someone@example.com")
	out = h.mustExecute("", "reputation", "domain", "example.com")
	assert.Contains(t, out, `"senders": 0`)

	_, err := h.execute("", "reputation", "get", "not-an-address")
	assert.Error(t, err)
}

func TestTrain(t *testing.T) {
	h := newHarness(t)

	batch := h.writeFile("batch.json", `{"emails": [`+
		`{"id": "1", "is_spam": true, "subject": "Win", "body": "prize", "from_email": "x@spam.test"},`+
		`{"id": "2", "is_spam": false, "subject": "Lunch", "body": "noon?", "from_email": "y@acme.test"},`+
		`{"id": "3", "is_spam": true, "subject": "No sender"}`+
		`]}`)
	out := h.mustExecute("", "train", batch)

	var result core.TrainingResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.TrainedCount)
	assert.True(t, strings.HasPrefix(result.ModelVersion, "heuristic-"), result.ModelVersion)

	out = h.mustExecute("", "stats")
	var stats core.Statistics
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.FalsePositives)
	assert.Equal(t, 1, stats.FalseNegatives)
}

func TestOutbound(t *testing.T) {
	h := newHarness(t)

	out := h.mustExecute("", "outbound", "--to", "a@partner.test,b@partner.test", "--subject", "Meeting notes", "--body", "Notes attached.")
	var assessment core.OutboundAssessment
	require.NoError(t, json.Unmarshal([]byte(out), &assessment))
	assert.Equal(t, 2, assessment.RecipientCount)

	msg := h.writeFile("outbound.yaml", `
to: [c@partner.test]
subject: FREE money, act now
body: Click here http://bit.ly/abc
`)
	out = h.mustExecute("", "outbound", "-f", msg)
	assessment = core.OutboundAssessment{}
	require.NoError(t, json.Unmarshal([]byte(out), &assessment))
	assert.Equal(t, 1, assessment.LinkCount)
	assert.Greater(t, assessment.ContentScore, 0.0)

	_, err := h.execute("", "outbound", "--subject", "nobody")
	assert.ErrorIs(t, err, core.ErrNoRecipients)
}
