package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSuite() *Suite {
	return NewSuite(DefaultConfig(), nil)
}

func TestScoreSubject(t *testing.T) {
	s := newTestSuite()

	tests := []struct {
		name    string
		subject string
		want    float64
	}{
		{"keywords caps and punctuation", "FREE MONEY!!! ACT NOW", 60},
		{"clean subject", "Meeting notes for Tuesday", 0},
		{"keyword inside a word is ignored", "Freedom of information request", 0},
		{"two punctuation runs", "Free?? or not??", 35},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.ScoreSubject(tt.subject)
			assert.Equal(t, tt.want, got.Value, "signals: %v", got.Signals)
		})
	}
}

func TestScoreSubjectIsDeterministic(t *testing.T) {
	s := newTestSuite()
	first := s.ScoreSubject("URGENT winner!!! claim your prize")
	second := s.ScoreSubject("URGENT winner!!! claim your prize")
	assert.Equal(t, first, second)
}

func TestScoreBody(t *testing.T) {
	s := newTestSuite()

	manyLinks := strings.Repeat("see https://example.com/page ", 6)

	tests := []struct {
		name string
		body string
		want float64
	}{
		{"shortened link", "Visit https://bit.ly/abc and http://example.com today", 15},
		{"excessive links", manyLinks, 20},
		{"currency capped", "Win $1,000 or $500 or €20 or 30 dollars", 30},
		{"urgency phrases counted per hit", "Act now! This offer expires today. Act now.", 30},
		{"clean body", "Hi team, the quarterly report is attached.", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.ScoreBody(tt.body)
			assert.Equal(t, tt.want, got.Value, "signals: %v", got.Signals)
		})
	}
}

func TestShortenerSubdomain(t *testing.T) {
	s := newTestSuite()
	assert.True(t, s.IsShortenedURL("https://www.bit.ly/x"))
	assert.True(t, s.IsShortenedURL("http://go.tinyurl.com/abc?q=1"))
	assert.False(t, s.IsShortenedURL("https://notbit.ly/x"))
	assert.False(t, s.IsShortenedURL("https://example.com"))
}

func TestCountLinks(t *testing.T) {
	assert.Equal(t, 0, CountLinks("no links here"))
	assert.Equal(t, 3, CountLinks("http://a.com https://b.org/x www.c.net"))
}

func TestScoreHeaders(t *testing.T) {
	s := newTestSuite()

	complete := map[string]string{
		"message-id": "<abc@example.com>",
		"DATE":       "Mon, 1 Jan 2024 10:00:00 +0000",
		"From":       "alice@example.com",
	}

	withHops := map[string]string{}
	for k, v := range complete {
		withHops[k] = v
	}
	hops := make([]string, 11)
	for i := range hops {
		hops[i] = "from relay.example.com by mx.example.com"
	}
	withHops["Received"] = strings.Join(hops, "\n")

	withAuth := map[string]string{}
	for k, v := range complete {
		withAuth[k] = v
	}
	withAuth["Authentication-Results"] = "mx.example.com; spf=fail smtp.mailfrom=x; dkim=fail"

	tests := []struct {
		name    string
		headers map[string]string
		want    float64
	}{
		{"no headers", nil, 45},
		{"complete case-insensitive", complete, 0},
		{"excessive hops", withHops, 20},
		{"failed authentication counted once", withAuth, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.ScoreHeaders(tt.headers).Value)
		})
	}
}

func TestReceivedHops(t *testing.T) {
	assert.Equal(t, 0, ReceivedHops(""))
	assert.Equal(t, 2, ReceivedHops("hop one\n\nhop two\n"))
}

func TestScoreAttachments(t *testing.T) {
	s := newTestSuite()

	tests := []struct {
		name        string
		attachments []Attachment
		want        float64
	}{
		{"double extension executable", []Attachment{{Filename: "invoice.pdf.exe", MimeType: "application/octet-stream"}}, 60},
		{"script with mime parameters", []Attachment{{Filename: "run.js", MimeType: "application/javascript; charset=utf-8"}}, 70},
		{"plain document", []Attachment{{Filename: "report.pdf", MimeType: "application/pdf"}}, 0},
		{"archive", []Attachment{{Filename: "archive.tar.gz", MimeType: "application/gzip"}}, 0},
		{"scores accumulate", []Attachment{{Filename: "a.exe"}, {Filename: "b.scr"}}, 80},
		{"none", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.ScoreAttachments(tt.attachments).Value)
		})
	}
}

func TestHasDoubleExtension(t *testing.T) {
	assert.True(t, HasDoubleExtension("Invoice.PDF.exe"))
	assert.True(t, HasDoubleExtension("photo.jpg.scr"))
	assert.False(t, HasDoubleExtension("photo.jpg.png"))
	assert.False(t, HasDoubleExtension("setup.exe"))
	assert.False(t, HasDoubleExtension("my.report.final"))
}

func TestDetectLanguage(t *testing.T) {
	s := newTestSuite()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"english", "Thank you for your order, the package is on the way and will arrive with the courier", "en"},
		{"spanish", "Hola, gracias por su compra. El paquete llegará mañana con el mensajero de la empresa.", "es"},
		{"french", "Nous vous remercions pour votre commande, elle est dans le camion", "fr"},
		{"german", "Ich danke Ihnen für die schnelle Lieferung und die freundliche Beratung", "de"},
		{"no evidence", "12345 !!!", UnknownLanguage},
		{"empty", "", UnknownLanguage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.DetectLanguage(tt.text)
			assert.Equal(t, tt.want, got.Language, "scores: %v", got.Scores)
		})
	}
}

func TestAnalyzeSentiment(t *testing.T) {
	s := newTestSuite()

	t.Run("positive", func(t *testing.T) {
		got := s.AnalyzeSentiment("This is an excellent and amazing product, thanks")
		assert.Equal(t, SentimentPositive, got.Label)
		assert.Equal(t, 8.0, got.Score)
		assert.Equal(t, 100.0, got.Confidence)
	})

	t.Run("mixed negative", func(t *testing.T) {
		got := s.AnalyzeSentiment("terrible service, bad experience but good price")
		assert.Equal(t, SentimentNegative, got.Label)
		assert.Equal(t, -3.0, got.Score)
		assert.InDelta(t, 42.857, got.Confidence, 0.01)
	})

	t.Run("neutral when empty", func(t *testing.T) {
		got := s.AnalyzeSentiment("")
		assert.Equal(t, SentimentNeutral, got.Label)
		assert.Zero(t, got.Confidence)
		assert.False(t, got.IsSpammy)
	})

	t.Run("spammy", func(t *testing.T) {
		got := s.AnalyzeSentiment("URGENT: act now! Free money, cash prize, click here, winner")
		assert.Equal(t, 7, got.SpamPhraseHits)
		assert.True(t, got.IsSpammy)
	})

	t.Run("threshold is exclusive", func(t *testing.T) {
		got := s.AnalyzeSentiment("urgent cash prize winner")
		assert.Equal(t, 4, got.SpamPhraseHits)
		assert.False(t, got.IsSpammy)
	})
}

func TestSuspiciousSender(t *testing.T) {
	s := newTestSuite()

	assert.True(t, s.SuspiciousSender("noreply@secure-mail.com", "Your Bank Security"))
	assert.True(t, s.SuspiciousSender("no-reply@x.com", "PayPal Service"))
	assert.False(t, s.SuspiciousSender("noreply@shop.com", "Shop Team"))
	assert.False(t, s.SuspiciousSender("alerts@bank.com", "Bank"))
}

func TestSuspiciousSenderCustomBrands(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BrandKeywords = []string{"Contoso"}
	s := NewSuite(cfg, nil)

	assert.True(t, s.SuspiciousSender("donotreply@mail.net", "CONTOSO billing"))
	assert.False(t, s.SuspiciousSender("donotreply@mail.net", "Bank of Somewhere"))
}

func TestTriggerPhraseHits(t *testing.T) {
	s := newTestSuite()
	assert.ElementsMatch(t, []string{"free", "click here", "prize"}, s.TriggerPhraseHits("Click here for a FREE prize"))
	assert.Empty(t, s.TriggerPhraseHits("Minutes from the planning meeting"))
}

func TestCapsRatio(t *testing.T) {
	assert.Equal(t, 1.0, CapsRatio("ABCDE"))
	assert.Equal(t, 0.0, CapsRatio("Hi"))
	assert.InDelta(t, 0.2, CapsRatio("Hello World"), 0.0001)
}

func TestNewSuiteDefaults(t *testing.T) {
	s := NewSuite(Config{}, nil)
	cfg := s.Config()
	require.NotEmpty(t, cfg.SubjectKeywords)
	assert.Equal(t, 0.5, cfg.CapsRatioThreshold)
	assert.Equal(t, 4, cfg.SpamminessThreshold)
	assert.Equal(t, 2.0, cfg.LanguageMinConfidence)
	assert.NotNil(t, s.TextProcessor())
}
