package core

import (
	"context"

	"github.com/mikey/mail-threat-engine/internal/analysis"
)

// suiteAnalyzer adapts one lexical analyzer of the suite to ContentAnalyzer
type suiteAnalyzer struct {
	name  string
	score func(*Email) analysis.Score
}

func (a suiteAnalyzer) Name() string {
	return a.name
}

func (a suiteAnalyzer) Analyze(_ context.Context, email *Email) (float64, error) {
	return a.score(email).Value, nil
}

func builtinAnalyzers(suite *analysis.Suite) []ContentAnalyzer {
	return []ContentAnalyzer{
		suiteAnalyzer{name: AnalyzerSubject, score: func(e *Email) analysis.Score {
			return suite.ScoreSubject(e.Subject)
		}},
		suiteAnalyzer{name: AnalyzerBody, score: func(e *Email) analysis.Score {
			return suite.ScoreBody(e.Body)
		}},
		suiteAnalyzer{name: AnalyzerHeaders, score: func(e *Email) analysis.Score {
			return suite.ScoreHeaders(e.Headers)
		}},
		suiteAnalyzer{name: AnalyzerAttachments, score: func(e *Email) analysis.Score {
			return suite.ScoreAttachments(toAnalysisAttachments(e.Attachments))
		}},
	}
}

func toAnalysisAttachments(in []Attachment) []analysis.Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]analysis.Attachment, len(in))
	for i, a := range in {
		out[i] = analysis.Attachment{Filename: a.Filename, Size: a.Size, MimeType: a.MimeType}
	}
	return out
}
