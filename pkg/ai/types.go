package ai

import "context"

// Criterion is one graded dimension of a score report.
type Criterion struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// ScoreReport is the four-criterion assessment produced by the scorer.
type ScoreReport struct {
	Completeness Criterion `json:"completeness"`
	Clarity      Criterion `json:"clarity"`
	Consistency  Criterion `json:"consistency"`
	Verification Criterion `json:"verification"`
	Overall      Criterion `json:"overall"`
}

// Classifier decides whether text is a software-test artefact.
type Classifier interface {
	Classify(ctx context.Context, text string) (bool, error)
}

// Scorer grades a software-test artefact.
type Scorer interface {
	Score(ctx context.Context, text string) (ScoreReport, error)
}

// Gateway groups both AI operations used by the evaluation pipeline.
type Gateway interface {
	Classifier
	Scorer
}
