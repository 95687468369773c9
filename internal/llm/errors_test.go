package llm

import (
	"fmt"
	"testing"
)

func TestClassifyRuntimeError(t *testing.T) {
	degenerate := []string{
		"probability tensor contains either `inf`, `nan` or element < 0",
		"Invalid probability distribution during sampling",
		"sampler: logits contain NaN",
	}
	for _, msg := range degenerate {
		if err := classifyRuntimeError("p", msg); !IsDegenerateSampling(err) {
			t.Fatalf("%q not classified as degenerate: %v", msg, err)
		}
	}
	err := classifyRuntimeError("llama server /completion 500", "out of memory")
	if IsDegenerateSampling(err) {
		t.Fatalf("oom misclassified")
	}
	if err.Error() != "llama server /completion 500: out of memory" {
		t.Fatalf("unexpected message: %q", err)
	}
}

func TestKindsSurviveWrapping(t *testing.T) {
	if !IsDegenerateSampling(fmt.Errorf("generate: %w", ErrDegenerateSampling("nan"))) {
		t.Fatalf("wrapped degenerate error lost its kind")
	}
	if !IsDependencyUnavailable(fmt.Errorf("load: %w", ErrDependencyUnavailable("x"))) {
		t.Fatalf("wrapped dependency error lost its kind")
	}
	if !IsModelNotFound(fmt.Errorf("load: %w", ErrModelNotFound("x"))) {
		t.Fatalf("wrapped model-not-found error lost its kind")
	}
	if IsDegenerateSampling(ErrDependencyUnavailable("nan")) {
		t.Fatalf("kinds must not cross")
	}
}

func TestStripControlTokens(t *testing.T) {
	in := "<bos>Nice move.<end_of_turn><eos> <|eot_id|></s>"
	if got := stripControlTokens(in); got != "Nice move. " {
		t.Fatalf("unexpected strip result: %q", got)
	}
	if got := stripControlTokens("a < b > c"); got != "a < b > c" {
		t.Fatalf("plain angle brackets must survive: %q", got)
	}
}
