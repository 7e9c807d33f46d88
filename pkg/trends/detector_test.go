package trends

import (
	"errors"
	"testing"

	"github.com/gamepop/fin-x-watcher/pkg/models"
)

func buckets(counts ...int) []models.CountBucket {
	out := make([]models.CountBucket, len(counts))
	for i, c := range counts {
		out[i].Count = c
	}
	return out
}

func TestVelocity_ConstantVolume(t *testing.T) {
	summary := Summarize(buckets(10, 10, 10, 10))
	if summary.VelocityChangePercent != 0 {
		t.Fatalf("expected velocity 0 for constant series, got %v", summary.VelocityChangePercent)
	}
	if summary.IsSpiking {
		t.Fatal("constant series must not spike")
	}
	if summary.TotalCount != 40 {
		t.Fatalf("expected total 40, got %d", summary.TotalCount)
	}
}

func TestVelocity_DoublingSpikes(t *testing.T) {
	summary := Summarize(buckets(5, 5, 15, 15))
	if summary.VelocityChangePercent != 200 {
		t.Fatalf("expected velocity 200, got %v", summary.VelocityChangePercent)
	}
	if !summary.IsSpiking {
		t.Fatal("expected spiking series")
	}
}

func TestVelocity_ZeroOlderHalf(t *testing.T) {
	if got := Velocity(buckets(0, 0, 3, 4)); got != 100 {
		t.Fatalf("expected velocity 100 when older half is empty, got %v", got)
	}
	if got := Velocity(buckets(0, 0, 0, 0)); got != 0 {
		t.Fatalf("expected velocity 0 for empty series, got %v", got)
	}
}

func TestVelocity_DegenerateInput(t *testing.T) {
	if got := Velocity(nil); got != 0 {
		t.Fatalf("expected velocity 0 for nil series, got %v", got)
	}
	summary := Summarize(buckets(42))
	if summary.VelocityChangePercent != 0 || summary.IsSpiking {
		t.Fatalf("single bucket must not trend: %+v", summary)
	}
}

func TestVelocity_OddLengthSplit(t *testing.T) {
	// mid = 2: older = [4, 4], recent = [4, 4, 4]
	if got := Velocity(buckets(4, 4, 4, 4, 4)); got != 50 {
		t.Fatalf("expected velocity 50 for odd split, got %v", got)
	}
}

func TestErrorSummary(t *testing.T) {
	summary := ErrorSummary(errors.New("counts unavailable"))
	if summary.Err != "counts unavailable" {
		t.Fatalf("expected error marker, got %+v", summary)
	}
	if summary.IsSpiking || summary.VelocityChangePercent != 0 {
		t.Fatalf("error summary must carry no trend: %+v", summary)
	}
}
